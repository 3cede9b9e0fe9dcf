package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/go-can-dump/internal/dispatch"
	"github.com/kstaniek/go-can-dump/internal/metrics"
	"github.com/kstaniek/go-can-dump/internal/mqtt"
	"github.com/kstaniek/go-can-dump/internal/recordlog"
	"github.com/kstaniek/go-can-dump/internal/registry"
)

const mqttConnectTimeout = 10 * time.Second

// Hooks for tests.
var (
	now         = time.Now
	connectMQTT = dialMQTT
)

func dialMQTT(broker, clientID string) (mqtt.Client, error) {
	c, err := mqtt.Connect(broker, clientID, mqttConnectTimeout)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func loadRegistry(path string) (*registry.Registry, error) {
	if path == "" {
		return registry.Default(), nil
	}
	return registry.Load(path)
}

// run wires the dump pipeline and blocks until ctx is cancelled or the
// source fails. Startup failures are returned before any frame is read.
func run(ctx context.Context, cfg *appConfig, stdout io.Writer, l *slog.Logger) error {
	reg, err := loadRegistry(cfg.registryPath)
	if err != nil {
		return err
	}
	l.Info("registry_loaded", "version", reg.Version(), "messages", reg.Len(), "path", cfg.registryPath)

	mask, err := dispatch.NewMaskSet(cfg.mask...)
	if err != nil {
		return err
	}

	src, backend, err := openSource(cfg, l)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	rec, err := recordlog.Open(cfg.logDir, cfg.recordFormat, now())
	if err != nil {
		return err
	}
	defer func() {
		if err := rec.Close(); err != nil {
			l.Warn("record_log_close_failed", "error", err)
		}
	}()
	l.Info("record_log_open", "path", rec.Path(), "format", cfg.recordFormat)

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() { cancel(); wg.Wait() }()
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	opts := []dispatch.Option{
		dispatch.WithRegistry(reg),
		dispatch.WithMask(mask),
		dispatch.WithConsole(stdout),
		dispatch.WithRecorder(rec),
		dispatch.WithLogger(l),
	}
	if cfg.mqttBroker != "" {
		clientID := cfg.mqttClientID
		if clientID == "" {
			clientID = "can-dump-" + hostname()
		}
		c, err := connectMQTT(cfg.mqttBroker, clientID)
		if err != nil {
			return err
		}
		defer c.Close()
		sink := mqtt.NewSink(ctx, c, cfg.mqttTopic, mqtt.DefaultQueueLen)
		defer sink.Close()
		opts = append(opts, dispatch.WithPublisher(sink))
	}
	d := dispatch.New(src, opts...)

	metrics.SetReadinessFunc(d.Ready)
	defer metrics.SetReadinessFunc(nil)
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srv := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srv.Shutdown(context.Background()) }()
		if cfg.mdnsEnable {
			port, _ := metricsPort(cfg.metricsAddr)
			cleanup, err := startMDNS(ctx, cfg, backend, port)
			if err != nil {
				l.Warn("mdns_start_failed", "error", err)
			} else {
				l.Info("mdns_started", "service", mdnsServiceType, "port", port)
				defer cleanup()
			}
		}
	}

	if _, err := fmt.Fprintf(stdout, "Masking IDs %s\n", mask); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	err = d.Run(ctx)
	logSnapshot(l, metrics.Snap())
	return err
}
