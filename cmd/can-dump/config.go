package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kstaniek/go-can-dump/internal/recordlog"
	"github.com/kstaniek/go-can-dump/internal/registry"
)

const (
	backendAuto      = "auto"
	backendSerial    = "serial"
	backendSocketCAN = "socketcan"

	defaultDevice = "can0"
)

type appConfig struct {
	device          string
	backend         string
	baud            int
	serialReadTO    time.Duration
	mask            []int
	logDir          string
	recordFormat    string
	registryPath    string
	logFormat       string
	logLevel        string
	metricsAddr     string
	logMetricsEvery time.Duration
	mdnsEnable      bool
	mdnsName        string
	mqttBroker      string
	mqttTopic       string
	mqttClientID    string
}

func defaultConfig() *appConfig {
	return &appConfig{
		device:       defaultDevice,
		backend:      backendAuto,
		baud:         115200,
		serialReadTO: 50 * time.Millisecond,
		logDir:       "logs",
		recordFormat: recordlog.FormatCSV,
		logFormat:    "text",
		logLevel:     "info",
		mqttTopic:    "can-dump",
	}
}

// bindFlags registers the dump flags on fs. --registry is bound separately
// as a persistent flag so the registry subcommand shares it.
func bindFlags(fs *pflag.FlagSet, c *appConfig) {
	fs.StringVar(&c.backend, "backend", c.backend, "Frame source: auto|serial|socketcan (auto: a device path containing '/' is serial)")
	fs.IntVar(&c.baud, "baud", c.baud, "Serial baud rate")
	fs.DurationVar(&c.serialReadTO, "serial-read-timeout", c.serialReadTO, "Serial read timeout (idle reads let shutdown be observed)")
	fs.IntSliceVarP(&c.mask, "mask", "m", c.mask, "Message id to hide from the console (repeatable, still recorded)")
	fs.StringVarP(&c.logDir, "log-dir", "l", c.logDir, "Directory for record log files (created if missing)")
	fs.StringVar(&c.recordFormat, "record-format", c.recordFormat, "Record log format: csv|cbor")
	fs.StringVar(&c.logFormat, "log-format", c.logFormat, "Diagnostic log format: text|json")
	fs.StringVar(&c.logLevel, "log-level", c.logLevel, "Diagnostic log level: debug|info|warn|error")
	fs.StringVar(&c.metricsAddr, "metrics-addr", c.metricsAddr, "Metrics HTTP listen address (e.g., :9100); empty disables")
	fs.DurationVar(&c.logMetricsEvery, "log-metrics-interval", c.logMetricsEvery, "If >0, periodically log metrics counters")
	fs.BoolVar(&c.mdnsEnable, "mdns-enable", c.mdnsEnable, "Advertise the metrics endpoint via mDNS (needs --metrics-addr)")
	fs.StringVar(&c.mdnsName, "mdns-name", c.mdnsName, "mDNS instance name (default can-dump-<hostname>)")
	fs.StringVar(&c.mqttBroker, "mqtt-broker", c.mqttBroker, "Publish rendered lines to this broker (tcp://[user:pass@]host:1883); empty disables")
	fs.StringVar(&c.mqttTopic, "mqtt-topic", c.mqttTopic, "MQTT topic prefix; lines go to <prefix>/<message_id>")
	fs.StringVar(&c.mqttClientID, "mqtt-client-id", c.mqttClientID, "MQTT client id (default can-dump-<hostname>)")
}

// changedFlags collects the flags the user set explicitly; those win over env.
func changedFlags(fs ...*pflag.FlagSet) map[string]struct{} {
	set := map[string]struct{}{}
	for _, f := range fs {
		f.Visit(func(fl *pflag.Flag) { set[fl.Name] = struct{}{} })
	}
	return set
}

// validate checks values and ranges only; it opens nothing.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.backend {
	case backendAuto, backendSerial, backendSocketCAN:
	default:
		return fmt.Errorf("invalid backend: %s", c.backend)
	}
	switch c.recordFormat {
	case recordlog.FormatCSV, recordlog.FormatCBOR:
	default:
		return fmt.Errorf("invalid record-format: %s", c.recordFormat)
	}
	if c.device == "" {
		return errors.New("device must not be empty")
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	if c.serialReadTO <= 0 {
		return fmt.Errorf("serial-read-timeout must be > 0")
	}
	if c.logDir == "" {
		return errors.New("log-dir must not be empty")
	}
	for _, id := range c.mask {
		if id < 0 || id > registry.MaxMessageID {
			return fmt.Errorf("mask id %d outside 0..%d", id, registry.MaxMessageID)
		}
	}
	if c.logMetricsEvery < 0 {
		return fmt.Errorf("log-metrics-interval must be >= 0")
	}
	if c.mdnsEnable {
		if c.metricsAddr == "" {
			return errors.New("mdns-enable requires metrics-addr")
		}
		if _, err := metricsPort(c.metricsAddr); err != nil {
			return err
		}
	}
	if c.mqttBroker != "" && strings.TrimSpace(c.mqttTopic) == "" {
		return errors.New("mqtt-topic must not be empty when mqtt-broker is set")
	}
	return nil
}

// metricsPort extracts the numeric port of a listen address like ":9100".
func metricsPort(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("metrics-addr %q: %w", addr, err)
	}
	n, err := strconv.Atoi(p)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("metrics-addr %q: need an explicit port", addr)
	}
	return n, nil
}

// applyEnvOverrides maps CAN_DUMP_* environment variables onto c unless the
// corresponding flag was set explicitly. Empty values are ignored. The first
// malformed value is reported; later ones are still applied where valid.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	fail := func(key string, err error) {
		if firstErr == nil {
			firstErr = fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	env := func(flag, key string, apply func(string) error) {
		if _, ok := set[flag]; ok {
			return
		}
		v, ok := os.LookupEnv(key)
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			return
		}
		if err := apply(v); err != nil {
			fail(key, err)
		}
	}
	str := func(dst *string) func(string) error {
		return func(v string) error { *dst = v; return nil }
	}
	dur := func(dst *time.Duration, min time.Duration) func(string) error {
		return func(v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return err
			}
			if d < min {
				return fmt.Errorf("%s below %s", d, min)
			}
			*dst = d
			return nil
		}
	}

	env("device", "CAN_DUMP_DEVICE", str(&c.device))
	env("backend", "CAN_DUMP_BACKEND", str(&c.backend))
	env("baud", "CAN_DUMP_BAUD", func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		if n <= 0 {
			return fmt.Errorf("must be > 0")
		}
		c.baud = n
		return nil
	})
	env("serial-read-timeout", "CAN_DUMP_SERIAL_READ_TIMEOUT", dur(&c.serialReadTO, time.Nanosecond))
	env("mask", "CAN_DUMP_MASK", func(v string) error {
		var ids []int
		for _, s := range strings.Split(v, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return err
			}
			ids = append(ids, n)
		}
		c.mask = ids
		return nil
	})
	env("log-dir", "CAN_DUMP_LOG_DIR", str(&c.logDir))
	env("record-format", "CAN_DUMP_RECORD_FORMAT", str(&c.recordFormat))
	env("registry", "CAN_DUMP_REGISTRY", str(&c.registryPath))
	env("log-format", "CAN_DUMP_LOG_FORMAT", str(&c.logFormat))
	env("log-level", "CAN_DUMP_LOG_LEVEL", str(&c.logLevel))
	env("metrics-addr", "CAN_DUMP_METRICS", str(&c.metricsAddr))
	env("log-metrics-interval", "CAN_DUMP_LOG_METRICS_INTERVAL", dur(&c.logMetricsEvery, 0))
	env("mdns-enable", "CAN_DUMP_MDNS_ENABLE", func(v string) error {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			c.mdnsEnable = true
		case "0", "false", "no", "off":
			c.mdnsEnable = false
		default:
			return fmt.Errorf("not a boolean: %q", v)
		}
		return nil
	})
	env("mdns-name", "CAN_DUMP_MDNS_NAME", str(&c.mdnsName))
	env("mqtt-broker", "CAN_DUMP_MQTT_BROKER", str(&c.mqttBroker))
	env("mqtt-topic", "CAN_DUMP_MQTT_TOPIC", str(&c.mqttTopic))
	env("mqtt-client-id", "CAN_DUMP_MQTT_CLIENT_ID", str(&c.mqttClientID))
	return firstErr
}
