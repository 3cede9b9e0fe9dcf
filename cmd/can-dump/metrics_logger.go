package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/go-can-dump/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				logSnapshot(l, metrics.Snap())
			case <-ctx.Done():
				return
			}
		}
	}()
}

func logSnapshot(l *slog.Logger, snap metrics.Snapshot) {
	l.Info("metrics_snapshot",
		"serial_rx", snap.SerialRx,
		"socketcan_rx", snap.SocketCANRx,
		"skipped", snap.Skipped,
		"masked", snap.Masked,
		"unknown", snap.Unknown,
		"rendered", snap.Rendered,
		"records", snap.Records,
		"published", snap.Published,
		"errors", snap.Errors,
	)
}
