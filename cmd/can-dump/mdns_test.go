package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func withFakeMDNS(t *testing.T, delay time.Duration) *atomic.Bool {
	t.Helper()
	var stopped atomic.Bool
	orig := registerMDNS
	registerMDNS = func(string, int, []string) (func(), error) {
		return func() {
			time.Sleep(delay)
			stopped.Store(true)
		}, nil
	}
	t.Cleanup(func() { registerMDNS = orig })
	return &stopped
}

func TestStartMDNSCleanupWaitsForShutdown(t *testing.T) {
	stopped := withFakeMDNS(t, 20*time.Millisecond)
	cfg := validConfig()
	cfg.mdnsEnable = true
	cleanup, err := startMDNS(context.Background(), cfg, backendSerial, 9100)
	if err != nil {
		t.Fatalf("startMDNS: %v", err)
	}
	cleanup()
	if !stopped.Load() {
		t.Fatalf("cleanup returned before shutdown finished")
	}
	cleanup() // second call is a no-op
}

func TestStartMDNSShutsDownOnCancel(t *testing.T) {
	stopped := withFakeMDNS(t, 0)
	cfg := validConfig()
	cfg.mdnsEnable = true
	ctx, cancel := context.WithCancel(context.Background())
	cleanup, err := startMDNS(ctx, cfg, backendSerial, 9100)
	if err != nil {
		t.Fatalf("startMDNS: %v", err)
	}
	cancel()
	cleanup()
	if !stopped.Load() {
		t.Fatalf("expected shutdown after cancel")
	}
}
