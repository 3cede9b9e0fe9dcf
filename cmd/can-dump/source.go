package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kstaniek/go-can-dump/internal/serial"
	"github.com/kstaniek/go-can-dump/internal/socketcan"
	"github.com/kstaniek/go-can-dump/internal/transport"
)

// socketCANReadTimeout bounds each blocking recv so cancellation is seen
// between reads.
const socketCANReadTimeout = 200 * time.Millisecond

// Hooks for tests (overridden in unit tests).
var (
	openSerialPort = serial.Open
	openSocketCAN  = socketcan.OpenSource
)

// resolveBackend picks the transport for device. In auto mode a device path
// (anything with a '/') is a serial port and a bare name is a CAN interface.
func resolveBackend(backend, device string) string {
	if backend != backendAuto {
		return backend
	}
	if strings.Contains(device, "/") {
		return backendSerial
	}
	return backendSocketCAN
}

// openSource opens the configured frame source. Open failures are fatal.
func openSource(cfg *appConfig, l *slog.Logger) (transport.Source, string, error) {
	backend := resolveBackend(cfg.backend, cfg.device)
	switch backend {
	case backendSerial:
		p, err := openSerialPort(cfg.device, cfg.baud, cfg.serialReadTO)
		if err != nil {
			return nil, backend, fmt.Errorf("open serial %s: %w", cfg.device, err)
		}
		l.Info("serial_open", "device", cfg.device, "baud", cfg.baud)
		return serial.NewSource(p), backend, nil
	case backendSocketCAN:
		src, err := openSocketCAN(cfg.device, socketCANReadTimeout)
		if err != nil {
			return nil, backend, fmt.Errorf("socketcan open %s: %w", cfg.device, err)
		}
		l.Info("socketcan_open", "if", cfg.device)
		return src, backend, nil
	default:
		return nil, backend, fmt.Errorf("unknown backend %q (use auto|serial|socketcan)", backend)
	}
}
