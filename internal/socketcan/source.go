//go:build linux

package socketcan

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/kstaniek/go-can-dump/internal/can"
	"github.com/kstaniek/go-can-dump/internal/metrics"
	"github.com/kstaniek/go-can-dump/internal/transport"
)

// Dev is the minimal socket surface needed by Source.
// Implemented by *Device in production and by fakes in tests.
type Dev interface {
	Read(p []byte) (int, error)
	Close() error
}

// Source reads raw SocketCAN frames, one record per receive.
type Source struct {
	dev    Dev
	buf    [RecordLen]byte
	closed atomic.Bool
}

var _ transport.Source = (*Source)(nil)

// NewSource wraps an open device; the source closes it on Close.
func NewSource(d Dev) *Source { return &Source{dev: d} }

// NextFrame blocks for the next record. A receive that does not return a
// whole record leaves the socket in an unknown state and is fatal.
func (s *Source) NextFrame(ctx context.Context) (can.Frame, error) {
	for {
		if s.closed.Load() {
			return can.Frame{}, transport.ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return can.Frame{}, err
		}
		n, err := s.dev.Read(s.buf[:])
		if err != nil {
			if errors.Is(err, ErrReadTimeout) {
				continue
			}
			if s.closed.Load() {
				return can.Frame{}, transport.ErrClosed
			}
			metrics.IncError(metrics.ErrSocketCANRead)
			return can.Frame{}, fmt.Errorf("socketcan read: %w", err)
		}
		f, err := DecodeRecord(s.buf[:n])
		if err != nil {
			metrics.IncError(metrics.ErrSocketCANRead)
			return can.Frame{}, err
		}
		metrics.IncRx(metrics.TransportSocketCAN)
		return f, nil
	}
}

// Close releases the socket. Safe to call more than once.
func (s *Source) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.dev.Close()
}
