package serial

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/kstaniek/go-can-dump/internal/can"
	"github.com/kstaniek/go-can-dump/internal/metrics"
	"github.com/kstaniek/go-can-dump/internal/transport"
)

const readBufSize = 256

// Source reads COBS framed CAN packets from a serial port.
type Source struct {
	port   Port
	codec  Codec
	buf    []byte
	acc    bytes.Buffer
	closed atomic.Bool
}

var _ transport.Source = (*Source)(nil)

// NewSource wraps an open port. The source owns the port and closes it on Close.
func NewSource(p Port) *Source {
	return &Source{port: p, buf: make([]byte, readBufSize)}
}

// NextFrame returns the next decoded frame. COBS failures, bad body lengths
// and undelimited noise are returned as recoverable errors; read failures
// other than io.EOF (idle read timeout) are fatal.
func (s *Source) NextFrame(ctx context.Context) (can.Frame, error) {
	for {
		if s.closed.Load() {
			return can.Frame{}, transport.ErrClosed
		}
		pkt, ok, err := NextPacket(&s.acc)
		if err != nil {
			return can.Frame{}, err
		}
		if ok {
			f, err := s.codec.DecodePacket(pkt)
			if err != nil {
				return can.Frame{}, err
			}
			metrics.IncRx(metrics.TransportSerial)
			return f, nil
		}
		if err := ctx.Err(); err != nil {
			return can.Frame{}, err
		}
		n, err := s.port.Read(s.buf)
		if n > 0 {
			s.acc.Write(s.buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				continue
			}
			if s.closed.Load() {
				return can.Frame{}, transport.ErrClosed
			}
			metrics.IncError(metrics.ErrSerialRead)
			return can.Frame{}, fmt.Errorf("serial read: %w", err)
		}
	}
}

// Close releases the port. Safe to call more than once.
func (s *Source) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.port.Close()
}
