package transport

import (
	"context"
	"errors"
	"fmt"

	"github.com/kstaniek/go-can-dump/internal/can"
)

// Source produces CAN frames from one transport. NextFrame blocks until a
// frame is available. Errors that wrap ErrRecoverable cost one skipped frame;
// any other error leaves the source unusable. Sources cannot be rewound: to
// restart, Close and construct a new one.
type Source interface {
	NextFrame(ctx context.Context) (can.Frame, error)
	Close() error
}

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	// ErrRecoverable marks a per-frame failure; the stream is still usable.
	ErrRecoverable = errors.New("recoverable frame error")
	// ErrClosed is returned by a source used after Close.
	ErrClosed = errors.New("source closed")
)

// FrameError describes a dropped frame. It matches ErrRecoverable and its cause.
type FrameError struct {
	Op  string // e.g. "cobs", "length"
	Raw []byte // bytes that could not be turned into a frame
	Err error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%s: %v (%d raw bytes)", e.Op, e.Err, len(e.Raw))
}

func (e *FrameError) Unwrap() []error { return []error{ErrRecoverable, e.Err} }

// Skip wraps err as a recoverable frame error.
func Skip(op string, raw []byte, err error) error {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return &FrameError{Op: op, Raw: cp, Err: err}
}

// IsRecoverable reports whether err only invalidates the current frame.
func IsRecoverable(err error) bool { return errors.Is(err, ErrRecoverable) }

// SkipReason returns the Op of a FrameError, or "" if err is not one.
func SkipReason(err error) string {
	var fe *FrameError
	if errors.As(err, &fe) {
		return fe.Op
	}
	return ""
}
