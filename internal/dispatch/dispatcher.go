// Package dispatch drives the dump loop: it pulls frames from one source,
// renders a console line per unmasked frame and records every frame.
package dispatch

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kstaniek/go-can-dump/internal/can"
	"github.com/kstaniek/go-can-dump/internal/logging"
	"github.com/kstaniek/go-can-dump/internal/metrics"
	"github.com/kstaniek/go-can-dump/internal/recordlog"
	"github.com/kstaniek/go-can-dump/internal/registry"
	"github.com/kstaniek/go-can-dump/internal/transport"
)

// ErrTerminated wraps the cause when the loop stops on a fatal error.
var ErrTerminated = errors.New("dispatch terminated")

// State of the loop.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateTerminated:
		return "TERMINATED"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Recorder appends one record per frame.
type Recorder interface {
	Append(recordlog.Record) error
}

// Publisher receives each rendered line; it must not block.
type Publisher interface {
	Publish(messageID uint8, line string) error
}

// Dispatcher is single-use: Run may be called once.
type Dispatcher struct {
	src     transport.Source
	reg     *registry.Registry
	mask    MaskSet
	console io.Writer
	rec     Recorder
	pub     Publisher
	logger  *slog.Logger
	now     func() time.Time
	state   atomic.Int32
}

type Option func(*Dispatcher)

func WithRegistry(r *registry.Registry) Option { return func(d *Dispatcher) { d.reg = r } }
func WithMask(m MaskSet) Option                { return func(d *Dispatcher) { d.mask = m } }
func WithConsole(w io.Writer) Option           { return func(d *Dispatcher) { d.console = w } }
func WithRecorder(r Recorder) Option           { return func(d *Dispatcher) { d.rec = r } }
func WithPublisher(p Publisher) Option         { return func(d *Dispatcher) { d.pub = p } }
func WithClock(now func() time.Time) Option    { return func(d *Dispatcher) { d.now = now } }
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New builds a dispatcher reading from src. Without options it renders with
// the built-in registry, masks nothing and discards console and records.
func New(src transport.Source, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		src:     src,
		reg:     registry.Default(),
		console: io.Discard,
		logger:  logging.L(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// State reports the current loop state.
func (d *Dispatcher) State() State { return State(d.state.Load()) }

// Ready is true while the loop is running; used for /ready.
func (d *Dispatcher) Ready() bool { return d.State() == StateRunning }

// Run pulls frames until ctx is cancelled (returns nil) or the source or
// record log fails (returns an error wrapping ErrTerminated). Per-frame
// errors are skipped at once, with no retry delay.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("dispatcher already %s", d.State())
	}
	defer d.state.Store(int32(StateTerminated))
	for {
		if ctx.Err() != nil {
			d.logger.Info("dispatch_stopped", "reason", ctx.Err())
			return nil
		}
		f, err := d.src.NextFrame(ctx)
		if err != nil {
			if transport.IsRecoverable(err) {
				attrs := []any{"reason", transport.SkipReason(err), "error", err}
				var fe *transport.FrameError
				if errors.As(err, &fe) {
					attrs = append(attrs, "raw", hex.EncodeToString(fe.Raw))
				}
				d.logger.Debug("frame_skipped", attrs...)
				continue
			}
			if ctx.Err() != nil {
				d.logger.Info("dispatch_stopped", "reason", ctx.Err())
				return nil
			}
			d.logger.Error("dispatch_terminated", "error", err)
			return fmt.Errorf("%w: %w", ErrTerminated, err)
		}
		if err := d.Handle(f); err != nil {
			d.logger.Error("dispatch_terminated", "error", err)
			return fmt.Errorf("%w: %w", ErrTerminated, err)
		}
	}
}

// Handle renders and records one frame. Only a record write failure is
// returned; decode failures are logged and counted.
func (d *Dispatcher) Handle(f can.Frame) error {
	at := d.now()
	line, outcome, err := Render(d.reg, d.mask, f)
	id := can.DecodeID(f.ID)
	switch outcome {
	case Masked:
		metrics.IncMasked()
	case Skipped:
		reason := skipReason(err)
		metrics.IncSkipped(reason)
		d.logger.Warn("payload_decode_failed",
			"id", fmt.Sprintf("0x%x", f.ID), "message_id", id.MessageID, "reason", reason, "error", err)
	case Unknown:
		metrics.IncUnknown()
	}
	if outcome == Rendered || outcome == Unknown {
		d.emit(id.MessageID, line)
	}
	if d.rec != nil {
		if err := d.rec.Append(recordlog.FromFrame(at, f)); err != nil {
			metrics.IncError(metrics.ErrRecordWrite)
			return fmt.Errorf("record log: %w", err)
		}
		metrics.IncRecords()
	}
	return nil
}

func (d *Dispatcher) emit(messageID uint8, line string) {
	if _, err := io.WriteString(d.console, line+"\n"); err != nil {
		metrics.IncError(metrics.ErrConsoleWrite)
		d.logger.Warn("console_write_failed", "error", err)
	} else {
		metrics.IncRendered()
	}
	if d.pub != nil {
		if err := d.pub.Publish(messageID, line); err != nil {
			d.logger.Debug("publish_dropped", "message_id", messageID, "error", err)
		}
	}
}
