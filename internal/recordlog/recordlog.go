// Package recordlog appends one raw record per received frame to a file for
// offline analysis. Records are never read back by the dumper.
package recordlog

import (
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/kstaniek/go-can-dump/internal/can"
)

// Record is one logged frame, independent of mask or decode outcome.
type Record struct {
	Time    time.Time `cbor:"t"`
	ID      uint32    `cbor:"id"`
	Payload []byte    `cbor:"data"`
	Length  int       `cbor:"len"`
}

// FromFrame builds the record for f received at t.
func FromFrame(t time.Time, f can.Frame) Record {
	p := make([]byte, f.Len)
	copy(p, f.Payload())
	return Record{Time: t, ID: f.ID, Payload: p, Length: int(f.Len)}
}

// Record file formats.
const (
	FormatCSV  = "csv"
	FormatCBOR = "cbor"
)

// FilePrefix and TimeLayout name the log file: system_can_20190714-093015.log
const (
	FilePrefix = "system_can_"
	TimeLayout = "20060102-150405"
)

var ErrUnknownFormat = errors.New("unknown record format")

// Writer appends records. Append flushes before returning so a record is on
// disk once the next frame is read.
type Writer interface {
	Append(Record) error
	Close() error
	Path() string
}

// FileName returns the record file name for a run started at t.
func FileName(format string, t time.Time) string {
	ext := ".log"
	if format == FormatCBOR {
		ext = ".cbor"
	}
	return FilePrefix + t.Format(TimeLayout) + ext
}

// Open creates dir if needed and opens a fresh record file in it.
func Open(dir, format string, start time.Time) (Writer, error) {
	if format != FormatCSV && format != FormatCBOR {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, FileName(format, start))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open record log: %w", err)
	}
	if format == FormatCBOR {
		w, err := NewCBOR(f)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		w.path = path
		return w, nil
	}
	w := NewCSV(f)
	w.path = path
	return w, nil
}

// CSVWriter writes `timestamp,0x<id>,0x<payload>,<length>` rows.
type CSVWriter struct {
	mu   sync.Mutex
	c    io.Closer
	w    *csv.Writer
	path string
}

// NewCSV wraps w. If w is an io.Closer, Close closes it.
func NewCSV(w io.Writer) *CSVWriter {
	cw := &CSVWriter{w: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		cw.c = c
	}
	return cw
}

// FormatCSVRow renders r as CSV fields.
func FormatCSVRow(r Record) []string {
	return []string{
		r.Time.Format(time.RFC3339Nano),
		fmt.Sprintf("0x%02x", r.ID),
		"0x" + hex.EncodeToString(r.Payload),
		strconv.Itoa(r.Length),
	}
}

func (w *CSVWriter) Append(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Write(FormatCSVRow(r)); err != nil {
		return err
	}
	w.w.Flush()
	return w.w.Error()
}

func (w *CSVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.w.Flush()
	err := w.w.Error()
	if w.c != nil {
		if cerr := w.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (w *CSVWriter) Path() string { return w.path }

// CBORWriter writes a CBOR sequence of records (RFC 8742), timestamps as
// RFC 3339 text.
type CBORWriter struct {
	mu   sync.Mutex
	c    io.Closer
	enc  *cbor.Encoder
	path string
}

func NewCBOR(w io.Writer) (*CBORWriter, error) {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor enc mode: %w", err)
	}
	cw := &CBORWriter{enc: em.NewEncoder(w)}
	if c, ok := w.(io.Closer); ok {
		cw.c = c
	}
	return cw, nil
}

func (w *CBORWriter) Append(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(r)
}

func (w *CBORWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.c != nil {
		return w.c.Close()
	}
	return nil
}

func (w *CBORWriter) Path() string { return w.path }
