package recordlog

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kstaniek/go-can-dump/internal/can"
)

var t0 = time.Date(2019, 7, 14, 9, 30, 15, 123456789, time.UTC)

func TestCSVRow(t *testing.T) {
	r := FromFrame(t0, can.NewFrame(0x02, []byte{0x01}))
	assert.Equal(t, []string{"2019-07-14T09:30:15.123456789Z", "0x02", "0x01", "1"}, FormatCSVRow(r))

	r = FromFrame(t0, can.NewFrame(0x7E1, nil))
	assert.Equal(t, []string{"2019-07-14T09:30:15.123456789Z", "0x7e1", "0x", "0"}, FormatCSVRow(r))
}

func TestFromFrameCopiesPayload(t *testing.T) {
	f := can.NewFrame(0x10, []byte{1, 2, 3})
	r := FromFrame(t0, f)
	f.Data[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, r.Payload)
	assert.Equal(t, 3, r.Length)
}

func TestOpenCSVAppendsRows(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	w, err := Open(dir, FormatCSV, t0)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "system_can_20190714-093015.log"), w.Path())

	r := FromFrame(t0, can.NewFrame(0x402, []byte{0xAA, 0xBB}))
	require.NoError(t, w.Append(r))
	require.NoError(t, w.Append(r))
	require.NoError(t, w.Close())

	f, err := os.Open(w.Path())
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, rows[0], rows[1])
	assert.Equal(t, "0xaabb", rows[0][2])
}

func TestOpenCBORSequence(t *testing.T) {
	w, err := Open(t.TempDir(), FormatCBOR, t0)
	require.NoError(t, err)
	assert.Equal(t, ".cbor", filepath.Ext(w.Path()))

	in := []Record{
		FromFrame(t0, can.NewFrame(0x02, []byte{1})),
		FromFrame(t0.Add(time.Millisecond), can.NewFrame(0x7FF, nil)),
	}
	for _, r := range in {
		require.NoError(t, w.Append(r))
	}
	require.NoError(t, w.Close())

	b, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	dec := cbor.NewDecoder(bytes.NewReader(b))
	for _, want := range in {
		var got Record
		require.NoError(t, dec.Decode(&got))
		assert.True(t, want.Time.Equal(got.Time))
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Length, got.Length)
		assert.Equal(t, len(want.Payload), len(got.Payload))
	}
	var extra Record
	assert.ErrorIs(t, dec.Decode(&extra), io.EOF)
}

func TestOpenRejectsUnknownFormat(t *testing.T) {
	_, err := Open(t.TempDir(), "xml", t0)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, os.ErrClosed }

func TestCSVAppendReportsWriteFailure(t *testing.T) {
	w := NewCSV(failWriter{})
	err := w.Append(FromFrame(t0, can.NewFrame(1, nil)))
	assert.ErrorIs(t, err, os.ErrClosed)
}
