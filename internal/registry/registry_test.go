package registry

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u16s(vals ...uint16) []byte {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(b[2*i:], v)
	}
	return b
}

func i32s(vals ...int32) []byte {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[4*i:], uint32(v))
	}
	return b
}

func format(t *testing.T, id uint8, payload []byte) (string, error) {
	t.Helper()
	d, ok := Default().Get(id)
	require.True(t, ok, "message %d missing from default table", id)
	return d.Format(payload)
}

func TestDefaultTableFormats(t *testing.T) {
	tests := []struct {
		name    string
		id      uint8
		payload []byte
		want    string
	}{
		{"heartbeat dump", 0, []byte{1}, "1"},
		{"relay open", 2, []byte{0}, "open"},
		{"relay close", 27, []byte{3}, "close"},
		{"power drive", 7, []byte{2}, "drive"},
		{"lights", 24, []byte{6, 1}, "Hazards: on"},
		{"lights off", 24, []byte{0, 0}, "High beams: off"},
		{"battery vc", 33, i32s(1234567, -2500000), "123.4567V -2.5000A"},
		{"battery vt 25C", 32, u16s(4, 36000, 25000), "C4: 3600.0mV aux 2500.0mV (25.0C)"},
		{"battery vt saturated", 32, u16s(1, 3000, 0), "C1: 300.0mV aux 0.0mV (100000.0C)"},
		{"drive output signed", 18, u16s(0xFFFF, 2, 3, 0x8000), "-1 2 3 -32768"},
		{"discharge bitset", 22, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, "18446744073709551615"},
		{"motor velocity", 36, u16s(1000, 1000), "22.40 MPH"},
		{"empty layout any payload", 1, []byte{9, 9, 9}, ""},
		{"empty layout no payload", 8, nil, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := format(t, tc.id, tc.payload)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormatRecoverableFailures(t *testing.T) {
	tests := []struct {
		name    string
		id      uint8
		payload []byte
		want    error
	}{
		{"short payload", 32, []byte{1, 0, 2}, ErrPayloadSize},
		{"long payload", 2, []byte{1, 2}, ErrPayloadSize},
		{"empty for byte layout", 0, nil, ErrPayloadSize},
		{"power state past enum", 7, []byte{3}, ErrOutOfRange},
		{"light id past table", 24, []byte{8, 1}, ErrOutOfRange},
		{"thermistor at supply", 32, u16s(1, 1, 50000), ErrOutOfRange},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := format(t, tc.id, tc.payload)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestEveryShortPayloadIsRecoverable(t *testing.T) {
	for _, d := range Default().All() {
		for n := 0; n < d.Layout.Size(); n++ {
			_, err := d.Format(make([]byte, n))
			assert.ErrorIs(t, err, ErrPayloadSize, "message %d with %d bytes", d.ID, n)
		}
	}
}

func TestBPSHeartbeatKind(t *testing.T) {
	fn, err := lookupKind(KindBPSHeartbeat, Layout{U8})
	require.NoError(t, err)
	s, _ := fn([]Value{{Type: U8, u: 0}})
	assert.Equal(t, "Ok", s)
	s, _ = fn([]Value{{Type: U8, u: 0x05}})
	assert.Equal(t, "5 = Killswitch, AFE Temp", s)
}

func TestAuxDCDCKind(t *testing.T) {
	fn, err := lookupKind(KindAuxDCDC, Layout{U16, U16, U16, U16})
	require.NoError(t, err)
	v, err := Layout{U16, U16, U16, U16}.Unpack(u16s(12000, 3000, 5000, 40000))
	require.NoError(t, err)
	s, _ := fn(v)
	assert.Equal(t, "Aux 12.000000V 0.003000mA DC-DC 5.000000V 0.040000mA", s)
}

func TestThermistorCelsius(t *testing.T) {
	c, err := ThermistorCelsius(25000)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, c, 1e-9)

	c, err = ThermistorCelsius(0)
	require.NoError(t, err)
	assert.Equal(t, ThermSaturated, c)

	_, err = ThermistorCelsius(60000)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestParseLayout(t *testing.T) {
	tests := map[string]Layout{
		"":             {},
		"<HHH":         {U16, U16, U16},
		"hh":           {I16, I16},
		"<Qd":          {U64, F64},
		"u16 u16, i32": {U16, U16, I32},
		"U8":           {U8},
		"f32":          {F32},
		"<bBiIqQf":     {I8, U8, I32, U32, I64, U64, F32},
		"<Z":           nil,
		"u12":          nil,
	}
	for in, want := range tests {
		got, err := ParseLayout(in)
		if want == nil {
			assert.Error(t, err, "ParseLayout(%q)", in)
			continue
		}
		require.NoError(t, err, "ParseLayout(%q)", in)
		assert.Equal(t, want, got, "ParseLayout(%q)", in)
	}
	assert.Equal(t, "<HHH", Layout{U16, U16, U16}.String())
	assert.Equal(t, 6, Layout{U16, U16, U16}.Size())
}

func TestValueString(t *testing.T) {
	v, err := Layout{F32, F64, F64}.Unpack([]byte{
		0, 0, 0x80, 0x3F, // 1.0f
		0, 0, 0, 0, 0, 0, 0xF8, 0x3F, // 1.5
		0, 0, 0, 0, 0, 0, 0xF0, 0xBF, // -1.0
	})
	require.NoError(t, err)
	assert.Equal(t, "1.0", v[0].String())
	assert.Equal(t, "1.5", v[1].String())
	assert.Equal(t, "-1.0", v[2].String())

	for in, want := range map[float64]string{
		1234567:  "1234567.0",
		0.25:     "0.25",
		0:        "0.0",
		1e15:     "1000000000000000.0",
		1e16:     "1e+16",
		0.00001:  "1e-05",
		-2.5e-05: "-2.5e-05",
	} {
		assert.Equal(t, want, Value{Type: F64, f: in}.String(), "%v", in)
	}
	f32, err := Layout{F32}.Unpack(binary.LittleEndian.AppendUint32(nil, math.Float32bits(1234567)))
	require.NoError(t, err)
	assert.Equal(t, "1234567.0", f32[0].String())
}

func TestNewRejectsBadTables(t *testing.T) {
	_, err := New("x", []Descriptor{
		{ID: 1, Name: "a", Layout: Layout{U8}},
		{ID: 1, Name: "b", Layout: Layout{U8}},
	})
	assert.ErrorContains(t, err, "duplicate")

	_, err = New("x", []Descriptor{{ID: 64, Name: "big", Layout: Layout{U8}}})
	assert.ErrorContains(t, err, "id above")

	_, err = New("x", []Descriptor{{ID: 2, Name: "relay", Layout: Layout{U8, U8}, Kind: KindRelay}})
	assert.ErrorIs(t, err, ErrLayoutMismatch)

	_, err = New("x", []Descriptor{{ID: 2, Name: "relay", Layout: Layout{U8}, Kind: "nope"}})
	assert.ErrorContains(t, err, "unknown formatter")
}

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	assert.Equal(t, DefaultVersion, r.Version())
	assert.Equal(t, 22, r.Len())
	assert.True(t, r.Contains(32))
	assert.False(t, r.Contains(63))
	all := r.All()
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadTOML(t *testing.T) {
	p := writeFile(t, "reg.toml", `
version = "variant-b"
base = "default"

[[message]]
id = 33
name = "Battery Voltage/Current"
layout = "<ii"
format = "battery_vc"

[[message]]
id = 0
name = "BPS Heartbeat"
layout = "u8"
format = "bps_heartbeat"

[[message]]
id = 43
name = "Aux & DC/DC V/C"
layout = "<HHHH"
format = "aux_dcdc"
`)
	r, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "variant-b", r.Version())
	assert.Equal(t, Default().Len(), r.Len())

	d, ok := r.Get(0)
	require.True(t, ok)
	s, err := d.Format([]byte{1})
	require.NoError(t, err)
	assert.Equal(t, "1 = Killswitch", s)
}

func TestLoadYAMLWithoutBase(t *testing.T) {
	p := writeFile(t, "reg.yaml", `
version: "minimal"
messages:
  - id: 2
    name: Battery relay (Main)
    layout: "<B"
    format: relay
  - id: 5
    name: Raw
    layout: ""
`)
	r, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
	d, _ := r.Get(5)
	assert.Equal(t, KindDump, d.Kind)
}

func TestLoadErrors(t *testing.T) {
	tests := map[string]string{
		"noversion.yaml": "messages: []\n",
		"range.yaml":     "version: v\nmessages:\n  - {id: 64, name: x, layout: B}\n",
		"dup.toml":       "version = \"v\"\n[[message]]\nid = 1\nname = \"a\"\n[[message]]\nid = 1\nname = \"b\"\n",
		"layout.toml":    "version = \"v\"\n[[message]]\nid = 1\nname = \"a\"\nlayout = \"<Z\"\n",
		"base.toml":      "version = \"v\"\nbase = \"other\"\n",
		"unknown.yaml":   "version: v\nextra: 1\n",
		"reg.json":       "{}",
	}
	for name, body := range tests {
		_, err := Load(writeFile(t, name, body))
		assert.Error(t, err, name)
	}
}

func BenchmarkFormatBatteryVT(b *testing.B) {
	d, _ := Default().Get(32)
	payload := u16s(3, 36000, 25000)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := d.Format(payload); err != nil {
			b.Fatal(err)
		}
	}
}
