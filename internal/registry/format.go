package registry

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Formatter renders the unpacked fields of one payload.
type Formatter func(v []Value) (string, error)

// Formatter kinds usable from the built-in table and registry files.
const (
	KindDump         = "dump"
	KindRelay        = "relay"
	KindPowerState   = "power_state"
	KindLights       = "lights"
	KindBatteryVT    = "battery_vt"
	KindBatteryVC    = "battery_vc"
	KindBPSHeartbeat = "bps_heartbeat"
	KindSpeed        = "speed"
	KindAuxDCDC      = "aux_dcdc"
)

type kind struct {
	fields int // required field count, -1 for any
	fn     Formatter
}

var kinds = map[string]kind{
	KindDump:         {-1, formatDump},
	KindRelay:        {1, formatRelay},
	KindPowerState:   {1, formatPowerState},
	KindLights:       {2, formatLights},
	KindBatteryVT:    {3, formatBatteryVT},
	KindBatteryVC:    {2, formatBatteryVC},
	KindBPSHeartbeat: {1, formatBPSHeartbeat},
	KindSpeed:        {2, formatSpeed},
	KindAuxDCDC:      {4, formatAuxDCDC},
}

// Kinds lists the known formatter kinds in name order.
func Kinds() []string {
	out := make([]string, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func lookupKind(name string, l Layout) (Formatter, error) {
	k, ok := kinds[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter %q", name)
	}
	if k.fields >= 0 && len(l) != k.fields {
		return nil, fmt.Errorf("%w: %s takes %d fields, layout %q has %d", ErrLayoutMismatch, name, k.fields, l.String(), len(l))
	}
	return k.fn, nil
}

// Fixed lookup tables.
var (
	PowerStates = [...]string{"idle", "charge", "drive"}
	LightNames  = [...]string{
		"High beams", "Low beams", "DRL", "Brakes",
		"Left Turn", "Right Turn", "Hazards", "BPS Strobe",
	}
	BPSFaults = [...]string{
		"Killswitch", "AFE Cell", "AFE Temp", "AFE FSM", "Current", "ACK Timeout",
	}
)

// Thermistor divider and Beta model constants.
const (
	thermSupply = 50000.0
	thermFixed  = 10000.0
	thermBeta   = 3380.0
	thermR0     = 10000.0
	thermT0     = 298.15
	kelvin      = 273.15

	// ThermSaturated is reported when the raw reading is zero.
	ThermSaturated = 100000.0
)

// Speed conversion: cm/s to mph.
const cmsToMPH = 0.0224

func formatDump(v []Value) (string, error) {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = x.String()
	}
	return strings.Join(parts, " "), nil
}

func formatRelay(v []Value) (string, error) {
	if v[0].Int() != 0 {
		return "close", nil
	}
	return "open", nil
}

func formatPowerState(v []Value) (string, error) {
	i := v[0].Int()
	if i < 0 || i >= int64(len(PowerStates)) {
		return "", fmt.Errorf("%w: power state %d", ErrOutOfRange, i)
	}
	return PowerStates[i], nil
}

func formatLights(v []Value) (string, error) {
	id := v[0].Int()
	if id < 0 || id >= int64(len(LightNames)) {
		return "", fmt.Errorf("%w: light id %d", ErrOutOfRange, id)
	}
	state := "off"
	if v[1].Int() != 0 {
		state = "on"
	}
	return LightNames[id] + ": " + state, nil
}

// ThermistorCelsius converts a raw divider reading to degrees Celsius.
func ThermistorCelsius(raw float64) (float64, error) {
	if raw == 0 {
		return ThermSaturated, nil
	}
	r := (thermSupply - raw) * thermFixed / raw
	if r <= 0 {
		return 0, fmt.Errorf("%w: thermistor reading %v at or above supply", ErrOutOfRange, raw)
	}
	rInf := thermR0 * math.Exp(-thermBeta/thermT0)
	return thermBeta/math.Log(r/rInf) - kelvin, nil
}

func formatBatteryVT(v []Value) (string, error) {
	t, err := ThermistorCelsius(v[2].Float())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("C%d: %.1fmV aux %.1fmV (%.1fC)",
		v[0].Int(), v[1].Float()/10, v[2].Float()/10, t), nil
}

func formatBatteryVC(v []Value) (string, error) {
	return fmt.Sprintf("%.4fV %.4fA", v[0].Float()/10000, v[1].Float()/1000000), nil
}

func formatBPSHeartbeat(v []Value) (string, error) {
	bits := v[0].Int()
	if bits == 0 {
		return "Ok", nil
	}
	var names []string
	for i, n := range BPSFaults {
		if bits&(1<<i) != 0 {
			names = append(names, n)
		}
	}
	return fmt.Sprintf("%d = %s", bits, strings.Join(names, ", ")), nil
}

func formatSpeed(v []Value) (string, error) {
	avg := (v[0].Float() + v[1].Float()) / 2
	return fmt.Sprintf("%.2f MPH", avg*cmsToMPH), nil
}

// formatAuxDCDC takes millivolts and microamps.
func formatAuxDCDC(v []Value) (string, error) {
	return fmt.Sprintf("Aux %3fV %3fmA DC-DC %3fV %3fmA",
		v[0].Float()/1000, v[1].Float()/1000000, v[2].Float()/1000, v[3].Float()/1000000), nil
}
