// Package registry maps system CAN message ids to their display name,
// payload layout and formatter. A registry is built once at startup and is
// read-only afterwards, so lookups need no locking.
package registry

import (
	"errors"
	"fmt"
	"sort"
)

// MaxMessageID is the largest id the 6-bit message field can carry.
const MaxMessageID = 63

// DefaultVersion names the built-in table.
const DefaultVersion = "builtin-1"

// Descriptor describes one message id.
type Descriptor struct {
	ID     uint8
	Name   string
	Layout Layout
	Kind   string

	format Formatter
}

// Format unpacks payload and renders it with the descriptor's formatter.
// Errors wrap ErrPayloadSize or ErrOutOfRange.
func (d Descriptor) Format(payload []byte) (string, error) {
	v, err := d.Layout.Unpack(payload)
	if err != nil {
		return "", fmt.Errorf("%s: %w", d.Name, err)
	}
	s, err := d.format(v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", d.Name, err)
	}
	return s, nil
}

// Registry is an immutable message_id to Descriptor table.
type Registry struct {
	version string
	byID    map[uint8]Descriptor
}

// New validates descs and builds a registry. Ids must be unique and within
// 0..MaxMessageID; each formatter kind must fit its layout.
func New(version string, descs []Descriptor) (*Registry, error) {
	r := &Registry{version: version, byID: make(map[uint8]Descriptor, len(descs))}
	var errs []error
	for _, d := range descs {
		if err := r.add(d); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

func (r *Registry) add(d Descriptor) error {
	if d.ID > MaxMessageID {
		return fmt.Errorf("message %d (%q): id above %d", d.ID, d.Name, MaxMessageID)
	}
	if _, dup := r.byID[d.ID]; dup {
		return fmt.Errorf("message %d (%q): duplicate id", d.ID, d.Name)
	}
	if d.Name == "" {
		return fmt.Errorf("message %d: empty name", d.ID)
	}
	if d.Kind == "" {
		d.Kind = KindDump
	}
	fn, err := lookupKind(d.Kind, d.Layout)
	if err != nil {
		return fmt.Errorf("message %d (%q): %w", d.ID, d.Name, err)
	}
	d.format = fn
	r.byID[d.ID] = d
	return nil
}

// MustNew is New that panics; for static tables.
func MustNew(version string, descs []Descriptor) *Registry {
	r, err := New(version, descs)
	if err != nil {
		panic(err)
	}
	return r
}

// Version identifies the table revision (logged at startup).
func (r *Registry) Version() string { return r.version }

// Contains reports whether id has a descriptor.
func (r *Registry) Contains(id uint8) bool {
	_, ok := r.byID[id]
	return ok
}

// Get returns the descriptor for id.
func (r *Registry) Get(id uint8) (Descriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// Len is the number of descriptors.
func (r *Registry) Len() int { return len(r.byID) }

// All returns the descriptors ordered by id.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, 0, len(r.byID))
	for _, d := range r.byID {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Default returns the built-in system CAN table.
func Default() *Registry { return defaultRegistry }

var defaultRegistry = MustNew(DefaultVersion, defaultTable())

func defaultTable() []Descriptor {
	b := Layout{U8}
	return []Descriptor{
		{ID: 0, Name: "BPS Heartbeat", Layout: b, Kind: KindDump},
		{ID: 1, Name: "Chaos Fault", Layout: Layout{}, Kind: KindDump},
		{ID: 2, Name: "Battery relay (Main)", Layout: b, Kind: KindRelay},
		{ID: 3, Name: "Battery relay (Slave)", Layout: b, Kind: KindRelay},
		{ID: 4, Name: "Motor relay", Layout: b, Kind: KindRelay},
		{ID: 5, Name: "Solar relay (Rear)", Layout: b, Kind: KindRelay},
		{ID: 6, Name: "Solar relay (Front)", Layout: b, Kind: KindRelay},
		{ID: 7, Name: "Power state", Layout: b, Kind: KindPowerState},
		{ID: 8, Name: "Chaos Heartbeat", Layout: Layout{}, Kind: KindDump},
		{ID: 18, Name: "Drive Output", Layout: Layout{I16, I16, I16, I16}, Kind: KindDump},
		{ID: 19, Name: "Cruise Target", Layout: b, Kind: KindDump},
		{ID: 21, Name: "Set Discharge Bitset", Layout: Layout{U64}, Kind: KindDump},
		{ID: 22, Name: "Discharge Bitset", Layout: Layout{U64}, Kind: KindDump},
		{ID: 23, Name: "Lights Sync", Layout: Layout{}, Kind: KindDump},
		{ID: 24, Name: "Lights State", Layout: Layout{U8, U8}, Kind: KindLights},
		{ID: 26, Name: "Charger state", Layout: b, Kind: KindDump},
		{ID: 27, Name: "Charger relay", Layout: b, Kind: KindRelay},
		{ID: 32, Name: "Battery V/T", Layout: Layout{U16, U16, U16}, Kind: KindBatteryVT},
		{ID: 33, Name: "Battery Voltage/Current", Layout: Layout{I32, I32}, Kind: KindBatteryVC},
		{ID: 35, Name: "Motor Bus Measurement", Layout: Layout{I16, I16, I16, I16}, Kind: KindDump},
		{ID: 36, Name: "Motor Velocity", Layout: Layout{I16, I16}, Kind: KindSpeed},
		{ID: 43, Name: "Aux & DC/DC V/C", Layout: Layout{U16, U16, U16, U16}, Kind: KindDump},
	}
}
