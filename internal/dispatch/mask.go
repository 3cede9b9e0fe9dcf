package dispatch

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kstaniek/go-can-dump/internal/registry"
)

// MaskSet holds message ids excluded from console rendering. Masked frames
// are still recorded. Built at startup and never changed afterwards.
type MaskSet map[uint8]struct{}

// NewMaskSet validates ids (0..63) and builds the set.
func NewMaskSet(ids ...int) (MaskSet, error) {
	m := make(MaskSet, len(ids))
	for _, id := range ids {
		if id < 0 || id > registry.MaxMessageID {
			return nil, fmt.Errorf("mask id %d outside 0..%d", id, registry.MaxMessageID)
		}
		m[uint8(id)] = struct{}{}
	}
	return m, nil
}

func (m MaskSet) Contains(id uint8) bool {
	_, ok := m[id]
	return ok
}

// IDs returns the masked ids in ascending order.
func (m MaskSet) IDs() []uint8 {
	out := make([]uint8, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String formats the set as "[3, 32]" for the startup banner.
func (m MaskSet) String() string {
	ids := m.IDs()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(int(id))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
