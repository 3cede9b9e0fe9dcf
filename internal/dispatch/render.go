package dispatch

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/kstaniek/go-can-dump/internal/can"
	"github.com/kstaniek/go-can-dump/internal/metrics"
	"github.com/kstaniek/go-can-dump/internal/registry"
)

// Outcome classifies how a frame was rendered.
type Outcome int

const (
	// Rendered: a registry descriptor produced the line.
	Rendered Outcome = iota
	// Unknown: no descriptor, generic hex line.
	Unknown
	// Masked: no line by configuration.
	Masked
	// Skipped: payload could not be decoded, no line.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Rendered:
		return "rendered"
	case Unknown:
		return "unknown"
	case Masked:
		return "masked"
	case Skipped:
		return "skipped"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Render produces the console line for f. Only Rendered and Unknown return a
// line; Skipped returns the decode error, which is always per frame.
//
//	ACK (known):  "<name> ACK from <source_id>"
//	DATA (known): "<name>: <formatted payload>"
//	unknown:      "<message_id> from <source_id> (<ACK|DATA>): 0x<hex payload>"
func Render(reg *registry.Registry, mask MaskSet, f can.Frame) (string, Outcome, error) {
	id := can.DecodeID(f.ID)
	if mask.Contains(id.MessageID) {
		return "", Masked, nil
	}
	d, ok := reg.Get(id.MessageID)
	if !ok {
		return fmt.Sprintf("%d from %d (%s): 0x%s",
			id.MessageID, id.SourceID, id.Type, hex.EncodeToString(f.Payload())), Unknown, nil
	}
	if id.IsAck() {
		return fmt.Sprintf("%s ACK from %d", d.Name, id.SourceID), Rendered, nil
	}
	s, err := d.Format(f.Payload())
	if err != nil {
		return "", Skipped, err
	}
	return d.Name + ": " + s, Rendered, nil
}

// skipReason maps a decode error to its frames_skipped_total label.
func skipReason(err error) string {
	if errors.Is(err, registry.ErrOutOfRange) {
		return metrics.SkipRange
	}
	return metrics.SkipUnpack
}
