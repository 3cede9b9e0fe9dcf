//go:build linux

package socketcan

import (
	"fmt"

	brutella "github.com/brutella/can"

	"github.com/kstaniek/go-can-dump/internal/can"
)

// RecordLen is sizeof(struct can_frame), the classic CAN MTU.
const RecordLen = 16

// DecodeRecord parses one struct can_frame (linux/can.h):
//
//	can_id  u32   [0:4]  (includes EFF/RTR/ERR flags)
//	can_dlc u8    [4]
//	pad     3B    [5:8]
//	data    [8]   [8:16]
//
// The kernel hands fields over in host byte order; this assumes a
// little-endian host. The identifier is masked to 29 bits for extended
// frames and to 11 bits otherwise, and the payload is cut to can_dlc.
func DecodeRecord(b []byte) (can.Frame, error) {
	if len(b) != RecordLen {
		return can.Frame{}, fmt.Errorf("%w: %d bytes", ErrShortRecord, len(b))
	}
	var raw brutella.Frame
	if err := brutella.Unmarshal(b, &raw); err != nil {
		return can.Frame{}, fmt.Errorf("unmarshal can_frame: %w", err)
	}
	id := raw.ID & can.CAN_SFF_MASK
	if raw.ID&can.CAN_EFF_FLAG != 0 {
		id = raw.ID & can.CAN_EFF_MASK
	}
	n := int(raw.Length)
	if n > can.MaxLen {
		n = can.MaxLen
	}
	return can.NewFrame(id, raw.Data[:n]), nil
}

// EncodeRecord builds the struct can_frame bytes for f; extended marks
// the id with the EFF flag.
func EncodeRecord(f can.Frame, extended bool) ([]byte, error) {
	raw := brutella.Frame{ID: f.ID, Length: f.Len}
	if extended {
		raw.ID |= can.CAN_EFF_FLAG
	}
	copy(raw.Data[:], f.Payload())
	return brutella.Marshal(raw)
}
