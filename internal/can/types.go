package can

import "fmt"

// SocketCAN flag bits for can_id (same values as <linux/can.h>)
const (
	CAN_EFF_FLAG = 0x80000000
	CAN_RTR_FLAG = 0x40000000
	CAN_ERR_FLAG = 0x20000000
	CAN_SFF_MASK = 0x7FF
	CAN_EFF_MASK = 0x1FFFFFFF
)

// MaxLen is the classic CAN payload limit.
const MaxLen = 8

// Frame is one received CAN frame. ID is already masked to its effective
// bit width by the source that produced it; only the first Len bytes of
// Data are valid.
type Frame struct {
	ID   uint32
	Len  uint8
	Data [MaxLen]byte
}

// NewFrame builds a frame from a payload slice, truncating anything past MaxLen.
func NewFrame(id uint32, payload []byte) Frame {
	var f Frame
	f.ID = id
	n := copy(f.Data[:], payload)
	f.Len = uint8(n)
	return f
}

// Payload returns the valid payload bytes.
func (f Frame) Payload() []byte { return f.Data[:f.Len] }

func (f Frame) String() string {
	return fmt.Sprintf("0x%x#%x", f.ID, f.Payload())
}
