package can

// System CAN identifier layout (11-bit logical id):
//
//	bits [0:4)  source id
//	bit  [4:5)  message type (0 = DATA, 1 = ACK)
//	bits [5:11) message id
const (
	sourceIDMask  = 0xF
	msgTypeShift  = 4
	msgTypeMask   = 0x1
	messageIDBits = 5
	messageIDMask = 0x3F
)

// MessageType distinguishes data frames from acknowledgements.
type MessageType uint8

const (
	TypeData MessageType = 0
	TypeAck  MessageType = 1
)

func (t MessageType) String() string {
	if t == TypeAck {
		return "ACK"
	}
	return "DATA"
}

// ID is a decomposed system CAN identifier.
type ID struct {
	SourceID  uint8
	Type      MessageType
	MessageID uint8
}

// DecodeID splits raw into its bit fields. Bits above the 11-bit space are
// ignored, so every input has a decomposition.
func DecodeID(raw uint32) ID {
	return ID{
		SourceID:  uint8(raw & sourceIDMask),
		Type:      MessageType((raw >> msgTypeShift) & msgTypeMask),
		MessageID: uint8((raw >> messageIDBits) & messageIDMask),
	}
}

// Raw recomposes the 11-bit identifier.
func (id ID) Raw() uint32 {
	return uint32(id.SourceID&sourceIDMask) |
		uint32(id.Type&msgTypeMask)<<msgTypeShift |
		uint32(id.MessageID&messageIDMask)<<messageIDBits
}

// IsAck reports whether the frame is an acknowledgement.
func (id ID) IsAck() bool { return id.Type == TypeAck }
