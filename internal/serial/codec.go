package serial

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/kstaniek/go-can-dump/internal/can"
	"github.com/kstaniek/go-can-dump/internal/cobs"
	"github.com/kstaniek/go-can-dump/internal/metrics"
	"github.com/kstaniek/go-can-dump/internal/transport"
)

// Decoded packet body (little-endian):
//
//	[0:4)  header  bits [28:32) = DLC, lower bits reserved (EXT/RTR flags)
//	[4:8)  identifier, masked to 11 bits
//	[8:16) payload, first DLC bytes valid
const (
	BodyLen       = 16
	payloadOffset = 8
	dlcShift      = 28
	dlcMask       = 0xF

	// maxPendingLen bounds how much undelimited input is kept before it is
	// discarded as noise. A valid encoded body is at most 17 bytes.
	maxPendingLen = 4 * (BodyLen + 1)
)

// ErrBodyLength is returned when a COBS packet decodes to anything but BodyLen bytes.
var ErrBodyLength = errors.New("serial: decoded body length invalid")

// ErrNoDelimiter is returned when pending input grows past any valid packet size.
var ErrNoDelimiter = errors.New("serial: no packet delimiter")

// Codec converts between CAN frames and COBS framed serial packets.
// Stateless and safe for concurrent use.
type Codec struct{}

// DecodeBody parses a decoded 16-byte body.
func (Codec) DecodeBody(body []byte) (can.Frame, error) {
	if len(body) != BodyLen {
		return can.Frame{}, fmt.Errorf("%w: got %d, want %d", ErrBodyLength, len(body), BodyLen)
	}
	header := binary.LittleEndian.Uint32(body[0:4])
	dlc := int(header>>dlcShift) & dlcMask
	if dlc > can.MaxLen {
		dlc = can.MaxLen
	}
	id := binary.LittleEndian.Uint32(body[4:8]) & can.CAN_SFF_MASK
	return can.NewFrame(id, body[payloadOffset:payloadOffset+dlc]), nil
}

// EncodeBody builds the 16-byte body for f.
func (Codec) EncodeBody(f can.Frame) []byte {
	body := make([]byte, BodyLen)
	binary.LittleEndian.PutUint32(body[0:4], uint32(f.Len&dlcMask)<<dlcShift)
	binary.LittleEndian.PutUint32(body[4:8], f.ID&can.CAN_SFF_MASK)
	copy(body[payloadOffset:], f.Payload())
	return body
}

// EncodePacket returns the COBS encoded body of f followed by the delimiter.
func (c Codec) EncodePacket(f can.Frame) []byte {
	return cobs.AppendFrame(nil, c.EncodeBody(f))
}

// DecodePacket decodes one delimited packet (delimiter already stripped).
// Every failure is recoverable: the returned error wraps transport.ErrRecoverable.
func (c Codec) DecodePacket(pkt []byte) (can.Frame, error) {
	body, err := cobs.Decode(pkt)
	if err != nil {
		metrics.IncSkipped(metrics.SkipCOBS)
		return can.Frame{}, transport.Skip(metrics.SkipCOBS, pkt, err)
	}
	f, err := c.DecodeBody(body)
	if err != nil {
		metrics.IncSkipped(metrics.SkipLength)
		return can.Frame{}, transport.Skip(metrics.SkipLength, body, err)
	}
	return f, nil
}

// NextPacket removes the next delimited packet from in. It returns ok=false
// when no complete packet is buffered. When the pending bytes exceed any
// valid packet size they are discarded and a recoverable error is returned.
func NextPacket(in *bytes.Buffer) (pkt []byte, ok bool, err error) {
	data := in.Bytes()
	i := bytes.IndexByte(data, cobs.Delimiter)
	if i < 0 {
		if len(data) > maxPendingLen {
			junk := transport.Skip(metrics.SkipLength, data, ErrNoDelimiter)
			in.Reset()
			metrics.IncSkipped(metrics.SkipLength)
			return nil, false, junk
		}
		return nil, false, nil
	}
	pkt = make([]byte, i)
	copy(pkt, data[:i])
	in.Next(i + 1)
	return pkt, true, nil
}
