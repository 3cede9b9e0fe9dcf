// Package cobs implements Consistent Overhead Byte Stuffing. Encoded packets
// contain no zero bytes, so a single 0x00 can delimit them on a byte stream.
package cobs

import (
	"errors"
	"fmt"
)

// Delimiter terminates every encoded packet on the wire.
const Delimiter = 0x00

var (
	// ErrZeroByte is returned when an encoded packet contains a zero byte
	// (including a zero overhead/code byte).
	ErrZeroByte = errors.New("cobs: zero byte in encoded input")
	// ErrOverrun is returned when a code byte points past the end of input.
	ErrOverrun = errors.New("cobs: code byte overruns input")
)

// MaxEncodedLen is the worst-case encoded size of n input bytes (delimiter excluded).
func MaxEncodedLen(n int) int { return n + n/254 + 1 }

// Encode stuffs src. The result has no trailing delimiter.
func Encode(src []byte) []byte {
	dst := make([]byte, 1, MaxEncodedLen(len(src)))
	codeIdx := 0
	code := byte(1)
	for _, b := range src {
		if b == 0 {
			dst[codeIdx] = code
			codeIdx = len(dst)
			dst = append(dst, 0)
			code = 1
			continue
		}
		dst = append(dst, b)
		code++
		if code == 0xFF {
			dst[codeIdx] = code
			codeIdx = len(dst)
			dst = append(dst, 0)
			code = 1
		}
	}
	dst[codeIdx] = code
	return dst
}

// Decode reverses Encode. src must not include the trailing delimiter.
// An empty src decodes to an empty packet.
func Decode(src []byte) ([]byte, error) {
	dst := make([]byte, 0, len(src))
	for i := 0; i < len(src); {
		code := int(src[i])
		if code == 0 {
			return nil, fmt.Errorf("%w (offset %d)", ErrZeroByte, i)
		}
		end := i + code
		if end > len(src) {
			return nil, fmt.Errorf("%w (code %d at offset %d, %d bytes left)", ErrOverrun, code, i, len(src)-i-1)
		}
		for j := i + 1; j < end; j++ {
			if src[j] == 0 {
				return nil, fmt.Errorf("%w (offset %d)", ErrZeroByte, j)
			}
		}
		dst = append(dst, src[i+1:end]...)
		i = end
		if i < len(src) && code < 0xFF {
			dst = append(dst, 0)
		}
	}
	return dst, nil
}

// AppendFrame encodes src and appends it plus the delimiter to dst.
func AppendFrame(dst, src []byte) []byte {
	dst = append(dst, Encode(src)...)
	return append(dst, Delimiter)
}
