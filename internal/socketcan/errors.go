package socketcan

import "errors"

var (
	// ErrShortRecord is returned when a receive does not yield exactly one struct can_frame.
	ErrShortRecord = errors.New("socketcan: malformed can_frame record")
	// ErrReadTimeout is returned by an idle read when a receive timeout is set.
	ErrReadTimeout = errors.New("socketcan: read timeout")
)
