package registry

import "errors"

// Decode failures are per frame: the dispatcher skips rendering and carries on.
var (
	// ErrPayloadSize is returned when a payload does not match its layout width.
	ErrPayloadSize = errors.New("payload size does not match layout")
	// ErrOutOfRange is returned when a decoded field has no valid rendering
	// (enum index past its table, thermistor reading at or above supply).
	ErrOutOfRange = errors.New("field value out of range")
	// ErrLayoutMismatch is returned when a formatter gets the wrong number of fields.
	ErrLayoutMismatch = errors.New("formatter does not fit layout")
)
