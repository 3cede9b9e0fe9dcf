package serial

import (
	"time"

	"github.com/tarm/serial"
)

// DefaultBaud matches the firmware UART configuration.
const DefaultBaud = 115200

// Port abstracts tarm/serial for testability.
type Port interface {
	Read(p []byte) (int, error)
	Close() error
}

// Open opens a serial device. A zero readTimeout blocks reads until data
// arrives; a positive one makes idle reads return io.EOF, which lets the
// source observe cancellation between reads.
func Open(name string, baud int, readTimeout time.Duration) (Port, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	return serial.OpenPort(cfg)
}
