//go:build !linux

package socketcan

import (
	"errors"
	"time"

	"github.com/kstaniek/go-can-dump/internal/transport"
)

// ErrUnsupported is returned on platforms without AF_CAN.
var ErrUnsupported = errors.New("socketcan unsupported on this platform")

// OpenSource always fails on non-linux builds.
func OpenSource(iface string, readTimeout time.Duration) (transport.Source, error) {
	return nil, ErrUnsupported
}
