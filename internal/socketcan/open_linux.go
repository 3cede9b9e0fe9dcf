//go:build linux

package socketcan

import (
	"time"

	"github.com/kstaniek/go-can-dump/internal/transport"
)

// OpenSource binds iface and returns a ready Source.
func OpenSource(iface string, readTimeout time.Duration) (transport.Source, error) {
	d, err := Open(iface, readTimeout)
	if err != nil {
		return nil, err
	}
	return NewSource(d), nil
}
