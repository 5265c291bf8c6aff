//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package transport

import (
	"syscall"

	"github.com/pkg/errors"
)

const ReusePortSupported = false

func reusePortControl() (func(network, address string, c syscall.RawConn) error, error) {
	return nil, errors.New("reuse-port is not supported on this platform")
}
