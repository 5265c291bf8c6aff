//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package transport

import (
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ReusePortSupported reports whether ListenOptions.ReusePort works here.
const ReusePortSupported = true

// reusePortControl sets SO_REUSEADDR and SO_REUSEPORT before bind.
func reusePortControl() (func(network, address string, c syscall.RawConn) error, error) {
	return func(network, address string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); sockErr != nil {
				sockErr = errors.Wrap(sockErr, "set SO_REUSEADDR")
				return
			}
			if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); sockErr != nil {
				sockErr = errors.Wrap(sockErr, "set SO_REUSEPORT")
			}
		})
		if err != nil {
			return errors.Wrap(err, "raw socket control")
		}
		return sockErr
	}, nil
}
