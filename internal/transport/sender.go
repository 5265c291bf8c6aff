// Package transport moves panel messages over UDP.
//
// Sender is the panel's only socket: fire-and-forget, nothing is ever read back.
// Receiver is a debug sink that stands in for the mixer backend.
package transport

import (
	"context"
	"net"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Sender writes single datagrams to a fixed destination.
//
// The socket is deliberately left unconnected. On a connected UDP socket the kernel
// reports ICMP port-unreachable as ECONNREFUSED on the next write, which would turn
// "nobody is listening" into an error; the panel must not care about that.
type Sender struct {
	conn   *net.UDPConn
	remote *net.UDPAddr
	logger *zap.SugaredLogger
}

// Dial resolves address and opens an ephemeral local UDP socket for sending to it.
// No packet is exchanged.
func Dial(ctx context.Context, address string, logger *zap.SugaredLogger) (*Sender, error) {
	logger = logger.Named("udp")

	remote, err := resolveUDP(ctx, address)
	if err != nil {
		return nil, err
	}

	network := "udp4"
	if remote.IP.To4() == nil {
		network = "udp6"
	}

	conn, err := net.ListenUDP(network, nil)
	if err != nil {
		return nil, errors.Wrap(err, "open udp socket")
	}

	logger.Debugw("Opened UDP sender", "local", conn.LocalAddr(), "remote", remote)

	return &Sender{
		conn:   conn,
		remote: remote,
		logger: logger,
	}, nil
}

// Send encodes text as UTF-8 and writes it as one datagram.
func (s *Sender) Send(text string) error {
	if s.conn == nil {
		return errors.New("udp sender is closed")
	}
	if _, err := s.conn.WriteToUDP([]byte(text), s.remote); err != nil {
		return errors.Wrapf(err, "send to %s", s.remote)
	}
	s.logger.Debugw("Sent datagram", "payload", text)
	return nil
}

// Remote returns the destination address.
func (s *Sender) Remote() *net.UDPAddr {
	return s.remote
}

// Close releases the socket. Calling it twice is harmless.
func (s *Sender) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		s.logger.Warnw("Failed to close UDP sender", "error", err)
		return errors.Wrap(err, "close udp socket")
	}
	s.logger.Debug("UDP sender closed")
	return nil
}

// resolveUDP resolves host:port, preferring an IPv4 address when the host has several.
func resolveUDP(ctx context.Context, address string) (*net.UDPAddr, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, errors.Wrapf(err, "parse address %s", address)
	}
	if host == "" {
		return nil, errors.Errorf("address %s has no host", address)
	}

	portNum, err := net.DefaultResolver.LookupPort(ctx, "udp", port)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve port %s", port)
	}

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve host %s", host)
	}
	if len(ips) == 0 {
		return nil, errors.Errorf("host %s has no addresses", host)
	}

	chosen := ips[0]
	for _, ip := range ips {
		if ip.IP.To4() != nil {
			chosen = ip
			break
		}
	}
	return &net.UDPAddr{IP: chosen.IP, Port: portNum, Zone: chosen.Zone}, nil
}
