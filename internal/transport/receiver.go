package transport

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"mixerpanel/internal/wire"
)

// ============================================================================
// Receiver - debug sink for panel datagrams
// ============================================================================
// The real consumer of panel datagrams is the mixer backend, which is not part
// of this repository. Receiver binds the same address, parses every packet and
// hands it to a callback so the wire traffic can be inspected (and tested).
//
// With ReusePort set the receiver can share the port with a running backend
// (SO_REUSEADDR + SO_REUSEPORT). For unicast UDP the kernel then load-balances
// packets between the sockets, so each one sees a subset.
// ============================================================================

// ListenOptions tunes the receiving socket.
type ListenOptions struct {
	ReusePort bool
}

// Datagram is one received packet.
// Err is set (and Message nil) when the payload did not parse.
type Datagram struct {
	From    net.Addr
	Payload string
	Message wire.Message
	Err     error
	At      time.Time
}

// Receiver owns a bound UDP socket.
type Receiver struct {
	conn   net.PacketConn
	logger *zap.SugaredLogger
}

// Listen binds address for receiving.
func Listen(ctx context.Context, address string, opts ListenOptions, logger *zap.SugaredLogger) (*Receiver, error) {
	logger = logger.Named("receiver")

	lc := net.ListenConfig{}
	if opts.ReusePort {
		control, err := reusePortControl()
		if err != nil {
			return nil, err
		}
		lc.Control = control
	}

	conn, err := lc.ListenPacket(ctx, "udp", address)
	if err != nil {
		logger.Warnw("Failed to start UDP listener", "address", address, "error", err)
		return nil, errors.Wrapf(err, "listen on %s", address)
	}

	logger.Infow("Listening", "address", conn.LocalAddr(), "reusePort", opts.ReusePort)

	return &Receiver{conn: conn, logger: logger}, nil
}

// Addr returns the bound local address.
func (r *Receiver) Addr() net.Addr {
	return r.conn.LocalAddr()
}

// Serve reads packets until ctx is canceled, calling handle for each one.
// handle runs on the read goroutine; keep it short.
// Serve closes the socket before returning.
func (r *Receiver) Serve(ctx context.Context, handle func(Datagram)) error {
	// Closing the socket unblocks ReadFrom.
	stop := context.AfterFunc(ctx, func() {
		_ = r.conn.Close()
	})
	defer stop()
	defer r.conn.Close()

	buf := make([]byte, wire.MaxDatagramSize)
	for {
		n, from, err := r.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Debug("UDP listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				r.logger.Debug("UDP listener closed")
				return nil
			}
			return errors.Wrap(err, "read datagram")
		}

		payload := string(buf[:n])
		dg := Datagram{
			From:    from,
			Payload: payload,
			At:      time.Now(),
		}
		dg.Message, dg.Err = wire.Parse(payload)
		if dg.Err != nil {
			r.logger.Debugw("Got malformed datagram", "from", from, "payload", payload, "error", dg.Err)
		} else {
			r.logger.Debugw("Read new datagram", "from", from, "payload", payload)
		}

		if handle != nil {
			handle(dg)
		}
	}
}

// Close releases the socket without waiting for Serve.
func (r *Receiver) Close() error {
	if err := r.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return errors.Wrap(err, "close udp listener")
	}
	return nil
}
