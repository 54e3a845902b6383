package gossip

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

var (
	// ErrWouldBlock is returned when a packet can't be written without
	// waiting. The packet is dropped.
	ErrWouldBlock = errors.New("would block")

	// ErrTimeout is returned when no packet is received before the read
	// deadline.
	ErrTimeout = errors.New("timeout")
)

const (
	defaultWriteTimeout = 50 * time.Millisecond
)

// Transport sends and receives gossip packets.
type Transport interface {
	// SendTo writes the packet to the given address. If the packet can't be
	// written without waiting, returns ErrWouldBlock and the packet is
	// dropped.
	SendTo(ctx context.Context, b []byte, addr string) error

	// RecvFrom reads the next packet into b, returning the number of bytes
	// read and the address of the sender. Blocks until a packet is read or
	// the context is cancelled. If the context deadline is exceeded returns
	// ErrTimeout.
	//
	// If the packet is larger than b, the packet is truncated to len(b).
	RecvFrom(ctx context.Context, b []byte) (int, string, error)

	// Addr returns the local address of the transport.
	Addr() net.Addr

	Close() error
}

// PacketTransport is a Transport over a UDP socket.
type PacketTransport struct {
	conn net.PacketConn

	writeTimeout time.Duration
}

// NewPacketTransport returns a transport using the given packet connection.
func NewPacketTransport(conn net.PacketConn) *PacketTransport {
	return &PacketTransport{
		conn:         conn,
		writeTimeout: defaultWriteTimeout,
	}
}

// ListenPacket binds a UDP socket to the given address.
func ListenPacket(bindAddr string) (*PacketTransport, error) {
	conn, err := net.ListenPacket("udp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("listen: %s: %w", bindAddr, err)
	}
	return NewPacketTransport(conn), nil
}

func (t *PacketTransport) SendTo(ctx context.Context, b []byte, addr string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("resolve: %s: %w", addr, err)
	}

	deadline := time.Now().Add(t.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set deadline: %w", err)
	}

	if _, err := t.conn.WriteTo(b, udpAddr); err != nil {
		if isTimeout(err) {
			return ErrWouldBlock
		}
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (t *PacketTransport) RecvFrom(ctx context.Context, b []byte) (int, string, error) {
	if err := ctx.Err(); err != nil {
		return 0, "", err
	}

	// Use the context deadline if set, otherwise block until a packet is
	// read or the context is cancelled.
	deadline, _ := ctx.Deadline()
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return 0, "", fmt.Errorf("set deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		// Unblock the pending read.
		_ = t.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	n, addr, err := t.conn.ReadFrom(b)
	if err != nil {
		if isTimeout(err) {
			if errors.Is(ctx.Err(), context.Canceled) {
				return 0, "", ctx.Err()
			}
			return 0, "", ErrTimeout
		}
		return 0, "", fmt.Errorf("read: %w", err)
	}
	return n, addr.String(), nil
}

func (t *PacketTransport) Addr() net.Addr {
	return t.conn.LocalAddr()
}

func (t *PacketTransport) Close() error {
	return t.conn.Close()
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

var _ Transport = &PacketTransport{}
