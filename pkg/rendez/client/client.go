package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-logr/logr"

	"github.com/yago-123/meet-punch/pkg/logging"
	"github.com/yago-123/meet-punch/pkg/peer"
)

const (
	// RegistrationPayload is what the client sends to register. The meet server never looks at it
	RegistrationPayload = "HELLO"

	replyBufferSize = 128
)

type Rendezvous interface {
	Register(ctx context.Context, conn *net.UDPConn) error
	WaitForPeer(ctx context.Context, conn *net.UDPConn) (peer.Endpoint, error)
}

type Client struct {
	server   peer.Endpoint
	interval time.Duration
	logger   logr.Logger
}

// NewRendezvous creates a registration client for the meet server at server. When interval is greater than 0 the
// registration is sent again every interval while waiting for the peer, otherwise it is sent once
func NewRendezvous(server peer.Endpoint, interval time.Duration, logger logr.Logger) Rendezvous {
	return &Client{
		server:   server,
		interval: interval,
		logger:   logger,
	}
}

// Register sends the registration datagram from conn, the meet server answers to the address it sees it from
func (c *Client) Register(ctx context.Context, conn *net.UDPConn) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !c.server.IsValid() {
		return fmt.Errorf("invalid meet server endpoint %q", c.server)
	}

	if _, err := conn.WriteToUDPAddrPort([]byte(RegistrationPayload), c.server.AddrPort()); err != nil {
		return fmt.Errorf("send registration: %w", err)
	}

	c.logger.V(1).Info("Sent registration", logging.KeyEndpoint, c.server.String())

	return nil
}

// WaitForPeer blocks until the meet server replies with the partner's address. Datagrams from other sources and
// replies that don't parse as "ip:port" are skipped. The wait ends early when ctx is done
func (c *Client) WaitForPeer(ctx context.Context, conn *net.UDPConn) (peer.Endpoint, error) {
	defer conn.SetReadDeadline(time.Time{})

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, replyBufferSize)
	for {
		if err := conn.SetReadDeadline(c.readDeadline(ctx)); err != nil {
			return peer.Endpoint{}, fmt.Errorf("set read deadline: %w", err)
		}

		// ctx may have been cancelled before the deadline above replaced the one set on cancellation
		if err := ctx.Err(); err != nil {
			return peer.Endpoint{}, err
		}

		n, from, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil {
				return peer.Endpoint{}, ctx.Err()
			}

			var netErr net.Error
			if !errors.As(err, &netErr) || !netErr.Timeout() {
				return peer.Endpoint{}, fmt.Errorf("read reply: %w", err)
			}

			if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
				<-ctx.Done()
				return peer.Endpoint{}, ctx.Err()
			}

			if errRegister := c.Register(ctx, conn); errRegister != nil {
				return peer.Endpoint{}, errRegister
			}
			continue
		}

		if sender := peer.New(from); sender != c.server {
			c.logger.V(1).Info("Ignoring datagram from unknown sender", logging.KeyEndpoint, sender.String())
			continue
		}

		remote, err := peer.Parse(string(buf[:n]))
		if err != nil || !remote.IsValid() {
			c.logger.V(1).Info("Ignoring malformed reply", "reply", string(buf[:n]))
			continue
		}

		c.logger.Info("Received peer", logging.KeyPeer, remote.String())

		return remote, nil
	}
}

// readDeadline is the earliest of the next retransmission and the ctx deadline. Zero means no deadline
func (c *Client) readDeadline(ctx context.Context) time.Time {
	var deadline time.Time
	if c.interval > 0 {
		deadline = time.Now().Add(c.interval)
	}

	if ctxDeadline, ok := ctx.Deadline(); ok && (deadline.IsZero() || ctxDeadline.Before(deadline)) {
		deadline = ctxDeadline
	}

	return deadline
}
