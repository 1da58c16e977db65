package transport

import (
	"fmt"
	"net"

	"github.com/go-logr/logr"

	errors "github.com/yago-123/meet-punch/pkg/error"
	"github.com/yago-123/meet-punch/pkg/logging"
	"github.com/yago-123/meet-punch/pkg/metrics"
	"github.com/yago-123/meet-punch/pkg/peer"
	"github.com/yago-123/meet-punch/pkg/util"
)

// Transport is a best-effort datagram channel between one local UDP socket and one fixed peer. It is owned by a
// single session: Send and Receive are not synchronized and at most one Receive may be outstanding at a time.
type Transport struct {
	conn   *net.UDPConn
	remote peer.Endpoint

	logger  logr.Logger
	metrics *metrics.Metrics
}

// New binds localPort on all local interfaces (0 picks a free port) and associates the socket with remote. Any
// failure here is a setup error the caller is not expected to recover from
func New(localPort int, remote peer.Endpoint, opts ...Option) (*Transport, error) {
	cfg := newDefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.metrics == nil {
		cfg.metrics = metrics.Default()
	}

	if !remote.IsValid() {
		return nil, errors.Wrap(errors.ErrBindingUDP, fmt.Errorf("invalid peer endpoint %q", remote))
	}

	localAddr := &net.UDPAddr{Port: localPort}
	conn, err := net.DialUDP(util.UDPProtocol, localAddr, remote.UDPAddr())
	if err != nil {
		return nil, errors.Wrap(errors.ErrBindingUDP, err)
	}

	t := &Transport{
		conn:    conn,
		remote:  remote,
		logger:  cfg.logger,
		metrics: cfg.metrics,
	}

	t.logger.Info("Transport ready", logging.KeyLocalAddr, conn.LocalAddr().String(), logging.KeyPeer, remote.String())

	return t, nil
}

// Send tries to deliver payload to the peer. Failures are dropped: no error is returned and nothing is retried
func (t *Transport) Send(payload []byte) {
	n, err := t.conn.Write(payload)
	t.metrics.RecordSend(n, err)

	if err != nil {
		t.logger.V(1).Info("Dropped datagram to peer", logging.KeyPeer, t.remote.String(), "error", err.Error())
	}
}

// Receive blocks until a datagram from the peer arrives and copies it into buf. A failed receive returns 0, which
// is indistinguishable from the peer sending an empty datagram
func (t *Transport) Receive(buf []byte) int {
	n, err := t.conn.Read(buf)
	t.metrics.RecordReceive(n, err)

	if err != nil {
		t.logger.V(1).Info("Receive from peer failed", logging.KeyPeer, t.remote.String(), "error", err.Error())
		return 0
	}

	return n
}

// LocalAddr is the bound local address
func (t *Transport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// Peer is the endpoint the transport is associated with
func (t *Transport) Peer() peer.Endpoint {
	return t.remote
}

// Close releases the socket. A Receive blocked in another goroutine returns 0
func (t *Transport) Close() error {
	return t.conn.Close()
}
