package connect

import (
	"context"
	"net"

	"github.com/go-logr/logr"

	errors "github.com/yago-123/meet-punch/pkg/error"
	"github.com/yago-123/meet-punch/pkg/logging"
	"github.com/yago-123/meet-punch/pkg/metrics"
	"github.com/yago-123/meet-punch/pkg/peer"
	"github.com/yago-123/meet-punch/pkg/rendez/client"
	"github.com/yago-123/meet-punch/pkg/transport"
	"github.com/yago-123/meet-punch/pkg/util"
)

type Connector struct {
	rendezClient client.Rendezvous
	stunServers  []string
	logger       logr.Logger
	metrics      *metrics.Metrics
}

// NewConnector creates a connector that finds its peer through the meet server at server
func NewConnector(server peer.Endpoint, opts ...Option) *Connector {
	cfg := newDefaultConfig()

	for _, opt := range opts {
		opt(cfg)
	}

	// Rendezvous client (registers and waits for the peer address)
	rendezClient := client.NewRendezvous(server, cfg.waitInterval, cfg.logger)

	return &Connector{
		rendezClient: rendezClient,
		stunServers:  cfg.stunServers,
		logger:       cfg.logger,
		metrics:      cfg.metrics,
	}
}

// Connect handles the session bootstrap. From registering the local port until the transport to the peer is ready.
// The transport is bound to the same local port the meet server saw, which is the port the peer will send to
func (c *Connector) Connect(ctx context.Context, localPort int) (*transport.Transport, peer.Endpoint, error) {
	conn, err := net.ListenUDP(util.UDPProtocol, &net.UDPAddr{IP: net.IPv4zero, Port: localPort})
	if err != nil {
		return nil, peer.Endpoint{}, errors.Wrap(errors.ErrBindingUDP, err)
	}
	defer conn.Close()

	boundPort := conn.LocalAddr().(*net.UDPAddr).Port

	// Discover own public address via STUN
	if len(c.stunServers) > 0 {
		publicAddr, errSTUN := util.GetPublicEndpoint(ctx, c.stunServers, boundPort)
		if errSTUN != nil {
			c.logger.Error(errors.Wrap(errors.ErrPubAddrRetrieve, errSTUN), "Public endpoint unknown, continuing")
		} else {
			c.logger.Info("Discovered public endpoint", logging.KeyEndpoint, publicAddr.String())
		}
	}

	// Register local port in the meet server
	if errRendez := c.rendezClient.Register(ctx, conn); errRendez != nil {
		return nil, peer.Endpoint{}, errors.Wrap(errors.ErrRegisterPeer, errRendez)
	}

	c.logger.Info("Registered local peer", logging.KeyLocalAddr, conn.LocalAddr().String())

	// Wait for the partner address from the meet server
	remote, err := c.rendezClient.WaitForPeer(ctx, conn)
	if err != nil {
		return nil, peer.Endpoint{}, errors.Wrap(errors.ErrWaitForPeer, err)
	}

	// Release the port so the transport can take it over
	if errClose := conn.Close(); errClose != nil {
		return nil, peer.Endpoint{}, errors.Wrap(errors.ErrTransportCreate, errClose)
	}

	c.logger.Info("Connecting to remote peer", logging.KeyPeer, remote.String())

	opts := []transport.Option{transport.WithLogger(c.logger)}
	if c.metrics != nil {
		opts = append(opts, transport.WithMetrics(c.metrics))
	}

	t, err := transport.New(boundPort, remote, opts...)
	if err != nil {
		return nil, peer.Endpoint{}, errors.Wrap(errors.ErrTransportCreate, err)
	}

	return t, remote, nil
}
