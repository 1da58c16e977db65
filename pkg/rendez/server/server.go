package server

import (
	"context"
	"fmt"
	"net"

	"github.com/go-logr/logr"

	errors "github.com/yago-123/meet-punch/pkg/error"
	"github.com/yago-123/meet-punch/pkg/logging"
	"github.com/yago-123/meet-punch/pkg/metrics"
	"github.com/yago-123/meet-punch/pkg/peer"
	"github.com/yago-123/meet-punch/pkg/rendez/store"
	"github.com/yago-123/meet-punch/pkg/util"
)

// MaxRegistrationSize is the read buffer for registration datagrams. The payload is never looked at, longer
// datagrams are truncated
const MaxRegistrationSize = 128

// MeetServer pairs clients two by two. Any datagram registers its sender; once two distinct senders are waiting
// each receives the other's address as "ip:port" text and the pool starts over
type MeetServer struct {
	pool store.Pool
	conn *net.UDPConn

	logger  logr.Logger
	metrics *metrics.Metrics
}

func NewMeetServer(pool store.Pool, opts ...Option) *MeetServer {
	cfg := newDefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.metrics == nil {
		cfg.metrics = metrics.Default()
	}

	return &MeetServer{
		pool:    pool,
		logger:  cfg.logger,
		metrics: cfg.metrics,
	}
}

// Listen binds the receiving endpoint
func (s *MeetServer) Listen(ip string, port int) error {
	conn, err := net.ListenUDP(util.UDPProtocol, &net.UDPAddr{IP: net.ParseIP(ip), Port: port})
	if err != nil {
		return errors.Wrap(errors.ErrListenMeet, err)
	}

	s.conn = conn
	s.logger.Info("Meet server listening", logging.KeyLocalAddr, conn.LocalAddr().String())

	return nil
}

// Addr returns the bound address, nil before Listen
func (s *MeetServer) Addr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Serve processes registrations one at a time until the socket fails or ctx is done. A receive failure is returned
// as an error and is not retried; cancelling ctx returns nil
func (s *MeetServer) Serve(ctx context.Context) error {
	if s.conn == nil {
		return errors.Wrap(errors.ErrListenMeet, fmt.Errorf("server is not listening"))
	}
	defer s.conn.Close()

	stop := context.AfterFunc(ctx, func() {
		s.conn.Close()
	})
	defer stop()

	buf := make([]byte, MaxRegistrationSize)
	for {
		_, from, err := s.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("Meet server stopped")
				return nil
			}
			return errors.Wrap(errors.ErrReceiveRegistration, err)
		}

		s.handleRegistration(peer.New(from))
	}
}

// Run is Listen followed by Serve
func (s *MeetServer) Run(ctx context.Context, ip string, port int) error {
	if err := s.Listen(ip, port); err != nil {
		return err
	}

	return s.Serve(ctx)
}

func (s *MeetServer) handleRegistration(ep peer.Endpoint) {
	s.metrics.Registrations.Inc()

	match, res := s.pool.Register(ep)
	switch res {
	case store.Duplicate:
		s.metrics.DuplicateRegistrations.Inc()
		s.logger.V(1).Info("Duplicate registration ignored", logging.KeyEndpoint, ep.String())
	case store.Queued:
		s.logger.Info("Client registered", logging.KeyEndpoint, ep.String())
	case store.Matched:
		s.logger.Info("Client registered", logging.KeyEndpoint, ep.String())

		s.reply(match.First, match.Second)
		s.reply(match.Second, match.First)

		s.metrics.Matches.Inc()
		s.logger.Info("Matched clients", "first", match.First.String(), "second", match.Second.String())
	}

	s.metrics.PoolSize.Set(float64(s.pool.Len()))
}

// reply tells `to` where its partner is. A failed send is not retried, the partner already left the pool
func (s *MeetServer) reply(to, partner peer.Endpoint) {
	if _, err := s.conn.WriteToUDPAddrPort([]byte(partner.String()), to.AddrPort()); err != nil {
		s.metrics.ReplyErrors.Inc()
		s.logger.Error(err, "Failed to send match reply", logging.KeyEndpoint, to.String(), logging.KeyPeer, partner.String())
	}
}
