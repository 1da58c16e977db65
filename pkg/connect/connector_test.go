package connect

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errors "github.com/yago-123/meet-punch/pkg/error"
	"github.com/yago-123/meet-punch/pkg/metrics"
	"github.com/yago-123/meet-punch/pkg/peer"
	"github.com/yago-123/meet-punch/pkg/rendez/server"
	"github.com/yago-123/meet-punch/pkg/rendez/store"
	"github.com/yago-123/meet-punch/pkg/transport"
	"github.com/yago-123/meet-punch/pkg/util"
)

const testTimeout = 3 * time.Second

func startMeetServer(t *testing.T) peer.Endpoint {
	t.Helper()

	srv := server.NewMeetServer(store.NewMemoryPool(), server.WithMetrics(metrics.NewMetricsWithRegistry(prometheus.NewRegistry())))
	require.NoError(t, srv.Listen("127.0.0.1", 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return peer.FromUDPAddr(srv.Addr().(*net.UDPAddr))
}

type result struct {
	transport *transport.Transport
	remote    peer.Endpoint
	err       error
}

func connectAsync(ctx context.Context, c *Connector) <-chan result {
	ch := make(chan result, 1)
	go func() {
		tr, remote, err := c.Connect(ctx, 0)
		ch <- result{transport: tr, remote: remote, err: err}
	}()
	return ch
}

func localPort(tr *transport.Transport) int {
	return tr.LocalAddr().(*net.UDPAddr).Port
}

func TestConnectPairsTwoPeers(t *testing.T) {
	meet := startMeetServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	mA := metrics.NewMetricsWithRegistry(prometheus.NewRegistry())
	mB := metrics.NewMetricsWithRegistry(prometheus.NewRegistry())
	chA := connectAsync(ctx, NewConnector(meet, WithMetrics(mA)))
	chB := connectAsync(ctx, NewConnector(meet, WithMetrics(mB)))

	a, b := <-chA, <-chB
	require.NoError(t, a.err)
	require.NoError(t, b.err)
	defer a.transport.Close()
	defer b.transport.Close()

	// Each side is told the port the other one keeps using for the session
	assert.Equal(t, localPort(b.transport), int(a.remote.AddrPort().Port()))
	assert.Equal(t, localPort(a.transport), int(b.remote.AddrPort().Port()))
	assert.Equal(t, a.remote, a.transport.Peer())

	a.transport.Send([]byte("ping"))
	b.transport.Send([]byte("pong"))

	buf := make([]byte, 64)
	n := b.transport.Receive(buf)
	assert.Equal(t, "ping", string(buf[:n]))
	n = a.transport.Receive(buf)
	assert.Equal(t, "pong", string(buf[:n]))

	assert.Equal(t, float64(1), testutil.ToFloat64(mA.DatagramsSent))
	assert.Equal(t, float64(1), testutil.ToFloat64(mB.DatagramsReceived))
}

func TestConnectRetransmitting(t *testing.T) {
	meet := startMeetServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	m := metrics.NewMetricsWithRegistry(prometheus.NewRegistry())
	chA := connectAsync(ctx, NewConnector(meet, WithWaitInterval(20*time.Millisecond), WithMetrics(m)))

	// A has registered a few times before B shows up
	time.Sleep(100 * time.Millisecond)
	chB := connectAsync(ctx, NewConnector(meet, WithMetrics(m)))

	a, b := <-chA, <-chB
	require.NoError(t, a.err)
	require.NoError(t, b.err)
	defer a.transport.Close()
	defer b.transport.Close()

	assert.Equal(t, localPort(b.transport), int(a.remote.AddrPort().Port()))
	assert.Equal(t, localPort(a.transport), int(b.remote.AddrPort().Port()))
}

func TestConnectWaitTimeout(t *testing.T) {
	meet := startMeetServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, _, err := NewConnector(meet).Connect(ctx, 0)
	require.ErrorIs(t, err, errors.ErrWaitForPeer)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConnectBusyPort(t *testing.T) {
	meet := startMeetServer(t)

	busy, err := net.ListenUDP(util.UDPProtocol, &net.UDPAddr{IP: net.IPv4zero})
	require.NoError(t, err)
	defer busy.Close()

	_, _, err = NewConnector(meet).Connect(context.Background(), busy.LocalAddr().(*net.UDPAddr).Port)
	require.ErrorIs(t, err, errors.ErrBindingUDP)
}

func TestConnectInvalidServer(t *testing.T) {
	_, _, err := NewConnector(peer.Endpoint{}).Connect(context.Background(), 0)
	require.ErrorIs(t, err, errors.ErrRegisterPeer)
}

func TestConnectSurvivesSTUNFailure(t *testing.T) {
	meet := startMeetServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	// Discovery fails straight away, the session is still set up through the meet server
	chA := connectAsync(ctx, NewConnector(meet, WithSTUNServers("missing-port")))
	chB := connectAsync(ctx, NewConnector(meet))

	a, b := <-chA, <-chB
	require.NoError(t, a.err)
	require.NoError(t, b.err)
	assert.NoError(t, a.transport.Close())
	assert.NoError(t, b.transport.Close())
}
