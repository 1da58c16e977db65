package transport

import (
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
	"github.com/yago-123/meet-punch/pkg/util"
)

const testTimeout = 2 * time.Second

func newTestMetrics() *metrics.Metrics {
	return metrics.NewMetricsWithRegistry(prometheus.NewRegistry())
}

// listenPeer stands in for the remote side with a plain loopback socket
func listenPeer(t *testing.T) (*net.UDPConn, peer.Endpoint) {
	t.Helper()

	conn, err := net.ListenUDP(util.UDPProtocol, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn, peer.FromUDPAddr(conn.LocalAddr().(*net.UDPAddr))
}

func TestSendReachesPeer(t *testing.T) {
	remote, remoteEp := listenPeer(t)
	m := newTestMetrics()

	tr, err := New(0, remoteEp, WithMetrics(m))
	require.NoError(t, err)
	defer tr.Close()

	tr.Send([]byte("12.0,34.5"))

	require.NoError(t, remote.SetReadDeadline(time.Now().Add(testTimeout)))
	buf := make([]byte, 64)
	n, from, err := remote.ReadFromUDP(buf)
	require.NoError(t, err)

	assert.Equal(t, "12.0,34.5", string(buf[:n]))
	assert.Equal(t, tr.LocalAddr().(*net.UDPAddr).Port, from.Port)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DatagramsSent), 0)
	assert.InDelta(t, 9, testutil.ToFloat64(m.BytesSent), 0)
}

func TestReceiveFromPeer(t *testing.T) {
	remote, remoteEp := listenPeer(t)

	tr, err := New(0, remoteEp, WithMetrics(newTestMetrics()))
	require.NoError(t, err)
	defer tr.Close()

	_, err = remote.WriteToUDP([]byte("state"), tr.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)

	buf := make([]byte, 64)
	n := tr.Receive(buf)
	assert.Equal(t, "state", string(buf[:n]))
	assert.Equal(t, remoteEp, tr.Peer())
}

func TestReceiveIgnoresOtherSenders(t *testing.T) {
	remote, remoteEp := listenPeer(t)
	stranger, _ := listenPeer(t)

	tr, err := New(0, remoteEp, WithMetrics(newTestMetrics()))
	require.NoError(t, err)
	defer tr.Close()

	local := tr.LocalAddr().(*net.UDPAddr)
	_, err = stranger.WriteToUDP([]byte("intruder"), local)
	require.NoError(t, err)
	_, err = remote.WriteToUDP([]byte("peer"), local)
	require.NoError(t, err)

	buf := make([]byte, 64)
	n := tr.Receive(buf)
	assert.Equal(t, "peer", string(buf[:n]))
}

// An empty datagram and a failed receive both come back as zero bytes. Callers cannot tell them apart and the
// transport does not try to
func TestZeroByteReceiveCollapse(t *testing.T) {
	remote, remoteEp := listenPeer(t)
	m := newTestMetrics()

	tr, err := New(0, remoteEp, WithMetrics(m))
	require.NoError(t, err)

	_, err = remote.WriteToUDP([]byte{}, tr.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)

	buf := make([]byte, 64)
	assert.Equal(t, 0, tr.Receive(buf), "empty datagram")
	assert.InDelta(t, 1, testutil.ToFloat64(m.DatagramsReceived), 0)

	require.NoError(t, tr.Close())
	assert.Equal(t, 0, tr.Receive(buf), "failed receive")
	assert.InDelta(t, 1, testutil.ToFloat64(m.ReceiveErrors), 0)
}

func TestCloseUnblocksReceive(t *testing.T) {
	_, remoteEp := listenPeer(t)

	tr, err := New(0, remoteEp, WithMetrics(newTestMetrics()))
	require.NoError(t, err)

	done := make(chan int, 1)
	go func() {
		done <- tr.Receive(make([]byte, 64))
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, tr.Close())

	select {
	case n := <-done:
		assert.Equal(t, 0, n)
	case <-time.After(testTimeout):
		t.Fatal("receive did not return after close")
	}
}

func TestSendNeverSurfacesErrors(t *testing.T) {
	// Grab a free port and release it so nothing listens there
	closed, closedEp := listenPeer(t)
	require.NoError(t, closed.Close())

	m := newTestMetrics()
	tr, err := New(0, closedEp, WithMetrics(m))
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 100; i++ {
		tr.Send([]byte("tick"))
	}
	assert.Less(t, time.Since(start), testTimeout)

	require.NoError(t, tr.Close())
	tr.Send([]byte("after close"))

	total := testutil.ToFloat64(m.DatagramsSent) + testutil.ToFloat64(m.SendErrors)
	assert.InDelta(t, 101, total, 0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.SendErrors), 1.0)
}

func TestNewFailsOnBusyPort(t *testing.T) {
	_, remoteEp := listenPeer(t)

	first, err := New(0, remoteEp, WithMetrics(newTestMetrics()))
	require.NoError(t, err)
	defer first.Close()

	busy := first.LocalAddr().(*net.UDPAddr).Port
	_, err = New(busy, remoteEp, WithMetrics(newTestMetrics()))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBindingUDP)
}

func TestNewRejectsInvalidPeer(t *testing.T) {
	_, err := New(0, peer.Endpoint{}, WithMetrics(newTestMetrics()))
	assert.ErrorIs(t, err, errors.ErrBindingUDP)
}
