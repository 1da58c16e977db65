package util

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/pion/stun"

	"github.com/yago-123/meet-punch/pkg/peer"
)

const (
	UDPProtocol = "udp"
)

// GetPublicEndpoint tries the provided STUN servers to discover the public-facing IP. The returned endpoint pairs
// that IP with localPort, assuming the NAT preserves the port of the game socket.
func GetPublicEndpoint(ctx context.Context, servers []string, localPort int) (peer.Endpoint, error) {
	var lastErr error

	for _, server := range servers {
		if ctx.Err() != nil {
			return peer.Endpoint{}, ctx.Err()
		}

		ip, err := trySTUNServer(ctx, server)
		if err == nil {
			return peer.New(netip.AddrPortFrom(ip, uint16(localPort))), nil
		}

		lastErr = err
	}

	if lastErr == nil {
		return peer.Endpoint{}, fmt.Errorf("no STUN servers configured")
	}

	return peer.Endpoint{}, fmt.Errorf("all STUN servers failed: %w", lastErr)
}

func trySTUNServer(ctx context.Context, server string) (netip.Addr, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, UDPProtocol, server)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error dialing STUN server %s: %w", server, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	// Create a new STUN client
	client, err := stun.NewClient(conn)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error creating STUN client: %w", err)
	}
	defer client.Close()

	// Send a binding request to the STUN server for determining the public IP
	var xorAddr stun.XORMappedAddress
	var resErr error
	if err = client.Do(stun.MustBuild(stun.TransactionID, stun.BindingRequest), func(res stun.Event) {
		if res.Error != nil {
			resErr = res.Error
			return
		}
		if getErr := xorAddr.GetFrom(res.Message); getErr != nil {
			resErr = fmt.Errorf("failed to get XOR-MAPPED-ADDRESS: %w", getErr)
		}
	}); err != nil {
		return netip.Addr{}, fmt.Errorf("STUN request to %s failed: %w", server, err)
	}

	if resErr != nil {
		return netip.Addr{}, fmt.Errorf("STUN request to %s failed: %w", server, resErr)
	}

	ip, ok := netip.AddrFromSlice(xorAddr.IP)
	if !ok {
		return netip.Addr{}, fmt.Errorf("STUN server %s returned invalid address %v", server, xorAddr.IP)
	}

	return ip.Unmap(), nil
}
