package peer

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

const udpNetwork = "udp"

// Endpoint identifies a network participant by IP address and port. Two endpoints are the same participant when they
// compare equal with ==
type Endpoint struct {
	addr netip.AddrPort
}

// New builds an endpoint from an address and port. IPv4-mapped IPv6 addresses are unmapped so that the same client
// seen through a dual-stack socket and an IPv4 socket has the same identity
func New(addr netip.AddrPort) Endpoint {
	return Endpoint{addr: netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())}
}

// FromUDPAddr converts a UDP address as returned by the net package into an endpoint
func FromUDPAddr(addr *net.UDPAddr) Endpoint {
	if addr == nil {
		return Endpoint{}
	}

	return New(addr.AddrPort())
}

// Parse parses the "ip:port" text form of an endpoint, the same form String produces
func Parse(s string) (Endpoint, error) {
	addr, err := netip.ParseAddrPort(strings.TrimSpace(s))
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: %w", s, err)
	}

	return New(addr), nil
}

// Resolve is like Parse but accepts host names, which are resolved through DNS
func Resolve(hostport string) (Endpoint, error) {
	if ep, err := Parse(hostport); err == nil {
		return ep, nil
	}

	udpAddr, err := net.ResolveUDPAddr(udpNetwork, hostport)
	if err != nil {
		return Endpoint{}, fmt.Errorf("failed to resolve %s: %w", hostport, err)
	}

	return FromUDPAddr(udpAddr), nil
}

// AddrPort returns the endpoint's IP address and port
func (e Endpoint) AddrPort() netip.AddrPort {
	return e.addr
}

// UDPAddr returns the endpoint as a *net.UDPAddr, suitable for dialing
func (e Endpoint) UDPAddr() *net.UDPAddr {
	return net.UDPAddrFromAddrPort(e.addr)
}

// IsValid reports whether the endpoint carries a usable address and a non-zero port
func (e Endpoint) IsValid() bool {
	return e.addr.IsValid() && e.addr.Port() != 0
}

func (e Endpoint) String() string {
	return e.addr.String()
}
