// Package netadr provides the network address value type used to key
// channels and split-packet reassembly state.
package netadr

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// Kind is the logical address type.
type Kind uint8

const (
	// KindNull is the zero address.
	KindNull Kind = iota

	// KindLoopback addresses the in-process loopback queue.
	KindLoopback

	// KindBroadcast addresses every host on the local subnet.
	KindBroadcast

	// KindIP is a concrete UDP endpoint.
	KindIP
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindLoopback:
		return "LOOPBACK"
	case KindBroadcast:
		return "BROADCAST"
	case KindIP:
		return "IP"
	default:
		return "UNKNOWN"
	}
}

// Address errors.
var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidPort    = errors.New("invalid port")
)

// Address is an endpoint plus its logical kind. It is a comparable value
// type and can be used directly as a map key.
type Address struct {
	kind Kind
	ap   netip.AddrPort
}

// Loopback is the in-process loopback address.
var Loopback = Address{kind: KindLoopback}

// FromAddrPort creates an IP address.
func FromAddrPort(ap netip.AddrPort) Address {
	return Address{kind: KindIP, ap: netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())}
}

// FromUDPAddr converts a net.UDPAddr.
func FromUDPAddr(a *net.UDPAddr) Address {
	if a == nil {
		return Address{}
	}
	return FromAddrPort(a.AddrPort())
}

// Broadcast creates a broadcast address for the given port.
func Broadcast(port uint16) Address {
	return Address{kind: KindBroadcast, ap: netip.AddrPortFrom(netip.IPv4Unspecified(), port)}
}

// Parse parses "loopback", "host:port" or a bare IP (port 0).
func Parse(s string) (Address, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return Address{}, nil
	case "loopback", "localhost:loopback":
		return Loopback, nil
	}

	if ap, err := netip.ParseAddrPort(s); err == nil {
		return FromAddrPort(ap), nil
	}
	if ip, err := netip.ParseAddr(s); err == nil {
		return FromAddrPort(netip.AddrPortFrom(ip, 0)), nil
	}

	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidPort, portStr)
	}
	ips, err := net.LookupIP(host)
	if err != nil || len(ips) == 0 {
		return Address{}, fmt.Errorf("%w: resolve %q", ErrInvalidAddress, host)
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return FromAddrPort(netip.AddrPortFrom(netip.AddrFrom4([4]byte(v4)), uint16(port))), nil
		}
	}
	ip, _ := netip.AddrFromSlice(ips[0])
	return FromAddrPort(netip.AddrPortFrom(ip, uint16(port))), nil
}

// Kind returns the logical kind.
func (a Address) Kind() Kind { return a.kind }

// IsNull reports whether the address is unset.
func (a Address) IsNull() bool { return a.kind == KindNull }

// IsLoopback reports whether the address is the in-process loopback.
func (a Address) IsLoopback() bool { return a.kind == KindLoopback }

// IsLocalHost reports whether the address refers to this host.
func (a Address) IsLocalHost() bool {
	return a.kind == KindLoopback || (a.kind == KindIP && a.ap.Addr().IsLoopback())
}

// IsReservedAdr reports whether the address is loopback or in a private range.
func (a Address) IsReservedAdr() bool {
	if a.kind == KindLoopback {
		return true
	}
	if a.kind != KindIP {
		return false
	}
	ip := a.ap.Addr()
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}

// AddrPort returns the endpoint. It is invalid for non-IP kinds.
func (a Address) AddrPort() netip.AddrPort { return a.ap }

// Port returns the port.
func (a Address) Port() uint16 { return a.ap.Port() }

// WithPort returns a copy with the port replaced.
func (a Address) WithPort(port uint16) Address {
	a.ap = netip.AddrPortFrom(a.ap.Addr(), port)
	return a
}

// UDPAddr returns the net.UDPAddr for sending. Broadcast maps to the IPv4
// limited broadcast address. Null and loopback return nil.
func (a Address) UDPAddr() *net.UDPAddr {
	switch a.kind {
	case KindIP:
		return net.UDPAddrFromAddrPort(a.ap)
	case KindBroadcast:
		return net.UDPAddrFromAddrPort(netip.AddrPortFrom(netip.AddrFrom4([4]byte{255, 255, 255, 255}), a.ap.Port()))
	default:
		return nil
	}
}

// Equal reports whether two addresses identify the same peer. IP
// addresses compare by endpoint; other kinds compare by kind only.
func (a Address) Equal(b Address) bool {
	if a.kind != b.kind {
		return false
	}
	if a.kind == KindIP {
		return a.ap == b.ap
	}
	return true
}

// EqualNoPort compares IP addresses ignoring the port.
func (a Address) EqualNoPort(b Address) bool {
	if a.kind != b.kind {
		return false
	}
	if a.kind == KindIP {
		return a.ap.Addr() == b.ap.Addr()
	}
	return true
}

// Key returns a canonical form usable as a map key for Equal semantics.
func (a Address) Key() Address {
	if a.kind != KindIP && a.kind != KindBroadcast {
		return Address{kind: a.kind}
	}
	return a
}

// String formats the address.
func (a Address) String() string {
	switch a.kind {
	case KindNull:
		return "null"
	case KindLoopback:
		return "loopback"
	case KindBroadcast:
		return fmt.Sprintf("broadcast:%d", a.ap.Port())
	default:
		return a.ap.String()
	}
}
