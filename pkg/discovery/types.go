package discovery

import (
	"errors"
	"fmt"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceType is the DNS-SD service type of a game server.
	ServiceType = "_srcds._udp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultTTL is the default DNS record TTL.
	DefaultTTL = 120 * time.Second
)

// TXT record keys.
const (
	TXTKeyMap        = "map"
	TXTKeyMaxPlayers = "max"
	TXTKeyPlayers    = "pl"
	TXTKeyVersion    = "pv"
	TXTKeyGame       = "game"
	TXTKeyPassword   = "pw"
)

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// MaxTXTRecordSize is the maximum total TXT record size.
	MaxTXTRecordSize = 400

	// MaxPlayers bounds the advertised player counts.
	MaxPlayers = 255
)

// Discovery errors.
var (
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrMissingRequired     = errors.New("missing required field")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrInvalidPort         = errors.New("invalid port")
	ErrTXTTooLarge         = errors.New("TXT records exceed size limit")
	ErrNotAdvertising      = errors.New("not advertising")
	ErrNotFound            = errors.New("server not found")
)

// ServerInfo is what a server advertises about itself.
type ServerInfo struct {
	// Name is the human-readable server name; it becomes the instance name.
	Name string

	// Port is the UDP game port.
	Port uint16

	Map        string
	Game       string
	MaxPlayers int
	Players    int

	// Version is the network protocol version.
	Version int

	Password bool
}

// Validate checks that info can be advertised.
func (i *ServerInfo) Validate() error {
	if err := ValidateInstanceName(i.Name); err != nil {
		return err
	}
	if i.Port == 0 {
		return ErrInvalidPort
	}
	if i.Map == "" {
		return fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyMap)
	}
	if i.MaxPlayers <= 0 || i.MaxPlayers > MaxPlayers {
		return fmt.Errorf("%w: max players %d", ErrInvalidTXTRecord, i.MaxPlayers)
	}
	if i.Players < 0 || i.Players > i.MaxPlayers {
		return fmt.Errorf("%w: players %d", ErrInvalidTXTRecord, i.Players)
	}
	return nil
}

// ServerService is a server found by browsing.
type ServerService struct {
	// InstanceName is the mDNS instance name.
	InstanceName string

	// Host is the advertised host name.
	Host string

	// Port is the game port.
	Port uint16

	// Addresses lists the IPv4 and IPv6 addresses seen for the instance.
	Addresses []string

	Info ServerInfo
}
