package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Advertiser publishes a server on the local network.
type Advertiser interface {
	// Advertise starts advertising info, replacing any previous
	// advertisement.
	Advertise(ctx context.Context, info *ServerInfo) error

	// Update replaces the TXT records of the current advertisement.
	Update(info *ServerInfo) error

	// Stop withdraws the advertisement.
	Stop() error
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{
		Interface: "",
		TTL:       DefaultTTL,
	}
}

// MDNSAdvertiser implements Advertiser using zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
	info   ServerInfo
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	return &MDNSAdvertiser{config: config}
}

// getInterfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func (a *MDNSAdvertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}

	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Advertise registers the server.
func (a *MDNSAdvertiser) Advertise(ctx context.Context, info *ServerInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txt, err := serverTXT(info)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Stop existing if any
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		InstanceName(info.Name),
		ServiceType,
		Domain,
		int(info.Port),
		txt,
		a.getInterfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register server: %w", err)
	}

	a.server = server
	a.info = *info
	return nil
}

// Update replaces the TXT records. Name and port changes need a new
// Advertise.
func (a *MDNSAdvertiser) Update(info *ServerInfo) error {
	txt, err := serverTXT(info)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return ErrNotAdvertising
	}
	a.server.SetText(txt)
	a.info = *info
	return nil
}

// Stop withdraws the advertisement.
func (a *MDNSAdvertiser) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
	return nil
}

// Advertising returns the advertised info, if any.
func (a *MDNSAdvertiser) Advertising() (ServerInfo, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.info, a.server != nil
}

func serverTXT(info *ServerInfo) ([]string, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	txt := TXTRecordsToStrings(EncodeServerTXT(info))
	if txtSize(txt) > MaxTXTRecordSize {
		return nil, ErrTXTTooLarge
	}
	return txt, nil
}

// Ensure MDNSAdvertiser implements Advertiser interface.
var _ Advertiser = (*MDNSAdvertiser)(nil)
