package discovery

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Browser finds servers on the local network.
type Browser interface {
	// Browse searches for servers. The channel is closed when ctx is
	// cancelled.
	Browse(ctx context.Context) (<-chan *ServerService, error)

	// Stop stops all active browsing operations.
	Stop()
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout bounds Find.
	// Default: 5 seconds.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// Version, if non-zero, drops servers speaking another protocol version.
	Version int
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		BrowseTimeout: 5 * time.Second,
	}
}

// MDNSBrowser implements Browser using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig

	mu      sync.Mutex
	cancels []context.CancelFunc
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = DefaultBrowserConfig().BrowseTimeout
	}
	return &MDNSBrowser{config: config}
}

// Browse searches for servers. Entries are aggregated by instance name:
// addresses seen on several interfaces are merged into one service, which
// is emitted once.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *ServerService, error) {
	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancels = append(b.cancels, cancel)
	b.mu.Unlock()

	out := make(chan *ServerService)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)
		agg := newAggregator(b.config.Version)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc, fresh := agg.add(entry)
				if !fresh {
					continue
				}
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					removed = nil
					continue
				}
				agg.remove(entry)

			case <-ctx.Done():
				return
			}
		}
	}()

	go func(removed chan *zeroconf.ServiceEntry) {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, b.browserOptions()...)
	}(removed)

	return out, nil
}

// Find returns the first server whose instance name matches name, or the
// first server at all when name is empty.
func (b *MDNSBrowser) Find(ctx context.Context, name string) (*ServerService, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.BrowseTimeout)
	defer cancel()

	found, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	want := InstanceName(name)
	for svc := range found {
		if name == "" || svc.InstanceName == want {
			return svc, nil
		}
	}
	return nil, ErrNotFound
}

// Stop cancels every Browse started on b.
func (b *MDNSBrowser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, cancel := range b.cancels {
		cancel()
	}
	b.cancels = nil
}

// browserOptions returns zeroconf client options based on config.
func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	// Select specific interface if configured
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}

	return opts
}

// aggregator merges zeroconf entries by instance name.
type aggregator struct {
	version  int
	services map[string]*ServerService
}

func newAggregator(version int) *aggregator {
	return &aggregator{version: version, services: make(map[string]*ServerService)}
}

// add records an entry. It returns the service and whether it is new.
func (a *aggregator) add(entry *zeroconf.ServiceEntry) (*ServerService, bool) {
	svc := entryToServer(entry)
	if svc == nil {
		return nil, false
	}
	if a.version != 0 && svc.Info.Version != a.version {
		return nil, false
	}
	if existing, found := a.services[svc.InstanceName]; found {
		existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
		return existing, false
	}
	a.services[svc.InstanceName] = svc
	return svc, true
}

// remove drops the entry's addresses and forgets the service once none are
// left.
func (a *aggregator) remove(entry *zeroconf.ServiceEntry) {
	existing, found := a.services[entry.Instance]
	if !found {
		return
	}
	existing.Addresses = removeAddresses(existing.Addresses, entry)
	if len(existing.Addresses) == 0 {
		delete(a.services, entry.Instance)
	}
}

// entryToServer converts a zeroconf entry to a ServerService.
func entryToServer(entry *zeroconf.ServiceEntry) *ServerService {
	info, err := DecodeServerTXT(StringsToTXTRecords(entry.Text))
	if err != nil {
		return nil
	}
	info.Name = entry.Instance
	info.Port = uint16(entry.Port)

	// Collect addresses
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	return &ServerService{
		InstanceName: entry.Instance,
		Host:         entry.HostName,
		Port:         uint16(entry.Port),
		Addresses:    addrs,
		Info:         *info,
	}
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}

	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses removes addresses from a zeroconf entry from the list.
func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	toRemove := make(map[string]bool)
	for _, ip := range entry.AddrIPv4 {
		toRemove[ip.String()] = true
	}
	for _, ip := range entry.AddrIPv6 {
		toRemove[ip.String()] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}

// Ensure MDNSBrowser implements Browser interface.
var _ Browser = (*MDNSBrowser)(nil)
