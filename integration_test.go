package srcnet_test

import (
	"bytes"
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/compress"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/discovery"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/host"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netadr"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/signon"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/transport"
)

var discard = slog.New(slog.DiscardHandler)

// events collects host events from the run goroutine.
type events struct {
	mu   sync.Mutex
	list []host.Event
}

func (e *events) handle(ev host.Event) {
	ev.Data = bytes.Clone(ev.Data)
	e.mu.Lock()
	e.list = append(e.list, ev)
	e.mu.Unlock()
}

func (e *events) find(t host.EventType) (host.Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ev := range e.list {
		if ev.Type == t {
			return ev, true
		}
	}
	return host.Event{}, false
}

func (e *events) count(t host.EventType) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.list {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// udpTransport opens a single 127.0.0.1 socket on an ephemeral port.
func udpTransport(t *testing.T, role protocol.SocketRole, codec compress.Codec) *transport.Transport {
	t.Helper()
	cfg := transport.DefaultConfig()
	cfg.BindIP = "127.0.0.1"
	cfg.ServerPort = 0
	cfg.ClientPort = 0
	cfg.Roles = []protocol.SocketRole{role}
	cfg.Compression = codec
	cfg.Logger = discard
	tr := transport.New(cfg)
	require.NoError(t, tr.OpenSockets())
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

// runHost runs h until the test ends and returns a cancel that stops it early.
func runHost(t *testing.T, h *host.Host) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

type peerPair struct {
	server, client             *host.Host
	serverEvents, clientEvents *events
	serverAddr                 netadr.Address
	stopServer                 context.CancelFunc
}

func startPair(t *testing.T, configure func(server, client *host.Config)) *peerPair {
	t.Helper()
	p := &peerPair{serverEvents: &events{}, clientEvents: &events{}}

	str := udpTransport(t, protocol.SocketServer, compress.CodecSnappy)
	addr, ok := str.LocalAddr(protocol.SocketServer)
	require.True(t, ok)
	p.serverAddr = addr

	scfg := host.DefaultConfig()
	scfg.Transport = str
	scfg.Server = true
	scfg.ServerName = "e2e"
	scfg.Map = "de_dust"
	scfg.Logger = discard
	scfg.OnEvent = p.serverEvents.handle

	ccfg := host.DefaultConfig()
	ccfg.Transport = udpTransport(t, protocol.SocketClient, compress.CodecLZSS)
	ccfg.PlayerName = "alice"
	ccfg.Logger = discard
	ccfg.OnEvent = p.clientEvents.handle

	if configure != nil {
		configure(&scfg, &ccfg)
	}

	var err error
	p.server, err = host.New(scfg)
	require.NoError(t, err)
	p.client, err = host.New(ccfg)
	require.NoError(t, err)

	p.stopServer = runHost(t, p.server)
	runHost(t, p.client)
	return p
}

func (p *peerPair) signOn(t *testing.T) {
	t.Helper()
	require.NoError(t, p.client.Connect(p.serverAddr))
	require.Eventually(t, func() bool {
		return p.client.ClientSignOn() == signon.StateFull
	}, 5*time.Second, 10*time.Millisecond, "client never reached FULL")
}

// TestE2E_UDPSignOn runs the whole handshake and sign-on over real sockets.
func TestE2E_UDPSignOn(t *testing.T) {
	p := startPair(t, nil)
	p.signOn(t)

	require.Eventually(t, func() bool {
		peers := p.server.Peers()
		return len(peers) == 1 && peers[0].SignOn == signon.StateFull
	}, 2*time.Second, 10*time.Millisecond)

	info := p.server.Peers()[0]
	assert.Equal(t, "alice", info.Player)
	assert.Equal(t, protocol.SocketServer, info.Role)
}

// TestE2E_CommandAndPrint exchanges reliable messages in both directions.
func TestE2E_CommandAndPrint(t *testing.T) {
	p := startPair(t, nil)
	p.signOn(t)

	require.NoError(t, p.client.SendCommand("say hello"))
	require.Eventually(t, func() bool {
		ev, ok := p.serverEvents.find(host.EventCommand)
		return ok && ev.Text == "say hello"
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool { return p.server.Broadcast("welcome") == 1 },
		2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		ev, ok := p.clientEvents.find(host.EventPrint)
		return ok && ev.Text == "welcome"
	}, 2*time.Second, 10*time.Millisecond)
}

// TestE2E_FileTransfer moves a file larger than one datagram, so it is
// fragmented by the channel and split by the transport.
func TestE2E_FileTransfer(t *testing.T) {
	data := make([]byte, 200*1024)
	rng := rand.New(rand.NewPCG(1, 2))
	for i := range data {
		// half random, half runs so the compressor has something to do
		if i%2 == 0 {
			data[i] = byte(rng.IntN(256))
		}
	}

	p := startPair(t, func(server, _ *host.Config) {
		server.Files = fstest.MapFS{"maps/de_dust.bsp": {Data: data}}
	})
	p.signOn(t)

	_, err := p.client.RequestFile("maps/de_dust.bsp")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := p.clientEvents.find(host.EventFileReceived)
		return ok
	}, 10*time.Second, 20*time.Millisecond, "file never arrived")

	ev, _ := p.clientEvents.find(host.EventFileReceived)
	assert.Equal(t, "maps/de_dust.bsp", ev.Filename)
	assert.Equal(t, data, ev.Data)
}

// TestE2E_Reconnection disconnects the client and signs on again with a
// fresh channel.
func TestE2E_Reconnection(t *testing.T) {
	p := startPair(t, nil)
	p.signOn(t)

	p.client.Disconnect("brb")
	require.Eventually(t, func() bool { return len(p.server.Peers()) == 0 },
		2*time.Second, 10*time.Millisecond, "server kept the channel")

	p.signOn(t)
	require.Eventually(t, func() bool { return len(p.server.Peers()) == 1 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, p.serverEvents.count(host.EventConnected))
}

// TestE2E_ServerShutdown checks that stopping the server notifies the client.
func TestE2E_ServerShutdown(t *testing.T) {
	p := startPair(t, nil)
	p.signOn(t)

	p.stopServer()
	require.Eventually(t, func() bool {
		ev, ok := p.clientEvents.find(host.EventDisconnected)
		return ok && ev.Reason == host.ReasonShutdown
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, signon.StateNone, p.client.ClientSignOn())
}

// TestE2E_Discovery advertises a running server over mDNS and finds it.
func TestE2E_Discovery(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	advertiser := discovery.NewMDNSAdvertiser(discovery.DefaultAdvertiserConfig())
	p := startPair(t, func(server, _ *host.Config) {
		server.ServerName = "E2E Arena"
		server.Advertiser = advertiser
	})

	browser := discovery.NewMDNSBrowser(discovery.BrowserConfig{
		BrowseTimeout: 5 * time.Second,
		Version:       protocol.Version,
	})
	defer browser.Stop()

	found, err := browser.Find(context.Background(), "E2E Arena")
	require.NoError(t, err)
	assert.Equal(t, p.serverAddr.Port(), found.Port)
	assert.Equal(t, "de_dust", found.Info.Map)
	assert.Equal(t, protocol.Version, found.Info.Version)
	assert.Equal(t, 0, found.Info.Players)
}
