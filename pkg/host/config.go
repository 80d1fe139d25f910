package host

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/connection"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/discovery"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/log"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netadr"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netchan"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/transport"
)

// Host errors.
var (
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrNotServer      = errors.New("host is not a server")
	ErrNotConnected   = errors.New("not connected")
	ErrAlreadyStarted = errors.New("host already started")
	ErrStopped        = errors.New("host stopped")
	ErrSendFailed     = errors.New("message did not fit")
)

// Defaults.
const (
	DefaultTickRate     = 66
	DefaultMaxClients   = 16
	DefaultChallengeTTL = 30 * time.Second
	MaxChallenges       = 1024
	MaxPlayerNameLength = 32
)

// Transport is the packet I/O a Host drives. *transport.Transport
// implements it.
type Transport interface {
	transport.PacketSender
	transport.PacketReceiver

	LocalAddr(role protocol.SocketRole) (netadr.Address, bool)
	PurgeSplits() int
}

var _ Transport = (*transport.Transport)(nil)

// Config configures a Host.
type Config struct {
	// Transport carries every datagram. Required.
	Transport Transport

	// Server enables the server role: the host answers challenges and
	// accepts connections on protocol.SocketServer.
	Server bool

	// ServerName, Map and MaxClients describe the server.
	ServerName string
	Map        string
	MaxClients int

	// PlayerName is sent with connect requests.
	PlayerName string

	// TickRate is how many frames Run executes per second.
	TickRate int

	// ChallengeTTL is how long an issued challenge stays valid.
	ChallengeTTL time.Duration

	// Channel is the template for every channel the host creates. Role,
	// Remote, Sender, Handler, Messages and Challenge are filled in per
	// channel.
	Channel netchan.Config

	// Connect tunes the client handshake retries.
	Connect connection.ScheduleConfig

	// Files serves file requests from peers. Nil denies every request.
	Files fs.FS

	// Advertiser, if set, announces the server on the LAN while running.
	Advertiser discovery.Advertiser

	// OnEvent receives host events.
	OnEvent EventHandler

	// Logger for operational logging (default: slog.Default()).
	Logger *slog.Logger

	// Protocol receives capture events (optional).
	Protocol log.Logger

	// Now overrides the clock (tests).
	Now func() time.Time
}

// DefaultConfig returns the default host configuration.
func DefaultConfig() Config {
	return Config{
		ServerName:   "srcnet server",
		Map:          "start",
		MaxClients:   DefaultMaxClients,
		PlayerName:   "player",
		TickRate:     DefaultTickRate,
		ChallengeTTL: DefaultChallengeTTL,
		Channel:      netchan.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Transport == nil {
		return fmt.Errorf("%w: transport is required", ErrInvalidConfig)
	}
	if c.MaxClients < 0 || c.MaxClients > discovery.MaxPlayers {
		return fmt.Errorf("%w: max clients %d", ErrInvalidConfig, c.MaxClients)
	}
	if len(c.PlayerName) > MaxPlayerNameLength {
		return fmt.Errorf("%w: player name longer than %d", ErrInvalidConfig, MaxPlayerNameLength)
	}
	if c.TickRate < 0 {
		return fmt.Errorf("%w: tick rate %d", ErrInvalidConfig, c.TickRate)
	}
	return nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.ServerName == "" {
		c.ServerName = def.ServerName
	}
	if c.Map == "" {
		c.Map = def.Map
	}
	if c.MaxClients == 0 {
		c.MaxClients = def.MaxClients
	}
	if c.PlayerName == "" {
		c.PlayerName = def.PlayerName
	}
	if c.TickRate == 0 {
		c.TickRate = def.TickRate
	}
	if c.ChallengeTTL <= 0 {
		c.ChallengeTTL = def.ChallengeTTL
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}
