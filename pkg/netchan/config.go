package netchan

import (
	"errors"
	"log/slog"
	"time"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/bufpool"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/compress"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/log"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netadr"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netmsg"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/transport"
)

// Channel errors.
var (
	ErrNoSender         = errors.New("channel has no packet sender")
	ErrInvalidRemote    = errors.New("invalid remote address")
	ErrShutdown         = errors.New("channel shut down")
	ErrReliableOverflow = errors.New("reliable stream overflow")
	ErrInvalidFilename  = errors.New("filename not valid for transfer")
	ErrFileTooLarge     = errors.New("file too large")
	ErrEmptyPayload     = errors.New("empty payload")
)

// DefaultCompressMinSize is the smallest reliable payload considered for
// compression.
const DefaultCompressMinSize = 1024

// Config configures a Channel.
type Config struct {
	// Name labels the channel in logs ("client", "server", ...).
	Name string

	// Role is the socket the channel sends from.
	Role protocol.SocketRole

	// Remote is the peer address.
	Remote netadr.Address

	// Sender puts datagrams on the wire.
	Sender transport.PacketSender

	// Handler receives connection and packet notifications.
	Handler Handler

	// Messages decodes and dispatches non-control messages. A nil registry
	// treats every non-control tag as unknown.
	Messages *netmsg.Registry

	// Timeout is the silence after which IsTimedOut reports true. Negative
	// disables timeouts; zero selects protocol.DefaultTimeout.
	Timeout time.Duration

	// Rate is the pacing rate in bytes per second.
	Rate int

	// MaxReliablePayload bounds the reliable window carried per packet.
	MaxReliablePayload int

	// MaxRoutable is the largest datagram the transport sends unsplit.
	MaxRoutable int

	// DisableChecksum omits the header checksum. Loopback channels never
	// carry one. Both peers must agree.
	DisableChecksum bool

	// Challenge, if non-zero, is carried in every packet and required on
	// every packet once the peer has sent one.
	Challenge uint32

	// Compression is applied to reliable payloads of at least
	// CompressMinSize bytes.
	Compression     compress.Codec
	CompressMinSize int

	// MaxClearTime bounds how far pacing may run ahead of now.
	MaxClearTime time.Duration

	// Pool supplies stream and fragment buffers (default: a private pool).
	Pool *bufpool.Pool

	// Logger for operational logging (default: slog.Default()).
	Logger *slog.Logger

	// Protocol receives capture events (optional).
	Protocol log.Logger

	// Now overrides the clock (tests).
	Now func() time.Time
}

// DefaultConfig returns the default channel configuration.
func DefaultConfig() Config {
	return Config{
		Name:               "channel",
		Timeout:            protocol.DefaultTimeout,
		Rate:               protocol.DefaultRate,
		MaxReliablePayload: protocol.DefaultReliableWindow,
		MaxRoutable:        protocol.MaxRoutable,
		CompressMinSize:    DefaultCompressMinSize,
		MaxClearTime:       protocol.MaxClearTime,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
	if c.Rate == 0 {
		c.Rate = def.Rate
	}
	if c.MaxReliablePayload <= 0 {
		c.MaxReliablePayload = def.MaxReliablePayload
	}
	if c.MaxRoutable <= 0 {
		c.MaxRoutable = def.MaxRoutable
	}
	if c.CompressMinSize <= 0 {
		c.CompressMinSize = def.CompressMinSize
	}
	if c.MaxClearTime == 0 {
		c.MaxClearTime = def.MaxClearTime
	}
	if c.Handler == nil {
		c.Handler = NoopHandler{}
	}
	if c.Pool == nil {
		c.Pool = bufpool.New()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}
