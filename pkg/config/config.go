// Package config loads the YAML configuration of a srcnet peer and turns it
// into the configuration structs of the transport, channel, host and
// discovery packages.
//
// Durations are YAML duration strings ("30s", "1m30s"). Omitted keys keep
// their defaults.
//
//	net:
//	  ip: 0.0.0.0
//	  server_port: 27015
//	  compression: lzss
//	channel:
//	  timeout: 30s
//	  rate: 80000
//	server:
//	  enabled: true
//	  name: "LAN party"
//	  map: de_dust2
//	  max_clients: 16
//	log:
//	  level: debug
//	  capture: /var/log/srcnet/capture.cbor
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/compress"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/connection"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/discovery"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/host"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/log"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netadr"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netchan"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/transport"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the configuration file.
type Config struct {
	Net       NetConfig       `yaml:"net"`
	Channel   ChannelConfig   `yaml:"channel"`
	Server    ServerConfig    `yaml:"server"`
	Client    ClientConfig    `yaml:"client"`
	Log       LogConfig       `yaml:"log"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// NetConfig configures sockets.
type NetConfig struct {
	// IP is the local IPv4 address to bind (empty for all interfaces).
	IP string `yaml:"ip,omitempty"`

	ServerPort  int `yaml:"server_port"`
	ClientPort  int `yaml:"client_port"`
	PortRetries int `yaml:"port_retries"`
	QueueSize   int `yaml:"queue_size"`

	// Compression is the datagram codec: none, lzss or snappy.
	Compression     string `yaml:"compression"`
	CompressMinSize int    `yaml:"compress_min_size"`

	// Loopback skips binding sockets.
	Loopback bool `yaml:"loopback,omitempty"`
}

// ChannelConfig configures every channel.
type ChannelConfig struct {
	Timeout            time.Duration `yaml:"timeout"`
	Rate               int           `yaml:"rate"`
	MaxReliablePayload int           `yaml:"max_reliable_payload"`
	MaxRoutable        int           `yaml:"max_routable"`
	MaxClearTime       time.Duration `yaml:"max_clear_time"`
	DisableChecksum    bool          `yaml:"disable_checksum,omitempty"`

	// Compression is the reliable payload codec: none, lzss or snappy.
	Compression     string `yaml:"compression"`
	CompressMinSize int    `yaml:"compress_min_size"`
}

// ServerConfig configures the server role.
type ServerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Name         string        `yaml:"name"`
	Map          string        `yaml:"map"`
	MaxClients   int           `yaml:"max_clients"`
	TickRate     int           `yaml:"tick_rate"`
	ChallengeTTL time.Duration `yaml:"challenge_ttl"`

	// FilesDir is served to clients requesting files. Empty denies all.
	FilesDir string `yaml:"files_dir,omitempty"`
}

// ClientConfig configures the client role.
type ClientConfig struct {
	Name string `yaml:"name"`

	// Connect is the server to connect to on start ("host:port" or
	// "loopback"). Empty stays idle.
	Connect string `yaml:"connect,omitempty"`

	MaxAttempts  int           `yaml:"max_attempts"`
	RetryInitial time.Duration `yaml:"retry_initial"`
	RetryMax     time.Duration `yaml:"retry_max"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`

	// Capture is the protocol capture file. Empty disables capture.
	Capture string `yaml:"capture,omitempty"`
}

// DiscoveryConfig configures LAN advertisement and browsing.
type DiscoveryConfig struct {
	Advertise     bool          `yaml:"advertise"`
	Interface     string        `yaml:"interface,omitempty"`
	TTL           time.Duration `yaml:"ttl"`
	BrowseTimeout time.Duration `yaml:"browse_timeout"`
}

// Default returns the default configuration.
func Default() *Config {
	tc := transport.DefaultConfig()
	cc := netchan.DefaultConfig()
	hc := host.DefaultConfig()
	ac := discovery.DefaultAdvertiserConfig()
	bc := discovery.DefaultBrowserConfig()
	return &Config{
		Net: NetConfig{
			ServerPort:      tc.ServerPort,
			ClientPort:      tc.ClientPort,
			PortRetries:     tc.PortRetries,
			QueueSize:       tc.QueueSize,
			Compression:     "none",
			CompressMinSize: tc.CompressMinSize,
		},
		Channel: ChannelConfig{
			Timeout:            cc.Timeout,
			Rate:               cc.Rate,
			MaxReliablePayload: cc.MaxReliablePayload,
			MaxRoutable:        cc.MaxRoutable,
			MaxClearTime:       cc.MaxClearTime,
			Compression:        "none",
			CompressMinSize:    cc.CompressMinSize,
		},
		Server: ServerConfig{
			Name:         hc.ServerName,
			Map:          hc.Map,
			MaxClients:   hc.MaxClients,
			TickRate:     hc.TickRate,
			ChallengeTTL: hc.ChallengeTTL,
		},
		Client: ClientConfig{
			Name:         hc.PlayerName,
			MaxAttempts:  connection.DefaultMaxAttempts,
			RetryInitial: connection.InitialBackoff,
			RetryMax:     connection.MaxBackoff,
		},
		Log: LogConfig{
			Level:  "info",
			Format: FormatText,
		},
		Discovery: DiscoveryConfig{
			TTL:           ac.TTL,
			BrowseTimeout: bc.BrowseTimeout,
		},
	}
}

// Parse parses YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if err := c.Validate(); err != nil {
		return nil, &LoadError{Message: err.Error(), Cause: err}
	}
	return c, nil
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	c, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
		}
		return nil, err
	}
	return c, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	for _, p := range []struct {
		name string
		port int
	}{
		{"net.server_port", c.Net.ServerPort},
		{"net.client_port", c.Net.ClientPort},
	} {
		if p.port < 0 || p.port > 65535 {
			return fmt.Errorf("%w: %s %d out of range", ErrInvalid, p.name, p.port)
		}
	}
	if _, err := compress.ParseCodec(c.Net.Compression); err != nil {
		return fmt.Errorf("%w: net.compression: %w", ErrInvalid, err)
	}
	if _, err := compress.ParseCodec(c.Channel.Compression); err != nil {
		return fmt.Errorf("%w: channel.compression: %w", ErrInvalid, err)
	}
	if c.Channel.Rate != 0 && (c.Channel.Rate < protocol.MinRate || c.Channel.Rate > protocol.MaxRate) {
		return fmt.Errorf("%w: channel.rate %d not in [%d, %d]", ErrInvalid, c.Channel.Rate, protocol.MinRate, protocol.MaxRate)
	}
	if c.Server.MaxClients < 0 || c.Server.MaxClients > discovery.MaxPlayers {
		return fmt.Errorf("%w: server.max_clients %d", ErrInvalid, c.Server.MaxClients)
	}
	if c.Server.TickRate < 0 {
		return fmt.Errorf("%w: server.tick_rate %d", ErrInvalid, c.Server.TickRate)
	}
	if len(c.Client.Name) > host.MaxPlayerNameLength {
		return fmt.Errorf("%w: client.name longer than %d", ErrInvalid, host.MaxPlayerNameLength)
	}
	for _, d := range []struct {
		name string
		d    time.Duration
	}{
		{"server.challenge_ttl", c.Server.ChallengeTTL},
		{"client.retry_initial", c.Client.RetryInitial},
		{"client.retry_max", c.Client.RetryMax},
		{"discovery.ttl", c.Discovery.TTL},
		{"discovery.browse_timeout", c.Discovery.BrowseTimeout},
	} {
		if d.d < 0 {
			return fmt.Errorf("%w: %s is negative", ErrInvalid, d.name)
		}
	}
	if _, err := c.Level(); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalid, err)
	}
	if c.Log.Format != FormatText && c.Log.Format != FormatJSON {
		return fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// Level returns the configured slog level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.Log.Level))
	return level, err
}

// NewLogger returns a slog logger writing to w in the configured format.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := c.Level()
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// TransportConfig returns the transport configuration.
func (c *Config) TransportConfig(logger *slog.Logger, plog log.Logger) transport.Config {
	tc := transport.DefaultConfig()
	tc.BindIP = c.Net.IP
	tc.ServerPort = c.Net.ServerPort
	tc.ClientPort = c.Net.ClientPort
	if c.Net.PortRetries > 0 {
		tc.PortRetries = c.Net.PortRetries
	}
	if c.Net.QueueSize > 0 {
		tc.QueueSize = c.Net.QueueSize
	}
	tc.Compression, _ = compress.ParseCodec(c.Net.Compression)
	if c.Net.CompressMinSize > 0 {
		tc.CompressMinSize = c.Net.CompressMinSize
	}
	tc.Roles = []protocol.SocketRole{protocol.SocketClient}
	if c.Server.Enabled {
		tc.Roles = append(tc.Roles, protocol.SocketServer)
	}
	tc.Logger = logger
	tc.Protocol = plog
	return tc
}

// ChannelConfig returns the channel template. Zero values keep the
// package defaults.
func (c *Config) ChannelConfig(logger *slog.Logger, plog log.Logger) netchan.Config {
	cc := netchan.DefaultConfig()
	if c.Channel.Timeout != 0 {
		cc.Timeout = c.Channel.Timeout
	}
	if c.Channel.Rate != 0 {
		cc.Rate = c.Channel.Rate
	}
	if c.Channel.MaxReliablePayload > 0 {
		cc.MaxReliablePayload = c.Channel.MaxReliablePayload
	}
	if c.Channel.MaxRoutable > 0 {
		cc.MaxRoutable = c.Channel.MaxRoutable
	}
	if c.Channel.MaxClearTime != 0 {
		cc.MaxClearTime = c.Channel.MaxClearTime
	}
	cc.DisableChecksum = c.Channel.DisableChecksum
	cc.Compression, _ = compress.ParseCodec(c.Channel.Compression)
	if c.Channel.CompressMinSize > 0 {
		cc.CompressMinSize = c.Channel.CompressMinSize
	}
	cc.Logger = logger
	cc.Protocol = plog
	return cc
}

// HostConfig returns the host configuration for tr.
func (c *Config) HostConfig(tr host.Transport, logger *slog.Logger, plog log.Logger) host.Config {
	hc := host.DefaultConfig()
	hc.Transport = tr
	hc.Server = c.Server.Enabled
	hc.ServerName = c.Server.Name
	hc.Map = c.Server.Map
	hc.MaxClients = c.Server.MaxClients
	hc.TickRate = c.Server.TickRate
	hc.ChallengeTTL = c.Server.ChallengeTTL
	hc.PlayerName = c.Client.Name
	hc.Channel = c.ChannelConfig(logger, plog)
	hc.Connect = connection.ScheduleConfig{
		MaxAttempts: c.Client.MaxAttempts,
		Backoff: connection.BackoffConfig{
			Initial: c.Client.RetryInitial,
			Max:     c.Client.RetryMax,
		},
	}
	if c.Server.FilesDir != "" {
		hc.Files = os.DirFS(c.Server.FilesDir)
	}
	hc.Logger = logger
	hc.Protocol = plog
	return hc
}

// ConnectAddress resolves client.connect. The zero Address means no
// connect on start.
func (c *Config) ConnectAddress() (netadr.Address, error) {
	return netadr.Parse(c.Client.Connect)
}

// AdvertiserConfig returns the LAN advertiser configuration.
func (c *Config) AdvertiserConfig() discovery.AdvertiserConfig {
	ac := discovery.DefaultAdvertiserConfig()
	ac.Interface = c.Discovery.Interface
	if c.Discovery.TTL > 0 {
		ac.TTL = c.Discovery.TTL
	}
	return ac
}

// BrowserConfig returns the LAN browser configuration. Only servers
// speaking this protocol version are reported.
func (c *Config) BrowserConfig() discovery.BrowserConfig {
	bc := discovery.DefaultBrowserConfig()
	bc.Interface = c.Discovery.Interface
	bc.Version = protocol.Version
	if c.Discovery.BrowseTimeout > 0 {
		bc.BrowseTimeout = c.Discovery.BrowseTimeout
	}
	return bc
}

// LoadError describes a configuration that failed to load.
type LoadError struct {
	// File is the path of the configuration file, if any.
	File string

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	if e.File == "" {
		return e.Message
	}
	return e.File + ": " + e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
