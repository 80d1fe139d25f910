package config

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/compress"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netadr"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netchan"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/protocol"
)

const sample = `
net:
  server_port: 27016
  compression: snappy
channel:
  timeout: 45s
  rate: 30000
  compression: lzss
server:
  enabled: true
  name: "LAN party"
  map: de_dust2
  max_clients: 8
  challenge_ttl: 1m
  files_dir: /srv/maps
client:
  name: frank
  connect: loopback
  retry_initial: 500ms
log:
  level: debug
  format: json
discovery:
  advertise: true
  ttl: 2m
`

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, protocol.DefaultServerPort, c.Net.ServerPort)
	assert.Equal(t, protocol.DefaultTimeout, c.Channel.Timeout)
	assert.False(t, c.Server.Enabled)
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 27016, c.Net.ServerPort)
	// untouched keys keep their defaults
	assert.Equal(t, protocol.DefaultClientPort, c.Net.ClientPort)
	assert.Equal(t, "snappy", c.Net.Compression)
	assert.Equal(t, 45*time.Second, c.Channel.Timeout)
	assert.Equal(t, 30000, c.Channel.Rate)
	assert.True(t, c.Server.Enabled)
	assert.Equal(t, "LAN party", c.Server.Name)
	assert.Equal(t, 8, c.Server.MaxClients)
	assert.Equal(t, time.Minute, c.Server.ChallengeTTL)
	assert.Equal(t, "frank", c.Client.Name)
	assert.Equal(t, 500*time.Millisecond, c.Client.RetryInitial)
	assert.Equal(t, "json", c.Log.Format)
	assert.True(t, c.Discovery.Advertise)
	assert.Equal(t, 2*time.Minute, c.Discovery.TTL)
}

func TestParseEmpty(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"port", "net:\n  server_port: 70000"},
		{"net codec", "net:\n  compression: zstd"},
		{"channel codec", "channel:\n  compression: gzip"},
		{"rate", "channel:\n  rate: 10"},
		{"max clients", "server:\n  max_clients: 256"},
		{"name", "client:\n  name: " + strings.Repeat("x", 33)},
		{"negative duration", "server:\n  challenge_ttl: -1s"},
		{"level", "log:\n  level: loud"},
		{"format", "log:\n  format: xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestParseMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("net: [unterminated"))
	require.Error(t, err)
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "failed to parse YAML", le.Message)
	assert.NotErrorIs(t, err, ErrInvalid)
}

func TestParseBadDuration(t *testing.T) {
	_, err := Parse([]byte("channel:\n  timeout: soon"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "de_dust2", c.Server.Map)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("log:\n  format: xml"), 0o600))
	_, err = Load(bad)
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, bad, le.File)
	assert.Contains(t, err.Error(), bad)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.True(t, errors.As(err, &le))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConverters(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)
	logger := slog.New(slog.DiscardHandler)

	tc := c.TransportConfig(logger, nil)
	assert.Equal(t, 27016, tc.ServerPort)
	assert.Equal(t, compress.CodecSnappy, tc.Compression)
	assert.Equal(t, []protocol.SocketRole{protocol.SocketClient, protocol.SocketServer}, tc.Roles)
	assert.Same(t, logger, tc.Logger)

	cc := c.ChannelConfig(logger, nil)
	assert.Equal(t, 45*time.Second, cc.Timeout)
	assert.Equal(t, 30000, cc.Rate)
	assert.Equal(t, compress.CodecLZSS, cc.Compression)
	assert.Equal(t, netchan.DefaultConfig().MaxRoutable, cc.MaxRoutable)

	hc := c.HostConfig(nil, logger, nil)
	assert.True(t, hc.Server)
	assert.Equal(t, "LAN party", hc.ServerName)
	assert.Equal(t, "frank", hc.PlayerName)
	assert.Equal(t, 8, hc.MaxClients)
	assert.Equal(t, 500*time.Millisecond, hc.Connect.Backoff.Initial)
	assert.NotNil(t, hc.Files)
	assert.Equal(t, 45*time.Second, hc.Channel.Timeout)

	addr, err := c.ConnectAddress()
	require.NoError(t, err)
	assert.True(t, addr.Equal(netadr.Loopback))

	assert.Equal(t, 2*time.Minute, c.AdvertiserConfig().TTL)
	assert.Equal(t, int(protocol.Version), c.BrowserConfig().Version)
}

func TestClientOnlyTransport(t *testing.T) {
	tc := Default().TransportConfig(nil, nil)
	assert.Equal(t, []protocol.SocketRole{protocol.SocketClient}, tc.Roles)

	addr, err := Default().ConnectAddress()
	require.NoError(t, err)
	assert.True(t, addr.IsNull())
}

func TestNewLogger(t *testing.T) {
	c := Default()
	c.Log.Level = "warn"
	c.Log.Format = FormatJSON

	var buf bytes.Buffer
	logger := c.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "peer", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"peer":3`)
}
