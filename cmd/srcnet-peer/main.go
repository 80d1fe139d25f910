// Command srcnet-peer runs a srcnet server, client, or both (a listen
// server connected to itself over loopback).
//
// Usage:
//
//	srcnet-peer [flags]
//
// Flags:
//
//	-config string     Configuration file path (YAML)
//	-server            Serve on the server socket
//	-connect string    Server to connect to ("host:port" or "loopback")
//	-name string       Player name sent with connect requests
//	-map string        Map reported by the server
//	-port int          Server port
//	-loopback          Do not bind sockets; loopback only
//	-log-level string  Log level: debug, info, warn, error
//	-capture string    Protocol capture file (CBOR)
//	-downloads string  Directory for files received from the server
//	-browse            List LAN servers and exit
//	-interactive       Start the console
//
// Examples:
//
//	# Dedicated server advertised on the LAN
//	srcnet-peer -server -map de_dust2 -config server.yaml
//
//	# Client with a console
//	srcnet-peer -connect 192.168.1.20:27015 -name alice -interactive
//
//	# Listen server with protocol capture
//	srcnet-peer -server -connect loopback -loopback -capture capture.cbor
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/vianraaa/Source.NET-jasu-sub001/cmd/srcnet-peer/interactive"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/config"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/discovery"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/host"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/log"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/transport"
)

// Flags override the configuration file when set.
type Flags struct {
	ConfigFile  string
	Server      bool
	Connect     string
	Name        string
	Map         string
	Port        int
	Loopback    bool
	LogLevel    string
	Capture     string
	Downloads   string
	Browse      bool
	Interactive bool
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.BoolVar(&flags.Server, "server", false, "Serve on the server socket")
	flag.StringVar(&flags.Connect, "connect", "", "Server to connect to (host:port or loopback)")
	flag.StringVar(&flags.Name, "name", "", "Player name sent with connect requests")
	flag.StringVar(&flags.Map, "map", "", "Map reported by the server")
	flag.IntVar(&flags.Port, "port", 0, "Server port")
	flag.BoolVar(&flags.Loopback, "loopback", false, "Do not bind sockets; loopback only")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&flags.Capture, "capture", "", "Protocol capture file (CBOR)")
	flag.StringVar(&flags.Downloads, "downloads", "downloads", "Directory for files received from the server")
	flag.BoolVar(&flags.Browse, "browse", false, "List LAN servers and exit")
	flag.BoolVar(&flags.Interactive, "interactive", false, "Start the console")
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if flags.Browse {
		if err := browse(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file, if any, and applies the flags
// that were set on the command line.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if flags.ConfigFile != "" {
		loaded, err := config.Load(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "server":
			cfg.Server.Enabled = flags.Server
		case "connect":
			cfg.Client.Connect = flags.Connect
		case "name":
			cfg.Client.Name = flags.Name
		case "map":
			cfg.Server.Map = flags.Map
		case "port":
			cfg.Net.ServerPort = flags.Port
		case "loopback":
			cfg.Net.Loopback = flags.Loopback
		case "log-level":
			cfg.Log.Level = flags.LogLevel
		case "capture":
			cfg.Log.Capture = flags.Capture
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var console *interactive.Console
	if flags.Interactive {
		var err error
		console, err = interactive.New()
		if err != nil {
			return err
		}
	}

	var out io.Writer = os.Stderr
	if console != nil {
		out = console.Stderr()
	}
	logger := cfg.NewLogger(out)
	slog.SetDefault(logger)

	plog, closeCapture, err := openCapture(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCapture()

	tr := transport.New(cfg.TransportConfig(logger, plog))
	defer tr.Close()
	if !cfg.Net.Loopback {
		if err := tr.OpenSockets(); err != nil {
			// loopback keeps working without sockets
			logger.Warn("network unavailable", "error", err)
		}
	}

	hc := cfg.HostConfig(tr, logger, plog)
	if cfg.Server.Enabled && cfg.Discovery.Advertise && !cfg.Net.Loopback {
		hc.Advertiser = discovery.NewMDNSAdvertiser(cfg.AdvertiserConfig())
	}
	hc.OnEvent = func(e host.Event) {
		if e.Type == host.EventFileReceived {
			saveDownload(logger, e)
		}
		if console != nil {
			console.HandleEvent(e)
			return
		}
		logEvent(logger, e)
	}

	h, err := host.New(hc)
	if err != nil {
		return err
	}
	if console != nil {
		console.Attach(h)
	}

	addr, err := cfg.ConnectAddress()
	if err != nil {
		return err
	}
	if !addr.IsNull() {
		if err := h.Connect(addr); err != nil {
			return err
		}
	}

	logger.Info("srcnet peer started",
		"server", cfg.Server.Enabled,
		"map", cfg.Server.Map,
		"connect", cfg.Client.Connect)

	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	if console != nil {
		go console.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
	}

	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("goodbye")
	return nil
}

// openCapture returns the protocol logger. With a capture file configured,
// events go to the file (flushed every second) and, at debug level, to the
// operational log.
func openCapture(ctx context.Context, cfg *config.Config, logger *slog.Logger) (log.Logger, func(), error) {
	adapter := log.NewSlogAdapter(logger)
	if cfg.Log.Capture == "" {
		return adapter, func() {}, nil
	}

	fl, err := log.NewFileLogger(cfg.Log.Capture)
	if err != nil {
		return nil, nil, fmt.Errorf("open capture: %w", err)
	}
	flushCtx, stop := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-flushCtx.Done():
				return
			case <-ticker.C:
				if err := fl.Flush(); err != nil {
					logger.Warn("flush capture", "error", err)
				}
			}
		}
	}()

	closeFn := func() {
		stop()
		if err := fl.Close(); err != nil {
			logger.Warn("close capture", "error", err)
		}
		logger.Info("capture written", "file", cfg.Log.Capture, "events", fl.Count())
	}
	return log.NewMultiLogger(fl, adapter), closeFn, nil
}

func logEvent(logger *slog.Logger, e host.Event) {
	attrs := []any{"peer", e.Peer, "remote", e.Remote.String()}
	switch e.Type {
	case host.EventSignOn:
		attrs = append(attrs, "state", e.State.String())
	case host.EventDisconnected, host.EventConnectFailed:
		attrs = append(attrs, "reason", e.Reason)
	case host.EventCommand, host.EventPrint, host.EventConnected:
		attrs = append(attrs, "text", e.Text)
	case host.EventFileReceived, host.EventFileDenied:
		attrs = append(attrs, "file", e.Filename, "transfer", e.TransferID)
	}
	logger.Info(e.Type.String(), attrs...)
}

// saveDownload writes a received file below the downloads directory. The
// channel has already rejected names that could escape it.
func saveDownload(logger *slog.Logger, e host.Event) {
	path := filepath.Join(flags.Downloads, filepath.FromSlash(e.Filename))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Warn("save download", "file", e.Filename, "error", err)
		return
	}
	if err := os.WriteFile(path, e.Data, 0o644); err != nil {
		logger.Warn("save download", "file", e.Filename, "error", err)
		return
	}
	logger.Info("download saved", "file", path, "bytes", len(e.Data))
}

// browse lists the servers answering on the LAN within the browse timeout.
func browse(cfg *config.Config) error {
	bc := cfg.BrowserConfig()
	ctx, cancel := context.WithTimeout(context.Background(), bc.BrowseTimeout)
	defer cancel()

	b := discovery.NewMDNSBrowser(bc)
	defer b.Stop()
	services, err := b.Browse(ctx)
	if err != nil {
		return err
	}

	found := 0
	for svc := range services {
		found++
		addr := svc.Host
		if len(svc.Addresses) > 0 {
			addr = svc.Addresses[0]
		}
		pw := ""
		if svc.Info.Password {
			pw = " (password)"
		}
		fmt.Printf("%-32s %-21s %-16s %d/%d%s\n",
			svc.InstanceName, net.JoinHostPort(addr, strconv.Itoa(int(svc.Port))), svc.Info.Map,
			svc.Info.Players, svc.Info.MaxPlayers, pw)
	}
	if found == 0 {
		fmt.Println("No servers found")
	}
	return nil
}
