// Package interactive provides the srcnet-peer console.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/host"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netadr"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netmsg"
)

// Host is the part of *host.Host the console drives.
type Host interface {
	Connect(server netadr.Address) error
	Disconnect(reason string)
	SendCommand(cmd string) error
	SetConVars(vars ...netmsg.ConVar) error
	RequestFile(name string) (uint32, error)
	Print(id netmsg.ChannelID, text string) error
	Broadcast(text string) int
	Kick(id netmsg.ChannelID, reason string) error
	ChangeLevel(mapName string) error
	Map() string
	Peers() []host.PeerInfo
}

var _ Host = (*host.Host)(nil)

// Console reads commands from the terminal and prints host events.
type Console struct {
	h   Host
	rl  *readline.Instance
	out io.Writer
}

// New creates a console on the terminal.
func New() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "srcnet> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{rl: rl, out: rl.Stdout()}, nil
}

// Attach sets the host the console drives. It must be called before Run.
func (c *Console) Attach(h Host) { c.h = h }

// Stdout returns a writer that does not disturb the prompt.
func (c *Console) Stdout() io.Writer { return c.rl.Stdout() }

// Stderr returns a writer that does not disturb the prompt.
func (c *Console) Stderr() io.Writer { return c.rl.Stderr() }

// Run reads commands until the user quits or ctx is cancelled.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
		if c.Execute(line) {
			cancel()
			return
		}
	}
}

// Execute runs one console line and reports whether the user quit.
func (c *Console) Execute(line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}
	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(input, parts[0]))

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "status", "st":
		c.cmdStatus()
	case "connect":
		c.cmdConnect(args)
	case "disconnect":
		c.h.Disconnect(rest)
	case "cmd", "c":
		c.report(c.h.SendCommand(rest))
	case "set":
		c.cmdSet(args)
	case "get":
		c.cmdGet(args)
	case "say":
		fmt.Fprintf(c.out, "Sent to %d clients\n", c.h.Broadcast(rest))
	case "tell":
		c.cmdTell(args)
	case "kick":
		c.cmdKick(args)
	case "map":
		c.cmdMap(args)
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

// HandleEvent prints a host event.
func (c *Console) HandleEvent(e host.Event) {
	switch e.Type {
	case host.EventConnected:
		if e.Text != "" {
			fmt.Fprintf(c.out, "[%d] %s connected from %s\n", e.Peer, e.Text, e.Remote)
		} else {
			fmt.Fprintf(c.out, "Connected to %s\n", e.Remote)
		}
	case host.EventDisconnected:
		fmt.Fprintf(c.out, "[%d] disconnected: %s\n", e.Peer, e.Reason)
	case host.EventConnectFailed:
		fmt.Fprintf(c.out, "Connect to %s failed: %s\n", e.Remote, e.Reason)
	case host.EventSignOn:
		fmt.Fprintf(c.out, "[%d] sign-on %s\n", e.Peer, e.State)
	case host.EventCommand:
		fmt.Fprintf(c.out, "[%d] > %s\n", e.Peer, e.Text)
	case host.EventPrint:
		fmt.Fprint(c.out, e.Text)
		if !strings.HasSuffix(e.Text, "\n") {
			fmt.Fprintln(c.out)
		}
	case host.EventFileReceived:
		fmt.Fprintf(c.out, "Received %s (%d bytes)\n", e.Filename, len(e.Data))
	case host.EventFileDenied:
		fmt.Fprintf(c.out, "Denied %s\n", e.Filename)
	case host.EventTimingOut:
		fmt.Fprintf(c.out, "[%d] connection problem with %s\n", e.Peer, e.Remote)
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
srcnet Commands:
  Client:
    connect <addr>       - Connect to a server (host:port or loopback)
    disconnect [reason]  - Drop the connection
    cmd <text>           - Send a string command to the server
    set <name> <value>   - Replicate a console variable (rate, name)
    get <file>           - Request a file from the server

  Server:
    status               - List channels
    say <text>           - Print to every client
    tell <id> <text>     - Print to one client
    kick <id> [reason]   - Disconnect a client
    map <name>           - Change level

  General:
    help                 - Show this help
    quit                 - Exit`)
}

func (c *Console) report(err error) {
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
}

func (c *Console) cmdStatus() {
	peers := c.h.Peers()
	fmt.Fprintf(c.out, "map: %s  channels: %d\n", c.h.Map(), len(peers))
	for _, p := range peers {
		fmt.Fprintf(c.out, "  [%d] %-6s %-16s %-21s %-10s latency %v loss %.0f%% choke %.0f%%\n",
			p.ID, p.Role, p.Player, p.Remote, p.SignOn,
			p.Latency, p.Loss*100, p.Choke*100)
	}
}

func (c *Console) cmdConnect(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: connect <addr>")
		return
	}
	addr, err := netadr.Parse(args[0])
	if err != nil {
		c.report(err)
		return
	}
	c.report(c.h.Connect(addr))
}

func (c *Console) cmdSet(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: set <name> <value>")
		return
	}
	c.report(c.h.SetConVars(netmsg.ConVar{Name: args[0], Value: strings.Join(args[1:], " ")}))
}

func (c *Console) cmdGet(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: get <file>")
		return
	}
	id, err := c.h.RequestFile(args[0])
	if err != nil {
		c.report(err)
		return
	}
	fmt.Fprintf(c.out, "Requested %s (transfer %d)\n", args[0], id)
}

func (c *Console) cmdTell(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: tell <id> <text>")
		return
	}
	id, ok := c.parseID(args[0])
	if !ok {
		return
	}
	c.report(c.h.Print(id, strings.Join(args[1:], " ")))
}

func (c *Console) cmdKick(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "Usage: kick <id> [reason]")
		return
	}
	id, ok := c.parseID(args[0])
	if !ok {
		return
	}
	c.report(c.h.Kick(id, strings.Join(args[1:], " ")))
}

func (c *Console) cmdMap(args []string) {
	if len(args) != 1 {
		fmt.Fprintf(c.out, "Current map: %s\n", c.h.Map())
		return
	}
	c.report(c.h.ChangeLevel(args[0]))
}

func (c *Console) parseID(s string) (netmsg.ChannelID, bool) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		fmt.Fprintf(c.out, "Invalid id: %s\n", s)
		return 0, false
	}
	return netmsg.ChannelID(n), true
}
