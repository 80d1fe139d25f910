// Command srcnet-log is a tool for viewing and analyzing srcnet protocol captures.
//
// Capture files are written by srcnet-peer when started with -capture, or by
// any program that wires a log.FileLogger into its transport and channels.
//
// Usage:
//
//	srcnet-log <command> [flags] <file.cbor>
//
// Commands:
//
//	view     View capture in human-readable format
//	export   Export capture to JSON or CSV format
//	filter   Filter capture and write to new file
//	stats    Show statistics about the capture
//
// Examples:
//
//	# View only channel-layer packets
//	srcnet-log view -layer channel capture.cbor
//
//	# View only incoming net messages named net_StringCmd
//	srcnet-log view -direction in -message net_StringCmd capture.cbor
//
//	# Export to CSV
//	srcnet-log export -format csv -o capture.csv capture.cbor
//
//	# Keep a single client's traffic
//	srcnet-log filter -remote 10.0.0.3:27005 -o client.cbor capture.cbor
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/vianraaa/Source.NET-jasu-sub001/cmd/srcnet-log/commands"
)

const usage = `srcnet-log - srcnet Protocol Capture Analyzer

Usage:
  srcnet-log <command> [flags] <file.cbor>

Commands:
  view     View capture in human-readable format
  export   Export capture to JSON or CSV format
  filter   Filter capture and write to new file
  stats    Show statistics about the capture

Use "srcnet-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func newFlagSet(name, summary string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "srcnet-log %s - %s\n\nUsage:\n  srcnet-log %s [flags] <file.cbor>\n\nFlags:\n", name, summary, name)
		fs.PrintDefaults()
	}
	return fs
}

// pathArg parses args and returns the capture path, exiting on error.
func pathArg(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: capture file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	fs := newFlagSet("view", "View capture in human-readable format")
	layer := fs.String("layer", "", "Filter by layer (transport, channel, message)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (packet, message, control, state, error)")
	message := fs.String("message", "", "Filter by net message name")
	path := pathArg(fs, args)

	filter := commands.ViewFilter{Message: *message}
	if *layer != "" {
		l, err := commands.ParseLayerFlag(*layer)
		if err != nil {
			fail(err)
		}
		filter.Layer = &l
	}
	if *direction != "" {
		d, err := commands.ParseDirectionFlag(*direction)
		if err != nil {
			fail(err)
		}
		filter.Direction = &d
	}
	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fail(err)
		}
		filter.Category = &c
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := newFlagSet("export", "Export capture to JSON or CSV format")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path := pathArg(fs, args)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := newFlagSet("filter", "Filter capture and write to new file")
	var opts commands.FilterOptions
	fs.StringVar(&opts.Output, "o", "", "Output file (required)")
	fs.StringVar(&opts.ConnID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&opts.Channel, "channel", "", "Filter by channel name")
	fs.StringVar(&opts.Remote, "remote", "", "Filter by remote address")
	fs.StringVar(&opts.Message, "message", "", "Filter by net message name")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, channel, message)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (packet, message, control, state, error)")
	path := pathArg(fs, args)

	if opts.Output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	n, err := commands.RunFilter(path, opts)
	if err != nil {
		fail(err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %d events to %s\n", n, opts.Output)
}

func runStats(args []string) {
	fs := newFlagSet("stats", "Show statistics about the capture")
	path := pathArg(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
