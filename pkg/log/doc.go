// Package log provides protocol capture for the network stack.
//
// It is separate from operational logging (slog): capture produces a
// machine-readable trace of datagrams, channel headers and decoded messages
// for offline analysis with srcnet-log.
//
// # Basic Usage
//
//	// console during development
//	cfg.Protocol = log.NewSlogAdapter(slog.Default())
//
//	// capture file
//	cfg.Protocol, _ = log.NewFileLogger("/var/log/srcnet/server.slog")
//
//	// both
//	cfg.Protocol = log.NewMultiLogger(console, file)
//
// # Layers
//
//   - Transport: datagrams, split fragments, compression (DatagramEvent)
//   - Channel: packet headers, subchannel transitions (PacketEvent, StateChangeEvent)
//   - Message: decoded net messages (MessageEvent)
//
// Inline control messages and errors have dedicated event types.
//
// # File Format
//
// Capture files are a stream of CBOR-encoded events with integer keys.
package log
