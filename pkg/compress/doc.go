// Package compress implements the payload codecs carried on the wire.
//
// Every compressed payload starts with a 4-byte little-endian codec id:
//
//   - "LZSS": uint32 uncompressed size, then an LZSS stream with a 4096
//     byte window and 4-bit match lengths.
//   - "SNAP": a snappy block (which carries its own length prefix).
//
// Decoders validate the declared uncompressed size against a caller-supplied
// bound before allocating, and never read or write outside their buffers.
package compress
