// Package bitbuf implements bit-granular cursors over byte buffers.
//
// Every wire structure of the transport is built on these cursors. Bits are
// packed least-significant first within each byte, so a value written with
// WriteUBits(v, 3) occupies the three low bits of the current byte before
// spilling into the next one.
//
// # Overflow
//
// Neither Writer nor Reader ever panics on out-of-range access. Any read or
// write past the end of the buffer sets a sticky overflow flag, returns zero
// values, and leaves the cursor at the end of the buffer. Callers parsing
// network input must check Overflowed() before trusting what they read.
package bitbuf
