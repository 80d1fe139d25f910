// Package netchan implements the per-peer channel protocol: sequenced
// datagrams carrying a reliable byte stream, unreliable messages and voice.
//
// # Packet layout
//
// Every datagram starts with a fixed header:
//
//	int32  outSequence
//	int32  ackSequence (last sequence received from the peer)
//	byte   flags (top 3 bits: tail pad bit count)
//	uint16 checksum (non-loopback only, folded CRC32 of the rest)
//	byte   reliable state (one bit per subchannel)
//	[byte  choked count]   if FlagChoked
//	[int32 challenge]      if FlagChallenge
//
// followed by an optional subchannel block (FlagReliable), unreliable
// message bits, voice bits, and NOP padding up to protocol.MinRoutable.
//
// # Reliability
//
// Reliable data is queued per stream (normal and file) as a list of
// fragment buffers. One of eight subchannels carries a window of fragments
// from the head of a stream. Sending a fresh window flips the subchannel's
// bit in the outgoing reliable state; the peer flips its incoming bit when
// the window arrives. An ack covering the send sequence with a matching bit
// frees the subchannel and credits the fragments. An ack with a
// mismatching bit means the window was lost and it is scheduled again.
// Only one window per stream is in flight, so the reliable stream reaches
// the peer's message layer strictly in order.
//
// # Concurrency
//
// A Channel is owned by the network frame and is not safe for concurrent
// use. Registry is the only shared structure; it hands out handles and
// keeps diagnostics snapshots under a short lock.
package netchan
