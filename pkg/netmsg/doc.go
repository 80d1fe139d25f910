// Package netmsg defines the message framing contract carried inside
// channel payloads.
//
// A payload is a sequence of (6-bit tag, body) pairs read until the bit
// cursor is exhausted. Tags 0-2 are control messages handled inline by the
// channel (NOP, disconnect, file request/deny). Every other tag is looked
// up in a Registry that maps it to a factory and a handler.
//
// Registries are explicit values, not process-wide tables, so independent
// transports can coexist in one process.
package netmsg
