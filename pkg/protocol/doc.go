// Package protocol defines the wire constants shared by the transport and
// channel layers.
//
// # Datagram Layout
//
//	┌──────────────────────────────────────────────┐
//	│ int32 outSequence | int32 ackSequence        │
//	├──────────────────────────────────────────────┤
//	│ byte flags | uint16 checksum | byte relState │
//	├──────────────────────────────────────────────┤
//	│ [byte choked] [int32 challenge]              │
//	├──────────────────────────────────────────────┤
//	│ [reliable subchannel block]                  │
//	├──────────────────────────────────────────────┤
//	│ unreliable messages | [voice]                │
//	└──────────────────────────────────────────────┘
//
// Datagrams whose first int32 is -1 are connectionless, -2 split fragments,
// and -3 compressed.
package protocol
