// Package transport owns the UDP sockets and moves datagrams between them
// and the channel layer.
//
// The transport handles:
//   - One UDP socket per logical role (client, server, relay proxy)
//   - In-process loopback between the client and server roles
//   - Reassembly of inbound split packets
//   - Decompression of inbound compressed packets
//   - Compression and splitting of outbound packets
//
// It keeps no per-peer reliability state; that lives in package netchan.
//
// # Stack
//
//	┌────────────────────────────────┐
//	│   Net messages (netmsg)        │
//	├────────────────────────────────┤
//	│   Reliability (netchan)        │
//	├────────────────────────────────┤
//	│   Split / compress (-2 / -3)   │
//	├────────────────────────────────┤
//	│           UDP                  │
//	└────────────────────────────────┘
//
// # Scheduling
//
// Each socket has a reader goroutine that only copies datagrams into a
// bounded queue. Everything else (reassembly, decompression, dispatch) runs
// on the caller's tick through the non-blocking Receive.
package transport
