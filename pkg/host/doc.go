// Package host drives a transport and the channels on it from a single
// network frame.
//
// # Frame
//
// RunFrame reads every pending datagram of the server role (when serving)
// and of the client role (while connecting or connected). Connectionless
// datagrams (header -1) go to the handshake; everything else is routed by
// (role, source address) to its channel. After input, the frame expires
// challenges, purges stale split reassembly state, drives the client
// handshake, tears down channels that timed out and finally transmits on
// every channel whose rate allows it, marking the others choked.
//
// # Handshake
//
//	client                         server
//	q  version            ->
//	                      <-       A  challenge
//	k  version, challenge, name ->
//	                      <-       B  challenge   (or 9 reason)
//
// The client resends q and k on the connection.Schedule backoff until the
// server answers. Both channels carry the challenge in every packet.
//
// # Sign-on
//
// After accepting, the server sends SignonState(Connected). The client
// moves to each state the server sends and echoes it; every echo of the
// server's current state advances the server one step, until Full.
// ChangeLevel sends every spawned client back through the sequence with a
// new spawn count.
//
// Example usage:
//
//	tr := transport.New(transport.DefaultConfig())
//	if err := tr.OpenSockets(); err != nil {
//		// loopback still works
//	}
//	cfg := host.DefaultConfig()
//	cfg.Transport = tr
//	cfg.Server = true
//	h, _ := host.New(cfg)
//	go h.Run(ctx)
package host
