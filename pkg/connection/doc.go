// Package connection schedules the connectionless handshake a client runs
// before it has a channel.
//
// A client asks the server for a challenge ('q'), then sends a connect
// request ('k') carrying it. Either datagram may be lost, so each phase is
// retried on a schedule:
//
//  1. First attempt immediately
//  2. Retries after 1.5s, 3s, 6s, ... capped at 12s
//  3. Each delay is jittered by up to 25%
//  4. After MaxAttempts attempts in one phase the connect fails
//
// Receiving the challenge moves the schedule to the connect phase and resets
// the attempt count. The schedule is driven by the host tick: it never
// sleeps or starts goroutines.
package connection
