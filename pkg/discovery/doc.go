// Package discovery implements mDNS/DNS-SD advertisement of game servers on
// the local network.
//
// A listening server registers one instance of the _srcds._udp service. The
// instance name is the server name, sanitized to a single DNS label. The
// service port is the server's game port, so a browser can connect to the
// first address of an entry without further lookups.
//
// # TXT Records
//
//   - map: current map name
//   - max: maximum player count
//   - pl: current player count (optional)
//   - pv: network protocol version
//   - game: game directory (optional)
//   - pw: "1" when a password is required (optional)
//
// Browsers drop entries whose protocol version differs from their own; the
// handshake would reject them anyway.
package discovery
