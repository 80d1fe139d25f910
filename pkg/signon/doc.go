// Package signon implements the sign-on state machine a client walks
// through after its channel is established.
//
// States advance strictly in order:
//
//	None -> Challenge -> Connected -> New -> PreSpawn -> Spawn -> Full
//
// ChangeLevel re-enters the sequence at Connected when the server switches
// maps. Each state gates which message groups are meaningful; entity and
// sound traffic, for example, is only valid from Spawn onwards.
//
// Transitions are carried between peers by the net_SignonState message
// (StateMessage), registered on a netmsg.Registry with RegisterMessage.
// The machine does not interpret game semantics; it only validates order.
package signon
