package signon

import (
	"errors"
	"fmt"

	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/log"
	"github.com/vianraaa/Source.NET-jasu-sub001/pkg/netmsg"
)

// Sign-on errors.
var (
	ErrInvalidTransition = errors.New("invalid sign-on transition")
	ErrUnknownState      = errors.New("unknown sign-on state")
)

// State is a sign-on state.
type State uint8

const (
	// StateNone means no connection.
	StateNone State = iota

	// StateChallenge means a challenge was requested or issued.
	StateChallenge

	// StateConnected means the channel is up; the client awaits server info.
	StateConnected

	// StateNew means the client received server info and precaches.
	StateNew

	// StatePreSpawn means string tables and baselines are transferred.
	StatePreSpawn

	// StateSpawn means the player entity exists; snapshots may flow.
	StateSpawn

	// StateFull means the client is fully in game.
	StateFull

	// StateChangeLevel means the server is switching maps.
	StateChangeLevel

	numStates
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateChallenge:
		return "CHALLENGE"
	case StateConnected:
		return "CONNECTED"
	case StateNew:
		return "NEW"
	case StatePreSpawn:
		return "PRESPAWN"
	case StateSpawn:
		return "SPAWN"
	case StateFull:
		return "FULL"
	case StateChangeLevel:
		return "CHANGELEVEL"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether s is a defined state.
func (s State) Valid() bool { return s < numStates }

// Next returns the state that follows s in the normal sequence. Full and
// None have no successor.
func (s State) Next() (State, bool) {
	switch s {
	case StateNone:
		return StateChallenge, true
	case StateChangeLevel:
		return StateConnected, true
	case StateFull:
		return StateFull, false
	}
	if !s.Valid() {
		return s, false
	}
	return s + 1, true
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to State) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	switch {
	case to == StateNone:
		// disconnect is always legal
		return true
	case to == StateChangeLevel:
		return from >= StateConnected && from != StateChangeLevel
	case from == StateChangeLevel:
		return to == StateConnected || to == StateNew
	}
	next, ok := from.Next()
	return ok && next == to
}

// Allows reports whether messages of group g are meaningful in state s.
func (s State) Allows(g netmsg.Group) bool {
	switch g {
	case netmsg.GroupGeneric:
		return true
	case netmsg.GroupSignon, netmsg.GroupStringCmd:
		return s >= StateConnected
	case netmsg.GroupStringTable:
		return s >= StateNew && s != StateChangeLevel
	case netmsg.GroupEntities, netmsg.GroupSounds, netmsg.GroupEvents,
		netmsg.GroupEntMessages, netmsg.GroupUserMessages, netmsg.GroupVoice,
		netmsg.GroupLocalPlayer, netmsg.GroupOtherPlayers, netmsg.GroupMove:
		return s == StateSpawn || s == StateFull
	default:
		return false
	}
}

// Machine tracks one peer's sign-on state. It is driven from the network
// frame and is not safe for concurrent use.
type Machine struct {
	state      State
	spawnCount int32

	connID   string
	protocol log.Logger

	onChange func(prev, next State)
}

// NewMachine creates a machine in StateNone. protocol may be nil.
func NewMachine(connID string, protocol log.Logger) *Machine {
	return &Machine{connID: connID, protocol: log.OrNoop(protocol)}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// SpawnCount returns the server spawn count seen with the last transition.
func (m *Machine) SpawnCount() int32 { return m.spawnCount }

// OnChange registers a callback invoked after every transition.
func (m *Machine) OnChange(fn func(prev, next State)) { m.onChange = fn }

// Allows reports whether group g is meaningful in the current state.
func (m *Machine) Allows(g netmsg.Group) bool { return m.state.Allows(g) }

// Transition moves to next. Re-entering the current state is a no-op.
func (m *Machine) Transition(next State, spawnCount int32) error {
	if !next.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownState, next)
	}
	if next == m.state {
		m.spawnCount = spawnCount
		return nil
	}
	if !CanTransition(m.state, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, next)
	}
	old := m.state
	m.state = next
	m.spawnCount = spawnCount

	m.protocol.Log(log.Event{
		ConnectionID: m.connID,
		Layer:        log.LayerChannel,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySignOn,
			OldState: old.String(),
			NewState: next.String(),
		},
	})
	if m.onChange != nil {
		m.onChange(old, next)
	}
	return nil
}

// Advance moves to the successor of the current state.
func (m *Machine) Advance() (State, error) {
	next, ok := m.state.Next()
	if !ok {
		return m.state, fmt.Errorf("%w: no state after %s", ErrInvalidTransition, m.state)
	}
	return next, m.Transition(next, m.spawnCount)
}

// Reset returns to StateNone.
func (m *Machine) Reset() {
	if m.state != StateNone {
		_ = m.Transition(StateNone, 0)
	}
}
