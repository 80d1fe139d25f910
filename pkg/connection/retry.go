package connection

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Schedule errors.
var (
	ErrRetriesExhausted = errors.New("connect attempts exhausted")
	ErrNotRunning       = errors.New("connect schedule not running")
	ErrRejected         = errors.New("connect rejected")
)

// DefaultMaxAttempts is the number of attempts per phase.
const DefaultMaxAttempts = 4

// State is the handshake phase of a client.
type State uint8

const (
	// StateIdle means no connect is in progress.
	StateIdle State = iota

	// StateChallenging sends get-challenge requests.
	StateChallenging

	// StateConnecting sends connect requests carrying the challenge.
	StateConnecting

	// StateConnected means the server accepted; a channel exists.
	StateConnected

	// StateFailed means the server rejected us or stopped answering.
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateChallenging:
		return "CHALLENGING"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ScheduleConfig configures a Schedule.
type ScheduleConfig struct {
	// MaxAttempts per phase (default DefaultMaxAttempts).
	MaxAttempts int

	Backoff BackoffConfig
}

// Schedule decides when a client resends its handshake datagrams. It is
// polled from the host tick with the current time.
type Schedule struct {
	mu sync.Mutex

	state       State
	backoff     *Backoff
	maxAttempts int
	attempts    int
	next        time.Time
	err         error

	onStateChange func(prev, next State)
}

// NewSchedule creates an idle schedule.
func NewSchedule(cfg ScheduleConfig) *Schedule {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Schedule{
		backoff:     NewBackoffWithConfig(cfg.Backoff),
		maxAttempts: cfg.MaxAttempts,
	}
}

// OnStateChange sets a callback invoked after every state change.
func (s *Schedule) OnStateChange(fn func(prev, next State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChange = fn
}

// State returns the current phase.
func (s *Schedule) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attempts returns the attempts made in the current phase.
func (s *Schedule) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Err returns why the schedule failed, or nil.
func (s *Schedule) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// NextAttempt returns when the next attempt is due.
func (s *Schedule) NextAttempt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// Start begins the challenge phase with an attempt due at now.
func (s *Schedule) Start(now time.Time) {
	s.enter(StateChallenging, now, nil)
}

// ChallengeReceived moves to the connect phase with an attempt due at now.
func (s *Schedule) ChallengeReceived(now time.Time) error {
	if st := s.State(); st != StateChallenging && st != StateConnecting {
		return fmt.Errorf("%w: %s", ErrNotRunning, st)
	}
	s.enter(StateConnecting, now, nil)
	return nil
}

// Connected marks the handshake complete.
func (s *Schedule) Connected() {
	s.enter(StateConnected, time.Time{}, nil)
}

// Reject fails the schedule with the server's reason.
func (s *Schedule) Reject(reason string) {
	s.enter(StateFailed, time.Time{}, fmt.Errorf("%w: %s", ErrRejected, reason))
}

// Stop returns to idle.
func (s *Schedule) Stop() {
	s.enter(StateIdle, time.Time{}, nil)
}

// Due reports whether an attempt should be sent at now. When it returns
// true the attempt is recorded and the next one scheduled. Once the phase's
// attempts are used up the schedule fails with ErrRetriesExhausted and Due
// returns false.
func (s *Schedule) Due(now time.Time) bool {
	s.mu.Lock()
	if s.state != StateChallenging && s.state != StateConnecting {
		s.mu.Unlock()
		return false
	}
	if now.Before(s.next) {
		s.mu.Unlock()
		return false
	}
	if s.attempts >= s.maxAttempts {
		phase := s.state
		s.mu.Unlock()
		s.enter(StateFailed, time.Time{}, fmt.Errorf("%w: %d attempts while %s", ErrRetriesExhausted, s.maxAttempts, phase))
		return false
	}
	s.attempts++
	s.next = now.Add(s.backoff.Next())
	s.mu.Unlock()
	return true
}

func (s *Schedule) enter(state State, now time.Time, err error) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.attempts = 0
	s.next = now
	s.err = err
	s.backoff.Reset()
	fn := s.onStateChange
	s.mu.Unlock()

	if fn != nil && prev != state {
		fn(prev, state)
	}
}
