// Package authstate tracks whether the client holds a usable session and
// queues the reasons it lost one.
package authstate

import (
	"context"
	"sync"
)

// State is the client's authentication state.
type State int

const (
	// Unauthenticated means no usable access token is held.
	Unauthenticated State = iota
	// Authenticated means a login or refresh succeeded and no session-ending
	// event has been seen since.
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// Event is the reason a session ended on the client.
type Event int

const (
	// SessionExpired means the stored refresh token is missing or was rejected.
	SessionExpired Event = iota + 1
	// CsrfInvalid means the web refresh was rejected for its CSRF value.
	CsrfInvalid
	// SessionNotFound means the server no longer has the session, e.g. after a
	// logout or delete from another device.
	SessionNotFound
	// SessionRevoked means the session row exists but was revoked.
	SessionRevoked
	// Unknown means the refresh failed for a reason the client cannot classify.
	Unknown
)

func (e Event) String() string {
	switch e {
	case SessionExpired:
		return "session_expired"
	case CsrfInvalid:
		return "csrf_invalid"
	case SessionNotFound:
		return "session_not_found"
	case SessionRevoked:
		return "session_revoked"
	case Unknown:
		return "unknown"
	}
	return "invalid"
}

// Sink receives state transitions from the HTTP client.
type Sink interface {
	LoginSucceeded()
	LoggedOut()
	Report(Event)
}

// AccessReader is the part of token storage the machine needs at startup.
type AccessReader interface {
	GetAccess() (string, error)
}

// Machine is the client auth state machine. Every reported event is
// delivered exactly once through Next.
type Machine struct {
	mu      sync.Mutex
	state   State
	queue   []Event
	ready   chan struct{}
	subs    map[int]chan State
	nextSub int
}

// New returns a machine starting in initial.
func New(initial State) *Machine {
	return &Machine{
		state: initial,
		ready: make(chan struct{}, 1),
		subs:  make(map[int]chan State),
	}
}

// FromStorage starts Authenticated when an access token is stored.
func FromStorage(r AccessReader) *Machine {
	access, err := r.GetAccess()
	if err != nil || access == "" {
		return New(Unauthenticated)
	}
	return New(Authenticated)
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LoginSucceeded moves to Authenticated after a login or refresh stored new tokens.
func (m *Machine) LoginSucceeded() { m.transition(Authenticated) }

// LoggedOut moves to Unauthenticated without queuing an event; a user-initiated
// logout is not a session loss.
func (m *Machine) LoggedOut() { m.transition(Unauthenticated) }

// Report moves to Unauthenticated and queues ev for Next.
func (m *Machine) Report(ev Event) {
	m.mu.Lock()
	m.queue = append(m.queue, ev)
	m.mu.Unlock()
	select {
	case m.ready <- struct{}{}:
	default:
	}
	m.transition(Unauthenticated)
}

// Next blocks until an event is queued or ctx is done.
func (m *Machine) Next(ctx context.Context) (Event, error) {
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			ev := m.queue[0]
			m.queue = m.queue[1:]
			more := len(m.queue) > 0
			m.mu.Unlock()
			if more {
				select {
				case m.ready <- struct{}{}:
				default:
				}
			}
			return ev, nil
		}
		m.mu.Unlock()
		select {
		case <-m.ready:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// Subscribe returns a channel carrying the latest state after each change.
// Slow readers only see the most recent state. Call cancel to stop.
func (m *Machine) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()
	return ch, func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Machine) transition(to State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == to {
		return
	}
	m.state = to
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- to
	}
}
