package ingest

import (
	"sync"

	"github.com/yanun0323/errors"

	"market-relay/pkg/exception"
)

// State is the lifecycle stage of the upstream session.
type State uint8

const (
	_state_beg State = iota
	StateDisconnected
	StateConnecting
	StateAuthenticating
	StateSubscribing
	StateStreaming
	StateReconnecting
	StateFailed
	_state_end
)

func (s State) IsAvailable() bool {
	return s > _state_beg && s < _state_end
}

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateSubscribing:
		return "subscribing"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var transitions = map[State][]State{
	StateDisconnected:   {StateConnecting},
	StateConnecting:     {StateAuthenticating, StateReconnecting, StateFailed, StateDisconnected},
	StateAuthenticating: {StateSubscribing, StateReconnecting, StateFailed, StateDisconnected},
	StateSubscribing:    {StateStreaming, StateReconnecting, StateFailed, StateDisconnected},
	StateStreaming:      {StateReconnecting, StateFailed, StateDisconnected},
	StateReconnecting:   {StateConnecting, StateFailed, StateDisconnected},
}

// CanTransition reports whether from -> to is a legal move. Failed is terminal.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StateMachine holds the current State and rejects illegal transitions.
type StateMachine struct {
	mu       sync.RWMutex
	state    State
	onChange func(from, to State)
}

// NewStateMachine creates a machine in StateDisconnected.
func NewStateMachine(onChange func(from, to State)) *StateMachine {
	return &StateMachine{
		state:    StateDisconnected,
		onChange: onChange,
	}
}

func (m *StateMachine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Transition moves to the given state.
func (m *StateMachine) Transition(to State) error {
	m.mu.Lock()
	from := m.state
	if !CanTransition(from, to) {
		m.mu.Unlock()
		return errors.Wrapf(exception.ErrInvalidTransition, "%s -> %s", from, to)
	}
	m.state = to
	m.mu.Unlock()

	if m.onChange != nil {
		m.onChange(from, to)
	}
	return nil
}
