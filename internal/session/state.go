// Package session owns the application state of the cloak effect: the
// captured background, the state machine driven by user actions, and the
// live loop that renders cloaked frames.
package session

import (
	"errors"
	"fmt"
)

// State of a cloak session.
type State int

const (
	NoBackground State = iota
	BackgroundReady
	EffectRunning
	Stopped
)

func (s State) String() string {
	switch s {
	case NoBackground:
		return "no background"
	case BackgroundReady:
		return "background ready"
	case EffectRunning:
		return "effect running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event drives a state transition.
type Event int

const (
	// CaptureBackground is a successful background capture.
	CaptureBackground Event = iota
	// StartEffect starts the live loop.
	StartEffect
	// Stop is a user request to end the live loop.
	Stop
	// SourceExhausted ends the live loop when a frame cannot be read.
	SourceExhausted
)

func (e Event) String() string {
	switch e {
	case CaptureBackground:
		return "capture background"
	case StartEffect:
		return "start effect"
	case Stop:
		return "stop"
	case SourceExhausted:
		return "source exhausted"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

var (
	// ErrNoBackground is returned when the effect is started before any
	// background was captured.
	ErrNoBackground = errors.New("no background captured")

	// ErrEffectRunning is returned for actions that need the camera while
	// the live loop holds it.
	ErrEffectRunning = errors.New("cloak effect is running")

	// ErrInvalidTransition is returned for events that make no sense in the
	// current state.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Next returns the state reached from s on event e.
func Next(s State, e Event) (State, error) {
	switch s {
	case NoBackground:
		switch e {
		case CaptureBackground:
			return BackgroundReady, nil
		case StartEffect:
			return s, ErrNoBackground
		}
	case BackgroundReady, Stopped:
		switch e {
		case CaptureBackground:
			return BackgroundReady, nil
		case StartEffect:
			return EffectRunning, nil
		}
	case EffectRunning:
		switch e {
		case Stop, SourceExhausted:
			return Stopped, nil
		case CaptureBackground, StartEffect:
			return s, ErrEffectRunning
		}
	}
	return s, fmt.Errorf("%w: %v in state %v", ErrInvalidTransition, e, s)
}
