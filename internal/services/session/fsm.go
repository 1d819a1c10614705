package session

import (
	"errors"
	"fmt"
)

type State string

const (
	StateIdle            State = "idle"
	StateAwaitingEntries State = "awaiting_entries"
)

type Event string

const (
	EventStart   Event = "start"
	EventInput   Event = "input"
	EventDone    Event = "done"
	EventCancel  Event = "cancel"
	EventTimeout Event = "timeout"
)

var ErrInvalidTransition = errors.New("invalid wizard transition")

// transitions is the whole wizard graph. Start from awaiting_entries restarts
// the wizard for a new target.
var transitions = map[State]map[Event]State{
	StateIdle: {
		EventStart: StateAwaitingEntries,
	},
	StateAwaitingEntries: {
		EventStart:   StateAwaitingEntries,
		EventInput:   StateAwaitingEntries,
		EventDone:    StateIdle,
		EventCancel:  StateIdle,
		EventTimeout: StateIdle,
	},
}

func Next(from State, event Event) (State, error) {
	if to, ok := transitions[from][event]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, from)
}
