// Package game holds the pieces shared by every timed mini-game: the session
// counters, the one-second countdown, the input and update types, and the
// Controller contract the arcade drives.
package game

import (
	"errors"
	"fmt"
)

// Kind identifies a game.
type Kind string

const (
	KindWhackAMole Kind = "whack-a-mole"
	KindTypingTest Kind = "typing-test"
	KindMemory     Kind = "memory"
)

// Kinds lists every known game.
var Kinds = []Kind{KindWhackAMole, KindTypingTest, KindMemory}

// ParseKind parses a game kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown game kind: %s", s)
}

var (
	// ErrUnknownAction is returned for actions a game does not support.
	ErrUnknownAction = errors.New("unknown action")
)

// ActionType identifies a user action.
type ActionType string

const (
	ActionStart   ActionType = "start"
	ActionRestart ActionType = "restart"
	ActionReset   ActionType = "reset"
	ActionHit     ActionType = "hit"
	ActionInput   ActionType = "input"
	ActionFlip    ActionType = "flip"
)

// Action is a user input. Trusted is set by the transport for input that
// originates from a real user interaction and is never decoded from a payload.
type Action struct {
	Type    ActionType `json:"type"`
	Target  int        `json:"target,omitempty"`
	Text    string     `json:"text,omitempty"`
	Confirm bool       `json:"confirm,omitempty"`
	Trusted bool       `json:"-"`
}

// EventType describes why an Update was emitted.
type EventType string

const (
	EventState EventType = "state"
	EventTick  EventType = "tick"
	EventEnd   EventType = "end"
)

// Summary is the end-of-session report.
type Summary struct {
	Message   string `json:"message"`
	Score     int    `json:"score"`
	Won       bool   `json:"won"`
	NewRecord bool   `json:"newRecord"`
}

// Update is a projection of a game's state.
type Update struct {
	Kind    Kind        `json:"kind"`
	Event   EventType   `json:"event"`
	State   interface{} `json:"state"`
	Summary *Summary    `json:"summary,omitempty"`
}

// Observer receives an Update after every state mutation.
type Observer func(Update)

// Controller owns the state of one game instance. Its methods must be called
// from the goroutine that runs the instance's scheduler callbacks.
type Controller interface {
	Kind() Kind
	// Dispatch applies an action. Input that is not eligible in the current
	// state is ignored without error.
	Dispatch(action Action) error
	// Snapshot returns the current state.
	Snapshot() Update
	// Close cancels every outstanding callback.
	Close()
}

// Rand is the source of randomness used by the games.
type Rand interface {
	Intn(n int) int
}
