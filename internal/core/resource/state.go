package resource

import (
	"errors"
	"time"
)

// State is the display state of a cached resource.
type State string

const (
	StateEmpty                State = "EMPTY"
	StateLoadingFresh         State = "LOADING_FRESH"
	StateShowingCachedLoading State = "SHOWING_CACHED_LOADING"
	StateShowingFresh         State = "SHOWING_FRESH"
	StateShowingCachedError   State = "SHOWING_CACHED_ERROR"
	StateError                State = "ERROR"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// ValidTransitions defines allowed state transitions.
// Key is the current state, value is the list of valid next states.
var ValidTransitions = map[State][]State{
	StateEmpty: {StateLoadingFresh, StateShowingCachedLoading},
	StateLoadingFresh: {
		StateLoadingFresh,
		StateShowingCachedLoading,
		StateShowingFresh,
		StateError,
	},
	StateShowingCachedLoading: {
		StateShowingCachedLoading,
		StateShowingFresh,
		StateShowingCachedError,
	},
	StateShowingFresh:       {StateShowingCachedLoading},
	StateShowingCachedError: {StateShowingCachedLoading},
	StateError:              {StateLoadingFresh, StateShowingCachedLoading},
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to State) bool {
	for _, target := range ValidTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// Transition represents a state change.
type Transition struct {
	From      State
	To        State
	Timestamp time.Time
}

// HasData reports whether data is visible in s.
func (s State) HasData() bool {
	switch s {
	case StateShowingCachedLoading, StateShowingFresh, StateShowingCachedError:
		return true
	}
	return false
}

// Refreshing reports whether a network fetch is in flight in s.
func (s State) Refreshing() bool {
	return s == StateLoadingFresh || s == StateShowingCachedLoading
}

// Description returns a human-readable description of a state.
func (s State) Description() string {
	switch s {
	case StateEmpty:
		return "Nothing loaded yet"
	case StateLoadingFresh:
		return "Loading..."
	case StateShowingCachedLoading:
		return "Showing cached data, checking for updates..."
	case StateShowingFresh:
		return "Up to date"
	case StateShowingCachedError:
		return "Showing cached data, refresh failed"
	case StateError:
		return "Failed to load"
	default:
		return "Unknown state"
	}
}
