package artifact

import "github.com/teranos/flashbuild/errors"

// State is the resolution state of one artifact during a single invocation.
//
//	Unresolved → Resolving → UpToDate
//	                       → Rebuilding → Produced | Failed
//	Resolving → Failed (a source failed)
type State string

const (
	Unresolved State = "UNRESOLVED"
	Resolving  State = "RESOLVING"
	UpToDate   State = "UP_TO_DATE"
	Rebuilding State = "REBUILDING"
	Produced   State = "PRODUCED"
	Failed     State = "FAILED"
)

// IsTerminal reports whether the state is final for this invocation
func (s State) IsTerminal() bool {
	switch s {
	case UpToDate, Produced, Failed:
		return true
	default:
		return false
	}
}

// IsValid reports whether an artifact in this state may feed downstream steps
func (s State) IsValid() bool {
	return s == UpToDate || s == Produced
}

// CanTransition reports whether from → to is allowed
func CanTransition(from, to State) bool {
	switch from {
	case Unresolved:
		return to == Resolving
	case Resolving:
		return to == UpToDate || to == Rebuilding || to == Failed
	case Rebuilding:
		return to == Produced || to == Failed
	default:
		return false
	}
}

// States tracks per-artifact state for one invocation.
// Not safe for concurrent use; resolution is single threaded.
type States map[ID]State

// Get returns the state of id, Unresolved if never seen
func (s States) Get(id ID) State {
	if st, ok := s[id]; ok {
		return st
	}
	return Unresolved
}

// Transition moves id to the next state, rejecting disallowed transitions
func (s States) Transition(id ID, to State) error {
	from := s.Get(id)
	if !CanTransition(from, to) {
		return errors.Newf("invalid transition for %s: %s -> %s", id, from, to)
	}
	s[id] = to
	return nil
}
