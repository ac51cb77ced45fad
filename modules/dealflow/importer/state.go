package importer

import (
	"fmt"

	gerrors "github.com/go-faster/errors"
)

type State int

const (
	NotStarted State = iota
	Normalizing
	ResolvingOrganizations
	WritingFunds
	RecomputingAggregates
	Summarized
	Aborted
)

var stateNames = [...]string{
	NotStarted:             "NotStarted",
	Normalizing:            "Normalizing",
	ResolvingOrganizations: "ResolvingOrganizations",
	WritingFunds:           "WritingFunds",
	RecomputingAggregates:  "RecomputingAggregates",
	Summarized:             "Summarized",
	Aborted:                "Aborted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return gerrors.Errorf("unknown import state %q", b)
}

// InProgress reports whether a run in s may still abort.
func (s State) InProgress() bool {
	return s >= Normalizing && s <= RecomputingAggregates
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Summarized || s == Aborted
}

// CanTransition allows the linear pipeline order plus an abort from any
// in-progress state.
func (s State) CanTransition(to State) bool {
	if to == Aborted {
		return s.InProgress()
	}
	return !s.Terminal() && to == s+1
}

// Observer is told about every state transition of a run.
type Observer func(from, to State)
