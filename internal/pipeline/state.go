package pipeline

import "fmt"

// State is a step of a pipeline run. A run moves forward through the
// states and never revisits one.
type State int

const (
	Idle State = iota
	Loaded
	Rewritten
	DirectiveLocated
	ReferencesExpanded
	Composed
	Generated
	Sanitized
	Persisted
	HistoryRecorded
	NoDirectiveFound
	DuplicateSkipped
	Failed
)

var stateNames = [...]string{
	Idle:               "Idle",
	Loaded:             "Loaded",
	Rewritten:          "Rewritten",
	DirectiveLocated:   "DirectiveLocated",
	ReferencesExpanded: "ReferencesExpanded",
	Composed:           "Composed",
	Generated:          "Generated",
	Sanitized:          "Sanitized",
	Persisted:          "Persisted",
	HistoryRecorded:    "HistoryRecorded",
	NoDirectiveFound:   "NoDirectiveFound",
	DuplicateSkipped:   "DuplicateSkipped",
	Failed:             "Failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether a run ends in s. A run that applies a rewrite
// rule ends in Rewritten; the persisted document triggers the next run.
func (s State) Terminal() bool {
	switch s {
	case Rewritten, HistoryRecorded, NoDirectiveFound, DuplicateSkipped, Failed:
		return true
	}
	return false
}

// next lists the legal successors of each state.
var next = map[State][]State{
	Idle:               {Loaded, Failed},
	Loaded:             {Rewritten, DirectiveLocated, NoDirectiveFound, Failed},
	DirectiveLocated:   {ReferencesExpanded, DuplicateSkipped, Failed},
	ReferencesExpanded: {Composed, Failed},
	Composed:           {Generated, Failed},
	Generated:          {Sanitized, Failed},
	Sanitized:          {Persisted, Failed},
	Persisted:          {HistoryRecorded, Failed},
}

// CanTransition reports whether from → to is a legal step.
func CanTransition(from, to State) bool {
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}
