package leave

import "github.com/warp/leave-engine/generic"

// =============================================================================
// STATUS TRANSITIONS
// =============================================================================

// transitions lists the legal next states. Withdrawn and cancelled are terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:  {StatusWithdrawn, StatusRejected, StatusCancelled},
	StatusRejected:  {StatusApproved},
	StatusWithdrawn: nil,
	StatusCancelled: nil,
}

// Effect is the ledger consequence of a transition.
type Effect int

const (
	EffectNone Effect = iota
	EffectDeduct
	EffectRestore
)

func (e Effect) String() string {
	switch e {
	case EffectDeduct:
		return "deduct"
	case EffectRestore:
		return "restore"
	}
	return "none"
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns a TransitionError for anything not in the table.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return &generic.TransitionError{From: string(from), To: string(to)}
	}
	return nil
}

// EffectOf maps a transition to its ledger effect. Only entering and leaving
// approved touch a balance.
func EffectOf(from, to Status) Effect {
	switch {
	case from == to:
		return EffectNone
	case to == StatusApproved:
		return EffectDeduct
	case from == StatusApproved:
		return EffectRestore
	}
	return EffectNone
}
