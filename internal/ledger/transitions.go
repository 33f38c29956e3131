// Package ledger records swipe decisions exactly once, materializes matches
// from likes and owns the application-status state machine.
//
// Valid status graph:
//
//	pending ──► applied ──► accepted
//	   │           │
//	   │           └──────► rejected
//	   └──────────────────► accepted | rejected
//
// accepted and rejected are terminal states. Re-applying the current status
// is a no-op; every other move out of a terminal state, and every backwards
// move, is a conflict.
package ledger

import (
	"fmt"

	"github.com/AtharvaWandhare/synapse/internal/model"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[model.Status][]model.Status{
	model.StatusPending: {model.StatusApplied, model.StatusAccepted, model.StatusRejected},
	model.StatusApplied: {model.StatusAccepted, model.StatusRejected},
	// accepted and rejected are terminal: no outgoing transitions
}

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (model.Status, error) {
	st := model.Status(s)
	switch st {
	case model.StatusPending, model.StatusApplied, model.StatusAccepted, model.StatusRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown application status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by the
// state machine. Self-moves are not transitions; see IsNoop.
func IsTransitionAllowed(from, to model.Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state, no outgoing transitions
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsNoop reports whether setting to on a match already at from changes nothing.
func IsNoop(from, to model.Status) bool { return from == to }

// IsTerminal returns true for accepted and rejected.
func IsTerminal(s model.Status) bool {
	_, ok := validTransitions[s]
	return !ok
}

// Sources returns every status that may legally move to `to`. The store uses
// it as the guard of a conditional update, so two racing callers cannot both
// move the same match.
func Sources(to model.Status) []model.Status {
	var out []model.Status
	for _, from := range []model.Status{model.StatusPending, model.StatusApplied} {
		if IsTransitionAllowed(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// RequiresCompany returns true for the review decisions only the company
// owning the job may take.
func RequiresCompany(to model.Status) bool {
	return to == model.StatusAccepted || to == model.StatusRejected
}

// IsAccepted returns true when status is accepted (opens a conversation).
func IsAccepted(s model.Status) bool { return s == model.StatusAccepted }
