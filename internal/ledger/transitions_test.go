package ledger_test

import (
	"testing"

	"github.com/AtharvaWandhare/synapse/internal/ledger"
	"github.com/AtharvaWandhare/synapse/internal/model"
)

var allStatuses = []model.Status{
	model.StatusPending,
	model.StatusApplied,
	model.StatusAccepted,
	model.StatusRejected,
}

// ── ParseStatus ────────────────────────────────────────────────────────────

func TestParseStatus_ValidValues(t *testing.T) {
	valid := []string{"pending", "applied", "accepted", "rejected"}
	for _, s := range valid {
		got, err := ledger.ParseStatus(s)
		if err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseStatus_InvalidValue(t *testing.T) {
	_, err := ledger.ParseStatus("interview")
	if err == nil {
		t.Error("ParseStatus(\"interview\") expected error, got nil")
	}
}

func TestParseStatus_EmptyString(t *testing.T) {
	_, err := ledger.ParseStatus("")
	if err == nil {
		t.Error("ParseStatus(\"\") expected error, got nil")
	}
}

// ── IsAccepted ─────────────────────────────────────────────────────────────

func TestIsAccepted(t *testing.T) {
	if !ledger.IsAccepted(model.StatusAccepted) {
		t.Error("IsAccepted(accepted) should return true")
	}
	for _, s := range []model.Status{model.StatusPending, model.StatusApplied, model.StatusRejected} {
		if ledger.IsAccepted(s) {
			t.Errorf("IsAccepted(%s) should return false", s)
		}
	}
}

// ── IsTransitionAllowed: valid (forward) transitions ─────────────────────

func TestIsTransitionAllowed_ValidForward(t *testing.T) {
	cases := []struct {
		from model.Status
		to   model.Status
	}{
		{model.StatusPending, model.StatusApplied},
		{model.StatusPending, model.StatusAccepted},
		{model.StatusPending, model.StatusRejected},
		{model.StatusApplied, model.StatusAccepted},
		{model.StatusApplied, model.StatusRejected},
	}
	for _, c := range cases {
		if !ledger.IsTransitionAllowed(c.from, c.to) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be true", c.from, c.to)
		}
	}
}

// ── IsTransitionAllowed: terminal states have no outgoing transitions ─────

func TestIsTransitionAllowed_FromTerminal(t *testing.T) {
	terminals := []model.Status{model.StatusAccepted, model.StatusRejected}
	for _, from := range terminals {
		for _, to := range allStatuses {
			if ledger.IsTransitionAllowed(from, to) {
				t.Errorf("IsTransitionAllowed(%s → %s) should be false (terminal state)", from, to)
			}
		}
	}
}

// ── IsTransitionAllowed: backwards movements are forbidden ───────────────

func TestIsTransitionAllowed_Backwards(t *testing.T) {
	if ledger.IsTransitionAllowed(model.StatusApplied, model.StatusPending) {
		t.Error("IsTransitionAllowed(applied → pending) should be false (backwards)")
	}
}

// ── IsTransitionAllowed: self-transitions are not transitions ────────────

func TestIsTransitionAllowed_Self(t *testing.T) {
	for _, s := range allStatuses {
		if ledger.IsTransitionAllowed(s, s) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be false (self)", s, s)
		}
		if !ledger.IsNoop(s, s) {
			t.Errorf("IsNoop(%s, %s) should be true", s, s)
		}
	}
}
