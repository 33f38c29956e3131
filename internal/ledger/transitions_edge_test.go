package ledger_test

// Edge cases around the conditional-update helpers. The core state-machine
// matrix is covered in transitions_test.go.

import (
	"reflect"
	"testing"

	"github.com/AtharvaWandhare/synapse/internal/ledger"
	"github.com/AtharvaWandhare/synapse/internal/model"
)

// ParseStatus must be case-sensitive; uppercase variants are not valid.
func TestParseStatus_CaseSensitive(t *testing.T) {
	for _, s := range []string{"PENDING", "Applied", "ACCEPTED", "Rejected"} {
		if _, err := ledger.ParseStatus(s); err == nil {
			t.Errorf("ParseStatus(%q) should reject non-lowercase value, got nil error", s)
		}
	}
}

// ParseStatus must reject whitespace-padded strings.
func TestParseStatus_WithWhitespace(t *testing.T) {
	for _, s := range []string{" applied", "applied ", " applied "} {
		if _, err := ledger.ParseStatus(s); err == nil {
			t.Errorf("ParseStatus(%q) should reject padded value, got nil error", s)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	want := map[model.Status]bool{
		model.StatusPending:  false,
		model.StatusApplied:  false,
		model.StatusAccepted: true,
		model.StatusRejected: true,
	}
	for s, terminal := range want {
		if got := ledger.IsTerminal(s); got != terminal {
			t.Errorf("IsTerminal(%s) = %v, want %v", s, got, terminal)
		}
	}
}

// Sources is the guard of the conditional update and must agree with
// IsTransitionAllowed for every target.
func TestSources(t *testing.T) {
	cases := []struct {
		to   model.Status
		want []model.Status
	}{
		{model.StatusPending, nil},
		{model.StatusApplied, []model.Status{model.StatusPending}},
		{model.StatusAccepted, []model.Status{model.StatusPending, model.StatusApplied}},
		{model.StatusRejected, []model.Status{model.StatusPending, model.StatusApplied}},
	}
	for _, c := range cases {
		got := ledger.Sources(c.to)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("Sources(%s) = %v, want %v", c.to, got, c.want)
		}
		for _, from := range got {
			if !ledger.IsTransitionAllowed(from, c.to) {
				t.Errorf("Sources(%s) contains %s, which IsTransitionAllowed rejects", c.to, from)
			}
		}
	}
}

func TestRequiresCompany(t *testing.T) {
	for s, want := range map[model.Status]bool{
		model.StatusPending:  false,
		model.StatusApplied:  false,
		model.StatusAccepted: true,
		model.StatusRejected: true,
	} {
		if got := ledger.RequiresCompany(s); got != want {
			t.Errorf("RequiresCompany(%s) = %v, want %v", s, got, want)
		}
	}
}
