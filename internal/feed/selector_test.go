package feed_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AtharvaWandhare/synapse/internal/apperr"
	"github.com/AtharvaWandhare/synapse/internal/feed"
	"github.com/AtharvaWandhare/synapse/internal/model"
	"github.com/AtharvaWandhare/synapse/internal/store/memory"
)

var (
	seeker  = model.Identity{UserID: "seeker-s", Role: model.RoleJobSeeker}
	company = model.Identity{UserID: "company-c", Role: model.RoleCompany}
	base    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func addJob(t *testing.T, st *memory.Store, id string, created time.Time) {
	t.Helper()
	_, err := st.CreateJob(context.Background(), model.JobPosting{
		ID:          id,
		CompanyID:   company.UserID,
		Title:       "Job " + id,
		Description: "desc",
		JobType:     model.JobTypeContract,
		CreatedAt:   created,
	})
	if err != nil {
		t.Fatalf("CreateJob %s: %v", id, err)
	}
}

func TestNextJobOrdering(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	if _, err := st.UpsertCompany(ctx, model.Company{ID: company.UserID, Name: "Acme"}); err != nil {
		t.Fatal(err)
	}
	addJob(t, st, "c", base.Add(time.Minute))
	addJob(t, st, "b", base)
	addJob(t, st, "a", base)

	sel := feed.NewSelector(st, nil)

	// Same candidate until a decision is recorded.
	for i := 0; i < 3; i++ {
		card, err := sel.NextJob(ctx, seeker, "")
		if err != nil {
			t.Fatalf("NextJob: %v", err)
		}
		if card.JobID != "a" {
			t.Fatalf("poll %d returned %s, want a", i, card.JobID)
		}
		if card.Company != "Acme" || card.JobType != model.JobTypeContract {
			t.Fatalf("card = %+v", card)
		}
	}

	want := []string{"a", "b", "c"}
	for _, id := range want {
		card, err := sel.NextJob(ctx, seeker, seeker.UserID)
		if err != nil {
			t.Fatalf("NextJob: %v", err)
		}
		if card.JobID != id {
			t.Fatalf("got %s, want %s", card.JobID, id)
		}
		if _, _, err := st.RecordSwipe(ctx, seeker.UserID, id, model.DecisionDislike, base); err != nil {
			t.Fatalf("RecordSwipe: %v", err)
		}
	}

	_, err := sel.NextJob(ctx, seeker, "")
	if !errors.Is(err, feed.ErrFeedExhausted) {
		t.Fatalf("err = %v, want ErrFeedExhausted", err)
	}
	if errors.Is(err, apperr.ErrNotFound) {
		t.Fatal("feed exhaustion must not look like a NotFound")
	}
}

func TestNextJobSkipsIneligible(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	addJob(t, st, "deleted", base)
	addJob(t, st, "closed", base.Add(time.Second))
	addJob(t, st, "liked", base.Add(2*time.Second))
	addJob(t, st, "open", base.Add(3*time.Second))

	if err := st.SoftDeleteJob(ctx, "deleted", base); err != nil {
		t.Fatal(err)
	}
	if _, err := st.SetApplicationsClosed(ctx, "closed", true, base); err != nil {
		t.Fatal(err)
	}
	if _, _, err := st.RecordSwipe(ctx, seeker.UserID, "liked", model.DecisionLike, base); err != nil {
		t.Fatal(err)
	}

	sel := feed.NewSelector(st, nil)
	card, err := sel.NextJob(ctx, seeker, "")
	if err != nil {
		t.Fatalf("NextJob: %v", err)
	}
	if card.JobID != "open" {
		t.Fatalf("got %s, want open", card.JobID)
	}

	// Another seeker still sees the liked job.
	card, err = sel.NextJob(ctx, model.Identity{UserID: "seeker-t", Role: model.RoleJobSeeker}, "")
	if err != nil {
		t.Fatal(err)
	}
	if card.JobID != "liked" {
		t.Fatalf("other seeker got %s, want liked", card.JobID)
	}

	// Reopening brings the closed posting back.
	if _, err := st.SetApplicationsClosed(ctx, "closed", false, base); err != nil {
		t.Fatal(err)
	}
	card, err = sel.NextJob(ctx, seeker, "")
	if err != nil {
		t.Fatal(err)
	}
	if card.JobID != "closed" {
		t.Fatalf("got %s, want closed after reopening", card.JobID)
	}
}

func TestNextJobAuthorization(t *testing.T) {
	sel := feed.NewSelector(memory.New(), nil)
	cases := []struct {
		name     string
		id       model.Identity
		seekerID string
		kind     apperr.Kind
	}{
		{"company", company, "", apperr.KindUnauthorized},
		{"anonymous", model.Identity{}, "seeker-s", apperr.KindUnauthorized},
		{"other seeker's feed", seeker, "seeker-t", apperr.KindForbidden},
		{"empty catalog", seeker, "", apperr.KindExhausted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := sel.NextJob(context.Background(), tc.id, tc.seekerID)
			if got := apperr.KindOf(err); got != tc.kind {
				t.Fatalf("kind = %q, want %q", got, tc.kind)
			}
		})
	}
}
