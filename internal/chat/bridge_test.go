package chat_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AtharvaWandhare/synapse/internal/apperr"
	"github.com/AtharvaWandhare/synapse/internal/chat"
	"github.com/AtharvaWandhare/synapse/internal/events"
	"github.com/AtharvaWandhare/synapse/internal/ledger"
	"github.com/AtharvaWandhare/synapse/internal/model"
	"github.com/AtharvaWandhare/synapse/internal/store/memory"
)

var (
	seeker  = model.Identity{UserID: "seeker-s", Role: model.RoleJobSeeker}
	company = model.Identity{UserID: "company-c", Role: model.RoleCompany}
)

type countingAnnouncer struct{ opened atomic.Int32 }

func (a *countingAnnouncer) ConversationOpened(context.Context, model.Conversation) error {
	a.opened.Add(1)
	return nil
}

func likedMatch(t *testing.T, st *memory.Store, status model.Status) string {
	t.Helper()
	ctx := context.Background()
	job, err := st.CreateJob(ctx, model.JobPosting{CompanyID: company.UserID, Title: "t", Description: "d"})
	if err != nil {
		t.Fatal(err)
	}
	_, m, err := st.RecordSwipe(ctx, seeker.UserID, job.ID, model.DecisionLike, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if status != model.StatusPending {
		if _, _, err := st.TransitionStatus(ctx, m.ID, []model.Status{model.StatusPending}, status, "test", time.Now()); err != nil {
			t.Fatal(err)
		}
	}
	return m.ID
}

func TestEnsureConversationIdempotent(t *testing.T) {
	st := memory.New()
	ann := &countingAnnouncer{}
	b := chat.NewBridge(st, ann, nil)
	matchID := likedMatch(t, st, model.StatusAccepted)

	const callers = 20
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := b.EnsureConversation(context.Background(), matchID)
			if err != nil {
				t.Errorf("EnsureConversation: %v", err)
				return
			}
			ids[i] = c.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("conversation ids differ: %v", ids)
		}
	}
	if got := ann.opened.Load(); got != 1 {
		t.Fatalf("announcements = %d, want 1", got)
	}
	if got := st.ConversationCount(matchID); got != 1 {
		t.Fatalf("conversations = %d, want 1", got)
	}
}

func TestEnsureConversationRequiresAccepted(t *testing.T) {
	st := memory.New()
	b := chat.NewBridge(st, nil, nil)

	for _, status := range []model.Status{model.StatusPending, model.StatusApplied, model.StatusRejected} {
		t.Run(string(status), func(t *testing.T) {
			id := likedMatch(t, st, status)
			_, err := b.EnsureConversation(context.Background(), id)
			if apperr.KindOf(err) != apperr.KindConflict {
				t.Fatalf("kind = %q, want conflict", apperr.KindOf(err))
			}
		})
	}

	_, err := b.EnsureConversation(context.Background(), "missing")
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("unknown match kind = %q", apperr.KindOf(err))
	}
}

func TestReconcileOpensMissingConversations(t *testing.T) {
	st := memory.New()
	ann := &countingAnnouncer{}
	b := chat.NewBridge(st, ann, nil)

	a1 := likedMatch(t, st, model.StatusAccepted)
	a2 := likedMatch(t, st, model.StatusAccepted)
	likedMatch(t, st, model.StatusPending)
	if _, err := b.EnsureConversation(context.Background(), a1); err != nil {
		t.Fatal(err)
	}

	opened, err := b.Reconcile(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if opened != 1 {
		t.Fatalf("opened = %d, want 1", opened)
	}
	if st.ConversationCount(a2) != 1 {
		t.Fatal("a2 has no conversation after reconcile")
	}

	opened, err = b.Reconcile(context.Background(), 10)
	if err != nil || opened != 0 {
		t.Fatalf("second reconcile opened=%d err=%v", opened, err)
	}
	if ann.opened.Load() != 2 {
		t.Fatalf("announcements = %d, want 2", ann.opened.Load())
	}
}

func TestListenerHandleMessage(t *testing.T) {
	st := memory.New()
	b := chat.NewBridge(st, nil, nil)
	l := chat.NewListener(nil, b, nil)
	matchID := likedMatch(t, st, model.StatusAccepted)

	payload, _ := json.Marshal(events.MatchAccepted{Type: events.ChannelMatchAccepted, MatchID: matchID})
	for i := 0; i < 2; i++ {
		if err := l.HandleMessage(context.Background(), string(payload)); err != nil {
			t.Fatalf("HandleMessage #%d: %v", i+1, err)
		}
	}
	if st.ConversationCount(matchID) != 1 {
		t.Fatal("expected exactly one conversation")
	}
	if err := l.HandleMessage(context.Background(), "{"); err == nil {
		t.Fatal("expected decode error")
	}
}

// Accepting twice through the ledger, wired in-process, opens one conversation.
func TestLedgerAcceptOpensOneConversation(t *testing.T) {
	st := memory.New()
	ann := &countingAnnouncer{}
	b := chat.NewBridge(st, ann, nil)
	svc := ledger.NewService(st, events.NewDirect(b, nil), nil)
	matchID := likedMatch(t, st, model.StatusPending)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.SetApplicationStatus(context.Background(), company, matchID, "accepted"); err != nil {
				t.Errorf("accept: %v", err)
			}
		}()
	}
	wg.Wait()

	if st.ConversationCount(matchID) != 1 || ann.opened.Load() != 1 {
		t.Fatalf("conversations=%d announcements=%d, want 1/1", st.ConversationCount(matchID), ann.opened.Load())
	}
	if _, err := svc.SetApplicationStatus(context.Background(), company, matchID, "rejected"); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("reject after accept: %v", err)
	}
}
