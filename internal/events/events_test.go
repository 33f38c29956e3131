package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AtharvaWandhare/synapse/internal/events"
	"github.com/AtharvaWandhare/synapse/internal/model"
)

type published struct {
	channel string
	payload []byte
}

type fakePublisher struct {
	sent []published
	err  error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "publish", channel, message)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	raw, _ := message.([]byte)
	f.sent = append(f.sent, published{channel: channel, payload: raw})
	cmd.SetVal(1)
	return cmd
}

func TestRedisPublisherSwipeRecorded(t *testing.T) {
	fp := &fakePublisher{}
	p := events.NewRedisPublisher(fp, nil)
	at := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)

	sw := model.Swipe{ID: "sw1", SeekerID: "s", JobID: "j", Decision: model.DecisionLike, CreatedAt: at}
	if err := p.SwipeRecorded(context.Background(), sw, &model.Match{ID: "m1"}); err != nil {
		t.Fatal(err)
	}
	if err := p.SwipeRecorded(context.Background(), model.Swipe{ID: "sw2", Decision: model.DecisionDislike}, nil); err != nil {
		t.Fatal(err)
	}

	if len(fp.sent) != 2 {
		t.Fatalf("published %d, want 2", len(fp.sent))
	}
	var ev events.SwipeRecorded
	if err := json.Unmarshal(fp.sent[0].payload, &ev); err != nil {
		t.Fatal(err)
	}
	if fp.sent[0].channel != events.ChannelSwipeRecorded || ev.Type != events.ChannelSwipeRecorded {
		t.Errorf("channel=%s type=%s", fp.sent[0].channel, ev.Type)
	}
	if ev.MatchID != "m1" || ev.Decision != "like" || !ev.At.Equal(at) {
		t.Errorf("event = %+v", ev)
	}

	var dislike map[string]any
	if err := json.Unmarshal(fp.sent[1].payload, &dislike); err != nil {
		t.Fatal(err)
	}
	if _, ok := dislike["matchId"]; ok {
		t.Error("dislike event must omit matchId")
	}
}

func TestRedisPublisherMatchAcceptedRoundTrip(t *testing.T) {
	fp := &fakePublisher{}
	p := events.NewRedisPublisher(fp, nil)

	rec := model.MatchRecord{Match: model.Match{ID: "m1", SeekerID: "s", JobID: "j"}, CompanyID: "c"}
	if err := p.MatchAccepted(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if len(fp.sent) != 1 || fp.sent[0].channel != events.ChannelMatchAccepted {
		t.Fatalf("sent = %+v", fp.sent)
	}

	ev, err := events.DecodeMatchAccepted(string(fp.sent[0].payload))
	if err != nil {
		t.Fatal(err)
	}
	if ev.MatchID != "m1" || ev.CompanyID != "c" || ev.SeekerID != "s" || ev.JobID != "j" {
		t.Fatalf("decoded = %+v", ev)
	}
}

func TestRedisPublisherReportsFailure(t *testing.T) {
	p := events.NewRedisPublisher(&fakePublisher{err: errors.New("connection refused")}, nil)
	if err := p.ConversationOpened(context.Background(), model.Conversation{ID: "c1", MatchID: "m1"}); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestDecodeMatchAcceptedRejects(t *testing.T) {
	for _, payload := range []string{"", "not json", `{"type":"EVENT_MATCH_ACCEPTED"}`} {
		if _, err := events.DecodeMatchAccepted(payload); err == nil {
			t.Errorf("DecodeMatchAccepted(%q) succeeded", payload)
		}
	}
}

type countingHandler struct{ ids []string }

func (h *countingHandler) OnMatchAccepted(_ context.Context, matchID string) error {
	h.ids = append(h.ids, matchID)
	return nil
}

func TestDirectDeliversAccepted(t *testing.T) {
	d := events.NewDirect(nil, nil)
	rec := model.MatchRecord{Match: model.Match{ID: "m1"}}

	if err := d.MatchAccepted(context.Background(), rec); err != nil {
		t.Fatalf("without handler: %v", err)
	}

	h := &countingHandler{}
	d.SetHandler(h)
	if err := d.MatchAccepted(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if len(h.ids) != 1 || h.ids[0] != "m1" {
		t.Fatalf("handled = %v", h.ids)
	}
}
