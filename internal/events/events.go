// Package events publishes ledger and chat events.
//
// Channels:
//
//	EVENT_SWIPE_RECORDED       → every recorded swipe
//	EVENT_MATCH_ACCEPTED       → first transition of a match into accepted
//	EVENT_CONVERSATION_OPENED  → the chat bridge created a conversation
//
// Payloads are JSON objects carrying a "type" field equal to the channel.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AtharvaWandhare/synapse/internal/model"
)

const (
	ChannelSwipeRecorded      = "EVENT_SWIPE_RECORDED"
	ChannelMatchAccepted      = "EVENT_MATCH_ACCEPTED"
	ChannelConversationOpened = "EVENT_CONVERSATION_OPENED"
)

// ─── Payloads ────────────────────────────────────────────────────────────────

type SwipeRecorded struct {
	Type     string    `json:"type"`
	SwipeID  string    `json:"swipeId"`
	SeekerID string    `json:"seekerId"`
	JobID    string    `json:"jobId"`
	Decision string    `json:"decision"`
	MatchID  string    `json:"matchId,omitempty"`
	At       time.Time `json:"at"`
}

type MatchAccepted struct {
	Type      string    `json:"type"`
	MatchID   string    `json:"matchId"`
	SeekerID  string    `json:"seekerId"`
	JobID     string    `json:"jobId"`
	CompanyID string    `json:"companyId"`
	At        time.Time `json:"at"`
}

type ConversationOpened struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversationId"`
	MatchID        string    `json:"matchId"`
	At             time.Time `json:"at"`
}

// DecodeMatchAccepted parses an EVENT_MATCH_ACCEPTED payload.
func DecodeMatchAccepted(payload string) (MatchAccepted, error) {
	var ev MatchAccepted
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return MatchAccepted{}, fmt.Errorf("decode %s: %w", ChannelMatchAccepted, err)
	}
	if ev.MatchID == "" {
		return MatchAccepted{}, fmt.Errorf("decode %s: missing matchId", ChannelMatchAccepted)
	}
	return ev, nil
}

// ─── Redis publisher ─────────────────────────────────────────────────────────

// Publisher is the subset of *redis.Client used to publish.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher publishes events on Redis pub/sub channels.
type RedisPublisher struct {
	rdb Publisher
	log *zap.Logger
	now func() time.Time
}

func NewRedisPublisher(rdb Publisher, log *zap.Logger) *RedisPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisPublisher{
		rdb: rdb,
		log: log.Named("events"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (p *RedisPublisher) SwipeRecorded(ctx context.Context, swipe model.Swipe, match *model.Match) error {
	ev := SwipeRecorded{
		Type:     ChannelSwipeRecorded,
		SwipeID:  swipe.ID,
		SeekerID: swipe.SeekerID,
		JobID:    swipe.JobID,
		Decision: string(swipe.Decision),
		At:       swipe.CreatedAt,
	}
	if match != nil {
		ev.MatchID = match.ID
	}
	return p.publish(ctx, ChannelSwipeRecorded, ev)
}

func (p *RedisPublisher) MatchAccepted(ctx context.Context, rec model.MatchRecord) error {
	return p.publish(ctx, ChannelMatchAccepted, MatchAccepted{
		Type:      ChannelMatchAccepted,
		MatchID:   rec.ID,
		SeekerID:  rec.SeekerID,
		JobID:     rec.JobID,
		CompanyID: rec.CompanyID,
		At:        p.now(),
	})
}

func (p *RedisPublisher) ConversationOpened(ctx context.Context, conv model.Conversation) error {
	return p.publish(ctx, ChannelConversationOpened, ConversationOpened{
		Type:           ChannelConversationOpened,
		ConversationID: conv.ID,
		MatchID:        conv.MatchID,
		At:             conv.CreatedAt,
	})
}

func (p *RedisPublisher) publish(ctx context.Context, channel string, ev any) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", channel, err)
	}
	if err := p.rdb.Publish(ctx, channel, raw).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	p.log.Debug("event published", zap.String("channel", channel))
	return nil
}

// ─── In-process delivery ─────────────────────────────────────────────────────

// AcceptedHandler reacts to a match entering accepted.
type AcceptedHandler interface {
	OnMatchAccepted(ctx context.Context, matchID string) error
}

// Direct delivers MatchAccepted to an in-process handler. It replaces the
// broker when the service runs without Redis.
type Direct struct {
	handler AcceptedHandler
	log     *zap.Logger
}

func NewDirect(handler AcceptedHandler, log *zap.Logger) *Direct {
	if log == nil {
		log = zap.NewNop()
	}
	return &Direct{handler: handler, log: log.Named("events")}
}

// SetHandler wires the handler after construction, for bridges that are
// built after the ledger.
func (d *Direct) SetHandler(h AcceptedHandler) { d.handler = h }

func (d *Direct) SwipeRecorded(ctx context.Context, swipe model.Swipe, match *model.Match) error {
	d.log.Debug("swipe recorded", zap.String("swipe_id", swipe.ID))
	return nil
}

func (d *Direct) MatchAccepted(ctx context.Context, rec model.MatchRecord) error {
	if d.handler == nil {
		return nil
	}
	return d.handler.OnMatchAccepted(ctx, rec.ID)
}

func (d *Direct) ConversationOpened(ctx context.Context, conv model.Conversation) error {
	d.log.Info("conversation opened", zap.String("conversation_id", conv.ID), zap.String("match_id", conv.MatchID))
	return nil
}
