// Package chat is the boundary to the chat collaborator: it opens exactly
// one conversation per accepted match. Message transport is not handled
// here.
package chat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/AtharvaWandhare/synapse/internal/apperr"
	"github.com/AtharvaWandhare/synapse/internal/model"
)

// Store persists conversations keyed by match id.
type Store interface {
	GetMatch(ctx context.Context, matchID string) (model.MatchRecord, error)
	// CreateConversation inserts the conversation unless one exists for the
	// match, and returns the single row. created reports whether this call
	// inserted it.
	CreateConversation(ctx context.Context, matchID string, at time.Time) (conv model.Conversation, created bool, err error)
	ListAcceptedWithoutConversation(ctx context.Context, limit int) ([]string, error)
}

// Announcer is told about newly created conversations.
type Announcer interface {
	ConversationOpened(ctx context.Context, conv model.Conversation) error
}

// Bridge opens conversations for accepted matches.
type Bridge struct {
	store    Store
	announce Announcer
	log      *zap.Logger
	now      func() time.Time
}

// NewBridge returns a Bridge. announce may be nil.
func NewBridge(store Store, announce Announcer, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{
		store:    store,
		announce: announce,
		log:      log.Named("chat"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// EnsureConversation returns the conversation of an accepted match, creating
// it on the first call. Calling it again, concurrently or not, returns the
// same conversation.
func (b *Bridge) EnsureConversation(ctx context.Context, matchID string) (*model.Conversation, error) {
	rec, err := b.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if rec.ApplicationStatus != model.StatusAccepted {
		return nil, apperr.Newf(apperr.KindConflict, "match is %s, conversations open only for accepted matches", rec.ApplicationStatus)
	}

	conv, created, err := b.store.CreateConversation(ctx, matchID, b.now())
	if err != nil {
		return nil, err
	}
	if created {
		b.log.Info("conversation opened", zap.String("conversation_id", conv.ID), zap.String("match_id", matchID))
		if b.announce != nil {
			if err := b.announce.ConversationOpened(ctx, conv); err != nil {
				b.log.Warn("announce conversation failed", zap.String("conversation_id", conv.ID), zap.Error(err))
			}
		}
	}
	return &conv, nil
}

// OnMatchAccepted adapts EnsureConversation to the accepted-event handler.
func (b *Bridge) OnMatchAccepted(ctx context.Context, matchID string) error {
	_, err := b.EnsureConversation(ctx, matchID)
	return err
}

// Reconcile opens conversations for up to limit accepted matches that have
// none, covering accepted events that were never delivered. It returns how
// many it opened.
func (b *Bridge) Reconcile(ctx context.Context, limit int) (int, error) {
	ids, err := b.store.ListAcceptedWithoutConversation(ctx, limit)
	if err != nil {
		return 0, err
	}

	opened := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return opened, err
		}
		if _, err := b.EnsureConversation(ctx, id); err != nil {
			b.log.Warn("reconcile conversation failed", zap.String("match_id", id), zap.Error(err))
			continue
		}
		opened++
	}

	if opened > 0 {
		b.log.Info("conversations reconciled", zap.Int("opened", opened))
	}
	return opened, nil
}
