package chat

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AtharvaWandhare/synapse/internal/events"
)

// Subscriber is the subset of *redis.Client used to listen.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Listener feeds EVENT_MATCH_ACCEPTED messages into the bridge.
type Listener struct {
	sub    Subscriber
	bridge *Bridge
	log    *zap.Logger
}

func NewListener(sub Subscriber, bridge *Bridge, log *zap.Logger) *Listener {
	if log == nil {
		log = zap.NewNop()
	}
	return &Listener{sub: sub, bridge: bridge, log: log.Named("chat-listener")}
}

// Run subscribes and blocks until ctx is cancelled or the subscription
// closes. Bad payloads and bridge failures are logged and skipped; the
// scheduled Reconcile picks up anything missed.
func (l *Listener) Run(ctx context.Context) error {
	ps := l.sub.Subscribe(ctx, events.ChannelMatchAccepted)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", events.ChannelMatchAccepted, err)
	}
	l.log.Info("listening", zap.String("channel", events.ChannelMatchAccepted))

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok || m == nil {
				return nil
			}
			if err := l.HandleMessage(ctx, m.Payload); err != nil {
				l.log.Warn("match accepted event not handled", zap.Error(err))
			}
		}
	}
}

// HandleMessage processes one raw EVENT_MATCH_ACCEPTED payload.
func (l *Listener) HandleMessage(ctx context.Context, payload string) error {
	ev, err := events.DecodeMatchAccepted(payload)
	if err != nil {
		return err
	}
	if _, err := l.bridge.EnsureConversation(ctx, ev.MatchID); err != nil {
		return fmt.Errorf("ensure conversation for match %s: %w", ev.MatchID, err)
	}
	return nil
}
