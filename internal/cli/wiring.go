package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AtharvaWandhare/synapse/internal/auth"
	"github.com/AtharvaWandhare/synapse/internal/catalog"
	"github.com/AtharvaWandhare/synapse/internal/chat"
	"github.com/AtharvaWandhare/synapse/internal/config"
	"github.com/AtharvaWandhare/synapse/internal/db"
	"github.com/AtharvaWandhare/synapse/internal/events"
	"github.com/AtharvaWandhare/synapse/internal/feed"
	"github.com/AtharvaWandhare/synapse/internal/ledger"
	"github.com/AtharvaWandhare/synapse/internal/profile"
	"github.com/AtharvaWandhare/synapse/internal/scheduler"
	"github.com/AtharvaWandhare/synapse/internal/scoring"
	"github.com/AtharvaWandhare/synapse/internal/store/memory"
	"github.com/AtharvaWandhare/synapse/internal/store/postgres"
)

// store is everything a storage driver provides.
type store interface {
	catalog.Store
	feed.Store
	ledger.Store
	profile.Store
	scoring.Store
	chat.Store
}

// notifier carries both the ledger and the chat side effects.
type notifier interface {
	ledger.Notifier
	chat.Announcer
}

// runtime is the assembled service graph.
type runtime struct {
	cfg      *config.Config
	log      *zap.Logger
	ledger   *ledger.Service
	catalog  *catalog.Service
	feed     *feed.Selector
	profiles *profile.Service
	scores   *scoring.Recomputer
	bridge   *chat.Bridge
	identity *auth.Resolver
	tokens   *auth.JWTAuthenticator

	// listener is nil without Redis; accepted matches are then delivered
	// in-process.
	listener *chat.Listener

	closers []func()
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// tasks returns the periodic maintenance work.
func (rt *runtime) tasks() []scheduler.Task {
	batch := rt.cfg.Scheduler.BatchSize
	return []scheduler.Task{
		{Name: "score-backfill", Run: func(ctx context.Context) error {
			report, err := rt.scores.Backfill(ctx, batch)
			if err != nil {
				return err
			}
			rt.log.Info("score backfill", zap.Int("scanned", report.Scanned), zap.Int("scored", report.Scored), zap.Int("skipped", report.Skipped), zap.Int("failed", report.Failed))
			return nil
		}},
		{Name: "conversation-reconcile", Run: func(ctx context.Context) error {
			opened, err := rt.bridge.Reconcile(ctx, batch)
			if err != nil {
				return err
			}
			if opened > 0 {
				rt.log.Info("conversations reconciled", zap.Int("opened", opened))
			}
			return nil
		}},
	}
}

// build wires storage, events, scoring and the services for cfg.
func build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, log: log}

	var (
		st     store
		notify notifier
		rdb    *redis.Client
		direct *events.Direct
	)
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		log.Info("connecting to PostgreSQL")
		pool, err := db.NewPostgresPool(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		if cfg.Storage.AutoMigrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				rt.Close()
				return nil, err
			}
			log.Info("schema migrated")
		}
		st = postgres.New(pool, log)

		log.Info("connecting to Redis")
		rdb, err = db.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = rdb.Close() })
		notify = events.NewRedisPublisher(rdb, log)
	default:
		log.Warn("using in-memory storage; state is lost on exit")
		st = memory.New()
		direct = events.NewDirect(nil, log)
		notify = direct
	}

	scorer, err := scoring.New(ctx, cfg.Scoring, log)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("scoring: %w", err)
	}

	rt.ledger = ledger.NewService(st, notify, log)
	rt.catalog = catalog.NewService(st, log)
	rt.feed = feed.NewSelector(st, log)
	rt.profiles = profile.NewService(st)
	rt.scores = scoring.NewRecomputer(st, scorer, log, cfg.Scoring.Timeout, cfg.Scoring.Concurrency)
	rt.bridge = chat.NewBridge(st, notify, log)
	if direct != nil {
		direct.SetHandler(rt.bridge)
	}
	if rdb != nil {
		rt.listener = chat.NewListener(rdb, rt.bridge, log)
	}

	if cfg.Auth.JWTSecret != "" {
		rt.tokens, err = auth.NewJWTAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		if err != nil {
			rt.Close()
			return nil, err
		}
	}
	rt.identity = auth.NewResolver(rt.tokens, cfg.Auth.TrustGateway)
	return rt, nil
}
