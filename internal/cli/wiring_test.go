package cli

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/AtharvaWandhare/synapse/internal/catalog"
	"github.com/AtharvaWandhare/synapse/internal/config"
	"github.com/AtharvaWandhare/synapse/internal/model"
	"github.com/AtharvaWandhare/synapse/internal/profile"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Storage:   config.StorageConfig{Driver: config.DriverMemory},
		Auth:      config.AuthConfig{TrustGateway: true},
		Scoring:   config.ScoringConfig{Provider: config.ProviderLocal, Timeout: time.Second, Concurrency: 2},
		Scheduler: config.SchedulerConfig{Spec: "@every 1h", BatchSize: 10},
	}
}

// In memory mode an accepted match opens its conversation in-process, and
// the backfill task scores what the swipe left unscored.
func TestBuildMemoryRuntime(t *testing.T) {
	ctx := context.Background()
	rt, err := build(ctx, memoryConfig(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer rt.Close()

	if rt.listener != nil {
		t.Fatal("memory mode must not subscribe to redis")
	}

	company := model.Identity{UserID: "c", Role: model.RoleCompany}
	seeker := model.Identity{UserID: "s", Role: model.RoleJobSeeker}

	job, err := rt.catalog.CreateJob(ctx, company, catalog.JobDraft{Title: "Go developer", Description: "Go services"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := rt.ledger.RecordSwipe(ctx, seeker, job.ID, "like")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rt.ledger.SetApplicationStatus(ctx, company, res.Match.ID, "accepted"); err != nil {
		t.Fatal(err)
	}

	conv, err := rt.bridge.EnsureConversation(ctx, res.Match.ID)
	if err != nil {
		t.Fatal(err)
	}
	opened, err := rt.bridge.Reconcile(ctx, 10)
	if err != nil || opened != 0 {
		t.Fatalf("reconcile opened=%d err=%v; conversation %s should already exist", opened, err, conv.ID)
	}

	if _, err := rt.profiles.UpsertSeekerProfile(ctx, seeker, profile.Input{ProfileText: "Go developer", Skills: []string{"go"}}); err != nil {
		t.Fatal(err)
	}
	for _, task := range rt.tasks() {
		if err := task.Run(ctx); err != nil {
			t.Fatalf("%s: %v", task.Name, err)
		}
	}
	rec, err := rt.ledger.GetMatch(ctx, seeker, res.Match.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.CompatibilityScore == nil {
		t.Fatal("backfill left the match unscored")
	}
}

func TestBuildRejectsGeminiWithoutKey(t *testing.T) {
	cfg := memoryConfig()
	cfg.Scoring.Provider = config.ProviderGemini
	if _, err := build(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatal("expected scorer error")
	}
}
