package scoring

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AtharvaWandhare/synapse/internal/apperr"
	"github.com/AtharvaWandhare/synapse/internal/model"
)

// Store is the persistence the recomputer needs.
type Store interface {
	GetMatch(ctx context.Context, matchID string) (model.MatchRecord, error)
	GetJob(ctx context.Context, jobID string) (model.JobPosting, error)
	// GetSeekerProfile is apperr.KindNotFound when the seeker has none.
	GetSeekerProfile(ctx context.Context, seekerID string) (model.SeekerProfile, error)
	SetScore(ctx context.Context, matchID string, score int, at time.Time) (model.Match, error)
	ListJobMatches(ctx context.Context, jobID string) ([]model.MatchRecord, error)
	ListUnscoredMatches(ctx context.Context, limit int) ([]model.MatchRecord, error)
}

// errNoProfile marks a match whose seeker has not stored a profile yet. Such
// matches keep a null score so a later backfill picks them up.
var errNoProfile = errors.New("seeker has no profile")

// Recomputer refreshes stored compatibility scores.
type Recomputer struct {
	store       Store
	scorer      Scorer
	log         *zap.Logger
	timeout     time.Duration
	concurrency int
	now         func() time.Time
}

// NewRecomputer returns a Recomputer. Each scorer call is bounded by
// timeout; bulk recomputes run at most concurrency calls at once.
func NewRecomputer(store Store, scorer Scorer, log *zap.Logger, timeout time.Duration, concurrency int) *Recomputer {
	if log == nil {
		log = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Recomputer{
		store:       store,
		scorer:      scorer,
		log:         log.Named("scoring"),
		timeout:     timeout,
		concurrency: concurrency,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ScoreResult is one successfully stored score.
type ScoreResult struct {
	MatchID string `json:"matchId"`
	Score   int    `json:"score"`
}

// ScoreFailure is one match whose previous score was kept.
type ScoreFailure struct {
	MatchID string `json:"matchId"`
	Error   string `json:"error"`
}

// BulkResult reports a recompute over many matches, sorted by match id.
// Skipped lists matches whose seeker has no profile.
type BulkResult struct {
	JobID    string         `json:"jobId"`
	Scores   []ScoreResult  `json:"scores"`
	Failures []ScoreFailure `json:"failures"`
	Skipped  []string       `json:"skipped"`
}

// BackfillReport summarises one Backfill run.
type BackfillReport struct {
	Scanned int `json:"scanned"`
	Scored  int `json:"scored"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// RecomputeScore rescores one match for its seeker or for the company owning
// the job. A scorer failure keeps the old score and is reported as
// apperr.KindUpstream. A seeker without a profile is apperr.KindConflict.
func (r *Recomputer) RecomputeScore(ctx context.Context, id model.Identity, matchID string) (*model.Match, error) {
	if id.UserID == "" {
		return nil, apperr.Unauthorized("authentication required")
	}
	rec, err := r.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	seeker := id.IsSeeker() && rec.SeekerID == id.UserID
	company := id.IsCompany() && rec.CompanyID == id.UserID
	if !seeker && !company {
		return nil, apperr.Forbidden("match is not visible to this account")
	}

	job, err := r.store.GetJob(ctx, rec.JobID)
	if err != nil {
		return nil, err
	}

	m, err := r.scoreOne(ctx, rec, job)
	if errors.Is(err, errNoProfile) {
		return nil, apperr.Wrap(apperr.KindConflict, "seeker has no profile to score against", err)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// RecomputeAllForJob rescores every match on one of the caller's jobs.
// Per-match failures are collected in the result, never fatal.
func (r *Recomputer) RecomputeAllForJob(ctx context.Context, id model.Identity, jobID string) (*BulkResult, error) {
	if !id.IsCompany() {
		return nil, apperr.Unauthorized("a company account is required")
	}
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsDeleted {
		return nil, apperr.NotFound("job not found")
	}
	if job.CompanyID != id.UserID {
		return nil, apperr.Forbidden("job belongs to another company")
	}

	recs, err := r.store.ListJobMatches(ctx, jobID)
	if err != nil {
		return nil, err
	}

	res := &BulkResult{JobID: jobID, Scores: []ScoreResult{}, Failures: []ScoreFailure{}, Skipped: []string{}}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, rec := range recs {
		g.Go(func() error {
			m, err := r.scoreOne(ctx, rec, job)
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, errNoProfile) {
				res.Skipped = append(res.Skipped, rec.ID)
				return nil
			}
			if err != nil {
				res.Failures = append(res.Failures, ScoreFailure{MatchID: rec.ID, Error: apperr.Message(err)})
				return nil
			}
			res.Scores = append(res.Scores, ScoreResult{MatchID: m.ID, Score: *m.CompatibilityScore})
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(res.Scores, func(i, j int) bool { return res.Scores[i].MatchID < res.Scores[j].MatchID })
	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].MatchID < res.Failures[j].MatchID })
	sort.Strings(res.Skipped)

	r.log.Info("job scores recomputed",
		zap.String("job_id", jobID),
		zap.Int("scored", len(res.Scores)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int("failed", len(res.Failures)),
	)
	return res, nil
}

// Backfill scores up to limit matches that have never been scored.
func (r *Recomputer) Backfill(ctx context.Context, limit int) (BackfillReport, error) {
	recs, err := r.store.ListUnscoredMatches(ctx, limit)
	if err != nil {
		return BackfillReport{}, err
	}

	report := BackfillReport{Scanned: len(recs)}
	jobs := map[string]model.JobPosting{}
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		job, ok := jobs[rec.JobID]
		if !ok {
			job, err = r.store.GetJob(ctx, rec.JobID)
			if err != nil {
				r.log.Warn("backfill job lookup failed", zap.String("job_id", rec.JobID), zap.Error(err))
				report.Failed++
				continue
			}
			jobs[rec.JobID] = job
		}
		_, err = r.scoreOne(ctx, rec, job)
		switch {
		case errors.Is(err, errNoProfile):
			report.Skipped++
			continue
		case err != nil:
			report.Failed++
			continue
		}
		report.Scored++
	}

	r.log.Info("score backfill finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("scored", report.Scored),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (r *Recomputer) scoreOne(ctx context.Context, rec model.MatchRecord, job model.JobPosting) (model.Match, error) {
	profile, err := r.store.GetSeekerProfile(ctx, rec.SeekerID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return model.Match{}, errNoProfile
	case err != nil:
		return model.Match{}, err
	}

	sctx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	score, err := r.scorer.Score(sctx, profile, job)
	if err != nil {
		r.log.Warn("scorer failed, keeping previous score",
			zap.String("match_id", rec.ID),
			zap.Error(err),
		)
		return model.Match{}, apperr.Wrap(apperr.KindUpstream, "scorer unavailable", err)
	}

	return r.store.SetScore(ctx, rec.ID, Clamp(score), r.now())
}
