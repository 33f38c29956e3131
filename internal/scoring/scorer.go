// Package scoring attaches a 0-100 compatibility score to matches.
//
// The scorer is a pure function of the seeker profile and the job text.
// Recomputation is a cache refresh with no effect on the application
// status; concurrent recomputes of one match are last-write-wins.
package scoring

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/AtharvaWandhare/synapse/internal/config"
	"github.com/AtharvaWandhare/synapse/internal/model"
)

const (
	MinScore = 0
	MaxScore = 100
)

// Scorer rates how well a seeker profile fits a job posting.
type Scorer interface {
	Score(ctx context.Context, profile model.SeekerProfile, job model.JobPosting) (int, error)
}

// New builds the scorer selected by cfg.Provider.
func New(ctx context.Context, cfg config.ScoringConfig, log *zap.Logger) (Scorer, error) {
	switch cfg.Provider {
	case config.ProviderLocal, "":
		return NewLocalScorer(), nil
	case config.ProviderGemini:
		gen, err := NewGenerator(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			return nil, err
		}
		return NewGeminiScorer(gen, log, cfg.Gemini.MaxLogLength), nil
	}
	return nil, fmt.Errorf("unknown scoring provider %q", cfg.Provider)
}

// Clamp bounds a raw score to [MinScore, MaxScore].
func Clamp(score int) int {
	switch {
	case score < MinScore:
		return MinScore
	case score > MaxScore:
		return MaxScore
	}
	return score
}

// resumeText is the scorer-facing text of a profile: skills first, then the
// free-form profile text.
func resumeText(p model.SeekerProfile) string {
	parts := make([]string, 0, len(p.Skills)+1)
	for _, s := range p.Skills {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	if t := strings.TrimSpace(p.ProfileText); t != "" {
		parts = append(parts, t)
	}
	return strings.Join(parts, " ")
}

func jobText(j model.JobPosting) string {
	return strings.TrimSpace(j.Description + " " + j.Requirements)
}
