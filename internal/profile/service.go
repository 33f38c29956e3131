// Package profile stores the seeker-side enrichment that feeds the scorer.
package profile

import (
	"context"
	"strings"
	"time"

	"github.com/AtharvaWandhare/synapse/internal/apperr"
	"github.com/AtharvaWandhare/synapse/internal/model"
)

const maxSkills = 50

type Store interface {
	UpsertSeekerProfile(ctx context.Context, p model.SeekerProfile) (model.SeekerProfile, error)
	GetSeekerProfile(ctx context.Context, seekerID string) (model.SeekerProfile, error)
}

// Input is the seeker-supplied profile body.
type Input struct {
	ProfileText string   `json:"profileText"`
	Skills      []string `json:"skills"`
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// UpsertSeekerProfile replaces the caller's profile. Skills are trimmed,
// lower-cased and de-duplicated in their original order.
func (s *Service) UpsertSeekerProfile(ctx context.Context, id model.Identity, in Input) (*model.SeekerProfile, error) {
	if !id.IsSeeker() {
		return nil, apperr.Unauthorized("a job seeker account is required")
	}
	skills := normalizeSkills(in.Skills)
	if len(skills) > maxSkills {
		return nil, apperr.Newf(apperr.KindInvalid, "at most %d skills are allowed", maxSkills)
	}

	p, err := s.store.UpsertSeekerProfile(ctx, model.SeekerProfile{
		SeekerID:    id.UserID,
		ProfileText: strings.TrimSpace(in.ProfileText),
		Skills:      skills,
		UpdatedAt:   s.now(),
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetSeekerProfile returns the caller's profile.
func (s *Service) GetSeekerProfile(ctx context.Context, id model.Identity) (*model.SeekerProfile, error) {
	if !id.IsSeeker() {
		return nil, apperr.Unauthorized("a job seeker account is required")
	}
	p, err := s.store.GetSeekerProfile(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func normalizeSkills(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, raw := range in {
		s := strings.ToLower(strings.TrimSpace(raw))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
