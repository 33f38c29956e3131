// Package feed selects the next job card a seeker has not decided on yet.
//
// The selector keeps no state of its own: "what has this seeker seen" lives
// entirely in the swipes table, so repeated calls before a decision return
// the same card and a restart never resurfaces a decided posting.
package feed

import (
	"context"

	"go.uber.org/zap"

	"github.com/AtharvaWandhare/synapse/internal/apperr"
	"github.com/AtharvaWandhare/synapse/internal/model"
)

// ErrFeedExhausted is the normal end of the feed. It is a distinct kind from
// a NotFound lookup failure and callers should not retry on it.
var ErrFeedExhausted = apperr.New(apperr.KindExhausted, "no more jobs")

// Store returns the first eligible posting for a seeker, ordered by
// created_at then id. A posting is eligible when it is not deleted, its
// applications are open and the seeker has no swipe on it, superseded or
// not. found is false when nothing is eligible.
type Store interface {
	NextEligibleJob(ctx context.Context, seekerID string) (card model.JobCard, found bool, err error)
}

// Selector answers get-next-job requests.
type Selector struct {
	store Store
	log   *zap.Logger
}

// NewSelector returns a Selector reading from store.
func NewSelector(store Store, log *zap.Logger) *Selector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Selector{store: store, log: log.Named("feed")}
}

// NextJob returns the next card for seekerID. An empty seekerID means the
// caller's own feed. Viewing a card does not consume it.
func (s *Selector) NextJob(ctx context.Context, id model.Identity, seekerID string) (*model.JobCard, error) {
	if !id.IsSeeker() {
		return nil, apperr.Unauthorized("a job seeker account is required")
	}
	if seekerID == "" {
		seekerID = id.UserID
	}
	if seekerID != id.UserID {
		return nil, apperr.Forbidden("cannot read another job seeker's feed")
	}

	card, found, err := s.store.NextEligibleJob(ctx, seekerID)
	if err != nil {
		return nil, err
	}
	if !found {
		s.log.Debug("feed exhausted", zap.String("seeker_id", seekerID))
		return nil, ErrFeedExhausted
	}
	return &card, nil
}
