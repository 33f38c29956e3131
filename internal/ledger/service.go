package ledger

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/AtharvaWandhare/synapse/internal/apperr"
	"github.com/AtharvaWandhare/synapse/internal/model"
)

// ─── Dependencies ────────────────────────────────────────────────────────────

// Store is the persistence the ledger needs. Implementations must make
// RecordSwipe, Reapply and TransitionStatus atomic: the uniqueness of the
// active (seeker, job) swipe and the status guard are enforced by the store,
// never by a read in this package followed by a write.
type Store interface {
	// RecordSwipe inserts the swipe and, for a like, its pending match in one
	// transaction. A second active swipe for the pair is apperr.KindConflict;
	// an unknown or deleted job is apperr.KindNotFound.
	RecordSwipe(ctx context.Context, seekerID, jobID string, d model.Decision, at time.Time) (model.Swipe, *model.Match, error)

	// Reapply supersedes the active dislike with a like and creates the match
	// when none exists. created is false when the pair was already liked.
	Reapply(ctx context.Context, seekerID, jobID string, at time.Time) (m model.Match, created bool, err error)

	GetMatch(ctx context.Context, matchID string) (model.MatchRecord, error)
	SetHidden(ctx context.Context, matchID string, hidden bool, at time.Time) (model.Match, error)

	// TransitionStatus moves the match to `to` only while its current status
	// is one of from, appending a history entry. moved is false when the
	// guard did not match (another caller got there first); m is then the
	// current, unmodified row.
	TransitionStatus(ctx context.Context, matchID string, from []model.Status, to model.Status, actor string, at time.Time) (m model.Match, moved bool, err error)

	ListSeekerMatches(ctx context.Context, seekerID string, filter model.MatchFilter) ([]model.MatchView, error)
	ListApplicants(ctx context.Context, companyID, jobID string) ([]model.Applicant, error)
	CompanyDashboard(ctx context.Context, companyID string, recent int) (model.Dashboard, error)
}

// Notifier receives ledger events. Failures are logged, never propagated:
// the swipe or transition has already been committed.
type Notifier interface {
	SwipeRecorded(ctx context.Context, swipe model.Swipe, match *model.Match) error
	// MatchAccepted is called once per match, by the caller whose update
	// moved it into accepted.
	MatchAccepted(ctx context.Context, match model.MatchRecord) error
}

// ─── Service ─────────────────────────────────────────────────────────────────

const dashboardRecent = 5

// Service encapsulates the ledger business rules. It holds no state besides
// its dependencies.
type Service struct {
	store  Store
	notify Notifier
	log    *zap.Logger
	now    func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService returns a configured Service. notify may be nil.
func NewService(store Store, notify Notifier, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		store:  store,
		notify: notify,
		log:    log.Named("ledger"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SwipeResult acknowledges a recorded swipe. Match is nil for a dislike.
type SwipeResult struct {
	Swipe model.Swipe  `json:"swipe"`
	Match *model.Match `json:"match"`
}

// ─── Swipes ──────────────────────────────────────────────────────────────────

// RecordSwipe records the caller's decision on jobID exactly once.
func (s *Service) RecordSwipe(ctx context.Context, id model.Identity, jobID, decision string) (*SwipeResult, error) {
	if !id.IsSeeker() {
		return nil, apperr.Unauthorized("a job seeker account is required to swipe")
	}
	if jobID == "" {
		return nil, apperr.Invalid("job id is required")
	}
	d, err := model.ParseDecision(decision)
	if err != nil {
		return nil, apperr.Invalid(err.Error())
	}

	swipe, match, err := s.store.RecordSwipe(ctx, id.UserID, jobID, d, s.now())
	if err != nil {
		return nil, err
	}

	s.log.Debug("swipe recorded",
		zap.String("seeker_id", id.UserID),
		zap.String("job_id", jobID),
		zap.String("decision", string(d)),
	)

	if s.notify != nil {
		if err := s.notify.SwipeRecorded(ctx, swipe, match); err != nil {
			s.log.Warn("notify swipe recorded failed", zap.String("swipe_id", swipe.ID), zap.Error(err))
		}
	}

	return &SwipeResult{Swipe: swipe, Match: match}, nil
}

// Reapply turns the caller's earlier dislike of jobID into a like.
// created is false when the job was already liked and the existing match is
// returned unchanged.
func (s *Service) Reapply(ctx context.Context, id model.Identity, jobID string) (*model.Match, bool, error) {
	if !id.IsSeeker() {
		return nil, false, apperr.Unauthorized("a job seeker account is required to reapply")
	}
	if jobID == "" {
		return nil, false, apperr.Invalid("job id is required")
	}

	m, created, err := s.store.Reapply(ctx, id.UserID, jobID, s.now())
	if err != nil {
		return nil, false, err
	}
	if created {
		s.log.Debug("dislike reversed", zap.String("seeker_id", id.UserID), zap.String("job_id", jobID), zap.String("match_id", m.ID))
	}
	return &m, created, nil
}

// ─── Visibility ──────────────────────────────────────────────────────────────

// HideMatch suppresses a match from the caller's own listing. It touches
// neither the application status nor the underlying swipe.
func (s *Service) HideMatch(ctx context.Context, id model.Identity, matchID string) (*model.Match, error) {
	return s.setHidden(ctx, id, matchID, true)
}

// UnhideMatch restores a hidden match to the caller's listing.
func (s *Service) UnhideMatch(ctx context.Context, id model.Identity, matchID string) (*model.Match, error) {
	return s.setHidden(ctx, id, matchID, false)
}

func (s *Service) setHidden(ctx context.Context, id model.Identity, matchID string, hidden bool) (*model.Match, error) {
	if !id.IsSeeker() {
		return nil, apperr.Unauthorized("a job seeker account is required")
	}
	rec, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if rec.SeekerID != id.UserID {
		return nil, apperr.Forbidden("match belongs to another job seeker")
	}
	if rec.IsHiddenByUser == hidden {
		return &rec.Match, nil
	}
	m, err := s.store.SetHidden(ctx, matchID, hidden, s.now())
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ─── Application status ──────────────────────────────────────────────────────

// GetMatch returns a match visible to its seeker or to the company owning
// the job.
func (s *Service) GetMatch(ctx context.Context, id model.Identity, matchID string) (*model.MatchRecord, error) {
	rec, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !ownsSeekerSide(id, rec) && !ownsCompanySide(id, rec) {
		return nil, apperr.Forbidden("match is not visible to this account")
	}
	return &rec, nil
}

// SetApplicationStatus moves a match through the state machine.
//
// Returns apperr.KindNotFound for an unknown match, apperr.KindForbidden when
// the caller may not take this decision and apperr.KindConflict when the
// state machine rejects the move. Setting the current status again is a
// no-op.
func (s *Service) SetApplicationStatus(ctx context.Context, id model.Identity, matchID, newStatus string) (*model.Match, error) {
	if id.UserID == "" {
		return nil, apperr.Unauthorized("authentication required")
	}
	to, err := ParseStatus(newStatus)
	if err != nil {
		return nil, apperr.Invalid(err.Error())
	}

	rec, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	company := ownsCompanySide(id, rec)
	seeker := ownsSeekerSide(id, rec)
	switch {
	case RequiresCompany(to) && !company:
		return nil, apperr.Forbidden("only the company that owns the job can review this application")
	case !company && !seeker:
		return nil, apperr.Forbidden("match is not visible to this account")
	}

	if IsNoop(rec.ApplicationStatus, to) {
		return &rec.Match, nil
	}
	if !IsTransitionAllowed(rec.ApplicationStatus, to) {
		return nil, apperr.Newf(apperr.KindConflict, "transition %s → %s is not allowed", rec.ApplicationStatus, to)
	}

	m, moved, err := s.store.TransitionStatus(ctx, matchID, Sources(to), to, actorLabel(id), s.now())
	if err != nil {
		return nil, err
	}
	if !moved {
		// Lost a race: the match changed between the read and the guarded
		// update. Judge the request against the status that won.
		if IsNoop(m.ApplicationStatus, to) {
			return &m, nil
		}
		return nil, apperr.Newf(apperr.KindConflict, "transition %s → %s is not allowed", m.ApplicationStatus, to)
	}

	s.log.Info("application status changed",
		zap.String("match_id", m.ID),
		zap.String("from", string(rec.ApplicationStatus)),
		zap.String("to", string(to)),
		zap.String("actor", actorLabel(id)),
	)

	if IsAccepted(to) && s.notify != nil {
		if err := s.notify.MatchAccepted(ctx, model.MatchRecord{Match: m, CompanyID: rec.CompanyID}); err != nil {
			s.log.Warn("notify match accepted failed", zap.String("match_id", m.ID), zap.Error(err))
		}
	}

	return &m, nil
}

// ─── Listings ────────────────────────────────────────────────────────────────

// ListMatches returns the caller's liked, hidden or skipped jobs.
func (s *Service) ListMatches(ctx context.Context, id model.Identity, filter string) ([]model.MatchView, error) {
	if !id.IsSeeker() {
		return nil, apperr.Unauthorized("a job seeker account is required")
	}
	return s.store.ListSeekerMatches(ctx, id.UserID, model.ParseMatchFilter(filter))
}

// ListApplicants returns the non-rejected applicants to the caller's jobs,
// newest first, optionally restricted to one job.
func (s *Service) ListApplicants(ctx context.Context, id model.Identity, jobID string) ([]model.Applicant, error) {
	if !id.IsCompany() {
		return nil, apperr.Unauthorized("a company account is required")
	}
	return s.store.ListApplicants(ctx, id.UserID, jobID)
}

// Dashboard summarises the caller's postings and latest applicants.
func (s *Service) Dashboard(ctx context.Context, id model.Identity) (*model.Dashboard, error) {
	if !id.IsCompany() {
		return nil, apperr.Unauthorized("a company account is required")
	}
	d, err := s.store.CompanyDashboard(ctx, id.UserID, dashboardRecent)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func ownsSeekerSide(id model.Identity, rec model.MatchRecord) bool {
	return id.IsSeeker() && rec.SeekerID == id.UserID
}

func ownsCompanySide(id model.Identity, rec model.MatchRecord) bool {
	return id.IsCompany() && rec.CompanyID == id.UserID
}

func actorLabel(id model.Identity) string {
	return string(id.Role) + ":" + id.UserID
}
