// Package memory is an in-process implementation of every store interface.
//
// A single mutex serialises writers, which gives RecordSwipe, Reapply,
// TransitionStatus and CreateConversation the same atomicity the postgres
// driver gets from unique indexes and guarded updates. Values handed out
// are copies.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AtharvaWandhare/synapse/internal/apperr"
	"github.com/AtharvaWandhare/synapse/internal/catalog"
	"github.com/AtharvaWandhare/synapse/internal/chat"
	"github.com/AtharvaWandhare/synapse/internal/feed"
	"github.com/AtharvaWandhare/synapse/internal/ledger"
	"github.com/AtharvaWandhare/synapse/internal/model"
	"github.com/AtharvaWandhare/synapse/internal/profile"
	"github.com/AtharvaWandhare/synapse/internal/scoring"
)

var (
	_ catalog.Store = (*Store)(nil)
	_ feed.Store    = (*Store)(nil)
	_ ledger.Store  = (*Store)(nil)
	_ profile.Store = (*Store)(nil)
	_ scoring.Store = (*Store)(nil)
	_ chat.Store    = (*Store)(nil)
)

type pair struct{ seeker, job string }

// Store holds all state in maps guarded by mu.
type Store struct {
	mu sync.RWMutex

	companies     map[string]model.Company
	jobs          map[string]*model.JobPosting
	swipes        map[string]*model.Swipe
	activeSwipe   map[pair]string
	swiped        map[pair]bool
	matches       map[string]*model.Match
	matchByPair   map[pair]string
	profiles      map[string]model.SeekerProfile
	conversations map[string]model.Conversation
}

func New() *Store {
	return &Store{
		companies:     map[string]model.Company{},
		jobs:          map[string]*model.JobPosting{},
		swipes:        map[string]*model.Swipe{},
		activeSwipe:   map[pair]string{},
		swiped:        map[pair]bool{},
		matches:       map[string]*model.Match{},
		matchByPair:   map[pair]string{},
		profiles:      map[string]model.SeekerProfile{},
		conversations: map[string]model.Conversation{},
	}
}

// ─── Catalog ─────────────────────────────────────────────────────────────────

func (s *Store) CreateJob(_ context.Context, job model.JobPosting) (model.JobPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if _, dup := s.jobs[job.ID]; dup {
		return model.JobPosting{}, apperr.Conflict("job already exists")
	}
	j := cloneJob(job)
	s.jobs[job.ID] = &j
	return cloneJob(j), nil
}

func (s *Store) GetJob(_ context.Context, jobID string) (model.JobPosting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return model.JobPosting{}, apperr.NotFound("job not found")
	}
	return cloneJob(*j), nil
}

func (s *Store) UpdateJob(_ context.Context, jobID string, p model.JobPatch, at time.Time) (model.JobPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.liveJob(jobID)
	if err != nil {
		return model.JobPosting{}, err
	}
	if p.Title != nil {
		j.Title = *p.Title
	}
	if p.Location != nil {
		j.Location = *p.Location
	}
	if p.Description != nil {
		j.Description = *p.Description
	}
	if p.Requirements != nil {
		j.Requirements = *p.Requirements
	}
	if p.JobType != nil {
		j.JobType = *p.JobType
	}
	if p.SalaryRange != nil {
		if *p.SalaryRange == "" {
			j.SalaryRange = nil
		} else {
			v := *p.SalaryRange
			j.SalaryRange = &v
		}
	}
	j.UpdatedAt = at
	return cloneJob(*j), nil
}

func (s *Store) SetApplicationsClosed(_ context.Context, jobID string, closed bool, at time.Time) (model.JobPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.liveJob(jobID)
	if err != nil {
		return model.JobPosting{}, err
	}
	j.ApplicationsClosed = closed
	j.UpdatedAt = at
	return cloneJob(*j), nil
}

func (s *Store) SoftDeleteJob(_ context.Context, jobID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.liveJob(jobID)
	if err != nil {
		return err
	}
	j.IsDeleted = true
	j.UpdatedAt = at
	return nil
}

func (s *Store) ListCompanyJobs(_ context.Context, companyID string) ([]model.JobPosting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.JobPosting, 0)
	for _, j := range s.jobs {
		if j.CompanyID == companyID && !j.IsDeleted {
			out = append(out, cloneJob(*j))
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.After(out[b].CreatedAt)
		}
		return out[a].ID > out[b].ID
	})
	return out, nil
}

func (s *Store) UpsertCompany(_ context.Context, c model.Company) (model.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.companies[c.ID]; ok {
		c.CreatedAt = prev.CreatedAt
	}
	s.companies[c.ID] = c
	return c, nil
}

// ─── Feed ────────────────────────────────────────────────────────────────────

func (s *Store) NextEligibleJob(_ context.Context, seekerID string) (model.JobCard, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *model.JobPosting
	for _, j := range s.jobs {
		if !j.Eligible() || s.swiped[pair{seekerID, j.ID}] {
			continue
		}
		if best == nil || j.CreatedAt.Before(best.CreatedAt) ||
			(j.CreatedAt.Equal(best.CreatedAt) && j.ID < best.ID) {
			best = j
		}
	}
	if best == nil {
		return model.JobCard{}, false, nil
	}
	return model.JobCard{
		JobID:        best.ID,
		Title:        best.Title,
		Company:      s.companies[best.CompanyID].Name,
		Location:     best.Location,
		Description:  best.Description,
		Requirements: best.Requirements,
		JobType:      best.JobType,
		SalaryRange:  cloneString(best.SalaryRange),
	}, true, nil
}

// ─── Ledger ──────────────────────────────────────────────────────────────────

func (s *Store) RecordSwipe(_ context.Context, seekerID, jobID string, d model.Decision, at time.Time) (model.Swipe, *model.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.liveJob(jobID); err != nil {
		return model.Swipe{}, nil, err
	}
	key := pair{seekerID, jobID}
	if _, dup := s.activeSwipe[key]; dup {
		return model.Swipe{}, nil, apperr.Conflict("job already swiped")
	}

	sw := s.insertSwipe(key, d, at)
	if d != model.DecisionLike {
		return sw, nil, nil
	}
	m := s.insertMatch(key, sw.ID, at)
	return sw, &m, nil
}

func (s *Store) Reapply(_ context.Context, seekerID, jobID string, at time.Time) (model.Match, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.liveJob(jobID); err != nil {
		return model.Match{}, false, err
	}
	key := pair{seekerID, jobID}
	activeID, ok := s.activeSwipe[key]
	if !ok {
		return model.Match{}, false, apperr.NotFound("no earlier swipe on this job")
	}

	if s.swipes[activeID].Decision == model.DecisionDislike {
		superseded := at
		s.swipes[activeID].SupersededAt = &superseded
		delete(s.activeSwipe, key)
		sw := s.insertSwipe(key, model.DecisionLike, at)
		if _, exists := s.matchByPair[key]; !exists {
			return s.insertMatch(key, sw.ID, at), true, nil
		}
	}

	if id, exists := s.matchByPair[key]; exists {
		return cloneMatch(*s.matches[id]), false, nil
	}
	// An active like always has its match; repair if it does not.
	return s.insertMatch(key, activeID, at), true, nil
}

func (s *Store) GetMatch(_ context.Context, matchID string) (model.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.matches[matchID]
	if !ok {
		return model.MatchRecord{}, apperr.NotFound("match not found")
	}
	return s.record(m), nil
}

func (s *Store) SetHidden(_ context.Context, matchID string, hidden bool, at time.Time) (model.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[matchID]
	if !ok {
		return model.Match{}, apperr.NotFound("match not found")
	}
	m.IsHiddenByUser = hidden
	m.UpdatedAt = at
	return cloneMatch(*m), nil
}

func (s *Store) TransitionStatus(_ context.Context, matchID string, from []model.Status, to model.Status, actor string, at time.Time) (model.Match, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[matchID]
	if !ok {
		return model.Match{}, false, apperr.NotFound("match not found")
	}
	allowed := false
	for _, f := range from {
		if m.ApplicationStatus == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return cloneMatch(*m), false, nil
	}

	m.StatusHistory = append(m.StatusHistory, model.StatusChange{
		From:  m.ApplicationStatus,
		To:    to,
		Actor: actor,
		At:    at,
	})
	m.ApplicationStatus = to
	m.UpdatedAt = at
	return cloneMatch(*m), true, nil
}

func (s *Store) ListSeekerMatches(_ context.Context, seekerID string, filter model.MatchFilter) ([]model.MatchView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.MatchView, 0)
	if filter == model.FilterSkipped {
		for key, id := range s.activeSwipe {
			sw := s.swipes[id]
			if key.seeker != seekerID || sw.Decision != model.DecisionDislike {
				continue
			}
			j := s.jobs[key.job]
			if j == nil || j.IsDeleted {
				continue
			}
			out = append(out, model.MatchView{
				Decision:    model.DecisionDislike,
				Job:         cloneJob(*j),
				CompanyName: s.companies[j.CompanyID].Name,
			})
		}
		sort.Slice(out, func(a, b int) bool {
			sa, sb := s.swipes[s.activeSwipe[pair{seekerID, out[a].Job.ID}]], s.swipes[s.activeSwipe[pair{seekerID, out[b].Job.ID}]]
			if !sa.CreatedAt.Equal(sb.CreatedAt) {
				return sa.CreatedAt.After(sb.CreatedAt)
			}
			return out[a].Job.ID > out[b].Job.ID
		})
		return out, nil
	}

	wantHidden := filter == model.FilterHidden
	for _, m := range s.matches {
		if m.SeekerID != seekerID || m.IsHiddenByUser != wantHidden {
			continue
		}
		j := s.jobs[m.JobID]
		if j == nil || j.IsDeleted {
			continue
		}
		mc := cloneMatch(*m)
		out = append(out, model.MatchView{
			Match:       &mc,
			Decision:    model.DecisionLike,
			Job:         cloneJob(*j),
			CompanyName: s.companies[j.CompanyID].Name,
		})
	}
	sort.Slice(out, func(a, b int) bool { return newer(*out[a].Match, *out[b].Match) })
	return out, nil
}

func (s *Store) ListApplicants(_ context.Context, companyID, jobID string) ([]model.Applicant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if jobID != "" {
		j, err := s.liveJob(jobID)
		if err != nil {
			return nil, err
		}
		if j.CompanyID != companyID {
			return nil, apperr.Forbidden("job belongs to another company")
		}
	}
	return s.applicants(companyID, jobID), nil
}

func (s *Store) CompanyDashboard(_ context.Context, companyID string, recent int) (model.Dashboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := model.Dashboard{}
	for _, j := range s.jobs {
		if j.CompanyID == companyID && !j.IsDeleted {
			d.TotalJobs++
		}
	}
	all := s.applicants(companyID, "")
	d.TotalApplicants = len(all)
	if len(all) > recent {
		all = all[:recent]
	}
	d.Recent = all
	return d, nil
}

// ─── Profiles ────────────────────────────────────────────────────────────────

func (s *Store) UpsertSeekerProfile(_ context.Context, p model.SeekerProfile) (model.SeekerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.Skills = append([]string(nil), p.Skills...)
	s.profiles[p.SeekerID] = p
	return cloneProfile(p), nil
}

func (s *Store) GetSeekerProfile(_ context.Context, seekerID string) (model.SeekerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[seekerID]
	if !ok {
		return model.SeekerProfile{}, apperr.NotFound("profile not found")
	}
	return cloneProfile(p), nil
}

// ─── Scoring ─────────────────────────────────────────────────────────────────

func (s *Store) SetScore(_ context.Context, matchID string, score int, at time.Time) (model.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[matchID]
	if !ok {
		return model.Match{}, apperr.NotFound("match not found")
	}
	m.CompatibilityScore = &score
	m.UpdatedAt = at
	return cloneMatch(*m), nil
}

func (s *Store) ListJobMatches(_ context.Context, jobID string) ([]model.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.recordsWhere(0, func(m *model.Match) bool { return m.JobID == jobID }), nil
}

func (s *Store) ListUnscoredMatches(_ context.Context, limit int) ([]model.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.recordsWhere(limit, func(m *model.Match) bool { return m.CompatibilityScore == nil }), nil
}

// ─── Chat ────────────────────────────────────────────────────────────────────

func (s *Store) CreateConversation(_ context.Context, matchID string, at time.Time) (model.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.matches[matchID]; !ok {
		return model.Conversation{}, false, apperr.NotFound("match not found")
	}
	if c, ok := s.conversations[matchID]; ok {
		return c, false, nil
	}
	c := model.Conversation{ID: uuid.NewString(), MatchID: matchID, CreatedAt: at}
	s.conversations[matchID] = c
	return c, true, nil
}

func (s *Store) ListAcceptedWithoutConversation(_ context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.recordsWhere(limit, func(m *model.Match) bool {
		_, has := s.conversations[m.ID]
		return m.ApplicationStatus == model.StatusAccepted && !has
	})
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids, nil
}

// ConversationCount returns how many conversations exist for matchID.
func (s *Store) ConversationCount(matchID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.conversations[matchID]; ok {
		return 1
	}
	return 0
}

// SwipeHistory returns every swipe of the pair, oldest first, superseded
// ones included.
func (s *Store) SwipeHistory(seekerID, jobID string) []model.Swipe {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Swipe, 0)
	for _, sw := range s.swipes {
		if sw.SeekerID == seekerID && sw.JobID == jobID {
			out = append(out, *sw)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].SupersededAt != nil && out[b].SupersededAt == nil {
			return true
		}
		if out[a].SupersededAt == nil && out[b].SupersededAt != nil {
			return false
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out
}

// ─── Internals (callers hold mu) ─────────────────────────────────────────────

func (s *Store) liveJob(jobID string) (*model.JobPosting, error) {
	j, ok := s.jobs[jobID]
	if !ok || j.IsDeleted {
		return nil, apperr.NotFound("job not found")
	}
	return j, nil
}

func (s *Store) insertSwipe(key pair, d model.Decision, at time.Time) model.Swipe {
	sw := &model.Swipe{
		ID:        uuid.NewString(),
		SeekerID:  key.seeker,
		JobID:     key.job,
		Decision:  d,
		CreatedAt: at,
	}
	s.swipes[sw.ID] = sw
	s.activeSwipe[key] = sw.ID
	s.swiped[key] = true
	return *sw
}

func (s *Store) insertMatch(key pair, swipeID string, at time.Time) model.Match {
	m := &model.Match{
		ID:                uuid.NewString(),
		SeekerID:          key.seeker,
		JobID:             key.job,
		SwipeID:           swipeID,
		ApplicationStatus: model.StatusPending,
		StatusHistory:     []model.StatusChange{},
		MatchedAt:         at,
		UpdatedAt:         at,
	}
	s.matches[m.ID] = m
	s.matchByPair[key] = m.ID
	return cloneMatch(*m)
}

func (s *Store) record(m *model.Match) model.MatchRecord {
	rec := model.MatchRecord{Match: cloneMatch(*m)}
	if j, ok := s.jobs[m.JobID]; ok {
		rec.CompanyID = j.CompanyID
	}
	return rec
}

// recordsWhere returns matching records oldest first; limit <= 0 is no limit.
func (s *Store) recordsWhere(limit int, keep func(*model.Match) bool) []model.MatchRecord {
	out := make([]model.MatchRecord, 0)
	for _, m := range s.matches {
		if keep(m) {
			out = append(out, s.record(m))
		}
	}
	sort.Slice(out, func(a, b int) bool { return newer(out[b].Match, out[a].Match) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) applicants(companyID, jobID string) []model.Applicant {
	out := make([]model.Applicant, 0)
	for _, m := range s.matches {
		j := s.jobs[m.JobID]
		if j == nil || j.IsDeleted || j.CompanyID != companyID {
			continue
		}
		if jobID != "" && m.JobID != jobID {
			continue
		}
		if m.ApplicationStatus == model.StatusRejected {
			continue
		}
		a := model.Applicant{Match: cloneMatch(*m), Job: cloneJob(*j)}
		if p, ok := s.profiles[m.SeekerID]; ok {
			pc := cloneProfile(p)
			a.Profile = &pc
		}
		out = append(out, a)
	}
	sort.Slice(out, func(a, b int) bool { return newer(out[a].Match, out[b].Match) })
	return out
}

func newer(a, b model.Match) bool {
	if !a.MatchedAt.Equal(b.MatchedAt) {
		return a.MatchedAt.After(b.MatchedAt)
	}
	return a.ID > b.ID
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneJob(j model.JobPosting) model.JobPosting {
	j.SalaryRange = cloneString(j.SalaryRange)
	return j
}

func cloneMatch(m model.Match) model.Match {
	if m.CompatibilityScore != nil {
		v := *m.CompatibilityScore
		m.CompatibilityScore = &v
	}
	m.StatusHistory = append([]model.StatusChange{}, m.StatusHistory...)
	return m
}

func cloneProfile(p model.SeekerProfile) model.SeekerProfile {
	p.Skills = append([]string{}, p.Skills...)
	return p
}
