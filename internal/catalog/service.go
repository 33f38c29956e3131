// Package catalog manages company-owned job postings: the leaf data
// provider of the swipe feed.
//
// Postings are mutated only by their owning company and are never removed:
// DeleteJob is a soft delete, because matches keep referencing the posting.
package catalog

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AtharvaWandhare/synapse/internal/apperr"
	"github.com/AtharvaWandhare/synapse/internal/model"
)

// Store is the persistence the catalog needs.
type Store interface {
	CreateJob(ctx context.Context, job model.JobPosting) (model.JobPosting, error)
	// GetJob returns deleted postings too; callers decide visibility.
	GetJob(ctx context.Context, jobID string) (model.JobPosting, error)
	UpdateJob(ctx context.Context, jobID string, patch model.JobPatch, at time.Time) (model.JobPosting, error)
	SetApplicationsClosed(ctx context.Context, jobID string, closed bool, at time.Time) (model.JobPosting, error)
	SoftDeleteJob(ctx context.Context, jobID string, at time.Time) error
	ListCompanyJobs(ctx context.Context, companyID string) ([]model.JobPosting, error)
	UpsertCompany(ctx context.Context, c model.Company) (model.Company, error)
}

// JobDraft is the company input for a new posting.
type JobDraft struct {
	Title        string  `json:"title"`
	Location     string  `json:"location"`
	Description  string  `json:"description"`
	Requirements string  `json:"requirements"`
	JobType      string  `json:"jobType"`
	SalaryRange  *string `json:"salaryRange"`
}

// JobUpdate is the company input for a partial update. Nil means unchanged.
type JobUpdate struct {
	Title        *string `json:"title"`
	Location     *string `json:"location"`
	Description  *string `json:"description"`
	Requirements *string `json:"requirements"`
	JobType      *string `json:"jobType"`
	SalaryRange  *string `json:"salaryRange"`
}

// Service encapsulates the catalog rules.
type Service struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

// NewService returns a configured Service.
func NewService(store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store: store,
		log:   log.Named("catalog"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateJob publishes a new open posting owned by the calling company.
func (s *Service) CreateJob(ctx context.Context, id model.Identity, d JobDraft) (*model.JobPosting, error) {
	if !id.IsCompany() {
		return nil, apperr.Unauthorized("a company account is required")
	}

	title := strings.TrimSpace(d.Title)
	if title == "" {
		return nil, apperr.Invalid("title is required")
	}
	description := strings.TrimSpace(d.Description)
	if description == "" {
		return nil, apperr.Invalid("description is required")
	}
	jobType := model.JobTypeFullTime
	if d.JobType != "" {
		t, err := model.ParseJobType(d.JobType)
		if err != nil {
			return nil, apperr.Invalid(err.Error())
		}
		jobType = t
	}

	now := s.now()
	job, err := s.store.CreateJob(ctx, model.JobPosting{
		CompanyID:    id.UserID,
		Title:        title,
		Location:     strings.TrimSpace(d.Location),
		Description:  description,
		Requirements: strings.TrimSpace(d.Requirements),
		JobType:      jobType,
		SalaryRange:  trimmedOrNil(d.SalaryRange),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("job created", zap.String("job_id", job.ID), zap.String("company_id", id.UserID))
	return &job, nil
}

// UpdateJob applies a partial update to one of the caller's postings.
func (s *Service) UpdateJob(ctx context.Context, id model.Identity, jobID string, u JobUpdate) (*model.JobPosting, error) {
	if _, err := s.owned(ctx, id, jobID); err != nil {
		return nil, err
	}

	patch := model.JobPatch{
		Location:     trimmedPtr(u.Location),
		Requirements: trimmedPtr(u.Requirements),
		SalaryRange:  trimmedPtr(u.SalaryRange),
	}
	if u.Title != nil {
		t := strings.TrimSpace(*u.Title)
		if t == "" {
			return nil, apperr.Invalid("title must not be empty")
		}
		patch.Title = &t
	}
	if u.Description != nil {
		d := strings.TrimSpace(*u.Description)
		if d == "" {
			return nil, apperr.Invalid("description must not be empty")
		}
		patch.Description = &d
	}
	if u.JobType != nil {
		t, err := model.ParseJobType(*u.JobType)
		if err != nil {
			return nil, apperr.Invalid(err.Error())
		}
		patch.JobType = &t
	}
	if patch.Empty() {
		return nil, apperr.Invalid("no fields to update")
	}

	job, err := s.store.UpdateJob(ctx, jobID, patch, s.now())
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// SetApplicationsClosed closes or reopens applications. Closed postings
// leave the feed but keep their matches.
func (s *Service) SetApplicationsClosed(ctx context.Context, id model.Identity, jobID string, closed bool) (*model.JobPosting, error) {
	current, err := s.owned(ctx, id, jobID)
	if err != nil {
		return nil, err
	}
	if current.ApplicationsClosed == closed {
		return current, nil
	}

	job, err := s.store.SetApplicationsClosed(ctx, jobID, closed, s.now())
	if err != nil {
		return nil, err
	}

	s.log.Info("job applications toggled", zap.String("job_id", jobID), zap.Bool("closed", closed))
	return &job, nil
}

// DeleteJob soft-deletes one of the caller's postings.
func (s *Service) DeleteJob(ctx context.Context, id model.Identity, jobID string) error {
	if _, err := s.owned(ctx, id, jobID); err != nil {
		return err
	}
	if err := s.store.SoftDeleteJob(ctx, jobID, s.now()); err != nil {
		return err
	}
	s.log.Info("job deleted", zap.String("job_id", jobID))
	return nil
}

// GetJob returns one of the caller's postings.
func (s *Service) GetJob(ctx context.Context, id model.Identity, jobID string) (*model.JobPosting, error) {
	return s.owned(ctx, id, jobID)
}

// ListJobs returns the caller's postings, newest first, without deleted ones.
func (s *Service) ListJobs(ctx context.Context, id model.Identity) ([]model.JobPosting, error) {
	if !id.IsCompany() {
		return nil, apperr.Unauthorized("a company account is required")
	}
	return s.store.ListCompanyJobs(ctx, id.UserID)
}

// UpdateCompany stores the caller's display profile shown on feed cards.
func (s *Service) UpdateCompany(ctx context.Context, id model.Identity, c model.Company) (*model.Company, error) {
	if !id.IsCompany() {
		return nil, apperr.Unauthorized("a company account is required")
	}
	c.ID = id.UserID
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, apperr.Invalid("company name is required")
	}
	c.Description = strings.TrimSpace(c.Description)
	c.Website = strings.TrimSpace(c.Website)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}

	out, err := s.store.UpsertCompany(ctx, c)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// owned loads a live posting and checks the caller owns it.
func (s *Service) owned(ctx context.Context, id model.Identity, jobID string) (*model.JobPosting, error) {
	if !id.IsCompany() {
		return nil, apperr.Unauthorized("a company account is required")
	}
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.IsDeleted {
		return nil, apperr.NotFound("job not found")
	}
	if job.CompanyID != id.UserID {
		return nil, apperr.Forbidden("job belongs to another company")
	}
	return &job, nil
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func trimmedOrNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
