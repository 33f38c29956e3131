package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/AtharvaWandhare/synapse/internal/apperr"
	"github.com/AtharvaWandhare/synapse/internal/model"
)

// ─── Catalog ─────────────────────────────────────────────────────────────────

func (s *Store) CreateJob(ctx context.Context, job model.JobPosting) (model.JobPosting, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO jobs AS j (id, company_id, title, location, description, requirements,
			job_type, salary_range, applications_closed, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, $10, $11)
		RETURNING `+jobCols,
		job.ID, job.CompanyID, job.Title, job.Location, job.Description, job.Requirements,
		string(job.JobType), job.SalaryRange, job.ApplicationsClosed, utc(job.CreatedAt), utc(job.UpdatedAt))
	out, err := scanJob(row)
	if err != nil {
		return model.JobPosting{}, mapErr(err, "job")
	}
	return out, nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (model.JobPosting, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobCols+` FROM jobs j WHERE j.id = $1`, jobID)
	job, err := scanJob(row)
	if err != nil {
		return model.JobPosting{}, mapErr(err, "job")
	}
	return job, nil
}

func (s *Store) UpdateJob(ctx context.Context, jobID string, p model.JobPatch, at time.Time) (model.JobPosting, error) {
	var jobType *string
	if p.JobType != nil {
		v := string(*p.JobType)
		jobType = &v
	}
	// An empty salary range clears the column; NULL leaves it untouched.
	row := s.pool.QueryRow(ctx, `
		UPDATE jobs AS j SET
			title        = COALESCE($2::text, j.title),
			location     = COALESCE($3::text, j.location),
			description  = COALESCE($4::text, j.description),
			requirements = COALESCE($5::text, j.requirements),
			job_type     = COALESCE($6::text, j.job_type),
			salary_range = CASE WHEN $7::text IS NULL THEN j.salary_range ELSE NULLIF($7::text, '') END,
			updated_at   = $8
		WHERE j.id = $1 AND NOT j.is_deleted
		RETURNING `+jobCols,
		jobID, p.Title, p.Location, p.Description, p.Requirements, jobType, p.SalaryRange, utc(at))
	job, err := scanJob(row)
	if err != nil {
		return model.JobPosting{}, mapErr(err, "job")
	}
	return job, nil
}

func (s *Store) SetApplicationsClosed(ctx context.Context, jobID string, closed bool, at time.Time) (model.JobPosting, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE jobs AS j SET applications_closed = $2, updated_at = $3
		WHERE j.id = $1 AND NOT j.is_deleted
		RETURNING `+jobCols, jobID, closed, utc(at))
	job, err := scanJob(row)
	if err != nil {
		return model.JobPosting{}, mapErr(err, "job")
	}
	return job, nil
}

func (s *Store) SoftDeleteJob(ctx context.Context, jobID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET is_deleted = true, updated_at = $2
		WHERE id = $1 AND NOT is_deleted`, jobID, utc(at))
	if err != nil {
		return mapErr(err, "job")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("job not found")
	}
	return nil
}

func (s *Store) ListCompanyJobs(ctx context.Context, companyID string) ([]model.JobPosting, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobCols+` FROM jobs j
		WHERE j.company_id = $1 AND NOT j.is_deleted
		ORDER BY j.created_at DESC, j.id DESC`, companyID)
	if err != nil {
		return nil, mapErr(err, "jobs")
	}
	jobs, err := collect(rows, scanJob)
	if err != nil {
		return nil, mapErr(err, "jobs")
	}
	return jobs, nil
}

func (s *Store) UpsertCompany(ctx context.Context, c model.Company) (model.Company, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO companies (id, company_name, description, website, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			company_name = EXCLUDED.company_name,
			description  = EXCLUDED.description,
			website      = EXCLUDED.website
		RETURNING id::text, company_name, description, website, created_at`,
		c.ID, c.Name, c.Description, c.Website, utc(c.CreatedAt),
	).Scan(&c.ID, &c.Name, &c.Description, &c.Website, &c.CreatedAt)
	if err != nil {
		return model.Company{}, mapErr(err, "company")
	}
	return c, nil
}

// ─── Feed ────────────────────────────────────────────────────────────────────

// NextEligibleJob excludes every job the seeker ever swiped, superseded rows
// included, so a reapplied job does not come back.
func (s *Store) NextEligibleJob(ctx context.Context, seekerID string) (model.JobCard, bool, error) {
	var card model.JobCard
	var jobType string
	err := s.pool.QueryRow(ctx, `
		SELECT j.id::text, j.title, COALESCE(c.company_name, ''), j.location, j.description,
			j.requirements, j.job_type, j.salary_range
		FROM jobs j
		LEFT JOIN companies c ON c.id = j.company_id
		WHERE NOT j.is_deleted
		  AND NOT j.applications_closed
		  AND NOT EXISTS (
			SELECT 1 FROM swipes s WHERE s.seeker_id = $1 AND s.job_id = j.id
		  )
		ORDER BY j.created_at ASC, j.id ASC
		LIMIT 1`, seekerID,
	).Scan(&card.JobID, &card.Title, &card.Company, &card.Location, &card.Description,
		&card.Requirements, &jobType, &card.SalaryRange)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.JobCard{}, false, nil
	}
	if err != nil {
		return model.JobCard{}, false, mapErr(err, "feed")
	}
	card.JobType = model.JobType(jobType)
	return card, true, nil
}
