// Package postgres implements every store interface on a pgx connection
// pool. Uniqueness of the active swipe and of the conversation per match is
// enforced by indexes; status transitions are guarded UPDATEs.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/AtharvaWandhare/synapse/internal/apperr"
	"github.com/AtharvaWandhare/synapse/internal/catalog"
	"github.com/AtharvaWandhare/synapse/internal/chat"
	"github.com/AtharvaWandhare/synapse/internal/feed"
	"github.com/AtharvaWandhare/synapse/internal/ledger"
	"github.com/AtharvaWandhare/synapse/internal/model"
	"github.com/AtharvaWandhare/synapse/internal/profile"
	"github.com/AtharvaWandhare/synapse/internal/scoring"
)

//go:embed schema.sql
var schemaSQL string

var (
	_ catalog.Store = (*Store)(nil)
	_ feed.Store    = (*Store)(nil)
	_ ledger.Store  = (*Store)(nil)
	_ profile.Store = (*Store)(nil)
	_ scoring.Store = (*Store)(nil)
	_ chat.Store    = (*Store)(nil)
)

// Store is the PostgreSQL storage driver.
type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(pool *pgxpool.Pool, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{pool: pool, log: log.Named("postgres")}
}

// Migrate applies the embedded schema. It is safe to run repeatedly.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// ─── Error mapping ───────────────────────────────────────────────────────────

const (
	sqlstateUniqueViolation     = "23505"
	sqlstateForeignKeyViolation = "23503"
	sqlstateInvalidText         = "22P02"
)

// mapErr classifies driver errors for entity. Malformed ids and dangling
// references read as NotFound, the caller named something that is not there.
func mapErr(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(entity + " not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlstateUniqueViolation:
			return apperr.Wrap(apperr.KindConflict, entity+" already exists", err)
		case sqlstateInvalidText, sqlstateForeignKeyViolation:
			return apperr.Wrap(apperr.KindNotFound, entity+" not found", err)
		}
	}
	return fmt.Errorf("%s: %w", entity, err)
}

// ─── Row scanning ────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

const jobCols = `j.id::text, j.company_id::text, j.title, j.location, j.description,
	j.requirements, j.job_type, j.salary_range, j.applications_closed, j.is_deleted,
	j.created_at, j.updated_at`

type jobDest struct {
	job     model.JobPosting
	jobType string
}

func (d *jobDest) targets() []any {
	j := &d.job
	return []any{
		&j.ID, &j.CompanyID, &j.Title, &j.Location, &j.Description,
		&j.Requirements, &d.jobType, &j.SalaryRange, &j.ApplicationsClosed, &j.IsDeleted,
		&j.CreatedAt, &j.UpdatedAt,
	}
}

func (d *jobDest) value() model.JobPosting {
	d.job.JobType = model.JobType(d.jobType)
	return d.job
}

func scanJob(row rowScanner) (model.JobPosting, error) {
	var d jobDest
	if err := row.Scan(d.targets()...); err != nil {
		return model.JobPosting{}, err
	}
	return d.value(), nil
}

const matchCols = `m.id::text, m.seeker_id::text, m.job_id::text, m.swipe_id::text,
	m.application_status, m.is_hidden_by_user, m.compatibility_score, m.status_history,
	m.matched_at, m.updated_at`

type matchDest struct {
	match   model.Match
	status  string
	history []byte
}

func (d *matchDest) targets() []any {
	m := &d.match
	return []any{
		&m.ID, &m.SeekerID, &m.JobID, &m.SwipeID,
		&d.status, &m.IsHiddenByUser, &m.CompatibilityScore, &d.history,
		&m.MatchedAt, &m.UpdatedAt,
	}
}

func (d *matchDest) value() (model.Match, error) {
	d.match.ApplicationStatus = model.Status(d.status)
	d.match.StatusHistory = []model.StatusChange{}
	if len(d.history) > 0 {
		if err := json.Unmarshal(d.history, &d.match.StatusHistory); err != nil {
			return model.Match{}, fmt.Errorf("decode status history of match %s: %w", d.match.ID, err)
		}
	}
	return d.match, nil
}

func scanMatch(row rowScanner) (model.Match, error) {
	var d matchDest
	if err := row.Scan(d.targets()...); err != nil {
		return model.Match{}, err
	}
	return d.value()
}

// scanRecord reads matchCols followed by j.company_id.
func scanRecord(row rowScanner) (model.MatchRecord, error) {
	var d matchDest
	var companyID string
	if err := row.Scan(append(d.targets(), &companyID)...); err != nil {
		return model.MatchRecord{}, err
	}
	m, err := d.value()
	if err != nil {
		return model.MatchRecord{}, err
	}
	return model.MatchRecord{Match: m, CompanyID: companyID}, nil
}

const swipeCols = `id::text, seeker_id::text, job_id::text, decision, created_at, superseded_at`

func scanSwipe(row rowScanner) (model.Swipe, error) {
	var s model.Swipe
	var decision string
	if err := row.Scan(&s.ID, &s.SeekerID, &s.JobID, &decision, &s.CreatedAt, &s.SupersededAt); err != nil {
		return model.Swipe{}, err
	}
	s.Decision = model.Decision(decision)
	return s, nil
}

func collect[T any](rows pgx.Rows, scan func(rowScanner) (T, error)) ([]T, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (T, error) { return scan(row) })
}

func limitArg(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}

func utc(t time.Time) time.Time { return t.UTC() }
