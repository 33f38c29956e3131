package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/AtharvaWandhare/synapse/internal/apperr"
	"github.com/AtharvaWandhare/synapse/internal/model"
)

// ─── Ledger ──────────────────────────────────────────────────────────────────

// RecordSwipe relies on swipes_active_pair_uq: of two concurrent inserts for
// the same pair exactly one returns a row.
func (s *Store) RecordSwipe(ctx context.Context, seekerID, jobID string, d model.Decision, at time.Time) (model.Swipe, *model.Match, error) {
	var (
		sw    model.Swipe
		match *model.Match
	)
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := requireLiveJob(ctx, tx, jobID); err != nil {
			return err
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO swipes (seeker_id, job_id, decision, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (seeker_id, job_id) WHERE superseded_at IS NULL DO NOTHING
			RETURNING `+swipeCols, seekerID, jobID, string(d), utc(at))
		var err error
		if sw, err = scanSwipe(row); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.Conflict("job already swiped")
			}
			return mapErr(err, "swipe")
		}
		if d != model.DecisionLike {
			return nil
		}
		m, err := insertMatch(ctx, tx, seekerID, jobID, sw.ID, at)
		if err != nil {
			return err
		}
		match = &m
		return nil
	})
	if err != nil {
		return model.Swipe{}, nil, err
	}
	return sw, match, nil
}

// Reapply serializes per pair on a transaction-scoped advisory lock so
// concurrent reapplies observe each other's supersede.
func (s *Store) Reapply(ctx context.Context, seekerID, jobID string, at time.Time) (model.Match, bool, error) {
	var (
		match   model.Match
		created bool
	)
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := requireLiveJob(ctx, tx, jobID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtextextended($1::text || ':' || $2::text, 0))`,
			seekerID, jobID); err != nil {
			return mapErr(err, "swipe")
		}

		var activeID, decision string
		err := tx.QueryRow(ctx, `
			SELECT id::text, decision FROM swipes
			WHERE seeker_id = $1 AND job_id = $2 AND superseded_at IS NULL
			FOR UPDATE`, seekerID, jobID).Scan(&activeID, &decision)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("no earlier swipe on this job")
			}
			return mapErr(err, "swipe")
		}

		likeID := activeID
		if model.Decision(decision) == model.DecisionDislike {
			if _, err := tx.Exec(ctx,
				`UPDATE swipes SET superseded_at = $2 WHERE id = $1`, activeID, utc(at)); err != nil {
				return mapErr(err, "swipe")
			}
			if err := tx.QueryRow(ctx, `
				INSERT INTO swipes (seeker_id, job_id, decision, created_at)
				VALUES ($1, $2, 'like', $3)
				RETURNING id::text`, seekerID, jobID, utc(at)).Scan(&likeID); err != nil {
				return mapErr(err, "swipe")
			}
		}

		existing, err := matchByPair(ctx, tx, seekerID, jobID)
		switch {
		case err == nil:
			match = existing
			return nil
		case apperr.KindOf(err) != apperr.KindNotFound:
			return err
		}
		match, err = insertMatch(ctx, tx, seekerID, jobID, likeID, at)
		created = err == nil
		return err
	})
	if err != nil {
		return model.Match{}, false, err
	}
	return match, created, nil
}

func (s *Store) GetMatch(ctx context.Context, matchID string) (model.MatchRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+matchCols+`, j.company_id::text
		FROM matches m JOIN jobs j ON j.id = m.job_id
		WHERE m.id = $1`, matchID)
	rec, err := scanRecord(row)
	if err != nil {
		return model.MatchRecord{}, mapErr(err, "match")
	}
	return rec, nil
}

func (s *Store) SetHidden(ctx context.Context, matchID string, hidden bool, at time.Time) (model.Match, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE matches AS m SET is_hidden_by_user = $2, updated_at = $3
		WHERE m.id = $1
		RETURNING `+matchCols, matchID, hidden, utc(at))
	m, err := scanMatch(row)
	if err != nil {
		return model.Match{}, mapErr(err, "match")
	}
	return m, nil
}

// TransitionStatus is a single guarded UPDATE. The history entry reads the
// pre-update status, so from and to are recorded atomically with the move.
func (s *Store) TransitionStatus(ctx context.Context, matchID string, from []model.Status, to model.Status, actor string, at time.Time) (model.Match, bool, error) {
	sources := make([]string, len(from))
	for i, f := range from {
		sources[i] = string(f)
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE matches AS m SET
			application_status = $2::text,
			status_history = m.status_history || jsonb_build_array(jsonb_build_object(
				'from', m.application_status, 'to', $2::text, 'actor', $4::text, 'at', $5::timestamptz)),
			updated_at = $5::timestamptz
		WHERE m.id = $1 AND m.application_status = ANY($3::text[])
		RETURNING `+matchCols, matchID, string(to), sources, actor, utc(at))
	m, err := scanMatch(row)
	if err == nil {
		return m, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Match{}, false, mapErr(err, "match")
	}

	// Guard failed or the match is missing; tell the two apart.
	rec, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return model.Match{}, false, err
	}
	return rec.Match, false, nil
}

func (s *Store) ListSeekerMatches(ctx context.Context, seekerID string, filter model.MatchFilter) ([]model.MatchView, error) {
	if filter == model.FilterSkipped {
		return s.listSkipped(ctx, seekerID)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+matchCols+`, `+jobCols+`, COALESCE(c.company_name, '')
		FROM matches m
		JOIN jobs j ON j.id = m.job_id
		LEFT JOIN companies c ON c.id = j.company_id
		WHERE m.seeker_id = $1 AND m.is_hidden_by_user = $2 AND NOT j.is_deleted
		ORDER BY m.matched_at DESC, m.id DESC`, seekerID, filter == model.FilterHidden)
	if err != nil {
		return nil, mapErr(err, "matches")
	}
	views, err := collect(rows, func(row rowScanner) (model.MatchView, error) {
		var md matchDest
		var jd jobDest
		var v model.MatchView
		targets := append(md.targets(), jd.targets()...)
		if err := row.Scan(append(targets, &v.CompanyName)...); err != nil {
			return v, err
		}
		m, err := md.value()
		if err != nil {
			return v, err
		}
		v.Match, v.Decision, v.Job = &m, model.DecisionLike, jd.value()
		return v, nil
	})
	if err != nil {
		return nil, mapErr(err, "matches")
	}
	return views, nil
}

func (s *Store) listSkipped(ctx context.Context, seekerID string) ([]model.MatchView, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobCols+`, COALESCE(c.company_name, '')
		FROM swipes s
		JOIN jobs j ON j.id = s.job_id
		LEFT JOIN companies c ON c.id = j.company_id
		WHERE s.seeker_id = $1 AND s.decision = 'dislike' AND s.superseded_at IS NULL
		  AND NOT j.is_deleted
		ORDER BY s.created_at DESC, j.id DESC`, seekerID)
	if err != nil {
		return nil, mapErr(err, "matches")
	}
	views, err := collect(rows, func(row rowScanner) (model.MatchView, error) {
		var jd jobDest
		v := model.MatchView{Decision: model.DecisionDislike}
		if err := row.Scan(append(jd.targets(), &v.CompanyName)...); err != nil {
			return v, err
		}
		v.Job = jd.value()
		return v, nil
	})
	if err != nil {
		return nil, mapErr(err, "matches")
	}
	return views, nil
}

func (s *Store) ListApplicants(ctx context.Context, companyID, jobID string) ([]model.Applicant, error) {
	if jobID != "" {
		job, err := s.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.IsDeleted {
			return nil, apperr.NotFound("job not found")
		}
		if job.CompanyID != companyID {
			return nil, apperr.Forbidden("job belongs to another company")
		}
	}
	return s.applicants(ctx, companyID, jobID, 0)
}

func (s *Store) CompanyDashboard(ctx context.Context, companyID string, recent int) (model.Dashboard, error) {
	var d model.Dashboard
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM jobs WHERE company_id = $1 AND NOT is_deleted),
			(SELECT count(*) FROM matches m JOIN jobs j ON j.id = m.job_id
			 WHERE j.company_id = $1 AND NOT j.is_deleted AND m.application_status <> 'rejected')`,
		companyID).Scan(&d.TotalJobs, &d.TotalApplicants)
	if err != nil {
		return model.Dashboard{}, mapErr(err, "company")
	}
	if d.Recent, err = s.applicants(ctx, companyID, "", recent); err != nil {
		return model.Dashboard{}, err
	}
	return d, nil
}

func (s *Store) applicants(ctx context.Context, companyID, jobID string, limit int) ([]model.Applicant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+matchCols+`, `+jobCols+`,
			p.seeker_id::text, p.profile_text, p.skills, p.updated_at
		FROM matches m
		JOIN jobs j ON j.id = m.job_id
		LEFT JOIN seeker_profiles p ON p.seeker_id = m.seeker_id
		WHERE j.company_id = $1 AND NOT j.is_deleted
		  AND m.application_status <> 'rejected'
		  AND ($2::text = '' OR m.job_id::text = $2::text)
		ORDER BY m.matched_at DESC, m.id DESC
		LIMIT $3::int`, companyID, jobID, limitArg(limit))
	if err != nil {
		return nil, mapErr(err, "applicants")
	}
	out, err := collect(rows, func(row rowScanner) (model.Applicant, error) {
		var (
			md        matchDest
			jd        jobDest
			a         model.Applicant
			profileID *string
			text      *string
			skills    []string
			updatedAt *time.Time
		)
		targets := append(md.targets(), jd.targets()...)
		if err := row.Scan(append(targets, &profileID, &text, &skills, &updatedAt)...); err != nil {
			return a, err
		}
		m, err := md.value()
		if err != nil {
			return a, err
		}
		a.Match, a.Job = m, jd.value()
		if profileID != nil {
			p := model.SeekerProfile{SeekerID: *profileID, Skills: skills}
			if text != nil {
				p.ProfileText = *text
			}
			if updatedAt != nil {
				p.UpdatedAt = *updatedAt
			}
			a.Profile = &p
		}
		return a, nil
	})
	if err != nil {
		return nil, mapErr(err, "applicants")
	}
	return out, nil
}

// ─── Transaction helpers ─────────────────────────────────────────────────────

func requireLiveJob(ctx context.Context, tx pgx.Tx, jobID string) error {
	var deleted bool
	if err := tx.QueryRow(ctx, `SELECT is_deleted FROM jobs WHERE id = $1`, jobID).Scan(&deleted); err != nil {
		return mapErr(err, "job")
	}
	if deleted {
		return apperr.NotFound("job not found")
	}
	return nil
}

func insertMatch(ctx context.Context, tx pgx.Tx, seekerID, jobID, swipeID string, at time.Time) (model.Match, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO matches AS m (seeker_id, job_id, swipe_id, matched_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING `+matchCols, seekerID, jobID, swipeID, utc(at))
	m, err := scanMatch(row)
	if err != nil {
		return model.Match{}, mapErr(err, "match")
	}
	return m, nil
}

func matchByPair(ctx context.Context, tx pgx.Tx, seekerID, jobID string) (model.Match, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+matchCols+` FROM matches m
		WHERE m.seeker_id = $1 AND m.job_id = $2`, seekerID, jobID)
	m, err := scanMatch(row)
	if err != nil {
		return model.Match{}, mapErr(err, "match")
	}
	return m, nil
}
