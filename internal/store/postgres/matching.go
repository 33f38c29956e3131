package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/AtharvaWandhare/synapse/internal/model"
)

// ─── Profiles ────────────────────────────────────────────────────────────────

func (s *Store) UpsertSeekerProfile(ctx context.Context, p model.SeekerProfile) (model.SeekerProfile, error) {
	if p.Skills == nil {
		p.Skills = []string{}
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO seeker_profiles (seeker_id, profile_text, skills, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (seeker_id) DO UPDATE SET
			profile_text = EXCLUDED.profile_text,
			skills       = EXCLUDED.skills,
			updated_at   = EXCLUDED.updated_at
		RETURNING seeker_id::text, profile_text, skills, updated_at`,
		p.SeekerID, p.ProfileText, p.Skills, utc(p.UpdatedAt),
	).Scan(&p.SeekerID, &p.ProfileText, &p.Skills, &p.UpdatedAt)
	if err != nil {
		return model.SeekerProfile{}, mapErr(err, "profile")
	}
	return p, nil
}

func (s *Store) GetSeekerProfile(ctx context.Context, seekerID string) (model.SeekerProfile, error) {
	var p model.SeekerProfile
	err := s.pool.QueryRow(ctx, `
		SELECT seeker_id::text, profile_text, skills, updated_at
		FROM seeker_profiles WHERE seeker_id = $1`, seekerID,
	).Scan(&p.SeekerID, &p.ProfileText, &p.Skills, &p.UpdatedAt)
	if err != nil {
		return model.SeekerProfile{}, mapErr(err, "profile")
	}
	return p, nil
}

// ─── Scoring ─────────────────────────────────────────────────────────────────

func (s *Store) SetScore(ctx context.Context, matchID string, score int, at time.Time) (model.Match, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE matches AS m SET compatibility_score = $2, updated_at = $3
		WHERE m.id = $1
		RETURNING `+matchCols, matchID, score, utc(at))
	m, err := scanMatch(row)
	if err != nil {
		return model.Match{}, mapErr(err, "match")
	}
	return m, nil
}

func (s *Store) ListJobMatches(ctx context.Context, jobID string) ([]model.MatchRecord, error) {
	return s.records(ctx, `m.job_id = $1`, 0, jobID)
}

func (s *Store) ListUnscoredMatches(ctx context.Context, limit int) ([]model.MatchRecord, error) {
	return s.records(ctx, `m.compatibility_score IS NULL`, limit)
}

// records lists match records oldest first. where binds args as $1..$n.
func (s *Store) records(ctx context.Context, where string, limit int, args ...any) ([]model.MatchRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s, j.company_id::text
		FROM matches m JOIN jobs j ON j.id = m.job_id
		WHERE %s
		ORDER BY m.matched_at ASC, m.id ASC
		LIMIT $%d::int`, matchCols, where, len(args)+1)
	rows, err := s.pool.Query(ctx, query, append(args, limitArg(limit))...)
	if err != nil {
		return nil, mapErr(err, "matches")
	}
	recs, err := collect(rows, scanRecord)
	if err != nil {
		return nil, mapErr(err, "matches")
	}
	return recs, nil
}

// ─── Chat ────────────────────────────────────────────────────────────────────

// CreateConversation leans on the unique match_id; the loser of a race reads
// the winner's row.
func (s *Store) CreateConversation(ctx context.Context, matchID string, at time.Time) (model.Conversation, bool, error) {
	var c model.Conversation
	err := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (match_id, created_at) VALUES ($1, $2)
		ON CONFLICT (match_id) DO NOTHING
		RETURNING id::text, match_id::text, created_at`, matchID, utc(at),
	).Scan(&c.ID, &c.MatchID, &c.CreatedAt)
	if err == nil {
		return c, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Conversation{}, false, mapErr(err, "match")
	}

	err = s.pool.QueryRow(ctx, `
		SELECT id::text, match_id::text, created_at FROM conversations WHERE match_id = $1`, matchID,
	).Scan(&c.ID, &c.MatchID, &c.CreatedAt)
	if err != nil {
		return model.Conversation{}, false, mapErr(err, "conversation")
	}
	return c, false, nil
}

func (s *Store) ListAcceptedWithoutConversation(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id::text FROM matches m
		WHERE m.application_status = $1
		  AND NOT EXISTS (SELECT 1 FROM conversations c WHERE c.match_id = m.id)
		ORDER BY m.updated_at ASC, m.id ASC
		LIMIT $2::int`, string(model.StatusAccepted), limitArg(limit))
	if err != nil {
		return nil, mapErr(err, "matches")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, mapErr(err, "matches")
	}
	if len(ids) > 0 {
		s.log.Debug("accepted matches without conversation", zap.Int("count", len(ids)))
	}
	return ids, nil
}
