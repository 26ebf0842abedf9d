package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/models"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/pkg/database"
)

const matchColumns = `
	id, sport_id, zone_id, organizer_id, scheduled_at, duration_minutes, address,
	required_players, confirmed_players, state, strategy, min_level, max_level,
	winning_team, started_at, finished_at, created_at, updated_at`

type MatchRepository struct {
	db *database.DB
}

func NewMatchRepository(db *database.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// Create 새 매치 생성 (id, 타임스탬프는 DB가 채움)
func (r *MatchRepository) Create(ctx context.Context, m *models.Match) error {
	query := `
		INSERT INTO matches (sport_id, zone_id, organizer_id, scheduled_at, duration_minutes, address,
		                     required_players, confirmed_players, state, strategy, min_level, max_level)
		VALUES (:sport_id, :zone_id, :organizer_id, :scheduled_at, :duration_minutes, :address,
		        :required_players, :confirmed_players, :state, :strategy, :min_level, :max_level)
		RETURNING id, created_at, updated_at
	`

	rows, err := r.db.NamedQueryContext(ctx, query, m)
	if err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return fmt.Errorf("failed to create match: no row returned")
	}
	if err := rows.Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return fmt.Errorf("failed to scan created match: %w", err)
	}

	return nil
}

// FindByID ID로 매치 찾기
func (r *MatchRepository) FindByID(ctx context.Context, id string) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	match := &models.Match{}
	err := r.db.GetContext(ctx, match, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find match: %w", err)
	}

	return match, nil
}

// UpdateState 상태 저장 (이전 상태 조건부)
func (r *MatchRepository) UpdateState(ctx context.Context, m *models.Match, from models.MatchState) error {
	query := `
		UPDATE matches
		SET state = $1,
		    winning_team = $2,
		    started_at = $3,
		    finished_at = $4,
		    updated_at = NOW()
		WHERE id = $5 AND state = $6
		RETURNING updated_at
	`

	var winningTeam *string
	if m.WinningTeam != nil {
		w := string(*m.WinningTeam)
		winningTeam = &w
	}

	err := r.db.QueryRowContext(ctx, query,
		m.State,
		winningTeam,
		m.StartedAt,
		m.FinishedAt,
		m.ID,
		from,
	).Scan(&m.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return ErrStateConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update match state: %w", err)
	}

	return nil
}

// IncrementConfirmedPlayers 확정 인원 원자적 증가
func (r *MatchRepository) IncrementConfirmedPlayers(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE matches
		SET confirmed_players = confirmed_players + 1, updated_at = NOW()
		WHERE id = $1 AND confirmed_players < required_players
		RETURNING confirmed_players
	`

	var confirmed int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&confirmed)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoCapacity
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment confirmed players: %w", err)
	}

	return confirmed, nil
}

// DecrementConfirmedPlayers 예약한 자리 반환
func (r *MatchRepository) DecrementConfirmedPlayers(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE matches
		SET confirmed_players = confirmed_players - 1, updated_at = NOW()
		WHERE id = $1 AND confirmed_players > 0
		RETURNING confirmed_players
	`

	var confirmed int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&confirmed)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("match %s has no confirmed players to release", id)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to decrement confirmed players: %w", err)
	}

	return confirmed, nil
}

// FindByState 상태별 매치 목록
func (r *MatchRepository) FindByState(ctx context.Context, state models.MatchState) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE state = $1 ORDER BY scheduled_at ASC`

	var matches []*models.Match
	if err := r.db.SelectContext(ctx, &matches, query, state); err != nil {
		return nil, fmt.Errorf("failed to query matches by state: %w", err)
	}

	return matches, nil
}

// FindByStateScheduledBetween 예정 시각이 (from, to] 인 매치
func (r *MatchRepository) FindByStateScheduledBetween(ctx context.Context, state models.MatchState, from, to time.Time) ([]*models.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE state = $1 AND scheduled_at > $2 AND scheduled_at <= $3
		ORDER BY scheduled_at ASC
	`

	var matches []*models.Match
	if err := r.db.SelectContext(ctx, &matches, query, state, from, to); err != nil {
		return nil, fmt.Errorf("failed to query upcoming matches: %w", err)
	}

	return matches, nil
}

// CountByState 상태별 매치 수
func (r *MatchRepository) CountByState(ctx context.Context, state models.MatchState) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM matches WHERE state = $1`, state); err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}
	return count, nil
}
