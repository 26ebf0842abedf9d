package repository

import (
	"context"
	"fmt"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/models"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/pkg/database"
)

type ParticipantRepository struct {
	db *database.DB
}

func NewParticipantRepository(db *database.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// Create 참가 기록 생성 (match_id, user_id 유니크)
func (r *ParticipantRepository) Create(ctx context.Context, p *models.Participant) error {
	query := `
		INSERT INTO participants (match_id, user_id, team)
		VALUES ($1, $2, $3)
		RETURNING id, joined_at
	`

	err := r.db.QueryRowContext(ctx, query, p.MatchID, p.UserID, p.Team).Scan(&p.ID, &p.JoinedAt)
	if database.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create participant: %w", err)
	}

	return nil
}

// ListByMatch 매치 참가자 목록
func (r *ParticipantRepository) ListByMatch(ctx context.Context, matchID string) ([]*models.Participant, error) {
	query := `
		SELECT id, match_id, user_id, team, joined_at
		FROM participants
		WHERE match_id = $1
		ORDER BY joined_at ASC
	`

	var participants []*models.Participant
	if err := r.db.SelectContext(ctx, &participants, query, matchID); err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	return participants, nil
}

// CountByTeam 팀별 인원
func (r *ParticipantRepository) CountByTeam(ctx context.Context, matchID string) (models.TeamCounts, error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE team = 'A') AS team_a,
		       COUNT(*) FILTER (WHERE team = 'B') AS team_b
		FROM participants
		WHERE match_id = $1
	`

	var counts models.TeamCounts
	if err := r.db.GetContext(ctx, &counts, query, matchID); err != nil {
		return models.TeamCounts{}, fmt.Errorf("failed to count teams: %w", err)
	}

	return counts, nil
}

// Exists 이미 참가했는지
func (r *ParticipantRepository) Exists(ctx context.Context, matchID, userID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM participants WHERE match_id = $1 AND user_id = $2)`
	if err := r.db.GetContext(ctx, &exists, query, matchID, userID); err != nil {
		return false, fmt.Errorf("failed to check participant: %w", err)
	}
	return exists, nil
}
