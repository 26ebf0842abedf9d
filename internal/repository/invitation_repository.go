package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/models"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/pkg/database"
	"github.com/lib/pq"
)

const invitationColumns = `id, match_id, user_id, state, origin, cancel_reason, sent_at, updated_at`

type InvitationRepository struct {
	db *database.DB
}

func NewInvitationRepository(db *database.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// FindOrCreate 존재 확인 후 생성. 확인과 생성 사이의 경쟁은 유니크 제약이 막는다.
func (r *InvitationRepository) FindOrCreate(ctx context.Context, inv *models.Invitation) (*models.Invitation, bool, error) {
	existing, err := r.find(ctx, inv.MatchID, inv.UserID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	query := `
		INSERT INTO invitations (match_id, user_id, state, origin)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + invitationColumns

	created := &models.Invitation{}
	err = r.db.GetContext(ctx, created, query, inv.MatchID, inv.UserID, models.InvitationStatePending, inv.Origin)
	if database.IsUniqueViolation(err) {
		existing, err := r.find(ctx, inv.MatchID, inv.UserID)
		return existing, false, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create invitation: %w", err)
	}

	return created, true, nil
}

func (r *InvitationRepository) find(ctx context.Context, matchID, userID string) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE match_id = $1 AND user_id = $2`

	inv := &models.Invitation{}
	err := r.db.GetContext(ctx, inv, query, matchID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find invitation: %w", err)
	}
	return inv, nil
}

// InvitedUserIDs 이미 초대된 사용자 (상태 무관)
func (r *InvitationRepository) InvitedUserIDs(ctx context.Context, matchID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM invitations WHERE match_id = $1`, matchID); err != nil {
		return nil, fmt.Errorf("failed to list invited users: %w", err)
	}
	return ids, nil
}

// CancelPending 매치의 pending 초대 취소
func (r *InvitationRepository) CancelPending(ctx context.Context, matchID string, reason models.CancelReason) (int, error) {
	query := `
		UPDATE invitations
		SET state = 'cancelled', cancel_reason = $2, updated_at = NOW()
		WHERE match_id = $1 AND state = 'pending'
	`
	return r.exec(ctx, "cancel pending invitations", query, matchID, reason)
}

// ReactivateCancelled reason 으로 취소된 초대를 pending 으로 복구
func (r *InvitationRepository) ReactivateCancelled(ctx context.Context, matchID string, reason models.CancelReason) (int, error) {
	query := `
		UPDATE invitations
		SET state = 'pending', cancel_reason = NULL, updated_at = NOW()
		WHERE match_id = $1 AND state = 'cancelled' AND cancel_reason = $2
	`
	return r.exec(ctx, "reactivate invitations", query, matchID, reason)
}

// MarkAccepted 참가한 사용자의 pending 초대를 수락 처리
func (r *InvitationRepository) MarkAccepted(ctx context.Context, matchID, userID string) (bool, error) {
	query := `
		UPDATE invitations
		SET state = 'accepted', updated_at = NOW()
		WHERE match_id = $1 AND user_id = $2 AND state = 'pending'
	`
	n, err := r.exec(ctx, "accept invitation", query, matchID, userID)
	return n > 0, err
}

// CancelPendingForStates 종료된 매치에 남은 pending 초대 정리
func (r *InvitationRepository) CancelPendingForStates(ctx context.Context, states []models.MatchState, reason models.CancelReason) (int, error) {
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}

	query := `
		UPDATE invitations i
		SET state = 'cancelled', cancel_reason = $2, updated_at = NOW()
		FROM matches m
		WHERE i.match_id = m.id AND i.state = 'pending' AND m.state = ANY($1)
	`
	return r.exec(ctx, "cleanup invitations", query, pq.Array(names), reason)
}

// CountPending pending 초대 수
func (r *InvitationRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM invitations WHERE state = 'pending'`); err != nil {
		return 0, fmt.Errorf("failed to count pending invitations: %w", err)
	}
	return count, nil
}

// CountSentSince since 이후 발송된 초대 수
func (r *InvitationRepository) CountSentSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM invitations WHERE sent_at >= $1`, since); err != nil {
		return 0, fmt.Errorf("failed to count invitations: %w", err)
	}
	return count, nil
}

func (r *InvitationRepository) exec(ctx context.Context, op, query string, args ...interface{}) (int, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", op, err)
	}
	return int(n), nil
}
