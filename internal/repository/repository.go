package repository

import (
	"context"
	"errors"
	"time"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/models"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/pkg/database"
)

var (
	// ErrDuplicate 유니크 제약 위반
	ErrDuplicate = errors.New("duplicate record")
	// ErrStateConflict 기대한 이전 상태와 저장된 상태가 다름
	ErrStateConflict = errors.New("match state changed concurrently")
	// ErrNoCapacity 필요 인원이 이미 채워짐
	ErrNoCapacity = errors.New("match has no free slots")
)

// MatchStore 매치 저장소. FindByID 는 없으면 (nil, nil) 을 반환한다.
type MatchStore interface {
	Create(ctx context.Context, m *models.Match) error
	FindByID(ctx context.Context, id string) (*models.Match, error)
	// UpdateState 상태 관련 필드 저장. 저장된 상태가 from 이 아니면 ErrStateConflict.
	UpdateState(ctx context.Context, m *models.Match, from models.MatchState) error
	// IncrementConfirmedPlayers 자리가 남아 있을 때만 1 증가시키고 새 값을 반환
	IncrementConfirmedPlayers(ctx context.Context, id string) (int, error)
	// DecrementConfirmedPlayers 0 보다 클 때만 1 감소시키고 새 값을 반환
	DecrementConfirmedPlayers(ctx context.Context, id string) (int, error)
	FindByState(ctx context.Context, state models.MatchState) ([]*models.Match, error)
	FindByStateScheduledBetween(ctx context.Context, state models.MatchState, from, to time.Time) ([]*models.Match, error)
	CountByState(ctx context.Context, state models.MatchState) (int, error)
}

type ParticipantStore interface {
	// Create (match, user) 중복이면 ErrDuplicate
	Create(ctx context.Context, p *models.Participant) error
	ListByMatch(ctx context.Context, matchID string) ([]*models.Participant, error)
	CountByTeam(ctx context.Context, matchID string) (models.TeamCounts, error)
	Exists(ctx context.Context, matchID, userID string) (bool, error)
}

type InvitationStore interface {
	// FindOrCreate (match, user) 초대가 이미 있으면 그것을, 없으면 새로 만든다
	FindOrCreate(ctx context.Context, inv *models.Invitation) (*models.Invitation, bool, error)
	InvitedUserIDs(ctx context.Context, matchID string) ([]string, error)
	CancelPending(ctx context.Context, matchID string, reason models.CancelReason) (int, error)
	// ReactivateCancelled 주어진 사유로 취소된 초대만 pending 으로 되돌린다
	ReactivateCancelled(ctx context.Context, matchID string, reason models.CancelReason) (int, error)
	MarkAccepted(ctx context.Context, matchID, userID string) (bool, error)
	// CancelPendingForStates 해당 상태 매치들의 pending 초대를 취소
	CancelPendingForStates(ctx context.Context, states []models.MatchState, reason models.CancelReason) (int, error)
	CountPending(ctx context.Context) (int, error)
	CountSentSince(ctx context.Context, since time.Time) (int, error)
}

type UserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListCandidates(ctx context.Context, criteria models.CandidateCriteria) ([]*models.User, error)
	IncrementScore(ctx context.Context, userID string, delta int) error
}

// Repositories 코어가 사용하는 저장소 묶음
type Repositories struct {
	Matches      MatchStore
	Participants ParticipantStore
	Invitations  InvitationStore
	Users        UserStore
}

// NewPostgres PostgreSQL 저장소 묶음
func NewPostgres(db *database.DB) Repositories {
	return Repositories{
		Matches:      NewMatchRepository(db),
		Participants: NewParticipantRepository(db),
		Invitations:  NewInvitationRepository(db),
		Users:        NewUserRepository(db),
	}
}
