package service

import (
	"context"
	"fmt"
	"time"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/models"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/repository"
)

// Stats 관리용 통계 스냅샷
type Stats struct {
	NeedingPlayers     int       `json:"needingPlayers"`
	DueSoon            int       `json:"dueSoon"`
	PendingInvitations int       `json:"pendingInvitations"`
	InvitationsToday   int       `json:"invitationsToday"`
	GeneratedAt        time.Time `json:"generatedAt"`
}

type StatsService struct {
	repos   repository.Repositories
	horizon time.Duration
	now     func() time.Time
}

// NewStatsService horizon 안에 예정된 모집 중 매치를 "곧 시작"으로 센다
func NewStatsService(repos repository.Repositories, horizon time.Duration) *StatsService {
	return &StatsService{
		repos:   repos,
		horizon: horizon,
		now:     time.Now,
	}
}

func (s *StatsService) Snapshot(ctx context.Context) (*Stats, error) {
	now := s.now()

	needing, err := s.repos.Matches.CountByState(ctx, models.MatchStateNeedsPlayers)
	if err != nil {
		return nil, fmt.Errorf("failed to count matches: %w", err)
	}

	dueSoon, err := s.repos.Matches.FindByStateScheduledBetween(ctx, models.MatchStateNeedsPlayers, now, now.Add(s.horizon))
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming matches: %w", err)
	}

	pending, err := s.repos.Invitations.CountPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count invitations: %w", err)
	}

	year, month, day := now.Date()
	today, err := s.repos.Invitations.CountSentSince(ctx, time.Date(year, month, day, 0, 0, 0, 0, now.Location()))
	if err != nil {
		return nil, fmt.Errorf("failed to count invitations: %w", err)
	}

	return &Stats{
		NeedingPlayers:     needing,
		DueSoon:            len(dueSoon),
		PendingInvitations: pending,
		InvitationsToday:   today,
		GeneratedAt:        now,
	}, nil
}
