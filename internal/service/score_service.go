package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/models"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/repository"
	"go.uber.org/zap"
)

const (
	WinScoreDelta  = 1
	LossScoreDelta = -1
)

// ScoreService 경기 결과에 따른 점수 조정
type ScoreService struct {
	users  repository.UserStore
	logger *zap.Logger
}

func NewScoreService(users repository.UserStore, logger *zap.Logger) *ScoreService {
	return &ScoreService{
		users:  users,
		logger: logger.Named("score"),
	}
}

// Apply 승리 팀 +1, 나머지 -1. 실패한 참가자가 있어도 나머지는 계속 처리한다.
func (s *ScoreService) Apply(ctx context.Context, participants []*models.Participant, winner models.Team) error {
	var errs []error
	for _, p := range participants {
		delta := LossScoreDelta
		if p.Team == winner {
			delta = WinScoreDelta
		}

		if err := s.users.IncrementScore(ctx, p.UserID, delta); err != nil {
			errs = append(errs, fmt.Errorf("participant %s: %w", p.UserID, err))
			continue
		}

		s.logger.Debug("Score adjusted",
			zap.String("matchId", p.MatchID),
			zap.String("userId", p.UserID),
			zap.Int("delta", delta))
	}

	return errors.Join(errs...)
}
