package service

import (
	"context"
	"fmt"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/metrics"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/models"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/notifier"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/repository"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/state"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/pkg/distributed"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// MatchmakingService 전략으로 후보를 찾아 초대를 만드는 조정자
type MatchmakingService struct {
	repos      repository.Repositories
	factory    *state.Factory
	strategies *Strategies
	notifier   notifier.Notifier
	tasks      *TaskRunner
	locks      matchLocker
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

func NewMatchmakingService(
	repos repository.Repositories,
	factory *state.Factory,
	strategies *Strategies,
	n notifier.Notifier,
	tasks *TaskRunner,
	locker distributed.Locker,
	m *metrics.Metrics,
	logger *zap.Logger,
) *MatchmakingService {
	logger = logger.Named("matchmaking")
	return &MatchmakingService{
		repos:      repos,
		factory:    factory,
		strategies: strategies,
		notifier:   n,
		tasks:      tasks,
		locks:      matchLocker{locker: locker, logger: logger},
		metrics:    m,
		logger:     logger,
	}
}

// Run 전략을 실행하고 새로 만든 초대 수를 반환한다. 빈 이름은 기본 전략.
func (s *MatchmakingService) Run(ctx context.Context, matchID string, name models.StrategyName) (int, error) {
	strategy, err := s.strategies.Resolve(name)
	if err != nil {
		return 0, err
	}

	release, err := s.locks.acquire(ctx, matchID)
	if err != nil {
		return 0, err
	}
	defer release()

	match, err := s.repos.Matches.FindByID(ctx, matchID)
	if err != nil {
		return 0, fmt.Errorf("failed to find match: %w", err)
	}
	if match == nil {
		return 0, ErrMatchNotFound
	}

	current, err := s.factory.Get(match.State)
	if err != nil {
		return 0, err
	}
	if !current.AllowsInvitations() {
		s.logger.Debug("Match no longer accepts invitations",
			zap.String("matchId", matchID),
			zap.String("state", string(match.State)))
		return 0, nil
	}

	participants, err := s.repos.Participants.ListByMatch(ctx, matchID)
	if err != nil {
		return 0, fmt.Errorf("failed to list participants: %w", err)
	}

	exclude := lo.Uniq(append(
		lo.Map(participants, func(p *models.Participant, _ int) string { return p.UserID }),
		match.OrganizerID,
	))

	candidates, err := strategy.Candidates(ctx, match, exclude)
	if err != nil {
		return 0, fmt.Errorf("failed to find candidates: %w", err)
	}

	invited, err := s.repos.Invitations.InvitedUserIDs(ctx, matchID)
	if err != nil {
		return 0, fmt.Errorf("failed to list invitations: %w", err)
	}

	skip := lo.SliceToMap(append(invited, exclude...), func(id string) (string, struct{}) {
		return id, struct{}{}
	})
	fresh := lo.Reject(lo.UniqBy(candidates, func(u *models.User) string { return u.ID }), func(u *models.User, _ int) bool {
		_, found := skip[u.ID]
		return found
	})

	created := 0
	for _, user := range fresh {
		inv, isNew, err := s.repos.Invitations.FindOrCreate(ctx, &models.Invitation{
			MatchID: matchID,
			UserID:  user.ID,
			Origin:  string(strategy.Name()),
		})
		if err != nil {
			return created, fmt.Errorf("failed to create invitation: %w", err)
		}
		if !isNew {
			continue
		}

		created++
		s.metrics.InvitationCreated(inv.Origin)
		s.notifyInvitation(inv)
	}

	if created > 0 {
		s.logger.Info("Invitations created",
			zap.String("matchId", matchID),
			zap.String("strategy", string(strategy.Name())),
			zap.Int("candidates", len(candidates)),
			zap.Int("created", created))
	}

	return created, nil
}

// RunPrimary 매치에 지정된 전략으로 실행
func (s *MatchmakingService) RunPrimary(ctx context.Context, m *models.Match) (int, error) {
	return s.Run(ctx, m.ID, m.Strategy)
}

// RunFallbacks 지정된 전략 외의 모든 전략으로 실행. 개별 실패는 로그만 남긴다.
func (s *MatchmakingService) RunFallbacks(ctx context.Context, m *models.Match) (int, error) {
	primary := m.Strategy
	if primary == "" {
		primary = s.strategies.Default()
	}

	total := 0
	for _, strategy := range s.strategies.Others(primary) {
		n, err := s.Run(ctx, m.ID, strategy.Name())
		total += n
		if err != nil {
			s.logger.Warn("Fallback strategy failed",
				zap.String("matchId", m.ID),
				zap.String("strategy", string(strategy.Name())),
				zap.Error(err))
		}
	}
	return total, nil
}

func (s *MatchmakingService) notifyInvitation(inv *models.Invitation) {
	err := s.tasks.Submit("notify-invitation", func(ctx context.Context) error {
		return s.notifier.NotifyNewInvitation(ctx, inv)
	})
	if err != nil {
		s.logger.Warn("Invitation notification dropped",
			zap.String("matchId", inv.MatchID),
			zap.String("userId", inv.UserID),
			zap.Error(err))
	}
}
