package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/config"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/metrics"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/models"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/repository"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/state"
	"go.uber.org/zap"
)

const (
	TimerStateAdvance         = "state-advance"
	TimerMatchmaking          = "matchmaking"
	TimerMatchmakingIntensive = "matchmaking-intensive"
	TimerInvitationCleanup    = "invitation-cleanup"
)

// closedStates 초대 정리 대상 매치 상태
var closedStates = []models.MatchState{models.MatchStateCancelled, models.MatchStateFinished}

// AdvanceResult 상태 진행 한 번의 결과
type AdvanceResult struct {
	Cancelled int `json:"cancelled"`
	Formed    int `json:"formed"`
	Started   int `json:"started"`
	Finished  int `json:"finished"`
	Failed    int `json:"failed"`
}

// Scheduler 시계 기반 전이와 반복 매칭. 모든 전이는 MatchService 를 거친다.
type Scheduler struct {
	matches     *MatchService
	matchmaking *MatchmakingService
	repos       repository.Repositories
	factory     *state.Factory
	cfg         config.SchedulerConfig
	logger      *zap.Logger
	now         func() time.Time

	timers map[string]*Timer
	order  []string
}

func NewScheduler(
	matches *MatchService,
	matchmaking *MatchmakingService,
	repos repository.Repositories,
	factory *state.Factory,
	cfg config.SchedulerConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Scheduler {
	s := &Scheduler{
		matches:     matches,
		matchmaking: matchmaking,
		repos:       repos,
		factory:     factory,
		cfg:         cfg,
		logger:      logger.Named("scheduler"),
		now:         time.Now,
		timers:      make(map[string]*Timer),
	}

	s.add(NewTimer(TimerStateAdvance, cfg.StateAdvanceInterval, func(ctx context.Context) error {
		_, err := s.AdvanceStates(ctx)
		return err
	}, s.logger, m))
	s.add(NewTimer(TimerMatchmaking, cfg.MatchmakingInterval, func(ctx context.Context) error {
		_, err := s.RunMatchmaking(ctx)
		return err
	}, s.logger, m))
	s.add(NewTimer(TimerMatchmakingIntensive, cfg.MatchmakingIntensiveInterval, func(ctx context.Context) error {
		_, err := s.RunIntensiveMatchmaking(ctx)
		return err
	}, s.logger, m))
	s.add(NewTimer(TimerInvitationCleanup, cfg.InvitationCleanupInterval, func(ctx context.Context) error {
		_, err := s.CleanupInvitations(ctx)
		return err
	}, s.logger, m))

	return s
}

func (s *Scheduler) add(t *Timer) {
	s.timers[t.Name()] = t
	s.order = append(s.order, t.Name())
}

func (s *Scheduler) timer(name string) (*Timer, error) {
	t, ok := s.timers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimer, name)
	}
	return t, nil
}

// StartAll 모든 타이머 시작
func (s *Scheduler) StartAll() {
	for _, name := range s.order {
		s.timers[name].Start()
	}
}

// StopAll 모든 타이머 중지
func (s *Scheduler) StopAll() {
	for _, name := range s.order {
		s.timers[name].Stop()
	}
}

// Start 타이머 하나 시작. 이미 실행 중이면 false.
func (s *Scheduler) Start(name string) (bool, error) {
	t, err := s.timer(name)
	if err != nil {
		return false, err
	}
	return t.Start(), nil
}

// Stop 타이머 하나 중지. 이미 멈춰 있으면 false.
func (s *Scheduler) Stop(name string) (bool, error) {
	t, err := s.timer(name)
	if err != nil {
		return false, err
	}
	return t.Stop(), nil
}

// RunNow 다음 주기를 기다리지 않고 실행. 실행 중이면 건너뛴다.
func (s *Scheduler) RunNow(ctx context.Context, name string) (bool, error) {
	t, err := s.timer(name)
	if err != nil {
		return false, err
	}
	return t.RunOnce(ctx)
}

// Status 타이머 상태 (등록 순서)
func (s *Scheduler) Status() []TimerStatus {
	out := make([]TimerStatus, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.timers[name].Status())
	}
	return out
}

// AdvanceStates 예정 시각이 지난 모집 중 매치 취소, 시작 시각이 된 확정 매치 시작,
// 오래 진행된 매치 종료 (무승부)
func (s *Scheduler) AdvanceStates(ctx context.Context) (AdvanceResult, error) {
	var result AdvanceResult
	var errs []error
	now := s.now()

	recruiting, err := s.repos.Matches.FindByState(ctx, models.MatchStateNeedsPlayers)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to list matches needing players: %w", err))
	}
	for _, m := range recruiting {
		switch {
		case !m.ScheduledAt.After(now):
			if s.advance(ctx, m, models.MatchStateCancelled) {
				result.Cancelled++
			} else {
				result.Failed++
			}
		case m.ConfirmedPlayers >= m.RequiredPlayers:
			// 참가 시 자동 전이 저장이 실패한 매치
			if s.advance(ctx, m, models.MatchStateFormed) {
				result.Formed++
			} else {
				result.Failed++
			}
		}
	}

	confirmed, err := s.repos.Matches.FindByState(ctx, models.MatchStateConfirmed)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to list confirmed matches: %w", err))
	}
	if st, ok := s.stateOf(models.MatchStateConfirmed).(state.Confirmed); ok {
		for _, m := range confirmed {
			if !st.ShouldStart(m, now) {
				continue
			}
			if s.advance(ctx, m, models.MatchStateInProgress) {
				result.Started++
			} else {
				result.Failed++
			}
		}
	}

	running, err := s.repos.Matches.FindByState(ctx, models.MatchStateInProgress)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to list matches in progress: %w", err))
	}
	if st, ok := s.stateOf(models.MatchStateInProgress).(state.InProgress); ok {
		for _, m := range running {
			if st.Elapsed(m, now) <= s.cfg.AutoFinishAfter {
				continue
			}
			if s.advance(ctx, m, models.MatchStateFinished) {
				result.Finished++
			} else {
				result.Failed++
			}
		}
	}

	if result != (AdvanceResult{}) {
		s.logger.Info("State advance completed",
			zap.Int("cancelled", result.Cancelled),
			zap.Int("formed", result.Formed),
			zap.Int("started", result.Started),
			zap.Int("finished", result.Finished),
			zap.Int("failed", result.Failed))
	}

	return result, errors.Join(errs...)
}

func (s *Scheduler) stateOf(name models.MatchState) state.State {
	st, err := s.factory.Get(name)
	if err != nil {
		s.logger.Error("Unknown state", zap.String("state", string(name)), zap.Error(err))
		return nil
	}
	return st
}

// advance 실패는 매치 단위로 로그만 남기고 다음 매치로 넘어간다
func (s *Scheduler) advance(ctx context.Context, m *models.Match, to models.MatchState) bool {
	if _, err := s.matches.ChangeStateWithValidation(ctx, m.ID, to); err != nil {
		s.logger.Warn("Automatic transition failed",
			zap.String("matchId", m.ID),
			zap.String("from", string(m.State)),
			zap.String("to", string(to)),
			zap.Error(err))
		return false
	}
	return true
}

// RunMatchmaking 가까운 시일 안의 모집 중 매치에 다시 매칭
func (s *Scheduler) RunMatchmaking(ctx context.Context) (int, error) {
	now := s.now()
	upcoming, err := s.repos.Matches.FindByStateScheduledBetween(ctx, models.MatchStateNeedsPlayers, now, now.Add(s.cfg.MatchmakingHorizon))
	if err != nil {
		return 0, fmt.Errorf("failed to list upcoming matches: %w", err)
	}

	total := 0
	for _, m := range upcoming {
		n, err := s.matchmaking.RunPrimary(ctx, m)
		total += n
		if err != nil {
			s.logger.Warn("Matchmaking failed", zap.String("matchId", m.ID), zap.Error(err))
		}
	}

	s.logger.Info("Matchmaking pass completed",
		zap.Int("matches", len(upcoming)),
		zap.Int("invitations", total))
	return total, nil
}

// RunIntensiveMatchmaking 임박한 매치는 기본 전략 후에도 모자라면 나머지 전략도 시도
func (s *Scheduler) RunIntensiveMatchmaking(ctx context.Context) (int, error) {
	now := s.now()
	urgent, err := s.repos.Matches.FindByStateScheduledBetween(ctx, models.MatchStateNeedsPlayers, now, now.Add(s.cfg.IntensiveHorizon))
	if err != nil {
		return 0, fmt.Errorf("failed to list urgent matches: %w", err)
	}

	total := 0
	for _, m := range urgent {
		n, err := s.matchmaking.RunPrimary(ctx, m)
		total += n
		if err != nil {
			s.logger.Warn("Primary matchmaking failed", zap.String("matchId", m.ID), zap.Error(err))
		}

		fresh, err := s.repos.Matches.FindByID(ctx, m.ID)
		if err != nil {
			s.logger.Warn("Failed to reload match", zap.String("matchId", m.ID), zap.Error(err))
			continue
		}
		if !stillShort(fresh) {
			continue
		}

		n, _ = s.matchmaking.RunFallbacks(ctx, fresh)
		total += n
	}

	s.logger.Info("Intensive matchmaking pass completed",
		zap.Int("matches", len(urgent)),
		zap.Int("invitations", total))
	return total, nil
}

// stillShort 여전히 모집 중이고 인원이 모자란 경우
func stillShort(m *models.Match) bool {
	return m != nil && m.State == models.MatchStateNeedsPlayers && m.ConfirmedPlayers < m.RequiredPlayers
}

// CleanupInvitations 종료된 매치에 남은 pending 초대 취소
func (s *Scheduler) CleanupInvitations(ctx context.Context) (int, error) {
	n, err := s.repos.Invitations.CancelPendingForStates(ctx, closedStates, models.CancelReasonMatchClosed)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup invitations: %w", err)
	}

	s.logger.Info("Invitation cleanup completed", zap.Int("cancelled", n))
	return n, nil
}
