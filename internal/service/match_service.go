package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/event"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/metrics"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/models"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/repository"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/state"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/pkg/distributed"
	"go.uber.org/zap"
)

// DefaultDurationMinutes 길이를 지정하지 않은 매치
const DefaultDurationMinutes = 90

// MatchService 매치 변경의 유일한 진입점.
// 클라이언트 요청과 스케줄러 모두 여기를 거친다.
type MatchService struct {
	repos       repository.Repositories
	factory     *state.Factory
	bus         *event.Bus
	matchmaking *MatchmakingService
	scores      *ScoreService
	tasks       *TaskRunner
	locks       matchLocker
	metrics     *metrics.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

func NewMatchService(
	repos repository.Repositories,
	factory *state.Factory,
	bus *event.Bus,
	matchmaking *MatchmakingService,
	scores *ScoreService,
	tasks *TaskRunner,
	locker distributed.Locker,
	m *metrics.Metrics,
	logger *zap.Logger,
) *MatchService {
	logger = logger.Named("match")
	return &MatchService{
		repos:       repos,
		factory:     factory,
		bus:         bus,
		matchmaking: matchmaking,
		scores:      scores,
		tasks:       tasks,
		locks:       matchLocker{locker: locker, logger: logger},
		metrics:     m,
		logger:      logger,
		now:         time.Now,
	}
}

// Create 새 매치 생성 후 첫 매칭을 백그라운드로 요청한다
func (s *MatchService) Create(ctx context.Context, organizerID string, req *models.CreateMatchRequest) (*models.Match, error) {
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}

	organizer, err := s.repos.Users.FindByID(ctx, organizerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find organizer: %w", err)
	}
	if organizer == nil {
		return nil, ErrUserNotFound
	}

	strategy := models.StrategyName(strings.ToUpper(string(req.Strategy)))
	if strategy == "" {
		strategy = s.matchmaking.strategies.Default()
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = DefaultDurationMinutes
	}

	match := &models.Match{
		SportID:         req.SportID,
		ZoneID:          req.ZoneID,
		OrganizerID:     organizerID,
		ScheduledAt:     req.ScheduledAt.UTC(),
		DurationMinutes: duration,
		Address:         req.Address,
		RequiredPlayers: req.RequiredPlayers,
		State:           models.MatchStateNeedsPlayers,
		Strategy:        strategy,
		MinLevel:        req.MinLevel,
		MaxLevel:        req.MaxLevel,
	}

	if err := s.repos.Matches.Create(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	s.logger.Info("Match created",
		zap.String("matchId", match.ID),
		zap.String("organizerId", organizerID),
		zap.String("strategy", string(strategy)),
		zap.Int("requiredPlayers", match.RequiredPlayers))

	matchID := match.ID
	err = s.tasks.Submit("initial-matchmaking", func(ctx context.Context) error {
		_, err := s.matchmaking.Run(ctx, matchID, strategy)
		return err
	})
	if err != nil {
		s.logger.Warn("Initial matchmaking not scheduled", zap.String("matchId", matchID), zap.Error(err))
	}

	return match, nil
}

func (s *MatchService) validateCreate(req *models.CreateMatchRequest) error {
	switch {
	case req.SportID == "" || req.ZoneID == "":
		return fmt.Errorf("%w: sport and zone are required", ErrInvalidInput)
	case req.RequiredPlayers < 2:
		return fmt.Errorf("%w: at least 2 players are required", ErrInvalidInput)
	case req.ScheduledAt.IsZero():
		return fmt.Errorf("%w: scheduled date is required", ErrInvalidInput)
	case !req.ScheduledAt.After(s.now()):
		return fmt.Errorf("%w: scheduled date must be in the future", ErrInvalidInput)
	case req.DurationMinutes < 0:
		return fmt.Errorf("%w: duration must not be negative", ErrInvalidInput)
	case req.MinLevel != nil && req.MaxLevel != nil && *req.MinLevel > *req.MaxLevel:
		return fmt.Errorf("%w: minLevel must not exceed maxLevel", ErrInvalidInput)
	}

	if req.Strategy != "" {
		if name := models.StrategyName(strings.ToUpper(string(req.Strategy))); !name.Valid() {
			return fmt.Errorf("%w: unknown strategy %q", ErrInvalidInput, req.Strategy)
		}
	}
	return nil
}

// Get 매치 조회
func (s *MatchService) Get(ctx context.Context, matchID string) (*models.Match, error) {
	match, err := s.repos.Matches.FindByID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to find match: %w", err)
	}
	if match == nil {
		return nil, ErrMatchNotFound
	}
	return match, nil
}

// Participants 매치 참가자 목록
func (s *MatchService) Participants(ctx context.Context, matchID string) ([]*models.Participant, error) {
	participants, err := s.repos.Participants.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return participants, nil
}

// teamCapacity 팀당 최대 인원
func teamCapacity(m *models.Match) int {
	return (m.RequiredPlayers + 1) / 2
}

// Join 매치 참가. team 이 nil 이면 인원이 적은 팀 (동률이면 A).
func (s *MatchService) Join(ctx context.Context, matchID, userID string, team *models.Team) (*models.Participant, error) {
	if team != nil && !team.Valid() {
		return nil, fmt.Errorf("%w: invalid team %q", ErrInvalidInput, *team)
	}

	release, err := s.locks.acquire(ctx, matchID)
	if err != nil {
		return nil, err
	}
	defer release()

	match, err := s.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}

	user, err := s.repos.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	current, err := s.factory.Get(match.State)
	if err != nil {
		return nil, err
	}
	if !current.AllowsInvitations() {
		return nil, fmt.Errorf("%w: cannot join a match in state %s", ErrInvalidState, match.State)
	}

	joined, err := s.repos.Participants.Exists(ctx, matchID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check participant: %w", err)
	}
	if joined {
		return nil, ErrAlreadyJoined
	}

	if match.ConfirmedPlayers >= match.RequiredPlayers {
		return nil, ErrMatchFull
	}

	counts, err := s.repos.Participants.CountByTeam(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to count teams: %w", err)
	}

	assigned := counts.Smaller()
	if team != nil {
		assigned = *team
	}
	if counts.Of(assigned) >= teamCapacity(match) {
		return nil, fmt.Errorf("%w: team %s", ErrTeamFull, assigned)
	}

	confirmed, err := s.repos.Matches.IncrementConfirmedPlayers(ctx, matchID)
	if errors.Is(err, repository.ErrNoCapacity) {
		return nil, ErrMatchFull
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update confirmed players: %w", err)
	}

	participant := &models.Participant{
		MatchID: matchID,
		UserID:  userID,
		Team:    assigned,
	}
	if err := s.repos.Participants.Create(ctx, participant); err != nil {
		s.releaseSlot(ctx, matchID)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyJoined
		}
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}
	match.ConfirmedPlayers = confirmed

	if _, err := s.repos.Invitations.MarkAccepted(ctx, matchID, userID); err != nil {
		s.logger.Warn("Failed to accept invitation",
			zap.String("matchId", matchID),
			zap.String("userId", userID),
			zap.Error(err))
	}

	s.logger.Info("Player joined",
		zap.String("matchId", matchID),
		zap.String("userId", userID),
		zap.String("team", string(assigned)),
		zap.Int("confirmedPlayers", confirmed),
		zap.Int("requiredPlayers", match.RequiredPlayers))

	if auto, ok := current.(state.AutoTransitioner); ok {
		from := match.State
		if auto.CheckAutoTransition(match) {
			// 참가는 이미 저장됐다. 전이는 스케줄러가 다시 시도한다.
			if err := s.persist(ctx, match, from); err != nil {
				s.logger.Error("Auto transition failed",
					zap.String("matchId", matchID),
					zap.String("from", string(from)),
					zap.Error(err))
			}
		}
	}

	return participant, nil
}

// releaseSlot 참가자 저장 실패 시 미리 올린 확정 인원을 되돌린다
func (s *MatchService) releaseSlot(ctx context.Context, matchID string) {
	if _, err := s.repos.Matches.DecrementConfirmedPlayers(context.WithoutCancel(ctx), matchID); err != nil {
		s.logger.Error("Failed to release reserved slot",
			zap.String("matchId", matchID),
			zap.Error(err))
	}
}

// ChangeStateWithValidation 전이표 검사 후 상태 객체에 위임하고 저장, 이벤트 발행
func (s *MatchService) ChangeStateWithValidation(ctx context.Context, matchID string, requested models.MatchState) (*models.Match, error) {
	return s.transition(ctx, matchID, requested, nil)
}

// Finalize 진행 중인 매치 종료. 승리 팀이 있으면 점수를 조정한다.
// 점수 조정 실패는 이미 저장된 종료 상태에 영향을 주지 않는다.
func (s *MatchService) Finalize(ctx context.Context, matchID string, winner *models.Team) (*models.Match, error) {
	if winner != nil && !winner.Valid() {
		return nil, fmt.Errorf("%w: invalid team %q", ErrInvalidInput, *winner)
	}

	match, err := s.transition(ctx, matchID, models.MatchStateFinished, winner)
	if err != nil {
		return nil, err
	}

	if winner == nil {
		return match, nil
	}

	participants, err := s.repos.Participants.ListByMatch(ctx, matchID)
	if err != nil {
		s.logger.Error("Score adjustment skipped", zap.String("matchId", matchID), zap.Error(err))
		return match, nil
	}
	if err := s.scores.Apply(ctx, participants, *winner); err != nil {
		s.logger.Error("Score adjustment incomplete", zap.String("matchId", matchID), zap.Error(err))
	}

	return match, nil
}

func (s *MatchService) transition(ctx context.Context, matchID string, to models.MatchState, winner *models.Team) (*models.Match, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: %w %q", ErrInvalidInput, state.ErrUnknownState, to)
	}

	release, err := s.locks.acquire(ctx, matchID)
	if err != nil {
		return nil, err
	}
	defer release()

	match, err := s.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}

	from := match.State
	if !s.factory.CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	current, err := s.factory.Get(from)
	if err != nil {
		return nil, err
	}
	if err := state.Apply(current, match, to, winner); err != nil {
		if errors.Is(err, state.ErrNoOpenSlot) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidState, err)
		}
		return nil, err
	}

	if err := s.persist(ctx, match, from); err != nil {
		return nil, err
	}

	return match, nil
}

// persist 상태 저장 후 이벤트 발행. 매치 락을 잡은 상태에서 호출한다.
func (s *MatchService) persist(ctx context.Context, match *models.Match, from models.MatchState) error {
	if err := s.repos.Matches.UpdateState(ctx, match, from); err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			return ErrStateConflict
		}
		return fmt.Errorf("failed to update match state: %w", err)
	}

	s.metrics.Transition(string(from), string(match.State))
	s.logger.Info("Match state changed",
		zap.String("matchId", match.ID),
		zap.String("from", string(from)),
		zap.String("to", string(match.State)))

	// 요청이 끝나도 구독자 처리는 끝까지 진행
	s.bus.Publish(context.WithoutCancel(ctx), event.Event{
		Match:      match,
		From:       from,
		To:         match.State,
		OccurredAt: s.now(),
	})
	return nil
}
