package service

import (
	"context"
	"fmt"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/models"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/repository"
)

// DefaultScoreHistoryRange HISTORIAL 전략의 기본 점수 폭
const DefaultScoreHistoryRange = 5

// Strategy 매치에 초대할 후보 사용자를 고르는 규칙
type Strategy interface {
	Name() models.StrategyName
	// Candidates exclude 에 있는 사용자는 결과에 포함되지 않는다
	Candidates(ctx context.Context, m *models.Match, exclude []string) ([]*models.User, error)
}

// ZoneStrategy 같은 지역, 같은 선호 종목
type ZoneStrategy struct {
	users repository.UserStore
}

func NewZoneStrategy(users repository.UserStore) *ZoneStrategy {
	return &ZoneStrategy{users: users}
}

func (s *ZoneStrategy) Name() models.StrategyName { return models.StrategyByZone }

func (s *ZoneStrategy) Candidates(ctx context.Context, m *models.Match, exclude []string) ([]*models.User, error) {
	zone := m.ZoneID
	return s.users.ListCandidates(ctx, models.CandidateCriteria{
		SportID:        m.SportID,
		ZoneID:         &zone,
		ExcludeUserIDs: exclude,
	})
}

// LevelStrategy 레벨 범위 안의 사용자. 범위가 없으면 후보도 없다.
type LevelStrategy struct {
	users repository.UserStore
}

func NewLevelStrategy(users repository.UserStore) *LevelStrategy {
	return &LevelStrategy{users: users}
}

func (s *LevelStrategy) Name() models.StrategyName { return models.StrategyByLevel }

func (s *LevelStrategy) Candidates(ctx context.Context, m *models.Match, exclude []string) ([]*models.User, error) {
	if !m.HasLevelRange() {
		return nil, nil
	}
	min, max := *m.MinLevel, *m.MaxLevel
	return s.users.ListCandidates(ctx, models.CandidateCriteria{
		SportID:        m.SportID,
		MinLevel:       &min,
		MaxLevel:       &max,
		ExcludeUserIDs: exclude,
	})
}

// ScoreHistoryStrategy 주최자 점수 ±scoreRange 안의 사용자
type ScoreHistoryStrategy struct {
	users      repository.UserStore
	scoreRange int
}

func NewScoreHistoryStrategy(users repository.UserStore, scoreRange int) *ScoreHistoryStrategy {
	return &ScoreHistoryStrategy{users: users, scoreRange: scoreRange}
}

func (s *ScoreHistoryStrategy) Name() models.StrategyName { return models.StrategyByScoreHistory }

func (s *ScoreHistoryStrategy) Candidates(ctx context.Context, m *models.Match, exclude []string) ([]*models.User, error) {
	organizer, err := s.users.FindByID(ctx, m.OrganizerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find organizer: %w", err)
	}
	if organizer == nil {
		return nil, nil
	}

	min, max := organizer.Score-s.scoreRange, organizer.Score+s.scoreRange
	return s.users.ListCandidates(ctx, models.CandidateCriteria{
		SportID:        m.SportID,
		MinScore:       &min,
		MaxScore:       &max,
		ExcludeUserIDs: exclude,
	})
}

// Strategies 이름 → 전략
type Strategies struct {
	byName   map[models.StrategyName]Strategy
	fallback models.StrategyName
}

// NewStrategies 기본 전략 세 가지를 등록한다
func NewStrategies(users repository.UserStore, defaultStrategy models.StrategyName, scoreRange int) *Strategies {
	if !defaultStrategy.Valid() {
		defaultStrategy = models.StrategyByZone
	}
	s := &Strategies{
		byName:   make(map[models.StrategyName]Strategy),
		fallback: defaultStrategy,
	}
	s.Register(NewZoneStrategy(users))
	s.Register(NewLevelStrategy(users))
	s.Register(NewScoreHistoryStrategy(users, scoreRange))
	return s
}

func (s *Strategies) Register(strategy Strategy) {
	s.byName[strategy.Name()] = strategy
}

// Default 이름 없이 생성된 매치가 쓰는 전략
func (s *Strategies) Default() models.StrategyName {
	return s.fallback
}

// Resolve 빈 이름은 기본 전략
func (s *Strategies) Resolve(name models.StrategyName) (Strategy, error) {
	if name == "" {
		name = s.fallback
	}
	strategy, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidInput, name)
	}
	return strategy, nil
}

// Others primary 를 제외한 전략들 (고정 순서)
func (s *Strategies) Others(primary models.StrategyName) []Strategy {
	var out []Strategy
	for _, name := range models.AllStrategies {
		if name == primary {
			continue
		}
		if strategy, ok := s.byName[name]; ok {
			out = append(out, strategy)
		}
	}
	return out
}
