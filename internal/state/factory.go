package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/models"
)

// transitions 허용 전이표. 다른 곳에서 재정의하지 않는다.
var transitions = map[models.MatchState][]models.MatchState{
	models.MatchStateNeedsPlayers: {models.MatchStateFormed, models.MatchStateCancelled},
	models.MatchStateFormed:       {models.MatchStateConfirmed, models.MatchStateCancelled, models.MatchStateNeedsPlayers},
	models.MatchStateConfirmed:    {models.MatchStateInProgress},
	models.MatchStateInProgress:   {models.MatchStateFinished},
	models.MatchStateFinished:     {},
	models.MatchStateCancelled:    {},
}

// Factory 상태 이름 → 상태 객체 (지연 생성, 재사용)
type Factory struct {
	mu     sync.Mutex
	states map[models.MatchState]State
	now    func() time.Time
}

// NewFactory now 가 nil 이면 time.Now
func NewFactory(now func() time.Time) *Factory {
	if now == nil {
		now = time.Now
	}
	return &Factory{
		states: make(map[models.MatchState]State, len(models.AllMatchStates)),
		now:    now,
	}
}

// Get 상태 객체 조회
func (f *Factory) Get(name models.MatchState) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s, ok := f.states[name]; ok {
		return s, nil
	}

	s, err := f.build(name)
	if err != nil {
		return nil, err
	}
	f.states[name] = s
	return s, nil
}

func (f *Factory) build(name models.MatchState) (State, error) {
	b := base{name: name}
	switch name {
	case models.MatchStateNeedsPlayers:
		return NeedsPlayers{b}, nil
	case models.MatchStateFormed:
		return Formed{b}, nil
	case models.MatchStateConfirmed:
		return Confirmed{base: b, now: f.now}, nil
	case models.MatchStateInProgress:
		return InProgress{base: b, now: f.now}, nil
	case models.MatchStateFinished:
		return Finished{b}, nil
	case models.MatchStateCancelled:
		return Cancelled{b}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownState, name)
	}
}

// CanTransition from → to 가 전이표에 있는지
func (f *Factory) CanTransition(from, to models.MatchState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Reachable from 에서 갈 수 있는 상태들
func (f *Factory) Reachable(from models.MatchState) []models.MatchState {
	next := transitions[from]
	out := make([]models.MatchState, len(next))
	copy(out, next)
	return out
}

// IsTerminal 종료 상태 여부
func (f *Factory) IsTerminal(s models.MatchState) bool {
	return IsTerminal(s)
}

func IsTerminal(s models.MatchState) bool {
	return s == models.MatchStateFinished || s == models.MatchStateCancelled
}

// Apply 요청된 목표 상태에 해당하는 상태 객체 메서드를 호출한다.
// 전이표 검사는 호출하는 쪽 책임.
func Apply(s State, m *models.Match, to models.MatchState, winner *models.Team) error {
	switch to {
	case models.MatchStateFormed:
		return s.Form(m)
	case models.MatchStateNeedsPlayers:
		return s.Reopen(m)
	case models.MatchStateConfirmed:
		return s.Confirm(m)
	case models.MatchStateInProgress:
		return s.Start(m)
	case models.MatchStateFinished:
		return s.Finish(m, winner)
	case models.MatchStateCancelled:
		return s.Cancel(m)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownState, to)
	}
}
