// Package state 매치 라이프사이클 상태 머신.
//
// 상태 객체는 매치 데이터를 보관하지 않는다. 모든 메서드는 대상 매치를
// 인자로 받아 상태 필드만 변경하며, 하나의 인스턴스가 같은 상태의 모든
// 매치에 공유된다 (Factory 참고).
package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/models"
)

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrUnknownState      = errors.New("unknown match state")
	// ErrNoOpenSlot 빈 자리 없이 모집을 재개하려 함
	ErrNoOpenSlot = errors.New("match has no open slot to reopen")
)

type Operation string

const (
	OpConfirm Operation = "confirm"
	OpCancel  Operation = "cancel"
	OpStart   Operation = "start"
	OpFinish  Operation = "finish"
	OpForm    Operation = "form"
	OpReopen  Operation = "reopen"
)

// TransitionError 현재 상태에서 허용되지 않는 연산
type TransitionError struct {
	Operation Operation
	State     models.MatchState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a match in state %q", e.Operation, e.State)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// State 상태별 동작
type State interface {
	Name() models.MatchState
	AllowsInvitations() bool
	Confirm(m *models.Match) error
	Cancel(m *models.Match) error
	Start(m *models.Match) error
	Finish(m *models.Match, winner *models.Team) error
	Form(m *models.Match) error
	Reopen(m *models.Match) error
}

// AutoTransitioner 임계값 도달 시 스스로 전이하는 상태
type AutoTransitioner interface {
	CheckAutoTransition(m *models.Match) bool
}

// base 모든 연산을 거부하는 기본 구현. 각 상태는 허용하는 연산만 재정의한다.
type base struct {
	name models.MatchState
}

func (b base) Name() models.MatchState { return b.name }

func (b base) AllowsInvitations() bool { return false }

func (b base) Confirm(*models.Match) error { return b.reject(OpConfirm) }

func (b base) Cancel(*models.Match) error { return b.reject(OpCancel) }

func (b base) Start(*models.Match) error { return b.reject(OpStart) }

func (b base) Finish(*models.Match, *models.Team) error { return b.reject(OpFinish) }

func (b base) Form(*models.Match) error { return b.reject(OpForm) }

func (b base) Reopen(*models.Match) error { return b.reject(OpReopen) }

func (b base) reject(op Operation) error {
	return &TransitionError{Operation: op, State: b.name}
}

// move 매치가 이 상태에 있을 때만 상태를 바꾼다
func (b base) move(m *models.Match, op Operation, to models.MatchState) error {
	if m.State != b.name {
		return &TransitionError{Operation: op, State: m.State}
	}
	m.State = to
	return nil
}

type NeedsPlayers struct{ base }

func (NeedsPlayers) AllowsInvitations() bool { return true }

func (s NeedsPlayers) Cancel(m *models.Match) error {
	return s.move(m, OpCancel, models.MatchStateCancelled)
}

// Form 주최자가 인원과 무관하게 모집을 마감
func (s NeedsPlayers) Form(m *models.Match) error {
	return s.move(m, OpForm, models.MatchStateFormed)
}

// CheckAutoTransition 필요 인원이 채워지면 Formed로 전이
func (s NeedsPlayers) CheckAutoTransition(m *models.Match) bool {
	if m.State != s.name || m.ConfirmedPlayers < m.RequiredPlayers {
		return false
	}
	m.State = models.MatchStateFormed
	return true
}

type Formed struct{ base }

func (s Formed) Confirm(m *models.Match) error {
	return s.move(m, OpConfirm, models.MatchStateConfirmed)
}

func (s Formed) Cancel(m *models.Match) error {
	return s.move(m, OpCancel, models.MatchStateCancelled)
}

// Reopen 빈 자리가 있을 때만 다시 인원을 모집. 정원이 찬 매치는 참가할 수 없는 모집 상태가 된다.
func (s Formed) Reopen(m *models.Match) error {
	if m.State == s.name && m.ConfirmedPlayers >= m.RequiredPlayers {
		return fmt.Errorf("%w: %d/%d confirmed", ErrNoOpenSlot, m.ConfirmedPlayers, m.RequiredPlayers)
	}
	return s.move(m, OpReopen, models.MatchStateNeedsPlayers)
}

// WithdrawPlayer Reopen 의 별칭
func (s Formed) WithdrawPlayer(m *models.Match) error {
	return s.Reopen(m)
}

type Confirmed struct {
	base
	now func() time.Time
}

func (s Confirmed) Start(m *models.Match) error {
	if err := s.move(m, OpStart, models.MatchStateInProgress); err != nil {
		return err
	}
	started := s.now()
	m.StartedAt = &started
	return nil
}

// ShouldStart 예정 시작 시각이 되었는지
func (s Confirmed) ShouldStart(m *models.Match, now time.Time) bool {
	return m.State == s.name && !now.Before(m.ScheduledAt)
}

type InProgress struct {
	base
	now func() time.Time
}

// Finish winner 가 nil 이면 무승부
func (s InProgress) Finish(m *models.Match, winner *models.Team) error {
	if winner != nil && !winner.Valid() {
		return fmt.Errorf("invalid winning team %q", *winner)
	}
	if err := s.move(m, OpFinish, models.MatchStateFinished); err != nil {
		return err
	}
	finished := s.now()
	m.FinishedAt = &finished
	if winner != nil {
		w := *winner
		m.WinningTeam = &w
	}
	return nil
}

// Elapsed 시작 후 경과 시간
func (s InProgress) Elapsed(m *models.Match, now time.Time) time.Duration {
	return now.Sub(m.EffectiveStart())
}

type Finished struct{ base }

// HasWinner 승리 팀이 기록되었는지 (무승부면 false)
func (Finished) HasWinner(m *models.Match) bool {
	return m.WinningTeam != nil
}

type Cancelled struct{ base }

// CanRevert 예정 시각 전에 취소된 경우. 상태를 되돌리지는 않는다.
func (s Cancelled) CanRevert(m *models.Match, now time.Time) bool {
	return m.State == s.name && m.StartedAt == nil && now.Before(m.ScheduledAt)
}
