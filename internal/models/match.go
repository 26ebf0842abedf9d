package models

import "time"

type MatchState string

const (
	MatchStateNeedsPlayers MatchState = "needs_players"
	MatchStateFormed       MatchState = "formed"
	MatchStateConfirmed    MatchState = "confirmed"
	MatchStateInProgress   MatchState = "in_progress"
	MatchStateFinished     MatchState = "finished"
	MatchStateCancelled    MatchState = "cancelled"
)

// AllMatchStates 모든 매치 상태 (고정된 집합)
var AllMatchStates = []MatchState{
	MatchStateNeedsPlayers,
	MatchStateFormed,
	MatchStateConfirmed,
	MatchStateInProgress,
	MatchStateFinished,
	MatchStateCancelled,
}

// Valid 정의된 상태인지 확인
func (s MatchState) Valid() bool {
	for _, known := range AllMatchStates {
		if s == known {
			return true
		}
	}
	return false
}

type Team string

const (
	TeamA Team = "A"
	TeamB Team = "B"
)

// Valid A 또는 B 인지 확인
func (t Team) Valid() bool {
	return t == TeamA || t == TeamB
}

// Other 상대 팀
func (t Team) Other() Team {
	if t == TeamA {
		return TeamB
	}
	return TeamA
}

type StrategyName string

const (
	StrategyByZone         StrategyName = "ZONA"
	StrategyByLevel        StrategyName = "NIVEL"
	StrategyByScoreHistory StrategyName = "HISTORIAL"
)

// AllStrategies 지원하는 매칭 전략 (기본 전략이 첫 번째)
var AllStrategies = []StrategyName{
	StrategyByZone,
	StrategyByLevel,
	StrategyByScoreHistory,
}

// Valid 지원하는 전략인지 확인
func (s StrategyName) Valid() bool {
	for _, known := range AllStrategies {
		if s == known {
			return true
		}
	}
	return false
}

type Match struct {
	ID               string       `json:"id" db:"id"`
	SportID          string       `json:"sportId" db:"sport_id"`
	ZoneID           string       `json:"zoneId" db:"zone_id"`
	OrganizerID      string       `json:"organizerId" db:"organizer_id"`
	ScheduledAt      time.Time    `json:"scheduledAt" db:"scheduled_at"`
	DurationMinutes  int          `json:"durationMinutes" db:"duration_minutes"`
	Address          string       `json:"address" db:"address"`
	RequiredPlayers  int          `json:"requiredPlayers" db:"required_players"`
	ConfirmedPlayers int          `json:"confirmedPlayers" db:"confirmed_players"`
	State            MatchState   `json:"state" db:"state"`
	Strategy         StrategyName `json:"strategy" db:"strategy"`
	MinLevel         *int         `json:"minLevel,omitempty" db:"min_level"`
	MaxLevel         *int         `json:"maxLevel,omitempty" db:"max_level"`
	WinningTeam      *Team        `json:"winningTeam,omitempty" db:"winning_team"`
	StartedAt        *time.Time   `json:"startedAt,omitempty" db:"started_at"`
	FinishedAt       *time.Time   `json:"finishedAt,omitempty" db:"finished_at"`
	CreatedAt        time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time    `json:"updatedAt" db:"updated_at"`
}

// HasLevelRange 레벨 범위가 설정되어 있는지
func (m *Match) HasLevelRange() bool {
	return m.MinLevel != nil && m.MaxLevel != nil
}

// MissingPlayers 남은 자리 수
func (m *Match) MissingPlayers() int {
	if n := m.RequiredPlayers - m.ConfirmedPlayers; n > 0 {
		return n
	}
	return 0
}

// EffectiveStart 실제 시작 시각 (기록되지 않았으면 예정 시각)
func (m *Match) EffectiveStart() time.Time {
	if m.StartedAt != nil {
		return *m.StartedAt
	}
	return m.ScheduledAt
}

// Clone 얕은 복사 (포인터 필드는 값 복사)
func (m *Match) Clone() *Match {
	c := *m
	if m.MinLevel != nil {
		v := *m.MinLevel
		c.MinLevel = &v
	}
	if m.MaxLevel != nil {
		v := *m.MaxLevel
		c.MaxLevel = &v
	}
	if m.WinningTeam != nil {
		v := *m.WinningTeam
		c.WinningTeam = &v
	}
	if m.StartedAt != nil {
		v := *m.StartedAt
		c.StartedAt = &v
	}
	if m.FinishedAt != nil {
		v := *m.FinishedAt
		c.FinishedAt = &v
	}
	return &c
}

type CreateMatchRequest struct {
	SportID         string       `json:"sportId" binding:"required"`
	ZoneID          string       `json:"zoneId" binding:"required"`
	ScheduledAt     time.Time    `json:"scheduledAt" binding:"required"`
	DurationMinutes int          `json:"durationMinutes"`
	Address         string       `json:"address"`
	RequiredPlayers int          `json:"requiredPlayers" binding:"required"`
	Strategy        StrategyName `json:"strategy"`
	MinLevel        *int         `json:"minLevel"`
	MaxLevel        *int         `json:"maxLevel"`
}

type JoinMatchRequest struct {
	Team *Team `json:"team"`
}

type ChangeStateRequest struct {
	State MatchState `json:"state" binding:"required"`
}

type FinalizeMatchRequest struct {
	WinningTeam *Team `json:"winningTeam"`
}
