package models

import "time"

type Participant struct {
	ID       string    `json:"id" db:"id"`
	MatchID  string    `json:"matchId" db:"match_id"`
	UserID   string    `json:"userId" db:"user_id"`
	Team     Team      `json:"team" db:"team"`
	JoinedAt time.Time `json:"joinedAt" db:"joined_at"`
}

// TeamCounts 팀별 인원 수
type TeamCounts struct {
	A int `json:"a" db:"team_a"`
	B int `json:"b" db:"team_b"`
}

// Of 특정 팀 인원
func (c TeamCounts) Of(team Team) int {
	if team == TeamA {
		return c.A
	}
	return c.B
}

// Smaller 인원이 적은 팀 (동률이면 A)
func (c TeamCounts) Smaller() Team {
	if c.A <= c.B {
		return TeamA
	}
	return TeamB
}
