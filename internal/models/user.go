package models

// User 매칭 대상 사용자 (계정 관리는 외부 서비스 소유)
type User struct {
	ID              string `json:"id" db:"id"`
	Name            string `json:"name" db:"name"`
	Email           string `json:"email" db:"email"`
	ZoneID          string `json:"zoneId" db:"zone_id"`
	FavoriteSportID string `json:"favoriteSportId" db:"favorite_sport_id"`
	Level           int    `json:"level" db:"level"`
	Score           int    `json:"score" db:"score"`
}

// CandidateCriteria 후보 사용자 조회 조건. nil 필드는 조건에서 제외된다.
type CandidateCriteria struct {
	SportID        string
	ZoneID         *string
	MinLevel       *int
	MaxLevel       *int
	MinScore       *int
	MaxScore       *int
	ExcludeUserIDs []string
}

// Matches 메모리 저장소와 테스트에서 쓰는 조건 평가
func (c CandidateCriteria) Matches(u *User) bool {
	if u.FavoriteSportID != c.SportID {
		return false
	}
	if c.ZoneID != nil && u.ZoneID != *c.ZoneID {
		return false
	}
	if c.MinLevel != nil && u.Level < *c.MinLevel {
		return false
	}
	if c.MaxLevel != nil && u.Level > *c.MaxLevel {
		return false
	}
	if c.MinScore != nil && u.Score < *c.MinScore {
		return false
	}
	if c.MaxScore != nil && u.Score > *c.MaxScore {
		return false
	}
	for _, id := range c.ExcludeUserIDs {
		if id == u.ID {
			return false
		}
	}
	return true
}
