package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/models"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/pkg/database"
	"github.com/lib/pq"
)

const userColumns = `id, name, email, zone_id, favorite_sport_id, level, score`

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID ID로 사용자 찾기
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	err := r.db.GetContext(ctx, user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// ListCandidates 조건에 맞는 후보 사용자
func (r *UserRepository) ListCandidates(ctx context.Context, c models.CandidateCriteria) ([]*models.User, error) {
	conditions := []string{"favorite_sport_id = $1"}
	args := []interface{}{c.SportID}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if c.ZoneID != nil {
		add("zone_id = $%d", *c.ZoneID)
	}
	if c.MinLevel != nil {
		add("level >= $%d", *c.MinLevel)
	}
	if c.MaxLevel != nil {
		add("level <= $%d", *c.MaxLevel)
	}
	if c.MinScore != nil {
		add("score >= $%d", *c.MinScore)
	}
	if c.MaxScore != nil {
		add("score <= $%d", *c.MaxScore)
	}
	if len(c.ExcludeUserIDs) > 0 {
		add("NOT (id = ANY($%d))", pq.Array(c.ExcludeUserIDs))
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY id`

	var users []*models.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}

	return users, nil
}

// IncrementScore 점수 증감
func (r *UserRepository) IncrementScore(ctx context.Context, userID string, delta int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET score = score + $1 WHERE id = $2`, delta, userID)
	if err != nil {
		return fmt.Errorf("failed to update score: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to update score: user %s not found", userID)
	}
	return nil
}
