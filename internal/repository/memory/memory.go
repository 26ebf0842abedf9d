// Package memory 프로세스 내 저장소. DATABASE_URL 이 없을 때의 개발용 저장소이자
// 서비스 테스트의 기반이다. PostgreSQL 구현과 같은 조건부 갱신 규칙을 따른다.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/models"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/repository"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type Store struct {
	mu           sync.RWMutex
	matches      map[string]*models.Match
	participants []*models.Participant
	invitations  []*models.Invitation
	users        map[string]*models.User
	now          func() time.Time
}

// New now 가 nil 이면 time.Now
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		matches: make(map[string]*models.Match),
		users:   make(map[string]*models.User),
		now:     now,
	}
}

// Repositories 코어가 쓰는 저장소 묶음
func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Matches:      &MatchStore{s},
		Participants: &ParticipantStore{s},
		Invitations:  &InvitationStore{s},
		Users:        &UserStore{s},
	}
}

// PutUser 사용자 등록 (사용자 관리는 외부 서비스 소유라 시드/테스트 용도)
func (s *Store) PutUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *u
	s.users[u.ID] = &c
}

// User 사용자 사본
func (s *Store) User(id string) *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		c := *u
		return &c
	}
	return nil
}

// Invitations 매치 초대 사본
func (s *Store) Invitations(matchID string) []*models.Invitation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.FilterMap(s.invitations, func(inv *models.Invitation, _ int) (*models.Invitation, bool) {
		c := *inv
		return &c, inv.MatchID == matchID
	})
}

// PutInvitation 초대 직접 등록 (테스트용)
func (s *Store) PutInvitation(inv *models.Invitation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *inv
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.invitations = append(s.invitations, &c)
}

type MatchStore struct{ s *Store }

func (r *MatchStore) Create(_ context.Context, m *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := r.s.now()
	m.CreatedAt = now
	m.UpdatedAt = now
	r.s.matches[m.ID] = m.Clone()
	return nil
}

func (r *MatchStore) FindByID(_ context.Context, id string) (*models.Match, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if m, ok := r.s.matches[id]; ok {
		return m.Clone(), nil
	}
	return nil, nil
}

func (r *MatchStore) UpdateState(_ context.Context, m *models.Match, from models.MatchState) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.matches[m.ID]
	if !ok || stored.State != from {
		return repository.ErrStateConflict
	}

	updated := m.Clone()
	stored.State = updated.State
	stored.WinningTeam = updated.WinningTeam
	stored.StartedAt = updated.StartedAt
	stored.FinishedAt = updated.FinishedAt
	stored.UpdatedAt = r.s.now()
	m.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *MatchStore) IncrementConfirmedPlayers(_ context.Context, id string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.matches[id]
	if !ok {
		return 0, fmt.Errorf("match %s not found", id)
	}
	if stored.ConfirmedPlayers >= stored.RequiredPlayers {
		return 0, repository.ErrNoCapacity
	}
	stored.ConfirmedPlayers++
	stored.UpdatedAt = r.s.now()
	return stored.ConfirmedPlayers, nil
}

func (r *MatchStore) DecrementConfirmedPlayers(_ context.Context, id string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.matches[id]
	if !ok {
		return 0, fmt.Errorf("match %s not found", id)
	}
	if stored.ConfirmedPlayers == 0 {
		return 0, fmt.Errorf("match %s has no confirmed players to release", id)
	}
	stored.ConfirmedPlayers--
	stored.UpdatedAt = r.s.now()
	return stored.ConfirmedPlayers, nil
}

func (r *MatchStore) FindByState(ctx context.Context, state models.MatchState) ([]*models.Match, error) {
	return r.filter(func(m *models.Match) bool { return m.State == state }), nil
}

func (r *MatchStore) FindByStateScheduledBetween(_ context.Context, state models.MatchState, from, to time.Time) ([]*models.Match, error) {
	return r.filter(func(m *models.Match) bool {
		return m.State == state && m.ScheduledAt.After(from) && !m.ScheduledAt.After(to)
	}), nil
}

func (r *MatchStore) CountByState(ctx context.Context, state models.MatchState) (int, error) {
	matches, _ := r.FindByState(ctx, state)
	return len(matches), nil
}

func (r *MatchStore) filter(keep func(m *models.Match) bool) []*models.Match {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Match
	for _, m := range r.s.matches {
		if keep(m) {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out
}

type ParticipantStore struct{ s *Store }

func (r *ParticipantStore) Create(_ context.Context, p *models.Participant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.participants {
		if existing.MatchID == p.MatchID && existing.UserID == p.UserID {
			return repository.ErrDuplicate
		}
	}

	p.ID = uuid.NewString()
	p.JoinedAt = r.s.now()
	c := *p
	r.s.participants = append(r.s.participants, &c)
	return nil
}

func (r *ParticipantStore) ListByMatch(_ context.Context, matchID string) ([]*models.Participant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return lo.FilterMap(r.s.participants, func(p *models.Participant, _ int) (*models.Participant, bool) {
		c := *p
		return &c, p.MatchID == matchID
	}), nil
}

func (r *ParticipantStore) CountByTeam(ctx context.Context, matchID string) (models.TeamCounts, error) {
	participants, _ := r.ListByMatch(ctx, matchID)
	byTeam := lo.CountValuesBy(participants, func(p *models.Participant) models.Team { return p.Team })
	return models.TeamCounts{A: byTeam[models.TeamA], B: byTeam[models.TeamB]}, nil
}

func (r *ParticipantStore) Exists(ctx context.Context, matchID, userID string) (bool, error) {
	participants, _ := r.ListByMatch(ctx, matchID)
	return lo.ContainsBy(participants, func(p *models.Participant) bool { return p.UserID == userID }), nil
}

type InvitationStore struct{ s *Store }

func (r *InvitationStore) FindOrCreate(_ context.Context, inv *models.Invitation) (*models.Invitation, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.invitations {
		if existing.MatchID == inv.MatchID && existing.UserID == inv.UserID {
			c := *existing
			return &c, false, nil
		}
	}

	now := r.s.now()
	created := &models.Invitation{
		ID:        uuid.NewString(),
		MatchID:   inv.MatchID,
		UserID:    inv.UserID,
		State:     models.InvitationStatePending,
		Origin:    inv.Origin,
		SentAt:    now,
		UpdatedAt: now,
	}
	r.s.invitations = append(r.s.invitations, created)
	c := *created
	return &c, true, nil
}

func (r *InvitationStore) InvitedUserIDs(_ context.Context, matchID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return lo.FilterMap(r.s.invitations, func(inv *models.Invitation, _ int) (string, bool) {
		return inv.UserID, inv.MatchID == matchID
	}), nil
}

func (r *InvitationStore) CancelPending(_ context.Context, matchID string, reason models.CancelReason) (int, error) {
	return r.update(func(inv *models.Invitation) bool {
		return inv.MatchID == matchID && inv.State == models.InvitationStatePending
	}, func(inv *models.Invitation) {
		cancel(inv, reason)
	}), nil
}

func (r *InvitationStore) ReactivateCancelled(_ context.Context, matchID string, reason models.CancelReason) (int, error) {
	return r.update(func(inv *models.Invitation) bool {
		return inv.MatchID == matchID &&
			inv.State == models.InvitationStateCancelled &&
			inv.CancelReason != nil && *inv.CancelReason == reason
	}, func(inv *models.Invitation) {
		inv.State = models.InvitationStatePending
		inv.CancelReason = nil
	}), nil
}

func (r *InvitationStore) MarkAccepted(_ context.Context, matchID, userID string) (bool, error) {
	n := r.update(func(inv *models.Invitation) bool {
		return inv.MatchID == matchID && inv.UserID == userID && inv.State == models.InvitationStatePending
	}, func(inv *models.Invitation) {
		inv.State = models.InvitationStateAccepted
	})
	return n > 0, nil
}

func (r *InvitationStore) CancelPendingForStates(_ context.Context, states []models.MatchState, reason models.CancelReason) (int, error) {
	r.s.mu.RLock()
	closed := make(map[string]bool)
	for id, m := range r.s.matches {
		if lo.Contains(states, m.State) {
			closed[id] = true
		}
	}
	r.s.mu.RUnlock()

	return r.update(func(inv *models.Invitation) bool {
		return closed[inv.MatchID] && inv.State == models.InvitationStatePending
	}, func(inv *models.Invitation) {
		cancel(inv, reason)
	}), nil
}

func (r *InvitationStore) CountPending(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return lo.CountBy(r.s.invitations, func(inv *models.Invitation) bool {
		return inv.State == models.InvitationStatePending
	}), nil
}

func (r *InvitationStore) CountSentSince(_ context.Context, since time.Time) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return lo.CountBy(r.s.invitations, func(inv *models.Invitation) bool {
		return !inv.SentAt.Before(since)
	}), nil
}

func (r *InvitationStore) update(match func(*models.Invitation) bool, apply func(*models.Invitation)) int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, inv := range r.s.invitations {
		if match(inv) {
			apply(inv)
			inv.UpdatedAt = r.s.now()
			n++
		}
	}
	return n
}

func cancel(inv *models.Invitation, reason models.CancelReason) {
	r := reason
	inv.State = models.InvitationStateCancelled
	inv.CancelReason = &r
}

type UserStore struct{ s *Store }

func (r *UserStore) FindByID(_ context.Context, id string) (*models.User, error) {
	return r.s.User(id), nil
}

func (r *UserStore) ListCandidates(_ context.Context, c models.CandidateCriteria) ([]*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.User
	for _, u := range r.s.users {
		if c.Matches(u) {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *UserStore) IncrementScore(_ context.Context, userID string, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return fmt.Errorf("failed to update score: user %s not found", userID)
	}
	u.Score += delta
	return nil
}
