package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/models"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/repository"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/pkg/distributed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMatchService_ChangeStateWithValidation_AllPairs(t *testing.T) {
	for _, from := range models.AllMatchStates {
		for _, to := range models.AllMatchStates {
			from, to := from, to
			t.Run(fmt.Sprintf("%s->%s", from, to), func(t *testing.T) {
				env := newTestEnv(t)
				m := env.seedMatch(t, inState(from))

				updated, err := env.matches.ChangeStateWithValidation(context.Background(), m.ID, to)

				if env.factory.CanTransition(from, to) {
					require.NoError(t, err)
					assert.Equal(t, to, updated.State)
					assert.Equal(t, to, env.match(t, m.ID).State)
				} else {
					assert.ErrorIs(t, err, ErrInvalidTransition)
					assert.Equal(t, from, env.match(t, m.ID).State)
				}
			})
		}
	}
}

func TestMatchService_ChangeStateWithValidation_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.matches.ChangeStateWithValidation(ctx, "missing", models.MatchStateCancelled)
	assert.ErrorIs(t, err, ErrMatchNotFound)
	assert.ErrorIs(t, err, ErrNotFound)

	m := env.seedMatch(t)
	_, err = env.matches.ChangeStateWithValidation(ctx, m.ID, models.MatchState("archived"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMatchService_ChangeStatePublishesEvent(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser("u1")
	m := env.seedMatch(t, inState(models.MatchStateFormed))
	env.seedParticipant(t, m.ID, "u1", models.TeamA)

	_, err := env.matches.ChangeStateWithValidation(context.Background(), m.ID, models.MatchStateConfirmed)
	require.NoError(t, err)

	changes := env.notifier.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, models.MatchStateFormed, changes[0].from)
	assert.Equal(t, models.MatchStateConfirmed, changes[0].to)
	assert.ElementsMatch(t, []string{"organizer", "u1"}, changes[0].recipients)
}

func TestMatchService_NotifierFailureDoesNotFailTransition(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.SetErr(errors.New("push gateway down"))
	m := env.seedMatch(t, inState(models.MatchStateFormed))

	updated, err := env.matches.ChangeStateWithValidation(context.Background(), m.ID, models.MatchStateCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStateCancelled, updated.State)
	assert.Equal(t, models.MatchStateCancelled, env.match(t, m.ID).State)
}

func TestMatchService_JoinAutoTransitionsOnLastPlayer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	users := env.seedUsers("player", 4)
	m := env.seedMatch(t, func(m *models.Match) { m.RequiredPlayers = 4 })

	for i, userID := range users[:3] {
		_, err := env.matches.Join(ctx, m.ID, userID, nil)
		require.NoError(t, err)

		stored := env.match(t, m.ID)
		assert.Equal(t, i+1, stored.ConfirmedPlayers)
		assert.Equal(t, models.MatchStateNeedsPlayers, stored.State)
	}

	_, err := env.matches.Join(ctx, m.ID, users[3], nil)
	require.NoError(t, err)

	stored := env.match(t, m.ID)
	assert.Equal(t, 4, stored.ConfirmedPlayers)
	assert.Equal(t, models.MatchStateFormed, stored.State)

	counts, err := env.repos.Participants.CountByTeam(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TeamCounts{A: 2, B: 2}, counts)
}

func TestMatchService_JoinTeamAssignment(t *testing.T) {
	tests := []struct {
		name     string
		a, b     int
		expected models.Team
	}{
		{name: "empty match", a: 0, b: 0, expected: models.TeamA},
		{name: "tie favors A", a: 2, b: 2, expected: models.TeamA},
		{name: "A smaller", a: 1, b: 3, expected: models.TeamA},
		{name: "B smaller", a: 3, b: 1, expected: models.TeamB},
		{name: "B empty", a: 1, b: 0, expected: models.TeamB},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			m := env.seedMatch(t, func(m *models.Match) { m.RequiredPlayers = 12 })

			for i := 0; i < tt.a; i++ {
				env.seedParticipant(t, m.ID, fmt.Sprintf("a-%d", i), models.TeamA)
			}
			for i := 0; i < tt.b; i++ {
				env.seedParticipant(t, m.ID, fmt.Sprintf("b-%d", i), models.TeamB)
			}
			env.seedUser("joiner")

			p, err := env.matches.Join(context.Background(), m.ID, "joiner", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.Team)
		})
	}
}

func TestMatchService_JoinErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("match not found", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedUser("u1")
		_, err := env.matches.Join(ctx, "missing", "u1", nil)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("user not found", func(t *testing.T) {
		env := newTestEnv(t)
		m := env.seedMatch(t)
		_, err := env.matches.Join(ctx, m.ID, "ghost", nil)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("state does not accept players", func(t *testing.T) {
		for _, s := range models.AllMatchStates {
			if s == models.MatchStateNeedsPlayers {
				continue
			}
			env := newTestEnv(t)
			env.seedUser("u1")
			m := env.seedMatch(t, inState(s))
			_, err := env.matches.Join(ctx, m.ID, "u1", nil)
			assert.ErrorIs(t, err, ErrInvalidState, "state %s", s)
		}
	})

	t.Run("already joined", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedUser("u1")
		m := env.seedMatch(t)
		_, err := env.matches.Join(ctx, m.ID, "u1", nil)
		require.NoError(t, err)
		_, err = env.matches.Join(ctx, m.ID, "u1", nil)
		assert.ErrorIs(t, err, ErrAlreadyJoined)
	})

	t.Run("explicit team full", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedUsers("p", 3)
		m := env.seedMatch(t, func(m *models.Match) { m.RequiredPlayers = 4 })
		_, err := env.matches.Join(ctx, m.ID, "p-1", teamPtr(models.TeamB))
		require.NoError(t, err)
		_, err = env.matches.Join(ctx, m.ID, "p-2", teamPtr(models.TeamB))
		require.NoError(t, err)
		_, err = env.matches.Join(ctx, m.ID, "p-3", teamPtr(models.TeamB))
		assert.ErrorIs(t, err, ErrTeamFull)
	})

	t.Run("invalid team", func(t *testing.T) {
		env := newTestEnv(t)
		env.seedUser("u1")
		m := env.seedMatch(t)
		_, err := env.matches.Join(ctx, m.ID, "u1", teamPtr(models.Team("C")))
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestMatchService_JoinAcceptsPendingInvitation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser("u1")
	m := env.seedMatch(t)

	_, _, err := env.repos.Invitations.FindOrCreate(ctx, &models.Invitation{MatchID: m.ID, UserID: "u1", Origin: "ZONA"})
	require.NoError(t, err)

	_, err = env.matches.Join(ctx, m.ID, "u1", nil)
	require.NoError(t, err)

	invitations := env.store.Invitations(m.ID)
	require.Len(t, invitations, 1)
	assert.Equal(t, models.InvitationStateAccepted, invitations[0].State)
}

func TestMatchService_ConcurrentJoinsRespectCapacity(t *testing.T) {
	env := newTestEnv(t)
	users := env.seedUsers("player", 10)
	m := env.seedMatch(t, func(m *models.Match) { m.RequiredPlayers = 4 })

	var wg sync.WaitGroup
	var mu sync.Mutex
	joined := 0
	for _, userID := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			if _, err := env.matches.Join(context.Background(), m.ID, userID, nil); err == nil {
				mu.Lock()
				joined++
				mu.Unlock()
			}
		}(userID)
	}
	wg.Wait()

	assert.Equal(t, 4, joined)

	stored := env.match(t, m.ID)
	assert.Equal(t, 4, stored.ConfirmedPlayers)
	assert.Equal(t, models.MatchStateFormed, stored.State)

	counts, err := env.repos.Participants.CountByTeam(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TeamCounts{A: 2, B: 2}, counts)
}

func TestMatchService_CreateValidation(t *testing.T) {
	future := time.Now().Add(24 * time.Hour)
	valid := func() *models.CreateMatchRequest {
		return &models.CreateMatchRequest{
			SportID:         "football",
			ZoneID:          "centro",
			ScheduledAt:     future,
			RequiredPlayers: 10,
		}
	}

	tests := []struct {
		name   string
		mutate func(r *models.CreateMatchRequest)
	}{
		{name: "too few players", mutate: func(r *models.CreateMatchRequest) { r.RequiredPlayers = 1 }},
		{name: "past date", mutate: func(r *models.CreateMatchRequest) { r.ScheduledAt = time.Now().Add(-time.Hour) }},
		{name: "missing sport", mutate: func(r *models.CreateMatchRequest) { r.SportID = "" }},
		{name: "level range inverted", mutate: func(r *models.CreateMatchRequest) { r.MinLevel, r.MaxLevel = intPtr(5), intPtr(2) }},
		{name: "unknown strategy", mutate: func(r *models.CreateMatchRequest) { r.Strategy = "RANDOM" }},
		{name: "negative duration", mutate: func(r *models.CreateMatchRequest) { r.DurationMinutes = -10 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.seedUser("organizer")
			req := valid()
			tt.mutate(req)

			_, err := env.matches.Create(context.Background(), "organizer", req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	t.Run("unknown organizer", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.matches.Create(context.Background(), "ghost", valid())
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestMatchService_CreateDefaultsAndInitialMatchmaking(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser("organizer")
	env.seedUser("neighbour")

	m, err := env.matches.Create(context.Background(), "organizer", &models.CreateMatchRequest{
		SportID:         "football",
		ZoneID:          "centro",
		ScheduledAt:     time.Now().Add(24 * time.Hour),
		RequiredPlayers: 4,
		Strategy:        "zona",
	})
	require.NoError(t, err)

	assert.Equal(t, models.MatchStateNeedsPlayers, m.State)
	assert.Equal(t, models.StrategyByZone, m.Strategy)
	assert.Equal(t, DefaultDurationMinutes, m.DurationMinutes)
	assert.Zero(t, m.ConfirmedPlayers)

	env.tasks.Wait()

	invitations := env.store.Invitations(m.ID)
	require.Len(t, invitations, 1)
	assert.Equal(t, "neighbour", invitations[0].UserID)
	assert.Equal(t, string(models.StrategyByZone), invitations[0].Origin)
}

func TestMatchService_EndToEnd_FormConfirm(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedUser("organizer", func(u *models.User) { u.ZoneID = "norte" })
	users := env.seedUsers("player", 4)

	m, err := env.matches.Create(ctx, "organizer", &models.CreateMatchRequest{
		SportID:         "football",
		ZoneID:          "centro",
		ScheduledAt:     time.Now().Add(24 * time.Hour),
		RequiredPlayers: 4,
		Strategy:        models.StrategyByZone,
	})
	require.NoError(t, err)
	env.tasks.Wait()

	for _, userID := range users {
		_, err := env.matches.Join(ctx, m.ID, userID, nil)
		require.NoError(t, err)
	}

	counts, err := env.repos.Participants.CountByTeam(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TeamCounts{A: 2, B: 2}, counts)
	assert.Equal(t, models.MatchStateFormed, env.match(t, m.ID).State)

	confirmed, err := env.matches.ChangeStateWithValidation(ctx, m.ID, models.MatchStateConfirmed)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStateConfirmed, confirmed.State)

	_, err = env.matches.ChangeStateWithValidation(ctx, m.ID, models.MatchStateNeedsPlayers)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.MatchStateConfirmed, env.match(t, m.ID).State)
}

func TestMatchService_FinalizeAdjustsScores(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, id := range []string{"a1", "a2", "b1", "b2"} {
		env.seedUser(id)
	}
	m := env.seedMatch(t, inState(models.MatchStateInProgress))
	env.seedParticipant(t, m.ID, "a1", models.TeamA)
	env.seedParticipant(t, m.ID, "a2", models.TeamA)
	env.seedParticipant(t, m.ID, "b1", models.TeamB)
	env.seedParticipant(t, m.ID, "b2", models.TeamB)

	finished, err := env.matches.Finalize(ctx, m.ID, teamPtr(models.TeamA))
	require.NoError(t, err)
	assert.Equal(t, models.MatchStateFinished, finished.State)
	require.NotNil(t, finished.WinningTeam)
	assert.Equal(t, models.TeamA, *finished.WinningTeam)
	assert.NotNil(t, finished.FinishedAt)

	assert.Equal(t, 11, env.store.User("a1").Score)
	assert.Equal(t, 11, env.store.User("a2").Score)
	assert.Equal(t, 9, env.store.User("b1").Score)
	assert.Equal(t, 9, env.store.User("b2").Score)
}

func TestMatchService_FinalizeDrawKeepsScores(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser("a1")
	env.seedUser("b1")
	m := env.seedMatch(t, inState(models.MatchStateInProgress))
	env.seedParticipant(t, m.ID, "a1", models.TeamA)
	env.seedParticipant(t, m.ID, "b1", models.TeamB)

	finished, err := env.matches.Finalize(context.Background(), m.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, finished.WinningTeam)

	assert.Equal(t, 10, env.store.User("a1").Score)
	assert.Equal(t, 10, env.store.User("b1").Score)
}

func TestMatchService_FinalizeOnlyFromInProgress(t *testing.T) {
	for _, s := range models.AllMatchStates {
		if s == models.MatchStateInProgress {
			continue
		}
		env := newTestEnv(t)
		m := env.seedMatch(t, inState(s))

		_, err := env.matches.Finalize(context.Background(), m.ID, teamPtr(models.TeamA))
		assert.ErrorIs(t, err, ErrInvalidTransition, "state %s", s)
		assert.Equal(t, s, env.match(t, m.ID).State)
	}
}

func TestMatchService_FinalizeScoreFailureKeepsFinishedState(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser("a1")
	m := env.seedMatch(t, inState(models.MatchStateInProgress))
	env.seedParticipant(t, m.ID, "a1", models.TeamA)
	// 사용자 저장소에 없는 참가자
	env.seedParticipant(t, m.ID, "ghost", models.TeamB)

	finished, err := env.matches.Finalize(context.Background(), m.ID, teamPtr(models.TeamA))
	require.NoError(t, err)
	assert.Equal(t, models.MatchStateFinished, finished.State)
	assert.Equal(t, 11, env.store.User("a1").Score)
}

type failingParticipants struct {
	repository.ParticipantStore
	err error
}

func (f failingParticipants) Create(context.Context, *models.Participant) error { return f.err }

type failingStateUpdates struct {
	repository.MatchStore
	err error
}

func (f failingStateUpdates) UpdateState(context.Context, *models.Match, models.MatchState) error {
	return f.err
}

// matchServiceOver 같은 저장소와 버스를 쓰되 일부 저장소를 바꾼 서비스
func (e *testEnv) matchServiceOver(t *testing.T, repos repository.Repositories) *MatchService {
	t.Helper()
	logger := zaptest.NewLogger(t)
	locker := distributed.NewLocalLockManager(distributed.DefaultLockOptions())
	return NewMatchService(repos, e.factory, e.bus, e.matchmaking, NewScoreService(repos.Users, logger), e.tasks, locker, nil, logger)
}

func TestMatchService_ReopenFullMatchIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	users := env.seedUsers("player", 4)
	env.seedUser("late")
	m := env.seedMatch(t)
	env.store.PutInvitation(pendingInvitation(m.ID, "late"))

	for _, userID := range users {
		_, err := env.matches.Join(ctx, m.ID, userID, nil)
		require.NoError(t, err)
	}
	require.Equal(t, models.MatchStateFormed, env.match(t, m.ID).State)

	_, err := env.matches.ChangeStateWithValidation(ctx, m.ID, models.MatchStateNeedsPlayers)
	assert.ErrorIs(t, err, ErrInvalidState)

	stored := env.match(t, m.ID)
	assert.Equal(t, models.MatchStateFormed, stored.State)
	assert.Equal(t, 4, stored.ConfirmedPlayers)

	invitations := env.store.Invitations(m.ID)
	require.Len(t, invitations, 1)
	assert.Equal(t, models.InvitationStateCancelled, invitations[0].State)
	require.NotNil(t, invitations[0].CancelReason)
	assert.Equal(t, models.CancelReasonMatchFull, *invitations[0].CancelReason)

	_, err = env.matches.Join(ctx, m.ID, "late", nil)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.NotErrorIs(t, err, ErrMatchFull)
}

func TestMatchService_ReopenShortMatchAcceptsPlayers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	users := env.seedUsers("player", 2)
	env.seedUser("late")
	m := env.seedMatch(t)
	env.store.PutInvitation(pendingInvitation(m.ID, "late"))

	for _, userID := range users {
		_, err := env.matches.Join(ctx, m.ID, userID, nil)
		require.NoError(t, err)
	}
	_, err := env.matches.ChangeStateWithValidation(ctx, m.ID, models.MatchStateFormed)
	require.NoError(t, err)

	reopened, err := env.matches.ChangeStateWithValidation(ctx, m.ID, models.MatchStateNeedsPlayers)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStateNeedsPlayers, reopened.State)

	invitations := env.store.Invitations(m.ID)
	require.Len(t, invitations, 1)
	assert.Equal(t, models.InvitationStatePending, invitations[0].State)

	p, err := env.matches.Join(ctx, m.ID, "late", nil)
	require.NoError(t, err)
	assert.Equal(t, "late", p.UserID)
	assert.Equal(t, 3, env.match(t, m.ID).ConfirmedPlayers)
}

func TestMatchService_JoinReleasesSlotWhenParticipantInsertFails(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{name: "storage error", err: errors.New("connection reset")},
		{name: "duplicate insert", err: repository.ErrDuplicate, expected: ErrAlreadyJoined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			env.seedUser("u1")
			m := env.seedMatch(t)

			repos := env.repos
			repos.Participants = failingParticipants{ParticipantStore: env.repos.Participants, err: tt.err}
			svc := env.matchServiceOver(t, repos)

			_, err := svc.Join(ctx, m.ID, "u1", nil)
			require.Error(t, err)
			if tt.expected != nil {
				assert.ErrorIs(t, err, tt.expected)
			}

			assert.Equal(t, 0, env.match(t, m.ID).ConfirmedPlayers)
			participants, err := env.repos.Participants.ListByMatch(ctx, m.ID)
			require.NoError(t, err)
			assert.Empty(t, participants)
		})
	}
}

func TestMatchService_JoinKeepsParticipantWhenAutoTransitionFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	users := env.seedUsers("player", 4)
	m := env.seedMatch(t)

	for _, userID := range users[:3] {
		_, err := env.matches.Join(ctx, m.ID, userID, nil)
		require.NoError(t, err)
	}

	repos := env.repos
	repos.Matches = failingStateUpdates{MatchStore: env.repos.Matches, err: errors.New("connection reset")}
	svc := env.matchServiceOver(t, repos)

	p, err := svc.Join(ctx, m.ID, users[3], nil)
	require.NoError(t, err)
	assert.Equal(t, users[3], p.UserID)

	stored := env.match(t, m.ID)
	assert.Equal(t, 4, stored.ConfirmedPlayers)
	assert.Equal(t, models.MatchStateNeedsPlayers, stored.State)

	result, err := env.scheduler.AdvanceStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, AdvanceResult{Formed: 1}, result)
	assert.Equal(t, models.MatchStateFormed, env.match(t, m.ID).State)
}
