package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/config"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/event"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/models"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/repository"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/repository/memory"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/state"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/pkg/distributed"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stateChange struct {
	matchID    string
	from       models.MatchState
	to         models.MatchState
	recipients []string
}

// recordingNotifier 알림 기록용
type recordingNotifier struct {
	mu          sync.Mutex
	changes     []stateChange
	invitations []*models.Invitation
	err         error
}

func (n *recordingNotifier) NotifyStateChange(_ context.Context, m *models.Match, from models.MatchState, recipients []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.changes = append(n.changes, stateChange{matchID: m.ID, from: from, to: m.State, recipients: recipients})
	return nil
}

func (n *recordingNotifier) NotifyNewInvitation(_ context.Context, inv *models.Invitation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.invitations = append(n.invitations, inv)
	return nil
}

func (n *recordingNotifier) Changes() []stateChange {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]stateChange(nil), n.changes...)
}

func (n *recordingNotifier) Invitations() []*models.Invitation {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*models.Invitation(nil), n.invitations...)
}

func (n *recordingNotifier) SetErr(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

type testEnv struct {
	store       *memory.Store
	repos       repository.Repositories
	factory     *state.Factory
	notifier    *recordingNotifier
	tasks       *TaskRunner
	bus         *event.Bus
	matchmaking *MatchmakingService
	matches     *MatchService
	scheduler   *Scheduler
	stats       *StatsService
}

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		StateAdvanceInterval:         time.Hour,
		MatchmakingInterval:          time.Hour,
		MatchmakingIntensiveInterval: time.Hour,
		InvitationCleanupInterval:    time.Hour,
		MatchmakingHorizon:           48 * time.Hour,
		IntensiveHorizon:             24 * time.Hour,
		AutoFinishAfter:              3 * time.Hour,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zaptest.NewLogger(t)
	store := memory.New(nil)
	repos := store.Repositories()
	factory := state.NewFactory(nil)
	n := &recordingNotifier{}
	tasks := NewTaskRunner(logger, nil)
	locker := distributed.NewLocalLockManager(distributed.DefaultLockOptions())

	strategies := NewStrategies(repos.Users, models.StrategyByZone, DefaultScoreHistoryRange)
	matchmaking := NewMatchmakingService(repos, factory, strategies, n, tasks, locker, nil, logger)

	bus := event.NewBus(logger, nil)
	bus.Subscribe(
		NewInvitationObserver(repos.Invitations, logger),
		NewNotificationObserver(repos.Participants, n),
	)

	matches := NewMatchService(repos, factory, bus, matchmaking, NewScoreService(repos.Users, logger), tasks, locker, nil, logger)
	cfg := testSchedulerConfig()

	// 백그라운드 작업이 테스트 로거를 쓰므로 테스트 종료 전에 기다린다
	t.Cleanup(tasks.Wait)

	return &testEnv{
		store:       store,
		repos:       repos,
		factory:     factory,
		notifier:    n,
		tasks:       tasks,
		bus:         bus,
		matchmaking: matchmaking,
		matches:     matches,
		scheduler:   NewScheduler(matches, matchmaking, repos, factory, cfg, nil, logger),
		stats:       NewStatsService(repos, cfg.IntensiveHorizon),
	}
}

// seedUser 기본값: football, centro, level 3, score 10
func (e *testEnv) seedUser(id string, opts ...func(u *models.User)) *models.User {
	u := &models.User{
		ID:              id,
		Name:            id,
		Email:           id + "@example.com",
		ZoneID:          "centro",
		FavoriteSportID: "football",
		Level:           3,
		Score:           10,
	}
	for _, opt := range opts {
		opt(u)
	}
	e.store.PutUser(u)
	return u
}

func (e *testEnv) seedUsers(prefix string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-%d", prefix, i+1)
		e.seedUser(ids[i])
	}
	return ids
}

// seedMatch 저장소에 직접 매치를 만든다 (초기 매칭 작업 없음)
func (e *testEnv) seedMatch(t *testing.T, opts ...func(m *models.Match)) *models.Match {
	t.Helper()

	m := &models.Match{
		SportID:         "football",
		ZoneID:          "centro",
		OrganizerID:     "organizer",
		ScheduledAt:     time.Now().Add(12 * time.Hour).UTC(),
		DurationMinutes: 90,
		RequiredPlayers: 4,
		State:           models.MatchStateNeedsPlayers,
		Strategy:        models.StrategyByZone,
	}
	for _, opt := range opts {
		opt(m)
	}
	require.NoError(t, e.repos.Matches.Create(context.Background(), m))
	return m
}

func (e *testEnv) seedParticipant(t *testing.T, matchID, userID string, team models.Team) {
	t.Helper()
	require.NoError(t, e.repos.Participants.Create(context.Background(), &models.Participant{
		MatchID: matchID,
		UserID:  userID,
		Team:    team,
	}))
}

func (e *testEnv) match(t *testing.T, id string) *models.Match {
	t.Helper()
	m, err := e.repos.Matches.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, m)
	return m
}

func inState(s models.MatchState) func(m *models.Match) {
	return func(m *models.Match) { m.State = s }
}

func scheduledIn(d time.Duration) func(m *models.Match) {
	return func(m *models.Match) { m.ScheduledAt = time.Now().Add(d).UTC() }
}

func teamPtr(t models.Team) *models.Team { return &t }

func intPtr(v int) *int { return &v }
