package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/api"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/config"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/event"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/metrics"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/notifier"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/repository"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/repository/memory"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/service"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/state"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/websocket"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/pkg/database"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/pkg/distributed"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/pkg/logger"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
)

func main() {
	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 로거 초기화
	logger.Init(logger.Options{Env: cfg.Env, Level: cfg.LogLevel, File: cfg.LogFile})
	defer logger.Sync()
	zl := logger.L()

	logger.Info("Starting match lifecycle server",
		"port", cfg.Port,
		"env", cfg.Env,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics()

	// 저장소: DATABASE_URL 이 없으면 메모리 저장소
	var repos repository.Repositories
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect to database", "error", err)
		}
		defer db.Close()
		repos = repository.NewPostgres(db)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		repos = memory.New(nil).Repositories()
	}

	// Redis: 없으면 프로세스 내 락과 메모리 요청 제한
	lockOpts := distributed.DefaultLockOptions()
	lockOpts.TTL = cfg.LockTTL

	var (
		locker  distributed.Locker
		limiter ratelimit.Limiter
		relay   *distributed.StateChangeRelay
	)
	if cfg.RedisURL != "" {
		client, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("Failed to connect to redis", "error", err)
		}
		defer client.Close()

		locker = distributed.NewRedisLockManager(client, lockOpts)
		relay = distributed.NewStateChangeRelay(client, zl.Named("relay"))
		if cfg.RateLimitPerMinute > 0 {
			limiter = ratelimit.NewRedisLimiter(client, cfg.RateLimitPerMinute, time.Minute)
		}
		logger.Info("Redis connected", "instanceId", relay.InstanceID())
	} else {
		locker = distributed.NewLocalLockManager(lockOpts)
		if cfg.RateLimitPerMinute > 0 {
			local := ratelimit.NewLocalLimiter(cfg.RateLimitPerMinute, time.Minute)
			go pruneLimiter(ctx, local)
			limiter = local
		}
	}

	// WebSocket 허브
	hub := websocket.NewHub(zl)
	go hub.Run(ctx)

	notify := notifier.Multi{
		notifier.NewLogNotifier(zl),
		notifier.NewPushNotifier(hub),
	}

	// 코어
	factory := state.NewFactory(nil)
	tasks := service.NewTaskRunner(zl, m)
	strategies := service.NewStrategies(repos.Users, cfg.DefaultStrategy, cfg.ScoreHistoryRange)
	matchmaking := service.NewMatchmakingService(repos, factory, strategies, notify, tasks, locker, m, zl)

	bus := event.NewBus(zl.Named("events"), m)
	bus.Subscribe(
		service.NewInvitationObserver(repos.Invitations, zl),
		service.NewNotificationObserver(repos.Participants, notify),
	)
	if relay != nil {
		bus.Subscribe(service.NewRelayObserver(relay))
		go func() {
			err := relay.Listen(ctx, func(change distributed.StateChange) {
				hub.Broadcast(websocket.TypeMatchStateChanged, change)
			})
			if err != nil {
				logger.Error("State change relay stopped", "error", err)
			}
		}()
	}
	logger.Info("Observers subscribed", "observers", bus.Observers())

	scores := service.NewScoreService(repos.Users, zl)
	matchService := service.NewMatchService(repos, factory, bus, matchmaking, scores, tasks, locker, m, zl)
	scheduler := service.NewScheduler(matchService, matchmaking, repos, factory, cfg.Scheduler, m, zl)
	stats := service.NewStatsService(repos, cfg.Scheduler.IntensiveHorizon)

	if cfg.Scheduler.AutoStart {
		scheduler.StartAll()
	}

	router := api.SetupRouter(cfg, api.Deps{
		Matches:   matchService,
		Scheduler: scheduler,
		Stats:     stats,
		Hub:       hub,
		Limiter:   limiter,
		Metrics:   m.Handler(),
	})

	// 서버 설정
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown 대기
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// 새 요청이 없으니 타이머를 멈추고 남은 백그라운드 작업을 기다린다
	scheduler.StopAll()
	if err := tasks.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Background tasks did not finish", "inflight", tasks.Inflight(), "error", err)
	}
	cancel()

	logger.Info("Server exited", "failedTasks", tasks.Failed())
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// pruneLimiter 오래 쓰이지 않은 요청 제한 버킷 정리
func pruneLimiter(ctx context.Context, l *ratelimit.LocalLimiter) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Prune(10 * time.Minute)
		case <-ctx.Done():
			return
		}
	}
}
