package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/models"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// Server
	Port           string
	Env            string
	LogLevel       string
	LogFile        string
	RequestTimeout time.Duration

	// Database (비어 있으면 메모리 저장소)
	DatabaseURL string

	// Redis (비어 있으면 프로세스 내 락, 상태 변경 중계 없음)
	RedisURL string

	// LockTTL 매치 락 만료. 보유 중에는 TTL/3 마다 연장되므로 프로세스가 죽었을 때 락이 남는 최대 시간이다.
	LockTTL time.Duration

	// 쓰기 요청 한도 (사용자당 분당 요청 수, 0 이면 제한 없음)
	RateLimitPerMinute int

	// JWT
	JWTSecret     string
	JWTExpiration time.Duration

	// Matchmaking
	DefaultStrategy   models.StrategyName
	ScoreHistoryRange int

	// Scheduler
	Scheduler SchedulerConfig
}

// SchedulerConfig 타이머 주기와 시간 창
type SchedulerConfig struct {
	AutoStart                    bool
	StateAdvanceInterval         time.Duration
	MatchmakingInterval          time.Duration
	MatchmakingIntensiveInterval time.Duration
	InvitationCleanupInterval    time.Duration
	MatchmakingHorizon           time.Duration
	IntensiveHorizon             time.Duration
	AutoFinishAfter              time.Duration
}

func Load() (*Config, error) {
	// .env 파일 로드 (있는 경우)
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("REQUEST_TIMEOUT", "10s")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("LOCK_TTL", "10s")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 60)
	v.SetDefault("JWT_SECRET", "your-secret-key")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("DEFAULT_STRATEGY", string(models.StrategyByZone))
	v.SetDefault("SCORE_HISTORY_RANGE", 5)
	v.SetDefault("SCHEDULER_AUTOSTART", true)
	v.SetDefault("STATE_ADVANCE_INTERVAL", "5m")
	v.SetDefault("MATCHMAKING_INTERVAL", "30m")
	v.SetDefault("MATCHMAKING_INTENSIVE_INTERVAL", "2h")
	v.SetDefault("INVITATION_CLEANUP_INTERVAL", "24h")
	v.SetDefault("MATCHMAKING_HORIZON", "48h")
	v.SetDefault("INTENSIVE_HORIZON", "24h")
	v.SetDefault("AUTO_FINISH_AFTER", "3h")

	cfg := &Config{
		Port:               v.GetString("PORT"),
		Env:                v.GetString("ENV"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		LogFile:            v.GetString("LOG_FILE"),
		RequestTimeout:     v.GetDuration("REQUEST_TIMEOUT"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		RedisURL:           v.GetString("REDIS_URL"),
		LockTTL:            v.GetDuration("LOCK_TTL"),
		RateLimitPerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		JWTExpiration:      v.GetDuration("JWT_EXPIRATION"),
		DefaultStrategy:    models.StrategyName(strings.ToUpper(v.GetString("DEFAULT_STRATEGY"))),
		ScoreHistoryRange:  v.GetInt("SCORE_HISTORY_RANGE"),
		Scheduler: SchedulerConfig{
			AutoStart:                    v.GetBool("SCHEDULER_AUTOSTART"),
			StateAdvanceInterval:         v.GetDuration("STATE_ADVANCE_INTERVAL"),
			MatchmakingInterval:          v.GetDuration("MATCHMAKING_INTERVAL"),
			MatchmakingIntensiveInterval: v.GetDuration("MATCHMAKING_INTENSIVE_INTERVAL"),
			InvitationCleanupInterval:    v.GetDuration("INVITATION_CLEANUP_INTERVAL"),
			MatchmakingHorizon:           v.GetDuration("MATCHMAKING_HORIZON"),
			IntensiveHorizon:             v.GetDuration("INTENSIVE_HORIZON"),
			AutoFinishAfter:              v.GetDuration("AUTO_FINISH_AFTER"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate 잘못된 값은 시작 시점에 거부
func (c *Config) Validate() error {
	if !c.DefaultStrategy.Valid() {
		return fmt.Errorf("invalid DEFAULT_STRATEGY %q", c.DefaultStrategy)
	}
	if c.ScoreHistoryRange < 0 {
		return fmt.Errorf("SCORE_HISTORY_RANGE must not be negative")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}

	durations := map[string]time.Duration{
		"REQUEST_TIMEOUT":                c.RequestTimeout,
		"LOCK_TTL":                       c.LockTTL,
		"JWT_EXPIRATION":                 c.JWTExpiration,
		"STATE_ADVANCE_INTERVAL":         c.Scheduler.StateAdvanceInterval,
		"MATCHMAKING_INTERVAL":           c.Scheduler.MatchmakingInterval,
		"MATCHMAKING_INTENSIVE_INTERVAL": c.Scheduler.MatchmakingIntensiveInterval,
		"INVITATION_CLEANUP_INTERVAL":    c.Scheduler.InvitationCleanupInterval,
		"MATCHMAKING_HORIZON":            c.Scheduler.MatchmakingHorizon,
		"INTENSIVE_HORIZON":              c.Scheduler.IntensiveHorizon,
		"AUTO_FINISH_AFTER":              c.Scheduler.AutoFinishAfter,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be a positive duration", key)
		}
	}

	return nil
}
