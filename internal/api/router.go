package api

import (
	"net/http"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/api/handlers"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/api/middleware"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/config"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/service"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/websocket"
	jwtutil "github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/pkg/jwt"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/pkg/ratelimit"
	"github.com/gin-gonic/gin"
)

// Deps 라우터가 노출하는 코어 구성요소
type Deps struct {
	Matches   *service.MatchService
	Scheduler *service.Scheduler
	Stats     *service.StatsService
	Hub       *websocket.Hub
	// Limiter nil 이면 쓰기 요청 제한 없음
	Limiter ratelimit.Limiter
	// Metrics nil 이면 /metrics 미노출
	Metrics http.Handler
}

// SetupRouter API 라우터 설정
func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 전역 미들웨어
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())

	jwtManager := jwtutil.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	auth := middleware.Auth(jwtManager)

	writeLimit := func(c *gin.Context) { c.Next() }
	if deps.Limiter != nil {
		writeLimit = middleware.RateLimit(deps.Limiter)
	}

	matchHandler := handlers.NewMatchHandler(deps.Matches)
	adminHandler := handlers.NewAdminHandler(deps.Scheduler, deps.Stats)

	router.GET("/health", handlers.HealthCheck)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Timeout(cfg.RequestTimeout))
	{
		if deps.Hub != nil {
			wsHandler := handlers.NewWebSocketHandler(deps.Hub)
			// 업그레이드된 연결은 요청 제한 시간과 무관하다
			router.GET("/api/v1/ws", auth, wsHandler.HandleWebSocket)
		}

		matches := v1.Group("/matches")
		matches.Use(auth)
		{
			matches.POST("", writeLimit, matchHandler.CreateMatch)
			matches.GET("/:id", matchHandler.GetMatch)
			matches.POST("/:id/join", writeLimit, matchHandler.JoinMatch)
			matches.PUT("/:id/state", writeLimit, matchHandler.ChangeState)
			matches.POST("/:id/finalize", writeLimit, matchHandler.FinalizeMatch)
		}

		admin := v1.Group("/admin")
		admin.Use(auth, middleware.RequireAdmin())
		{
			admin.GET("/stats", adminHandler.GetStats)
			admin.GET("/scheduler", adminHandler.GetScheduler)
			admin.POST("/scheduler/:timer/start", adminHandler.StartTimer)
			admin.POST("/scheduler/:timer/stop", adminHandler.StopTimer)
			admin.POST("/scheduler/:timer/run", adminHandler.RunTimer)
		}
	}

	return router
}
