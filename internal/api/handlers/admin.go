package handlers

import (
	"net/http"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

// AdminHandler 스케줄러 제어와 통계
type AdminHandler struct {
	scheduler *service.Scheduler
	stats     *service.StatsService
}

func NewAdminHandler(scheduler *service.Scheduler, stats *service.StatsService) *AdminHandler {
	return &AdminHandler{
		scheduler: scheduler,
		stats:     stats,
	}
}

// GetStats 통계 스냅샷
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.stats.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to get stats")
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// GetScheduler 타이머 상태
func (h *AdminHandler) GetScheduler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"timers": h.scheduler.Status()})
}

// StartTimer 타이머 시작
func (h *AdminHandler) StartTimer(c *gin.Context) {
	name := c.Param("timer")
	changed, err := h.scheduler.Start(name)
	if err != nil {
		respondError(c, err, "Failed to start timer")
		return
	}

	c.JSON(http.StatusOK, gin.H{"timer": name, "started": changed})
}

// StopTimer 타이머 중지 (관리자 리셋용)
func (h *AdminHandler) StopTimer(c *gin.Context) {
	name := c.Param("timer")
	changed, err := h.scheduler.Stop(name)
	if err != nil {
		respondError(c, err, "Failed to stop timer")
		return
	}

	c.JSON(http.StatusOK, gin.H{"timer": name, "stopped": changed})
}

// RunTimer 즉시 한 번 실행. 이미 실행 중이면 ran=false.
func (h *AdminHandler) RunTimer(c *gin.Context) {
	name := c.Param("timer")
	ran, err := h.scheduler.RunNow(c.Request.Context(), name)
	if err != nil {
		respondError(c, err, "Timer run failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"timer": name, "ran": ran})
}
