package handlers

import (
	"net/http"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/api/middleware"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/models"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

type MatchHandler struct {
	matchService *service.MatchService
}

func NewMatchHandler(matchService *service.MatchService) *MatchHandler {
	return &MatchHandler{
		matchService: matchService,
	}
}

// CreateMatch 새 매치 생성 (요청자가 주최자)
func (h *MatchHandler) CreateMatch(c *gin.Context) {
	var req models.CreateMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	match, err := h.matchService.Create(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err, "Failed to create match")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"match": match})
}

// GetMatch 매치와 참가자 조회
func (h *MatchHandler) GetMatch(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	match, err := h.matchService.Get(ctx, id)
	if err != nil {
		respondError(c, err, "Failed to get match")
		return
	}

	participants, err := h.matchService.Participants(ctx, id)
	if err != nil {
		respondError(c, err, "Failed to get participants")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"match":        match,
		"participants": participants,
	})
}

// JoinMatch 요청자를 매치에 참가시킨다. team 을 생략하면 자동 배정.
func (h *MatchHandler) JoinMatch(c *gin.Context) {
	var req models.JoinMatchRequest
	// 본문 없이도 참가할 수 있다
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	participant, err := h.matchService.Join(c.Request.Context(), c.Param("id"), userID, req.Team)
	if err != nil {
		respondError(c, err, "Failed to join match")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"participant": participant})
}

// ChangeState 전이표 검사를 거친 상태 변경
func (h *MatchHandler) ChangeState(c *gin.Context) {
	var req models.ChangeStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.authorizeOrganizer(c) {
		return
	}

	match, err := h.matchService.ChangeStateWithValidation(c.Request.Context(), c.Param("id"), req.State)
	if err != nil {
		respondError(c, err, "Failed to change match state")
		return
	}

	c.JSON(http.StatusOK, gin.H{"match": match})
}

// FinalizeMatch 진행 중인 매치 종료. winningTeam 생략 시 무승부.
func (h *MatchHandler) FinalizeMatch(c *gin.Context) {
	var req models.FinalizeMatchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if !h.authorizeOrganizer(c) {
		return
	}

	match, err := h.matchService.Finalize(c.Request.Context(), c.Param("id"), req.WinningTeam)
	if err != nil {
		respondError(c, err, "Failed to finalize match")
		return
	}

	c.JSON(http.StatusOK, gin.H{"match": match})
}

// authorizeOrganizer 주최자나 관리자가 아니면 응답을 쓰고 false
func (h *MatchHandler) authorizeOrganizer(c *gin.Context) bool {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return false
	}

	match, err := h.matchService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to get match")
		return false
	}

	if match.OrganizerID != userID && !middleware.IsAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the organizer or an admin can manage this match"})
		return false
	}
	return true
}
