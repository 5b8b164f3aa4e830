package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/api/middleware"
	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/models"
	"github.com/DIvanCode/CoDuels-Backend-sub001/internal/service"
	"github.com/DIvanCode/CoDuels-Backend-sub001/pkg/logger"
	"github.com/gin-gonic/gin"
)

// DuelUseCases 핸들러가 사용하는 대결 기능
type DuelUseCases interface {
	StartSearch(ctx context.Context, userID int64) error
	CancelSearch(ctx context.Context, userID int64) error
	SearchStatus(ctx context.Context, userID int64) (*service.SearchStatus, error)
	Finish(ctx context.Context, duelID int64) (*models.Duel, error)
	RatingPreview(ctx context.Context, userID, opponentID int64) (map[models.DuelResult]int, error)
	VisibleTasks(ctx context.Context, duelID, userID int64) (map[string]models.DuelTask, error)
}

type DuelHandler struct {
	duelService DuelUseCases
}

func NewDuelHandler(duelService DuelUseCases) *DuelHandler {
	return &DuelHandler{
		duelService: duelService,
	}
}

// StartSearch 레이팅 대결 검색 시작
func (h *DuelHandler) StartSearch(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	if err := h.duelService.StartSearch(c.Request.Context(), userID); err != nil {
		respondError(c, err, "Failed to start search")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Search started"})
}

// CancelSearch 레이팅 대결 검색 취소
func (h *DuelHandler) CancelSearch(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	if err := h.duelService.CancelSearch(c.Request.Context(), userID); err != nil {
		respondError(c, err, "Failed to cancel search")
		return
	}

	c.Status(http.StatusNoContent)
}

// GetSearchStatus 검색 상태 조회
func (h *DuelHandler) GetSearchStatus(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	status, err := h.duelService.SearchStatus(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to get search status")
		return
	}

	c.JSON(http.StatusOK, status)
}

// FinishDuel 대결 종료 (채점 서비스/운영 도구에서 호출)
func (h *DuelHandler) FinishDuel(c *gin.Context) {
	duelID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid duel id"})
		return
	}

	duel, err := h.duelService.Finish(c.Request.Context(), duelID)
	if err != nil {
		respondError(c, err, "Failed to finish duel")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"duel": duel,
	})
}

// GetRatingChanges 상대와 레이팅 대결 시 결과별 변화량
func (h *DuelHandler) GetRatingChanges(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	opponentID, err := strconv.ParseInt(c.Query("opponentId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid opponentId"})
		return
	}

	changes, err := h.duelService.RatingPreview(c.Request.Context(), userID, opponentID)
	if err != nil {
		respondError(c, err, "Failed to calculate rating changes")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"changes": changes,
	})
}

// GetVisibleTasks 참가자에게 보이는 과제
func (h *DuelHandler) GetVisibleTasks(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	duelID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid duel id"})
		return
	}

	tasks, err := h.duelService.VisibleTasks(c.Request.Context(), duelID, userID)
	if err != nil {
		respondError(c, err, "Failed to get tasks")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
	})
}

// respondError 서비스 에러를 HTTP 상태 코드로 변환
func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	case errors.Is(err, service.ErrDuelNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Duel not found"})
	case errors.Is(err, service.ErrActiveDuelExists):
		c.JSON(http.StatusConflict, gin.H{"error": "User already has an active duel"})
	case errors.Is(err, service.ErrDuelAlreadyFinished):
		c.JSON(http.StatusConflict, gin.H{"error": "Duel already finished"})
	case errors.Is(err, service.ErrNotSearching):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not searching"})
	case errors.Is(err, service.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a duel participant"})
	case errors.Is(err, service.ErrSameUser):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot duel against yourself"})
	default:
		logger.Error(fallback, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
