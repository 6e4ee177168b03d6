package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/ArowuTest/tambola-backend/internal/services"
	"github.com/ArowuTest/tambola-backend/internal/tambola"
)

// GameHandler handles game session HTTP requests
type GameHandler struct {
	gameService services.GameSessionService
	logger      *zap.Logger
}

// NewGameHandler creates a new GameHandler
func NewGameHandler(gameService services.GameSessionService, logger *zap.Logger) *GameHandler {
	return &GameHandler{
		gameService: gameService,
		logger:      logger,
	}
}

// DrawRequest is the body of POST /games/:id/draw
type DrawRequest struct {
	Number *int `json:"number" binding:"required"`
}

// GetGame handles GET /games/:id
func (h *GameHandler) GetGame(c *gin.Context) {
	id, ok := gameID(c)
	if !ok {
		return
	}
	snapshot, err := h.gameService.GetGame(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// StartGame handles POST /games/:id/start
func (h *GameHandler) StartGame(c *gin.Context) {
	h.runAction(c, "Game started", h.gameService.Start)
}

// PauseGame handles POST /games/:id/pause
func (h *GameHandler) PauseGame(c *gin.Context) {
	h.runAction(c, "Game paused", h.gameService.Pause)
}

// ResumeGame handles POST /games/:id/resume
func (h *GameHandler) ResumeGame(c *gin.Context) {
	h.runAction(c, "Game resumed", h.gameService.Resume)
}

// EndGame handles POST /games/:id/end
func (h *GameHandler) EndGame(c *gin.Context) {
	h.runAction(c, "Game ended", h.gameService.End)
}

// StartAutoPlay handles POST /games/:id/auto-play/start
func (h *GameHandler) StartAutoPlay(c *gin.Context) {
	h.runAction(c, "Auto-play started", h.gameService.StartAutoPlay)
}

// StopAutoPlay handles POST /games/:id/auto-play/stop
func (h *GameHandler) StopAutoPlay(c *gin.Context) {
	h.runAction(c, "Auto-play stopped", h.gameService.StopAutoPlay)
}

// DrawNumber handles POST /games/:id/draw
func (h *GameHandler) DrawNumber(c *gin.Context) {
	id, ok := gameID(c)
	if !ok {
		return
	}
	var request DrawRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "number is required", "code": tambola.CodeInvalidPayload})
		return
	}

	outcome, err := h.gameService.ManualDraw(c.Request.Context(), id, *request.Number)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *GameHandler) runAction(c *gin.Context, message string, action func(context.Context, primitive.ObjectID) error) {
	id, ok := gameID(c)
	if !ok {
		return
	}
	if err := action(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}

	snapshot, err := h.gameService.GetGame(c.Request.Context(), id)
	if err != nil {
		// The action itself succeeded
		c.JSON(http.StatusOK, gin.H{"message": message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "game": snapshot.Game, "autoPlayActive": snapshot.AutoPlayActive})
}

func (h *GameHandler) respondError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("game request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": tambola.MessageOf(err), "code": tambola.CodeOf(err)})
}

func gameID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format", "code": tambola.CodeInvalidPayload})
		return primitive.NilObjectID, false
	}
	return id, true
}

// StatusFor maps a domain error to its HTTP status
func StatusFor(err error) int {
	switch tambola.CodeOf(err) {
	case tambola.CodeGameNotFound:
		return http.StatusNotFound
	case tambola.CodeInvalidTransition, tambola.CodeDuplicateNumber:
		return http.StatusConflict
	case tambola.CodeOutOfRange:
		return http.StatusUnprocessableEntity
	case tambola.CodeInvalidPayload:
		return http.StatusBadRequest
	case tambola.CodeForbidden:
		return http.StatusForbidden
	case tambola.CodeRateLimited:
		return http.StatusTooManyRequests
	case tambola.CodePersistenceFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
