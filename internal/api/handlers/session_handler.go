package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/convopilot/internal/models"
	"github.com/yoockh/convopilot/internal/services"
)

type SessionHandler struct {
	svc services.SessionService
}

func NewSessionHandler(svc services.SessionService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type CreateSessionRequest struct {
	Title               string                 `json:"title" binding:"required,max=200"`
	Topic               string                 `json:"topic" binding:"required,max=100"`
	DifficultyLevel     models.DifficultyLevel `json:"difficulty_level"`
	ConversationContext string                 `json:"conversation_context"`
}

type UpdateSessionRequest struct {
	Title               *string                 `json:"title" binding:"omitempty,min=1,max=200"`
	Topic               *string                 `json:"topic" binding:"omitempty,min=1,max=100"`
	DifficultyLevel     *models.DifficultyLevel `json:"difficulty_level"`
	ConversationContext *string                 `json:"conversation_context"`
}

type ConversationRequest struct {
	Turns []models.ConversationTurn `json:"full_conversation" binding:"required"`
}

type ConversationResponse struct {
	SessionID        string                    `json:"session_id"`
	FullConversation []models.ConversationTurn `json:"full_conversation"`
}

func (h *SessionHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req CreateSessionRequest
	if !bindJSON(c, "SessionHandler.Create", &req) {
		return
	}
	if req.DifficultyLevel == "" {
		req.DifficultyLevel = models.DifficultyMedium
	}

	sess, err := h.svc.Create(c.Request.Context(), userID, services.CreateSessionInput{
		Title:               req.Title,
		Topic:               req.Topic,
		DifficultyLevel:     req.DifficultyLevel,
		ConversationContext: req.ConversationContext,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newSessionView(sess))
}

func (h *SessionHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "SessionHandler.List", "limit", 0)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "SessionHandler.List", "offset", 0)
	if !ok {
		return
	}

	rows, err := h.svc.ListForUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *SessionHandler) Active(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	rows, err := h.svc.ListActive(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *SessionHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sess, err := h.svc.Get(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSessionView(sess))
}

func (h *SessionHandler) Update(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req UpdateSessionRequest
	if !bindJSON(c, "SessionHandler.Update", &req) {
		return
	}

	sess, err := h.svc.Update(c.Request.Context(), c.Param("id"), userID, services.UpdateSessionInput{
		Title:               req.Title,
		Topic:               req.Topic,
		DifficultyLevel:     req.DifficultyLevel,
		ConversationContext: req.ConversationContext,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSessionView(sess))
}

type transitionFunc func(ctx context.Context, sessionID, userID string) (*models.ConversationSession, error)

func (h *SessionHandler) lifecycle(fn transitionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}

		sess, err := fn(c.Request.Context(), c.Param("id"), userID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, newSessionView(sess))
	}
}

func (h *SessionHandler) End() gin.HandlerFunc    { return h.lifecycle(h.svc.End) }
func (h *SessionHandler) Pause() gin.HandlerFunc  { return h.lifecycle(h.svc.Pause) }
func (h *SessionHandler) Resume() gin.HandlerFunc { return h.lifecycle(h.svc.Resume) }
func (h *SessionHandler) Cancel() gin.HandlerFunc { return h.lifecycle(h.svc.Cancel) }

func (h *SessionHandler) Conversation(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("id")
	turns, err := h.svc.Conversation(c.Request.Context(), sessionID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ConversationResponse{SessionID: sessionID, FullConversation: turns})
}

func (h *SessionHandler) ReplaceConversation(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req ConversationRequest
	if !bindJSON(c, "SessionHandler.ReplaceConversation", &req) {
		return
	}

	sessionID := c.Param("id")
	if err := h.svc.ReplaceConversation(c.Request.Context(), sessionID, userID, req.Turns); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ConversationResponse{SessionID: sessionID, FullConversation: req.Turns})
}

func (h *SessionHandler) Events(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	events, err := h.svc.Events(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}
