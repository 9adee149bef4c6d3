package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/convopilot/internal/models"
	"github.com/yoockh/convopilot/internal/services"
)

type UserHandler struct {
	users       services.UserService
	sessions    services.SessionService
	defaultDays int
}

func NewUserHandler(users services.UserService, sessions services.SessionService, defaultDays int) *UserHandler {
	if defaultDays <= 0 {
		defaultDays = services.DefaultStatsDays
	}
	return &UserHandler{users: users, sessions: sessions, defaultDays: defaultDays}
}

type UpdateUserRequest struct {
	FirstName        *string                  `json:"first_name" binding:"omitempty,max=100"`
	LastName         *string                  `json:"last_name" binding:"omitempty,max=100"`
	NativeLanguage   *string                  `json:"native_language" binding:"omitempty,min=2,max=10"`
	TargetLanguage   *string                  `json:"target_language" binding:"omitempty,min=2,max=10"`
	ProficiencyLevel *models.ProficiencyLevel `json:"proficiency_level"`
	PreferredTopics  *[]string                `json:"preferred_topics"`
	LearningGoals    *string                  `json:"learning_goals" binding:"omitempty,max=2000"`
}

type StatisticsResponse struct {
	UserID       string     `json:"user_id"`
	MemberSince  time.Time  `json:"member_since"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
	*services.SessionStatistics
}

// currentUser returns the user loaded by RequireActiveUser, falling back
// to a lookup when the middleware is not mounted.
func (h *UserHandler) currentUser(c *gin.Context) (*models.User, bool) {
	if v, ok := c.Get("user"); ok {
		if u, ok := v.(*models.User); ok {
			return u, true
		}
	}

	userID, ok := requireUserID(c)
	if !ok {
		return nil, false
	}
	u, err := h.users.Get(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return u, true
}

func (h *UserHandler) Me(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newUserView(u))
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !bindJSON(c, "UserHandler.UpdateMe", &req) {
		return
	}

	u, err := h.users.UpdateProfile(c.Request.Context(), userID, services.UpdateUserInput{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		NativeLanguage:   req.NativeLanguage,
		TargetLanguage:   req.TargetLanguage,
		ProficiencyLevel: req.ProficiencyLevel,
		PreferredTopics:  req.PreferredTopics,
		LearningGoals:    req.LearningGoals,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserView(u))
}

func (h *UserHandler) DeactivateMe(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.users.Deactivate(c.Request.Context(), userID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account deactivated"})
}

func (h *UserHandler) Languages(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	rows, err := h.users.Languages(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *UserHandler) ProfileCompletion(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	pc, err := h.users.ProfileCompletion(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pc)
}

func (h *UserHandler) Peers(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	peers, err := h.users.Peers(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, peers)
}

func (h *UserHandler) Statistics(c *gin.Context) {
	u, ok := h.currentUser(c)
	if !ok {
		return
	}
	days, ok := queryInt(c, "UserHandler.Statistics", "days", h.defaultDays)
	if !ok {
		return
	}

	stats, err := h.sessions.Statistics(c.Request.Context(), u.ID, days)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, StatisticsResponse{
		UserID:            u.ID,
		MemberSince:       u.CreatedAt,
		LastActivity:      u.LastLogin,
		SessionStatistics: stats,
	})
}
