package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/convopilot/internal/models"
	"github.com/yoockh/convopilot/internal/services"
	"github.com/yoockh/convopilot/internal/utils"
)

// TokenIssuer is satisfied by *security.JWTManager.
type TokenIssuer interface {
	GenerateAccessToken(userID, email string) (string, error)
	AccessTokenTTL() time.Duration
}

type AuthHandler struct {
	users  services.UserService
	tokens TokenIssuer
}

func NewAuthHandler(users services.UserService, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens}
}

type RegisterRequest struct {
	Email            string                  `json:"email" binding:"required,email,max=255"`
	Username         string                  `json:"username" binding:"required,min=3,max=50"`
	Password         string                  `json:"password" binding:"required,min=8,max=128"`
	FirstName        string                  `json:"first_name" binding:"max=100"`
	LastName         string                  `json:"last_name" binding:"max=100"`
	NativeLanguage   string                  `json:"native_language" binding:"required,min=2,max=10"`
	TargetLanguage   string                  `json:"target_language" binding:"required,min=2,max=10"`
	ProficiencyLevel models.ProficiencyLevel `json:"proficiency_level"`
	PreferredTopics  []string                `json:"preferred_topics"`
	LearningGoals    string                  `json:"learning_goals" binding:"max=2000"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type CheckEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type CheckUsernameRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
}

type AvailabilityResponse struct {
	Available bool `json:"available"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, "AuthHandler.Register", &req) {
		return
	}

	if req.ProficiencyLevel == "" {
		req.ProficiencyLevel = models.ProficiencyBeginner
	}

	u, err := h.users.Register(c.Request.Context(), services.RegisterInput{
		Email:            req.Email,
		Username:         req.Username,
		Password:         req.Password,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		NativeLanguage:   req.NativeLanguage,
		TargetLanguage:   req.TargetLanguage,
		ProficiencyLevel: req.ProficiencyLevel,
		PreferredTopics:  req.PreferredTopics,
		LearningGoals:    req.LearningGoals,
	})
	if err != nil {
		// duplicates are reported as a bad request on this endpoint
		if utils.IsCode(err, utils.CodeConflict) {
			writeError(c, utils.E(utils.CodeInvalidArgument, "AuthHandler.Register", "email or username already registered", err))
			return
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newUserView(u))
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, "AuthHandler.Login", &req) {
		return
	}

	u, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	token, err := h.tokens.GenerateAccessToken(u.ID, u.Email)
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, "AuthHandler.Login", "failed to issue token", err))
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.tokens.AccessTokenTTL().Seconds()),
	})
}

func (h *AuthHandler) CheckEmail(c *gin.Context) {
	var req CheckEmailRequest
	if !bindJSON(c, "AuthHandler.CheckEmail", &req) {
		return
	}

	ok, err := h.users.EmailAvailable(c.Request.Context(), req.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, AvailabilityResponse{Available: ok})
}

func (h *AuthHandler) CheckUsername(c *gin.Context) {
	var req CheckUsernameRequest
	if !bindJSON(c, "AuthHandler.CheckUsername", &req) {
		return
	}

	ok, err := h.users.UsernameAvailable(c.Request.Context(), req.Username)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, AvailabilityResponse{Available: ok})
}
