package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/convopilot/internal/api/handlers"
	"github.com/yoockh/convopilot/internal/api/middleware"
	"github.com/yoockh/convopilot/internal/ratelimit"
)

type Deps struct {
	Health   *handlers.HealthHandler
	Auth     *handlers.AuthHandler
	User     *handlers.UserHandler
	Language *handlers.LanguageHandler
	Session  *handlers.SessionHandler
	Message  *handlers.MessageHandler
	Feedback *handlers.FeedbackHandler
	WS       *handlers.WSHandler

	Tokens  middleware.TokenValidator
	Users   middleware.UserLookup
	Limiter ratelimit.Limiter // nil disables login throttling
	Log     logrus.FieldLogger
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", d.Health.Ping)
	r.GET("/health", d.Health.Health)

	api := r.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", d.Auth.Register)
	if d.Limiter != nil {
		auth.POST("/login", middleware.RateLimit(d.Limiter, "login", d.Log), d.Auth.Login)
	} else {
		auth.POST("/login", d.Auth.Login)
	}
	auth.POST("/check-email", d.Auth.CheckEmail)
	auth.POST("/check-username", d.Auth.CheckUsername)

	languages := api.Group("/languages")
	languages.GET("/", d.Language.List)
	languages.GET("/:code", d.Language.Get)

	// Protected routes (JWT + active account)
	protected := api.Group("/")
	protected.Use(middleware.JWTAuth(d.Tokens), middleware.RequireActiveUser(d.Users))

	users := protected.Group("/users")
	users.GET("/me", d.User.Me)
	users.PUT("/me", d.User.UpdateMe)
	users.DELETE("/me", d.User.DeactivateMe)
	users.POST("/deactivate", d.User.DeactivateMe)
	users.GET("/me/languages", d.User.Languages)
	users.GET("/profile-completion", d.User.ProfileCompletion)
	users.GET("/language-peers", d.User.Peers)
	users.GET("/statistics", d.User.Statistics)

	sessions := protected.Group("/sessions")
	sessions.POST("", d.Session.Create)
	sessions.GET("", d.Session.List)
	sessions.GET("/active", d.Session.Active)
	sessions.GET("/:id", d.Session.Get)
	sessions.PATCH("/:id", d.Session.Update)
	sessions.POST("/:id/end", d.Session.End())
	sessions.POST("/:id/pause", d.Session.Pause())
	sessions.POST("/:id/resume", d.Session.Resume())
	sessions.POST("/:id/cancel", d.Session.Cancel())
	sessions.GET("/:id/conversation", d.Session.Conversation)
	sessions.PUT("/:id/conversation", d.Session.ReplaceConversation)
	sessions.GET("/:id/events", d.Session.Events)
	sessions.GET("/:id/messages", d.Message.List)
	sessions.POST("/:id/messages", d.Message.Append)
	sessions.POST("/:id/messages/voice", d.Message.AppendVoice)

	messages := protected.Group("/messages")
	messages.POST("/:id/analysis", d.Message.Analysis)
	messages.GET("/:id/audio", d.Message.Audio)

	feedback := protected.Group("/feedback")
	feedback.GET("", d.Feedback.List)
	feedback.POST("", d.Feedback.Create)
	feedback.GET("/progress", d.Feedback.Progress)
	feedback.GET("/:id", d.Feedback.Get)

	// WebSocket
	ws := r.Group("/ws")
	ws.Use(middleware.JWTAuth(d.Tokens), middleware.RequireActiveUser(d.Users))
	ws.GET("/sessions/:id", d.WS.SessionWS)
}
