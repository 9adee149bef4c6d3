package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/convopilot/internal/models"
	"github.com/yoockh/convopilot/internal/utils"
)

type UserLookup interface {
	Get(ctx context.Context, userID string) (*models.User, error)
}

// RequireActiveUser loads the authenticated user and rejects deactivated
// accounts. Tokens issued before deactivation stay signed-valid, so the
// check has to happen per request. The loaded user is stored as "user".
func RequireActiveUser(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{
				Code:    utils.CodeUnauthorized,
				Message: "unauthorized",
			})
			return
		}

		u, err := users.Get(c.Request.Context(), userID)
		if err != nil {
			_ = c.Error(err)
			if utils.IsCode(err, utils.CodeNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, apiError{
					Code:    utils.CodeUnauthorized,
					Message: "user not found",
				})
				return
			}
			c.AbortWithStatusJSON(utils.HTTPStatus(err), apiError{
				Code:    utils.CodeOf(err),
				Message: "failed to load user",
			})
			return
		}

		if !u.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden, apiError{
				Code:    utils.CodeForbidden,
				Message: "inactive user",
			})
			return
		}

		c.Set("user", u)
		c.Next()
	}
}
