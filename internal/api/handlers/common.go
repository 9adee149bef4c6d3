package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/yoockh/convopilot/internal/utils"
)

type APIError struct {
	Code    utils.Code        `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// writeError answers with the safe message only; the full error chain is
// attached to the context for the request logger.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := utils.HTTPStatus(err)

	var ae *utils.AppError
	if errors.As(err, &ae) {
		body := APIError{Code: ae.Code, Message: ae.Message}
		var ve validator.ValidationErrors
		if errors.As(ae.Err, &ve) {
			body.Details = validationDetails(ve)
		}
		c.AbortWithStatusJSON(status, body)
		return
	}

	c.AbortWithStatusJSON(status, APIError{
		Code:    utils.CodeInternal,
		Message: http.StatusText(status),
	})
}

func validationDetails(ve validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(ve))
	for _, e := range ve {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out[field] = "field is required"
		case "email":
			out[field] = "invalid email format"
		case "min":
			out[field] = "must be at least " + e.Param() + " characters"
		case "max":
			out[field] = "must be at most " + e.Param() + " characters"
		case "oneof":
			out[field] = "must be one of: " + e.Param()
		case "gte", "lte":
			out[field] = "out of range"
		default:
			out[field] = "validation failed on " + e.Tag()
		}
	}
	return out
}

// bindJSON decodes and validates the body into dst, writing a 400 on failure.
func bindJSON(c *gin.Context, op string, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return false
	}
	return true
}

func requireUserID(c *gin.Context) (string, bool) {
	if v, ok := c.Get("user_id"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}

	writeError(c, utils.E(utils.CodeUnauthorized, "Auth", "unauthorized", nil))
	return "", false
}

// queryInt reads a non-negative integer query parameter, def when absent.
func queryInt(c *gin.Context, op, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, name+" must be a non-negative integer", err))
		return 0, false
	}
	return n, true
}
