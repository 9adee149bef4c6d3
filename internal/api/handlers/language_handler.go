package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/convopilot/internal/services"
)

type LanguageHandler struct {
	languages services.LanguageService
}

func NewLanguageHandler(languages services.LanguageService) *LanguageHandler {
	return &LanguageHandler{languages: languages}
}

func (h *LanguageHandler) List(c *gin.Context) {
	rows, err := h.languages.ListActive(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *LanguageHandler) Get(c *gin.Context) {
	l, err := h.languages.ByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}
