package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/convopilot/internal/models"
	"github.com/yoockh/convopilot/internal/services"
)

type FeedbackHandler struct {
	svc services.FeedbackService
}

func NewFeedbackHandler(svc services.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{svc: svc}
}

type CreateFeedbackRequest struct {
	SessionID            *string                      `json:"session_id"`
	FeedbackType         models.FeedbackType          `json:"feedback_type" binding:"required"`
	Title                string                       `json:"title" binding:"required,max=200"`
	Content              string                       `json:"content" binding:"required"`
	OriginalText         *string                      `json:"original_text"`
	CorrectedText        *string                      `json:"corrected_text"`
	Explanation          *string                      `json:"explanation"`
	GrammarScore         *float64                     `json:"grammar_score" binding:"omitempty,gte=0,lte=100"`
	VocabularyScore      *float64                     `json:"vocabulary_score" binding:"omitempty,gte=0,lte=100"`
	FluencyScore         *float64                     `json:"fluency_score" binding:"omitempty,gte=0,lte=100"`
	OverallScore         *float64                     `json:"overall_score" binding:"omitempty,gte=0,lte=100"`
	RecommendedPractice  []string                     `json:"recommended_practice"`
	DifficultyAdjustment *models.DifficultyAdjustment `json:"difficulty_adjustment"`
}

func (h *FeedbackHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req CreateFeedbackRequest
	if !bindJSON(c, "FeedbackHandler.Create", &req) {
		return
	}

	f, err := h.svc.Create(c.Request.Context(), userID, services.CreateFeedbackInput{
		SessionID:            req.SessionID,
		FeedbackType:         req.FeedbackType,
		Title:                req.Title,
		Content:              req.Content,
		OriginalText:         req.OriginalText,
		CorrectedText:        req.CorrectedText,
		Explanation:          req.Explanation,
		GrammarScore:         req.GrammarScore,
		VocabularyScore:      req.VocabularyScore,
		FluencyScore:         req.FluencyScore,
		OverallScore:         req.OverallScore,
		RecommendedPractice:  req.RecommendedPractice,
		DifficultyAdjustment: req.DifficultyAdjustment,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (h *FeedbackHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "FeedbackHandler.List", "limit", 0)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "FeedbackHandler.List", "offset", 0)
	if !ok {
		return
	}

	rows, err := h.svc.List(c.Request.Context(), userID, c.Query("session_id"), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *FeedbackHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	f, err := h.svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *FeedbackHandler) Progress(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	days, ok := queryInt(c, "FeedbackHandler.Progress", "days", 0)
	if !ok {
		return
	}

	p, err := h.svc.Progress(c.Request.Context(), userID, days)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
