package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/convopilot/internal/models"
	pgrepo "github.com/yoockh/convopilot/internal/repositories/postgres"
	"github.com/yoockh/convopilot/internal/utils"
	"gorm.io/datatypes"
)

const maxImprovementAreas = 5

type CreateFeedbackInput struct {
	SessionID            *string
	FeedbackType         models.FeedbackType
	Title                string
	Content              string
	OriginalText         *string
	CorrectedText        *string
	Explanation          *string
	GrammarScore         *float64
	VocabularyScore      *float64
	FluencyScore         *float64
	OverallScore         *float64
	RecommendedPractice  []string
	DifficultyAdjustment *models.DifficultyAdjustment
}

type ScorePoint struct {
	At    time.Time `json:"at"`
	Score float64   `json:"score"`
}

// LearningProgress combines session activity and feedback scores over a
// window.
type LearningProgress struct {
	UserID                 string         `json:"user_id"`
	PeriodStart            time.Time      `json:"period_start"`
	PeriodEnd              time.Time      `json:"period_end"`
	TotalSessions          int            `json:"total_sessions"`
	TotalMessages          int            `json:"total_messages"`
	AverageSessionDuration float64        `json:"average_session_duration"`
	TotalFeedback          int            `json:"total_feedback"`
	AverageGrammar         *float64       `json:"average_grammar_score"`
	AverageVocabulary      *float64       `json:"average_vocabulary_score"`
	AverageFluency         *float64       `json:"average_fluency_score"`
	AverageOverall         *float64       `json:"average_overall_score"`
	GrammarTrend           []ScorePoint   `json:"grammar_trend"`
	VocabularyTrend        []ScorePoint   `json:"vocabulary_trend"`
	FluencyTrend           []ScorePoint   `json:"fluency_trend"`
	FeedbackTypes          map[string]int `json:"feedback_types"`
	ImprovementAreas       []string       `json:"improvement_areas"`
}

type FeedbackService interface {
	Create(ctx context.Context, userID string, in CreateFeedbackInput) (*models.Feedback, error)
	Get(ctx context.Context, userID, feedbackID string) (*models.Feedback, error)
	List(ctx context.Context, userID, sessionID string, limit, offset int) ([]models.Feedback, error)
	Progress(ctx context.Context, userID string, days int) (*LearningProgress, error)
}

type feedbackService struct {
	feedback pgrepo.FeedbackRepository
	sessions pgrepo.SessionRepository
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewFeedbackService(feedback pgrepo.FeedbackRepository, sessions pgrepo.SessionRepository, log logrus.FieldLogger) FeedbackService {
	return &feedbackService{
		feedback: feedback,
		sessions: sessions,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *feedbackService) Create(ctx context.Context, userID string, in CreateFeedbackInput) (*models.Feedback, error) {
	const op = "FeedbackService.Create"

	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" || strings.TrimSpace(in.Content) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "title and content are required", nil)
	}
	if !in.FeedbackType.Valid() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid feedback type", nil)
	}
	for _, sc := range []*float64{in.GrammarScore, in.VocabularyScore, in.FluencyScore, in.OverallScore} {
		if !models.ValidScore(sc) {
			return nil, utils.E(utils.CodeInvalidArgument, op, "scores must be between 0 and 100", nil)
		}
	}
	if in.DifficultyAdjustment != nil && !in.DifficultyAdjustment.Valid() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid difficulty adjustment", nil)
	}

	if in.SessionID != nil && *in.SessionID == "" {
		in.SessionID = nil
	}
	if in.SessionID != nil {
		if _, err := s.sessions.GetForUser(ctx, *in.SessionID, userID); err != nil {
			if errors.Is(err, utils.ErrNotFound) {
				return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
			}
			return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
		}
	}

	practice := in.RecommendedPractice
	if practice == nil {
		practice = []string{}
	}

	f := &models.Feedback{
		ID:                   uuid.NewString(),
		UserID:               userID,
		SessionID:            in.SessionID,
		FeedbackType:         in.FeedbackType,
		Title:                in.Title,
		Content:              in.Content,
		OriginalText:         in.OriginalText,
		CorrectedText:        in.CorrectedText,
		Explanation:          in.Explanation,
		GrammarScore:         in.GrammarScore,
		VocabularyScore:      in.VocabularyScore,
		FluencyScore:         in.FluencyScore,
		OverallScore:         in.OverallScore,
		RecommendedPractice:  datatypes.NewJSONType(practice),
		DifficultyAdjustment: in.DifficultyAdjustment,
		CreatedAt:            s.now(),
	}
	if err := s.feedback.Insert(ctx, f); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create feedback", err)
	}
	return f, nil
}

func (s *feedbackService) Get(ctx context.Context, userID, feedbackID string) (*models.Feedback, error) {
	const op = "FeedbackService.Get"

	f, err := s.feedback.GetForUser(ctx, feedbackID, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "feedback not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get feedback", err)
	}
	return f, nil
}

func (s *feedbackService) List(ctx context.Context, userID, sessionID string, limit, offset int) ([]models.Feedback, error) {
	const op = "FeedbackService.List"

	rows, err := s.feedback.List(ctx, pgrepo.FeedbackFilter{
		UserID:    userID,
		SessionID: sessionID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list feedback", err)
	}
	if rows == nil {
		rows = []models.Feedback{}
	}
	return rows, nil
}

func (s *feedbackService) Progress(ctx context.Context, userID string, days int) (*LearningProgress, error) {
	const op = "FeedbackService.Progress"

	switch {
	case days == 0:
		days = DefaultStatsDays
	case days < 0:
		return nil, utils.E(utils.CodeInvalidArgument, op, "days must be positive", nil)
	case days > MaxStatsDays:
		days = MaxStatsDays
	}

	end := s.now()
	start := end.Add(-time.Duration(days) * 24 * time.Hour)

	sessions, err := s.sessions.ListSince(ctx, userID, start)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load sessions", err)
	}
	rows, err := s.feedback.ListSince(ctx, userID, start)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load feedback", err)
	}

	p := summarizeFeedback(rows)
	st := AggregateSessions(sessions, days)
	p.UserID = userID
	p.PeriodStart = start
	p.PeriodEnd = end
	p.TotalSessions = st.TotalSessions
	p.TotalMessages = st.TotalMessages
	p.AverageSessionDuration = st.AverageSessionDuration
	return p, nil
}

// summarizeFeedback expects rows oldest first.
func summarizeFeedback(rows []models.Feedback) *LearningProgress {
	p := &LearningProgress{
		TotalFeedback:    len(rows),
		GrammarTrend:     []ScorePoint{},
		VocabularyTrend:  []ScorePoint{},
		FluencyTrend:     []ScorePoint{},
		FeedbackTypes:    map[string]int{},
		ImprovementAreas: []string{},
	}

	var overall []float64
	practice := map[string]int{}
	for i := range rows {
		f := &rows[i]
		p.FeedbackTypes[string(f.FeedbackType)]++
		if f.GrammarScore != nil {
			p.GrammarTrend = append(p.GrammarTrend, ScorePoint{At: f.CreatedAt, Score: *f.GrammarScore})
		}
		if f.VocabularyScore != nil {
			p.VocabularyTrend = append(p.VocabularyTrend, ScorePoint{At: f.CreatedAt, Score: *f.VocabularyScore})
		}
		if f.FluencyScore != nil {
			p.FluencyTrend = append(p.FluencyTrend, ScorePoint{At: f.CreatedAt, Score: *f.FluencyScore})
		}
		if f.OverallScore != nil {
			overall = append(overall, *f.OverallScore)
		}
		for _, r := range f.RecommendedPractice.Data() {
			if r = strings.TrimSpace(r); r != "" {
				practice[r]++
			}
		}
	}

	p.AverageGrammar = averageOf(p.GrammarTrend)
	p.AverageVocabulary = averageOf(p.VocabularyTrend)
	p.AverageFluency = averageOf(p.FluencyTrend)
	if len(overall) > 0 {
		var sum float64
		for _, v := range overall {
			sum += v
		}
		avg := sum / float64(len(overall))
		p.AverageOverall = &avg
	}

	for area := range practice {
		p.ImprovementAreas = append(p.ImprovementAreas, area)
	}
	sort.Slice(p.ImprovementAreas, func(i, j int) bool {
		a, b := p.ImprovementAreas[i], p.ImprovementAreas[j]
		if practice[a] != practice[b] {
			return practice[a] > practice[b]
		}
		return a < b
	})
	if len(p.ImprovementAreas) > maxImprovementAreas {
		p.ImprovementAreas = p.ImprovementAreas[:maxImprovementAreas]
	}
	return p
}

func averageOf(points []ScorePoint) *float64 {
	if len(points) == 0 {
		return nil
	}
	var sum float64
	for _, pt := range points {
		sum += pt.Score
	}
	avg := sum / float64(len(points))
	return &avg
}
