package services

import (
	"context"
	"time"

	"github.com/yoockh/convopilot/internal/models"
	"github.com/yoockh/convopilot/internal/utils"
)

const (
	DefaultStatsDays = 30
	MaxStatsDays     = 365
)

// SessionStatistics summarises a user's sessions created within a window.
type SessionStatistics struct {
	PeriodDays             int            `json:"period_days"`
	TotalSessions          int            `json:"total_sessions"`
	CompletedSessions      int            `json:"completed_sessions"`
	TotalMessages          int            `json:"total_messages"`
	TotalDurationMinutes   float64        `json:"total_duration_minutes"`
	AverageSessionDuration float64        `json:"average_session_duration"`
	TopicDistribution      map[string]int `json:"topic_distribution"`
	StatusBreakdown        map[string]int `json:"status_breakdown"`
	DifficultyDistribution map[string]int `json:"difficulty_distribution"`
}

// AggregateSessions folds sessions into statistics. The average divides the
// summed duration of every session by the completed count (at least 1).
func AggregateSessions(sessions []models.ConversationSession, days int) SessionStatistics {
	st := SessionStatistics{
		PeriodDays:             days,
		TotalSessions:          len(sessions),
		TopicDistribution:      map[string]int{},
		StatusBreakdown:        map[string]int{},
		DifficultyDistribution: map[string]int{},
	}

	for i := range sessions {
		cs := &sessions[i]
		if cs.Status == models.SessionCompleted {
			st.CompletedSessions++
		}
		st.TotalMessages += cs.MessageCount
		if cs.DurationMinutes != nil {
			st.TotalDurationMinutes += *cs.DurationMinutes
		}
		st.TopicDistribution[cs.Topic]++
		st.StatusBreakdown[string(cs.Status)]++
		if cs.DifficultyLevel != "" {
			st.DifficultyDistribution[string(cs.DifficultyLevel)]++
		}
	}

	st.AverageSessionDuration = st.TotalDurationMinutes / float64(max(st.CompletedSessions, 1))
	return st
}

func (s *sessionService) Statistics(ctx context.Context, userID string, days int) (*SessionStatistics, error) {
	const op = "SessionService.Statistics"

	switch {
	case days == 0:
		days = DefaultStatsDays
	case days < 0:
		return nil, utils.E(utils.CodeInvalidArgument, op, "days must be positive", nil)
	case days > MaxStatsDays:
		days = MaxStatsDays
	}

	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	rows, err := s.sessions.ListSince(ctx, userID, since)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load sessions", err)
	}

	st := AggregateSessions(rows, days)
	return &st, nil
}
