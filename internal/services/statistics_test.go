package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yoockh/convopilot/internal/models"
)

func TestAggregateSessions(t *testing.T) {
	t.Run("average divides by completed count", func(t *testing.T) {
		sessions := []models.ConversationSession{
			{Topic: "travel", Status: models.SessionCompleted, DurationMinutes: ptr(10.0), MessageCount: 6, DifficultyLevel: models.DifficultyEasy},
			{Topic: "travel", Status: models.SessionActive, DurationMinutes: ptr(0.0), MessageCount: 2, DifficultyLevel: models.DifficultyEasy},
			{Topic: "business", Status: models.SessionCompleted, DurationMinutes: ptr(20.0), MessageCount: 10, DifficultyLevel: models.DifficultyHard},
		}

		st := AggregateSessions(sessions, 30)
		assert.Equal(t, 30, st.PeriodDays)
		assert.Equal(t, 3, st.TotalSessions)
		assert.Equal(t, 2, st.CompletedSessions)
		assert.Equal(t, 18, st.TotalMessages)
		assert.InDelta(t, 30.0, st.TotalDurationMinutes, 1e-9)
		assert.InDelta(t, 15.0, st.AverageSessionDuration, 1e-9)
		assert.Equal(t, map[string]int{"travel": 2, "business": 1}, st.TopicDistribution)
		assert.Equal(t, map[string]int{"completed": 2, "active": 1}, st.StatusBreakdown)
		assert.Equal(t, map[string]int{"easy": 2, "hard": 1}, st.DifficultyDistribution)
	})

	t.Run("null durations count as zero", func(t *testing.T) {
		sessions := []models.ConversationSession{
			{Topic: "casual", Status: models.SessionCancelled},
			{Topic: "casual", Status: models.SessionCompleted, DurationMinutes: ptr(8.0)},
		}
		st := AggregateSessions(sessions, 7)
		assert.InDelta(t, 8.0, st.TotalDurationMinutes, 1e-9)
		assert.InDelta(t, 8.0, st.AverageSessionDuration, 1e-9)
	})

	t.Run("no completed sessions", func(t *testing.T) {
		sessions := []models.ConversationSession{
			{Topic: "travel", Status: models.SessionPaused, DurationMinutes: ptr(5.0)},
		}
		st := AggregateSessions(sessions, 30)
		assert.Equal(t, 0, st.CompletedSessions)
		assert.InDelta(t, 5.0, st.AverageSessionDuration, 1e-9)
	})

	t.Run("empty", func(t *testing.T) {
		st := AggregateSessions(nil, 30)
		assert.Equal(t, 0, st.TotalSessions)
		assert.Zero(t, st.AverageSessionDuration)
		assert.NotNil(t, st.TopicDistribution)
		assert.Empty(t, st.TopicDistribution)
	})
}
