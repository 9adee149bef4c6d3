package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestTranscript_RoundTrip(t *testing.T) {
	ts := time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC)
	turns := []ConversationTurn{
		{Role: "system", Content: "You are a friendly barista in Madrid.", Timestamp: ts},
		{Role: "user", Content: "Hola, quiero un café con leche.", Timestamp: ts.Add(time.Second),
			Analysis: &MessageAnalysis{ComplexityScore: 3, DetectedErrors: []DetectedError{}, Corrections: []Correction{}}},
		{Role: "assistant", Content: "¡Claro! ¿Algo más?", Timestamp: ts.Add(2 * time.Second)},
	}

	raw, err := datatypes.NewJSONType(turns).Value()
	require.NoError(t, err)

	var back datatypes.JSONType[[]ConversationTurn]
	require.NoError(t, back.Scan(raw))

	assert.Equal(t, turns, back.Data())
}

func TestTranscript_EmptyWhenUnset(t *testing.T) {
	s := &ConversationSession{}
	assert.NotNil(t, s.Transcript())
	assert.Len(t, s.Transcript(), 0)
}

func TestMessage_Measure(t *testing.T) {
	m := &Message{Content: "  Ich möchte   einen Kaffee "}
	m.Measure()

	assert.Equal(t, 4, m.WordCount)
	assert.Equal(t, 28, m.CharacterCount)
}

func TestMessage_AnalysisNilUntilRecorded(t *testing.T) {
	m := &Message{}
	assert.Nil(t, m.Analysis())

	now := time.Now()
	score := 7
	m.AnalyzedAt = &now
	m.ComplexityScore = &score
	m.Corrections = datatypes.NewJSONType([]Correction{{Original: "I goed", Corrected: "I went"}})

	a := m.Analysis()
	require.NotNil(t, a)
	assert.Equal(t, 7, a.ComplexityScore)
	assert.Len(t, a.Corrections, 1)
}

func TestValidComplexity(t *testing.T) {
	assert.False(t, ValidComplexity(0))
	assert.True(t, ValidComplexity(1))
	assert.True(t, ValidComplexity(10))
	assert.False(t, ValidComplexity(11))
}
