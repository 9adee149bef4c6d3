package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"
)

type MessageType string

const (
	MessageUser      MessageType = "user"
	MessageAssistant MessageType = "assistant"
	MessageSystem    MessageType = "system"
)

func (t MessageType) Valid() bool {
	return t == MessageUser || t == MessageAssistant || t == MessageSystem
}

type Message struct {
	ID          string      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SessionID   string      `gorm:"column:session_id;type:uuid;index" json:"session_id"`
	Content     string      `gorm:"column:content;type:text" json:"content"`
	MessageType MessageType `gorm:"column:message_type;type:varchar(16)" json:"message_type"`

	// analysis, back-filled once (AnalyzedAt guards it)
	DetectedErrors  datatypes.JSONType[[]DetectedError] `gorm:"column:detected_errors;type:text" json:"detected_errors"`
	Corrections     datatypes.JSONType[[]Correction]    `gorm:"column:corrections;type:text" json:"corrections"`
	ComplexityScore *int                                `gorm:"column:complexity_score" json:"complexity_score,omitempty"`
	AnalyzedAt      *time.Time                          `gorm:"column:analyzed_at;type:timestamptz" json:"analyzed_at,omitempty"`

	WordCount      int     `gorm:"column:word_count" json:"word_count"`
	CharacterCount int     `gorm:"column:character_count" json:"character_count"`
	AudioPath      *string `gorm:"column:audio_path;type:text" json:"audio_path,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (Message) TableName() string { return "messages" }

// Measure fills word and character counts from Content.
func (m *Message) Measure() {
	m.WordCount = len(strings.Fields(m.Content))
	m.CharacterCount = utf8.RuneCountInString(m.Content)
}

func (m *Message) Analyzed() bool { return m.AnalyzedAt != nil }

// Analysis returns the recorded analysis, or nil when none has been recorded.
func (m *Message) Analysis() *MessageAnalysis {
	if !m.Analyzed() {
		return nil
	}
	a := &MessageAnalysis{
		DetectedErrors: m.DetectedErrors.Data(),
		Corrections:    m.Corrections.Data(),
	}
	if m.ComplexityScore != nil {
		a.ComplexityScore = *m.ComplexityScore
	}
	return a
}
