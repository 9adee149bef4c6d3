package models

import (
	"time"

	"gorm.io/datatypes"
)

type FeedbackType string

const (
	FeedbackSessionSummary       FeedbackType = "session_summary"
	FeedbackGrammarCorrection    FeedbackType = "grammar_correction"
	FeedbackVocabularySuggestion FeedbackType = "vocabulary_suggestion"
	FeedbackPronunciationTip     FeedbackType = "pronunciation_tip"
	FeedbackFluencyAssessment    FeedbackType = "fluency_assessment"
)

func (t FeedbackType) Valid() bool {
	switch t {
	case FeedbackSessionSummary, FeedbackGrammarCorrection, FeedbackVocabularySuggestion,
		FeedbackPronunciationTip, FeedbackFluencyAssessment:
		return true
	}
	return false
}

type DifficultyAdjustment string

const (
	AdjustIncrease DifficultyAdjustment = "increase"
	AdjustDecrease DifficultyAdjustment = "decrease"
	AdjustMaintain DifficultyAdjustment = "maintain"
)

func (a DifficultyAdjustment) Valid() bool {
	return a == AdjustIncrease || a == AdjustDecrease || a == AdjustMaintain
}

type Feedback struct {
	ID        string  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    string  `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	SessionID *string `gorm:"column:session_id;type:uuid;index" json:"session_id,omitempty"`

	FeedbackType FeedbackType `gorm:"column:feedback_type;type:varchar(32)" json:"feedback_type"`
	Title        string       `gorm:"column:title;type:varchar(200)" json:"title"`
	Content      string       `gorm:"column:content;type:text" json:"content"`

	OriginalText  *string `gorm:"column:original_text;type:text" json:"original_text,omitempty"`
	CorrectedText *string `gorm:"column:corrected_text;type:text" json:"corrected_text,omitempty"`
	Explanation   *string `gorm:"column:explanation;type:text" json:"explanation,omitempty"`

	// 0-100
	GrammarScore    *float64 `gorm:"column:grammar_score" json:"grammar_score,omitempty"`
	VocabularyScore *float64 `gorm:"column:vocabulary_score" json:"vocabulary_score,omitempty"`
	FluencyScore    *float64 `gorm:"column:fluency_score" json:"fluency_score,omitempty"`
	OverallScore    *float64 `gorm:"column:overall_score" json:"overall_score,omitempty"`

	RecommendedPractice  datatypes.JSONType[[]string] `gorm:"column:recommended_practice;type:text" json:"recommended_practice"`
	DifficultyAdjustment *DifficultyAdjustment        `gorm:"column:difficulty_adjustment;type:varchar(20)" json:"difficulty_adjustment,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (Feedback) TableName() string { return "feedback" }

func ValidScore(v *float64) bool {
	return v == nil || (*v >= 0 && *v <= 100)
}
