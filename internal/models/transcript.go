package models

import "time"

// ConversationTurn is one entry of a session transcript.
type ConversationTurn struct {
	Role      string           `json:"role"` // "user" | "assistant" | "system"
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Analysis  *MessageAnalysis `json:"analysis,omitempty"`
}

type DetectedError struct {
	Type    string `json:"type"` // grammar|vocabulary|spelling|...
	Text    string `json:"text"`
	Message string `json:"message"`
	Start   *int   `json:"start,omitempty"`
	End     *int   `json:"end,omitempty"`
}

type Correction struct {
	Original    string `json:"original"`
	Corrected   string `json:"corrected"`
	Explanation string `json:"explanation,omitempty"`
}

// MessageAnalysis is the result of analysing a single user message.
type MessageAnalysis struct {
	DetectedErrors  []DetectedError `json:"detected_errors"`
	Corrections     []Correction    `json:"corrections"`
	ComplexityScore int             `json:"complexity_score"`
	Suggestions     []string        `json:"suggestions,omitempty"`
}

const (
	MinComplexityScore = 1
	MaxComplexityScore = 10
)

func ValidComplexity(score int) bool {
	return score >= MinComplexityScore && score <= MaxComplexityScore
}
