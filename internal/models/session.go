package models

import (
	"time"

	"gorm.io/datatypes"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionActive, SessionPaused, SessionCompleted, SessionCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition may leave s.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionActive:
		return next == SessionPaused || next == SessionCompleted || next == SessionCancelled
	case SessionPaused:
		return next == SessionActive || next == SessionCompleted || next == SessionCancelled
	default:
		return false
	}
}

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
)

func (d DifficultyLevel) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

type ConversationSession struct {
	ID     string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID string `gorm:"column:user_id;type:uuid;index" json:"user_id"`

	Title            string          `gorm:"column:title;type:varchar(200)" json:"title"`
	Topic            string          `gorm:"column:topic;type:varchar(100)" json:"topic"` // travel, business, casual...
	DifficultyLevel  DifficultyLevel `gorm:"column:difficulty_level;type:varchar(16)" json:"difficulty_level"`
	TargetLanguageID string          `gorm:"column:target_language_id;type:uuid" json:"target_language_id"`
	TargetLanguage   *Language       `gorm:"foreignKey:TargetLanguageID" json:"target_language,omitempty"`

	ConversationContext string                                `gorm:"column:conversation_context;type:text" json:"conversation_context,omitempty"`
	FullConversation    datatypes.JSONType[[]ConversationTurn] `gorm:"column:full_conversation;type:text" json:"-"`

	DurationMinutes  *float64 `gorm:"column:duration_minutes" json:"duration_minutes"`
	MessageCount     int      `gorm:"column:message_count" json:"message_count"`
	UserMessageCount int      `gorm:"column:user_message_count" json:"user_message_count"`

	Status SessionStatus `gorm:"column:status;type:varchar(16);index" json:"status"`

	CreatedAt time.Time  `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
	StartedAt *time.Time `gorm:"column:started_at;type:timestamptz" json:"started_at,omitempty"`
	EndedAt   *time.Time `gorm:"column:ended_at;type:timestamptz" json:"ended_at,omitempty"`
}

func (ConversationSession) TableName() string { return "conversation_sessions" }

// Transcript returns the decoded conversation, never nil.
func (s *ConversationSession) Transcript() []ConversationTurn {
	t := s.FullConversation.Data()
	if t == nil {
		return []ConversationTurn{}
	}
	return t
}

// ApplyTransition moves the session to next at the given instant. It returns
// false and leaves the session untouched when the lifecycle forbids the move.
func (s *ConversationSession) ApplyTransition(next SessionStatus, at time.Time) bool {
	if !s.Status.CanTransitionTo(next) {
		return false
	}
	s.Status = next
	s.UpdatedAt = at

	if next.IsTerminal() {
		ended := at
		s.EndedAt = &ended
	}
	if next == SessionCompleted && s.StartedAt != nil {
		d := at.Sub(*s.StartedAt).Minutes()
		if d < 0 {
			d = 0
		}
		s.DurationMinutes = &d
	}
	return true
}

// SessionEvent is one entry of the append-only lifecycle log.
type SessionEvent struct {
	SessionID string        `bson:"session_id" json:"session_id"`
	UserID    string        `bson:"user_id" json:"user_id"`
	Type      string        `bson:"type" json:"type"` // created|paused|resumed|completed|cancelled
	From      SessionStatus `bson:"from,omitempty" json:"from,omitempty"`
	To        SessionStatus `bson:"to" json:"to"`
	At        time.Time     `bson:"at" json:"at"`
}

const (
	EventCreated   = "created"
	EventPaused    = "paused"
	EventResumed   = "resumed"
	EventCompleted = "completed"
	EventCancelled = "cancelled"
)

// EventType names the event recorded for a transition into s.
func EventType(from, to SessionStatus) string {
	switch to {
	case SessionPaused:
		return EventPaused
	case SessionActive:
		if from == SessionPaused {
			return EventResumed
		}
		return EventCreated
	case SessionCompleted:
		return EventCompleted
	case SessionCancelled:
		return EventCancelled
	}
	return string(to)
}
