package models

import "time"

type Language struct {
	ID         string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Code       string    `gorm:"column:code;type:varchar(10);uniqueIndex" json:"code"` // ISO 639-1
	Name       string    `gorm:"column:name;type:varchar(100)" json:"name"`
	NativeName string    `gorm:"column:native_name;type:varchar(100)" json:"native_name"`
	IsActive   bool      `gorm:"column:is_active" json:"is_active"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Language) TableName() string { return "languages" }

type ProficiencyLevel string

const (
	ProficiencyBeginner          ProficiencyLevel = "beginner"
	ProficiencyElementary        ProficiencyLevel = "elementary"
	ProficiencyIntermediate      ProficiencyLevel = "intermediate"
	ProficiencyUpperIntermediate ProficiencyLevel = "upper_intermediate"
	ProficiencyAdvanced          ProficiencyLevel = "advanced"
	ProficiencyProficient        ProficiencyLevel = "proficient"
)

func (p ProficiencyLevel) Valid() bool {
	switch p {
	case ProficiencyBeginner, ProficiencyElementary, ProficiencyIntermediate,
		ProficiencyUpperIntermediate, ProficiencyAdvanced, ProficiencyProficient:
		return true
	}
	return false
}

// UserLanguage links a user to a language they are learning. At most one row
// per user has IsCurrent set.
type UserLanguage struct {
	ID               string           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID           string           `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	LanguageID       string           `gorm:"column:language_id;type:uuid" json:"language_id"`
	ProficiencyLevel ProficiencyLevel `gorm:"column:proficiency_level;type:varchar(32)" json:"proficiency_level"`
	IsCurrent        bool             `gorm:"column:is_current" json:"is_current"`

	StartedLearningAt time.Time  `gorm:"column:started_learning_at;type:timestamptz" json:"started_learning_at"`
	LastPracticedAt   *time.Time `gorm:"column:last_practiced_at;type:timestamptz" json:"last_practiced_at,omitempty"`

	Language *Language `gorm:"foreignKey:LanguageID" json:"language,omitempty"`
}

func (UserLanguage) TableName() string { return "user_languages" }
