package models

import (
	"time"

	"gorm.io/datatypes"
)

type User struct {
	ID           string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Email        string `gorm:"column:email;type:varchar(255);uniqueIndex" json:"email"`
	Username     string `gorm:"column:username;type:varchar(50);uniqueIndex" json:"username"`
	PasswordHash string `gorm:"column:hashed_password;type:varchar(255)" json:"-"`
	FirstName    string `gorm:"column:first_name;type:varchar(100)" json:"first_name"`
	LastName     string `gorm:"column:last_name;type:varchar(100)" json:"last_name"`

	NativeLanguageID string    `gorm:"column:native_language_id;type:uuid" json:"native_language_id"`
	NativeLanguage   *Language `gorm:"foreignKey:NativeLanguageID" json:"native_language,omitempty"`

	// JSON array of topic names, stored as text
	PreferredTopics datatypes.JSONType[[]string] `gorm:"column:preferred_topics;type:text" json:"preferred_topics"`
	LearningGoals   string                       `gorm:"column:learning_goals;type:text" json:"learning_goals"`

	IsActive   bool `gorm:"column:is_active" json:"is_active"`
	IsVerified bool `gorm:"column:is_verified" json:"is_verified"`

	CreatedAt time.Time  `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
	LastLogin *time.Time `gorm:"column:last_login;type:timestamptz" json:"last_login,omitempty"`

	Languages []UserLanguage `gorm:"foreignKey:UserID" json:"languages,omitempty"`
}

func (User) TableName() string { return "users" }

// CurrentLanguage returns the learning relationship flagged as current, if loaded.
func (u *User) CurrentLanguage() *UserLanguage {
	for i := range u.Languages {
		if u.Languages[i].IsCurrent {
			return &u.Languages[i]
		}
	}
	return nil
}

func (u *User) Topics() []string {
	t := u.PreferredTopics.Data()
	if t == nil {
		return []string{}
	}
	return t
}
