package handlers

import (
	"time"

	"github.com/yoockh/convopilot/internal/models"
)

// userView is the public shape of the authenticated user.
type userView struct {
	ID               string                  `json:"id"`
	Email            string                  `json:"email"`
	Username         string                  `json:"username"`
	FirstName        string                  `json:"first_name"`
	LastName         string                  `json:"last_name"`
	NativeLanguage   string                  `json:"native_language,omitempty"`
	TargetLanguage   string                  `json:"target_language,omitempty"`
	ProficiencyLevel models.ProficiencyLevel `json:"proficiency_level,omitempty"`
	PreferredTopics  []string                `json:"preferred_topics"`
	LearningGoals    string                  `json:"learning_goals"`
	IsActive         bool                    `json:"is_active"`
	IsVerified       bool                    `json:"is_verified"`
	CreatedAt        time.Time               `json:"created_at"`
	LastLogin        *time.Time              `json:"last_login,omitempty"`
}

func newUserView(u *models.User) userView {
	v := userView{
		ID:              u.ID,
		Email:           u.Email,
		Username:        u.Username,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		PreferredTopics: u.Topics(),
		LearningGoals:   u.LearningGoals,
		IsActive:        u.IsActive,
		IsVerified:      u.IsVerified,
		CreatedAt:       u.CreatedAt,
		LastLogin:       u.LastLogin,
	}
	if u.NativeLanguage != nil {
		v.NativeLanguage = u.NativeLanguage.Code
	}
	if cur := u.CurrentLanguage(); cur != nil {
		v.ProficiencyLevel = cur.ProficiencyLevel
		if cur.Language != nil {
			v.TargetLanguage = cur.Language.Code
		}
	}
	return v
}

// sessionView adds the transcript to a session when a single session is
// returned; list endpoints omit it.
type sessionView struct {
	*models.ConversationSession
	FullConversation []models.ConversationTurn `json:"full_conversation"`
}

func newSessionView(s *models.ConversationSession) sessionView {
	return sessionView{ConversationSession: s, FullConversation: s.Transcript()}
}
