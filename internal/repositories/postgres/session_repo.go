package postgres

import (
	"context"
	"time"

	"github.com/yoockh/convopilot/internal/models"
	"github.com/yoockh/convopilot/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionRepository interface {
	Create(ctx context.Context, s *models.ConversationSession) error
	// GetForUser returns ErrNotFound both for a missing row and for a row
	// owned by another user.
	GetForUser(ctx context.Context, id, userID string) (*models.ConversationSession, error)
	// LockForUser is GetForUser with a row lock; call it inside WithinTx.
	LockForUser(ctx context.Context, id, userID string) (*models.ConversationSession, error)
	Save(ctx context.Context, s *models.ConversationSession) error
	UpdateConversation(ctx context.Context, id string, turns []models.ConversationTurn, at time.Time) error
	IncrementMessageCount(ctx context.Context, id string, isUser bool, at time.Time) error
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.ConversationSession, error)
	ListActive(ctx context.Context, userID string) ([]models.ConversationSession, error)
	ListSince(ctx context.Context, userID string, since time.Time) ([]models.ConversationSession, error)
}

type sessionRepo struct {
	db *gorm.DB
}

func NewSessionRepo(db *gorm.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Create(ctx context.Context, s *models.ConversationSession) error {
	return translate(conn(ctx, r.db).Omit("TargetLanguage").Create(s).Error)
}

func (r *sessionRepo) GetForUser(ctx context.Context, id, userID string) (*models.ConversationSession, error) {
	var s models.ConversationSession
	err := conn(ctx, r.db).
		Preload("TargetLanguage").
		Where("id = ? AND user_id = ?", id, userID).
		Take(&s).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *sessionRepo) LockForUser(ctx context.Context, id, userID string) (*models.ConversationSession, error) {
	var s models.ConversationSession
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("TargetLanguage").
		Where("id = ? AND user_id = ?", id, userID).
		Take(&s).Error
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

// Save writes the mutable columns of s. Counters are excluded; they only move
// through IncrementMessageCount.
func (r *sessionRepo) Save(ctx context.Context, s *models.ConversationSession) error {
	res := conn(ctx, r.db).
		Model(&models.ConversationSession{}).
		Where("id = ?", s.ID).
		Updates(map[string]any{
			"title":                s.Title,
			"topic":                s.Topic,
			"difficulty_level":     s.DifficultyLevel,
			"conversation_context": s.ConversationContext,
			"status":               s.Status,
			"duration_minutes":     s.DurationMinutes,
			"ended_at":             s.EndedAt,
			"updated_at":           s.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *sessionRepo) UpdateConversation(ctx context.Context, id string, turns []models.ConversationTurn, at time.Time) error {
	if turns == nil {
		turns = []models.ConversationTurn{}
	}
	res := conn(ctx, r.db).
		Model(&models.ConversationSession{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"full_conversation": datatypes.NewJSONType(turns),
			"updated_at":        at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *sessionRepo) IncrementMessageCount(ctx context.Context, id string, isUser bool, at time.Time) error {
	userInc := 0
	if isUser {
		userInc = 1
	}
	res := conn(ctx, r.db).
		Model(&models.ConversationSession{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"message_count":      gorm.Expr("message_count + 1"),
			"user_message_count": gorm.Expr("user_message_count + ?", userInc),
			"updated_at":         at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *sessionRepo) ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.ConversationSession, error) {
	if offset < 0 {
		offset = 0
	}
	var rows []models.ConversationSession
	err := conn(ctx, r.db).
		Preload("TargetLanguage").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(clampLimit(limit, 50, 100)).
		Offset(offset).
		Find(&rows).Error
	return rows, err
}

func (r *sessionRepo) ListActive(ctx context.Context, userID string) ([]models.ConversationSession, error) {
	var rows []models.ConversationSession
	err := conn(ctx, r.db).
		Preload("TargetLanguage").
		Where("user_id = ? AND status = ?", userID, models.SessionActive).
		Order("updated_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *sessionRepo) ListSince(ctx context.Context, userID string, since time.Time) ([]models.ConversationSession, error) {
	var rows []models.ConversationSession
	err := conn(ctx, r.db).
		Select("id", "user_id", "topic", "difficulty_level", "status", "duration_minutes",
			"message_count", "user_message_count", "created_at").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
