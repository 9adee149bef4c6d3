package postgres

import (
	"context"
	"time"

	"github.com/yoockh/convopilot/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type FeedbackFilter struct {
	UserID    string
	SessionID string // optional
	Limit     int
	Offset    int
}

type FeedbackRepository interface {
	Insert(ctx context.Context, f *models.Feedback) error
	GetForUser(ctx context.Context, id, userID string) (*models.Feedback, error)
	List(ctx context.Context, f FeedbackFilter) ([]models.Feedback, error)
	ListSince(ctx context.Context, userID string, since time.Time) ([]models.Feedback, error)
}

type feedbackRepo struct {
	db *gorm.DB
}

func NewFeedbackRepo(db *gorm.DB) FeedbackRepository {
	return &feedbackRepo{db: db}
}

func (r *feedbackRepo) Insert(ctx context.Context, f *models.Feedback) error {
	if f.RecommendedPractice.Data() == nil {
		f.RecommendedPractice = datatypes.NewJSONType([]string{})
	}
	return translate(conn(ctx, r.db).Create(f).Error)
}

func (r *feedbackRepo) GetForUser(ctx context.Context, id, userID string) (*models.Feedback, error) {
	var f models.Feedback
	err := conn(ctx, r.db).Where("id = ? AND user_id = ?", id, userID).Take(&f).Error
	if err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

func (r *feedbackRepo) List(ctx context.Context, f FeedbackFilter) ([]models.Feedback, error) {
	q := conn(ctx, r.db).Where("user_id = ?", f.UserID)
	if f.SessionID != "" {
		q = q.Where("session_id = ?", f.SessionID)
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var rows []models.Feedback
	err := q.Order("created_at DESC").
		Limit(clampLimit(f.Limit, 50, 100)).
		Offset(offset).
		Find(&rows).Error
	return rows, err
}

// ListSince returns feedback in chronological order, oldest first.
func (r *feedbackRepo) ListSince(ctx context.Context, userID string, since time.Time) ([]models.Feedback, error) {
	var rows []models.Feedback
	err := conn(ctx, r.db).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
