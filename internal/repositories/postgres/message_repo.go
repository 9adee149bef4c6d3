package postgres

import (
	"context"
	"time"

	"github.com/yoockh/convopilot/internal/models"
	"github.com/yoockh/convopilot/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MessageRepository interface {
	Insert(ctx context.Context, m *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.Message, error)
	// RecordAnalysis back-fills the analysis columns once. It returns
	// ErrConflict when the message was already analyzed.
	RecordAnalysis(ctx context.Context, id string, a models.MessageAnalysis, at time.Time) error
}

type messageRepo struct {
	db *gorm.DB
}

func NewMessageRepo(db *gorm.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) Insert(ctx context.Context, m *models.Message) error {
	if m.DetectedErrors.Data() == nil {
		m.DetectedErrors = datatypes.NewJSONType([]models.DetectedError{})
	}
	if m.Corrections.Data() == nil {
		m.Corrections = datatypes.NewJSONType([]models.Correction{})
	}
	return translate(conn(ctx, r.db).Create(m).Error)
}

func (r *messageRepo) GetByID(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	if err := conn(ctx, r.db).Where("id = ?", id).Take(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (r *messageRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	var rows []models.Message
	err := conn(ctx, r.db).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Limit(clampLimit(limit, 200, 1000)).
		Find(&rows).Error
	return rows, err
}

func (r *messageRepo) RecordAnalysis(ctx context.Context, id string, a models.MessageAnalysis, at time.Time) error {
	detected := a.DetectedErrors
	if detected == nil {
		detected = []models.DetectedError{}
	}
	corrections := a.Corrections
	if corrections == nil {
		corrections = []models.Correction{}
	}

	res := conn(ctx, r.db).
		Model(&models.Message{}).
		Where("id = ? AND analyzed_at IS NULL", id).
		Updates(map[string]any{
			"detected_errors":  datatypes.NewJSONType(detected),
			"corrections":      datatypes.NewJSONType(corrections),
			"complexity_score": a.ComplexityScore,
			"analyzed_at":      at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// distinguish a missing row from one already analyzed
		var count int64
		if err := conn(ctx, r.db).Model(&models.Message{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return utils.ErrNotFound
		}
		return utils.ErrConflict
	}
	return nil
}
