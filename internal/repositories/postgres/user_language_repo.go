package postgres

import (
	"context"
	"time"

	"github.com/yoockh/convopilot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserLanguageRepository interface {
	// SetCurrent makes (userID, languageID) the user's only current language,
	// creating the row when needed.
	SetCurrent(ctx context.Context, ul *models.UserLanguage) error
	Current(ctx context.Context, userID string) (*models.UserLanguage, error)
	ListByUser(ctx context.Context, userID string) ([]models.UserLanguage, error)
	TouchPracticed(ctx context.Context, userID, languageID string, at time.Time) error
}

type userLanguageRepo struct {
	db *gorm.DB
}

func NewUserLanguageRepo(db *gorm.DB) UserLanguageRepository {
	return &userLanguageRepo{db: db}
}

// SetCurrent must run inside a transaction for the clear-then-set pair to be
// atomic; the partial unique index rejects a second current row regardless.
func (r *userLanguageRepo) SetCurrent(ctx context.Context, ul *models.UserLanguage) error {
	db := conn(ctx, r.db)

	if err := db.Model(&models.UserLanguage{}).
		Where("user_id = ? AND language_id <> ? AND is_current = ?", ul.UserID, ul.LanguageID, true).
		Update("is_current", false).Error; err != nil {
		return err
	}

	ul.IsCurrent = true
	err := db.Omit("Language").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "language_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"proficiency_level", "is_current"}),
		}).
		Create(ul).Error
	return translate(err)
}

func (r *userLanguageRepo) Current(ctx context.Context, userID string) (*models.UserLanguage, error) {
	var ul models.UserLanguage
	err := conn(ctx, r.db).
		Preload("Language").
		Where("user_id = ? AND is_current = ?", userID, true).
		Take(&ul).Error
	if err != nil {
		return nil, translate(err)
	}
	return &ul, nil
}

func (r *userLanguageRepo) ListByUser(ctx context.Context, userID string) ([]models.UserLanguage, error) {
	var rows []models.UserLanguage
	err := conn(ctx, r.db).
		Preload("Language").
		Where("user_id = ?", userID).
		Order("is_current DESC, started_learning_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *userLanguageRepo) TouchPracticed(ctx context.Context, userID, languageID string, at time.Time) error {
	return conn(ctx, r.db).
		Model(&models.UserLanguage{}).
		Where("user_id = ? AND language_id = ?", userID, languageID).
		Update("last_practiced_at", at).Error
}
