package postgres

import (
	"context"

	"github.com/yoockh/convopilot/internal/models"
	"gorm.io/gorm"
)

type LanguageRepository interface {
	ListActive(ctx context.Context) ([]models.Language, error)
	GetByCode(ctx context.Context, code string) (*models.Language, error)
	GetByID(ctx context.Context, id string) (*models.Language, error)
}

type languageRepo struct {
	db *gorm.DB
}

func NewLanguageRepo(db *gorm.DB) LanguageRepository {
	return &languageRepo{db: db}
}

func (r *languageRepo) ListActive(ctx context.Context) ([]models.Language, error) {
	var rows []models.Language
	err := conn(ctx, r.db).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&rows).Error
	return rows, err
}

func (r *languageRepo) GetByCode(ctx context.Context, code string) (*models.Language, error) {
	var l models.Language
	err := conn(ctx, r.db).Where("code = ?", code).Take(&l).Error
	if err != nil {
		return nil, translate(err)
	}
	return &l, nil
}

func (r *languageRepo) GetByID(ctx context.Context, id string) (*models.Language, error) {
	var l models.Language
	err := conn(ctx, r.db).Where("id = ?", id).Take(&l).Error
	if err != nil {
		return nil, translate(err)
	}
	return &l, nil
}
