package postgres

import (
	"context"
	"time"

	"github.com/yoockh/convopilot/internal/models"
	"github.com/yoockh/convopilot/internal/utils"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	Update(ctx context.Context, u *models.User) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	Deactivate(ctx context.Context, id string, at time.Time) error
	ListByCurrentLanguage(ctx context.Context, languageID, excludeUserID string, limit int) ([]models.User, error)
}

type userRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, u *models.User) error {
	return translate(conn(ctx, r.db).Omit("NativeLanguage", "Languages").Create(u).Error)
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.take(ctx, "users.id = ?", id)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.take(ctx, "users.email = ?", email)
}

func (r *userRepo) take(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	err := conn(ctx, r.db).
		Preload("NativeLanguage").
		Preload("Languages.Language").
		Where(query, arg).
		Take(&u).Error
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *userRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email = ?", email)
}

func (r *userRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username = ?", username)
}

func (r *userRepo) exists(ctx context.Context, query string, arg any) (bool, error) {
	var count int64
	err := conn(ctx, r.db).
		Model(&models.User{}).
		Where(query, arg).
		Count(&count).Error
	return count > 0, err
}

// Update writes the editable profile columns.
func (r *userRepo) Update(ctx context.Context, u *models.User) error {
	res := conn(ctx, r.db).
		Model(&models.User{}).
		Where("id = ?", u.ID).
		Updates(map[string]any{
			"first_name":         u.FirstName,
			"last_name":          u.LastName,
			"native_language_id": u.NativeLanguageID,
			"preferred_topics":   u.PreferredTopics,
			"learning_goals":     u.LearningGoals,
			"updated_at":         u.UpdatedAt,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *userRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return conn(ctx, r.db).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("last_login", at).Error
}

func (r *userRepo) Deactivate(ctx context.Context, id string, at time.Time) error {
	res := conn(ctx, r.db).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_active": false, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *userRepo) ListByCurrentLanguage(ctx context.Context, languageID, excludeUserID string, limit int) ([]models.User, error) {
	var rows []models.User
	err := conn(ctx, r.db).
		Preload("NativeLanguage").
		Preload("Languages", "is_current = ?", true).
		Joins("JOIN user_languages ul ON ul.user_id = users.id AND ul.is_current = ?", true).
		Where("ul.language_id = ? AND users.id <> ? AND users.is_active = ?", languageID, excludeUserID, true).
		Order("users.created_at DESC").
		Limit(clampLimit(limit, 20, 20)).
		Find(&rows).Error
	return rows, err
}
