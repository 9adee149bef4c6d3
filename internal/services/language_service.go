package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/convopilot/internal/cache"
	"github.com/yoockh/convopilot/internal/models"
	pgrepo "github.com/yoockh/convopilot/internal/repositories/postgres"
	"github.com/yoockh/convopilot/internal/utils"
)

type LanguageService interface {
	ListActive(ctx context.Context) ([]models.Language, error)
	ByCode(ctx context.Context, code string) (*models.Language, error)
}

type languageService struct {
	languages pgrepo.LanguageRepository
	cache     cache.Cache // optional
	ttl       time.Duration
	log       logrus.FieldLogger
}

func NewLanguageService(languages pgrepo.LanguageRepository, c cache.Cache, ttl time.Duration, log logrus.FieldLogger) LanguageService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &languageService{languages: languages, cache: c, ttl: ttl, log: log}
}

func (s *languageService) ListActive(ctx context.Context) ([]models.Language, error) {
	const op = "LanguageService.ListActive"

	if s.cache != nil {
		var cached []models.Language
		hit, err := s.cache.GetJSON(ctx, cache.KeyActiveLanguages, &cached)
		if err != nil {
			s.log.WithError(err).Warn("language cache read failed")
		} else if hit {
			return cached, nil
		}
	}

	rows, err := s.languages.ListActive(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list languages", err)
	}
	if rows == nil {
		rows = []models.Language{}
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cache.KeyActiveLanguages, rows, s.ttl); err != nil {
			s.log.WithError(err).Warn("language cache write failed")
		}
	}
	return rows, nil
}

func (s *languageService) ByCode(ctx context.Context, code string) (*models.Language, error) {
	const op = "LanguageService.ByCode"

	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "language code is required", nil)
	}

	l, err := s.languages.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "language not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get language", err)
	}
	return l, nil
}
