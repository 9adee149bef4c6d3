package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/convopilot/internal/models"
	pgrepo "github.com/yoockh/convopilot/internal/repositories/postgres"
	"github.com/yoockh/convopilot/internal/utils"
	"gorm.io/datatypes"
)

const maxPeers = 20

type RegisterInput struct {
	Email            string
	Username         string
	Password         string
	FirstName        string
	LastName         string
	NativeLanguage   string // ISO 639-1 code
	TargetLanguage   string // ISO 639-1 code
	ProficiencyLevel models.ProficiencyLevel
	PreferredTopics  []string
	LearningGoals    string
}

// UpdateUserInput is a partial update; nil fields are left unchanged.
type UpdateUserInput struct {
	FirstName        *string
	LastName         *string
	NativeLanguage   *string
	TargetLanguage   *string
	ProficiencyLevel *models.ProficiencyLevel
	PreferredTopics  *[]string
	LearningGoals    *string
}

type ProfileCompletion struct {
	CompletionPercentage float64         `json:"completion_percentage"`
	CompletedFields      int             `json:"completed_fields"`
	TotalFields          int             `json:"total_fields"`
	MissingFields        map[string]bool `json:"missing_fields"`
}

// Peer is the public view of another learner.
type Peer struct {
	ID               string                  `json:"id"`
	Username         string                  `json:"username"`
	ProficiencyLevel models.ProficiencyLevel `json:"proficiency_level"`
	NativeLanguage   string                  `json:"native_language"`
	CreatedAt        time.Time               `json:"created_at"`
}

type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	Get(ctx context.Context, userID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, in UpdateUserInput) (*models.User, error)
	Deactivate(ctx context.Context, userID string) error
	EmailAvailable(ctx context.Context, email string) (bool, error)
	UsernameAvailable(ctx context.Context, username string) (bool, error)
	ProfileCompletion(ctx context.Context, userID string) (*ProfileCompletion, error)
	Languages(ctx context.Context, userID string) ([]models.UserLanguage, error)
	Peers(ctx context.Context, userID string) ([]Peer, error)
}

type userService struct {
	users     pgrepo.UserRepository
	userLangs pgrepo.UserLanguageRepository
	languages pgrepo.LanguageRepository
	tx        pgrepo.Transactor
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewUserService(
	users pgrepo.UserRepository,
	userLangs pgrepo.UserLanguageRepository,
	languages pgrepo.LanguageRepository,
	tx pgrepo.Transactor,
	log logrus.FieldLogger,
) UserService {
	return &userService{
		users:     users,
		userLangs: userLangs,
		languages: languages,
		tx:        tx,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *userService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	const op = "UserService.Register"

	in.Email = normalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if in.Email == "" || in.Username == "" || in.Password == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "email, username, and password are required", nil)
	}
	if len(in.Password) < utils.MinPasswordLength {
		return nil, utils.E(utils.CodeInvalidArgument, op, "password must be at least 8 characters", nil)
	}
	if !in.ProficiencyLevel.Valid() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid proficiency level", nil)
	}

	taken, err := s.users.EmailExists(ctx, in.Email)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to check email", err)
	}
	if taken {
		return nil, utils.E(utils.CodeInvalidArgument, op, "email already registered", nil)
	}
	taken, err = s.users.UsernameExists(ctx, in.Username)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to check username", err)
	}
	if taken {
		return nil, utils.E(utils.CodeInvalidArgument, op, "username already taken", nil)
	}

	native, err := s.resolveLanguage(ctx, op, "native", in.NativeLanguage)
	if err != nil {
		return nil, err
	}
	target, err := s.resolveLanguage(ctx, op, "target", in.TargetLanguage)
	if err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return nil, utils.E(utils.CodeInvalidArgument, op, "password is too long", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to hash password", err)
	}

	topics := in.PreferredTopics
	if topics == nil {
		topics = []string{}
	}

	now := s.now()
	u := &models.User{
		ID:               uuid.NewString(),
		Email:            in.Email,
		Username:         in.Username,
		PasswordHash:     hash,
		FirstName:        strings.TrimSpace(in.FirstName),
		LastName:         strings.TrimSpace(in.LastName),
		NativeLanguageID: native.ID,
		PreferredTopics:  datatypes.NewJSONType(topics),
		LearningGoals:    in.LearningGoals,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	ul := &models.UserLanguage{
		ID:                uuid.NewString(),
		UserID:            u.ID,
		LanguageID:        target.ID,
		ProficiencyLevel:  in.ProficiencyLevel,
		IsCurrent:         true,
		StartedLearningAt: now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		return s.userLangs.SetCurrent(ctx, ul)
	})
	if err != nil {
		if errors.Is(err, utils.ErrConflict) {
			// lost a race with a concurrent registration
			return nil, utils.E(utils.CodeInvalidArgument, op, "email or username already registered", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to create user", err)
	}

	u.NativeLanguage = native
	ul.Language = target
	u.Languages = []models.UserLanguage{*ul}

	s.log.WithField("user_id", u.ID).Info("user registered")
	return u, nil
}

func (s *userService) resolveLanguage(ctx context.Context, op, kind, code string) (*models.Language, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	l, err := s.languages.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeInvalidArgument, op, "invalid "+kind+" language code: "+code, err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to resolve language", err)
	}
	return l, nil
}

func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	const op = "UserService.Authenticate"
	const badCredentials = "incorrect email or password"

	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			utils.BurnPasswordCheck(password)
			return nil, utils.E(utils.CodeUnauthorized, op, badCredentials, nil)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load user", err)
	}
	if !utils.CheckPassword(u.PasswordHash, password) || !u.IsActive {
		return nil, utils.E(utils.CodeUnauthorized, op, badCredentials, nil)
	}

	now := s.now()
	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		s.log.WithError(err).WithField("user_id", u.ID).Warn("failed to update last_login")
	} else {
		u.LastLogin = &now
	}
	return u, nil
}

func (s *userService) Get(ctx context.Context, userID string) (*models.User, error) {
	const op = "UserService.Get"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "user not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get user", err)
	}
	return u, nil
}

func (s *userService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "UserService.GetByEmail"

	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "user not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get user", err)
	}
	return u, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID string, in UpdateUserInput) (*models.User, error) {
	const op = "UserService.UpdateProfile"

	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.FirstName != nil {
		u.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		u.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.LearningGoals != nil {
		u.LearningGoals = *in.LearningGoals
	}
	if in.PreferredTopics != nil {
		topics := *in.PreferredTopics
		if topics == nil {
			topics = []string{}
		}
		u.PreferredTopics = datatypes.NewJSONType(topics)
	}
	if in.NativeLanguage != nil {
		native, err := s.resolveLanguage(ctx, op, "native", *in.NativeLanguage)
		if err != nil {
			return nil, err
		}
		u.NativeLanguageID = native.ID
		u.NativeLanguage = native
	}

	// a proficiency change alone applies to the current language
	var switchTo *models.UserLanguage
	if in.TargetLanguage != nil || in.ProficiencyLevel != nil {
		current := u.CurrentLanguage()
		next := &models.UserLanguage{ID: uuid.NewString(), UserID: u.ID, StartedLearningAt: s.now()}
		if current != nil {
			next.LanguageID = current.LanguageID
			next.ProficiencyLevel = current.ProficiencyLevel
		}
		if in.TargetLanguage != nil {
			target, err := s.resolveLanguage(ctx, op, "target", *in.TargetLanguage)
			if err != nil {
				return nil, err
			}
			next.LanguageID = target.ID
		}
		if in.ProficiencyLevel != nil {
			if !in.ProficiencyLevel.Valid() {
				return nil, utils.E(utils.CodeInvalidArgument, op, "invalid proficiency level", nil)
			}
			next.ProficiencyLevel = *in.ProficiencyLevel
		}
		if next.LanguageID == "" {
			return nil, utils.E(utils.CodeInvalidArgument, op, "target language is required", nil)
		}
		if !next.ProficiencyLevel.Valid() {
			next.ProficiencyLevel = models.ProficiencyBeginner
		}
		switchTo = next
	}

	u.UpdatedAt = s.now()
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
		if switchTo != nil {
			return s.userLangs.SetCurrent(ctx, switchTo)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "user not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to update user", err)
	}

	return s.Get(ctx, userID)
}

func (s *userService) Deactivate(ctx context.Context, userID string) error {
	const op = "UserService.Deactivate"

	if err := s.users.Deactivate(ctx, userID, s.now()); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "user not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to deactivate user", err)
	}
	s.log.WithField("user_id", userID).Info("user deactivated")
	return nil
}

func (s *userService) EmailAvailable(ctx context.Context, email string) (bool, error) {
	const op = "UserService.EmailAvailable"

	email = normalizeEmail(email)
	if email == "" {
		return false, utils.E(utils.CodeInvalidArgument, op, "email is required", nil)
	}
	taken, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return false, utils.E(utils.CodeInternal, op, "failed to check email", err)
	}
	return !taken, nil
}

func (s *userService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	const op = "UserService.UsernameAvailable"

	username = strings.TrimSpace(username)
	if username == "" {
		return false, utils.E(utils.CodeInvalidArgument, op, "username is required", nil)
	}
	taken, err := s.users.UsernameExists(ctx, username)
	if err != nil {
		return false, utils.E(utils.CodeInternal, op, "failed to check username", err)
	}
	return !taken, nil
}

// ProfileCompletion scores 6 fields fixed at registration plus the optional
// preferred topics and learning goals.
func (s *userService) ProfileCompletion(ctx context.Context, userID string) (*ProfileCompletion, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return completionOf(u), nil
}

func completionOf(u *models.User) *ProfileCompletion {
	const total = 8
	done := 6

	missingTopics := len(u.Topics()) == 0
	missingGoals := strings.TrimSpace(u.LearningGoals) == ""
	if !missingTopics {
		done++
	}
	if !missingGoals {
		done++
	}

	return &ProfileCompletion{
		CompletionPercentage: float64(done) / total * 100,
		CompletedFields:      done,
		TotalFields:          total,
		MissingFields: map[string]bool{
			"preferred_topics": missingTopics,
			"learning_goals":   missingGoals,
		},
	}
}

func (s *userService) Languages(ctx context.Context, userID string) ([]models.UserLanguage, error) {
	const op = "UserService.Languages"

	rows, err := s.userLangs.ListByUser(ctx, userID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list languages", err)
	}
	if rows == nil {
		rows = []models.UserLanguage{}
	}
	return rows, nil
}

func (s *userService) Peers(ctx context.Context, userID string) ([]Peer, error) {
	const op = "UserService.Peers"

	current, err := s.userLangs.Current(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return []Peer{}, nil
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get current language", err)
	}

	users, err := s.users.ListByCurrentLanguage(ctx, current.LanguageID, userID, maxPeers)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list peers", err)
	}

	out := make([]Peer, 0, len(users))
	for i := range users {
		p := Peer{
			ID:        users[i].ID,
			Username:  users[i].Username,
			CreatedAt: users[i].CreatedAt,
		}
		if cl := users[i].CurrentLanguage(); cl != nil {
			p.ProficiencyLevel = cl.ProficiencyLevel
		}
		if users[i].NativeLanguage != nil {
			p.NativeLanguage = users[i].NativeLanguage.Code
		}
		out = append(out, p)
	}
	return out, nil
}
