package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/convopilot/internal/models"
	"github.com/yoockh/convopilot/internal/utils"
	"gorm.io/datatypes"
)

type userFixture struct {
	svc       *userService
	users     *MockUserRepository
	userLangs *MockUserLanguageRepository
	languages *MockLanguageRepository
	tx        *inlineTx
}

func newUserFixture() *userFixture {
	log, _ := test.NewNullLogger()
	f := &userFixture{
		users:     new(MockUserRepository),
		userLangs: new(MockUserLanguageRepository),
		languages: new(MockLanguageRepository),
		tx:        &inlineTx{},
	}
	svc := NewUserService(f.users, f.userLangs, f.languages, f.tx, log).(*userService)
	svc.now = func() time.Time { return fixedNow }
	f.svc = svc
	return f
}

var (
	langEN = &models.Language{ID: "lang-en", Code: "en", Name: "English", IsActive: true}
	langES = &models.Language{ID: "lang-es", Code: "es", Name: "Spanish", IsActive: true}
	langFR = &models.Language{ID: "lang-fr", Code: "fr", Name: "French", IsActive: true}
)

func validRegistration() RegisterInput {
	return RegisterInput{
		Email:            " Ana@Example.com ",
		Username:         "ana",
		Password:         "correct-horse",
		FirstName:        "Ana",
		LastName:         "Lima",
		NativeLanguage:   "en",
		TargetLanguage:   "es",
		ProficiencyLevel: models.ProficiencyBeginner,
		PreferredTopics:  []string{"travel"},
	}
}

func appErr(t *testing.T, err error) *utils.AppError {
	t.Helper()
	var ae *utils.AppError
	require.True(t, errors.As(err, &ae), "expected AppError, got %v", err)
	return ae
}

func TestUserService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newUserFixture()
		f.users.On("EmailExists", mock.Anything, "ana@example.com").Return(false, nil)
		f.users.On("UsernameExists", mock.Anything, "ana").Return(false, nil)
		f.languages.On("GetByCode", mock.Anything, "en").Return(langEN, nil)
		f.languages.On("GetByCode", mock.Anything, "es").Return(langES, nil)
		f.users.On("Create", mock.Anything, mock.AnythingOfType("*models.User")).Return(nil)
		f.userLangs.On("SetCurrent", mock.Anything, mock.MatchedBy(func(ul *models.UserLanguage) bool {
			return ul.LanguageID == "lang-es" && ul.IsCurrent && ul.ProficiencyLevel == models.ProficiencyBeginner
		})).Return(nil)

		u, err := f.svc.Register(ctx, validRegistration())
		require.NoError(t, err)
		assert.Equal(t, "ana@example.com", u.Email)
		assert.Equal(t, "lang-en", u.NativeLanguageID)
		assert.True(t, u.IsActive)
		assert.False(t, u.IsVerified)
		assert.Equal(t, []string{"travel"}, u.Topics())
		assert.NotEqual(t, "correct-horse", u.PasswordHash)
		assert.True(t, utils.CheckPassword(u.PasswordHash, "correct-horse"))

		cur := u.CurrentLanguage()
		require.NotNil(t, cur)
		assert.Equal(t, "es", cur.Language.Code)
		assert.Equal(t, 1, f.tx.calls)
	})

	t.Run("invalid native language creates nothing", func(t *testing.T) {
		f := newUserFixture()
		f.users.On("EmailExists", mock.Anything, mock.Anything).Return(false, nil)
		f.users.On("UsernameExists", mock.Anything, mock.Anything).Return(false, nil)
		f.languages.On("GetByCode", mock.Anything, "xx").Return(nil, utils.ErrNotFound)

		in := validRegistration()
		in.NativeLanguage = "xx"
		_, err := f.svc.Register(ctx, in)

		ae := appErr(t, err)
		assert.Equal(t, utils.CodeInvalidArgument, ae.Code)
		assert.Equal(t, "invalid native language code: xx", ae.Message)
		f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		f.userLangs.AssertNotCalled(t, "SetCurrent", mock.Anything, mock.Anything)
		assert.Zero(t, f.tx.calls)
	})

	t.Run("invalid target language", func(t *testing.T) {
		f := newUserFixture()
		f.users.On("EmailExists", mock.Anything, mock.Anything).Return(false, nil)
		f.users.On("UsernameExists", mock.Anything, mock.Anything).Return(false, nil)
		f.languages.On("GetByCode", mock.Anything, "en").Return(langEN, nil)
		f.languages.On("GetByCode", mock.Anything, "zz").Return(nil, utils.ErrNotFound)

		in := validRegistration()
		in.TargetLanguage = "zz"
		_, err := f.svc.Register(ctx, in)
		assert.Equal(t, "invalid target language code: zz", appErr(t, err).Message)
	})

	t.Run("duplicate email maps to bad request", func(t *testing.T) {
		f := newUserFixture()
		f.users.On("EmailExists", mock.Anything, "ana@example.com").Return(true, nil)

		_, err := f.svc.Register(ctx, validRegistration())
		assert.Equal(t, 400, utils.HTTPStatus(err))
	})

	t.Run("language row failure surfaces", func(t *testing.T) {
		f := newUserFixture()
		f.users.On("EmailExists", mock.Anything, mock.Anything).Return(false, nil)
		f.users.On("UsernameExists", mock.Anything, mock.Anything).Return(false, nil)
		f.languages.On("GetByCode", mock.Anything, "en").Return(langEN, nil)
		f.languages.On("GetByCode", mock.Anything, "es").Return(langES, nil)
		f.users.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.userLangs.On("SetCurrent", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

		u, err := f.svc.Register(ctx, validRegistration())
		assert.Nil(t, u)
		assert.True(t, utils.IsCode(err, utils.CodeInternal))
	})

	t.Run("short password", func(t *testing.T) {
		f := newUserFixture()
		in := validRegistration()
		in.Password = "short"
		_, err := f.svc.Register(ctx, in)
		assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
	})
}

func TestUserService_Authenticate(t *testing.T) {
	ctx := context.Background()
	hash, err := utils.HashPassword("correct-horse")
	require.NoError(t, err)

	newUser := func(active bool) *models.User {
		return &models.User{ID: "u1", Email: "ana@example.com", PasswordHash: hash, IsActive: active}
	}

	t.Run("success updates last login", func(t *testing.T) {
		f := newUserFixture()
		f.users.On("GetByEmail", mock.Anything, "ana@example.com").Return(newUser(true), nil)
		f.users.On("TouchLastLogin", mock.Anything, "u1", fixedNow).Return(nil)

		u, err := f.svc.Authenticate(ctx, "ANA@example.com", "correct-horse")
		require.NoError(t, err)
		require.NotNil(t, u.LastLogin)
		assert.Equal(t, fixedNow, *u.LastLogin)
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		f := newUserFixture()
		f.users.On("GetByEmail", mock.Anything, "ana@example.com").Return(newUser(true), nil)
		f.users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, utils.ErrNotFound)
		f.users.On("GetByEmail", mock.Anything, "off@example.com").Return(&models.User{ID: "u2", PasswordHash: hash}, nil)

		_, wrongPw := f.svc.Authenticate(ctx, "ana@example.com", "wrong-horse")
		_, unknown := f.svc.Authenticate(ctx, "ghost@example.com", "correct-horse")
		_, inactive := f.svc.Authenticate(ctx, "off@example.com", "correct-horse")

		assert.Equal(t, wrongPw.Error(), unknown.Error())
		assert.Equal(t, wrongPw.Error(), inactive.Error())
		assert.Equal(t, utils.CodeUnauthorized, appErr(t, unknown).Code)
		f.users.AssertNotCalled(t, "TouchLastLogin", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestUserService_UpdateProfile_SwitchesTarget(t *testing.T) {
	f := newUserFixture()
	existing := &models.User{
		ID: "u1",
		Languages: []models.UserLanguage{
			{UserID: "u1", LanguageID: "lang-es", ProficiencyLevel: models.ProficiencyIntermediate, IsCurrent: true},
		},
	}
	f.users.On("GetByID", mock.Anything, "u1").Return(existing, nil)
	f.languages.On("GetByCode", mock.Anything, "fr").Return(langFR, nil)
	f.users.On("Update", mock.Anything, existing).Return(nil)
	f.userLangs.On("SetCurrent", mock.Anything, mock.MatchedBy(func(ul *models.UserLanguage) bool {
		return ul.LanguageID == "lang-fr" && ul.ProficiencyLevel == models.ProficiencyIntermediate
	})).Return(nil)

	fr := "fr"
	goals := "pass DELF B1"
	_, err := f.svc.UpdateProfile(context.Background(), "u1", UpdateUserInput{TargetLanguage: &fr, LearningGoals: &goals})
	require.NoError(t, err)
	assert.Equal(t, "pass DELF B1", existing.LearningGoals)
	assert.Equal(t, fixedNow, existing.UpdatedAt)
	f.userLangs.AssertExpectations(t)
}

func TestUserService_UpdateProfile_LeavesLanguagesAlone(t *testing.T) {
	f := newUserFixture()
	existing := &models.User{ID: "u1"}
	f.users.On("GetByID", mock.Anything, "u1").Return(existing, nil)
	f.users.On("Update", mock.Anything, existing).Return(nil)

	topics := []string{"food", "music"}
	_, err := f.svc.UpdateProfile(context.Background(), "u1", UpdateUserInput{PreferredTopics: &topics})
	require.NoError(t, err)
	assert.Equal(t, topics, existing.Topics())
	f.userLangs.AssertNotCalled(t, "SetCurrent", mock.Anything, mock.Anything)
}

func TestCompletionOf(t *testing.T) {
	u := &models.User{PreferredTopics: datatypes.NewJSONType([]string{"travel"})}
	c := completionOf(u)
	assert.Equal(t, 7, c.CompletedFields)
	assert.Equal(t, 8, c.TotalFields)
	assert.InDelta(t, 87.5, c.CompletionPercentage, 1e-9)
	assert.False(t, c.MissingFields["preferred_topics"])
	assert.True(t, c.MissingFields["learning_goals"])

	u.LearningGoals = "travel to Lisbon"
	assert.InDelta(t, 100.0, completionOf(u).CompletionPercentage, 1e-9)
}

func TestUserService_Peers(t *testing.T) {
	f := newUserFixture()
	f.userLangs.On("Current", mock.Anything, "u1").Return(&models.UserLanguage{LanguageID: "lang-es"}, nil)
	f.users.On("ListByCurrentLanguage", mock.Anything, "lang-es", "u1", maxPeers).Return([]models.User{
		{
			ID:             "u2",
			Username:       "bea",
			NativeLanguage: langFR,
			Languages:      []models.UserLanguage{{LanguageID: "lang-es", IsCurrent: true, ProficiencyLevel: models.ProficiencyAdvanced}},
		},
	}, nil)

	peers, err := f.svc.Peers(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, "bea", peers[0].Username)
	assert.Equal(t, "fr", peers[0].NativeLanguage)
	assert.Equal(t, models.ProficiencyAdvanced, peers[0].ProficiencyLevel)
}

func TestUserService_Availability(t *testing.T) {
	f := newUserFixture()
	f.users.On("EmailExists", mock.Anything, "taken@example.com").Return(true, nil)
	f.users.On("UsernameExists", mock.Anything, "fresh").Return(false, nil)

	ok, err := f.svc.EmailAvailable(context.Background(), "Taken@example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.UsernameAvailable(context.Background(), "fresh")
	require.NoError(t, err)
	assert.True(t, ok)
}
