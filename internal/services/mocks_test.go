package services

import (
	"context"
	"io"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/yoockh/convopilot/internal/models"
	"github.com/yoockh/convopilot/internal/providers/llm"
	"github.com/yoockh/convopilot/internal/realtime"
	pgrepo "github.com/yoockh/convopilot/internal/repositories/postgres"
)

// inlineTx runs fn with the caller's context and reports its error, like a
// transaction that rolls back on failure.
type inlineTx struct {
	calls int
}

func (t *inlineTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

// MockLanguageRepository mocks pgrepo.LanguageRepository
type MockLanguageRepository struct {
	mock.Mock
}

func (m *MockLanguageRepository) ListActive(ctx context.Context) ([]models.Language, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Language), args.Error(1)
}

func (m *MockLanguageRepository) GetByCode(ctx context.Context, code string) (*models.Language, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Language), args.Error(1)
}

func (m *MockLanguageRepository) GetByID(ctx context.Context, id string) (*models.Language, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Language), args.Error(1)
}

// MockUserRepository mocks pgrepo.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *MockUserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockUserRepository) Deactivate(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockUserRepository) ListByCurrentLanguage(ctx context.Context, languageID, excludeUserID string, limit int) ([]models.User, error) {
	args := m.Called(ctx, languageID, excludeUserID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

// MockUserLanguageRepository mocks pgrepo.UserLanguageRepository
type MockUserLanguageRepository struct {
	mock.Mock
}

func (m *MockUserLanguageRepository) SetCurrent(ctx context.Context, ul *models.UserLanguage) error {
	return m.Called(ctx, ul).Error(0)
}

func (m *MockUserLanguageRepository) Current(ctx context.Context, userID string) (*models.UserLanguage, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserLanguage), args.Error(1)
}

func (m *MockUserLanguageRepository) ListByUser(ctx context.Context, userID string) ([]models.UserLanguage, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UserLanguage), args.Error(1)
}

func (m *MockUserLanguageRepository) TouchPracticed(ctx context.Context, userID, languageID string, at time.Time) error {
	return m.Called(ctx, userID, languageID, at).Error(0)
}

// MockSessionRepository mocks pgrepo.SessionRepository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, s *models.ConversationSession) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockSessionRepository) GetForUser(ctx context.Context, id, userID string) (*models.ConversationSession, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConversationSession), args.Error(1)
}

func (m *MockSessionRepository) LockForUser(ctx context.Context, id, userID string) (*models.ConversationSession, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConversationSession), args.Error(1)
}

func (m *MockSessionRepository) Save(ctx context.Context, s *models.ConversationSession) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockSessionRepository) UpdateConversation(ctx context.Context, id string, turns []models.ConversationTurn, at time.Time) error {
	return m.Called(ctx, id, turns, at).Error(0)
}

func (m *MockSessionRepository) IncrementMessageCount(ctx context.Context, id string, isUser bool, at time.Time) error {
	return m.Called(ctx, id, isUser, at).Error(0)
}

func (m *MockSessionRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.ConversationSession, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConversationSession), args.Error(1)
}

func (m *MockSessionRepository) ListActive(ctx context.Context, userID string) ([]models.ConversationSession, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConversationSession), args.Error(1)
}

func (m *MockSessionRepository) ListSince(ctx context.Context, userID string, since time.Time) ([]models.ConversationSession, error) {
	args := m.Called(ctx, userID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConversationSession), args.Error(1)
}

// MockMessageRepository mocks pgrepo.MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Insert(ctx context.Context, msg *models.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MockMessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, sessionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockMessageRepository) RecordAnalysis(ctx context.Context, id string, a models.MessageAnalysis, at time.Time) error {
	return m.Called(ctx, id, a, at).Error(0)
}

// MockFeedbackRepository mocks pgrepo.FeedbackRepository
type MockFeedbackRepository struct {
	mock.Mock
}

func (m *MockFeedbackRepository) Insert(ctx context.Context, f *models.Feedback) error {
	return m.Called(ctx, f).Error(0)
}

func (m *MockFeedbackRepository) GetForUser(ctx context.Context, id, userID string) (*models.Feedback, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Feedback), args.Error(1)
}

func (m *MockFeedbackRepository) List(ctx context.Context, f pgrepo.FeedbackFilter) ([]models.Feedback, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Feedback), args.Error(1)
}

func (m *MockFeedbackRepository) ListSince(ctx context.Context, userID string, since time.Time) ([]models.Feedback, error) {
	args := m.Called(ctx, userID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Feedback), args.Error(1)
}

// MockEventLog mocks SessionEventLog
type MockEventLog struct {
	mock.Mock
}

func (m *MockEventLog) Record(ctx context.Context, e models.SessionEvent) error {
	return m.Called(ctx, e).Error(0)
}

func (m *MockEventLog) ListBySession(ctx context.Context, sessionID, userID string, limit int64) ([]models.SessionEvent, error) {
	args := m.Called(ctx, sessionID, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SessionEvent), args.Error(1)
}

// MockPublisher mocks realtime.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, sessionID string, f realtime.Frame) error {
	return m.Called(ctx, sessionID, f).Error(0)
}

// MockCache mocks cache.Cache
type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	args := m.Called(ctx, key, dst)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	return m.Called(ctx, key, val, ttl).Error(0)
}

func (m *MockCache) Del(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

// MockAnalyzer mocks llm.Analyzer
type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Analyze(ctx context.Context, req llm.AnalysisRequest) (*models.MessageAnalysis, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MessageAnalysis), args.Error(1)
}

// MockSTT mocks stt.Provider
type MockSTT struct {
	mock.Mock
}

func (m *MockSTT) Transcribe(ctx context.Context, audio []byte, contentType, language string) (string, float64, error) {
	args := m.Called(ctx, audio, contentType, language)
	return args.String(0), args.Get(1).(float64), args.Error(2)
}

func (m *MockSTT) Close() error { return nil }

// MockAnalysisQueue mocks AnalysisQueue
type MockAnalysisQueue struct {
	mock.Mock
}

func (m *MockAnalysisQueue) Enqueue(ctx context.Context, userID, messageID string) error {
	args := m.Called(ctx, userID, messageID)
	return args.Error(0)
}

type MockUploader struct{ mock.Mock }

func (m *MockUploader) Upload(ctx context.Context, objectName, contentType string, r io.Reader) (string, error) {
	args := m.Called(ctx, objectName, contentType, r)
	return args.String(0), args.Error(1)
}

func (m *MockUploader) Delete(ctx context.Context, objectName string) error {
	return m.Called(ctx, objectName).Error(0)
}
