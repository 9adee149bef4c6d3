package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/convopilot/internal/models"
	"github.com/yoockh/convopilot/internal/services"
)

const testUserID = "8c1d2b6e-3f0a-4c55-9a43-1e2f3a4b5c6d"

func init() { gin.SetMode(gin.TestMode) }

// newRouter mounts h behind a stub auth step that sets user_id.
func newRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Handle(method, path, func(c *gin.Context) {
		c.Set("user_id", testUserID)
		c.Next()
	}, h)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// Fakes embed the service interface; calling a method a test did not stub
// panics on the nil embedded value.

type fakeUsers struct {
	services.UserService
	register     func(ctx context.Context, in services.RegisterInput) (*models.User, error)
	authenticate func(ctx context.Context, email, password string) (*models.User, error)
	get          func(ctx context.Context, userID string) (*models.User, error)
}

func (f *fakeUsers) Register(ctx context.Context, in services.RegisterInput) (*models.User, error) {
	return f.register(ctx, in)
}

func (f *fakeUsers) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	return f.authenticate(ctx, email, password)
}

func (f *fakeUsers) Get(ctx context.Context, userID string) (*models.User, error) {
	return f.get(ctx, userID)
}

type fakeTokens struct {
	token string
	err   error
}

func (f fakeTokens) GenerateAccessToken(userID, email string) (string, error) { return f.token, f.err }
func (f fakeTokens) AccessTokenTTL() time.Duration                          { return 30 * time.Minute }

type fakeSessions struct {
	services.SessionService
	create     func(ctx context.Context, userID string, in services.CreateSessionInput) (*models.ConversationSession, error)
	pause      func(ctx context.Context, sessionID, userID string) (*models.ConversationSession, error)
	list       func(ctx context.Context, userID string, limit, offset int) ([]models.ConversationSession, error)
	statistics func(ctx context.Context, userID string, days int) (*services.SessionStatistics, error)
}

func (f *fakeSessions) Create(ctx context.Context, userID string, in services.CreateSessionInput) (*models.ConversationSession, error) {
	return f.create(ctx, userID, in)
}

func (f *fakeSessions) Pause(ctx context.Context, sessionID, userID string) (*models.ConversationSession, error) {
	return f.pause(ctx, sessionID, userID)
}

func (f *fakeSessions) ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.ConversationSession, error) {
	return f.list(ctx, userID, limit, offset)
}

func (f *fakeSessions) Statistics(ctx context.Context, userID string, days int) (*services.SessionStatistics, error) {
	return f.statistics(ctx, userID, days)
}

type fakeMessages struct {
	services.MessageService
	analyze func(ctx context.Context, userID, messageID string) (*models.Message, error)
	record  func(ctx context.Context, userID, messageID string, a models.MessageAnalysis) (*models.Message, error)
	voice   func(ctx context.Context, userID, messageID string) (string, error)
}

func (f *fakeMessages) VoiceURL(ctx context.Context, userID, messageID string) (string, error) {
	return f.voice(ctx, userID, messageID)
}

func (f *fakeMessages) Analyze(ctx context.Context, userID, messageID string) (*models.Message, error) {
	return f.analyze(ctx, userID, messageID)
}

func (f *fakeMessages) RecordAnalysis(ctx context.Context, userID, messageID string, a models.MessageAnalysis) (*models.Message, error) {
	return f.record(ctx, userID, messageID, a)
}
