package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/convopilot/internal/models"
	"github.com/yoockh/convopilot/internal/ratelimit"
	"github.com/yoockh/convopilot/internal/security"
	"github.com/yoockh/convopilot/internal/utils"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	tokens := security.NewJWTManager("a-test-secret-that-is-long-enough", "convopilot", time.Minute)
	valid, err := tokens.GenerateAccessToken("user-1", "ana@example.com")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", JWTAuth(tokens), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id")+"|"+c.GetString("email"))
	})

	t.Run("missing header", func(t *testing.T) {
		rec := serve(r, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer nope")
		assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
	})

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+valid)
		rec := serve(r, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-1|ana@example.com", rec.Body.String())
	})

	t.Run("query token only on websocket upgrade", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me?access_token="+valid, nil)
		assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

		req = httptest.NewRequest(http.MethodGet, "/me?access_token="+valid, nil)
		req.Header.Set("Upgrade", "websocket")
		assert.Equal(t, http.StatusOK, serve(r, req).Code)
	})
}

type lookupFunc func(ctx context.Context, id string) (*models.User, error)

func (f lookupFunc) Get(ctx context.Context, id string) (*models.User, error) { return f(ctx, id) }

func TestRequireActiveUser(t *testing.T) {
	users := lookupFunc(func(_ context.Context, id string) (*models.User, error) {
		switch id {
		case "active":
			return &models.User{ID: id, IsActive: true}, nil
		case "inactive":
			return &models.User{ID: id, IsActive: false}, nil
		default:
			return nil, utils.E(utils.CodeNotFound, "UserService.Get", "user not found", utils.ErrNotFound)
		}
	})

	newRouter := func(userID string) *gin.Engine {
		r := gin.New()
		r.GET("/x", func(c *gin.Context) { c.Set("user_id", userID) }, RequireActiveUser(users), func(c *gin.Context) {
			u, _ := c.Get("user")
			c.String(http.StatusOK, u.(*models.User).ID)
		})
		return r
	}

	tests := []struct {
		userID string
		want   int
	}{
		{"active", http.StatusOK},
		{"inactive", http.StatusForbidden},
		{"ghost", http.StatusUnauthorized},
		{"", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		rec := serve(newRouter(tt.userID), httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, tt.want, rec.Code, "user %q", tt.userID)
	}
}

// countingLimiter allows limit hits per key within one window.
type countingLimiter struct {
	limit int
	hits  map[string]int
	err   error
}

func (l *countingLimiter) Allow(_ context.Context, key string) (ratelimit.Result, error) {
	if l.err != nil {
		return ratelimit.Result{}, l.err
	}
	if l.hits == nil {
		l.hits = map[string]int{}
	}
	l.hits[key]++
	return ratelimit.Result{
		Allowed:   l.hits[key] <= l.limit,
		Remaining: max(l.limit-l.hits[key], 0),
		ResetAt:   time.Now().Add(30 * time.Second),
	}, nil
}

func TestRateLimit(t *testing.T) {
	log, hook := test.NewNullLogger()

	newRouter := func(l ratelimit.Limiter, status func() int) *gin.Engine {
		r := gin.New()
		r.POST("/login", RateLimit(l, "login", log), func(c *gin.Context) { c.Status(status()) })
		return r
	}
	ok := func() int { return http.StatusOK }

	t.Run("blocked past the limit", func(t *testing.T) {
		l := &countingLimiter{limit: 2}
		r := newRouter(l, ok)
		for i := 0; i < 2; i++ {
			rec := serve(r, httptest.NewRequest(http.MethodPost, "/login", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		}
		rec := serve(r, httptest.NewRequest(http.MethodPost, "/login", nil))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("successful logins do not refill the bucket", func(t *testing.T) {
		const limit = 15
		l := &countingLimiter{limit: limit}
		n := 0
		// Every 15th attempt succeeds, the rest are failed guesses.
		r := newRouter(l, func() int {
			n++
			if n%limit == 0 {
				return http.StatusOK
			}
			return http.StatusUnauthorized
		})

		passed, blocked := 0, 0
		for i := 0; i < 100; i++ {
			rec := serve(r, httptest.NewRequest(http.MethodPost, "/login", nil))
			if rec.Code == http.StatusTooManyRequests {
				blocked++
				continue
			}
			passed++
		}
		assert.Equal(t, limit, passed)
		assert.Equal(t, 100-limit, blocked)
	})

	t.Run("buckets are per client IP", func(t *testing.T) {
		l := &countingLimiter{limit: 1}
		r := newRouter(l, ok)

		first := httptest.NewRequest(http.MethodPost, "/login", nil)
		first.RemoteAddr = "10.0.0.1:5000"
		second := httptest.NewRequest(http.MethodPost, "/login", nil)
		second.RemoteAddr = "10.0.0.2:5000"

		assert.Equal(t, http.StatusOK, serve(r, first).Code)
		assert.Equal(t, http.StatusOK, serve(r, second).Code)
		assert.Len(t, l.hits, 2)
	})

	t.Run("limiter down fails open", func(t *testing.T) {
		hook.Reset()
		l := &countingLimiter{err: errors.New("redis down")}
		rec := serve(newRouter(l, ok), httptest.NewRequest(http.MethodPost, "/login", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, hook.LastEntry())
		assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	})
}

func TestRequestLogger(t *testing.T) {
	log, hook := test.NewNullLogger()

	r := gin.New()
	r.Use(RequestLogger(log))
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("db unreachable"))
		c.Status(http.StatusServiceUnavailable)
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec := serve(r, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "/boom", entry.Data["path"])
	assert.Contains(t, entry.Data["errors"], "db unreachable")
}
