package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ArowuTest/study-profile-backend/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// whoami echoes the identity the middleware chain stored
func whoami(c *gin.Context) {
	userID, username := CurrentUser(c)
	c.JSON(http.StatusOK, gin.H{"userId": userID, "username": username})
}

func perform(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type stubVerifier map[string]jwt.Identity

func (s stubVerifier) Verify(token string) (jwt.Identity, error) {
	id, ok := s[token]
	if !ok {
		return jwt.Identity{}, errors.New("bad token")
	}
	return id, nil
}

func TestIdentityMiddleware(t *testing.T) {
	verifier := stubVerifier{"good": {UserID: "u-1", Username: "aifast1"}}

	tests := []struct {
		name         string
		verifier     TokenVerifier
		trustHeaders bool
		headers      map[string]string
		wantStatus   int
		wantBody     string
	}{
		{
			name:       "valid bearer",
			verifier:   verifier,
			headers:    map[string]string{"Authorization": "Bearer good"},
			wantStatus: http.StatusOK,
			wantBody:   `{"userId":"u-1","username":"aifast1"}`,
		},
		{
			name:       "invalid bearer",
			verifier:   verifier,
			headers:    map[string]string{"Authorization": "Bearer nope"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong scheme",
			verifier:   verifier,
			headers:    map[string]string{"Authorization": "Basic abc"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:         "principal headers",
			trustHeaders: true,
			headers:      map[string]string{PrincipalIDHeader: "oid-7", PrincipalNameHeader: "aifast307@example.com"},
			wantStatus:   http.StatusOK,
			wantBody:     `{"userId":"oid-7","username":"aifast307@example.com"}`,
		},
		{
			name:       "principal headers not trusted",
			verifier:   verifier,
			headers:    map[string]string{PrincipalIDHeader: "oid-7"},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:         "nothing",
			trustHeaders: true,
			wantStatus:   http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/me", IdentityMiddleware(tt.verifier, tt.trustHeaders, zap.NewNop()), whoami)

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := perform(r, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestDebugTokenMiddleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("open-sesame"), bcrypt.MinCost)
	require.NoError(t, err)

	r := gin.New()
	r.POST("/guarded", DebugTokenMiddleware(string(hash), zap.NewNop()), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/open", DebugTokenMiddleware("", zap.NewNop()), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodPost, "/guarded", nil)
	assert.Equal(t, http.StatusForbidden, perform(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/guarded", nil)
	req.Header.Set(DebugTokenHeader, "wrong")
	assert.Equal(t, http.StatusForbidden, perform(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/guarded", nil)
	req.Header.Set(DebugTokenHeader, "open-sesame")
	assert.Equal(t, http.StatusNoContent, perform(r, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/open", nil)
	assert.Equal(t, http.StatusNoContent, perform(r, req).Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	rec := perform(r, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := rec.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec = perform(r, req)
	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"http://localhost:3000"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := perform(r, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = perform(r, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	assert.Equal(t, http.StatusNoContent, perform(r, req).Code)
}

func TestUserRateLimiter(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewUserRateLimiter(60, 2, zap.NewNop())
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("u-1"))
	assert.True(t, l.Allow("u-1"))
	assert.False(t, l.Allow("u-1"), "burst used up")
	assert.True(t, l.Allow("u-2"), "buckets are per caller")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("u-1"), "one token refills per second at 60/min")

	now = now.Add(visitorTTL + time.Second)
	l.Allow("u-3")
	l.mu.Lock()
	assert.Len(t, l.visitors, 1, "idle callers pruned")
	l.mu.Unlock()
}

func TestUserRateLimiter_Handler(t *testing.T) {
	l := NewUserRateLimiter(1, 1, zap.NewNop())
	r := gin.New()
	r.GET("/", func(c *gin.Context) { c.Set(UserIDKey, "u-1") }, l.Handler(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	rec := perform(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
