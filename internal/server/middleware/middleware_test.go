package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/boardsync/internal/auth"
	"github.com/gosuda/boardsync/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// contextHandler captures context values set by middleware so tests can
// assert that the correct user and role were injected.
type contextHandler struct {
	userID string
	role   string
	called bool
}

func (h *contextHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.userID, _ = middleware.UserIDFromContext(r.Context())
	h.role, _ = middleware.RoleFromContext(r.Context())
	w.WriteHeader(http.StatusOK)
}

// setUser injects a user ID into the request context.
func setUser(r *http.Request, userID string) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.ContextKeyUserID, userID)
	return r.WithContext(ctx)
}

// ===========================================================================
// 1. Context helpers
// ===========================================================================

func TestUserIDFromContext(t *testing.T) {
	t.Parallel()

	t.Run("present", func(t *testing.T) {
		t.Parallel()

		ctx := context.WithValue(context.Background(), middleware.ContextKeyUserID, "user-1")

		got, ok := middleware.UserIDFromContext(ctx)

		require.True(t, ok)
		assert.Equal(t, "user-1", got)
	})

	t.Run("absent", func(t *testing.T) {
		t.Parallel()

		got, ok := middleware.UserIDFromContext(context.Background())

		assert.False(t, ok)
		assert.Empty(t, got)
	})

	t.Run("wrong type", func(t *testing.T) {
		t.Parallel()

		ctx := context.WithValue(context.Background(), middleware.ContextKeyUserID, 42)

		got, ok := middleware.UserIDFromContext(ctx)

		assert.False(t, ok)
		assert.Empty(t, got)
	})
}

func TestRoleFromContext(t *testing.T) {
	t.Parallel()

	t.Run("present", func(t *testing.T) {
		t.Parallel()

		ctx := context.WithValue(context.Background(), middleware.ContextKeyUserRole, "admin")

		got, ok := middleware.RoleFromContext(ctx)

		require.True(t, ok)
		assert.Equal(t, "admin", got)
	})

	t.Run("absent", func(t *testing.T) {
		t.Parallel()

		got, ok := middleware.RoleFromContext(context.Background())

		assert.False(t, ok)
		assert.Empty(t, got)
	})

	t.Run("wrong type", func(t *testing.T) {
		t.Parallel()

		ctx := context.WithValue(context.Background(), middleware.ContextKeyUserRole, 123)

		got, ok := middleware.RoleFromContext(ctx)

		assert.False(t, ok)
		assert.Empty(t, got)
	})
}

// ===========================================================================
// 2. RateLimit middleware
// ===========================================================================

func TestRateLimit_NoUserInContext_PassesThrough(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimit(t.Context(), 1, 1)(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_BurstExceeded_Returns429(t *testing.T) {
	t.Parallel()

	// Very low rate (effectively zero refill during the test) with burst of 2.
	handler := middleware.RateLimit(t.Context(), 0.001, 2)(okHandler)

	// First two requests consume the burst.
	for i := range 2 {
		req := setUser(httptest.NewRequest(http.MethodGet, "/", http.NoBody), "user-a")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equalf(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}

	// Third request exceeds burst.
	req := setUser(httptest.NewRequest(http.MethodGet, "/", http.NoBody), "user-a")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}

func TestRateLimit_IndependentPerUser(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimit(t.Context(), 0.001, 1)(okHandler)

	// Exhaust user A's burst.
	recA := httptest.NewRecorder()
	handler.ServeHTTP(recA, setUser(httptest.NewRequest(http.MethodGet, "/", http.NoBody), "user-a"))
	require.Equal(t, http.StatusOK, recA.Code)

	recA2 := httptest.NewRecorder()
	handler.ServeHTTP(recA2, setUser(httptest.NewRequest(http.MethodGet, "/", http.NoBody), "user-a"))
	assert.Equal(t, http.StatusTooManyRequests, recA2.Code)

	// User B should still be allowed.
	recB := httptest.NewRecorder()
	handler.ServeHTTP(recB, setUser(httptest.NewRequest(http.MethodGet, "/", http.NoBody), "user-b"))
	assert.Equal(t, http.StatusOK, recB.Code)
}

func TestRateLimitByIP_IndependentPerAddress(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimitByIP(t.Context(), 0.001, 1)(okHandler)

	newReq := func(addr string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/ws", http.NoBody)
		req.RemoteAddr = addr
		return req
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newReq("10.0.0.1:1234"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, newReq("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, newReq("10.0.0.2:1234"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ===========================================================================
// 3. Auth middleware
// ===========================================================================

const testJWTSecret = "test-jwt-secret-for-middleware-tests"

func newValidator() *auth.Validator {
	return auth.NewValidator(testJWTSecret, "single-user-secret")
}

// --- Bearer token path ---

func TestAuth_JWT_ValidToken_PopulatesContext(t *testing.T) {
	t.Parallel()

	token, err := auth.IssueToken(testJWTSecret, "user-7", auth.RoleAdmin, 15*time.Minute)
	require.NoError(t, err)

	capture := &contextHandler{}
	handler := middleware.Auth(newValidator(), "")(capture)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.True(t, capture.called, "inner handler must be called")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-7", capture.userID)
	assert.Equal(t, auth.RoleAdmin, capture.role)
}

func TestAuth_JWT_EmptyRoleBecomesMember(t *testing.T) {
	t.Parallel()

	token, err := auth.IssueToken(testJWTSecret, "user-8", "", 15*time.Minute)
	require.NoError(t, err)

	capture := &contextHandler{}
	handler := middleware.Auth(newValidator(), "")(capture)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, capture.called)
	assert.Equal(t, middleware.RoleMember, capture.role)
}

func TestAuth_SingleUserToken_IsAdmin(t *testing.T) {
	t.Parallel()

	capture := &contextHandler{}
	handler := middleware.Auth(newValidator(), "")(capture)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("Authorization", "Bearer single-user-secret")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, capture.called)
	assert.Equal(t, auth.SingleUserID, capture.userID)
	assert.Equal(t, middleware.RoleAdmin, capture.role)
}

func TestAuth_JWT_Rejected(t *testing.T) {
	t.Parallel()

	expired, err := auth.IssueToken(testJWTSecret, "user-1", "member", -1*time.Second)
	require.NoError(t, err)
	foreign, err := auth.IssueToken("some-other-secret-entirely-here", "user-1", "member", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "totally.invalid.token"},
		{name: "expired", token: expired},
		{name: "wrong secret", token: foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := middleware.Auth(newValidator(), "")(okHandler)
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "Unauthorized")
		})
	}
}

// --- Bearer format variations ---

func TestAuth_BearerFormat(t *testing.T) {
	t.Parallel()

	token, err := auth.IssueToken(testJWTSecret, "user-1", "member", 15*time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{name: "uppercase Bearer", authHeader: "Bearer " + token, wantStatus: http.StatusOK},
		{name: "lowercase bearer", authHeader: "bearer " + token, wantStatus: http.StatusOK},
		{name: "mixed case BEARER", authHeader: "BEARER " + token, wantStatus: http.StatusOK},
		{name: "Basic scheme falls through to 401", authHeader: "Basic " + token, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := middleware.Auth(newValidator(), "")(okHandler)
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set("Authorization", tt.authHeader)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

// --- API key path ---

func TestAuth_APIKey(t *testing.T) {
	t.Parallel()

	rawKey := "testkey-abcdefgh1234"
	encoded, err := auth.HashAPIKey(rawKey)
	require.NoError(t, err)

	t.Run("valid key is the service admin", func(t *testing.T) {
		t.Parallel()

		capture := &contextHandler{}
		handler := middleware.Auth(newValidator(), encoded)(capture)

		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set("X-API-Key", rawKey)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		require.True(t, capture.called, "inner handler must be called")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, middleware.ServiceUserID, capture.userID)
		assert.Equal(t, middleware.RoleAdmin, capture.role)
	})

	t.Run("wrong key", func(t *testing.T) {
		t.Parallel()

		handler := middleware.Auth(newValidator(), encoded)(okHandler)
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set("X-API-Key", "testkey-wrong")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("api keys disabled", func(t *testing.T) {
		t.Parallel()

		handler := middleware.Auth(newValidator(), "")(okHandler)
		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set("X-API-Key", rawKey)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

// --- No credentials ---

func TestAuth_NoCredentials_Returns401(t *testing.T) {
	t.Parallel()

	handler := middleware.Auth(newValidator(), "")(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing or invalid credentials")
}

func TestAuth_NilIdentifier_OnlyAPIKey(t *testing.T) {
	t.Parallel()

	handler := middleware.Auth(nil, "")(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
