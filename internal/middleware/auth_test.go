package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dawei41468/LOSMAX/internal/domain"
	"github.com/dawei41468/LOSMAX/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type authenticatorFunc func(ctx context.Context, token string) (*domain.User, error)

func (f authenticatorFunc) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	return f(ctx, token)
}

func setupAuthRouter(auth Authenticator, admin bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers := []gin.HandlerFunc{Auth(auth)}
	if admin {
		handlers = append(handlers, AdminOnly())
	}
	handlers = append(handlers, func(c *gin.Context) {
		user, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(ContextUserID), "role": c.GetString(ContextRole), "email": user.Email})
	})
	router.GET("/protected", handlers...)
	return router
}

func doRequest(router *gin.Engine, header string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	auth := authenticatorFunc(func(_ context.Context, token string) (*domain.User, error) {
		switch token {
		case "good":
			return &domain.User{ID: "u1", Email: "u1@example.com", Role: domain.RoleUser}, nil
		case "admin":
			return &domain.User{ID: "a1", Email: "a1@example.com", Role: domain.RoleAdmin}, nil
		case "expired":
			return nil, service.ErrTokenExpired
		case "boom":
			return nil, errors.New("db down")
		}
		return nil, service.ErrUnauthenticated
	})

	tests := []struct {
		name       string
		header     string
		admin      bool
		wantStatus int
		wantBody   string
	}{
		{"missing header", "", false, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"wrong scheme", "Basic abc", false, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"invalid token", "Bearer nope", false, http.StatusUnauthorized, "Could not validate credentials"},
		{"expired token", "Bearer expired", false, http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"store failure", "Bearer boom", false, http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"valid token", "Bearer good", false, http.StatusOK, `"user_id":"u1"`},
		{"lowercase scheme", "bearer good", false, http.StatusOK, `"email":"u1@example.com"`},
		{"admin route as user", "Bearer good", true, http.StatusForbidden, "FORBIDDEN"},
		{"admin route as admin", "Bearer admin", true, http.StatusOK, `"role":"admin"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(setupAuthRouter(auth, tt.admin), tt.header)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestAuth_DoesNotLeakInternalErrors(t *testing.T) {
	auth := authenticatorFunc(func(context.Context, string) (*domain.User, error) {
		return nil, errors.New("connection refused to 10.0.0.5")
	})
	w := doRequest(setupAuthRouter(auth, false), "Bearer x")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
}
