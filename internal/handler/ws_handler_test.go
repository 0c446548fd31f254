package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dawei41468/LOSMAX/internal/metrics"
	"github.com/dawei41468/LOSMAX/internal/realtime"
	"github.com/dawei41468/LOSMAX/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenOwners maps test access tokens to identities
var tokenOwners = map[string]string{
	"alice-token": "alice",
	"bob-token":   "bob",
	"u1-token":    "u1",
}

func wsAuthMock() *MockAuthService {
	return &MockAuthService{
		AuthenticateTokenFunc: func(_ context.Context, token string) (string, error) {
			if id, ok := tokenOwners[token]; ok {
				return id, nil
			}
			return "", service.ErrUnauthenticated
		},
	}
}

func startWSServer(t *testing.T, svc *MockAuthService, registry *realtime.Registry) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()

	ws := NewWSHandler(svc, registry, realtime.DefaultSessionConfig(), nil, nil)
	auth := NewAuthHandler(svc, nil)
	router.GET("/ws/:identityId", ws.Connect)
	router.POST("/auth/logout", auth.Logout)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server, identity, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + identity + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func expectClose(t *testing.T, conn *websocket.Conn, wantCode int, wantReason string) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)

	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, wantCode, closeErr.Code)
	assert.Equal(t, wantReason, closeErr.Text)
}

func TestWSHandler_IdentityMismatchClosesWithPolicyViolation(t *testing.T) {
	registry := realtime.NewRegistry(nil, nil)
	srv := startWSServer(t, wsAuthMock(), registry)

	conn := dialWS(t, srv, "alice", "bob-token")
	expectClose(t, conn, websocket.ClosePolicyViolation, "User ID mismatch")

	assert.Equal(t, 0, registry.Count("alice"))
	assert.Equal(t, 0, registry.Count("bob"))
	assert.Equal(t, 0, registry.Identities())
}

func TestWSHandler_InvalidTokenClosesWithPolicyViolation(t *testing.T) {
	registry := realtime.NewRegistry(nil, nil)
	srv := startWSServer(t, wsAuthMock(), registry)

	conn := dialWS(t, srv, "alice", "forged")
	expectClose(t, conn, websocket.ClosePolicyViolation, "Invalid token")
	assert.Equal(t, 0, registry.Identities())
}

func TestWSHandler_LogoutReachesEverySession(t *testing.T) {
	reg := prometheus.NewRegistry()
	registry := realtime.NewRegistry(nil, metrics.New(reg, reg))

	svc := wsAuthMock()
	svc.LogoutFunc = func(ctx context.Context, token string) (*service.LogoutResult, error) {
		id, ok := tokenOwners[token]
		if !ok {
			return nil, service.ErrUnauthenticated
		}
		registry.Broadcast(ctx, id, realtime.NewLoggedOut(id))
		return &service.LogoutResult{UserID: id}, nil
	}
	srv := startWSServer(t, svc, registry)

	first := dialWS(t, srv, "u1", "u1-token")
	second := dialWS(t, srv, "u1", "u1-token")
	require.Eventually(t, func() bool { return registry.Count("u1") == 2 }, 2*time.Second, 10*time.Millisecond)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer u1-token")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var wg sync.WaitGroup
	for _, conn := range []*websocket.Conn{first, second} {
		wg.Add(1)
		go func(conn *websocket.Conn) {
			defer wg.Done()
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, msg, err := conn.ReadMessage()
			if !assert.NoError(t, err) {
				return
			}
			var evt realtime.AuthUpdateEvent
			if assert.NoError(t, json.Unmarshal(msg, &evt)) {
				assert.Equal(t, "auth_update", evt.Type)
				assert.Equal(t, "u1", evt.UserID)
				assert.False(t, evt.Authenticated)
			}
		}(conn)
	}
	wg.Wait()
}

func TestWSHandler_OriginCheck(t *testing.T) {
	check := originChecker([]string{"https://app.example.com/"})

	allowed, _ := http.NewRequest(http.MethodGet, "/ws/u1", nil)
	allowed.Header.Set("Origin", "https://app.example.com")
	assert.True(t, check(allowed))

	denied, _ := http.NewRequest(http.MethodGet, "/ws/u1", nil)
	denied.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(denied))

	assert.True(t, originChecker([]string{"*"})(denied))
	assert.True(t, originChecker(nil)(denied))
}
