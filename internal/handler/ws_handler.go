package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/dawei41468/LOSMAX/internal/realtime"
	"github.com/dawei41468/LOSMAX/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TokenAuthenticator resolves an access token to its identity
type TokenAuthenticator interface {
	AuthenticateToken(ctx context.Context, accessToken string) (string, error)
}

// WSHandler upgrades /ws/:identityId and hands authenticated connections to a Session
type WSHandler struct {
	auth     TokenAuthenticator
	registry *realtime.Registry
	upgrader websocket.Upgrader
	cfg      realtime.SessionConfig
	log      *logger.Logger
}

// NewWSHandler creates a new WSHandler. An empty allowedOrigins list or "*"
// accepts any origin.
func NewWSHandler(auth TokenAuthenticator, registry *realtime.Registry, cfg realtime.SessionConfig, allowedOrigins []string, log *logger.Logger) *WSHandler {
	if log == nil {
		log = logger.Get()
	}
	h := &WSHandler{auth: auth, registry: registry, cfg: cfg, log: log}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	if h.cfg.OnMessage == nil {
		h.cfg.OnMessage = func(identityID string, payload []byte) {
			log.Debug("WebSocket message received",
				zap.String("user_id", identityID),
				zap.Int("size", len(payload)),
			)
		}
	}
	return h
}

// Connect accepts the upgrade, then authenticates the query token. Failures
// close the connection with 1008 before anything is registered.
// GET /ws/:identityId?token=
func (h *WSHandler) Connect(c *gin.Context) {
	identityID := c.Param("identityId")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		h.log.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}
	session := realtime.NewSession(conn, h.cfg, h.log)
	session.BeginAuthentication()

	tokenID, err := h.auth.AuthenticateToken(c.Request.Context(), c.Query("token"))
	if err != nil {
		h.log.Info("WebSocket authentication failed", zap.String("path_user_id", identityID), zap.Error(err))
		_ = session.Close(websocket.ClosePolicyViolation, "Invalid token")
		return
	}
	if tokenID != identityID {
		h.log.Warn("WebSocket identity mismatch",
			zap.String("path_user_id", identityID),
			zap.String("token_user_id", tokenID),
		)
		_ = session.Close(websocket.ClosePolicyViolation, "User ID mismatch")
		return
	}

	h.log.Info("WebSocket connected", zap.String("user_id", identityID))
	session.Run(c.Request.Context(), identityID, h.registry)
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
