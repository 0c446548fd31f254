package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dawei41468/LOSMAX/pkg/logger"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingMessage = "ping"
	pongMessage = "pong"

	maxInboundMessageSize = 4096
)

// State is the lifecycle position of a Session
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// SessionConfig configures keep-alive and message handling
type SessionConfig struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	// OnMessage receives inbound payloads other than the keep-alive reply
	OnMessage func(identityID string, payload []byte)
}

// DefaultSessionConfig returns a 30s keep-alive
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Session owns one upgraded connection. Writes are serialized because the
// keep-alive loop and broadcasts write concurrently.
type Session struct {
	conn      *websocket.Conn
	cfg       SessionConfig
	log       *logger.Logger
	writeMu   sync.Mutex
	state     atomic.Int32
	closeOnce sync.Once
}

// NewSession wraps an upgraded connection; the session starts in StateConnecting
func NewSession(conn *websocket.Conn, cfg SessionConfig, log *logger.Logger) *Session {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultSessionConfig().PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultSessionConfig().WriteTimeout
	}
	if log == nil {
		log = logger.Get()
	}

	s := &Session{conn: conn, cfg: cfg, log: log}
	s.state.Store(int32(StateConnecting))
	conn.SetReadLimit(maxInboundMessageSize)
	return s
}

// State returns the current lifecycle state
func (s *Session) State() State {
	return State(s.state.Load())
}

// BeginAuthentication moves a connecting session to StateAuthenticating.
// It returns false when the session has already left StateConnecting.
func (s *Session) BeginAuthentication() bool {
	return s.state.CompareAndSwap(int32(StateConnecting), int32(StateAuthenticating))
}

// Send writes one text frame
func (s *Session) Send(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close sends a close frame and releases the connection; later calls are no-ops
func (s *Session) Close(code int, reason string) error {
	var err error
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		msg := websocket.FormatCloseMessage(code, reason)
		err = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteTimeout))
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
		s.state.Store(int32(StateClosed))
	})
	return err
}

// Run registers the session under identityID and serves it until the peer
// disconnects or the connection fails. The keep-alive loop stops and the
// session is unregistered before Run returns.
func (s *Session) Run(ctx context.Context, identityID string, registry *Registry) {
	if !registry.Register(identityID, s) {
		_ = s.Close(websocket.CloseGoingAway, "server shutting down")
		return
	}
	s.state.Store(int32(StateOpen))

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		registry.Unregister(identityID, s)
		_ = s.Close(websocket.CloseNormalClosure, "")
		s.log.Debug("WebSocket session ended", zap.String("user_id", identityID))
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.keepAlive(ctx, identityID)
	}()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("WebSocket read failed", zap.String("user_id", identityID), zap.Error(err))
			}
			return
		}

		if string(payload) == pongMessage {
			continue
		}
		if s.cfg.OnMessage != nil {
			s.cfg.OnMessage(identityID, payload)
		}
	}
}

func (s *Session) keepAlive(ctx context.Context, identityID string) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Send([]byte(pingMessage)); err != nil {
				s.log.Debug("Keep-alive ping failed", zap.String("user_id", identityID), zap.Error(err))
				// Unblock the read loop so Run can clean up
				_ = s.conn.Close()
				return
			}
		}
	}
}
