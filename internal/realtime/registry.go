// Package realtime tracks open WebSocket connections per identity and fans
// messages out to them.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dawei41468/LOSMAX/internal/metrics"
	"github.com/dawei41468/LOSMAX/pkg/logger"
	"github.com/dawei41468/LOSMAX/pkg/telemetry"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Conn is one open connection as seen by the registry
type Conn interface {
	// Send writes one text frame
	Send(payload []byte) error
	// Close sends a close frame with code and reason and releases the connection
	Close(code int, reason string) error
}

// Broadcaster delivers a payload to every connection of an identity
type Broadcaster interface {
	Broadcast(ctx context.Context, identityID string, payload interface{})
}

// Deliverer sends a payload to every connection of an identity and reports how many received it
type Deliverer interface {
	Deliver(ctx context.Context, identityID string, payload interface{}) int
}

// Registry maps identity IDs to their open connections. An identity has an
// entry only while it has at least one connection.
type Registry struct {
	mu      sync.RWMutex
	conns   map[string]map[Conn]struct{}
	closed  bool
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewRegistry creates an empty registry; m may be nil
func NewRegistry(log *logger.Logger, m *metrics.Metrics) *Registry {
	if log == nil {
		log = logger.Get()
	}
	return &Registry{
		conns:   make(map[string]map[Conn]struct{}),
		log:     log,
		metrics: m,
	}
}

// Register adds conn under identityID. It returns false once the registry is closed.
func (r *Registry) Register(identityID string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}

	set, ok := r.conns[identityID]
	if !ok {
		set = make(map[Conn]struct{})
		r.conns[identityID] = set
	}
	if _, dup := set[conn]; !dup {
		set[conn] = struct{}{}
		r.metrics.ConnectionOpened()
	}

	r.log.Debug("WebSocket registered",
		zap.String("user_id", identityID),
		zap.Int("connections", len(set)),
	)
	return true
}

// Unregister removes conn; unknown identities and connections are ignored
func (r *Registry) Unregister(identityID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(identityID, conn)
}

func (r *Registry) removeLocked(identityID string, conn Conn) {
	set, ok := r.conns[identityID]
	if !ok {
		return
	}
	if _, ok := set[conn]; !ok {
		return
	}
	delete(set, conn)
	r.metrics.ConnectionClosed()
	if len(set) == 0 {
		delete(r.conns, identityID)
	}
}

// Broadcast sends payload to every connection of identityID
func (r *Registry) Broadcast(ctx context.Context, identityID string, payload interface{}) {
	r.Deliver(ctx, identityID, payload)
}

// Deliver marshals payload once, sends it to every connection of identityID
// and returns the number of successful sends. Connections that fail are
// closed and dropped; errors are logged, never returned.
func (r *Registry) Deliver(ctx context.Context, identityID string, payload interface{}) int {
	_, span := telemetry.StartSpan(ctx, "realtime.broadcast")
	defer span.End()

	msgType := messageType(payload)
	span.SetAttributes(
		attribute.String("user_id", identityID),
		attribute.String("message_type", msgType),
	)

	data, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		r.log.Error("Failed to marshal broadcast payload", zap.String("user_id", identityID), zap.Error(err))
		return 0
	}

	r.mu.RLock()
	targets := make([]Conn, 0, len(r.conns[identityID]))
	for c := range r.conns[identityID] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	span.SetAttributes(attribute.Int("connections", len(targets)))
	if len(targets) == 0 {
		return 0
	}

	var failed []Conn
	for _, c := range targets {
		if err := c.Send(data); err != nil {
			r.log.Warn("WebSocket send failed",
				zap.String("user_id", identityID),
				zap.String("type", msgType),
				zap.Error(err),
			)
			r.metrics.RecordWSMessage(msgType, false)
			failed = append(failed, c)
			continue
		}
		r.metrics.RecordWSMessage(msgType, true)
	}

	if len(failed) > 0 {
		r.mu.Lock()
		for _, c := range failed {
			r.removeLocked(identityID, c)
		}
		r.mu.Unlock()
		for _, c := range failed {
			_ = c.Close(websocket.CloseInternalServerErr, "send failed")
		}
	}
	return len(targets) - len(failed)
}

// Count returns the number of open connections for identityID
func (r *Registry) Count(identityID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[identityID])
}

// Identities returns the number of identities with at least one connection
func (r *Registry) Identities() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Close closes every connection with 1001 and refuses further registrations
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.conns
	r.conns = make(map[string]map[Conn]struct{})
	r.closed = true
	r.mu.Unlock()

	for _, set := range all {
		for c := range set {
			r.metrics.ConnectionClosed()
			_ = c.Close(websocket.CloseGoingAway, "server shutting down")
		}
	}
}
