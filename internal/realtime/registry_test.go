package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu        sync.Mutex
	sent      [][]byte
	sendErr   error
	closed    bool
	closeCode int
}

func (f *fakeConn) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeConn) Close(code int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeCode = code
	return nil
}

func (f *fakeConn) messages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

func TestRegistry_RegisterUnregister(t *testing.T) {
	r := NewRegistry(nil, nil)
	a, b := &fakeConn{}, &fakeConn{}

	require.True(t, r.Register("u1", a))
	require.True(t, r.Register("u1", b))
	require.True(t, r.Register("u1", b))
	assert.Equal(t, 2, r.Count("u1"))

	r.Unregister("u1", a)
	assert.Equal(t, 1, r.Count("u1"))

	r.Unregister("u1", b)
	assert.Equal(t, 0, r.Count("u1"))
	assert.Equal(t, 0, r.Identities())

	// Unknown identity and connection are ignored
	r.Unregister("ghost", a)
	assert.Equal(t, 0, r.Identities())
}

func TestRegistry_BroadcastToAllSessions(t *testing.T) {
	r := NewRegistry(nil, nil)
	a, b, other := &fakeConn{}, &fakeConn{}, &fakeConn{}
	r.Register("u1", a)
	r.Register("u1", b)
	r.Register("u2", other)

	r.Broadcast(context.Background(), "u1", NewLoggedOut("u1"))

	want := `{"type":"auth_update","userId":"u1","authenticated":false}`
	for _, c := range []*fakeConn{a, b} {
		msgs := c.messages()
		require.Len(t, msgs, 1)
		assert.JSONEq(t, want, string(msgs[0]))
	}
	assert.Empty(t, other.messages())
}

func TestRegistry_DeliverPrunesFailedConnections(t *testing.T) {
	r := NewRegistry(nil, nil)
	good := &fakeConn{}
	bad := &fakeConn{sendErr: errors.New("broken pipe")}
	r.Register("u1", good)
	r.Register("u1", bad)

	delivered := r.Deliver(context.Background(), "u1", ReminderEvent{Type: TypeReminder, Kind: "morning"})

	assert.Equal(t, 1, delivered)
	assert.Len(t, good.messages(), 1)
	assert.Equal(t, 1, r.Count("u1"))
	assert.True(t, bad.closed)
}

func TestRegistry_BroadcastWithoutConnections(t *testing.T) {
	r := NewRegistry(nil, nil)
	assert.NotPanics(t, func() {
		r.Broadcast(context.Background(), "nobody", NewLoggedOut("nobody"))
	})
	assert.Equal(t, 0, r.Deliver(context.Background(), "nobody", NewLoggedOut("nobody")))
	assert.Equal(t, 0, r.Identities())
}

func TestRegistry_Close(t *testing.T) {
	r := NewRegistry(nil, nil)
	a := &fakeConn{}
	r.Register("u1", a)

	r.Close()

	assert.True(t, a.closed)
	assert.Equal(t, websocket.CloseGoingAway, a.closeCode)
	assert.Equal(t, 0, r.Identities())
	assert.False(t, r.Register("u1", &fakeConn{}))
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry(nil, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := &fakeConn{}
			r.Register("u1", c)
			r.Broadcast(context.Background(), "u1", NewLoggedOut("u1"))
			r.Unregister("u1", c)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, r.Count("u1"))
}

// startSessionServer serves every connection as a Session for identity "u1"
func startSessionServer(t *testing.T, r *Registry, cfg SessionConfig) string {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		NewSession(conn, cfg, nil).Run(req.Context(), "u1", r)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSession_KeepAliveAndPongSuppression(t *testing.T) {
	r := NewRegistry(nil, nil)
	received := make(chan string, 4)
	url := startSessionServer(t, r, SessionConfig{
		PingInterval: 50 * time.Millisecond,
		OnMessage:    func(_ string, p []byte) { received <- string(p) },
	})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "ping", string(msg))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("pong")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))

	select {
	case got := <-received:
		assert.Equal(t, "hello", got)
	case <-time.After(2 * time.Second):
		t.Fatal("message hook not called")
	}
	assert.Equal(t, 1, r.Count("u1"))
}

func TestSession_UnregistersOnDisconnect(t *testing.T) {
	r := NewRegistry(nil, nil)
	url := startSessionServer(t, r, DefaultSessionConfig())

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return r.Count("u1") == 1 }, 2*time.Second, 10*time.Millisecond)

	r.Broadcast(context.Background(), "u1", NewLoggedOut("u1"))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var evt AuthUpdateEvent
	require.NoError(t, json.Unmarshal(msg, &evt))
	assert.Equal(t, TypeAuthUpdate, evt.Type)
	assert.False(t, evt.Authenticated)

	conn.Close()
	require.Eventually(t, func() bool { return r.Identities() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSession_Lifecycle(t *testing.T) {
	type observed struct {
		initial, authenticating, closed State
		repeated                        bool
	}
	result := make(chan observed, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		s := NewSession(conn, DefaultSessionConfig(), nil)
		var o observed
		o.initial = s.State()
		s.BeginAuthentication()
		o.authenticating = s.State()
		o.repeated = s.BeginAuthentication()
		_ = s.Close(websocket.ClosePolicyViolation, "Invalid token")
		o.closed = s.State()
		result <- o
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case o := <-result:
		assert.Equal(t, StateConnecting, o.initial)
		assert.Equal(t, StateAuthenticating, o.authenticating)
		assert.False(t, o.repeated)
		assert.Equal(t, StateClosed, o.closed)
	case <-time.After(2 * time.Second):
		t.Fatal("session states not reported")
	}
}
