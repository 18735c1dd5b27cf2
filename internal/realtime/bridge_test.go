package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curelink/patient-portal/internal/events"
	"github.com/curelink/patient-portal/pkg/logging"
)

// fakeGateway is a minimal push gateway: it accepts websocket upgrades,
// records the bearer tokens it saw, and can push envelopes to the most
// recent connection.
type fakeGateway struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	upgrades int
	tokens   []string
	conns    []*websocket.Conn
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := g.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		g.mu.Lock()
		g.upgrades++
		g.tokens = append(g.tokens, r.Header.Get("Authorization"))
		g.conns = append(g.conns, conn)
		g.mu.Unlock()
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGateway) url() string {
	return "ws" + strings.TrimPrefix(g.srv.URL, "http")
}

func (g *fakeGateway) upgradeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.upgrades
}

func (g *fakeGateway) lastToken() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.tokens) == 0 {
		return ""
	}
	return g.tokens[len(g.tokens)-1]
}

func (g *fakeGateway) waitUpgrades(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return g.upgradeCount() >= n
	}, 2*time.Second, 5*time.Millisecond)
}

func (g *fakeGateway) push(t *testing.T, event, data string) {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(t, g.conns, "no connection to push to")
	conn := g.conns[len(g.conns)-1]
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"event":"`+event+`","data":`+data+`}`)))
}

func (g *fakeGateway) closeLast() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.conns) > 0 {
		_ = g.conns[len(g.conns)-1].Close()
	}
}

func newTestBridge(gatewayURL string, opts ...BridgeOption) *Bridge {
	base := []BridgeOption{
		WithBackoffBase(time.Millisecond),
		WithConnectTimeout(time.Second),
	}
	return NewBridge(gatewayURL, logging.New("error"), append(base, opts...)...)
}

func waitConnected(t *testing.T, s *Session) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Status() == StatusConnected
	}, 2*time.Second, 5*time.Millisecond)
}

func TestInitializeEmptyTokenIsGuarded(t *testing.T) {
	b := newTestBridge("ws://localhost:1")
	s, err := b.Initialize("")
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Nil(t, b.Session())
}

func TestInitializeIdempotentForSameToken(t *testing.T) {
	gw := newFakeGateway(t)
	b := newTestBridge(gw.url())
	defer b.Disconnect()

	s1, err := b.Initialize("token-a")
	require.NoError(t, err)
	require.NotNil(t, s1)
	waitConnected(t, s1)
	assert.Equal(t, "Bearer token-a", gw.lastToken())

	s2, err := b.Initialize("token-a")
	require.NoError(t, err)
	assert.Same(t, s1, s2, "same token must reuse the live session")
	assert.Equal(t, 1, gw.upgradeCount(), "no second connection may be opened")
}

func TestInitializeTokenChangeTearsDownOldConnection(t *testing.T) {
	gw := newFakeGateway(t)
	b := newTestBridge(gw.url())
	defer b.Disconnect()

	s1, err := b.Initialize("token-a")
	require.NoError(t, err)
	waitConnected(t, s1)

	s2, err := b.Initialize("token-b")
	require.NoError(t, err)
	require.NotNil(t, s2)
	assert.NotSame(t, s1, s2)
	waitConnected(t, s2)

	assert.Equal(t, StatusDisconnected, s1.Status())
	assert.Equal(t, 2, gw.upgradeCount())
	assert.Equal(t, "Bearer token-b", gw.lastToken())
}

func TestEventDispatchTypedPayload(t *testing.T) {
	gw := newFakeGateway(t)
	b := newTestBridge(gw.url())
	defer b.Disconnect()

	got := make(chan any, 1)
	b.On(events.NameOrderStatusChanged, func(evt any) {
		got <- evt
	})

	s, err := b.Initialize("token-a")
	require.NoError(t, err)
	waitConnected(t, s)
	gw.waitUpgrades(t, 1)

	gw.push(t, events.NameOrderStatusChanged,
		`{"order_id":"ord-7","patient_id":"pat-1","status":"delivered"}`)

	select {
	case evt := <-got:
		status, ok := evt.(*events.OrderStatusChangedV1)
		require.True(t, ok, "expected typed payload, got %T", evt)
		assert.Equal(t, "ord-7", status.OrderID)
		assert.Equal(t, "delivered", status.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not dispatched")
	}
}

func TestUnsubscribeAndOff(t *testing.T) {
	gw := newFakeGateway(t)
	b := newTestBridge(gw.url())
	defer b.Disconnect()

	kept := make(chan any, 4)
	removed := make(chan any, 4)
	b.On(events.NameMessageReceived, func(evt any) { kept <- evt })
	unsub := b.On(events.NameMessageReceived, func(evt any) { removed <- evt })
	unsub()
	b.On(events.NameNotificationCreated, func(evt any) { removed <- evt })
	b.Off(events.NameNotificationCreated)

	s, err := b.Initialize("token-a")
	require.NoError(t, err)
	waitConnected(t, s)
	gw.waitUpgrades(t, 1)

	gw.push(t, events.NameNotificationCreated, `{"notification_id":"n-1","title":"hi"}`)
	gw.push(t, events.NameMessageReceived, `{"conversation_id":"c-1","body":"hello"}`)

	select {
	case <-kept:
	case <-time.After(2 * time.Second):
		t.Fatal("surviving handler did not fire")
	}
	select {
	case evt := <-removed:
		t.Fatalf("removed handler fired: %#v", evt)
	default:
	}
}

func TestBoundedRetryReachesTerminalState(t *testing.T) {
	// A server that is immediately shut down yields a port that refuses
	// connections for the duration of the test.
	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	deadURL := "ws" + strings.TrimPrefix(dead.URL, "http")
	dead.Close()

	b := newTestBridge(deadURL, WithMaxRetries(3))
	s, err := b.Initialize("token-a")
	require.NoError(t, err, "lenient mode keeps the first dial failure quiet")
	require.NotNil(t, s)

	require.Eventually(t, func() bool {
		return b.Session() == nil
	}, 2*time.Second, 5*time.Millisecond, "bridge must give up and null the session")

	assert.Equal(t, StatusDisconnected, s.Status())
	assert.Equal(t, 3, s.Errors(), "exactly the retry cap of consecutive failures")

	// Terminal state requires a fresh Initialize; a working gateway recovers it.
	gw := newFakeGateway(t)
	b2 := newTestBridge(gw.url(), WithMaxRetries(3))
	defer b2.Disconnect()
	s2, err := b2.Initialize("token-a")
	require.NoError(t, err)
	waitConnected(t, s2)
}

func TestStrictModeSurfacesDialError(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	deadURL := "ws" + strings.TrimPrefix(dead.URL, "http")
	dead.Close()

	b := newTestBridge(deadURL, WithStrict(true))
	s, err := b.Initialize("token-a")
	assert.Error(t, err)
	assert.Nil(t, s)
	assert.Nil(t, b.Session())
}

func TestReconnectAfterDrop(t *testing.T) {
	gw := newFakeGateway(t)
	b := newTestBridge(gw.url())
	defer b.Disconnect()

	s, err := b.Initialize("token-a")
	require.NoError(t, err)
	waitConnected(t, s)
	gw.waitUpgrades(t, 1)

	gw.closeLast()

	require.Eventually(t, func() bool {
		return gw.upgradeCount() == 2 && s.Status() == StatusConnected
	}, 2*time.Second, 5*time.Millisecond, "bridge must redial after a dropped connection")
	assert.Same(t, s, b.Session(), "the session handle survives reconnects")
}

func TestDisconnectIsSafeWhenIdle(t *testing.T) {
	b := newTestBridge("ws://localhost:1")
	b.Disconnect()
	b.Disconnect()
	assert.Nil(t, b.Session())
}
