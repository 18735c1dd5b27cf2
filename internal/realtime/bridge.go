// Package realtime owns the portal's single live connection to the push
// gateway. Pages subscribe to named server-pushed events through the bridge
// instead of each managing connection lifecycle; the bridge handles bounded
// reconnection and gives up after repeated failures rather than retrying
// forever against an unreachable gateway.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/curelink/patient-portal/internal/events"
	"github.com/curelink/patient-portal/internal/observability/metrics"
	"github.com/curelink/patient-portal/pkg/logging"
)

const (
	defaultMaxRetries     = 4
	defaultBackoffBase    = 2 * time.Second
	defaultConnectTimeout = 10 * time.Second
)

// Handler receives a decoded event payload: one of the typed structs from
// internal/events, or *events.Raw for unmodelled names. Panics inside a
// handler are the subscriber's responsibility; the bridge does not isolate
// them.
type Handler func(evt any)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Bridge owns at most one live push connection. It is an explicit object
// with injected dependencies, not a package-level singleton, so tests and
// multi-instance setups stay safe.
type Bridge struct {
	gatewayURL     string
	logger         *logging.Logger
	metrics        *metrics.RealtimeMetrics
	maxRetries     int
	backoffBase    time.Duration
	connectTimeout time.Duration
	strict         bool

	mu      sync.Mutex
	session *Session
	gen     int

	hmu      sync.Mutex
	handlers map[string]map[int]Handler
	nextID   int
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithMaxRetries caps consecutive connection failures before the bridge
// reaches its terminal disconnected state.
func WithMaxRetries(n int) BridgeOption {
	return func(b *Bridge) {
		if n > 0 {
			b.maxRetries = n
		}
	}
}

// WithBackoffBase sets the base delay between reconnection attempts; each
// attempt doubles it.
func WithBackoffBase(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		if d > 0 {
			b.backoffBase = d
		}
	}
}

// WithConnectTimeout bounds the websocket handshake.
func WithConnectTimeout(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		if d > 0 {
			b.connectTimeout = d
		}
	}
}

// WithMetrics attaches realtime metrics.
func WithMetrics(m *metrics.RealtimeMetrics) BridgeOption {
	return func(b *Bridge) { b.metrics = m }
}

// WithStrict makes Initialize return the first dial error instead of
// retrying in the background.
func WithStrict(strict bool) BridgeOption {
	return func(b *Bridge) { b.strict = strict }
}

// NewBridge creates a bridge for the given push gateway URL.
func NewBridge(gatewayURL string, logger *logging.Logger, opts ...BridgeOption) *Bridge {
	if logger == nil {
		logger = logging.Default()
	}
	b := &Bridge{
		gatewayURL:     gatewayURL,
		logger:         logger,
		maxRetries:     defaultMaxRetries,
		backoffBase:    defaultBackoffBase,
		connectTimeout: defaultConnectTimeout,
		handlers:       make(map[string]map[int]Handler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Initialize opens the push connection for the given bearer token. With a
// live session and the same token it returns the existing handle without
// dialing again; a different token tears the old connection down first. An
// empty token returns nil with no error (guard, not failure).
//
// The first dial happens synchronously. In lenient mode a failed first dial
// still returns the session in its connecting state and retries continue in
// the background; in strict mode the dial error is returned.
func (b *Bridge) Initialize(token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}

	b.mu.Lock()
	if s := b.session; s != nil {
		if s.Token() == token {
			b.mu.Unlock()
			return s, nil
		}
		// Token changed: retire the old connection before dialing anew.
		b.gen++
		s.close(StatusDisconnected)
		b.session = nil
		b.metrics.SetConnected(false)
	}
	b.gen++
	gen := b.gen
	session := newSession(token)
	b.session = session
	b.mu.Unlock()

	conn, err := b.dial(token)
	if err != nil {
		session.recordError()
		b.metrics.ObserveConnect("failure")
		if b.strict {
			b.retire(session, gen, StatusDisconnected)
			return nil, err
		}
		b.logger.Warn("realtime: initial connect failed, retrying", "error", err)
		go b.reconnect(session, gen, token)
		return session, nil
	}

	b.attach(session, gen, conn)
	return session, nil
}

// Disconnect removes all event handlers, closes the transport, and forgets
// the session. Safe to call when nothing is connected.
func (b *Bridge) Disconnect() {
	b.hmu.Lock()
	b.handlers = make(map[string]map[int]Handler)
	b.hmu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.gen++
	if b.session != nil {
		b.session.close(StatusDisconnected)
		b.session = nil
		b.metrics.SetConnected(false)
	}
}

// Session returns the current session handle, or nil when uninitialized or
// terminally disconnected.
func (b *Bridge) Session() *Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// On registers a handler for a named server-pushed event and returns its
// unsubscribe function. Events that arrive before registration are not
// replayed.
func (b *Bridge) On(name string, h Handler) func() {
	b.hmu.Lock()
	defer b.hmu.Unlock()
	if b.handlers[name] == nil {
		b.handlers[name] = make(map[int]Handler)
	}
	b.nextID++
	id := b.nextID
	b.handlers[name][id] = h
	return func() {
		b.hmu.Lock()
		defer b.hmu.Unlock()
		delete(b.handlers[name], id)
	}
}

// Off removes every handler registered for the named event.
func (b *Bridge) Off(name string) {
	b.hmu.Lock()
	defer b.hmu.Unlock()
	delete(b.handlers, name)
}

func (b *Bridge) dial(token string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: b.connectTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := dialer.Dial(b.gatewayURL, header)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, err
	}
	return conn, nil
}

// attach marks the session connected and starts its read loop, unless the
// bridge has moved on (disconnect or token change) while dialing.
func (b *Bridge) attach(session *Session, gen int, conn *websocket.Conn) {
	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		_ = conn.Close()
		return
	}
	session.setConnected(conn)
	b.mu.Unlock()

	b.metrics.ObserveConnect("success")
	b.metrics.SetConnected(true)
	b.logger.Info("realtime: connected", "gateway", b.gatewayURL)
	go b.readLoop(session, gen, conn)
}

func (b *Bridge) readLoop(session *Session, gen int, conn *websocket.Conn) {
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			b.metrics.SetConnected(false)
			if !b.current(gen) {
				return
			}
			b.logger.Warn("realtime: connection dropped", "error", err)
			session.setConnecting()
			b.reconnect(session, gen, session.Token())
			return
		}
		b.dispatch(env)
	}
}

func (b *Bridge) dispatch(env envelope) {
	evt, err := events.Decode(env.Event, env.Data)
	if err != nil {
		b.logger.Warn("realtime: undecodable event payload", "event", env.Event, "error", err)
		return
	}
	b.metrics.ObserveEvent(env.Event)

	b.hmu.Lock()
	registered := make([]Handler, 0, len(b.handlers[env.Event]))
	for _, h := range b.handlers[env.Event] {
		registered = append(registered, h)
	}
	b.hmu.Unlock()

	for _, h := range registered {
		h(evt)
	}
}

// reconnect retries the connection with exponential backoff until it either
// succeeds or the consecutive-failure count reaches the cap, at which point
// the bridge disconnects for good and waits for a fresh Initialize.
func (b *Bridge) reconnect(session *Session, gen int, token string) {
	delay := b.backoffBase
	for {
		if !b.current(gen) {
			return
		}
		if session.Errors() >= b.maxRetries {
			b.logger.Error("realtime: giving up after repeated connection failures",
				"failures", session.Errors(), "gateway", b.gatewayURL)
			b.metrics.ObserveTerminal()
			b.retire(session, gen, StatusDisconnected)
			return
		}

		time.Sleep(delay)
		delay *= 2

		if !b.current(gen) {
			return
		}
		conn, err := b.dial(token)
		if err != nil {
			session.recordError()
			b.metrics.ObserveConnect("failure")
			b.logger.Warn("realtime: reconnect failed", "error", err, "failures", session.Errors())
			continue
		}
		b.attach(session, gen, conn)
		return
	}
}

// retire closes the session and forgets it if it is still the current one.
func (b *Bridge) retire(session *Session, gen int, status Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	session.close(status)
	if b.gen == gen && b.session == session {
		b.session = nil
		b.metrics.SetConnected(false)
	}
}

func (b *Bridge) current(gen int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gen == gen
}
