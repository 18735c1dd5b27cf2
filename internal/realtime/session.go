package realtime

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Status is the lifecycle state of a push connection.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// Session is the handle for one live push connection. The same handle
// survives automatic reconnects; only an explicit Disconnect or a token
// change retires it.
type Session struct {
	mu     sync.Mutex
	token  string
	status Status
	errors int
	conn   *websocket.Conn
}

func newSession(token string) *Session {
	return &Session{token: token, status: StatusConnecting}
}

// Token returns the bearer token the session was opened with.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Status returns the current connection status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Errors returns the count of consecutive connection failures.
func (s *Session) Errors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors
}

func (s *Session) setConnected(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
	s.status = StatusConnected
	s.errors = 0
}

func (s *Session) setConnecting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusConnecting
}

func (s *Session) recordError() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
	s.status = StatusError
	return s.errors
}

func (s *Session) close(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.status = status
}

func (s *Session) connection() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}
