// Package push fans realtime events out to connected browsers.
//
// Each authenticated patient may hold one or more WebSocket connections to
// the portal. The hub forwards gateway events (orders, appointments,
// prescriptions, reports, messages, notifications) and local cart-change
// notices to every connection belonging to that patient.
package push

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	EventBus "github.com/asaskevich/EventBus"
	"github.com/gorilla/websocket"

	"github.com/curelink/patient-portal/internal/cart"
	"github.com/curelink/patient-portal/internal/events"
	"github.com/curelink/patient-portal/internal/realtime"
	"github.com/curelink/patient-portal/internal/session"
	"github.com/curelink/patient-portal/pkg/logging"
)

// Frame is the envelope delivered to browsers.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Hub manages patient WebSocket connections.
type Hub struct {
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]map[*wsConn]struct{} // patientID -> connections
}

type wsConn struct {
	conn *websocket.Conn

	wmu sync.Mutex // one writer at a time
}

// NewHub creates a push hub.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		logger: logger.WithComponent("push"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Browsers hit this endpoint cross-origin from the portal SPA;
			// auth is enforced by the JWT middleware, not the Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[string]map[*wsConn]struct{}),
	}
}

// HandleWebSocket upgrades the request and keeps the connection registered
// until the browser goes away. The patient identity comes from the request
// context set by the auth middleware.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	patientID, ok := session.PatientIDFromContext(r.Context())
	if !ok || patientID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("push: upgrade failed", "error", err, "patient_id", patientID)
		return
	}

	// Server-level read deadlines set before the hijack would otherwise
	// expire this long-lived connection.
	_ = conn.SetReadDeadline(time.Time{})

	c := &wsConn{conn: conn}
	h.register(patientID, c)
	h.logger.Info("push: connected", "patient_id", patientID)

	// Reads are only consumed to detect disconnects; the portal does not
	// accept inbound frames on this endpoint.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.unregister(patientID, c)
	_ = conn.Close()
	h.logger.Info("push: disconnected", "patient_id", patientID)
}

func (h *Hub) register(patientID string, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.conns[patientID]
	if set == nil {
		set = make(map[*wsConn]struct{})
		h.conns[patientID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(patientID string, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.conns[patientID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, patientID)
		}
	}
}

// SendToPatient delivers a frame to every connection held by the patient.
// Connections that fail to accept the write are dropped.
func (h *Hub) SendToPatient(patientID, event string, data any) {
	h.mu.RLock()
	set := h.conns[patientID]
	targets := make([]*wsConn, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	payload, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		h.logger.Warn("push: marshal frame", "error", err, "event", event)
		return
	}

	for _, c := range targets {
		c.wmu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		err := c.conn.WriteMessage(websocket.TextMessage, payload)
		c.wmu.Unlock()
		if err != nil {
			h.unregister(patientID, c)
			_ = c.conn.Close()
		}
	}
}

// Connected reports how many connections the patient currently holds.
func (h *Hub) Connected(patientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[patientID])
}

// AttachBridge forwards every named gateway event through the hub. Payloads
// that carry a patient ID are routed to that patient only; the returned
// function detaches the subscriptions.
func (h *Hub) AttachBridge(bridge *realtime.Bridge) func() {
	names := []string{
		events.NameOrderStatusChanged,
		events.NameOrderLocationUpdated,
		events.NameAppointmentStatusChanged,
		events.NamePrescriptionCreated,
		events.NameReportRequested,
		events.NameReportUploaded,
		events.NameMessageReceived,
		events.NameNotificationCreated,
	}
	offs := make([]func(), 0, len(names))
	for _, name := range names {
		name := name
		offs = append(offs, bridge.On(name, func(payload any) {
			h.route(name, payload)
		}))
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

// route resolves the target patient from the payload and forwards the frame.
// Payloads without a recognizable patient ID are dropped.
func (h *Hub) route(event string, payload any) {
	patientID := patientIDOf(payload)
	if patientID == "" {
		h.logger.Debug("push: no patient on event", "event", event)
		return
	}
	h.SendToPatient(patientID, event, payload)
}

// AttachCartBus mirrors local cart mutations to the owning patient so other
// tabs refresh their cart view. Returns a detach function.
func (h *Hub) AttachCartBus(bus EventBus.Bus) func() {
	handler := func(patientID string) {
		h.SendToPatient(patientID, cart.TopicCartUpdated, nil)
	}
	if err := bus.Subscribe(cart.TopicCartUpdated, handler); err != nil {
		h.logger.Warn("push: subscribe cart bus", "error", err)
		return func() {}
	}
	return func() {
		_ = bus.Unsubscribe(cart.TopicCartUpdated, handler)
	}
}

func patientIDOf(payload any) string {
	switch p := payload.(type) {
	case *events.OrderStatusChangedV1:
		return p.PatientID
	case *events.OrderLocationUpdatedV1:
		return p.PatientID
	case *events.AppointmentStatusChangedV1:
		return p.PatientID
	case *events.PrescriptionCreatedV1:
		return p.PatientID
	case *events.ReportRequestedV1:
		return p.PatientID
	case *events.ReportUploadedV1:
		return p.PatientID
	case *events.MessageReceivedV1:
		return p.PatientID
	case *events.NotificationCreatedV1:
		return p.PatientID
	case *events.Raw:
		var probe struct {
			PatientID string `json:"patient_id"`
		}
		if err := json.Unmarshal(p.Payload, &probe); err == nil {
			return probe.PatientID
		}
	}
	return ""
}
