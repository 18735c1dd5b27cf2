// Package portalapi is the HTTP client for the portal backend: the
// appointments, orders, prescriptions, notifications, invoices, and
// consultation endpoints the portal pages fetch from. The backend is an
// opaque REST service; this client only shapes requests and responses.
package portalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/curelink/patient-portal/pkg/logging"
)

// Client is a bearer-token HTTP client for the portal backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logging.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a backend client. The token authenticates the patient
// session and is sent as a bearer token on every request.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListAppointments returns the patient's appointments.
func (c *Client) ListAppointments(ctx context.Context) ([]Appointment, error) {
	var out []Appointment
	if err := c.do(ctx, http.MethodGet, "/api/appointments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// BookAppointment requests a new consultation slot.
func (c *Client) BookAppointment(ctx context.Context, req BookAppointmentRequest) (*Appointment, error) {
	var out Appointment
	if err := c.do(ctx, http.MethodPost, "/api/appointments", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelAppointment cancels an existing appointment.
func (c *Client) CancelAppointment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/appointments/"+id, nil, nil)
}

// ListOrders returns the patient's medicine orders.
func (c *Client) ListOrders(ctx context.Context) ([]Order, error) {
	var out []Order
	if err := c.do(ctx, http.MethodGet, "/api/orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetOrder returns one order, including the live delivery location when the
// order is in transit.
func (c *Client) GetOrder(ctx context.Context, id string) (*Order, error) {
	var out Order
	if err := c.do(ctx, http.MethodGet, "/api/orders/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PlaceOrder submits one per-pharmacy order draft.
func (c *Client) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	var out Order
	if err := c.do(ctx, http.MethodPost, "/api/orders", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchMedicines queries the storefront catalog. An empty query lists the
// full catalog page the backend returns.
func (c *Client) SearchMedicines(ctx context.Context, query string) ([]Medicine, error) {
	path := "/api/medicines"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var out []Medicine
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListReports returns the patient's diagnostic reports, requested and
// uploaded alike.
func (c *Client) ListReports(ctx context.Context) ([]Report, error) {
	var out []Report
	if err := c.do(ctx, http.MethodGet, "/api/reports", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPrescriptions returns the patient's prescriptions.
func (c *Client) ListPrescriptions(ctx context.Context) ([]Prescription, error) {
	var out []Prescription
	if err := c.do(ctx, http.MethodGet, "/api/prescriptions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListNotifications returns the patient's notifications, newest first.
func (c *Client) ListNotifications(ctx context.Context) ([]Notification, error) {
	var out []Notification
	if err := c.do(ctx, http.MethodGet, "/api/notifications", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkNotificationRead flags a notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, "/api/notifications/"+id+"/read", nil, nil)
}

// ListInvoices returns the patient's invoices with download links.
func (c *Client) ListInvoices(ctx context.Context) ([]Invoice, error) {
	var out []Invoice
	if err := c.do(ctx, http.MethodGet, "/api/invoices", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMessages returns a consultation's chat history.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	var out []Message
	if err := c.do(ctx, http.MethodGet, "/api/conversations/"+conversationID+"/messages", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessage posts a chat message to a consultation.
func (c *Client) SendMessage(ctx context.Context, conversationID, body string) (*Message, error) {
	req := struct {
		Body string `json:"body"`
	}{Body: body}
	var out Message
	if err := c.do(ctx, http.MethodPost, "/api/conversations/"+conversationID+"/messages", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("portalapi: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("portalapi: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("portalapi: request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("portalapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("portalapi: %s %s failed with status %d: %s", method, path, resp.StatusCode, string(snippet))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("portalapi: decode %s response: %w", path, err)
	}
	return nil
}
