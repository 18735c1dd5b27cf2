// Package events defines the server-pushed event vocabulary the portal
// consumes over the realtime bridge. Each event name carries a versioned
// payload type; Decode maps a raw envelope payload to its typed form.
package events

import "time"

// Event names as sent by the push gateway.
const (
	NameOrderStatusChanged       = "order:status"
	NameOrderLocationUpdated     = "order:location"
	NameAppointmentStatusChanged = "appointment:status"
	NamePrescriptionCreated      = "prescription:created"
	NameReportRequested          = "report:requested"
	NameReportUploaded           = "report:uploaded"
	NameMessageReceived          = "message:new"
	NameNotificationCreated      = "notification:new"
)

type OrderStatusChangedV1 struct {
	EventID   string    `json:"event_id"`
	OrderID   string    `json:"order_id"`
	PatientID string    `json:"patient_id"`
	Status    string    `json:"status"` // placed, confirmed, dispatched, delivered, cancelled
	OccurredAt time.Time `json:"occurred_at"`
}

// OrderLocationUpdatedV1 carries the live delivery position for an order in
// transit.
type OrderLocationUpdatedV1 struct {
	EventID   string    `json:"event_id"`
	OrderID   string    `json:"order_id"`
	PatientID string    `json:"patient_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AppointmentStatusChangedV1 struct {
	EventID       string    `json:"event_id"`
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id"`
	DoctorName    string    `json:"doctor_name,omitempty"`
	Status        string    `json:"status"` // requested, confirmed, completed, cancelled
	ScheduledFor  time.Time `json:"scheduled_for,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type PrescriptionCreatedV1 struct {
	EventID        string    `json:"event_id"`
	PrescriptionID string    `json:"prescription_id"`
	PatientID      string    `json:"patient_id"`
	DoctorName     string    `json:"doctor_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type ReportRequestedV1 struct {
	EventID     string    `json:"event_id"`
	ReportID    string    `json:"report_id"`
	PatientID   string    `json:"patient_id"`
	ReportType  string    `json:"report_type,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

type ReportUploadedV1 struct {
	EventID    string    `json:"event_id"`
	ReportID   string    `json:"report_id"`
	PatientID  string    `json:"patient_id"`
	FileURL    string    `json:"file_url,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type MessageReceivedV1 struct {
	EventID        string    `json:"event_id"`
	ConversationID string    `json:"conversation_id"`
	PatientID      string    `json:"patient_id"`
	SenderID       string    `json:"sender_id"`
	SenderRole     string    `json:"sender_role"` // doctor, patient
	Body           string    `json:"body"`
	SentAt         time.Time `json:"sent_at"`
}

type NotificationCreatedV1 struct {
	EventID        string    `json:"event_id"`
	NotificationID string    `json:"notification_id"`
	PatientID      string    `json:"patient_id"`
	Title          string    `json:"title"`
	Body           string    `json:"body,omitempty"`
	Kind           string    `json:"kind,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
