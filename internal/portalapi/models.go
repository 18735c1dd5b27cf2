package portalapi

import "time"

// Appointment is a consultation slot booked by the patient.
type Appointment struct {
	ID           string    `json:"id"`
	DoctorID     string    `json:"doctor_id"`
	DoctorName   string    `json:"doctor_name"`
	Speciality   string    `json:"speciality,omitempty"`
	Status       string    `json:"status"` // requested, confirmed, completed, cancelled
	ScheduledFor time.Time `json:"scheduled_for"`
	Reason       string    `json:"reason,omitempty"`
}

// BookAppointmentRequest requests a new consultation slot.
type BookAppointmentRequest struct {
	DoctorID     string    `json:"doctor_id"`
	ScheduledFor time.Time `json:"scheduled_for"`
	Reason       string    `json:"reason,omitempty"`
}

// OrderItem is one medicine line inside a placed order.
type OrderItem struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// DeliveryLocation is the courier's last reported position.
type DeliveryLocation struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Order is a medicine order fulfilled by a single pharmacy.
type Order struct {
	ID               string            `json:"id"`
	PharmacyID       string            `json:"pharmacy_id"`
	PharmacyName     string            `json:"pharmacy_name,omitempty"`
	Status           string            `json:"status"` // placed, confirmed, dispatched, delivered, cancelled
	Items            []OrderItem       `json:"items"`
	ItemTotalCents   int64             `json:"item_total_cents"`
	DeliveryFeeCents int64             `json:"delivery_fee_cents"`
	TotalCents       int64             `json:"total_cents"`
	PrescriptionID   string            `json:"prescription_id,omitempty"`
	DeliveryLocation *DeliveryLocation `json:"delivery_location,omitempty"`
	PlacedAt         time.Time         `json:"placed_at"`
}

// PlaceOrderRequest submits one per-pharmacy order built at checkout.
type PlaceOrderRequest struct {
	DraftID          string      `json:"draft_id"`
	PharmacyID       string      `json:"pharmacy_id"`
	Items            []OrderItem `json:"items"`
	ItemTotalCents   int64       `json:"item_total_cents"`
	DeliveryFeeCents int64       `json:"delivery_fee_cents"`
	PrescriptionID   string      `json:"prescription_id,omitempty"`
	AddressID        string      `json:"address_id"`
}

// Medicine is one storefront catalog entry.
type Medicine struct {
	ProductID            string `json:"product_id"`
	PharmacyID           string `json:"pharmacy_id"`
	Name                 string `json:"name"`
	Composition          string `json:"composition,omitempty"`
	Brand                string `json:"brand,omitempty"`
	Category             string `json:"category,omitempty"`
	PriceCents           int64  `json:"price_cents"`
	MRPCents             int64  `json:"mrp_cents,omitempty"`
	DiscountPercent      int    `json:"discount_percent,omitempty"`
	AvailableQuantity    int    `json:"available_quantity"`
	PrescriptionRequired bool   `json:"prescription_required"`
}

// Report is a diagnostic report requested by a doctor.
type Report struct {
	ID          string    `json:"id"`
	ReportType  string    `json:"report_type,omitempty"`
	Status      string    `json:"status"` // requested, uploaded
	FileURL     string    `json:"file_url,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
	UploadedAt  time.Time `json:"uploaded_at,omitempty"`
}

// Prescription is a doctor-issued prescription record.
type Prescription struct {
	ID         string    `json:"id"`
	DoctorName string    `json:"doctor_name"`
	Diagnosis  string    `json:"diagnosis,omitempty"`
	FileURL    string    `json:"file_url,omitempty"`
	IssuedAt   time.Time `json:"issued_at"`
}

// Notification is a portal notification for the patient.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Invoice is a billing record; rendering stays server-side, the portal only
// links to the download.
type Invoice struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id,omitempty"`
	AmountCents int64     `json:"amount_cents"`
	DownloadURL string    `json:"download_url"`
	IssuedAt    time.Time `json:"issued_at"`
}

// Message is one consultation chat message.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderRole     string    `json:"sender_role"` // doctor, patient
	Body           string    `json:"body"`
	SentAt         time.Time `json:"sent_at"`
}
