package events

import (
	"encoding/json"
	"fmt"
)

// Raw is the fallback for event names with no registered payload type. The
// bridge still routes these by name; interpreting the payload is on the
// subscriber.
type Raw struct {
	Name    string
	Payload json.RawMessage
}

// Decode converts a raw envelope payload into its typed value. Unknown names
// come back as a Raw rather than an error, preserving route-by-name behavior
// for vocabulary the portal does not model yet.
func Decode(name string, payload json.RawMessage) (any, error) {
	unmarshal := func(v any) (any, error) {
		if err := json.Unmarshal(payload, v); err != nil {
			return nil, fmt.Errorf("events: decode %s: %w", name, err)
		}
		return v, nil
	}

	switch name {
	case NameOrderStatusChanged:
		return unmarshal(&OrderStatusChangedV1{})
	case NameOrderLocationUpdated:
		return unmarshal(&OrderLocationUpdatedV1{})
	case NameAppointmentStatusChanged:
		return unmarshal(&AppointmentStatusChangedV1{})
	case NamePrescriptionCreated:
		return unmarshal(&PrescriptionCreatedV1{})
	case NameReportRequested:
		return unmarshal(&ReportRequestedV1{})
	case NameReportUploaded:
		return unmarshal(&ReportUploadedV1{})
	case NameMessageReceived:
		return unmarshal(&MessageReceivedV1{})
	case NameNotificationCreated:
		return unmarshal(&NotificationCreatedV1{})
	default:
		return &Raw{Name: name, Payload: payload}, nil
	}
}
