package session

import "context"

type ctxKey string

const (
	patientKey ctxKey = "portal.patient_id"
	tokenKey   ctxKey = "portal.token"
)

// WithPatientID stores the authenticated patient id in context.
func WithPatientID(ctx context.Context, patientID string) context.Context {
	return context.WithValue(ctx, patientKey, patientID)
}

// PatientIDFromContext extracts the patient id if present.
func PatientIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(patientKey)
	if val == nil {
		return "", false
	}
	patientID, ok := val.(string)
	return patientID, ok && patientID != ""
}

// WithToken stores the raw bearer token in context, for calls that fan out
// to the backend on the patient's behalf.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFromContext extracts the bearer token if present.
func TokenFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(tokenKey)
	if val == nil {
		return "", false
	}
	token, ok := val.(string)
	return token, ok && token != ""
}
