// Package publish delivers audit events describing clinically significant
// actions. Delivery is best-effort and happens after the domain commit; a
// failed publish is logged and never rolls back the mutation it describes.
package publish

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event kinds, matching the audit event types consumed downstream.
const (
	KindCreation        = "Patient created"
	KindView            = "Patient information viewed"
	KindUpdate          = "Patient information updated"
	KindClose           = "Patient information archived"
	KindStartMonitoring = "Started monitoring patient"
	KindStopMonitoring  = "Stopped monitoring patient"
	KindTermsAgreement  = "Patient terms agreement created"
)

// Event is one audit record.
type Event struct {
	Kind        string         `json:"event_type"`
	PatientID   uuid.UUID      `json:"-"`
	ClinicianID *string        `json:"-"`
	ProductID   *uuid.UUID     `json:"-"`
	RecordedAt  time.Time      `json:"-"`
	Extra       map[string]any `json:"-"`
}

// Body is the wire shape: the event type plus a flat data map.
func (e Event) Body() map[string]any {
	data := map[string]any{
		"patient_id": e.PatientID.String(),
	}
	if e.ClinicianID != nil {
		data["clinician_id"] = *e.ClinicianID
	}
	if e.ProductID != nil {
		data["product_id"] = e.ProductID.String()
	}
	if !e.RecordedAt.IsZero() {
		data["recorded_at"] = e.RecordedAt.UTC().Format(time.RFC3339)
	}
	for k, v := range e.Extra {
		data[k] = v
	}
	return map[string]any{
		"event_type": e.Kind,
		"event_data": data,
	}
}

// Publisher delivers audit events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// LogPublisher writes events to the log. It backs development setups and
// deployments without a broker.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	p.log.Info().
		Str("event_type", e.Kind).
		Str("patient_id", e.PatientID.String()).
		Msg("audit event")
	return nil
}
