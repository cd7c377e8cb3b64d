package publish

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestEventBody(t *testing.T) {
	pid := uuid.New()
	prodID := uuid.New()
	clinician := "clin-1"
	e := Event{
		Kind:        KindClose,
		PatientID:   pid,
		ClinicianID: &clinician,
		ProductID:   &prodID,
		RecordedAt:  time.Date(2023, 4, 1, 12, 0, 0, 0, time.UTC),
	}

	body := e.Body()
	if body["event_type"] != KindClose {
		t.Errorf("expected event_type %q, got %v", KindClose, body["event_type"])
	}
	data, ok := body["event_data"].(map[string]any)
	if !ok {
		t.Fatalf("expected event_data map, got %T", body["event_data"])
	}
	if data["patient_id"] != pid.String() {
		t.Errorf("expected patient_id %s, got %v", pid, data["patient_id"])
	}
	if data["clinician_id"] != "clin-1" {
		t.Errorf("expected clinician_id, got %v", data["clinician_id"])
	}
	if data["product_id"] != prodID.String() {
		t.Errorf("expected product_id, got %v", data["product_id"])
	}
	if data["recorded_at"] != "2023-04-01T12:00:00Z" {
		t.Errorf("unexpected recorded_at: %v", data["recorded_at"])
	}
}

func TestEventKinds_MatchConsumerContract(t *testing.T) {
	// Downstream audit consumers key on these exact strings.
	pairs := []struct{ got, want string }{
		{KindCreation, "Patient created"},
		{KindView, "Patient information viewed"},
		{KindUpdate, "Patient information updated"},
		{KindClose, "Patient information archived"},
		{KindStartMonitoring, "Started monitoring patient"},
		{KindStopMonitoring, "Stopped monitoring patient"},
		{KindTermsAgreement, "Patient terms agreement created"},
	}
	for _, p := range pairs {
		if p.got != p.want {
			t.Errorf("expected event type %q, got %q", p.want, p.got)
		}
	}
}

func TestEventBody_OmitsEmptyFields(t *testing.T) {
	e := Event{Kind: KindView, PatientID: uuid.New()}
	data := e.Body()["event_data"].(map[string]any)
	if _, ok := data["clinician_id"]; ok {
		t.Error("expected clinician_id to be omitted")
	}
	if _, ok := data["product_id"]; ok {
		t.Error("expected product_id to be omitted")
	}
	if _, ok := data["recorded_at"]; ok {
		t.Error("expected recorded_at to be omitted")
	}
}
