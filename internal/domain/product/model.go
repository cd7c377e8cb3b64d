package product

import (
	"time"

	"github.com/google/uuid"
)

// Enrollment maps to the dh_product table: one patient's enrollment in a
// named product. A patient has at most one open enrollment per product;
// reopening after closure means a new enrollment row.
type Enrollment struct {
	ID                   uuid.UUID  `db:"id" json:"id"`
	PatientID            uuid.UUID  `db:"patient_id" json:"patient_id"`
	ProductName          string     `db:"product_name" json:"product_name"`
	OpenedDate           time.Time  `db:"opened_date" json:"opened_date"`
	ClosedDate           *time.Time `db:"closed_date" json:"closed_date,omitempty"`
	ClosedReason         *string    `db:"closed_reason" json:"closed_reason,omitempty"`
	ClosedReasonOther    *string    `db:"closed_reason_other" json:"closed_reason_other,omitempty"`
	MonitoredByClinician bool       `db:"monitored_by_clinician" json:"monitored_by_clinician"`
	Changes              []Change   `db:"-" json:"changes,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// Change maps to the dh_product_change table, the append-only trail of
// lifecycle events on an enrollment.
type Change struct {
	ID           uuid.UUID `db:"id" json:"id"`
	EnrollmentID uuid.UUID `db:"product_id" json:"product_id"`
	Event        string    `db:"event" json:"event"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Lifecycle change events.
const (
	EventArchive         = "archive"
	EventStartMonitoring = "start monitoring"
	EventStopMonitoring  = "stop monitoring"
)

// Closure reason codes.
const (
	// ClosedReasonCreatedInError marks a patient that was created in error.
	// Enrollments closed with it are hidden from inactive listings unless
	// explicitly requested.
	ClosedReasonCreatedInError = "D0000034"

	// ClosedReasonOtherCode requires free text in closed_reason_other.
	ClosedReasonOtherCode = "other"
)

// Open reports whether the enrollment has not been closed.
func (e *Enrollment) Open() bool {
	return e.ClosedDate == nil
}
