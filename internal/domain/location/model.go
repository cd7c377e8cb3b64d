package location

import (
	"time"

	"github.com/google/uuid"
)

// Location maps to the location table. Path is the materialized ancestor
// path, "/<root-id>/.../<own-id>/", maintained on insert so that descendant
// queries are a single indexed prefix scan.
type Location struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	LocationType string     `db:"location_type" json:"location_type"`
	ODSCode      *string    `db:"ods_code" json:"ods_code,omitempty"`
	DisplayName  string     `db:"display_name" json:"display_name"`
	ParentID     *uuid.UUID `db:"parent_id" json:"parent_id,omitempty"`
	Path         string     `db:"path" json:"-"`
	Active       bool       `db:"active" json:"active"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Known location types, most to least general. Children must carry a
// strictly more specific type than their parent; roots must be hospitals.
const (
	TypeHospital = "hospital"
	TypeWard     = "ward"
	TypeBay      = "bay"
	TypeBed      = "bed"
)

var typeRank = map[string]int{
	TypeHospital: 0,
	TypeWard:     1,
	TypeBay:      2,
	TypeBed:      3,
}

// PatientSummary is the projection returned by the per-location patient
// listing. The full aggregate lives in the patient package; this listing
// joins across patient and enrollment rows without loading the record.
type PatientSummary struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	FirstName      string     `db:"first_name" json:"first_name"`
	LastName       string     `db:"last_name" json:"last_name"`
	NHSNumber      *string    `db:"nhs_number" json:"nhs_number,omitempty"`
	HospitalNumber *string    `db:"hospital_number" json:"hospital_number,omitempty"`
	DOB            *time.Time `db:"dob" json:"dob,omitempty"`
	OpenedDate     time.Time  `db:"opened_date" json:"opened_date"`
	ClosedDate     *time.Time `db:"closed_date" json:"closed_date,omitempty"`
	ClosedReason   *string    `db:"closed_reason" json:"closed_reason,omitempty"`
}

// Patient status filters for ListPatients.
const (
	StatusActive                   = "active"
	StatusInactive                 = "inactive"
	StatusInactiveIncludingInError = "inactive_including_created_in_error"
)
