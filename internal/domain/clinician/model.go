package clinician

import (
	"time"

	"github.com/google/uuid"
)

// Clinician is a care professional. The service keeps the minimal entity
// needed as a legacy migration target and for audit attribution; the users
// API owns the authoritative profile.
type Clinician struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	FirstName           string     `db:"first_name" json:"first_name"`
	LastName            string     `db:"last_name" json:"last_name"`
	EmailAddress        string     `db:"email_address" json:"email_address"`
	PhoneNumber         *string    `db:"phone_number" json:"phone_number,omitempty"`
	JobTitle            *string    `db:"job_title" json:"job_title,omitempty"`
	NHSSmartcardNumber  *string    `db:"nhs_smartcard_number" json:"nhs_smartcard_number,omitempty"`
	SendEntryIdentifier *string    `db:"send_entry_identifier" json:"send_entry_identifier,omitempty"`
	LoginActive         bool       `db:"login_active" json:"login_active"`
	ContractExpiry      *time.Time `db:"contract_expiry_eod_date" json:"contract_expiry_eod_date,omitempty"`
	Groups              []string   `db:"-" json:"groups,omitempty"`
	Products            []*Product `db:"-" json:"products,omitempty"`
	Locations           []uuid.UUID `db:"-" json:"locations,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// Product is a clinician's membership of a product.
type Product struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	ClinicianID uuid.UUID  `db:"clinician_id" json:"clinician_id"`
	ProductName string     `db:"product_name" json:"product_name"`
	OpenedDate  time.Time  `db:"opened_date" json:"opened_date"`
	ClosedDate  *time.Time `db:"closed_date" json:"closed_date,omitempty"`
}
