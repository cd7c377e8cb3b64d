package patient

import (
	"time"

	"github.com/google/uuid"

	"github.com/dhos/dhos/internal/domain/product"
)

// Patient is the aggregate root. Everything below Record is owned by the
// patient and only reachable through it; enrollments are owned rows managed
// by the product lifecycle; babies referenced from deliveries are independent
// patients linked by a weak back-reference.
type Patient struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientType     string     `db:"patient_type" json:"patient_type"`
	FirstName       string     `db:"first_name" json:"first_name"`
	LastName        string     `db:"last_name" json:"last_name"`
	PhoneNumber     *string    `db:"phone_number" json:"phone_number,omitempty"`
	DOB             *time.Time `db:"dob" json:"dob,omitempty"`
	DOD             *time.Time `db:"dod" json:"dod,omitempty"`
	NHSNumber       *string    `db:"nhs_number" json:"nhs_number,omitempty"`
	HospitalNumber  *string    `db:"hospital_number" json:"hospital_number,omitempty"`
	EmailAddress    *string    `db:"email_address" json:"email_address,omitempty"`
	Ethnicity       *string    `db:"ethnicity" json:"ethnicity,omitempty"`
	Sex             *string    `db:"sex" json:"sex,omitempty"`
	AllowedToText   *bool      `db:"allowed_to_text" json:"allowed_to_text,omitempty"`
	AllowedToEmail  *bool      `db:"allowed_to_email" json:"allowed_to_email,omitempty"`
	OtherNotes      *string    `db:"other_notes" json:"other_notes,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`

	Locations           []uuid.UUID           `db:"-" json:"locations,omitempty"`
	BookmarkedLocations []uuid.UUID           `db:"-" json:"bookmarked_locations,omitempty"`
	Record              *Record               `db:"-" json:"record,omitempty"`
	Products            []*product.Enrollment `db:"-" json:"dh_products,omitempty"`
	TermsAgreements     []*TermsAgreement     `db:"-" json:"terms_agreements,omitempty"`
}

// Patient types.
const (
	TypeRegular = "regular"
	TypeBaby    = "baby"
	TypeSend    = "send"
)

// Record holds the clinical history owned by exactly one patient.
type Record struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	PatientID   uuid.UUID    `db:"patient_id" json:"patient_id"`
	Notes       []*Note      `db:"-" json:"notes,omitempty"`
	Diagnoses   []*Diagnosis `db:"-" json:"diagnoses,omitempty"`
	Pregnancies []*Pregnancy `db:"-" json:"pregnancies,omitempty"`
	History     *History     `db:"-" json:"history,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

type Note struct {
	ID            uuid.UUID `db:"id" json:"id"`
	RecordID      uuid.UUID `db:"record_id" json:"record_id"`
	Content       string    `db:"content" json:"content"`
	ClinicianUUID *string   `db:"clinician_uuid" json:"clinician_uuid,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

type History struct {
	ID        uuid.UUID `db:"id" json:"id"`
	RecordID  uuid.UUID `db:"record_id" json:"record_id"`
	Parity    *int      `db:"parity" json:"parity,omitempty"`
	Gravidity *int      `db:"gravidity" json:"gravidity,omitempty"`
}

type Diagnosis struct {
	ID                 uuid.UUID       `db:"id" json:"id"`
	RecordID           uuid.UUID       `db:"record_id" json:"record_id"`
	SCTCode            string          `db:"sct_code" json:"sct_code"`
	DiagnosisOther     *string         `db:"diagnosis_other" json:"diagnosis_other,omitempty"`
	Diagnosed          *time.Time      `db:"diagnosed" json:"diagnosed,omitempty"`
	Resolved           *time.Time      `db:"resolved" json:"resolved,omitempty"`
	Presented          *time.Time      `db:"presented" json:"presented,omitempty"`
	Episode            *int            `db:"episode" json:"episode,omitempty"`
	DiagnosisTool      []string        `db:"diagnosis_tool" json:"diagnosis_tool,omitempty"`
	DiagnosisToolOther *string         `db:"diagnosis_tool_other" json:"diagnosis_tool_other,omitempty"`
	RiskFactors        []string        `db:"risk_factors" json:"risk_factors,omitempty"`
	ManagementPlan     *ManagementPlan `db:"-" json:"management_plan,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

type ManagementPlan struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	DiagnosisID uuid.UUID      `db:"diagnosis_id" json:"diagnosis_id"`
	SCTCode     string         `db:"sct_code" json:"sct_code"`
	StartDate   *time.Time     `db:"start_date" json:"start_date,omitempty"`
	EndDate     *time.Time     `db:"end_date" json:"end_date,omitempty"`
	Doses       []*Dose        `db:"-" json:"doses,omitempty"`
	DoseHistory []*DoseHistory `db:"-" json:"dose_history,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// Dose is immutable once created apart from the soft-delete flag. Amending a
// dose means appending a replacement; the slice order is the change history,
// latest last.
type Dose struct {
	ID               uuid.UUID `db:"id" json:"id"`
	ManagementPlanID uuid.UUID `db:"management_plan_id" json:"management_plan_id"`
	MedicationID     string    `db:"medication_id" json:"medication_id"`
	DoseAmount       *float64  `db:"dose_amount" json:"dose_amount,omitempty"`
	RoutineSCTCode   *string   `db:"routine_sct_code" json:"routine_sct_code,omitempty"`
	Deleted          bool      `db:"deleted" json:"deleted"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// DoseHistory is the append-only trail of dose actions on a plan.
type DoseHistory struct {
	ID               uuid.UUID `db:"id" json:"id"`
	ManagementPlanID uuid.UUID `db:"management_plan_id" json:"management_plan_id"`
	DoseID           uuid.UUID `db:"dose_id" json:"dose_id"`
	Action           string    `db:"action" json:"action"`
	ClinicianUUID    *string   `db:"clinician_uuid" json:"clinician_uuid,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Dose history actions.
const (
	DoseActionInsert = "insert"
	DoseActionUpdate = "update"
	DoseActionDelete = "delete"
)

type Pregnancy struct {
	ID                         uuid.UUID   `db:"id" json:"id"`
	RecordID                   uuid.UUID   `db:"record_id" json:"record_id"`
	EstimatedDeliveryDate      *time.Time  `db:"estimated_delivery_date" json:"estimated_delivery_date,omitempty"`
	PlannedDeliveryPlace       *string     `db:"planned_delivery_place" json:"planned_delivery_place,omitempty"`
	LengthOfPostnatalStayDays  *int        `db:"length_of_postnatal_stay_in_days" json:"length_of_postnatal_stay_in_days,omitempty"`
	ExpectedNumberOfBabies     *int        `db:"expected_number_of_babies" json:"expected_number_of_babies,omitempty"`
	PregnancyComplications     []string    `db:"pregnancy_complications" json:"pregnancy_complications,omitempty"`
	Induced                    *bool       `db:"induced" json:"induced,omitempty"`
	HeightAtBookingMM          *int        `db:"height_at_booking_in_mm" json:"height_at_booking_in_mm,omitempty"`
	WeightAtBookingG           *int        `db:"weight_at_booking_in_g" json:"weight_at_booking_in_g,omitempty"`
	WeightAtDiagnosisG         *int        `db:"weight_at_diagnosis_in_g" json:"weight_at_diagnosis_in_g,omitempty"`
	WeightAt36WeeksG           *int        `db:"weight_at_36_weeks_in_g" json:"weight_at_36_weeks_in_g,omitempty"`
	DeliveryPlace              *string     `db:"delivery_place" json:"delivery_place,omitempty"`
	DeliveryPlaceOther         *string     `db:"delivery_place_other" json:"delivery_place_other,omitempty"`
	FirstMedicationTaken       *string     `db:"first_medication_taken" json:"first_medication_taken,omitempty"`
	FirstMedicationTakenRecord *time.Time  `db:"first_medication_taken_recorded" json:"first_medication_taken_recorded,omitempty"`
	Deliveries                 []*Delivery `db:"-" json:"deliveries,omitempty"`
	CreatedAt                  time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt                  time.Time   `db:"updated_at" json:"updated_at"`
}

// Delivery records one birth within a pregnancy. PatientID is the weak
// back-reference to the baby patient; deleting the pregnancy or the delivery
// never deletes the baby.
type Delivery struct {
	ID                          uuid.UUID  `db:"id" json:"id"`
	PregnancyID                 uuid.UUID  `db:"pregnancy_id" json:"pregnancy_id"`
	BirthOutcome                *string    `db:"birth_outcome" json:"birth_outcome,omitempty"`
	OutcomeForBaby              *string    `db:"outcome_for_baby" json:"outcome_for_baby,omitempty"`
	NeonatalComplications       []string   `db:"neonatal_complications" json:"neonatal_complications,omitempty"`
	NeonatalComplicationsOther  *string    `db:"neonatal_complications_other" json:"neonatal_complications_other,omitempty"`
	AdmittedToSpecialBabyCare   *bool      `db:"admitted_to_special_baby_care_unit" json:"admitted_to_special_baby_care_unit,omitempty"`
	BirthWeightGrams            *int       `db:"birth_weight_in_grams" json:"birth_weight_in_grams,omitempty"`
	LengthOfPostnatalStayBaby   *int       `db:"length_of_postnatal_stay_for_baby" json:"length_of_postnatal_stay_for_baby,omitempty"`
	Apgar1Minute                *int       `db:"apgar_1_minute" json:"apgar_1_minute,omitempty"`
	Apgar5Minute                *int       `db:"apgar_5_minute" json:"apgar_5_minute,omitempty"`
	FeedingMethod               *string    `db:"feeding_method" json:"feeding_method,omitempty"`
	DateOfTermination           *time.Time `db:"date_of_termination" json:"date_of_termination,omitempty"`
	PatientID                   *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	Baby                        *Patient   `db:"-" json:"baby,omitempty"`
	CreatedAt                   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt                   time.Time  `db:"updated_at" json:"updated_at"`
}

type TermsAgreement struct {
	ID                uuid.UUID `db:"id" json:"id"`
	PatientID         uuid.UUID `db:"patient_id" json:"patient_id"`
	ProductName       string    `db:"product_name" json:"product_name"`
	Version           int       `db:"version" json:"version"`
	AcceptedTimestamp time.Time `db:"accepted_timestamp" json:"accepted_timestamp"`
}
