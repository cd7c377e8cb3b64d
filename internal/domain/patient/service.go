package patient

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/dhos/dhos/internal/domain/derr"
	"github.com/dhos/dhos/internal/domain/product"
	"github.com/dhos/dhos/internal/platform/db"
	"github.com/dhos/dhos/internal/platform/publish"
)

type clinicianKey struct{}

// WithClinician tags the context with the acting clinician for audit
// attribution. Events published without one omit the clinician id.
func WithClinician(ctx context.Context, clinicianID string) context.Context {
	return context.WithValue(ctx, clinicianKey{}, clinicianID)
}

func clinicianFrom(ctx context.Context) *string {
	if id, ok := ctx.Value(clinicianKey{}).(string); ok && id != "" {
		return &id
	}
	return nil
}

type Service struct {
	patients Repository
	products product.Repository
	pub      publish.Publisher
	pool     *pgxpool.Pool
	log      zerolog.Logger
}

func NewService(patients Repository, products product.Repository, pub publish.Publisher, pool *pgxpool.Pool, log zerolog.Logger) *Service {
	return &Service{patients: patients, products: products, pub: pub, pool: pool, log: log}
}

func (s *Service) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.pool == nil {
		return fn(ctx)
	}
	return db.WithTx(ctx, s.pool, fn)
}

// audit publishes one event after a committed mutation. Failures are logged
// and never surfaced: publication is best-effort relative to the commit.
func (s *Service) audit(ctx context.Context, kind string, patientID uuid.UUID, productID *uuid.UUID) {
	e := publish.Event{
		Kind:        kind,
		PatientID:   patientID,
		ClinicianID: clinicianFrom(ctx),
		ProductID:   productID,
		RecordedAt:  time.Now(),
	}
	if err := s.pub.Publish(ctx, e); err != nil {
		s.log.Error().Err(err).Str("event_type", kind).
			Str("patient_id", patientID.String()).Msg("audit publish failed")
	}
}

// Create inserts a new patient aggregate with its record and enrollments in
// one transaction. The NHS number, when present, must carry a valid check
// digit and must not collide with another open enrollment in the same
// product.
func (s *Service) Create(ctx context.Context, p *Patient) error {
	if p.PatientType == "" {
		p.PatientType = TypeRegular
	}
	switch p.PatientType {
	case TypeRegular, TypeBaby, TypeSend:
	default:
		return derr.Validationf("unknown patient type: %s", p.PatientType)
	}
	if p.NHSNumber != nil && !ValidNHSNumber(*p.NHSNumber) {
		return derr.Validationf("nhs_number %s has an invalid checksum", *p.NHSNumber)
	}

	err := s.withTx(ctx, func(ctx context.Context) error {
		if p.NHSNumber != nil {
			for _, e := range p.Products {
				exists, err := s.patients.OpenEnrollmentExistsByNHSNumber(ctx, *p.NHSNumber, e.ProductName)
				if err != nil {
					return derr.Infraf(err, "check nhs number uniqueness")
				}
				if exists {
					return derr.Conflictf("a patient with nhs_number %s already has an open %s enrollment",
						*p.NHSNumber, e.ProductName)
				}
			}
		}
		if err := s.patients.Create(ctx, p); err != nil {
			return derr.Infraf(err, "create patient")
		}
		for _, e := range p.Products {
			e.PatientID = p.ID
			if e.OpenedDate.IsZero() {
				e.OpenedDate = time.Now()
			}
			if err := s.products.Create(ctx, e); err != nil {
				if errors.Is(err, derr.ErrConflict) {
					return err
				}
				return derr.Infraf(err, "create enrollment")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.audit(ctx, publish.KindCreation, p.ID, nil)
	return nil
}

// CheckNHSNumber validates the check digit and reports whether an open
// enrollment for the given product already uses the number.
func (s *Service) CheckNHSNumber(ctx context.Context, nhsNumber, productName string) (bool, error) {
	if !ValidNHSNumber(nhsNumber) {
		return false, derr.Validationf("nhs_number %s has an invalid checksum", nhsNumber)
	}
	exists, err := s.patients.OpenEnrollmentExistsByNHSNumber(ctx, nhsNumber, productName)
	if err != nil {
		return false, derr.Infraf(err, "check nhs number uniqueness")
	}
	return exists, nil
}

// Get loads the full aggregate and records a view event.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, publish.KindView, p.ID, nil)
	return p, nil
}

// load fetches patient plus enrollments without publishing.
func (s *Service) load(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, derr.NotFoundf("patient %s", id)
		}
		return nil, derr.Infraf(err, "fetch patient")
	}
	p.Products, err = s.products.ListByPatient(ctx, id)
	if err != nil {
		return nil, derr.Infraf(err, "fetch enrollments")
	}
	return p, nil
}

// Update patches the patient's own fields. Nested structures have their own
// operations.
func (s *Service) Update(ctx context.Context, p *Patient) error {
	if p.NHSNumber != nil && !ValidNHSNumber(*p.NHSNumber) {
		return derr.Validationf("nhs_number %s has an invalid checksum", *p.NHSNumber)
	}
	err := s.withTx(ctx, func(ctx context.Context) error {
		if _, err := s.load(ctx, p.ID); err != nil {
			return err
		}
		if err := s.patients.Update(ctx, p); err != nil {
			return derr.Infraf(err, "update patient")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.audit(ctx, publish.KindUpdate, p.ID, nil)
	return nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.withTx(ctx, func(ctx context.Context) error {
		p, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		for _, e := range p.Products {
			if err := s.products.Delete(ctx, e.ID); err != nil {
				return derr.Infraf(err, "delete enrollment")
			}
		}
		if err := s.patients.Delete(ctx, id); err != nil {
			return derr.Infraf(err, "delete patient")
		}
		return nil
	})
}

func (s *Service) AddDiagnosis(ctx context.Context, patientID uuid.UUID, d *Diagnosis) error {
	if d.SCTCode == "" {
		return derr.Validationf("sct_code is required")
	}
	err := s.withTx(ctx, func(ctx context.Context) error {
		p, err := s.load(ctx, patientID)
		if err != nil {
			return err
		}
		d.RecordID = p.Record.ID
		if err := s.patients.AddDiagnosis(ctx, d); err != nil {
			return derr.Infraf(err, "add diagnosis")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.audit(ctx, publish.KindUpdate, patientID, nil)
	return nil
}

// UpdateManagementPlan replaces the plan attached to a diagnosis. New doses
// carry no id and are appended with an insert history row; doses carried
// over keep their id untouched.
func (s *Service) UpdateManagementPlan(ctx context.Context, patientID, diagnosisID uuid.UUID, mp *ManagementPlan) error {
	if mp.SCTCode == "" {
		return derr.Validationf("sct_code is required")
	}
	err := s.withTx(ctx, func(ctx context.Context) error {
		p, err := s.load(ctx, patientID)
		if err != nil {
			return err
		}
		diag := findDiagnosis(p, diagnosisID)
		if diag == nil {
			return derr.NotFoundf("diagnosis %s", diagnosisID)
		}
		mp.DiagnosisID = diag.ID
		if diag.ManagementPlan != nil {
			mp.ID = diag.ManagementPlan.ID
		}

		var newDoses []*Dose
		for _, dose := range mp.Doses {
			if dose.ID == uuid.Nil {
				newDoses = append(newDoses, dose)
			}
		}
		if err := s.patients.UpsertManagementPlan(ctx, mp); err != nil {
			return derr.Infraf(err, "upsert management plan")
		}
		for _, dose := range newDoses {
			if err := s.patients.AddDoseHistory(ctx, &DoseHistory{
				ManagementPlanID: mp.ID,
				DoseID:           dose.ID,
				Action:           DoseActionInsert,
				ClinicianUUID:    clinicianFrom(ctx),
			}); err != nil {
				return derr.Infraf(err, "record dose history")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.audit(ctx, publish.KindUpdate, patientID, nil)
	return nil
}

// AmendDose soft-deletes the existing dose and appends the replacement, so
// the dose sequence keeps the full change history in insertion order.
func (s *Service) AmendDose(ctx context.Context, patientID, doseID uuid.UUID, replacement *Dose) error {
	err := s.withTx(ctx, func(ctx context.Context) error {
		p, err := s.load(ctx, patientID)
		if err != nil {
			return err
		}
		plan, old := findDose(p, doseID)
		if old == nil {
			return derr.NotFoundf("dose %s", doseID)
		}
		if err := s.patients.SoftDeleteDose(ctx, old.ID); err != nil {
			return derr.Infraf(err, "soft delete dose")
		}
		replacement.ID = uuid.Nil
		replacement.ManagementPlanID = plan.ID
		if err := s.patients.AddDose(ctx, replacement); err != nil {
			return derr.Infraf(err, "append replacement dose")
		}
		if err := s.patients.AddDoseHistory(ctx, &DoseHistory{
			ManagementPlanID: plan.ID,
			DoseID:           replacement.ID,
			Action:           DoseActionUpdate,
			ClinicianUUID:    clinicianFrom(ctx),
		}); err != nil {
			return derr.Infraf(err, "record dose history")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.audit(ctx, publish.KindUpdate, patientID, nil)
	return nil
}

func (s *Service) AddPregnancy(ctx context.Context, patientID uuid.UUID, pr *Pregnancy) error {
	err := s.withTx(ctx, func(ctx context.Context) error {
		p, err := s.load(ctx, patientID)
		if err != nil {
			return err
		}
		pr.RecordID = p.Record.ID
		if err := s.patients.AddPregnancy(ctx, pr); err != nil {
			return derr.Infraf(err, "add pregnancy")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.audit(ctx, publish.KindUpdate, patientID, nil)
	return nil
}

// AddDelivery records a birth. When baby details are supplied, a baby
// patient is created as its own aggregate and linked from the delivery by a
// weak back-reference.
func (s *Service) AddDelivery(ctx context.Context, patientID, pregnancyID uuid.UUID, d *Delivery) error {
	err := s.withTx(ctx, func(ctx context.Context) error {
		p, err := s.load(ctx, patientID)
		if err != nil {
			return err
		}
		preg := findPregnancy(p, pregnancyID)
		if preg == nil {
			return derr.NotFoundf("pregnancy %s", pregnancyID)
		}
		if d.Baby != nil {
			d.Baby.PatientType = TypeBaby
			if err := s.patients.Create(ctx, d.Baby); err != nil {
				return derr.Infraf(err, "create baby patient")
			}
			d.PatientID = &d.Baby.ID
		}
		d.PregnancyID = preg.ID
		if err := s.patients.AddDelivery(ctx, d); err != nil {
			return derr.Infraf(err, "add delivery")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.audit(ctx, publish.KindUpdate, patientID, nil)
	return nil
}

// RecordFirstMedication stamps the first medication taken on a pregnancy.
func (s *Service) RecordFirstMedication(ctx context.Context, patientID, pregnancyID uuid.UUID, medication string, takenAt time.Time) error {
	if medication == "" {
		return derr.Validationf("first_medication_taken is required")
	}
	err := s.withTx(ctx, func(ctx context.Context) error {
		p, err := s.load(ctx, patientID)
		if err != nil {
			return err
		}
		preg := findPregnancy(p, pregnancyID)
		if preg == nil {
			return derr.NotFoundf("pregnancy %s", pregnancyID)
		}
		preg.FirstMedicationTaken = &medication
		preg.FirstMedicationTakenRecord = &takenAt
		if err := s.patients.UpdatePregnancy(ctx, preg); err != nil {
			return derr.Infraf(err, "update pregnancy")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.audit(ctx, publish.KindUpdate, patientID, nil)
	return nil
}

func (s *Service) Bookmark(ctx context.Context, patientID, locationID uuid.UUID) error {
	return s.withTx(ctx, func(ctx context.Context) error {
		if _, err := s.load(ctx, patientID); err != nil {
			return err
		}
		if err := s.patients.AddBookmark(ctx, patientID, locationID); err != nil {
			return derr.Infraf(err, "add bookmark")
		}
		return nil
	})
}

func (s *Service) Unbookmark(ctx context.Context, patientID, locationID uuid.UUID) error {
	return s.withTx(ctx, func(ctx context.Context) error {
		if _, err := s.load(ctx, patientID); err != nil {
			return err
		}
		if err := s.patients.RemoveBookmark(ctx, patientID, locationID); err != nil {
			return derr.Infraf(err, "remove bookmark")
		}
		return nil
	})
}

func (s *Service) AgreeTerms(ctx context.Context, patientID uuid.UUID, t *TermsAgreement) error {
	if t.ProductName == "" {
		return derr.Validationf("product_name is required")
	}
	err := s.withTx(ctx, func(ctx context.Context) error {
		if _, err := s.load(ctx, patientID); err != nil {
			return err
		}
		t.PatientID = patientID
		if err := s.patients.AddTermsAgreement(ctx, t); err != nil {
			return derr.Infraf(err, "add terms agreement")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.audit(ctx, publish.KindTermsAgreement, patientID, nil)
	return nil
}

// CloseProduct runs the product's closure policy against the record, then
// drives the enrollment state machine. The whole close is applied or
// rejected; nothing changes when the checklist fails.
func (s *Service) CloseProduct(ctx context.Context, patientID, productID uuid.UUID, closedDate time.Time, reason, reasonOther *string) error {
	if closedDate.IsZero() {
		return derr.Validationf("a closed date is required to close a record")
	}
	err := s.withTx(ctx, func(ctx context.Context) error {
		p, err := s.load(ctx, patientID)
		if err != nil {
			return err
		}
		enrollment := findEnrollment(p, productID)
		if enrollment == nil {
			return derr.NotFoundf("product %s", productID)
		}
		if err := ValidateClosure(enrollment.ProductName, reason, p); err != nil {
			return err
		}
		if err := enrollment.Close(closedDate, reason, reasonOther); err != nil {
			return err
		}
		if err := s.products.Update(ctx, enrollment); err != nil {
			return derr.Infraf(err, "update enrollment")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.audit(ctx, publish.KindClose, patientID, &productID)
	return nil
}

// StartMonitoring is idempotent: repeating it against an already-monitored
// enrollment changes nothing and publishes nothing.
func (s *Service) StartMonitoring(ctx context.Context, patientID, productID uuid.UUID) (*product.Enrollment, error) {
	return s.setMonitoring(ctx, patientID, productID, true)
}

// StopMonitoring mirrors StartMonitoring.
func (s *Service) StopMonitoring(ctx context.Context, patientID, productID uuid.UUID) (*product.Enrollment, error) {
	return s.setMonitoring(ctx, patientID, productID, false)
}

func (s *Service) setMonitoring(ctx context.Context, patientID, productID uuid.UUID, active bool) (*product.Enrollment, error) {
	var enrollment *product.Enrollment
	var changed bool
	err := s.withTx(ctx, func(ctx context.Context) error {
		p, err := s.load(ctx, patientID)
		if err != nil {
			return err
		}
		enrollment = findEnrollment(p, productID)
		if enrollment == nil {
			return derr.NotFoundf("product %s", productID)
		}
		now := time.Now()
		if active {
			changed, err = enrollment.StartMonitoring(now)
		} else {
			changed, err = enrollment.StopMonitoring(now)
		}
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		if err := s.products.Update(ctx, enrollment); err != nil {
			return derr.Infraf(err, "update enrollment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		kind := publish.KindStartMonitoring
		if !active {
			kind = publish.KindStopMonitoring
		}
		s.audit(ctx, kind, patientID, &productID)
	}
	return enrollment, nil
}

// DeleteSubentity removes a diagnosis, pregnancy, delivery, enrollment or
// dose by uuid. Lookup order follows the aggregate's declaration order:
// diagnoses first, then pregnancies, deliveries, enrollments, doses.
// Removing a pregnancy removes its deliveries; removing a delivery that
// references a baby never deletes the baby patient.
func (s *Service) DeleteSubentity(ctx context.Context, patientID, subentityID uuid.UUID) error {
	err := s.withTx(ctx, func(ctx context.Context) error {
		p, err := s.load(ctx, patientID)
		if err != nil {
			return err
		}
		if p.Record == nil {
			p.Record = &Record{}
		}

		for _, d := range p.Record.Diagnoses {
			if d.ID == subentityID {
				return s.infra(s.patients.DeleteDiagnosis(ctx, d.ID), "delete diagnosis")
			}
		}
		for _, preg := range p.Record.Pregnancies {
			if preg.ID == subentityID {
				return s.infra(s.patients.DeletePregnancy(ctx, preg.ID), "delete pregnancy")
			}
		}
		for _, preg := range p.Record.Pregnancies {
			for _, d := range preg.Deliveries {
				if d.ID == subentityID {
					return s.infra(s.patients.DeleteDelivery(ctx, d.ID), "delete delivery")
				}
			}
		}
		for _, e := range p.Products {
			if e.ID == subentityID {
				return s.infra(s.products.Delete(ctx, e.ID), "delete enrollment")
			}
		}
		for _, d := range p.Record.Diagnoses {
			if d.ManagementPlan == nil {
				continue
			}
			for _, dose := range d.ManagementPlan.Doses {
				if dose.ID == subentityID {
					if err := s.patients.SoftDeleteDose(ctx, dose.ID); err != nil {
						return derr.Infraf(err, "soft delete dose")
					}
					return s.infra(s.patients.AddDoseHistory(ctx, &DoseHistory{
						ManagementPlanID: d.ManagementPlan.ID,
						DoseID:           dose.ID,
						Action:           DoseActionDelete,
						ClinicianUUID:    clinicianFrom(ctx),
					}), "record dose history")
				}
			}
		}
		return derr.NotFoundf("sub-entity %s on patient %s", subentityID, patientID)
	})
	if err != nil {
		return err
	}
	s.audit(ctx, publish.KindUpdate, patientID, nil)
	return nil
}

func (s *Service) infra(err error, op string) error {
	if err == nil {
		return nil
	}
	return derr.Infraf(err, op)
}

func findDiagnosis(p *Patient, id uuid.UUID) *Diagnosis {
	if p.Record == nil {
		return nil
	}
	for _, d := range p.Record.Diagnoses {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func findPregnancy(p *Patient, id uuid.UUID) *Pregnancy {
	if p.Record == nil {
		return nil
	}
	for _, pr := range p.Record.Pregnancies {
		if pr.ID == id {
			return pr
		}
	}
	return nil
}

func findDose(p *Patient, id uuid.UUID) (*ManagementPlan, *Dose) {
	if p.Record == nil {
		return nil, nil
	}
	for _, d := range p.Record.Diagnoses {
		if d.ManagementPlan == nil {
			continue
		}
		for _, dose := range d.ManagementPlan.Doses {
			if dose.ID == id {
				return d.ManagementPlan, dose
			}
		}
	}
	return nil, nil
}

func findEnrollment(p *Patient, id uuid.UUID) *product.Enrollment {
	for _, e := range p.Products {
		if e.ID == id {
			return e
		}
	}
	return nil
}
