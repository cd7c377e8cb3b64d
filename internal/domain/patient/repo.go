package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists the patient aggregate. Mutations that span several
// rows are composed by the service inside one transaction via db.WithTx;
// every method here joins that transaction when one is on the context.
type Repository interface {
	// Create inserts the patient with its record and every nested child.
	// Enrollments are persisted separately through the product repository.
	Create(ctx context.Context, p *Patient) error
	// GetByID loads the whole aggregate apart from enrollments.
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	// OpenEnrollmentExistsByNHSNumber reports whether any patient with the
	// given NHS number has an open enrollment in the product.
	OpenEnrollmentExistsByNHSNumber(ctx context.Context, nhsNumber, productName string) (bool, error)

	SetLocations(ctx context.Context, patientID uuid.UUID, locationIDs []uuid.UUID) error
	AddBookmark(ctx context.Context, patientID, locationID uuid.UUID) error
	RemoveBookmark(ctx context.Context, patientID, locationID uuid.UUID) error

	AddDiagnosis(ctx context.Context, d *Diagnosis) error
	UpdateDiagnosis(ctx context.Context, d *Diagnosis) error
	DeleteDiagnosis(ctx context.Context, id uuid.UUID) error

	UpsertManagementPlan(ctx context.Context, mp *ManagementPlan) error
	AddDose(ctx context.Context, d *Dose) error
	SoftDeleteDose(ctx context.Context, id uuid.UUID) error
	AddDoseHistory(ctx context.Context, h *DoseHistory) error

	AddPregnancy(ctx context.Context, pr *Pregnancy) error
	UpdatePregnancy(ctx context.Context, pr *Pregnancy) error
	DeletePregnancy(ctx context.Context, id uuid.UUID) error

	AddDelivery(ctx context.Context, d *Delivery) error
	UpdateDelivery(ctx context.Context, d *Delivery) error
	DeleteDelivery(ctx context.Context, id uuid.UUID) error

	AddTermsAgreement(ctx context.Context, t *TermsAgreement) error

	// IDs returns every stored patient id. Used by the legacy migration to
	// skip aggregates that already exist.
	IDs(ctx context.Context) ([]uuid.UUID, error)
}
