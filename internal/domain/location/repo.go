package location

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists the location tree.
type Repository interface {
	Create(ctx context.Context, l *Location) error
	GetByID(ctx context.Context, id uuid.UUID) (*Location, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Location, error)
	// Descendants returns every location strictly below the given one,
	// breadth-first, stable by creation time within a depth. typeFilter
	// restricts by location type when non-empty.
	Descendants(ctx context.Context, loc *Location, typeFilter string) ([]*Location, error)
	List(ctx context.Context, limit, offset int) ([]*Location, int, error)
	Delete(ctx context.Context, ids []uuid.UUID) error
	// PatientCount reports how many patients are associated with any of the
	// given locations.
	PatientCount(ctx context.Context, ids []uuid.UUID) (int, error)
	// Patients lists patients enrolled in product and associated with any of
	// the given locations, filtered by enrollment status. excludedReasons
	// drops closed enrollments whose closed_reason matches.
	Patients(ctx context.Context, ids []uuid.UUID, product, status string, excludedReasons []string) ([]*PatientSummary, error)
	// IDs returns every stored location id. Used by the legacy migration to
	// skip locations that already exist.
	IDs(ctx context.Context) ([]uuid.UUID, error)
}
