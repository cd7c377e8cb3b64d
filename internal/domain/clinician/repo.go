package clinician

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Clinician) error
	GetByID(ctx context.Context, id uuid.UUID) (*Clinician, error)
	GetByEmail(ctx context.Context, email string) (*Clinician, error)
	List(ctx context.Context, limit, offset int) ([]*Clinician, int, error)
	Update(ctx context.Context, c *Clinician) error
	// IDs returns every stored clinician id. Used by the legacy migration to
	// skip entities that already exist.
	IDs(ctx context.Context) ([]uuid.UUID, error)
}
