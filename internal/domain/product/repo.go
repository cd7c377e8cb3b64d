package product

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists enrollments and their change trails.
type Repository interface {
	Create(ctx context.Context, e *Enrollment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Enrollment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Enrollment, error)
	// Update persists lifecycle fields and appends any new change rows
	// accumulated on the enrollment.
	Update(ctx context.Context, e *Enrollment) error
	Delete(ctx context.Context, id uuid.UUID) error
}
