package clinician

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dhos/dhos/internal/domain/derr"
)

type Service struct {
	clinicians Repository
}

func NewService(clinicians Repository) *Service {
	return &Service{clinicians: clinicians}
}

func (s *Service) Create(ctx context.Context, c *Clinician) error {
	if c.FirstName == "" || c.LastName == "" {
		return derr.Validationf("first_name and last_name are required")
	}
	if !strings.Contains(c.EmailAddress, "@") {
		return derr.Validationf("a valid email_address is required")
	}
	if _, err := s.clinicians.GetByEmail(ctx, c.EmailAddress); err == nil {
		return derr.Conflictf("a clinician with email %s already exists", c.EmailAddress)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return derr.Infraf(err, "check clinician email")
	}
	if err := s.clinicians.Create(ctx, c); err != nil {
		return derr.Infraf(err, "create clinician")
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Clinician, error) {
	c, err := s.clinicians.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, derr.NotFoundf("clinician %s", id)
		}
		return nil, derr.Infraf(err, "fetch clinician")
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Clinician, int, error) {
	out, total, err := s.clinicians.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, derr.Infraf(err, "list clinicians")
	}
	return out, total, nil
}

func (s *Service) Update(ctx context.Context, c *Clinician) error {
	if _, err := s.Get(ctx, c.ID); err != nil {
		return err
	}
	if err := s.clinicians.Update(ctx, c); err != nil {
		return derr.Infraf(err, "update clinician")
	}
	return nil
}
