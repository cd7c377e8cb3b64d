package location

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dhos/dhos/internal/domain/derr"
	"github.com/dhos/dhos/internal/domain/product"
	"github.com/dhos/dhos/internal/platform/db"
)

type Service struct {
	locations Repository
	pool      *pgxpool.Pool
}

func NewService(locations Repository, pool *pgxpool.Pool) *Service {
	return &Service{locations: locations, pool: pool}
}

func (s *Service) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.pool == nil {
		return fn(ctx)
	}
	return db.WithTx(ctx, s.pool, fn)
}

// Create validates the tree invariants and inserts the location. A root must
// be a hospital; a child's type must be the immediate successor of its
// parent's in the hospital, ward, bay, bed ordering, so a bed directly under
// a hospital is rejected. The materialized path is derived from the parent's,
// which keeps the tree acyclic by construction.
func (s *Service) Create(ctx context.Context, l *Location) error {
	if l.DisplayName == "" {
		return derr.Validationf("display_name is required")
	}
	rank, known := typeRank[l.LocationType]
	if !known {
		return derr.Validationf("unknown location type: %s", l.LocationType)
	}

	l.ID = uuid.New()
	l.Active = true

	if l.ParentID == nil {
		if l.LocationType != TypeHospital {
			return derr.Validationf("a root location must be a hospital, got %s", l.LocationType)
		}
		l.Path = "/" + l.ID.String() + "/"
		return s.infra(s.locations.Create(ctx, l))
	}

	parent, err := s.locations.GetByID(ctx, *l.ParentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, derr.ErrNotFound) {
			return derr.Validationf("parent location %s does not exist", l.ParentID)
		}
		return derr.Infraf(err, "fetch parent location")
	}
	if rank != typeRank[parent.LocationType]+1 {
		return derr.Validationf("a %s cannot be placed under a %s", l.LocationType, parent.LocationType)
	}

	l.Path = parent.Path + l.ID.String() + "/"
	return s.infra(s.locations.Create(ctx, l))
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Location, error) {
	l, err := s.locations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, derr.ErrNotFound) {
			return nil, derr.NotFoundf("location %s", id)
		}
		return nil, derr.Infraf(err, "fetch location")
	}
	return l, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Location, int, error) {
	return s.locations.List(ctx, limit, offset)
}

// FindDescendants returns every location below id, breadth-first, stable by
// creation time, optionally restricted to one location type.
func (s *Service) FindDescendants(ctx context.Context, id uuid.UUID, typeFilter string) ([]*Location, error) {
	if typeFilter != "" {
		if _, known := typeRank[typeFilter]; !known {
			return nil, derr.Validationf("unknown location type: %s", typeFilter)
		}
	}
	loc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.locations.Descendants(ctx, loc, typeFilter)
	if err != nil {
		return nil, derr.Infraf(err, "query descendants")
	}
	return items, nil
}

// ListPatients lists patients enrolled in product at this location or any
// descendant. The inactive filter hides enrollments closed because the
// patient was created in error; the widest filter includes them.
func (s *Service) ListPatients(ctx context.Context, id uuid.UUID, productName, status string) ([]*PatientSummary, error) {
	if productName == "" {
		return nil, derr.Validationf("product is required")
	}

	var excluded []string
	switch status {
	case StatusActive, StatusInactiveIncludingInError:
	case StatusInactive:
		excluded = []string{product.ClosedReasonCreatedInError}
	default:
		return nil, derr.Validationf("unknown status filter: %s", status)
	}

	var patients []*PatientSummary
	err := s.withTx(ctx, func(ctx context.Context) error {
		loc, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		descendants, err := s.locations.Descendants(ctx, loc, "")
		if err != nil {
			return derr.Infraf(err, "query descendants")
		}
		ids := make([]uuid.UUID, 0, len(descendants)+1)
		ids = append(ids, loc.ID)
		for _, d := range descendants {
			ids = append(ids, d.ID)
		}
		patients, err = s.locations.Patients(ctx, ids, productName, status, excluded)
		if err != nil {
			return derr.Infraf(err, "query patients")
		}
		return nil
	})
	return patients, err
}

// Delete removes a location and its whole subtree, refusing when any
// location in the subtree still has patients associated.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.withTx(ctx, func(ctx context.Context) error {
		loc, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		descendants, err := s.locations.Descendants(ctx, loc, "")
		if err != nil {
			return derr.Infraf(err, "query descendants")
		}
		ids := make([]uuid.UUID, 0, len(descendants)+1)
		ids = append(ids, loc.ID)
		for _, d := range descendants {
			ids = append(ids, d.ID)
		}
		count, err := s.locations.PatientCount(ctx, ids)
		if err != nil {
			return derr.Infraf(err, "count patient associations")
		}
		if count > 0 {
			return derr.Conflictf("location subtree has %d patient association(s)", count)
		}
		return s.infra(s.locations.Delete(ctx, ids))
	})
}

func (s *Service) infra(err error) error {
	if err == nil {
		return nil
	}
	return derr.Infraf(err, "location store")
}
