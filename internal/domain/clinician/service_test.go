package clinician

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dhos/dhos/internal/domain/derr"
)

type mockRepo struct {
	clinicians map[uuid.UUID]*Clinician
}

func newMockRepo() *mockRepo {
	return &mockRepo{clinicians: make(map[uuid.UUID]*Clinician)}
}

func (m *mockRepo) Create(_ context.Context, c *Clinician) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.clinicians[c.ID] = c
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Clinician, error) {
	c, ok := m.clinicians[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return c, nil
}

func (m *mockRepo) GetByEmail(_ context.Context, email string) (*Clinician, error) {
	for _, c := range m.clinicians {
		if strings.EqualFold(c.EmailAddress, email) {
			return c, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Clinician, int, error) {
	var out []*Clinician
	for _, c := range m.clinicians {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *mockRepo) Update(_ context.Context, c *Clinician) error {
	if _, ok := m.clinicians[c.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.clinicians[c.ID] = c
	return nil
}

func (m *mockRepo) IDs(_ context.Context) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for id := range m.clinicians {
		out = append(out, id)
	}
	return out, nil
}

func TestCreate(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	c := &Clinician{FirstName: "Ada", LastName: "Wong", EmailAddress: "ada@example.com"}
	if err := svc.Create(context.Background(), c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID == uuid.Nil {
		t.Fatal("expected an id to be assigned")
	}
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(newMockRepo())

	cases := []*Clinician{
		{LastName: "Wong", EmailAddress: "ada@example.com"},
		{FirstName: "Ada", EmailAddress: "ada@example.com"},
		{FirstName: "Ada", LastName: "Wong", EmailAddress: "not-an-email"},
	}
	for i, c := range cases {
		if err := svc.Create(context.Background(), c); !errors.Is(err, derr.ErrValidation) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	first := &Clinician{FirstName: "Ada", LastName: "Wong", EmailAddress: "ada@example.com"}
	if err := svc.Create(context.Background(), first); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := &Clinician{FirstName: "Ada", LastName: "Wong", EmailAddress: "ADA@example.com"}
	if err := svc.Create(context.Background(), dup); !errors.Is(err, derr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc := NewService(newMockRepo())
	if _, err := svc.Get(context.Background(), uuid.New()); !errors.Is(err, derr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
