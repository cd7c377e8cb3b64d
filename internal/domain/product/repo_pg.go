package product

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dhos/dhos/internal/domain/derr"
	"github.com/dhos/dhos/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const enrollCols = `id, patient_id, product_name, opened_date, closed_date, closed_reason,
	closed_reason_other, monitored_by_clinician, created_at, updated_at`

func scanEnrollment(row pgx.Row) (*Enrollment, error) {
	var e Enrollment
	err := row.Scan(&e.ID, &e.PatientID, &e.ProductName, &e.OpenedDate, &e.ClosedDate, &e.ClosedReason,
		&e.ClosedReasonOther, &e.MonitoredByClinician, &e.CreatedAt, &e.UpdatedAt)
	return &e, err
}

func (r *repoPG) Create(ctx context.Context, e *Enrollment) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO dh_product (id, patient_id, product_name, opened_date, closed_date,
			closed_reason, closed_reason_other, monitored_by_clinician)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, e.PatientID, e.ProductName, e.OpenedDate, e.ClosedDate,
		e.ClosedReason, e.ClosedReasonOther, e.MonitoredByClinician)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return derr.Conflictf("patient %s already has an open %s enrollment",
				e.PatientID, e.ProductName)
		}
		return err
	}
	return r.insertChanges(ctx, e)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Enrollment, error) {
	e, err := scanEnrollment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+enrollCols+` FROM dh_product WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadChanges(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Enrollment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+enrollCols+` FROM dh_product WHERE patient_id = $1 ORDER BY created_at`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, e := range items {
		if err := r.loadChanges(ctx, e); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (r *repoPG) Update(ctx context.Context, e *Enrollment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE dh_product SET closed_date=$2, closed_reason=$3, closed_reason_other=$4,
			monitored_by_clinician=$5, updated_at=NOW()
		WHERE id = $1`,
		e.ID, e.ClosedDate, e.ClosedReason, e.ClosedReasonOther, e.MonitoredByClinician)
	if err != nil {
		return err
	}
	return r.insertChanges(ctx, e)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM dh_product_change WHERE product_id = $1`, id); err != nil {
		return err
	}
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM dh_product WHERE id = $1`, id)
	return err
}

// insertChanges persists change rows that have not been assigned an id yet.
func (r *repoPG) insertChanges(ctx context.Context, e *Enrollment) error {
	for i := range e.Changes {
		ch := &e.Changes[i]
		if ch.ID != uuid.Nil {
			continue
		}
		ch.ID = uuid.New()
		ch.EnrollmentID = e.ID
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO dh_product_change (id, product_id, event, created_at)
			VALUES ($1,$2,$3,$4)`,
			ch.ID, ch.EnrollmentID, ch.Event, ch.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) loadChanges(ctx context.Context, e *Enrollment) error {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, product_id, event, created_at FROM dh_product_change
		WHERE product_id = $1 ORDER BY created_at, id`, e.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	e.Changes = nil
	for rows.Next() {
		var ch Change
		if err := rows.Scan(&ch.ID, &ch.EnrollmentID, &ch.Event, &ch.CreatedAt); err != nil {
			return err
		}
		e.Changes = append(e.Changes, ch)
	}
	return rows.Err()
}
