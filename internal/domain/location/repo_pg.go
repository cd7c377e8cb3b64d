package location

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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

const locCols = `id, location_type, ods_code, display_name, parent_id, path, active, created_at, updated_at`

func scanLocation(row pgx.Row) (*Location, error) {
	var l Location
	err := row.Scan(&l.ID, &l.LocationType, &l.ODSCode, &l.DisplayName, &l.ParentID, &l.Path,
		&l.Active, &l.CreatedAt, &l.UpdatedAt)
	return &l, err
}

func (r *repoPG) Create(ctx context.Context, l *Location) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO location (id, location_type, ods_code, display_name, parent_id, path, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		l.ID, l.LocationType, l.ODSCode, l.DisplayName, l.ParentID, l.Path, l.Active)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Location, error) {
	return scanLocation(r.conn(ctx).QueryRow(ctx, `SELECT `+locCols+` FROM location WHERE id = $1`, id))
}

func (r *repoPG) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Location, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+locCols+` FROM location WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLocations(rows)
}

// Descendants relies on the path prefix index. Depth is derived from the
// number of segments in the path so the traversal order is breadth-first.
func (r *repoPG) Descendants(ctx context.Context, loc *Location, typeFilter string) ([]*Location, error) {
	query := `SELECT ` + locCols + ` FROM location
		WHERE path LIKE $1 || '%' AND id <> $2`
	args := []interface{}{loc.Path, loc.ID}
	if typeFilter != "" {
		query += ` AND location_type = $3`
		args = append(args, typeFilter)
	}
	query += ` ORDER BY length(path) - length(replace(path, '/', '')), created_at`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLocations(rows)
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Location, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM location`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+locCols+` FROM location ORDER BY created_at LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectLocations(rows)
	return items, total, err
}

func (r *repoPG) Delete(ctx context.Context, ids []uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM location WHERE id = ANY($1)`, ids)
	return err
}

func (r *repoPG) PatientCount(ctx context.Context, ids []uuid.UUID) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patient_location WHERE location_id = ANY($1)`, ids).Scan(&count)
	return count, err
}

func (r *repoPG) Patients(ctx context.Context, ids []uuid.UUID, product, status string, excludedReasons []string) ([]*PatientSummary, error) {
	query := `
		SELECT DISTINCT p.id, p.first_name, p.last_name, p.nhs_number, p.hospital_number, p.dob,
			e.opened_date, e.closed_date, e.closed_reason
		FROM patient p
		JOIN patient_location pl ON pl.patient_id = p.id
		JOIN dh_product e ON e.patient_id = p.id
		WHERE pl.location_id = ANY($1) AND e.product_name = $2`
	args := []interface{}{ids, product}

	switch status {
	case StatusActive:
		query += ` AND e.closed_date IS NULL`
	default:
		query += ` AND e.closed_date IS NOT NULL`
	}
	if len(excludedReasons) > 0 {
		query += ` AND (e.closed_reason IS NULL OR NOT (e.closed_reason = ANY($3)))`
		args = append(args, excludedReasons)
	}
	query += ` ORDER BY p.last_name, p.first_name, p.id`

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*PatientSummary
	for rows.Next() {
		var s PatientSummary
		if err := rows.Scan(&s.ID, &s.FirstName, &s.LastName, &s.NHSNumber, &s.HospitalNumber, &s.DOB,
			&s.OpenedDate, &s.ClosedDate, &s.ClosedReason); err != nil {
			return nil, err
		}
		items = append(items, &s)
	}
	return items, rows.Err()
}

func collectLocations(rows pgx.Rows) ([]*Location, error) {
	var items []*Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

func (r *repoPG) IDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id FROM location`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
