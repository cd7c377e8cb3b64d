package clinician

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

const clinicianCols = `id, first_name, last_name, email_address, phone_number, job_title,
	nhs_smartcard_number, send_entry_identifier, login_active, contract_expiry_eod_date,
	created_at, updated_at`

func scanClinician(row pgx.Row) (*Clinician, error) {
	var c Clinician
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.EmailAddress, &c.PhoneNumber, &c.JobTitle,
		&c.NHSSmartcardNumber, &c.SendEntryIdentifier, &c.LoginActive, &c.ContractExpiry,
		&c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *repoPG) Create(ctx context.Context, c *Clinician) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO clinician (id, first_name, last_name, email_address, phone_number, job_title,
			nhs_smartcard_number, send_entry_identifier, login_active, contract_expiry_eod_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO NOTHING`,
		c.ID, c.FirstName, c.LastName, c.EmailAddress, c.PhoneNumber, c.JobTitle,
		c.NHSSmartcardNumber, c.SendEntryIdentifier, c.LoginActive, c.ContractExpiry)
	if err != nil {
		return err
	}
	for _, g := range c.Groups {
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO clinician_group (clinician_id, group_name) VALUES ($1,$2)
			ON CONFLICT DO NOTHING`, c.ID, g); err != nil {
			return err
		}
	}
	for _, locID := range c.Locations {
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO clinician_location (clinician_id, location_id) VALUES ($1,$2)
			ON CONFLICT DO NOTHING`, c.ID, locID); err != nil {
			return err
		}
	}
	for _, p := range c.Products {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		p.ClinicianID = c.ID
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO clinician_product (id, clinician_id, product_name, opened_date, closed_date)
			VALUES ($1,$2,$3,$4,$5) ON CONFLICT (id) DO NOTHING`,
			p.ID, p.ClinicianID, p.ProductName, p.OpenedDate, p.ClosedDate); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Clinician, error) {
	c, err := scanClinician(r.conn(ctx).QueryRow(ctx,
		`SELECT `+clinicianCols+` FROM clinician WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	return c, r.loadAssociations(ctx, c)
}

func (r *repoPG) GetByEmail(ctx context.Context, email string) (*Clinician, error) {
	c, err := scanClinician(r.conn(ctx).QueryRow(ctx,
		`SELECT `+clinicianCols+` FROM clinician WHERE lower(email_address) = lower($1)`, email))
	if err != nil {
		return nil, err
	}
	return c, r.loadAssociations(ctx, c)
}

func (r *repoPG) loadAssociations(ctx context.Context, c *Clinician) error {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT group_name FROM clinician_group WHERE clinician_id = $1 ORDER BY group_name`, c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return err
		}
		c.Groups = append(c.Groups, g)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.conn(ctx).Query(ctx,
		`SELECT location_id FROM clinician_location WHERE clinician_id = $1`, c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return err
		}
		c.Locations = append(c.Locations, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.conn(ctx).Query(ctx, `
		SELECT id, clinician_id, product_name, opened_date, closed_date
		FROM clinician_product WHERE clinician_id = $1 ORDER BY opened_date`, c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.ClinicianID, &p.ProductName, &p.OpenedDate, &p.ClosedDate); err != nil {
			return err
		}
		c.Products = append(c.Products, &p)
	}
	return rows.Err()
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Clinician, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT count(*) FROM clinician`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+clinicianCols+` FROM clinician
		ORDER BY last_name, first_name, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Clinician
	for rows.Next() {
		c, err := scanClinician(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, c *Clinician) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE clinician SET first_name = $2, last_name = $3, email_address = $4,
			phone_number = $5, job_title = $6, nhs_smartcard_number = $7,
			send_entry_identifier = $8, login_active = $9, contract_expiry_eod_date = $10,
			updated_at = now()
		WHERE id = $1`,
		c.ID, c.FirstName, c.LastName, c.EmailAddress, c.PhoneNumber, c.JobTitle,
		c.NHSSmartcardNumber, c.SendEntryIdentifier, c.LoginActive, c.ContractExpiry)
	return err
}

func (r *repoPG) IDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id FROM clinician`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
