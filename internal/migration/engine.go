package migration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dhos/dhos/internal/domain/clinician"
	"github.com/dhos/dhos/internal/domain/derr"
	"github.com/dhos/dhos/internal/domain/location"
	"github.com/dhos/dhos/internal/domain/patient"
	"github.com/dhos/dhos/internal/domain/product"
	"github.com/dhos/dhos/internal/platform/db"
)

// Report summarizes one migration run. Skipped counts entities already
// present in the target; Failed counts entities dropped for validation
// reasons. A second run over the same source reports everything skipped.
type Report struct {
	Created int           `json:"created"`
	Skipped int           `json:"skipped"`
	Failed  int           `json:"failed"`
	Elapsed time.Duration `json:"elapsed"`
}

func (r Report) String() string {
	return fmt.Sprintf("created=%d skipped=%d failed=%d elapsed=%s",
		r.Created, r.Skipped, r.Failed, r.Elapsed)
}

func (r *Report) add(other Report) {
	r.Created += other.Created
	r.Skipped += other.Skipped
	r.Failed += other.Failed
}

type Config struct {
	BatchSize int
	Workers   int
}

// Engine replays legacy aggregates into the relational store. Idempotency
// comes from a uuid pre-check against the target plus ON CONFLICT DO NOTHING
// on every aggregate insert, so concurrent and repeated runs are safe.
type Engine struct {
	reader     LegacyReader
	locations  location.Repository
	patients   patient.Repository
	products   product.Repository
	clinicians clinician.Repository
	users      *UsersClient
	pool       *pgxpool.Pool
	log        zerolog.Logger
	batchSize  int
	workers    int
}

func NewEngine(reader LegacyReader, locations location.Repository, patients patient.Repository,
	products product.Repository, clinicians clinician.Repository, users *UsersClient,
	pool *pgxpool.Pool, log zerolog.Logger, cfg Config) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	return &Engine{
		reader:     reader,
		locations:  locations,
		patients:   patients,
		products:   products,
		clinicians: clinicians,
		users:      users,
		pool:       pool,
		log:        log,
		batchSize:  cfg.BatchSize,
		workers:    cfg.Workers,
	}
}

func (e *Engine) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if e.pool == nil {
		return fn(ctx)
	}
	return db.WithTx(ctx, e.pool, fn)
}

// Run migrates everything in dependency order: locations first, then
// clinicians, then patient aggregates.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	var total Report
	for _, step := range []func(context.Context) (Report, error){
		e.MigrateLocations, e.MigrateClinicians, e.MigratePatients,
	} {
		r, err := step(ctx)
		if err != nil {
			return total, err
		}
		total.add(r)
	}
	total.Elapsed = time.Since(start)
	return total, nil
}

// MigrateLocations inserts the legacy location tree parents-first so each
// child's materialized path can be derived from its parent's.
func (e *Engine) MigrateLocations(ctx context.Context) (Report, error) {
	start := time.Now()
	var report Report

	legacy, err := e.reader.Locations(ctx)
	if err != nil {
		return report, derr.Infraf(err, "read legacy locations")
	}
	existingIDs, err := e.locations.IDs(ctx)
	if err != nil {
		return report, derr.Infraf(err, "list existing locations")
	}
	existing := idSet(existingIDs)

	// Seed paths from locations already in the target: a new child may hang
	// off a parent migrated in an earlier run.
	paths := make(map[uuid.UUID]string)
	if len(existingIDs) > 0 {
		existingLocs, err := e.locations.GetByIDs(ctx, existingIDs)
		if err != nil {
			return report, derr.Infraf(err, "load existing locations")
		}
		for _, l := range existingLocs {
			paths[l.ID] = l.Path
		}
	}

	pending := legacy
	for len(pending) > 0 {
		var next []*LegacyLocation
		progressed := false
		for _, l := range pending {
			if existing[l.ID] {
				paths[l.ID] = pathFor(l, paths)
				report.Skipped++
				progressed = true
				continue
			}
			if l.ParentID != nil {
				parentPath, ok := paths[*l.ParentID]
				if !ok {
					next = append(next, l)
					continue
				}
				l.Path = parentPath + l.ID.String() + "/"
			} else {
				l.Path = "/" + l.ID.String() + "/"
			}
			if err := e.locations.Create(ctx, l); err != nil {
				return report, derr.Infraf(err, "create location")
			}
			paths[l.ID] = l.Path
			report.Created++
			progressed = true
		}
		if !progressed {
			for _, l := range next {
				e.log.Warn().Str("location_id", l.ID.String()).
					Msg("legacy location has an unresolvable parent, skipping")
				report.Failed++
			}
			break
		}
		pending = next
	}

	report.Elapsed = time.Since(start)
	e.log.Info().Str("report", report.String()).Msg("location migration finished")
	return report, nil
}

func pathFor(l *LegacyLocation, paths map[uuid.UUID]string) string {
	if l.Path != "" {
		return l.Path
	}
	if l.ParentID != nil {
		if parentPath, ok := paths[*l.ParentID]; ok {
			return parentPath + l.ID.String() + "/"
		}
	}
	return "/" + l.ID.String() + "/"
}

// MigrateClinicians pushes clinicians to the users API in bulk when a client
// is configured, otherwise into the local clinician store. Either way,
// entities the target already has are skipped.
func (e *Engine) MigrateClinicians(ctx context.Context) (Report, error) {
	start := time.Now()
	var report Report

	legacy, err := e.reader.Clinicians(ctx)
	if err != nil {
		return report, derr.Infraf(err, "read legacy clinicians")
	}

	if e.users != nil {
		report, err = e.pushCliniciansToUsersAPI(ctx, legacy)
	} else {
		report, err = e.storeCliniciansLocally(ctx, legacy)
	}
	if err != nil {
		return report, err
	}
	report.Elapsed = time.Since(start)
	e.log.Info().Str("report", report.String()).Msg("clinician migration finished")
	return report, nil
}

func (e *Engine) pushCliniciansToUsersAPI(ctx context.Context, legacy []*LegacyClinician) (Report, error) {
	var report Report
	existing, err := e.users.ExistingIDs(ctx)
	if err != nil {
		return report, derr.Infraf(err, "list users api clinicians")
	}

	var fresh []*clinician.Clinician
	for _, c := range legacy {
		if existing[c.ID] {
			report.Skipped++
			continue
		}
		fresh = append(fresh, c)
	}
	for i := 0; i < len(fresh); i += e.batchSize {
		end := i + e.batchSize
		if end > len(fresh) {
			end = len(fresh)
		}
		created, err := e.users.BulkCreate(ctx, fresh[i:end])
		if err != nil {
			return report, derr.Infraf(err, "bulk create clinicians")
		}
		report.Created += created
	}
	return report, nil
}

func (e *Engine) storeCliniciansLocally(ctx context.Context, legacy []*LegacyClinician) (Report, error) {
	var report Report
	existingIDs, err := e.clinicians.IDs(ctx)
	if err != nil {
		return report, derr.Infraf(err, "list existing clinicians")
	}
	existing := idSet(existingIDs)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, c := range legacy {
		if existing[c.ID] {
			report.Skipped++
			continue
		}
		c := c
		g.Go(func() error {
			if c.FirstName == "" && c.LastName == "" {
				e.log.Warn().Str("clinician_id", c.ID.String()).
					Msg("legacy clinician has no name, skipping")
				mu.Lock()
				report.Failed++
				mu.Unlock()
				return nil
			}
			if err := e.withTx(gctx, func(ctx context.Context) error {
				return e.clinicians.Create(ctx, c)
			}); err != nil {
				return derr.Infraf(err, "create clinician")
			}
			mu.Lock()
			report.Created++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

// MigratePatients replays patient aggregates. Baby back-references on
// deliveries are wired in a second pass once every patient row exists, so
// insertion order within the run does not matter.
func (e *Engine) MigratePatients(ctx context.Context) (Report, error) {
	start := time.Now()
	var report Report

	legacy, err := e.reader.Patients(ctx)
	if err != nil {
		return report, derr.Infraf(err, "read legacy patients")
	}
	existingIDs, err := e.patients.IDs(ctx)
	if err != nil {
		return report, derr.Infraf(err, "list existing patients")
	}
	existing := idSet(existingIDs)

	type babyLink struct {
		delivery *patient.Delivery
		babyID   uuid.UUID
	}
	var mu sync.Mutex
	var links []babyLink

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, p := range legacy {
		if existing[p.ID] {
			report.Skipped++
			continue
		}
		p := p
		g.Go(func() error {
			if p.NHSNumber != nil && !patient.ValidNHSNumber(*p.NHSNumber) {
				e.log.Warn().Str("patient_id", p.ID.String()).
					Msg("legacy patient has an invalid nhs number, skipping")
				mu.Lock()
				report.Failed++
				mu.Unlock()
				return nil
			}

			// Strip baby references until every patient exists.
			var local []babyLink
			if p.Record != nil {
				for _, pr := range p.Record.Pregnancies {
					for _, d := range pr.Deliveries {
						if d.PatientID != nil {
							local = append(local, babyLink{delivery: d, babyID: *d.PatientID})
							d.PatientID = nil
						}
					}
				}
			}

			enrollments := p.Products
			p.Products = nil
			if err := e.withTx(gctx, func(ctx context.Context) error {
				if err := e.patients.Create(ctx, p); err != nil {
					return err
				}
				for _, en := range enrollments {
					en.PatientID = p.ID
					if err := e.products.Create(ctx, en); err != nil {
						return err
					}
				}
				return nil
			}); err != nil {
				return derr.Infraf(err, "create patient aggregate")
			}
			p.Products = enrollments

			mu.Lock()
			report.Created++
			links = append(links, local...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	for _, link := range links {
		link.delivery.PatientID = &link.babyID
		if err := e.patients.UpdateDelivery(ctx, link.delivery); err != nil {
			return report, derr.Infraf(err, "wire baby reference")
		}
	}

	report.Elapsed = time.Since(start)
	e.log.Info().Str("report", report.String()).Msg("patient migration finished")
	return report, nil
}

func idSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
