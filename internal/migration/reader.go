// Package migration moves legacy graph data into the relational store. The
// legacy system kept patients, clinicians and locations in neo4j; the engine
// reads fully nested aggregates from a LegacyReader and replays them through
// the domain repositories, so repeated runs are safe.
package migration

import (
	"context"

	"github.com/dhos/dhos/internal/domain/clinician"
	"github.com/dhos/dhos/internal/domain/location"
	"github.com/dhos/dhos/internal/domain/patient"
)

// Legacy aggregates are the domain aggregates themselves: the reader maps
// graph nodes straight onto them so the engine can hand them to repositories
// unchanged.
type (
	LegacyLocation      = location.Location
	LegacyClinician     = clinician.Clinician
	LegacyPatientRecord = patient.Patient
)

// LegacyReader enumerates everything in the legacy store. Patients come back
// fully nested: record, diagnoses, plans, doses, pregnancies, deliveries,
// enrollments and terms agreements. Deliveries referencing baby patients
// carry the baby's uuid; the baby itself appears in the patient list.
type LegacyReader interface {
	Locations(ctx context.Context) ([]*LegacyLocation, error)
	Clinicians(ctx context.Context) ([]*LegacyClinician, error)
	Patients(ctx context.Context) ([]*LegacyPatientRecord, error)
}
