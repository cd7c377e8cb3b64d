package migration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog"

	"github.com/dhos/dhos/internal/domain/clinician"
	"github.com/dhos/dhos/internal/domain/patient"
	"github.com/dhos/dhos/internal/domain/product"
)

// Neo4jReader reads legacy aggregates from the graph store. Nodes reference
// each other by uuid; the reader bulk-loads each node label once and
// assembles the nested aggregates in memory, mirroring how the legacy
// system's export walked the graph.
type Neo4jReader struct {
	driver neo4j.DriverWithContext
	log    zerolog.Logger
}

func NewNeo4jReader(ctx context.Context, uri, username, password string, log zerolog.Logger) (*Neo4jReader, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, err
	}
	return &Neo4jReader{driver: driver, log: log}, nil
}

func (r *Neo4jReader) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

// collect runs a read query and returns one map per row, taken from the
// single returned value.
func (r *Neo4jReader) collect(ctx context.Context, query string) ([]map[string]any, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, nil)
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for result.Next(ctx) {
		values := result.Record().Values
		if len(values) == 0 {
			continue
		}
		if m, ok := values[0].(map[string]any); ok {
			out = append(out, m)
		}
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Neo4jReader) Locations(ctx context.Context) ([]*LegacyLocation, error) {
	rows, err := r.collect(ctx, `
		MATCH (n:Location)
		OPTIONAL MATCH (n)-[:CHILD_OF]->(parent:Location)
		RETURN {uuid: n.uuid, location_type: n.location_type, ods_code: n.ods_code,
			display_name: n.display_name, active: n.active, parent_id: parent.uuid,
			created: n.created}`)
	if err != nil {
		return nil, err
	}

	var out []*LegacyLocation
	for _, m := range rows {
		id, ok := r.nodeID(m)
		if !ok {
			continue
		}
		l := &LegacyLocation{
			ID:           id,
			LocationType: nodeString(m, "location_type"),
			ODSCode:      nodeStringPtr(m, "ods_code"),
			DisplayName:  nodeString(m, "display_name"),
			Active:       nodeBool(m, "active", true),
		}
		if parent, ok := nodeUUID(m, "parent_id"); ok {
			l.ParentID = &parent
		}
		if t := nodeTimePtr(m, "created"); t != nil {
			l.CreatedAt = *t
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *Neo4jReader) Clinicians(ctx context.Context) ([]*LegacyClinician, error) {
	rows, err := r.collect(ctx, `
		MATCH (c:Clinician)
		RETURN {uuid: c.uuid, first_name: c.first_name, last_name: c.last_name,
			email_address: c.email_address, phone_number: c.phone_number,
			job_title: c.job_title, nhs_smartcard_number: c.nhs_smartcard_number,
			send_entry_identifier: c.send_entry_identifier, login_active: c.login_active,
			contract_expiry_eod_date: c.contract_expiry_eod_date,
			groups: c.groups, locations: c.locations, products: [
				(c)-[:ACTIVE_ON_PRODUCT]->(cp:ClinicianProduct) | {
					uuid: cp.uuid, product_name: cp.product_name,
					opened_date: cp.opened_date, closed_date: cp.closed_date }]}`)
	if err != nil {
		return nil, err
	}

	var out []*LegacyClinician
	for _, m := range rows {
		id, ok := r.nodeID(m)
		if !ok {
			continue
		}
		c := &LegacyClinician{
			ID:                  id,
			FirstName:           nodeString(m, "first_name"),
			LastName:            nodeString(m, "last_name"),
			EmailAddress:        nodeString(m, "email_address"),
			PhoneNumber:         nodeStringPtr(m, "phone_number"),
			JobTitle:            nodeStringPtr(m, "job_title"),
			NHSSmartcardNumber:  nodeStringPtr(m, "nhs_smartcard_number"),
			SendEntryIdentifier: nodeStringPtr(m, "send_entry_identifier"),
			LoginActive:         nodeBool(m, "login_active", false),
			ContractExpiry:      nodeTimePtr(m, "contract_expiry_eod_date"),
			Groups:              nodeStrings(m, "groups"),
			Locations:           nodeUUIDs(m, "locations"),
		}
		for _, pm := range nodeMaps(m, "products") {
			cp := &clinician.Product{ProductName: nodeString(pm, "product_name")}
			if pid, ok := nodeUUID(pm, "uuid"); ok {
				cp.ID = pid
			}
			if t := nodeTimePtr(pm, "opened_date"); t != nil {
				cp.OpenedDate = *t
			}
			cp.ClosedDate = nodeTimePtr(pm, "closed_date")
			c.Products = append(c.Products, cp)
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *Neo4jReader) Patients(ctx context.Context) ([]*LegacyPatientRecord, error) {
	rows, err := r.collect(ctx, `
		MATCH (n:Patient)
		OPTIONAL MATCH (n)-[:HAS_RECORD]->(rec:Record)
		RETURN {uuid: n.uuid, record_id: rec.uuid,
			patient_type: CASE
				WHEN 'Baby' IN labels(n) THEN 'baby'
				WHEN 'SendPatient' IN labels(n) THEN 'send'
				ELSE 'regular' END,
			first_name: n.first_name, last_name: n.last_name,
			phone_number: n.phone_number, dob: n.dob, dod: n.dod,
			nhs_number: n.nhs_number, hospital_number: n.hospital_number,
			email_address: n.email_address, ethnicity: n.ethnicity, sex: n.sex,
			allowed_to_text: n.allowed_to_text, allowed_to_email: n.allowed_to_email,
			other_notes: n.other_notes, locations: n.locations,
			bookmarked_at_locations: n.bookmarked_at_locations}`)
	if err != nil {
		return nil, err
	}

	patients := make(map[uuid.UUID]*LegacyPatientRecord, len(rows))
	records := make(map[uuid.UUID]*patient.Record)
	var out []*LegacyPatientRecord
	for _, m := range rows {
		id, ok := r.nodeID(m)
		if !ok {
			continue
		}
		p := &LegacyPatientRecord{
			ID:                  id,
			PatientType:         nodeString(m, "patient_type"),
			FirstName:           nodeString(m, "first_name"),
			LastName:            nodeString(m, "last_name"),
			PhoneNumber:         nodeStringPtr(m, "phone_number"),
			DOB:                 nodeTimePtr(m, "dob"),
			DOD:                 nodeTimePtr(m, "dod"),
			NHSNumber:           nodeStringPtr(m, "nhs_number"),
			HospitalNumber:      nodeStringPtr(m, "hospital_number"),
			EmailAddress:        nodeStringPtr(m, "email_address"),
			Ethnicity:           nodeStringPtr(m, "ethnicity"),
			Sex:                 nodeStringPtr(m, "sex"),
			AllowedToText:       nodeBoolPtr(m, "allowed_to_text"),
			AllowedToEmail:      nodeBoolPtr(m, "allowed_to_email"),
			OtherNotes:          nodeStringPtr(m, "other_notes"),
			Locations:           nodeUUIDs(m, "locations"),
			BookmarkedLocations: nodeUUIDs(m, "bookmarked_at_locations"),
			Record:              &patient.Record{PatientID: id},
		}
		if rid, ok := nodeUUID(m, "record_id"); ok {
			p.Record.ID = rid
			records[rid] = p.Record
		}
		patients[id] = p
		out = append(out, p)
	}

	if err := r.loadEnrollments(ctx, patients); err != nil {
		return nil, err
	}
	if err := r.loadRecordChildren(ctx, records); err != nil {
		return nil, err
	}
	if err := r.loadTermsAgreements(ctx, patients); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Neo4jReader) loadEnrollments(ctx context.Context, patients map[uuid.UUID]*LegacyPatientRecord) error {
	rows, err := r.collect(ctx, `
		MATCH (n:DraysonHealthProduct)<-[:ACTIVE_ON_PRODUCT]-(p:Patient)
		RETURN {uuid: n.uuid, patient_id: p.uuid, product_name: n.product_name,
			opened_date: n.opened_date, closed_date: n.closed_date,
			closed_reason: n.closed_reason, closed_reason_other: n.closed_reason_other,
			monitored_by_clinician: n.monitored_by_clinician, changes: [
				(n)-[:HAS_CHANGE]->(ch:DraysonHealthProductChange) | {
					uuid: ch.uuid, event: ch.event, created: ch.created }]}`)
	if err != nil {
		return err
	}
	for _, m := range rows {
		id, ok := r.nodeID(m)
		if !ok {
			continue
		}
		pid, ok := nodeUUID(m, "patient_id")
		if !ok {
			continue
		}
		p, ok := patients[pid]
		if !ok {
			continue
		}
		e := &product.Enrollment{
			ID:                   id,
			PatientID:            pid,
			ProductName:          nodeString(m, "product_name"),
			ClosedDate:           nodeTimePtr(m, "closed_date"),
			ClosedReason:         nodeStringPtr(m, "closed_reason"),
			ClosedReasonOther:    nodeStringPtr(m, "closed_reason_other"),
			MonitoredByClinician: nodeBool(m, "monitored_by_clinician", false),
		}
		if t := nodeTimePtr(m, "opened_date"); t != nil {
			e.OpenedDate = *t
		}
		for _, cm := range nodeMaps(m, "changes") {
			ch := product.Change{EnrollmentID: id, Event: nodeString(cm, "event")}
			if cid, ok := nodeUUID(cm, "uuid"); ok {
				ch.ID = cid
			}
			if t := nodeTimePtr(cm, "created"); t != nil {
				ch.CreatedAt = *t
			}
			e.Changes = append(e.Changes, ch)
		}
		p.Products = append(p.Products, e)
	}
	return nil
}

func (r *Neo4jReader) loadRecordChildren(ctx context.Context, records map[uuid.UUID]*patient.Record) error {
	noteRows, err := r.collect(ctx, `
		MATCH (n:Note)<-[:HAS_NOTE]-(rec:Record)
		RETURN {uuid: n.uuid, record_id: rec.uuid, content: n.content,
			clinician_uuid: n.clinician_uuid, created: n.created}`)
	if err != nil {
		return err
	}
	for _, m := range noteRows {
		rec, ok := r.recordOf(m, records)
		if !ok {
			continue
		}
		id, _ := r.nodeID(m)
		n := &patient.Note{
			ID:            id,
			RecordID:      rec.ID,
			Content:       nodeString(m, "content"),
			ClinicianUUID: nodeStringPtr(m, "clinician_uuid"),
		}
		if t := nodeTimePtr(m, "created"); t != nil {
			n.CreatedAt = *t
		}
		rec.Notes = append(rec.Notes, n)
	}

	histRows, err := r.collect(ctx, `
		MATCH (n:History)<-[:HAS_HISTORY]-(rec:Record)
		RETURN {uuid: n.uuid, record_id: rec.uuid, parity: n.parity, gravidity: n.gravidity}`)
	if err != nil {
		return err
	}
	for _, m := range histRows {
		rec, ok := r.recordOf(m, records)
		if !ok {
			continue
		}
		id, _ := r.nodeID(m)
		rec.History = &patient.History{
			ID:        id,
			RecordID:  rec.ID,
			Parity:    nodeIntPtr(m, "parity"),
			Gravidity: nodeIntPtr(m, "gravidity"),
		}
	}

	if err := r.loadDiagnoses(ctx, records); err != nil {
		return err
	}
	return r.loadPregnancies(ctx, records)
}

func (r *Neo4jReader) loadDiagnoses(ctx context.Context, records map[uuid.UUID]*patient.Record) error {
	rows, err := r.collect(ctx, `
		MATCH (n:Diagnosis)<-[:HAS_DIAGNOSIS]-(rec:Record)
		RETURN {uuid: n.uuid, record_id: rec.uuid, sct_code: n.sct_code,
			diagnosis_other: n.diagnosis_other, diagnosed: n.diagnosed,
			resolved: n.resolved, presented: n.presented, episode: n.episode,
			diagnosis_tool: n.diagnosis_tool, diagnosis_tool_other: n.diagnosis_tool_other,
			risk_factors: n.risk_factors, management_plan: head([
				(n)-[:HAS_MANAGEMENT_PLAN]->(mp:ManagementPlan) | {
					uuid: mp.uuid, sct_code: mp.sct_code,
					start_date: mp.start_date, end_date: mp.end_date,
					doses: [(mp)-[:HAS_DOSE]->(d:Dose) | {
						uuid: d.uuid, medication_id: d.medication_id,
						dose_amount: d.dose_amount, routine_sct_code: d.routine_sct_code,
						created: d.created }]}])}`)
	if err != nil {
		return err
	}
	for _, m := range rows {
		rec, ok := r.recordOf(m, records)
		if !ok {
			continue
		}
		id, _ := r.nodeID(m)
		d := &patient.Diagnosis{
			ID:                 id,
			RecordID:           rec.ID,
			SCTCode:            nodeString(m, "sct_code"),
			DiagnosisOther:     nodeStringPtr(m, "diagnosis_other"),
			Diagnosed:          nodeTimePtr(m, "diagnosed"),
			Resolved:           nodeTimePtr(m, "resolved"),
			Presented:          nodeTimePtr(m, "presented"),
			Episode:            nodeIntPtr(m, "episode"),
			DiagnosisTool:      nodeStrings(m, "diagnosis_tool"),
			DiagnosisToolOther: nodeStringPtr(m, "diagnosis_tool_other"),
			RiskFactors:        nodeStrings(m, "risk_factors"),
		}
		if mpMap, ok := m["management_plan"].(map[string]any); ok {
			mp := &patient.ManagementPlan{
				DiagnosisID: d.ID,
				SCTCode:     nodeString(mpMap, "sct_code"),
				StartDate:   nodeTimePtr(mpMap, "start_date"),
				EndDate:     nodeTimePtr(mpMap, "end_date"),
			}
			if mpID, ok := nodeUUID(mpMap, "uuid"); ok {
				mp.ID = mpID
			}
			for _, dm := range nodeMaps(mpMap, "doses") {
				dose := &patient.Dose{
					ManagementPlanID: mp.ID,
					MedicationID:     nodeString(dm, "medication_id"),
					DoseAmount:       nodeFloatPtr(dm, "dose_amount"),
					RoutineSCTCode:   nodeStringPtr(dm, "routine_sct_code"),
				}
				if doseID, ok := nodeUUID(dm, "uuid"); ok {
					dose.ID = doseID
				}
				if t := nodeTimePtr(dm, "created"); t != nil {
					dose.CreatedAt = *t
				}
				mp.Doses = append(mp.Doses, dose)
			}
			d.ManagementPlan = mp
		}
		rec.Diagnoses = append(rec.Diagnoses, d)
	}
	return nil
}

func (r *Neo4jReader) loadPregnancies(ctx context.Context, records map[uuid.UUID]*patient.Record) error {
	rows, err := r.collect(ctx, `
		MATCH (n:Pregnancy)<-[:HAS_PREGNANCY]-(rec:Record)
		RETURN {uuid: n.uuid, record_id: rec.uuid,
			estimated_delivery_date: n.estimated_delivery_date,
			planned_delivery_place: n.planned_delivery_place,
			length_of_postnatal_stay_in_days: n.length_of_postnatal_stay_in_days,
			expected_number_of_babies: n.expected_number_of_babies,
			pregnancy_complications: n.pregnancy_complications,
			induced: n.induced, height_at_booking_in_mm: n.height_at_booking_in_mm,
			weight_at_booking_in_g: n.weight_at_booking_in_g,
			weight_at_diagnosis_in_g: n.weight_at_diagnosis_in_g,
			weight_at_36_weeks_in_g: n.weight_at_36_weeks_in_g,
			delivery_place: n.delivery_place, delivery_place_other: n.delivery_place_other,
			first_medication_taken: n.first_medication_taken,
			first_medication_taken_recorded: n.first_medication_taken_recorded,
			deliveries: [(n)-[:HAS_DELIVERY]->(d:Delivery) | {
				uuid: d.uuid, birth_outcome: d.birth_outcome,
				outcome_for_baby: d.outcome_for_baby,
				neonatal_complications: d.neonatal_complications,
				neonatal_complications_other: d.neonatal_complications_other,
				admitted_to_special_baby_care_unit: d.admitted_to_special_baby_care_unit,
				birth_weight_in_grams: d.birth_weight_in_grams,
				length_of_postnatal_stay_for_baby: d.length_of_postnatal_stay_for_baby,
				apgar_1_minute: d.apgar_1_minute, apgar_5_minute: d.apgar_5_minute,
				feeding_method: d.feeding_method, date_of_termination: d.date_of_termination,
				baby_id: head([(d)-[:DELIVERY_OF]->(b:Patient) | b.uuid])}]}`)
	if err != nil {
		return err
	}
	for _, m := range rows {
		rec, ok := r.recordOf(m, records)
		if !ok {
			continue
		}
		id, _ := r.nodeID(m)
		pr := &patient.Pregnancy{
			ID:                         id,
			RecordID:                   rec.ID,
			EstimatedDeliveryDate:      nodeTimePtr(m, "estimated_delivery_date"),
			PlannedDeliveryPlace:       nodeStringPtr(m, "planned_delivery_place"),
			LengthOfPostnatalStayDays:  nodeIntPtr(m, "length_of_postnatal_stay_in_days"),
			ExpectedNumberOfBabies:     nodeIntPtr(m, "expected_number_of_babies"),
			PregnancyComplications:     nodeStrings(m, "pregnancy_complications"),
			Induced:                    nodeBoolPtr(m, "induced"),
			HeightAtBookingMM:          nodeIntPtr(m, "height_at_booking_in_mm"),
			WeightAtBookingG:           nodeIntPtr(m, "weight_at_booking_in_g"),
			WeightAtDiagnosisG:         nodeIntPtr(m, "weight_at_diagnosis_in_g"),
			WeightAt36WeeksG:           nodeIntPtr(m, "weight_at_36_weeks_in_g"),
			DeliveryPlace:              nodeStringPtr(m, "delivery_place"),
			DeliveryPlaceOther:         nodeStringPtr(m, "delivery_place_other"),
			FirstMedicationTaken:       nodeStringPtr(m, "first_medication_taken"),
			FirstMedicationTakenRecord: nodeTimePtr(m, "first_medication_taken_recorded"),
		}
		for _, dm := range nodeMaps(m, "deliveries") {
			d := &patient.Delivery{
				PregnancyID:                pr.ID,
				BirthOutcome:               nodeStringPtr(dm, "birth_outcome"),
				OutcomeForBaby:             nodeStringPtr(dm, "outcome_for_baby"),
				NeonatalComplications:      nodeStrings(dm, "neonatal_complications"),
				NeonatalComplicationsOther: nodeStringPtr(dm, "neonatal_complications_other"),
				AdmittedToSpecialBabyCare:  nodeBoolPtr(dm, "admitted_to_special_baby_care_unit"),
				BirthWeightGrams:           nodeIntPtr(dm, "birth_weight_in_grams"),
				LengthOfPostnatalStayBaby:  nodeIntPtr(dm, "length_of_postnatal_stay_for_baby"),
				Apgar1Minute:               nodeIntPtr(dm, "apgar_1_minute"),
				Apgar5Minute:               nodeIntPtr(dm, "apgar_5_minute"),
				FeedingMethod:              nodeStringPtr(dm, "feeding_method"),
				DateOfTermination:          nodeTimePtr(dm, "date_of_termination"),
			}
			if did, ok := nodeUUID(dm, "uuid"); ok {
				d.ID = did
			}
			if babyID, ok := nodeUUID(dm, "baby_id"); ok {
				d.PatientID = &babyID
			}
			pr.Deliveries = append(pr.Deliveries, d)
		}
		rec.Pregnancies = append(rec.Pregnancies, pr)
	}
	return nil
}

func (r *Neo4jReader) loadTermsAgreements(ctx context.Context, patients map[uuid.UUID]*LegacyPatientRecord) error {
	rows, err := r.collect(ctx, `
		MATCH (n:TermsAgreement)<-[:HAS_ACCEPTED]-(p:Patient)
		RETURN {uuid: n.uuid, patient_id: p.uuid, product_name: n.product_name,
			version: n.version, accepted_timestamp: n.accepted_timestamp}`)
	if err != nil {
		return err
	}
	for _, m := range rows {
		pid, ok := nodeUUID(m, "patient_id")
		if !ok {
			continue
		}
		p, ok := patients[pid]
		if !ok {
			continue
		}
		id, _ := r.nodeID(m)
		t := &patient.TermsAgreement{
			ID:          id,
			PatientID:   pid,
			ProductName: nodeString(m, "product_name"),
		}
		if v := nodeIntPtr(m, "version"); v != nil {
			t.Version = *v
		}
		if at := nodeTimePtr(m, "accepted_timestamp"); at != nil {
			t.AcceptedTimestamp = *at
		}
		p.TermsAgreements = append(p.TermsAgreements, t)
	}
	return nil
}

// nodeID extracts and validates the node's uuid, logging and dropping nodes
// without one so a single bad node never sinks a run.
func (r *Neo4jReader) nodeID(m map[string]any) (uuid.UUID, bool) {
	id, ok := nodeUUID(m, "uuid")
	if !ok {
		r.log.Warn().Interface("node", m["uuid"]).Msg("legacy node has no parseable uuid, skipping")
	}
	return id, ok
}

func (r *Neo4jReader) recordOf(m map[string]any, records map[uuid.UUID]*patient.Record) (*patient.Record, bool) {
	rid, ok := nodeUUID(m, "record_id")
	if !ok {
		return nil, false
	}
	rec, ok := records[rid]
	return rec, ok
}

func nodeString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func nodeStringPtr(m map[string]any, key string) *string {
	if s, ok := m[key].(string); ok && s != "" {
		return &s
	}
	return nil
}

func nodeBool(m map[string]any, key string, fallback bool) bool {
	if b, ok := m[key].(bool); ok {
		return b
	}
	return fallback
}

func nodeBoolPtr(m map[string]any, key string) *bool {
	if b, ok := m[key].(bool); ok {
		return &b
	}
	return nil
}

func nodeIntPtr(m map[string]any, key string) *int {
	switch v := m[key].(type) {
	case int64:
		i := int(v)
		return &i
	case float64:
		i := int(v)
		return &i
	}
	return nil
}

func nodeFloatPtr(m map[string]any, key string) *float64 {
	switch v := m[key].(type) {
	case float64:
		return &v
	case int64:
		f := float64(v)
		return &f
	}
	return nil
}

// nodeTimePtr copes with the legacy store's mixed representations: epoch
// seconds for audit stamps, ISO date or datetime strings for clinical dates.
func nodeTimePtr(m map[string]any, key string) *time.Time {
	switch v := m[key].(type) {
	case int64:
		t := time.Unix(v, 0).UTC()
		return &t
	case float64:
		t := time.Unix(int64(v), 0).UTC()
		return &t
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return &t
			}
		}
	case time.Time:
		return &v
	}
	return nil
}

func nodeUUID(m map[string]any, key string) (uuid.UUID, bool) {
	s, ok := m[key].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	return id, err == nil
}

func nodeUUIDs(m map[string]any, key string) []uuid.UUID {
	var out []uuid.UUID
	for _, v := range nodeStrings(m, key) {
		if id, err := uuid.Parse(v); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func nodeStrings(m map[string]any, key string) []string {
	items, ok := m[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range items {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func nodeMaps(m map[string]any, key string) []map[string]any {
	items, ok := m[key].([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, v := range items {
		if mm, ok := v.(map[string]any); ok {
			out = append(out, mm)
		}
	}
	return out
}
