package patient

import (
	"context"
	"errors"

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

const patientCols = `id, patient_type, first_name, last_name, phone_number, dob, dod,
	nhs_number, hospital_number, email_address, ethnicity, sex,
	allowed_to_text, allowed_to_email, other_notes, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.PatientType, &p.FirstName, &p.LastName, &p.PhoneNumber, &p.DOB, &p.DOD,
		&p.NHSNumber, &p.HospitalNumber, &p.EmailAddress, &p.Ethnicity, &p.Sex,
		&p.AllowedToText, &p.AllowedToEmail, &p.OtherNotes, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient (id, patient_type, first_name, last_name, phone_number, dob, dod,
			nhs_number, hospital_number, email_address, ethnicity, sex,
			allowed_to_text, allowed_to_email, other_notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.PatientType, p.FirstName, p.LastName, p.PhoneNumber, p.DOB, p.DOD,
		p.NHSNumber, p.HospitalNumber, p.EmailAddress, p.Ethnicity, p.Sex,
		p.AllowedToText, p.AllowedToEmail, p.OtherNotes)
	if err != nil {
		return err
	}

	if err := r.SetLocations(ctx, p.ID, p.Locations); err != nil {
		return err
	}

	if p.Record == nil {
		p.Record = &Record{}
	}
	if p.Record.ID == uuid.Nil {
		p.Record.ID = uuid.New()
	}
	p.Record.PatientID = p.ID
	if _, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO record (id, patient_id) VALUES ($1,$2) ON CONFLICT (id) DO NOTHING`,
		p.Record.ID, p.Record.PatientID); err != nil {
		return err
	}

	if h := p.Record.History; h != nil {
		if h.ID == uuid.Nil {
			h.ID = uuid.New()
		}
		h.RecordID = p.Record.ID
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO history (id, record_id, parity, gravidity)
			VALUES ($1,$2,$3,$4) ON CONFLICT (id) DO NOTHING`,
			h.ID, h.RecordID, h.Parity, h.Gravidity); err != nil {
			return err
		}
	}

	for _, n := range p.Record.Notes {
		if n.ID == uuid.Nil {
			n.ID = uuid.New()
		}
		n.RecordID = p.Record.ID
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO note (id, record_id, content, clinician_uuid)
			VALUES ($1,$2,$3,$4) ON CONFLICT (id) DO NOTHING`,
			n.ID, n.RecordID, n.Content, n.ClinicianUUID); err != nil {
			return err
		}
	}

	for _, d := range p.Record.Diagnoses {
		d.RecordID = p.Record.ID
		if err := r.AddDiagnosis(ctx, d); err != nil {
			return err
		}
	}
	for _, preg := range p.Record.Pregnancies {
		preg.RecordID = p.Record.ID
		if err := r.AddPregnancy(ctx, preg); err != nil {
			return err
		}
	}
	for _, t := range p.TermsAgreements {
		t.PatientID = p.ID
		if err := r.AddTermsAgreement(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadAssociations(ctx, p); err != nil {
		return nil, err
	}
	if err := r.loadRecord(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) loadAssociations(ctx context.Context, p *Patient) error {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT location_id FROM patient_location WHERE patient_id = $1`, p.ID)
	if err != nil {
		return err
	}
	p.Locations, err = collectUUIDs(rows)
	if err != nil {
		return err
	}

	rows, err = r.conn(ctx).Query(ctx,
		`SELECT location_id FROM patient_bookmark WHERE patient_id = $1`, p.ID)
	if err != nil {
		return err
	}
	p.BookmarkedLocations, err = collectUUIDs(rows)
	if err != nil {
		return err
	}

	rows, err = r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, product_name, version, accepted_timestamp
		FROM terms_agreement WHERE patient_id = $1 ORDER BY accepted_timestamp`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var t TermsAgreement
		if err := rows.Scan(&t.ID, &t.PatientID, &t.ProductName, &t.Version, &t.AcceptedTimestamp); err != nil {
			return err
		}
		p.TermsAgreements = append(p.TermsAgreements, &t)
	}
	return rows.Err()
}

func (r *repoPG) loadRecord(ctx context.Context, p *Patient) error {
	var rec Record
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, created_at, updated_at FROM record WHERE patient_id = $1`, p.ID).
		Scan(&rec.ID, &rec.PatientID, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	p.Record = &rec

	var h History
	err = r.conn(ctx).QueryRow(ctx, `
		SELECT id, record_id, parity, gravidity FROM history WHERE record_id = $1`, rec.ID).
		Scan(&h.ID, &h.RecordID, &h.Parity, &h.Gravidity)
	if err == nil {
		rec.History = &h
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, record_id, content, clinician_uuid, created_at
		FROM note WHERE record_id = $1 ORDER BY created_at, id`, rec.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.RecordID, &n.Content, &n.ClinicianUUID, &n.CreatedAt); err != nil {
			return err
		}
		rec.Notes = append(rec.Notes, &n)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if err := r.loadDiagnoses(ctx, &rec); err != nil {
		return err
	}
	return r.loadPregnancies(ctx, &rec)
}

func (r *repoPG) loadDiagnoses(ctx context.Context, rec *Record) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, record_id, sct_code, diagnosis_other, diagnosed, resolved, presented, episode,
			diagnosis_tool, diagnosis_tool_other, risk_factors, created_at, updated_at
		FROM diagnosis WHERE record_id = $1 ORDER BY created_at, id`, rec.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var d Diagnosis
		if err := rows.Scan(&d.ID, &d.RecordID, &d.SCTCode, &d.DiagnosisOther, &d.Diagnosed,
			&d.Resolved, &d.Presented, &d.Episode, &d.DiagnosisTool, &d.DiagnosisToolOther,
			&d.RiskFactors, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return err
		}
		rec.Diagnoses = append(rec.Diagnoses, &d)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, d := range rec.Diagnoses {
		var mp ManagementPlan
		err := r.conn(ctx).QueryRow(ctx, `
			SELECT id, diagnosis_id, sct_code, start_date, end_date, created_at, updated_at
			FROM management_plan WHERE diagnosis_id = $1`, d.ID).
			Scan(&mp.ID, &mp.DiagnosisID, &mp.SCTCode, &mp.StartDate, &mp.EndDate, &mp.CreatedAt, &mp.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return err
		}
		d.ManagementPlan = &mp
		if err := r.loadDoses(ctx, &mp); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) loadDoses(ctx context.Context, mp *ManagementPlan) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, management_plan_id, medication_id, dose_amount, routine_sct_code, deleted, created_at
		FROM dose WHERE management_plan_id = $1 ORDER BY created_at, id`, mp.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var d Dose
		if err := rows.Scan(&d.ID, &d.ManagementPlanID, &d.MedicationID, &d.DoseAmount,
			&d.RoutineSCTCode, &d.Deleted, &d.CreatedAt); err != nil {
			return err
		}
		mp.Doses = append(mp.Doses, &d)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.conn(ctx).Query(ctx, `
		SELECT id, management_plan_id, dose_id, action, clinician_uuid, created_at
		FROM dose_history WHERE management_plan_id = $1 ORDER BY created_at, id`, mp.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var h DoseHistory
		if err := rows.Scan(&h.ID, &h.ManagementPlanID, &h.DoseID, &h.Action, &h.ClinicianUUID, &h.CreatedAt); err != nil {
			return err
		}
		mp.DoseHistory = append(mp.DoseHistory, &h)
	}
	return rows.Err()
}

func (r *repoPG) loadPregnancies(ctx context.Context, rec *Record) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, record_id, estimated_delivery_date, planned_delivery_place,
			length_of_postnatal_stay_in_days, expected_number_of_babies, pregnancy_complications,
			induced, height_at_booking_in_mm, weight_at_booking_in_g, weight_at_diagnosis_in_g,
			weight_at_36_weeks_in_g, delivery_place, delivery_place_other,
			first_medication_taken, first_medication_taken_recorded, created_at, updated_at
		FROM pregnancy WHERE record_id = $1 ORDER BY created_at, id`, rec.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var pr Pregnancy
		if err := rows.Scan(&pr.ID, &pr.RecordID, &pr.EstimatedDeliveryDate, &pr.PlannedDeliveryPlace,
			&pr.LengthOfPostnatalStayDays, &pr.ExpectedNumberOfBabies, &pr.PregnancyComplications,
			&pr.Induced, &pr.HeightAtBookingMM, &pr.WeightAtBookingG, &pr.WeightAtDiagnosisG,
			&pr.WeightAt36WeeksG, &pr.DeliveryPlace, &pr.DeliveryPlaceOther,
			&pr.FirstMedicationTaken, &pr.FirstMedicationTakenRecord, &pr.CreatedAt, &pr.UpdatedAt); err != nil {
			return err
		}
		rec.Pregnancies = append(rec.Pregnancies, &pr)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, pr := range rec.Pregnancies {
		rows, err := r.conn(ctx).Query(ctx, `
			SELECT id, pregnancy_id, birth_outcome, outcome_for_baby, neonatal_complications,
				neonatal_complications_other, admitted_to_special_baby_care_unit,
				birth_weight_in_grams, length_of_postnatal_stay_for_baby,
				apgar_1_minute, apgar_5_minute, feeding_method, date_of_termination,
				patient_id, created_at, updated_at
			FROM delivery WHERE pregnancy_id = $1 ORDER BY created_at, id`, pr.ID)
		if err != nil {
			return err
		}
		for rows.Next() {
			var d Delivery
			if err := rows.Scan(&d.ID, &d.PregnancyID, &d.BirthOutcome, &d.OutcomeForBaby,
				&d.NeonatalComplications, &d.NeonatalComplicationsOther, &d.AdmittedToSpecialBabyCare,
				&d.BirthWeightGrams, &d.LengthOfPostnatalStayBaby,
				&d.Apgar1Minute, &d.Apgar5Minute, &d.FeedingMethod, &d.DateOfTermination,
				&d.PatientID, &d.CreatedAt, &d.UpdatedAt); err != nil {
				rows.Close()
				return err
			}
			pr.Deliveries = append(pr.Deliveries, &d)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}

		for _, d := range pr.Deliveries {
			if d.PatientID == nil {
				continue
			}
			baby, err := scanPatient(r.conn(ctx).QueryRow(ctx,
				`SELECT `+patientCols+` FROM patient WHERE id = $1`, *d.PatientID))
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			if err != nil {
				return err
			}
			d.Baby = baby
		}
	}
	return nil
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient SET first_name=$2, last_name=$3, phone_number=$4, dob=$5, dod=$6,
			nhs_number=$7, hospital_number=$8, email_address=$9, ethnicity=$10, sex=$11,
			allowed_to_text=$12, allowed_to_email=$13, other_notes=$14, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.PhoneNumber, p.DOB, p.DOD,
		p.NHSNumber, p.HospitalNumber, p.EmailAddress, p.Ethnicity, p.Sex,
		p.AllowedToText, p.AllowedToEmail, p.OtherNotes)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	return err
}

func (r *repoPG) OpenEnrollmentExistsByNHSNumber(ctx context.Context, nhsNumber, productName string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM patient p
			JOIN dh_product e ON e.patient_id = p.id
			WHERE p.nhs_number = $1 AND e.product_name = $2 AND e.closed_date IS NULL
		)`, nhsNumber, productName).Scan(&exists)
	return exists, err
}

func (r *repoPG) SetLocations(ctx context.Context, patientID uuid.UUID, locationIDs []uuid.UUID) error {
	if _, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM patient_location WHERE patient_id = $1`, patientID); err != nil {
		return err
	}
	for _, locID := range locationIDs {
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO patient_location (patient_id, location_id) VALUES ($1,$2)
			ON CONFLICT DO NOTHING`, patientID, locID); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) AddBookmark(ctx context.Context, patientID, locationID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_bookmark (patient_id, location_id) VALUES ($1,$2)
		ON CONFLICT DO NOTHING`, patientID, locationID)
	return err
}

func (r *repoPG) RemoveBookmark(ctx context.Context, patientID, locationID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM patient_bookmark WHERE patient_id = $1 AND location_id = $2`,
		patientID, locationID)
	return err
}

func (r *repoPG) AddDiagnosis(ctx context.Context, d *Diagnosis) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO diagnosis (id, record_id, sct_code, diagnosis_other, diagnosed, resolved,
			presented, episode, diagnosis_tool, diagnosis_tool_other, risk_factors)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO NOTHING`,
		d.ID, d.RecordID, d.SCTCode, d.DiagnosisOther, d.Diagnosed, d.Resolved,
		d.Presented, d.Episode, d.DiagnosisTool, d.DiagnosisToolOther, d.RiskFactors)
	if err != nil {
		return err
	}
	if d.ManagementPlan != nil {
		d.ManagementPlan.DiagnosisID = d.ID
		if err := r.UpsertManagementPlan(ctx, d.ManagementPlan); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) UpdateDiagnosis(ctx context.Context, d *Diagnosis) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE diagnosis SET sct_code=$2, diagnosis_other=$3, diagnosed=$4, resolved=$5,
			presented=$6, episode=$7, diagnosis_tool=$8, diagnosis_tool_other=$9,
			risk_factors=$10, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.SCTCode, d.DiagnosisOther, d.Diagnosed, d.Resolved,
		d.Presented, d.Episode, d.DiagnosisTool, d.DiagnosisToolOther, d.RiskFactors)
	return err
}

func (r *repoPG) DeleteDiagnosis(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM diagnosis WHERE id = $1`, id)
	return err
}

func (r *repoPG) UpsertManagementPlan(ctx context.Context, mp *ManagementPlan) error {
	if mp.ID == uuid.Nil {
		mp.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO management_plan (id, diagnosis_id, sct_code, start_date, end_date)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET sct_code=$3, start_date=$4, end_date=$5, updated_at=NOW()`,
		mp.ID, mp.DiagnosisID, mp.SCTCode, mp.StartDate, mp.EndDate)
	if err != nil {
		return err
	}
	for _, dose := range mp.Doses {
		dose.ManagementPlanID = mp.ID
		if err := r.AddDose(ctx, dose); err != nil {
			return err
		}
	}
	for _, h := range mp.DoseHistory {
		h.ManagementPlanID = mp.ID
		if err := r.AddDoseHistory(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) AddDose(ctx context.Context, d *Dose) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO dose (id, management_plan_id, medication_id, dose_amount, routine_sct_code, deleted)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO NOTHING`,
		d.ID, d.ManagementPlanID, d.MedicationID, d.DoseAmount, d.RoutineSCTCode, d.Deleted)
	return err
}

func (r *repoPG) SoftDeleteDose(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE dose SET deleted = TRUE WHERE id = $1`, id)
	return err
}

func (r *repoPG) AddDoseHistory(ctx context.Context, h *DoseHistory) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO dose_history (id, management_plan_id, dose_id, action, clinician_uuid)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO NOTHING`,
		h.ID, h.ManagementPlanID, h.DoseID, h.Action, h.ClinicianUUID)
	return err
}

func (r *repoPG) AddPregnancy(ctx context.Context, pr *Pregnancy) error {
	if pr.ID == uuid.Nil {
		pr.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO pregnancy (id, record_id, estimated_delivery_date, planned_delivery_place,
			length_of_postnatal_stay_in_days, expected_number_of_babies, pregnancy_complications,
			induced, height_at_booking_in_mm, weight_at_booking_in_g, weight_at_diagnosis_in_g,
			weight_at_36_weeks_in_g, delivery_place, delivery_place_other,
			first_medication_taken, first_medication_taken_recorded)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO NOTHING`,
		pr.ID, pr.RecordID, pr.EstimatedDeliveryDate, pr.PlannedDeliveryPlace,
		pr.LengthOfPostnatalStayDays, pr.ExpectedNumberOfBabies, pr.PregnancyComplications,
		pr.Induced, pr.HeightAtBookingMM, pr.WeightAtBookingG, pr.WeightAtDiagnosisG,
		pr.WeightAt36WeeksG, pr.DeliveryPlace, pr.DeliveryPlaceOther,
		pr.FirstMedicationTaken, pr.FirstMedicationTakenRecord)
	if err != nil {
		return err
	}
	for _, d := range pr.Deliveries {
		d.PregnancyID = pr.ID
		if err := r.AddDelivery(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) UpdatePregnancy(ctx context.Context, pr *Pregnancy) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE pregnancy SET estimated_delivery_date=$2, planned_delivery_place=$3,
			length_of_postnatal_stay_in_days=$4, expected_number_of_babies=$5,
			pregnancy_complications=$6, induced=$7, height_at_booking_in_mm=$8,
			weight_at_booking_in_g=$9, weight_at_diagnosis_in_g=$10, weight_at_36_weeks_in_g=$11,
			delivery_place=$12, delivery_place_other=$13,
			first_medication_taken=$14, first_medication_taken_recorded=$15, updated_at=NOW()
		WHERE id = $1`,
		pr.ID, pr.EstimatedDeliveryDate, pr.PlannedDeliveryPlace,
		pr.LengthOfPostnatalStayDays, pr.ExpectedNumberOfBabies,
		pr.PregnancyComplications, pr.Induced, pr.HeightAtBookingMM,
		pr.WeightAtBookingG, pr.WeightAtDiagnosisG, pr.WeightAt36WeeksG,
		pr.DeliveryPlace, pr.DeliveryPlaceOther,
		pr.FirstMedicationTaken, pr.FirstMedicationTakenRecord)
	return err
}

func (r *repoPG) DeletePregnancy(ctx context.Context, id uuid.UUID) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM delivery WHERE pregnancy_id = $1`, id); err != nil {
		return err
	}
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM pregnancy WHERE id = $1`, id)
	return err
}

func (r *repoPG) AddDelivery(ctx context.Context, d *Delivery) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO delivery (id, pregnancy_id, birth_outcome, outcome_for_baby,
			neonatal_complications, neonatal_complications_other, admitted_to_special_baby_care_unit,
			birth_weight_in_grams, length_of_postnatal_stay_for_baby,
			apgar_1_minute, apgar_5_minute, feeding_method, date_of_termination, patient_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO NOTHING`,
		d.ID, d.PregnancyID, d.BirthOutcome, d.OutcomeForBaby,
		d.NeonatalComplications, d.NeonatalComplicationsOther, d.AdmittedToSpecialBabyCare,
		d.BirthWeightGrams, d.LengthOfPostnatalStayBaby,
		d.Apgar1Minute, d.Apgar5Minute, d.FeedingMethod, d.DateOfTermination, d.PatientID)
	return err
}

func (r *repoPG) UpdateDelivery(ctx context.Context, d *Delivery) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE delivery SET birth_outcome=$2, outcome_for_baby=$3, neonatal_complications=$4,
			neonatal_complications_other=$5, admitted_to_special_baby_care_unit=$6,
			birth_weight_in_grams=$7, length_of_postnatal_stay_for_baby=$8,
			apgar_1_minute=$9, apgar_5_minute=$10, feeding_method=$11,
			date_of_termination=$12, patient_id=$13, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.BirthOutcome, d.OutcomeForBaby, d.NeonatalComplications,
		d.NeonatalComplicationsOther, d.AdmittedToSpecialBabyCare,
		d.BirthWeightGrams, d.LengthOfPostnatalStayBaby,
		d.Apgar1Minute, d.Apgar5Minute, d.FeedingMethod,
		d.DateOfTermination, d.PatientID)
	return err
}

func (r *repoPG) DeleteDelivery(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM delivery WHERE id = $1`, id)
	return err
}

func (r *repoPG) AddTermsAgreement(ctx context.Context, t *TermsAgreement) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.AcceptedTimestamp.IsZero() {
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO terms_agreement (id, patient_id, product_name, version)
			VALUES ($1,$2,$3,$4) ON CONFLICT (id) DO NOTHING`,
			t.ID, t.PatientID, t.ProductName, t.Version)
		return err
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO terms_agreement (id, patient_id, product_name, version, accepted_timestamp)
		VALUES ($1,$2,$3,$4,$5) ON CONFLICT (id) DO NOTHING`,
		t.ID, t.PatientID, t.ProductName, t.Version, t.AcceptedTimestamp)
	return err
}

func collectUUIDs(rows pgx.Rows) ([]uuid.UUID, error) {
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

func (r *repoPG) IDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id FROM patient`)
	if err != nil {
		return nil, err
	}
	return collectUUIDs(rows)
}
