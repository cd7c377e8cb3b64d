package patient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/dhos/dhos/internal/domain/derr"
	"github.com/dhos/dhos/internal/domain/product"
	"github.com/dhos/dhos/internal/platform/publish"
)

type mockPatientRepo struct {
	patients map[uuid.UUID]*Patient
	openNHS  map[string]bool
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{
		patients: make(map[uuid.UUID]*Patient),
		openNHS:  make(map[string]bool),
	}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Record == nil {
		p.Record = &Record{}
	}
	if p.Record.ID == uuid.Nil {
		p.Record.ID = uuid.New()
	}
	p.Record.PatientID = p.ID
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return p, nil
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.patients, id)
	return nil
}

func (m *mockPatientRepo) OpenEnrollmentExistsByNHSNumber(_ context.Context, nhsNumber, productName string) (bool, error) {
	return m.openNHS[nhsNumber+"|"+productName], nil
}

func (m *mockPatientRepo) SetLocations(_ context.Context, patientID uuid.UUID, locationIDs []uuid.UUID) error {
	m.patients[patientID].Locations = locationIDs
	return nil
}

func (m *mockPatientRepo) AddBookmark(_ context.Context, patientID, locationID uuid.UUID) error {
	p := m.patients[patientID]
	p.BookmarkedLocations = append(p.BookmarkedLocations, locationID)
	return nil
}

func (m *mockPatientRepo) RemoveBookmark(_ context.Context, patientID, locationID uuid.UUID) error {
	p := m.patients[patientID]
	kept := p.BookmarkedLocations[:0]
	for _, id := range p.BookmarkedLocations {
		if id != locationID {
			kept = append(kept, id)
		}
	}
	p.BookmarkedLocations = kept
	return nil
}

func (m *mockPatientRepo) recordOf(recordID uuid.UUID) *Record {
	for _, p := range m.patients {
		if p.Record != nil && p.Record.ID == recordID {
			return p.Record
		}
	}
	return nil
}

func (m *mockPatientRepo) AddDiagnosis(_ context.Context, d *Diagnosis) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	r := m.recordOf(d.RecordID)
	if r == nil {
		return pgx.ErrNoRows
	}
	r.Diagnoses = append(r.Diagnoses, d)
	return nil
}

func (m *mockPatientRepo) UpdateDiagnosis(_ context.Context, d *Diagnosis) error { return nil }

func (m *mockPatientRepo) DeleteDiagnosis(_ context.Context, id uuid.UUID) error {
	for _, p := range m.patients {
		if p.Record == nil {
			continue
		}
		kept := p.Record.Diagnoses[:0]
		for _, d := range p.Record.Diagnoses {
			if d.ID != id {
				kept = append(kept, d)
			}
		}
		p.Record.Diagnoses = kept
	}
	return nil
}

func (m *mockPatientRepo) findDiagnosis(id uuid.UUID) *Diagnosis {
	for _, p := range m.patients {
		if p.Record == nil {
			continue
		}
		for _, d := range p.Record.Diagnoses {
			if d.ID == id {
				return d
			}
		}
	}
	return nil
}

func (m *mockPatientRepo) UpsertManagementPlan(_ context.Context, mp *ManagementPlan) error {
	if mp.ID == uuid.Nil {
		mp.ID = uuid.New()
	}
	d := m.findDiagnosis(mp.DiagnosisID)
	if d == nil {
		return pgx.ErrNoRows
	}
	for _, dose := range mp.Doses {
		if dose.ID == uuid.Nil {
			dose.ID = uuid.New()
		}
		dose.ManagementPlanID = mp.ID
	}
	d.ManagementPlan = mp
	return nil
}

func (m *mockPatientRepo) findPlan(id uuid.UUID) *ManagementPlan {
	for _, p := range m.patients {
		if p.Record == nil {
			continue
		}
		for _, d := range p.Record.Diagnoses {
			if d.ManagementPlan != nil && d.ManagementPlan.ID == id {
				return d.ManagementPlan
			}
		}
	}
	return nil
}

func (m *mockPatientRepo) AddDose(_ context.Context, d *Dose) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	plan := m.findPlan(d.ManagementPlanID)
	if plan == nil {
		return pgx.ErrNoRows
	}
	plan.Doses = append(plan.Doses, d)
	return nil
}

func (m *mockPatientRepo) SoftDeleteDose(_ context.Context, id uuid.UUID) error {
	for _, p := range m.patients {
		if p.Record == nil {
			continue
		}
		for _, d := range p.Record.Diagnoses {
			if d.ManagementPlan == nil {
				continue
			}
			for _, dose := range d.ManagementPlan.Doses {
				if dose.ID == id {
					dose.Deleted = true
					return nil
				}
			}
		}
	}
	return pgx.ErrNoRows
}

func (m *mockPatientRepo) AddDoseHistory(_ context.Context, h *DoseHistory) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	plan := m.findPlan(h.ManagementPlanID)
	if plan == nil {
		return pgx.ErrNoRows
	}
	plan.DoseHistory = append(plan.DoseHistory, h)
	return nil
}

func (m *mockPatientRepo) AddPregnancy(_ context.Context, pr *Pregnancy) error {
	if pr.ID == uuid.Nil {
		pr.ID = uuid.New()
	}
	r := m.recordOf(pr.RecordID)
	if r == nil {
		return pgx.ErrNoRows
	}
	r.Pregnancies = append(r.Pregnancies, pr)
	return nil
}

func (m *mockPatientRepo) UpdatePregnancy(_ context.Context, pr *Pregnancy) error { return nil }

func (m *mockPatientRepo) DeletePregnancy(_ context.Context, id uuid.UUID) error {
	for _, p := range m.patients {
		if p.Record == nil {
			continue
		}
		kept := p.Record.Pregnancies[:0]
		for _, pr := range p.Record.Pregnancies {
			if pr.ID != id {
				kept = append(kept, pr)
			}
		}
		p.Record.Pregnancies = kept
	}
	return nil
}

func (m *mockPatientRepo) AddDelivery(_ context.Context, d *Delivery) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	for _, p := range m.patients {
		if p.Record == nil {
			continue
		}
		for _, pr := range p.Record.Pregnancies {
			if pr.ID == d.PregnancyID {
				pr.Deliveries = append(pr.Deliveries, d)
				return nil
			}
		}
	}
	return pgx.ErrNoRows
}

func (m *mockPatientRepo) UpdateDelivery(_ context.Context, d *Delivery) error { return nil }

func (m *mockPatientRepo) DeleteDelivery(_ context.Context, id uuid.UUID) error {
	for _, p := range m.patients {
		if p.Record == nil {
			continue
		}
		for _, pr := range p.Record.Pregnancies {
			kept := pr.Deliveries[:0]
			for _, d := range pr.Deliveries {
				if d.ID != id {
					kept = append(kept, d)
				}
			}
			pr.Deliveries = kept
		}
	}
	return nil
}

func (m *mockPatientRepo) AddTermsAgreement(_ context.Context, t *TermsAgreement) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	p, ok := m.patients[t.PatientID]
	if !ok {
		return pgx.ErrNoRows
	}
	p.TermsAgreements = append(p.TermsAgreements, t)
	return nil
}

func (m *mockPatientRepo) IDs(_ context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id := range m.patients {
		ids = append(ids, id)
	}
	return ids, nil
}

type mockProductRepo struct {
	enrollments map[uuid.UUID]*product.Enrollment
	createErr   error
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{enrollments: make(map[uuid.UUID]*product.Enrollment)}
}

func (m *mockProductRepo) Create(_ context.Context, e *product.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	m.enrollments[e.ID] = e
	return nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id uuid.UUID) (*product.Enrollment, error) {
	e, ok := m.enrollments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return e, nil
}

func (m *mockProductRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*product.Enrollment, error) {
	var out []*product.Enrollment
	for _, e := range m.enrollments {
		if e.PatientID == patientID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockProductRepo) Update(_ context.Context, e *product.Enrollment) error {
	if _, ok := m.enrollments[e.ID]; !ok {
		return pgx.ErrNoRows
	}
	m.enrollments[e.ID] = e
	return nil
}

func (m *mockProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.enrollments, id)
	return nil
}

type fakePublisher struct {
	events []publish.Event
}

func (f *fakePublisher) Publish(_ context.Context, e publish.Event) error {
	f.events = append(f.events, e)
	return nil
}

func newTestService() (*Service, *mockPatientRepo, *mockProductRepo, *fakePublisher) {
	patients := newMockPatientRepo()
	products := newMockProductRepo()
	pub := &fakePublisher{}
	svc := NewService(patients, products, pub, nil, zerolog.Nop())
	return svc, patients, products, pub
}

func seedPatient(t *testing.T, svc *Service, p *Patient) *Patient {
	t.Helper()
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("seed patient: %v", err)
	}
	return p
}

func TestCreate_PublishesCreation(t *testing.T) {
	svc, _, products, pub := newTestService()
	ctx := WithClinician(context.Background(), "clinician-1")

	p := &Patient{
		FirstName: "Jane",
		LastName:  "Grey",
		NHSNumber: strp("8888888888"),
		Products:  []*product.Enrollment{{ProductName: "GDM"}},
	}
	if err := svc.Create(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID == uuid.Nil {
		t.Fatal("expected an id to be assigned")
	}
	if p.PatientType != TypeRegular {
		t.Errorf("patient type = %q, want %q", p.PatientType, TypeRegular)
	}

	e := p.Products[0]
	if e.PatientID != p.ID {
		t.Error("enrollment not linked to patient")
	}
	if e.OpenedDate.IsZero() {
		t.Error("opened date not defaulted")
	}
	if _, ok := products.enrollments[e.ID]; !ok {
		t.Error("enrollment not persisted")
	}

	if len(pub.events) != 1 {
		t.Fatalf("got %d events, want 1", len(pub.events))
	}
	ev := pub.events[0]
	if ev.Kind != publish.KindCreation {
		t.Errorf("event kind = %q", ev.Kind)
	}
	if ev.ClinicianID == nil || *ev.ClinicianID != "clinician-1" {
		t.Errorf("clinician id not carried: %v", ev.ClinicianID)
	}
}

func TestCreate_InvalidNHSNumber(t *testing.T) {
	svc, patients, _, pub := newTestService()

	err := svc.Create(context.Background(), &Patient{NHSNumber: strp("8888888881")})
	if !errors.Is(err, derr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(patients.patients) != 0 {
		t.Error("patient persisted despite invalid nhs number")
	}
	if len(pub.events) != 0 {
		t.Error("event published despite failure")
	}
}

func TestCreate_DuplicateOpenEnrollment(t *testing.T) {
	svc, patients, _, pub := newTestService()
	patients.openNHS["8888888888|GDM"] = true

	err := svc.Create(context.Background(), &Patient{
		NHSNumber: strp("8888888888"),
		Products:  []*product.Enrollment{{ProductName: "GDM"}},
	})
	if !errors.Is(err, derr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Error("event published despite conflict")
	}
}

func TestCreate_EnrollmentConflictFromStore(t *testing.T) {
	svc, _, products, pub := newTestService()
	products.createErr = derr.Conflictf("patient already has an open GDM enrollment")

	err := svc.Create(context.Background(), &Patient{
		Products: []*product.Enrollment{{ProductName: "GDM"}},
	})
	if !errors.Is(err, derr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if errors.Is(err, derr.ErrInfrastructure) {
		t.Error("conflict reclassified as infrastructure failure")
	}
	if len(pub.events) != 0 {
		t.Error("event published despite conflict")
	}
}

func TestGet_PublishesView(t *testing.T) {
	svc, _, _, pub := newTestService()
	p := seedPatient(t, svc, &Patient{FirstName: "Jane"})
	pub.events = nil

	got, err := svc.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != p.ID {
		t.Error("wrong patient returned")
	}
	if len(pub.events) != 1 || pub.events[0].Kind != publish.KindView {
		t.Errorf("expected one view event, got %v", pub.events)
	}
}

func TestGet_NotFound(t *testing.T) {
	svc, _, _, pub := newTestService()

	_, err := svc.Get(context.Background(), uuid.New())
	if !errors.Is(err, derr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Error("view event published for missing patient")
	}
}

func TestCloseProduct(t *testing.T) {
	svc, _, _, pub := newTestService()
	p := completeGDMPatient()
	p.Products = []*product.Enrollment{{ProductName: "GDM"}}
	seedPatient(t, svc, p)
	pub.events = nil

	e := p.Products[0]
	closedDate := time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := svc.CloseProduct(context.Background(), p.ID, e.ID, closedDate, nil, nil); err != nil {
		t.Fatalf("close: %v", err)
	}
	if e.Open() {
		t.Error("enrollment still open")
	}
	if len(pub.events) != 1 {
		t.Fatalf("got %d events, want 1", len(pub.events))
	}
	ev := pub.events[0]
	if ev.Kind != publish.KindClose {
		t.Errorf("event kind = %q", ev.Kind)
	}
	if ev.ProductID == nil || *ev.ProductID != e.ID {
		t.Error("product id not carried on close event")
	}
}

func TestCloseProduct_ChecklistFailureLeavesStateUnchanged(t *testing.T) {
	svc, _, _, pub := newTestService()
	p := &Patient{
		Record:   &Record{Pregnancies: []*Pregnancy{{}}},
		Products: []*product.Enrollment{{ProductName: "GDM"}},
	}
	seedPatient(t, svc, p)
	pub.events = nil

	e := p.Products[0]
	err := svc.CloseProduct(context.Background(), p.ID, e.ID, time.Now(), nil, nil)
	var ce *derr.ChecklistError
	if !errors.As(err, &ce) {
		t.Fatalf("expected checklist error, got %v", err)
	}
	if !e.Open() {
		t.Error("enrollment closed despite checklist failure")
	}
	if len(pub.events) != 0 {
		t.Error("event published despite failure")
	}
}

func TestCloseProduct_MissingCloseDate(t *testing.T) {
	svc, _, _, _ := newTestService()
	err := svc.CloseProduct(context.Background(), uuid.New(), uuid.New(), time.Time{}, nil, nil)
	if !errors.Is(err, derr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStartMonitoring_Idempotent(t *testing.T) {
	svc, _, _, pub := newTestService()
	p := seedPatient(t, svc, &Patient{
		Products: []*product.Enrollment{{ProductName: "GDM"}},
	})
	pub.events = nil
	e := p.Products[0]

	got, err := svc.StartMonitoring(context.Background(), p.ID, e.ID)
	if err != nil {
		t.Fatalf("start monitoring: %v", err)
	}
	if !got.MonitoredByClinician {
		t.Error("enrollment not monitored")
	}
	if len(pub.events) != 1 || pub.events[0].Kind != publish.KindStartMonitoring {
		t.Fatalf("expected one start event, got %v", pub.events)
	}

	if _, err := svc.StartMonitoring(context.Background(), p.ID, e.ID); err != nil {
		t.Fatalf("repeat start: %v", err)
	}
	if len(pub.events) != 1 {
		t.Error("repeat start published an event")
	}

	if _, err := svc.StopMonitoring(context.Background(), p.ID, e.ID); err != nil {
		t.Fatalf("stop monitoring: %v", err)
	}
	if len(pub.events) != 2 || pub.events[1].Kind != publish.KindStopMonitoring {
		t.Fatalf("expected stop event, got %v", pub.events)
	}
}

func TestAmendDose(t *testing.T) {
	svc, _, _, _ := newTestService()
	p := seedPatient(t, svc, &Patient{})

	d := &Diagnosis{SCTCode: "11687002"}
	if err := svc.AddDiagnosis(context.Background(), p.ID, d); err != nil {
		t.Fatalf("add diagnosis: %v", err)
	}
	mp := &ManagementPlan{
		SCTCode: "D0000007",
		Doses:   []*Dose{{MedicationID: "metformin", DoseAmount: floatp(500)}},
	}
	if err := svc.UpdateManagementPlan(context.Background(), p.ID, d.ID, mp); err != nil {
		t.Fatalf("update plan: %v", err)
	}
	if len(mp.DoseHistory) != 1 || mp.DoseHistory[0].Action != DoseActionInsert {
		t.Fatalf("expected insert history, got %v", mp.DoseHistory)
	}

	original := mp.Doses[0]
	if err := svc.AmendDose(context.Background(), p.ID, original.ID, &Dose{
		MedicationID: "metformin",
		DoseAmount:   floatp(1000),
	}); err != nil {
		t.Fatalf("amend dose: %v", err)
	}

	if !original.Deleted {
		t.Error("original dose not soft deleted")
	}
	if len(mp.Doses) != 2 {
		t.Fatalf("got %d doses, want 2", len(mp.Doses))
	}
	replacement := mp.Doses[1]
	if replacement.Deleted || *replacement.DoseAmount != 1000 {
		t.Error("replacement dose wrong")
	}
	last := mp.DoseHistory[len(mp.DoseHistory)-1]
	if last.Action != DoseActionUpdate || last.DoseID != replacement.ID {
		t.Errorf("history entry wrong: %+v", last)
	}
}

func TestAddDelivery_CreatesBaby(t *testing.T) {
	svc, patients, _, _ := newTestService()
	p := seedPatient(t, svc, &Patient{})

	pr := &Pregnancy{}
	if err := svc.AddPregnancy(context.Background(), p.ID, pr); err != nil {
		t.Fatalf("add pregnancy: %v", err)
	}

	dob := time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC)
	d := &Delivery{Baby: &Patient{FirstName: "Sam", DOB: &dob}}
	if err := svc.AddDelivery(context.Background(), p.ID, pr.ID, d); err != nil {
		t.Fatalf("add delivery: %v", err)
	}

	if d.Baby.PatientType != TypeBaby {
		t.Errorf("baby type = %q", d.Baby.PatientType)
	}
	if d.PatientID == nil || *d.PatientID != d.Baby.ID {
		t.Error("delivery not linked to baby")
	}
	if _, ok := patients.patients[d.Baby.ID]; !ok {
		t.Error("baby patient not persisted")
	}
}

func TestDeleteSubentity_PregnancyKeepsBaby(t *testing.T) {
	svc, patients, _, _ := newTestService()
	p := seedPatient(t, svc, &Patient{})

	pr := &Pregnancy{}
	if err := svc.AddPregnancy(context.Background(), p.ID, pr); err != nil {
		t.Fatalf("add pregnancy: %v", err)
	}
	d := &Delivery{Baby: &Patient{FirstName: "Sam"}}
	if err := svc.AddDelivery(context.Background(), p.ID, pr.ID, d); err != nil {
		t.Fatalf("add delivery: %v", err)
	}

	if err := svc.DeleteSubentity(context.Background(), p.ID, pr.ID); err != nil {
		t.Fatalf("delete pregnancy: %v", err)
	}
	if len(p.Record.Pregnancies) != 0 {
		t.Error("pregnancy not removed")
	}
	if _, ok := patients.patients[d.Baby.ID]; !ok {
		t.Error("baby patient removed with pregnancy")
	}
}

func TestDeleteSubentity_UnknownID(t *testing.T) {
	svc, _, _, _ := newTestService()
	p := seedPatient(t, svc, &Patient{})

	err := svc.DeleteSubentity(context.Background(), p.ID, uuid.New())
	if !errors.Is(err, derr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteSubentity_PatientWithoutRecord(t *testing.T) {
	svc, patients, _, _ := newTestService()
	p := &Patient{ID: uuid.New(), PatientType: TypeRegular}
	patients.patients[p.ID] = p

	err := svc.DeleteSubentity(context.Background(), p.ID, uuid.New())
	if !errors.Is(err, derr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAgreeTerms(t *testing.T) {
	svc, _, _, pub := newTestService()
	p := seedPatient(t, svc, &Patient{})
	pub.events = nil

	ta := &TermsAgreement{ProductName: "GDM", Version: 3}
	if err := svc.AgreeTerms(context.Background(), p.ID, ta); err != nil {
		t.Fatalf("agree terms: %v", err)
	}
	if ta.PatientID != p.ID {
		t.Error("terms agreement not linked to patient")
	}
	if len(pub.events) != 1 || pub.events[0].Kind != publish.KindTermsAgreement {
		t.Errorf("expected terms event, got %v", pub.events)
	}
}

func TestBookmark(t *testing.T) {
	svc, _, _, _ := newTestService()
	p := seedPatient(t, svc, &Patient{})
	loc := uuid.New()

	if err := svc.Bookmark(context.Background(), p.ID, loc); err != nil {
		t.Fatalf("bookmark: %v", err)
	}
	if len(p.BookmarkedLocations) != 1 || p.BookmarkedLocations[0] != loc {
		t.Error("bookmark not recorded")
	}
	if err := svc.Unbookmark(context.Background(), p.ID, loc); err != nil {
		t.Fatalf("unbookmark: %v", err)
	}
	if len(p.BookmarkedLocations) != 0 {
		t.Error("bookmark not removed")
	}
}

func TestCheckNHSNumber(t *testing.T) {
	svc, patients, _, _ := newTestService()
	patients.openNHS["8888888888|GDM"] = true

	inUse, err := svc.CheckNHSNumber(context.Background(), "8888888888", "GDM")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !inUse {
		t.Error("expected number to be in use")
	}

	if _, err := svc.CheckNHSNumber(context.Background(), "8888888881", "GDM"); !errors.Is(err, derr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func floatp(f float64) *float64 { return &f }
