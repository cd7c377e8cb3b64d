package patient

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dhos/dhos/internal/domain/derr"
)

func strp(s string) *string  { return &s }
func intp(i int) *int        { return &i }
func boolp(b bool) *bool     { return &b }
func timep(t time.Time) *time.Time { return &t }

func completeGDMPatient() *Patient {
	dob := time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC)
	return &Patient{
		Record: &Record{
			Pregnancies: []*Pregnancy{{
				HeightAtBookingMM:         intp(1650),
				WeightAtBookingG:          intp(65000),
				LengthOfPostnatalStayDays: intp(2),
				Induced:                   boolp(false),
				Deliveries: []*Delivery{{
					BirthOutcome:              strp("48782003"),
					OutcomeForBaby:            strp("169826009"),
					BirthWeightGrams:          intp(3200),
					NeonatalComplications:     []string{"52767006"},
					AdmittedToSpecialBabyCare: boolp(false),
					Baby:                      &Patient{DOB: &dob},
				}},
			}},
			Diagnoses: []*Diagnosis{{
				SCTCode:       "11687002",
				Diagnosed:     timep(time.Date(2018, 10, 1, 0, 0, 0, 0, time.UTC)),
				DiagnosisTool: []string{"D0000018"},
				RiskFactors:   []string{"D0000013"},
			}},
		},
	}
}

func checklistReasons(t *testing.T, err error) []string {
	t.Helper()
	var ce *derr.ChecklistError
	if !errors.As(err, &ce) {
		t.Fatalf("expected checklist error, got %v", err)
	}
	return ce.Reasons
}

func TestValidateClosure_CompleteRecordPasses(t *testing.T) {
	if err := ValidateClosure("GDM", nil, completeGDMPatient()); err != nil {
		t.Fatalf("expected closable record, got %v", err)
	}
}

func TestValidateClosure_MissingPregnancyFields(t *testing.T) {
	p := completeGDMPatient()
	preg := p.Record.Pregnancies[0]
	preg.HeightAtBookingMM = nil
	preg.Induced = nil

	reasons := checklistReasons(t, ValidateClosure("GDM", nil, p))
	want := []string{
		"height_at_booking_in_mm is required to close a record",
		"induced is required to close a record",
	}
	if len(reasons) != len(want) {
		t.Fatalf("got %d reasons, want %d: %v", len(reasons), len(want), reasons)
	}
	for i, r := range want {
		if reasons[i] != r {
			t.Errorf("reason %d = %q, want %q", i, reasons[i], r)
		}
	}
}

func TestValidateClosure_MissingDeliveryFields(t *testing.T) {
	p := completeGDMPatient()
	d := p.Record.Pregnancies[0].Deliveries[0]
	d.BirthWeightGrams = nil
	d.NeonatalComplications = nil
	d.Baby = nil

	reasons := checklistReasons(t, ValidateClosure("GDM", nil, p))
	for _, want := range []string{
		"birth_weight_in_grams is required to close a record",
		"neonatal_complications is required to close a record",
		"baby dob is required to close a record",
	} {
		if !containsReason(reasons, want) {
			t.Errorf("missing reason %q in %v", want, reasons)
		}
	}
}

func TestValidateClosure_NeonatalComplicationsOtherSuffices(t *testing.T) {
	p := completeGDMPatient()
	d := p.Record.Pregnancies[0].Deliveries[0]
	d.NeonatalComplications = nil
	d.NeonatalComplicationsOther = strp("prolonged jaundice")

	if err := ValidateClosure("GDM", nil, p); err != nil {
		t.Fatalf("expected other text to satisfy complications, got %v", err)
	}
}

func TestValidateClosure_Termination(t *testing.T) {
	p := completeGDMPatient()
	d := p.Record.Pregnancies[0].Deliveries[0]
	d.BirthOutcome = strp("386639001")
	d.BirthWeightGrams = nil
	d.NeonatalComplications = nil
	d.AdmittedToSpecialBabyCare = nil
	d.Baby = nil

	reasons := checklistReasons(t, ValidateClosure("GDM", nil, p))
	if len(reasons) != 1 || reasons[0] != "date_of_termination is required to close a record" {
		t.Fatalf("unexpected reasons: %v", reasons)
	}

	d.DateOfTermination = timep(time.Date(2019, 1, 15, 0, 0, 0, 0, time.UTC))
	if err := ValidateClosure("GDM", nil, p); err != nil {
		t.Fatalf("expected termination with date to pass, got %v", err)
	}
}

func TestValidateClosure_TerminationDateOnLiveBirthRejected(t *testing.T) {
	p := completeGDMPatient()
	p.Record.Pregnancies[0].Deliveries[0].DateOfTermination = timep(time.Now())

	reasons := checklistReasons(t, ValidateClosure("GDM", nil, p))
	if len(reasons) != 1 || reasons[0] != "date_of_termination is not required to close this record" {
		t.Fatalf("unexpected reasons: %v", reasons)
	}
}

func TestValidateClosure_SCBUAdmissionNeedsStayLength(t *testing.T) {
	p := completeGDMPatient()
	d := p.Record.Pregnancies[0].Deliveries[0]
	d.AdmittedToSpecialBabyCare = boolp(true)

	reasons := checklistReasons(t, ValidateClosure("GDM", nil, p))
	if len(reasons) != 1 || reasons[0] != "length_of_postnatal_stay_for_baby is required to close a record" {
		t.Fatalf("unexpected reasons: %v", reasons)
	}

	d.LengthOfPostnatalStayBaby = intp(5)
	if err := ValidateClosure("GDM", nil, p); err != nil {
		t.Fatalf("expected stay length to satisfy checklist, got %v", err)
	}
}

func TestValidateClosure_DiabetesDiagnosisFields(t *testing.T) {
	p := completeGDMPatient()
	diag := p.Record.Diagnoses[0]
	diag.Diagnosed = nil
	diag.DiagnosisTool = nil
	diag.RiskFactors = nil

	reasons := checklistReasons(t, ValidateClosure("GDM", nil, p))
	want := []string{
		"diagnosed (date) is required to close a record",
		"diagnosis_tool is required to close a record",
		"risk_factors is required to close a record",
	}
	if len(reasons) != len(want) {
		t.Fatalf("got reasons %v, want %v", reasons, want)
	}
	for i := range want {
		if reasons[i] != want[i] {
			t.Errorf("reason %d = %q, want %q", i, reasons[i], want[i])
		}
	}
}

func TestValidateClosure_NonDiabetesDiagnosisIgnored(t *testing.T) {
	p := completeGDMPatient()
	p.Record.Diagnoses = []*Diagnosis{{SCTCode: "38341003"}}

	if err := ValidateClosure("GDM", nil, p); err != nil {
		t.Fatalf("expected non-diabetes diagnosis to be skipped, got %v", err)
	}
}

func TestValidateClosure_ReasonBypassesChecklist(t *testing.T) {
	p := &Patient{Record: &Record{Pregnancies: []*Pregnancy{{}}}}
	if err := ValidateClosure("GDM", strp("D0000034"), p); err != nil {
		t.Fatalf("expected closed reason to bypass checklist, got %v", err)
	}
}

func TestValidateClosure_DBMClosesUnconditionally(t *testing.T) {
	p := &Patient{Record: &Record{Pregnancies: []*Pregnancy{{}}}}
	if err := ValidateClosure("DBM", nil, p); err != nil {
		t.Fatalf("expected DBM to close without a checklist, got %v", err)
	}
}

func TestValidateClosure_UnregisteredProduct(t *testing.T) {
	err := ValidateClosure("SEND", nil, completeGDMPatient())
	if !errors.Is(err, derr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "cannot be closed") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestValidateClosure_ProductNameCaseInsensitive(t *testing.T) {
	if err := ValidateClosure("gdm", nil, completeGDMPatient()); err != nil {
		t.Fatalf("expected lowercase product name to resolve, got %v", err)
	}
}

func containsReason(reasons []string, want string) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}
