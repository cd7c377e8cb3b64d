package patient

import (
	"strings"

	"github.com/dhos/dhos/internal/domain/derr"
)

// Outcome codes treated as termination of pregnancy. Deliveries with one of
// these require a date_of_termination and skip the birth details checklist.
var pregnancyTerminationCodes = map[string]bool{
	"386639001": true, // termination of pregnancy
	"57797005":  true, // termination of pregnancy before 24 weeks
}

// Diagnoses whose SNOMED code is a diabetes type get checked on closure.
var diabetesCodes = map[string]bool{
	"11687002": true, // gestational diabetes mellitus
	"46635009": true, // diabetes mellitus type 1
	"44054006": true, // diabetes mellitus type 2
	"73211009": true, // diabetes mellitus
}

// ClosurePolicy inspects the record before an enrollment in the product may
// close, returning every outstanding item. A nil entry in the registry means
// the product closes unconditionally.
type ClosurePolicy func(p *Patient) []string

var closurePolicies = map[string]ClosurePolicy{
	"GDM": gdmClosureChecklist,
	"DBM": nil,
}

// ValidateClosure applies the product's closure policy. Supplying any closed
// reason bypasses the record checklist; the policy registry still decides
// whether the product is closable at all.
func ValidateClosure(productName string, closedReason *string, p *Patient) error {
	policy, closable := closurePolicies[strings.ToUpper(productName)]
	if !closable {
		return derr.Validationf("%s patients cannot be closed", productName)
	}
	if closedReason != nil || policy == nil {
		return nil
	}
	if reasons := policy(p); len(reasons) > 0 {
		return &derr.ChecklistError{Reasons: reasons}
	}
	return nil
}

func gdmClosureChecklist(p *Patient) []string {
	var reasons []string
	missing := func(field string) {
		reasons = append(reasons, field+" is required to close a record")
	}

	if p.Record == nil {
		return []string{"record is required to close a record"}
	}

	for _, preg := range p.Record.Pregnancies {
		if preg.HeightAtBookingMM == nil {
			missing("height_at_booking_in_mm")
		}
		if preg.WeightAtBookingG == nil {
			missing("weight_at_booking_in_g")
		}
		if preg.LengthOfPostnatalStayDays == nil {
			missing("length_of_postnatal_stay_in_days")
		}
		if preg.Induced == nil {
			missing("induced")
		}

		for _, d := range preg.Deliveries {
			termination := d.BirthOutcome != nil && pregnancyTerminationCodes[*d.BirthOutcome]

			if d.BirthOutcome == nil {
				missing("birth_outcome")
			}
			if d.OutcomeForBaby == nil {
				missing("outcome_for_baby")
			}

			if !termination {
				if d.BirthWeightGrams == nil {
					missing("birth_weight_in_grams")
				}
				if len(d.NeonatalComplications) == 0 && d.NeonatalComplicationsOther == nil {
					missing("neonatal_complications")
				}
				if d.AdmittedToSpecialBabyCare == nil {
					missing("admitted_to_special_baby_care_unit")
				}
				if d.Baby == nil || d.Baby.DOB == nil {
					missing("baby dob")
				}
				if d.DateOfTermination != nil {
					reasons = append(reasons, "date_of_termination is not required to close this record")
				}
			} else if d.DateOfTermination == nil {
				missing("date_of_termination")
			}

			if d.AdmittedToSpecialBabyCare != nil && *d.AdmittedToSpecialBabyCare && d.LengthOfPostnatalStayBaby == nil {
				missing("length_of_postnatal_stay_for_baby")
			}
		}
	}

	for _, diag := range p.Record.Diagnoses {
		if !diabetesCodes[diag.SCTCode] {
			continue
		}
		if diag.Diagnosed == nil {
			missing("diagnosed (date)")
		}
		if len(diag.DiagnosisTool) == 0 && diag.DiagnosisToolOther == nil {
			missing("diagnosis_tool")
		}
		if len(diag.RiskFactors) == 0 {
			missing("risk_factors")
		}
	}

	return reasons
}
