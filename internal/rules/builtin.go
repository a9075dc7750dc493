package rules

import (
	"strconv"
	"strings"

	"github.com/openlearn/kestrel/internal/compare"
	"github.com/openlearn/kestrel/internal/domain"
	"github.com/openlearn/kestrel/internal/interval"
	"github.com/openlearn/kestrel/internal/refdata"
)

// BuiltinRules returns the per-learner rule catalogue.
func BuiltinRules() []Rule {
	return []Rule{
		AimRefKnown{},
		AimRefValidAtStart{},
		ULNKnown{},
		HomePostcodeKnown{},
		DeliveryPostcodeKnown{},
		ContractRefValid{},
		EmployerKnown{},
		AssessmentOrgValid{},
		MonitoringDatesOrdered{},
		MonitoringOverlap{},
		ProgrammeAimOverlap{},
		PlannedEndBeforeStart{},
		FinancialExceedsCap{},
	}
}

// BuiltinBatchRules returns the cross-learner rule catalogue.
func BuiltinBatchRules() []BatchRule {
	return []BatchRule{
		DuplicateLearnRef{},
		DuplicateULN{},
		DuplicateProgramme{},
	}
}

// deliveryWindow is the aim's occupancy span: actual end when present,
// planned end otherwise.
func deliveryWindow(d domain.Delivery) interval.Window {
	end := d.LearnPlanEndDate
	if d.LearnActEndDate != nil {
		end = *d.LearnActEndDate
	}
	return interval.Closed(d.LearnStartDate, end)
}

// AimRefKnown checks every aim reference against the qualification index.
type AimRefKnown struct{}

func (AimRefKnown) Name() string { return "LearnAimRef_01" }

func (r AimRefKnown) Evaluate(l *domain.Learner, ix *refdata.Indices) []domain.Finding {
	var out []domain.Finding
	for _, d := range l.Deliveries {
		if d.AimRef == "" {
			continue
		}
		if !ix.Aims.Contains(d.AimRef) {
			out = append(out, NewFinding(r.Name(), l, d.AimSeqNumber,
				P("LearnAimRef", d.AimRef),
			))
		}
	}
	return out
}

// AimRefValidAtStart checks the aim is within a validity period on the
// learning start date. Unknown aims are left to AimRefKnown.
type AimRefValidAtStart struct{}

func (AimRefValidAtStart) Name() string { return "LearnAimRef_80" }

func (r AimRefValidAtStart) Evaluate(l *domain.Learner, ix *refdata.Indices) []domain.Finding {
	var out []domain.Finding
	for _, d := range l.Deliveries {
		if d.AimRef == "" || !ix.Aims.Contains(d.AimRef) {
			continue
		}
		if _, ok := ix.Aims.AsOf(d.AimRef, d.LearnStartDate); !ok {
			out = append(out, NewFinding(r.Name(), l, d.AimSeqNumber,
				P("LearnAimRef", d.AimRef),
				P("LearnStartDate", d.LearnStartDate.Format(DateFormat)),
			))
		}
	}
	return out
}

// ULNKnown checks the learner's ULN against the known-number registry.
// The temporary placeholder is exempt.
type ULNKnown struct{}

func (ULNKnown) Name() string { return "ULN_03" }

func (r ULNKnown) Evaluate(l *domain.Learner, ix *refdata.Indices) []domain.Finding {
	if l.ULN == 0 || l.ULN == domain.TemporaryULN {
		return nil
	}
	uln := strconv.FormatInt(l.ULN, 10)
	if ix.LearnerRefs.Contains(uln) {
		return nil
	}
	return []domain.Finding{NewFinding(r.Name(), l, 0, P("ULN", uln))}
}

// HomePostcodeKnown checks the learner's home postcode against the registry.
type HomePostcodeKnown struct{}

func (HomePostcodeKnown) Name() string { return "Postcode_14" }

func (r HomePostcodeKnown) Evaluate(l *domain.Learner, ix *refdata.Indices) []domain.Finding {
	if l.Postcode == "" || ix.Postcodes.Known(l.Postcode) {
		return nil
	}
	return []domain.Finding{NewFinding(r.Name(), l, 0, P("Postcode", l.Postcode))}
}

// DeliveryPostcodeKnown checks each delivery location postcode.
type DeliveryPostcodeKnown struct{}

func (DeliveryPostcodeKnown) Name() string { return "DelLocPostCode_11" }

func (r DeliveryPostcodeKnown) Evaluate(l *domain.Learner, ix *refdata.Indices) []domain.Finding {
	var out []domain.Finding
	for _, d := range l.Deliveries {
		if d.DelLocPostCode == "" {
			continue
		}
		if !ix.Postcodes.Known(d.DelLocPostCode) {
			out = append(out, NewFinding(r.Name(), l, d.AimSeqNumber,
				P("DelLocPostCode", d.DelLocPostCode),
			))
		}
	}
	return out
}

// ContractRefValid checks that a contract reference on an apprenticeship
// aim resolves to an allocation valid on the start date.
type ContractRefValid struct{}

func (ContractRefValid) Name() string { return "ConRefNumber_01" }

func (r ContractRefValid) Evaluate(l *domain.Learner, ix *refdata.Indices) []domain.Finding {
	var out []domain.Finding
	for _, d := range l.Deliveries {
		if d.FundModel != domain.FundModelApprenticeship || d.ConRefNumber == "" {
			continue
		}
		if _, ok := ix.Contracts.AsOf(d.ConRefNumber, d.LearnStartDate); !ok {
			out = append(out, NewFinding(r.Name(), l, d.AimSeqNumber,
				P("ConRefNumber", d.ConRefNumber),
				P("LearnStartDate", d.LearnStartDate.Format(DateFormat)),
			))
		}
	}
	return out
}

// EmployerKnown checks the aim's employer is in the employer registry with
// a size band effective on the start date.
type EmployerKnown struct{}

func (EmployerKnown) Name() string { return "EmpId_10" }

func (r EmployerKnown) Evaluate(l *domain.Learner, ix *refdata.Indices) []domain.Finding {
	var out []domain.Finding
	for _, d := range l.Deliveries {
		if d.EmpID == nil {
			continue
		}
		if _, ok := ix.Employers.AttributeAsOf(*d.EmpID, refdata.EmployerAttrSize, d.LearnStartDate); !ok {
			out = append(out, NewFinding(r.Name(), l, d.AimSeqNumber,
				P("EmpId", strconv.Itoa(*d.EmpID)),
			))
		}
	}
	return out
}

// AssessmentOrgValid checks the end-point assessment organisation is
// registered for the aim's period, as of the actual (or planned) end.
type AssessmentOrgValid struct{}

func (AssessmentOrgValid) Name() string { return "EPAOrgID_01" }

func (r AssessmentOrgValid) Evaluate(l *domain.Learner, ix *refdata.Indices) []domain.Finding {
	var out []domain.Finding
	for _, d := range l.Deliveries {
		if d.EPAOrgID == "" {
			continue
		}
		asOf := d.LearnPlanEndDate
		if d.LearnActEndDate != nil {
			asOf = *d.LearnActEndDate
		}
		if _, ok := ix.AssessmentOrgs.AsOf(d.EPAOrgID, asOf); !ok {
			out = append(out, NewFinding(r.Name(), l, d.AimSeqNumber,
				P("EPAOrgID", d.EPAOrgID),
				P("Date", asOf.Format(DateFormat)),
			))
		}
	}
	return out
}

// MonitoringDatesOrdered checks each monitoring period's end is not before
// its start.
type MonitoringDatesOrdered struct{}

func (MonitoringDatesOrdered) Name() string { return "LearnDelFAMDateTo_01" }

func (r MonitoringDatesOrdered) Evaluate(l *domain.Learner, ix *refdata.Indices) []domain.Finding {
	var out []domain.Finding
	for _, d := range l.Deliveries {
		for _, m := range d.Monitoring {
			if m.DateFrom == nil || m.DateTo == nil {
				continue
			}
			if m.DateTo.Before(*m.DateFrom) {
				out = append(out, NewFinding(r.Name(), l, d.AimSeqNumber,
					P("LearnDelFAMType", m.Type),
					P("LearnDelFAMDateFrom", m.DateFrom.Format(DateFormat)),
					P("LearnDelFAMDateTo", m.DateTo.Format(DateFormat)),
				))
			}
		}
	}
	return out
}

// MonitoringOverlap checks that monitoring periods of the same type within
// one aim do not overlap in time.
type MonitoringOverlap struct{}

func (MonitoringOverlap) Name() string { return "LearnDelFAMOverlap_01" }

func (r MonitoringOverlap) Evaluate(l *domain.Learner, ix *refdata.Indices) []domain.Finding {
	var out []domain.Finding
	for _, d := range l.Deliveries {
		byType := make(map[string][]domain.MonitoringPeriod)
		for _, m := range d.Monitoring {
			if m.DateFrom == nil {
				continue
			}
			byType[m.Type] = append(byType[m.Type], m)
		}
		for _, periods := range byType {
			flagged := compare.OverlapsInSequence(periods, func(m domain.MonitoringPeriod) interval.Window {
				return interval.Window{From: *m.DateFrom, To: m.DateTo}
			})
			for _, m := range flagged {
				out = append(out, NewFinding(r.Name(), l, d.AimSeqNumber,
					P("LearnDelFAMType", m.Type),
					P("LearnDelFAMCode", m.Code),
					P("LearnDelFAMDateFrom", m.DateFrom.Format(DateFormat)),
				))
			}
		}
	}
	return out
}

// ProgrammeAimOverlap checks that a learner's programme aims do not overlap
// each other in time.
type ProgrammeAimOverlap struct{}

func (ProgrammeAimOverlap) Name() string { return "LearnStartDate_05" }

func (r ProgrammeAimOverlap) Evaluate(l *domain.Learner, ix *refdata.Indices) []domain.Finding {
	flagged := compare.OverlapsInSequence(l.ProgrammeAims(), deliveryWindow)
	var out []domain.Finding
	for _, d := range flagged {
		out = append(out, NewFinding(r.Name(), l, d.AimSeqNumber,
			P("LearnStartDate", d.LearnStartDate.Format(DateFormat)),
		))
	}
	return out
}

// PlannedEndBeforeStart checks the planned end date is not before the
// start date.
type PlannedEndBeforeStart struct{}

func (PlannedEndBeforeStart) Name() string { return "LearnPlanEndDate_02" }

func (r PlannedEndBeforeStart) Evaluate(l *domain.Learner, ix *refdata.Indices) []domain.Finding {
	var out []domain.Finding
	for _, d := range l.Deliveries {
		if d.LearnPlanEndDate.Before(d.LearnStartDate) {
			out = append(out, NewFinding(r.Name(), l, d.AimSeqNumber,
				P("LearnStartDate", d.LearnStartDate.Format(DateFormat)),
				P("LearnPlanEndDate", d.LearnPlanEndDate.Format(DateFormat)),
			))
		}
	}
	return out
}

// FinancialExceedsCap checks total negotiated price against the contract
// allocation's funding cap as of each financial record's date.
type FinancialExceedsCap struct{}

func (FinancialExceedsCap) Name() string { return "AFinAmount_11" }

func (r FinancialExceedsCap) Evaluate(l *domain.Learner, ix *refdata.Indices) []domain.Finding {
	var out []domain.Finding
	for _, d := range l.Deliveries {
		if d.ConRefNumber == "" {
			continue
		}
		for _, fin := range d.Financials {
			alloc, ok := ix.Contracts.AsOf(d.ConRefNumber, fin.Date)
			if !ok || alloc.FundingCap <= 0 {
				continue
			}
			if float64(fin.Amount) > alloc.FundingCap {
				out = append(out, NewFinding(r.Name(), l, d.AimSeqNumber,
					P("AFinType", fin.Type),
					P("AFinAmount", strconv.Itoa(fin.Amount)),
					P("FundingCap", strconv.FormatFloat(alloc.FundingCap, 'f', -1, 64)),
				))
			}
		}
	}
	return out
}

// DuplicateLearnRef flags every learner whose reference number appears
// more than once in the batch.
type DuplicateLearnRef struct{}

func (DuplicateLearnRef) Name() string { return "LearnRefNumber_01" }

func (r DuplicateLearnRef) EvaluateBatch(batch []*domain.Learner, ix *refdata.Indices) []domain.Finding {
	dups := compare.GroupDuplicates(batch, func(l *domain.Learner) string {
		return l.LearnRefNumber
	})
	var out []domain.Finding
	for _, l := range dups {
		out = append(out, NewFinding(r.Name(), l, 0,
			P("LearnRefNumber", l.LearnRefNumber),
		))
	}
	return out
}

// DuplicateULN flags learners sharing a ULN under different learner
// references.
type DuplicateULN struct{}

func (DuplicateULN) Name() string { return "ULN_12" }

func (r DuplicateULN) EvaluateBatch(batch []*domain.Learner, ix *refdata.Indices) []domain.Finding {
	flagged := compare.GroupNearDuplicates(batch,
		func(l *domain.Learner) string {
			if l.ULN == 0 || l.ULN == domain.TemporaryULN {
				return ""
			}
			return strconv.FormatInt(l.ULN, 10)
		},
		func(a, b *domain.Learner) bool {
			return !strings.EqualFold(a.LearnRefNumber, b.LearnRefNumber)
		},
	)
	var out []domain.Finding
	for _, l := range flagged {
		out = append(out, NewFinding(r.Name(), l, 0,
			P("ULN", strconv.FormatInt(l.ULN, 10)),
		))
	}
	return out
}

// DuplicateProgramme flags programme aims across the batch that share the
// same programme identity and overlap in time for the same ULN.
type DuplicateProgramme struct{}

func (DuplicateProgramme) Name() string { return "ProgType_13" }

type batchAim struct {
	learner  *domain.Learner
	delivery domain.Delivery
}

func (r DuplicateProgramme) EvaluateBatch(batch []*domain.Learner, ix *refdata.Indices) []domain.Finding {
	var aims []batchAim
	for _, l := range batch {
		for _, d := range l.ProgrammeAims() {
			aims = append(aims, batchAim{learner: l, delivery: d})
		}
	}

	flagged := compare.GroupNearDuplicates(aims,
		func(a batchAim) string {
			if a.learner.ULN == 0 || a.learner.ULN == domain.TemporaryULN {
				return ""
			}
			return strconv.FormatInt(a.learner.ULN, 10) + "/" +
				strconv.Itoa(a.delivery.ProgType) + "/" +
				strconv.Itoa(a.delivery.FworkCode) + "/" +
				strconv.Itoa(a.delivery.PwayCode)
		},
		func(a, b batchAim) bool {
			return interval.Overlaps(deliveryWindow(a.delivery), deliveryWindow(b.delivery))
		},
	)

	var out []domain.Finding
	for _, a := range flagged {
		out = append(out, NewFinding(r.Name(), a.learner, a.delivery.AimSeqNumber,
			P("ProgType", strconv.Itoa(a.delivery.ProgType)),
			P("FworkCode", strconv.Itoa(a.delivery.FworkCode)),
			P("PwayCode", strconv.Itoa(a.delivery.PwayCode)),
		))
	}
	return out
}
