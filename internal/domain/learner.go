package domain

import (
	"time"
)

// Learner is one learner's full nested enrolment record, the unit of
// per-learner rule evaluation. It is read-only during evaluation.
type Learner struct {
	// LearnRefNumber is the provider-scoped learner reference.
	LearnRefNumber string `json:"learnRefNumber"`

	// ULN is the unique learner number (0 when not yet assigned).
	ULN int64 `json:"uln"`

	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`

	// Postcode is the learner's home postcode at the start of learning.
	Postcode string `json:"postcode,omitempty"`

	// Deliveries are the learner's enrolment (aim) records, in submission order.
	Deliveries []Delivery `json:"deliveries,omitempty"`
}

// Delivery is a single learning aim within a learner record.
type Delivery struct {
	AimSeqNumber int    `json:"aimSeqNumber"`
	AimRef       string `json:"aimRef"`

	// AimType distinguishes programme aims from component aims.
	AimType  int `json:"aimType"`
	FundModel int `json:"fundModel"`

	// Programme identity (apprenticeships).
	ProgType  int  `json:"progType,omitempty"`
	FworkCode int  `json:"fworkCode,omitempty"`
	PwayCode  int  `json:"pwayCode,omitempty"`
	StdCode   *int `json:"stdCode,omitempty"`

	// ConRefNumber links the aim to a contract allocation.
	ConRefNumber string `json:"conRefNumber,omitempty"`

	// EPAOrgID identifies the end-point assessment organisation.
	EPAOrgID string `json:"epaOrgId,omitempty"`

	// EmpID identifies the learner's employer for this aim.
	EmpID *int `json:"empId,omitempty"`

	LearnStartDate   time.Time  `json:"learnStartDate"`
	LearnPlanEndDate time.Time  `json:"learnPlanEndDate"`
	LearnActEndDate  *time.Time `json:"learnActEndDate,omitempty"`

	// DelLocPostCode is the delivery location postcode.
	DelLocPostCode string `json:"delLocPostCode,omitempty"`

	CompStatus int `json:"compStatus,omitempty"`

	// Monitoring holds the aim's monitoring-period (FAM-style) records.
	Monitoring []MonitoringPeriod `json:"monitoring,omitempty"`

	// Financials holds the aim's financial records.
	Financials []FinancialRecord `json:"financials,omitempty"`
}

// MonitoringPeriod is a typed monitoring record with an optional date window.
type MonitoringPeriod struct {
	Type     string     `json:"type"`
	Code     string     `json:"code"`
	DateFrom *time.Time `json:"dateFrom,omitempty"`
	DateTo   *time.Time `json:"dateTo,omitempty"`
}

// FinancialRecord is a typed financial row attached to a delivery.
type FinancialRecord struct {
	Type   string    `json:"type"`
	Code   int       `json:"code"`
	Amount int       `json:"amount"`
	Date   time.Time `json:"date"`
}

// MonitoringOfType returns the delivery's monitoring periods of the given
// type. A nil delivery or empty collection yields an empty result.
func (d *Delivery) MonitoringOfType(famType string) []MonitoringPeriod {
	if d == nil || len(d.Monitoring) == 0 {
		return nil
	}
	var out []MonitoringPeriod
	for _, m := range d.Monitoring {
		if m.Type == famType {
			out = append(out, m)
		}
	}
	return out
}

// ProgrammeAims returns the learner's programme-level deliveries.
func (l *Learner) ProgrammeAims() []Delivery {
	if l == nil {
		return nil
	}
	var out []Delivery
	for _, d := range l.Deliveries {
		if d.AimType == AimTypeProgramme {
			out = append(out, d)
		}
	}
	return out
}

// Aim type constants.
const (
	AimTypeProgramme = 1
	AimTypeComponent = 3
)

// Well-known fund models.
const (
	FundModelApprenticeship = 36
	FundModelAdultSkills    = 35
	FundModelCommunity      = 10
	FundModelNone           = 99
)

// TemporaryULN is the placeholder value used before a real ULN is issued.
const TemporaryULN = 9999999999
