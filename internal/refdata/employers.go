package refdata

import (
	"strconv"
	"time"

	"github.com/openlearn/kestrel/internal/interval"
)

// Employer attribute names.
const (
	EmployerAttrSize   = "SIZE"
	EmployerAttrSector = "SECTOR"
)

// EmployerRecord is a flat employer row: one attribute value with its
// effective dates. An employer accumulates a keyed history per attribute.
type EmployerRecord struct {
	EmpID         int        `json:"empId"`
	Attribute     string     `json:"attribute"`
	Value         string     `json:"value"`
	EffectiveFrom time.Time  `json:"effectiveFrom"`
	EffectiveTo   *time.Time `json:"effectiveTo,omitempty"`
}

// Employers indexes employer attributes by (employer ID, attribute name).
type Employers struct {
	sub SubIndex[string]
}

// BuildEmployers indexes the employer registry.
func BuildEmployers(records []EmployerRecord) (*Employers, *Diagnostics) {
	rows := make([]SubRow[string], 0, len(records))
	for _, r := range records {
		var code string
		if r.EmpID != 0 {
			code = strconv.Itoa(r.EmpID)
		}
		rows = append(rows, SubRow[string]{
			Code:    code,
			SubCode: r.Attribute,
			Row: Row[string]{
				Window: interval.Window{From: r.EffectiveFrom, To: r.EffectiveTo},
				Value:  r.Value,
			},
		})
	}
	sub, diag := BuildSub("employers", rows)
	return &Employers{sub: sub}, diag
}

// Contains reports whether the employer ID is known.
func (e *Employers) Contains(empID int) bool {
	return e != nil && e.sub.Contains(strconv.Itoa(empID))
}

// AttributeAsOf returns the employer's attribute value valid on date d.
func (e *Employers) AttributeAsOf(empID int, attr string, d time.Time) (string, bool) {
	if e == nil {
		return "", false
	}
	return e.sub.AsOf(strconv.Itoa(empID), attr, d)
}

// Len returns the number of known employers.
func (e *Employers) Len() int {
	if e == nil {
		return 0
	}
	return e.sub.Len()
}
