package refdata

import (
	"time"

	"github.com/openlearn/kestrel/internal/interval"
)

// LookupRecord is a generic code/sub-code lookup row with an optional
// validity window. A row without dates is valid forever.
type LookupRecord struct {
	Name          string     `json:"name"`
	Code          string     `json:"code"`
	EffectiveFrom *time.Time `json:"effectiveFrom,omitempty"`
	EffectiveTo   *time.Time `json:"effectiveTo,omitempty"`
}

// Lookups indexes generic lookup tables by (table name, code).
type Lookups struct {
	sub SubIndex[struct{}]
}

// BuildLookups indexes the generic lookup rows.
func BuildLookups(records []LookupRecord) (*Lookups, *Diagnostics) {
	rows := make([]SubRow[struct{}], 0, len(records))
	for _, r := range records {
		w := interval.Window{To: r.EffectiveTo}
		if r.EffectiveFrom != nil {
			w.From = *r.EffectiveFrom
		}
		rows = append(rows, SubRow[struct{}]{
			Code:    r.Name,
			SubCode: r.Code,
			Row:     Row[struct{}]{Window: w},
		})
	}
	sub, diag := BuildSub("lookups", rows)
	return &Lookups{sub: sub}, diag
}

// Contains reports whether the code exists in the named table, without
// regard to validity dates.
func (l *Lookups) Contains(name, code string) bool {
	return l != nil && l.sub.ContainsSub(name, code)
}

// ContainsAsOf reports whether the code exists in the named table and is
// valid on date d.
func (l *Lookups) ContainsAsOf(name, code string, d time.Time) bool {
	if l == nil {
		return false
	}
	_, ok := l.sub.AsOf(name, code, d)
	return ok
}

// Codes returns the known codes for the named table.
func (l *Lookups) Codes(name string) []string {
	if l == nil {
		return nil
	}
	return l.sub.SubCodes(name)
}
