package refdata

import (
	"github.com/openlearn/kestrel/internal/domain"
)

// RuleMeta is a passthrough index of rule catalogue metadata: severity and
// message text by rule name.
type RuleMeta struct {
	m map[string]domain.RuleMetaRecord
}

// BuildRuleMeta indexes rule metadata by normalized rule name. Duplicate
// rule names are last-write-wins and counted.
func BuildRuleMeta(records []domain.RuleMetaRecord) (*RuleMeta, *Diagnostics) {
	diag := &Diagnostics{Source: "ruleMeta", Total: len(records)}
	m := make(map[string]domain.RuleMetaRecord, len(records))
	for _, r := range records {
		name := NormalizeCode(r.Rule)
		if name == "" {
			diag.Dropped++
			continue
		}
		if _, seen := m[name]; seen {
			diag.Duplicates = append(diag.Duplicates, name)
		}
		m[name] = r
	}
	return &RuleMeta{m: m}, diag
}

// Get returns the metadata for a rule name.
func (r *RuleMeta) Get(rule string) (domain.RuleMetaRecord, bool) {
	if r == nil {
		return domain.RuleMetaRecord{}, false
	}
	rec, ok := r.m[NormalizeCode(rule)]
	return rec, ok
}

// Severity returns the rule's severity, defaulting to error when the rule
// is absent from the catalogue.
func (r *RuleMeta) Severity(rule string) string {
	if rec, ok := r.Get(rule); ok && rec.Severity != "" {
		return rec.Severity
	}
	return domain.SeverityError
}

// Len returns the number of catalogued rules.
func (r *RuleMeta) Len() int {
	if r == nil {
		return 0
	}
	return len(r.m)
}
