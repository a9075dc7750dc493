package refdata

import (
	"strconv"
	"time"

	"github.com/openlearn/kestrel/internal/interval"
)

// OrganisationRecord is a flat provider organisation row with its nested
// campus identifiers.
type OrganisationRecord struct {
	UKPRN         int64      `json:"ukprn"`
	Name          string     `json:"name,omitempty"`
	Campuses      []string   `json:"campuses,omitempty"`
	EffectiveFrom time.Time  `json:"effectiveFrom"`
	EffectiveTo   *time.Time `json:"effectiveTo,omitempty"`
}

// Organisation is the indexed projection of an organisation variant.
type Organisation struct {
	Name string
}

// Organisations indexes provider organisations by UKPRN, with a nested
// membership set of campus identifiers per provider.
type Organisations struct {
	orgs     Index[Organisation]
	campuses map[string]*Set
}

// BuildOrganisations indexes the organisation registry.
func BuildOrganisations(records []OrganisationRecord) (*Organisations, *Diagnostics) {
	rows := make([]Row[Organisation], 0, len(records))
	campuses := make(map[string][]string)

	for _, r := range records {
		if r.UKPRN == 0 {
			// No natural key; counted by Build via the empty code.
			rows = append(rows, Row[Organisation]{})
			continue
		}
		code := strconv.FormatInt(r.UKPRN, 10)
		rows = append(rows, Row[Organisation]{
			Code:   code,
			Window: interval.Window{From: r.EffectiveFrom, To: r.EffectiveTo},
			Value:  Organisation{Name: r.Name},
		})
		campuses[code] = append(campuses[code], r.Campuses...)
	}

	orgs, diag := Build("organisations", rows)

	sets := make(map[string]*Set, len(campuses))
	for code, ids := range campuses {
		s, setDiag := BuildSet("organisations", ids)
		sets[code] = s
		diag.Dropped += setDiag.Dropped
	}

	return &Organisations{orgs: orgs, campuses: sets}, diag
}

// Contains reports whether the UKPRN is a known provider.
func (o *Organisations) Contains(ukprn int64) bool {
	return o != nil && o.orgs.Contains(strconv.FormatInt(ukprn, 10))
}

// AsOf returns the organisation variant valid on date d.
func (o *Organisations) AsOf(ukprn int64, d time.Time) (Organisation, bool) {
	if o == nil {
		return Organisation{}, false
	}
	return o.orgs.AsOf(strconv.FormatInt(ukprn, 10), d)
}

// HasCampus reports whether the campus identifier belongs to the provider.
func (o *Organisations) HasCampus(ukprn int64, campus string) bool {
	if o == nil {
		return false
	}
	return o.campuses[strconv.FormatInt(ukprn, 10)].Contains(campus)
}

// Len returns the number of known providers.
func (o *Organisations) Len() int {
	if o == nil {
		return 0
	}
	return o.orgs.Len()
}
