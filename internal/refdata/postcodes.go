package refdata

import (
	"time"

	"github.com/openlearn/kestrel/internal/interval"
)

// PostcodeRecord is a flat postcode registry row. Every row contributes to
// the membership set; rows carrying area data additionally feed the
// temporal area index.
type PostcodeRecord struct {
	Postcode       string     `json:"postcode"`
	LocalAuthority string     `json:"localAuthority,omitempty"`
	LEP            string     `json:"lep,omitempty"`
	EffectiveFrom  *time.Time `json:"effectiveFrom,omitempty"`
	EffectiveTo    *time.Time `json:"effectiveTo,omitempty"`
}

// AreaData is the indexed projection of a postcode area-data variant.
type AreaData struct {
	LocalAuthority string
	LEP            string
}

// Postcodes combines a passthrough membership set of all known postcodes
// with a temporal index covering only postcodes that carry area rows.
type Postcodes struct {
	known *Set
	areas Index[AreaData]
}

// BuildPostcodes indexes the postcode registry.
func BuildPostcodes(records []PostcodeRecord) (*Postcodes, *Diagnostics) {
	codes := make([]string, 0, len(records))
	var areaRows []Row[AreaData]

	for _, r := range records {
		codes = append(codes, r.Postcode)
		if r.LocalAuthority == "" && r.LEP == "" {
			continue
		}
		w := interval.Window{To: r.EffectiveTo}
		if r.EffectiveFrom != nil {
			w.From = *r.EffectiveFrom
		}
		areaRows = append(areaRows, Row[AreaData]{
			Code:   r.Postcode,
			Window: w,
			Value:  AreaData{LocalAuthority: r.LocalAuthority, LEP: r.LEP},
		})
	}

	known, diag := BuildSet("postcodes", codes)
	areas, areaDiag := Build("postcodes", areaRows)

	// Merge the area-index anomalies into the source diagnostics.
	diag.Duplicates = append(diag.Duplicates, areaDiag.Duplicates...)
	diag.Overlaps = append(diag.Overlaps, areaDiag.Overlaps...)
	diag.Dropped += areaDiag.Dropped

	return &Postcodes{known: known, areas: areas}, diag
}

// Known reports whether the postcode exists in the registry.
func (p *Postcodes) Known(code string) bool {
	return p != nil && p.known.Contains(code)
}

// HasArea reports whether the postcode carries any area data.
func (p *Postcodes) HasArea(code string) bool {
	return p != nil && p.areas.Contains(code)
}

// AreaAsOf returns the area data valid for the postcode on date d.
func (p *Postcodes) AreaAsOf(code string, d time.Time) (AreaData, bool) {
	if p == nil {
		return AreaData{}, false
	}
	return p.areas.AsOf(code, d)
}

// Len returns the number of known postcodes.
func (p *Postcodes) Len() int {
	if p == nil {
		return 0
	}
	return p.known.Len()
}

// AreaLen returns the number of postcodes carrying area data.
func (p *Postcodes) AreaLen() int {
	if p == nil {
		return 0
	}
	return p.areas.Len()
}
