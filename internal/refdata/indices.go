package refdata

import (
	"github.com/openlearn/kestrel/internal/domain"
)

// Collections holds the flat per-source reference collections consumed by
// index construction.
type Collections struct {
	Aims           []AimRecord
	AimFunding     []AimFundingRecord
	AssessmentOrgs []AssessmentOrgRecord
	Contracts      []ContractRecord
	Postcodes      []PostcodeRecord
	Organisations  []OrganisationRecord
	Employers      []EmployerRecord
	Lookups        []LookupRecord
	LearnerRefs    []string
	RuleMeta       []domain.RuleMetaRecord
}

// Indices is the full set of immutable reference indices handed to rule
// evaluation. Built once, before any rule runs; rules only read it.
type Indices struct {
	Aims           Index[Aim]
	AimFunding     SubIndex[FundingBand]
	AssessmentOrgs Index[AssessmentVersion]
	Contracts      Index[Allocation]
	Postcodes      *Postcodes
	Organisations  *Organisations
	Employers      *Employers
	Lookups        *Lookups
	LearnerRefs    *Set
	RuleMeta       *RuleMeta
}

// BuildIndices constructs every index from the flat collections. Data
// anomalies are returned as diagnostics, one entry per source that saw any;
// they never abort construction.
func BuildIndices(c Collections) (*Indices, []Diagnostics) {
	ix := &Indices{}
	var diags []Diagnostics

	collect := func(d *Diagnostics) {
		if !d.Clean() {
			diags = append(diags, *d)
		}
	}

	var d *Diagnostics
	ix.Aims, d = BuildAims(c.Aims)
	collect(d)
	ix.AimFunding, d = BuildAimFunding(c.AimFunding)
	collect(d)
	ix.AssessmentOrgs, d = BuildAssessmentOrgs(c.AssessmentOrgs)
	collect(d)
	ix.Contracts, d = BuildContracts(c.Contracts)
	collect(d)
	ix.Postcodes, d = BuildPostcodes(c.Postcodes)
	collect(d)
	ix.Organisations, d = BuildOrganisations(c.Organisations)
	collect(d)
	ix.Employers, d = BuildEmployers(c.Employers)
	collect(d)
	ix.Lookups, d = BuildLookups(c.Lookups)
	collect(d)
	ix.LearnerRefs, d = BuildSet("learnerRefs", c.LearnerRefs)
	collect(d)
	ix.RuleMeta, d = BuildRuleMeta(c.RuleMeta)
	collect(d)

	return ix, diags
}
