package refdata

import (
	"time"

	"github.com/openlearn/kestrel/internal/interval"
)

// ContractRecord is a flat contract allocation row with its nested
// eligibility sub-rules.
type ContractRecord struct {
	ConRefNumber  string            `json:"conRefNumber"`
	FundingCap    float64           `json:"fundingCap"`
	Eligibility   []EligibilityRule `json:"eligibility,omitempty"`
	EffectiveFrom time.Time         `json:"effectiveFrom"`
	EffectiveTo   *time.Time        `json:"effectiveTo,omitempty"`
}

// EligibilityRule is one eligibility condition attached to an allocation.
type EligibilityRule struct {
	Benefits bool `json:"benefits,omitempty"`
	MinAge   int  `json:"minAge,omitempty"`
	MaxAge   int  `json:"maxAge,omitempty"`
}

// Allocation is the indexed projection of a contract allocation variant.
type Allocation struct {
	FundingCap  float64
	Eligibility []EligibilityRule
}

// BuildContracts indexes contract allocations by contract reference.
func BuildContracts(records []ContractRecord) (Index[Allocation], *Diagnostics) {
	rows := make([]Row[Allocation], 0, len(records))
	for _, r := range records {
		rows = append(rows, Row[Allocation]{
			Code:   r.ConRefNumber,
			Window: interval.Window{From: r.EffectiveFrom, To: r.EffectiveTo},
			Value:  Allocation{FundingCap: r.FundingCap, Eligibility: r.Eligibility},
		})
	}
	return Build("contracts", rows)
}
