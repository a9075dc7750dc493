package refdata

import (
	"time"

	"github.com/openlearn/kestrel/internal/interval"
)

// AimRecord is a flat qualification validity row.
type AimRecord struct {
	AimRef        string     `json:"aimRef"`
	Title         string     `json:"title,omitempty"`
	NotionalLevel string     `json:"notionalLevel,omitempty"`
	EffectiveFrom time.Time  `json:"effectiveFrom"`
	EffectiveTo   *time.Time `json:"effectiveTo,omitempty"`
}

// Aim is the indexed projection of a qualification variant.
type Aim struct {
	Title         string
	NotionalLevel string
}

// BuildAims indexes qualification validity periods by aim reference.
func BuildAims(records []AimRecord) (Index[Aim], *Diagnostics) {
	rows := make([]Row[Aim], 0, len(records))
	for _, r := range records {
		rows = append(rows, Row[Aim]{
			Code:   r.AimRef,
			Window: interval.Window{From: r.EffectiveFrom, To: r.EffectiveTo},
			Value:  Aim{Title: r.Title, NotionalLevel: r.NotionalLevel},
		})
	}
	return Build("aims", rows)
}

// AimFundingRecord is a flat funding-band row for one qualification and
// funding category. A single aim carries several categories at once; the
// non-overlap invariant applies per category, not across the aim.
type AimFundingRecord struct {
	AimRef          string     `json:"aimRef"`
	Category        string     `json:"category"`
	Band            int        `json:"band"`
	WeightingFactor float64    `json:"weightingFactor"`
	EffectiveFrom   time.Time  `json:"effectiveFrom"`
	EffectiveTo     *time.Time `json:"effectiveTo,omitempty"`
}

// FundingBand is the indexed projection of a funding-band variant.
type FundingBand struct {
	Band            int
	WeightingFactor float64
}

// BuildAimFunding indexes funding bands by (aim reference, category).
func BuildAimFunding(records []AimFundingRecord) (SubIndex[FundingBand], *Diagnostics) {
	rows := make([]SubRow[FundingBand], 0, len(records))
	for _, r := range records {
		rows = append(rows, SubRow[FundingBand]{
			Code:    r.AimRef,
			SubCode: r.Category,
			Row: Row[FundingBand]{
				Window: interval.Window{From: r.EffectiveFrom, To: r.EffectiveTo},
				Value:  FundingBand{Band: r.Band, WeightingFactor: r.WeightingFactor},
			},
		})
	}
	return BuildSub("aimFunding", rows)
}
