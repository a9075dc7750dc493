package refdata

import (
	"time"

	"github.com/openlearn/kestrel/internal/interval"
)

// AssessmentOrgRecord is a flat end-point assessment organisation row. Each
// row binds an organisation to the standard version it assesses for a
// validity period.
type AssessmentOrgRecord struct {
	OrgID         string     `json:"orgId"`
	Standard      string     `json:"standard"`
	EffectiveFrom time.Time  `json:"effectiveFrom"`
	EffectiveTo   *time.Time `json:"effectiveTo,omitempty"`
}

// AssessmentVersion is the indexed projection of an assessment-organisation
// variant.
type AssessmentVersion struct {
	Standard string
}

// BuildAssessmentOrgs indexes assessment organisations by organisation ID.
func BuildAssessmentOrgs(records []AssessmentOrgRecord) (Index[AssessmentVersion], *Diagnostics) {
	rows := make([]Row[AssessmentVersion], 0, len(records))
	for _, r := range records {
		rows = append(rows, Row[AssessmentVersion]{
			Code:   r.OrgID,
			Window: interval.Window{From: r.EffectiveFrom, To: r.EffectiveTo},
			Value:  AssessmentVersion{Standard: r.Standard},
		})
	}
	return Build("assessmentOrgs", rows)
}
