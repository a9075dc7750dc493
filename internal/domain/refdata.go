package domain

import (
	"encoding/json"
	"time"
)

// ReferenceRecord is a flat denormalized row from one reference source.
// Code is the natural key; SubCode is set for sources with a second-level
// key (lookups, employer size bands). EffectiveTo is nil for open-ended
// validity. Payload carries the source-specific fields.
type ReferenceRecord struct {
	Source        string          `json:"source"`
	Code          string          `json:"code"`
	SubCode       string          `json:"subCode,omitempty"`
	EffectiveFrom time.Time       `json:"effectiveFrom"`
	EffectiveTo   *time.Time      `json:"effectiveTo,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// Reference source names, used as repository keys and cache keys.
const (
	SourceAims           = "aims"
	SourceContracts      = "contracts"
	SourcePostcodes      = "postcodes"
	SourceOrganisations  = "organisations"
	SourceAssessmentOrgs = "assessmentOrgs"
	SourceEmployers      = "employers"
	SourceLookups        = "lookups"
	SourceLearnerRefs    = "learnerRefs"
	SourceRuleMeta       = "ruleMeta"
)

// AllSources lists every reference source the indexer consumes.
func AllSources() []string {
	return []string{
		SourceAims,
		SourceContracts,
		SourcePostcodes,
		SourceOrganisations,
		SourceAssessmentOrgs,
		SourceEmployers,
		SourceLookups,
		SourceLearnerRefs,
		SourceRuleMeta,
	}
}
