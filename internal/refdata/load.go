package refdata

import (
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/openlearn/kestrel/internal/domain"
)

// CollectionsFromRecords decodes per-source flat records (as stored by the
// repository) into typed collections. Rows whose payload fails to decode
// are skipped and logged; a malformed row degrades only itself.
func CollectionsFromRecords(bySource map[string][]domain.ReferenceRecord) Collections {
	var c Collections
	for source, records := range bySource {
		for _, rec := range records {
			if err := appendRecord(&c, source, rec); err != nil {
				slog.Warn("skipping malformed reference record",
					"source", source,
					"code", rec.Code,
					"error", err,
				)
			}
		}
	}
	return c
}

func appendRecord(c *Collections, source string, rec domain.ReferenceRecord) error {
	switch source {
	case domain.SourceAims:
		if rec.SubCode != "" {
			row := AimFundingRecord{
				AimRef:        rec.Code,
				Category:      rec.SubCode,
				EffectiveFrom: rec.EffectiveFrom,
				EffectiveTo:   rec.EffectiveTo,
			}
			if err := decodePayload(rec.Payload, &row); err != nil {
				return err
			}
			c.AimFunding = append(c.AimFunding, row)
			return nil
		}
		row := AimRecord{
			AimRef:        rec.Code,
			EffectiveFrom: rec.EffectiveFrom,
			EffectiveTo:   rec.EffectiveTo,
		}
		if err := decodePayload(rec.Payload, &row); err != nil {
			return err
		}
		c.Aims = append(c.Aims, row)

	case domain.SourceAssessmentOrgs:
		row := AssessmentOrgRecord{
			OrgID:         rec.Code,
			EffectiveFrom: rec.EffectiveFrom,
			EffectiveTo:   rec.EffectiveTo,
		}
		if err := decodePayload(rec.Payload, &row); err != nil {
			return err
		}
		c.AssessmentOrgs = append(c.AssessmentOrgs, row)

	case domain.SourceContracts:
		row := ContractRecord{
			ConRefNumber:  rec.Code,
			EffectiveFrom: rec.EffectiveFrom,
			EffectiveTo:   rec.EffectiveTo,
		}
		if err := decodePayload(rec.Payload, &row); err != nil {
			return err
		}
		c.Contracts = append(c.Contracts, row)

	case domain.SourcePostcodes:
		row := PostcodeRecord{
			Postcode:    rec.Code,
			EffectiveTo: rec.EffectiveTo,
		}
		if !rec.EffectiveFrom.IsZero() {
			from := rec.EffectiveFrom
			row.EffectiveFrom = &from
		}
		if err := decodePayload(rec.Payload, &row); err != nil {
			return err
		}
		c.Postcodes = append(c.Postcodes, row)

	case domain.SourceOrganisations:
		ukprn, err := strconv.ParseInt(rec.Code, 10, 64)
		if err != nil {
			return err
		}
		row := OrganisationRecord{
			UKPRN:         ukprn,
			EffectiveFrom: rec.EffectiveFrom,
			EffectiveTo:   rec.EffectiveTo,
		}
		if err := decodePayload(rec.Payload, &row); err != nil {
			return err
		}
		c.Organisations = append(c.Organisations, row)

	case domain.SourceEmployers:
		empID, err := strconv.Atoi(rec.Code)
		if err != nil {
			return err
		}
		row := EmployerRecord{
			EmpID:         empID,
			Attribute:     rec.SubCode,
			EffectiveFrom: rec.EffectiveFrom,
			EffectiveTo:   rec.EffectiveTo,
		}
		if err := decodePayload(rec.Payload, &row); err != nil {
			return err
		}
		c.Employers = append(c.Employers, row)

	case domain.SourceLookups:
		row := LookupRecord{
			Name:        rec.Code,
			Code:        rec.SubCode,
			EffectiveTo: rec.EffectiveTo,
		}
		if !rec.EffectiveFrom.IsZero() {
			from := rec.EffectiveFrom
			row.EffectiveFrom = &from
		}
		c.Lookups = append(c.Lookups, row)

	case domain.SourceLearnerRefs:
		c.LearnerRefs = append(c.LearnerRefs, rec.Code)

	case domain.SourceRuleMeta:
		row := domain.RuleMetaRecord{Rule: rec.Code}
		if err := decodePayload(rec.Payload, &row); err != nil {
			return err
		}
		c.RuleMeta = append(c.RuleMeta, row)

	default:
		slog.Warn("unknown reference source", "source", source)
	}
	return nil
}

func decodePayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, v)
}
