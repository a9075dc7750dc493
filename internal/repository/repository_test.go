package repository

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/openlearn/kestrel/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "kestrel-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("ReplaceAndListReferenceRecords", func(t *testing.T) {
		from := time.Date(2017, 5, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2018, 4, 30, 0, 0, 0, 0, time.UTC)

		records := []domain.ReferenceRecord{
			{Code: "50086832", EffectiveFrom: from, EffectiveTo: &to, Payload: json.RawMessage(`{"title":"Diploma"}`)},
			{Code: "60133533", EffectiveFrom: from},
		}

		if err := repo.ReplaceReferenceRecords(ctx, domain.SourceAims, records); err != nil {
			t.Fatalf("ReplaceReferenceRecords failed: %v", err)
		}

		listed, err := repo.ListReferenceRecords(ctx, domain.SourceAims)
		if err != nil {
			t.Fatalf("ListReferenceRecords failed: %v", err)
		}
		if len(listed) != 2 {
			t.Fatalf("expected 2 records, got %d", len(listed))
		}
		if listed[0].Source != domain.SourceAims {
			t.Errorf("expected source %q, got %q", domain.SourceAims, listed[0].Source)
		}
		if listed[0].EffectiveTo == nil || !listed[0].EffectiveTo.Equal(to) {
			t.Errorf("expected effective-to %v, got %v", to, listed[0].EffectiveTo)
		}
		if listed[1].EffectiveTo != nil {
			t.Errorf("expected open-ended record, got %v", listed[1].EffectiveTo)
		}
		if string(listed[0].Payload) != `{"title":"Diploma"}` {
			t.Errorf("payload round-trip mismatch: %s", listed[0].Payload)
		}
	})

	t.Run("ReplaceIsWholesale", func(t *testing.T) {
		from := time.Date(2020, 8, 1, 0, 0, 0, 0, time.UTC)

		first := []domain.ReferenceRecord{
			{Code: "A", EffectiveFrom: from},
			{Code: "B", EffectiveFrom: from},
		}
		if err := repo.ReplaceReferenceRecords(ctx, domain.SourceLookups, first); err != nil {
			t.Fatalf("first replace failed: %v", err)
		}

		second := []domain.ReferenceRecord{
			{Code: "C", SubCode: "1", EffectiveFrom: from},
		}
		if err := repo.ReplaceReferenceRecords(ctx, domain.SourceLookups, second); err != nil {
			t.Fatalf("second replace failed: %v", err)
		}

		listed, err := repo.ListReferenceRecords(ctx, domain.SourceLookups)
		if err != nil {
			t.Fatalf("ListReferenceRecords failed: %v", err)
		}
		if len(listed) != 1 {
			t.Fatalf("expected earlier rows to be replaced, got %d records", len(listed))
		}
		if listed[0].Code != "C" || listed[0].SubCode != "1" {
			t.Errorf("unexpected surviving record: %+v", listed[0])
		}
	})

	t.Run("SourcesIsolated", func(t *testing.T) {
		from := time.Date(2020, 8, 1, 0, 0, 0, 0, time.UTC)
		if err := repo.ReplaceReferenceRecords(ctx, domain.SourcePostcodes, []domain.ReferenceRecord{
			{Code: "SW1A 1AA", EffectiveFrom: from},
		}); err != nil {
			t.Fatalf("ReplaceReferenceRecords failed: %v", err)
		}

		listed, err := repo.ListReferenceRecords(ctx, domain.SourceLookups)
		if err != nil {
			t.Fatalf("ListReferenceRecords failed: %v", err)
		}
		for _, rec := range listed {
			if rec.Code == "SW1A 1AA" {
				t.Error("postcode row leaked into lookups source")
			}
		}
	})

	t.Run("SaveAndGetExprRule", func(t *testing.T) {
		rule := &domain.ExprRuleConfig{
			Name:       "FundModel_09",
			Version:    "1",
			Expression: `fund_model == 99 && prog_type == 0`,
			Severity:   domain.SeverityError,
			Message:    "Fund model 99 requires a programme type",
			Enabled:    true,
		}

		if err := repo.SaveExprRule(ctx, rule); err != nil {
			t.Fatalf("SaveExprRule failed: %v", err)
		}

		got, err := repo.GetExprRule(ctx, "FundModel_09")
		if err != nil {
			t.Fatalf("GetExprRule failed: %v", err)
		}
		if got.Expression != rule.Expression {
			t.Errorf("expected expression %q, got %q", rule.Expression, got.Expression)
		}
		if got.Severity != domain.SeverityError {
			t.Errorf("expected severity E, got %q", got.Severity)
		}
	})

	t.Run("UpsertExprRule", func(t *testing.T) {
		rule := &domain.ExprRuleConfig{
			Name:       "ULN_06",
			Version:    "1",
			Expression: `uln == 9999999999`,
			Severity:   domain.SeverityWarning,
			Enabled:    true,
		}
		if err := repo.SaveExprRule(ctx, rule); err != nil {
			t.Fatalf("SaveExprRule failed: %v", err)
		}

		rule.Expression = `uln == 9999999999 && fund_model != 99`
		if err := repo.SaveExprRule(ctx, rule); err != nil {
			t.Fatalf("SaveExprRule upsert failed: %v", err)
		}

		got, err := repo.GetExprRule(ctx, "ULN_06")
		if err != nil {
			t.Fatalf("GetExprRule failed: %v", err)
		}
		if got.Expression != rule.Expression {
			t.Errorf("upsert did not update expression: %q", got.Expression)
		}
	})

	t.Run("ListExprRulesSkipsDisabled", func(t *testing.T) {
		disabled := &domain.ExprRuleConfig{
			Name:       "Disabled_01",
			Version:    "1",
			Expression: `true`,
			Severity:   domain.SeverityError,
			Enabled:    false,
		}
		if err := repo.SaveExprRule(ctx, disabled); err != nil {
			t.Fatalf("SaveExprRule failed: %v", err)
		}

		rules, err := repo.ListExprRules(ctx)
		if err != nil {
			t.Fatalf("ListExprRules failed: %v", err)
		}
		for _, r := range rules {
			if r.Name == "Disabled_01" {
				t.Error("disabled rule returned by ListExprRules")
			}
		}
	})

	t.Run("GetExprRuleNotFound", func(t *testing.T) {
		_, err := repo.GetExprRule(ctx, "NoSuchRule")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SaveAndGetRun", func(t *testing.T) {
		run := &domain.Run{
			ID:        "run-001",
			Timestamp: time.Now().UTC(),
			Findings: []domain.Finding{
				{Rule: "LearnAimRef_01", LearnRefNumber: "L001", AimSeqNumber: 1, Seq: 1},
			},
			Faults: []domain.Fault{
				{Rule: "Broken_01", LearnRefNumber: "L002", Message: "rule panicked"},
			},
			Metadata: domain.RunMetadata{
				Learners:       2,
				RulesEvaluated: 16,
				EvaluateMs:     12,
				TotalMs:        15,
			},
		}

		if err := repo.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}

		got, err := repo.GetRun(ctx, "run-001")
		if err != nil {
			t.Fatalf("GetRun failed: %v", err)
		}
		if len(got.Findings) != 1 || got.Findings[0].Rule != "LearnAimRef_01" {
			t.Errorf("findings round-trip mismatch: %+v", got.Findings)
		}
		if len(got.Faults) != 1 || got.Faults[0].Rule != "Broken_01" {
			t.Errorf("faults round-trip mismatch: %+v", got.Faults)
		}
		if got.Metadata.Learners != 2 {
			t.Errorf("expected 2 learners in metadata, got %d", got.Metadata.Learners)
		}
	})

	t.Run("GetRunNotFound", func(t *testing.T) {
		_, err := repo.GetRun(ctx, "run-missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("InvalidInput", func(t *testing.T) {
		if err := repo.ReplaceReferenceRecords(ctx, "", nil); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for empty source, got %v", err)
		}
		if _, err := repo.GetExprRule(ctx, ""); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for empty name, got %v", err)
		}
	})
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := New(domain.RepositoryConfig{Driver: "oracle"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	r := &SQLRepository{driver: "postgres"}
	got := r.rebind("INSERT INTO t (a, b) VALUES (?, ?)")
	want := "INSERT INTO t (a, b) VALUES ($1, $2)"
	if got != want {
		t.Errorf("rebind: got %q, want %q", got, want)
	}

	r.driver = "sqlite"
	q := "SELECT * FROM t WHERE a = ?"
	if r.rebind(q) != q {
		t.Error("sqlite queries must pass through unchanged")
	}
}
