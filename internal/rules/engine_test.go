package rules

import (
	"testing"

	"github.com/openlearn/kestrel/internal/domain"
)

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer engine.Close()

	if engine.RulesCount() != 0 {
		t.Errorf("expected 0 rules, got %d", engine.RulesCount())
	}
}

func TestLoadRule(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	rule := &domain.ExprRuleConfig{
		Name:       "FundModel_Custom_01",
		Expression: "fund_model == 36 && prog_type == 0",
		Severity:   domain.SeverityError,
		Enabled:    true,
	}

	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("failed to load rule: %v", err)
	}
	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule, got %d", engine.RulesCount())
	}
}

func TestLoadInvalidRule(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	rule := &domain.ExprRuleConfig{
		Name:       "Invalid_01",
		Expression: "this is not valid CEL !!!",
		Enabled:    true,
	}

	if err := engine.LoadRule(rule); err == nil {
		t.Error("expected error for invalid CEL expression")
	}
}

func TestLoadNonBoolRule(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	rule := &domain.ExprRuleConfig{
		Name:       "NonBool_01",
		Expression: "fund_model + 1",
		Enabled:    true,
	}

	if err := engine.LoadRule(rule); err == nil {
		t.Error("expected error for non-bool expression")
	}
}

func TestEvaluateExpressionRule(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	rule := &domain.ExprRuleConfig{
		Name:       "ProgAimNeedsFramework_01",
		Expression: "aim_type == 1 && fund_model == 36 && fwork_code == 0",
		Severity:   domain.SeverityError,
		Enabled:    true,
	}
	engine.LoadRule(rule)

	l := &domain.Learner{
		LearnRefNumber: "L001",
		Deliveries: []domain.Delivery{
			{AimSeqNumber: 1, AimType: 1, FundModel: 36, FworkCode: 0},
			{AimSeqNumber: 2, AimType: 1, FundModel: 36, FworkCode: 403},
		},
	}

	findings, faults := engine.Evaluate(l)
	if len(faults) != 0 {
		t.Fatalf("unexpected faults: %+v", faults)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].AimSeqNumber != 1 {
		t.Errorf("finding attached to wrong aim: %+v", findings[0])
	}
	if findings[0].Rule != "ProgAimNeedsFramework_01" {
		t.Errorf("wrong rule name: %s", findings[0].Rule)
	}
}

func TestEvaluateNoRulesOrDeliveries(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	if fs, faults := engine.Evaluate(&domain.Learner{LearnRefNumber: "L001"}); fs != nil || faults != nil {
		t.Error("empty learner must produce nothing")
	}
}

func TestReloadRules(t *testing.T) {
	engine, _ := NewEngine()
	defer engine.Close()

	engine.LoadRule(&domain.ExprRuleConfig{
		Name: "Old_01", Expression: "fund_model == 10", Enabled: true,
	})

	err := engine.ReloadRules([]*domain.ExprRuleConfig{
		{Name: "New_01", Expression: "fund_model == 36", Enabled: true},
		{Name: "Disabled_01", Expression: "fund_model == 35", Enabled: false},
	})
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	if engine.RulesCount() != 1 {
		t.Errorf("expected 1 rule after reload, got %d", engine.RulesCount())
	}
	loaded := engine.LoadedRules()
	if len(loaded) != 1 || loaded[0].Name != "New_01" {
		t.Errorf("unexpected loaded rules: %+v", loaded)
	}
}
