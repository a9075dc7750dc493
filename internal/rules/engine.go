package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/openlearn/kestrel/internal/domain"
	"github.com/openlearn/kestrel/internal/refdata"
)

// Engine compiles and evaluates provider-defined CEL expression rules.
// Each expression sees one delivery at a time, flattened into primitive
// variables; a true result means the delivery violates the rule.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program with its configuration.
type CompiledRule struct {
	Config  *domain.ExprRuleConfig
	Program cel.Program
}

// NewEngine creates an expression-rule engine.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("delivery", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("aim_ref", cel.StringType),
		cel.Variable("aim_type", cel.IntType),
		cel.Variable("fund_model", cel.IntType),
		cel.Variable("prog_type", cel.IntType),
		cel.Variable("fwork_code", cel.IntType),
		cel.Variable("pway_code", cel.IntType),
		cel.Variable("comp_status", cel.IntType),
		cel.Variable("uln", cel.IntType),
		cel.Variable("learn_ref", cel.StringType),
		cel.Variable("start_date", cel.StringType),
		cel.Variable("plan_end_date", cel.StringType),
		cel.Variable("act_end_date", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(cfg *domain.ExprRuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.ExprRuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}
	e.compiledRules[cfg.Name] = compiled
	return nil
}

// LoadRules compiles and loads multiple rules, skipping disabled ones.
func (e *Engine) LoadRules(configs []*domain.ExprRuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones. This enables
// hot-reloading of rules from the database.
func (e *Engine) ReloadRules(configs []*domain.ExprRuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.Name] = compiled
	}
	e.compiledRules = newRules
	return nil
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// LoadedRules returns the currently loaded rule configurations.
func (e *Engine) LoadedRules() []*domain.ExprRuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*domain.ExprRuleConfig, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		out = append(out, compiled.Config)
	}
	return out
}

// Evaluate runs every loaded expression rule against each of the learner's
// deliveries. A true result produces a finding; an evaluation error
// produces a fault and the remaining rules continue.
func (e *Engine) Evaluate(l *domain.Learner) ([]domain.Finding, []domain.Fault) {
	e.mu.RLock()
	loaded := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		loaded = append(loaded, compiled)
	}
	e.mu.RUnlock()

	if len(loaded) == 0 || l == nil || len(l.Deliveries) == 0 {
		return nil, nil
	}

	var out []domain.Finding
	var faults []domain.Fault
	for _, d := range l.Deliveries {
		activation := deliveryActivation(l, d)
		for _, rule := range loaded {
			val, _, err := rule.Program.Eval(activation)
			if err != nil {
				faults = append(faults, domain.Fault{
					Rule:           rule.Config.Name,
					LearnRefNumber: l.LearnRefNumber,
					Message:        fmt.Sprintf("expression evaluation: %v", err),
				})
				continue
			}
			if violated(val) {
				out = append(out, NewFinding(rule.Config.Name, l, d.AimSeqNumber,
					P("Expression", rule.Config.Expression),
				))
			}
		}
	}
	return out, faults
}

// deliveryActivation flattens one delivery into CEL variables.
func deliveryActivation(l *domain.Learner, d domain.Delivery) map[string]any {
	actEnd := ""
	if d.LearnActEndDate != nil {
		actEnd = d.LearnActEndDate.Format(DateFormat)
	}
	return map[string]any{
		"delivery": map[string]any{
			"aim_seq":          d.AimSeqNumber,
			"aim_ref":          d.AimRef,
			"con_ref":          d.ConRefNumber,
			"epa_org_id":       d.EPAOrgID,
			"del_loc_postcode": d.DelLocPostCode,
		},
		"aim_ref":       d.AimRef,
		"aim_type":      d.AimType,
		"fund_model":    d.FundModel,
		"prog_type":     d.ProgType,
		"fwork_code":    d.FworkCode,
		"pway_code":     d.PwayCode,
		"comp_status":   d.CompStatus,
		"uln":           l.ULN,
		"learn_ref":     l.LearnRefNumber,
		"start_date":    d.LearnStartDate.Format(DateFormat),
		"plan_end_date": d.LearnPlanEndDate.Format(DateFormat),
		"act_end_date":  actEnd,
	}
}

// violated interprets a CEL result: only boolean true is a violation.
func violated(val ref.Val) bool {
	b, ok := val.(types.Bool)
	return ok && bool(b)
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) compileRule(cfg *domain.ExprRuleConfig) (*CompiledRule, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("rule name is required")
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.Name, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.Name, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.Name, err)
	}

	return &CompiledRule{Config: cfg, Program: program}, nil
}

// ExprRules adapts the engine to the per-learner Rule contract so the
// runner schedules expression rules like builtin ones. Faults surface
// through the supplied callback.
type ExprRules struct {
	engine  *Engine
	onFault func(domain.Fault)
}

// NewExprRules wraps an engine for the runner. onFault may be nil.
func NewExprRules(engine *Engine, onFault func(domain.Fault)) *ExprRules {
	return &ExprRules{engine: engine, onFault: onFault}
}

func (x *ExprRules) Name() string { return "ExpressionRules" }

func (x *ExprRules) Evaluate(l *domain.Learner, ix *refdata.Indices) []domain.Finding {
	fs, faults := x.engine.Evaluate(l)
	if x.onFault != nil {
		for _, f := range faults {
			x.onFault(f)
		}
	}
	return fs
}
