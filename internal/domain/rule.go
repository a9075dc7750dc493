package domain

// ExprRuleConfig defines a CEL expression rule evaluated per delivery.
// Expression rules supplement the builtin catalogue: providers can add
// checks without a code change. The expression must return bool; true
// means the delivery violates the rule.
type ExprRuleConfig struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`

	// Expression is the CEL source evaluated against a delivery activation.
	Expression string `json:"expression"`

	// Severity is "E" (error) or "W" (warning).
	Severity string `json:"severity"`

	// Message is the finding message template.
	Message string `json:"message,omitempty"`

	// Whether the rule is active.
	Enabled bool `json:"enabled"`
}

// RuleMetaRecord carries catalogue metadata for a rule name: severity and
// message text used by reporting.
type RuleMetaRecord struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}
