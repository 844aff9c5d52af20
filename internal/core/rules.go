package core

import (
	"context"

	"stockledger/pkg/domain"
)

// RulesEngine orchestrates rule evaluation during a save.
type RulesEngine struct {
	rules []domain.Rule
}

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule domain.Rule) {
	e.rules = append(e.rules, rule)
}

// Evaluate executes all registered rules and aggregates their issues. A save
// is rejected when any issue is reported.
func (e *RulesEngine) Evaluate(ctx context.Context, view domain.RuleView, def domain.TypeDefinition, datum *domain.Datum) ([]domain.Issue, error) {
	var combined []domain.Issue
	for _, rule := range e.rules {
		issues, err := rule.Evaluate(ctx, view, &def, datum)
		if err != nil {
			return nil, err
		}
		combined = append(combined, issues...)
	}
	return combined, nil
}

// DefaultRulesEngine returns an engine carrying the built-in rule set.
func DefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewRequiredFieldsRule())
	engine.Register(NewFieldTypesRule())
	engine.Register(NewCollectionReferenceRule())
	return engine
}
