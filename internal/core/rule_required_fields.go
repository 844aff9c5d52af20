package core

import (
	"context"
	"fmt"

	"stockledger/pkg/domain"
)

// NewRequiredFieldsRule returns the rule rejecting datums that lack a value
// for any required schema field.
func NewRequiredFieldsRule() domain.Rule {
	return requiredFieldsRule{}
}

type requiredFieldsRule struct{}

func (requiredFieldsRule) Name() string { return "required_fields" }

func (requiredFieldsRule) Evaluate(_ context.Context, _ domain.RuleView, def *domain.TypeDefinition, datum *domain.Datum) ([]domain.Issue, error) {
	var issues []domain.Issue
	for _, fd := range def.Fields {
		if !fd.Required {
			continue
		}
		value, ok := datum.Fields[fd.Name]
		if !ok || value == nil {
			issues = append(issues, domain.Issue{
				Field:   fd.Name,
				Code:    domain.CodeRequired,
				Message: fmt.Sprintf("%s.%s is required", def.Name, fd.Name),
			})
			continue
		}
		if s, isString := value.(string); isString && s == "" {
			issues = append(issues, domain.Issue{
				Field:   fd.Name,
				Code:    domain.CodeRequired,
				Message: fmt.Sprintf("%s.%s must not be empty", def.Name, fd.Name),
			})
		}
	}
	return issues, nil
}
