package core

import (
	"context"
	"fmt"

	"stockledger/pkg/domain"
)

// NewFieldTypesRule returns the rule rejecting datums whose field values do
// not match the JSON shape their schema declares.
func NewFieldTypesRule() domain.Rule {
	return fieldTypesRule{}
}

type fieldTypesRule struct{}

func (fieldTypesRule) Name() string { return "field_types" }

func (fieldTypesRule) Evaluate(_ context.Context, _ domain.RuleView, def *domain.TypeDefinition, datum *domain.Datum) ([]domain.Issue, error) {
	var issues []domain.Issue
	for _, fd := range def.Fields {
		value, ok := datum.Fields[fd.Name]
		if !ok || value == nil {
			continue
		}
		if !matchesFieldType(fd.Type, value) {
			issues = append(issues, domain.Issue{
				Field:   fd.Name,
				Code:    domain.CodeWrongType,
				Message: fmt.Sprintf("%s.%s must be a %s", def.Name, fd.Name, fd.Type),
			})
		}
	}
	return issues, nil
}

func matchesFieldType(t domain.FieldType, value any) bool {
	switch t {
	case domain.FieldString:
		_, ok := value.(string)
		return ok
	case domain.FieldNumber, domain.FieldTimestamp:
		switch value.(type) {
		case float64, float32, int, int32, int64, uint, uint32, uint64:
			return true
		}
		return false
	case domain.FieldBoolean:
		_, ok := value.(bool)
		return ok
	case domain.FieldArray:
		_, ok := value.([]any)
		return ok
	case domain.FieldObject:
		_, ok := value.(map[string]any)
		return ok
	}
	return false
}
