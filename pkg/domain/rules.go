package domain

import (
	"context"
	"fmt"
	"strings"
)

// Issue describes a single validation finding on a datum field.
type Issue struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Validation reason codes.
const (
	CodeRequired         = "required"
	CodeWrongType        = "wrong_type"
	CodeUnknownReference = "unknown_reference"
	CodeConfigMismatch   = "config_mismatch"
)

// ValidationError aggregates every issue found during a save attempt. A save
// that produces issues is rejected as a whole.
type ValidationError struct {
	DataType string
	DataID   string
	Issues   []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, fmt.Sprintf("%s:%s", issue.Field, issue.Code))
	}
	return fmt.Sprintf("validation failed for %s %s: %s", e.DataType, e.DataID, strings.Join(parts, ", "))
}

// RuleView is the read surface rules evaluate against. Lookups of missing
// data return nil without error.
type RuleView interface {
	FindDatum(ctx context.Context, dataType, id string) (*Datum, error)
}

// Rule checks one aspect of a datum before it is written. Rules report
// findings as issues; they return an error only on infrastructure failure.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, def *TypeDefinition, datum *Datum) ([]Issue, error)
}
