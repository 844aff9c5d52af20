package core

import (
	"context"
	"errors"
	"testing"

	"stockledger/internal/docstore/memory"
	"stockledger/pkg/domain"
)

// denyNameRule rejects a fixed name. Exercises custom rule registration.
type denyNameRule struct{}

func (denyNameRule) Name() string { return "deny_name" }

func (denyNameRule) Evaluate(_ context.Context, _ domain.RuleView, _ *domain.TypeDefinition, d *domain.Datum) ([]domain.Issue, error) {
	if name, _ := d.StringField("name"); name == "forbidden" {
		return []domain.Issue{{Field: "name", Code: "forbidden_name", Message: "name is reserved"}}, nil
	}
	return nil, nil
}

func TestCustomRuleRegistration(t *testing.T) {
	ctx := context.Background()
	engine := DefaultRulesEngine()
	engine.Register(denyNameRule{})
	svc := NewService(memory.NewStore(), domain.DefaultRegistry(),
		WithClock(newTickingClock().Now),
		WithRulesEngine(engine),
	)

	d, _ := svc.NewDatum(domain.TypeItem)
	d.SetField("name", "forbidden")
	_, err := svc.SaveDatum(ctx, d, SaveOptions{})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Issues[0].Code != "forbidden_name" {
		t.Fatalf("expected custom issue, got %+v", verr.Issues)
	}

	d.SetField("name", "allowed")
	if _, err := svc.SaveDatum(ctx, d, SaveOptions{}); err != nil {
		t.Fatalf("allowed save: %v", err)
	}
}

func TestRulesAggregateAcrossRules(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	d, _ := svc.NewDatum(domain.TypeItem)
	// Missing name and a mistyped quantity report together.
	d.SetField("quantity", "lots")
	_, err := svc.SaveDatum(ctx, d, SaveOptions{})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	codes := map[string]bool{}
	for _, issue := range verr.Issues {
		codes[issue.Code] = true
	}
	if !codes[domain.CodeRequired] || !codes[domain.CodeWrongType] {
		t.Fatalf("expected both issues, got %+v", verr.Issues)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	svc, _ := newTestService(t)
	d, _ := svc.NewDatum(domain.TypeItem)
	_, err := svc.SaveDatum(context.Background(), d, SaveOptions{})
	if err == nil || err.Error() == "" {
		t.Fatalf("validation error must describe its issues")
	}
}
