package core

import (
	"context"

	"stockledger/pkg/document"
	"stockledger/pkg/domain"
)

// GetDatum fetches one datum by type and bare id. Missing and tombstoned
// records both yield (nil, nil). A stored record that no longer parses is
// returned as an invalid datum, not as an error.
func (s *Service) GetDatum(ctx context.Context, dataType, id string) (*domain.Datum, error) {
	var out *domain.Datum
	err := s.observe(ctx, "get_datum", func(ctx context.Context) error {
		var err error
		out, err = s.findDatum(ctx, dataType, id)
		return err
	})
	return out, err
}

func (s *Service) findDatum(ctx context.Context, dataType, id string) (*domain.Datum, error) {
	def, ok := s.registry.Type(dataType)
	if !ok {
		return nil, &document.ShapeError{Doc: domain.DocID(dataType, id), Reason: "unknown data type"}
	}
	doc, err := s.getDoc(ctx, domain.DocID(dataType, id))
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.Deleted() {
		return nil, nil
	}
	return domain.DatumFromDoc(def, doc), nil
}

// ruleView exposes the read surface rules evaluate against.
func (s *Service) ruleView() domain.RuleView { return serviceRuleView{s} }

type serviceRuleView struct {
	svc *Service
}

func (v serviceRuleView) FindDatum(ctx context.Context, dataType, id string) (*domain.Datum, error) {
	return v.svc.findDatum(ctx, dataType, id)
}
