package core

import (
	"context"
	"fmt"

	"stockledger/pkg/document"
	"stockledger/pkg/domain"
)

// GetRelated resolves a declared relation of a datum on demand. An unset
// foreign key or a missing target yields an empty result, never an error;
// broken references surface through validation, not through reads.
func (s *Service) GetRelated(ctx context.Context, d *domain.Datum, relation string) ([]*domain.Datum, error) {
	var out []*domain.Datum
	err := s.observe(ctx, "get_related", func(ctx context.Context) error {
		var err error
		out, err = s.getRelated(ctx, d, relation)
		return err
	})
	return out, err
}

func (s *Service) getRelated(ctx context.Context, d *domain.Datum, relation string) ([]*domain.Datum, error) {
	if d == nil {
		return []*domain.Datum{}, nil
	}
	def, ok := s.registry.Type(d.Type)
	if !ok {
		return nil, fmt.Errorf("unknown data type %q", d.Type)
	}
	rel, ok := def.Relation(relation)
	if !ok {
		return nil, fmt.Errorf("type %s has no relation %q", d.Type, relation)
	}

	switch rel.Kind {
	case domain.RelationBelongsTo:
		targetID, ok := d.StringField(rel.ForeignKey)
		if !ok {
			return []*domain.Datum{}, nil
		}
		target, err := s.findDatum(ctx, rel.Target, targetID)
		if err != nil {
			return nil, err
		}
		if target == nil {
			return []*domain.Datum{}, nil
		}
		return []*domain.Datum{target}, nil

	case domain.RelationHasMany:
		return s.getData(ctx, rel.Target, DataQuery{
			Selector: document.Selector{rel.ForeignKey: d.ID},
		})

	default:
		// Unrecognized kinds resolve to an empty result so readers stay
		// usable against registries newer than this code.
		return []*domain.Datum{}, nil
	}
}
