package core

import (
	"context"
	"fmt"

	"stockledger/pkg/document"
	"stockledger/pkg/domain"
)

// DataQuery describes one typed list query. The type constraint and the
// live-records-only constraint are added by the service; Selector only
// carries the caller's additional predicates.
type DataQuery struct {
	Selector document.Selector
	Sort     []document.SortField
	Limit    int
	Skip     int
	// Disabled short-circuits the query: an empty result without touching
	// the store. UIs use it to suspend live queries cheaply.
	Disabled bool
}

// GetData lists live datums of one type. Records that no longer parse are
// returned as invalid datums so callers can render and repair them.
func (s *Service) GetData(ctx context.Context, dataType string, q DataQuery) ([]*domain.Datum, error) {
	var out []*domain.Datum
	err := s.observe(ctx, "get_data", func(ctx context.Context) error {
		var err error
		out, err = s.getData(ctx, dataType, q)
		return err
	})
	return out, err
}

func (s *Service) getData(ctx context.Context, dataType string, q DataQuery) ([]*domain.Datum, error) {
	if q.Disabled {
		return []*domain.Datum{}, nil
	}
	def, ok := s.registry.Type(dataType)
	if !ok {
		return nil, fmt.Errorf("unknown data type %q", dataType)
	}
	docs, err := s.store.Find(ctx, typedFindRequest(dataType, q))
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Datum, 0, len(docs))
	for _, doc := range docs {
		out = append(out, domain.DatumFromDoc(def, doc))
	}
	return out, nil
}

// GetDataCount counts live datums of one type matching the query's selector.
// Limit and Skip are ignored.
func (s *Service) GetDataCount(ctx context.Context, dataType string, q DataQuery) (int, error) {
	var count int
	err := s.observe(ctx, "get_data_count", func(ctx context.Context) error {
		if q.Disabled {
			count = 0
			return nil
		}
		if _, ok := s.registry.Type(dataType); !ok {
			return fmt.Errorf("unknown data type %q", dataType)
		}
		var err error
		count, err = s.store.Count(ctx, typedFindRequest(dataType, q))
		return err
	})
	return count, err
}

// typedFindRequest merges the caller's selector with the type constraint and
// the tombstone exclusion. Live documents never carry the deleted field.
func typedFindRequest(dataType string, q DataQuery) document.FindRequest {
	selector := document.Selector{
		document.FieldType:    dataType,
		document.FieldDeleted: map[string]any{document.OpExists: false},
	}
	for key, value := range q.Selector {
		selector[key] = value
	}
	return document.FindRequest{
		Selector: selector,
		Sort:     q.Sort,
		Limit:    q.Limit,
		Skip:     q.Skip,
	}
}
