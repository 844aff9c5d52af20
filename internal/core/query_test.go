package core

import (
	"context"
	"testing"

	"stockledger/pkg/document"
	"stockledger/pkg/domain"
)

func seedQueryItems(t *testing.T, svc *Service) {
	t.Helper()
	for _, spec := range []struct {
		name string
		qty  float64
	}{
		{"anvil", 3},
		{"bolt", 10},
		{"crate", 5},
	} {
		mustSaveItem(t, svc, spec.name, func(d *domain.Datum) {
			d.SetField("quantity", spec.qty)
		})
	}
}

func TestGetDataSelectorsAndSort(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	seedQueryItems(t, svc)

	all, err := svc.GetData(ctx, domain.TypeItem, DataQuery{})
	if err != nil {
		t.Fatalf("get data: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 items, got %d", len(all))
	}

	heavy, err := svc.GetData(ctx, domain.TypeItem, DataQuery{
		Selector: document.Selector{"quantity": map[string]any{document.OpGte: float64(5)}},
		Sort:     []document.SortField{{Field: "quantity", Order: document.Descending}},
	})
	if err != nil {
		t.Fatalf("filtered: %v", err)
	}
	if len(heavy) != 2 {
		t.Fatalf("expected 2 items, got %d", len(heavy))
	}
	if name, _ := heavy[0].StringField("name"); name != "bolt" {
		t.Fatalf("sort order wrong: %+v", heavy)
	}

	paged, err := svc.GetData(ctx, domain.TypeItem, DataQuery{
		Sort:  []document.SortField{{Field: "name", Order: document.Ascending}},
		Skip:  1,
		Limit: 1,
	})
	if err != nil {
		t.Fatalf("paged: %v", err)
	}
	if len(paged) != 1 {
		t.Fatalf("expected 1 item, got %d", len(paged))
	}
	if name, _ := paged[0].StringField("name"); name != "bolt" {
		t.Fatalf("pagination wrong: %+v", paged)
	}
}

func TestGetDataExcludesTombstonesAndOtherTypes(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	seedQueryItems(t, svc)
	mustSaveCollection(t, svc, "tools")

	all, err := svc.GetData(ctx, domain.TypeItem, DataQuery{
		Sort: []document.SortField{{Field: "name", Order: document.Ascending}},
	})
	if err != nil {
		t.Fatalf("get data: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("collection must not leak into item query: %d", len(all))
	}

	if err := svc.DeleteDatum(ctx, domain.TypeItem, all[0].ID, SaveOptions{}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	live, err := svc.GetData(ctx, domain.TypeItem, DataQuery{})
	if err != nil {
		t.Fatalf("get data after delete: %v", err)
	}
	if len(live) != 2 {
		t.Fatalf("tombstoned item must be excluded: %d", len(live))
	}
}

func TestGetDataIncludesInvalidRecords(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	seedQueryItems(t, svc)

	if _, err := store.Put(ctx, document.Document{
		document.FieldID:   "item:broken",
		document.FieldType: domain.TypeItem,
		"quantity":         float64(2),
	}); err != nil {
		t.Fatalf("seed broken: %v", err)
	}

	all, err := svc.GetData(ctx, domain.TypeItem, DataQuery{})
	if err != nil {
		t.Fatalf("get data: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("invalid record must still be listed: %d", len(all))
	}
	invalid := 0
	for _, d := range all {
		if !d.Valid() {
			invalid++
			if d.ID != "broken" || d.ParseError == "" {
				t.Fatalf("unexpected invalid datum: %+v", d)
			}
		}
	}
	if invalid != 1 {
		t.Fatalf("expected exactly one invalid datum, got %d", invalid)
	}
}

func TestGetDataDisabled(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	seedQueryItems(t, svc)

	out, err := svc.GetData(ctx, domain.TypeItem, DataQuery{Disabled: true})
	if err != nil {
		t.Fatalf("disabled: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("disabled query must be empty, got %d", len(out))
	}
	count, err := svc.GetDataCount(ctx, domain.TypeItem, DataQuery{Disabled: true})
	if err != nil || count != 0 {
		t.Fatalf("disabled count must be 0, got %d (%v)", count, err)
	}
}

func TestGetDataCountIgnoresPagination(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	seedQueryItems(t, svc)

	count, err := svc.GetDataCount(ctx, domain.TypeItem, DataQuery{Limit: 1, Skip: 1})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("count must ignore limit and skip, got %d", count)
	}
}

func TestGetDataUnknownType(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.GetData(context.Background(), "mystery", DataQuery{}); err == nil {
		t.Fatalf("unknown type must error")
	}
	if _, err := svc.GetDataCount(context.Background(), "mystery", DataQuery{}); err == nil {
		t.Fatalf("unknown type must error")
	}
}
