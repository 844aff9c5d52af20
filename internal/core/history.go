package core

import (
	"context"
	"fmt"
	"sort"

	"stockledger/pkg/document"
	"stockledger/pkg/domain"
)

// History index names. Declared idempotently before the first history query.
const (
	indexHistoryData  = "idx-history-data"
	indexHistoryBatch = "idx-history-batch"
)

// declareIndexes issues the idempotent index declarations the history
// queries depend on.
func (s *Service) declareIndexes(ctx context.Context) error {
	indexes := []document.Index{
		{
			Name:          indexHistoryData,
			Fields:        []string{"data_type", "data_id", "timestamp"},
			PartialFilter: document.Selector{document.FieldType: domain.HistoryDocType},
		},
		{
			Name:   indexHistoryBatch,
			Fields: []string{"batch", "created_by", "timestamp"},
			PartialFilter: document.Selector{
				document.FieldType: domain.HistoryDocType,
				"batch":            map[string]any{document.OpExists: true},
			},
		},
	}
	for _, idx := range indexes {
		if err := s.store.CreateIndex(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) ensureIndexes(ctx context.Context) error {
	s.indexOnce.Do(func() {
		s.indexErr = s.declareIndexes(ctx)
	})
	return s.indexErr
}

// findHistories runs one history query with the bounded warm-up retry: a
// freshly declared index may not be queryable yet, so transport failures
// re-declare the indexes and retry the query.
func (s *Service) findHistories(ctx context.Context, req document.FindRequest) ([]document.Document, error) {
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	var lastErr error
	for attempt := 0; attempt <= s.indexRetries; attempt++ {
		if attempt > 0 {
			if err := s.declareIndexes(ctx); err != nil {
				return nil, err
			}
		}
		docs, err := s.store.Find(ctx, req)
		if err == nil {
			return docs, nil
		}
		if _, transient := err.(*document.TransportError); !transient {
			return nil, err
		}
		lastErr = err
		s.log.Warn(ctx, "history query failed, retrying", "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

// decodeHistories converts history documents, skipping records that do not
// satisfy the history shape.
func (s *Service) decodeHistories(ctx context.Context, docs []document.Document) []domain.HistoryEntry {
	out := make([]domain.HistoryEntry, 0, len(docs))
	for _, doc := range docs {
		entry, err := domain.HistoryFromDoc(doc)
		if err != nil {
			s.log.Warn(ctx, "skipping malformed history record", "doc", doc.ID(), "error", err)
			continue
		}
		out = append(out, entry)
	}
	return out
}

// GetDatumHistories lists the change history of one datum, newest first.
// A non-zero after bound returns only entries strictly newer than it.
func (s *Service) GetDatumHistories(ctx context.Context, dataType, dataID string, after int64, limit int) ([]domain.HistoryEntry, error) {
	var out []domain.HistoryEntry
	err := s.observe(ctx, "get_datum_histories", func(ctx context.Context) error {
		selector := document.Selector{
			document.FieldType: domain.HistoryDocType,
			"data_type":        dataType,
			"data_id":          dataID,
		}
		if after > 0 {
			selector["timestamp"] = map[string]any{document.OpGt: float64(after)}
		}
		docs, err := s.findHistories(ctx, document.FindRequest{
			Selector: selector,
			Sort:     []document.SortField{{Field: "timestamp", Order: document.Descending}},
			Limit:    limit,
		})
		if err != nil {
			return err
		}
		out = s.decodeHistories(ctx, docs)
		return nil
	})
	return out, err
}

// GetHistory fetches one history entry by bare id. Unlike list queries, a
// malformed record raises the shape error.
func (s *Service) GetHistory(ctx context.Context, id string) (*domain.HistoryEntry, error) {
	var out *domain.HistoryEntry
	err := s.observe(ctx, "get_history", func(ctx context.Context) error {
		var err error
		out, err = s.getHistory(ctx, id)
		return err
	})
	return out, err
}

func (s *Service) getHistory(ctx context.Context, id string) (*domain.HistoryEntry, error) {
	doc, err := s.getDoc(ctx, domain.DocID(domain.HistoryDocType, id))
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	entry, err := domain.HistoryFromDoc(doc)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListHistoryBatchesCreatedBy returns the distinct batch numbers recorded for
// one actor, newest batch first.
func (s *Service) ListHistoryBatchesCreatedBy(ctx context.Context, createdBy string) ([]int64, error) {
	var out []int64
	err := s.observe(ctx, "list_history_batches", func(ctx context.Context) error {
		docs, err := s.findHistories(ctx, document.FindRequest{
			Selector: document.Selector{
				document.FieldType: domain.HistoryDocType,
				"created_by":       createdBy,
				"batch":            map[string]any{document.OpExists: true},
			},
		})
		if err != nil {
			return err
		}
		seen := map[int64]struct{}{}
		for _, entry := range s.decodeHistories(ctx, docs) {
			if entry.Batch == nil {
				continue
			}
			if _, dup := seen[*entry.Batch]; dup {
				continue
			}
			seen[*entry.Batch] = struct{}{}
			out = append(out, *entry.Batch)
		}
		sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
		return nil
	})
	return out, err
}

// GetHistoriesInBatch lists every entry recorded under one batch number,
// newest first. A non-empty createdBy narrows the result to one actor.
func (s *Service) GetHistoriesInBatch(ctx context.Context, batch int64, createdBy string) ([]domain.HistoryEntry, error) {
	var out []domain.HistoryEntry
	err := s.observe(ctx, "get_histories_in_batch", func(ctx context.Context) error {
		selector := document.Selector{
			document.FieldType: domain.HistoryDocType,
			"batch":            float64(batch),
		}
		if createdBy != "" {
			selector["created_by"] = createdBy
		}
		docs, err := s.findHistories(ctx, document.FindRequest{
			Selector: selector,
			Sort:     []document.SortField{{Field: "timestamp", Order: document.Descending}},
		})
		if err != nil {
			return err
		}
		out = s.decodeHistories(ctx, docs)
		return nil
	})
	return out, err
}

// NextHistoryBatch allocates the next batch number: one past the highest
// batch recorded so far.
func (s *Service) NextHistoryBatch(ctx context.Context) (int64, error) {
	var next int64
	err := s.observe(ctx, "next_history_batch", func(ctx context.Context) error {
		docs, err := s.findHistories(ctx, document.FindRequest{
			Selector: document.Selector{
				document.FieldType: domain.HistoryDocType,
				"batch":            map[string]any{document.OpExists: true},
			},
		})
		if err != nil {
			return err
		}
		var max int64
		for _, entry := range s.decodeHistories(ctx, docs) {
			if entry.Batch != nil && *entry.Batch > max {
				max = *entry.Batch
			}
		}
		next = max + 1
		return nil
	})
	return next, err
}

// RestoreHistory reverts the change recorded by one history entry: fields
// captured in the entry's original side are written back and fields the
// change introduced are removed. The revert is forward-recorded as a new
// history_restore entry; applying it twice converges on the same state.
func (s *Service) RestoreHistory(ctx context.Context, historyID string, opts HistoryOptions) (*domain.Datum, error) {
	var out *domain.Datum
	err := s.observe(ctx, "restore_history", func(ctx context.Context) error {
		entry, err := s.getHistory(ctx, historyID)
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("history entry %s not found", historyID)
		}
		def, ok := s.registry.Type(entry.DataType)
		if !ok {
			return fmt.Errorf("history entry %s targets unknown data type %q", historyID, entry.DataType)
		}

		doc, err := s.getDoc(ctx, domain.DocID(entry.DataType, entry.DataID))
		if err != nil {
			return err
		}
		var d *domain.Datum
		if doc == nil {
			d = domain.NewDatum(def)
			d.ID = entry.DataID
			d.Fields = map[string]any{}
		} else {
			d = domain.DatumFromDoc(def, doc)
			if !d.Valid() {
				d.Fields = fieldsFromDoc(def, doc)
			}
			// Restoring a deletion resurrects the datum.
			d.Deleted = false
		}
		for key, value := range entry.OriginalData {
			d.SetField(key, value)
		}
		for key := range entry.NewData {
			if _, keep := entry.OriginalData[key]; !keep {
				delete(d.Fields, key)
			}
		}

		restoreOpts := HistoryOptions{
			CreatedBy: opts.CreatedBy,
			Batch:     opts.Batch,
			EventName: domain.EventRestore,
		}
		out, err = s.saveDatum(ctx, d, SaveOptions{
			IgnoreConflict: true,
			SkipValidation: true,
			History:        &restoreOpts,
		})
		return err
	})
	return out, err
}
