package core

import (
	"context"
	"fmt"

	"stockledger/pkg/document"
	"stockledger/pkg/domain"
)

// GetConfig returns the singleton tag-numbering configuration. When no config
// document exists yet, an in-memory default with a fresh uuid is returned and
// nothing is written; ensureSaved instead requires a persisted document and
// surfaces its absence as a not-found error.
func (s *Service) GetConfig(ctx context.Context, ensureSaved bool) (domain.TagConfig, error) {
	var cfg domain.TagConfig
	err := s.observe(ctx, "get_config", func(ctx context.Context) error {
		doc, err := s.getDoc(ctx, domain.ConfigDocID)
		if err != nil {
			return err
		}
		if doc != nil {
			cfg = domain.ConfigFromDoc(doc)
			return nil
		}
		if ensureSaved {
			return fmt.Errorf("persisted config required: %w", &document.NotFoundError{ID: domain.ConfigDocID})
		}
		cfg = domain.DefaultTagConfig()
		return nil
	})
	return cfg, err
}

// UpdateConfig merges the given field changes onto the latest stored config,
// last writer wins. Conflicts are resolved by re-reading and re-merging, up
// to the configured retry bound.
func (s *Service) UpdateConfig(ctx context.Context, changes map[string]any) (domain.TagConfig, error) {
	var cfg domain.TagConfig
	err := s.observe(ctx, "update_config", func(ctx context.Context) error {
		for attempt := 0; ; attempt++ {
			doc, err := s.getDoc(ctx, domain.ConfigDocID)
			if err != nil {
				return err
			}
			if doc == nil {
				doc = domain.DocFromConfig(domain.DefaultTagConfig())
			}
			for key, value := range changes {
				doc[key] = value
			}
			stored, err := s.store.Put(ctx, doc)
			if err == nil {
				cfg = domain.ConfigFromDoc(stored)
				return nil
			}
			conflict, isConflict := asConflict(err)
			if !isConflict {
				return err
			}
			if attempt >= s.conflictRetries {
				conflict.Attempts = attempt + 1
				return conflict
			}
			s.log.Warn(ctx, "config conflict, retrying", "attempt", attempt+1)
		}
	})
	return cfg, err
}
