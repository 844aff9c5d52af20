package core

import (
	"context"
	"fmt"

	"stockledger/pkg/domain"
)

// NewCollectionReferenceRule returns the rule checking that an item's
// collection_id points at an existing collection and that both sides carry
// the same tag-config uuid.
func NewCollectionReferenceRule() domain.Rule {
	return collectionReferenceRule{}
}

type collectionReferenceRule struct{}

func (collectionReferenceRule) Name() string { return "collection_reference" }

func (collectionReferenceRule) Evaluate(ctx context.Context, view domain.RuleView, def *domain.TypeDefinition, datum *domain.Datum) ([]domain.Issue, error) {
	if def.Name != domain.TypeItem {
		return nil, nil
	}
	collectionID, ok := datum.StringField("collection_id")
	if !ok {
		return nil, nil
	}
	collection, err := view.FindDatum(ctx, domain.TypeCollection, collectionID)
	if err != nil {
		return nil, err
	}
	if collection == nil || !collection.Valid() {
		return []domain.Issue{{
			Field:   "collection_id",
			Code:    domain.CodeUnknownReference,
			Message: fmt.Sprintf("collection %s does not exist", collectionID),
		}}, nil
	}
	itemUUID, itemHas := datum.StringField("config_uuid")
	collUUID, collHas := collection.StringField("config_uuid")
	if itemHas && collHas && itemUUID != collUUID {
		return []domain.Issue{{
			Field:   "config_uuid",
			Code:    domain.CodeConfigMismatch,
			Message: fmt.Sprintf("item config %s does not match collection config %s", itemUUID, collUUID),
		}}, nil
	}
	return nil, nil
}
