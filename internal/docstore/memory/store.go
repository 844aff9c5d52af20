// Package memory provides the in-memory reference implementation of the
// document store contract. Durable backends embed it and persist snapshots
// after each accepted write.
package memory

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"

	"stockledger/pkg/document"
)

// Compile-time contract assertion.
var _ document.Store = (*Store)(nil)

// Store keeps full-fidelity documents (attachment payloads included) in a
// map guarded by a RWMutex. Revision tokens follow the "<gen>-<hex>" shape
// and every Put validates the caller's revision against the stored one.
type Store struct {
	mu      sync.RWMutex
	docs    map[string]document.Document
	indexes map[string]document.Index
}

// NewStore constructs an empty in-memory document store.
func NewStore() *Store {
	return &Store{
		docs:    make(map[string]document.Document),
		indexes: make(map[string]document.Index),
	}
}

// Driver reports the memory driver.
func (s *Store) Driver() document.Driver { return document.DriverMemory }

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// Get returns a copy of the stored document with attachments stubbed.
func (s *Store) Get(_ context.Context, id string) (document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, &document.NotFoundError{ID: id}
	}
	return stubAttachments(doc.Clone()), nil
}

// Put validates the revision chain and stores the document under a fresh
// revision. Attachment stubs in the incoming document are rehydrated from the
// currently stored payloads so that read-modify-write cycles keep payloads.
func (s *Store) Put(_ context.Context, doc document.Document) (document.Document, error) {
	id := doc.ID()
	if id == "" {
		return nil, &document.ShapeError{Doc: "(new)", Reason: "missing _id"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.docs[id]
	switch {
	case exists && doc.Rev() != current.Rev():
		return nil, &document.ConflictError{ID: id, Rev: doc.Rev()}
	case !exists && doc.Rev() != "":
		return nil, &document.ConflictError{ID: id, Rev: doc.Rev()}
	}

	stored := doc.Clone()
	if err := resolveAttachments(stored, current); err != nil {
		return nil, err
	}
	stored[document.FieldRev] = document.NextRev(doc.Rev())
	s.docs[id] = stored
	return stubAttachments(stored.Clone()), nil
}

// Find evaluates the selector over all documents, applies sort, skip and
// limit, and returns stubbed copies. Without an explicit sort the result is
// ordered by document id so that runs are deterministic.
func (s *Store) Find(_ context.Context, req document.FindRequest) ([]document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]document.Document, 0)
	for _, doc := range s.docs {
		ok, err := matchSelector(doc, req.Selector)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, doc)
		}
	}

	sortDocs(matched, req.Sort)

	if req.Skip > 0 {
		if req.Skip >= len(matched) {
			matched = nil
		} else {
			matched = matched[req.Skip:]
		}
	}
	if req.Limit > 0 && len(matched) > req.Limit {
		matched = matched[:req.Limit]
	}

	out := make([]document.Document, len(matched))
	for i, doc := range matched {
		out[i] = stubAttachments(doc.Clone())
	}
	return out, nil
}

// Count returns the number of selector matches, ignoring pagination.
func (s *Store) Count(_ context.Context, req document.FindRequest) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, doc := range s.docs {
		ok, err := matchSelector(doc, req.Selector)
		if err != nil {
			return 0, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}

// CreateIndex records the index definition. Declaring an identical index is
// success; declaring a different definition under an existing name replaces
// it, mirroring how a remote store would rebuild the index.
func (s *Store) CreateIndex(_ context.Context, idx document.Index) error {
	if idx.Name == "" || len(idx.Fields) == 0 {
		return &document.ShapeError{Doc: idx.Name, Reason: "index needs a name and at least one field"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexes[idx.Name] = idx
	return nil
}

// Indexes returns the declared index definitions sorted by name.
func (s *Store) Indexes() []document.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]document.Index, 0, len(s.indexes))
	for _, idx := range s.indexes {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetAttachment returns one attachment payload decoded from its inline entry.
func (s *Store) GetAttachment(_ context.Context, id, name string) (document.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return document.Attachment{}, &document.NotFoundError{ID: id}
	}
	entry, ok := doc.Attachments()[name].(map[string]any)
	if !ok {
		return document.Attachment{}, &document.NotFoundError{ID: id + "/" + name}
	}
	encoded, _ := entry[document.AttachmentData].(string)
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return document.Attachment{}, &document.ShapeError{Doc: id, Reason: fmt.Sprintf("attachment %s: invalid base64", name)}
	}
	contentType, _ := entry[document.AttachmentContentType].(string)
	return document.Attachment{ContentType: contentType, Data: data}, nil
}

// ExportState returns full-fidelity copies of every stored document keyed by
// id, for durable wrappers that snapshot state.
func (s *Store) ExportState() map[string]document.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]document.Document, len(s.docs))
	for id, doc := range s.docs {
		out[id] = doc.Clone()
	}
	return out
}

// ExportDoc returns the full-fidelity stored form of one document.
func (s *Store) ExportDoc(id string) (document.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, false
	}
	return doc.Clone(), true
}

// ImportState replaces the store contents with the given snapshot.
func (s *Store) ImportState(snapshot map[string]document.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[string]document.Document, len(snapshot))
	for id, doc := range snapshot {
		s.docs[id] = doc.Clone()
	}
}

// resolveAttachments rewrites the _attachments map of an incoming document:
// inline data entries get their length/digest recomputed, stub entries are
// replaced with the payload currently stored under the same name.
func resolveAttachments(incoming, current document.Document) error {
	atts := incoming.Attachments()
	if atts == nil {
		return nil
	}
	var currentAtts map[string]any
	if current != nil {
		currentAtts = current.Attachments()
	}
	for name, raw := range atts {
		entry, ok := raw.(map[string]any)
		if !ok {
			return &document.ShapeError{Doc: incoming.ID(), Reason: fmt.Sprintf("attachment %s is not an object", name)}
		}
		if stub, _ := entry[document.AttachmentStub].(bool); stub {
			stored, ok := currentAtts[name].(map[string]any)
			if !ok {
				return &document.ShapeError{Doc: incoming.ID(), Reason: fmt.Sprintf("attachment %s: stub without stored payload", name)}
			}
			atts[name] = cloneMap(stored)
			continue
		}
		encoded, ok := entry[document.AttachmentData].(string)
		if !ok {
			return &document.ShapeError{Doc: incoming.ID(), Reason: fmt.Sprintf("attachment %s: missing data", name)}
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return &document.ShapeError{Doc: incoming.ID(), Reason: fmt.Sprintf("attachment %s: invalid base64", name)}
		}
		contentType, _ := entry[document.AttachmentContentType].(string)
		atts[name] = document.EncodeAttachment(contentType, data)
	}
	return nil
}

// stubAttachments strips payload bytes from a document copy, leaving only
// per-attachment metadata, the way a remote store answers reads.
func stubAttachments(doc document.Document) document.Document {
	atts := doc.Attachments()
	if atts == nil {
		return doc
	}
	for name, raw := range atts {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		stub := map[string]any{
			document.AttachmentStub:        true,
			document.AttachmentContentType: entry[document.AttachmentContentType],
			document.AttachmentLength:      entry[document.AttachmentLength],
			document.AttachmentDigest:      entry[document.AttachmentDigest],
		}
		atts[name] = stub
	}
	return doc
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// matchSelector evaluates a selector against one document.
func matchSelector(doc document.Document, sel document.Selector) (bool, error) {
	for field, cond := range sel {
		value, present := doc[field]
		ops, isOps := operatorObject(cond)
		if !isOps {
			if !present || !looseEqual(value, cond) {
				return false, nil
			}
			continue
		}
		for op, operand := range ops {
			ok, err := applyOperator(op, operand, value, present)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
	}
	return true, nil
}

// operatorObject reports whether a condition value is an operator object,
// i.e. a map whose keys all start with '$'.
func operatorObject(cond any) (map[string]any, bool) {
	m, ok := cond.(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for key := range m {
		if !strings.HasPrefix(key, "$") {
			return nil, false
		}
	}
	return m, true
}

func applyOperator(op string, operand, value any, present bool) (bool, error) {
	switch op {
	case document.OpEq:
		return present && looseEqual(value, operand), nil
	case document.OpIn:
		items, ok := asSlice(operand)
		if !ok {
			return false, &document.ShapeError{Doc: "selector", Reason: "$in operand must be an array"}
		}
		if !present {
			return false, nil
		}
		for _, item := range items {
			if looseEqual(value, item) {
				return true, nil
			}
		}
		return false, nil
	case document.OpGt, document.OpGte, document.OpLt, document.OpLte:
		if !present {
			return false, nil
		}
		cmp, ok := compareValues(value, operand)
		if !ok {
			return false, nil
		}
		switch op {
		case document.OpGt:
			return cmp > 0, nil
		case document.OpGte:
			return cmp >= 0, nil
		case document.OpLt:
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}
	case document.OpExists:
		want, _ := operand.(bool)
		return present == want, nil
	default:
		return false, &document.ShapeError{Doc: "selector", Reason: fmt.Sprintf("unsupported operator %s", op)}
	}
}

func asSlice(v any) ([]any, bool) {
	switch typed := v.(type) {
	case []any:
		return typed, true
	case []string:
		out := make([]any, len(typed))
		for i, s := range typed {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// looseEqual compares two scalar values with JSON numeric semantics: any two
// numbers are equal when their float64 forms are equal.
func looseEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// compareValues orders two values of compatible types: numbers numerically,
// strings lexicographically, booleans false<true.
func compareValues(a, b any) (int, bool) {
	if af, ok := asFloat(a); ok {
		bf, bok := asFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	default:
		return 0, false
	}
}

func sortDocs(docs []document.Document, fields []document.SortField) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, sf := range fields {
			cmp, ok := compareValues(docs[i][sf.Field], docs[j][sf.Field])
			if !ok || cmp == 0 {
				continue
			}
			if sf.Order == document.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		// Tie-break on id to keep runs deterministic.
		return docs[i].ID() < docs[j].ID()
	})
}
