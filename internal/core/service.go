// Package core implements the typed data-access layer over a document store:
// schema-aware reads, the validated optimistic-concurrency save pipeline,
// relation resolution, the append-only change history with restore, and
// attachment handling.
package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stockledger/internal/blob"
	"stockledger/internal/logging"
	"stockledger/pkg/document"
	"stockledger/pkg/domain"
)

const (
	defaultConflictRetries = 3
	defaultIndexRetries    = 3
)

// Service exposes the typed operations of the inventory data layer. All
// persistence flows through a single document.Store; per-document atomicity
// is the only transactional guarantee.
type Service struct {
	store    document.Store
	blobs    blob.Store
	registry *domain.Registry
	engine   *RulesEngine
	log      logging.Logger
	metrics  MetricsRecorder
	tracer   Tracer
	now      func() time.Time

	conflictRetries int
	indexRetries    int

	indexOnce sync.Once
	indexErr  error
}

// Option customizes service construction.
type Option func(*Service)

// WithLogger installs a structured logger. The default discards records.
func WithLogger(log logging.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics installs a metrics recorder.
func WithMetrics(rec MetricsRecorder) Option {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(tr Tracer) Option {
	return func(s *Service) {
		if tr != nil {
			s.tracer = tr
		}
	}
}

// WithBlobStore installs the attachment archive backend.
func WithBlobStore(st blob.Store) Option {
	return func(s *Service) { s.blobs = st }
}

// WithRulesEngine replaces the default rule set.
func WithRulesEngine(engine *RulesEngine) Option {
	return func(s *Service) {
		if engine != nil {
			s.engine = engine
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithConflictRetries bounds revision-conflict retries per save.
func WithConflictRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.conflictRetries = n
		}
	}
}

// WithIndexRetries bounds query retries while indexes warm up.
func WithIndexRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.indexRetries = n
		}
	}
}

// NewService constructs a service over the given store and schema registry.
func NewService(store document.Store, registry *domain.Registry, opts ...Option) *Service {
	s := &Service{
		store:           store,
		registry:        registry,
		engine:          DefaultRulesEngine(),
		log:             logging.Discard(),
		metrics:         noopMetricsRecorder{},
		tracer:          noopTracer{},
		now:             time.Now,
		conflictRetries: defaultConflictRetries,
		indexRetries:    defaultIndexRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying document store.
func (s *Service) Store() document.Store { return s.store }

// Registry returns the schema registry the service was built with.
func (s *Service) Registry() *domain.Registry { return s.registry }

// NewDatum creates a fresh unsaved datum of the given type with defaults
// applied.
func (s *Service) NewDatum(dataType string) (*domain.Datum, error) {
	def, ok := s.registry.Type(dataType)
	if !ok {
		return nil, fmt.Errorf("unknown data type %q", dataType)
	}
	return domain.NewDatum(def), nil
}

// HistoryOptions attributes a history entry to an actor and an optional
// batch.
type HistoryOptions struct {
	CreatedBy string
	Batch     *int64
	EventName string
}

// SaveOptions tunes one save.
type SaveOptions struct {
	// IgnoreConflict makes the save succeed even when the bounded conflict
	// retries are exhausted: the latest stored state wins and is returned.
	IgnoreConflict bool
	// SkipValidation bypasses the rules engine. Tombstone writes use it so a
	// datum that no longer validates can still be deleted.
	SkipValidation bool
	// History enables and attributes the recorded change. A nil value skips
	// history recording entirely; internal writes that manage their own
	// audit trail rely on that.
	History *HistoryOptions
}

// SaveDatum runs the full write pipeline for one datum: rule validation,
// minimal diff against the stored version, the revision-guarded write with
// bounded conflict retries, and, when history options are supplied, the
// appended history record. A save whose diff is empty writes nothing and,
// restores excepted, records nothing.
func (s *Service) SaveDatum(ctx context.Context, d *domain.Datum, opts SaveOptions) (*domain.Datum, error) {
	var saved *domain.Datum
	err := s.observe(ctx, "save_datum", func(ctx context.Context) error {
		var err error
		saved, err = s.saveDatum(ctx, d, opts)
		return err
	})
	return saved, err
}

func (s *Service) saveDatum(ctx context.Context, d *domain.Datum, opts SaveOptions) (*domain.Datum, error) {
	if d == nil {
		return nil, fmt.Errorf("nil datum")
	}
	def, ok := s.registry.Type(d.Type)
	if !ok {
		return nil, fmt.Errorf("unknown data type %q", d.Type)
	}

	// Invalid datums are persisted as-is so user data survives for later
	// correction; only schema-valid datums run the rules.
	if !opts.SkipValidation && !d.Deleted && d.Valid() {
		if err := s.validate(ctx, def, d); err != nil {
			return nil, err
		}
	}
	if !d.Valid() && d.Fields == nil {
		d = d.Clone()
		d.Fields = fieldsFromDoc(def, d.Raw)
	}

	prevDoc, err := s.getDoc(ctx, d.DocID())
	if err != nil {
		return nil, err
	}

	intended := domain.GetDiff(fieldsFromDoc(def, prevDoc), fieldMap(d))
	tombstoning := d.Deleted && (prevDoc == nil || !prevDoc.Deleted())
	undeleting := !d.Deleted && prevDoc != nil && prevDoc.Deleted()
	if intended.Empty() && !tombstoning && !undeleting && prevDoc != nil &&
		!attachmentsChanged(d.Raw, prevDoc) {
		// Nothing changed; skip the write. A restore is still forward-recorded
		// so the audit trail shows it even when the data already matches the
		// target state.
		saved := domain.DatumFromDoc(def, prevDoc)
		if opts.History != nil && opts.History.EventName == domain.EventRestore {
			s.appendHistory(ctx, saved, prevDoc, intended, opts)
		}
		return saved, nil
	}

	saved, attempts, wrote, err := s.writeWithRetry(ctx, def, d, intended, opts)
	if err != nil {
		return nil, err
	}
	if !wrote {
		// Conflict retries exhausted and swallowed; the stored state wins and
		// no history is recorded for the discarded change.
		return saved, nil
	}

	if opts.History != nil {
		s.appendHistory(ctx, saved, prevDoc, intended, opts)
	}
	s.log.Debug(ctx, "datum saved", "type", d.Type, "id", d.ID, "attempts", attempts+1)
	return saved, nil
}

// writeWithRetry performs the revision-guarded put. On conflict it re-reads
// the stored document, reapplies the intended field changes on top, and
// tries again, up to the configured bound.
func (s *Service) writeWithRetry(ctx context.Context, def domain.TypeDefinition, d *domain.Datum, intended domain.Diff, opts SaveOptions) (saved *domain.Datum, attempts int, wrote bool, err error) {
	candidate := d.Clone()
	for attempt := 0; ; attempt++ {
		doc := domain.DocFromDatum(def, candidate)
		now := domain.NowMillis(s.now())
		if candidate.Rev == "" && candidate.CreatedAt == 0 {
			doc["created_at"] = float64(now)
		}
		doc["updated_at"] = float64(now)

		stored, err := s.store.Put(ctx, doc)
		if err == nil {
			return domain.DatumFromDoc(def, stored), attempt, true, nil
		}
		conflict, isConflict := asConflict(err)
		if !isConflict {
			return nil, attempt, false, err
		}
		if attempt >= s.conflictRetries {
			if opts.IgnoreConflict {
				latest, getErr := s.getDoc(ctx, candidate.DocID())
				if getErr != nil {
					return nil, attempt, false, getErr
				}
				return domain.DatumFromDoc(def, latest), attempt, false, nil
			}
			conflict.Attempts = attempt + 1
			return nil, attempt, false, conflict
		}

		s.log.Warn(ctx, "save conflict, retrying", "type", candidate.Type, "id", candidate.ID, "attempt", attempt+1)
		latest, getErr := s.getDoc(ctx, candidate.DocID())
		if getErr != nil {
			return nil, attempt, false, getErr
		}
		candidate = rebaseDatum(def, candidate, latest, intended)
		if !opts.SkipValidation && !candidate.Deleted {
			if err := s.validate(ctx, def, candidate); err != nil {
				return nil, attempt, false, err
			}
		}
	}
}

// rebaseDatum reapplies the intended changes of a conflicted save on top of
// the latest stored document.
func rebaseDatum(def domain.TypeDefinition, original *domain.Datum, latest document.Document, intended domain.Diff) *domain.Datum {
	if latest == nil {
		// The document vanished mid-save; keep the caller's version minus
		// the stale revision.
		rebased := original.Clone()
		rebased.Rev = ""
		return rebased
	}
	rebased := domain.DatumFromDoc(def, latest)
	if rebased.Fields == nil {
		rebased.Fields = map[string]any{}
	}
	for key, value := range intended.New {
		rebased.Fields[key] = value
	}
	for key := range intended.Original {
		if _, stillSet := intended.New[key]; !stillSet {
			delete(rebased.Fields, key)
		}
	}
	rebased.Deleted = original.Deleted
	rebased.State = domain.DatumValid
	rebased.ParseError = ""
	return rebased
}

func (s *Service) validate(ctx context.Context, def domain.TypeDefinition, d *domain.Datum) error {
	issues, err := s.engine.Evaluate(ctx, s.ruleView(), def, d)
	if err != nil {
		return err
	}
	if len(issues) > 0 {
		return &domain.ValidationError{DataType: d.Type, DataID: d.ID, Issues: issues}
	}
	return nil
}

// appendHistory records the accepted change. Only called when the save
// carries history options. History is forward-recorded after the write; a
// failed append is logged but never rolls the write back.
func (s *Service) appendHistory(ctx context.Context, saved *domain.Datum, prevDoc document.Document, intended domain.Diff, opts SaveOptions) {
	entry := domain.HistoryEntry{
		CreatedBy:    opts.History.CreatedBy,
		Batch:        opts.History.Batch,
		DataType:     saved.Type,
		DataID:       saved.ID,
		Timestamp:    domain.NowMillis(s.now()),
		OriginalData: intended.Original,
		NewData:      intended.New,
	}
	_, entry.ID, _ = domain.ParseDocID(domain.NewHistoryDocID())
	switch {
	case opts.History.EventName != "":
		entry.EventName = opts.History.EventName
	case saved.Deleted && (prevDoc == nil || !prevDoc.Deleted()):
		entry.EventName = domain.EventDelete
	case prevDoc == nil:
		entry.EventName = domain.EventCreate
	default:
		entry.EventName = domain.EventUpdate
	}

	doc, err := domain.DocFromHistory(entry)
	if err == nil {
		_, err = s.store.Put(ctx, doc)
	}
	if err != nil {
		s.log.Error(ctx, "history append failed", "type", saved.Type, "id", saved.ID, "error", err)
	}
}

// DeleteDatum tombstones a datum, recording the deletion when opts carries
// history attribution. Deleting an already tombstoned or missing datum is a
// no-op.
func (s *Service) DeleteDatum(ctx context.Context, dataType, id string, opts SaveOptions) error {
	return s.observe(ctx, "delete_datum", func(ctx context.Context) error {
		def, ok := s.registry.Type(dataType)
		if !ok {
			return fmt.Errorf("unknown data type %q", dataType)
		}
		doc, err := s.getDoc(ctx, domain.DocID(dataType, id))
		if err != nil {
			return err
		}
		if doc == nil || doc.Deleted() {
			return nil
		}
		d := domain.DatumFromDoc(def, doc)
		if !d.Valid() {
			// Tombstoning an unparsable datum keeps whatever fields the raw
			// document carried.
			d.Fields = fieldsFromDoc(def, doc)
		}
		d.Deleted = true
		opts.SkipValidation = true
		_, err = s.saveDatum(ctx, d, opts)
		return err
	})
}

// getDoc fetches a raw document, translating not-found into a nil document.
func (s *Service) getDoc(ctx context.Context, docID string) (document.Document, error) {
	doc, err := s.store.Get(ctx, docID)
	if err != nil {
		if _, ok := err.(*document.NotFoundError); ok {
			return nil, nil
		}
		return nil, err
	}
	return doc, nil
}

// fieldsFromDoc extracts the typed fields of a document without enforcing
// required fields. Used to diff against stored versions that may no longer
// validate.
func fieldsFromDoc(def domain.TypeDefinition, doc document.Document) map[string]any {
	if doc == nil {
		return map[string]any{}
	}
	fields := make(map[string]any, len(def.Fields))
	for _, fd := range def.Fields {
		if value, ok := doc[fd.Name]; ok && value != nil {
			fields[fd.Name] = value
		}
	}
	return fields
}

// attachmentsChanged compares the datum's attachment set against the stored
// document's by name and digest. Inline entries and stubs both carry the
// digest, so the comparison works regardless of payload presence.
func attachmentsChanged(raw, prevDoc document.Document) bool {
	ours, theirs := raw.Attachments(), prevDoc.Attachments()
	if len(ours) != len(theirs) {
		return true
	}
	for name, entry := range ours {
		other, ok := theirs[name]
		if !ok || attachmentDigest(entry) != attachmentDigest(other) {
			return true
		}
	}
	return false
}

func attachmentDigest(entry any) string {
	m, _ := entry.(map[string]any)
	digest, _ := m[document.AttachmentDigest].(string)
	return digest
}

func fieldMap(d *domain.Datum) map[string]any {
	if d.Fields == nil {
		return map[string]any{}
	}
	return d.Fields
}

func asConflict(err error) (*document.ConflictError, bool) {
	conflict, ok := err.(*document.ConflictError)
	return conflict, ok
}
