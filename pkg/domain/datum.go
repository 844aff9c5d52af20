package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"stockledger/pkg/document"
)

// DatumState is the explicit tag discriminating the two datum variants. A
// datum is never classified by probing optional fields.
type DatumState string

const (
	// DatumValid marks a datum whose raw document parsed against its schema.
	DatumValid DatumState = "valid"
	// DatumInvalid marks a datum whose raw document failed to parse; it
	// still carries its id and raw document so callers can render, edit or
	// delete it without crashing.
	DatumInvalid DatumState = "invalid"
)

// Datum is the typed representation of one document. Fields holds the
// schema-typed values for valid datums; Raw always preserves the underlying
// document so store-internal data (attachment metadata, unknown fields)
// round-trips untouched.
type Datum struct {
	State      DatumState        `json:"state"`
	Type       string            `json:"type"`
	ID         string            `json:"id"`
	Rev        string            `json:"rev,omitempty"`
	CreatedAt  int64             `json:"created_at,omitempty"`
	UpdatedAt  int64             `json:"updated_at,omitempty"`
	Deleted    bool              `json:"deleted,omitempty"`
	Fields     map[string]any    `json:"fields,omitempty"`
	Raw        document.Document `json:"raw,omitempty"`
	ParseError string            `json:"parse_error,omitempty"`
}

// Valid reports whether the datum parsed against its schema.
func (d *Datum) Valid() bool { return d != nil && d.State == DatumValid }

// DocID returns the type-prefixed document id of the datum.
func (d *Datum) DocID() string { return DocID(d.Type, d.ID) }

// Field returns one typed field value.
func (d *Datum) Field(name string) (any, bool) {
	v, ok := d.Fields[name]
	return v, ok
}

// StringField returns a field value when it is a non-empty string.
func (d *Datum) StringField(name string) (string, bool) {
	s, ok := d.Fields[name].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// SetField sets one typed field value, allocating the map on first use.
func (d *Datum) SetField(name string, value any) {
	if d.Fields == nil {
		d.Fields = make(map[string]any)
	}
	d.Fields[name] = value
}

// Clone returns a deep copy of the datum.
func (d *Datum) Clone() *Datum {
	if d == nil {
		return nil
	}
	cp := *d
	cp.Fields = cloneFieldMap(d.Fields)
	cp.Raw = d.Raw.Clone()
	return &cp
}

// NewDatum creates a valid, not-yet-persisted datum of the given type with a
// generated id and the type's declared defaults applied.
func NewDatum(def TypeDefinition) *Datum {
	fields := make(map[string]any, len(def.Defaults))
	for k, v := range def.Defaults {
		fields[k] = v
	}
	return &Datum{
		State:  DatumValid,
		Type:   def.Name,
		ID:     uuid.NewString(),
		Fields: fields,
	}
}

// DatumFromDoc parses a raw document against the type definition. A nil doc
// passes through as nil (not-found). Parse failures yield an Invalid datum
// carrying id, raw and the failure reason.
func DatumFromDoc(def TypeDefinition, doc document.Document) *Datum {
	if doc == nil {
		return nil
	}
	_, id, _ := ParseDocID(doc.ID())
	base := &Datum{
		Type:    def.Name,
		ID:      id,
		Rev:     doc.Rev(),
		Deleted: doc.Deleted(),
		Raw:     doc.Clone(),
	}

	fields := make(map[string]any, len(def.Fields))
	for _, fd := range def.Fields {
		value, present := doc[fd.Name]
		if !present || value == nil {
			if fd.Required {
				return invalidDatum(base, fmt.Sprintf("missing required field %q", fd.Name))
			}
			continue
		}
		typed, ok := coerceField(fd.Type, value)
		if !ok {
			return invalidDatum(base, fmt.Sprintf("field %q is not a %s", fd.Name, fd.Type))
		}
		fields[fd.Name] = typed
	}

	base.State = DatumValid
	base.Fields = fields
	base.CreatedAt = millisField(doc, "created_at")
	base.UpdatedAt = millisField(doc, "updated_at")
	return base
}

// DocFromDatum builds the storable document for a datum: the preserved raw
// document with the typed fields merged over it. Typed fields removed from
// the datum are removed from the document as well.
func DocFromDatum(def TypeDefinition, d *Datum) document.Document {
	doc := d.Raw.Clone()
	if doc == nil {
		doc = document.Document{}
	}
	doc[document.FieldID] = d.DocID()
	if d.Rev != "" {
		doc[document.FieldRev] = d.Rev
	} else {
		delete(doc, document.FieldRev)
	}
	doc[document.FieldType] = d.Type
	if d.Deleted {
		doc[document.FieldDeleted] = true
	} else {
		delete(doc, document.FieldDeleted)
	}
	for _, fd := range def.Fields {
		if value, ok := d.Fields[fd.Name]; ok {
			doc[fd.Name] = value
		} else {
			delete(doc, fd.Name)
		}
	}
	if d.CreatedAt != 0 {
		doc["created_at"] = float64(d.CreatedAt)
	}
	if d.UpdatedAt != 0 {
		doc["updated_at"] = float64(d.UpdatedAt)
	}
	return doc
}

func invalidDatum(base *Datum, reason string) *Datum {
	cp := *base
	cp.State = DatumInvalid
	cp.Fields = nil
	cp.ParseError = reason
	return &cp
}

func coerceField(t FieldType, value any) (any, bool) {
	switch t {
	case FieldString:
		s, ok := value.(string)
		return s, ok
	case FieldNumber, FieldTimestamp:
		switch n := value.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		default:
			return nil, false
		}
	case FieldBoolean:
		b, ok := value.(bool)
		return b, ok
	case FieldArray:
		a, ok := value.([]any)
		return a, ok
	case FieldObject:
		m, ok := value.(map[string]any)
		return m, ok
	default:
		return nil, false
	}
}

func millisField(doc document.Document, name string) int64 {
	switch n := doc[name].(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

// NowMillis returns the given instant as epoch milliseconds, the timestamp
// unit used throughout stored documents.
func NowMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func cloneFieldMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
