// Package document defines the contract between the typed inventory core and
// the underlying schemaless document store: raw documents, the selector query
// language, the store interface, and the error taxonomy shared by all backends.
package document

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Reserved document fields managed by the store or the accessor layer.
const (
	FieldID          = "_id"
	FieldRev         = "_rev"
	FieldAttachments = "_attachments"
	// FieldDeleted is a soft tombstone. Documents are never removed at the
	// store level so that replication peers can observe the deletion.
	FieldDeleted = "deleted"
	FieldType    = "type"
)

// Attachment metadata keys used inside the _attachments map.
const (
	AttachmentContentType = "content_type"
	AttachmentData        = "data"
	AttachmentStub        = "stub"
	AttachmentLength      = "length"
	AttachmentDigest      = "digest"
)

// Document is a raw, schemaless record as stored by a backend. Values follow
// JSON conventions: numbers are float64, nested records are map[string]any.
type Document map[string]any

// ID returns the document identifier, or "" when unset.
func (d Document) ID() string {
	s, _ := d[FieldID].(string)
	return s
}

// Rev returns the revision token, or "" for a document never written.
func (d Document) Rev() string {
	s, _ := d[FieldRev].(string)
	return s
}

// Deleted reports whether the soft tombstone flag is set.
func (d Document) Deleted() bool {
	b, _ := d[FieldDeleted].(bool)
	return b
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, nested := range typed {
			out[k] = cloneValue(nested)
		}
		return out
	case Document:
		return map[string]any(typed.Clone())
	case []any:
		out := make([]any, len(typed))
		for i, nested := range typed {
			out[i] = cloneValue(nested)
		}
		return out
	default:
		return v
	}
}

// Attachments returns the _attachments map, or nil when absent.
func (d Document) Attachments() map[string]any {
	m, _ := d[FieldAttachments].(map[string]any)
	return m
}

// AttachmentInfo describes a stored attachment without its payload.
type AttachmentInfo struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Length      int64  `json:"length"`
	Digest      string `json:"digest"`
}

// Attachment carries an attachment payload with its content type.
type Attachment struct {
	ContentType string
	Data        []byte
}

// EncodeAttachment builds the inline attachment entry written into a
// document's _attachments map: base64 payload plus derived metadata.
func EncodeAttachment(contentType string, data []byte) map[string]any {
	sum := md5.Sum(data)
	return map[string]any{
		AttachmentContentType: contentType,
		AttachmentData:        base64.StdEncoding.EncodeToString(data),
		AttachmentLength:      float64(len(data)),
		AttachmentDigest:      "md5-" + base64.StdEncoding.EncodeToString(sum[:]),
	}
}

// DecodeAttachmentInfo extracts payload-free metadata from one entry of an
// _attachments map. It tolerates both stub entries and inline ones.
func DecodeAttachmentInfo(name string, entry any) (AttachmentInfo, error) {
	m, ok := entry.(map[string]any)
	if !ok {
		return AttachmentInfo{}, &ShapeError{Doc: name, Reason: "attachment entry is not an object"}
	}
	info := AttachmentInfo{Name: name}
	info.ContentType, _ = m[AttachmentContentType].(string)
	info.Digest, _ = m[AttachmentDigest].(string)
	switch length := m[AttachmentLength].(type) {
	case float64:
		info.Length = int64(length)
	case int:
		info.Length = int64(length)
	case int64:
		info.Length = length
	}
	if info.Length == 0 {
		if data, ok := m[AttachmentData].(string); ok {
			if raw, err := base64.StdEncoding.DecodeString(data); err == nil {
				info.Length = int64(len(raw))
			}
		}
	}
	return info, nil
}

// NextRev derives the successor revision token for a document. Tokens have the
// shape "<generation>-<random hex>"; the generation increments on every
// accepted write and the suffix makes concurrent histories distinguishable.
func NextRev(current string) string {
	gen := 0
	if current != "" {
		if idx := strings.IndexByte(current, '-'); idx > 0 {
			if n, err := strconv.Atoi(current[:idx]); err == nil {
				gen = n
			}
		}
	}
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%d-%s", gen+1, hex.EncodeToString(b[:]))
}

// RevGeneration parses the generation counter out of a revision token.
func RevGeneration(rev string) int {
	idx := strings.IndexByte(rev, '-')
	if idx <= 0 {
		return 0
	}
	n, err := strconv.Atoi(rev[:idx])
	if err != nil {
		return 0
	}
	return n
}
