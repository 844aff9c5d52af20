package core

import (
	"context"
	"fmt"
	"sort"

	"stockledger/pkg/document"
	"stockledger/pkg/domain"
)

// AttachAttachmentToDatum adds or replaces one named attachment on the
// datum's raw document. The mutation is local; it is persisted by the next
// SaveDatum.
func (s *Service) AttachAttachmentToDatum(d *domain.Datum, name, contentType string, data []byte) error {
	if d == nil {
		return fmt.Errorf("nil datum")
	}
	if name == "" {
		return fmt.Errorf("attachment name required")
	}
	if d.Raw == nil {
		d.Raw = document.Document{}
	}
	attachments, ok := d.Raw[document.FieldAttachments].(map[string]any)
	if !ok {
		attachments = map[string]any{}
		d.Raw[document.FieldAttachments] = attachments
	}
	attachments[name] = document.EncodeAttachment(contentType, data)
	d.UpdatedAt = domain.NowMillis(s.now())
	return nil
}

// RemoveAttachmentFromDatum drops one named attachment from the datum's raw
// document. Removing an absent attachment is a no-op.
func (s *Service) RemoveAttachmentFromDatum(d *domain.Datum, name string) {
	if d == nil || d.Raw == nil {
		return
	}
	attachments, ok := d.Raw[document.FieldAttachments].(map[string]any)
	if !ok {
		return
	}
	if _, present := attachments[name]; !present {
		return
	}
	delete(attachments, name)
	if len(attachments) == 0 {
		delete(d.Raw, document.FieldAttachments)
	}
	d.UpdatedAt = domain.NowMillis(s.now())
}

// GetAttachmentInfoFromDatum returns payload-free metadata for one named
// attachment. When the in-memory datum carries no attachment map (a datum
// built from a stubbed list result), the stored document is consulted.
func (s *Service) GetAttachmentInfoFromDatum(ctx context.Context, d *domain.Datum, name string) (document.AttachmentInfo, error) {
	if d == nil {
		return document.AttachmentInfo{}, fmt.Errorf("nil datum")
	}
	attachments := d.Raw.Attachments()
	if attachments == nil {
		doc, err := s.getDoc(ctx, d.DocID())
		if err != nil {
			return document.AttachmentInfo{}, err
		}
		if doc != nil {
			attachments = doc.Attachments()
		}
	}
	entry, ok := attachments[name]
	if !ok {
		return document.AttachmentInfo{}, &document.NotFoundError{ID: d.DocID() + "/" + name}
	}
	return document.DecodeAttachmentInfo(name, entry)
}

// GetAllAttachmentInfoFromDatum returns metadata for every attachment on the
// datum, ordered by name. Entries that cannot be decoded are skipped.
func (s *Service) GetAllAttachmentInfoFromDatum(ctx context.Context, d *domain.Datum) ([]document.AttachmentInfo, error) {
	if d == nil {
		return []document.AttachmentInfo{}, nil
	}
	attachments := d.Raw.Attachments()
	if attachments == nil {
		doc, err := s.getDoc(ctx, d.DocID())
		if err != nil {
			return nil, err
		}
		if doc != nil {
			attachments = doc.Attachments()
		}
	}
	out := make([]document.AttachmentInfo, 0, len(attachments))
	for name, entry := range attachments {
		info, err := document.DecodeAttachmentInfo(name, entry)
		if err != nil {
			s.log.Warn(ctx, "skipping malformed attachment entry", "doc", d.DocID(), "name", name, "error", err)
			continue
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetAttachmentFromDatum fetches one attachment payload from the store.
func (s *Service) GetAttachmentFromDatum(ctx context.Context, d *domain.Datum, name string) (document.Attachment, error) {
	if d == nil {
		return document.Attachment{}, fmt.Errorf("nil datum")
	}
	var out document.Attachment
	err := s.observe(ctx, "get_attachment", func(ctx context.Context) error {
		var err error
		out, err = s.store.GetAttachment(ctx, d.DocID(), name)
		return err
	})
	return out, err
}
