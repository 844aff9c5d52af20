package core

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"stockledger/internal/blob"
	"stockledger/pkg/domain"
)

// attachmentKey maps one datum attachment to its archive key.
func attachmentKey(d *domain.Datum, name string) string {
	return fmt.Sprintf("%s/%s/%s", d.Type, d.ID, name)
}

// ArchiveDatumAttachments copies every attachment of the datum into the blob
// archive under <type>/<id>/<name>. Re-archiving overwrites earlier copies.
func (s *Service) ArchiveDatumAttachments(ctx context.Context, d *domain.Datum) ([]blob.Info, error) {
	if s.blobs == nil {
		return nil, fmt.Errorf("no blob store configured")
	}
	var out []blob.Info
	err := s.observe(ctx, "archive_attachments", func(ctx context.Context) error {
		infos, err := s.GetAllAttachmentInfoFromDatum(ctx, d)
		if err != nil {
			return err
		}
		for _, info := range infos {
			payload, err := s.store.GetAttachment(ctx, d.DocID(), info.Name)
			if err != nil {
				return err
			}
			stored, err := s.blobs.Put(ctx, attachmentKey(d, info.Name), bytes.NewReader(payload.Data), blob.PutOptions{
				ContentType: payload.ContentType,
				Metadata: map[string]string{
					"data_type": d.Type,
					"data_id":   d.ID,
					"digest":    info.Digest,
				},
			})
			if err != nil {
				return err
			}
			out = append(out, stored)
		}
		return nil
	})
	return out, err
}

// ArchivedAttachmentURL returns a time-limited URL for one archived
// attachment. Backends without URL support report blob.ErrUnsupported.
func (s *Service) ArchivedAttachmentURL(ctx context.Context, d *domain.Datum, name string, expiry time.Duration) (string, error) {
	if s.blobs == nil {
		return "", fmt.Errorf("no blob store configured")
	}
	return s.blobs.PresignURL(ctx, attachmentKey(d, name), blob.SignedURLOptions{Method: "GET", Expiry: expiry})
}
