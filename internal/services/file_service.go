// Package services – FileService
//
// Register sorts one stored attachment into the document workflow: chat
// media stays chat-scoped under a media storage key, while real documents
// from linked clients become Document records. The existing-Document check
// and the unique attachment index make redelivered jobs no-ops.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/opsdesk/telegram-bridge/internal/jobs"
	"github.com/opsdesk/telegram-bridge/internal/repo"
)

// FileService registers inbound attachments with the document store.
type FileService struct {
	DB *gorm.DB
}

// Register executes one file-register job.
func (s *FileService) Register(ctx context.Context, job jobs.FileRegister) error {
	tr := otel.Tracer("services/FileService")
	ctx, span := tr.Start(ctx, "Register",
		trace.WithAttributes(attribute.String("attachment.id", job.AttachmentID)),
	)
	defer span.End()

	// A Document already produced by an earlier delivery ends the job.
	if _, err := repo.GetDocumentByAttachment(ctx, s.DB, job.AttachmentID); err == nil {
		return nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("file: check existing document: %w", err)
	}

	// Chat media (voice notes, stickers, photos) never becomes a document;
	// it is re-keyed into the media area and left chat-scoped.
	if IsMedia(job.MimeType, job.FileName) {
		key := "media/" + job.TenantID + "/" + uuid.NewString()
		if err := repo.UpdateAttachmentStorageKey(ctx, s.DB, job.AttachmentID, key); err != nil {
			return fmt.Errorf("file: rekey media attachment: %w", err)
		}
		return nil
	}

	// Documents only exist for contacts linked to a CRM client.
	if job.ClientID == nil {
		log.Debug().
			Str("attachment_id", job.AttachmentID).
			Msg("file: contact not linked to a client, skipping document")
		return nil
	}

	_, err := repo.CreateDocument(ctx, s.DB, job.TenantID, *job.ClientID, job.AttachmentID, job.FileName, job.MimeType, job.FileSize)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// Lost a race with a concurrent redelivery; the document exists.
			return nil
		}
		return fmt.Errorf("file: create document: %w", err)
	}
	return nil
}
