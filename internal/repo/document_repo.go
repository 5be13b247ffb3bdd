// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for Document.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opsdesk/telegram-bridge/internal/domain"
)

// GetDocumentByAttachment returns the document mirrored from the given
// attachment, or ErrNotFound. File registration checks this before insert
// so re-run jobs are no-ops.
func GetDocumentByAttachment(ctx context.Context, db *gorm.DB, attachmentID string) (*domain.Document, error) {
	var d domain.Document
	err := db.WithContext(ctx).
		Where("attachment_id = ?", attachmentID).
		First(&d).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

// CreateDocument mirrors an attachment into the document registry. The
// unique index on attachment_id backs up the lookup-before-insert guard;
// a concurrent duplicate insert surfaces as ErrDuplicate.
func CreateDocument(ctx context.Context, db *gorm.DB, tenantID, clientID, attachmentID, name, mimeType string, fileSize int64) (*domain.Document, error) {
	d := &domain.Document{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		ClientID:     clientID,
		AttachmentID: attachmentID,
		Name:         name,
		MimeType:     mimeType,
		FileSize:     fileSize,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return d, nil
}

// GetClient fetches a client by primary key.
func GetClient(ctx context.Context, db *gorm.DB, id string) (*domain.Client, error) {
	var c domain.Client
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// IsClientAccountant reports whether the staff member is listed as an
// accountant for the client.
func IsClientAccountant(ctx context.Context, db *gorm.DB, clientID, staffID string) (bool, error) {
	var rec domain.ClientAccountant
	err := db.WithContext(ctx).
		Where("client_id = ? AND staff_id = ?", clientID, staffID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
