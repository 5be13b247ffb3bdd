// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for Message and
// Attachment.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opsdesk/telegram-bridge/internal/domain"
)

// NewMessage describes a message row to insert.
type NewMessage struct {
	TenantID          string
	ConversationID    string
	Direction         string
	Source            string
	Body              string
	Status            string
	StaffID           *string
	TelegramMessageID *int
	SourceUpdateID    *int64
}

// CreateMessage inserts a new message row.
func CreateMessage(ctx context.Context, db *gorm.DB, in NewMessage) (*domain.Message, error) {
	m := &domain.Message{
		ID:                uuid.NewString(),
		TenantID:          in.TenantID,
		ConversationID:    in.ConversationID,
		Direction:         in.Direction,
		Source:            in.Source,
		Body:              in.Body,
		Status:            in.Status,
		StaffID:           in.StaffID,
		TelegramMessageID: in.TelegramMessageID,
		SourceUpdateID:    in.SourceUpdateID,
		CreatedAt:         time.Now().UTC(),
	}
	return m, db.WithContext(ctx).Create(m).Error
}

// GetMessageBySourceUpdate finds the message a given inbound update already
// produced for one of the bot's conversations, if any. Update ids are scoped
// per bot on the platform side, so the pair is unique; the inbound processor
// uses this to reuse the committed row when a job is redelivered.
func GetMessageBySourceUpdate(ctx context.Context, db *gorm.DB, botID string, updateID int64) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("conversations.bot_id = ? AND messages.source_update_id = ?", botID, updateID).
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// MarkMessageSent records the platform-assigned message id and flips the
// delivery status from queued to sent. The WHERE clause on status makes the
// transition safe under replayed jobs.
func MarkMessageSent(ctx context.Context, db *gorm.DB, id string, telegramMessageID int) error {
	return db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ? AND status = ?", id, domain.StatusQueued).
		Updates(map[string]any{
			"status":              domain.StatusSent,
			"telegram_message_id": telegramMessageID,
		}).Error
}

// NewAttachment describes an attachment row to insert.
type NewAttachment struct {
	TenantID   string
	MessageID  string
	FileID     string
	StorageKey string
	FileName   string
	MimeType   string
	FileSize   int64
	Duration   *int
}

// CreateAttachment inserts a new attachment row.
func CreateAttachment(ctx context.Context, db *gorm.DB, in NewAttachment) (*domain.Attachment, error) {
	a := &domain.Attachment{
		ID:         uuid.NewString(),
		TenantID:   in.TenantID,
		MessageID:  in.MessageID,
		FileID:     in.FileID,
		StorageKey: in.StorageKey,
		FileName:   in.FileName,
		MimeType:   in.MimeType,
		FileSize:   in.FileSize,
		Duration:   in.Duration,
		CreatedAt:  time.Now().UTC(),
	}
	return a, db.WithContext(ctx).Create(a).Error
}

// GetAttachment fetches an attachment by ID.
func GetAttachment(ctx context.Context, db *gorm.DB, id string) (*domain.Attachment, error) {
	var a domain.Attachment
	if err := db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// ListAttachments returns a message's attachments in insertion order.
func ListAttachments(ctx context.Context, db *gorm.DB, messageID string) ([]domain.Attachment, error) {
	var out []domain.Attachment
	err := db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// UpdateAttachmentStorageKey sets the attachment's logical storage key.
func UpdateAttachmentStorageKey(ctx context.Context, db *gorm.DB, id, key string) error {
	return db.WithContext(ctx).
		Model(&domain.Attachment{}).
		Where("id = ?", id).
		Update("storage_key", key).Error
}
