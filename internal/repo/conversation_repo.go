// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for Conversation,
// including the atomic unread-counter update.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opsdesk/telegram-bridge/internal/domain"
)

// GetOrCreateConversation returns the single conversation for
// (bot, contact), creating it lazily on the first inbound message.
func GetOrCreateConversation(ctx context.Context, db *gorm.DB, tenantID, botID, contactID string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := db.WithContext(ctx).
		Where("bot_id = ? AND contact_id = ?", botID, contactID).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		conv = domain.Conversation{
			ID:        uuid.NewString(),
			TenantID:  tenantID,
			BotID:     botID,
			ContactID: contactID,
			Status:    domain.ConversationOpen,
			CreatedAt: time.Now().UTC(),
		}
		if cerr := db.WithContext(ctx).Create(&conv).Error; cerr != nil {
			if isUniqueViolation(cerr) {
				if rerr := db.WithContext(ctx).
					Where("bot_id = ? AND contact_id = ?", botID, contactID).
					First(&conv).Error; rerr == nil {
					return &conv, nil
				}
			}
			return nil, cerr
		}
		return &conv, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetConversation fetches a conversation by primary key within a tenant.
func GetConversation(ctx context.Context, db *gorm.DB, tenantID, id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&conv).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &conv, nil
}

// IncrementUnread bumps the conversation's unread counter and stamps the
// last-activity time in one server-side UPDATE. The increment happens inside
// the database, so concurrent inbound messages to the same conversation
// never lose a count.
func IncrementUnread(ctx context.Context, db *gorm.DB, conversationID string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]any{
			"unread_count":    gorm.Expr("unread_count + ?", 1),
			"last_message_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastMessage stamps the conversation's last-activity time without
// touching the unread counter (staff-side sends must not affect it).
func TouchLastMessage(ctx context.Context, db *gorm.DB, conversationID string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", conversationID).
		Update("last_message_at", at).Error
}
