// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for Contact.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opsdesk/telegram-bridge/internal/domain"
)

// ContactProfile carries the mutable display fields Telegram reports with
// every message. They drift over time, so UpsertContact refreshes them on
// each inbound update.
type ContactProfile struct {
	FirstName string
	LastName  string
	Username  string
}

// UpsertContact resolves the contact for (bot, chat id), creating it on the
// first inbound message and refreshing the display fields on every later
// one. The ClientID link is intentionally never written here: once the
// presentation layer binds a contact to a client, inbound processing only
// ever reads that link.
func UpsertContact(ctx context.Context, db *gorm.DB, tenantID, botID string, chatID int64, p ContactProfile) (*domain.Contact, error) {
	var c domain.Contact
	err := db.WithContext(ctx).
		Where("bot_id = ? AND chat_id = ?", botID, chatID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c = domain.Contact{
			ID:        uuid.NewString(),
			TenantID:  tenantID,
			BotID:     botID,
			ChatID:    chatID,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Username:  p.Username,
			CreatedAt: time.Now().UTC(),
		}
		if cerr := db.WithContext(ctx).Create(&c).Error; cerr != nil {
			// A concurrent first message may have won the insert; re-read.
			if isUniqueViolation(cerr) {
				if rerr := db.WithContext(ctx).
					Where("bot_id = ? AND chat_id = ?", botID, chatID).
					First(&c).Error; rerr == nil {
					return &c, nil
				}
			}
			return nil, cerr
		}
		return &c, nil
	}
	if err != nil {
		return nil, err
	}

	if c.FirstName != p.FirstName || c.LastName != p.LastName || c.Username != p.Username {
		updates := map[string]any{
			"first_name": p.FirstName,
			"last_name":  p.LastName,
			"username":   p.Username,
		}
		if uerr := db.WithContext(ctx).Model(&c).Updates(updates).Error; uerr != nil {
			return nil, uerr
		}
		c.FirstName, c.LastName, c.Username = p.FirstName, p.LastName, p.Username
	}
	return &c, nil
}

// GetContact fetches a contact by primary key.
func GetContact(ctx context.Context, db *gorm.DB, id string) (*domain.Contact, error) {
	var c domain.Contact
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}
