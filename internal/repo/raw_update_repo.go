// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for RawUpdate,
// the write-once ledger that deduplicates webhook deliveries.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opsdesk/telegram-bridge/internal/domain"
)

// CreateRawUpdate inserts the verbatim webhook payload keyed by
// (bot, update id). A uniqueness violation means the platform redelivered
// the same update and is reported as ErrDuplicate; under concurrent
// redeliveries exactly one caller wins the insert.
func CreateRawUpdate(ctx context.Context, db *gorm.DB, tenantID, botID string, updateID int64, payload []byte) (*domain.RawUpdate, error) {
	rec := &domain.RawUpdate{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		BotID:     botID,
		UpdateID:  updateID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// GetRawUpdate fetches the stored payload for (bot, update id). Inbound
// processing re-derives all state from this row rather than trusting the
// freshness of the job payload.
func GetRawUpdate(ctx context.Context, db *gorm.DB, botID string, updateID int64) (*domain.RawUpdate, error) {
	var rec domain.RawUpdate
	err := db.WithContext(ctx).
		Where("bot_id = ? AND update_id = ?", botID, updateID).
		First(&rec).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}
