// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for TenantBot.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/opsdesk/telegram-bridge/internal/domain"
)

// GetBotByPublicID fetches a bot by its public routing identifier.
// Returns ErrNotFound when the bot does not exist.
func GetBotByPublicID(ctx context.Context, db *gorm.DB, publicID string) (*domain.TenantBot, error) {
	var bot domain.TenantBot
	if err := db.WithContext(ctx).Where("public_id = ?", publicID).First(&bot).Error; err != nil {
		return nil, notFound(err)
	}
	return &bot, nil
}

// GetBot fetches a bot by primary key within a tenant.
func GetBot(ctx context.Context, db *gorm.DB, tenantID, id string) (*domain.TenantBot, error) {
	var bot domain.TenantBot
	err := db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&bot).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &bot, nil
}
