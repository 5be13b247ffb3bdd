// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for Staff and
// LinkCode (the single-use chat-linking codes).
package repo

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opsdesk/telegram-bridge/internal/domain"
)

// GetStaff fetches a staff profile by primary key within a tenant.
func GetStaff(ctx context.Context, db *gorm.DB, tenantID, id string) (*domain.Staff, error) {
	var s domain.Staff
	err := db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&s).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// GetStaffByChatID resolves the staff member bound to a Telegram chat, or
// ErrNotFound when the chat belongs to no staff in the tenant.
func GetStaffByChatID(ctx context.Context, db *gorm.DB, tenantID string, chatID int64) (*domain.Staff, error) {
	var s domain.Staff
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND chat_id = ?", tenantID, chatID).
		First(&s).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// BindStaffChat binds a Telegram chat to the staff profile.
func BindStaffChat(ctx context.Context, db *gorm.DB, staffID string, chatID int64) error {
	return db.WithContext(ctx).
		Model(&domain.Staff{}).
		Where("id = ?", staffID).
		Update("chat_id", chatID).Error
}

// linkCodeAlphabet deliberately omits easily confused characters (0/O, 1/I).
const linkCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const linkCodeLength = 6

// CreateLinkCode issues a fresh single-use link code for a staff member.
func CreateLinkCode(ctx context.Context, db *gorm.DB, tenantID, staffID string, ttl time.Duration) (*domain.LinkCode, error) {
	code, err := randomLinkCode()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	rec := &domain.LinkCode{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		StaffID:   staffID,
		Code:      code,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// ResolveLinkCode returns the pending (unused, unexpired) link code for the
// tenant, or ErrNotFound.
func ResolveLinkCode(ctx context.Context, db *gorm.DB, tenantID, code string, now time.Time) (*domain.LinkCode, error) {
	var rec domain.LinkCode
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND code = ? AND used_at IS NULL AND expires_at > ?", tenantID, code, now).
		First(&rec).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// ConsumeLinkCode invalidates a code after a successful bind. The used_at
// IS NULL guard makes consumption single-winner under concurrent /start
// redeliveries.
func ConsumeLinkCode(ctx context.Context, db *gorm.DB, id string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.LinkCode{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// randomLinkCode draws linkCodeLength characters from linkCodeAlphabet
// using crypto/rand.
func randomLinkCode() (string, error) {
	buf := make([]byte, linkCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.New("link code entropy unavailable")
	}
	out := make([]byte, linkCodeLength)
	for i, b := range buf {
		out[i] = linkCodeAlphabet[int(b)%len(linkCodeAlphabet)]
	}
	return string(out), nil
}
