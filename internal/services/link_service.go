package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/opsdesk/telegram-bridge/internal/domain"
	"github.com/opsdesk/telegram-bridge/internal/repo"
)

// LinkService issues the single-use codes a staff member sends to the bot
// via /start to bind their Telegram chat.
type LinkService struct {
	DB *gorm.DB
	// TTL bounds how long an issued code stays redeemable.
	TTL time.Duration
}

// Issue creates a fresh link code for the staff member. The staff row must
// exist in the tenant; previously issued codes stay valid until they expire
// or the first redemption wins.
func (s *LinkService) Issue(ctx context.Context, tenantID, staffID string) (*domain.LinkCode, error) {
	tr := otel.Tracer("services/LinkService")
	ctx, span := tr.Start(ctx, "Issue",
		trace.WithAttributes(attribute.String("staff.id", staffID)),
	)
	defer span.End()

	if _, err := repo.GetStaff(ctx, s.DB, tenantID, staffID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrStaffNotFound
		}
		return nil, fmt.Errorf("link: load staff: %w", err)
	}
	lc, err := repo.CreateLinkCode(ctx, s.DB, tenantID, staffID, s.ttl())
	if err != nil {
		return nil, fmt.Errorf("link: create code: %w", err)
	}
	return lc, nil
}

func (s *LinkService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return 15 * time.Minute
}
