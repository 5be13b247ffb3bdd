// Handler wiring and identity extraction.
//
// This file declares the service contracts the HTTP layer consumes and the
// Handlers aggregate that binds them to routes. Handlers are transport-thin:
// they validate input, call application services, and translate results into
// HTTP responses.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/opsdesk/telegram-bridge/internal/domain"
	"github.com/opsdesk/telegram-bridge/internal/services"
)

//
// Service contracts (context-aware)
//

// IngestService accepts raw webhook deliveries from the chat platform.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type IngestService interface {
	// Ingest authenticates, deduplicates, and schedules one webhook body for
	// the bot addressed by its public routing id.
	Ingest(ctx context.Context, publicBotID, secret string, body []byte) (services.IngestResult, error)
}

// ComposeService accepts staff-authored outbound messages from the web side.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ComposeService interface {
	// Compose validates and stores a message and queues its delivery.
	Compose(ctx context.Context, tenantID, staffID, conversationID, body string) (*domain.Message, error)
}

// LinkService issues single-use chat link codes for staff members.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type LinkService interface {
	// Issue creates a fresh link code for the staff member.
	Issue(ctx context.Context, tenantID, staffID string) (*domain.LinkCode, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for webhook ingestion, message compose, and
// staff linking. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	ingestSvc  IngestService
	composeSvc ComposeService
	linkSvc    LinkService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(ingestSvc IngestService, composeSvc ComposeService, linkSvc LinkService) *Handlers {
	return &Handlers{ingestSvc: ingestSvc, composeSvc: composeSvc, linkSvc: linkSvc}
}

// tenantID extracts the calling tenant from the Gin context (set by upstream
// middleware) with a fallback to the "X-Tenant-ID" header. Empty means the
// request carries no tenant identity.
func tenantID(c *gin.Context) string {
	if v, ok := c.Get("tenantID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		return strings.TrimSpace(c.GetHeader("X-Tenant-ID"))
	}
	return ""
}

// staffID extracts the acting staff member from the Gin context with a
// fallback to the "X-Staff-ID" header. Empty means anonymous.
func staffID(c *gin.Context) string {
	if v, ok := c.Get("staffID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		return strings.TrimSpace(c.GetHeader("X-Staff-ID"))
	}
	return ""
}

// requireIdentity resolves both identities and writes a 401 when either is
// missing. The staff id is also stashed for the access log and rate limiter.
func requireIdentity(c *gin.Context) (tenant, staff string, ok bool) {
	tenant, staff = tenantID(c), staffID(c)
	if tenant == "" || staff == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "tenant and staff identity required")
		return "", "", false
	}
	c.Set("tenantID", tenant)
	c.Set("staffID", staff)
	return tenant, staff, true
}
