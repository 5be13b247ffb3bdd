// Message HTTP handlers.
//
// This file exposes the REST endpoint for staff-composed outbound messages:
//   - POST /conversations/{id}/messages   (store a reply and queue delivery)
//
// Handlers are transport-thin:
//   - validate & normalize inputs (including newline and length constraints)
//   - delegate to application services (ComposeService)
//
// The endpoint never talks to the chat platform itself; delivery happens in
// the outbound-send job the service enqueues.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/opsdesk/telegram-bridge/internal/domain"
	"github.com/opsdesk/telegram-bridge/internal/services"
)

//
// DTOs
//

// PostMessageRequest is the JSON payload for composing an outbound message.
//
// Content is normalized by the handler (line endings and excessive blank
// lines) before being passed to the service layer.
type PostMessageRequest struct {
	// Content is the reply text. It must be non-empty.
	Content string `json:"content" binding:"required,min=1"`
}

// PostMessageResponse is the JSON envelope for a newly queued message.
type PostMessageResponse struct {
	// Message is the stored outbound message in its queued state.
	Message *domain.Message `json:"message"`
}

//
// Helpers
//

// maxComposeRunes caps reply length at the edge; Telegram rejects longer
// message bodies anyway.
const maxComposeRunes = 4096

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes user text for consistent downstream behavior:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two (paragraph separation),
//   - trims surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

//
// Handlers
//

// PostMessage stores a staff reply in the conversation and queues its
// delivery to the contact's Telegram chat.
//
// Responses:
//   - 201 with the queued message
//   - 400 empty or oversized content, non-UUID conversation id
//   - 401 missing tenant/staff identity headers
//   - 404 conversation or staff not found in the tenant
//   - 500 storage or queue failure
func (h *Handlers) PostMessage(c *gin.Context) {
	ctx := c.Request.Context()

	conversationID := c.Param("id")
	if _, err := uuid.Parse(conversationID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	tenant, staff, okID := requireIdentity(c)
	if !okID {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	// Sanitize + early size cap to fail fast at the edge.
	content := sanitizeContent(req.Content)
	if content == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	if utf8.RuneCountInString(content) > maxComposeRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxComposeRunes))
		return
	}

	m, err := h.composeSvc.Compose(ctx, tenant, staff, conversationID, content)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyMessage):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		case errors.Is(err, services.ErrConversationNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
		case errors.Is(err, services.ErrStaffNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "staff not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeComposeFailed, err.Error())
		}
		return
	}

	ok(c, http.StatusCreated, PostMessageResponse{Message: m})
}
