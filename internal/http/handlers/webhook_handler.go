// Webhook HTTP handler.
//
// This file exposes the single endpoint the chat platform delivers updates
// to:
//   - POST /webhook/telegram/{botID}
//
// The handler is transport-thin: it reads the raw body and the platform
// secret header, delegates to the ingest service, and maps the outcome onto
// an HTTP status. Duplicates answer 200 like first deliveries so the
// platform never retries an update it already handed over.
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opsdesk/telegram-bridge/internal/services"
)

// headerWebhookSecret carries the per-bot secret Telegram echoes back on
// every delivery when the webhook was registered with one.
const headerWebhookSecret = "X-Telegram-Bot-Api-Secret-Token"

// TelegramWebhook accepts one update delivery.
//
// Responses:
//   - 200 accepted or duplicate (body {"status": ...})
//   - 400 body is not a platform update
//   - 403 secret mismatch
//   - 404 unknown or inactive bot
//   - 500 storage or queue failure (platform retries)
func (h *Handlers) TelegramWebhook(c *gin.Context) {
	botID := c.Param("botID")
	secret := c.GetHeader(headerWebhookSecret)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable request body")
		return
	}

	res, err := h.ingestSvc.Ingest(c.Request.Context(), botID, secret, body)
	switch res {
	case services.IngestAccepted, services.IngestDuplicate:
		ok(c, http.StatusOK, gin.H{"status": res.String()})
	case services.IngestMalformed:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "not a telegram update")
	case services.IngestUnauthorized:
		fail(c, http.StatusForbidden, ErrCodeForbidden, "webhook secret mismatch")
	case services.IngestNotFound:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "bot not found")
	default:
		msg := "ingest failed"
		if err != nil {
			msg = err.Error()
		}
		fail(c, http.StatusInternalServerError, ErrCodeIngestFailed, msg)
	}
}
