// Staff HTTP handlers.
//
// This file exposes the endpoint a tenant admin uses to link a staff
// member's Telegram chat:
//   - POST /staff/{id}/link-code
//
// The returned code is single-use: the staff member sends it to the bot as
// "/start <CODE>" and the inbound processor binds their chat id.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/opsdesk/telegram-bridge/internal/services"
)

// LinkCodeResponse is the JSON envelope for a freshly issued link code.
type LinkCodeResponse struct {
	// Code is the value the staff member sends to the bot.
	Code string `json:"code"`
	// ExpiresAt is the deadline after which the code stops resolving.
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueLinkCode creates a single-use chat link code for a staff member.
//
// Responses:
//   - 201 with the code and its expiry
//   - 400 non-UUID staff id
//   - 401 missing tenant/staff identity headers
//   - 404 staff member not found in the tenant
//   - 500 storage failure
func (h *Handlers) IssueLinkCode(c *gin.Context) {
	targetStaffID := c.Param("id")
	if _, err := uuid.Parse(targetStaffID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "staff id must be a UUID")
		return
	}

	tenant, _, okID := requireIdentity(c)
	if !okID {
		return
	}

	lc, err := h.linkSvc.Issue(c.Request.Context(), tenant, targetStaffID)
	if err != nil {
		if errors.Is(err, services.ErrStaffNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "staff not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeLinkCodeFailed, err.Error())
		return
	}

	ok(c, http.StatusCreated, LinkCodeResponse{Code: lc.Code, ExpiresAt: lc.ExpiresAt})
}
