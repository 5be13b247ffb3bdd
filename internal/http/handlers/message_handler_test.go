package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/opsdesk/telegram-bridge/internal/domain"
	"github.com/opsdesk/telegram-bridge/internal/services"
)

// fakeCompose records the call and returns a canned message or error.
type fakeCompose struct {
	err    error
	tenant string
	staff  string
	conv   string
	body   string
}

func (f *fakeCompose) Compose(_ context.Context, tenantID, staffID, conversationID, body string) (*domain.Message, error) {
	f.tenant, f.staff, f.conv, f.body = tenantID, staffID, conversationID, body
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Message{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		ConversationID: conversationID,
		Direction:      domain.DirectionOut,
		Source:         domain.SourceInternal,
		Body:           body,
		Status:         domain.StatusQueued,
		StaffID:        &staffID,
	}, nil
}

func newMessageRouter(svc ComposeService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := New(nil, svc, nil)
	r.POST("/conversations/:id/messages", h.PostMessage)
	return r
}

func postMessage(r *gin.Engine, convID, body string, withIdentity bool) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/conversations/"+convID+"/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if withIdentity {
		req.Header.Set("X-Tenant-ID", "tenant-1")
		req.Header.Set("X-Staff-ID", "staff-1")
	}
	r.ServeHTTP(w, req)
	return w
}

func TestPostMessage_Created(t *testing.T) {
	svc := &fakeCompose{}
	r := newMessageRouter(svc)
	convID := uuid.NewString()

	w := postMessage(r, convID, `{"content": "Рахунок надіслано.\r\n\r\n\r\n\r\nДякую!"}`, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp PostMessageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Message == nil || resp.Message.Status != domain.StatusQueued {
		t.Fatalf("message = %+v", resp.Message)
	}

	if svc.tenant != "tenant-1" || svc.staff != "staff-1" || svc.conv != convID {
		t.Fatalf("service got %q/%q/%q", svc.tenant, svc.staff, svc.conv)
	}
	// CRLF normalized, blank-line runs collapsed to a paragraph break.
	if svc.body != "Рахунок надіслано.\n\nДякую!" {
		t.Fatalf("sanitized body = %q", svc.body)
	}
}

func TestPostMessage_Validation(t *testing.T) {
	convID := uuid.NewString()

	tests := []struct {
		name       string
		convID     string
		body       string
		identity   bool
		wantStatus int
	}{
		{"missing identity", convID, `{"content": "привіт"}`, false, http.StatusUnauthorized},
		{"bad conversation id", "not-a-uuid", `{"content": "привіт"}`, true, http.StatusBadRequest},
		{"invalid json", convID, `{`, true, http.StatusBadRequest},
		{"missing content", convID, `{}`, true, http.StatusBadRequest},
		{"whitespace content", convID, `{"content": "  \n\n  "}`, true, http.StatusBadRequest},
		{"oversized content", convID, `{"content": "` + strings.Repeat("а", maxComposeRunes+1) + `"}`, true, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeCompose{}
			r := newMessageRouter(svc)
			w := postMessage(r, tc.convID, tc.body, tc.identity)
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tc.wantStatus, w.Body.String())
			}
			if svc.conv != "" {
				t.Fatal("service must not be called on validation failure")
			}
		})
	}
}

func TestPostMessage_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"conversation gone", services.ErrConversationNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"staff gone", services.ErrStaffNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"empty after service trim", services.ErrEmptyMessage, http.StatusBadRequest, ErrCodeBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newMessageRouter(&fakeCompose{err: tc.err})
			w := postMessage(r, uuid.NewString(), `{"content": "привіт"}`, true)
			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("json: %v", err)
			}
			if resp.Code != tc.wantCode {
				t.Fatalf("code = %q, want %q", resp.Code, tc.wantCode)
			}
		})
	}
}

func TestSanitizeContent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"привіт", "привіт"},
		{"  привіт  ", "привіт"},
		{"a\r\nb\rc", "a\nb\nc"},
		{"a\n\n\n\n\nb", "a\n\nb"},
		{"\n\n\n", ""},
	}
	for _, tc := range tests {
		if got := sanitizeContent(tc.in); got != tc.want {
			t.Errorf("sanitizeContent(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
