// Package services – IngestService
//
// This file implements webhook ingestion and deduplication. Every inbound
// Telegram webhook call is authenticated against the bot's stored secret,
// validated, persisted verbatim exactly once, and only then scheduled for
// processing. The insert-then-enqueue order is load-bearing: the first
// caller to win the RawUpdate insert is the unique owner of the follow-up
// job, so concurrent redeliveries of the same update can never be processed
// twice.
package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/opsdesk/telegram-bridge/internal/jobs"
	"github.com/opsdesk/telegram-bridge/internal/repo"
)

// IngestResult is the outcome of one webhook call.
type IngestResult int

// Ingest outcomes, in the order the checks run.
const (
	IngestFailed IngestResult = iota
	IngestNotFound
	IngestUnauthorized
	IngestMalformed
	IngestDuplicate
	IngestAccepted
)

// String returns the wire name of the result.
func (r IngestResult) String() string {
	switch r {
	case IngestAccepted:
		return "accepted"
	case IngestDuplicate:
		return "duplicate"
	case IngestUnauthorized:
		return "unauthorized"
	case IngestNotFound:
		return "not-found"
	case IngestMalformed:
		return "malformed"
	default:
		return "failed"
	}
}

// IngestService authenticates, deduplicates, and schedules inbound webhook
// payloads.
type IngestService struct {
	DB         *gorm.DB
	Dispatcher jobs.Dispatcher
}

// updateProbe is the minimal shape a webhook body must carry.
type updateProbe struct {
	UpdateID *int64 `json:"update_id"`
}

// Ingest handles one webhook delivery for the bot addressed by its public
// routing id. The returned error is non-nil only for IngestFailed (storage
// or scheduling trouble); all other outcomes are terminal decisions.
func (s *IngestService) Ingest(ctx context.Context, publicBotID, secret string, body []byte) (IngestResult, error) {
	tr := otel.Tracer("services/IngestService")
	ctx, span := tr.Start(ctx, "Ingest",
		trace.WithAttributes(attribute.String("bot.public_id", publicBotID)),
	)
	defer span.End()

	bot, err := repo.GetBotByPublicID(ctx, s.DB, publicBotID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return IngestNotFound, nil
		}
		return IngestFailed, err
	}
	if !bot.Active {
		return IngestNotFound, nil
	}

	// The secret header is the sole authentication mechanism; the compare
	// must not leak timing information.
	if subtle.ConstantTimeCompare([]byte(secret), []byte(bot.WebhookSecret)) != 1 {
		return IngestUnauthorized, nil
	}

	var probe updateProbe
	if err := json.Unmarshal(body, &probe); err != nil || probe.UpdateID == nil {
		return IngestMalformed, nil
	}
	updateID := *probe.UpdateID

	// Dedup gate. A uniqueness violation means the platform redelivered
	// the update; that is a success for the caller, not an error, and it
	// must produce no further effects.
	if _, err := repo.CreateRawUpdate(ctx, s.DB, bot.TenantID, bot.ID, updateID, body); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return IngestDuplicate, nil
		}
		return IngestFailed, err
	}

	if err := s.Dispatcher.EnqueueInbound(ctx, jobs.InboundProcess{
		TenantID: bot.TenantID,
		BotID:    bot.ID,
		UpdateID: updateID,
		Raw:      body,
	}); err != nil {
		return IngestFailed, err
	}
	return IngestAccepted, nil
}
