// Package services – OutboundService
//
// Deliver pushes one queued outbound message into Telegram; Compose is the
// API seam the web layer calls to create and queue one. Deliver is written
// to be replayed: a redelivered job observes a non-queued status and returns
// nil without touching the platform.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/opsdesk/telegram-bridge/internal/domain"
	"github.com/opsdesk/telegram-bridge/internal/jobs"
	"github.com/opsdesk/telegram-bridge/internal/repo"
	"github.com/opsdesk/telegram-bridge/internal/storage"
	"github.com/opsdesk/telegram-bridge/internal/telegram"
)

// OutboundService delivers queued messages and accepts newly composed ones.
type OutboundService struct {
	DB         *gorm.DB
	Clients    BotClients
	Dispatcher jobs.Dispatcher

	// Signer mints short-lived download URLs for attachments that carry a
	// storage key but no Telegram file handle. Nil disables the URL path.
	Signer storage.URLSigner
	// PresignTTL bounds the lifetime of minted URLs.
	PresignTTL time.Duration
	// CallTimeout bounds every Telegram call.
	CallTimeout time.Duration
}

// Deliver executes one outbound-send job.
func (s *OutboundService) Deliver(ctx context.Context, job jobs.OutboundSend) error {
	tr := otel.Tracer("services/OutboundService")
	ctx, span := tr.Start(ctx, "Deliver",
		trace.WithAttributes(
			attribute.String("conversation.id", job.ConversationID),
			attribute.String("message.id", job.MessageID),
		),
	)
	defer span.End()

	msg, err := repo.GetMessage(ctx, s.DB, job.MessageID)
	if err != nil {
		return fmt.Errorf("outbound: load message: %w", err)
	}
	if msg.Status != domain.StatusQueued {
		// Already delivered by an earlier attempt; redelivery is a no-op.
		return nil
	}

	conv, err := repo.GetConversation(ctx, s.DB, job.TenantID, job.ConversationID)
	if err != nil {
		return fmt.Errorf("outbound: load conversation: %w", err)
	}

	// The attachment list and the delivery coordinates (contact chat id,
	// bot token) are independent reads; fetch them in parallel.
	var (
		attachments []domain.Attachment
		contact     *domain.Contact
		bot         *domain.TenantBot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		attachments, err = repo.ListAttachments(gctx, s.DB, msg.ID)
		return err
	})
	g.Go(func() error {
		var err error
		contact, err = repo.GetContact(gctx, s.DB, conv.ContactID)
		if err != nil {
			return err
		}
		bot, err = repo.GetBot(gctx, s.DB, job.TenantID, job.BotID)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("outbound: fetch delivery state: %w", err)
	}

	body := strings.TrimSpace(msg.Body)
	if len(attachments) == 0 && body == "" {
		return fmt.Errorf("outbound: message %s: %w", msg.ID, ErrEmptyMessage)
	}

	tg := s.Clients.Client(bot.Token)
	tgMsgID, err := s.push(ctx, tg, contact.ChatID, body, attachments)
	if err != nil {
		return fmt.Errorf("outbound: deliver message %s: %w", msg.ID, err)
	}

	if err := repo.MarkMessageSent(ctx, s.DB, msg.ID, tgMsgID); err != nil {
		return fmt.Errorf("outbound: mark sent: %w", err)
	}
	if err := repo.TouchLastMessage(ctx, s.DB, conv.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("outbound: stamp conversation: %w", err)
	}
	return nil
}

// push performs the platform calls for one message: documents when any are
// attached, with the body as caption on the first, otherwise a plain text
// send. Returns the platform id of the first message produced.
func (s *OutboundService) push(ctx context.Context, tg telegram.Client, chatID int64, body string, attachments []domain.Attachment) (int, error) {
	if len(attachments) == 0 {
		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout())
		defer cancel()
		return tg.SendText(callCtx, chatID, body, nil)
	}

	first := 0
	for i, a := range attachments {
		ref, err := s.fileRef(ctx, a)
		if err != nil {
			return 0, err
		}
		caption := ""
		if i == 0 {
			caption = body
		}
		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout())
		id, err := tg.SendDocument(callCtx, chatID, ref, caption)
		cancel()
		if err != nil {
			return 0, err
		}
		if i == 0 {
			first = id
		}
	}
	return first, nil
}

// fileRef builds the transport file reference for an attachment. A stored
// Telegram file handle is preferred; without one a short-lived download URL
// is minted for the attachment's storage key.
func (s *OutboundService) fileRef(ctx context.Context, a domain.Attachment) (telegram.FileRef, error) {
	if a.FileID != "" {
		return telegram.FileRef{FileID: a.FileID, Name: a.FileName}, nil
	}
	if s.Signer == nil {
		return telegram.FileRef{}, fmt.Errorf("attachment %s has no file handle: %w", a.ID, storage.ErrNotConfigured)
	}
	url, err := s.Signer.PresignGet(ctx, a.StorageKey, s.presignTTL())
	if err != nil {
		return telegram.FileRef{}, fmt.Errorf("presign attachment %s: %w", a.ID, err)
	}
	return telegram.FileRef{URL: url, Name: a.FileName}, nil
}

// Compose validates and stores a staff-authored message from the web side
// and queues its delivery. Validation happens before any write and long
// before any platform call.
func (s *OutboundService) Compose(ctx context.Context, tenantID, staffID, conversationID, body string) (*domain.Message, error) {
	tr := otel.Tracer("services/OutboundService")
	ctx, span := tr.Start(ctx, "Compose",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
	defer span.End()

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyMessage
	}

	conv, err := repo.GetConversation(ctx, s.DB, tenantID, conversationID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("compose: load conversation: %w", err)
	}
	staff, err := repo.GetStaff(ctx, s.DB, tenantID, staffID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrStaffNotFound
		}
		return nil, fmt.Errorf("compose: load staff: %w", err)
	}

	msg, err := repo.CreateMessage(ctx, s.DB, repo.NewMessage{
		TenantID:       tenantID,
		ConversationID: conv.ID,
		Direction:      domain.DirectionOut,
		Source:         domain.SourceInternal,
		Body:           body,
		Status:         domain.StatusQueued,
		StaffID:        &staff.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("compose: store message: %w", err)
	}

	if err := s.Dispatcher.EnqueueOutbound(ctx, jobs.OutboundSend{
		TenantID:       tenantID,
		BotID:          conv.BotID,
		ConversationID: conv.ID,
		MessageID:      msg.ID,
	}); err != nil {
		return nil, fmt.Errorf("compose: enqueue delivery: %w", err)
	}
	return msg, nil
}

func (s *OutboundService) callTimeout() time.Duration {
	if s.CallTimeout > 0 {
		return s.CallTimeout
	}
	return 10 * time.Second
}

func (s *OutboundService) presignTTL() time.Duration {
	if s.PresignTTL > 0 {
		return s.PresignTTL
	}
	return 15 * time.Minute
}
