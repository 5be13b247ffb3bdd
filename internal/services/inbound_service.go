// Package services – InboundService
//
// This file implements the inbound update state machine. Every stored raw
// update is classified in a fixed priority order (callback button press,
// staff link command, staff free-text reply, ordinary client message) and
// exactly one branch runs. Archival and staff notification are best-effort
// side effects applied only after the inbound message has been committed;
// their failures are logged and swallowed, never rolled back into the job.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/opsdesk/telegram-bridge/internal/domain"
	"github.com/opsdesk/telegram-bridge/internal/jobs"
	"github.com/opsdesk/telegram-bridge/internal/replies"
	"github.com/opsdesk/telegram-bridge/internal/repo"
	"github.com/opsdesk/telegram-bridge/internal/telegram"
)

// replyCallbackPrefix tags the inline Reply button a staff member presses
// under a notification; the suffix is the conversation id.
const replyCallbackPrefix = "reply:"

// previewMaxRunes caps the message preview shown in staff notifications.
const previewMaxRunes = 200

// Staff-facing texts sent back into Telegram chats.
const (
	textReplyPrompt    = "Введіть текст відповіді одним повідомленням."
	textReplyDenied    = "Немає доступу до цієї розмови."
	textReplyQueued    = "Відповідь поставлено в чергу ✅"
	textPressReply     = "Натисніть «Відповісти» під сповіщенням, щоб обрати розмову."
	textReplyGone      = "Розмову не знайдено. Натисніть «Відповісти» ще раз."
	textEmptyReply     = "Порожнє повідомлення не надіслано. Введіть текст або додайте документ."
	textCodeInvalid    = "Код недійсний або прострочений."
	textChatTaken      = "Цей чат вже привʼязано до іншого співробітника."
	textChatLinked     = "Чат привʼязано. Ви отримуватимете сповіщення про нові повідомлення."
	buttonReply        = "Відповісти"
	buttonOpen         = "Відкрити розмову"
	attachmentsMarker  = "📎 вкладення"
)

// BotClients hands out a transport client for a bot credential. Implemented
// by telegram.Factory.
type BotClients interface {
	Client(token string) telegram.Client
}

// InboundService classifies and applies one inbound update.
type InboundService struct {
	DB         *gorm.DB
	Clients    BotClients
	Replies    *replies.Store
	Dispatcher jobs.Dispatcher

	// BaseURL builds the "open conversation" links in staff notifications.
	BaseURL string
	// ArchiveChatID is the audit channel messages are copied to; zero
	// disables archival.
	ArchiveChatID int64
	// CallTimeout bounds every Telegram call made while processing.
	CallTimeout time.Duration
}

// Process executes one inbound-process job. State is re-derived from the
// stored RawUpdate row, never from the job payload, so replays observe the
// same input.
func (s *InboundService) Process(ctx context.Context, job jobs.InboundProcess) error {
	tr := otel.Tracer("services/InboundService")
	ctx, span := tr.Start(ctx, "Process",
		trace.WithAttributes(
			attribute.String("bot.id", job.BotID),
			attribute.Int64("update.id", job.UpdateID),
		),
	)
	defer span.End()

	raw, err := repo.GetRawUpdate(ctx, s.DB, job.BotID, job.UpdateID)
	if err != nil {
		return fmt.Errorf("inbound: load raw update %d: %w", job.UpdateID, err)
	}
	bot, err := repo.GetBot(ctx, s.DB, job.TenantID, job.BotID)
	if err != nil {
		return fmt.Errorf("inbound: load bot: %w", err)
	}

	var upd tgbotapi.Update
	if err := json.Unmarshal(raw.Payload, &upd); err != nil {
		return fmt.Errorf("inbound: decode update %d: %w", job.UpdateID, err)
	}
	tg := s.Clients.Client(bot.Token)

	// Priority 1: callback button press. From is always set on genuine
	// presses; a payload without it carries no presser to authorize.
	if cb := upd.CallbackQuery; cb != nil && cb.From != nil && strings.HasPrefix(cb.Data, replyCallbackPrefix) {
		return s.handleReplyCallback(ctx, bot, tg, cb)
	}

	msg := upd.Message
	if msg == nil || msg.Chat == nil || msg.From == nil {
		// Edited messages, channel posts and other update shapes carry no
		// work for the bridge.
		return nil
	}

	// Priority 2: staff link command.
	if code, ok := parseStartCommand(msg.Text); ok {
		return s.handleLinkCommand(ctx, bot, tg, msg.Chat.ID, code)
	}

	// Priority 3: staff free-text reply. Terminal for known staff chats
	// whether or not a reply target is armed.
	staff, err := repo.GetStaffByChatID(ctx, s.DB, bot.TenantID, msg.Chat.ID)
	if err == nil {
		return s.handleStaffMessage(ctx, bot, tg, staff, msg, job.UpdateID)
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("inbound: resolve staff chat: %w", err)
	}

	// Priority 4: ordinary client message.
	return s.handleClientMessage(ctx, bot, tg, msg, job.UpdateID)
}

// parseStartCommand extracts the link code from "/start <CODE>".
func parseStartCommand(text string) (string, bool) {
	const prefix = "/start "
	if !strings.HasPrefix(text, prefix) {
		return "", false
	}
	code := strings.ToUpper(strings.TrimSpace(text[len(prefix):]))
	if code == "" {
		return "", false
	}
	return code, true
}

// handleReplyCallback arms the ActiveReply state for an authorized staff
// member. No domain records are created on this path; an unauthorized press
// resolves as a user-facing denial, not an error.
func (s *InboundService) handleReplyCallback(ctx context.Context, bot *domain.TenantBot, tg telegram.Client, cb *tgbotapi.CallbackQuery) error {
	conversationID := strings.TrimPrefix(cb.Data, replyCallbackPrefix)
	presserChatID := cb.From.ID

	allowed, err := s.callbackAllowed(ctx, bot.TenantID, presserChatID, conversationID)
	if err != nil {
		return fmt.Errorf("inbound: authorize callback: %w", err)
	}
	if !allowed {
		s.answerBestEffort(ctx, tg, cb.ID, textReplyDenied)
		return nil
	}

	s.Replies.Set(presserChatID, conversationID)
	if err := s.answer(ctx, tg, cb.ID, ""); err != nil {
		return fmt.Errorf("inbound: answer callback: %w", err)
	}
	if _, err := s.sendText(ctx, tg, presserChatID, textReplyPrompt, nil); err != nil {
		return fmt.Errorf("inbound: send reply prompt: %w", err)
	}
	return nil
}

// callbackAllowed reports whether the presser is a staff member with access
// to the conversation's client: assigned to the conversation, the client's
// primary staff, or listed as a client accountant.
func (s *InboundService) callbackAllowed(ctx context.Context, tenantID string, presserChatID int64, conversationID string) (bool, error) {
	staff, err := repo.GetStaffByChatID(ctx, s.DB, tenantID, presserChatID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	conv, err := repo.GetConversation(ctx, s.DB, tenantID, conversationID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if conv.AssignedStaffID != nil && *conv.AssignedStaffID == staff.ID {
		return true, nil
	}
	contact, err := repo.GetContact(ctx, s.DB, conv.ContactID)
	if err != nil {
		return false, err
	}
	if contact.ClientID == nil {
		return false, nil
	}
	client, err := repo.GetClient(ctx, s.DB, *contact.ClientID)
	if err != nil {
		return false, err
	}
	if client.PrimaryStaffID != nil && *client.PrimaryStaffID == staff.ID {
		return true, nil
	}
	return repo.IsClientAccountant(ctx, s.DB, client.ID, staff.ID)
}

// handleLinkCommand resolves a pending link code and binds the chat to the
// staff profile. Codes are single-use: consumption is the winner-takes-all
// gate, so a redelivered /start cannot bind twice.
func (s *InboundService) handleLinkCommand(ctx context.Context, bot *domain.TenantBot, tg telegram.Client, chatID int64, code string) error {
	now := time.Now().UTC()

	lc, err := repo.ResolveLinkCode(ctx, s.DB, bot.TenantID, code, now)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			_, serr := s.sendText(ctx, tg, chatID, textCodeInvalid, nil)
			return serr
		}
		return fmt.Errorf("inbound: resolve link code: %w", err)
	}

	existing, err := repo.GetStaffByChatID(ctx, s.DB, bot.TenantID, chatID)
	if err == nil && existing.ID != lc.StaffID {
		_, serr := s.sendText(ctx, tg, chatID, textChatTaken, nil)
		return serr
	}
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("inbound: check chat binding: %w", err)
	}

	if err := repo.ConsumeLinkCode(ctx, s.DB, lc.ID, now); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Lost the race to a concurrent redelivery.
			_, serr := s.sendText(ctx, tg, chatID, textCodeInvalid, nil)
			return serr
		}
		return fmt.Errorf("inbound: consume link code: %w", err)
	}
	if err := repo.BindStaffChat(ctx, s.DB, lc.StaffID, chatID); err != nil {
		return fmt.Errorf("inbound: bind staff chat: %w", err)
	}
	if _, err := s.sendText(ctx, tg, chatID, textChatLinked, nil); err != nil {
		return fmt.Errorf("inbound: confirm link: %w", err)
	}
	return nil
}

// handleStaffMessage treats a known staff member's free text as an
// outbound reply when an ActiveReply target is armed, and instructs them to
// press Reply otherwise. Either way this branch is terminal for the update.
func (s *InboundService) handleStaffMessage(ctx context.Context, bot *domain.TenantBot, tg telegram.Client, staff *domain.Staff, msg *tgbotapi.Message, updateID int64) error {
	// A redelivered job whose first run committed the reply must pick up
	// where it left off, even when the armed reply target has since been
	// cleared or expired.
	if existing, err := repo.GetMessageBySourceUpdate(ctx, s.DB, bot.ID, updateID); err == nil {
		return s.finishStaffReply(ctx, bot, tg, msg.Chat.ID, existing)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("inbound: check replayed reply: %w", err)
	}

	conversationID, ok := s.Replies.Get(msg.Chat.ID)
	if !ok {
		_, err := s.sendText(ctx, tg, msg.Chat.ID, textPressReply, nil)
		return err
	}

	body := strings.TrimSpace(msg.Text)
	if body == "" {
		body = strings.TrimSpace(msg.Caption)
	}
	if body == "" && msg.Document == nil {
		_, err := s.sendText(ctx, tg, msg.Chat.ID, textEmptyReply, nil)
		return err
	}

	conv, err := repo.GetConversation(ctx, s.DB, bot.TenantID, conversationID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.Replies.Clear(msg.Chat.ID)
			_, serr := s.sendText(ctx, tg, msg.Chat.ID, textReplyGone, nil)
			return serr
		}
		return fmt.Errorf("inbound: load reply conversation: %w", err)
	}

	var reply *domain.Message
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.CreateMessage(ctx, tx, repo.NewMessage{
			TenantID:       bot.TenantID,
			ConversationID: conv.ID,
			Direction:      domain.DirectionOut,
			Source:         domain.SourceInternal,
			Body:           body,
			Status:         domain.StatusQueued,
			StaffID:        &staff.ID,
			SourceUpdateID: &updateID,
		})
		if err != nil {
			return err
		}
		reply = m
		// Staff may forward exactly one document with the reply.
		if d := msg.Document; d != nil {
			_, err := repo.CreateAttachment(ctx, tx, repo.NewAttachment{
				TenantID:   bot.TenantID,
				MessageID:  m.ID,
				FileID:     d.FileID,
				StorageKey: storageKeyFor(conv.ID),
				FileName:   d.FileName,
				MimeType:   d.MimeType,
				FileSize:   int64(d.FileSize),
			})
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("inbound: persist staff reply: %w", err)
	}

	return s.finishStaffReply(ctx, bot, tg, msg.Chat.ID, reply)
}

// finishStaffReply runs the post-commit tail of a staff reply: enqueue
// delivery, disarm the reply target, confirm in the staff chat. Delivery is
// a no-op for already sent messages, so repeating this tail on a replayed
// job cannot double-send.
func (s *InboundService) finishStaffReply(ctx context.Context, bot *domain.TenantBot, tg telegram.Client, staffChatID int64, reply *domain.Message) error {
	if err := s.Dispatcher.EnqueueOutbound(ctx, jobs.OutboundSend{
		TenantID:       bot.TenantID,
		BotID:          bot.ID,
		ConversationID: reply.ConversationID,
		MessageID:      reply.ID,
	}); err != nil {
		return fmt.Errorf("inbound: enqueue outbound: %w", err)
	}

	s.Replies.Clear(staffChatID)
	if _, err := s.sendText(ctx, tg, staffChatID, textReplyQueued, nil); err != nil {
		return fmt.Errorf("inbound: confirm staff reply: %w", err)
	}
	return nil
}

// handleClientMessage persists an ordinary contact message: contact and
// conversation resolution, the message row with its attachments, and the
// atomic unread bump run in one transaction; registration jobs, archival,
// and staff notification follow after commit. A redelivered job finds the
// row its first run committed (keyed by the source update id) and reuses it,
// so the enqueue-and-notify tail can be retried without duplicating the
// message or bumping unread twice.
func (s *InboundService) handleClientMessage(ctx context.Context, bot *domain.TenantBot, tg telegram.Client, msg *tgbotapi.Message, updateID int64) error {
	now := time.Now().UTC()
	body := strings.TrimSpace(msg.Text)
	if body == "" {
		body = strings.TrimSpace(msg.Caption)
	}
	files := extractAttachments(msg)

	var (
		contact *domain.Contact
		conv    *domain.Conversation
		created []domain.Attachment
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		contact, err = repo.UpsertContact(ctx, tx, bot.TenantID, bot.ID, msg.Chat.ID, repo.ContactProfile{
			FirstName: msg.From.FirstName,
			LastName:  msg.From.LastName,
			Username:  msg.From.UserName,
		})
		if err != nil {
			return err
		}
		conv, err = repo.GetOrCreateConversation(ctx, tx, bot.TenantID, bot.ID, contact.ID)
		if err != nil {
			return err
		}
		if existing, err := repo.GetMessageBySourceUpdate(ctx, tx, bot.ID, updateID); err == nil {
			// Replayed job: the message and its unread bump are already
			// committed. Reload the attachments for re-enqueueing.
			created, err = repo.ListAttachments(ctx, tx, existing.ID)
			return err
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		tgMsgID := msg.MessageID
		m, err := repo.CreateMessage(ctx, tx, repo.NewMessage{
			TenantID:          bot.TenantID,
			ConversationID:    conv.ID,
			Direction:         domain.DirectionIn,
			Source:            domain.SourceTelegram,
			Body:              body,
			Status:            domain.StatusReceived,
			TelegramMessageID: &tgMsgID,
			SourceUpdateID:    &updateID,
		})
		if err != nil {
			return err
		}
		for _, f := range files {
			a, err := repo.CreateAttachment(ctx, tx, repo.NewAttachment{
				TenantID:   bot.TenantID,
				MessageID:  m.ID,
				FileID:     f.FileID,
				StorageKey: storageKeyFor(conv.ID),
				FileName:   f.FileName,
				MimeType:   f.MimeType,
				FileSize:   f.FileSize,
				Duration:   f.Duration,
			})
			if err != nil {
				return err
			}
			created = append(created, *a)
		}
		return repo.IncrementUnread(ctx, tx, conv.ID, now)
	})
	if err != nil {
		return fmt.Errorf("inbound: persist client message: %w", err)
	}

	for _, a := range created {
		if err := s.Dispatcher.EnqueueFileRegister(ctx, jobs.FileRegister{
			TenantID:     bot.TenantID,
			BotID:        bot.ID,
			ClientID:     contact.ClientID,
			AttachmentID: a.ID,
			FileID:       a.FileID,
			FileName:     a.FileName,
			MimeType:     a.MimeType,
			FileSize:     a.FileSize,
		}); err != nil {
			return fmt.Errorf("inbound: enqueue file register: %w", err)
		}
	}

	// Everything below is best-effort: the message is already committed and
	// no archival or notification failure may surface from this job.
	s.archiveBestEffort(ctx, tg, msg)
	s.notifyBestEffort(ctx, tg, contact, conv, body, len(created) > 0)
	return nil
}

// archiveBestEffort copies the inbound message into the audit channel.
func (s *InboundService) archiveBestEffort(ctx context.Context, tg telegram.Client, msg *tgbotapi.Message) {
	if s.ArchiveChatID == 0 {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout())
	defer cancel()
	if _, err := tg.CopyMessage(callCtx, s.ArchiveChatID, msg.Chat.ID, msg.MessageID); err != nil {
		log.Warn().Err(err).Int64("chat_id", msg.Chat.ID).Msg("inbound: archive copy failed")
	}
}

// notifyBestEffort pings the responsible staff member's chat with a preview
// and the Reply / open-conversation buttons.
func (s *InboundService) notifyBestEffort(ctx context.Context, tg telegram.Client, contact *domain.Contact, conv *domain.Conversation, body string, hasAttachments bool) {
	staffChatID, ok := s.notificationTarget(ctx, contact, conv)
	if !ok {
		return
	}

	preview := body
	if preview == "" && hasAttachments {
		preview = attachmentsMarker
	} else if hasAttachments {
		preview += "\n" + attachmentsMarker
	}
	text := contact.DisplayName() + ": " + clipRunes(preview, previewMaxRunes)

	opts := &telegram.SendOptions{Buttons: []telegram.Button{
		{Text: buttonReply, CallbackData: replyCallbackPrefix + conv.ID},
	}}
	if s.BaseURL != "" {
		opts.Buttons = append(opts.Buttons, telegram.Button{
			Text: buttonOpen,
			URL:  strings.TrimRight(s.BaseURL, "/") + "/conversations/" + conv.ID,
		})
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout())
	defer cancel()
	if _, err := tg.SendText(callCtx, staffChatID, text, opts); err != nil {
		log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("inbound: staff notification failed")
	}
}

// notificationTarget picks the assigned staff member, falling back to the
// client's primary staff, and returns their bound chat id.
func (s *InboundService) notificationTarget(ctx context.Context, contact *domain.Contact, conv *domain.Conversation) (int64, bool) {
	staffID := ""
	if conv.AssignedStaffID != nil {
		staffID = *conv.AssignedStaffID
	} else if contact.ClientID != nil {
		client, err := repo.GetClient(ctx, s.DB, *contact.ClientID)
		if err != nil {
			log.Warn().Err(err).Str("client_id", *contact.ClientID).Msg("inbound: notification client lookup failed")
			return 0, false
		}
		if client.PrimaryStaffID != nil {
			staffID = *client.PrimaryStaffID
		}
	}
	if staffID == "" {
		return 0, false
	}
	staff, err := repo.GetStaff(ctx, s.DB, conv.TenantID, staffID)
	if err != nil {
		log.Warn().Err(err).Str("staff_id", staffID).Msg("inbound: notification staff lookup failed")
		return 0, false
	}
	if staff.ChatID == nil {
		return 0, false
	}
	return *staff.ChatID, true
}

// sendText wraps the transport call with the bounded per-call timeout.
func (s *InboundService) sendText(ctx context.Context, tg telegram.Client, chatID int64, text string, opts *telegram.SendOptions) (int, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout())
	defer cancel()
	return tg.SendText(callCtx, chatID, text, opts)
}

// answer acknowledges a callback press.
func (s *InboundService) answer(ctx context.Context, tg telegram.Client, callbackID, text string) error {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout())
	defer cancel()
	return tg.AnswerCallback(callCtx, callbackID, text)
}

// answerBestEffort acknowledges a denied press; a transport failure here
// only loses the toast, so it is logged and swallowed.
func (s *InboundService) answerBestEffort(ctx context.Context, tg telegram.Client, callbackID, text string) {
	if err := s.answer(ctx, tg, callbackID, text); err != nil {
		log.Warn().Err(err).Msg("inbound: callback denial failed")
	}
}

func (s *InboundService) callTimeout() time.Duration {
	if s.CallTimeout > 0 {
		return s.CallTimeout
	}
	return 10 * time.Second
}

// storageKeyFor mints the placeholder logical storage key an attachment is
// scoped under. It is an access-control key, never a byte location.
func storageKeyFor(conversationID string) string {
	return "chat/" + conversationID + "/" + uuid.NewString()
}

// clipRunes truncates s to at most n runes, appending an ellipsis when
// truncation occurs.
func clipRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
