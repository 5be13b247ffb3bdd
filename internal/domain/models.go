// Package domain defines the persistence models for the Telegram bridge:
// tenant bots, contacts, conversations, messages, attachments, documents,
// and the raw-update dedup ledger. These types are mapped with GORM and
// form the core data layer of the integration.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Message direction, source, and delivery status values. Messages are
// immutable once received or sent; only Status and TelegramMessageID are
// written after creation (queued -> sent).
const (
	DirectionIn  = "in"
	DirectionOut = "out"

	SourceTelegram = "telegram"
	SourceInternal = "internal"

	StatusReceived = "received"
	StatusQueued   = "queued"
	StatusSent     = "sent"
)

// ConversationOpen is the default conversation status. Other statuses are
// owned by the presentation layer and opaque to the bridge.
const ConversationOpen = "open"

// TenantBot is one Telegram bot credential belonging to a tenant.
//
// Fields:
//   - PublicID: opaque routing identifier used in the webhook path, so the
//     bot token never appears in URLs.
//   - WebhookSecret: compared (constant-time) against the secret-token
//     header Telegram presents on every webhook call.
//   - Active: bots are deactivated rather than deleted; an inactive bot's
//     webhook answers 404.
type TenantBot struct {
	ID            string         `json:"id"             gorm:"type:char(36);primaryKey"`
	TenantID      string         `json:"tenant_id"      gorm:"type:char(36);not null;index"`
	PublicID      string         `json:"public_id"      gorm:"type:char(36);not null;uniqueIndex"`
	Token         string         `json:"-"              gorm:"type:varchar(128);not null"`
	WebhookSecret string         `json:"-"              gorm:"type:varchar(128);not null"`
	Name          string         `json:"name"           gorm:"type:varchar(255);not null"`
	Active        bool           `json:"active"         gorm:"not null;default:true"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-"              gorm:"index"`
}

// TableName returns the database table name for TenantBot.
func (TenantBot) TableName() string { return "tenant_bots" }

// Staff is a tenant staff profile. ChatID is the staff member's personal
// Telegram chat, bound once via a single-use link code; it stays nil until
// the staff member completes /start <CODE>.
type Staff struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	TenantID  string         `json:"tenant_id"  gorm:"type:char(36);not null;index"`
	Name      string         `json:"name"       gorm:"type:varchar(255);not null"`
	ChatID    *int64         `json:"chat_id,omitempty" gorm:"index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Staff.
func (Staff) TableName() string { return "staff" }

// Client is a CRM client record. The bridge never creates clients; it only
// reads the link for authorization and document registration.
type Client struct {
	ID             string         `json:"id"               gorm:"type:char(36);primaryKey"`
	TenantID       string         `json:"tenant_id"        gorm:"type:char(36);not null;index"`
	Name           string         `json:"name"             gorm:"type:varchar(255);not null"`
	PrimaryStaffID *string        `json:"primary_staff_id" gorm:"type:char(36)"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-"                gorm:"index"`
}

// TableName returns the database table name for Client.
func (Client) TableName() string { return "clients" }

// ClientAccountant links a staff member to a client they service. A staff
// member listed here may reply in any conversation of that client.
type ClientAccountant struct {
	ClientID  string    `json:"client_id" gorm:"type:char(36);primaryKey"`
	StaffID   string    `json:"staff_id"  gorm:"type:char(36);primaryKey"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for ClientAccountant.
func (ClientAccountant) TableName() string { return "client_accountants" }

// Contact is one external Telegram identity per (tenant, bot). Created on
// the first inbound message; FirstName/LastName/Username are refreshed on
// every subsequent message since they drift on the platform side. ClientID,
// once set, is never cleared by inbound processing.
type Contact struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	TenantID  string         `json:"tenant_id"  gorm:"type:char(36);not null;index"`
	BotID     string         `json:"bot_id"     gorm:"type:char(36);not null;uniqueIndex:ux_contact_bot_chat,priority:1"`
	ChatID    int64          `json:"chat_id"    gorm:"not null;uniqueIndex:ux_contact_bot_chat,priority:2"`
	FirstName string         `json:"first_name" gorm:"type:varchar(255)"`
	LastName  string         `json:"last_name"  gorm:"type:varchar(255)"`
	Username  string         `json:"username"   gorm:"type:varchar(255)"`
	ClientID  *string        `json:"client_id,omitempty" gorm:"type:char(36);index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Contact.
func (Contact) TableName() string { return "contacts" }

// DisplayName returns the best human-readable name for the contact.
func (c Contact) DisplayName() string {
	switch {
	case c.FirstName != "" && c.LastName != "":
		return c.FirstName + " " + c.LastName
	case c.FirstName != "":
		return c.FirstName
	case c.LastName != "":
		return c.LastName
	case c.Username != "":
		return "@" + c.Username
	}
	return "Telegram"
}

// Conversation is the staff-visible chat history between one bot and one
// contact. Exactly one row exists per (tenant, bot, contact); it is created
// lazily on the first inbound message.
//
// UnreadCount is incremented by inbound processing with a single atomic
// UPDATE and reset by the read surface; it never goes negative.
type Conversation struct {
	ID              string         `json:"id"                gorm:"type:char(36);primaryKey"`
	TenantID        string         `json:"tenant_id"         gorm:"type:char(36);not null;index"`
	BotID           string         `json:"bot_id"            gorm:"type:char(36);not null;uniqueIndex:ux_conv_bot_contact,priority:1"`
	ContactID       string         `json:"contact_id"        gorm:"type:char(36);not null;uniqueIndex:ux_conv_bot_contact,priority:2"`
	Status          string         `json:"status"            gorm:"type:varchar(16);not null;default:'open'"`
	AssignedStaffID *string        `json:"assigned_staff_id" gorm:"type:char(36)"`
	UnreadCount     int            `json:"unread_count"      gorm:"not null;default:0;check:unread_count >= 0"`
	LastMessageAt   *time.Time     `json:"last_message_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-"                 gorm:"index"`

	Contact Contact `json:"-" gorm:"foreignKey:ContactID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Message is a single utterance within a conversation.
//
// Fields:
//   - Direction: "in" (from the contact) or "out" (staff reply).
//   - Source: "telegram" for chat-originated, "internal" for staff-composed.
//   - Status: "received" for inbound; outbound moves "queued" -> "sent".
//   - TelegramMessageID: the platform-assigned id, used for copy/archival.
//   - SourceUpdateID: set on every row created by inbound processing; the
//     (conversation, source update) pair is unique, so a redelivered job
//     reuses the committed row instead of inserting a second one.
type Message struct {
	ID                string         `json:"id"              gorm:"type:char(36);primaryKey"`
	TenantID          string         `json:"tenant_id"       gorm:"type:char(36);not null;index"`
	ConversationID    string         `json:"conversation_id" gorm:"type:char(36);not null;index:idx_conv_msgs,priority:1;uniqueIndex:ux_msg_conv_src_update,priority:1"`
	Direction         string         `json:"direction"       gorm:"type:varchar(8);not null;check:direction IN ('in','out')"`
	Source            string         `json:"source"          gorm:"type:varchar(16);not null"`
	Body              string         `json:"body"            gorm:"type:text"`
	Status            string         `json:"status"          gorm:"type:varchar(16);not null;check:status IN ('received','queued','sent')"`
	StaffID           *string        `json:"staff_id,omitempty" gorm:"type:char(36)"`
	TelegramMessageID *int           `json:"telegram_message_id,omitempty"`
	SourceUpdateID    *int64         `json:"-"               gorm:"uniqueIndex:ux_msg_conv_src_update,priority:2"`
	CreatedAt         time.Time      `json:"created_at"      gorm:"index:idx_conv_msgs,priority:2"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `json:"-"               gorm:"index"`

	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Attachment belongs to exactly one message. FileID is the Telegram file
// handle and the preferred way to re-send or download the payload.
// StorageKey is a logical key used only for access-control scoping; it never
// addresses stored bytes.
type Attachment struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	TenantID   string         `json:"tenant_id"   gorm:"type:char(36);not null;index"`
	MessageID  string         `json:"message_id"  gorm:"type:char(36);not null;index"`
	FileID     string         `json:"file_id"     gorm:"type:varchar(255)"`
	StorageKey string         `json:"storage_key" gorm:"type:varchar(512)"`
	FileName   string         `json:"file_name"   gorm:"type:varchar(512)"`
	MimeType   string         `json:"mime_type"   gorm:"type:varchar(255)"`
	FileSize   int64          `json:"file_size"`
	Duration   *int           `json:"duration,omitempty"` // seconds, audio/video only
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-"           gorm:"index"`

	Message Message `json:"-" gorm:"foreignKey:MessageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Attachment.
func (Attachment) TableName() string { return "attachments" }

// Document is a durable, client-visible artifact mirrored from a genuine
// document attachment. At most one Document exists per originating
// attachment (unique index + lookup-before-insert), which keeps the
// file-register job idempotent under at-least-once delivery.
type Document struct {
	ID           string         `json:"id"            gorm:"type:char(36);primaryKey"`
	TenantID     string         `json:"tenant_id"     gorm:"type:char(36);not null;index"`
	ClientID     string         `json:"client_id"     gorm:"type:char(36);not null;index"`
	AttachmentID string         `json:"attachment_id" gorm:"type:char(36);not null;uniqueIndex"`
	Name         string         `json:"name"          gorm:"type:varchar(512);not null"`
	MimeType     string         `json:"mime_type"     gorm:"type:varchar(255)"`
	FileSize     int64          `json:"file_size"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-"             gorm:"index"`
}

// TableName returns the database table name for Document.
func (Document) TableName() string { return "documents" }

// RawUpdate stores the verbatim inbound webhook payload, write-once, keyed
// uniquely by (bot, platform update id). The insert is the single
// deduplication gate: every downstream effect of a webhook call is
// conditioned on this row being created by that call.
type RawUpdate struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	TenantID  string    `json:"tenant_id" gorm:"type:char(36);not null;index"`
	BotID     string    `json:"bot_id"    gorm:"type:char(36);not null;uniqueIndex:ux_raw_bot_update,priority:1"`
	UpdateID  int64     `json:"update_id" gorm:"not null;uniqueIndex:ux_raw_bot_update,priority:2"`
	Payload   []byte    `json:"-"         gorm:"type:blob;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for RawUpdate.
func (RawUpdate) TableName() string { return "raw_updates" }

// LinkCode is a short-lived, single-use code that binds a staff member's
// Telegram chat to their profile via /start <CODE>. UsedAt marks
// consumption; expired or used codes never resolve.
type LinkCode struct {
	ID        string     `json:"id"         gorm:"type:char(36);primaryKey"`
	TenantID  string     `json:"tenant_id"  gorm:"type:char(36);not null;index"`
	StaffID   string     `json:"staff_id"   gorm:"type:char(36);not null;index"`
	Code      string     `json:"code"       gorm:"type:varchar(16);not null;uniqueIndex"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"not null"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName returns the database table name for LinkCode.
func (LinkCode) TableName() string { return "link_codes" }
