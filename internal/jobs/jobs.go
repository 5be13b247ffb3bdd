// Package jobs defines the asynchronous work the bridge performs outside
// the webhook request path: inbound update processing, outbound delivery,
// and attachment registration.
//
// Jobs travel as JSON envelopes through a queue substrate (RabbitMQ) or run
// inline in-process when no queue is configured. Delivery is at-least-once
// either way, so every execution is idempotent: inbound re-derives state
// from the stored raw update, outbound no-ops unless the message is still
// queued, and file registration no-ops once a document exists.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
)

// Job kinds carried in the envelope.
const (
	KindInboundProcess = "inbound-process"
	KindOutboundSend   = "outbound-send"
	KindFileRegister   = "file-register"
)

// InboundProcess asks the worker to run one stored raw update through the
// inbound state machine. The raw payload is included for observability, but
// execution always re-reads the stored RawUpdate row.
type InboundProcess struct {
	TenantID string          `json:"tenant_id"`
	BotID    string          `json:"bot_id"`
	UpdateID int64           `json:"update_id"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// OutboundSend asks the worker to deliver one queued message.
type OutboundSend struct {
	TenantID       string `json:"tenant_id"`
	BotID          string `json:"bot_id"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
}

// FileRegister asks the worker to classify one inbound attachment and
// mirror it into the document registry when appropriate.
type FileRegister struct {
	TenantID     string  `json:"tenant_id"`
	BotID        string  `json:"bot_id"`
	ClientID     *string `json:"client_id,omitempty"`
	AttachmentID string  `json:"attachment_id"`
	FileID       string  `json:"file_id"`
	FileName     string  `json:"file_name"`
	MimeType     string  `json:"mime_type"`
	FileSize     int64   `json:"file_size"`
}

// Envelope is the wire form of one job.
type Envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope wraps a payload struct into an Envelope.
func NewEnvelope(kind string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("jobs: marshal %s payload: %w", kind, err)
	}
	return Envelope{Kind: kind, Payload: raw}, nil
}

// Dispatcher schedules jobs. Enqueue returns once the job is durably
// scheduled, or, for the inline dispatcher, after the job has already run.
// Callers must not assume asynchrony, only eventual completion or an error.
type Dispatcher interface {
	EnqueueInbound(ctx context.Context, job InboundProcess) error
	EnqueueOutbound(ctx context.Context, job OutboundSend) error
	EnqueueFileRegister(ctx context.Context, job FileRegister) error
}
