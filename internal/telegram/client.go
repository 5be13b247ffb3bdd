// Package telegram implements the chat transport client used by the bridge.
//
// Two interchangeable transports exist behind the Client interface: an
// SDK-backed client (go-telegram-bot-api) and a self-contained raw HTTP
// client speaking JSON to api.telegram.org. The factory in cache.go picks
// the transport (configurable pin, SDK first with HTTP fallback) and caches
// clients per credential with a time-bound eviction policy, so callers stay
// transport-agnostic.
package telegram

import (
	"context"
	"fmt"
)

// Transport modes accepted by the factory. ModeAuto attempts the SDK client
// first and falls back to raw HTTP when SDK construction fails; ModeHTTP
// pins the raw client unconditionally.
const (
	ModeAuto = "auto"
	ModeSDK  = "sdk"
	ModeHTTP = "http"
)

// Button describes one inline keyboard button. Exactly one of CallbackData
// or URL should be set.
type Button struct {
	Text         string
	CallbackData string
	URL          string
}

// SendOptions carries optional send parameters shared by both transports.
type SendOptions struct {
	// Buttons renders a one-row inline keyboard under the message.
	Buttons []Button
}

// FileRef references a file to send. Precedence: FileID (a handle the
// platform already holds) over URL (fetched by Telegram) over Data (raw
// bytes uploaded via multipart).
type FileRef struct {
	FileID string
	URL    string
	Name   string
	Data   []byte
}

// File is the platform's file metadata for a stored handle.
type File struct {
	FileID   string
	FilePath string
	FileSize int64
}

// Client is the transport contract against the Telegram Bot API. All calls
// honor the context deadline; implementations apply a bounded default
// timeout of their own on top.
type Client interface {
	// SendText delivers a plain text message and returns the platform
	// message id.
	SendText(ctx context.Context, chatID int64, text string, opts *SendOptions) (int, error)

	// SendDocument delivers a document with an optional caption and returns
	// the platform message id.
	SendDocument(ctx context.Context, chatID int64, file FileRef, caption string) (int, error)

	// SendVoice delivers a voice note and returns the platform message id
	// and the file handle Telegram assigned to the stored voice.
	SendVoice(ctx context.Context, chatID int64, file FileRef, caption string) (int, string, error)

	// CopyMessage copies an existing message into another chat (used for
	// archival) and returns the new message id.
	CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error)

	// GetFile resolves a file handle to its metadata, including the
	// download path.
	GetFile(ctx context.Context, fileID string) (File, error)

	// DownloadFile fetches the bytes behind a file path returned by GetFile.
	DownloadFile(ctx context.Context, filePath string) ([]byte, error)

	// AnswerCallback acknowledges a callback-query button press, optionally
	// showing a short notification to the presser.
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// APIError is a non-2xx answer from the Bot API.
type APIError struct {
	Code        int
	Description string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: api error %d: %s", e.Code, e.Description)
}
