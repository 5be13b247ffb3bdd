// Package telegram – SDK transport.
//
// sdkClient wraps go-telegram-bot-api. Operations the SDK cannot express
// (reading a sent voice's file handle, raw file downloads) delegate to the
// embedded raw HTTP client, so callers always see the full Client contract.
package telegram

import (
	"context"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type sdkClient struct {
	bot *tgbotapi.BotAPI
	raw *httpClient
}

// newSDKClient constructs the SDK transport. Construction performs a getMe
// call, so a bad token or unreachable API surfaces here and lets the
// factory fall back to the raw transport.
func newSDKClient(token string, timeout time.Duration) (*sdkClient, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, err
	}
	return &sdkClient{
		bot: bot,
		raw: newHTTPClient(token, timeout),
	}, nil
}

// sdkKeyboard renders SendOptions buttons as one inline keyboard row.
func sdkKeyboard(opts *SendOptions) *tgbotapi.InlineKeyboardMarkup {
	if opts == nil || len(opts.Buttons) == 0 {
		return nil
	}
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(opts.Buttons))
	for _, b := range opts.Buttons {
		switch {
		case b.CallbackData != "":
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.CallbackData))
		case b.URL != "":
			row = append(row, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
		}
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(row)
	return &kb
}

func sdkFileData(file FileRef) tgbotapi.RequestFileData {
	switch {
	case file.FileID != "":
		return tgbotapi.FileID(file.FileID)
	case file.URL != "":
		return tgbotapi.FileURL(file.URL)
	default:
		name := file.Name
		if name == "" {
			name = "file"
		}
		return tgbotapi.FileBytes{Name: name, Bytes: file.Data}
	}
}

// SendText implements Client.
func (s *sdkClient) SendText(ctx context.Context, chatID int64, text string, opts *SendOptions) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if kb := sdkKeyboard(opts); kb != nil {
		msg.ReplyMarkup = *kb
	}
	sent, err := s.bot.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// SendDocument implements Client.
func (s *sdkClient) SendDocument(ctx context.Context, chatID int64, file FileRef, caption string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	doc := tgbotapi.NewDocument(chatID, sdkFileData(file))
	doc.Caption = caption
	sent, err := s.bot.Send(doc)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// SendVoice implements Client. The SDK drops the stored voice's file handle
// from its result type, so this operation goes through the raw transport.
func (s *sdkClient) SendVoice(ctx context.Context, chatID int64, file FileRef, caption string) (int, string, error) {
	return s.raw.SendVoice(ctx, chatID, file, caption)
}

// CopyMessage implements Client.
func (s *sdkClient) CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cp := tgbotapi.NewCopyMessage(toChatID, fromChatID, messageID)
	res, err := s.bot.CopyMessage(cp)
	if err != nil {
		return 0, err
	}
	return res.MessageID, nil
}

// GetFile implements Client.
func (s *sdkClient) GetFile(ctx context.Context, fileID string) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	f, err := s.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return File{}, err
	}
	return File{FileID: f.FileID, FilePath: f.FilePath, FileSize: int64(f.FileSize)}, nil
}

// DownloadFile implements Client via the raw transport; the SDK exposes
// only a direct-URL helper, not the bytes.
func (s *sdkClient) DownloadFile(ctx context.Context, filePath string) ([]byte, error) {
	return s.raw.DownloadFile(ctx, filePath)
}

// AnswerCallback implements Client.
func (s *sdkClient) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cb := tgbotapi.NewCallback(callbackID, text)
	_, err := s.bot.Request(cb)
	return err
}
