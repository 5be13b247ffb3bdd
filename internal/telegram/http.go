// Package telegram – raw HTTP transport.
//
// httpClient reimplements the Client contract directly against the Bot API
// JSON endpoints, so the bridge keeps working when the SDK path is pinned
// off or fails to construct. Reference sends (file_id / URL) go as JSON;
// byte uploads go as multipart form data.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultAPIBase = "https://api.telegram.org"

type httpClient struct {
	rc    *resty.Client
	base  string
	token string
}

// newHTTPClient builds the raw transport with a bounded request timeout.
func newHTTPClient(token string, timeout time.Duration) *httpClient {
	return newHTTPClientWithBase(token, defaultAPIBase, timeout)
}

func newHTTPClientWithBase(token, base string, timeout time.Duration) *httpClient {
	rc := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout)
	return &httpClient{rc: rc, base: base, token: token}
}

// apiResponse is the Bot API's uniform JSON envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

// sentMessage is the subset of the message object the bridge reads back.
type sentMessage struct {
	MessageID int `json:"message_id"`
	Voice     *struct {
		FileID string `json:"file_id"`
	} `json:"voice"`
}

// call posts a JSON payload to a Bot API method and unwraps the envelope.
func (h *httpClient) call(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	resp, err := h.rc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post("/bot" + h.token + "/" + method)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s: %w", method, err)
	}
	return decodeAPIResponse(method, resp.Body())
}

// callMultipart posts form fields plus one file part (used for byte uploads).
func (h *httpClient) callMultipart(ctx context.Context, method, fileField, fileName string, data []byte, fields map[string]string) (json.RawMessage, error) {
	resp, err := h.rc.R().
		SetContext(ctx).
		SetFileReader(fileField, fileName, bytes.NewReader(data)).
		SetFormData(fields).
		Post("/bot" + h.token + "/" + method)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s: %w", method, err)
	}
	return decodeAPIResponse(method, resp.Body())
}

func decodeAPIResponse(method string, body []byte) (json.RawMessage, error) {
	var env apiResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("telegram: %s: decode response: %w", method, err)
	}
	if !env.OK {
		return nil, &APIError{Code: env.ErrorCode, Description: env.Description}
	}
	return env.Result, nil
}

// inlineKeyboard renders SendOptions buttons as one keyboard row.
func inlineKeyboard(opts *SendOptions) map[string]any {
	if opts == nil || len(opts.Buttons) == 0 {
		return nil
	}
	row := make([]map[string]string, 0, len(opts.Buttons))
	for _, b := range opts.Buttons {
		btn := map[string]string{"text": b.Text}
		if b.CallbackData != "" {
			btn["callback_data"] = b.CallbackData
		} else if b.URL != "" {
			btn["url"] = b.URL
		}
		row = append(row, btn)
	}
	return map[string]any{"inline_keyboard": [][]map[string]string{row}}
}

// SendText implements Client.
func (h *httpClient) SendText(ctx context.Context, chatID int64, text string, opts *SendOptions) (int, error) {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if kb := inlineKeyboard(opts); kb != nil {
		payload["reply_markup"] = kb
	}
	res, err := h.call(ctx, "sendMessage", payload)
	if err != nil {
		return 0, err
	}
	return messageIDOf(res)
}

// SendDocument implements Client.
func (h *httpClient) SendDocument(ctx context.Context, chatID int64, file FileRef, caption string) (int, error) {
	res, err := h.sendFile(ctx, "sendDocument", "document", chatID, file, caption)
	if err != nil {
		return 0, err
	}
	return messageIDOf(res)
}

// SendVoice implements Client. The raw transport reads the stored voice's
// file handle back out of the send result, which the SDK path cannot
// express.
func (h *httpClient) SendVoice(ctx context.Context, chatID int64, file FileRef, caption string) (int, string, error) {
	res, err := h.sendFile(ctx, "sendVoice", "voice", chatID, file, caption)
	if err != nil {
		return 0, "", err
	}
	var m sentMessage
	if err := json.Unmarshal(res, &m); err != nil {
		return 0, "", fmt.Errorf("telegram: sendVoice: decode result: %w", err)
	}
	fileID := ""
	if m.Voice != nil {
		fileID = m.Voice.FileID
	}
	return m.MessageID, fileID, nil
}

// sendFile routes a FileRef to JSON (reference) or multipart (bytes).
func (h *httpClient) sendFile(ctx context.Context, method, field string, chatID int64, file FileRef, caption string) (json.RawMessage, error) {
	switch {
	case file.FileID != "" || file.URL != "":
		ref := file.FileID
		if ref == "" {
			ref = file.URL
		}
		payload := map[string]any{
			"chat_id": chatID,
			field:     ref,
		}
		if caption != "" {
			payload["caption"] = caption
		}
		return h.call(ctx, method, payload)
	case len(file.Data) > 0:
		fields := map[string]string{"chat_id": strconv.FormatInt(chatID, 10)}
		if caption != "" {
			fields["caption"] = caption
		}
		name := file.Name
		if name == "" {
			name = field
		}
		return h.callMultipart(ctx, method, field, name, file.Data, fields)
	default:
		return nil, fmt.Errorf("telegram: %s: file reference is required", method)
	}
}

// CopyMessage implements Client.
func (h *httpClient) CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error) {
	res, err := h.call(ctx, "copyMessage", map[string]any{
		"chat_id":      toChatID,
		"from_chat_id": fromChatID,
		"message_id":   messageID,
	})
	if err != nil {
		return 0, err
	}
	return messageIDOf(res)
}

// GetFile implements Client.
func (h *httpClient) GetFile(ctx context.Context, fileID string) (File, error) {
	res, err := h.call(ctx, "getFile", map[string]any{"file_id": fileID})
	if err != nil {
		return File{}, err
	}
	var f struct {
		FileID   string `json:"file_id"`
		FilePath string `json:"file_path"`
		FileSize int64  `json:"file_size"`
	}
	if err := json.Unmarshal(res, &f); err != nil {
		return File{}, fmt.Errorf("telegram: getFile: decode result: %w", err)
	}
	return File{FileID: f.FileID, FilePath: f.FilePath, FileSize: f.FileSize}, nil
}

// DownloadFile implements Client.
func (h *httpClient) DownloadFile(ctx context.Context, filePath string) ([]byte, error) {
	resp, err := h.rc.R().
		SetContext(ctx).
		Get("/file/bot" + h.token + "/" + filePath)
	if err != nil {
		return nil, fmt.Errorf("telegram: download: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &APIError{Code: resp.StatusCode(), Description: "file download failed"}
	}
	return resp.Body(), nil
}

// AnswerCallback implements Client.
func (h *httpClient) AnswerCallback(ctx context.Context, callbackID, text string) error {
	payload := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		payload["text"] = text
	}
	_, err := h.call(ctx, "answerCallbackQuery", payload)
	return err
}

func messageIDOf(res json.RawMessage) (int, error) {
	var m sentMessage
	if err := json.Unmarshal(res, &m); err != nil {
		return 0, fmt.Errorf("telegram: decode sent message: %w", err)
	}
	return m.MessageID, nil
}
