package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/opsdesk/telegram-bridge/internal/domain"
	"github.com/opsdesk/telegram-bridge/internal/jobs"
	"github.com/opsdesk/telegram-bridge/internal/repo"
	"github.com/opsdesk/telegram-bridge/internal/telegram"
)

// newTestDB opens a throwaway SQLite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedBot(t *testing.T, db *gorm.DB, tenantID string) *domain.TenantBot {
	t.Helper()
	bot := &domain.TenantBot{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		PublicID:      uuid.NewString(),
		Token:         "123456:test-token",
		WebhookSecret: "secret-token",
		Name:          "support-bot",
		Active:        true,
	}
	if err := db.Create(bot).Error; err != nil {
		t.Fatalf("seed bot: %v", err)
	}
	return bot
}

func seedStaff(t *testing.T, db *gorm.DB, tenantID string, chatID int64) *domain.Staff {
	t.Helper()
	st := &domain.Staff{ID: uuid.NewString(), TenantID: tenantID, Name: "Олена"}
	if chatID != 0 {
		st.ChatID = &chatID
	}
	if err := db.Create(st).Error; err != nil {
		t.Fatalf("seed staff: %v", err)
	}
	return st
}

func seedClient(t *testing.T, db *gorm.DB, tenantID string, primaryStaffID *string) *domain.Client {
	t.Helper()
	cl := &domain.Client{ID: uuid.NewString(), TenantID: tenantID, Name: "ТОВ Ромашка", PrimaryStaffID: primaryStaffID}
	if err := db.Create(cl).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}
	return cl
}

// --- dispatcher fake ---

// fakeDispatcher records enqueued jobs; Err short-circuits every enqueue.
type fakeDispatcher struct {
	mu       sync.Mutex
	Err      error
	Inbound  []jobs.InboundProcess
	Outbound []jobs.OutboundSend
	Files    []jobs.FileRegister
}

func (d *fakeDispatcher) EnqueueInbound(_ context.Context, job jobs.InboundProcess) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	d.Inbound = append(d.Inbound, job)
	return nil
}

func (d *fakeDispatcher) EnqueueOutbound(_ context.Context, job jobs.OutboundSend) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	d.Outbound = append(d.Outbound, job)
	return nil
}

func (d *fakeDispatcher) EnqueueFileRegister(_ context.Context, job jobs.FileRegister) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	d.Files = append(d.Files, job)
	return nil
}

// --- telegram client fake ---

type sentText struct {
	ChatID int64
	Text   string
	Opts   *telegram.SendOptions
}

type sentDoc struct {
	ChatID  int64
	File    telegram.FileRef
	Caption string
}

// fakeTelegram records every transport call and answers with incrementing
// platform message ids.
type fakeTelegram struct {
	mu        sync.Mutex
	Err       error
	nextMsgID int
	Texts     []sentText
	Docs      []sentDoc
	Copies    []int64
	Answers   []string
}

func (f *fakeTelegram) nextID() int {
	f.nextMsgID++
	return f.nextMsgID + 100
}

func (f *fakeTelegram) SendText(_ context.Context, chatID int64, text string, opts *telegram.SendOptions) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	f.Texts = append(f.Texts, sentText{ChatID: chatID, Text: text, Opts: opts})
	return f.nextID(), nil
}

func (f *fakeTelegram) SendDocument(_ context.Context, chatID int64, file telegram.FileRef, caption string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	f.Docs = append(f.Docs, sentDoc{ChatID: chatID, File: file, Caption: caption})
	return f.nextID(), nil
}

func (f *fakeTelegram) SendVoice(_ context.Context, chatID int64, file telegram.FileRef, caption string) (int, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, "", f.Err
	}
	return f.nextID(), "voice-file-id", nil
}

func (f *fakeTelegram) CopyMessage(_ context.Context, toChatID, _ int64, _ int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	f.Copies = append(f.Copies, toChatID)
	return f.nextID(), nil
}

func (f *fakeTelegram) GetFile(_ context.Context, fileID string) (telegram.File, error) {
	return telegram.File{FileID: fileID, FilePath: "documents/" + fileID}, nil
}

func (f *fakeTelegram) DownloadFile(_ context.Context, _ string) ([]byte, error) {
	return []byte("bytes"), nil
}

func (f *fakeTelegram) AnswerCallback(_ context.Context, callbackID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Answers = append(f.Answers, text)
	return nil
}

// fakeClients hands out the same fake regardless of credential.
type fakeClients struct {
	c telegram.Client
}

func (f *fakeClients) Client(string) telegram.Client { return f.c }

func (f *fakeTelegram) lastText(t *testing.T) sentText {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Texts) == 0 {
		t.Fatalf("no text messages sent")
	}
	return f.Texts[len(f.Texts)-1]
}
