package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"telegram-relay-bot/internal/domain"
	"telegram-relay-bot/internal/ports"
)

var errTransportDown = errors.New("транспорт недоступен")

// sentCall — одна зафиксированная отправка фейкового транспорта.
type sentCall struct {
	method string
	chatID int64
	text   string
	extra  string
	items  int
}

// fakeTransport реализует ports.Transport для тестов: записывает отправки,
// умеет отказывать конкретному чату и выдавать заданный статус подписки.
type fakeTransport struct {
	mu           sync.Mutex
	calls        []sentCall
	failChat     int64  // чат, для которого все отправки падают
	memberStatus string // статус из GetChatMember; по умолчанию "member"
	memberErr    error
	getChatCalls int
}

func (f *fakeTransport) record(method string, chatID int64, text, extra string, items int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failChat != 0 && chatID == f.failChat {
		return 0, errTransportDown
	}
	f.calls = append(f.calls, sentCall{method: method, chatID: chatID, text: text, extra: extra, items: items})
	return len(f.calls), nil
}

// callsTo возвращает отправки в указанный чат.
func (f *fakeTransport) callsTo(chatID int64) []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentCall
	for _, c := range f.calls {
		if c.chatID == chatID {
			out = append(out, c)
		}
	}
	return out
}

// callsOf возвращает отправки указанным методом.
func (f *fakeTransport) callsOf(method string) []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeTransport) SendText(_ context.Context, chatID int64, text string) (int, error) {
	return f.record("SendText", chatID, text, "", 0)
}
func (f *fakeTransport) SendHTML(_ context.Context, chatID int64, text string) (int, error) {
	return f.record("SendHTML", chatID, text, "", 0)
}
func (f *fakeTransport) SendPhoto(_ context.Context, chatID int64, fileID, caption string) (int, error) {
	return f.record("SendPhoto", chatID, caption, fileID, 0)
}
func (f *fakeTransport) SendVideo(_ context.Context, chatID int64, fileID, caption string) (int, error) {
	return f.record("SendVideo", chatID, caption, fileID, 0)
}
func (f *fakeTransport) SendDocument(_ context.Context, chatID int64, fileID, caption, fileName string) (int, error) {
	return f.record("SendDocument", chatID, caption, fileID, 0)
}
func (f *fakeTransport) SendAudio(_ context.Context, chatID int64, fileID, caption string) (int, error) {
	return f.record("SendAudio", chatID, caption, fileID, 0)
}
func (f *fakeTransport) SendVoice(_ context.Context, chatID int64, fileID string) (int, error) {
	return f.record("SendVoice", chatID, "", fileID, 0)
}
func (f *fakeTransport) SendSticker(_ context.Context, chatID int64, fileID string) (int, error) {
	return f.record("SendSticker", chatID, "", fileID, 0)
}
func (f *fakeTransport) SendAnimation(_ context.Context, chatID int64, fileID, caption string) (int, error) {
	return f.record("SendAnimation", chatID, caption, fileID, 0)
}
func (f *fakeTransport) SendLocation(_ context.Context, chatID int64, latitude, longitude float64) (int, error) {
	return f.record("SendLocation", chatID, "", "", 0)
}
func (f *fakeTransport) SendContact(_ context.Context, chatID int64, phone, firstName, lastName string) (int, error) {
	return f.record("SendContact", chatID, phone, "", 0)
}
func (f *fakeTransport) SendDice(_ context.Context, chatID int64, emoji string) (int, error) {
	return f.record("SendDice", chatID, emoji, "", 0)
}
func (f *fakeTransport) SendVenue(_ context.Context, chatID int64, latitude, longitude float64, title, address string) (int, error) {
	return f.record("SendVenue", chatID, title, "", 0)
}
func (f *fakeTransport) SendVideoNote(_ context.Context, chatID int64, fileID string) (int, error) {
	return f.record("SendVideoNote", chatID, "", fileID, 0)
}
func (f *fakeTransport) SendMediaGroup(_ context.Context, chatID int64, items []domain.ContentItem) error {
	_, err := f.record("SendMediaGroup", chatID, "", "", len(items))
	return err
}
func (f *fakeTransport) SendReviewNotice(_ context.Context, adminID int64, text, submissionID string) (int, error) {
	return f.record("SendReviewNotice", adminID, text, submissionID, 0)
}
func (f *fakeTransport) SendLinkButton(_ context.Context, chatID int64, text, buttonText, url string) (int, error) {
	return f.record("SendLinkButton", chatID, text, url, 0)
}
func (f *fakeTransport) EditMessageText(_ context.Context, chatID int64, messageID int, text string) error {
	_, err := f.record("EditMessageText", chatID, text, "", messageID)
	return err
}
func (f *fakeTransport) GetChatMember(_ context.Context, channel string, userID int64) (string, error) {
	if f.memberErr != nil {
		return "", f.memberErr
	}
	if f.memberStatus == "" {
		return "member", nil
	}
	return f.memberStatus, nil
}
func (f *fakeTransport) GetChat(_ context.Context, channel string) (ports.ChatInfo, error) {
	f.mu.Lock()
	f.getChatCalls++
	f.mu.Unlock()
	// Канал "@main" живет в чате 100, "@backup" — в 200
	if channel == "@backup" {
		return ports.ChatInfo{ID: 200, Username: "backup"}, nil
	}
	return ports.ChatInfo{ID: 100, Username: "main"}, nil
}

func (f *fakeTransport) getChatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getChatCalls
}

// fakeBundles — хранилище бандлов в памяти.
type fakeBundles struct {
	mu      sync.Mutex
	seq     int
	bundles map[string][]domain.Entry
}

func newFakeBundles() *fakeBundles {
	return &fakeBundles{bundles: make(map[string][]domain.Entry)}
}

func (f *fakeBundles) Put(_ context.Context, entries []domain.Entry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("bundle%02d", f.seq)
	f.bundles[id] = entries
	return id, nil
}

func (f *fakeBundles) Get(_ context.Context, id string) ([]domain.Entry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, ok := f.bundles[id]
	return entries, ok, nil
}

func (f *fakeBundles) Count(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bundles), nil
}

// fakeSettings — хранилище настроек в памяти.
type fakeSettings struct {
	mu          sync.Mutex
	admins      []int64
	channels    []string
	backup      []string
	intro       string
	forceFollow domain.ForceFollowConfig
	follows     map[int64]bool
}

func newFakeSettings(admins ...int64) *fakeSettings {
	return &fakeSettings{admins: admins, intro: "Привет!", follows: make(map[int64]bool)}
}

func (f *fakeSettings) Admins() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.admins...)
}

func (f *fakeSettings) IsAdmin(userID int64) bool {
	for _, id := range f.Admins() {
		if id == userID {
			return true
		}
	}
	return false
}

func (f *fakeSettings) AddAdmin(userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.admins = append(f.admins, userID)
	return nil
}

func (f *fakeSettings) RemoveAdmin(userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.admins[:0]
	for _, id := range f.admins {
		if id != userID {
			out = append(out, id)
		}
	}
	f.admins = out
	return nil
}

func (f *fakeSettings) Channels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.channels...)
}
func (f *fakeSettings) AddChannel(channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channelID)
	return nil
}
func (f *fakeSettings) RemoveChannel(channelID string) error { return nil }

func (f *fakeSettings) BackupChannels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.backup...)
}
func (f *fakeSettings) AddBackupChannel(channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backup = append(f.backup, channelID)
	return nil
}
func (f *fakeSettings) RemoveBackupChannel(channelID string) error { return nil }

func (f *fakeSettings) Intro() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.intro
}
func (f *fakeSettings) SetIntro(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intro = text
	return nil
}

func (f *fakeSettings) ForceFollow() domain.ForceFollowConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forceFollow
}
func (f *fakeSettings) SetForceFollow(cfg domain.ForceFollowConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forceFollow = cfg
	return nil
}

func (f *fakeSettings) FollowStats() domain.FollowStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.FollowStats{TotalFollows: len(f.follows)}
}
func (f *fakeSettings) RecordFollow(userID int64, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.follows[userID] {
		return false, nil
	}
	f.follows[userID] = true
	return true, nil
}
func (f *fakeSettings) ResetFollowStats() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.follows = make(map[int64]bool)
	return nil
}

// fakeUsers — каталог пользователей в памяти.
type fakeUsers struct {
	mu      sync.Mutex
	records []domain.UserRecord
	history []domain.BroadcastRecord
}

func (f *fakeUsers) UpsertUser(user domain.UserRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].UserID == user.UserID {
			f.records[i] = user
			return nil
		}
	}
	f.records = append(f.records, user)
	return nil
}

func (f *fakeUsers) Users() []domain.UserRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.UserRecord(nil), f.records...)
}

func (f *fakeUsers) UserCount() int { return len(f.Users()) }

func (f *fakeUsers) AppendBroadcast(record domain.BroadcastRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, record)
	return nil
}

func (f *fakeUsers) BroadcastHistory() []domain.BroadcastRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.BroadcastRecord(nil), f.history...)
}
