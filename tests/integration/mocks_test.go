package integration

import (
	"context"
	"sync"

	"telegram-relay-bot/internal/domain"
	"telegram-relay-bot/internal/ports"
)

// sentCall — одна зафиксированная отправка фейкового транспорта.
type sentCall struct {
	method string
	chatID int64
	text   string
	extra  string
	items  []domain.ContentItem
}

// fakeTransport реализует ports.Transport без реальных вызовов API.
type fakeTransport struct {
	mu           sync.Mutex
	calls        []sentCall
	memberStatus string // статус подписки для GetChatMember
}

func (f *fakeTransport) record(c sentCall) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return len(f.calls), nil
}

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

func (f *fakeTransport) SendText(_ context.Context, chatID int64, text string) (int, error) {
	return f.record(sentCall{method: "SendText", chatID: chatID, text: text})
}
func (f *fakeTransport) SendHTML(_ context.Context, chatID int64, text string) (int, error) {
	return f.record(sentCall{method: "SendHTML", chatID: chatID, text: text})
}
func (f *fakeTransport) SendPhoto(_ context.Context, chatID int64, fileID, caption string) (int, error) {
	return f.record(sentCall{method: "SendPhoto", chatID: chatID, text: caption, extra: fileID})
}
func (f *fakeTransport) SendVideo(_ context.Context, chatID int64, fileID, caption string) (int, error) {
	return f.record(sentCall{method: "SendVideo", chatID: chatID, text: caption, extra: fileID})
}
func (f *fakeTransport) SendDocument(_ context.Context, chatID int64, fileID, caption, fileName string) (int, error) {
	return f.record(sentCall{method: "SendDocument", chatID: chatID, text: caption, extra: fileID})
}
func (f *fakeTransport) SendAudio(_ context.Context, chatID int64, fileID, caption string) (int, error) {
	return f.record(sentCall{method: "SendAudio", chatID: chatID, text: caption, extra: fileID})
}
func (f *fakeTransport) SendVoice(_ context.Context, chatID int64, fileID string) (int, error) {
	return f.record(sentCall{method: "SendVoice", chatID: chatID, extra: fileID})
}
func (f *fakeTransport) SendSticker(_ context.Context, chatID int64, fileID string) (int, error) {
	return f.record(sentCall{method: "SendSticker", chatID: chatID, extra: fileID})
}
func (f *fakeTransport) SendAnimation(_ context.Context, chatID int64, fileID, caption string) (int, error) {
	return f.record(sentCall{method: "SendAnimation", chatID: chatID, text: caption, extra: fileID})
}
func (f *fakeTransport) SendLocation(_ context.Context, chatID int64, latitude, longitude float64) (int, error) {
	return f.record(sentCall{method: "SendLocation", chatID: chatID})
}
func (f *fakeTransport) SendContact(_ context.Context, chatID int64, phone, firstName, lastName string) (int, error) {
	return f.record(sentCall{method: "SendContact", chatID: chatID, text: phone})
}
func (f *fakeTransport) SendDice(_ context.Context, chatID int64, emoji string) (int, error) {
	return f.record(sentCall{method: "SendDice", chatID: chatID, text: emoji})
}
func (f *fakeTransport) SendVenue(_ context.Context, chatID int64, latitude, longitude float64, title, address string) (int, error) {
	return f.record(sentCall{method: "SendVenue", chatID: chatID, text: title})
}
func (f *fakeTransport) SendVideoNote(_ context.Context, chatID int64, fileID string) (int, error) {
	return f.record(sentCall{method: "SendVideoNote", chatID: chatID, extra: fileID})
}
func (f *fakeTransport) SendMediaGroup(_ context.Context, chatID int64, items []domain.ContentItem) error {
	_, err := f.record(sentCall{method: "SendMediaGroup", chatID: chatID, items: items})
	return err
}
func (f *fakeTransport) SendReviewNotice(_ context.Context, adminID int64, text, submissionID string) (int, error) {
	return f.record(sentCall{method: "SendReviewNotice", chatID: adminID, text: text, extra: submissionID})
}
func (f *fakeTransport) SendLinkButton(_ context.Context, chatID int64, text, buttonText, url string) (int, error) {
	return f.record(sentCall{method: "SendLinkButton", chatID: chatID, text: text, extra: url})
}
func (f *fakeTransport) EditMessageText(_ context.Context, chatID int64, messageID int, text string) error {
	_, err := f.record(sentCall{method: "EditMessageText", chatID: chatID, text: text})
	return err
}
func (f *fakeTransport) GetChatMember(_ context.Context, channel string, userID int64) (string, error) {
	if f.memberStatus == "" {
		return "member", nil
	}
	return f.memberStatus, nil
}
func (f *fakeTransport) GetChat(_ context.Context, channel string) (ports.ChatInfo, error) {
	// В тестах канал "@channel" живет в чате 1000
	return ports.ChatInfo{ID: 1000, Username: "channel"}, nil
}
