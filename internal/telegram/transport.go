package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-relay-bot/internal/domain"
	"telegram-relay-bot/internal/ports"
)

// Transport — адаптер Telegram Bot API, реализующий ports.Transport.
// Контекст в сигнатурах зарезервирован для симметрии интерфейса: сама
// библиотека Bot API таймауты держит на уровне HTTP-клиента.
type Transport struct {
	api    *tgbotapi.BotAPI
	logger *slog.Logger
}

// NewTransport создает адаптер поверх готового клиента Bot API.
func NewTransport(api *tgbotapi.BotAPI, logger *slog.Logger) *Transport {
	return &Transport{api: api, logger: logger}
}

func (t *Transport) send(msg tgbotapi.Chattable, reason string) (int, error) {
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, &ports.DeliveryError{Reason: reason, Err: err}
	}
	return sent.MessageID, nil
}

func (t *Transport) SendText(_ context.Context, chatID int64, text string) (int, error) {
	return t.send(tgbotapi.NewMessage(chatID, text), "text")
}

func (t *Transport) SendHTML(_ context.Context, chatID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	return t.send(msg, "html")
}

func (t *Transport) SendPhoto(_ context.Context, chatID int64, fileID, caption string) (int, error) {
	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
	msg.Caption = caption
	return t.send(msg, "photo")
}

func (t *Transport) SendVideo(_ context.Context, chatID int64, fileID, caption string) (int, error) {
	msg := tgbotapi.NewVideo(chatID, tgbotapi.FileID(fileID))
	msg.Caption = caption
	return t.send(msg, "video")
}

// SendDocument пересылает документ по file_id. Имя файла Bot API сохраняет
// из оригинала, поэтому fileName здесь только для протокола вызова.
func (t *Transport) SendDocument(_ context.Context, chatID int64, fileID, caption, fileName string) (int, error) {
	_ = fileName
	msg := tgbotapi.NewDocument(chatID, tgbotapi.FileID(fileID))
	msg.Caption = caption
	return t.send(msg, "document")
}

func (t *Transport) SendAudio(_ context.Context, chatID int64, fileID, caption string) (int, error) {
	msg := tgbotapi.NewAudio(chatID, tgbotapi.FileID(fileID))
	msg.Caption = caption
	return t.send(msg, "audio")
}

func (t *Transport) SendVoice(_ context.Context, chatID int64, fileID string) (int, error) {
	return t.send(tgbotapi.NewVoice(chatID, tgbotapi.FileID(fileID)), "voice")
}

func (t *Transport) SendSticker(_ context.Context, chatID int64, fileID string) (int, error) {
	return t.send(tgbotapi.NewSticker(chatID, tgbotapi.FileID(fileID)), "sticker")
}

func (t *Transport) SendAnimation(_ context.Context, chatID int64, fileID, caption string) (int, error) {
	msg := tgbotapi.NewAnimation(chatID, tgbotapi.FileID(fileID))
	msg.Caption = caption
	return t.send(msg, "animation")
}

func (t *Transport) SendLocation(_ context.Context, chatID int64, latitude, longitude float64) (int, error) {
	return t.send(tgbotapi.NewLocation(chatID, latitude, longitude), "location")
}

func (t *Transport) SendContact(_ context.Context, chatID int64, phone, firstName, lastName string) (int, error) {
	msg := tgbotapi.NewContact(chatID, phone, firstName)
	msg.LastName = lastName
	return t.send(msg, "contact")
}

func (t *Transport) SendDice(_ context.Context, chatID int64, emoji string) (int, error) {
	return t.send(tgbotapi.NewDiceWithEmoji(chatID, emoji), "dice")
}

func (t *Transport) SendVenue(_ context.Context, chatID int64, latitude, longitude float64, title, address string) (int, error) {
	return t.send(tgbotapi.NewVenue(chatID, title, address, latitude, longitude), "venue")
}

func (t *Transport) SendVideoNote(_ context.Context, chatID int64, fileID string) (int, error) {
	return t.send(tgbotapi.NewVideoNote(chatID, 0, tgbotapi.FileID(fileID)), "video_note")
}

// SendMediaGroup отправляет альбом одним вызовом API. Элементы, не являющиеся
// фото или видео, пропускаются с предупреждением: агрегатор альбомов их сюда
// не пропускает, так что это защитная ветка.
func (t *Transport) SendMediaGroup(_ context.Context, chatID int64, items []domain.ContentItem) error {
	media := make([]interface{}, 0, len(items))
	for _, item := range items {
		switch item.Type {
		case domain.ItemPhoto:
			m := tgbotapi.NewInputMediaPhoto(tgbotapi.FileID(item.FileID))
			m.Caption = item.Caption
			media = append(media, m)
		case domain.ItemVideo:
			m := tgbotapi.NewInputMediaVideo(tgbotapi.FileID(item.FileID))
			m.Caption = item.Caption
			media = append(media, m)
		default:
			t.logger.Warn("элемент альбома не является фото или видео, пропущен",
				slog.String("type", string(item.Type)))
		}
	}
	if len(media) == 0 {
		return nil
	}
	if _, err := t.api.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media)); err != nil {
		return &ports.DeliveryError{Reason: "media_group", Err: err}
	}
	return nil
}

func (t *Transport) SendReviewNotice(_ context.Context, adminID int64, text, submissionID string) (int, error) {
	msg := tgbotapi.NewMessage(adminID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Одобрить", "approve_"+submissionID),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отклонить", "reject_"+submissionID),
		),
	)
	return t.send(msg, "review_notice")
}

func (t *Transport) SendLinkButton(_ context.Context, chatID int64, text, buttonText, url string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(buttonText, url)),
	)
	return t.send(msg, "link_button")
}

func (t *Transport) EditMessageText(_ context.Context, chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := t.api.Request(edit); err != nil {
		return &ports.DeliveryError{Reason: "edit_message", Err: err}
	}
	return nil
}

// chatConfig переводит строковый идентификатор канала в конфигурацию Bot API:
// "@username" уходит как username, числовая строка — как chat_id.
func chatConfig(channel string) tgbotapi.ChatConfig {
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		return tgbotapi.ChatConfig{ChatID: id}
	}
	return tgbotapi.ChatConfig{SuperGroupUsername: channel}
}

func (t *Transport) GetChatMember(_ context.Context, channel string, userID int64) (string, error) {
	cfg := chatConfig(channel)
	member, err := t.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID:             cfg.ChatID,
			SuperGroupUsername: cfg.SuperGroupUsername,
			UserID:             userID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("не удалось получить статус участника %s: %w", channel, err)
	}
	return member.Status, nil
}

func (t *Transport) GetChat(_ context.Context, channel string) (ports.ChatInfo, error) {
	chat, err := t.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: chatConfig(channel)})
	if err != nil {
		return ports.ChatInfo{}, fmt.Errorf("не удалось получить чат %s: %w", channel, err)
	}
	return ports.ChatInfo{ID: chat.ID, Title: chat.Title, Username: chat.UserName}, nil
}
