package replay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"telegram-relay-bot/internal/domain"
	"telegram-relay-bot/internal/ports"
)

// Engine детерминированно воспроизводит записи бандла в указанный чат,
// сохраняя исходный порядок и группировку альбомов.
type Engine struct {
	transport ports.Transport
	logger    *slog.Logger
}

// NewEngine создает движок воспроизведения поверх транспорта.
func NewEngine(transport ports.Transport, logger *slog.Logger) *Engine {
	return &Engine{transport: transport, logger: logger}
}

// Replay отправляет все записи по порядку. Доставка негарантированная:
// сбой одного элемента логируется и не прерывает остальные — одна протухшая
// ссылка на файл не должна топить весь бандл. Возвращается первая встреченная
// ошибка (для подсчета неудачных получателей при рассылке).
func (e *Engine) Replay(ctx context.Context, entries []domain.Entry, chatID int64) error {
	var firstErr error
	for i, entry := range entries {
		var err error
		switch {
		case entry.Group != nil:
			err = e.transport.SendMediaGroup(ctx, chatID, entry.Group.Items)
		case entry.Item != nil:
			err = e.sendItem(ctx, chatID, *entry.Item)
		}
		if err != nil {
			e.logger.Warn("не удалось доставить элемент бандла",
				slog.Int64("chat_id", chatID),
				slog.Int("index", i),
				slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// sendItem отправляет один элемент, подбирая операцию транспорта по типу.
// Матч тотальный: новый тип контента — это ошибка компиляции здесь, а не
// молчаливый проход в unsupported.
func (e *Engine) sendItem(ctx context.Context, chatID int64, item domain.ContentItem) error {
	var err error
	switch item.Type {
	case domain.ItemText:
		_, err = e.transport.SendText(ctx, chatID, item.Text)
	case domain.ItemPhoto:
		_, err = e.transport.SendPhoto(ctx, chatID, item.FileID, item.Caption)
	case domain.ItemVideo:
		_, err = e.transport.SendVideo(ctx, chatID, item.FileID, item.Caption)
	case domain.ItemDocument:
		_, err = e.transport.SendDocument(ctx, chatID, item.FileID, item.Caption, item.FileName)
	case domain.ItemAudio:
		_, err = e.transport.SendAudio(ctx, chatID, item.FileID, item.Caption)
	case domain.ItemVoice:
		_, err = e.transport.SendVoice(ctx, chatID, item.FileID)
	case domain.ItemSticker:
		_, err = e.transport.SendSticker(ctx, chatID, item.FileID)
	case domain.ItemAnimation:
		_, err = e.transport.SendAnimation(ctx, chatID, item.FileID, item.Caption)
	case domain.ItemLocation:
		_, err = e.transport.SendLocation(ctx, chatID, item.Latitude, item.Longitude)
	case domain.ItemContact:
		_, err = e.transport.SendContact(ctx, chatID, item.PhoneNumber, item.FirstName, item.LastName)
	case domain.ItemPoll:
		// Опрос нельзя переслать по file_id; воспроизводим текстом.
		text := fmt.Sprintf("[Опрос] %s\nВарианты: %s", item.Question, strings.Join(item.Options, ", "))
		_, err = e.transport.SendText(ctx, chatID, text)
	case domain.ItemDice:
		_, err = e.transport.SendDice(ctx, chatID, item.Emoji)
	case domain.ItemVenue:
		_, err = e.transport.SendVenue(ctx, chatID, item.Latitude, item.Longitude, item.Title, item.Address)
	case domain.ItemVideoNote:
		_, err = e.transport.SendVideoNote(ctx, chatID, item.FileID)
	case domain.ItemUnsupported, domain.ItemMediaGroup:
		_, err = e.transport.SendText(ctx, chatID, "[неподдерживаемый тип контента]")
	default:
		_, err = e.transport.SendText(ctx, chatID, "[неподдерживаемый тип контента]")
	}
	return err
}
