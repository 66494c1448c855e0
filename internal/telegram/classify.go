package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-relay-bot/internal/domain"
)

// Classify нормализует входящее сообщение транспорта в ContentItem. Функция
// чистая и тотальная: любая форма сообщения дает результат, нераспознанные
// формы превращаются в unsupported, ошибок не бывает. Порядок проверок
// фиксирован на случай сообщений, у которых заполнено несколько полей
// (например, venue-сообщения несут и location).
func Classify(msg *tgbotapi.Message) domain.ContentItem {
	switch {
	case msg == nil:
		return domain.ContentItem{Type: domain.ItemUnsupported}
	case msg.Text != "":
		return domain.ContentItem{Type: domain.ItemText, Text: msg.Text}
	case len(msg.Photo) > 0:
		// Варианты разрешения приходят по возрастанию; последний — максимальное.
		return domain.ContentItem{
			Type:    domain.ItemPhoto,
			FileID:  msg.Photo[len(msg.Photo)-1].FileID,
			Caption: msg.Caption,
		}
	case msg.Video != nil:
		return domain.ContentItem{Type: domain.ItemVideo, FileID: msg.Video.FileID, Caption: msg.Caption}
	case msg.Document != nil:
		return domain.ContentItem{
			Type:     domain.ItemDocument,
			FileID:   msg.Document.FileID,
			Caption:  msg.Caption,
			FileName: msg.Document.FileName,
		}
	case msg.Audio != nil:
		return domain.ContentItem{Type: domain.ItemAudio, FileID: msg.Audio.FileID, Caption: msg.Caption}
	case msg.Voice != nil:
		return domain.ContentItem{Type: domain.ItemVoice, FileID: msg.Voice.FileID}
	case msg.Sticker != nil:
		return domain.ContentItem{Type: domain.ItemSticker, FileID: msg.Sticker.FileID}
	case msg.Animation != nil:
		return domain.ContentItem{Type: domain.ItemAnimation, FileID: msg.Animation.FileID, Caption: msg.Caption}
	case msg.Location != nil:
		return domain.ContentItem{
			Type:      domain.ItemLocation,
			Latitude:  msg.Location.Latitude,
			Longitude: msg.Location.Longitude,
		}
	case msg.Contact != nil:
		return domain.ContentItem{
			Type:        domain.ItemContact,
			PhoneNumber: msg.Contact.PhoneNumber,
			FirstName:   msg.Contact.FirstName,
			LastName:    msg.Contact.LastName,
		}
	case msg.Poll != nil:
		options := make([]string, 0, len(msg.Poll.Options))
		for _, o := range msg.Poll.Options {
			options = append(options, o.Text)
		}
		return domain.ContentItem{Type: domain.ItemPoll, Question: msg.Poll.Question, Options: options}
	case msg.Dice != nil:
		return domain.ContentItem{Type: domain.ItemDice, Emoji: msg.Dice.Emoji, Value: msg.Dice.Value}
	case msg.Venue != nil:
		return domain.ContentItem{
			Type:      domain.ItemVenue,
			Latitude:  msg.Venue.Location.Latitude,
			Longitude: msg.Venue.Location.Longitude,
			Title:     msg.Venue.Title,
			Address:   msg.Venue.Address,
		}
	case msg.VideoNote != nil:
		return domain.ContentItem{Type: domain.ItemVideoNote, FileID: msg.VideoNote.FileID}
	default:
		return domain.ContentItem{Type: domain.ItemUnsupported}
	}
}
