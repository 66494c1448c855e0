package ports

import (
	"context"
	"fmt"

	"telegram-relay-bot/internal/domain"
)

// DeliveryError — ошибка доставки одного сообщения через транспорт.
type DeliveryError struct {
	Reason string
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ошибка доставки: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("ошибка доставки: %s", e.Reason)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// ChatInfo — минимальные сведения о чате или пользователе.
type ChatInfo struct {
	ID       int64
	Title    string
	Username string
}

// Transport определяет интерфейс транспорта сообщений. Методы возвращают
// идентификатор отправленного сообщения там, где он нужен вызывающей стороне.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string) (int, error)
	SendHTML(ctx context.Context, chatID int64, text string) (int, error)
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string) (int, error)
	SendVideo(ctx context.Context, chatID int64, fileID, caption string) (int, error)
	SendDocument(ctx context.Context, chatID int64, fileID, caption, fileName string) (int, error)
	SendAudio(ctx context.Context, chatID int64, fileID, caption string) (int, error)
	SendVoice(ctx context.Context, chatID int64, fileID string) (int, error)
	SendSticker(ctx context.Context, chatID int64, fileID string) (int, error)
	SendAnimation(ctx context.Context, chatID int64, fileID, caption string) (int, error)
	SendLocation(ctx context.Context, chatID int64, latitude, longitude float64) (int, error)
	SendContact(ctx context.Context, chatID int64, phone, firstName, lastName string) (int, error)
	SendDice(ctx context.Context, chatID int64, emoji string) (int, error)
	SendVenue(ctx context.Context, chatID int64, latitude, longitude float64, title, address string) (int, error)
	SendVideoNote(ctx context.Context, chatID int64, fileID string) (int, error)
	// SendMediaGroup отправляет альбом одним вызовом. В items допускаются
	// только фото и видео.
	SendMediaGroup(ctx context.Context, chatID int64, items []domain.ContentItem) error

	// SendReviewNotice отправляет администратору уведомление о новой заявке
	// с кнопками "одобрить/отклонить" и возвращает идентификатор сообщения.
	SendReviewNotice(ctx context.Context, adminID int64, text, submissionID string) (int, error)
	// SendLinkButton отправляет текст с кнопкой-ссылкой.
	SendLinkButton(ctx context.Context, chatID int64, text, buttonText, url string) (int, error)
	// EditMessageText заменяет текст ранее отправленного сообщения.
	EditMessageText(ctx context.Context, chatID int64, messageID int, text string) error

	// GetChatMember возвращает статус пользователя в канале
	// ("member", "administrator", "creator", "left", ...). Канал задается
	// либо как @username, либо как числовой идентификатор в строке.
	GetChatMember(ctx context.Context, channel string, userID int64) (string, error)
	// GetChat возвращает сведения о чате или канале; идентификатор задается
	// так же, как в GetChatMember.
	GetChat(ctx context.Context, channel string) (ChatInfo, error)
}
