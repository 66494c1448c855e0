package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-relay-bot/internal/core/services"
)

// handleCallback обрабатывает нажатия inline-кнопок. Каждое нажатие сначала
// подтверждается (иначе клиент Telegram крутит спиннер), затем выполняется.
func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil || cq.Message.Chat == nil {
		b.answerCallback(cq.ID, "")
		return
	}
	chatID := cq.Message.Chat.ID
	userID := cq.From.ID
	b.rememberUser(cq.From)

	data := cq.Data
	switch {
	case data == "finish":
		b.answerCallback(cq.ID, "")
		b.finishSubmission(ctx, chatID, userID)

	case data == "cancel":
		b.submissions.CancelBuffer(userID)
		b.answerCallback(cq.ID, "Набор отменен")
		b.sendMessage(tgbotapi.NewMessage(chatID, "🗑 Набор отменен."))

	case strings.HasPrefix(data, "approve_"):
		b.verdict(ctx, cq, strings.TrimPrefix(data, "approve_"), true)

	case strings.HasPrefix(data, "reject_"):
		b.verdict(ctx, cq, strings.TrimPrefix(data, "reject_"), false)

	case strings.HasPrefix(data, "check_follow_"):
		b.answerCallback(cq.ID, "Проверяю подписку...")
		b.deliver(ctx, chatID, userID, cq.From.UserName, strings.TrimPrefix(data, "check_follow_"))

	case data == "preview_broadcast":
		b.answerCallback(cq.ID, "")
		if err := b.broadcasts.Preview(ctx, userID); errors.Is(err, services.ErrNoDraft) {
			b.sendMessage(tgbotapi.NewMessage(chatID, "Черновик рассылки не найден."))
		}

	case data == "confirm_broadcast":
		b.answerCallback(cq.ID, "Рассылаю...")
		started := time.Now()
		record, err := b.broadcasts.Confirm(ctx, userID)
		switch {
		case errors.Is(err, services.ErrNoDraft):
			b.sendMessage(tgbotapi.NewMessage(chatID, "Черновик рассылки не найден."))
		case err != nil:
			b.replyError(chatID, "не удалось выполнить рассылку", err)
		default:
			b.sendMessage(tgbotapi.NewMessage(chatID, fanOutSummary(record.TotalUsers, record.SuccessCount, record.FailedCount, started)))
		}

	case data == "cancel_broadcast":
		b.broadcasts.CancelCapture(userID)
		b.answerCallback(cq.ID, "Рассылка отменена")
		b.sendMessage(tgbotapi.NewMessage(chatID, "Рассылка отменена."))

	default:
		b.answerCallback(cq.ID, "")
		b.logger.Warn("неизвестный callback", slog.String("data", data))
	}
}

// finishSubmission завершает набор пользователя и сообщает результат.
func (b *Bot) finishSubmission(ctx context.Context, chatID, userID int64) {
	outcome, err := b.submissions.Finish(ctx, userID, chatID)
	switch {
	case errors.Is(err, services.ErrNothingToSubmit):
		b.sendMessage(tgbotapi.NewMessage(chatID, "Набор пуст: отправьте хотя бы одно сообщение."))
	case errors.Is(err, services.ErrNoChannels):
		b.sendMessage(tgbotapi.NewMessage(chatID, "Публикация невозможна: не привязан ни один канал."))
	case err != nil:
		b.replyError(chatID, "не удалось завершить набор", err)
	case outcome.Published:
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("✅ Опубликовано (%d элементов).", outcome.ItemCount))
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("Открыть публикацию", outcome.Link)),
		)
		b.sendMessage(msg)
	default:
		b.sendMessage(tgbotapi.NewMessage(chatID,
			fmt.Sprintf("📨 Заявка из %d элементов отправлена на модерацию. Мы сообщим о решении.", outcome.ItemCount)))
	}
}

// verdict применяет решение администратора по заявке.
func (b *Bot) verdict(ctx context.Context, cq *tgbotapi.CallbackQuery, submissionID string, approve bool) {
	err := b.submissions.Verdict(ctx, cq.From.ID, submissionID, approve)
	switch {
	case errors.Is(err, services.ErrAlreadyHandled):
		b.answerCallback(cq.ID, "Заявка уже обработана другим администратором")
	case errors.Is(err, services.ErrPermissionDenied):
		b.answerCallback(cq.ID, "Недостаточно прав")
	case errors.Is(err, services.ErrNoChannels):
		b.answerCallback(cq.ID, "Не привязан ни один канал")
		b.sendMessage(tgbotapi.NewMessage(cq.Message.Chat.ID, "Публикация невозможна: не привязан ни один канал."))
	case err != nil:
		b.answerCallback(cq.ID, "Ошибка, попробуйте позже")
		b.logger.Error("не удалось применить вердикт",
			slog.String("submission_id", submissionID),
			slog.String("error", err.Error()))
	default:
		b.answerCallback(cq.ID, "Готово")
	}
}

// answerCallback подтверждает нажатие кнопки.
func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.logger.Warn("не удалось подтвердить callback", slog.String("error", err.Error()))
	}
}
