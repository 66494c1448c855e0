package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-relay-bot/cmd/bot/config"
	"telegram-relay-bot/internal/collect"
	"telegram-relay-bot/internal/core/services"
	"telegram-relay-bot/internal/domain"
	"telegram-relay-bot/internal/ports"
	"telegram-relay-bot/internal/telegram"
)

// Bot представляет собой основной объект Telegram-бота: принимает обновления,
// раскладывает их по обработчикам команд, контента и callback-кнопок.
type Bot struct {
	api         *tgbotapi.BotAPI
	cfg         config.BotConfig
	submissions *services.SubmissionService
	broadcasts  *services.BroadcastService
	settings    ports.SettingsStore
	users       ports.UserDirectory
	logger      *slog.Logger
}

// NewBot создает и инициализирует новый экземпляр бота поверх готового
// клиента Bot API.
func NewBot(
	api *tgbotapi.BotAPI,
	cfg config.BotConfig,
	submissions *services.SubmissionService,
	broadcasts *services.BroadcastService,
	settings ports.SettingsStore,
	users ports.UserDirectory,
	logger *slog.Logger,
) *Bot {
	b := &Bot{
		api:         api,
		cfg:         cfg,
		submissions: submissions,
		broadcasts:  broadcasts,
		settings:    settings,
		users:       users,
		logger:      logger,
	}

	// Закрытие окна альбома происходит по таймеру, вне цикла обновлений,
	// поэтому подтверждение пользователю отправляется из callback.
	submissions.OnAlbumClosed(func(userID int64, count int) {
		msg := tgbotapi.NewMessage(userID, fmt.Sprintf("📎 Альбом из %d вложений получен. Отправьте еще или нажмите «Завершить».", count))
		msg.ReplyMarkup = collectKeyboard()
		b.sendMessage(msg)
	})

	return b
}

// Start запускает основной цикл обработки обновлений от Telegram.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Бот запущен", slog.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Контекст отменен, останавливаю бота...")
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			// Обработчики ходят в Telegram и могут блокироваться надолго
			// (рассылка с задержками между отправками), поэтому каждый
			// апдейт обрабатывается в своей горутине. Общее состояние
			// защищено мьютексами владельцев, гонка вердиктов разрешается
			// атомарным изъятием заявки.
			go func(update tgbotapi.Update) {
				switch {
				case update.CallbackQuery != nil:
					b.handleCallback(ctx, update.CallbackQuery)
				case update.Message != nil:
					b.handleMessage(ctx, update.Message)
				}
			}(update)
		}
	}
}

// handleMessage обрабатывает входящее сообщение: команды уходят в
// handleCommand, остальное буферизуется как контент.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	b.rememberUser(msg.From)

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	b.handleContent(ctx, msg)
}

// handleContent классифицирует сообщение и добавляет его в буфер: черновик
// рассылки для администратора в режиме захвата, иначе обычный набор.
func (b *Bot) handleContent(_ context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	item := telegram.Classify(msg)
	albumKey := msg.MediaGroupID

	if b.broadcasts.IsCapturing(userID) {
		if b.broadcasts.Buffer(userID, item, albumKey) == collect.Buffered {
			b.sendMessage(tgbotapi.NewMessage(msg.Chat.ID, "Добавлено в рассылку. Отправьте еще или завершите командой /broadcast done."))
		}
		return
	}

	if b.submissions.Buffer(userID, item, albumKey) != collect.Buffered {
		// Альбом: подтверждение уйдет после закрытия окна агрегации.
		return
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, "✅ Добавлено в набор. Отправьте еще или нажмите «Завершить».")
	reply.ReplyMarkup = collectKeyboard()
	b.sendMessage(reply)
}

// rememberUser обновляет каталог пользователей при любом взаимодействии.
func (b *Bot) rememberUser(from *tgbotapi.User) {
	err := b.users.UpsertUser(domain.UserRecord{
		UserID:    from.ID,
		Username:  from.UserName,
		FirstName: from.FirstName,
		LastName:  from.LastName,
	})
	if err != nil {
		b.logger.Warn("не удалось обновить каталог пользователей",
			slog.Int64("user_id", from.ID),
			slog.String("error", err.Error()))
	}
}

// deliver выдает бандл по идентификатору, при необходимости показывая
// пользователю экран обязательной подписки.
func (b *Bot) deliver(ctx context.Context, chatID, userID int64, username, bundleID string) {
	err := b.submissions.Deliver(ctx, userID, username, bundleID)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrFollowRequired):
		b.sendFollowGate(chatID, bundleID)
	case errors.Is(err, services.ErrBundleNotFound):
		b.sendMessage(tgbotapi.NewMessage(chatID, "😕 Ссылка недействительна: контент не найден."))
	default:
		b.logger.Error("не удалось выдать бандл",
			slog.String("bundle_id", bundleID),
			slog.String("error", err.Error()))
		b.sendMessage(tgbotapi.NewMessage(chatID, "Произошла ошибка при выдаче контента. Попробуйте позже."))
	}
}

// sendFollowGate показывает кнопки подписки и повторной проверки.
func (b *Bot) sendFollowGate(chatID int64, bundleID string) {
	ff := b.settings.ForceFollow()
	rows := [][]tgbotapi.InlineKeyboardButton{}
	if ff.ChannelUsername != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("📢 Подписаться", "https://t.me/"+ff.ChannelUsername),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Проверить подписку", "check_follow_"+bundleID),
	))

	msg := tgbotapi.NewMessage(chatID, "Для получения контента подпишитесь на наш канал, затем нажмите «Проверить подписку».")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.sendMessage(msg)
}

// collectKeyboard — кнопки управления текущим набором.
func collectKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📤 Завершить", "finish"),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Отменить", "cancel"),
		),
	)
}

// sendMessage отправляет сообщение с логированием ошибки.
func (b *Bot) sendMessage(msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("не удалось отправить сообщение", slog.String("error", err.Error()))
	}
}

// fanOutSummary формирует сводку по завершенной рассылке.
func fanOutSummary(total, success, failed int, startedAt time.Time) string {
	return fmt.Sprintf("📣 Рассылка завершена за %s.\nПолучателей: %d\nДоставлено: %d\nОшибок: %d",
		time.Since(startedAt).Round(time.Second), total, success, failed)
}
