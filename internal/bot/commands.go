package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-relay-bot/internal/core/services"
	"telegram-relay-bot/internal/domain"
)

const (
	startCommand              = "start"
	helpCommand               = "help"
	commandsCommand           = "commands"
	introCommand              = "intro"
	setIntroCommand           = "setintro"
	addAdminCommand           = "addadmin"
	delAdminCommand           = "deladmin"
	addChannelCommand         = "addchannel"
	rmChannelCommand          = "rmchannel"
	listChannelsCommand       = "listchannels"
	addBackupChannelCommand   = "addbackupchannel"
	rmBackupChannelCommand    = "rmbackupchannel"
	listBackupChannelsCommand = "listbackupchannels"
	forceFollowCommand        = "forcefollow"
	broadcastCommand          = "broadcast"
)

// handleCommand обрабатывает команды. Административные команды молча
// проверяют права и отвечают отказом посторонним.
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	userID := msg.From.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case startCommand:
		if args != "" {
			b.deliver(ctx, chatID, userID, msg.From.UserName, args)
			return
		}
		b.sendMessage(tgbotapi.NewMessage(chatID, b.settings.Intro()))

	case helpCommand:
		b.sendMessage(tgbotapi.NewMessage(chatID, helpText))

	case commandsCommand:
		if !b.requireAdmin(chatID, userID) {
			return
		}
		b.sendMessage(tgbotapi.NewMessage(chatID, adminCommandsText))

	case introCommand:
		b.sendMessage(tgbotapi.NewMessage(chatID, b.settings.Intro()))

	case setIntroCommand:
		if !b.requireAdmin(chatID, userID) {
			return
		}
		if args == "" {
			b.sendMessage(tgbotapi.NewMessage(chatID, "Использование: /setintro <текст приветствия>"))
			return
		}
		if err := b.settings.SetIntro(args); err != nil {
			b.replyError(chatID, "не удалось сохранить приветствие", err)
			return
		}
		b.sendMessage(tgbotapi.NewMessage(chatID, "✅ Приветствие обновлено."))

	case addAdminCommand:
		b.handleAdminList(chatID, userID, args, true)

	case delAdminCommand:
		b.handleAdminList(chatID, userID, args, false)

	case addChannelCommand:
		b.handleChannelList(chatID, userID, args, b.settings.AddChannel, "✅ Канал %s привязан.")

	case rmChannelCommand:
		b.handleChannelList(chatID, userID, args, b.unbindChannel(b.settings.RemoveChannel), "✅ Канал %s отвязан.")

	case listChannelsCommand:
		if !b.requireAdmin(chatID, userID) {
			return
		}
		b.sendMessage(tgbotapi.NewMessage(chatID, formatChannels("Привязанные каналы", b.settings.Channels())))

	case addBackupChannelCommand:
		b.handleChannelList(chatID, userID, args, b.settings.AddBackupChannel, "✅ Резервный канал %s добавлен.")

	case rmBackupChannelCommand:
		b.handleChannelList(chatID, userID, args, b.unbindChannel(b.settings.RemoveBackupChannel), "✅ Резервный канал %s удален.")

	case listBackupChannelsCommand:
		if !b.requireAdmin(chatID, userID) {
			return
		}
		b.sendMessage(tgbotapi.NewMessage(chatID, formatChannels("Резервные каналы", b.settings.BackupChannels())))

	case forceFollowCommand:
		b.handleForceFollow(chatID, userID, args)

	case broadcastCommand:
		b.handleBroadcast(ctx, chatID, userID, args)

	default:
		b.sendMessage(tgbotapi.NewMessage(chatID, "Я не знаю такой команды. Список: /help"))
	}
}

// handleAdminList добавляет или удаляет администратора по числовому ID.
func (b *Bot) handleAdminList(chatID, userID int64, args string, add bool) {
	if !b.requireAdmin(chatID, userID) {
		return
	}
	target, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		b.sendMessage(tgbotapi.NewMessage(chatID, "Укажите числовой ID пользователя, например: /addadmin 123456789"))
		return
	}
	if add {
		err = b.settings.AddAdmin(target)
	} else {
		if target == userID {
			b.sendMessage(tgbotapi.NewMessage(chatID, "Нельзя снять права с самого себя."))
			return
		}
		err = b.settings.RemoveAdmin(target)
	}
	if err != nil {
		b.replyError(chatID, "не удалось обновить список администраторов", err)
		return
	}
	b.sendMessage(tgbotapi.NewMessage(chatID, fmt.Sprintf("✅ Список администраторов обновлен (%d).", target)))
}

// unbindChannel оборачивает удаление канала сбросом его кэшированного
// разрешения.
func (b *Bot) unbindChannel(remove func(string) error) func(string) error {
	return func(channel string) error {
		if err := remove(channel); err != nil {
			return err
		}
		b.submissions.InvalidateChannel(channel)
		return nil
	}
}

// handleChannelList — общий обработчик команд привязки/отвязки каналов.
func (b *Bot) handleChannelList(chatID, userID int64, args string, op func(string) error, okFormat string) {
	if !b.requireAdmin(chatID, userID) {
		return
	}
	if args == "" {
		b.sendMessage(tgbotapi.NewMessage(chatID, "Укажите канал: @username или числовой ID."))
		return
	}
	if err := op(args); err != nil {
		b.replyError(chatID, "не удалось обновить список каналов", err)
		return
	}
	b.sendMessage(tgbotapi.NewMessage(chatID, fmt.Sprintf(okFormat, args)))
}

// handleForceFollow управляет обязательной подпиской:
// on|off|set <канал> [username]|show|stats|reset.
func (b *Bot) handleForceFollow(chatID, userID int64, args string) {
	if !b.requireAdmin(chatID, userID) {
		return
	}

	fields := strings.Fields(args)
	sub := ""
	if len(fields) > 0 {
		sub = fields[0]
	}

	cfg := b.settings.ForceFollow()
	switch sub {
	case "on":
		if cfg.ChannelID == "" {
			b.sendMessage(tgbotapi.NewMessage(chatID, "Сначала задайте канал: /forcefollow set <канал> [username]"))
			return
		}
		cfg.Enabled = true
		if err := b.settings.SetForceFollow(cfg); err != nil {
			b.replyError(chatID, "не удалось включить обязательную подписку", err)
			return
		}
		b.sendMessage(tgbotapi.NewMessage(chatID, "✅ Обязательная подписка включена."))

	case "off":
		cfg.Enabled = false
		if err := b.settings.SetForceFollow(cfg); err != nil {
			b.replyError(chatID, "не удалось выключить обязательную подписку", err)
			return
		}
		b.sendMessage(tgbotapi.NewMessage(chatID, "✅ Обязательная подписка выключена."))

	case "set":
		if len(fields) < 2 {
			b.sendMessage(tgbotapi.NewMessage(chatID, "Использование: /forcefollow set <канал> [username без @]"))
			return
		}
		cfg.ChannelID = fields[1]
		username := strings.TrimPrefix(fields[1], "@")
		if len(fields) > 2 {
			username = strings.TrimPrefix(fields[2], "@")
		}
		cfg.ChannelUsername = username
		if err := b.settings.SetForceFollow(cfg); err != nil {
			b.replyError(chatID, "не удалось сохранить канал подписки", err)
			return
		}
		b.sendMessage(tgbotapi.NewMessage(chatID, fmt.Sprintf("✅ Канал подписки: %s. Включить: /forcefollow on", cfg.ChannelID)))

	case "stats":
		stats := b.settings.FollowStats()
		b.sendMessage(tgbotapi.NewMessage(chatID, fmt.Sprintf(
			"📊 Статистика подписок\nВсего: %d\nСегодня: %d", stats.TotalFollows, stats.TodayFollows)))

	case "reset":
		if err := b.settings.ResetFollowStats(); err != nil {
			b.replyError(chatID, "не удалось сбросить статистику", err)
			return
		}
		b.sendMessage(tgbotapi.NewMessage(chatID, "✅ Статистика подписок сброшена."))

	case "show", "":
		state := "выключена"
		if cfg.Enabled {
			state = "включена"
		}
		text := fmt.Sprintf("Обязательная подписка: %s\nКанал: %s", state, orDash(cfg.ChannelID))
		if sub == "" {
			text += "\n\nПодкоманды: on, off, set, show, stats, reset"
		}
		b.sendMessage(tgbotapi.NewMessage(chatID, text))

	default:
		b.sendMessage(tgbotapi.NewMessage(chatID, "Неизвестная подкоманда. Доступны: on, off, set, show, stats, reset"))
	}
}

// handleBroadcast разбирает подкоманды рассылки. Произвольный текст после
// команды уходит как быстрая текстовая рассылка.
func (b *Bot) handleBroadcast(ctx context.Context, chatID, userID int64, args string) {
	if !b.requireAdmin(chatID, userID) {
		return
	}

	sub, rest, _ := strings.Cut(args, " ")
	rest = strings.TrimSpace(rest)

	switch sub {
	case "":
		b.sendMessage(tgbotapi.NewMessage(chatID, broadcastUsageText))

	case "start":
		if err := b.broadcasts.StartCapture(userID, services.KindBroadcast); err != nil {
			b.replyError(chatID, "не удалось начать захват рассылки", err)
			return
		}
		b.sendMessage(tgbotapi.NewMessage(chatID, "Режим рассылки: отправьте сообщения, затем /broadcast done. Отмена: /broadcast cancel"))

	case "done":
		count, err := b.broadcasts.FinishCapture(userID)
		switch {
		case errors.Is(err, services.ErrNoDraft):
			b.sendMessage(tgbotapi.NewMessage(chatID, "Захват рассылки не начат. Начните с /broadcast start"))
		case errors.Is(err, services.ErrNothingToSubmit):
			b.sendMessage(tgbotapi.NewMessage(chatID, "Черновик пуст: отправьте хотя бы одно сообщение."))
		case err != nil:
			b.replyError(chatID, "не удалось завершить захват", err)
		default:
			msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Черновик готов: %d элементов. Разослать всем пользователям (%d)?", count, b.users.UserCount()))
			msg.ReplyMarkup = broadcastConfirmKeyboard()
			b.sendMessage(msg)
		}

	case "cancel":
		b.broadcasts.CancelCapture(userID)
		b.sendMessage(tgbotapi.NewMessage(chatID, "Рассылка отменена."))

	case "notify":
		if rest == "" {
			b.sendMessage(tgbotapi.NewMessage(chatID, "Использование: /broadcast notify <текст уведомления>"))
			return
		}
		started := time.Now()
		record, err := b.broadcasts.Notify(ctx, userID, rest)
		if err != nil {
			b.replyError(chatID, "не удалось разослать уведомление", err)
			return
		}
		b.sendMessage(tgbotapi.NewMessage(chatID, fanOutSummary(record.TotalUsers, record.SuccessCount, record.FailedCount, started)))

	case "history":
		b.sendMessage(tgbotapi.NewMessage(chatID, formatBroadcastHistory(b.broadcasts.History())))

	case "status", "stats":
		capture := "нет"
		if b.broadcasts.IsCapturing(userID) {
			capture = "идет"
		}
		b.sendMessage(tgbotapi.NewMessage(chatID, fmt.Sprintf(
			"Получателей в каталоге: %d\nВыполнено рассылок: %d\nЗахват черновика: %s",
			b.users.UserCount(), len(b.broadcasts.History()), capture)))

	default:
		// Весь args целиком — текст быстрой рассылки.
		started := time.Now()
		record, err := b.broadcasts.QuickText(ctx, userID, args)
		if err != nil {
			b.replyError(chatID, "не удалось выполнить рассылку", err)
			return
		}
		b.sendMessage(tgbotapi.NewMessage(chatID, fanOutSummary(record.TotalUsers, record.SuccessCount, record.FailedCount, started)))
	}
}

// requireAdmin проверяет права и отвечает отказом посторонним.
func (b *Bot) requireAdmin(chatID, userID int64) bool {
	if b.settings.IsAdmin(userID) {
		return true
	}
	b.sendMessage(tgbotapi.NewMessage(chatID, "⛔ Команда доступна только администраторам."))
	return false
}

func (b *Bot) replyError(chatID int64, context string, err error) {
	b.logger.Error(context, slog.String("error", err.Error()))
	b.sendMessage(tgbotapi.NewMessage(chatID, "Произошла ошибка: "+context+"."))
}

func broadcastConfirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👁 Предпросмотр", "preview_broadcast"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📣 Разослать", "confirm_broadcast"),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Отменить", "cancel_broadcast"),
		),
	)
}

func formatChannels(title string, channels []string) string {
	if len(channels) == 0 {
		return title + ": список пуст."
	}
	var sb strings.Builder
	sb.WriteString(title + ":\n")
	for i, ch := range channels {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, ch)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatBroadcastHistory показывает последние рассылки, свежие сверху.
func formatBroadcastHistory(records []domain.BroadcastRecord) string {
	if len(records) == 0 {
		return "Рассылок еще не было."
	}
	var sb strings.Builder
	sb.WriteString("Последние рассылки:\n")
	shown := 0
	for i := len(records) - 1; i >= 0 && shown < 10; i-- {
		r := records[i]
		fmt.Fprintf(&sb, "%s — %s: %d/%d доставлено\n",
			r.Timestamp.Format("02.01.2006 15:04"), r.Kind, r.SuccessCount, r.TotalUsers)
		shown++
	}
	return strings.TrimRight(sb.String(), "\n")
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

const helpText = "Отправьте мне сообщения любого типа (текст, фото, видео, альбомы и т.д.), " +
	"затем нажмите «Завершить». После одобрения администратором контент будет опубликован, " +
	"а вы получите постоянную ссылку на него.\n\nКоманды:\n/start — приветствие\n/intro — показать приветствие\n/help — эта справка"

const adminCommandsText = `Административные команды:
/setintro <текст> — изменить приветствие
/addadmin <id>, /deladmin <id> — администраторы
/addchannel, /rmchannel, /listchannels — каналы публикации
/addbackupchannel, /rmbackupchannel, /listbackupchannels — резервные каналы
/forcefollow on|off|set|show|stats|reset — обязательная подписка
/broadcast — рассылки (см. /broadcast)`

const broadcastUsageText = `Рассылки:
/broadcast <текст> — быстрая текстовая рассылка
/broadcast notify <текст> — важное уведомление
/broadcast start — захват произвольного контента
/broadcast done — завершить захват и подтвердить
/broadcast cancel — отменить захват
/broadcast status — состояние рассылок
/broadcast history — последние рассылки`
