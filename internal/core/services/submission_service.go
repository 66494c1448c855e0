package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"telegram-relay-bot/internal/cache"
	"telegram-relay-bot/internal/collect"
	"telegram-relay-bot/internal/domain"
	"telegram-relay-bot/internal/moderation"
	"telegram-relay-bot/internal/ports"
	"telegram-relay-bot/internal/replay"
)

// FinishOutcome — результат завершения набора: либо немедленная публикация
// (администратор), либо заявка ушла на модерацию.
type FinishOutcome struct {
	Published    bool
	Link         string
	SubmissionID string
	ItemCount    int
}

// SubmissionService реализует основной конвейер: буферизация контента,
// модерация, публикация в каналы и выдача по ссылке.
type SubmissionService struct {
	transport   ports.Transport
	sessions    *collect.SessionStore
	pending     *moderation.Store
	bundles     ports.BundleStore
	settings    ports.SettingsStore
	replayer    *replay.Engine
	chats       *cache.ChatCache
	botUsername string
	logger      *slog.Logger
}

// chatCacheTTL — срок жизни разрешенного идентификатора канала. Привязка
// канала к его chat_id меняется только при пересоздании канала.
const chatCacheTTL = 30 * time.Minute

// NewSubmissionService собирает сервис из его зависимостей. botUsername нужен
// для построения глубоких ссылок вида https://t.me/<bot>?start=<id>.
func NewSubmissionService(
	transport ports.Transport,
	sessions *collect.SessionStore,
	pending *moderation.Store,
	bundles ports.BundleStore,
	settings ports.SettingsStore,
	replayer *replay.Engine,
	chats *cache.ChatCache,
	botUsername string,
	logger *slog.Logger,
) *SubmissionService {
	return &SubmissionService{
		transport:   transport,
		sessions:    sessions,
		pending:     pending,
		bundles:     bundles,
		settings:    settings,
		replayer:    replayer,
		chats:       chats,
		botUsername: botUsername,
		logger:      logger,
	}
}

// Buffer добавляет элемент в буфер пользователя. albumKey непустой для
// сообщений, входящих в альбом.
func (s *SubmissionService) Buffer(userID int64, item domain.ContentItem, albumKey string) collect.AppendResult {
	return s.sessions.Append(userID, item, albumKey)
}

// CancelBuffer сбрасывает буфер пользователя без отправки.
func (s *SubmissionService) CancelBuffer(userID int64) {
	s.sessions.Cancel(userID)
}

// OnAlbumClosed пробрасывает подписку на закрытие окна альбома.
func (s *SubmissionService) OnAlbumClosed(fn func(userID int64, count int)) {
	s.sessions.OnAlbumClosed(fn)
}

// InvalidateChannel сбрасывает кэшированное разрешение канала. Вызывается
// при отвязке: заново привязанный канал не должен использовать устаревший
// chat_id.
func (s *SubmissionService) InvalidateChannel(channel string) {
	s.chats.Invalidate(channel)
}

// PendingCount возвращает количество заявок, ожидающих вердикта.
func (s *SubmissionService) PendingCount() int {
	return s.pending.Len()
}

// Finish завершает набор пользователя. Администраторы публикуются сразу,
// минуя модерацию; остальные попадают в очередь заявок с рассылкой
// уведомлений всем администраторам.
func (s *SubmissionService) Finish(ctx context.Context, userID, chatID int64) (FinishOutcome, error) {
	entries := s.sessions.Finish(userID)
	if len(entries) == 0 {
		return FinishOutcome{}, ErrNothingToSubmit
	}

	count := itemCount(entries)

	if s.settings.IsAdmin(userID) {
		link, err := s.publish(ctx, entries)
		if err != nil {
			return FinishOutcome{}, err
		}
		return FinishOutcome{Published: true, Link: link, ItemCount: count}, nil
	}

	sub := &moderation.Submission{
		ID:        uuid.NewString(),
		AuthorID:  userID,
		Entries:   entries,
		ChatID:    chatID,
		NoticeIDs: make(map[int64]int),
		CreatedAt: time.Now(),
	}

	admins := s.settings.Admins()
	if len(admins) == 0 {
		// Без администраторов модерация невозможна; заявку не теряем,
		// а публикуем напрямую.
		s.logger.Warn("нет администраторов, заявка публикуется без модерации",
			slog.Int64("user_id", userID))
		link, err := s.publish(ctx, entries)
		if err != nil {
			return FinishOutcome{}, err
		}
		return FinishOutcome{Published: true, Link: link, ItemCount: count}, nil
	}

	notice := fmt.Sprintf("📨 Новая заявка от пользователя %d\nЭлементов: %d\n\nОдобрить публикацию?", userID, count)
	for _, adminID := range admins {
		// Администратор видит сам контент, затем карточку с кнопками вердикта.
		if err := s.replayer.Replay(ctx, entries, adminID); err != nil {
			s.logger.Warn("не удалось показать содержимое заявки администратору",
				slog.Int64("admin_id", adminID),
				slog.String("error", err.Error()))
		}
		msgID, err := s.transport.SendReviewNotice(ctx, adminID, notice, sub.ID)
		if err != nil {
			s.logger.Warn("не удалось уведомить администратора о заявке",
				slog.Int64("admin_id", adminID),
				slog.String("error", err.Error()))
			continue
		}
		sub.NoticeIDs[adminID] = msgID
	}
	s.pending.Put(sub)

	return FinishOutcome{SubmissionID: sub.ID, ItemCount: count}, nil
}

// Verdict применяет решение администратора к заявке. Побеждает первый
// вердикт; повторный возвращает ErrAlreadyHandled.
func (s *SubmissionService) Verdict(ctx context.Context, adminID int64, submissionID string, approve bool) error {
	if !s.settings.IsAdmin(adminID) {
		return ErrPermissionDenied
	}

	sub, ok := s.pending.Take(submissionID)
	if !ok {
		return ErrAlreadyHandled
	}

	verdict := fmt.Sprintf("❌ Заявка отклонена администратором %d", adminID)
	if approve {
		verdict = fmt.Sprintf("✅ Заявка одобрена администратором %d", adminID)
	}
	for noticeAdmin, msgID := range sub.NoticeIDs {
		if err := s.transport.EditMessageText(ctx, noticeAdmin, msgID, verdict); err != nil {
			s.logger.Warn("не удалось обновить уведомление о заявке",
				slog.Int64("admin_id", noticeAdmin),
				slog.String("error", err.Error()))
		}
	}

	if !approve {
		if _, err := s.transport.SendText(ctx, sub.ChatID, "❌ Ваша заявка отклонена администратором."); err != nil {
			s.logger.Warn("не удалось сообщить автору об отклонении",
				slog.Int64("chat_id", sub.ChatID),
				slog.String("error", err.Error()))
		}
		return nil
	}

	link, err := s.publish(ctx, sub.Entries)
	if err != nil {
		return err
	}
	if _, err := s.transport.SendLinkButton(ctx, sub.ChatID,
		"✅ Ваша заявка одобрена и опубликована.", "Открыть публикацию", link); err != nil {
		s.logger.Warn("не удалось отправить автору ссылку на публикацию",
			slog.Int64("chat_id", sub.ChatID),
			slog.String("error", err.Error()))
	}
	return nil
}

// Deliver выдает содержимое бандла по идентификатору из глубокой ссылки.
// При включенной обязательной подписке сначала проверяется членство в канале.
func (s *SubmissionService) Deliver(ctx context.Context, userID int64, username, bundleID string) error {
	ff := s.settings.ForceFollow()
	if ff.Enabled && ff.ChannelID != "" {
		status, err := s.transport.GetChatMember(ctx, ff.ChannelID, userID)
		if err != nil {
			// Не смогли проверить — считаем, что подписки нет: контент
			// не должен утекать из-за сбоя проверки.
			s.logger.Warn("не удалось проверить подписку",
				slog.Int64("user_id", userID),
				slog.String("error", err.Error()))
			return ErrFollowRequired
		}
		switch status {
		case "member", "administrator", "creator":
			if _, err := s.settings.RecordFollow(userID, username); err != nil {
				s.logger.Warn("не удалось записать статистику подписки",
					slog.String("error", err.Error()))
			}
		default:
			return ErrFollowRequired
		}
	}

	entries, ok, err := s.bundles.Get(ctx, bundleID)
	if err != nil {
		return fmt.Errorf("не удалось прочитать бандл %s: %w", bundleID, err)
	}
	if !ok {
		return ErrBundleNotFound
	}

	return s.replayer.Replay(ctx, entries, userID)
}

// publish сохраняет бандл, воспроизводит его во все привязанные каналы и
// возвращает глубокую ссылку. Сбои отдельных каналов не отменяют публикацию:
// бандл уже сохранен и доступен по ссылке.
func (s *SubmissionService) publish(ctx context.Context, entries []domain.Entry) (string, error) {
	channels := s.settings.Channels()
	if len(channels) == 0 {
		return "", ErrNoChannels
	}

	id, err := s.bundles.Put(ctx, entries)
	if err != nil {
		return "", fmt.Errorf("не удалось сохранить бандл: %w", err)
	}

	for _, channel := range channels {
		if err := s.postToChannel(ctx, channel, entries); err != nil {
			s.logger.Warn("не удалось опубликовать в канал",
				slog.String("channel", channel),
				slog.String("error", err.Error()))
		}
	}

	link := fmt.Sprintf("https://t.me/%s?start=%s", s.botUsername, id)

	// Резервные каналы получают не сам контент, а готовую ссылку на него.
	for _, channel := range s.settings.BackupChannels() {
		if err := s.sendLinkToChannel(ctx, channel, link); err != nil {
			s.logger.Warn("не удалось отправить ссылку в резервный канал",
				slog.String("channel", channel),
				slog.String("error", err.Error()))
		}
	}

	return link, nil
}

func (s *SubmissionService) sendLinkToChannel(ctx context.Context, channel, link string) error {
	info, err := s.resolveChannel(ctx, channel)
	if err != nil {
		return err
	}
	_, err = s.transport.SendText(ctx, info.ID, "✅ Ссылка сформирована 👇\n"+link)
	return err
}

func (s *SubmissionService) postToChannel(ctx context.Context, channel string, entries []domain.Entry) error {
	info, err := s.resolveChannel(ctx, channel)
	if err != nil {
		return err
	}
	return s.replayer.Replay(ctx, entries, info.ID)
}

// resolveChannel переводит строковый идентификатор канала в ChatInfo через
// кэш разрешенных каналов.
func (s *SubmissionService) resolveChannel(ctx context.Context, channel string) (ports.ChatInfo, error) {
	if info, ok := s.chats.Get(channel); ok {
		return info, nil
	}
	info, err := s.transport.GetChat(ctx, channel)
	if err != nil {
		return ports.ChatInfo{}, err
	}
	s.chats.Put(channel, info, chatCacheTTL)
	return info, nil
}

// itemCount считает элементы с раскрытием альбомов.
func itemCount(entries []domain.Entry) int {
	count := 0
	for _, entry := range entries {
		if entry.Group != nil {
			count += len(entry.Group.Items)
			continue
		}
		count++
	}
	return count
}
