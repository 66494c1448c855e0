package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"telegram-relay-bot/internal/collect"
	"telegram-relay-bot/internal/domain"
	"telegram-relay-bot/internal/ports"
	"telegram-relay-bot/internal/replay"
)

// Виды рассылок в истории.
const (
	KindBroadcast    = "broadcast"
	KindNotification = "notification"
)

// draft — захваченный, но еще не подтвержденный черновик рассылки.
type draft struct {
	kind    string
	entries []domain.Entry
}

// BroadcastService отвечает за рассылки всем известным пользователям:
// быстрый текст, захват произвольного контента с предпросмотром и
// подтверждением, история последних рассылок.
type BroadcastService struct {
	transport ports.Transport
	users     ports.UserDirectory
	settings  ports.SettingsStore
	// sessions — отдельный буфер захвата, чтобы черновик рассылки не
	// смешивался с обычными заявками администратора.
	sessions *collect.SessionStore
	replayer *replay.Engine
	delay    time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	capturing map[int64]string // администратор -> вид рассылки
	drafts    map[int64]*draft
}

// NewBroadcastService собирает сервис рассылок. delay — пауза между
// отправками соседним получателям, защита от лимитов Bot API.
func NewBroadcastService(
	transport ports.Transport,
	users ports.UserDirectory,
	settings ports.SettingsStore,
	sessions *collect.SessionStore,
	replayer *replay.Engine,
	delay time.Duration,
	logger *slog.Logger,
) *BroadcastService {
	return &BroadcastService{
		transport: transport,
		users:     users,
		settings:  settings,
		sessions:  sessions,
		replayer:  replayer,
		delay:     delay,
		logger:    logger,
		capturing: make(map[int64]string),
		drafts:    make(map[int64]*draft),
	}
}

// QuickText немедленно рассылает текст всем пользователям.
func (s *BroadcastService) QuickText(ctx context.Context, adminID int64, text string) (domain.BroadcastRecord, error) {
	if !s.settings.IsAdmin(adminID) {
		return domain.BroadcastRecord{}, ErrPermissionDenied
	}
	entries := []domain.Entry{{Item: &domain.ContentItem{Type: domain.ItemText, Text: text}}}
	return s.fanOut(ctx, adminID, KindBroadcast, s.replayTo(entries)), nil
}

// Notify немедленно рассылает важное уведомление всем пользователям.
// Заголовок уведомления форматируется HTML-разметкой.
func (s *BroadcastService) Notify(ctx context.Context, adminID int64, text string) (domain.BroadcastRecord, error) {
	if !s.settings.IsAdmin(adminID) {
		return domain.BroadcastRecord{}, ErrPermissionDenied
	}
	formatted := "🔔 <b>Уведомление</b>\n\n" + text
	return s.fanOut(ctx, adminID, KindNotification, func(ctx context.Context, chatID int64) error {
		_, err := s.transport.SendHTML(ctx, chatID, formatted)
		return err
	}), nil
}

// StartCapture переводит администратора в режим захвата: следующие его
// сообщения буферизуются как содержимое будущей рассылки.
func (s *BroadcastService) StartCapture(adminID int64, kind string) error {
	if !s.settings.IsAdmin(adminID) {
		return ErrPermissionDenied
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capturing[adminID] = kind
	delete(s.drafts, adminID)
	return nil
}

// IsCapturing сообщает, находится ли администратор в режиме захвата.
func (s *BroadcastService) IsCapturing(adminID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.capturing[adminID]
	return ok
}

// Buffer добавляет элемент в черновик захвата.
func (s *BroadcastService) Buffer(adminID int64, item domain.ContentItem, albumKey string) collect.AppendResult {
	return s.sessions.Append(adminID, item, albumKey)
}

// FinishCapture закрывает захват и фиксирует черновик. Возвращает количество
// элементов; пустой захват — это ErrNothingToSubmit.
func (s *BroadcastService) FinishCapture(adminID int64) (int, error) {
	s.mu.Lock()
	kind, ok := s.capturing[adminID]
	s.mu.Unlock()
	if !ok {
		return 0, ErrNoDraft
	}

	entries := s.sessions.Finish(adminID)
	if len(entries) == 0 {
		return 0, ErrNothingToSubmit
	}

	s.mu.Lock()
	delete(s.capturing, adminID)
	s.drafts[adminID] = &draft{kind: kind, entries: entries}
	s.mu.Unlock()

	return itemCount(entries), nil
}

// Preview воспроизводит черновик рассылки самому администратору.
func (s *BroadcastService) Preview(ctx context.Context, adminID int64) error {
	s.mu.Lock()
	d, ok := s.drafts[adminID]
	s.mu.Unlock()
	if !ok {
		return ErrNoDraft
	}
	return s.replayer.Replay(ctx, d.entries, adminID)
}

// Confirm запускает рассылку подтвержденного черновика.
func (s *BroadcastService) Confirm(ctx context.Context, adminID int64) (domain.BroadcastRecord, error) {
	s.mu.Lock()
	d, ok := s.drafts[adminID]
	delete(s.drafts, adminID)
	s.mu.Unlock()
	if !ok {
		return domain.BroadcastRecord{}, ErrNoDraft
	}
	return s.fanOut(ctx, adminID, d.kind, s.replayTo(d.entries)), nil
}

// CancelCapture сбрасывает режим захвата и черновик. Идемпотентна.
func (s *BroadcastService) CancelCapture(adminID int64) {
	s.sessions.Cancel(adminID)
	s.mu.Lock()
	delete(s.capturing, adminID)
	delete(s.drafts, adminID)
	s.mu.Unlock()
}

// History возвращает последние рассылки, новые в конце.
func (s *BroadcastService) History() []domain.BroadcastRecord {
	return s.users.BroadcastHistory()
}

// replayTo — доставка содержимого черновика одному получателю.
func (s *BroadcastService) replayTo(entries []domain.Entry) func(ctx context.Context, chatID int64) error {
	return func(ctx context.Context, chatID int64) error {
		return s.replayer.Replay(ctx, entries, chatID)
	}
}

// fanOut последовательно доставляет рассылку каждому известному пользователю,
// выдерживая паузу между получателями. Сбой у одного получателя учитывается
// в статистике и не прерывает рассылку.
func (s *BroadcastService) fanOut(ctx context.Context, adminID int64, kind string, send func(ctx context.Context, chatID int64) error) domain.BroadcastRecord {
	recipients := s.users.Users()
	record := domain.BroadcastRecord{
		Timestamp:  time.Now(),
		AdminID:    adminID,
		Kind:       kind,
		TotalUsers: len(recipients),
	}

	for i, user := range recipients {
		if i > 0 && s.delay > 0 {
			select {
			case <-ctx.Done():
				record.FailedCount = len(recipients) - record.SuccessCount
				s.appendHistory(record)
				return record
			case <-time.After(s.delay):
			}
		}
		if err := send(ctx, user.UserID); err != nil {
			record.FailedCount++
			continue
		}
		record.SuccessCount++
	}

	s.appendHistory(record)
	s.logger.Info("рассылка завершена",
		slog.String("kind", kind),
		slog.Int("total", record.TotalUsers),
		slog.Int("success", record.SuccessCount),
		slog.Int("failed", record.FailedCount))
	return record
}

func (s *BroadcastService) appendHistory(record domain.BroadcastRecord) {
	if err := s.users.AppendBroadcast(record); err != nil {
		s.logger.Warn("не удалось сохранить историю рассылки",
			slog.String("error", err.Error()))
	}
}
