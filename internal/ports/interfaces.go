package ports

import (
	"context"

	"telegram-relay-bot/internal/domain"
)

// BundleStore определяет интерфейс долговременного хранилища бандлов.
type BundleStore interface {
	// Put сохраняет записи под новым коротким идентификатором и возвращает его.
	Put(ctx context.Context, entries []domain.Entry) (string, error)
	// Get возвращает записи бандла. Отсутствующий идентификатор — это ok=false,
	// а не ошибка: вызывающая сторона показывает пользователю сообщение о
	// недействительной ссылке.
	Get(ctx context.Context, id string) ([]domain.Entry, bool, error)
	// Count возвращает количество сохраненных бандлов.
	Count(ctx context.Context) (int, error)
}

// SettingsStore определяет интерфейс хранилища настроек бота: списки
// администраторов и каналов, текст приветствия, настройка обязательной подписки.
type SettingsStore interface {
	Admins() []int64
	IsAdmin(userID int64) bool
	AddAdmin(userID int64) error
	RemoveAdmin(userID int64) error

	Channels() []string
	AddChannel(channelID string) error
	RemoveChannel(channelID string) error

	BackupChannels() []string
	AddBackupChannel(channelID string) error
	RemoveBackupChannel(channelID string) error

	Intro() string
	SetIntro(text string) error

	ForceFollow() domain.ForceFollowConfig
	SetForceFollow(cfg domain.ForceFollowConfig) error

	FollowStats() domain.FollowStats
	// RecordFollow отмечает прохождение проверки подписки; возвращает true,
	// если пользователь учтен впервые.
	RecordFollow(userID int64, username string) (bool, error)
	ResetFollowStats() error
}

// UserDirectory определяет интерфейс каталога известных пользователей
// и истории рассылок.
type UserDirectory interface {
	UpsertUser(user domain.UserRecord) error
	Users() []domain.UserRecord
	UserCount() int

	AppendBroadcast(record domain.BroadcastRecord) error
	BroadcastHistory() []domain.BroadcastRecord
}
