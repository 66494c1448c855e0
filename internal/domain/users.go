package domain

import "time"

// UserRecord — запись в каталоге пользователей бота. Обновляется при каждом
// взаимодействии пользователя с ботом.
type UserRecord struct {
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username,omitempty"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	JoinedAt   time.Time `json:"joined_at"`
	LastActive time.Time `json:"last_active"`
}

// BroadcastRecord — итог одной рассылки всем пользователям.
type BroadcastRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	AdminID      int64     `json:"admin_id"`
	Kind         string    `json:"type"` // "broadcast" или "notification"
	TotalUsers   int       `json:"total_users"`
	SuccessCount int       `json:"success_count"`
	FailedCount  int       `json:"failed_count"`
}

// ForceFollowConfig — настройка обязательной подписки на канал перед выдачей
// контента по ссылке.
type ForceFollowConfig struct {
	Enabled         bool   `json:"enabled"`
	ChannelID       string `json:"channel_id"`
	ChannelUsername string `json:"channel_username"`
}

// FollowRecord — факт прохождения проверки подписки одним пользователем.
type FollowRecord struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// FollowStats — накопленная статистика по обязательной подписке.
type FollowStats struct {
	TotalFollows  int            `json:"total_follows"`
	TodayFollows  int            `json:"today_follows"`
	LastResetDate string         `json:"last_reset_date"`
	Records       []FollowRecord `json:"follow_records"`
}
