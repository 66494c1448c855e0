package config

// Значения по умолчанию для необязательных полей конфигурации.
const (
	// DefaultAlbumDebounceMs — окно тишины сбора альбома. Telegram доставляет
	// части альбома отдельными сообщениями с паузами до пары секунд.
	DefaultAlbumDebounceMs = 2500
	// DefaultBroadcastDelayMs — пауза между получателями при рассылке,
	// защита от лимитов Bot API.
	DefaultBroadcastDelayMs = 100
	// DefaultSessionTTLMinutes — срок жизни заброшенного буфера отправки.
	DefaultSessionTTLMinutes = 60

	DefaultStorageDir = "storage"
	DefaultDBPath     = "storage/content.db"

	DefaultServerHost             = "0.0.0.0"
	DefaultServerPort             = 8080
	DefaultShutdownTimeoutSeconds = 10
)
