package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// BotConfig содержит конфигурацию Telegram-бота.
type BotConfig struct {
	Token string `yaml:"token"`
	// Username — имя бота без @ для построения ссылок t.me. Пустое значение
	// означает "взять из getMe при старте".
	Username string `yaml:"username"`

	StorageDir string `yaml:"storage_dir"`
	DBPath     string `yaml:"db_path"`

	// Admins — начальный список администраторов; используется только при
	// первом запуске, дальше список живет в хранилище настроек.
	Admins []int64 `yaml:"admins"`

	AlbumDebounceMs   int `yaml:"album_debounce_ms"`
	BroadcastDelayMs  int `yaml:"broadcast_delay_ms"`
	SessionTTLMinutes int `yaml:"session_ttl_minutes"`
}

// ServerConfig содержит конфигурацию служебного HTTP-сервера.
type ServerConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

// Logging содержит конфигурацию логирования.
type Logging struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Config содержит конфигурацию приложения.
type Config struct {
	Bot     BotConfig    `yaml:"bot"`
	Server  ServerConfig `yaml:"server"`
	Logging Logging      `yaml:"logging"`
}

// Load загружает конфигурацию из YAML-файла, подмешивая переменные окружения.
// Токен из окружения (BOT_TOKEN) имеет приоритет над файлом, чтобы секрет
// не попадал в конфигурацию в репозитории.
func Load(filename string) (*Config, error) {
	// .env файла может не быть, тогда полагаемся на окружение и YAML
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(filename)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("не удалось разобрать конфигурацию %s: %w", filename, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("не удалось прочитать файл конфигурации %s: %w", filename, err)
	}

	if token := os.Getenv("BOT_TOKEN"); token != "" {
		cfg.Bot.Token = token
	}
	if username := os.Getenv("BOT_USERNAME"); username != "" {
		cfg.Bot.Username = username
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults заполняет незаданные поля значениями по умолчанию.
func (c *Config) applyDefaults() {
	if c.Bot.StorageDir == "" {
		c.Bot.StorageDir = DefaultStorageDir
	}
	if c.Bot.DBPath == "" {
		c.Bot.DBPath = DefaultDBPath
	}
	if c.Bot.AlbumDebounceMs == 0 {
		c.Bot.AlbumDebounceMs = DefaultAlbumDebounceMs
	}
	if c.Bot.BroadcastDelayMs == 0 {
		c.Bot.BroadcastDelayMs = DefaultBroadcastDelayMs
	}
	if c.Bot.SessionTTLMinutes == 0 {
		c.Bot.SessionTTLMinutes = DefaultSessionTTLMinutes
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.ShutdownTimeoutSeconds == 0 {
		c.Server.ShutdownTimeoutSeconds = DefaultShutdownTimeoutSeconds
	}
}

// Validate проверяет корректность конфигурации.
func (c *Config) Validate() error {
	if c.Bot.Token == "" || c.Bot.Token == "YOUR_TELEGRAM_BOT_TOKEN" {
		return fmt.Errorf("bot.token не задан")
	}
	if c.Bot.AlbumDebounceMs <= 0 {
		return fmt.Errorf("bot.album_debounce_ms должно быть положительным")
	}
	if c.Bot.BroadcastDelayMs < 0 {
		return fmt.Errorf("bot.broadcast_delay_ms должно быть неотрицательным")
	}
	if c.Bot.SessionTTLMinutes <= 0 {
		return fmt.Errorf("bot.session_ttl_minutes должно быть положительным")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port должен быть действительным номером порта (1-65535)")
	}
	return nil
}

// AlbumWindow возвращает окно тишины сбора альбома.
func (c *BotConfig) AlbumWindow() time.Duration {
	return time.Duration(c.AlbumDebounceMs) * time.Millisecond
}

// BroadcastDelay возвращает паузу между получателями рассылки.
func (c *BotConfig) BroadcastDelay() time.Duration {
	return time.Duration(c.BroadcastDelayMs) * time.Millisecond
}

// SessionTTL возвращает срок жизни заброшенного буфера.
func (c *BotConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// Address возвращает адрес служебного сервера в формате "host:port".
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ShutdownTimeout возвращает таймаут корректного завершения.
func (c *ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}
