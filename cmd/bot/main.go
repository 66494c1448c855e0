package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-relay-bot/cmd/bot/config"
	"telegram-relay-bot/internal/bot"
	"telegram-relay-bot/internal/cache"
	"telegram-relay-bot/internal/collect"
	"telegram-relay-bot/internal/core/services"
	"telegram-relay-bot/internal/log"
	"telegram-relay-bot/internal/moderation"
	"telegram-relay-bot/internal/replay"
	"telegram-relay-bot/internal/server"
	"telegram-relay-bot/internal/storage"
	"telegram-relay-bot/internal/telegram"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load("config.yml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to validate config: %v\n", err)
		os.Exit(1)
	}

	// Инициализация логгера с маскировкой токенов и настройками из конфига
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	switch cfg.Logging.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	default:
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	logger := log.NewMaskedLogger(handler)
	slog.SetDefault(logger)

	// Внутренний логгер библиотеки Bot API тоже проходит через маскировщик
	if err := tgbotapi.SetLogger(&log.TGBotAPIAdapter{Logger: logger.With(slog.String("component", "tgbotapi"))}); err != nil {
		slog.Warn("не удалось установить логгер Bot API", slog.String("error", err.Error()))
	}

	api, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		slog.Error("не удалось создать клиент Bot API", slog.String("error", err.Error()))
		os.Exit(1)
	}
	botUsername := cfg.Bot.Username
	if botUsername == "" {
		botUsername = api.Self.UserName
	}
	slog.Info("Авторизован", slog.String("username", botUsername))

	// Хранилища
	bundles, err := storage.NewBundleStore(cfg.Bot.DBPath)
	if err != nil {
		slog.Error("не удалось открыть хранилище бандлов", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer bundles.Close()

	settings, err := storage.NewSettings(cfg.Bot.StorageDir, cfg.Bot.Admins)
	if err != nil {
		slog.Error("не удалось открыть хранилище настроек", slog.String("error", err.Error()))
		os.Exit(1)
	}

	users, err := storage.NewDirectory(cfg.Bot.StorageDir)
	if err != nil {
		slog.Error("не удалось открыть каталог пользователей", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Ожидание сигналов для graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Буферы отправки: отдельный экземпляр для захвата рассылок, чтобы
	// черновики администраторов не смешивались с обычными заявками
	sessions := collect.NewSessionStore(cfg.Bot.AlbumWindow(), cfg.Bot.SessionTTL(), logger.With(slog.String("component", "collect")))
	broadcastSessions := collect.NewSessionStore(cfg.Bot.AlbumWindow(), cfg.Bot.SessionTTL(), logger.With(slog.String("component", "collect_broadcast")))
	sessions.StartCleanupTicker(ctx, 10*time.Minute)
	broadcastSessions.StartCleanupTicker(ctx, 10*time.Minute)

	pending := moderation.NewStore()
	transport := telegram.NewTransport(api, logger.With(slog.String("component", "transport")))
	replayer := replay.NewEngine(transport, logger.With(slog.String("component", "replay")))

	chats := cache.NewChatCache()
	chats.StartCleanupTicker(ctx, time.Hour)

	submissions := services.NewSubmissionService(
		transport, sessions, pending, bundles, settings, replayer, chats,
		botUsername, logger.With(slog.String("component", "submissions")))
	broadcasts := services.NewBroadcastService(
		transport, users, settings, broadcastSessions, replayer,
		cfg.Bot.BroadcastDelay(), logger.With(slog.String("component", "broadcasts")))

	b := bot.NewBot(api, cfg.Bot, submissions, broadcasts, settings, users,
		logger.With(slog.String("component", "bot")))

	srv := server.New(cfg.Server.Address(), bundles, settings, users, submissions,
		logger.With(slog.String("component", "server")))

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("служебный сервер остановился с ошибкой", slog.String("error", err.Error()))
		}
	}()

	// Запуск бота в отдельной goroutine, чтобы не блокировать graceful shutdown
	go b.Start(ctx)

	<-ctx.Done()

	slog.Info("Завершение работы...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("не удалось корректно остановить служебный сервер", slog.String("error", err.Error()))
	}

	slog.Info("Бот остановлен")
}
