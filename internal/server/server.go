package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"telegram-relay-bot/internal/core/services"
	"telegram-relay-bot/internal/ports"
)

// Server — служебный HTTP-сервер бота: проверка работоспособности и
// операционная статистика для мониторинга.
type Server struct {
	HTTPServer  *http.Server
	bundles     ports.BundleStore
	settings    ports.SettingsStore
	users       ports.UserDirectory
	submissions *services.SubmissionService
	logger      *slog.Logger
}

// New создает новый экземпляр Server на указанном адресе.
func New(
	addr string,
	bundles ports.BundleStore,
	settings ports.SettingsStore,
	users ports.UserDirectory,
	submissions *services.SubmissionService,
	logger *slog.Logger,
) *Server {
	s := &Server{
		bundles:     bundles,
		settings:    settings,
		users:       users,
		submissions: submissions,
		logger:      logger,
	}

	chiRouter := chi.NewRouter()

	// Промежуточное ПО
	chiRouter.Use(middleware.Logger)
	chiRouter.Use(middleware.Recoverer)

	// Конечная точка для проверки работоспособности
	chiRouter.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
		})
	})

	// Маршруты API
	chiRouter.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
	})

	s.HTTPServer = &http.Server{
		Addr:         addr,
		Handler:      chiRouter,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// statsResponse — операционная сводка по состоянию бота.
type statsResponse struct {
	Users              int `json:"users"`
	Bundles            int `json:"bundles"`
	PendingSubmissions int `json:"pending_submissions"`
	Channels           int `json:"channels"`
	BackupChannels     int `json:"backup_channels"`
	Admins             int `json:"admins"`
	TotalFollows       int `json:"total_follows"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	bundleCount, err := s.bundles.Count(r.Context())
	if err != nil {
		s.logger.Error("не удалось посчитать бандлы", slog.String("error", err.Error()))
		http.Error(w, "Хранилище недоступно", http.StatusInternalServerError)
		return
	}

	resp := statsResponse{
		Users:              s.users.UserCount(),
		Bundles:            bundleCount,
		PendingSubmissions: s.submissions.PendingCount(),
		Channels:           len(s.settings.Channels()),
		BackupChannels:     len(s.settings.BackupChannels()),
		Admins:             len(s.settings.Admins()),
		TotalFollows:       s.settings.FollowStats().TotalFollows,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// ListenAndServe запускает HTTP-сервер
func (s *Server) ListenAndServe() error {
	return s.HTTPServer.ListenAndServe()
}

// Shutdown корректно завершает работу HTTP-сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Завершение работы HTTP-сервера")
	return s.HTTPServer.Shutdown(ctx)
}
