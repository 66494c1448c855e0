package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"telegram-relay-bot/internal/domain"
)

const (
	adminsFile         = "admin_ids.json"
	channelsFile       = "bind_channels.json"
	backupChannelsFile = "backup_channels.json"
	introFile          = "intro.txt"
	forceFollowFile    = "force_follow.json"
	followStatsFile    = "follow_stats.json"
)

const defaultIntro = "Это бот для объединения любого контента в одну ссылку."

// Settings — хранилище настроек бота в JSON-файлах под одним каталогом.
// Все операции читают файл заново и переписывают его целиком под мьютексом:
// объемы крошечные, а простота важнее.
type Settings struct {
	dir           string
	mu            sync.Mutex
	defaultAdmins []int64
}

// NewSettings создает хранилище настроек в указанном каталоге.
// defaultAdmins используется, пока файл со списком администраторов не создан.
func NewSettings(dir string, defaultAdmins []int64) (*Settings, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать каталог настроек: %w", err)
	}
	return &Settings{dir: dir, defaultAdmins: defaultAdmins}, nil
}

func (s *Settings) path(name string) string {
	return filepath.Join(s.dir, name)
}

// readJSON читает файл в v; возвращает false, если файла нет.
func (s *Settings) readJSON(name string, v interface{}) (bool, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("не удалось прочитать %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("не удалось разобрать %s: %w", name, err)
	}
	return true, nil
}

func (s *Settings) writeJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("не удалось сериализовать %s: %w", name, err)
	}
	if err := os.WriteFile(s.path(name), data, 0o644); err != nil {
		return fmt.Errorf("не удалось записать %s: %w", name, err)
	}
	return nil
}

// ===== Администраторы =====

func (s *Settings) adminsLocked() []int64 {
	var ids []int64
	ok, err := s.readJSON(adminsFile, &ids)
	if err != nil || !ok {
		return slices.Clone(s.defaultAdmins)
	}
	return ids
}

// Admins возвращает список идентификаторов администраторов.
func (s *Settings) Admins() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adminsLocked()
}

// IsAdmin проверяет, есть ли пользователь в списке администраторов.
func (s *Settings) IsAdmin(userID int64) bool {
	return slices.Contains(s.Admins(), userID)
}

// AddAdmin добавляет администратора; повторное добавление — no-op.
func (s *Settings) AddAdmin(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.adminsLocked()
	if slices.Contains(ids, userID) {
		return nil
	}
	return s.writeJSON(adminsFile, append(ids, userID))
}

// RemoveAdmin удаляет администратора из списка.
func (s *Settings) RemoveAdmin(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.adminsLocked()
	filtered := slices.DeleteFunc(ids, func(id int64) bool { return id == userID })
	return s.writeJSON(adminsFile, filtered)
}

// ===== Каналы =====

func (s *Settings) channelsLocked(name string) []string {
	var ids []string
	if _, err := s.readJSON(name, &ids); err != nil {
		return nil
	}
	return ids
}

func (s *Settings) addChannelLocked(name, channelID string) error {
	ids := s.channelsLocked(name)
	if slices.Contains(ids, channelID) {
		return nil
	}
	return s.writeJSON(name, append(ids, channelID))
}

func (s *Settings) removeChannelLocked(name, channelID string) error {
	ids := s.channelsLocked(name)
	filtered := slices.DeleteFunc(ids, func(id string) bool { return id == channelID })
	return s.writeJSON(name, filtered)
}

// Channels возвращает список привязанных каналов публикации.
func (s *Settings) Channels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelsLocked(channelsFile)
}

func (s *Settings) AddChannel(channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addChannelLocked(channelsFile, channelID)
}

func (s *Settings) RemoveChannel(channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeChannelLocked(channelsFile, channelID)
}

// BackupChannels возвращает список резервных каналов для ссылок.
func (s *Settings) BackupChannels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelsLocked(backupChannelsFile)
}

func (s *Settings) AddBackupChannel(channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addChannelLocked(backupChannelsFile, channelID)
}

func (s *Settings) RemoveBackupChannel(channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeChannelLocked(backupChannelsFile, channelID)
}

// ===== Приветствие =====

// Intro возвращает текст-описание бота.
func (s *Settings) Intro() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path(introFile))
	if err != nil {
		return defaultIntro
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return defaultIntro
	}
	return text
}

// SetIntro сохраняет текст-описание бота.
func (s *Settings) SetIntro(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.path(introFile), []byte(strings.TrimSpace(text)), 0o644); err != nil {
		return fmt.Errorf("не удалось записать %s: %w", introFile, err)
	}
	return nil
}

// ===== Обязательная подписка =====

// ForceFollow возвращает настройку обязательной подписки.
func (s *Settings) ForceFollow() domain.ForceFollowConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cfg domain.ForceFollowConfig
	if _, err := s.readJSON(forceFollowFile, &cfg); err != nil {
		return domain.ForceFollowConfig{}
	}
	return cfg
}

func (s *Settings) SetForceFollow(cfg domain.ForceFollowConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(forceFollowFile, cfg)
}

// FollowStats возвращает статистику прохождения проверки подписки.
func (s *Settings) FollowStats() domain.FollowStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.followStatsLocked()
}

func (s *Settings) followStatsLocked() domain.FollowStats {
	var stats domain.FollowStats
	if _, err := s.readJSON(followStatsFile, &stats); err != nil {
		return domain.FollowStats{}
	}
	return stats
}

// RecordFollow отмечает прохождение проверки подписки. Счетчик "за сегодня"
// сбрасывается при смене даты. Каждый пользователь учитывается один раз;
// возвращает true, если запись новая.
func (s *Settings) RecordFollow(userID int64, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.followStatsLocked()
	today := time.Now().Format("2006-01-02")
	if stats.LastResetDate != today {
		stats.TodayFollows = 0
		stats.LastResetDate = today
	}

	for _, rec := range stats.Records {
		if rec.UserID == userID {
			return false, s.writeJSON(followStatsFile, stats)
		}
	}

	stats.TotalFollows++
	stats.TodayFollows++
	stats.Records = append(stats.Records, domain.FollowRecord{
		UserID:    userID,
		Username:  username,
		Timestamp: time.Now(),
	})
	return true, s.writeJSON(followStatsFile, stats)
}

// ResetFollowStats обнуляет статистику подписок.
func (s *Settings) ResetFollowStats() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(followStatsFile, domain.FollowStats{})
}
