package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"telegram-relay-bot/internal/domain"
)

const (
	usersFile   = "users.json"
	historyFile = "broadcast_history.json"

	// historyLimit — сколько последних рассылок хранится в истории.
	historyLimit = 50
)

// Directory — каталог известных пользователей бота и история рассылок,
// JSON-файлы в каталоге хранилища.
type Directory struct {
	dir string
	mu  sync.Mutex
}

// NewDirectory создает каталог пользователей в указанном каталоге.
func NewDirectory(dir string) (*Directory, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать каталог хранилища: %w", err)
	}
	return &Directory{dir: dir}, nil
}

func (d *Directory) readJSON(name string, v interface{}) error {
	data, err := os.ReadFile(filepath.Join(d.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("не удалось прочитать %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("не удалось разобрать %s: %w", name, err)
	}
	return nil
}

func (d *Directory) writeJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("не удалось сериализовать %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(d.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("не удалось записать %s: %w", name, err)
	}
	return nil
}

// UpsertUser добавляет пользователя или обновляет его данные и время
// последней активности.
func (d *Directory) UpsertUser(user domain.UserRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var users []domain.UserRecord
	if err := d.readJSON(usersFile, &users); err != nil {
		return err
	}

	now := time.Now()
	user.LastActive = now
	for i := range users {
		if users[i].UserID == user.UserID {
			user.JoinedAt = users[i].JoinedAt
			users[i] = user
			return d.writeJSON(usersFile, users)
		}
	}
	user.JoinedAt = now
	return d.writeJSON(usersFile, append(users, user))
}

// Users возвращает всех известных пользователей.
func (d *Directory) Users() []domain.UserRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	var users []domain.UserRecord
	if err := d.readJSON(usersFile, &users); err != nil {
		return nil
	}
	return users
}

// UserCount возвращает количество известных пользователей.
func (d *Directory) UserCount() int {
	return len(d.Users())
}

// AppendBroadcast добавляет запись в историю рассылок, оставляя только
// последние historyLimit записей.
func (d *Directory) AppendBroadcast(record domain.BroadcastRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var history []domain.BroadcastRecord
	if err := d.readJSON(historyFile, &history); err != nil {
		return err
	}
	history = append(history, record)
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	return d.writeJSON(historyFile, history)
}

// BroadcastHistory возвращает историю рассылок (старые записи первыми).
func (d *Directory) BroadcastHistory() []domain.BroadcastRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	var history []domain.BroadcastRecord
	if err := d.readJSON(historyFile, &history); err != nil {
		return nil
	}
	return history
}
