package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"telegram-relay-bot/internal/domain"
)

const (
	idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	idLength   = 8
	putRetries = 5
)

// BundleStore — долговременное хранилище бандлов на sqlite. Идентификаторы —
// короткие случайные строки из букв и цифр, безопасные для URL.
type BundleStore struct {
	db *sql.DB
}

// NewBundleStore открывает (или создает) базу по указанному пути.
func NewBundleStore(dbPath string) (*BundleStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать каталог базы данных: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть базу данных: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS bundles (
			id TEXT PRIMARY KEY,
			entries_json TEXT NOT NULL,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу bundles: %w", err)
	}

	return &BundleStore{db: db}, nil
}

// Put сохраняет записи под новым идентификатором. Коллизия идентификатора
// (практически невероятная при пространстве 62^8) разрешается регенерацией:
// вставка не перезаписывает чужой бандл, а повторяется с новым id.
func (s *BundleStore) Put(ctx context.Context, entries []domain.Entry) (string, error) {
	payload, err := domain.EncodeEntries(entries)
	if err != nil {
		return "", err
	}
	createdAt := time.Now().UTC().Format(time.RFC3339)

	for attempt := 0; attempt < putRetries; attempt++ {
		id := newBundleID()
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO bundles (id, entries_json, created_at)
			VALUES (?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, id, payload, createdAt)
		if err != nil {
			return "", fmt.Errorf("не удалось сохранить бандл: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return "", fmt.Errorf("не удалось проверить результат вставки: %w", err)
		}
		if affected == 1 {
			return id, nil
		}
	}
	return "", errors.New("не удалось подобрать свободный идентификатор бандла")
}

// Get возвращает записи бандла. Отсутствующий идентификатор — это ok=false
// без ошибки.
func (s *BundleStore) Get(ctx context.Context, id string) ([]domain.Entry, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT entries_json FROM bundles WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("не удалось прочитать бандл %s: %w", id, err)
	}

	entries, err := domain.DecodeEntries(payload)
	if err != nil {
		return nil, false, err
	}
	return entries, true, nil
}

// Count возвращает количество сохраненных бандлов.
func (s *BundleStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bundles`).Scan(&count); err != nil {
		return 0, fmt.Errorf("не удалось посчитать бандлы: %w", err)
	}
	return count, nil
}

// Close закрывает соединение с базой.
func (s *BundleStore) Close() error {
	return s.db.Close()
}

func newBundleID() string {
	buf := make([]byte, idLength)
	for i := range buf {
		buf[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return string(buf)
}
