package moderation

import (
	"sync"
	"time"

	"telegram-relay-bot/internal/domain"
)

// Submission — заявка пользователя, ожидающая вердикта администраторов.
type Submission struct {
	ID        string
	AuthorID  int64
	Entries   []domain.Entry
	ChatID    int64
	MessageID int
	// NoticeIDs — идентификаторы уведомлений о заявке по администраторам,
	// чтобы после вердикта обновить их все.
	NoticeIDs map[int64]int
	CreatedAt time.Time
}

// Store — потокобезопасная таблица заявок на модерацию. Изъятие заявки
// атомарно: побеждает первый администратор, остальные получают "уже
// обработано". Раздельные проверка и удаление здесь недопустимы — именно
// эта пара и создает гонку двух одновременных вердиктов.
type Store struct {
	mu      sync.Mutex
	pending map[string]*Submission
}

// NewStore создает пустую таблицу заявок.
func NewStore() *Store {
	return &Store{pending: make(map[string]*Submission)}
}

// Put регистрирует заявку.
func (s *Store) Put(sub *Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[sub.ID] = sub
}

// Take атомарно изымает заявку. Возвращает false, если она уже изъята
// другим администратором или никогда не существовала.
func (s *Store) Take(id string) (*Submission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	return sub, ok
}

// Len возвращает количество ожидающих заявок.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
