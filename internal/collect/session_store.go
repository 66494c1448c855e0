package collect

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"telegram-relay-bot/internal/domain"
)

// record — одно сырое сообщение в буфере пользователя вместе с ключом альбома,
// если транспорт его назначил.
type record struct {
	item     domain.ContentItem
	albumKey string
}

// albumState — открытое окно сбора альбома: накопленные сообщения и таймер
// тишины, который переустанавливается при каждом новом сообщении.
type albumState struct {
	records []record
	timer   *time.Timer
	// slot — позиция в буфере, занятая альбомом при открытии окна. Одиночные
	// сообщения, пришедшие пока окно открыто, встают после альбома, сохраняя
	// порядок прибытия.
	slot int
}

// session — буфер отправки одного пользователя.
type session struct {
	records    []record
	album      *albumState
	lastActive time.Time
}

// AppendResult сообщает вызывающей стороне, что произошло при добавлении.
type AppendResult int

const (
	// Buffered — сообщение добавлено в буфер, можно сразу подтвердить прием.
	Buffered AppendResult = iota
	// AlbumPending — сообщение попало в открытое окно сбора альбома;
	// подтверждение уйдет один раз после закрытия окна.
	AlbumPending
)

// SessionStore — потокобезопасная таблица буферов отправки, по одному на
// пользователя. Сообщения с ключом альбома накапливаются в окне тишины
// (debounce с переустановкой таймера) и попадают в буфер только после его
// закрытия; остальные добавляются сразу. Заброшенные буферы вычищаются по TTL.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*session
	window   time.Duration
	ttl      time.Duration
	onClosed func(userID int64, count int)
	logger   *slog.Logger
}

// NewSessionStore создает таблицу буферов. window — окно тишины для альбомов,
// ttl — срок жизни заброшенного буфера.
func NewSessionStore(window, ttl time.Duration, logger *slog.Logger) *SessionStore {
	return &SessionStore{
		sessions: make(map[int64]*session),
		window:   window,
		ttl:      ttl,
		logger:   logger,
	}
}

// OnAlbumClosed регистрирует обработчик закрытия окна альбома. Обработчик
// вызывается один раз на альбом (не на элемент) и вне мьютекса хранилища.
func (s *SessionStore) OnAlbumClosed(fn func(userID int64, count int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClosed = fn
}

// Append добавляет классифицированное сообщение в буфер пользователя.
// albumKey — ключ альбома из транспорта, пустая строка для одиночных сообщений.
func (s *SessionStore) Append(userID int64, item domain.ContentItem, albumKey string) AppendResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[userID]
	if sess == nil {
		sess = &session{}
		s.sessions[userID] = sess
	}
	sess.lastActive = time.Now()

	if albumKey == "" {
		sess.records = append(sess.records, record{item: item})
		return Buffered
	}

	st := sess.album
	if st == nil {
		st = &albumState{slot: len(sess.records)}
		sess.album = st
	}
	st.records = append(st.records, record{item: item, albumKey: albumKey})

	// Переустановка таймера тишины: наивный одноразовый таймер закрыл бы
	// альбом посреди пачки сообщений.
	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = time.AfterFunc(s.window, func() { s.albumExpired(userID, st) })
	return AlbumPending
}

// albumExpired — срабатывание таймера тишины. Сверка указателя на albumState
// под мьютексом отсекает устаревшие срабатывания: если пользователь успел
// отменить отправку или буфер был вычищен, flush не выполняется.
func (s *SessionStore) albumExpired(userID int64, st *albumState) {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	if !ok || sess.album != st {
		s.mu.Unlock()
		return
	}
	count := len(st.records)
	spliceAlbum(sess, st)
	sess.album = nil
	sess.lastActive = time.Now()
	fn := s.onClosed
	s.mu.Unlock()

	if fn != nil && count > 0 {
		fn(userID, count)
	}
}

// Finish изымает и возвращает содержимое буфера, сегментируя его: непрерывные
// последовательности с одним ключом альбома сворачиваются в одну запись-альбом.
// Буфер очищается до возврата, поэтому повторная обработка того же содержимого
// невозможна. Пустой буфер дает nil.
func (s *SessionStore) Finish(userID int64) []domain.Entry {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if st := sess.album; st != nil {
		// Открытое окно альбома тоже изымается: его содержимое принадлежит
		// этой отправке и встает на место открытия окна.
		if st.timer != nil {
			st.timer.Stop()
		}
		spliceAlbum(sess, st)
	}
	records := sess.records
	delete(s.sessions, userID)
	s.mu.Unlock()

	return segment(records)
}

// Cancel очищает буфер пользователя и гасит живой таймер альбома. Без
// остановки таймера устаревший flush заново наполнил бы буфер, который
// пользователь считает пустым. Идемпотентна.
func (s *SessionStore) Cancel(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return
	}
	if sess.album != nil && sess.album.timer != nil {
		sess.album.timer.Stop()
	}
	delete(s.sessions, userID)
}

// CleanupExpired удаляет заброшенные буферы, неактивные дольше TTL.
func (s *SessionStore) CleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for userID, sess := range s.sessions {
		if now.Sub(sess.lastActive) < s.ttl {
			continue
		}
		if sess.album != nil && sess.album.timer != nil {
			sess.album.timer.Stop()
		}
		delete(s.sessions, userID)
		if s.logger != nil {
			s.logger.Debug("заброшенный буфер отправки удален", slog.Int64("user_id", userID))
		}
	}
}

// StartCleanupTicker запускает периодическую очистку заброшенных буферов.
func (s *SessionStore) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CleanupExpired()
			}
		}
	}()
}

// spliceAlbum вставляет собранные сообщения альбома в позицию, зафиксированную
// при открытии окна. Вызывается под мьютексом хранилища.
func spliceAlbum(sess *session, st *albumState) {
	tail := make([]record, len(sess.records)-st.slot)
	copy(tail, sess.records[st.slot:])
	sess.records = append(sess.records[:st.slot], st.records...)
	sess.records = append(sess.records, tail...)
}

// segment сворачивает непрерывные последовательности записей с одним ключом
// альбома в AlbumGroup; остальное становится одиночными записями. Порядок
// внутри альбома — порядок прибытия.
func segment(records []record) []domain.Entry {
	var entries []domain.Entry
	for i := 0; i < len(records); {
		r := records[i]
		if r.albumKey == "" {
			entries = append(entries, domain.ItemEntry(r.item))
			i++
			continue
		}
		group := domain.AlbumGroup{AlbumKey: r.albumKey}
		for i < len(records) && records[i].albumKey == r.albumKey {
			group.Items = append(group.Items, records[i].item)
			i++
		}
		entries = append(entries, domain.GroupEntry(group))
	}
	return entries
}
