package cache

import (
	"context"
	"sync"
	"time"

	"telegram-relay-bot/internal/ports"
)

// chatItem — кэшированные сведения о чате со сроком действия.
type chatItem struct {
	info      ports.ChatInfo
	expiresAt time.Time
}

// ChatCache кэширует разрешение строкового идентификатора канала
// ("@username" или числовая строка) в сведения о чате. Каждая публикация
// проходит по всем привязанным каналам, и без кэша каждый проход дергал бы
// getChat в Bot API заново.
type ChatCache struct {
	cache map[string]*chatItem
	mutex sync.RWMutex
}

// NewChatCache создает новый экземпляр ChatCache.
func NewChatCache() *ChatCache {
	return &ChatCache{
		cache: make(map[string]*chatItem),
	}
}

// Get извлекает кэшированные сведения по идентификатору канала.
func (cs *ChatCache) Get(channel string) (ports.ChatInfo, bool) {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	item, exists := cs.cache[channel]
	if !exists || time.Now().After(item.expiresAt) {
		return ports.ChatInfo{}, false
	}

	return item.info, true
}

// Put сохраняет сведения о чате с указанным сроком действия.
func (cs *ChatCache) Put(channel string, info ports.ChatInfo, ttl time.Duration) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.cache[channel] = &chatItem{
		info:      info,
		expiresAt: time.Now().Add(ttl),
	}
}

// Invalidate удаляет запись, например после отвязки канала.
func (cs *ChatCache) Invalidate(channel string) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()
	delete(cs.cache, channel)
}

// CleanupExpired удаляет просроченные записи.
func (cs *ChatCache) CleanupExpired() {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	now := time.Now()
	for channel, item := range cs.cache {
		if now.After(item.expiresAt) {
			delete(cs.cache, channel)
		}
	}
}

// StartCleanupTicker запускает таймер для периодической очистки просроченных записей.
func (cs *ChatCache) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cs.CleanupExpired()
			}
		}
	}()
}
