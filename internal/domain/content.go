package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ItemType определяет тип элемента контента.
type ItemType string

const (
	ItemText        ItemType = "text"
	ItemPhoto       ItemType = "photo"
	ItemVideo       ItemType = "video"
	ItemDocument    ItemType = "document"
	ItemAudio       ItemType = "audio"
	ItemVoice       ItemType = "voice"
	ItemSticker     ItemType = "sticker"
	ItemAnimation   ItemType = "animation"
	ItemLocation    ItemType = "location"
	ItemContact     ItemType = "contact"
	ItemPoll        ItemType = "poll"
	ItemDice        ItemType = "dice"
	ItemVenue       ItemType = "venue"
	ItemVideoNote   ItemType = "video_note"
	ItemUnsupported ItemType = "unsupported"

	// ItemMediaGroup используется только на уровне Entry для сериализации альбомов.
	ItemMediaGroup ItemType = "media_group"
)

// ContentItem — один элемент контента. Ровно один вариант на элемент: поле Type
// определяет, какие из остальных полей значимы. Отсутствующие необязательные поля
// (например, подпись) сериализуются как отсутствующие, а не как пустая строка,
// чтобы при повторной отправке не дублировать пустые подписи.
type ContentItem struct {
	Type ItemType `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// photo/video/document/audio/voice/sticker/animation/video_note
	FileID   string `json:"file_id,omitempty"`
	Caption  string `json:"caption,omitempty"`
	FileName string `json:"file_name,omitempty"` // только для document

	// location/venue
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`

	// contact
	PhoneNumber string `json:"phone_number,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`

	// poll
	Question string   `json:"question,omitempty"`
	Options  []string `json:"options,omitempty"`

	// dice
	Emoji string `json:"emoji,omitempty"`
	Value int    `json:"value,omitempty"`

	// venue
	Title   string `json:"title,omitempty"`
	Address string `json:"address,omitempty"`
}

// IsMedia сообщает, может ли элемент входить в альбом (media group).
// Telegram группирует в альбомы только фото и видео.
func (c ContentItem) IsMedia() bool {
	return c.Type == ItemPhoto || c.Type == ItemVideo
}

// AlbumGroup — альбом: упорядоченная последовательность фото/видео, которые
// транспорт пометил одним ключом альбома. Порядок элементов — порядок прибытия;
// Telegram не передает явной нумерации внутри альбома, так что порядок прибытия —
// лучшее доступное приближение к порядку отправителя.
type AlbumGroup struct {
	Items    []ContentItem `json:"items"`
	AlbumKey string        `json:"album_key,omitempty"`
}

// Entry — один элемент бандла: либо одиночный ContentItem, либо AlbumGroup.
// Ровно одно из полей не равно nil.
type Entry struct {
	Item  *ContentItem
	Group *AlbumGroup
}

// ItemEntry оборачивает одиночный элемент в Entry.
func ItemEntry(item ContentItem) Entry {
	return Entry{Item: &item}
}

// GroupEntry оборачивает альбом в Entry.
func GroupEntry(group AlbumGroup) Entry {
	return Entry{Group: &group}
}

// IsGroup сообщает, является ли запись альбомом.
func (e Entry) IsGroup() bool {
	return e.Group != nil
}

// entryGroupJSON — проводной формат альбома: {"type":"media_group","items":[...]}.
type entryGroupJSON struct {
	Type     ItemType      `json:"type"`
	Items    []ContentItem `json:"items"`
	AlbumKey string        `json:"album_key,omitempty"`
}

// MarshalJSON сериализует Entry в проводной формат: одиночный элемент пишется
// как есть, альбом — как объект с type=media_group.
func (e Entry) MarshalJSON() ([]byte, error) {
	if e.Group != nil {
		return json.Marshal(entryGroupJSON{
			Type:     ItemMediaGroup,
			Items:    e.Group.Items,
			AlbumKey: e.Group.AlbumKey,
		})
	}
	if e.Item != nil {
		return json.Marshal(*e.Item)
	}
	return nil, fmt.Errorf("пустая запись бандла")
}

// UnmarshalJSON восстанавливает Entry из проводного формата. Записи с неизвестным
// или отсутствующим типом превращаются в unsupported, а не в ошибку: старые бандлы
// должны оставаться читаемыми.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type ItemType `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("не удалось определить тип записи: %w", err)
	}

	if probe.Type == ItemMediaGroup {
		var g entryGroupJSON
		if err := json.Unmarshal(data, &g); err != nil {
			return fmt.Errorf("не удалось разобрать альбом: %w", err)
		}
		e.Item = nil
		e.Group = &AlbumGroup{Items: g.Items, AlbumKey: g.AlbumKey}
		return nil
	}

	var item ContentItem
	if err := json.Unmarshal(data, &item); err != nil {
		return fmt.Errorf("не удалось разобрать элемент: %w", err)
	}
	if !knownItemType(item.Type) {
		item = ContentItem{Type: ItemUnsupported}
	}
	e.Item = &item
	e.Group = nil
	return nil
}

func knownItemType(t ItemType) bool {
	switch t {
	case ItemText, ItemPhoto, ItemVideo, ItemDocument, ItemAudio, ItemVoice,
		ItemSticker, ItemAnimation, ItemLocation, ItemContact, ItemPoll,
		ItemDice, ItemVenue, ItemVideoNote, ItemUnsupported:
		return true
	}
	return false
}

// EncodeEntries сериализует список записей в JSON для хранения.
func EncodeEntries(entries []Entry) (string, error) {
	data, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("не удалось сериализовать записи бандла: %w", err)
	}
	return string(data), nil
}

// DecodeEntries восстанавливает список записей из JSON.
func DecodeEntries(data string) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		return nil, fmt.Errorf("не удалось разобрать записи бандла: %w", err)
	}
	return entries, nil
}

// Bundle — неизменяемая адресуемая коллекция контента, созданная одной
// завершенной отправкой.
type Bundle struct {
	ID        string
	Entries   []Entry
	CreatedAt time.Time
}
