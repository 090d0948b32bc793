package domain

import "time"

// MediaKind определяет тип содержимого запланированной публикации.
type MediaKind string

const (
	MediaText     MediaKind = "text"
	MediaPhoto    MediaKind = "photo"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
)

// ChatKind определяет тип чата-получателя.
type ChatKind string

const (
	ChatChannel    ChatKind = "channel"
	ChatSupergroup ChatKind = "supergroup"
	ChatGroup      ChatKind = "group"
)

// Recipient описывает чат, в который рассылаются публикации.
type Recipient struct {
	ID     int64
	Title  string
	Kind   ChatKind
	Active bool
}

// ScheduledItem представляет публикацию с целевым временем отправки.
// FileID — ссылка на медиа в хранилище Telegram, пустая для текста.
type ScheduledItem struct {
	ID          int64
	Kind        MediaKind
	FileID      string
	Caption     string
	ScheduledAt time.Time
	Sent        bool
}

// Draft хранит содержимое публикации до ввода времени отправки.
type Draft struct {
	Kind    MediaKind
	FileID  string
	Caption string
}
