package domain

import (
	"context"
	"time"
)

// RecipientRepo управляет реестром чатов-получателей.
type RecipientRepo interface {
	UpsertRecipient(ctx context.Context, id int64, title string, kind ChatKind) error
	DeactivateRecipient(ctx context.Context, id int64) error
	ListActive(ctx context.Context) ([]Recipient, error)
}

// ItemRepo управляет запланированными публикациями.
// Schedule принимает локальное время оператора; хранилище само привязывает
// его к операционному часовому поясу, чтобы в БД не попадали наивные метки.
type ItemRepo interface {
	Schedule(ctx context.Context, kind MediaKind, fileID, caption string, whenLocal time.Time) (int64, error)
	Due(ctx context.Context, now time.Time) ([]ScheduledItem, error)
	MarkSent(ctx context.Context, id int64) error
}

// Transport отправляет одно сообщение в один чат.
// Ошибки отправки классифицированы через *DeliveryError.
type Transport interface {
	SendText(ctx context.Context, chatID int64, body string) error
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string) error
	SendVideo(ctx context.Context, chatID int64, fileID, caption string) error
	SendDocument(ctx context.Context, chatID int64, fileID, caption string) error
}

// TickGuard не даёт двум репликам выполнить один и тот же тик.
type TickGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
