package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tg-broadcast-bot/internal/domain"
	"tg-broadcast-bot/internal/infra/metrics"
)

// Postgres реализует реестр получателей и хранилище публикаций на pgxpool.
// Каждая операция выполняется на отдельном соединении пула: длинных
// транзакций поверх цикла рассылки нет.
type Postgres struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

var (
	_ domain.RecipientRepo = (*Postgres)(nil)
	_ domain.ItemRepo      = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД. loc — операционный часовой пояс,
// в котором интерпретируются локальные времена публикаций.
func NewPostgres(pool *pgxpool.Pool, loc *time.Location) *Postgres {
	return &Postgres{pool: pool, loc: loc}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// Migrate создаёт таблицы, если их ещё нет. Каждый DDL выполняется
// отдельным запросом: расширенный протокол pgx не принимает несколько
// команд в одном Exec.
func (p *Postgres) Migrate(ctx context.Context) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	statements := []string{`
CREATE TABLE IF NOT EXISTS recipients (
    id        BIGINT PRIMARY KEY,
    title     VARCHAR(255) NOT NULL,
    kind      VARCHAR(50)  NOT NULL,
    is_active BOOLEAN      NOT NULL DEFAULT TRUE
)`, `
CREATE TABLE IF NOT EXISTS scheduled_items (
    id           BIGSERIAL PRIMARY KEY,
    media_kind   VARCHAR(50) NOT NULL,
    file_id      TEXT        NOT NULL DEFAULT '',
    caption      TEXT        NOT NULL DEFAULT '',
    scheduled_at TIMESTAMPTZ NOT NULL,
    is_sent      BOOLEAN     NOT NULL DEFAULT FALSE
)`}
	for _, stmt := range statements {
		start := time.Now()
		_, err := p.pool.Exec(ctx, stmt)
		metrics.ObserveNetworkRequest("postgres", "migrate", "schema", start, err)
		if err != nil {
			return fmt.Errorf("миграция схемы: %w", err)
		}
	}
	return nil
}

// UpsertRecipient реализует domain.RecipientRepo: вставляет чат активным
// либо перезаписывает название/тип и принудительно активирует.
func (p *Postgres) UpsertRecipient(ctx context.Context, id int64, title string, kind domain.ChatKind) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO recipients (id, title, kind, is_active)
VALUES ($1, $2, $3, TRUE)
ON CONFLICT (id) DO UPDATE
SET title = EXCLUDED.title, kind = EXCLUDED.kind, is_active = TRUE
`, id, title, string(kind))
	metrics.ObserveNetworkRequest("postgres", "recipients_upsert", "recipients", start, err)
	if err != nil {
		return fmt.Errorf("upsert получателя %d: %w", id, err)
	}
	return nil
}

// DeactivateRecipient помечает чат неактивным. Неизвестный id — не ошибка.
func (p *Postgres) DeactivateRecipient(ctx context.Context, id int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE recipients SET is_active = FALSE WHERE id = $1`, id)
	metrics.ObserveNetworkRequest("postgres", "recipients_deactivate", "recipients", start, err)
	if err != nil {
		return fmt.Errorf("деактивация получателя %d: %w", id, err)
	}
	return nil
}

// ListActive возвращает всех активных получателей.
func (p *Postgres) ListActive(ctx context.Context) ([]domain.Recipient, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, title, kind FROM recipients WHERE is_active = TRUE ORDER BY id
`)
	metrics.ObserveNetworkRequest("postgres", "recipients_list_active", "recipients", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка активных получателей: %w", err)
	}
	defer rows.Close()

	var recipients []domain.Recipient
	for rows.Next() {
		var (
			r    domain.Recipient
			kind string
		)
		if err := rows.Scan(&r.ID, &r.Title, &kind); err != nil {
			return nil, err
		}
		r.Kind = domain.ChatKind(kind)
		r.Active = true
		recipients = append(recipients, r)
	}
	return recipients, rows.Err()
}

// Schedule сохраняет публикацию. whenLocal трактуется как настенные часы
// операционного пояса: компоненты времени заново привязываются к loc,
// чтобы наивная метка никогда не сравнивалась с aware-временем.
func (p *Postgres) Schedule(ctx context.Context, kind domain.MediaKind, fileID, caption string, whenLocal time.Time) (int64, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	y, mo, d := whenLocal.Date()
	h, mi, s := whenLocal.Clock()
	scheduledAt := time.Date(y, mo, d, h, mi, s, 0, p.loc)

	start := time.Now()
	var id int64
	err := p.pool.QueryRow(ctx, `
INSERT INTO scheduled_items (media_kind, file_id, caption, scheduled_at)
VALUES ($1, $2, $3, $4)
RETURNING id
`, string(kind), fileID, caption, scheduledAt).Scan(&id)
	metrics.ObserveNetworkRequest("postgres", "items_schedule", "scheduled_items", start, err)
	if err != nil {
		return 0, fmt.Errorf("сохранение публикации: %w", err)
	}
	return id, nil
}

// Due возвращает неотправленные публикации с наступившим временем.
// Один консистентный запрос, порядок — по id.
func (p *Postgres) Due(ctx context.Context, now time.Time) ([]domain.ScheduledItem, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, media_kind, file_id, caption, scheduled_at, is_sent
FROM scheduled_items
WHERE is_sent = FALSE AND scheduled_at <= $1
ORDER BY id
`, now)
	metrics.ObserveNetworkRequest("postgres", "items_due", "scheduled_items", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка публикаций к отправке: %w", err)
	}
	defer rows.Close()

	var items []domain.ScheduledItem
	for rows.Next() {
		var (
			item domain.ScheduledItem
			kind string
		)
		if err := rows.Scan(&item.ID, &kind, &item.FileID, &item.Caption, &item.ScheduledAt, &item.Sent); err != nil {
			return nil, err
		}
		item.Kind = domain.MediaKind(kind)
		item.ScheduledAt = item.ScheduledAt.In(p.loc)
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkSent помечает публикацию отправленной. Повторный вызов и неизвестный
// id безопасны: sent переходит false→true ровно один раз.
func (p *Postgres) MarkSent(ctx context.Context, id int64) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE scheduled_items SET is_sent = TRUE WHERE id = $1`, id)
	metrics.ObserveNetworkRequest("postgres", "items_mark_sent", "scheduled_items", start, err)
	if err != nil {
		return fmt.Errorf("отметка публикации %d: %w", id, err)
	}
	return nil
}
