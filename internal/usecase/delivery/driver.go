package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tg-broadcast-bot/internal/domain"
	"tg-broadcast-bot/internal/infra/metrics"
)

// Engine выполняет один проход рассылки.
type Engine interface {
	RunTick(ctx context.Context, now time.Time) error
}

// Driver дёргает движок с фиксированной периодичностью.
//
// Тик выполняется синхронно на горутине драйвера: пока проход не завершён,
// следующий не начнётся, а пропущенные удары тикер просто отбрасывает.
type Driver struct {
	engine   Engine
	guard    domain.TickGuard
	interval time.Duration
	loc      *time.Location
	log      zerolog.Logger
}

// NewDriver создаёт драйвер. guard опционален (nil для одиночной реплики).
func NewDriver(engine Engine, guard domain.TickGuard, interval time.Duration, loc *time.Location, logger zerolog.Logger) *Driver {
	return &Driver{
		engine:   engine,
		guard:    guard,
		interval: interval,
		loc:      loc,
		log:      logger,
	}
}

// Run блокируется до отмены контекста.
func (d *Driver) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.log.Info().Dur("interval", d.interval).Str("tz", d.loc.String()).Msg("тикер рассылки запущен")
	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("тикер рассылки остановлен")
			return
		case <-ticker.C:
			d.runOnce(ctx)
		}
	}
}

// runOnce выполняет один тик. Никакая ошибка или паника внутри тика
// не останавливает будущие тики.
func (d *Driver) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Msg("тик завершился паникой")
		}
	}()

	now := time.Now().In(d.loc)

	if d.guard != nil {
		key := fmt.Sprintf("broadcast:tick:%d", now.Truncate(d.interval).Unix())
		acquired, err := d.guard.Acquire(ctx, key, d.interval)
		if err != nil {
			// Guard — оптимизация для реплик; при его отказе тик
			// всё равно выполняется, идемпотентность обеспечивает БД.
			d.log.Warn().Err(err).Msg("guard тика недоступен, выполняем без блокировки")
		} else if !acquired {
			metrics.TicksSkipped.Inc()
			d.log.Debug().Str("key", key).Msg("тик уже выполняется другой репликой")
			return
		}
	}

	metrics.TicksTotal.Inc()
	if err := d.engine.RunTick(ctx, now); err != nil && !errors.Is(err, context.Canceled) {
		d.log.Error().Err(err).Msg("тик завершился с ошибкой")
	}
}
