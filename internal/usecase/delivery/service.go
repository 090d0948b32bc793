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

// Service — движок рассылки: раскладывает каждую созревшую публикацию по
// всем активным получателям и решает её итоговую судьбу.
type Service struct {
	items      domain.ItemRepo
	recipients domain.RecipientRepo
	transport  domain.Transport
	log        zerolog.Logger
	sendDelay  time.Duration
}

// NewService создаёт движок. sendDelay — пауза между отправками,
// чтобы не упираться в лимиты Bot API.
func NewService(items domain.ItemRepo, recipients domain.RecipientRepo, transport domain.Transport, logger zerolog.Logger, sendDelay time.Duration) *Service {
	return &Service{
		items:      items,
		recipients: recipients,
		transport:  transport,
		log:        logger,
		sendDelay:  sendDelay,
	}
}

// RunTick выполняет один проход рассылки на момент now.
//
// Список активных получателей снимается один раз на тик и не обновляется
// между публикациями: получатель, деактивированный ошибкой этого же тика,
// всё ещё получает попытки для оставшихся публикаций. Консистентность
// внутри тика важнее максимальной свежести.
//
// Публикация помечается отправленной только если хотя бы одна доставка
// удалась; пустой набор получателей или сплошные ошибки оставляют её
// в очереди до следующего тика.
func (s *Service) RunTick(ctx context.Context, now time.Time) error {
	due, err := s.items.Due(ctx, now)
	if err != nil {
		return fmt.Errorf("выборка публикаций: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	active, err := s.recipients.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("выборка получателей: %w", err)
	}

	s.log.Info().Int("items", len(due)).Int("recipients", len(active)).Msg("рассылка: начало тика")

	for _, item := range due {
		if err := s.deliverItem(ctx, item, active); err != nil {
			return err
		}
	}
	return nil
}

// deliverItem прогоняет одну публикацию по снимку получателей.
// Возвращает ошибку только при отмене контекста: любые ошибки доставки
// изолированы внутри цикла и не прерывают остальных получателей.
func (s *Service) deliverItem(ctx context.Context, item domain.ScheduledItem, active []domain.Recipient) error {
	delivered := 0

	for _, rcp := range active {
		if err := ctx.Err(); err != nil {
			// Отмена посреди цикла оставляет sent = false: при
			// at-least-once публикацию безопасно повторить.
			return err
		}

		err := s.dispatch(ctx, item, rcp.ID)
		if err == nil {
			delivered++
			metrics.DeliveryAttempts.WithLabelValues(metrics.ResultSuccess).Inc()
			if err := s.pause(ctx); err != nil {
				return err
			}
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var derr *domain.DeliveryError
		if errors.As(err, &derr) && derr.Permanent() {
			metrics.DeliveryAttempts.WithLabelValues(metrics.ResultPermanent).Inc()
			s.log.Warn().Int64("chat_id", rcp.ID).Str("title", rcp.Title).Str("class", string(derr.Class)).
				Msg("рассылка: получатель недоступен, деактивируем")
			if dErr := s.recipients.DeactivateRecipient(ctx, rcp.ID); dErr != nil {
				s.log.Error().Err(dErr).Int64("chat_id", rcp.ID).Msg("рассылка: не удалось деактивировать получателя")
			} else {
				metrics.RecipientsDeactivated.Inc()
			}
			continue
		}

		metrics.DeliveryAttempts.WithLabelValues(metrics.ResultTransient).Inc()
		s.log.Error().Err(err).Int64("item", item.ID).Int64("chat_id", rcp.ID).
			Msg("рассылка: временная ошибка доставки")
	}

	if delivered == 0 {
		s.log.Info().Int64("item", item.ID).Msg("рассылка: ни одной успешной доставки, публикация остаётся в очереди")
		return nil
	}

	if err := s.items.MarkSent(ctx, item.ID); err != nil {
		// Повторная доставка на следующем тике допустима по контракту.
		s.log.Error().Err(err).Int64("item", item.ID).Msg("рассылка: не удалось пометить публикацию")
		return nil
	}
	metrics.ItemsSent.Inc()
	s.log.Info().Int64("item", item.ID).Int("delivered", delivered).Msg("рассылка: публикация отправлена")
	return nil
}

func (s *Service) dispatch(ctx context.Context, item domain.ScheduledItem, chatID int64) error {
	start := time.Now()
	defer func() {
		metrics.DeliverySendSeconds.Observe(time.Since(start).Seconds())
	}()

	switch item.Kind {
	case domain.MediaText:
		return s.transport.SendText(ctx, chatID, item.Caption)
	case domain.MediaPhoto:
		return s.transport.SendPhoto(ctx, chatID, item.FileID, item.Caption)
	case domain.MediaVideo:
		return s.transport.SendVideo(ctx, chatID, item.FileID, item.Caption)
	case domain.MediaDocument:
		return s.transport.SendDocument(ctx, chatID, item.FileID, item.Caption)
	default:
		return fmt.Errorf("неизвестный тип публикации %q", item.Kind)
	}
}

// pause выдерживает троттлинг между отправками, уважая отмену.
func (s *Service) pause(ctx context.Context) error {
	if s.sendDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.sendDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
