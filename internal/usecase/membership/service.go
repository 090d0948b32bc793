package membership

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"tg-broadcast-bot/internal/domain"
)

// Service отражает изменения членства бота в реестре получателей
// и уведомляет настроенный список операторов.
type Service struct {
	recipients domain.RecipientRepo
	transport  domain.Transport
	notifyIDs  []int64
	log        zerolog.Logger
}

// NewService создаёт сервис. notifyIDs — явный список получателей
// служебных уведомлений; уведомляются все перечисленные.
func NewService(recipients domain.RecipientRepo, transport domain.Transport, notifyIDs []int64, logger zerolog.Logger) *Service {
	return &Service{
		recipients: recipients,
		transport:  transport,
		notifyIDs:  notifyIDs,
		log:        logger,
	}
}

// Activate регистрирует чат активным получателем (или реактивирует его).
func (s *Service) Activate(ctx context.Context, id int64, title string, kind domain.ChatKind) error {
	if err := s.recipients.UpsertRecipient(ctx, id, title, kind); err != nil {
		return fmt.Errorf("регистрация чата %d: %w", id, err)
	}
	s.log.Info().Int64("chat_id", id).Str("title", title).Str("kind", string(kind)).Msg("чат подключён к рассылке")
	s.notify(ctx, fmt.Sprintf("✅ Бот подключён к чату «%s» (%d). Чат добавлен в рассылку.", title, id))
	return nil
}

// Deactivate убирает чат из рассылки.
func (s *Service) Deactivate(ctx context.Context, id int64, title string) error {
	if err := s.recipients.DeactivateRecipient(ctx, id); err != nil {
		return fmt.Errorf("отключение чата %d: %w", id, err)
	}
	s.log.Info().Int64("chat_id", id).Str("title", title).Msg("чат отключён от рассылки")
	s.notify(ctx, fmt.Sprintf("❌ Бот удалён из чата «%s» (%d). Публикации туда больше не отправляются.", title, id))
	return nil
}

// notify рассылает служебное сообщение. Ошибка уведомления не влияет
// на состояние реестра, только логируется.
func (s *Service) notify(ctx context.Context, text string) {
	for _, id := range s.notifyIDs {
		if err := s.transport.SendText(ctx, id, text); err != nil {
			s.log.Error().Err(err).Int64("operator", id).Msg("не удалось отправить уведомление оператору")
		}
	}
}
