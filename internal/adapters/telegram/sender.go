package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg-broadcast-bot/internal/domain"
	"tg-broadcast-bot/internal/infra/metrics"
)

// Sender реализует domain.Transport поверх Bot API.
type Sender struct {
	bot *tgbotapi.BotAPI
}

var _ domain.Transport = (*Sender)(nil)

// NewSender создаёт транспорт.
func NewSender(bot *tgbotapi.BotAPI) *Sender {
	return &Sender{bot: bot}
}

// SendText отправляет текстовое сообщение.
func (s *Sender) SendText(ctx context.Context, chatID int64, body string) error {
	return s.send(ctx, chatID, "send_text", tgbotapi.NewMessage(chatID, body))
}

// SendPhoto отправляет фото по file_id с подписью.
func (s *Sender) SendPhoto(ctx context.Context, chatID int64, fileID, caption string) error {
	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
	msg.Caption = caption
	return s.send(ctx, chatID, "send_photo", msg)
}

// SendVideo отправляет видео по file_id с подписью.
func (s *Sender) SendVideo(ctx context.Context, chatID int64, fileID, caption string) error {
	msg := tgbotapi.NewVideo(chatID, tgbotapi.FileID(fileID))
	msg.Caption = caption
	return s.send(ctx, chatID, "send_video", msg)
}

// SendDocument отправляет документ по file_id с подписью.
func (s *Sender) SendDocument(ctx context.Context, chatID int64, fileID, caption string) error {
	msg := tgbotapi.NewDocument(chatID, tgbotapi.FileID(fileID))
	msg.Caption = caption
	return s.send(ctx, chatID, "send_document", msg)
}

// send выполняет отправку. Bot API клиент не принимает контекст,
// поэтому отмена проверяется перед сетевым вызовом.
func (s *Sender) send(ctx context.Context, chatID int64, operation string, c tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	_, err := s.bot.Send(c)
	metrics.ObserveNetworkRequest("telegram", operation, "bot_api", start, err)
	if err != nil {
		return Classify(chatID, err)
	}
	return nil
}

// Classify оборачивает ошибку Bot API в *domain.DeliveryError.
// Классы повторяют реакции, на которые опирается цикл рассылки:
// недоступный чат и потеря членства/прав деактивируют получателя,
// rate limit и прочее считаются временными.
func Classify(chatID int64, err error) *domain.DeliveryError {
	class := domain.FailureOther

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		msg := strings.ToLower(apiErr.Message)
		switch {
		case apiErr.Code == 429 || apiErr.RetryAfter > 0:
			class = domain.FailureRateLimited
		case strings.Contains(msg, "chat not found"),
			strings.Contains(msg, "chat was deleted"),
			strings.Contains(msg, "bot was blocked"),
			strings.Contains(msg, "user is deactivated"):
			class = domain.FailureUnreachable
		case strings.Contains(msg, "bot is not a member"),
			strings.Contains(msg, "bot was kicked"):
			class = domain.FailureNotMember
		case strings.Contains(msg, "not an administrator"),
			strings.Contains(msg, "not enough rights"),
			strings.Contains(msg, "have no rights"),
			strings.Contains(msg, "chat_write_forbidden"),
			strings.Contains(msg, "need administrator rights"):
			class = domain.FailureForbidden
		}
	}

	return &domain.DeliveryError{Class: class, ChatID: chatID, Err: err}
}
