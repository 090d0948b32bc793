package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-broadcast-bot/internal/domain"
	"tg-broadcast-bot/internal/usecase/intake"
	"tg-broadcast-bot/internal/usecase/membership"
)

// Handler обслуживает апдейты бота: команды операторов, диалог
// планирования и события членства в чатах.
type Handler struct {
	bot        *tgbotapi.BotAPI
	log        zerolog.Logger
	intakeUC   *intake.Service
	memberUC   *membership.Service
	recipients domain.RecipientRepo
	operators  map[int64]struct{}
	loc        *time.Location
}

// NewHandler создаёт обработчик.
func NewHandler(bot *tgbotapi.BotAPI, logger zerolog.Logger, intakeUC *intake.Service, memberUC *membership.Service, recipients domain.RecipientRepo, operatorIDs []int64, loc *time.Location) *Handler {
	operators := make(map[int64]struct{}, len(operatorIDs))
	for _, id := range operatorIDs {
		operators[id] = struct{}{}
	}
	return &Handler{
		bot:        bot,
		log:        logger,
		intakeUC:   intakeUC,
		memberUC:   memberUC,
		recipients: recipients,
		operators:  operators,
		loc:        loc,
	}
}

// Run запускает long polling и блокируется до отмены контекста.
func (h *Handler) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message", "my_chat_member"}
	updates := h.bot.GetUpdatesChan(u)

	h.log.Info().Msg("бот-гейтвей запущен")
	for {
		select {
		case <-ctx.Done():
			h.bot.StopReceivingUpdates()
			h.log.Info().Msg("бот-гейтвей остановлен")
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			h.HandleUpdate(ctx, upd)
		}
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.MyChatMember != nil {
		h.handleMyChatMember(ctx, upd.MyChatMember)
		return
	}
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || !msg.Chat.IsPrivate() {
		return
	}
	operatorID := msg.From.ID

	switch msg.Command() {
	case "start":
		h.handleStart(ctx, msg.Chat.ID, operatorID)
		return
	case "myid":
		h.reply(msg.Chat.ID, fmt.Sprintf("Ваш ID: %d\nДобавьте его в ADMIN_IDS, чтобы управлять ботом.", operatorID))
		return
	case "newpost":
		h.handleNewPost(msg.Chat.ID, operatorID)
		return
	case "cancel":
		h.intakeUC.Cancel(operatorID)
		h.reply(msg.Chat.ID, "Диалог сброшен.")
		return
	}

	if !h.isOperator(operatorID) {
		return
	}

	switch h.intakeUC.State(operatorID) {
	case intake.StateAwaitingContent:
		h.handleContent(msg, operatorID)
	case intake.StateAwaitingTime:
		h.handleTime(ctx, msg, operatorID)
	default:
		h.reply(msg.Chat.ID, "Неизвестная команда. Доступно: /newpost, /myid, /cancel")
	}
}

func (h *Handler) handleStart(ctx context.Context, chatID, operatorID int64) {
	if !h.isOperator(operatorID) {
		h.reply(chatID, "Бот управляется только операторами. Узнать свой ID: /myid")
		return
	}
	active, err := h.recipients.ListActive(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось посчитать активные чаты")
		h.reply(chatID, "Бот работает. Запланировать публикацию: /newpost")
		return
	}
	h.reply(chatID, fmt.Sprintf("Бот работает. Активных чатов: %d\n\n/newpost — запланировать публикацию\n/myid — узнать свой ID", len(active)))
}

func (h *Handler) handleNewPost(chatID, operatorID int64) {
	if !h.isOperator(operatorID) {
		h.reply(chatID, "У вас нет доступа к этой команде.")
		return
	}
	h.intakeUC.Begin(operatorID)
	h.reply(chatID, "Отправьте содержимое публикации: текст, фото, видео или документ.")
}

func (h *Handler) handleContent(msg *tgbotapi.Message, operatorID int64) {
	draft, ok := DraftFromMessage(msg)
	if !ok {
		h.reply(msg.Chat.ID, "Поддерживаются только текст, фото, видео и документы.")
		return
	}
	if err := h.intakeUC.SubmitContent(operatorID, draft); err != nil {
		h.reply(msg.Chat.ID, "Диалог истёк. Начните заново: /newpost")
		return
	}
	nowLocal := time.Now().In(h.loc).Format(intake.TimeLayout)
	h.reply(msg.Chat.ID, fmt.Sprintf("Принято. Теперь отправьте время публикации в формате %s.\nТекущее время: %s", intake.TimeLayout, nowLocal))
}

func (h *Handler) handleTime(ctx context.Context, msg *tgbotapi.Message, operatorID int64) {
	id, err := h.intakeUC.SubmitTime(ctx, operatorID, strings.TrimSpace(msg.Text))
	switch {
	case err == nil:
		h.reply(msg.Chat.ID, fmt.Sprintf("✅ Публикация #%d запланирована на %s.", id, strings.TrimSpace(msg.Text)))
	case errors.Is(err, intake.ErrBadTimeFormat):
		h.reply(msg.Chat.ID, fmt.Sprintf("Неверный формат. Пример: %s", time.Now().In(h.loc).Add(time.Hour).Format(intake.TimeLayout)))
	case errors.Is(err, intake.ErrPastTime):
		h.reply(msg.Chat.ID, "Это время уже прошло. Укажите время в будущем.")
	case errors.Is(err, intake.ErrNoSession):
		h.reply(msg.Chat.ID, "Диалог истёк. Начните заново: /newpost")
	default:
		h.log.Error().Err(err).Int64("operator", operatorID).Msg("не удалось запланировать публикацию")
		h.reply(msg.Chat.ID, "Не удалось сохранить публикацию, попробуйте ещё раз.")
	}
}

func (h *Handler) handleMyChatMember(ctx context.Context, upd *tgbotapi.ChatMemberUpdated) {
	kind, ok := chatKind(upd.Chat.Type)
	if !ok {
		return
	}
	switch memberAction(upd.NewChatMember.Status, upd.Chat.Type, upd.NewChatMember.CanPostMessages) {
	case actionActivate:
		if err := h.memberUC.Activate(ctx, upd.Chat.ID, upd.Chat.Title, kind); err != nil {
			h.log.Error().Err(err).Int64("chat_id", upd.Chat.ID).Msg("не удалось зарегистрировать чат")
		}
	case actionDeactivate:
		if err := h.memberUC.Deactivate(ctx, upd.Chat.ID, upd.Chat.Title); err != nil {
			h.log.Error().Err(err).Int64("chat_id", upd.Chat.ID).Msg("не удалось отключить чат")
		}
	}
}

func (h *Handler) isOperator(id int64) bool {
	_, ok := h.operators[id]
	return ok
}

func (h *Handler) reply(chatID int64, text string) {
	if _, err := h.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("не удалось ответить")
	}
}

type action int

const (
	actionNone action = iota
	actionActivate
	actionDeactivate
)

// memberAction решает, как изменение статуса бота в чате отражается
// на реестре. В канал бот должен уметь публиковать, иначе регистрация
// бессмысленна.
func memberAction(newStatus, chatType string, canPost bool) action {
	switch newStatus {
	case "administrator", "member":
		if chatType == "channel" && !canPost {
			return actionNone
		}
		return actionActivate
	case "left", "kicked":
		return actionDeactivate
	}
	return actionNone
}

func chatKind(chatType string) (domain.ChatKind, bool) {
	switch chatType {
	case "channel":
		return domain.ChatChannel, true
	case "supergroup":
		return domain.ChatSupergroup, true
	case "group":
		return domain.ChatGroup, true
	}
	return "", false
}

// DraftFromMessage извлекает содержимое публикации из сообщения оператора.
// Для фото берётся самый крупный доступный размер.
func DraftFromMessage(msg *tgbotapi.Message) (domain.Draft, bool) {
	caption := msg.Caption
	switch {
	case len(msg.Photo) > 0:
		return domain.Draft{Kind: domain.MediaPhoto, FileID: msg.Photo[len(msg.Photo)-1].FileID, Caption: caption}, true
	case msg.Video != nil:
		return domain.Draft{Kind: domain.MediaVideo, FileID: msg.Video.FileID, Caption: caption}, true
	case msg.Document != nil:
		return domain.Draft{Kind: domain.MediaDocument, FileID: msg.Document.FileID, Caption: caption}, true
	case msg.Text != "":
		return domain.Draft{Kind: domain.MediaText, Caption: msg.Text}, true
	}
	return domain.Draft{}, false
}
