package intake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tg-broadcast-bot/internal/domain"
)

// Ошибки диалога планирования, показываемые оператору.
var (
	ErrNoSession     = errors.New("диалог планирования не начат")
	ErrBadTimeFormat = errors.New("неверный формат времени")
	ErrPastTime      = errors.New("время уже прошло")
)

// TimeLayout — формат, в котором оператор вводит время отправки.
const TimeLayout = "2006-01-02 15:04:05"

// State — состояние диалога планирования.
type State int

const (
	StateIdle State = iota
	StateAwaitingContent
	StateAwaitingTime
)

type session struct {
	state     State
	draft     domain.Draft
	updatedAt time.Time
}

// Service ведёт двухшаговый диалог планирования для каждого оператора:
// сначала содержимое, затем время. Состояние хранится явно и истекает
// по TTL, чтобы брошенный диалог не завис навсегда.
type Service struct {
	items domain.ItemRepo
	loc   *time.Location
	ttl   time.Duration

	mu       sync.Mutex
	sessions map[int64]*session

	now func() time.Time
}

// NewService создаёт сервис. loc — операционный часовой пояс ввода времени.
func NewService(items domain.ItemRepo, loc *time.Location, ttl time.Duration) *Service {
	return &Service{
		items:    items,
		loc:      loc,
		ttl:      ttl,
		sessions: make(map[int64]*session),
		now:      time.Now,
	}
}

// Begin начинает (или перезапускает) диалог оператора.
func (s *Service) Begin(operatorID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[operatorID] = &session{state: StateAwaitingContent, updatedAt: s.now()}
}

// Cancel сбрасывает диалог. Отсутствие диалога — не ошибка.
func (s *Service) Cancel(operatorID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, operatorID)
}

// State возвращает текущее состояние диалога, истёкшие диалоги сбрасываются.
func (s *Service) State(operatorID int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.alive(operatorID)
	if sess == nil {
		return StateIdle
	}
	return sess.state
}

// SubmitContent принимает содержимое публикации и переводит диалог
// к ожиданию времени.
func (s *Service) SubmitContent(operatorID int64, draft domain.Draft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.alive(operatorID)
	if sess == nil || sess.state != StateAwaitingContent {
		return ErrNoSession
	}
	sess.draft = draft
	sess.state = StateAwaitingTime
	sess.updatedAt = s.now()
	return nil
}

// SubmitTime разбирает введённое время, проверяет, что оно в будущем,
// и сохраняет публикацию. Ошибки хранилища возвращаются оператору
// синхронно; диалог при этом сбрасывается.
func (s *Service) SubmitTime(ctx context.Context, operatorID int64, raw string) (int64, error) {
	s.mu.Lock()
	sess := s.alive(operatorID)
	if sess == nil || sess.state != StateAwaitingTime {
		s.mu.Unlock()
		return 0, ErrNoSession
	}
	draft := sess.draft
	s.mu.Unlock()

	when, err := time.ParseInLocation(TimeLayout, raw, s.loc)
	if err != nil {
		return 0, fmt.Errorf("%w: ожидается %s", ErrBadTimeFormat, TimeLayout)
	}
	// Обе метки привязаны к операционному поясу: сравнение aware против aware.
	if !when.After(s.now().In(s.loc)) {
		return 0, ErrPastTime
	}

	id, err := s.items.Schedule(ctx, draft.Kind, draft.FileID, draft.Caption, when)
	s.Cancel(operatorID)
	if err != nil {
		return 0, fmt.Errorf("планирование публикации: %w", err)
	}
	return id, nil
}

// alive возвращает живой диалог либо nil, удаляя истёкший.
// Вызывается под s.mu.
func (s *Service) alive(operatorID int64) *session {
	sess, ok := s.sessions[operatorID]
	if !ok {
		return nil
	}
	if s.ttl > 0 && s.now().Sub(sess.updatedAt) > s.ttl {
		delete(s.sessions, operatorID)
		return nil
	}
	return sess
}
