package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"tg-broadcast-bot/internal/domain"
)

type scheduleCall struct {
	kind    domain.MediaKind
	fileID  string
	caption string
	when    time.Time
}

type stubItems struct {
	nextID      int64
	scheduleErr error
	calls       []scheduleCall
}

func (s *stubItems) Schedule(_ context.Context, kind domain.MediaKind, fileID, caption string, when time.Time) (int64, error) {
	if s.scheduleErr != nil {
		return 0, s.scheduleErr
	}
	s.calls = append(s.calls, scheduleCall{kind: kind, fileID: fileID, caption: caption, when: when})
	return s.nextID, nil
}

func (s *stubItems) Due(context.Context, time.Time) ([]domain.ScheduledItem, error) { return nil, nil }
func (s *stubItems) MarkSent(context.Context, int64) error                          { return nil }

func newTestService(items *stubItems) *Service {
	return NewService(items, time.UTC, 10*time.Minute)
}

func TestIntakeHappyPath(t *testing.T) {
	items := &stubItems{nextID: 7}
	s := newTestService(items)
	const operator int64 = 42

	s.Begin(operator)
	if s.State(operator) != StateAwaitingContent {
		t.Fatal("после /newpost ожидали состояние ожидания содержимого")
	}

	draft := domain.Draft{Kind: domain.MediaPhoto, FileID: "abc", Caption: "подпись"}
	if err := s.SubmitContent(operator, draft); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if s.State(operator) != StateAwaitingTime {
		t.Fatal("после содержимого ожидали состояние ожидания времени")
	}

	id, err := s.SubmitTime(context.Background(), operator, "2030-01-02 15:04:05")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if id != 7 {
		t.Fatalf("ожидали id 7, получили %d", id)
	}
	if len(items.calls) != 1 {
		t.Fatalf("ожидали один вызов Schedule, получили %d", len(items.calls))
	}
	call := items.calls[0]
	if call.kind != domain.MediaPhoto || call.fileID != "abc" || call.caption != "подпись" {
		t.Fatalf("неожиданные аргументы Schedule: %+v", call)
	}
	if got := call.when.Format(TimeLayout); got != "2030-01-02 15:04:05" {
		t.Fatalf("неожиданное время: %s", got)
	}
	if s.State(operator) != StateIdle {
		t.Fatal("после планирования диалог должен сброситься")
	}
}

func TestSubmitContentWithoutBegin(t *testing.T) {
	s := newTestService(&stubItems{})
	if err := s.SubmitContent(1, domain.Draft{Kind: domain.MediaText}); !errors.Is(err, ErrNoSession) {
		t.Fatalf("ожидали ErrNoSession, получили %v", err)
	}
}

func TestSubmitTimeBadFormatAllowsRetry(t *testing.T) {
	s := newTestService(&stubItems{})
	s.Begin(1)
	if err := s.SubmitContent(1, domain.Draft{Kind: domain.MediaText, Caption: "hi"}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if _, err := s.SubmitTime(context.Background(), 1, "завтра"); !errors.Is(err, ErrBadTimeFormat) {
		t.Fatalf("ожидали ErrBadTimeFormat, получили %v", err)
	}
	if s.State(1) != StateAwaitingTime {
		t.Fatal("после ошибки формата диалог должен остаться в ожидании времени")
	}
}

func TestSubmitTimeInPast(t *testing.T) {
	s := newTestService(&stubItems{})
	s.now = func() time.Time {
		return time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	s.Begin(1)
	if err := s.SubmitContent(1, domain.Draft{Kind: domain.MediaText, Caption: "hi"}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if _, err := s.SubmitTime(context.Background(), 1, "2030-06-01 11:59:59"); !errors.Is(err, ErrPastTime) {
		t.Fatalf("ожидали ErrPastTime, получили %v", err)
	}
}

func TestSessionExpires(t *testing.T) {
	items := &stubItems{}
	s := NewService(items, time.UTC, time.Minute)
	current := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return current }

	s.Begin(1)
	current = current.Add(2 * time.Minute)

	if s.State(1) != StateIdle {
		t.Fatal("истёкший диалог должен сброситься")
	}
	if err := s.SubmitContent(1, domain.Draft{Kind: domain.MediaText}); !errors.Is(err, ErrNoSession) {
		t.Fatalf("ожидали ErrNoSession, получили %v", err)
	}
}

func TestCancelResetsSession(t *testing.T) {
	s := newTestService(&stubItems{})
	s.Begin(1)
	s.Cancel(1)
	if s.State(1) != StateIdle {
		t.Fatal("после /cancel диалог должен сброситься")
	}
	// Повторный сброс безопасен.
	s.Cancel(1)
}

func TestScheduleErrorSurfacesAndResets(t *testing.T) {
	items := &stubItems{scheduleErr: errors.New("БД недоступна")}
	s := newTestService(items)
	s.Begin(1)
	if err := s.SubmitContent(1, domain.Draft{Kind: domain.MediaText, Caption: "hi"}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if _, err := s.SubmitTime(context.Background(), 1, "2030-01-02 15:04:05"); err == nil {
		t.Fatal("ошибка хранилища должна вернуться оператору")
	}
	if s.State(1) != StateIdle {
		t.Fatal("после ошибки хранилища диалог сбрасывается")
	}
}
