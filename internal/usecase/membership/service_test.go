package membership

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"tg-broadcast-bot/internal/domain"
)

type upsertCall struct {
	id    int64
	title string
	kind  domain.ChatKind
}

type stubRecipients struct {
	upserts       []upsertCall
	deactivated   []int64
	upsertErr     error
	deactivateErr error
}

func (s *stubRecipients) UpsertRecipient(_ context.Context, id int64, title string, kind domain.ChatKind) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts = append(s.upserts, upsertCall{id: id, title: title, kind: kind})
	return nil
}

func (s *stubRecipients) DeactivateRecipient(_ context.Context, id int64) error {
	if s.deactivateErr != nil {
		return s.deactivateErr
	}
	s.deactivated = append(s.deactivated, id)
	return nil
}

func (s *stubRecipients) ListActive(context.Context) ([]domain.Recipient, error) { return nil, nil }

type stubNotifier struct {
	texts   map[int64][]string
	sendErr error
}

func (s *stubNotifier) SendText(_ context.Context, chatID int64, body string) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	if s.texts == nil {
		s.texts = make(map[int64][]string)
	}
	s.texts[chatID] = append(s.texts[chatID], body)
	return nil
}

func (s *stubNotifier) SendPhoto(context.Context, int64, string, string) error    { return nil }
func (s *stubNotifier) SendVideo(context.Context, int64, string, string) error    { return nil }
func (s *stubNotifier) SendDocument(context.Context, int64, string, string) error { return nil }

func TestActivateNotifiesEveryConfiguredOperator(t *testing.T) {
	reg := &stubRecipients{}
	notifier := &stubNotifier{}
	s := NewService(reg, notifier, []int64{10, 20}, zerolog.Nop())

	if err := s.Activate(context.Background(), -100, "Новости", domain.ChatChannel); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if len(reg.upserts) != 1 {
		t.Fatalf("ожидали один upsert, получили %d", len(reg.upserts))
	}
	got := reg.upserts[0]
	if got.id != -100 || got.title != "Новости" || got.kind != domain.ChatChannel {
		t.Fatalf("неожиданный upsert: %+v", got)
	}
	// Уведомляются все настроенные операторы, не только первый.
	for _, op := range []int64{10, 20} {
		if len(notifier.texts[op]) != 1 {
			t.Fatalf("оператор %d не получил уведомление", op)
		}
	}
}

func TestDeactivateNotifies(t *testing.T) {
	reg := &stubRecipients{}
	notifier := &stubNotifier{}
	s := NewService(reg, notifier, []int64{10}, zerolog.Nop())

	if err := s.Deactivate(context.Background(), -100, "Новости"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(reg.deactivated) != 1 || reg.deactivated[0] != -100 {
		t.Fatalf("ожидали деактивацию чата -100, получили %v", reg.deactivated)
	}
	if len(notifier.texts[10]) != 1 {
		t.Fatal("оператор не получил уведомление об отключении")
	}
}

func TestNotificationFailureDoesNotFailRegistryUpdate(t *testing.T) {
	reg := &stubRecipients{}
	notifier := &stubNotifier{sendErr: errors.New("bot api")}
	s := NewService(reg, notifier, []int64{10}, zerolog.Nop())

	if err := s.Activate(context.Background(), -100, "Новости", domain.ChatGroup); err != nil {
		t.Fatalf("ошибка уведомления не должна срывать регистрацию: %v", err)
	}
	if len(reg.upserts) != 1 {
		t.Fatal("upsert должен выполниться несмотря на ошибку уведомления")
	}
}

func TestRegistryErrorIsReturned(t *testing.T) {
	reg := &stubRecipients{upsertErr: errors.New("БД недоступна")}
	notifier := &stubNotifier{}
	s := NewService(reg, notifier, []int64{10}, zerolog.Nop())

	if err := s.Activate(context.Background(), -100, "Новости", domain.ChatGroup); err == nil {
		t.Fatal("ожидали ошибку реестра")
	}
	if len(notifier.texts) != 0 {
		t.Fatal("при ошибке реестра уведомления не отправляются")
	}
}
