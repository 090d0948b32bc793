package domain

import (
	"errors"
	"testing"
)

func TestDeliveryErrorPermanent(t *testing.T) {
	permanent := []FailureClass{FailureUnreachable, FailureNotMember, FailureForbidden}
	for _, class := range permanent {
		e := &DeliveryError{Class: class, ChatID: 1, Err: errors.New("x")}
		if !e.Permanent() {
			t.Fatalf("класс %s должен быть постоянным", class)
		}
	}
	transient := []FailureClass{FailureRateLimited, FailureOther}
	for _, class := range transient {
		e := &DeliveryError{Class: class, ChatID: 1, Err: errors.New("x")}
		if e.Permanent() {
			t.Fatalf("класс %s должен быть временным", class)
		}
	}
}

func TestDeliveryErrorUnwrap(t *testing.T) {
	inner := errors.New("bot api")
	e := &DeliveryError{Class: FailureOther, ChatID: 1, Err: inner}
	if !errors.Is(e, inner) {
		t.Fatal("исходная ошибка должна разворачиваться")
	}
}
