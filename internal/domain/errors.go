package domain

import "fmt"

// FailureClass — классификация ошибки доставки со стороны транспорта.
type FailureClass string

const (
	// FailureUnreachable — чат больше не существует или недоступен боту.
	FailureUnreachable FailureClass = "unreachable"
	// FailureNotMember — бот исключён из чата.
	FailureNotMember FailureClass = "not_member"
	// FailureForbidden — у бота нет прав на отправку в этот чат.
	FailureForbidden FailureClass = "forbidden"
	// FailureRateLimited — транспорт попросил замедлиться.
	FailureRateLimited FailureClass = "rate_limited"
	// FailureOther — всё остальное; считается временной ошибкой.
	FailureOther FailureClass = "other"
)

// DeliveryError оборачивает ошибку транспорта вместе с её классом.
type DeliveryError struct {
	Class  FailureClass
	ChatID int64
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("доставка в чат %d: %s: %v", e.ChatID, e.Class, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Permanent сообщает, что получатель окончательно недоступен
// и его следует деактивировать в реестре.
func (e *DeliveryError) Permanent() bool {
	switch e.Class {
	case FailureUnreachable, FailureNotMember, FailureForbidden:
		return true
	}
	return false
}
