// synergy-platform/internal/reconcile/errors.go
package reconcile

import "fmt"

// ValidationError — некорректный ввод: отрицательная сумма, неизвестный
// статус, пустое обязательное поле. Возвращается вызывающему как есть и
// никогда не повторяется автоматически.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// NotFoundError — запись не существует либо находится вне области видимости
// актора. Эти два случая намеренно неразличимы снаружи, чтобы по ответам
// нельзя было прощупать чужие регионы.
type NotFoundError struct {
	ID uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("plan record %d not found", e.ID)
}
