// synergy-platform/models/status.go
package models

import "fmt"

// Status — закрытый набор статусов сверки по врачу.
// Раньше статус был свободной строкой вида "✅ Verified", из-за чего сравнения
// делались через поиск подстроки. Теперь это типизированный вариант, а строка
// для интерфейса строится отдельно через Label().
type Status string

const (
	StatusPending   Status = "Pending"
	StatusVerified  Status = "Verified"
	StatusUnderpaid Status = "Underpaid"
	StatusOverpaid  Status = "Overpaid"
	// StatusManual — статус, выставленный администратором вручную и не
	// совпадающий ни с одним из автоматических вариантов. Всегда
	// сопровождается комментарием для аудита.
	StatusManual Status = "ManualOverride"
)

// Valid сообщает, входит ли значение в закрытый набор статусов.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusUnderpaid, StatusOverpaid, StatusManual:
		return true
	}
	return false
}

// ParseStatus преобразует строку в Status. Неизвестные значения — ошибка,
// а не молчаливый ManualOverride.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// Label возвращает строку статуса в прежнем формате фронтенда.
// Для Underpaid/Overpaid подставляется разница между планом и фактом,
// поэтому метод живет на записи, а не на самом статусе — см. TargetRecord.StatusLabel.
func (s Status) Label() string {
	switch s {
	case StatusVerified:
		return "✅ Verified"
	case StatusUnderpaid:
		return "⚠️ Underpaid"
	case StatusOverpaid:
		return "⚠️ Overpaid"
	case StatusManual:
		return "✍️ Manual"
	default:
		return "Pending"
	}
}
