// synergy-platform/internal/reconcile/status.go
package reconcile

import "synergy-platform/models"

// DeriveStatus вычисляет статус записи по тройке (план, факт, подтверждение).
// Функция чистая и идемпотентная: ветки взаимоисключающие и покрывают все
// случаи, суммы сравниваются без округлений и без конвертации валют —
// тип оплаты (сум/доллар) влияет только на отображение.
//
// Порядок ветвления важен: запись без единой оплаты и без подтверждения
// остается Pending, даже если план нулевой.
func DeriveStatus(target, paid int64, hasEvidence bool) models.Status {
	switch {
	case paid == 0 && !hasEvidence:
		return models.StatusPending
	case paid < target:
		return models.StatusUnderpaid
	case paid > target:
		return models.StatusOverpaid
	default:
		return models.StatusVerified
	}
}
