// synergy-platform/models/payment.go
package models

import "time"

// Payment — один факт оплаты по записи плана: либо принятая верификация
// менеджера, либо ручная корректировка администратора. История оплат не
// удаляется, последняя запись определяет текущие PaidAmount/EvidenceRef плана.
type Payment struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	PlanID        uint      `json:"plan_id" gorm:"index;not null"`
	AmountPaid    int64     `json:"amount_paid" gorm:"not null"`
	ProofPath     string    `json:"proof_image_path"`
	PaymentMethod string    `json:"payment_method" gorm:"not null"` // 'Card/Click', 'Cash/Paper', 'Manual/Admin'
	VerifiedAt    time.Time `json:"verified_at"`

	// AuditLog — JSON с результатом форензик-проверки либо с пометкой
	// ручной корректировки. Хранится как есть для разбора инцидентов.
	AuditLog string `json:"ai_log"`

	// TransactionID — номер чека, извлеченный из подтверждения. Уникален в
	// пределах всей системы; уникальность контролирует движок, а не БД,
	// потому что пустое значение здесь — норма.
	TransactionID string `json:"transaction_id" gorm:"index"`
}
