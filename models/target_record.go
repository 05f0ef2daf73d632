// synergy-platform/models/target_record.go
package models

import (
	"fmt"
	"time"
)

// TargetRecord — план по одному врачу на один месяц одной компании
// (строка таблицы master_plan). Канонической копией владеет движок сверки,
// остальной код получает копии значений.
type TargetRecord struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Company     string `json:"company" gorm:"index;not null"`
	Region      string `json:"region" gorm:"index;not null"` // нормализованный латинский верхний регистр
	District    string `json:"district"`
	GroupName   string `json:"group_name" gorm:"index;not null"` // A, B, C, A2, VITA и т.п.
	ManagerName string `json:"manager_name"`
	DoctorName  string `json:"doctor_name" gorm:"not null"`
	Specialty   string `json:"specialty"`
	Workplace   string `json:"workplace"`
	Phone       string `json:"phone"`
	CardNumber  string `json:"card_number"`

	TargetAmount int64  `json:"target_amount" gorm:"not null"`
	PlannedType  string `json:"planned_type"` // 'Card', 'Cash', 'Dollar' — влияет только на формат отображения
	Month        int    `json:"month" gorm:"index;not null"`

	// Факт оплаты. PaidAmount == 0 и пустой EvidenceRef означают,
	// что оплат еще не было.
	PaidAmount  int64  `json:"amount_paid"`
	EvidenceRef string `json:"proof_image"`

	Status       Status `json:"status" gorm:"type:text;default:'Pending'"`
	Manual       bool   `json:"manual"` // статус выставлен администратором, а не выведен правилом
	AdminComment string `json:"admin_comment"`

	UpdatedAt time.Time `json:"last_updated"`
}

// TableName сохраняет историческое имя таблицы.
func (TargetRecord) TableName() string { return "master_plan" }

// Debt — недобор по записи: max(план - факт, 0). Переплата по одному врачу
// никогда не гасит долг по другому, поэтому отрицательные значения срезаются здесь.
func (r *TargetRecord) Debt() int64 {
	if d := r.TargetAmount - r.PaidAmount; d > 0 {
		return d
	}
	return 0
}

// HasEvidence сообщает, прикреплялось ли к записи подтверждение оплаты.
func (r *TargetRecord) HasEvidence() bool { return r.EvidenceRef != "" }

// StatusLabel строит строку статуса в прежнем формате фронтенда,
// с суммой недобора/переплаты для Underpaid/Overpaid.
func (r *TargetRecord) StatusLabel() string {
	switch r.Status {
	case StatusUnderpaid:
		return fmt.Sprintf("⚠️ Underpaid (Debt: %d UZS)", r.TargetAmount-r.PaidAmount)
	case StatusOverpaid:
		return fmt.Sprintf("⚠️ Overpaid (+%d UZS)", r.PaidAmount-r.TargetAmount)
	default:
		return r.Status.Label()
	}
}
