// synergy-platform/internal/storage/gorm.go

// Package storage — сквозная запись изменений движка сверки в Postgres и
// наполнение движка при старте. Движок о GORM не знает: сюда он ходит только
// через интерфейс reconcile.Persister.
package storage

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"synergy-platform/internal/reconcile"
	"synergy-platform/models"
)

// GormPersister пишет изменения движка в базу. Каждая мутация движка уже
// сериализована его замками, поэтому здесь обычные upsert'ы без версий.
type GormPersister struct {
	DB *gorm.DB
}

// SaveRecord сохраняет текущую версию записи плана.
func (p *GormPersister) SaveRecord(rec models.TargetRecord) error {
	return p.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rec).Error
}

// SavePayment добавляет факт оплаты в историю.
func (p *GormPersister) SavePayment(pm models.Payment) error {
	return p.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&pm).Error
}

// ReplaceBatch атомарно (в транзакции) заменяет набор записей компании и
// месяца: старые строки удаляются, новые вставляются одним батчем.
func (p *GormPersister) ReplaceBatch(company string, month int, recs []models.TargetRecord) error {
	return p.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("company = ? AND month = ?", company, month).
			Delete(&models.TargetRecord{}).Error; err != nil {
			return err
		}
		if len(recs) == 0 {
			return nil
		}
		return tx.Create(&recs).Error
	})
}

// Hydrate наполняет движок всеми записями плана и историей оплат из базы.
// Вызывается один раз при старте, до регистрации маршрутов.
func Hydrate(db *gorm.DB, store *reconcile.Store) error {
	var recs []models.TargetRecord
	if err := db.Find(&recs).Error; err != nil {
		return fmt.Errorf("load master plan: %w", err)
	}
	var payments []models.Payment
	if err := db.Order("verified_at ASC").Find(&payments).Error; err != nil {
		return fmt.Errorf("load payments: %w", err)
	}
	store.Load(recs, payments)
	return nil
}
