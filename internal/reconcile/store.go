// synergy-platform/internal/reconcile/store.go
package reconcile

import (
	"encoding/json"
	"fmt"
	"iter"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"synergy-platform/models"
)

// BatchKey — составной ключ набора записей: одна компания, один месяц.
// Запись никогда не встречается более чем в одном наборе.
type BatchKey struct {
	Company string
	Month   int
}

// Persister — сквозная запись изменений в долговременное хранилище.
// Движок не знает, что за ним стоит (в проде — Postgres через GORM,
// в тестах — ничего). Ошибка персистенции отменяет изменение в памяти
// и возвращается вызывающему, молча она не глотается.
type Persister interface {
	SaveRecord(rec models.TargetRecord) error
	SavePayment(p models.Payment) error
	ReplaceBatch(company string, month int, recs []models.TargetRecord) error
}

// monthBatch хранит записи одного ключа (компания, месяц).
//
// Чтения идут по атомарному снимку: писатель под mu собирает новую карту и
// подменяет указатель целиком, поэтому читатель никогда не видит
// полупримененной записи, а замена набора при импорте атомарна — виден либо
// старый набор, либо новый, смеси не бывает.
type monthBatch struct {
	mu      sync.Mutex
	records atomic.Pointer[map[uint]*models.TargetRecord]
}

func newMonthBatch() *monthBatch {
	b := &monthBatch{}
	empty := map[uint]*models.TargetRecord{}
	b.records.Store(&empty)
	return b
}

func (b *monthBatch) snapshot() map[uint]*models.TargetRecord { return *b.records.Load() }

// Store — каноническое хранилище записей плана, сгруппированных по
// (компания, месяц). Все мутации сериализуются замком набора, к которому
// принадлежит запись; чтения работают по консистентным снимкам и могут идти
// параллельно. Межзаписных транзакций нет: операции по разным врачам независимы.
type Store struct {
	mu            sync.RWMutex
	batches       map[BatchKey]*monthBatch
	index         map[uint]BatchKey // id записи -> ее набор
	payments      map[uint][]models.Payment
	txOwner       map[string]uint // номер чека -> id записи, по которой он уже учтен
	nextPlanID    uint
	nextPaymentID uint

	persist Persister
}

// NewStore создает хранилище. persist может быть nil — тогда изменения
// живут только в памяти (тесты).
func NewStore(persist Persister) *Store {
	return &Store{
		batches:       make(map[BatchKey]*monthBatch),
		index:         make(map[uint]BatchKey),
		payments:      make(map[uint][]models.Payment),
		txOwner:       make(map[string]uint),
		nextPlanID:    1,
		nextPaymentID: 1,
		persist:       persist,
	}
}

// Load наполняет хранилище при старте из долговременного хранилища,
// минуя Persister. Вызывается до начала обслуживания запросов.
func (s *Store) Load(recs []models.TargetRecord, payments []models.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey := make(map[BatchKey]map[uint]*models.TargetRecord)
	for i := range recs {
		r := recs[i]
		key := BatchKey{Company: r.Company, Month: r.Month}
		if byKey[key] == nil {
			byKey[key] = make(map[uint]*models.TargetRecord)
		}
		byKey[key][r.ID] = &r
		s.index[r.ID] = key
		if r.ID >= s.nextPlanID {
			s.nextPlanID = r.ID + 1
		}
	}
	for key, m := range byKey {
		b := newMonthBatch()
		mm := m
		b.records.Store(&mm)
		s.batches[key] = b
	}
	for _, p := range payments {
		s.payments[p.PlanID] = append(s.payments[p.PlanID], p)
		if p.TransactionID != "" {
			s.txOwner[p.TransactionID] = p.PlanID
		}
		if p.ID >= s.nextPaymentID {
			s.nextPaymentID = p.ID + 1
		}
	}
}

// Filters — необязательные фильтры поверх области видимости. Область
// видимости применяется всегда и первой: фильтры сужают уже разрешенное
// подмножество и не могут его расширить.
type Filters struct {
	Region     string
	Group      string
	DoctorName string // подстрока, без учета регистра
	Month      int    // 0 — без фильтра по месяцу
}

func (f Filters) match(r *models.TargetRecord) bool {
	if f.Region != "" && !strings.EqualFold(strings.TrimSpace(r.Region), strings.TrimSpace(f.Region)) {
		return false
	}
	if f.Group != "" && !strings.EqualFold(strings.TrimSpace(r.GroupName), strings.TrimSpace(f.Group)) {
		return false
	}
	if f.DoctorName != "" && !strings.Contains(strings.ToLower(r.DoctorName), strings.ToLower(f.DoctorName)) {
		return false
	}
	if f.Month != 0 && r.Month != f.Month {
		return false
	}
	return true
}

// List возвращает записи, видимые области scope и прошедшие фильтры,
// в устойчивом порядке: регион, затем ФИО врача, затем id. Последовательность
// ленивая и перезапускаемая: снимок берется в момент вызова List, повторный
// range обходит тот же снимок.
func (s *Store) List(scope Scope, f Filters) iter.Seq[models.TargetRecord] {
	recs := s.collect(scope, f)
	return func(yield func(models.TargetRecord) bool) {
		for _, r := range recs {
			if !yield(r) {
				return
			}
		}
	}
}

func (s *Store) collect(scope Scope, f Filters) []models.TargetRecord {
	s.mu.RLock()
	bs := make([]*monthBatch, 0, len(s.batches))
	for _, b := range s.batches {
		bs = append(bs, b)
	}
	s.mu.RUnlock()

	var out []models.TargetRecord
	for _, b := range bs {
		for _, r := range b.snapshot() {
			if scope(r) && f.match(r) {
				out = append(out, *r)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Region != out[j].Region {
			return out[i].Region < out[j].Region
		}
		if out[i].DoctorName != out[j].DoctorName {
			return out[i].DoctorName < out[j].DoctorName
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Get возвращает копию записи, если она видна области scope.
// Запись вне области и несуществующая запись дают одинаковый NotFoundError.
func (s *Store) Get(id uint, scope Scope) (models.TargetRecord, error) {
	b, _ := s.batchFor(id)
	if b == nil {
		return models.TargetRecord{}, &NotFoundError{ID: id}
	}
	r, ok := b.snapshot()[id]
	if !ok || !scope(r) {
		return models.TargetRecord{}, &NotFoundError{ID: id}
	}
	return *r, nil
}

func (s *Store) batchFor(id uint) (*monthBatch, BatchKey) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.index[id]
	if !ok {
		return nil, BatchKey{}
	}
	return s.batches[key], key
}

// PaymentInput — параметры фиксации оплаты по записи плана.
type PaymentInput struct {
	Amount        int64
	EvidenceRef   string // путь к подтверждению; пустой — оставить прежнее
	Method        string // 'Card/Click', 'Cash/Paper', 'Manual/Admin'
	TransactionID string // номер чека для контроля повторной сдачи
	AuditLog      string // JSON результата проверки, сохраняется как есть
}

// RecordPayment применяет оплату к записи и пересчитывает статус по правилу
// вывода. Область видимости актора проверяется и на мутации, не только на
// чтении: запись чужого региона неотличима от несуществующей. Повторный вызов
// с теми же аргументами дает тот же статус. Конкурирующие вызовы по одной
// записи сериализуются: побеждает последняя принятая запись, статус всегда
// пересчитан от ее сумм.
func (s *Store) RecordPayment(id uint, in PaymentInput, actor ActorContext) (models.TargetRecord, error) {
	if in.Amount < 0 {
		return models.TargetRecord{}, &ValidationError{Field: "amount_paid", Reason: "must be a non-negative integer"}
	}

	b, _ := s.batchFor(id)
	if b == nil {
		return models.TargetRecord{}, &NotFoundError{ID: id}
	}
	scope := ScopeFor(actor)

	b.mu.Lock()
	defer b.mu.Unlock()

	recs := b.snapshot()
	cur, ok := recs[id]
	if !ok || !scope(cur) {
		return models.TargetRecord{}, &NotFoundError{ID: id}
	}

	claimed, err := s.claimTransaction(in.TransactionID, id)
	if err != nil {
		return models.TargetRecord{}, err
	}
	fail := func(e error) (models.TargetRecord, error) {
		if claimed {
			s.releaseTransaction(in.TransactionID)
		}
		return models.TargetRecord{}, e
	}

	updated := *cur
	updated.PaidAmount = in.Amount
	if in.EvidenceRef != "" {
		updated.EvidenceRef = in.EvidenceRef
	}
	updated.Status = DeriveStatus(updated.TargetAmount, updated.PaidAmount, updated.HasEvidence())
	updated.Manual = false
	updated.UpdatedAt = time.Now().UTC()

	payment := models.Payment{
		ID:            s.takePaymentID(),
		PlanID:        id,
		AmountPaid:    in.Amount,
		ProofPath:     in.EvidenceRef,
		PaymentMethod: in.Method,
		VerifiedAt:    updated.UpdatedAt,
		AuditLog:      in.AuditLog,
		TransactionID: in.TransactionID,
	}

	if s.persist != nil {
		if err := s.persist.SaveRecord(updated); err != nil {
			return fail(fmt.Errorf("persist plan record: %w", err))
		}
		if err := s.persist.SavePayment(payment); err != nil {
			return fail(fmt.Errorf("persist payment: %w", err))
		}
	}

	s.commitRecord(b, recs, &updated)
	s.appendPayment(payment)
	return updated, nil
}

// OverrideInput — ручная корректировка администратора.
type OverrideInput struct {
	Amount      int64
	Status      models.Status
	Comment     string // обязателен: по нему аудит отличает ручной статус от автоматического
	EvidenceRef string // необязательное подтверждение; его наличие статус НЕ меняет
}

// ApplyAdminOverride выставляет сумму и статус в обход правила вывода.
// Доступно только админской сессии. В отличие от пути менеджера, загрузка
// подтверждения здесь статус не форсирует: статус берется строго из запроса,
// чтобы корректировка всегда была осознанной и попадала в аудит.
func (s *Store) ApplyAdminOverride(id uint, in OverrideInput, actor ActorContext) (models.TargetRecord, error) {
	if !actor.IsAdmin() {
		return models.TargetRecord{}, &ValidationError{Field: "actor", Reason: "admin role required"}
	}
	if in.Amount < 0 {
		return models.TargetRecord{}, &ValidationError{Field: "amount_paid", Reason: "must be a non-negative integer"}
	}
	if !in.Status.Valid() {
		return models.TargetRecord{}, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", string(in.Status))}
	}
	if strings.TrimSpace(in.Comment) == "" {
		return models.TargetRecord{}, &ValidationError{Field: "admin_comment", Reason: "override requires a comment"}
	}

	b, _ := s.batchFor(id)
	if b == nil {
		return models.TargetRecord{}, &NotFoundError{ID: id}
	}
	scope := ScopeFor(actor)

	b.mu.Lock()
	defer b.mu.Unlock()

	recs := b.snapshot()
	cur, ok := recs[id]
	if !ok || !scope(cur) {
		return models.TargetRecord{}, &NotFoundError{ID: id}
	}

	updated := *cur
	updated.PaidAmount = in.Amount
	updated.Status = in.Status
	updated.Manual = true
	updated.AdminComment = in.Comment
	if in.EvidenceRef != "" {
		updated.EvidenceRef = in.EvidenceRef
	}
	updated.UpdatedAt = time.Now().UTC()

	audit, _ := json.Marshal(map[string]any{
		"manual_override": true,
		"admin_comment":   in.Comment,
		"set_status":      string(in.Status),
	})
	payment := models.Payment{
		ID:            s.takePaymentID(),
		PlanID:        id,
		AmountPaid:    in.Amount,
		ProofPath:     in.EvidenceRef,
		PaymentMethod: "Manual/Admin",
		VerifiedAt:    updated.UpdatedAt,
		AuditLog:      string(audit),
	}

	if s.persist != nil {
		if err := s.persist.SaveRecord(updated); err != nil {
			return models.TargetRecord{}, fmt.Errorf("persist plan record: %w", err)
		}
		if err := s.persist.SavePayment(payment); err != nil {
			return models.TargetRecord{}, fmt.Errorf("persist payment: %w", err)
		}
	}

	s.commitRecord(b, recs, &updated)
	s.appendPayment(payment)
	return updated, nil
}

// BatchResult — итог импорта набора: частичный успех здесь норма,
// ошибки по строкам не валят операцию целиком.
type BatchResult struct {
	Inserted int      `json:"inserted_count"`
	Errors   []string `json:"errors"`
}

// ReplaceMonthBatch атомарно заменяет набор записей ключа (компания, месяц).
// Невалидные строки (пустое ФИО, неположительный план) собираются в Errors и
// пропускаются, валидные вставляются. Для читателей набора виден либо старый
// состав, либо новый целиком.
func (s *Store) ReplaceMonthBatch(company string, month int, rows []models.TargetRecord) (BatchResult, error) {
	if strings.TrimSpace(company) == "" {
		return BatchResult{}, &ValidationError{Field: "company", Reason: "must not be empty"}
	}
	if month < 1 || month > 12 {
		return BatchResult{}, &ValidationError{Field: "month", Reason: "must be between 1 and 12"}
	}

	result := BatchResult{Errors: []string{}}
	accepted := make([]models.TargetRecord, 0, len(rows))
	for i, row := range rows {
		if strings.TrimSpace(row.DoctorName) == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: missing doctor name", i+1))
			continue
		}
		if row.TargetAmount <= 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d (%s): target amount must be positive", i+1, row.DoctorName))
			continue
		}
		rec := row
		rec.Company = company
		rec.Month = month
		rec.PaidAmount = 0
		rec.EvidenceRef = ""
		rec.Status = models.StatusPending
		rec.Manual = false
		rec.AdminComment = ""
		rec.UpdatedAt = time.Now().UTC()
		accepted = append(accepted, rec)
	}

	key := BatchKey{Company: company, Month: month}
	s.mu.Lock()
	b := s.batches[key]
	if b == nil {
		b = newMonthBatch()
		s.batches[key] = b
	}
	for i := range accepted {
		accepted[i].ID = s.nextPlanID
		s.nextPlanID++
	}
	s.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	if s.persist != nil {
		if err := s.persist.ReplaceBatch(company, month, accepted); err != nil {
			return BatchResult{}, fmt.Errorf("persist batch: %w", err)
		}
	}

	old := b.snapshot()
	next := make(map[uint]*models.TargetRecord, len(accepted))
	for i := range accepted {
		r := accepted[i]
		next[r.ID] = &r
	}
	b.records.Store(&next)

	s.mu.Lock()
	for id := range old {
		delete(s.index, id)
	}
	for id := range next {
		s.index[id] = key
	}
	s.mu.Unlock()

	result.Inserted = len(accepted)
	return result, nil
}

// PaymentsFor возвращает историю оплат по записи, видимой области scope.
func (s *Store) PaymentsFor(id uint, scope Scope) ([]models.Payment, error) {
	if _, err := s.Get(id, scope); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Payment, len(s.payments[id]))
	copy(out, s.payments[id])
	return out, nil
}

// TransactionOwnerDoctor сообщает, по какому врачу уже учтен номер чека.
// Проверка глобальная, без области видимости: повтор чека из другого региона —
// тоже повтор.
func (s *Store) TransactionOwnerDoctor(txID string) (string, bool) {
	if txID == "" {
		return "", false
	}
	s.mu.RLock()
	ownerID, ok := s.txOwner[txID]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	b, _ := s.batchFor(ownerID)
	if b != nil {
		if r, ok := b.snapshot()[ownerID]; ok {
			return r.DoctorName, true
		}
	}
	// Запись могла быть замещена новым набором, но чек все равно учтен.
	return "Unknown", true
}

func (s *Store) claimTransaction(txID string, planID uint) (bool, error) {
	if txID == "" {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.txOwner[txID]; ok {
		if owner != planID {
			return false, &ValidationError{Field: "transaction_id", Reason: fmt.Sprintf("receipt %s already used", txID)}
		}
		return false, nil
	}
	s.txOwner[txID] = planID
	return true, nil
}

func (s *Store) releaseTransaction(txID string) {
	s.mu.Lock()
	delete(s.txOwner, txID)
	s.mu.Unlock()
}

func (s *Store) takePaymentID() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextPaymentID
	s.nextPaymentID++
	return id
}

func (s *Store) appendPayment(p models.Payment) {
	s.mu.Lock()
	s.payments[p.PlanID] = append(s.payments[p.PlanID], p)
	s.mu.Unlock()
}

// commitRecord публикует новую версию записи внутри набора. Вызывается
// строго под b.mu.
func (s *Store) commitRecord(b *monthBatch, recs map[uint]*models.TargetRecord, updated *models.TargetRecord) {
	next := make(map[uint]*models.TargetRecord, len(recs))
	for id, r := range recs {
		next[id] = r
	}
	next[updated.ID] = updated
	b.records.Store(&next)
}
