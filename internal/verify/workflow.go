// synergy-platform/internal/verify/workflow.go
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"synergy-platform/internal/reconcile"
	"synergy-platform/models"
)

// State — состояние одной попытки верификации.
// Submitted -> Extracting -> {Accepted, Rejected}. Повторная сдача нового
// подтверждения — всегда новая попытка, автоматических ретраев нет.
type State string

const (
	StateSubmitted  State = "Submitted"
	StateExtracting State = "Extracting"
	StateAccepted   State = "Accepted"
	StateRejected   State = "Rejected"
)

// ExtractionError — сбой внешнего сервиса извлечения: недоступен или вернул
// неразбираемый ответ. Попытка завершается отказом, запись плана не трогается,
// ситуация лечится повторной сдачей.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string { return fmt.Sprintf("extraction: %v", e.Err) }
func (e *ExtractionError) Unwrap() error { return e.Err }

// Evidence — загруженное менеджером подтверждение оплаты.
type Evidence struct {
	Data     []byte
	MIMEType string
	FileName string
}

// Extraction — результат форензик-проверки подтверждения внешним сервисом.
// Указатели различают "сервис ответил false" и "сервис поле не вернул":
// на отсутствие ответа гейткипер реагирует мягче, чем на явное false.
type Extraction struct {
	Name            string  `json:"extracted_name"`
	Phone           string  `json:"extracted_phone"`
	PhoneLast4      string  `json:"extracted_phone_last4"`
	Amount          int64   `json:"extracted_amount"`
	Month           *int    `json:"extracted_month"`
	TransactionID   string  `json:"extracted_transaction_id"`
	HasCompleteDate *bool   `json:"has_complete_date"`
	HasSignature    *bool   `json:"has_signature"`
	HasStamp        *bool   `json:"has_stamp"`
	IsAuthentic     *bool   `json:"is_authentic"`
	IdentityMatch   *bool   `json:"identity_match"`
	Confidence      float64 `json:"confidence"`
	Reason          string  `json:"reason"`
}

// Extractor — внешний сервис извлечения данных из подтверждения.
// paymentMethod влияет на правила проверки подлинности (наличные требуют
// подписи или печати, карта — нет).
type Extractor interface {
	Extract(ctx context.Context, ev Evidence, plan models.TargetRecord, paymentMethod string) (Extraction, error)
}

// EvidenceStore — хранилище подтверждений; возвращает непрозрачную ссылку.
type EvidenceStore interface {
	Save(ev Evidence, plan models.TargetRecord) (string, error)
}

// Outcome — итог попытки верификации для вызывающего.
type Outcome struct {
	State           State         `json:"state"`
	Message         string        `json:"message"`
	ExtractedAmount int64         `json:"extracted_amount"`
	NewStatus       models.Status `json:"new_status,omitempty"`
	Record          models.TargetRecord
}

// Accepted сообщает, завершилась ли попытка фиксацией оплаты.
func (o Outcome) Accepted() bool { return o.State == StateAccepted }

// Workflow оркестрирует путь менеджера: подтверждение + способ оплаты ->
// извлечение -> гейткипер -> фиксация оплаты в хранилище. Замок записи
// берется только на финальном шаге RecordPayment: зависшее извлечение не
// держит никаких замков.
type Workflow struct {
	store     *reconcile.Store
	extractor Extractor
	evidence  EvidenceStore
	timeout   time.Duration
}

// NewWorkflow собирает поток верификации. timeout ограничивает обращение к
// сервису извлечения; ноль означает 45 секунд (как у распознавания счетов).
func NewWorkflow(store *reconcile.Store, ex Extractor, ev EvidenceStore, timeout time.Duration) *Workflow {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Workflow{store: store, extractor: ex, evidence: ev, timeout: timeout}
}

// Submit проводит одну попытку верификации от начала до конца.
// Ошибка возвращается только для случаев вне машины состояний (запись не
// найдена, не сохранилось подтверждение); отказ гейткипера или сервиса
// извлечения — это Outcome со State == Rejected, запись плана не изменена.
func (w *Workflow) Submit(ctx context.Context, actor reconcile.ActorContext, planID uint, paymentMethod string, ev Evidence) (Outcome, error) {
	plan, err := w.store.Get(planID, reconcile.ScopeFor(actor))
	if err != nil {
		return Outcome{}, err
	}

	proofPath, err := w.evidence.Save(ev, plan)
	if err != nil {
		return Outcome{}, fmt.Errorf("store evidence: %w", err)
	}

	exCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	extraction, err := w.extractor.Extract(exCtx, ev, plan, paymentMethod)
	if err != nil {
		return Outcome{
			State:   StateRejected,
			Message: "❌ REJECTED: Could not analyze the receipt. Please resubmit a clearer photo.",
			Record:  plan,
		}, nil
	}

	if reason, ok := w.gatekeep(extraction, plan, paymentMethod); !ok {
		return Outcome{State: StateRejected, Message: reason, Record: plan}, nil
	}

	auditLog, _ := json.Marshal(extraction)
	updated, err := w.store.RecordPayment(planID, reconcile.PaymentInput{
		Amount:        extraction.Amount,
		EvidenceRef:   proofPath,
		Method:        paymentMethod,
		TransactionID: extraction.TransactionID,
		AuditLog:      string(auditLog),
	}, actor)
	if err != nil {
		var vErr *reconcile.ValidationError
		if errors.As(err, &vErr) {
			// Гонка по номеру чека между гейткипером и фиксацией.
			return Outcome{State: StateRejected, Message: "❌ REJECTED: " + vErr.Reason, Record: plan}, nil
		}
		return Outcome{}, err
	}

	return Outcome{
		State:           StateAccepted,
		Message:         fmt.Sprintf("Payment verified: %d UZS", extraction.Amount),
		ExtractedAmount: extraction.Amount,
		NewStatus:       updated.Status,
		Record:          updated,
	}, nil
}

// gatekeep применяет правила допуска к результату извлечения.
// Порядок правил сохранен: дата, подпись/печать для наличных, месяц,
// личность, повтор чека.
func (w *Workflow) gatekeep(ex Extraction, plan models.TargetRecord, paymentMethod string) (string, bool) {
	if ex.HasCompleteDate != nil && !*ex.HasCompleteDate {
		return "❌ REJECTED: Month Missing. The receipt must specify at least the Month and Year. Blank date lines are not allowed.", false
	}

	if isCash(paymentMethod) {
		// Для бумажного чека достаточно одного из двух: подписи или печати.
		// Отсутствие поля в ответе сервиса не считается явным false.
		hasSignature := ex.HasSignature != nil && *ex.HasSignature
		hasStamp := ex.HasStamp != nil && *ex.HasStamp
		if !hasSignature && !hasStamp {
			return "❌ REJECTED: No Authentication. Paper receipts must have at least a signature OR a stamp for verification.", false
		}
	}

	if ex.Month != nil && *ex.Month != plan.Month {
		return fmt.Sprintf("❌ REJECTED: Wrong Month. Found %d, expected %s (%d).", *ex.Month, monthName(plan.Month), plan.Month), false
	}

	if ex.IdentityMatch != nil && !*ex.IdentityMatch {
		return "❌ REJECTED: Identity Mismatch. Could not verify Doctor Name or Phone.", false
	}

	if ex.TransactionID != "" {
		if doctor, used := w.store.TransactionOwnerDoctor(ex.TransactionID); used {
			return fmt.Sprintf("❌ REJECTED: Duplicate Receipt. This transaction ID (%s) was already used for doctor: %s. Each receipt can only be submitted once.", ex.TransactionID, doctor), false
		}
	}

	return "", true
}

func isCash(method string) bool {
	switch method {
	case "cash", "Cash", "Cash/Paper":
		return true
	}
	return false
}

var monthNames = [...]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

func monthName(m int) string {
	if m >= 1 && m <= 12 {
		return monthNames[m-1]
	}
	return fmt.Sprintf("%d", m)
}
