// synergy-platform/internal/verify/workflow_test.go
package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synergy-platform/internal/reconcile"
	"synergy-platform/models"
)

var manager = reconcile.ActorContext{
	UserID:      2,
	Role:        reconcile.RoleManager,
	Company:     "ACME",
	Region:      "TOSHKENT CITY",
	GroupAccess: "ALL",
}

type fakeExtractor struct {
	result Extraction
	err    error
	calls  int
}

func (f *fakeExtractor) Extract(_ context.Context, _ Evidence, _ models.TargetRecord, _ string) (Extraction, error) {
	f.calls++
	return f.result, f.err
}

type fakeEvidenceStore struct {
	saved int
	err   error
}

func (f *fakeEvidenceStore) Save(_ Evidence, _ models.TargetRecord) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.saved++
	return "uploads/proof.jpg", nil
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

func newTestStore(t *testing.T) (*reconcile.Store, uint) {
	t.Helper()
	s := reconcile.NewStore(nil)
	res, err := s.ReplaceMonthBatch("ACME", 12, []models.TargetRecord{
		{DoctorName: "Aliyev A.", Region: "TOSHKENT CITY", GroupName: "A", TargetAmount: 1000, Phone: "998901234567"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Inserted)

	var id uint
	for r := range s.List(reconcile.ScopeFor(manager), reconcile.Filters{}) {
		id = r.ID
	}
	require.NotZero(t, id)
	return s, id
}

func cleanExtraction(amount int64) Extraction {
	return Extraction{
		Name:            "Aliyev A.",
		Amount:          amount,
		Month:           intPtr(12),
		TransactionID:   "TX-100",
		HasCompleteDate: boolPtr(true),
		HasSignature:    boolPtr(true),
		IdentityMatch:   boolPtr(true),
		Confidence:      0.95,
	}
}

func evidence() Evidence {
	return Evidence{Data: []byte("jpeg-bytes"), MIMEType: "image/jpeg", FileName: "receipt.jpg"}
}

func TestSubmitAccepted(t *testing.T) {
	s, id := newTestStore(t)
	ex := &fakeExtractor{result: cleanExtraction(1000)}
	ev := &fakeEvidenceStore{}
	w := NewWorkflow(s, ex, ev, 0)

	out, err := w.Submit(context.Background(), manager, id, "Cash/Paper", evidence())
	require.NoError(t, err)
	assert.True(t, out.Accepted())
	assert.Equal(t, StateAccepted, out.State)
	assert.Equal(t, int64(1000), out.ExtractedAmount)
	assert.Equal(t, models.StatusVerified, out.NewStatus)
	assert.Equal(t, 1, ev.saved)
	assert.Equal(t, 1, ex.calls)

	got, err := s.Get(id, reconcile.ScopeFor(manager))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.PaidAmount)
	assert.Equal(t, "uploads/proof.jpg", got.EvidenceRef)

	payments, err := s.PaymentsFor(id, reconcile.ScopeFor(manager))
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "Cash/Paper", payments[0].PaymentMethod)
	assert.Contains(t, payments[0].AuditLog, "extracted_name")
}

func TestSubmitPartialPaymentUnderpaid(t *testing.T) {
	s, id := newTestStore(t)
	w := NewWorkflow(s, &fakeExtractor{result: cleanExtraction(400)}, &fakeEvidenceStore{}, 0)

	out, err := w.Submit(context.Background(), manager, id, "Cash/Paper", evidence())
	require.NoError(t, err)
	assert.True(t, out.Accepted())
	assert.Equal(t, models.StatusUnderpaid, out.NewStatus)
	assert.Equal(t, "⚠️ Underpaid (Debt: 600 UZS)", out.Record.StatusLabel())
}

func TestSubmitExtractionFailureRejectsWithoutTouchingPlan(t *testing.T) {
	s, id := newTestStore(t)
	ex := &fakeExtractor{err: &ExtractionError{Err: errors.New("model overloaded")}}
	w := NewWorkflow(s, ex, &fakeEvidenceStore{}, 0)

	out, err := w.Submit(context.Background(), manager, id, "Cash/Paper", evidence())
	require.NoError(t, err)
	assert.Equal(t, StateRejected, out.State)
	assert.Contains(t, out.Message, "Could not analyze")

	got, err := s.Get(id, reconcile.ScopeFor(manager))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, int64(0), got.PaidAmount)
}

func TestSubmitUnknownPlan(t *testing.T) {
	s, _ := newTestStore(t)
	w := NewWorkflow(s, &fakeExtractor{result: cleanExtraction(1000)}, &fakeEvidenceStore{}, 0)

	var nf *reconcile.NotFoundError
	_, err := w.Submit(context.Background(), manager, 99999, "Cash/Paper", evidence())
	assert.ErrorAs(t, err, &nf)
}

func TestSubmitEvidenceStoreFailure(t *testing.T) {
	s, id := newTestStore(t)
	w := NewWorkflow(s, &fakeExtractor{result: cleanExtraction(1000)}, &fakeEvidenceStore{err: errors.New("disk full")}, 0)

	_, err := w.Submit(context.Background(), manager, id, "Cash/Paper", evidence())
	assert.Error(t, err)
}

func TestGatekeeperBlankDate(t *testing.T) {
	s, id := newTestStore(t)
	ex := cleanExtraction(1000)
	ex.HasCompleteDate = boolPtr(false)
	w := NewWorkflow(s, &fakeExtractor{result: ex}, &fakeEvidenceStore{}, 0)

	out, err := w.Submit(context.Background(), manager, id, "Cash/Paper", evidence())
	require.NoError(t, err)
	assert.Equal(t, StateRejected, out.State)
	assert.Contains(t, out.Message, "Month Missing")
}

func TestGatekeeperCashNeedsSignatureOrStamp(t *testing.T) {
	s, id := newTestStore(t)
	ex := cleanExtraction(1000)
	ex.HasSignature = boolPtr(false)
	ex.HasStamp = boolPtr(false)
	w := NewWorkflow(s, &fakeExtractor{result: ex}, &fakeEvidenceStore{}, 0)

	out, err := w.Submit(context.Background(), manager, id, "Cash/Paper", evidence())
	require.NoError(t, err)
	assert.Equal(t, StateRejected, out.State)
	assert.Contains(t, out.Message, "No Authentication")
}

func TestGatekeeperStampAloneSuffices(t *testing.T) {
	s, id := newTestStore(t)
	ex := cleanExtraction(1000)
	ex.HasSignature = boolPtr(false)
	ex.HasStamp = boolPtr(true)
	w := NewWorkflow(s, &fakeExtractor{result: ex}, &fakeEvidenceStore{}, 0)

	out, err := w.Submit(context.Background(), manager, id, "Cash/Paper", evidence())
	require.NoError(t, err)
	assert.True(t, out.Accepted())
}

func TestGatekeeperCardSkipsAuthenticationRule(t *testing.T) {
	s, id := newTestStore(t)
	ex := cleanExtraction(1000)
	ex.HasSignature = boolPtr(false)
	ex.HasStamp = boolPtr(false)
	w := NewWorkflow(s, &fakeExtractor{result: ex}, &fakeEvidenceStore{}, 0)

	out, err := w.Submit(context.Background(), manager, id, "Card/Click", evidence())
	require.NoError(t, err)
	assert.True(t, out.Accepted())
}

func TestGatekeeperWrongMonth(t *testing.T) {
	s, id := newTestStore(t)
	ex := cleanExtraction(1000)
	ex.Month = intPtr(11)
	w := NewWorkflow(s, &fakeExtractor{result: ex}, &fakeEvidenceStore{}, 0)

	out, err := w.Submit(context.Background(), manager, id, "Cash/Paper", evidence())
	require.NoError(t, err)
	assert.Equal(t, StateRejected, out.State)
	assert.Contains(t, out.Message, "Wrong Month")
	assert.Contains(t, out.Message, "December")
}

func TestGatekeeperMissingMonthIsTolerated(t *testing.T) {
	s, id := newTestStore(t)
	ex := cleanExtraction(1000)
	ex.Month = nil
	w := NewWorkflow(s, &fakeExtractor{result: ex}, &fakeEvidenceStore{}, 0)

	out, err := w.Submit(context.Background(), manager, id, "Cash/Paper", evidence())
	require.NoError(t, err)
	assert.True(t, out.Accepted())
}

func TestGatekeeperIdentityMismatch(t *testing.T) {
	s, id := newTestStore(t)
	ex := cleanExtraction(1000)
	ex.IdentityMatch = boolPtr(false)
	w := NewWorkflow(s, &fakeExtractor{result: ex}, &fakeEvidenceStore{}, 0)

	out, err := w.Submit(context.Background(), manager, id, "Cash/Paper", evidence())
	require.NoError(t, err)
	assert.Equal(t, StateRejected, out.State)
	assert.Contains(t, out.Message, "Identity Mismatch")
}

func TestGatekeeperDuplicateReceipt(t *testing.T) {
	s := reconcile.NewStore(nil)
	res, err := s.ReplaceMonthBatch("ACME", 12, []models.TargetRecord{
		{DoctorName: "Aliyev A.", Region: "TOSHKENT CITY", GroupName: "A", TargetAmount: 1000},
		{DoctorName: "Karimova B.", Region: "TOSHKENT CITY", GroupName: "A", TargetAmount: 500},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Inserted)

	var ids []uint
	for r := range s.List(reconcile.ScopeFor(manager), reconcile.Filters{}) {
		ids = append(ids, r.ID)
	}
	require.Len(t, ids, 2)

	w := NewWorkflow(s, &fakeExtractor{result: cleanExtraction(500)}, &fakeEvidenceStore{}, 0)

	out, err := w.Submit(context.Background(), manager, ids[0], "Cash/Paper", evidence())
	require.NoError(t, err)
	require.True(t, out.Accepted())

	// Тот же чек по другому врачу отбивается с именем первого владельца.
	out, err = w.Submit(context.Background(), manager, ids[1], "Cash/Paper", evidence())
	require.NoError(t, err)
	assert.Equal(t, StateRejected, out.State)
	assert.Contains(t, out.Message, "Duplicate Receipt")
	assert.Contains(t, out.Message, "TX-100")
	assert.Contains(t, out.Message, "Aliyev A.")
}

func TestResubmissionIsNewAttempt(t *testing.T) {
	s, id := newTestStore(t)
	ex := &fakeExtractor{err: &ExtractionError{Err: errors.New("timeout")}}
	w := NewWorkflow(s, ex, &fakeEvidenceStore{}, 0)

	out, err := w.Submit(context.Background(), manager, id, "Cash/Paper", evidence())
	require.NoError(t, err)
	require.Equal(t, StateRejected, out.State)

	// Сервис ожил — повторная сдача проходит без ручного вмешательства.
	ex.err = nil
	ex.result = cleanExtraction(1000)
	out, err = w.Submit(context.Background(), manager, id, "Cash/Paper", evidence())
	require.NoError(t, err)
	assert.True(t, out.Accepted())
}
