// synergy-platform/internal/reconcile/aggregate_test.go
package reconcile

import (
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"synergy-platform/models"
)

func seq(recs ...models.TargetRecord) iter.Seq[models.TargetRecord] {
	return func(yield func(models.TargetRecord) bool) {
		for _, r := range recs {
			if !yield(r) {
				return
			}
		}
	}
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, Stats{}, Summarize(seq()))
}

func TestSummarize(t *testing.T) {
	st := Summarize(seq(
		models.TargetRecord{TargetAmount: 1000, PaidAmount: 1000, Status: models.StatusVerified},
		models.TargetRecord{TargetAmount: 500, PaidAmount: 200, Status: models.StatusUnderpaid},
		models.TargetRecord{TargetAmount: 300, PaidAmount: 0, Status: models.StatusPending},
		models.TargetRecord{TargetAmount: 100, PaidAmount: 250, Status: models.StatusOverpaid},
	))
	assert.Equal(t, 4, st.TotalDoctors)
	assert.Equal(t, int64(1900), st.TotalBudget)
	assert.Equal(t, int64(1450), st.TotalPaid)
	// Переплата четвертого врача не гасит недоборы остальных.
	assert.Equal(t, int64(600), st.TotalDebt)
	assert.Equal(t, 1, st.PendingCount)
	assert.Equal(t, 1, st.VerifiedCount)
}

func TestLeaderboardOrderAndGrouping(t *testing.T) {
	rows := Leaderboard(seq(
		models.TargetRecord{Region: "TOSHKENT CITY", GroupName: "A", TargetAmount: 1000, PaidAmount: 100},
		models.TargetRecord{Region: "TOSHKENT CITY", GroupName: "A", TargetAmount: 500, PaidAmount: 0},
		models.TargetRecord{Region: "SAMARQAND", GroupName: "B", TargetAmount: 2000, PaidAmount: 1900},
		models.TargetRecord{Region: "BUXORO", GroupName: "C", TargetAmount: 700, PaidAmount: 700},
	))
	require.Len(t, rows, 3)

	assert.Equal(t, "TOSHKENT CITY", rows[0].Region)
	assert.Equal(t, "A", rows[0].GroupName)
	assert.Equal(t, int64(1500), rows[0].Target)
	assert.Equal(t, int64(1400), rows[0].Debt)

	assert.Equal(t, "SAMARQAND", rows[1].Region)
	assert.Equal(t, int64(100), rows[1].Debt)

	assert.Equal(t, "BUXORO", rows[2].Region)
	assert.Equal(t, int64(0), rows[2].Debt)
	require.NotNil(t, rows[2].Completion)
	assert.InDelta(t, 1.0, *rows[2].Completion, 1e-9)
}

func TestLeaderboardTiesAreDeterministic(t *testing.T) {
	rows := Leaderboard(seq(
		models.TargetRecord{Region: "BUXORO", GroupName: "B", TargetAmount: 100, PaidAmount: 0},
		models.TargetRecord{Region: "BUXORO", GroupName: "A", TargetAmount: 100, PaidAmount: 0},
		models.TargetRecord{Region: "ANDIJON", GroupName: "C", TargetAmount: 100, PaidAmount: 0},
	))
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ANDIJON", "BUXORO", "BUXORO"}, []string{rows[0].Region, rows[1].Region, rows[2].Region})
	assert.Equal(t, "A", rows[1].GroupName)
	assert.Equal(t, "B", rows[2].GroupName)
}

func TestLeaderboardZeroTargetOmitsCompletion(t *testing.T) {
	rows := Leaderboard(seq(
		models.TargetRecord{Region: "NAVOIY", GroupName: "A", TargetAmount: 0, PaidAmount: 300},
	))
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].Completion)
	assert.Equal(t, int64(0), rows[0].Debt)
}

func TestFlagRule(t *testing.T) {
	fr, err := CompileFlagRule("debt > 1000 && completion < 0.5")
	require.NoError(t, err)

	rows := Leaderboard(seq(
		models.TargetRecord{Region: "TOSHKENT CITY", GroupName: "A", TargetAmount: 10000, PaidAmount: 2000},
		models.TargetRecord{Region: "SAMARQAND", GroupName: "B", TargetAmount: 10000, PaidAmount: 9500},
	))
	require.NoError(t, ApplyFlagRule(rows, fr))
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Flagged)
	assert.False(t, rows[1].Flagged)
}

func TestFlagRuleZeroTargetTreatsCompletionAsZero(t *testing.T) {
	fr, err := CompileFlagRule("completion == 0")
	require.NoError(t, err)
	ok, err := fr.Match(AggregateRow{Region: "NAVOIY", GroupName: "A", Paid: 300})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFlagRuleErrors(t *testing.T) {
	var vErr *ValidationError

	_, err := CompileFlagRule("debt >")
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "flag_rule", vErr.Field)

	fr, err := CompileFlagRule("debt + paid")
	require.NoError(t, err)
	_, err = fr.Match(AggregateRow{Debt: 1})
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Reason, "boolean")
}
