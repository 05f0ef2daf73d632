// synergy-platform/internal/reconcile/aggregate.go
package reconcile

import (
	"iter"
	"sort"

	"synergy-platform/models"
)

// Stats — сводка по видимому подмножеству записей. Поля именованы как на
// старом дашборде. TotalDebt — сумма недоборов по записям, переплата одного
// врача долг другого не гасит.
type Stats struct {
	TotalDoctors  int   `json:"total_doctors"`
	TotalBudget   int64 `json:"total_budget"`
	TotalPaid     int64 `json:"total_paid"`
	TotalDebt     int64 `json:"total_debt"`
	PendingCount  int   `json:"pending_count"`
	VerifiedCount int   `json:"verified_count"`
}

// Summarize считает сводку за один проход. На пустом входе возвращает нули.
func Summarize(records iter.Seq[models.TargetRecord]) Stats {
	var st Stats
	for r := range records {
		st.TotalDoctors++
		st.TotalBudget += r.TargetAmount
		st.TotalPaid += r.PaidAmount
		st.TotalDebt += r.Debt()
		switch r.Status {
		case models.StatusPending:
			st.PendingCount++
		case models.StatusVerified:
			st.VerifiedCount++
		}
	}
	return st
}

// AggregateRow — строка лидерборда по связке (регион, группа).
// Completion — доля выполнения paid/target; при нулевом плане она не
// определена и в JSON опускается, деления на ноль не происходит.
type AggregateRow struct {
	Region     string   `json:"region"`
	GroupName  string   `json:"group_name"`
	Target     int64    `json:"target"`
	Paid       int64    `json:"paid"`
	Debt       int64    `json:"debt"`
	Completion *float64 `json:"completion,omitempty"`
	Flagged    bool     `json:"flagged,omitempty"`
}

// Leaderboard группирует записи по (регион, группа) и сортирует по убыванию
// долга. Равные долги упорядочиваются по региону, затем по метке группы,
// чтобы результат был детерминированным.
func Leaderboard(records iter.Seq[models.TargetRecord]) []AggregateRow {
	byKey := make(map[[2]string]*AggregateRow)
	for r := range records {
		key := [2]string{r.Region, r.GroupName}
		row := byKey[key]
		if row == nil {
			row = &AggregateRow{Region: r.Region, GroupName: r.GroupName}
			byKey[key] = row
		}
		row.Target += r.TargetAmount
		row.Paid += r.PaidAmount
		row.Debt += r.Debt()
	}

	rows := make([]AggregateRow, 0, len(byKey))
	for _, row := range byKey {
		if row.Target > 0 {
			c := float64(row.Paid) / float64(row.Target)
			row.Completion = &c
		}
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Debt != rows[j].Debt {
			return rows[i].Debt > rows[j].Debt
		}
		if rows[i].Region != rows[j].Region {
			return rows[i].Region < rows[j].Region
		}
		return rows[i].GroupName < rows[j].GroupName
	})
	return rows
}
