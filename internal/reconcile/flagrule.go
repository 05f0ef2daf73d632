// synergy-platform/internal/reconcile/flagrule.go
package reconcile

import (
	"fmt"

	"github.com/Knetic/govaluate"
)

// FlagRule — админское правило подсветки строк лидерборда, заданное
// выражением над параметрами target, paid, debt и completion.
// Пример: "debt > 1000000 && completion < 0.5".
type FlagRule struct {
	src  string
	expr *govaluate.EvaluableExpression
}

// CompileFlagRule разбирает выражение правила. Синтаксическая ошибка —
// ValidationError, она уходит вызывающему как есть.
func CompileFlagRule(src string) (*FlagRule, error) {
	expr, err := govaluate.NewEvaluableExpression(src)
	if err != nil {
		return nil, &ValidationError{Field: "flag_rule", Reason: fmt.Sprintf("bad expression: %v", err)}
	}
	return &FlagRule{src: src, expr: expr}, nil
}

// Match вычисляет правило для строки. При неопределенном completion
// (нулевой план) в выражение подставляется 0.
func (fr *FlagRule) Match(row AggregateRow) (bool, error) {
	completion := 0.0
	if row.Completion != nil {
		completion = *row.Completion
	}
	params := map[string]interface{}{
		"target":     float64(row.Target),
		"paid":       float64(row.Paid),
		"debt":       float64(row.Debt),
		"completion": completion,
	}
	res, err := fr.expr.Evaluate(params)
	if err != nil {
		return false, &ValidationError{Field: "flag_rule", Reason: fmt.Sprintf("evaluate: %v", err)}
	}
	b, ok := res.(bool)
	if !ok {
		return false, &ValidationError{Field: "flag_rule", Reason: "expression must evaluate to a boolean"}
	}
	return b, nil
}

// ApplyFlagRule проставляет Flagged по правилу на каждой строке.
func ApplyFlagRule(rows []AggregateRow, fr *FlagRule) error {
	for i := range rows {
		ok, err := fr.Match(rows[i])
		if err != nil {
			return err
		}
		rows[i].Flagged = ok
	}
	return nil
}
