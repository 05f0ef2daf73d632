// synergy-platform/internal/planimport/import.go

// Package planimport превращает загруженный xlsx-план в строки-кандидаты для
// движка сверки. Заголовки ищутся по русским/английским/узбекским алиасам в
// первых десяти строках листа; если заголовок не найден, используется
// фиксированная раскладка колонок. Невалидные строки не валят импорт —
// они копятся в Errors и пропускаются.
package planimport

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"synergy-platform/models"
)

// headerAliases: внутреннее имя поля -> возможные заголовки колонки.
var headerAliases = map[string][]string{
	"doctor_name":   {"фио", "doctor", "name", "full name", "имя", "fullname"},
	"region":        {"регион", "region", "viloyat"},
	"district":      {"район", "district", "tuman", "city"},
	"target_amount": {"сумм", "сумма", "target", "amount", "plan", "total", "summ", "план"},
	"planned_type":  {"форма", "type", "form", "payment type", "to'lov turi"},
	"card_number":   {"номер карты", "card", "card number", "karta"},
	"workplace":     {"место работы", "workplace", "work", "joy"},
	"specialty":     {"специальность", "specialty", "spec", "kasb"},
	"phone":         {"номер телефо", "phone", "tel", "mobile", "телефон"},
	"group_name":    {"групп", "group", "guruh", "toifa"},
	"manager_name":  {"мп", "manager", "rm", "regional manager", "boshqaruvchi"},
}

// columnFallback — раскладка по умолчанию (0-based), если строка заголовков
// не нашлась: A=ФИО, B=Регион, C=Район, D=Сумма, E=Форма, F=Место работы,
// G=Специальность, H=Телефон, I=Группа, J=МП.
var columnFallback = map[string]int{
	"doctor_name":   0,
	"region":        1,
	"district":      2,
	"target_amount": 3,
	"planned_type":  4,
	"workplace":     5,
	"specialty":     6,
	"phone":         7,
	"group_name":    8,
	"manager_name":  9,
	"card_number":   -1, // в стандартном формате колонки нет
}

// Result — итог разбора файла: строки-кандидаты и ошибки по строкам.
type Result struct {
	Rows   []models.TargetRecord
	Errors []string
}

// Parse разбирает первый лист xlsx-файла в строки-кандидаты.
// Регион нормализуется, телефон чистится до цифр, сумма приводится к целому.
// Ошибка возвращается только если файл вообще не читается как xlsx.
func Parse(r io.Reader) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	cols, headerRow := findHeaderRow(rows)
	start := headerRow + 1
	if headerRow < 0 {
		cols = columnFallback
		start = 0
	}

	res := &Result{Errors: []string{}}
	for i := start; i < len(rows); i++ {
		row := rows[i]
		if isEmptyRow(row) {
			continue
		}
		rec, rowErr := buildRow(row, cols)
		if rowErr != "" {
			res.Errors = append(res.Errors, fmt.Sprintf("row %d: %s", i+1, rowErr))
			continue
		}
		res.Rows = append(res.Rows, rec)
	}
	return res, nil
}

// findHeaderRow ищет строку заголовков в первых десяти строках листа.
// Строка считается заголовочной, если нашлись хотя бы колонки ФИО и суммы.
func findHeaderRow(rows [][]string) (map[string]int, int) {
	limit := len(rows)
	if limit > 10 {
		limit = 10
	}
	for i := 0; i < limit; i++ {
		cols := make(map[string]int)
		for colIdx, cell := range rows[i] {
			header := strings.ToLower(strings.TrimSpace(cell))
			if header == "" {
				continue
			}
			for field, aliases := range headerAliases {
				if _, taken := cols[field]; taken {
					continue
				}
				for _, alias := range aliases {
					if strings.Contains(header, alias) {
						cols[field] = colIdx
						break
					}
				}
			}
		}
		if _, okName := cols["doctor_name"]; okName {
			if _, okAmount := cols["target_amount"]; okAmount {
				for field := range headerAliases {
					if _, ok := cols[field]; !ok {
						cols[field] = -1
					}
				}
				return cols, i
			}
		}
	}
	return nil, -1
}

func buildRow(row []string, cols map[string]int) (models.TargetRecord, string) {
	get := func(field string) string {
		idx, ok := cols[field]
		if !ok || idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	doctor := get("doctor_name")
	if doctor == "" {
		return models.TargetRecord{}, "missing doctor name"
	}
	amount := CleanAmount(get("target_amount"))
	if amount <= 0 {
		return models.TargetRecord{}, fmt.Sprintf("(%s) target amount must be positive", doctor)
	}

	plannedType := get("planned_type")
	if plannedType == "" {
		plannedType = "Cash"
	}

	return models.TargetRecord{
		DoctorName:   doctor,
		Region:       NormalizeRegion(get("region")),
		District:     get("district"),
		TargetAmount: amount,
		PlannedType:  plannedType,
		CardNumber:   get("card_number"),
		Workplace:    get("workplace"),
		Specialty:    get("specialty"),
		Phone:        CleanPhone(get("phone")),
		GroupName:    strings.ToUpper(get("group_name")),
		ManagerName:  get("manager_name"),
	}, ""
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

var nonDigits = regexp.MustCompile(`[^0-9]`)
var nonNumeric = regexp.MustCompile(`[^0-9.\-]`)

// CleanPhone оставляет в номере телефона только цифры.
func CleanPhone(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}

// CleanAmount выкидывает из суммы пробелы, запятые и текст и приводит ее к
// целому. Нечисловое значение дает 0 — такая строка отсеется валидацией.
func CleanAmount(s string) int64 {
	cleaned := nonNumeric.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return int64(v)
}
