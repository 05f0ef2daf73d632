// synergy-platform/internal/planimport/import_test.go
package planimport

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]interface{}) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return bytes.NewReader(buf.Bytes())
}

func TestParseWithRussianHeaders(t *testing.T) {
	r := buildWorkbook(t, [][]interface{}{
		{"ФИО", "Регион", "Район", "Сумма", "Форма", "Место работы", "Специальность", "Номер телефона", "Группа", "МП"},
		{"Aliyev A.", "Ташкент", "Chilonzor", "1 000 000", "Card", "Clinic 1", "Cardiolog", "+998 (90) 123-45-67", "a", "Usmonov"},
		{"Karimova B.", "САМАРКАНД", "", "500000", "", "", "", "", "B2", ""},
	})

	res, err := Parse(r)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, res.Rows, 2)

	first := res.Rows[0]
	assert.Equal(t, "Aliyev A.", first.DoctorName)
	assert.Equal(t, "TOSHKENT CITY", first.Region)
	assert.Equal(t, "Chilonzor", first.District)
	assert.Equal(t, int64(1000000), first.TargetAmount)
	assert.Equal(t, "Card", first.PlannedType)
	assert.Equal(t, "998901234567", first.Phone)
	assert.Equal(t, "A", first.GroupName)
	assert.Equal(t, "Usmonov", first.ManagerName)

	second := res.Rows[1]
	assert.Equal(t, "SAMARQAND", second.Region)
	assert.Equal(t, "Cash", second.PlannedType) // форма по умолчанию
	assert.Equal(t, "B2", second.GroupName)
}

func TestParseHeaderBelowTitleRows(t *testing.T) {
	r := buildWorkbook(t, [][]interface{}{
		{"План на декабрь 2025"},
		{},
		{"ФИО", "Регион", "Район", "Сумма"},
		{"Aliyev A.", "Бухара", "", "900"},
	})

	res, err := Parse(r)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "BUXORO", res.Rows[0].Region)
	assert.Equal(t, int64(900), res.Rows[0].TargetAmount)
}

func TestParseColumnFallbackWithoutHeader(t *testing.T) {
	r := buildWorkbook(t, [][]interface{}{
		{"Aliyev A.", "Наманган", "Davlatobod", "1200", "Cash", "Clinic 2", "Terapevt", "901112233", "C", "Usmonov"},
	})

	res, err := Parse(r)
	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "NAMANGAN", res.Rows[0].Region)
	assert.Equal(t, "C", res.Rows[0].GroupName)
	assert.Equal(t, "" /* в стандартной раскладке колонки карты нет */, res.Rows[0].CardNumber)
}

func TestParseCollectsRowErrors(t *testing.T) {
	r := buildWorkbook(t, [][]interface{}{
		{"ФИО", "Регион", "Район", "Сумма"},
		{"Aliyev A.", "Хорезм", "", "100"},
		{"", "Хорезм", "", "200"},
		{"Karimova B.", "Хорезм", "", "abc"},
		{},
		{"Rustamov C.", "Хорезм", "", "300"},
	})

	res, err := Parse(r)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], "row 3")
	assert.Contains(t, res.Errors[0], "missing doctor name")
	assert.Contains(t, res.Errors[1], "row 4")
	assert.Contains(t, res.Errors[1], "Karimova B.")
}

func TestParseRejectsNonWorkbook(t *testing.T) {
	_, err := Parse(bytes.NewReader([]byte("not a workbook")))
	assert.Error(t, err)
}

func TestNormalizeRegion(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "UNKNOWN"},
		{"  ", "UNKNOWN"},
		{"Ташкент", "TOSHKENT CITY"},
		{"г.ташкент", "TOSHKENT CITY"},
		{"Ташкент (обл)", "TOSHKENT OBL"},
		{"ТАШКЕНТ (ОБЩ)", "TOSHKENT OBSH"},
		{"Сырдарья", "TOSHKENT OBL"},
		{"samarqand viloyati", "SAMARQAND"},
		{"Фергана", "FARG'ONA"},
		{"QORAQALPOGISTON", "NUKUS"},
		{"Atlantis", "ATLANTIS"}, // неизвестный регион остается как есть
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%q", tc.in), func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeRegion(tc.in))
		})
	}
}

func TestNormalizeRegionPrefersLongerKeys(t *testing.T) {
	// Подстрока "TOSH" есть и в "TOSH OBL": длинный ключ должен победить.
	assert.Equal(t, "TOSHKENT OBL", NormalizeRegion("Tosh obl"))
	assert.Equal(t, "TOSHKENT CITY", NormalizeRegion("Tosh"))
}

func TestCleanPhone(t *testing.T) {
	assert.Equal(t, "998901234567", CleanPhone("+998 (90) 123-45-67"))
	assert.Equal(t, "", CleanPhone("n/a"))
}

func TestCleanAmount(t *testing.T) {
	assert.Equal(t, int64(1000000), CleanAmount("1 000 000"))
	assert.Equal(t, int64(1500000), CleanAmount("1,500,000 сум"))
	assert.Equal(t, int64(0), CleanAmount("abc"))
	assert.Equal(t, int64(0), CleanAmount(""))
	assert.Equal(t, int64(2500), CleanAmount("2500.75"))
}
