// synergy-platform/internal/handlers/export_handler.go
package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/divan/num2words"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"synergy-platform/internal/reconcile"
)

// ExportPlanHandler — GET /api/admin/export: выгрузка текущего состояния
// сверки по компании (и, опционально, месяцу) в xlsx. Внизу листа — итоги
// и сумма долга прописью для печатных актов.
func ExportPlanHandler(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	company := c.Query("company")
	if company == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "company is required"})
		return
	}
	month, _ := strconv.Atoi(c.Query("month"))

	scope := adminScopeFor(actor, company)
	records := Engine.List(scope, reconcile.Filters{Month: month})

	f := excelize.NewFile()
	sheetName := "Сверка"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create sheet"})
		return
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"ФИО врача", "Регион", "Район", "Группа", "МП", "План", "Оплачено", "Долг", "Статус", "Комментарий"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	row := 2
	var totalTarget, totalPaid, totalDebt int64
	for r := range records {
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), r.DoctorName)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), r.Region)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), r.District)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), r.GroupName)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), r.ManagerName)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), r.TargetAmount)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), r.PaidAmount)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), r.Debt())
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), r.StatusLabel())
		f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), r.AdminComment)
		totalTarget += r.TargetAmount
		totalPaid += r.PaidAmount
		totalDebt += r.Debt()
		row++
	}

	row++
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), "Итого:")
	f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), totalTarget)
	f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), totalPaid)
	f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), totalDebt)
	row++
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", row),
		fmt.Sprintf("Долг прописью: %s", num2words.Convert(int(totalDebt))))

	fileName := fmt.Sprintf("reconciliation_%s_%s.xlsx", company, time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+fileName)
	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write Excel file"})
	}
}
