// synergy-platform/internal/handlers/manager_handler.go
package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"synergy-platform/internal/reconcile"
	"synergy-platform/internal/verify"
)

// ListManagerDoctorsHandler возвращает врачей, видимых текущей сессии:
// компания, регионы и группы берутся из контекста актора, не из запроса.
// Необязательный фильтр month сужает выдачу до одного месяца.
func ListManagerDoctorsHandler(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	month, _ := strconv.Atoi(c.Query("month"))
	scope := reconcile.ScopeFor(actor)

	doctors := make([]DoctorResponse, 0)
	for r := range Engine.List(scope, reconcile.Filters{Month: month}) {
		doctors = append(doctors, doctorResponse(r))
	}
	c.JSON(http.StatusOK, doctors)
}

// VerifyResponse — итог верификации для менеджера.
type VerifyResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	ExtractedAmount int64  `json:"extracted_amount"`
	NewStatus       string `json:"new_status"`
}

// VerifyPaymentHandler — POST /api/manager/verify: файл подтверждения +
// plan_id + payment_method. Файл сохраняется, данные извлекаются внешним
// сервисом, и при прохождении всех проверок оплата фиксируется в движке.
// Отказ — это ответ 400 с причиной, запись плана при этом не меняется.
func VerifyPaymentHandler(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	planID, err := strconv.ParseUint(c.PostForm("plan_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid plan_id"})
		return
	}
	paymentMethod := c.PostForm("payment_method")
	if paymentMethod == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment_method is required"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Evidence file is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file data"})
		return
	}

	outcome, err := Verifier.Submit(c.Request.Context(), actor, uint(planID), paymentMethod, verify.Evidence{
		Data:     data,
		MIMEType: header.Header.Get("Content-Type"),
		FileName: header.Filename,
	})
	if err != nil {
		respondEngineError(c, err)
		return
	}

	if !outcome.Accepted() {
		c.JSON(http.StatusBadRequest, gin.H{"error": outcome.Message, "state": string(outcome.State)})
		return
	}

	invalidateStatsCache()
	Dashboard.Broadcast(Event{
		Type:    EventPaymentAccepted,
		Company: outcome.Record.Company,
		Month:   outcome.Record.Month,
		PlanID:  outcome.Record.ID,
		Status:  string(outcome.Record.Status),
		Message: outcome.Message,
	})

	c.JSON(http.StatusOK, VerifyResponse{
		Success:         true,
		Message:         outcome.Message,
		ExtractedAmount: outcome.ExtractedAmount,
		NewStatus:       outcome.Record.StatusLabel(),
	})
}
