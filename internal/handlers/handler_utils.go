// synergy-platform/internal/handlers/handler_utils.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"synergy-platform/internal/middleware"
	"synergy-platform/internal/reconcile"
	"synergy-platform/internal/verify"
	"synergy-platform/models"
)

// Глобальные коллабораторы обработчиков. Заполняются один раз в main,
// до регистрации маршрутов.
var (
	Engine    *reconcile.Store
	Verifier  *verify.Workflow
	Evidence  verify.EvidenceStore
	Dashboard *Hub
)

// Init связывает обработчики с движком сверки и потоком верификации.
func Init(store *reconcile.Store, wf *verify.Workflow, ev verify.EvidenceStore, hub *Hub) {
	Engine = store
	Verifier = wf
	Evidence = ev
	Dashboard = hub
}

// DoctorResponse — строка плана в прежнем формате API. status — каноническое
// имя из закрытого набора, status_label — строка для интерфейса.
type DoctorResponse struct {
	ID           uint   `json:"id"`
	Company      string `json:"company"`
	Region       string `json:"region"`
	District     string `json:"district"`
	GroupName    string `json:"group_name"`
	ManagerName  string `json:"manager_name"`
	DoctorName   string `json:"doctor_name"`
	Specialty    string `json:"specialty"`
	Workplace    string `json:"workplace"`
	Phone        string `json:"phone"`
	CardNumber   string `json:"card_number"`
	TargetAmount int64  `json:"target_amount"`
	PlannedType  string `json:"planned_type"`
	Month        int    `json:"month"`
	Status       string `json:"status"`
	StatusLabel  string `json:"status_label"`
	AdminComment string `json:"admin_comment,omitempty"`
	ProofImage   string `json:"proof_image,omitempty"`
	AmountPaid   int64  `json:"amount_paid"`
}

func doctorResponse(r models.TargetRecord) DoctorResponse {
	return DoctorResponse{
		ID:           r.ID,
		Company:      r.Company,
		Region:       r.Region,
		District:     r.District,
		GroupName:    r.GroupName,
		ManagerName:  r.ManagerName,
		DoctorName:   r.DoctorName,
		Specialty:    r.Specialty,
		Workplace:    r.Workplace,
		Phone:        r.Phone,
		CardNumber:   r.CardNumber,
		TargetAmount: r.TargetAmount,
		PlannedType:  r.PlannedType,
		Month:        r.Month,
		Status:       string(r.Status),
		StatusLabel:  r.StatusLabel(),
		AdminComment: r.AdminComment,
		ProofImage:   r.EvidenceRef,
		AmountPaid:   r.PaidAmount,
	}
}

// mustActor достает актора из контекста; его кладет AuthMiddleware,
// поэтому отсутствие — ошибка конфигурации маршрутов.
func mustActor(c *gin.Context) (reconcile.ActorContext, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No actor in request context"})
	}
	return actor, ok
}

// respondEngineError переводит ошибки движка в HTTP-статусы. NotFoundError
// одинаков для несуществующей и чужой записи — осознанно, чтобы по ответам
// нельзя было прощупать чужие регионы.
func respondEngineError(c *gin.Context, err error) {
	var vErr *reconcile.ValidationError
	var nfErr *reconcile.NotFoundError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	case errors.As(err, &nfErr):
		c.JSON(http.StatusNotFound, gin.H{"error": "Plan not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}
