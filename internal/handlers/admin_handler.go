// synergy-platform/internal/handlers/admin_handler.go
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"synergy-platform/config"
	"synergy-platform/internal/middleware"
	"synergy-platform/internal/planimport"
	"synergy-platform/internal/reconcile"
	"synergy-platform/internal/verify"
	"synergy-platform/models"
)

const statsCacheTTL = 30 * time.Second

// adminScopeFor строит админскую область видимости по выбранной компании.
// Админ видит компании по одной, но переключается свободно: компания берется
// из запроса, а не из профиля.
func adminScopeFor(actor reconcile.ActorContext, company string) reconcile.Scope {
	selected := actor
	if company != "" {
		selected.Company = company
	}
	return reconcile.ScopeFor(selected)
}

// UploadPlanHandler — POST /api/admin/upload-plan: xlsx + company_name +
// month. Набор (компания, месяц) заменяется целиком; невалидные строки
// попадают в errors, но не валят импорт.
func UploadPlanHandler(c *gin.Context) {
	companyName := c.PostForm("company_name")
	if companyName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "company_name is required"})
		return
	}
	month := 12
	if m := c.PostForm("month"); m != "" {
		parsed, err := strconv.Atoi(m)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid month"})
			return
		}
		month = parsed
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Plan file is required"})
		return
	}
	defer file.Close()

	parsed, err := planimport.Parse(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to process file: " + err.Error()})
		return
	}

	result, err := Engine.ReplaceMonthBatch(companyName, month, parsed.Rows)
	if err != nil {
		respondEngineError(c, err)
		return
	}

	allErrors := append(parsed.Errors, result.Errors...)

	invalidateStatsCache()
	Dashboard.Broadcast(Event{
		Type:    EventBatchReplaced,
		Company: companyName,
		Month:   month,
		Message: fmt.Sprintf("Imported %d records", result.Inserted),
	})

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        fmt.Sprintf("Successfully imported %d records", result.Inserted),
		"inserted_count": result.Inserted,
		"errors":         allErrors,
	})
}

// StatsHandler — GET /api/admin/stats: сводка по компании с необязательными
// фильтрами region и month. Сводка кэшируется в Redis на короткий TTL;
// любая мутация сдвигает версию кэша, так что протухших цифр дашборд
// не увидит.
func StatsHandler(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	company := c.Query("company")
	region := c.Query("region")
	month, _ := strconv.Atoi(c.Query("month"))

	cacheKey := fmt.Sprintf("stats:v%d:%s:%s:%d", statsCacheVersion(), company, region, month)
	if config.RDB != nil {
		if cached, err := config.RDB.Get(config.Ctx, cacheKey).Result(); err == nil {
			c.Data(http.StatusOK, "application/json", []byte(cached))
			return
		}
	}

	scope := adminScopeFor(actor, company)
	stats := reconcile.Summarize(Engine.List(scope, reconcile.Filters{Region: region, Month: month}))

	if config.RDB != nil {
		if data, err := json.Marshal(stats); err == nil {
			if err := config.RDB.Set(config.Ctx, cacheKey, data, statsCacheTTL).Err(); err != nil {
				slog.Error("Redis SET command failed", "error", err, "key", cacheKey)
			}
		}
	}
	c.JSON(http.StatusOK, stats)
}

// AdminDataHandler — GET /api/admin/data: произвольный срез плана для
// аудита, с пагинацией. company обязательна.
func AdminDataHandler(c *gin.Context) {
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
	all := make([]DoctorResponse, 0)
	for r := range Engine.List(scope, reconcile.Filters{
		Region:     c.Query("region"),
		Group:      c.Query("group"),
		DoctorName: c.Query("doctor_name"),
		Month:      month,
	}) {
		all = append(all, doctorResponse(r))
	}

	page, total := paginateSlice(c, all)
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, page, total))
}

// LeaderboardHandler — GET /api/admin/leaderboard: агрегаты по связкам
// (регион, группа), отсортированные по убыванию долга. Необязательный
// параметр flag_rule — выражение над target/paid/debt/completion,
// подсвечивающее проблемные строки.
func LeaderboardHandler(c *gin.Context) {
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
	rows := reconcile.Leaderboard(Engine.List(scope, reconcile.Filters{Month: month}))

	if ruleSrc := c.Query("flag_rule"); ruleSrc != "" {
		rule, err := reconcile.CompileFlagRule(ruleSrc)
		if err != nil {
			respondEngineError(c, err)
			return
		}
		if err := reconcile.ApplyFlagRule(rows, rule); err != nil {
			respondEngineError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, rows)
}

// UpdatePaymentHandler — PUT /api/admin/update-payment/:id: ручная
// корректировка суммы и статуса с обязательным комментарием. Загруженный
// файл сохраняется как подтверждение, но статус из-за него не меняется —
// статус берется строго из формы.
func UpdatePaymentHandler(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	planID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid plan ID"})
		return
	}

	amount, err := strconv.ParseInt(c.PostForm("amount_paid"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount_paid must be an integer"})
		return
	}
	status, err := models.ParseStatus(c.PostForm("status"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	comment := c.PostForm("admin_comment")

	// Корректировка может относиться к любой компании, поэтому запись ищем
	// через админскую область по компании самой записи: сперва пробуем
	// выбранную компанию, затем общий поиск по профилю.
	scope := adminScopeFor(actor, c.PostForm("company"))
	plan, getErr := Engine.Get(uint(planID), scope)

	evidenceRef := ""
	if file, header, ferr := c.Request.FormFile("file"); ferr == nil {
		defer file.Close()
		if getErr != nil {
			respondEngineError(c, getErr)
			return
		}
		data, rerr := io.ReadAll(file)
		if rerr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file data"})
			return
		}
		ref, serr := Evidence.Save(verify.Evidence{
			Data:     data,
			MIMEType: header.Header.Get("Content-Type"),
			FileName: header.Filename,
		}, plan)
		if serr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store evidence"})
			return
		}
		evidenceRef = ref
	}

	updated, err := Engine.ApplyAdminOverride(uint(planID), reconcile.OverrideInput{
		Amount:      amount,
		Status:      status,
		Comment:     comment,
		EvidenceRef: evidenceRef,
	}, withCompany(actor, c.PostForm("company")))
	if err != nil {
		respondEngineError(c, err)
		return
	}

	invalidateStatsCache()
	Dashboard.Broadcast(Event{
		Type:    EventOverrideApplied,
		Company: updated.Company,
		Month:   updated.Month,
		PlanID:  updated.ID,
		Status:  string(updated.Status),
		Message: "Admin correction applied",
	})

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Payment updated", "new_status": updated.StatusLabel()})
}

func withCompany(actor reconcile.ActorContext, company string) reconcile.ActorContext {
	if company != "" {
		actor.Company = company
	}
	return actor
}

// ListUsersHandler — GET /api/admin/users: все пользователи без хэшей паролей.
func ListUsersHandler(c *gin.Context) {
	var users []models.User
	if err := config.DB.Order("id").Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}
	c.JSON(http.StatusOK, users)
}

// CreateUserInput — создание пользователя администратором.
type CreateUserInput struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	Role        string `json:"role" binding:"required,oneof=admin manager"`
	Company     string `json:"company" binding:"required"`
	Region      string `json:"region"`
	GroupAccess string `json:"group_access"`
}

// CreateUserHandler — POST /api/admin/users.
func CreateUserHandler(c *gin.Context) {
	var input CreateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := models.User{
		Email:          input.Email,
		HashedPassword: string(hash),
		Role:           input.Role,
		Company:        input.Company,
		Region:         input.Region,
		GroupAccess:    input.GroupAccess,
	}
	if err := config.DB.Create(&user).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Failed to create user: " + err.Error()})
		return
	}
	middleware.InvalidateActorCache(user.ID)
	c.JSON(http.StatusCreated, user)
}

// --- Кэш сводки ---

// statsCacheVersion читает текущую версию кэша сводки. Мутации двигают
// версию, поэтому старые ключи просто перестают читаться и доживают до TTL.
func statsCacheVersion() int64 {
	if config.RDB == nil {
		return 0
	}
	v, err := config.RDB.Get(config.Ctx, "stats:version").Int64()
	if err != nil {
		return 0
	}
	return v
}

func invalidateStatsCache() {
	if config.RDB == nil {
		return
	}
	if err := config.RDB.Incr(config.Ctx, "stats:version").Err(); err != nil {
		slog.Error("Redis INCR command failed", "error", err, "key", "stats:version")
	}
}
