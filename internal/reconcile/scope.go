// synergy-platform/internal/reconcile/scope.go
package reconcile

import (
	"strings"
	"unicode"

	"synergy-platform/models"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
)

// GroupAccessAll — код-джокер: доступ ко всем группам компании.
const GroupAccessAll = "ALL"

// ActorContext — запрашивающий субъект. Создается один раз при входе из
// данных аутентификации и не меняется в течение сессии. Для администратора
// Company — выбранная в данный момент компания (админ видит компании по одной,
// но переключается свободно), Region и GroupAccess пустые.
type ActorContext struct {
	UserID      uint   `json:"user_id"`
	Role        string `json:"role"`
	Company     string `json:"company"`
	Region      string `json:"region"`       // у менеджера возможен список через запятую
	GroupAccess string `json:"group_access"` // компактный код: 'AB', 'A2C', 'ALL', 'B2'...
}

// IsAdmin сообщает, админская ли это сессия.
func (a ActorContext) IsAdmin() bool { return a.Role == RoleAdmin }

// Scope — предикат видимости над записями плана. Предикат полностью
// определяется актором: никакого скрытого состояния, два применения к одному
// набору записей дают одинаковый результат. На это свойство опирается
// кэширование агрегатов.
type Scope func(r *models.TargetRecord) bool

// GroupSet — множество меток групп, развернутое из кода доступа.
type GroupSet struct {
	all    bool
	labels map[string]struct{}
}

// Contains проверяет принадлежность метки множеству. Сравнение без учета
// регистра: в выгрузках встречаются и 'a2', и 'A2'.
func (s GroupSet) Contains(label string) bool {
	if s.all {
		return true
	}
	_, ok := s.labels[strings.ToUpper(strings.TrimSpace(label))]
	return ok
}

// All сообщает, является ли множество джокером.
func (s GroupSet) All() bool { return s.all }

// Labels возвращает метки множества (для джокера — nil).
func (s GroupSet) Labels() []string {
	if s.all {
		return nil
	}
	out := make([]string, 0, len(s.labels))
	for l := range s.labels {
		out = append(out, l)
	}
	return out
}

func newGroupSet(labels ...string) GroupSet {
	m := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		m[l] = struct{}{}
	}
	return GroupSet{labels: m}
}

// DecodeGroupAccess разворачивает код доступа в множество меток групп.
// Таблица соответствий:
//
//	"ALL"              -> все группы
//	<буква><буква>     -> две одиночные группы: "AB" -> {A, B}
//	<буква><цифра><буква> -> группа с номером и одиночная: "A2C" -> {A2, C}
//	иначе              -> одноэлементное множество из самого кода: "Z9" -> {Z9}
//
// Функция тотальна: любой код, включая мусорный, дает непустое множество и
// никогда не паникует. Новые коды групп добавляются сюда, а не в места вызова.
func DecodeGroupAccess(code string) GroupSet {
	c := strings.ToUpper(strings.TrimSpace(code))
	if c == "" || c == GroupAccessAll {
		return GroupSet{all: true}
	}

	r := []rune(c)
	switch {
	case len(r) == 2 && isLetter(r[0]) && isLetter(r[1]):
		return newGroupSet(string(r[0]), string(r[1]))
	case len(r) == 3 && isLetter(r[0]) && isDigit(r[1]) && isLetter(r[2]):
		return newGroupSet(string(r[0:2]), string(r[2]))
	default:
		return newGroupSet(c)
	}
}

func isLetter(r rune) bool { return unicode.IsLetter(r) }
func isDigit(r rune) bool  { return unicode.IsDigit(r) }

// ScopeFor строит предикат видимости для актора.
//
// Админ видит всю выбранную компанию: регионы и группы не ограничиваются.
// Менеджер видит записи своей компании в своих регионах, попадающие в
// множество групп его кода доступа. Запись с составной меткой группы,
// дословно равной коду ('AB' у менеджера с доступом 'AB'), тоже видна —
// в планах такие строки встречаются.
func ScopeFor(actor ActorContext) Scope {
	if actor.IsAdmin() {
		company := actor.Company
		return func(r *models.TargetRecord) bool {
			return r.Company == company
		}
	}

	company := actor.Company
	regions := splitRegions(actor.Region)
	groups := DecodeGroupAccess(actor.GroupAccess)
	rawCode := strings.ToUpper(strings.TrimSpace(actor.GroupAccess))

	return func(r *models.TargetRecord) bool {
		if r.Company != company {
			return false
		}
		if len(regions) > 0 {
			if _, ok := regions[strings.ToUpper(strings.TrimSpace(r.Region))]; !ok {
				return false
			}
		}
		if groups.Contains(r.GroupName) {
			return true
		}
		return rawCode != "" && strings.EqualFold(strings.TrimSpace(r.GroupName), rawCode)
	}
}

func splitRegions(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out[p] = struct{}{}
		}
	}
	return out
}
