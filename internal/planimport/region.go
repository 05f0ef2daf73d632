// synergy-platform/internal/planimport/region.go
package planimport

import (
	"sort"
	"strings"
)

// regionMap приводит кириллические/латинские варианты написания региона к
// стандартному латинскому верхнему регистру. Порядок проверки важен:
// "ТАШКЕНТ (ОБЛ)" и "ТАШКЕНТ (ОБЩ)" должны матчиться раньше, чем "ТАШКЕНТ",
// поэтому при поиске по подстроке ключи перебираются от длинных к коротким.
var regionMap = map[string]string{
	// Ташкентская область (включая Сырдарью)
	"ТАШКЕНТ (ОБЛ)": "TOSHKENT OBL",
	"ТАШКЕНТ(ОБЛ)":  "TOSHKENT OBL",
	"TASHKENT (OBL)": "TOSHKENT OBL",
	"СЫРДАРЬЯ":      "TOSHKENT OBL",
	"СИРДАРЁ":       "TOSHKENT OBL",
	"SIRDARYO":      "TOSHKENT OBL",
	"SYRDARYA":      "TOSHKENT OBL",
	"GULISTON":      "TOSHKENT OBL",
	"YANGIYER":      "TOSHKENT OBL",
	"YANGIYO'L":     "TOSHKENT OBL",
	"YANGIYUL":      "TOSHKENT OBL",
	"ANGREN":        "TOSHKENT OBL",
	"CHIRCHIQ":      "TOSHKENT OBL",
	"OLMALIQ":       "TOSHKENT OBL",
	"BEKOBOD":       "TOSHKENT OBL",
	"BUKA":          "TOSHKENT OBL",
	"BOKA":          "TOSHKENT OBL",
	"ТАШКЕНТ ОБЛ":   "TOSHKENT OBL",
	"ТАШ ОБЛ":       "TOSHKENT OBL",
	"ТАШ.ОБЛ":       "TOSHKENT OBL",
	"TOSHKENT OBL":  "TOSHKENT OBL",
	"TOSH OBL":      "TOSHKENT OBL",
	"TOSH.OBL":      "TOSHKENT OBL",
	"TOSHKENT VIL":  "TOSHKENT OBL",
	"TOSH VIL":      "TOSHKENT OBL",
	"T.VIL":         "TOSHKENT OBL",
	"VILOYAT":       "TOSHKENT OBL",

	// Ташкент общий
	"ТАШКЕНТ (ОБЩ)": "TOSHKENT OBSH",
	"ТАШКЕНТ(ОБЩ)":  "TOSHKENT OBSH",
	"TASHKENT (OBSH)": "TOSHKENT OBSH",
	"ОБЩИЙ":         "TOSHKENT OBSH",
	"ТАШКЕНТ ОБЩ":   "TOSHKENT OBSH",
	"TOSHKENT OBSH": "TOSHKENT OBSH",
	"OBSH":          "TOSHKENT OBSH",
	"UMUMIY":        "TOSHKENT OBSH",
	"GENERAL":       "TOSHKENT OBSH",

	// Ташкент город — проверяется после ОБЛ/ОБЩ
	"ТАШКЕНТ":   "TOSHKENT CITY",
	"Г.ТАШКЕНТ": "TOSHKENT CITY",
	"Т.Г":       "TOSHKENT CITY",
	"TOSHKENT":  "TOSHKENT CITY",
	"TOSH":      "TOSHKENT CITY",
	"TASHKENT":  "TOSHKENT CITY",
	"TASH":      "TOSHKENT CITY",

	// Стандартные регионы
	"СУРХАНДАРЬЯ": "SURXANDARYO",
	"КАШКАДАРЬЯ":  "QASHQADARYO",
	"САМАРКАНД":   "SAMARQAND",
	"БУХАРА":      "BUXORO",
	"НАМАНГАН":    "NAMANGAN",
	"АНДИЖАН":     "ANDIJON",
	"ФЕРГАНА":     "FARG'ONA",
	"ДЖИЗАК":      "JIZZAX",
	"НАВОИ":       "NAVOIY",
	"ХОРЕЗМ":      "XORAZM",
	"НУКУС":       "NUKUS",
	"KARAKALPAKSTAN": "NUKUS",
	"QORAQALPOGISTON": "NUKUS",

	"SURXANDARYO": "SURXANDARYO",
	"QASHQADARYO": "QASHQADARYO",
	"SAMARQAND":   "SAMARQAND",
	"BUXORO":      "BUXORO",
	"NAMANGAN":    "NAMANGAN",
	"ANDIJON":     "ANDIJON",
	"FARG'ONA":    "FARG'ONA",
	"JIZZAX":      "JIZZAX",
	"NAVOIY":      "NAVOIY",
	"XORAZM":      "XORAZM",
	"NUKUS":       "NUKUS",

	// Короткие сокращения
	"SUR":  "SURXANDARYO",
	"QASH": "QASHQADARYO",
	"SAM":  "SAMARQAND",
	"BUX":  "BUXORO",
	"NAM":  "NAMANGAN",
	"AND":  "ANDIJON",
	"FERG": "FARG'ONA",
	"FARG": "FARG'ONA",
	"JIZ":  "JIZZAX",
	"NAV":  "NAVOIY",
	"XOR":  "XORAZM",
	"NUK":  "NUKUS",
}

// regionKeysByLen — ключи regionMap от длинных к коротким, чтобы
// "TOSH OBL" матчился раньше "TOSH".
var regionKeysByLen = func() []string {
	keys := make([]string, 0, len(regionMap))
	for k := range regionMap {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// NormalizeRegion приводит название региона к стандартному виду.
// Пустая строка дает "UNKNOWN", неизвестное название возвращается как есть
// в верхнем регистре.
func NormalizeRegion(s string) string {
	norm := strings.ToUpper(strings.TrimSpace(s))
	if norm == "" {
		return "UNKNOWN"
	}
	if v, ok := regionMap[norm]; ok {
		return v
	}
	for _, key := range regionKeysByLen {
		if strings.Contains(norm, key) {
			return regionMap[key]
		}
	}
	return norm
}
