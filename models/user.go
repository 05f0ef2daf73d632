// synergy-platform/models/user.go
package models

// User определяет модель пользователя в базе данных.
// Role — 'admin' или 'manager'. Для менеджера Region может содержать
// несколько регионов через запятую, GroupAccess — компактный код доступа
// к группам ('AB', 'A2C', 'ALL', 'A' и т.п.).
type User struct {
	ID             uint   `json:"id" gorm:"primaryKey"`
	Email          string `json:"email" gorm:"uniqueIndex;not null"`
	HashedPassword string `json:"-" gorm:"not null"`
	Role           string `json:"role" gorm:"not null"`
	Company        string `json:"company" gorm:"not null"`
	Region         string `json:"region"`
	GroupAccess    string `json:"group_access"`
}
