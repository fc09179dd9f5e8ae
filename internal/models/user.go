package models

// User is a row in the users table.
type User struct {
	Base
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	IsAdmin      bool      `gorm:"not null;default:false" json:"is_admin"`
	Products     []Product `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
