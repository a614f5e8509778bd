package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	AuthTypeLocal = "local"
	AuthTypeLDAP  = "ldap"
)

// User is an account that can sign in to submit or manage complaints.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Email     string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password  string         `gorm:"size:255" json:"-"` // empty for LDAP users
	Name      string         `gorm:"size:100" json:"name"`
	Role      string         `gorm:"size:20;default:user" json:"role"`
	AuthType  string         `gorm:"size:20;default:local" json:"auth_type"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	LastLogin *time.Time     `json:"last_login"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
