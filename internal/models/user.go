package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Role determines a user's maximal action set
type Role string

const (
	RoleInspector  Role = "inspector"
	RoleAgent      Role = "agent"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// Valid reports whether r is a member of the closed role set
func (r Role) Valid() bool {
	switch r {
	case RoleInspector, RoleAgent, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

// User represents a principal with exactly one role and, except for
// superadmin, exactly one owning company.
// Standardized: Go (PascalCase) -> DB (snake_case) -> JSON (camelCase)
type User struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string     `gorm:"uniqueIndex;not null" json:"email"`
	Password  string     `gorm:"not null" json:"-"`
	Name      string     `json:"name,omitempty"`
	Role      Role       `gorm:"type:varchar(20);default:'agent'" json:"role"`
	CompanyID *uuid.UUID `gorm:"type:uuid;index" json:"companyId,omitempty"`
	Active    bool       `gorm:"default:true" json:"active"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`

	// SessionClaims records the role/company pair last applied by a role
	// assignment, written best-effort alongside the user row. Tokens carry
	// their own claims; requests are authorized against the row itself.
	SessionClaims datatypes.JSON `json:"-"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// BeforeCreate hook
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
