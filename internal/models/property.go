package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PropertyType is the kind of property being inspected
type PropertyType string

const (
	PropertyApartment  PropertyType = "apartment"
	PropertyHouse      PropertyType = "house"
	PropertyCommercial PropertyType = "commercial"
)

// Valid reports whether t is a known property type
func (t PropertyType) Valid() bool {
	switch t {
	case PropertyApartment, PropertyHouse, PropertyCommercial:
		return true
	}
	return false
}

// Property belongs to exactly one company and is referenced by inspections
type Property struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID uuid.UUID    `gorm:"type:uuid;not null;index" json:"companyId"`
	Address   string       `gorm:"not null" json:"address"`
	Type      PropertyType `gorm:"type:varchar(20);not null" json:"type"`
	Code      string       `gorm:"index" json:"code"`
	OwnerName string       `json:"ownerName"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for Property model
func (Property) TableName() string {
	return "properties"
}

// BeforeCreate hook
func (p *Property) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
