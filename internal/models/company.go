package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Company represents one inspection company, the unit of data isolation.
// An inactive company rejects write operations and most reads.
type Company struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name  string    `gorm:"not null" json:"name"`
	TaxID string    `gorm:"uniqueIndex;not null" json:"taxId"`
	// No column default: gorm drops zero-value fields that carry one on
	// Create, which would silently flip an inactive company to active.
	Active         bool `gorm:"not null" json:"active"`
	StorageQuotaMB int  `gorm:"default:2048" json:"storageQuotaMb"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for Company model
func (Company) TableName() string {
	return "companies"
}

// BeforeCreate hook
func (c *Company) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
