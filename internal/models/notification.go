package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RecipientType addresses either a company's admin pool or a specific client
type RecipientType string

const (
	RecipientCompanyAdmins RecipientType = "company_admins"
	RecipientClient        RecipientType = "client"
)

// NotificationType tags the triggering event
type NotificationType string

const (
	NotifyRequestCreated      NotificationType = "request_created"
	NotifyRequestDecision     NotificationType = "request_decision"
	NotifyInspectionScheduled NotificationType = "inspection_scheduled"
	NotifyStatusChanged       NotificationType = "status_changed"
	NotifyReportAvailable     NotificationType = "report_available"
)

// Notification is created exclusively as a side effect of state transitions
// elsewhere in the system and mutated only to flip the read flag.
type Notification struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID     uuid.UUID        `gorm:"type:uuid;not null;index" json:"companyId"`
	RecipientType RecipientType    `gorm:"type:varchar(20);not null;index:idx_recipient" json:"recipientType"`
	RecipientID   uuid.UUID        `gorm:"type:uuid;not null;index:idx_recipient" json:"recipientId"`
	Type          NotificationType `gorm:"type:varchar(30);not null" json:"type"`
	Title         string           `gorm:"not null" json:"title"`
	Message       string           `json:"message"`
	Read          bool             `gorm:"default:false;index" json:"read"`

	// Metadata carries the typed payload for the triggering event,
	// serialized from one of the notify package's variant structs.
	Metadata datatypes.JSON `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for Notification model
func (Notification) TableName() string {
	return "notifications"
}

// BeforeCreate hook
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
