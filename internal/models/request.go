package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestStatus is the decision state of a client-facing inspection request
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// InspectionRequest is submitted by a client through the public,
// unauthenticated endpoint and decided by a company admin.
type InspectionRequest struct {
	ID              uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID       uuid.UUID     `gorm:"type:uuid;not null;index" json:"companyId"`
	RequesterName   string        `gorm:"not null" json:"requesterName"`
	RequesterEmail  string        `gorm:"not null" json:"requesterEmail"`
	RequesterPhone  string        `json:"requesterPhone,omitempty"`
	RequesterID     *uuid.UUID    `gorm:"type:uuid;index" json:"requesterId,omitempty"`
	PropertyAddress string        `gorm:"not null" json:"propertyAddress"`
	DesiredDate     *time.Time    `json:"desiredDate,omitempty"`
	Status          RequestStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	DecisionNote    string        `json:"decisionNote,omitempty"`
	DecidedAt       *time.Time    `json:"decidedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for InspectionRequest model
func (InspectionRequest) TableName() string {
	return "inspection_requests"
}

// BeforeCreate hook
func (r *InspectionRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
