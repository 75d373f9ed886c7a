package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InspectionStatus is the server-side inspection state
type InspectionStatus string

const (
	StatusDraft      InspectionStatus = "draft"
	StatusInProgress InspectionStatus = "in_progress"
	StatusFinalized  InspectionStatus = "finalized"
	StatusContested  InspectionStatus = "contested"
)

// InspectionType distinguishes move-in, move-out and periodic inspections
type InspectionType string

const (
	TypeMoveIn   InspectionType = "move_in"
	TypeMoveOut  InspectionType = "move_out"
	TypePeriodic InspectionType = "periodic"
)

// Valid reports whether t is a known inspection type
func (t InspectionType) Valid() bool {
	switch t {
	case TypeMoveIn, TypeMoveOut, TypePeriodic:
		return true
	}
	return false
}

// Inspection belongs to exactly one company and one property and has exactly
// one assigned inspector. Transition to finalized requires current status
// in_progress and a PDF URL attached atomically with the transition.
type Inspection struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID   uuid.UUID        `gorm:"type:uuid;not null;index" json:"companyId"`
	PropertyID  uuid.UUID        `gorm:"type:uuid;not null;index" json:"propertyId"`
	InspectorID uuid.UUID        `gorm:"type:uuid;not null;index" json:"inspectorId"`
	Type        InspectionType   `gorm:"type:varchar(20);not null" json:"type"`
	Status      InspectionStatus `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`

	// ClientID links the client (requester) who receives decision, status
	// and report notifications, when one exists.
	ClientID *uuid.UUID `gorm:"type:uuid;index" json:"clientId,omitempty"`

	// ClientRef is the idempotency token attached by offline clients on
	// create, so a retried submission never duplicates the record.
	ClientRef *string `gorm:"uniqueIndex" json:"clientRef,omitempty"`

	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`

	// Present only once finalized
	PDFURL      *string    `json:"pdfUrl,omitempty"`
	FinalizedAt *time.Time `json:"finalizedAt,omitempty"`

	// PDFStoragePath is the blob-store path of the uploaded report, kept so
	// the Drive mirror can read the content back.
	PDFStoragePath *string `json:"-"`

	// Present only if contested
	ContestToken  *string    `gorm:"uniqueIndex" json:"-"`
	ContestReason *string    `json:"contestReason,omitempty"`
	ContestedAt   *time.Time `json:"contestedAt,omitempty"`

	Rooms []Room `gorm:"constraint:OnDelete:CASCADE" json:"rooms,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for Inspection model
func (Inspection) TableName() string {
	return "inspections"
}

// BeforeCreate hook
func (i *Inspection) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Room is an ordered child record of an inspection
type Room struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	InspectionID uuid.UUID `gorm:"type:uuid;not null;index" json:"inspectionId"`
	Name         string    `gorm:"not null" json:"name"`
	Position     int       `gorm:"not null" json:"position"`
	Condition    string    `json:"condition"`
	ClientRef    *string   `gorm:"uniqueIndex" json:"clientRef,omitempty"`

	Photos []Photo `gorm:"constraint:OnDelete:CASCADE" json:"photos,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for Room model
func (Room) TableName() string {
	return "rooms"
}

// BeforeCreate hook
func (r *Room) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Photo is an ordered child record of a room, stored in blob storage
type Photo struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RoomID       uuid.UUID `gorm:"type:uuid;not null;index" json:"roomId"`
	InspectionID uuid.UUID `gorm:"type:uuid;not null;index" json:"inspectionId"`
	StoragePath  string    `gorm:"not null" json:"-"`
	PublicURL    string    `json:"publicUrl"`
	Position     int       `json:"position"`
	Caption      string    `json:"caption,omitempty"`
	ClientRef    *string   `gorm:"uniqueIndex" json:"clientRef,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for Photo model
func (Photo) TableName() string {
	return "photos"
}

// BeforeCreate hook
func (p *Photo) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
