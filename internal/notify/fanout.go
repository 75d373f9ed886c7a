package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/vistohub/vistoriago/internal/models"
)

// Broadcaster pushes a freshly created notification to a connected recipient.
// The websocket hub implements it; a nil Broadcaster disables push.
type Broadcaster interface {
	Push(userID uuid.UUID, message interface{}) bool
}

// Metadata is the tagged payload variant attached to a notification. Each
// event type has its own fixed field set.
type Metadata interface {
	NotificationType() models.NotificationType
}

// RequestCreatedMeta accompanies a new client inspection request
type RequestCreatedMeta struct {
	RequestID       uuid.UUID `json:"requestId"`
	RequesterName   string    `json:"requesterName"`
	PropertyAddress string    `json:"propertyAddress"`
}

func (RequestCreatedMeta) NotificationType() models.NotificationType {
	return models.NotifyRequestCreated
}

// RequestDecisionMeta accompanies an approve/reject decision
type RequestDecisionMeta struct {
	RequestID uuid.UUID `json:"requestId"`
	Approved  bool      `json:"approved"`
	Note      string    `json:"note,omitempty"`
}

func (RequestDecisionMeta) NotificationType() models.NotificationType {
	return models.NotifyRequestDecision
}

// InspectionScheduledMeta accompanies a newly scheduled inspection
type InspectionScheduledMeta struct {
	InspectionID uuid.UUID `json:"inspectionId"`
	PropertyID   uuid.UUID `json:"propertyId"`
	ScheduledFor time.Time `json:"scheduledFor"`
}

func (InspectionScheduledMeta) NotificationType() models.NotificationType {
	return models.NotifyInspectionScheduled
}

// StatusChangedMeta accompanies an inspection status transition
type StatusChangedMeta struct {
	InspectionID uuid.UUID               `json:"inspectionId"`
	OldStatus    models.InspectionStatus `json:"oldStatus"`
	NewStatus    models.InspectionStatus `json:"newStatus"`
}

func (StatusChangedMeta) NotificationType() models.NotificationType {
	return models.NotifyStatusChanged
}

// ReportAvailableMeta accompanies a finalized report
type ReportAvailableMeta struct {
	InspectionID uuid.UUID `json:"inspectionId"`
	PDFURL       string    `json:"pdfUrl"`
}

func (ReportAvailableMeta) NotificationType() models.NotificationType {
	return models.NotifyReportAvailable
}

// Fanout creates notification records as a side effect of state transitions.
// It runs strictly after the primary transaction and swallows its own errors:
// a failed notification must never roll back or fail the triggering write.
type Fanout struct {
	db  *gorm.DB
	hub Broadcaster
}

// NewFanout creates a fanout service
func NewFanout(db *gorm.DB, hub Broadcaster) *Fanout {
	return &Fanout{db: db, hub: hub}
}

// RequestCreated notifies the company's admin pool about a new request
func (f *Fanout) RequestCreated(companyID uuid.UUID, req models.InspectionRequest) {
	f.create(models.Notification{
		CompanyID:     companyID,
		RecipientType: models.RecipientCompanyAdmins,
		RecipientID:   companyID,
		Title:         "New inspection request",
		Message:       fmt.Sprintf("%s requested an inspection at %s", req.RequesterName, req.PropertyAddress),
	}, RequestCreatedMeta{
		RequestID:       req.ID,
		RequesterName:   req.RequesterName,
		PropertyAddress: req.PropertyAddress,
	})

	// Push to every connected admin of the company
	if f.hub != nil {
		var admins []models.User
		if err := f.db.Where("company_id = ? AND role = ?", companyID, models.RoleAdmin).Find(&admins).Error; err != nil {
			log.Warn().Err(err).Msg("Failed to load admin pool for push")
			return
		}
		for _, admin := range admins {
			f.hub.Push(admin.ID, map[string]interface{}{
				"type":    models.NotifyRequestCreated,
				"title":   "New inspection request",
				"message": req.PropertyAddress,
			})
		}
	}
}

// RequestDecision notifies the requesting client about the decision
func (f *Fanout) RequestDecision(companyID uuid.UUID, req models.InspectionRequest, approved bool) {
	if req.RequesterID == nil {
		// Requester has no account to address; decision reaches them by other means
		return
	}

	verdict := "approved"
	if !approved {
		verdict = "rejected"
	}
	f.createForClient(companyID, *req.RequesterID,
		"Inspection request "+verdict,
		fmt.Sprintf("Your request for %s was %s", req.PropertyAddress, verdict),
		RequestDecisionMeta{RequestID: req.ID, Approved: approved, Note: req.DecisionNote})
}

// InspectionScheduled notifies the client that an inspection was scheduled
func (f *Fanout) InspectionScheduled(recipientID uuid.UUID, inspection models.Inspection) {
	if recipientID == uuid.Nil || inspection.ScheduledFor == nil {
		return
	}
	f.createForClient(inspection.CompanyID, recipientID,
		"Inspection scheduled",
		fmt.Sprintf("An inspection was scheduled for %s", inspection.ScheduledFor.Format("2006-01-02")),
		InspectionScheduledMeta{
			InspectionID: inspection.ID,
			PropertyID:   inspection.PropertyID,
			ScheduledFor: *inspection.ScheduledFor,
		})
}

// StatusChanged notifies the client about an inspection status transition
func (f *Fanout) StatusChanged(recipientID uuid.UUID, inspection models.Inspection, old models.InspectionStatus) {
	if recipientID == uuid.Nil {
		return
	}
	f.createForClient(inspection.CompanyID, recipientID,
		"Inspection status changed",
		fmt.Sprintf("Inspection status changed from %s to %s", old, inspection.Status),
		StatusChangedMeta{InspectionID: inspection.ID, OldStatus: old, NewStatus: inspection.Status})
}

// StatusChangedForAdmins notifies the company's admin pool about a status
// transition, used for the contest branch where the actor is an outside
// client rather than a company member.
func (f *Fanout) StatusChangedForAdmins(inspection models.Inspection, old models.InspectionStatus) {
	f.create(models.Notification{
		CompanyID:     inspection.CompanyID,
		RecipientType: models.RecipientCompanyAdmins,
		RecipientID:   inspection.CompanyID,
		Title:         "Inspection status changed",
		Message:       fmt.Sprintf("Inspection status changed from %s to %s", old, inspection.Status),
	}, StatusChangedMeta{InspectionID: inspection.ID, OldStatus: old, NewStatus: inspection.Status})
}

// ReportAvailable notifies the client that the report PDF is ready
func (f *Fanout) ReportAvailable(recipientID uuid.UUID, inspection models.Inspection) {
	if recipientID == uuid.Nil || inspection.PDFURL == nil {
		return
	}
	f.createForClient(inspection.CompanyID, recipientID,
		"Inspection report available",
		"The inspection report is ready for download",
		ReportAvailableMeta{InspectionID: inspection.ID, PDFURL: *inspection.PDFURL})
}

func (f *Fanout) createForClient(companyID, clientID uuid.UUID, title, message string, meta Metadata) {
	f.create(models.Notification{
		CompanyID:     companyID,
		RecipientType: models.RecipientClient,
		RecipientID:   clientID,
		Title:         title,
		Message:       message,
	}, meta)

	if f.hub != nil {
		f.hub.Push(clientID, map[string]interface{}{
			"type":    meta.NotificationType(),
			"title":   title,
			"message": message,
		})
	}
}

// create persists the notification, swallowing any failure
func (f *Fanout) create(n models.Notification, meta Metadata) {
	n.Type = meta.NotificationType()

	payload, err := json.Marshal(meta)
	if err != nil {
		log.Warn().Err(err).Str("type", string(n.Type)).Msg("Failed to marshal notification metadata")
		return
	}
	n.Metadata = payload

	if err := f.db.Create(&n).Error; err != nil {
		log.Warn().Err(err).Str("type", string(n.Type)).Msg("Failed to create notification")
	}
}
