package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/vistohub/vistoriago/internal/apperr"
	"github.com/vistohub/vistoriago/internal/auth"
	"github.com/vistohub/vistoriago/internal/models"
)

type createInspectionRequest struct {
	PropertyID   uuid.UUID             `json:"propertyId"`
	InspectorID  *uuid.UUID            `json:"inspectorId,omitempty"`
	ClientID     *uuid.UUID            `json:"clientId,omitempty"`
	Type         models.InspectionType `json:"type"`
	ClientRef    *string               `json:"clientRef,omitempty"`
	ScheduledFor *time.Time            `json:"scheduledFor,omitempty"`
}

// createInspection creates a draft inspection. Offline clients attach a
// clientRef so a retried submission returns the existing record instead of
// duplicating it.
func (r *Router) createInspection(w http.ResponseWriter, req *http.Request) {
	identity, err := identityFrom(req)
	if err != nil {
		respondError(w, err)
		return
	}

	var body createInspectionRequest
	if err := decodeJSON(req, &body); err != nil {
		respondError(w, err)
		return
	}
	if body.PropertyID == uuid.Nil {
		respondError(w, apperr.Validation("propertyId is required"))
		return
	}
	if !body.Type.Valid() {
		respondError(w, apperr.Validation("unknown inspection type: "+string(body.Type)))
		return
	}

	var property models.Property
	if err := r.db.First(&property, "id = ?", body.PropertyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, apperr.NotFound("property not found"))
			return
		}
		respondError(w, apperr.Internal(err))
		return
	}
	if !identity.IsSuperadmin() {
		if identity.CompanyID == nil || *identity.CompanyID != property.CompanyID {
			respondError(w, apperr.NotFound("property not found"))
			return
		}
	}
	if err := r.gate.Authorize(identity, fieldRoles, property.CompanyID); err != nil {
		respondError(w, err)
		return
	}

	// Inspectors create inspections for themselves; admins may assign one.
	inspectorID := identity.UserID
	if body.InspectorID != nil {
		if identity.Role == models.RoleInspector && *body.InspectorID != identity.UserID {
			respondError(w, apperr.Forbidden("inspectors cannot assign other inspectors"))
			return
		}
		inspectorID = *body.InspectorID
	}

	// Replay of an already-synced offline submission: hand back the
	// existing record so the client can mark the entry acknowledged.
	if body.ClientRef != nil && *body.ClientRef != "" {
		var existing models.Inspection
		err := r.db.First(&existing, "client_ref = ?", *body.ClientRef).Error
		if err == nil {
			respondJSON(w, http.StatusOK, &existing)
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, apperr.Internal(err))
			return
		}
	}

	inspection := models.Inspection{
		CompanyID:    property.CompanyID,
		PropertyID:   property.ID,
		InspectorID:  inspectorID,
		ClientID:     body.ClientID,
		Type:         body.Type,
		Status:       models.StatusDraft,
		ClientRef:    body.ClientRef,
		ScheduledFor: body.ScheduledFor,
	}
	if err := r.db.Create(&inspection).Error; err != nil {
		// Unique clientRef lost a race with a concurrent replay
		if body.ClientRef != nil && (strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "UNIQUE")) {
			var existing models.Inspection
			if rerr := r.db.First(&existing, "client_ref = ?", *body.ClientRef).Error; rerr == nil {
				respondJSON(w, http.StatusOK, &existing)
				return
			}
		}
		respondError(w, apperr.Internal(err))
		return
	}

	log.Info().
		Str("inspection_id", inspection.ID.String()).
		Str("property_id", property.ID.String()).
		Msg("Inspection created")
	respondJSON(w, http.StatusCreated, &inspection)
}

// listInspections returns the caller's company inspections, optionally
// filtered by status. Inspectors see only their own assignments.
func (r *Router) listInspections(w http.ResponseWriter, req *http.Request) {
	identity, err := identityFrom(req)
	if err != nil {
		respondError(w, err)
		return
	}

	var requested *uuid.UUID
	if raw := req.URL.Query().Get("companyId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, apperr.Validation("invalid companyId"))
			return
		}
		requested = &id
	}

	companyID, err := r.gate.ResolveCompany(identity, requested)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := r.gate.Authorize(identity, memberRoles, companyID); err != nil {
		respondError(w, err)
		return
	}

	q := r.db.Where("company_id = ?", companyID)
	if status := req.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if identity.Role == models.RoleInspector {
		q = q.Where("inspector_id = ?", identity.UserID)
	}

	var inspections []models.Inspection
	if err := q.Order("created_at DESC").Find(&inspections).Error; err != nil {
		respondError(w, apperr.Internal(err))
		return
	}
	respondJSON(w, http.StatusOK, inspections)
}

// getInspection returns one inspection with its rooms and photos
func (r *Router) getInspection(w http.ResponseWriter, req *http.Request) {
	_, inspection, err := r.loadInspection(req, memberRoles, true)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, inspection)
}

type scheduleRequest struct {
	ScheduledFor time.Time `json:"scheduledFor"`
}

// scheduleInspection sets the visit date and notifies the client
func (r *Router) scheduleInspection(w http.ResponseWriter, req *http.Request) {
	_, inspection, err := r.loadInspection(req, adminRoles, false)
	if err != nil {
		respondError(w, err)
		return
	}

	var body scheduleRequest
	if err := decodeJSON(req, &body); err != nil {
		respondError(w, err)
		return
	}
	if body.ScheduledFor.IsZero() {
		respondError(w, apperr.Validation("scheduledFor is required"))
		return
	}

	if err := r.db.Model(inspection).
		Update("scheduled_for", body.ScheduledFor).Error; err != nil {
		respondError(w, apperr.Internal(err))
		return
	}
	inspection.ScheduledFor = &body.ScheduledFor

	if inspection.ClientID != nil {
		r.fanout.InspectionScheduled(*inspection.ClientID, *inspection)
	}
	respondJSON(w, http.StatusOK, inspection)
}

// startInspection moves a draft to in_progress
func (r *Router) startInspection(w http.ResponseWriter, req *http.Request) {
	identity, inspection, err := r.loadInspection(req, fieldRoles, false)
	if err != nil {
		respondError(w, err)
		return
	}

	res := r.db.Model(&models.Inspection{}).
		Where("id = ? AND status = ?", inspection.ID, models.StatusDraft).
		Update("status", models.StatusInProgress)
	if res.Error != nil {
		respondError(w, apperr.Internal(res.Error))
		return
	}
	if res.RowsAffected == 0 {
		if inspection.Status == models.StatusInProgress {
			respondJSON(w, http.StatusOK, inspection)
			return
		}
		respondError(w, apperr.Validation("inspection is "+string(inspection.Status)+", expected draft"))
		return
	}

	old := inspection.Status
	inspection.Status = models.StatusInProgress
	if inspection.ClientID != nil {
		r.fanout.StatusChanged(*inspection.ClientID, *inspection, old)
	}
	r.audit(identity, "inspection.start", "inspection", inspection.ID, "success", "")
	respondJSON(w, http.StatusOK, inspection)
}

type finalizeRequest struct {
	PDFURL string `json:"pdfUrl"`
}

// finalizeInspection atomically transitions in_progress to finalized with the
// report URL attached. Conflicting concurrent attempts lose the conditional
// update and observe the winner's result; a repeat on an already-finalized
// record is an idempotent success that leaves the original URL and timestamp
// untouched.
func (r *Router) finalizeInspection(w http.ResponseWriter, req *http.Request) {
	identity, inspection, err := r.loadInspection(req, fieldRoles, false)
	if err != nil {
		respondError(w, err)
		return
	}

	var body finalizeRequest
	if err := decodeJSON(req, &body); err != nil {
		respondError(w, err)
		return
	}
	pdfURL := body.PDFURL
	if pdfURL == "" {
		if inspection.PDFURL == nil || *inspection.PDFURL == "" {
			respondError(w, apperr.Validation("pdfUrl is required"))
			return
		}
		pdfURL = *inspection.PDFURL
	}

	now := time.Now()
	contestToken := newContestToken()
	res := r.db.Model(&models.Inspection{}).
		Where("id = ? AND status = ?", inspection.ID, models.StatusInProgress).
		Updates(map[string]interface{}{
			"status":        models.StatusFinalized,
			"pdf_url":       pdfURL,
			"finalized_at":  now,
			"contest_token": contestToken,
		})
	if res.Error != nil {
		respondError(w, apperr.Internal(res.Error))
		return
	}

	if res.RowsAffected == 0 {
		var current models.Inspection
		if err := r.db.First(&current, "id = ?", inspection.ID).Error; err != nil {
			respondError(w, apperr.Internal(err))
			return
		}
		if current.Status == models.StatusFinalized {
			respondJSON(w, http.StatusOK, &current)
			return
		}
		respondError(w, apperr.Validation("inspection is "+string(current.Status)+", expected in_progress"))
		return
	}

	old := inspection.Status
	inspection.Status = models.StatusFinalized
	inspection.PDFURL = &pdfURL
	inspection.FinalizedAt = &now
	inspection.ContestToken = &contestToken

	r.mirrorReport(req, inspection)

	if inspection.ClientID != nil {
		r.fanout.StatusChanged(*inspection.ClientID, *inspection, old)
		r.fanout.ReportAvailable(*inspection.ClientID, *inspection)
	}
	r.audit(identity, "inspection.finalize", "inspection", inspection.ID, "success", pdfURL)
	log.Info().Str("inspection_id", inspection.ID.String()).Msg("Inspection finalized")
	respondJSON(w, http.StatusOK, inspection)
}

// mirrorReport pushes the stored report PDF to the external mirror.
// Best-effort: the finalize transition has already committed.
func (r *Router) mirrorReport(req *http.Request, inspection *models.Inspection) {
	if r.mirror == nil || r.store == nil || inspection.PDFStoragePath == nil {
		return
	}
	f, err := r.store.Open(*inspection.PDFStoragePath)
	if err != nil {
		log.Warn().Err(err).Str("inspection_id", inspection.ID.String()).
			Msg("Report not readable for mirroring")
		return
	}
	defer f.Close()

	name := "inspection-" + inspection.ID.String() + ".pdf"
	if _, err := r.mirror.MirrorPDF(req.Context(), name, f); err != nil {
		log.Warn().Err(err).Str("inspection_id", inspection.ID.String()).
			Msg("Report mirror failed")
	}
}

type contestRequest struct {
	Reason string `json:"reason"`
}

// contestInspection is the public dispute endpoint reached via the QR code on
// the report. The token alone authorizes it; only a finalized inspection can
// be contested.
func (r *Router) contestInspection(w http.ResponseWriter, req *http.Request) {
	token := mux.Vars(req)["token"]
	if token == "" {
		respondError(w, apperr.Validation("token is required"))
		return
	}

	var body contestRequest
	if err := decodeJSON(req, &body); err != nil {
		respondError(w, err)
		return
	}
	if body.Reason == "" {
		respondError(w, apperr.Validation("reason is required"))
		return
	}

	var inspection models.Inspection
	if err := r.db.First(&inspection, "contest_token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, apperr.NotFound("inspection not found"))
			return
		}
		respondError(w, apperr.Internal(err))
		return
	}

	now := time.Now()
	res := r.db.Model(&models.Inspection{}).
		Where("id = ? AND status = ?", inspection.ID, models.StatusFinalized).
		Updates(map[string]interface{}{
			"status":         models.StatusContested,
			"contest_reason": body.Reason,
			"contested_at":   now,
		})
	if res.Error != nil {
		respondError(w, apperr.Internal(res.Error))
		return
	}
	if res.RowsAffected == 0 {
		if inspection.Status == models.StatusContested {
			respondJSON(w, http.StatusOK, map[string]string{"message": "already contested"})
			return
		}
		respondError(w, apperr.Validation("inspection is "+string(inspection.Status)+", expected finalized"))
		return
	}

	old := inspection.Status
	inspection.Status = models.StatusContested
	inspection.ContestReason = &body.Reason
	inspection.ContestedAt = &now

	r.fanout.StatusChangedForAdmins(inspection, old)
	log.Info().Str("inspection_id", inspection.ID.String()).Msg("Inspection contested")
	respondJSON(w, http.StatusOK, map[string]string{"message": "contest recorded"})
}

// loadInspection resolves the {id} path variable and gates the caller.
// Cross-company ids map to NotFound; inspectors are further restricted to
// their own assignments.
func (r *Router) loadInspection(req *http.Request, allowed auth.RoleSet, withChildren bool) (auth.Identity, *models.Inspection, error) {
	identity, err := identityFrom(req)
	if err != nil {
		return auth.Identity{}, nil, err
	}

	inspectionID, err := pathUUID(mux.Vars(req), "id")
	if err != nil {
		return identity, nil, err
	}

	q := r.db
	if withChildren {
		q = q.Preload("Rooms", func(db *gorm.DB) *gorm.DB {
			return db.Order("rooms.position ASC")
		}).Preload("Rooms.Photos", func(db *gorm.DB) *gorm.DB {
			return db.Order("photos.position ASC")
		})
	}

	var inspection models.Inspection
	if err := q.First(&inspection, "id = ?", inspectionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return identity, nil, apperr.NotFound("inspection not found")
		}
		return identity, nil, apperr.Internal(err)
	}

	if !identity.IsSuperadmin() {
		if identity.CompanyID == nil || *identity.CompanyID != inspection.CompanyID {
			return identity, nil, apperr.NotFound("inspection not found")
		}
	}
	if identity.Role == models.RoleInspector && inspection.InspectorID != identity.UserID {
		return identity, nil, apperr.NotFound("inspection not found")
	}
	if err := r.gate.Authorize(identity, allowed, inspection.CompanyID); err != nil {
		return identity, nil, err
	}
	return identity, &inspection, nil
}

// newContestToken returns an unguessable token for the public dispute link
func newContestToken() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(buf)
}
