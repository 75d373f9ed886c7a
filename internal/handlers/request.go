package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/vistohub/vistoriago/internal/apperr"
	"github.com/vistohub/vistoriago/internal/models"
)

type createRequestBody struct {
	CompanyID       uuid.UUID  `json:"companyId"`
	RequesterName   string     `json:"requesterName"`
	RequesterEmail  string     `json:"requesterEmail"`
	RequesterPhone  string     `json:"requesterPhone,omitempty"`
	RequesterID     *uuid.UUID `json:"requesterId,omitempty"`
	PropertyAddress string     `json:"propertyAddress"`
	DesiredDate     *time.Time `json:"desiredDate,omitempty"`
}

// createRequest is the public, unauthenticated endpoint where a client asks a
// company for an inspection. An inactive or unknown company rejects it.
func (r *Router) createRequest(w http.ResponseWriter, req *http.Request) {
	var body createRequestBody
	if err := decodeJSON(req, &body); err != nil {
		respondError(w, err)
		return
	}
	if body.CompanyID == uuid.Nil {
		respondError(w, apperr.Validation("companyId is required"))
		return
	}
	if body.RequesterName == "" || body.RequesterEmail == "" || body.PropertyAddress == "" {
		respondError(w, apperr.Validation("requesterName, requesterEmail and propertyAddress are required"))
		return
	}

	var company models.Company
	if err := r.db.First(&company, "id = ?", body.CompanyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, apperr.NotFound("company not found"))
			return
		}
		respondError(w, apperr.Internal(err))
		return
	}
	if !company.Active {
		respondError(w, apperr.TenantInactive("company is not accepting requests"))
		return
	}

	request := models.InspectionRequest{
		CompanyID:       company.ID,
		RequesterName:   body.RequesterName,
		RequesterEmail:  body.RequesterEmail,
		RequesterPhone:  body.RequesterPhone,
		RequesterID:     body.RequesterID,
		PropertyAddress: body.PropertyAddress,
		DesiredDate:     body.DesiredDate,
		Status:          models.RequestPending,
	}
	if err := r.db.Create(&request).Error; err != nil {
		respondError(w, apperr.Internal(err))
		return
	}

	r.fanout.RequestCreated(company.ID, request)
	log.Info().
		Str("request_id", request.ID.String()).
		Str("company_id", company.ID.String()).
		Msg("Inspection request created")
	respondJSON(w, http.StatusCreated, &request)
}

// listRequests returns the caller's company requests, optionally filtered by
// status
func (r *Router) listRequests(w http.ResponseWriter, req *http.Request) {
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
	if err := r.gate.Authorize(identity, adminRoles, companyID); err != nil {
		respondError(w, err)
		return
	}

	q := r.db.Where("company_id = ?", companyID)
	if status := req.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var requests []models.InspectionRequest
	if err := q.Order("created_at DESC").Find(&requests).Error; err != nil {
		respondError(w, apperr.Internal(err))
		return
	}
	respondJSON(w, http.StatusOK, requests)
}

type decisionBody struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note,omitempty"`
}

// decideRequest approves or rejects a pending request and notifies the
// requester. Deciding twice is a validation error naming the current status.
func (r *Router) decideRequest(w http.ResponseWriter, req *http.Request) {
	identity, err := identityFrom(req)
	if err != nil {
		respondError(w, err)
		return
	}

	requestID, err := pathUUID(mux.Vars(req), "id")
	if err != nil {
		respondError(w, err)
		return
	}

	var body decisionBody
	if err := decodeJSON(req, &body); err != nil {
		respondError(w, err)
		return
	}

	var request models.InspectionRequest
	if err := r.db.First(&request, "id = ?", requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, apperr.NotFound("request not found"))
			return
		}
		respondError(w, apperr.Internal(err))
		return
	}
	if !identity.IsSuperadmin() {
		if identity.CompanyID == nil || *identity.CompanyID != request.CompanyID {
			respondError(w, apperr.NotFound("request not found"))
			return
		}
	}
	if err := r.gate.Authorize(identity, adminRoles, request.CompanyID); err != nil {
		respondError(w, err)
		return
	}

	status := models.RequestRejected
	if body.Approve {
		status = models.RequestApproved
	}

	now := time.Now()
	res := r.db.Model(&models.InspectionRequest{}).
		Where("id = ? AND status = ?", requestID, models.RequestPending).
		Updates(map[string]interface{}{
			"status":        status,
			"decision_note": body.Note,
			"decided_at":    now,
		})
	if res.Error != nil {
		respondError(w, apperr.Internal(res.Error))
		return
	}
	if res.RowsAffected == 0 {
		respondError(w, apperr.Validation("request is "+string(request.Status)+", expected pending"))
		return
	}

	request.Status = status
	request.DecisionNote = body.Note
	request.DecidedAt = &now

	r.fanout.RequestDecision(request.CompanyID, request, body.Approve)
	r.audit(identity, "request.decide", "inspection_request", request.ID, "success", string(status))
	respondJSON(w, http.StatusOK, &request)
}
