package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vistohub/vistoriago/internal/apperr"
	"github.com/vistohub/vistoriago/internal/models"
)

type dashboardResponse struct {
	Total           int64   `json:"total"`
	Draft           int64   `json:"draft"`
	InProgress      int64   `json:"inProgress"`
	Finalized       int64   `json:"finalized"`
	Contested       int64   `json:"contested"`
	CompletionRate  float64 `json:"completionRate"`
	PendingRequests int64   `json:"pendingRequests"`
}

// dashboard returns per-company inspection counts and the completion rate.
// An empty company yields all zeroes, not an error.
func (r *Router) dashboard(w http.ResponseWriter, req *http.Request) {
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

	var out dashboardResponse
	type statusCount struct {
		Status models.InspectionStatus
		Count  int64
	}
	var counts []statusCount
	if err := r.db.Model(&models.Inspection{}).
		Select("status, count(*) as count").
		Where("company_id = ?", companyID).
		Group("status").
		Scan(&counts).Error; err != nil {
		respondError(w, apperr.Internal(err))
		return
	}

	for _, c := range counts {
		out.Total += c.Count
		switch c.Status {
		case models.StatusDraft:
			out.Draft = c.Count
		case models.StatusInProgress:
			out.InProgress = c.Count
		case models.StatusFinalized:
			out.Finalized = c.Count
		case models.StatusContested:
			out.Contested = c.Count
		}
	}
	if out.Total > 0 {
		// Contested inspections were completed before the dispute
		out.CompletionRate = float64(out.Finalized+out.Contested) / float64(out.Total) * 100
	}

	if err := r.db.Model(&models.InspectionRequest{}).
		Where("company_id = ? AND status = ?", companyID, models.RequestPending).
		Count(&out.PendingRequests).Error; err != nil {
		respondError(w, apperr.Internal(err))
		return
	}

	respondJSON(w, http.StatusOK, out)
}
