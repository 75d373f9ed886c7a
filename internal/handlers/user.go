package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/vistohub/vistoriago/internal/apperr"
	"github.com/vistohub/vistoriago/internal/models"
)

// listUsers returns the users of the caller's company. Superadmin may pass
// ?companyId= to inspect any tenant, or omit it to list everyone.
func (r *Router) listUsers(w http.ResponseWriter, req *http.Request) {
	identity, err := identityFrom(req)
	if err != nil {
		respondError(w, err)
		return
	}

	q := r.db.Order("created_at DESC")
	if identity.IsSuperadmin() {
		if raw := req.URL.Query().Get("companyId"); raw != "" {
			companyID, err := uuid.Parse(raw)
			if err != nil {
				respondError(w, apperr.Validation("invalid companyId"))
				return
			}
			q = q.Where("company_id = ?", companyID)
		}
	} else {
		companyID, err := r.gate.ResolveCompany(identity, nil)
		if err != nil {
			respondError(w, err)
			return
		}
		if err := r.gate.Authorize(identity, adminRoles, companyID); err != nil {
			respondError(w, err)
			return
		}
		q = q.Where("company_id = ?", companyID)
	}

	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		respondError(w, apperr.Internal(err))
		return
	}
	respondJSON(w, http.StatusOK, users)
}

type assignRoleRequest struct {
	Role      models.Role `json:"role"`
	CompanyID uuid.UUID   `json:"companyId"`
}

// assignRole grants a role and company membership to a user. Superadmin only;
// the gate enforces that and the target-company checks.
func (r *Router) assignRole(w http.ResponseWriter, req *http.Request) {
	identity, err := identityFrom(req)
	if err != nil {
		respondError(w, err)
		return
	}

	targetID, err := pathUUID(mux.Vars(req), "id")
	if err != nil {
		respondError(w, err)
		return
	}

	var body assignRoleRequest
	if err := decodeJSON(req, &body); err != nil {
		respondError(w, err)
		return
	}
	if body.CompanyID == uuid.Nil {
		respondError(w, apperr.Validation("companyId is required"))
		return
	}

	user, err := r.gate.AssignRole(identity, targetID, body.Role, body.CompanyID)
	if err != nil {
		respondError(w, err)
		return
	}

	r.audit(identity, "user.assign_role", "user", targetID, "success", string(body.Role))
	log.Info().
		Str("user_id", targetID.String()).
		Str("role", string(body.Role)).
		Str("company_id", body.CompanyID.String()).
		Msg("Role assigned")
	respondJSON(w, http.StatusOK, user)
}
