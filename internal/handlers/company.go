package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/vistohub/vistoriago/internal/apperr"
	"github.com/vistohub/vistoriago/internal/models"
)

type createCompanyRequest struct {
	Name           string `json:"name"`
	TaxID          string `json:"taxId"`
	StorageQuotaMB int    `json:"storageQuotaMb"`
}

// createCompany provisions a new tenant. Superadmin only.
func (r *Router) createCompany(w http.ResponseWriter, req *http.Request) {
	identity, err := identityFrom(req)
	if err != nil {
		respondError(w, err)
		return
	}
	if !identity.IsSuperadmin() {
		respondError(w, apperr.Forbidden("company provisioning requires superadmin"))
		return
	}

	var body createCompanyRequest
	if err := decodeJSON(req, &body); err != nil {
		respondError(w, err)
		return
	}
	if body.Name == "" || body.TaxID == "" {
		respondError(w, apperr.Validation("name and taxId are required"))
		return
	}

	company := models.Company{
		Name:   body.Name,
		TaxID:  body.TaxID,
		Active: true,
	}
	if body.StorageQuotaMB > 0 {
		company.StorageQuotaMB = body.StorageQuotaMB
	}

	if err := r.db.Create(&company).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "UNIQUE") {
			respondError(w, apperr.Conflict("tax id already registered"))
			return
		}
		respondError(w, apperr.Internal(err))
		return
	}

	r.audit(identity, "company.create", "company", company.ID, "success", company.Name)
	log.Info().Str("company_id", company.ID.String()).Str("name", company.Name).Msg("Company created")
	respondJSON(w, http.StatusCreated, &company)
}

// listCompanies returns all tenants for superadmin, or the caller's own
// company for everyone else
func (r *Router) listCompanies(w http.ResponseWriter, req *http.Request) {
	identity, err := identityFrom(req)
	if err != nil {
		respondError(w, err)
		return
	}

	var companies []models.Company
	q := r.db.Order("created_at DESC")
	if !identity.IsSuperadmin() {
		if identity.CompanyID == nil {
			respondJSON(w, http.StatusOK, []models.Company{})
			return
		}
		q = q.Where("id = ?", *identity.CompanyID)
	}
	if err := q.Find(&companies).Error; err != nil {
		respondError(w, apperr.Internal(err))
		return
	}

	respondJSON(w, http.StatusOK, companies)
}

// deactivateCompany suspends a tenant. In-flight operations already underway
// are unaffected; every subsequent gated operation on the company fails.
func (r *Router) deactivateCompany(w http.ResponseWriter, req *http.Request) {
	r.setCompanyActive(w, req, false)
}

// reactivateCompany lifts a suspension. This is the one operation permitted
// on an inactive company.
func (r *Router) reactivateCompany(w http.ResponseWriter, req *http.Request) {
	r.setCompanyActive(w, req, true)
}

func (r *Router) setCompanyActive(w http.ResponseWriter, req *http.Request, active bool) {
	identity, err := identityFrom(req)
	if err != nil {
		respondError(w, err)
		return
	}

	companyID, err := pathUUID(mux.Vars(req), "id")
	if err != nil {
		respondError(w, err)
		return
	}

	if active {
		err = r.gate.AuthorizeInactive(identity, superadminOnly, companyID)
	} else {
		err = r.gate.Authorize(identity, superadminOnly, companyID)
	}
	if err != nil {
		respondError(w, err)
		return
	}

	if err := r.db.Model(&models.Company{}).
		Where("id = ?", companyID).
		Update("active", active).Error; err != nil {
		respondError(w, apperr.Internal(err))
		return
	}

	action := "company.deactivate"
	if active {
		action = "company.reactivate"
	}
	r.audit(identity, action, "company", companyID, "success", "")

	var company models.Company
	if err := r.db.First(&company, "id = ?", companyID).Error; err != nil {
		respondError(w, apperr.Internal(err))
		return
	}
	respondJSON(w, http.StatusOK, &company)
}
