package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/vistohub/vistoriago/internal/apperr"
	"github.com/vistohub/vistoriago/internal/auth"
	"github.com/vistohub/vistoriago/internal/models"
)

type propertyRequest struct {
	Address   string              `json:"address"`
	Type      models.PropertyType `json:"type"`
	Code      string              `json:"code"`
	OwnerName string              `json:"ownerName"`
	CompanyID *uuid.UUID          `json:"companyId,omitempty"`
}

// createProperty registers a property under the caller's company
func (r *Router) createProperty(w http.ResponseWriter, req *http.Request) {
	identity, err := identityFrom(req)
	if err != nil {
		respondError(w, err)
		return
	}

	var body propertyRequest
	if err := decodeJSON(req, &body); err != nil {
		respondError(w, err)
		return
	}
	if body.Address == "" {
		respondError(w, apperr.Validation("address is required"))
		return
	}
	if !body.Type.Valid() {
		respondError(w, apperr.Validation("unknown property type: "+string(body.Type)))
		return
	}

	companyID, err := r.gate.ResolveCompany(identity, body.CompanyID)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := r.gate.Authorize(identity, adminRoles, companyID); err != nil {
		respondError(w, err)
		return
	}

	property := models.Property{
		CompanyID: companyID,
		Address:   body.Address,
		Type:      body.Type,
		Code:      body.Code,
		OwnerName: body.OwnerName,
	}
	if err := r.db.Create(&property).Error; err != nil {
		respondError(w, apperr.Internal(err))
		return
	}

	respondJSON(w, http.StatusCreated, &property)
}

// listProperties returns the properties of the caller's company
func (r *Router) listProperties(w http.ResponseWriter, req *http.Request) {
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

	var properties []models.Property
	if err := r.db.Where("company_id = ?", companyID).
		Order("created_at DESC").Find(&properties).Error; err != nil {
		respondError(w, apperr.Internal(err))
		return
	}
	respondJSON(w, http.StatusOK, properties)
}

// getProperty returns one property. Records belonging to another company are
// reported as not found, never as forbidden, so their existence leaks nothing.
func (r *Router) getProperty(w http.ResponseWriter, req *http.Request) {
	_, property, err := r.loadProperty(req, memberRoles)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, property)
}

// updateProperty modifies a property's descriptive fields
func (r *Router) updateProperty(w http.ResponseWriter, req *http.Request) {
	_, property, err := r.loadProperty(req, adminRoles)
	if err != nil {
		respondError(w, err)
		return
	}

	var body propertyRequest
	if err := decodeJSON(req, &body); err != nil {
		respondError(w, err)
		return
	}

	updates := map[string]interface{}{}
	if body.Address != "" {
		updates["address"] = body.Address
	}
	if body.Type != "" {
		if !body.Type.Valid() {
			respondError(w, apperr.Validation("unknown property type: "+string(body.Type)))
			return
		}
		updates["type"] = body.Type
	}
	if body.Code != "" {
		updates["code"] = body.Code
	}
	if body.OwnerName != "" {
		updates["owner_name"] = body.OwnerName
	}

	if len(updates) > 0 {
		if err := r.db.Model(property).Updates(updates).Error; err != nil {
			respondError(w, apperr.Internal(err))
			return
		}
	}
	respondJSON(w, http.StatusOK, property)
}

// deleteProperty soft-deletes a property
func (r *Router) deleteProperty(w http.ResponseWriter, req *http.Request) {
	identity, property, err := r.loadProperty(req, adminRoles)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := r.db.Delete(property).Error; err != nil {
		respondError(w, apperr.Internal(err))
		return
	}
	r.audit(identity, "property.delete", "property", property.ID, "success", property.Address)
	respondJSON(w, http.StatusOK, map[string]string{"message": "property deleted"})
}

// loadProperty resolves the {id} path variable, gates the caller against the
// record's company and returns the record. Cross-company ids map to NotFound.
func (r *Router) loadProperty(req *http.Request, allowed auth.RoleSet) (auth.Identity, *models.Property, error) {
	identity, err := identityFrom(req)
	if err != nil {
		return auth.Identity{}, nil, err
	}

	propertyID, err := pathUUID(mux.Vars(req), "id")
	if err != nil {
		return identity, nil, err
	}

	var property models.Property
	if err := r.db.First(&property, "id = ?", propertyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return identity, nil, apperr.NotFound("property not found")
		}
		return identity, nil, apperr.Internal(err)
	}

	if !identity.IsSuperadmin() {
		if identity.CompanyID == nil || *identity.CompanyID != property.CompanyID {
			return identity, nil, apperr.NotFound("property not found")
		}
	}
	if err := r.gate.Authorize(identity, allowed, property.CompanyID); err != nil {
		return identity, nil, err
	}
	return identity, &property, nil
}
