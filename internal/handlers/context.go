package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vistohub/vistoriago/internal/apperr"
	"github.com/vistohub/vistoriago/internal/auth"
	"github.com/vistohub/vistoriago/internal/middleware"
	"github.com/vistohub/vistoriago/internal/models"
)

// identityFrom fetches the authenticated caller from the request context
func identityFrom(req *http.Request) (auth.Identity, error) {
	identity, ok := middleware.IdentityFrom(req.Context())
	if !ok {
		return auth.Identity{}, apperr.Unauthenticated("not authenticated")
	}
	return identity, nil
}

// pathUUID parses a uuid path variable
func pathUUID(vars map[string]string, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(vars[key])
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid " + key)
	}
	return id, nil
}

// audit records an audit trail entry. Best-effort: a write failure is logged
// and never fails the request.
func (r *Router) audit(identity auth.Identity, action, resourceType string, resourceID uuid.UUID, status, detail string) {
	entry := models.AuditLog{
		UserID:       identity.UserID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID.String(),
		Status:       status,
		Detail:       detail,
	}
	if identity.CompanyID != nil {
		entry.CompanyID = *identity.CompanyID
	}
	if err := r.db.Create(&entry).Error; err != nil {
		log.Warn().Err(err).Str("action", action).Msg("Failed to write audit entry")
	}
}
