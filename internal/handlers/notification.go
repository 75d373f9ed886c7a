package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vistohub/vistoriago/internal/apperr"
	"github.com/vistohub/vistoriago/internal/models"
)

// listNotifications returns the caller's notifications: personal ones, plus
// the company admin pool for admins
func (r *Router) listNotifications(w http.ResponseWriter, req *http.Request) {
	identity, err := identityFrom(req)
	if err != nil {
		respondError(w, err)
		return
	}

	q := r.db.Where("recipient_type = ? AND recipient_id = ?",
		models.RecipientClient, identity.UserID)
	if identity.CompanyID != nil &&
		(identity.Role == models.RoleAdmin || identity.Role == models.RoleSuperadmin) {
		q = q.Or("recipient_type = ? AND recipient_id = ?",
			models.RecipientCompanyAdmins, *identity.CompanyID)
	}

	db := r.db.Where(q)
	if req.URL.Query().Get("unread") == "true" {
		db = db.Where("read = ?", false)
	}

	var notifications []models.Notification
	if err := db.Order("created_at DESC").Limit(100).Find(&notifications).Error; err != nil {
		respondError(w, apperr.Internal(err))
		return
	}
	respondJSON(w, http.StatusOK, notifications)
}

// markNotificationRead marks one of the caller's notifications as read.
// Notifications addressed to someone else are reported as not found.
func (r *Router) markNotificationRead(w http.ResponseWriter, req *http.Request) {
	identity, err := identityFrom(req)
	if err != nil {
		respondError(w, err)
		return
	}

	notificationID, err := pathUUID(mux.Vars(req), "id")
	if err != nil {
		respondError(w, err)
		return
	}

	var notification models.Notification
	if err := r.db.First(&notification, "id = ?", notificationID).Error; err != nil {
		respondError(w, apperr.NotFound("notification not found"))
		return
	}

	owned := notification.RecipientType == models.RecipientClient &&
		notification.RecipientID == identity.UserID
	if !owned && notification.RecipientType == models.RecipientCompanyAdmins {
		owned = identity.CompanyID != nil &&
			notification.RecipientID == *identity.CompanyID &&
			(identity.Role == models.RoleAdmin || identity.Role == models.RoleSuperadmin)
	}
	if !owned {
		respondError(w, apperr.NotFound("notification not found"))
		return
	}

	if err := r.db.Model(&notification).Update("read", true).Error; err != nil {
		respondError(w, apperr.Internal(err))
		return
	}
	notification.Read = true
	respondJSON(w, http.StatusOK, &notification)
}
