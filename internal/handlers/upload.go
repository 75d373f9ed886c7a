package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/vistohub/vistoriago/internal/apperr"
	"github.com/vistohub/vistoriago/internal/models"
	"github.com/vistohub/vistoriago/internal/report"
)

const maxUploadBytes = 32 << 20 // 32 MB

type addRoomRequest struct {
	Name      string  `json:"name"`
	Position  int     `json:"position"`
	Condition string  `json:"condition"`
	ClientRef *string `json:"clientRef,omitempty"`
}

// addRoom appends a room record to an inspection. ClientRef replays hand back
// the existing room, matching the inspection create semantics.
func (r *Router) addRoom(w http.ResponseWriter, req *http.Request) {
	_, inspection, err := r.loadInspection(req, fieldRoles, false)
	if err != nil {
		respondError(w, err)
		return
	}
	if inspection.Status != models.StatusDraft && inspection.Status != models.StatusInProgress {
		respondError(w, apperr.Validation("inspection is "+string(inspection.Status)+", rooms can no longer be added"))
		return
	}

	var body addRoomRequest
	if err := decodeJSON(req, &body); err != nil {
		respondError(w, err)
		return
	}
	if body.Name == "" {
		respondError(w, apperr.Validation("name is required"))
		return
	}

	if body.ClientRef != nil && *body.ClientRef != "" {
		var existing models.Room
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

	room := models.Room{
		InspectionID: inspection.ID,
		Name:         body.Name,
		Position:     body.Position,
		Condition:    body.Condition,
		ClientRef:    body.ClientRef,
	}
	if err := r.db.Create(&room).Error; err != nil {
		if body.ClientRef != nil && (strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "UNIQUE")) {
			var existing models.Room
			if rerr := r.db.First(&existing, "client_ref = ?", *body.ClientRef).Error; rerr == nil {
				respondJSON(w, http.StatusOK, &existing)
				return
			}
		}
		respondError(w, apperr.Internal(err))
		return
	}

	respondJSON(w, http.StatusCreated, &room)
}

// uploadPhoto attaches a photo to a room via multipart form data. Fields:
// file (required), position, caption, clientRef.
func (r *Router) uploadPhoto(w http.ResponseWriter, req *http.Request) {
	_, inspection, err := r.loadInspection(req, fieldRoles, false)
	if err != nil {
		respondError(w, err)
		return
	}
	if inspection.Status != models.StatusDraft && inspection.Status != models.StatusInProgress {
		respondError(w, apperr.Validation("inspection is "+string(inspection.Status)+", photos can no longer be added"))
		return
	}

	roomID, err := pathUUID(mux.Vars(req), "roomId")
	if err != nil {
		respondError(w, err)
		return
	}
	var room models.Room
	if err := r.db.First(&room, "id = ? AND inspection_id = ?", roomID, inspection.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, apperr.NotFound("room not found"))
			return
		}
		respondError(w, apperr.Internal(err))
		return
	}

	if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, apperr.Validation("invalid multipart form"))
		return
	}

	clientRef := req.FormValue("clientRef")
	if clientRef != "" {
		var existing models.Photo
		err := r.db.First(&existing, "client_ref = ?", clientRef).Error
		if err == nil {
			respondJSON(w, http.StatusOK, &existing)
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, apperr.Internal(err))
			return
		}
	}

	file, header, err := req.FormFile("file")
	if err != nil {
		respondError(w, apperr.Validation("file is required"))
		return
	}
	defer file.Close()

	path, publicURL, err := r.store.Save(inspection.CompanyID, inspection.ID, header.Filename, file)
	if err != nil {
		respondError(w, apperr.Internal(err))
		return
	}

	photo := models.Photo{
		RoomID:       room.ID,
		InspectionID: inspection.ID,
		StoragePath:  path,
		PublicURL:    publicURL,
		Position:     atoiDefault(req.FormValue("position"), 0),
		Caption:      req.FormValue("caption"),
	}
	if clientRef != "" {
		photo.ClientRef = &clientRef
	}
	if err := r.db.Create(&photo).Error; err != nil {
		if clientRef != "" && (strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "UNIQUE")) {
			var existing models.Photo
			if rerr := r.db.First(&existing, "client_ref = ?", clientRef).Error; rerr == nil {
				respondJSON(w, http.StatusOK, &existing)
				return
			}
		}
		respondError(w, apperr.Internal(err))
		return
	}

	respondJSON(w, http.StatusCreated, &photo)
}

// uploadPDF stores an externally rendered report for an in-progress
// inspection and returns its public URL for the finalize call
func (r *Router) uploadPDF(w http.ResponseWriter, req *http.Request) {
	_, inspection, err := r.loadInspection(req, fieldRoles, false)
	if err != nil {
		respondError(w, err)
		return
	}
	if inspection.Status != models.StatusDraft && inspection.Status != models.StatusInProgress {
		respondError(w, apperr.Validation("inspection is "+string(inspection.Status)+", the report can no longer be replaced"))
		return
	}

	if err := req.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, apperr.Validation("invalid multipart form"))
		return
	}
	file, _, err := req.FormFile("file")
	if err != nil {
		respondError(w, apperr.Validation("file is required"))
		return
	}
	defer file.Close()

	path, publicURL, err := r.store.Save(inspection.CompanyID, inspection.ID, "report.pdf", file)
	if err != nil {
		respondError(w, apperr.Internal(err))
		return
	}

	if err := r.db.Model(inspection).Updates(map[string]interface{}{
		"pdf_url":          publicURL,
		"pdf_storage_path": path,
	}).Error; err != nil {
		respondError(w, apperr.Internal(err))
		return
	}
	inspection.PDFURL = &publicURL
	inspection.PDFStoragePath = &path

	respondJSON(w, http.StatusOK, map[string]string{"pdfUrl": publicURL})
}

// generateReport renders the report PDF server side, stores it and returns
// its URL. A finalized inspection's report embeds the contest QR code.
func (r *Router) generateReport(w http.ResponseWriter, req *http.Request) {
	identity, inspection, err := r.loadInspection(req, fieldRoles, true)
	if err != nil {
		respondError(w, err)
		return
	}

	var company models.Company
	if err := r.db.First(&company, "id = ?", inspection.CompanyID).Error; err != nil {
		respondError(w, apperr.Internal(err))
		return
	}
	var property models.Property
	if err := r.db.First(&property, "id = ?", inspection.PropertyID).Error; err != nil {
		respondError(w, apperr.Internal(err))
		return
	}
	var inspector models.User
	if err := r.db.First(&inspector, "id = ?", inspection.InspectorID).Error; err != nil {
		respondError(w, apperr.Internal(err))
		return
	}

	data := report.Data{
		Company:    company,
		Property:   property,
		Inspection: *inspection,
		Inspector:  inspector,
	}
	if inspection.ContestToken != nil {
		data.ContestURL = r.cfg.BaseURL + "/public/contest/" + *inspection.ContestToken
	}

	pdf, err := report.Generate(data)
	if err != nil {
		respondError(w, apperr.Internal(err))
		return
	}

	path, publicURL, err := r.store.Save(inspection.CompanyID, inspection.ID, "report.pdf", bytes.NewReader(pdf))
	if err != nil {
		respondError(w, apperr.Internal(err))
		return
	}

	if err := r.db.Model(inspection).Updates(map[string]interface{}{
		"pdf_url":          publicURL,
		"pdf_storage_path": path,
	}).Error; err != nil {
		respondError(w, apperr.Internal(err))
		return
	}
	inspection.PDFURL = &publicURL
	inspection.PDFStoragePath = &path

	r.audit(identity, "inspection.report", "inspection", inspection.ID, "success", publicURL)
	log.Info().Str("inspection_id", inspection.ID.String()).Msg("Report generated")
	respondJSON(w, http.StatusOK, map[string]string{"pdfUrl": publicURL})
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
