package handlers

import (
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/vistohub/vistoriago/internal/models"
)

func TestPublicRequestFlow(t *testing.T) {
	h := newHarness(t)
	company := h.company(t, true)
	_, adminToken := h.user(t, models.RoleAdmin, &company.ID)

	// A client submits without any credential
	rec, env := h.do(t, "POST", "/public/requests", "", map[string]interface{}{
		"companyId":       company.ID,
		"requesterName":   "João Santos",
		"requesterEmail":  "joao@example.com",
		"propertyAddress": "Av. Paulista 1000",
	})
	expectStatus(t, rec, http.StatusCreated)
	var request models.InspectionRequest
	decodeData(t, env, &request)
	if request.Status != models.RequestPending {
		t.Errorf("Expected pending, got %s", request.Status)
	}

	// The admin pool is notified
	var count int64
	h.db.Model(&models.Notification{}).
		Where("recipient_type = ? AND recipient_id = ? AND type = ?",
			models.RecipientCompanyAdmins, company.ID, models.NotifyRequestCreated).
		Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 admin pool notification, got %d", count)
	}

	// Admin approves
	rec, env = h.do(t, "PUT", "/api/requests/"+request.ID.String()+"/decision", adminToken,
		map[string]interface{}{"approve": true, "note": "scheduled for next week"})
	expectStatus(t, rec, http.StatusOK)
	decodeData(t, env, &request)
	if request.Status != models.RequestApproved {
		t.Errorf("Expected approved, got %s", request.Status)
	}
	if request.DecidedAt == nil {
		t.Error("Decision should set the timestamp")
	}

	// Deciding twice names the current status
	rec, env = h.do(t, "PUT", "/api/requests/"+request.ID.String()+"/decision", adminToken,
		map[string]interface{}{"approve": false})
	expectStatus(t, rec, http.StatusBadRequest)
	if errorCode(t, env) != "VALIDATION" {
		t.Errorf("Expected VALIDATION, got %s", errorCode(t, env))
	}
}

func TestPublicRequestRejectedForInactiveCompany(t *testing.T) {
	h := newHarness(t)
	company := h.company(t, false)

	rec, env := h.do(t, "POST", "/public/requests", "", map[string]interface{}{
		"companyId":       company.ID,
		"requesterName":   "João Santos",
		"requesterEmail":  "joao@example.com",
		"propertyAddress": "Av. Paulista 1000",
	})
	expectStatus(t, rec, http.StatusBadRequest)
	if errorCode(t, env) != "TENANT_INACTIVE" {
		t.Errorf("Expected TENANT_INACTIVE, got %s", errorCode(t, env))
	}
}

func TestDecisionNotifiesAccountHolder(t *testing.T) {
	h := newHarness(t)
	company := h.company(t, true)
	_, adminToken := h.user(t, models.RoleAdmin, &company.ID)
	client, _ := h.user(t, models.RoleAgent, nil)

	rec, env := h.do(t, "POST", "/public/requests", "", map[string]interface{}{
		"companyId":       company.ID,
		"requesterName":   "Maria",
		"requesterEmail":  "maria@example.com",
		"requesterId":     client.ID,
		"propertyAddress": "Rua A 1",
	})
	expectStatus(t, rec, http.StatusCreated)
	var request models.InspectionRequest
	decodeData(t, env, &request)

	rec, _ = h.do(t, "PUT", "/api/requests/"+request.ID.String()+"/decision", adminToken,
		map[string]interface{}{"approve": false, "note": "area not covered"})
	expectStatus(t, rec, http.StatusOK)

	var count int64
	h.db.Model(&models.Notification{}).
		Where("recipient_type = ? AND recipient_id = ? AND type = ?",
			models.RecipientClient, client.ID, models.NotifyRequestDecision).
		Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 decision notification, got %d", count)
	}
}

func TestDecisionHiddenAcrossCompanies(t *testing.T) {
	h := newHarness(t)
	companyA := h.company(t, true)
	companyB := h.company(t, true)
	_, tokenA := h.user(t, models.RoleAdmin, &companyA.ID)

	request := models.InspectionRequest{
		CompanyID:       companyB.ID,
		RequesterName:   "X",
		RequesterEmail:  "x@example.com",
		PropertyAddress: "Y",
		Status:          models.RequestPending,
	}
	if err := h.db.Create(&request).Error; err != nil {
		t.Fatalf("Failed to seed request: %v", err)
	}

	rec, env := h.do(t, "PUT", "/api/requests/"+request.ID.String()+"/decision", tokenA,
		map[string]interface{}{"approve": true})
	expectStatus(t, rec, http.StatusNotFound)
	if errorCode(t, env) != "NOT_FOUND" {
		t.Errorf("Expected NOT_FOUND, got %s", errorCode(t, env))
	}

	// The record is untouched
	var stored models.InspectionRequest
	h.db.First(&stored, "id = ?", request.ID)
	if stored.Status != models.RequestPending {
		t.Errorf("Foreign decision must not change the record, got %s", stored.Status)
	}
}

func TestDashboard(t *testing.T) {
	h := newHarness(t)
	company := h.company(t, true)
	admin, token := h.user(t, models.RoleAdmin, &company.ID)
	property := h.property(t, company.ID)

	// Empty company yields zeroes
	rec, env := h.do(t, "GET", "/api/dashboard", token, nil)
	expectStatus(t, rec, http.StatusOK)
	var out dashboardResponse
	decodeData(t, env, &out)
	if out.Total != 0 || out.CompletionRate != 0 {
		t.Errorf("Empty company should report zeroes, got %+v", out)
	}

	h.inspection(t, company.ID, property.ID, admin.ID, models.StatusDraft)
	h.inspection(t, company.ID, property.ID, admin.ID, models.StatusInProgress)
	h.inspection(t, company.ID, property.ID, admin.ID, models.StatusFinalized)
	h.inspection(t, company.ID, property.ID, admin.ID, models.StatusFinalized)

	// Another company's data never bleeds in
	other := h.company(t, true)
	otherProp := h.property(t, other.ID)
	h.inspection(t, other.ID, otherProp.ID, uuid.New(), models.StatusFinalized)

	rec, env = h.do(t, "GET", "/api/dashboard", token, nil)
	expectStatus(t, rec, http.StatusOK)
	decodeData(t, env, &out)
	if out.Total != 4 {
		t.Errorf("Expected 4 inspections, got %d", out.Total)
	}
	if out.Finalized != 2 {
		t.Errorf("Expected 2 finalized, got %d", out.Finalized)
	}
	if out.CompletionRate != 50 {
		t.Errorf("Expected 50%% completion, got %.1f", out.CompletionRate)
	}
}

func TestNotificationOwnership(t *testing.T) {
	h := newHarness(t)
	company := h.company(t, true)
	_, adminToken := h.user(t, models.RoleAdmin, &company.ID)
	agent, agentToken := h.user(t, models.RoleAgent, &company.ID)

	pool := models.Notification{
		CompanyID:     company.ID,
		RecipientType: models.RecipientCompanyAdmins,
		RecipientID:   company.ID,
		Type:          models.NotifyRequestCreated,
		Title:         "New inspection request",
	}
	personal := models.Notification{
		CompanyID:     company.ID,
		RecipientType: models.RecipientClient,
		RecipientID:   agent.ID,
		Type:          models.NotifyStatusChanged,
		Title:         "Inspection status changed",
	}
	if err := h.db.Create(&pool).Error; err != nil {
		t.Fatalf("Failed to seed notification: %v", err)
	}
	if err := h.db.Create(&personal).Error; err != nil {
		t.Fatalf("Failed to seed notification: %v", err)
	}

	// Admin sees the pool, not the agent's personal notification
	rec, env := h.do(t, "GET", "/api/notifications", adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	var list []models.Notification
	decodeData(t, env, &list)
	if len(list) != 1 || list[0].ID != pool.ID {
		t.Errorf("Admin should see exactly the pool notification, got %d", len(list))
	}

	// Agent sees only their own
	rec, env = h.do(t, "GET", "/api/notifications", agentToken, nil)
	expectStatus(t, rec, http.StatusOK)
	decodeData(t, env, &list)
	if len(list) != 1 || list[0].ID != personal.ID {
		t.Errorf("Agent should see exactly their personal notification, got %d", len(list))
	}

	// Agent cannot mark the pool notification read
	rec, _ = h.do(t, "POST", "/api/notifications/"+pool.ID.String()+"/read", agentToken, nil)
	expectStatus(t, rec, http.StatusNotFound)

	// Admin can
	rec, env = h.do(t, "POST", "/api/notifications/"+pool.ID.String()+"/read", adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	var updated models.Notification
	decodeData(t, env, &updated)
	if !updated.Read {
		t.Error("Notification should be marked read")
	}
}
