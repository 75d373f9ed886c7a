package handlers

import (
	"net/http"
	"testing"

	"github.com/vistohub/vistoriago/internal/models"
)

func TestCompanyProvisioning(t *testing.T) {
	h := newHarness(t)
	_, superToken := h.user(t, models.RoleSuperadmin, nil)
	company := h.company(t, true)
	_, adminToken := h.user(t, models.RoleAdmin, &company.ID)

	// Superadmin provisions
	rec, env := h.do(t, "POST", "/api/companies", superToken, map[string]interface{}{
		"name":  "Nova Imobiliária",
		"taxId": "98.765.432/0001-10",
	})
	expectStatus(t, rec, http.StatusCreated)
	var created models.Company
	decodeData(t, env, &created)
	if !created.Active {
		t.Error("New companies should start active")
	}

	// Duplicate tax id conflicts
	rec, env = h.do(t, "POST", "/api/companies", superToken, map[string]interface{}{
		"name":  "Outra",
		"taxId": "98.765.432/0001-10",
	})
	expectStatus(t, rec, http.StatusConflict)
	if errorCode(t, env) != "CONFLICT" {
		t.Errorf("Expected CONFLICT, got %s", errorCode(t, env))
	}

	// Admins cannot provision
	rec, _ = h.do(t, "POST", "/api/companies", adminToken, map[string]interface{}{
		"name":  "Terceira",
		"taxId": "11.111.111/0001-11",
	})
	expectStatus(t, rec, http.StatusForbidden)
}

func TestCompanySuspensionLifecycle(t *testing.T) {
	h := newHarness(t)
	_, superToken := h.user(t, models.RoleSuperadmin, nil)
	company := h.company(t, true)

	rec, env := h.do(t, "POST", "/api/companies/"+company.ID.String()+"/deactivate", superToken, nil)
	expectStatus(t, rec, http.StatusOK)
	var got models.Company
	decodeData(t, env, &got)
	if got.Active {
		t.Error("Company should be inactive after deactivation")
	}

	// Deactivating an already-inactive company is itself blocked by the
	// tenant-active rule; only reactivation is permitted.
	rec, env = h.do(t, "POST", "/api/companies/"+company.ID.String()+"/deactivate", superToken, nil)
	expectStatus(t, rec, http.StatusBadRequest)
	if errorCode(t, env) != "TENANT_INACTIVE" {
		t.Errorf("Expected TENANT_INACTIVE, got %s", errorCode(t, env))
	}

	rec, env = h.do(t, "POST", "/api/companies/"+company.ID.String()+"/reactivate", superToken, nil)
	expectStatus(t, rec, http.StatusOK)
	decodeData(t, env, &got)
	if !got.Active {
		t.Error("Company should be active after reactivation")
	}
}

func TestAssignRoleEndpoint(t *testing.T) {
	h := newHarness(t)
	_, superToken := h.user(t, models.RoleSuperadmin, nil)
	company := h.company(t, true)
	target, _ := h.user(t, models.RoleAgent, nil)
	_, adminToken := h.user(t, models.RoleAdmin, &company.ID)

	rec, env := h.do(t, "PUT", "/api/users/"+target.ID.String()+"/role", superToken, map[string]interface{}{
		"role":      "inspector",
		"companyId": company.ID,
	})
	expectStatus(t, rec, http.StatusOK)
	var updated models.User
	decodeData(t, env, &updated)
	if updated.Role != models.RoleInspector {
		t.Errorf("Expected inspector, got %s", updated.Role)
	}

	// Admins cannot assign roles
	rec, env = h.do(t, "PUT", "/api/users/"+target.ID.String()+"/role", adminToken, map[string]interface{}{
		"role":      "admin",
		"companyId": company.ID,
	})
	expectStatus(t, rec, http.StatusForbidden)
	if errorCode(t, env) != "FORBIDDEN" {
		t.Errorf("Expected FORBIDDEN, got %s", errorCode(t, env))
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	h := newHarness(t)

	rec, _ := h.do(t, "GET", "/api/inspections", "", nil)
	expectStatus(t, rec, http.StatusUnauthorized)

	rec, _ = h.do(t, "GET", "/api/inspections", "not-a-token", nil)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestInactiveCompanyPersistsOnCreate(t *testing.T) {
	h := newHarness(t)
	company := h.company(t, false)

	var reloaded models.Company
	if err := h.db.First(&reloaded, "id = ?", company.ID).Error; err != nil {
		t.Fatalf("Failed to reload company: %v", err)
	}
	if reloaded.Active {
		t.Error("Company seeded inactive came back active")
	}
}
