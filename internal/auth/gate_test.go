package auth

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vistohub/vistoriago/internal/apperr"
	"github.com/vistohub/vistoriago/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Named in-memory database: gorm pools connections, and anonymous
	// :memory: would give each connection its own empty schema.
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Company{}, &models.User{}); err != nil {
		t.Fatalf("Failed to migrate test schema: %v", err)
	}
	return db
}

func seedCompany(t *testing.T, db *gorm.DB, active bool) models.Company {
	t.Helper()
	company := models.Company{Name: "Test Co " + uuid.NewString()[:8], TaxID: uuid.NewString(), Active: active}
	if err := db.Create(&company).Error; err != nil {
		t.Fatalf("Failed to seed company: %v", err)
	}
	return company
}

func seedUser(t *testing.T, db *gorm.DB, role models.Role, companyID *uuid.UUID) models.User {
	t.Helper()
	user := models.User{
		Email:     uuid.NewString() + "@example.com",
		Password:  "x",
		Name:      "Test User",
		Role:      role,
		CompanyID: companyID,
		Active:    true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	return user
}

func codeOf(t *testing.T, err error) apperr.Code {
	t.Helper()
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("Expected coded error, got %v", err)
	}
	return appErr.Code
}

func TestAuthenticateResolvesFreshUserState(t *testing.T) {
	db := testDB(t)
	gate := NewGate(db, "test-secret")
	company := seedCompany(t, db, true)
	user := seedUser(t, db, models.RoleAdmin, &company.ID)

	token, _, err := GenerateTokens(&user, "test-secret")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	identity, err := gate.Authenticate(token)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if identity.UserID != user.ID {
		t.Errorf("Expected user id %s, got %s", user.ID, identity.UserID)
	}
	if identity.Role != models.RoleAdmin {
		t.Errorf("Expected role admin, got %s", identity.Role)
	}

	// A role change takes effect without a new token
	db.Model(&models.User{}).Where("id = ?", user.ID).Update("role", models.RoleAgent)
	identity, err = gate.Authenticate(token)
	if err != nil {
		t.Fatalf("Authenticate after role change failed: %v", err)
	}
	if identity.Role != models.RoleAgent {
		t.Errorf("Expected fresh role agent, got %s", identity.Role)
	}

	// Disabling the account revokes access immediately
	db.Model(&models.User{}).Where("id = ?", user.ID).Update("active", false)
	if _, err := gate.Authenticate(token); err == nil {
		t.Error("Disabled account should not authenticate")
	}
}

func TestAuthorizeTenantIsolation(t *testing.T) {
	db := testDB(t)
	gate := NewGate(db, "test-secret")
	companyA := seedCompany(t, db, true)
	companyB := seedCompany(t, db, true)

	admin := Identity{UserID: uuid.New(), Role: models.RoleAdmin, CompanyID: &companyA.ID}

	// Own company passes
	if err := gate.Authorize(admin, Roles(models.RoleAdmin), companyA.ID); err != nil {
		t.Errorf("Admin should access own company: %v", err)
	}

	// Another company is forbidden regardless of role
	err := gate.Authorize(admin, Roles(models.RoleAdmin), companyB.ID)
	if err == nil {
		t.Fatal("Admin should not access another company")
	}
	if codeOf(t, err) != apperr.CodeForbidden {
		t.Errorf("Expected FORBIDDEN, got %s", codeOf(t, err))
	}

	// Role outside the allowed set is forbidden even in the own company
	err = gate.Authorize(admin, Roles(models.RoleSuperadmin), companyA.ID)
	if err == nil {
		t.Fatal("Role outside allowed set should be rejected")
	}
	if codeOf(t, err) != apperr.CodeForbidden {
		t.Errorf("Expected FORBIDDEN, got %s", codeOf(t, err))
	}
}

func TestAuthorizeSuperadminBypassesTenantScope(t *testing.T) {
	db := testDB(t)
	gate := NewGate(db, "test-secret")
	companyA := seedCompany(t, db, true)
	companyB := seedCompany(t, db, true)

	super := Identity{UserID: uuid.New(), Role: models.RoleSuperadmin, CompanyID: &companyA.ID}

	if err := gate.Authorize(super, Roles(models.RoleSuperadmin), companyB.ID); err != nil {
		t.Errorf("Superadmin should cross company boundaries: %v", err)
	}

	// But an unknown company is still not found
	err := gate.Authorize(super, Roles(models.RoleSuperadmin), uuid.New())
	if err == nil {
		t.Fatal("Unknown company should be rejected")
	}
	if codeOf(t, err) != apperr.CodeNotFound {
		t.Errorf("Expected NOT_FOUND, got %s", codeOf(t, err))
	}
}

func TestAuthorizeInactiveCompany(t *testing.T) {
	db := testDB(t)
	gate := NewGate(db, "test-secret")
	company := seedCompany(t, db, false)

	admin := Identity{UserID: uuid.New(), Role: models.RoleAdmin, CompanyID: &company.ID}

	err := gate.Authorize(admin, Roles(models.RoleAdmin), company.ID)
	if err == nil {
		t.Fatal("Operations on an inactive company should fail")
	}
	if codeOf(t, err) != apperr.CodeTenantInactive {
		t.Errorf("Expected TENANT_INACTIVE, got %s", codeOf(t, err))
	}

	// Reactivation path skips the active check
	super := Identity{UserID: uuid.New(), Role: models.RoleSuperadmin}
	if err := gate.AuthorizeInactive(super, Roles(models.RoleSuperadmin), company.ID); err != nil {
		t.Errorf("AuthorizeInactive should permit operating on an inactive company: %v", err)
	}
}

func TestResolveCompany(t *testing.T) {
	db := testDB(t)
	gate := NewGate(db, "test-secret")
	companyA := uuid.New()
	companyB := uuid.New()

	member := Identity{UserID: uuid.New(), Role: models.RoleAgent, CompanyID: &companyA}

	// Members are pinned to their own company
	got, err := gate.ResolveCompany(member, nil)
	if err != nil {
		t.Fatalf("ResolveCompany failed: %v", err)
	}
	if got != companyA {
		t.Errorf("Expected own company %s, got %s", companyA, got)
	}

	// Requesting another company is forbidden
	if _, err := gate.ResolveCompany(member, &companyB); err == nil {
		t.Error("Member should not resolve another company")
	}

	// Superadmin follows the explicit request
	super := Identity{UserID: uuid.New(), Role: models.RoleSuperadmin}
	got, err = gate.ResolveCompany(super, &companyB)
	if err != nil {
		t.Fatalf("ResolveCompany for superadmin failed: %v", err)
	}
	if got != companyB {
		t.Errorf("Expected requested company %s, got %s", companyB, got)
	}

	// Superadmin with neither membership nor request must name one
	if _, err := gate.ResolveCompany(super, nil); err == nil {
		t.Error("Superadmin without target should be asked for a company id")
	}
}

func TestAssignRole(t *testing.T) {
	db := testDB(t)
	gate := NewGate(db, "test-secret")
	company := seedCompany(t, db, true)
	target := seedUser(t, db, models.RoleAgent, nil)

	super := Identity{UserID: uuid.New(), Role: models.RoleSuperadmin}

	updated, err := gate.AssignRole(super, target.ID, models.RoleInspector, company.ID)
	if err != nil {
		t.Fatalf("AssignRole failed: %v", err)
	}
	if updated.Role != models.RoleInspector {
		t.Errorf("Expected role inspector, got %s", updated.Role)
	}
	if updated.CompanyID == nil || *updated.CompanyID != company.ID {
		t.Error("Company membership should be assigned with the role")
	}

	// No duplicate row: assignment updates the single user record
	var count int64
	db.Model(&models.User{}).Where("email = ?", target.Email).Count(&count)
	if count != 1 {
		t.Errorf("Expected exactly 1 user row, got %d", count)
	}

	// Reassignment overwrites
	updated, err = gate.AssignRole(super, target.ID, models.RoleAdmin, company.ID)
	if err != nil {
		t.Fatalf("Reassignment failed: %v", err)
	}
	if updated.Role != models.RoleAdmin {
		t.Errorf("Expected role admin after reassignment, got %s", updated.Role)
	}

	// Non-superadmin cannot assign
	admin := Identity{UserID: uuid.New(), Role: models.RoleAdmin, CompanyID: &company.ID}
	if _, err := gate.AssignRole(admin, target.ID, models.RoleAgent, company.ID); err == nil {
		t.Error("Admin should not assign roles")
	}

	// Unknown role is rejected
	if _, err := gate.AssignRole(super, target.ID, models.Role("owner"), company.ID); err == nil {
		t.Error("Unknown role should be rejected")
	}

	// Inactive company is rejected
	inactive := seedCompany(t, db, false)
	_, err = gate.AssignRole(super, target.ID, models.RoleAgent, inactive.ID)
	if err == nil {
		t.Fatal("Assignment into an inactive company should fail")
	}
	if codeOf(t, err) != apperr.CodeTenantInactive {
		t.Errorf("Expected TENANT_INACTIVE, got %s", codeOf(t, err))
	}
}
