package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vistohub/vistoriago/internal/auth"
	"github.com/vistohub/vistoriago/internal/config"
	"github.com/vistohub/vistoriago/internal/models"
	"github.com/vistohub/vistoriago/internal/notify"
	"github.com/vistohub/vistoriago/internal/storage"
)

type harness struct {
	router *Router
	db     *gorm.DB
	secret string
}

func newHarness(t *testing.T) *harness {
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
	err = db.AutoMigrate(
		&models.Company{}, &models.User{}, &models.Property{},
		&models.Inspection{}, &models.Room{}, &models.Photo{},
		&models.InspectionRequest{}, &models.Notification{}, &models.AuditLog{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test schema: %v", err)
	}

	store, err := storage.NewStore(t.TempDir(), "http://test/files")
	if err != nil {
		t.Fatalf("Failed to create test storage: %v", err)
	}

	secret := "test-secret"
	cfg := &config.Config{JWTSecret: secret, BaseURL: "http://test"}
	router := NewRouter(Deps{
		DB:     db,
		Gate:   auth.NewGate(db, secret),
		Fanout: notify.NewFanout(db, nil),
		Store:  store,
		Config: cfg,
	})

	return &harness{router: router, db: db, secret: secret}
}

func (h *harness) company(t *testing.T, active bool) models.Company {
	t.Helper()
	company := models.Company{Name: "Co " + uuid.NewString()[:8], TaxID: uuid.NewString(), Active: active}
	if err := h.db.Create(&company).Error; err != nil {
		t.Fatalf("Failed to seed company: %v", err)
	}
	return company
}

func (h *harness) user(t *testing.T, role models.Role, companyID *uuid.UUID) (models.User, string) {
	t.Helper()
	user := models.User{
		Email:     uuid.NewString() + "@example.com",
		Password:  "x",
		Name:      "Test User",
		Role:      role,
		CompanyID: companyID,
		Active:    true,
	}
	if err := h.db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	token, _, err := auth.GenerateTokens(&user, h.secret)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	return user, token
}

func (h *harness) property(t *testing.T, companyID uuid.UUID) models.Property {
	t.Helper()
	property := models.Property{
		CompanyID: companyID,
		Address:   "Test Street 1",
		Type:      models.PropertyApartment,
	}
	if err := h.db.Create(&property).Error; err != nil {
		t.Fatalf("Failed to seed property: %v", err)
	}
	return property
}

// do executes a request against the router and decodes the envelope
func (h *harness) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	envelope := map[string]json.RawMessage{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("Malformed response envelope: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, envelope
}

func decodeData(t *testing.T, envelope map[string]json.RawMessage, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(envelope["data"], dst); err != nil {
		t.Fatalf("Failed to decode response data: %v", err)
	}
}

func errorCode(t *testing.T, envelope map[string]json.RawMessage) string {
	t.Helper()
	var code string
	if err := json.Unmarshal(envelope["code"], &code); err != nil {
		t.Fatalf("Response carries no error code: %v", err)
	}
	return code
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("Expected status %d, got %d (%s)", want, rec.Code, rec.Body.String())
	}
}
