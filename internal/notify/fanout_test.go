package notify

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vistohub/vistoriago/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Notification{}); err != nil {
		t.Fatalf("Failed to migrate test schema: %v", err)
	}
	return db
}

type recordingHub struct {
	pushes []uuid.UUID
}

func (r *recordingHub) Push(userID uuid.UUID, message interface{}) bool {
	r.pushes = append(r.pushes, userID)
	return true
}

func TestStatusChangedCreatesClientNotification(t *testing.T) {
	db := testDB(t)
	hub := &recordingHub{}
	fanout := NewFanout(db, hub)

	clientID := uuid.New()
	inspection := models.Inspection{
		ID:        uuid.New(),
		CompanyID: uuid.New(),
		Status:    models.StatusFinalized,
	}

	fanout.StatusChanged(clientID, inspection, models.StatusInProgress)

	var n models.Notification
	if err := db.First(&n, "recipient_id = ?", clientID).Error; err != nil {
		t.Fatalf("Expected a notification record: %v", err)
	}
	if n.RecipientType != models.RecipientClient {
		t.Errorf("Expected client recipient, got %s", n.RecipientType)
	}
	if n.Type != models.NotifyStatusChanged {
		t.Errorf("Expected status_changed, got %s", n.Type)
	}
	if n.Read {
		t.Error("New notifications start unread")
	}
	if len(n.Metadata) == 0 {
		t.Error("Notification should carry typed metadata")
	}

	if len(hub.pushes) != 1 || hub.pushes[0] != clientID {
		t.Errorf("Expected one push to the client, got %v", hub.pushes)
	}
}

func TestRequestCreatedPushesToEveryAdmin(t *testing.T) {
	db := testDB(t)
	hub := &recordingHub{}
	fanout := NewFanout(db, hub)

	companyID := uuid.New()
	for i := 0; i < 2; i++ {
		admin := models.User{
			Email:     uuid.NewString() + "@example.com",
			Password:  "x",
			Name:      "Admin",
			Role:      models.RoleAdmin,
			CompanyID: &companyID,
			Active:    true,
		}
		if err := db.Create(&admin).Error; err != nil {
			t.Fatalf("Failed to seed admin: %v", err)
		}
	}

	req := models.InspectionRequest{
		ID:              uuid.New(),
		RequesterName:   "Maria",
		PropertyAddress: "Rua A 1",
	}
	fanout.RequestCreated(companyID, req)

	// One pool record, one push per connected admin
	var count int64
	db.Model(&models.Notification{}).
		Where("recipient_type = ? AND recipient_id = ?", models.RecipientCompanyAdmins, companyID).
		Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 pool record, got %d", count)
	}
	if len(hub.pushes) != 2 {
		t.Errorf("Expected 2 pushes, got %d", len(hub.pushes))
	}
}

func TestDecisionWithoutAccountIsSkipped(t *testing.T) {
	db := testDB(t)
	fanout := NewFanout(db, nil)

	req := models.InspectionRequest{ID: uuid.New(), PropertyAddress: "Rua B 2"}
	fanout.RequestDecision(uuid.New(), req, true)

	var count int64
	db.Model(&models.Notification{}).Count(&count)
	if count != 0 {
		t.Errorf("Requester without an account gets no record, got %d", count)
	}
}

func TestFanoutFailureIsSwallowed(t *testing.T) {
	db := testDB(t)
	fanout := NewFanout(db, nil)

	// Break the table: the fan-out must log and move on, never panic or
	// propagate.
	if err := db.Migrator().DropTable(&models.Notification{}); err != nil {
		t.Fatalf("Failed to drop table: %v", err)
	}

	scheduled := time.Now()
	inspection := models.Inspection{
		ID:           uuid.New(),
		CompanyID:    uuid.New(),
		ScheduledFor: &scheduled,
	}
	fanout.InspectionScheduled(uuid.New(), inspection)
	fanout.StatusChangedForAdmins(inspection, models.StatusDraft)
}
