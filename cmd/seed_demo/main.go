package main

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/vistohub/vistoriago/internal/auth"
	"github.com/vistohub/vistoriago/internal/config"
	"github.com/vistohub/vistoriago/internal/database"
	"github.com/vistohub/vistoriago/internal/models"
)

func main() {
	fmt.Println("🌱 Vistoria Demo Data Seeder")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("✅ Connected to database")

	fmt.Println("🔨 Running database migrations...")
	err = db.AutoMigrate(
		&models.Company{},
		&models.User{},
		&models.Property{},
		&models.Inspection{},
		&models.Room{},
		&models.Photo{},
		&models.InspectionRequest{},
		&models.Notification{},
		&models.AuditLog{},
	)
	if err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	var companyCount int64
	db.Model(&models.Company{}).Count(&companyCount)
	if companyCount > 0 {
		fmt.Printf("⚠️  Database already has %d companies. Clear it first? (y/N): ", companyCount)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("❌ Aborted. Database not modified.")
			return
		}
		fmt.Println("🗑️  Clearing existing data...")
		db.Exec("TRUNCATE TABLE photos CASCADE")
		db.Exec("TRUNCATE TABLE rooms CASCADE")
		db.Exec("TRUNCATE TABLE inspections CASCADE")
		db.Exec("TRUNCATE TABLE inspection_requests CASCADE")
		db.Exec("TRUNCATE TABLE notifications CASCADE")
		db.Exec("TRUNCATE TABLE properties CASCADE")
		db.Exec("TRUNCATE TABLE users CASCADE")
		db.Exec("TRUNCATE TABLE companies CASCADE")
	}

	fmt.Println("🏢 Creating demo company...")
	company := models.Company{
		Name:   "Vistoria Imóveis Ltda",
		TaxID:  "12.345.678/0001-90",
		Active: true,
	}
	if err := db.Create(&company).Error; err != nil {
		log.Fatalf("❌ Failed to create company: %v", err)
	}

	fmt.Println("👤 Creating demo users...")
	users := []struct {
		email string
		name  string
		role  models.Role
	}{
		{"super@vistoria.dev", "Platform Operator", models.RoleSuperadmin},
		{"admin@vistoria.dev", "Company Admin", models.RoleAdmin},
		{"inspector@vistoria.dev", "Field Inspector", models.RoleInspector},
		{"agent@vistoria.dev", "Office Agent", models.RoleAgent},
	}
	var inspectorID uuid.UUID
	for _, u := range users {
		hash, err := auth.HashPassword("demo1234")
		if err != nil {
			log.Fatalf("❌ Failed to hash password: %v", err)
		}
		user := models.User{
			Email:    u.email,
			Password: hash,
			Name:     u.name,
			Role:     u.role,
			Active:   true,
		}
		if u.role != models.RoleSuperadmin {
			user.CompanyID = &company.ID
		}
		if err := db.Create(&user).Error; err != nil {
			log.Fatalf("❌ Failed to create user %s: %v", u.email, err)
		}
		if u.role == models.RoleInspector {
			inspectorID = user.ID
		}
		fmt.Printf("   %s (%s)\n", u.email, u.role)
	}

	fmt.Println("🏠 Creating demo property...")
	property := models.Property{
		CompanyID: company.ID,
		Address:   "Rua das Flores 123, São Paulo",
		Type:      models.PropertyApartment,
		Code:      "AP-123",
		OwnerName: "Maria Silva",
	}
	if err := db.Create(&property).Error; err != nil {
		log.Fatalf("❌ Failed to create property: %v", err)
	}

	fmt.Println("📋 Creating demo inspection...")
	scheduled := time.Now().Add(48 * time.Hour)
	inspection := models.Inspection{
		CompanyID:    company.ID,
		PropertyID:   property.ID,
		InspectorID:  inspectorID,
		Type:         models.TypeMoveIn,
		Status:       models.StatusDraft,
		ScheduledFor: &scheduled,
	}
	if err := db.Create(&inspection).Error; err != nil {
		log.Fatalf("❌ Failed to create inspection: %v", err)
	}

	fmt.Println()
	fmt.Println("✅ Demo data ready. All accounts use password: demo1234")
}
