package auth

import (
	"testing"

	"github.com/google/uuid"

	"github.com/vistohub/vistoriago/internal/models"
)

func TestPasswordHashing(t *testing.T) {
	password := "secret123"

	// Test Hashing
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	if hash == password {
		t.Error("Hash should not match plaintext password")
	}
	if len(hash) == 0 {
		t.Error("Hash should not be empty")
	}

	// Test Comparison (Success)
	if !CheckPasswordHash(password, hash) {
		t.Error("Password should match hash")
	}

	// Test Comparison (Failure)
	if CheckPasswordHash("wrongpassword", hash) {
		t.Error("Wrong password should not match hash")
	}
}

func TestJWT(t *testing.T) {
	secret := "test-secret-key-12345"
	companyID := uuid.New()

	user := &models.User{
		ID:        uuid.New(),
		Email:     "test@example.com",
		Role:      models.RoleAdmin,
		CompanyID: &companyID,
	}

	// Test Generation
	accessToken, refreshToken, err := GenerateTokens(user, secret)
	if err != nil {
		t.Fatalf("Failed to generate tokens: %v", err)
	}
	if accessToken == "" || refreshToken == "" {
		t.Error("Tokens should not be empty")
	}

	// Test Validation (Success)
	claims, err := ValidateToken(accessToken, secret)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims["id"] != user.ID.String() {
		t.Errorf("Expected id claim %s, got %v", user.ID, claims["id"])
	}
	if claims["email"] != user.Email {
		t.Errorf("Expected email claim %s, got %v", user.Email, claims["email"])
	}
	if claims["role"] != string(models.RoleAdmin) {
		t.Errorf("Expected role claim admin, got %v", claims["role"])
	}
	if claims["companyId"] != companyID.String() {
		t.Errorf("Expected companyId claim %s, got %v", companyID, claims["companyId"])
	}

	// Test Validation (Wrong Secret)
	if _, err := ValidateToken(accessToken, "wrong-secret"); err == nil {
		t.Error("Validation should fail with wrong secret")
	}

	// Test Validation (Garbage)
	if _, err := ValidateToken("not.a.token", secret); err == nil {
		t.Error("Validation should fail for garbage input")
	}
}

func TestJWTWithoutCompany(t *testing.T) {
	secret := "test-secret-key-12345"
	user := &models.User{
		ID:    uuid.New(),
		Email: "super@example.com",
		Role:  models.RoleSuperadmin,
	}

	accessToken, _, err := GenerateTokens(user, secret)
	if err != nil {
		t.Fatalf("Failed to generate tokens: %v", err)
	}

	claims, err := ValidateToken(accessToken, secret)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if _, present := claims["companyId"]; present {
		t.Error("Token without company should not carry companyId claim")
	}
}
