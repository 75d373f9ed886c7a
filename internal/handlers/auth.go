package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/vistohub/vistoriago/internal/apperr"
	"github.com/vistohub/vistoriago/internal/auth"
	"github.com/vistohub/vistoriago/internal/models"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type tokenResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         *models.User `json:"user"`
}

// login authenticates a user and returns a token pair
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var body loginRequest
	if err := decodeJSON(req, &body); err != nil {
		respondError(w, err)
		return
	}
	if body.Email == "" || body.Password == "" {
		respondError(w, apperr.Validation("email and password are required"))
		return
	}

	var user models.User
	if err := r.db.First(&user, "email = ?", body.Email).Error; err != nil {
		respondError(w, apperr.Unauthenticated("invalid credentials"))
		return
	}
	if !auth.CheckPasswordHash(body.Password, user.Password) {
		respondError(w, apperr.Unauthenticated("invalid credentials"))
		return
	}
	if !user.Active {
		respondError(w, apperr.Unauthenticated("account disabled"))
		return
	}

	accessToken, refreshToken, err := auth.GenerateTokens(&user, r.cfg.JWTSecret)
	if err != nil {
		respondError(w, apperr.Internal(err))
		return
	}

	r.gate.RecordLogin(user.ID)
	log.Info().Str("email", user.Email).Str("role", string(user.Role)).Msg("User logged in")

	respondJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         &user,
	})
}

// register creates a new user account. Self-registered accounts start as
// agents with no company; role and membership are assigned by a superadmin.
func (r *Router) register(w http.ResponseWriter, req *http.Request) {
	var body registerRequest
	if err := decodeJSON(req, &body); err != nil {
		respondError(w, err)
		return
	}
	if body.Email == "" || body.Password == "" || body.Name == "" {
		respondError(w, apperr.Validation("email, password and name are required"))
		return
	}

	var count int64
	r.db.Model(&models.User{}).Where("email = ?", body.Email).Count(&count)
	if count > 0 {
		respondError(w, apperr.Conflict("email already registered"))
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		respondError(w, apperr.Internal(err))
		return
	}

	user := models.User{
		Email:    body.Email,
		Password: hash,
		Name:     body.Name,
		Role:     models.RoleAgent,
		Active:   true,
	}
	if err := r.db.Create(&user).Error; err != nil {
		respondError(w, apperr.Internal(err))
		return
	}

	log.Info().Str("email", user.Email).Msg("User registered")
	respondJSON(w, http.StatusCreated, &user)
}

// logout is stateless on the server side; tokens simply expire. The endpoint
// exists so clients have a uniform place to hook local credential cleanup.
func (r *Router) logout(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}
