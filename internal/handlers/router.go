package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/vistohub/vistoriago/internal/auth"
	"github.com/vistohub/vistoriago/internal/config"
	"github.com/vistohub/vistoriago/internal/drive"
	"github.com/vistohub/vistoriago/internal/middleware"
	"github.com/vistohub/vistoriago/internal/models"
	"github.com/vistohub/vistoriago/internal/notify"
	"github.com/vistohub/vistoriago/internal/storage"
	"github.com/vistohub/vistoriago/internal/websocket"
)

// Per-operation allowed-role sets. Every protected route names one and the
// gate enforces it, so no endpoint re-implements role checks ad hoc.
var (
	superadminOnly = auth.Roles(models.RoleSuperadmin)
	adminRoles     = auth.Roles(models.RoleAdmin, models.RoleSuperadmin)
	fieldRoles     = auth.Roles(models.RoleInspector, models.RoleAdmin, models.RoleSuperadmin)
	memberRoles    = auth.Roles(models.RoleInspector, models.RoleAgent, models.RoleAdmin, models.RoleSuperadmin)
)

// Deps bundles the collaborators injected into the router
type Deps struct {
	DB     *gorm.DB
	Gate   *auth.Gate
	Fanout *notify.Fanout
	Store  *storage.Store
	Mirror *drive.Mirror
	Hub    *websocket.Hub
	Config *config.Config
}

// Router wraps the mux router and the injected collaborators
type Router struct {
	*mux.Router
	db     *gorm.DB
	gate   *auth.Gate
	fanout *notify.Fanout
	store  *storage.Store
	mirror *drive.Mirror
	hub    *websocket.Hub
	cfg    *config.Config
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(deps Deps) *Router {
	r := &Router{
		Router: mux.NewRouter(),
		db:     deps.DB,
		gate:   deps.Gate,
		fanout: deps.Fanout,
		store:  deps.Store,
		mirror: deps.Mirror,
		hub:    deps.Hub,
		cfg:    deps.Config,
	}

	r.Use(middleware.Recovery)
	r.Use(middleware.Metrics)

	// Health and metrics
	r.HandleFunc("/health", r.healthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Auth routes
	authR := r.PathPrefix("/auth").Subrouter()
	authR.HandleFunc("/login", r.login).Methods("POST")
	authR.HandleFunc("/register", r.register).Methods("POST")
	authR.HandleFunc("/logout", r.logout).Methods("POST")

	// Public, unauthenticated surface: client self-service flows
	public := r.PathPrefix("/public").Subrouter()
	public.HandleFunc("/requests", r.createRequest).Methods("POST")
	public.HandleFunc("/contest/{token}", r.contestInspection).Methods("POST")

	// Notification push channel (token via query parameter or header)
	r.HandleFunc("/ws", r.serveWS).Methods("GET")

	// Protected API
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth(r.gate))

	// Companies (tenant provisioning, superadmin only)
	api.HandleFunc("/companies", r.createCompany).Methods("POST")
	api.HandleFunc("/companies", r.listCompanies).Methods("GET")
	api.HandleFunc("/companies/{id}/deactivate", r.deactivateCompany).Methods("POST")
	api.HandleFunc("/companies/{id}/reactivate", r.reactivateCompany).Methods("POST")

	// Users
	api.HandleFunc("/users", r.listUsers).Methods("GET")
	api.HandleFunc("/users/{id}/role", r.assignRole).Methods("PUT")

	// Properties
	api.HandleFunc("/properties", r.createProperty).Methods("POST")
	api.HandleFunc("/properties", r.listProperties).Methods("GET")
	api.HandleFunc("/properties/{id}", r.getProperty).Methods("GET")
	api.HandleFunc("/properties/{id}", r.updateProperty).Methods("PUT")
	api.HandleFunc("/properties/{id}", r.deleteProperty).Methods("DELETE")

	// Inspections
	api.HandleFunc("/inspections", r.createInspection).Methods("POST")
	api.HandleFunc("/inspections", r.listInspections).Methods("GET")
	api.HandleFunc("/inspections/{id}", r.getInspection).Methods("GET")
	api.HandleFunc("/inspections/{id}/schedule", r.scheduleInspection).Methods("POST")
	api.HandleFunc("/inspections/{id}/start", r.startInspection).Methods("POST")
	api.HandleFunc("/inspections/{id}/finalize", r.finalizeInspection).Methods("POST")
	api.HandleFunc("/inspections/{id}/rooms", r.addRoom).Methods("POST")
	api.HandleFunc("/inspections/{id}/rooms/{roomId}/photos", r.uploadPhoto).Methods("POST")
	api.HandleFunc("/inspections/{id}/pdf", r.uploadPDF).Methods("POST")
	api.HandleFunc("/inspections/{id}/report", r.generateReport).Methods("POST")

	// Inspection requests
	api.HandleFunc("/requests", r.listRequests).Methods("GET")
	api.HandleFunc("/requests/{id}/decision", r.decideRequest).Methods("PUT")

	// Notifications
	api.HandleFunc("/notifications", r.listNotifications).Methods("GET")
	api.HandleFunc("/notifications/{id}/read", r.markNotificationRead).Methods("POST")

	// Dashboard
	api.HandleFunc("/dashboard", r.dashboard).Methods("GET")

	// Stored files (photos, report PDFs)
	if r.store != nil {
		r.PathPrefix("/files/").Handler(
			http.StripPrefix("/files/", http.FileServer(http.Dir(r.store.Root()))))
	}

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// serveWS upgrades an authenticated request to the notification push channel.
// Mobile clients pass the token as a query parameter since browser websocket
// APIs cannot set headers.
func (r *Router) serveWS(w http.ResponseWriter, req *http.Request) {
	if r.hub == nil {
		http.Error(w, "push channel disabled", http.StatusServiceUnavailable)
		return
	}

	token := req.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(req)
	}
	if token == "" {
		http.Error(w, "token required", http.StatusUnauthorized)
		return
	}

	identity, err := r.gate.Authenticate(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	websocket.ServeWs(r.hub, identity.UserID, w, req)
}
