package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vistohub/vistoriago/internal/auth"
	"github.com/vistohub/vistoriago/internal/config"
	"github.com/vistohub/vistoriago/internal/database"
	"github.com/vistohub/vistoriago/internal/drive"
	"github.com/vistohub/vistoriago/internal/handlers"
	"github.com/vistohub/vistoriago/internal/logging"
	"github.com/vistohub/vistoriago/internal/models"
	"github.com/vistohub/vistoriago/internal/notify"
	"github.com/vistohub/vistoriago/internal/storage"
	"github.com/vistohub/vistoriago/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.Log.Level, cfg.Log.Format)

	// Database (detects embedded vs external automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	log.Info().Msg("Synchronizing database schema")
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
		log.Warn().Err(err).Msg("Migration warning")
	}

	store, err := storage.NewStore(cfg.Storage.RootDir, cfg.Storage.PublicBaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize blob storage")
	}

	mirror, err := drive.NewMirror(context.Background(), cfg.Drive)
	if err != nil {
		log.Warn().Err(err).Msg("Drive mirror unavailable, reports stay local only")
	} else if mirror != nil {
		log.Info().Msg("Drive mirror enabled")
	}

	hub := websocket.NewHub()
	go hub.Run()

	gate := auth.NewGate(db.DB, cfg.JWTSecret)
	fanout := notify.NewFanout(db.DB, hub)

	router := handlers.NewRouter(handlers.Deps{
		DB:     db.DB,
		Gate:   gate,
		Fanout: fanout,
		Store:  store,
		Mirror: mirror,
		Hub:    hub,
		Config: cfg,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("API server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("Database close failed")
	}
	log.Info().Msg("Server stopped")
}
