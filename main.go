package main

import (
	"database/sql"
	"net/http"
	"os"

	"history-service/internal/access"
	"history-service/internal/config"
	"history-service/internal/domain"
	"history-service/internal/publisher"
	"history-service/internal/repository"
	"history-service/internal/server"
	"history-service/internal/service"
	"history-service/internal/session"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	log "github.com/sirupsen/logrus"

	"github.com/labstack/echo/v4"
)

func main() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)

	if err := godotenv.Load(); err != nil {
		log.Warn("Could not load .env file.")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithField("error", err).Fatal("Could not load configuration")
	}

	log.Info("Starting database migration...")
	m, err := migrate.New("file://db/migrations", cfg.DB.URL)
	if err != nil {
		log.WithField("error", err).Fatal("Could not create migrate instance")
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.WithField("error", err).Fatal("Could not apply migration")
	}
	log.Info("Database migration finished successfully.")

	db, err := sql.Open("postgres", cfg.DB.URL)
	if err != nil {
		log.WithField("error", err).Fatal("Could not connect to the database")
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DB.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		log.WithField("error", err).Fatal("Could not ping the database")
	}
	log.Info("Successfully connected to the PostgreSQL database.")

	// Create repositories
	eventStore := repository.NewPostgresEventStore(db)
	userDirectory := repository.NewPostgresUserDirectory(db)
	assetRepository := repository.NewPostgresAssetRepository(db)

	// Register trackable types against the shared assets table
	registry := domain.NewTypeRegistry()
	for _, entityType := range cfg.History.TrackableTypes {
		registry.Register(entityType, assetRepository.Loader(entityType))
	}
	log.WithField("types", cfg.History.TrackableTypes).Info("Trackable types registered")

	// Optional Kafka fan-out for recorded events
	var eventPublisher service.EventPublisher
	if cfg.Kafka.BootstrapServers != "" {
		changePublisher, err := publisher.NewChangePublisher(cfg.Kafka.BootstrapServers, cfg.Kafka.Topic)
		if err != nil {
			log.WithField("error", err).Fatal("Could not create change event publisher")
		}
		defer changePublisher.Close()
		eventPublisher = changePublisher
	} else {
		log.Warn("KAFKA_BOOTSTRAP_SERVERS not set, change events will not be published")
	}

	// Create services
	historyService := service.NewHistoryService(eventStore, userDirectory, registry, access.NewPolicy())
	recorder := service.NewRecorder(eventStore, registry, userDirectory, eventPublisher)

	// Sessions: one preconfigured service token with full rights
	sessions := session.NewStore()
	if cfg.Auth.ServiceToken != "" {
		sessions.Register(cfg.Auth.ServiceToken, domain.Actor{
			UserID: 0,
			Name:   "service",
			Rights: []string{access.RightReadLog, access.RightWriteLog, access.RightReadAll},
		})
	} else {
		log.Warn("AUTH_SERVICE_TOKEN not set, no session can be resolved")
	}

	// Create server
	srv := server.NewServer(historyService, recorder, sessions, db, cfg.History.DefaultListLimit)

	// Setup Echo
	e := echo.New()

	// Health check
	e.GET("/health", srv.HealthCheck)

	// History endpoints
	api := e.Group("/api/v2")
	api.GET("/log", srv.GetLog)
	api.POST("/log", srv.CreateLog)

	log.WithField("port", cfg.HTTP.Port).Info("History service is starting with Echo")

	if err := e.Start(":" + cfg.HTTP.Port); err != nil && err != http.ErrServerClosed {
		log.WithField("error", err).Fatal("Echo server failed to start")
	}
}
