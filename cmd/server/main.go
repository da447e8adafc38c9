package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/trailmark/service-telemetry/internal/application"
	"github.com/trailmark/service-telemetry/internal/auth"
	"github.com/trailmark/service-telemetry/internal/config"
	"github.com/trailmark/service-telemetry/internal/database"
	"github.com/trailmark/service-telemetry/internal/events"
	"github.com/trailmark/service-telemetry/internal/handler"
	"github.com/trailmark/service-telemetry/internal/logger"
	"github.com/trailmark/service-telemetry/internal/mail"
	"github.com/trailmark/service-telemetry/internal/middleware"
	"github.com/trailmark/service-telemetry/internal/push"
	"github.com/trailmark/service-telemetry/internal/repository"
	"github.com/trailmark/service-telemetry/internal/weather"
	"github.com/trailmark/service-telemetry/internal/ws"
)

const (
	scoreCacheTTL     = 5 * time.Minute
	ledgerPurgePeriod = 10 * time.Minute
	pushWorkers       = 4
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	// Initialize logger.
	log, err := logger.NewNamed(cfg.AppEnv, "service-telemetry")
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	// Connect to database.
	db, err := database.Connect(cfg.DBConfig.URL, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()

	// Run database migrations.
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(
			&repository.TrackingSessionModel{},
			&repository.LocationSampleModel{},
			&repository.WaypointModel{},
			&repository.TripModel{},
			&repository.TripProjectionModel{},
			&repository.VisitModel{},
			&repository.ObservationModel{},
			&repository.AlertRecordModel{},
			&repository.NotificationModel{},
			&repository.PushSubscriptionModel{},
			&repository.ChatMessageModel{},
			&repository.GroupPositionModel{},
			&repository.HeadingSessionModel{},
		); err != nil {
			log.Fatal("failed to auto-migrate database", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DBConfig.URL, "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize JWT manager.
	jwtManager := auth.NewJWTManager(cfg.JWTSecret)

	// Initialize Kafka producer.
	producer := events.NewProducer(cfg.Kafka.Brokers, log)
	defer func() { _ = producer.Close() }()

	// Initialize WebSocket hub.
	wsHub := ws.NewHub(log)
	go wsHub.Run()

	// Initialize repositories.
	sessionRepo := repository.NewGormSessionRepository(db)
	sampleRepo := repository.NewGormSampleRepository(db)
	waypointRepo := repository.NewGormWaypointRepository(db)
	tripRepo := repository.NewGormTripRepository(db)
	visitRepo := repository.NewGormVisitRepository(db)
	observationRepo := repository.NewGormObservationRepository(db)
	ledgerRepo := repository.NewGormLedgerRepository(db)
	notificationRepo := repository.NewGormNotificationRepository(db)
	subscriptionRepo := repository.NewGormSubscriptionRepository(db)
	chatRepo := repository.NewGormChatRepository(db)
	groupShareRepo := repository.NewGormGroupShareRepository(db)
	headingRepo := repository.NewGormHeadingRepository(db)

	// Outbound collaborators. Membership checks move to the groups service
	// once it ships; until then every authenticated caller passes.
	var membership auth.MembershipChecker = auth.AllowAllMemberships{}

	var pushTransport push.Transport
	if cfg.Push.Enabled() {
		pushTransport = push.NewWebPushTransport(
			cfg.Push.VAPIDPublicKey,
			cfg.Push.VAPIDPrivateKey,
			cfg.Push.ContactEmail,
			log,
		)
	} else {
		log.Warn("VAPID keys not configured, notifications will be journaled without dispatch")
	}

	var windProvider weather.Provider = weather.StubProvider{}
	if cfg.Weather.BaseURL != "" {
		windProvider = weather.NewHTTPProvider(cfg.Weather.BaseURL, cfg.Weather.Timeout, log)
	}

	// Initialize application services.
	scoringService := application.NewScoringService(waypointRepo, tripRepo, scoreCacheTTL, log)
	pushService := application.NewPushService(notificationRepo, subscriptionRepo, pushTransport, log)
	proximityService := application.NewProximityService(
		waypointRepo, scoringService, ledgerRepo, pushService, producer, cfg.Proximity, log)
	trackingService := application.NewTrackingService(sessionRepo, sampleRepo, proximityService, producer, log)
	tripService := application.NewTripService(
		tripRepo, visitRepo, observationRepo, &mail.LogMailer{Logger: log}, producer, log)
	waypointService := application.NewWaypointService(waypointRepo, log)
	headingService := application.NewHeadingService(
		headingRepo, waypointRepo, windProvider, cfg.Heading.DemoPOIs, log)
	chatService := application.NewChatService(chatRepo, membership, wsHub, log)
	shareService := application.NewGroupShareService(groupShareRepo, membership, wsHub, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start push dispatch workers and the ledger purge loop.
	pushService.StartWorkers(ctx, pushWorkers)
	go func() {
		ticker := time.NewTicker(ledgerPurgePeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				proximityService.PurgeLedger(ctx)
			}
		}
	}()

	// Initialize Kafka position consumer.
	groupPrefix := cfg.Kafka.GroupPrefix
	if groupPrefix == "" {
		groupPrefix = "telemetry"
	}
	positionConsumer := events.NewPositionConsumer(
		cfg.Kafka.Brokers,
		groupPrefix+"-position-consumer",
		trackingService,
		log,
	)
	defer func() { _ = positionConsumer.Close() }()

	go func() {
		if err := positionConsumer.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error("position consumer error", zap.Error(err))
		}
	}()

	// Initialize Gin router.
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Recovery(log),
		middleware.CORS(),
	)

	// Register health check routes.
	healthHandler := handler.NewHealthHandler(db)
	healthHandler.RegisterRoutes(router)

	// Register REST API routes.
	geolocationHandler := handler.NewGeolocationHandler(
		trackingService, proximityService, scoringService, pushService, log)
	tripHandler := handler.NewTripHandler(tripService)
	waypointHandler := handler.NewWaypointHandler(waypointService)
	scoringHandler := handler.NewScoringHandler(scoringService)
	headingHandler := handler.NewHeadingHandler(headingService)
	groupHandler := handler.NewGroupHandler(shareService, membership, wsHub, jwtManager, log)
	chatHandler := handler.NewChatHandler(chatService)
	notificationHandler := handler.NewNotificationHandler(pushService)

	apiV1 := router.Group("/api/v1")
	geolocationHandler.RegisterRoutes(apiV1, jwtManager)
	tripHandler.RegisterRoutes(apiV1, jwtManager)
	waypointHandler.RegisterRoutes(apiV1, jwtManager)
	scoringHandler.RegisterRoutes(apiV1, jwtManager)
	headingHandler.RegisterRoutes(apiV1, jwtManager)
	groupHandler.RegisterRoutes(apiV1, jwtManager)
	chatHandler.RegisterRoutes(apiV1, jwtManager)
	notificationHandler.RegisterRoutes(apiV1, jwtManager)

	// Register WebSocket route.
	groupHandler.RegisterWSRoute(router, jwtManager)

	// Start HTTP server.
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting service-telemetry", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-telemetry...")

	// Stop the consumer, workers, and purge loop.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("service-telemetry stopped")
}
