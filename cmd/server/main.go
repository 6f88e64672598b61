package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"labrecord/internal/config"
	"labrecord/internal/database"
	"labrecord/internal/handlers"
	"labrecord/internal/jobs"
	"labrecord/internal/logging"
	"labrecord/internal/middleware"
	"labrecord/internal/services"
	"labrecord/pkg/auth"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Lab Record Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, TTL: %d days)", cfg.Port, cfg.RecordTTLDays)

	// Connect to MongoDB. Without it the server still renders documents,
	// backed by an in-memory store that forgets on restart.
	var mongoDB *database.MongoDB
	var store services.RecordStore

	if cfg.MongoURI != "" {
		log.Println("🔗 Connecting to MongoDB...")
		var err error
		mongoDB, err = database.NewMongoDB(cfg.MongoURI)
		if err != nil {
			log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
		}
		defer mongoDB.Close(context.Background())

		if err := mongoDB.Initialize(context.Background()); err != nil {
			log.Fatalf("❌ Failed to initialize database: %v", err)
		}
		log.Println("✅ MongoDB connected successfully")

		recordService := services.NewRecordService(mongoDB, cfg.RecordTTLDays)
		store = recordService
	} else {
		if cfg.Environment == "production" {
			log.Fatal("❌ MONGODB_URI is required in production")
		}
		log.Println("⚠️  MONGODB_URI not set, using in-memory record store (development only)")
		store = services.NewMemoryRecordStore(cfg.RecordTTLDays)
	}

	// Initialize Prometheus metrics
	services.InitMetrics()

	assetService := services.NewAssetService(cfg.LogoURL)
	if cfg.LogoURL == "" {
		log.Println("⚠️  LOGO_URL not set, documents will render without a logo")
	}

	// JWT auth setup
	var jwtAuth *auth.LocalJWTAuth
	if cfg.JWTSecret != "" {
		var err error
		jwtAuth, err = auth.NewLocalJWTAuth(cfg.JWTSecret, 0)
		if err != nil {
			log.Fatalf("❌ Failed to initialize JWT auth: %v", err)
		}
		log.Println("🔐 JWT authentication enabled")
	} else {
		if cfg.Environment == "production" {
			log.Fatal("❌ CRITICAL SECURITY ERROR: JWT_SECRET is required in production")
		}
		log.Println("⚠️  JWT_SECRET not set, authentication disabled (development mode)")
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Lab Record Generator v1.0",
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second, // rendering many experiments with QR codes takes a moment
		IdleTimeout:  120 * time.Second,
		BodyLimit:    5 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("labrecord")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// CORS configuration with environment-based origins
	allowedOrigins := cfg.AllowedOrigins
	if allowedOrigins == "" {
		// Default to localhost for development
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}

	// Fiber's CORS middleware does not allow AllowCredentials with wildcard origins.
	allowCredentials := allowedOrigins != "*"

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: allowCredentials,
	}))
	log.Printf("🔒 CORS allowed origins: %s", allowedOrigins)

	// Global API rate limit, then a tighter two-tier limit on generation
	app.Use("/api", limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
	}))
	generateLimiter := middleware.NewGenerateRateLimiter(10, 1)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(mongoDB)
	recordHandler := handlers.NewRecordHandler(store)
	generateHandler := handlers.NewGenerateHandler(store, assetService)
	maintenanceHandler := handlers.NewMaintenanceHandler(store, cfg.CronSecret)

	// Routes
	app.Get("/health", healthHandler.Health)

	api := app.Group("/api")

	generate := api.Group("/generate", middleware.OptionalLocalAuthMiddleware(jwtAuth), generateLimiter.Handler())
	generate.Post("/docx", generateHandler.DOCX)
	generate.Post("/pdf", generateHandler.PDF)

	records := api.Group("/records", middleware.LocalAuthMiddleware(jwtAuth))
	records.Post("/", recordHandler.Save)
	records.Get("/", recordHandler.List)
	records.Get("/access", recordHandler.ProbeAccess)
	records.Delete("/:id", recordHandler.Delete)

	api.Post("/maintenance/cleanup", middleware.LocalAuthMiddleware(jwtAuth), maintenanceHandler.Cleanup)
	api.Get("/cron/cleanup", maintenanceHandler.CronCleanup)

	// Scheduled expiry sweep
	scheduler, err := jobs.NewScheduler()
	if err != nil {
		log.Fatalf("❌ Failed to create job scheduler: %v", err)
	}
	cleanupJob := jobs.NewExpiryCleanupJob(store)
	if err := scheduler.Register("expiry_cleanup", cfg.CleanupSchedule, cleanupJob); err != nil {
		log.Fatalf("❌ Failed to register cleanup job: %v", err)
	}
	scheduler.Start()
	log.Printf("🕐 Background jobs: expiry cleanup (cron: %s)", cfg.CleanupSchedule)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		if err := scheduler.Stop(); err != nil {
			log.Printf("⚠️ Error stopping scheduler: %v", err)
		}

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
