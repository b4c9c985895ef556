package main

import (
	"log"
	"net/http"
	"time"

	"wasteroute-backend/internal/config"
	"wasteroute-backend/internal/database"
	"wasteroute-backend/internal/handlers"
	"wasteroute-backend/internal/middleware"
	"wasteroute-backend/internal/notifier"
	"wasteroute-backend/internal/services"
	"wasteroute-backend/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

func main() {
	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("🚀 WASTEROUTE BACKEND SERVER STARTING")
	log.Println("═══════════════════════════════════════════════════════════════════")

	// Load .env file
	log.Println("📂 Loading environment variables...")
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found, using environment variables from system")
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Println("❌ FATAL ERROR: DATABASE_URL environment variable is required")
		log.Fatal("DATABASE_URL environment variable is required")
	}
	if cfg.JWTSecret == "" {
		log.Println("⚠️  APP_JWT_SECRET is not set; authenticated endpoints will reject all requests")
	}

	// Connect to database
	log.Println("🔌 Connecting to database...")
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Println("❌ FATAL ERROR: Database connection failed")
		log.Fatal(err)
	}
	defer db.Close()

	// Run migrations
	log.Println("🔄 Running database migrations...")
	if err := database.Migrate(db); err != nil {
		log.Println("❌ FATAL ERROR: Database migrations failed")
		log.Fatal(err)
	}

	// Seed database
	log.Println("🌱 Seeding database with initial data...")
	if err := database.SeedUsers(db); err != nil {
		log.Fatal(err)
	}
	if err := database.SeedFleet(db); err != nil {
		log.Fatal(err)
	}
	if err := database.SeedBins(db); err != nil {
		log.Fatal(err)
	}

	store := database.NewStore(db)

	// Event bus connects the engine to notifications
	events := services.NewEventBus()
	go events.Run()

	// Build the engine and prime it from persisted state
	index := services.NewSpatialIndex()
	registry := services.NewBinRegistry(store, index, events)
	tracker := services.NewFleetTracker(store, cfg.LocationHistoryLimit, cfg.LocationMinIntervalS, cfg.LocationMaxIntervalS)
	lifecycle := services.NewRouteLifecycle(store, registry, tracker, events)
	optimizer := services.NewRouteOptimizer(services.OptimizerConfig{
		ClusterRadiusM:  cfg.ClusterRadiusM,
		DensityKgPerL:   cfg.DensityKgPerL,
		MaxClaimRetries: cfg.ClaimMaxRetries,
		DepotLatitude:   cfg.DepotLatitude,
		DepotLongitude:  cfg.DepotLongitude,
	}, registry, tracker, lifecycle)

	bins, err := store.LoadBins()
	if err != nil {
		log.Fatal(err)
	}
	registry.Load(bins)

	reported, err := store.ReportedTimestamps()
	if err != nil {
		log.Fatal(err)
	}
	registry.LoadReported(reported)

	trucks, err := store.LoadTrucks()
	if err != nil {
		log.Fatal(err)
	}
	drivers, err := store.LoadDrivers()
	if err != nil {
		log.Fatal(err)
	}
	tracker.Load(trucks, drivers)

	routes, err := store.LoadActiveRoutes()
	if err != nil {
		log.Fatal(err)
	}
	lifecycle.Load(routes)

	// Initialize Firebase Cloud Messaging
	// Supports both file path and base64-encoded credentials
	var fcmService *services.FCMService
	if cfg.FirebaseCredentialsBase64 != "" {
		fcmService, err = services.NewFCMServiceFromBase64(cfg.FirebaseCredentialsBase64)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from base64: %v (push notifications disabled)", err)
			fcmService = nil
		} else {
			log.Println("✅ Firebase Cloud Messaging initialized from base64 credentials")
		}
	} else if cfg.FirebaseCredentialsFile != "" {
		fcmService, err = services.NewFCMService(cfg.FirebaseCredentialsFile)
		if err != nil {
			log.Printf("⚠️  Failed to initialize FCM from file: %v (push notifications disabled)", err)
			fcmService = nil
		} else {
			log.Println("✅ Firebase Cloud Messaging initialized from file")
		}
	} else {
		log.Println("⚠️  No Firebase credentials configured, push notifications disabled")
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()
	log.Println("✅ WebSocket hub started")

	// Wire engine events into websocket + FCM delivery
	notify := notifier.New(wsHub, fcmService, db)
	notify.Register(events)

	// Periodic optimization pass, if enabled
	if cfg.OptimizeEveryS > 0 {
		go func() {
			ticker := time.NewTicker(time.Duration(cfg.OptimizeEveryS) * time.Second)
			defer ticker.Stop()
			for range ticker.C {
				if _, err := optimizer.Run(nil, 0); err != nil {
					log.Printf("⚠️  Periodic optimization pass failed: %v", err)
				}
			}
		}()
		log.Printf("✅ Periodic optimizer enabled (every %ds)", cfg.OptimizeEveryS)
	}

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Authentication routes (no auth required)
	r.Post("/api/auth/login", handlers.Login(db))
	r.Post("/api/auth/register", handlers.Register(db))

	// WebSocket endpoint (authentication handled in handler via query param)
	r.Get("/ws", websocket.HandleWebSocket(wsHub, tracker))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Authenticated endpoints shared by all roles
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)

			// Bins
			r.Get("/bins", handlers.GetBins(registry))
			r.Post("/bins", handlers.RegisterBin(registry))
			r.Get("/bins/nearby", handlers.NearbyBins(registry))
			r.Get("/bins/urgent", handlers.UrgentBins(registry))
			r.Get("/bins/{id}", handlers.GetBin(registry))
			r.Post("/bins/{id}/report", handlers.ReportFill(registry))
			r.Get("/bins/{id}/reports", handlers.GetBinReports(registry, store))
			r.Delete("/bins/{id}", handlers.DeactivateBin(registry))

			// Routes (read side, role checks inside)
			r.Get("/routes/{id}", handlers.GetRoute(lifecycle))
		})

		// Driver endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)
			r.Use(middleware.RequireRole("driver"))

			r.Post("/driver/location", handlers.PostLocation(tracker))
			r.Post("/driver/location-sharing", handlers.SetLocationSharing(tracker))
			r.Post("/driver/sample-interval", handlers.SetSampleInterval(tracker))
			r.Post("/driver/on-duty", handlers.SetOnDuty(tracker))
			r.Get("/driver/route", handlers.GetMyRoute(lifecycle))
			r.Post("/driver/routes/{id}/start", handlers.StartRoute(lifecycle))
			r.Post("/driver/routes/{id}/collect", handlers.CollectStop(lifecycle))
			r.Post("/driver/routes/{id}/complete", handlers.CompleteRoute(lifecycle))
			r.Post("/driver/fcm-token", handlers.RegisterFCMToken(db))
		})

		// Manager endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)
			r.Use(middleware.RequireRole("manager"))

			r.Post("/manager/optimize", handlers.Optimize(optimizer))
			r.Post("/manager/assign-route", handlers.AssignRoute(optimizer))
			r.Post("/manager/routes/{id}/cancel", handlers.CancelRoute(lifecycle))
			r.Get("/manager/routes/active", handlers.GetActiveRoutes(lifecycle))
			r.Get("/manager/routes/history", handlers.GetRouteHistory(store))

			r.Get("/manager/trucks", handlers.GetTrucks(tracker))
			r.Post("/manager/trucks", handlers.CreateTruck(tracker, store))
			r.Post("/manager/trucks/{id}/status", handlers.SetTruckStatus(tracker))
			r.Post("/manager/trucks/{id}/assign-driver", handlers.AssignDriver(tracker))

			r.Post("/manager/drivers", handlers.CreateDriverProfile(tracker, store, db))
			r.Get("/manager/active-drivers", handlers.GetActiveDrivers(tracker))
			r.Get("/manager/drivers/{id}/trail", handlers.GetDriverTrail(tracker))
		})
	})

	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("✅ ALL INITIALIZATION COMPLETE")
	log.Printf("🚀 Server starting on http://localhost:%s", cfg.Port)
	log.Println("🔌 Ready to accept requests!")
	log.Println("═══════════════════════════════════════════════════════════════════")

	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal(err)
	}
}
