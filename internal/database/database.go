package database

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func Connect(dbURL string) (*sqlx.DB, error) {
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Println("🔌 DATABASE CONNECTION ATTEMPT")
	log.Printf("   📍 Database URL length: %d characters", len(dbURL))
	log.Printf("   📍 URL prefix: %s...", dbURL[:min(30, len(dbURL))])
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	log.Println("🔄 Step 1: Attempting sqlx.Connect()...")
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Println("❌ DATABASE CONNECTION FAILED AT sqlx.Connect()")
		log.Printf("   Error type: %T", err)
		log.Printf("   Error message: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("✅ Step 1 Complete: sqlx.Connect() succeeded")

	log.Println("🔄 Step 2: Testing connection with Ping()...")
	if err := db.Ping(); err != nil {
		log.Println("❌ DATABASE CONNECTION FAILED AT Ping()")
		log.Printf("   Error type: %T", err)
		log.Printf("   Error message: %v", err)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("✅ Step 2 Complete: Ping() succeeded")

	log.Println("✅ DATABASE CONNECTION SUCCESSFUL")
	return db, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func Migrate(db *sqlx.DB) error {
	migrations := []string{
		// Create users table
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL CHECK(role IN ('driver', 'manager', 'establishment')),
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		// Create bins table
		`CREATE TABLE IF NOT EXISTS bins (
			id TEXT PRIMARY KEY,
			owner_id TEXT,
			capacity_liters DOUBLE PRECISION NOT NULL,
			category TEXT NOT NULL CHECK(category IN ('general', 'recyclable', 'organic', 'hazardous')),
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			fill_level TEXT NOT NULL DEFAULT 'empty'
				CHECK(fill_level IN ('empty', 'quarter', 'half', 'three_quarters', 'full')),
			needs_collection BOOLEAN NOT NULL DEFAULT FALSE,
			last_reported BIGINT,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			active_route_id TEXT,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE SET NULL
		)`,

		// Create waste_reports table (append-only fill history)
		`CREATE TABLE IF NOT EXISTS waste_reports (
			id SERIAL PRIMARY KEY,
			bin_id TEXT NOT NULL,
			reporter_id TEXT,
			fill_level TEXT NOT NULL
				CHECK(fill_level IN ('empty', 'quarter', 'half', 'three_quarters', 'full')),
			reported_at BIGINT NOT NULL,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (bin_id) REFERENCES bins(id) ON DELETE CASCADE,
			UNIQUE (bin_id, reported_at)
		)`,

		// Create trucks table
		`CREATE TABLE IF NOT EXISTS trucks (
			id TEXT PRIMARY KEY,
			license_plate TEXT NOT NULL UNIQUE,
			capacity_kg DOUBLE PRECISION NOT NULL,
			status TEXT NOT NULL DEFAULT 'available'
				CHECK(status IN ('available', 'on_route', 'maintenance', 'out_of_service')),
			driver_id TEXT,
			last_latitude DOUBLE PRECISION,
			last_longitude DOUBLE PRECISION,
			last_seen_at BIGINT,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (driver_id) REFERENCES users(id) ON DELETE SET NULL
		)`,

		// Create drivers table (profile rows keyed by user id)
		`CREATE TABLE IF NOT EXISTS drivers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			truck_id TEXT,
			on_duty BOOLEAN NOT NULL DEFAULT FALSE,
			location_sharing BOOLEAN NOT NULL DEFAULT TRUE,
			sample_interval_s INT NOT NULL DEFAULT 30,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (id) REFERENCES users(id) ON DELETE CASCADE,
			FOREIGN KEY (truck_id) REFERENCES trucks(id) ON DELETE SET NULL
		)`,

		// Create driver_locations table (append-only position trail)
		`CREATE TABLE IF NOT EXISTS driver_locations (
			id SERIAL PRIMARY KEY,
			driver_id TEXT NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			accuracy DOUBLE PRECISION,
			heading DOUBLE PRECISION,
			speed DOUBLE PRECISION,
			recorded_at BIGINT NOT NULL,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (driver_id) REFERENCES users(id) ON DELETE CASCADE
		)`,

		// Create routes table
		`CREATE TABLE IF NOT EXISTS routes (
			id TEXT PRIMARY KEY,
			driver_id TEXT,
			truck_id TEXT,
			status TEXT NOT NULL DEFAULT 'pending'
				CHECK(status IN ('pending', 'assigned', 'in_progress', 'completed', 'cancelled')),
			scheduled_for BIGINT,
			seed_latitude DOUBLE PRECISION NOT NULL,
			seed_longitude DOUBLE PRECISION NOT NULL,
			planned_distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
			actual_start_time BIGINT,
			actual_end_time BIGINT,
			bins_collected INT NOT NULL DEFAULT 0,
			total_weight_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
			efficiency_score DOUBLE PRECISION,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (driver_id) REFERENCES users(id) ON DELETE SET NULL,
			FOREIGN KEY (truck_id) REFERENCES trucks(id) ON DELETE SET NULL
		)`,

		// Create route_stops table
		`CREATE TABLE IF NOT EXISTS route_stops (
			id SERIAL PRIMARY KEY,
			route_id TEXT NOT NULL,
			bin_id TEXT NOT NULL,
			sequence_number INT NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			estimated_mass_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
			collected BOOLEAN NOT NULL DEFAULT FALSE,
			collected_at BIGINT,
			weight_kg DOUBLE PRECISION,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (route_id) REFERENCES routes(id) ON DELETE CASCADE,
			FOREIGN KEY (bin_id) REFERENCES bins(id) ON DELETE CASCADE,
			UNIQUE (route_id, sequence_number)
		)`,

		// Create FCM tokens table
		`CREATE TABLE IF NOT EXISTS fcm_tokens (
			id SERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			token TEXT NOT NULL UNIQUE,
			device_type TEXT NOT NULL CHECK(device_type IN ('ios', 'android')),
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,

		// Create indexes
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
		`CREATE INDEX IF NOT EXISTS idx_bins_owner_id ON bins(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bins_needs_collection ON bins(needs_collection)`,
		`CREATE INDEX IF NOT EXISTS idx_bins_active_route_id ON bins(active_route_id)`,
		`CREATE INDEX IF NOT EXISTS idx_waste_reports_bin_id ON waste_reports(bin_id)`,
		`CREATE INDEX IF NOT EXISTS idx_waste_reports_reported_at ON waste_reports(reported_at)`,
		`CREATE INDEX IF NOT EXISTS idx_trucks_status ON trucks(status)`,
		`CREATE INDEX IF NOT EXISTS idx_driver_locations_driver_id ON driver_locations(driver_id)`,
		`CREATE INDEX IF NOT EXISTS idx_driver_locations_recorded_at ON driver_locations(recorded_at)`,
		`CREATE INDEX IF NOT EXISTS idx_routes_driver_id ON routes(driver_id)`,
		`CREATE INDEX IF NOT EXISTS idx_routes_status ON routes(status)`,
		`CREATE INDEX IF NOT EXISTS idx_route_stops_route_id ON route_stops(route_id)`,
		`CREATE INDEX IF NOT EXISTS idx_route_stops_bin_id ON route_stops(bin_id)`,
		`CREATE INDEX IF NOT EXISTS idx_fcm_tokens_user_id ON fcm_tokens(user_id)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	log.Println("✓ Database migrations completed")
	return nil
}
