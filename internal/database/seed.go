package database

import (
	"log"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

func SeedUsers(db *sqlx.DB) error {
	// Check if users already exist
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM users"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Users already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding test users...")

	driverPassword, err := bcrypt.GenerateFromPassword([]byte("driver123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	managerPassword, err := bcrypt.GenerateFromPassword([]byte("manager123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	ownerPassword, err := bcrypt.GenerateFromPassword([]byte("owner123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	users := []map[string]interface{}{
		{
			"id":       "seed-driver-1",
			"email":    "driver@wasteroute.com",
			"password": string(driverPassword),
			"name":     "John Driver",
			"role":     "driver",
		},
		{
			"id":       "seed-driver-2",
			"email":    "driver2@wasteroute.com",
			"password": string(driverPassword),
			"name":     "Maria Torres",
			"role":     "driver",
		},
		{
			"id":       "seed-manager-1",
			"email":    "manager@wasteroute.com",
			"password": string(managerPassword),
			"name":     "Dispatch Manager",
			"role":     "manager",
		},
		{
			"id":       "seed-owner-1",
			"email":    "cafe@wasteroute.com",
			"password": string(ownerPassword),
			"name":     "Downtown Cafe",
			"role":     "establishment",
		},
	}

	for _, user := range users {
		query := `
			INSERT INTO users (id, email, password, name, role)
			VALUES (:id, :email, :password, :name, :role)
		`
		if _, err := db.NamedExec(query, user); err != nil {
			return err
		}
		log.Printf("  ✓ Created user: %s (%s)", user["email"], user["role"])
	}

	log.Println("✓ Successfully seeded test users")
	log.Println("  📧 Driver:  driver@wasteroute.com / driver123")
	log.Println("  📧 Manager: manager@wasteroute.com / manager123")
	return nil
}

func SeedFleet(db *sqlx.DB) error {
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM trucks"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Fleet already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding fleet...")

	trucks := []map[string]interface{}{
		{"id": "seed-truck-1", "license_plate": "WR-101", "capacity_kg": 1200.0, "driver_id": "seed-driver-1"},
		{"id": "seed-truck-2", "license_plate": "WR-102", "capacity_kg": 800.0, "driver_id": "seed-driver-2"},
		{"id": "seed-truck-3", "license_plate": "WR-103", "capacity_kg": 2000.0, "driver_id": nil},
	}

	for _, truck := range trucks {
		_, err := db.Exec(`
			INSERT INTO trucks (id, license_plate, capacity_kg, status, driver_id)
			VALUES ($1, $2, $3, 'available', $4)
		`, truck["id"], truck["license_plate"], truck["capacity_kg"], truck["driver_id"])
		if err != nil {
			return err
		}
	}

	drivers := []map[string]interface{}{
		{"id": "seed-driver-1", "name": "John Driver", "truck_id": "seed-truck-1"},
		{"id": "seed-driver-2", "name": "Maria Torres", "truck_id": "seed-truck-2"},
	}

	for _, driver := range drivers {
		_, err := db.Exec(`
			INSERT INTO drivers (id, name, truck_id, on_duty, location_sharing, sample_interval_s)
			VALUES ($1, $2, $3, FALSE, TRUE, 30)
		`, driver["id"], driver["name"], driver["truck_id"])
		if err != nil {
			return err
		}
	}

	log.Println("✓ Successfully seeded fleet")
	return nil
}

func SeedBins(db *sqlx.DB) error {
	// Check if bins already exist
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM bins"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Bins already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding 20 bins...")

	bins := []map[string]interface{}{
		{"capacity_liters": 240.0, "category": "general", "latitude": 37.3329, "longitude": -121.8866},
		{"capacity_liters": 240.0, "category": "recyclable", "latitude": 37.3361, "longitude": -121.8869},
		{"capacity_liters": 360.0, "category": "general", "latitude": 37.3343, "longitude": -121.8936},
		{"capacity_liters": 120.0, "category": "organic", "latitude": 37.3313, "longitude": -121.8917},
		{"capacity_liters": 240.0, "category": "general", "latitude": 37.3351, "longitude": -121.8894},
		{"capacity_liters": 360.0, "category": "hazardous", "latitude": 37.3352, "longitude": -121.8931},
		{"capacity_liters": 240.0, "category": "general", "latitude": 37.3357, "longitude": -121.8826},
		{"capacity_liters": 120.0, "category": "organic", "latitude": 37.3339, "longitude": -121.8905},
		{"capacity_liters": 240.0, "category": "recyclable", "latitude": 37.3326, "longitude": -121.8863},
		{"capacity_liters": 360.0, "category": "general", "latitude": 37.3344, "longitude": -121.8877},
		{"capacity_liters": 240.0, "category": "general", "latitude": 37.3307, "longitude": -121.8901},
		{"capacity_liters": 120.0, "category": "hazardous", "latitude": 37.3311, "longitude": -121.8842},
		{"capacity_liters": 240.0, "category": "general", "latitude": 37.3389, "longitude": -121.8822},
		{"capacity_liters": 360.0, "category": "recyclable", "latitude": 37.3323, "longitude": -121.8955},
		{"capacity_liters": 240.0, "category": "general", "latitude": 37.3442, "longitude": -121.8793},
		{"capacity_liters": 120.0, "category": "organic", "latitude": 37.3423, "longitude": -121.8878},
		{"capacity_liters": 240.0, "category": "general", "latitude": 37.3473, "longitude": -121.8786},
		{"capacity_liters": 360.0, "category": "general", "latitude": 37.3341, "longitude": -121.8828},
		{"capacity_liters": 240.0, "category": "recyclable", "latitude": 37.3385, "longitude": -121.8972},
		{"capacity_liters": 240.0, "category": "general", "latitude": 37.3289, "longitude": -121.8816},
	}

	for _, bin := range bins {
		id := uuid.New().String()
		_, err := db.Exec(`
			INSERT INTO bins (id, owner_id, capacity_liters, category, latitude, longitude, fill_level, needs_collection, active)
			VALUES ($1, 'seed-owner-1', $2, $3, $4, $5, 'empty', FALSE, TRUE)
		`, id, bin["capacity_liters"], bin["category"], bin["latitude"], bin["longitude"])

		if err != nil {
			return err
		}
	}

	log.Println("✓ Successfully seeded 20 bins")
	return nil
}
