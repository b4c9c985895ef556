package database

import (
	"fmt"
	"time"

	"wasteroute-backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// Store is the write-through persistence layer behind the in-memory engine
// services. The engine owns current state; the store keeps the durable copy
// and rebuilds the engine on boot.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a store over an open connection
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// ---- bins ----

func (s *Store) InsertBin(b *models.Bin) error {
	_, err := s.db.Exec(`
		INSERT INTO bins (id, owner_id, capacity_liters, category, latitude, longitude,
			fill_level, needs_collection, last_reported, active, active_route_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		b.ID, nullIfEmpty(b.OwnerID), b.CapacityLiters, b.Category, b.Latitude, b.Longitude,
		b.FillLevel, b.NeedsCollection, b.LastReported, b.Active, b.ActiveRouteID, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert bin: %w", err)
	}
	return nil
}

func (s *Store) UpdateBin(b *models.Bin) error {
	_, err := s.db.Exec(`
		UPDATE bins SET fill_level = $1, needs_collection = $2, last_reported = $3,
			active = $4, active_route_id = $5, latitude = $6, longitude = $7, updated_at = $8
		WHERE id = $9`,
		b.FillLevel, b.NeedsCollection, b.LastReported,
		b.Active, b.ActiveRouteID, b.Latitude, b.Longitude, b.UpdatedAt, b.ID)
	if err != nil {
		return fmt.Errorf("failed to update bin: %w", err)
	}
	return nil
}

func (s *Store) InsertReport(r *models.WasteReport) error {
	err := s.db.QueryRow(`
		INSERT INTO waste_reports (bin_id, reporter_id, fill_level, reported_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		r.BinID, r.ReporterID, r.FillLevel, r.ReportedAt, r.CreatedAt).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("failed to insert waste report: %w", err)
	}
	return nil
}

// LoadBins returns every bin row, active or not
func (s *Store) LoadBins() ([]models.Bin, error) {
	var bins []models.Bin
	if err := s.db.Select(&bins, `
		SELECT id, COALESCE(owner_id, '') AS owner_id, capacity_liters, category,
			latitude, longitude, fill_level, needs_collection, last_reported,
			active, active_route_id, created_at, updated_at
		FROM bins ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("failed to load bins: %w", err)
	}
	return bins, nil
}

// ReportHistory returns a bin's fill reports, newest first
func (s *Store) ReportHistory(binID string, limit int) ([]models.WasteReport, error) {
	var reports []models.WasteReport
	err := s.db.Select(&reports, `
		SELECT id, bin_id, COALESCE(reporter_id, '') AS reporter_id, fill_level, reported_at, created_at
		FROM waste_reports
		WHERE bin_id = $1
		ORDER BY reported_at DESC
		LIMIT $2`, binID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load report history: %w", err)
	}
	return reports, nil
}

// ReportedTimestamps returns the set of report timestamps per bin, used to
// rebuild duplicate detection on boot.
func (s *Store) ReportedTimestamps() (map[string][]int64, error) {
	rows, err := s.db.Query(`SELECT bin_id, reported_at FROM waste_reports`)
	if err != nil {
		return nil, fmt.Errorf("failed to load report timestamps: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]int64)
	for rows.Next() {
		var binID string
		var reportedAt int64
		if err := rows.Scan(&binID, &reportedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report timestamp: %w", err)
		}
		out[binID] = append(out[binID], reportedAt)
	}
	return out, rows.Err()
}

// ---- trucks and drivers ----

func (s *Store) InsertTruck(t *models.Truck) error {
	_, err := s.db.Exec(`
		INSERT INTO trucks (id, license_plate, capacity_kg, status, driver_id,
			last_latitude, last_longitude, last_seen_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.LicensePlate, t.CapacityKg, t.Status, t.DriverID,
		t.LastLatitude, t.LastLongitude, t.LastSeenAt, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert truck: %w", err)
	}
	return nil
}

func (s *Store) UpdateTruckPosition(truckID string, lat, lng float64, seenAt int64) error {
	_, err := s.db.Exec(`
		UPDATE trucks SET last_latitude = $1, last_longitude = $2, last_seen_at = $3, updated_at = $4
		WHERE id = $5`,
		lat, lng, seenAt, time.Now().Unix(), truckID)
	if err != nil {
		return fmt.Errorf("failed to update truck position: %w", err)
	}
	return nil
}

func (s *Store) UpdateTruckStatus(truckID string, status models.TruckStatus) error {
	_, err := s.db.Exec(`UPDATE trucks SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().Unix(), truckID)
	if err != nil {
		return fmt.Errorf("failed to update truck status: %w", err)
	}
	return nil
}

func (s *Store) UpdateTruckDriver(truckID string, driverID *string) error {
	_, err := s.db.Exec(`UPDATE trucks SET driver_id = $1, updated_at = $2 WHERE id = $3`,
		driverID, time.Now().Unix(), truckID)
	if err != nil {
		return fmt.Errorf("failed to update truck driver: %w", err)
	}
	return nil
}

func (s *Store) InsertDriver(d *models.Driver) error {
	_, err := s.db.Exec(`
		INSERT INTO drivers (id, name, truck_id, on_duty, location_sharing, sample_interval_s, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.Name, d.TruckID, d.OnDuty, d.LocationSharing, d.SampleIntervalS, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert driver: %w", err)
	}
	return nil
}

func (s *Store) UpdateDriver(d *models.Driver) error {
	_, err := s.db.Exec(`
		UPDATE drivers SET truck_id = $1, on_duty = $2, location_sharing = $3,
			sample_interval_s = $4, updated_at = $5
		WHERE id = $6`,
		d.TruckID, d.OnDuty, d.LocationSharing, d.SampleIntervalS, time.Now().Unix(), d.ID)
	if err != nil {
		return fmt.Errorf("failed to update driver: %w", err)
	}
	return nil
}

func (s *Store) UpdateDriverTruck(driverID string, truckID *string) error {
	_, err := s.db.Exec(`UPDATE drivers SET truck_id = $1, updated_at = $2 WHERE id = $3`,
		truckID, time.Now().Unix(), driverID)
	if err != nil {
		return fmt.Errorf("failed to update driver truck: %w", err)
	}
	return nil
}

func (s *Store) InsertLocationSample(sample *models.LocationSample) error {
	err := s.db.QueryRow(`
		INSERT INTO driver_locations (driver_id, latitude, longitude, accuracy, heading, speed, recorded_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		sample.DriverID, sample.Latitude, sample.Longitude,
		sample.AccuracyM, sample.Heading, sample.SpeedMps, sample.RecordedAt, sample.CreatedAt).Scan(&sample.ID)
	if err != nil {
		return fmt.Errorf("failed to insert location sample: %w", err)
	}
	return nil
}

func (s *Store) LoadTrucks() ([]models.Truck, error) {
	var trucks []models.Truck
	if err := s.db.Select(&trucks, `SELECT * FROM trucks ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("failed to load trucks: %w", err)
	}
	return trucks, nil
}

func (s *Store) LoadDrivers() ([]models.Driver, error) {
	var drivers []models.Driver
	if err := s.db.Select(&drivers, `SELECT * FROM drivers ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("failed to load drivers: %w", err)
	}
	return drivers, nil
}

// ---- routes ----

// InsertRoute writes a route and its stops in one transaction. Stop ids are
// filled in from the insert.
func (s *Store) InsertRoute(r *models.Route) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO routes (id, driver_id, truck_id, status, scheduled_for,
			seed_latitude, seed_longitude, planned_distance_km, actual_start_time, actual_end_time,
			bins_collected, total_weight_kg, efficiency_score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		r.ID, r.DriverID, r.TruckID, r.Status, r.ScheduledFor,
		r.SeedLatitude, r.SeedLongitude, r.PlannedDistanceKm, r.ActualStartTime, r.ActualEndTime,
		r.BinsCollected, r.TotalWeightKg, r.EfficiencyScore, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert route: %w", err)
	}

	for i := range r.Stops {
		stop := &r.Stops[i]
		err = tx.QueryRow(`
			INSERT INTO route_stops (route_id, bin_id, sequence_number, latitude, longitude,
				estimated_mass_kg, collected, collected_at, weight_kg, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			stop.RouteID, stop.BinID, stop.SequenceNumber, stop.Latitude, stop.Longitude,
			stop.EstimatedMassKg, stop.Collected, stop.CollectedAt, stop.WeightKg, stop.CreatedAt).Scan(&stop.ID)
		if err != nil {
			return fmt.Errorf("failed to insert route stop: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit route: %w", err)
	}
	return nil
}

func (s *Store) UpdateRoute(r *models.Route) error {
	_, err := s.db.Exec(`
		UPDATE routes SET driver_id = $1, truck_id = $2, status = $3,
			actual_start_time = $4, actual_end_time = $5, bins_collected = $6,
			total_weight_kg = $7, efficiency_score = $8, updated_at = $9
		WHERE id = $10`,
		r.DriverID, r.TruckID, r.Status,
		r.ActualStartTime, r.ActualEndTime, r.BinsCollected,
		r.TotalWeightKg, r.EfficiencyScore, r.UpdatedAt, r.ID)
	if err != nil {
		return fmt.Errorf("failed to update route: %w", err)
	}
	return nil
}

func (s *Store) UpdateRouteStop(stop *models.RouteStop) error {
	_, err := s.db.Exec(`
		UPDATE route_stops SET collected = $1, collected_at = $2, weight_kg = $3
		WHERE route_id = $4 AND bin_id = $5`,
		stop.Collected, stop.CollectedAt, stop.WeightKg, stop.RouteID, stop.BinID)
	if err != nil {
		return fmt.Errorf("failed to update route stop: %w", err)
	}
	return nil
}

// LoadActiveRoutes rebuilds non-terminal routes with their stops
func (s *Store) LoadActiveRoutes() ([]models.Route, error) {
	var routes []models.Route
	err := s.db.Select(&routes, `
		SELECT * FROM routes
		WHERE status IN ('pending', 'assigned', 'in_progress')
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to load routes: %w", err)
	}

	for i := range routes {
		var stops []models.RouteStop
		err := s.db.Select(&stops, `
			SELECT * FROM route_stops WHERE route_id = $1 ORDER BY sequence_number`, routes[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load route stops: %w", err)
		}
		routes[i].Stops = stops
	}
	return routes, nil
}

// RouteHistory returns terminal routes for reporting, newest first
func (s *Store) RouteHistory(limit int) ([]models.Route, error) {
	var routes []models.Route
	err := s.db.Select(&routes, `
		SELECT * FROM routes
		WHERE status IN ('completed', 'cancelled')
		ORDER BY updated_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load route history: %w", err)
	}
	return routes, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
