package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"wasteroute-backend/internal/database"
	"wasteroute-backend/internal/models"
	"wasteroute-backend/internal/services"
	"wasteroute-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Optimize runs one optimization pass on demand
func Optimize(optimizer *services.RouteOptimizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.OptimizeRequest
		if r.Body != nil {
			// Body is optional; an empty pass starts from the depot
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		var seed *models.LatLng
		if req.SeedLatitude != nil && req.SeedLongitude != nil {
			seed = &models.LatLng{Latitude: *req.SeedLatitude, Longitude: *req.SeedLongitude}
		}
		radiusM := 0.0
		if req.RadiusM != nil {
			radiusM = *req.RadiusM
		}

		result, err := optimizer.Run(seed, radiusM)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.Success(w, result)
	}
}

// AssignRoute manually binds bins to a truck as one route
func AssignRoute(optimizer *services.RouteOptimizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.AssignRouteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.TruckID == "" || len(req.BinIDs) == 0 {
			utils.Error(w, http.StatusBadRequest, "truck_id and bin_ids are required")
			return
		}

		route, err := optimizer.AssignManual(req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.JSON(w, http.StatusCreated, route)
	}
}

// CreateTruck registers a truck in the fleet
func CreateTruck(tracker *services.FleetTracker, store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateTruckRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.LicensePlate == "" || req.CapacityKg <= 0 {
			utils.Error(w, http.StatusBadRequest, "license_plate and a positive capacity_kg are required")
			return
		}

		now := time.Now().Unix()
		truck := models.Truck{
			ID:           uuid.New().String(),
			LicensePlate: req.LicensePlate,
			CapacityKg:   req.CapacityKg,
			Status:       models.TruckAvailable,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := store.InsertTruck(&truck); err != nil {
			log.Printf("❌ Failed to insert truck %s: %v", truck.LicensePlate, err)
			utils.Error(w, http.StatusConflict, "license plate already registered")
			return
		}
		tracker.AddTruck(truck)

		utils.JSON(w, http.StatusCreated, truck)
	}
}

// GetTrucks lists the fleet
func GetTrucks(tracker *services.FleetTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.Success(w, tracker.Trucks())
	}
}

type truckStatusRequest struct {
	Status models.TruckStatus `json:"status"`
}

// SetTruckStatus changes a truck's operational status
func SetTruckStatus(tracker *services.FleetTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req truckStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if !req.Status.Valid() {
			utils.Error(w, http.StatusBadRequest, "unknown truck status")
			return
		}

		if err := tracker.SetTruckStatus(id, req.Status); err != nil {
			writeServiceError(w, err)
			return
		}

		truck, err := tracker.Truck(id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.Success(w, truck)
	}
}

// AssignDriver pairs a driver with a truck
func AssignDriver(tracker *services.FleetTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req models.AssignDriverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.DriverID == "" {
			utils.Error(w, http.StatusBadRequest, "driver_id is required")
			return
		}

		if err := tracker.AssignDriver(id, req.DriverID); err != nil {
			writeServiceError(w, err)
			return
		}

		truck, err := tracker.Truck(id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.Success(w, truck)
	}
}

type createDriverRequest struct {
	UserID string `json:"user_id"`
}

// CreateDriverProfile creates the driver profile for an existing driver
// user so the tracker can ingest their locations.
func CreateDriverProfile(tracker *services.FleetTracker, store *database.Store, db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createDriverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		var user models.User
		if err := db.Get(&user, "SELECT * FROM users WHERE id = $1", req.UserID); err != nil {
			utils.Error(w, http.StatusNotFound, "user not found")
			return
		}
		if user.Role != "driver" {
			utils.Error(w, http.StatusBadRequest, "user is not a driver")
			return
		}

		now := time.Now().Unix()
		driver := models.Driver{
			ID:              user.ID,
			Name:            user.Name,
			OnDuty:          false,
			LocationSharing: true,
			SampleIntervalS: 30,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		if err := store.InsertDriver(&driver); err != nil {
			log.Printf("❌ Failed to insert driver profile for %s: %v", user.ID, err)
			utils.Error(w, http.StatusConflict, "driver profile already exists")
			return
		}
		tracker.AddDriver(driver)

		utils.JSON(w, http.StatusCreated, driver)
	}
}

// GetActiveDrivers returns the manager dashboard view of on-duty drivers
func GetActiveDrivers(tracker *services.FleetTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.Success(w, tracker.ActiveDrivers())
	}
}

// GetDriverTrail returns a driver's retained position trail
func GetDriverTrail(tracker *services.FleetTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := tracker.Driver(id); err != nil {
			writeServiceError(w, err)
			return
		}
		utils.Success(w, tracker.Trail(id))
	}
}

// GetRouteHistory lists finished routes, newest first
func GetRouteHistory(store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 500 {
			limit = l
		}

		routes, err := store.RouteHistory(limit)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to load route history")
			return
		}
		utils.Success(w, routes)
	}
}
