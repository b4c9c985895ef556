package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"wasteroute-backend/internal/database"
	"wasteroute-backend/internal/middleware"
	"wasteroute-backend/internal/models"
	"wasteroute-backend/internal/services"
	"wasteroute-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// RegisterBin creates a bin. Establishments register bins under their own
// account; managers may set any owner.
func RegisterBin(registry *services.BinRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateBinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		claims, _ := middleware.GetUserFromContext(r)
		if claims.Role != "manager" || req.OwnerID == "" {
			req.OwnerID = claims.UserID
		}

		if req.CapacityLiters <= 0 {
			utils.Error(w, http.StatusBadRequest, "capacity_liters must be positive")
			return
		}
		if !req.Category.Valid() {
			utils.Error(w, http.StatusBadRequest, "unknown waste category")
			return
		}

		bin, err := registry.Register(req)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		utils.JSON(w, http.StatusCreated, bin.ToBinResponse())
	}
}

// GetBins lists bins, optionally filtered by category. Inactive bins are
// included only when requested.
func GetBins(registry *services.BinRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category := models.WasteCategory(r.URL.Query().Get("category"))
		includeInactive := r.URL.Query().Get("include_inactive") == "true"

		bins := registry.List(category, includeInactive)
		responses := make([]models.BinResponse, len(bins))
		for i := range bins {
			responses[i] = bins[i].ToBinResponse()
		}
		utils.Success(w, responses)
	}
}

func GetBin(registry *services.BinRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		bin, err := registry.Get(id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.Success(w, bin.ToBinResponse())
	}
}

// ReportFill records a fill-level report. Establishments may only report
// their own bins; drivers and managers may report any.
func ReportFill(registry *services.BinRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req models.ReportFillRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if !req.FillLevel.Valid() {
			utils.Error(w, http.StatusBadRequest, "unknown fill level")
			return
		}

		claims, _ := middleware.GetUserFromContext(r)
		if claims.Role == "establishment" {
			bin, err := registry.Get(id)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			if bin.OwnerID != claims.UserID {
				utils.Error(w, http.StatusForbidden, "bin belongs to another establishment")
				return
			}
		}

		reportedAt := time.Now().Unix()
		if req.ReportedAt != nil {
			reportedAt = *req.ReportedAt
		}

		report, err := registry.Report(id, req.FillLevel, claims.UserID, reportedAt)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		bin, _ := registry.Get(id)
		utils.JSON(w, http.StatusCreated, report.ToReportResponse(bin.NeedsCollection))
	}
}

// GetBinReports returns a bin's fill report history, newest first
func GetBinReports(registry *services.BinRegistry, store *database.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := registry.Get(id); err != nil {
			writeServiceError(w, err)
			return
		}

		limit := 50
		if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 500 {
			limit = l
		}

		reports, err := store.ReportHistory(id, limit)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, "Failed to load report history")
			return
		}
		utils.Success(w, reports)
	}
}

// DeactivateBin soft-deletes a bin. History is preserved.
func DeactivateBin(registry *services.BinRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		claims, _ := middleware.GetUserFromContext(r)
		if claims.Role == "establishment" {
			bin, err := registry.Get(id)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			if bin.OwnerID != claims.UserID {
				utils.Error(w, http.StatusForbidden, "bin belongs to another establishment")
				return
			}
		}

		if err := registry.Deactivate(id); err != nil {
			writeServiceError(w, err)
			return
		}
		utils.Success(w, map[string]bool{"ok": true})
	}
}

type nearbyBin struct {
	models.BinResponse
	DistanceM float64 `json:"distance_m"`
}

// NearbyBins returns bins within a radius of a point, nearest first
func NearbyBins(registry *services.BinRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
		lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
		if errLat != nil || errLng != nil {
			utils.Error(w, http.StatusBadRequest, "lat and lng query parameters are required")
			return
		}

		radiusM := 1000.0
		if v, err := strconv.ParseFloat(r.URL.Query().Get("radius_m"), 64); err == nil && v > 0 {
			radiusM = v
		}

		filter := services.NearbyFilter{ActiveOnly: true}
		if r.URL.Query().Get("needs_collection") == "true" {
			filter.NeedsCollection = true
		}

		bins, distances := registry.Nearby(lat, lng, radiusM, filter)
		out := make([]nearbyBin, len(bins))
		for i := range bins {
			out[i] = nearbyBin{BinResponse: bins[i].ToBinResponse(), DistanceM: distances[i]}
		}
		utils.Success(w, out)
	}
}

// UrgentBins returns eligible bins in priority order for the dispatch view
func UrgentBins(registry *services.BinRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bins := registry.Urgent()
		responses := make([]models.BinResponse, len(bins))
		for i := range bins {
			responses[i] = bins[i].ToBinResponse()
		}
		utils.Success(w, responses)
	}
}
