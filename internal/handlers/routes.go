package handlers

import (
	"encoding/json"
	"net/http"

	"wasteroute-backend/internal/middleware"
	"wasteroute-backend/internal/models"
	"wasteroute-backend/internal/services"
	"wasteroute-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// GetRoute returns one route with its stops
func GetRoute(lifecycle *services.RouteLifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		route, err := lifecycle.Get(id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		// Drivers only see their own routes
		claims, _ := middleware.GetUserFromContext(r)
		if claims.Role == "driver" && (route.DriverID == nil || *route.DriverID != claims.UserID) {
			utils.Error(w, http.StatusForbidden, "route belongs to another driver")
			return
		}

		utils.Success(w, route)
	}
}

// StartRoute transitions an assigned route to in_progress. Only the
// assigned driver may start it.
func StartRoute(lifecycle *services.RouteLifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		claims, _ := middleware.GetUserFromContext(r)

		route, err := lifecycle.Start(id, claims.UserID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.Success(w, route)
	}
}

// CollectStop marks one stop collected with the measured weight
func CollectStop(lifecycle *services.RouteLifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req models.CollectStopRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.BinID == "" {
			utils.Error(w, http.StatusBadRequest, "bin_id is required")
			return
		}
		if req.WeightKg < 0 {
			utils.Error(w, http.StatusBadRequest, "weight_kg must not be negative")
			return
		}

		// The assigned driver is the only caller allowed to collect
		claims, _ := middleware.GetUserFromContext(r)
		route, err := lifecycle.Get(id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if route.DriverID == nil || *route.DriverID != claims.UserID {
			utils.Error(w, http.StatusForbidden, "route belongs to another driver")
			return
		}

		stop, err := lifecycle.MarkStopCollected(id, req.BinID, req.WeightKg)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.Success(w, stop)
	}
}

// CompleteRoute finishes an in-progress route and scores it
func CompleteRoute(lifecycle *services.RouteLifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		claims, _ := middleware.GetUserFromContext(r)

		route, err := lifecycle.Complete(id, claims.UserID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.Success(w, route)
	}
}

// CancelRoute withdraws a route and releases its bins back to the eligible
// pool. Manager only.
func CancelRoute(lifecycle *services.RouteLifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		route, err := lifecycle.Cancel(id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.Success(w, route)
	}
}

// GetActiveRoutes lists all non-terminal routes
func GetActiveRoutes(lifecycle *services.RouteLifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.Success(w, lifecycle.ActiveRoutes())
	}
}
