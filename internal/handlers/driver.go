package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"wasteroute-backend/internal/middleware"
	"wasteroute-backend/internal/models"
	"wasteroute-backend/internal/services"
	"wasteroute-backend/pkg/utils"

	"github.com/jmoiron/sqlx"
)

// PostLocation ingests a location sample from the authenticated driver
func PostLocation(tracker *services.FleetTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetUserFromContext(r)

		var req models.LocationUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
			utils.Error(w, http.StatusBadRequest, "coordinates out of range")
			return
		}

		sample, err := tracker.Ingest(claims.UserID, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.JSON(w, http.StatusAccepted, sample)
	}
}

type sharingRequest struct {
	Enabled bool `json:"enabled"`
}

// SetLocationSharing toggles the driver's location sharing consent
func SetLocationSharing(tracker *services.FleetTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetUserFromContext(r)

		var req sharingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if err := tracker.SetSharing(claims.UserID, req.Enabled); err != nil {
			writeServiceError(w, err)
			return
		}
		utils.Success(w, map[string]bool{"location_sharing": req.Enabled})
	}
}

type intervalRequest struct {
	Seconds int `json:"seconds"`
}

// SetSampleInterval sets the driver's advisory sampling interval. Values
// outside the configured bounds are clamped, not rejected.
func SetSampleInterval(tracker *services.FleetTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetUserFromContext(r)

		var req intervalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if err := tracker.SetSampleInterval(claims.UserID, req.Seconds); err != nil {
			writeServiceError(w, err)
			return
		}

		driver, err := tracker.Driver(claims.UserID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.Success(w, map[string]int{"sample_interval_s": driver.SampleIntervalS})
	}
}

type onDutyRequest struct {
	OnDuty bool `json:"on_duty"`
}

// SetOnDuty flips the driver's duty flag
func SetOnDuty(tracker *services.FleetTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetUserFromContext(r)

		var req onDutyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if err := tracker.SetOnDuty(claims.UserID, req.OnDuty); err != nil {
			writeServiceError(w, err)
			return
		}
		utils.Success(w, map[string]bool{"on_duty": req.OnDuty})
	}
}

// GetMyRoute returns the driver's current active route, if any
func GetMyRoute(lifecycle *services.RouteLifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetUserFromContext(r)

		route, ok := lifecycle.RouteForDriver(claims.UserID)
		if !ok {
			utils.Error(w, http.StatusNotFound, "no active route")
			return
		}
		utils.Success(w, route)
	}
}

type fcmTokenRequest struct {
	Token      string `json:"token"`
	DeviceType string `json:"device_type"`
}

// RegisterFCMToken stores or refreshes a device push token
func RegisterFCMToken(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetUserFromContext(r)

		var req fcmTokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Token == "" || (req.DeviceType != "ios" && req.DeviceType != "android") {
			utils.Error(w, http.StatusBadRequest, "token and device_type (ios|android) are required")
			return
		}

		_, err := db.Exec(`
			INSERT INTO fcm_tokens (user_id, token, device_type, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (token)
			DO UPDATE SET user_id = EXCLUDED.user_id, device_type = EXCLUDED.device_type, updated_at = EXCLUDED.updated_at`,
			claims.UserID, req.Token, req.DeviceType, time.Now().Unix())
		if err != nil {
			log.Printf("❌ Failed to store FCM token for %s: %v", claims.UserID, err)
			utils.Error(w, http.StatusInternalServerError, "Failed to store token")
			return
		}

		utils.Success(w, map[string]bool{"ok": true})
	}
}
