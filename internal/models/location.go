package models

// LocationSample represents a GPS location update from a driver.
// Samples are append-only and never mutated after insert.
type LocationSample struct {
	ID         int64    `json:"id" db:"id"`
	DriverID   string   `json:"driver_id" db:"driver_id"`
	Latitude   float64  `json:"latitude" db:"latitude"`
	Longitude  float64  `json:"longitude" db:"longitude"`
	AccuracyM  *float64 `json:"accuracy,omitempty" db:"accuracy"` // GPS accuracy in meters
	Heading    *float64 `json:"heading,omitempty" db:"heading"`   // Direction of travel (0-360 degrees)
	SpeedMps   *float64 `json:"speed,omitempty" db:"speed"`       // Speed in m/s
	RecordedAt int64    `json:"recorded_at" db:"recorded_at"`     // Client-side timestamp
	CreatedAt  int64    `json:"created_at" db:"created_at"`       // Server-side timestamp
}

// LocationUpdateRequest is the request body for POST /api/driver/location
type LocationUpdateRequest struct {
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Accuracy   *float64 `json:"accuracy,omitempty"`
	Heading    *float64 `json:"heading,omitempty"`
	Speed      *float64 `json:"speed,omitempty"`
	RecordedAt int64    `json:"recorded_at"`
}
