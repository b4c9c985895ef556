package models

// Driver mirrors Truck.DriverID: the pair is kept consistent by a single
// assignment operation, never by updating one side alone.
type Driver struct {
	ID              string  `json:"id" db:"id"` // same as the driver's user id
	Name            string  `json:"name" db:"name"`
	TruckID         *string `json:"truck_id,omitempty" db:"truck_id"`
	OnDuty          bool    `json:"on_duty" db:"on_duty"`
	LocationSharing bool    `json:"location_sharing" db:"location_sharing"`
	SampleIntervalS int     `json:"sample_interval_s" db:"sample_interval_s"` // 10-300, advisory
	CreatedAt       int64   `json:"created_at" db:"created_at"`               // Unix timestamp
	UpdatedAt       int64   `json:"updated_at" db:"updated_at"`               // Unix timestamp
}

// DriverStatus represents a driver's current state for the manager dashboard
type DriverStatus struct {
	DriverID     string          `json:"driver_id"`
	Name         string          `json:"name"`
	OnDuty       bool            `json:"on_duty"`
	TruckID      *string         `json:"truck_id,omitempty"`
	RouteID      *string         `json:"route_id,omitempty"`
	LastLocation *LocationSample `json:"last_location,omitempty"`
}
