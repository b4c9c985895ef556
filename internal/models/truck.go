package models

// TruckStatus represents the current status of a truck
type TruckStatus string

const (
	TruckAvailable    TruckStatus = "available"
	TruckOnRoute      TruckStatus = "on_route"
	TruckMaintenance  TruckStatus = "maintenance"
	TruckOutOfService TruckStatus = "out_of_service"
)

func (s TruckStatus) Valid() bool {
	switch s {
	case TruckAvailable, TruckOnRoute, TruckMaintenance, TruckOutOfService:
		return true
	}
	return false
}

// Truck carries collected waste. A truck has at most one active driver.
type Truck struct {
	ID            string      `json:"id" db:"id"`
	LicensePlate  string      `json:"license_plate" db:"license_plate"`
	CapacityKg    float64     `json:"capacity_kg" db:"capacity_kg"`
	DriverID      *string     `json:"driver_id,omitempty" db:"driver_id"`
	Status        TruckStatus `json:"status" db:"status"`
	LastLatitude  *float64    `json:"last_latitude,omitempty" db:"last_latitude"`
	LastLongitude *float64    `json:"last_longitude,omitempty" db:"last_longitude"`
	LastSeenAt    *int64      `json:"last_seen_at,omitempty" db:"last_seen_at"` // Unix timestamp
	CreatedAt     int64       `json:"created_at" db:"created_at"`               // Unix timestamp
	UpdatedAt     int64       `json:"updated_at" db:"updated_at"`               // Unix timestamp
}

// CreateTruckRequest is the request body for POST /api/manager/trucks
type CreateTruckRequest struct {
	LicensePlate string  `json:"license_plate"`
	CapacityKg   float64 `json:"capacity_kg"`
}

// AssignDriverRequest is the request body for POST /api/manager/trucks/{id}/assign-driver
type AssignDriverRequest struct {
	DriverID string `json:"driver_id"`
}
