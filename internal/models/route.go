package models

// RouteStatus represents the current status of a route
type RouteStatus string

const (
	RoutePending    RouteStatus = "pending"     // Stops chosen, no truck bound
	RouteAssigned   RouteStatus = "assigned"    // Truck+driver bound, not started
	RouteInProgress RouteStatus = "in_progress" // Driver executing
	RouteCompleted  RouteStatus = "completed"   // Terminal
	RouteCancelled  RouteStatus = "cancelled"   // Terminal
)

// Terminal reports whether no further transition may leave the state.
func (s RouteStatus) Terminal() bool {
	return s == RouteCompleted || s == RouteCancelled
}

// CanTransition reports whether the state machine allows moving to next.
func (s RouteStatus) CanTransition(next RouteStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == RouteCancelled {
		return true
	}
	switch s {
	case RoutePending:
		return next == RouteAssigned
	case RouteAssigned:
		return next == RouteInProgress
	case RouteInProgress:
		return next == RouteCompleted
	}
	return false
}

// Route is one truck's ordered collection run.
type Route struct {
	ID                string      `json:"id" db:"id"`
	DriverID          *string     `json:"driver_id,omitempty" db:"driver_id"`
	TruckID           *string     `json:"truck_id,omitempty" db:"truck_id"`
	Status            RouteStatus `json:"status" db:"status"`
	ScheduledFor      *int64      `json:"scheduled_for,omitempty" db:"scheduled_for"` // Unix timestamp
	SeedLatitude      float64     `json:"seed_latitude" db:"seed_latitude"`
	SeedLongitude     float64     `json:"seed_longitude" db:"seed_longitude"`
	PlannedDistanceKm float64     `json:"planned_distance_km" db:"planned_distance_km"`
	ActualStartTime   *int64      `json:"actual_start_time,omitempty" db:"actual_start_time"`
	ActualEndTime     *int64      `json:"actual_end_time,omitempty" db:"actual_end_time"`
	BinsCollected     int         `json:"bins_collected" db:"bins_collected"`
	TotalWeightKg     float64     `json:"total_weight_kg" db:"total_weight_kg"`
	EfficiencyScore   *float64    `json:"efficiency_score,omitempty" db:"efficiency_score"` // [0,100]
	CreatedAt         int64       `json:"created_at" db:"created_at"`                       // Unix timestamp
	UpdatedAt         int64       `json:"updated_at" db:"updated_at"`                       // Unix timestamp

	Stops []RouteStop `json:"stops" db:"-"`
}

// RouteStop is one bin's position within a route's visit sequence.
// Sequence numbers are 1-based and contiguous within the route; the order
// is advisory for drivers and does not gate collection.
type RouteStop struct {
	ID              int64    `json:"id" db:"id"`
	RouteID         string   `json:"route_id" db:"route_id"`
	BinID           string   `json:"bin_id" db:"bin_id"`
	SequenceNumber  int      `json:"sequence_number" db:"sequence_number"`
	Latitude        float64  `json:"latitude" db:"latitude"`   // Bin position at commit time
	Longitude       float64  `json:"longitude" db:"longitude"` //
	EstimatedMassKg float64  `json:"estimated_mass_kg" db:"estimated_mass_kg"`
	Collected       bool     `json:"collected" db:"collected"`
	CollectedAt     *int64   `json:"collected_at,omitempty" db:"collected_at"` // Unix timestamp
	WeightKg        *float64 `json:"weight_kg,omitempty" db:"weight_kg"`
	CreatedAt       int64    `json:"created_at" db:"created_at"` // Unix timestamp
}

// CollectedCount returns how many stops have been collected.
func (r *Route) CollectedCount() int {
	n := 0
	for i := range r.Stops {
		if r.Stops[i].Collected {
			n++
		}
	}
	return n
}

// AllCollected reports whether every stop on the route has been collected.
func (r *Route) AllCollected() bool {
	return len(r.Stops) > 0 && r.CollectedCount() == len(r.Stops)
}

// AssignRouteRequest is the request body for POST /api/manager/assign-route
// (manual override of the optimizer).
type AssignRouteRequest struct {
	TruckID      string   `json:"truck_id"`
	BinIDs       []string `json:"bin_ids"`
	ScheduledFor *int64   `json:"scheduled_for,omitempty"`
}

// CollectStopRequest is the request body for POST /api/driver/routes/{id}/collect
type CollectStopRequest struct {
	BinID    string  `json:"bin_id"`
	WeightKg float64 `json:"weight_kg"`
}

// OptimizeRequest is the request body for POST /api/manager/optimize
type OptimizeRequest struct {
	SeedLatitude  *float64 `json:"seed_latitude,omitempty"`
	SeedLongitude *float64 `json:"seed_longitude,omitempty"`
	RadiusM       *float64 `json:"radius_m,omitempty"`
}
