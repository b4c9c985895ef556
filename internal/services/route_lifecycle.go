package services

import (
	"log"
	"sort"
	"sync"
	"time"

	"wasteroute-backend/internal/models"

	"github.com/pkg/errors"
)

// RouteStore persists routes and stop updates. InsertRoute writes the route
// and its stops in one transaction.
type RouteStore interface {
	InsertRoute(r *models.Route) error
	UpdateRoute(r *models.Route) error
	UpdateRouteStop(s *models.RouteStop) error
}

// RouteLifecycle drives routes through
// pending -> assigned -> in_progress -> completed, with cancelled reachable
// from any non-terminal state, and reconciles bin collection back into the
// registry.
type RouteLifecycle struct {
	mu     sync.Mutex
	routes map[string]*models.Route

	registry *BinRegistry
	fleet    *FleetTracker
	store    RouteStore
	events   *EventBus
}

// NewRouteLifecycle creates a lifecycle manager.
func NewRouteLifecycle(store RouteStore, registry *BinRegistry, fleet *FleetTracker, events *EventBus) *RouteLifecycle {
	return &RouteLifecycle{
		routes:   make(map[string]*models.Route),
		registry: registry,
		fleet:    fleet,
		store:    store,
		events:   events,
	}
}

// Load primes the lifecycle with persisted non-terminal routes at startup.
func (l *RouteLifecycle) Load(routes []models.Route) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range routes {
		r := routes[i]
		l.routes[r.ID] = &r
	}
	log.Printf("✅ [ROUTE-LIFECYCLE] Loaded %d routes", len(routes))
}

// Commit stores a freshly optimized (or manually assembled) route. The
// caller must already hold claims on every stop's bin; on a storage failure
// the claims are released so the bins return to the eligible pool.
func (l *RouteLifecycle) Commit(route *models.Route) error {
	if err := l.store.InsertRoute(route); err != nil {
		for _, stop := range route.Stops {
			l.registry.Release(stop.BinID, route.ID)
		}
		return errors.Wrap(err, "insert route")
	}

	l.mu.Lock()
	copied := *route
	l.routes[route.ID] = &copied
	l.mu.Unlock()

	if route.Status == models.RouteAssigned && route.TruckID != nil {
		if err := l.fleet.SetTruckStatus(*route.TruckID, models.TruckOnRoute); err != nil {
			log.Printf("⚠️  [ROUTE-LIFECYCLE] Failed to mark truck %s on route: %v", *route.TruckID, err)
		}
		evt := *route
		l.events.Publish(Event{Type: EventRouteAssigned, Route: &evt})
	}

	log.Printf("✅ [ROUTE-LIFECYCLE] Route %s committed (%s, %d stops)", route.ID, route.Status, len(route.Stops))
	return nil
}

// Get returns a copy of the route with its stops.
func (l *RouteLifecycle) Get(routeID string) (models.Route, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	route, ok := l.routes[routeID]
	if !ok {
		return models.Route{}, errors.Wrapf(ErrNotFound, "route %s", routeID)
	}
	return copyRoute(route), nil
}

// Start moves an assigned route to in_progress and records the actual start
// time. Only the route's driver may start it.
func (l *RouteLifecycle) Start(routeID, driverID string) (models.Route, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	route, ok := l.routes[routeID]
	if !ok {
		return models.Route{}, errors.Wrapf(ErrNotFound, "route %s", routeID)
	}
	if route.DriverID == nil || *route.DriverID != driverID {
		return models.Route{}, errors.Wrapf(ErrPermissionDenied, "route %s is not assigned to driver %s", routeID, driverID)
	}
	if !route.Status.CanTransition(models.RouteInProgress) {
		return models.Route{}, errors.Wrapf(ErrInvalidTransition, "route %s is %s", routeID, route.Status)
	}

	now := time.Now().Unix()
	route.Status = models.RouteInProgress
	route.ActualStartTime = &now
	route.UpdatedAt = now
	if err := l.store.UpdateRoute(route); err != nil {
		return models.Route{}, errors.Wrap(err, "update route")
	}

	log.Printf("🚚 [ROUTE-LIFECYCLE] Route %s started by driver %s", routeID, driverID)
	return copyRoute(route), nil
}

// MarkStopCollected records one bin's collection. It fails with
// InvalidTransition when the route is not in progress or the stop was
// already collected. On success the route totals advance and the registry
// resets the bin.
func (l *RouteLifecycle) MarkStopCollected(routeID, binID string, weightKg float64) (*models.RouteStop, error) {
	l.mu.Lock()

	route, ok := l.routes[routeID]
	if !ok {
		l.mu.Unlock()
		return nil, errors.Wrapf(ErrNotFound, "route %s", routeID)
	}
	if route.Status != models.RouteInProgress {
		l.mu.Unlock()
		return nil, errors.Wrapf(ErrInvalidTransition, "route %s is %s, not in_progress", routeID, route.Status)
	}

	var stop *models.RouteStop
	for i := range route.Stops {
		if route.Stops[i].BinID == binID {
			stop = &route.Stops[i]
			break
		}
	}
	if stop == nil {
		l.mu.Unlock()
		return nil, errors.Wrapf(ErrNotFound, "bin %s is not a stop on route %s", binID, routeID)
	}
	if stop.Collected {
		l.mu.Unlock()
		return nil, errors.Wrapf(ErrInvalidTransition, "stop for bin %s already collected", binID)
	}

	now := time.Now().Unix()
	stop.Collected = true
	stop.CollectedAt = &now
	stop.WeightKg = &weightKg
	route.BinsCollected++
	route.TotalWeightKg += weightKg
	route.UpdatedAt = now

	if err := l.store.UpdateRouteStop(stop); err != nil {
		log.Printf("⚠️  [ROUTE-LIFECYCLE] Failed to persist stop on route %s: %v", routeID, err)
	}
	if err := l.store.UpdateRoute(route); err != nil {
		log.Printf("⚠️  [ROUTE-LIFECYCLE] Failed to persist route %s totals: %v", routeID, err)
	}
	collected := *stop
	l.mu.Unlock()

	if err := l.registry.MarkCollected(binID); err != nil {
		log.Printf("⚠️  [ROUTE-LIFECYCLE] Failed to reset bin %s: %v", binID, err)
	}

	log.Printf("✅ [ROUTE-LIFECYCLE] Stop %d on route %s collected (%.1f kg)", collected.SequenceNumber, routeID, weightKg)
	return &collected, nil
}

// Complete closes an in-progress route: all stops collected, or the driver
// explicitly ends the run. It records the actual end time, computes the
// efficiency score and releases every claim.
func (l *RouteLifecycle) Complete(routeID, driverID string) (models.Route, error) {
	l.mu.Lock()

	route, ok := l.routes[routeID]
	if !ok {
		l.mu.Unlock()
		return models.Route{}, errors.Wrapf(ErrNotFound, "route %s", routeID)
	}
	if route.DriverID == nil || *route.DriverID != driverID {
		l.mu.Unlock()
		return models.Route{}, errors.Wrapf(ErrPermissionDenied, "route %s is not assigned to driver %s", routeID, driverID)
	}
	if !route.Status.CanTransition(models.RouteCompleted) {
		l.mu.Unlock()
		return models.Route{}, errors.Wrapf(ErrInvalidTransition, "route %s is %s", routeID, route.Status)
	}

	now := time.Now().Unix()
	route.Status = models.RouteCompleted
	route.ActualEndTime = &now
	score := efficiencyScore(route)
	route.EfficiencyScore = &score
	route.UpdatedAt = now

	if err := l.store.UpdateRoute(route); err != nil {
		log.Printf("⚠️  [ROUTE-LIFECYCLE] Failed to persist route %s completion: %v", routeID, err)
	}
	done := copyRoute(route)
	l.mu.Unlock()

	l.releaseRoute(&done)
	l.events.Publish(Event{Type: EventRouteCompleted, Route: &done})

	log.Printf("🏁 [ROUTE-LIFECYCLE] Route %s completed: %d/%d bins, %.1f kg, efficiency %.0f",
		routeID, done.BinsCollected, len(done.Stops), done.TotalWeightKg, score)
	return done, nil
}

// Cancel aborts a non-terminal route and releases every stop's bin back to
// the eligible pool. Once cancelled, further stop completions are rejected.
func (l *RouteLifecycle) Cancel(routeID string) (models.Route, error) {
	l.mu.Lock()

	route, ok := l.routes[routeID]
	if !ok {
		l.mu.Unlock()
		return models.Route{}, errors.Wrapf(ErrNotFound, "route %s", routeID)
	}
	if !route.Status.CanTransition(models.RouteCancelled) {
		l.mu.Unlock()
		return models.Route{}, errors.Wrapf(ErrInvalidTransition, "route %s is already %s", routeID, route.Status)
	}

	route.Status = models.RouteCancelled
	route.UpdatedAt = time.Now().Unix()
	if err := l.store.UpdateRoute(route); err != nil {
		log.Printf("⚠️  [ROUTE-LIFECYCLE] Failed to persist route %s cancellation: %v", routeID, err)
	}
	done := copyRoute(route)
	l.mu.Unlock()

	l.releaseRoute(&done)
	l.events.Publish(Event{Type: EventRouteCancelled, Route: &done})

	log.Printf("🛑 [ROUTE-LIFECYCLE] Route %s cancelled, %d bins released", routeID, len(done.Stops))
	return done, nil
}

// ActiveRoutes returns non-terminal routes.
func (l *RouteLifecycle) ActiveRoutes() []models.Route {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []models.Route
	for _, route := range l.routes {
		if !route.Status.Terminal() {
			out = append(out, copyRoute(route))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out
}

// RouteForDriver returns the driver's current non-terminal route, if any.
func (l *RouteLifecycle) RouteForDriver(driverID string) (models.Route, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, route := range l.routes {
		if !route.Status.Terminal() && route.DriverID != nil && *route.DriverID == driverID {
			return copyRoute(route), true
		}
	}
	return models.Route{}, false
}

// releaseRoute frees claims and the truck once a route reaches a terminal
// state.
func (l *RouteLifecycle) releaseRoute(route *models.Route) {
	for _, stop := range route.Stops {
		l.registry.Release(stop.BinID, route.ID)
	}
	if route.TruckID != nil {
		if err := l.fleet.SetTruckStatus(*route.TruckID, models.TruckAvailable); err != nil {
			log.Printf("⚠️  [ROUTE-LIFECYCLE] Failed to free truck %s: %v", *route.TruckID, err)
		}
	}
}

// efficiencyScore compares the planned stop walk against the distance
// implied by the order bins were actually collected in, bounded to [0,100].
func efficiencyScore(route *models.Route) float64 {
	collected := make([]models.RouteStop, 0, len(route.Stops))
	for _, stop := range route.Stops {
		if stop.Collected {
			collected = append(collected, stop)
		}
	}
	if len(collected) == 0 || route.PlannedDistanceKm <= 0 {
		return 100
	}
	sort.Slice(collected, func(i, j int) bool {
		if *collected[i].CollectedAt != *collected[j].CollectedAt {
			return *collected[i].CollectedAt < *collected[j].CollectedAt
		}
		return collected[i].SequenceNumber < collected[j].SequenceNumber
	})

	actualKm := 0.0
	lat, lng := route.SeedLatitude, route.SeedLongitude
	for _, stop := range collected {
		actualKm += geodesicDistanceM(lat, lng, stop.Latitude, stop.Longitude) / 1000
		lat, lng = stop.Latitude, stop.Longitude
	}
	if actualKm <= 0 {
		return 100
	}

	score := route.PlannedDistanceKm / actualKm * 100
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

func copyRoute(r *models.Route) models.Route {
	out := *r
	out.Stops = make([]models.RouteStop, len(r.Stops))
	copy(out.Stops, r.Stops)
	return out
}
