package services

import (
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"wasteroute-backend/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// OptimizerConfig carries the deployment parameters of the optimizer.
type OptimizerConfig struct {
	ClusterRadiusM  float64 // proximity radius for cluster growth
	DensityKgPerL   float64 // converts nominal bin volume to estimated mass
	MaxClaimRetries int     // bound on optimistic claim retries per pass
	DepotLatitude   float64
	DepotLongitude  float64
}

// OptimizationResult summarizes one optimization pass. Unassigned clusters
// and lost claims are normal operation, not errors: the remainder stays
// eligible for the next pass.
type OptimizationResult struct {
	Routes             []models.Route `json:"routes"`
	UnassignedClusters int            `json:"unassigned_clusters"`
	Conflicts          int            `json:"conflicts"`
	RemainingEligible  int            `json:"remaining_eligible"`
}

// cluster is a proximity- and capacity-bounded group of eligible bins slated
// for one route.
type cluster struct {
	bins   []models.Bin
	massKg float64
}

func (c *cluster) centroid() (float64, float64) {
	var lat, lng float64
	for _, b := range c.bins {
		lat += b.Latitude
		lng += b.Longitude
	}
	n := float64(len(c.bins))
	return lat / n, lng / n
}

// RouteOptimizer groups eligible bins into capacity-bounded truck routes.
// Only one pass runs at a time; the optimizer-scoped mutex is the
// serialization point for route commits.
type RouteOptimizer struct {
	mu        sync.Mutex
	cfg       OptimizerConfig
	registry  *BinRegistry
	fleet     *FleetTracker
	lifecycle *RouteLifecycle
}

// NewRouteOptimizer creates a new route optimizer
func NewRouteOptimizer(cfg OptimizerConfig, registry *BinRegistry, fleet *FleetTracker, lifecycle *RouteLifecycle) *RouteOptimizer {
	return &RouteOptimizer{
		cfg:       cfg,
		registry:  registry,
		fleet:     fleet,
		lifecycle: lifecycle,
	}
}

// estimatedMassKg converts a bin's nominal volume to mass. Actual mass is
// unknown until collection, so capacity accounting works on this estimate.
func (ro *RouteOptimizer) estimatedMassKg(b models.Bin) float64 {
	return b.CapacityLiters * ro.cfg.DensityKgPerL
}

// Run performs one optimization pass. seed is the start point for
// sequencing (depot when nil); radiusM restricts the eligible set to a disk
// around seed (0 means no restriction). An empty eligible set or a fleet
// with no available trucks produces an empty or partial result, not an
// error.
func (ro *RouteOptimizer) Run(seed *models.LatLng, radiusM float64) (*OptimizationResult, error) {
	ro.mu.Lock()
	defer ro.mu.Unlock()

	seedLat, seedLng := ro.cfg.DepotLatitude, ro.cfg.DepotLongitude
	if seed != nil {
		seedLat, seedLng = seed.Latitude, seed.Longitude
	}

	eligible := ro.eligibleBins(seedLat, seedLng, radiusM)
	trucks := ro.fleet.AvailableTrucks()

	log.Printf("🎯 [OPTIMIZER] Pass starting from (%.6f, %.6f): %d eligible bins, %d available trucks",
		seedLat, seedLng, len(eligible), len(trucks))

	result := &OptimizationResult{}
	if len(eligible) == 0 {
		return result, nil
	}

	excluded := make(map[string]struct{})
	for attempt := 0; ; attempt++ {
		pool := make([]models.Bin, 0, len(eligible))
		for _, b := range eligible {
			if _, skip := excluded[b.ID]; !skip {
				pool = append(pool, b)
			}
		}
		if len(pool) == 0 {
			break
		}

		clusters := ro.buildClusters(pool, trucks)
		assignments, unassigned := ro.matchTrucks(clusters, trucks, seedLat, seedLng)
		result.UnassignedClusters = len(unassigned)

		lostBin, committed := ro.commitAssignments(assignments, seedLat, seedLng)
		result.Routes = append(result.Routes, committed...)
		if lostBin == "" {
			break
		}

		// A claim was lost to a concurrent assignment. Recompute without
		// the contested bin, up to the retry bound.
		excluded[lostBin] = struct{}{}
		if attempt >= ro.cfg.MaxClaimRetries {
			result.Conflicts++
			log.Printf("⚠️  [OPTIMIZER] Claim retries exhausted, surfacing scheduling conflict")
			break
		}
		log.Printf("   Claim lost on bin %s, recomputing (attempt %d)", lostBin, attempt+1)

		// Routes committed before the lost claim have already taken their
		// bins and trucks. Refresh both inputs so the recompute sees only
		// what is still unclaimed and still available.
		eligible = ro.eligibleBins(seedLat, seedLng, radiusM)
		trucks = ro.fleet.AvailableTrucks()
	}

	result.RemainingEligible = len(ro.registry.Eligible())
	log.Printf("✅ [OPTIMIZER] Pass complete: %d routes, %d unassigned clusters, %d eligible remaining",
		len(result.Routes), result.UnassignedClusters, result.RemainingEligible)
	return result, nil
}

// AssignManual is the manager override: bind an explicit set of eligible
// bins to a truck as one route, bypassing clustering but not the capacity
// check or the claim discipline.
func (ro *RouteOptimizer) AssignManual(req models.AssignRouteRequest) (*models.Route, error) {
	ro.mu.Lock()
	defer ro.mu.Unlock()

	truck, err := ro.fleet.Truck(req.TruckID)
	if err != nil {
		return nil, err
	}
	if truck.Status != models.TruckAvailable || truck.DriverID == nil {
		return nil, errors.Wrapf(ErrInvalidTransition, "truck %s is not available with a driver", req.TruckID)
	}
	if len(req.BinIDs) == 0 {
		return nil, errors.Wrap(ErrNotFound, "no bins given")
	}

	bins := make([]models.Bin, 0, len(req.BinIDs))
	totalMass := 0.0
	for _, id := range req.BinIDs {
		bin, err := ro.registry.Get(id)
		if err != nil {
			return nil, err
		}
		bins = append(bins, bin)
		totalMass += ro.estimatedMassKg(bin)
	}
	if totalMass > truck.CapacityKg {
		return nil, errors.Wrapf(ErrCapacityExceeded,
			"estimated %.1f kg exceeds truck capacity %.1f kg", totalMass, truck.CapacityKg)
	}

	routeID := uuid.New().String()
	claimed := make([]string, 0, len(bins))
	for _, bin := range bins {
		if !ro.registry.Claim(bin.ID, routeID) {
			for _, id := range claimed {
				ro.registry.Release(id, routeID)
			}
			return nil, errors.Wrapf(ErrSchedulingConflict, "bin %s is already bound to an active route", bin.ID)
		}
		claimed = append(claimed, bin.ID)
	}

	seedLat, seedLng := ro.truckStart(truck)
	route := ro.buildRoute(routeID, &cluster{bins: bins, massKg: totalMass}, truck, seedLat, seedLng, req.ScheduledFor)
	if err := ro.lifecycle.Commit(route); err != nil {
		return nil, err
	}
	return route, nil
}

// eligibleBins pulls the optimizer's input set, via the spatial index when a
// radius is given.
func (ro *RouteOptimizer) eligibleBins(lat, lng, radiusM float64) []models.Bin {
	if radiusM <= 0 {
		return ro.registry.Eligible()
	}
	nearby, _ := ro.registry.Nearby(lat, lng, radiusM, NearbyFilter{ActiveOnly: true, NeedsCollection: true})
	out := make([]models.Bin, 0, len(nearby))
	for _, b := range nearby {
		if b.ActiveRouteID == nil {
			out = append(out, b)
		}
	}
	return out
}

// buildClusters greedily seeds clusters from the highest-priority unassigned
// bin and grows each one by the nearest eligible neighbor within the
// proximity radius of the seed, bounded by the largest still-unmatched
// truck's capacity.
func (ro *RouteOptimizer) buildClusters(pool []models.Bin, trucks []models.Truck) []*cluster {
	now := time.Now().Unix()
	remaining := make([]models.Bin, len(pool))
	copy(remaining, pool)
	sort.Slice(remaining, func(i, j int) bool { return higherPriority(remaining[i], remaining[j], now) })

	// Capacity bounds, largest first. Clusters past the truck count are
	// still computed (they just stay unassigned) against the largest
	// capacity, or unbounded when there is no truck to size against.
	capacities := make([]float64, 0, len(trucks))
	for _, t := range trucks {
		capacities = append(capacities, t.CapacityKg)
	}

	var clusters []*cluster
	for len(remaining) > 0 {
		capBound := math.MaxFloat64
		if len(clusters) < len(capacities) {
			capBound = capacities[len(clusters)]
		} else if len(capacities) > 0 {
			capBound = capacities[0]
		}

		seed := remaining[0]
		remaining = remaining[1:]
		c := &cluster{bins: []models.Bin{seed}, massKg: ro.estimatedMassKg(seed)}

		for {
			bestIdx := -1
			bestDist := math.MaxFloat64
			for i, cand := range remaining {
				if geodesicDistanceM(seed.Latitude, seed.Longitude, cand.Latitude, cand.Longitude) > ro.cfg.ClusterRadiusM {
					continue
				}
				d := c.minDistanceTo(cand)
				if d < bestDist || (d == bestDist && bestIdx >= 0 && higherPriority(cand, remaining[bestIdx], now)) {
					bestDist = d
					bestIdx = i
				}
			}
			if bestIdx < 0 {
				break
			}
			next := remaining[bestIdx]
			if c.massKg+ro.estimatedMassKg(next) > capBound {
				break
			}
			c.bins = append(c.bins, next)
			c.massKg += ro.estimatedMassKg(next)
			remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
		}

		clusters = append(clusters, c)
	}
	return clusters
}

// minDistanceTo is the candidate's distance to its nearest cluster member.
func (c *cluster) minDistanceTo(b models.Bin) float64 {
	best := math.MaxFloat64
	for _, m := range c.bins {
		if d := geodesicDistanceM(m.Latitude, m.Longitude, b.Latitude, b.Longitude); d < best {
			best = d
		}
	}
	return best
}

type assignment struct {
	cluster *cluster
	truck   models.Truck
}

// matchTrucks binds clusters to trucks: largest clusters first (to avoid
// capacity mismatches), each to the compatible truck nearest its centroid.
func (ro *RouteOptimizer) matchTrucks(clusters []*cluster, trucks []models.Truck, seedLat, seedLng float64) ([]assignment, []*cluster) {
	ordered := make([]*cluster, len(clusters))
	copy(ordered, clusters)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].massKg != ordered[j].massKg {
			return ordered[i].massKg > ordered[j].massKg
		}
		return len(ordered[i].bins) > len(ordered[j].bins)
	})

	unmatched := make([]models.Truck, len(trucks))
	copy(unmatched, trucks)

	var assignments []assignment
	var unassigned []*cluster
	for _, c := range ordered {
		cLat, cLng := c.centroid()
		bestIdx := -1
		bestDist := math.MaxFloat64
		for i, t := range unmatched {
			if t.CapacityKg < c.massKg {
				continue
			}
			tLat, tLng := seedLat, seedLng
			if t.LastLatitude != nil && t.LastLongitude != nil {
				tLat, tLng = *t.LastLatitude, *t.LastLongitude
			}
			if d := geodesicDistanceM(tLat, tLng, cLat, cLng); d < bestDist {
				bestDist = d
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			unassigned = append(unassigned, c)
			continue
		}
		assignments = append(assignments, assignment{cluster: c, truck: unmatched[bestIdx]})
		unmatched = append(unmatched[:bestIdx], unmatched[bestIdx+1:]...)
	}
	return assignments, unassigned
}

// commitAssignments claims and commits each assignment. On a lost claim it
// releases that cluster's partial claims and reports the contested bin so
// the pass can recompute; already-committed routes stand.
func (ro *RouteOptimizer) commitAssignments(assignments []assignment, seedLat, seedLng float64) (string, []models.Route) {
	var committed []models.Route
	for _, a := range assignments {
		routeID := uuid.New().String()
		claimed := make([]string, 0, len(a.cluster.bins))
		lost := ""
		for _, bin := range a.cluster.bins {
			if !ro.registry.Claim(bin.ID, routeID) {
				lost = bin.ID
				break
			}
			claimed = append(claimed, bin.ID)
		}
		if lost != "" {
			for _, id := range claimed {
				ro.registry.Release(id, routeID)
			}
			return lost, committed
		}

		startLat, startLng := ro.truckStart(a.truck)
		if a.truck.LastLatitude == nil {
			startLat, startLng = seedLat, seedLng
		}
		route := ro.buildRoute(routeID, a.cluster, a.truck, startLat, startLng, nil)
		if err := ro.lifecycle.Commit(route); err != nil {
			log.Printf("⚠️  [OPTIMIZER] Failed to commit route %s: %v", routeID, err)
			continue
		}
		committed = append(committed, *route)
	}
	return "", committed
}

// buildRoute sequences a claimed cluster into stops by a nearest-neighbor
// walk from the start point, ties broken by priority.
func (ro *RouteOptimizer) buildRoute(routeID string, c *cluster, truck models.Truck, startLat, startLng float64, scheduledFor *int64) *models.Route {
	now := time.Now().Unix()
	remaining := make([]models.Bin, len(c.bins))
	copy(remaining, c.bins)

	curLat, curLng := startLat, startLng
	totalKm := 0.0
	stops := make([]models.RouteStop, 0, len(remaining))
	for len(remaining) > 0 {
		bestIdx := 0
		bestDist := math.MaxFloat64
		for i, bin := range remaining {
			d := geodesicDistanceM(curLat, curLng, bin.Latitude, bin.Longitude)
			if d < bestDist || (d == bestDist && higherPriority(bin, remaining[bestIdx], now)) {
				bestDist = d
				bestIdx = i
			}
		}
		next := remaining[bestIdx]
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)

		totalKm += bestDist / 1000
		stops = append(stops, models.RouteStop{
			RouteID:         routeID,
			BinID:           next.ID,
			SequenceNumber:  len(stops) + 1,
			Latitude:        next.Latitude,
			Longitude:       next.Longitude,
			EstimatedMassKg: ro.estimatedMassKg(next),
			CreatedAt:       now,
		})
		curLat, curLng = next.Latitude, next.Longitude
	}

	return &models.Route{
		ID:                routeID,
		DriverID:          truck.DriverID,
		TruckID:           &truck.ID,
		Status:            models.RouteAssigned,
		ScheduledFor:      scheduledFor,
		SeedLatitude:      startLat,
		SeedLongitude:     startLng,
		PlannedDistanceKm: totalKm,
		Stops:             stops,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// truckStart is the truck's last known position, falling back to the depot.
func (ro *RouteOptimizer) truckStart(t models.Truck) (float64, float64) {
	if t.LastLatitude != nil && t.LastLongitude != nil {
		return *t.LastLatitude, *t.LastLongitude
	}
	return ro.cfg.DepotLatitude, ro.cfg.DepotLongitude
}
