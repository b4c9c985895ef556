package services

import (
	"sync"
	"testing"
	"time"

	"wasteroute-backend/internal/models"

	"github.com/stretchr/testify/require"
)

func newTestOptimizer(e *testEngine) *RouteOptimizer {
	return NewRouteOptimizer(OptimizerConfig{
		ClusterRadiusM:  2000,
		DensityKgPerL:   0.25,
		MaxClaimRetries: 3,
		DepotLatitude:   testLat,
		DepotLongitude:  testLng,
	}, e.registry, e.tracker, e.lifecycle)
}

// eligibleBin is a full, unclaimed bin reported reportedAgo seconds ago.
func eligibleBin(id string, lat, lng, capacityL float64, reportedAgo int64) models.Bin {
	reported := time.Now().Unix() - reportedAgo
	b := models.Bin{
		ID:             id,
		OwnerID:        "owner-1",
		CapacityLiters: capacityL,
		Category:       models.WasteGeneral,
		Latitude:       lat,
		Longitude:      lng,
		FillLevel:      models.FillFull,
		LastReported:   &reported,
		Active:         true,
		CreatedAt:      reported - 3600,
		UpdatedAt:      reported,
	}
	b.NeedsCollection = b.ComputeNeedsCollection()
	return b
}

func TestRunWithNoEligibleBins(t *testing.T) {
	e := newTestEngine()
	e.tracker.Load([]models.Truck{testTruck("truck-1", 1000, "driver-1")}, nil)
	opt := newTestOptimizer(e)

	result, err := opt.Run(nil, 0)

	require.NoError(t, err)
	require.Empty(t, result.Routes)
	require.Zero(t, result.UnassignedClusters)
	require.Zero(t, result.Conflicts)
}

func TestRunWithNoTrucksLeavesClusterUnassigned(t *testing.T) {
	e := newTestEngine()
	e.registry.Load([]models.Bin{
		eligibleBin("bin-1", testLat, testLng, 200, 300),
		eligibleBin("bin-2", testLat+0.001, testLng, 200, 200),
		eligibleBin("bin-3", testLat+0.002, testLng, 200, 100),
	})
	opt := newTestOptimizer(e)

	result, err := opt.Run(nil, 0)

	require.NoError(t, err)
	require.Empty(t, result.Routes)
	require.Equal(t, 1, result.UnassignedClusters)
	require.Equal(t, 3, result.RemainingEligible)
	require.Empty(t, e.routeStore.inserted)
}

func TestRunBoundsClusterByTruckCapacity(t *testing.T) {
	e := newTestEngine()
	// Five colocated 200 L bins estimate 50 kg each; a 160 kg truck fits
	// three. The oldest reports win the spots.
	e.registry.Load([]models.Bin{
		eligibleBin("bin-old-1", testLat, testLng, 200, 500),
		eligibleBin("bin-old-2", testLat, testLng, 200, 400),
		eligibleBin("bin-old-3", testLat, testLng, 200, 300),
		eligibleBin("bin-new-1", testLat, testLng, 200, 200),
		eligibleBin("bin-new-2", testLat, testLng, 200, 100),
	})
	e.tracker.Load([]models.Truck{testTruck("truck-1", 160, "driver-1")}, nil)
	opt := newTestOptimizer(e)

	result, err := opt.Run(nil, 0)

	require.NoError(t, err)
	require.Len(t, result.Routes, 1)
	route := result.Routes[0]
	require.Len(t, route.Stops, 3)
	require.Equal(t, "bin-old-1", route.Stops[0].BinID)
	require.Equal(t, "bin-old-2", route.Stops[1].BinID)
	require.Equal(t, "bin-old-3", route.Stops[2].BinID)
	for _, stop := range route.Stops {
		require.Equal(t, 50.0, stop.EstimatedMassKg)
	}

	// The leftover pair forms a second cluster with no truck to serve it.
	require.Equal(t, 1, result.UnassignedClusters)
	require.Equal(t, 2, result.RemainingEligible)

	truck, err := e.tracker.Truck("truck-1")
	require.NoError(t, err)
	require.Equal(t, models.TruckOnRoute, truck.Status)
}

func TestRunSequencesStopsByNearestNeighbor(t *testing.T) {
	e := newTestEngine()
	e.registry.Load([]models.Bin{
		eligibleBin("bin-far", testLat+0.003, testLng, 200, 300),
		eligibleBin("bin-near", testLat+0.001, testLng, 200, 200),
		eligibleBin("bin-mid", testLat+0.002, testLng, 200, 100),
	})
	e.tracker.Load([]models.Truck{testTruck("truck-1", 1000, "driver-1")}, nil)
	opt := newTestOptimizer(e)

	result, err := opt.Run(nil, 0)

	require.NoError(t, err)
	require.Len(t, result.Routes, 1)
	route := result.Routes[0]
	require.Equal(t, models.RouteAssigned, route.Status)
	require.Equal(t, "driver-1", *route.DriverID)
	require.Equal(t, "truck-1", *route.TruckID)

	// The walk starts at the seed, so the nearest bin comes first.
	require.Len(t, route.Stops, 3)
	require.Equal(t, "bin-near", route.Stops[0].BinID)
	require.Equal(t, "bin-mid", route.Stops[1].BinID)
	require.Equal(t, "bin-far", route.Stops[2].BinID)
	for i, stop := range route.Stops {
		require.Equal(t, i+1, stop.SequenceNumber)
	}
	// Three ~111 m legs north.
	require.InDelta(t, 0.33, route.PlannedDistanceKm, 0.03)
}

func TestRunRadiusRestrictsEligibleSet(t *testing.T) {
	e := newTestEngine()
	e.registry.Load([]models.Bin{
		eligibleBin("bin-near", testLat+0.001, testLng, 200, 200),
		eligibleBin("bin-far", testLat+0.05, testLng, 200, 300),
	})
	e.tracker.Load([]models.Truck{testTruck("truck-1", 1000, "driver-1")}, nil)
	opt := newTestOptimizer(e)

	result, err := opt.Run(&models.LatLng{Latitude: testLat, Longitude: testLng}, 1000)

	require.NoError(t, err)
	require.Len(t, result.Routes, 1)
	require.Len(t, result.Routes[0].Stops, 1)
	require.Equal(t, "bin-near", result.Routes[0].Stops[0].BinID)
	require.Equal(t, 1, result.RemainingEligible)
}

func TestRunSplitsDistantGroupsAcrossTrucks(t *testing.T) {
	e := newTestEngine()
	// Two groups ~11 km apart, far beyond the cluster radius. The north
	// group is heavier so it is matched first, to the truck parked there.
	e.registry.Load([]models.Bin{
		eligibleBin("bin-south", testLat, testLng, 200, 300),
		eligibleBin("bin-north", testLat+0.1, testLng, 400, 200),
	})
	northTruck := testTruck("truck-north", 1000, "driver-north")
	northLat, northLng := testLat+0.1, testLng
	northSeen := time.Now().Unix()
	northTruck.LastLatitude = &northLat
	northTruck.LastLongitude = &northLng
	northTruck.LastSeenAt = &northSeen
	e.tracker.Load([]models.Truck{
		testTruck("truck-south", 1000, "driver-south"),
		northTruck,
	}, nil)
	opt := newTestOptimizer(e)

	result, err := opt.Run(nil, 0)

	require.NoError(t, err)
	require.Len(t, result.Routes, 2)
	require.Zero(t, result.UnassignedClusters)
	require.Zero(t, result.RemainingEligible)

	byBin := make(map[string]string)
	for _, route := range result.Routes {
		require.Len(t, route.Stops, 1)
		byBin[route.Stops[0].BinID] = *route.TruckID
	}
	require.Equal(t, "truck-north", byBin["bin-north"])
	require.Equal(t, "truck-south", byBin["bin-south"])
}

func TestRunClaimsEveryRoutedBin(t *testing.T) {
	e := newTestEngine()
	e.registry.Load([]models.Bin{
		eligibleBin("bin-1", testLat, testLng, 200, 300),
		eligibleBin("bin-2", testLat+0.001, testLng, 200, 200),
	})
	e.tracker.Load([]models.Truck{testTruck("truck-1", 1000, "driver-1")}, nil)
	opt := newTestOptimizer(e)

	result, err := opt.Run(nil, 0)

	require.NoError(t, err)
	require.Len(t, result.Routes, 1)
	routeID := result.Routes[0].ID
	for _, id := range []string{"bin-1", "bin-2"} {
		bin, err := e.registry.Get(id)
		require.NoError(t, err)
		require.NotNil(t, bin.ActiveRouteID)
		require.Equal(t, routeID, *bin.ActiveRouteID)
	}

	// A second pass finds nothing left to do.
	again, err := opt.Run(nil, 0)
	require.NoError(t, err)
	require.Empty(t, again.Routes)
}

func TestRunRecoversFromLostClaim(t *testing.T) {
	e := newTestEngine()
	// Two groups far apart. The heavier south pair is committed first; a
	// store hook deactivates bin-north-old while that commit is in flight,
	// so the north cluster's claim is lost mid-pass.
	e.registry.Load([]models.Bin{
		eligibleBin("bin-south-1", testLat, testLng, 400, 500),
		eligibleBin("bin-south-2", testLat+0.0005, testLng, 400, 400),
		eligibleBin("bin-north-old", testLat+0.05, testLng, 200, 300),
		eligibleBin("bin-north-new", testLat+0.0505, testLng, 200, 200),
	})
	northTruck := testTruck("truck-north", 800, "driver-north")
	northLat, northLng := testLat+0.05, testLng
	northTruck.LastLatitude = &northLat
	northTruck.LastLongitude = &northLng
	e.tracker.Load([]models.Truck{
		testTruck("truck-south", 1000, "driver-south"),
		northTruck,
	}, nil)
	e.routeStore.onInsert = func(*models.Route) {
		e.registry.Deactivate("bin-north-old")
	}
	opt := newTestOptimizer(e)

	result, err := opt.Run(nil, 0)

	require.NoError(t, err)
	require.Len(t, result.Routes, 2)
	require.Zero(t, result.Conflicts)
	require.Zero(t, result.UnassignedClusters)

	// The recompute sees only the still-unclaimed bin and the still-free
	// truck: no committed bin is re-contested and no truck serves two
	// routes in one pass.
	seenTrucks := make(map[string]int)
	for _, route := range result.Routes {
		seenTrucks[*route.TruckID]++
		for _, stop := range route.Stops {
			require.NotEqual(t, "bin-north-old", stop.BinID)
		}
	}
	require.Len(t, seenTrucks, 2)
	require.Equal(t, 1, seenTrucks["truck-south"])
	require.Equal(t, 1, seenTrucks["truck-north"])

	for _, id := range []string{"truck-south", "truck-north"} {
		truck, err := e.tracker.Truck(id)
		require.NoError(t, err)
		require.Equal(t, models.TruckOnRoute, truck.Status)
	}
	require.Zero(t, result.RemainingEligible)
}

func TestConcurrentRunsProduceDisjointRoutes(t *testing.T) {
	e := newTestEngine()
	e.registry.Load([]models.Bin{
		eligibleBin("bin-south", testLat, testLng, 200, 300),
		eligibleBin("bin-north", testLat+0.05, testLng, 200, 200),
	})
	northTruck := testTruck("truck-north", 1000, "driver-north")
	northLat, northLng := testLat+0.05, testLng
	northTruck.LastLatitude = &northLat
	northTruck.LastLongitude = &northLng
	e.tracker.Load([]models.Truck{
		testTruck("truck-south", 1000, "driver-south"),
		northTruck,
	}, nil)
	opt := newTestOptimizer(e)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var routes []models.Route
	var errs []error
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := opt.Run(nil, 0)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			routes = append(routes, result.Routes...)
		}()
	}
	wg.Wait()
	require.Empty(t, errs)

	// Both passes together route each bin and each truck exactly once,
	// whichever pass wins the serialization point.
	require.Len(t, routes, 2)
	seenBins := make(map[string]int)
	seenTrucks := make(map[string]int)
	for _, route := range routes {
		seenTrucks[*route.TruckID]++
		for _, stop := range route.Stops {
			seenBins[stop.BinID]++
		}
	}
	require.Equal(t, map[string]int{"bin-south": 1, "bin-north": 1}, seenBins)
	require.Equal(t, map[string]int{"truck-south": 1, "truck-north": 1}, seenTrucks)
}

func TestAssignManual(t *testing.T) {
	e := newTestEngine()
	e.registry.Load([]models.Bin{
		eligibleBin("bin-1", testLat, testLng, 200, 300),
		eligibleBin("bin-2", testLat+0.001, testLng, 200, 200),
	})
	e.tracker.Load([]models.Truck{testTruck("truck-1", 1000, "driver-1")}, nil)
	opt := newTestOptimizer(e)

	scheduled := time.Now().Unix() + 3600
	route, err := opt.AssignManual(models.AssignRouteRequest{
		TruckID:      "truck-1",
		BinIDs:       []string{"bin-1", "bin-2"},
		ScheduledFor: &scheduled,
	})

	require.NoError(t, err)
	require.Equal(t, models.RouteAssigned, route.Status)
	require.Equal(t, "driver-1", *route.DriverID)
	require.Equal(t, scheduled, *route.ScheduledFor)
	require.Len(t, route.Stops, 2)
	require.Len(t, e.routeStore.inserted, 1)

	truck, err := e.tracker.Truck("truck-1")
	require.NoError(t, err)
	require.Equal(t, models.TruckOnRoute, truck.Status)
}

func TestAssignManualCapacityExceeded(t *testing.T) {
	e := newTestEngine()
	// Two 400 L bins estimate 200 kg total against a 150 kg truck.
	e.registry.Load([]models.Bin{
		eligibleBin("bin-1", testLat, testLng, 400, 300),
		eligibleBin("bin-2", testLat+0.001, testLng, 400, 200),
	})
	e.tracker.Load([]models.Truck{testTruck("truck-1", 150, "driver-1")}, nil)
	opt := newTestOptimizer(e)

	_, err := opt.AssignManual(models.AssignRouteRequest{
		TruckID: "truck-1",
		BinIDs:  []string{"bin-1", "bin-2"},
	})

	require.ErrorIs(t, err, ErrCapacityExceeded)
	require.Len(t, e.registry.Eligible(), 2)
	require.Empty(t, e.routeStore.inserted)
}

func TestAssignManualSchedulingConflict(t *testing.T) {
	e := newTestEngine()
	e.registry.Load([]models.Bin{
		eligibleBin("bin-1", testLat, testLng, 200, 300),
		eligibleBin("bin-2", testLat+0.001, testLng, 200, 200),
	})
	e.tracker.Load([]models.Truck{testTruck("truck-1", 1000, "driver-1")}, nil)
	require.True(t, e.registry.Claim("bin-2", "route-existing"))
	opt := newTestOptimizer(e)

	_, err := opt.AssignManual(models.AssignRouteRequest{
		TruckID: "truck-1",
		BinIDs:  []string{"bin-1", "bin-2"},
	})

	require.ErrorIs(t, err, ErrSchedulingConflict)

	// The partial claim on bin-1 is rolled back; bin-2 keeps its route.
	bin1, err := e.registry.Get("bin-1")
	require.NoError(t, err)
	require.Nil(t, bin1.ActiveRouteID)
	bin2, err := e.registry.Get("bin-2")
	require.NoError(t, err)
	require.Equal(t, "route-existing", *bin2.ActiveRouteID)
}

func TestAssignManualTruckNotReady(t *testing.T) {
	e := newTestEngine()
	e.registry.Load([]models.Bin{eligibleBin("bin-1", testLat, testLng, 200, 300)})
	busy := testTruck("truck-busy", 1000, "driver-2")
	busy.Status = models.TruckOnRoute
	e.tracker.Load([]models.Truck{testTruck("truck-unmanned", 1000, ""), busy}, nil)
	opt := newTestOptimizer(e)

	_, err := opt.AssignManual(models.AssignRouteRequest{TruckID: "truck-unmanned", BinIDs: []string{"bin-1"}})
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = opt.AssignManual(models.AssignRouteRequest{TruckID: "truck-busy", BinIDs: []string{"bin-1"}})
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = opt.AssignManual(models.AssignRouteRequest{TruckID: "truck-missing", BinIDs: []string{"bin-1"}})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAssignManualUnknownBin(t *testing.T) {
	e := newTestEngine()
	e.tracker.Load([]models.Truck{testTruck("truck-1", 1000, "driver-1")}, nil)
	opt := newTestOptimizer(e)

	_, err := opt.AssignManual(models.AssignRouteRequest{TruckID: "truck-1", BinIDs: []string{"bin-missing"}})
	require.ErrorIs(t, err, ErrNotFound)
}
