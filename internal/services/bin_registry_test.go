package services

import (
	"testing"
	"time"

	"wasteroute-backend/internal/models"

	"github.com/stretchr/testify/require"
)

func newTestRegistry() (*BinRegistry, *fakeBinStore, *EventBus) {
	store := &fakeBinStore{}
	events := NewEventBus()
	return NewBinRegistry(store, NewSpatialIndex(), events), store, events
}

func testBin(id string, level models.FillLevel) models.Bin {
	b := models.Bin{
		ID:             id,
		OwnerID:        "owner-1",
		CapacityLiters: 240,
		Category:       models.WasteGeneral,
		Latitude:       testLat,
		Longitude:      testLng,
		FillLevel:      level,
		Active:         true,
		CreatedAt:      time.Now().Unix() - 3600,
		UpdatedAt:      time.Now().Unix() - 3600,
	}
	b.NeedsCollection = b.ComputeNeedsCollection()
	return b
}

func TestRegisterBin(t *testing.T) {
	registry, store, _ := newTestRegistry()

	bin, err := registry.Register(models.CreateBinRequest{
		OwnerID:        "owner-1",
		CapacityLiters: 240,
		Category:       models.WasteRecyclable,
		Latitude:       testLat,
		Longitude:      testLng,
	})

	require.NoError(t, err)
	require.Equal(t, models.FillEmpty, bin.FillLevel)
	require.False(t, bin.NeedsCollection)
	require.True(t, bin.Active)
	require.Len(t, store.insertedBins, 1)
}

func TestRegisterBinUnknownCategory(t *testing.T) {
	registry, store, _ := newTestRegistry()

	_, err := registry.Register(models.CreateBinRequest{
		OwnerID:        "owner-1",
		CapacityLiters: 240,
		Category:       "plasma",
		Latitude:       testLat,
		Longitude:      testLng,
	})

	require.Error(t, err)
	require.Empty(t, store.insertedBins)
}

func TestReportRaisesFillLevel(t *testing.T) {
	registry, store, _ := newTestRegistry()
	registry.Load([]models.Bin{testBin("bin-1", models.FillEmpty)})

	now := time.Now().Unix()
	report, err := registry.Report("bin-1", models.FillFull, "reporter-1", now)
	require.NoError(t, err)
	require.Equal(t, models.FillFull, report.FillLevel)

	bin, err := registry.Get("bin-1")
	require.NoError(t, err)
	require.Equal(t, models.FillFull, bin.FillLevel)
	require.True(t, bin.NeedsCollection)
	require.Equal(t, now, *bin.LastReported)
	require.Len(t, store.reports, 1)
}

func TestReportNeverLowersFillLevel(t *testing.T) {
	registry, store, _ := newTestRegistry()
	registry.Load([]models.Bin{testBin("bin-1", models.FillEmpty)})

	now := time.Now().Unix()
	_, err := registry.Report("bin-1", models.FillFull, "reporter-1", now)
	require.NoError(t, err)

	// A lower reading is kept for audit but does not lower the level.
	_, err = registry.Report("bin-1", models.FillQuarter, "reporter-1", now+60)
	require.NoError(t, err)

	bin, err := registry.Get("bin-1")
	require.NoError(t, err)
	require.Equal(t, models.FillFull, bin.FillLevel)
	require.True(t, bin.NeedsCollection)
	require.Equal(t, now+60, *bin.LastReported)
	require.Len(t, store.reports, 2)
}

func TestReportDuplicateTimestamp(t *testing.T) {
	registry, store, _ := newTestRegistry()
	registry.Load([]models.Bin{testBin("bin-1", models.FillEmpty)})

	now := time.Now().Unix()
	_, err := registry.Report("bin-1", models.FillHalf, "reporter-1", now)
	require.NoError(t, err)

	_, err = registry.Report("bin-1", models.FillFull, "reporter-1", now)
	require.ErrorIs(t, err, ErrDuplicateReport)
	require.Len(t, store.reports, 1)

	bin, err := registry.Get("bin-1")
	require.NoError(t, err)
	require.Equal(t, models.FillHalf, bin.FillLevel)
}

func TestLoadReportedPrimesDuplicateDetection(t *testing.T) {
	registry, _, _ := newTestRegistry()
	registry.Load([]models.Bin{testBin("bin-1", models.FillHalf)})

	seen := int64(1700000000)
	registry.LoadReported(map[string][]int64{
		"bin-1":       {seen},
		"bin-unknown": {seen},
	})

	_, err := registry.Report("bin-1", models.FillFull, "reporter-1", seen)
	require.ErrorIs(t, err, ErrDuplicateReport)

	_, err = registry.Report("bin-1", models.FillFull, "reporter-1", seen+1)
	require.NoError(t, err)
}

func TestReportUnknownOrInactiveBin(t *testing.T) {
	registry, _, _ := newTestRegistry()
	inactive := testBin("bin-off", models.FillEmpty)
	inactive.Active = false
	registry.Load([]models.Bin{inactive})

	_, err := registry.Report("bin-missing", models.FillFull, "reporter-1", time.Now().Unix())
	require.ErrorIs(t, err, ErrNotFound)

	_, err = registry.Report("bin-off", models.FillFull, "reporter-1", time.Now().Unix())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReportEmitsEligibleEventOnce(t *testing.T) {
	registry, _, events := newTestRegistry()
	go events.Run()
	defer events.Stop()

	eligible := make(chan Event, 4)
	events.Subscribe(EventBinEligible, func(evt Event) { eligible <- evt })

	registry.Load([]models.Bin{testBin("bin-1", models.FillEmpty)})

	now := time.Now().Unix()
	_, err := registry.Report("bin-1", models.FillHalf, "reporter-1", now)
	require.NoError(t, err)

	// Crossing the threshold emits exactly one event.
	_, err = registry.Report("bin-1", models.FillThreeQuarters, "reporter-1", now+60)
	require.NoError(t, err)

	select {
	case evt := <-eligible:
		require.Equal(t, "bin-1", evt.Bin.ID)
		require.True(t, evt.Bin.NeedsCollection)
	case <-time.After(time.Second):
		t.Fatal("expected a bin-eligible event")
	}

	// Staying above the threshold does not re-emit.
	_, err = registry.Report("bin-1", models.FillFull, "reporter-1", now+120)
	require.NoError(t, err)

	select {
	case <-eligible:
		t.Fatal("unexpected second bin-eligible event")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMarkCollectedResetsBin(t *testing.T) {
	registry, _, _ := newTestRegistry()
	registry.Load([]models.Bin{testBin("bin-1", models.FillFull)})

	require.NoError(t, registry.MarkCollected("bin-1"))

	bin, err := registry.Get("bin-1")
	require.NoError(t, err)
	require.Equal(t, models.FillEmpty, bin.FillLevel)
	require.False(t, bin.NeedsCollection)

	// A fresh report can make the bin eligible again.
	_, err = registry.Report("bin-1", models.FillFull, "reporter-1", time.Now().Unix()+300)
	require.NoError(t, err)
	bin, err = registry.Get("bin-1")
	require.NoError(t, err)
	require.True(t, bin.NeedsCollection)
}

func TestClaimAndRelease(t *testing.T) {
	registry, _, _ := newTestRegistry()
	registry.Load([]models.Bin{
		testBin("bin-full", models.FillFull),
		testBin("bin-empty", models.FillEmpty),
	})

	// Only eligible bins can be claimed.
	require.False(t, registry.Claim("bin-empty", "route-1"))
	require.False(t, registry.Claim("bin-missing", "route-1"))

	require.True(t, registry.Claim("bin-full", "route-1"))
	// Re-claiming under the same route is idempotent; another route loses.
	require.True(t, registry.Claim("bin-full", "route-1"))
	require.False(t, registry.Claim("bin-full", "route-2"))

	// A release by the wrong route is a no-op.
	registry.Release("bin-full", "route-2")
	require.False(t, registry.Claim("bin-full", "route-2"))

	registry.Release("bin-full", "route-1")
	require.True(t, registry.Claim("bin-full", "route-2"))
}

func TestEligibleExcludesClaimedAndInactive(t *testing.T) {
	registry, _, _ := newTestRegistry()
	claimed := testBin("bin-claimed", models.FillFull)
	routeID := "route-1"
	claimed.ActiveRouteID = &routeID
	inactive := testBin("bin-inactive", models.FillFull)
	inactive.Active = false
	inactive.NeedsCollection = inactive.ComputeNeedsCollection()
	registry.Load([]models.Bin{
		testBin("bin-open", models.FillThreeQuarters),
		claimed,
		inactive,
	})

	eligible := registry.Eligible()
	require.Len(t, eligible, 1)
	require.Equal(t, "bin-open", eligible[0].ID)

	// Urgent still lists the claimed bin; a route is simply on the way.
	urgent := registry.Urgent()
	require.Len(t, urgent, 2)
}

func TestDeactivate(t *testing.T) {
	registry, _, _ := newTestRegistry()
	registry.Load([]models.Bin{testBin("bin-1", models.FillFull)})

	require.NoError(t, registry.Deactivate("bin-1"))

	bin, err := registry.Get("bin-1")
	require.NoError(t, err)
	require.False(t, bin.Active)
	require.False(t, bin.NeedsCollection)
	require.Empty(t, registry.Eligible())

	_, err = registry.Report("bin-1", models.FillFull, "reporter-1", time.Now().Unix())
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, registry.Deactivate("bin-1"), ErrNotFound)
}

func TestNearbyResolvesBins(t *testing.T) {
	registry, _, _ := newTestRegistry()
	near := testBin("bin-near", models.FillFull)
	far := testBin("bin-far", models.FillFull)
	far.Latitude = testLat + 0.05
	registry.Load([]models.Bin{near, far})

	bins, distances := registry.Nearby(testLat, testLng, 1000, NearbyFilter{ActiveOnly: true, NeedsCollection: true})

	require.Len(t, bins, 1)
	require.Len(t, distances, 1)
	require.Equal(t, "bin-near", bins[0].ID)
	require.LessOrEqual(t, distances[0], 1000.0)
}
