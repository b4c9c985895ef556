package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// Downtown San Jose, the reference point for all index tests.
const (
	testLat = 37.3352
	testLng = -121.8931
)

func TestNearbyRadiusIsInclusive(t *testing.T) {
	idx := NewSpatialIndex()
	idx.Upsert("bin-near", testLat+0.001, testLng, true, true)
	idx.Upsert("bin-far", testLat+0.003, testLng, true, true)

	// Query with the exact distance to the near bin so it sits on the
	// boundary.
	radius := geodesicDistanceM(testLat, testLng, testLat+0.001, testLng)
	hits := idx.Nearby(testLat, testLng, radius, NearbyFilter{})

	require.Len(t, hits, 1)
	require.Equal(t, "bin-near", hits[0].BinID)
	require.Equal(t, radius, hits[0].DistanceM)
}

func TestNearbyOrderedByDistanceThenID(t *testing.T) {
	idx := NewSpatialIndex()
	idx.Upsert("bin-c", testLat+0.002, testLng, true, true)
	idx.Upsert("bin-a", testLat+0.001, testLng, true, true)
	// Two bins at the same spot tie on distance and fall back to ID order.
	idx.Upsert("bin-z", testLat, testLng, true, true)
	idx.Upsert("bin-b", testLat, testLng, true, true)

	hits := idx.Nearby(testLat, testLng, 1000, NearbyFilter{})

	require.Len(t, hits, 4)
	require.Equal(t, "bin-b", hits[0].BinID)
	require.Equal(t, "bin-z", hits[1].BinID)
	require.Equal(t, "bin-a", hits[2].BinID)
	require.Equal(t, "bin-c", hits[3].BinID)
}

func TestNearbyFilters(t *testing.T) {
	idx := NewSpatialIndex()
	idx.Upsert("bin-active-full", testLat, testLng, true, true)
	idx.Upsert("bin-active-empty", testLat+0.001, testLng, true, false)
	idx.Upsert("bin-inactive", testLat+0.002, testLng, false, true)

	all := idx.Nearby(testLat, testLng, 1000, NearbyFilter{})
	require.Len(t, all, 3)

	active := idx.Nearby(testLat, testLng, 1000, NearbyFilter{ActiveOnly: true})
	require.Len(t, active, 2)

	needing := idx.Nearby(testLat, testLng, 1000, NearbyFilter{ActiveOnly: true, NeedsCollection: true})
	require.Len(t, needing, 1)
	require.Equal(t, "bin-active-full", needing[0].BinID)
}

func TestUpsertMovesBinBetweenCells(t *testing.T) {
	idx := NewSpatialIndex()
	idx.Upsert("bin-1", testLat, testLng, true, true)

	// Move the bin ~11 km north, well outside the original cell.
	idx.Upsert("bin-1", testLat+0.1, testLng, true, true)

	require.Empty(t, idx.Nearby(testLat, testLng, 500, NearbyFilter{}))
	hits := idx.Nearby(testLat+0.1, testLng, 500, NearbyFilter{})
	require.Len(t, hits, 1)
	require.Equal(t, 1, idx.Size())
}

func TestRemove(t *testing.T) {
	idx := NewSpatialIndex()
	idx.Upsert("bin-1", testLat, testLng, true, true)
	idx.Upsert("bin-2", testLat+0.001, testLng, true, true)

	idx.Remove("bin-1")
	idx.Remove("bin-missing")

	hits := idx.Nearby(testLat, testLng, 1000, NearbyFilter{})
	require.Len(t, hits, 1)
	require.Equal(t, "bin-2", hits[0].BinID)
	require.Equal(t, 1, idx.Size())
}

func TestNearbyLargeRadiusSpansCells(t *testing.T) {
	idx := NewSpatialIndex()
	// A spread of bins out to ~22 km, far beyond one precision-6 cell.
	for i := 0; i < 5; i++ {
		idx.Upsert(fmt.Sprintf("bin-%d", i), testLat+float64(i)*0.05, testLng, true, true)
	}

	hits := idx.Nearby(testLat, testLng, 25000, NearbyFilter{})

	require.Len(t, hits, 5)
	for i := 1; i < len(hits); i++ {
		require.LessOrEqual(t, hits[i-1].DistanceM, hits[i].DistanceM)
	}
}
