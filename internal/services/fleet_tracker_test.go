package services

import (
	"fmt"
	"testing"
	"time"

	"wasteroute-backend/internal/models"

	"github.com/stretchr/testify/require"
)

func newTestTracker(historyLimit int) (*FleetTracker, *fakeFleetStore) {
	store := &fakeFleetStore{}
	return NewFleetTracker(store, historyLimit, 10, 300), store
}

func testTruck(id string, capacityKg float64, driverID string) models.Truck {
	truck := models.Truck{
		ID:           id,
		LicensePlate: "WR-" + id,
		CapacityKg:   capacityKg,
		Status:       models.TruckAvailable,
		CreatedAt:    time.Now().Unix(),
		UpdatedAt:    time.Now().Unix(),
	}
	if driverID != "" {
		truck.DriverID = &driverID
	}
	return truck
}

func testDriver(id string, truckID string) models.Driver {
	d := models.Driver{
		ID:              id,
		Name:            "Driver " + id,
		OnDuty:          true,
		LocationSharing: true,
		SampleIntervalS: 30,
		CreatedAt:       time.Now().Unix(),
		UpdatedAt:       time.Now().Unix(),
	}
	if truckID != "" {
		d.TruckID = &truckID
	}
	return d
}

func TestIngestUnknownDriver(t *testing.T) {
	tracker, _ := newTestTracker(100)

	_, err := tracker.Ingest("driver-ghost", models.LocationUpdateRequest{Latitude: testLat, Longitude: testLng})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestIngestSharingDisabled(t *testing.T) {
	tracker, store := newTestTracker(100)
	d := testDriver("driver-1", "")
	d.LocationSharing = false
	tracker.Load(nil, []models.Driver{d})

	_, err := tracker.Ingest("driver-1", models.LocationUpdateRequest{Latitude: testLat, Longitude: testLng})
	require.ErrorIs(t, err, ErrPermissionDenied)
	require.Equal(t, 0, store.sampleCount())
}

func TestIngestRateLimitsStorage(t *testing.T) {
	tracker, store := newTestTracker(100)
	tracker.Load(
		[]models.Truck{testTruck("truck-1", 1000, "driver-1")},
		[]models.Driver{testDriver("driver-1", "truck-1")},
	)

	base := time.Now().Unix()
	// Interval 30s, so samples closer than 15s to the last stored one are
	// not persisted.
	_, err := tracker.Ingest("driver-1", models.LocationUpdateRequest{Latitude: testLat, Longitude: testLng, RecordedAt: base})
	require.NoError(t, err)
	_, err = tracker.Ingest("driver-1", models.LocationUpdateRequest{Latitude: testLat + 0.001, Longitude: testLng, RecordedAt: base + 5})
	require.NoError(t, err)
	_, err = tracker.Ingest("driver-1", models.LocationUpdateRequest{Latitude: testLat + 0.002, Longitude: testLng, RecordedAt: base + 20})
	require.NoError(t, err)

	require.Equal(t, 2, store.sampleCount())
	require.Len(t, tracker.Trail("driver-1"), 2)

	// The truck position tracks every sample, stored or not.
	truck, err := tracker.Truck("truck-1")
	require.NoError(t, err)
	require.Equal(t, testLat+0.002, *truck.LastLatitude)
	require.Equal(t, base+20, *truck.LastSeenAt)
}

func TestTrailBounded(t *testing.T) {
	tracker, _ := newTestTracker(3)
	tracker.Load(nil, []models.Driver{testDriver("driver-1", "")})

	base := time.Now().Unix()
	for i := 0; i < 5; i++ {
		_, err := tracker.Ingest("driver-1", models.LocationUpdateRequest{
			Latitude:   testLat + float64(i)*0.001,
			Longitude:  testLng,
			RecordedAt: base + int64(i)*30,
		})
		require.NoError(t, err)
	}

	trail := tracker.Trail("driver-1")
	require.Len(t, trail, 3)
	// Oldest entries are evicted; the newest sample is last.
	require.Equal(t, base+60, trail[0].RecordedAt)
	require.Equal(t, base+120, trail[2].RecordedAt)
}

func TestAssignDriverKeepsPairingExclusive(t *testing.T) {
	tracker, _ := newTestTracker(100)
	tracker.Load(
		[]models.Truck{testTruck("truck-1", 1000, ""), testTruck("truck-2", 800, "")},
		[]models.Driver{testDriver("driver-1", ""), testDriver("driver-2", "")},
	)

	require.NoError(t, tracker.AssignDriver("truck-1", "driver-1"))

	// Moving the driver to another truck dissolves the old pairing.
	require.NoError(t, tracker.AssignDriver("truck-2", "driver-1"))
	truck1, err := tracker.Truck("truck-1")
	require.NoError(t, err)
	require.Nil(t, truck1.DriverID)
	truck2, err := tracker.Truck("truck-2")
	require.NoError(t, err)
	require.Equal(t, "driver-1", *truck2.DriverID)

	// Giving the truck a new driver frees the previous one.
	require.NoError(t, tracker.AssignDriver("truck-2", "driver-2"))
	driver1, err := tracker.Driver("driver-1")
	require.NoError(t, err)
	require.Nil(t, driver1.TruckID)
	driver2, err := tracker.Driver("driver-2")
	require.NoError(t, err)
	require.Equal(t, "truck-2", *driver2.TruckID)

	require.ErrorIs(t, tracker.AssignDriver("truck-missing", "driver-1"), ErrNotFound)
	require.ErrorIs(t, tracker.AssignDriver("truck-1", "driver-missing"), ErrNotFound)
}

func TestSetSampleIntervalClamped(t *testing.T) {
	tracker, _ := newTestTracker(100)
	tracker.Load(nil, []models.Driver{testDriver("driver-1", "")})

	require.NoError(t, tracker.SetSampleInterval("driver-1", 5))
	d, err := tracker.Driver("driver-1")
	require.NoError(t, err)
	require.Equal(t, 10, d.SampleIntervalS)

	require.NoError(t, tracker.SetSampleInterval("driver-1", 1000))
	d, err = tracker.Driver("driver-1")
	require.NoError(t, err)
	require.Equal(t, 300, d.SampleIntervalS)

	require.NoError(t, tracker.SetSampleInterval("driver-1", 60))
	d, err = tracker.Driver("driver-1")
	require.NoError(t, err)
	require.Equal(t, 60, d.SampleIntervalS)
}

func TestAvailableTrucks(t *testing.T) {
	tracker, _ := newTestTracker(100)
	onRoute := testTruck("truck-busy", 2000, "driver-3")
	onRoute.Status = models.TruckOnRoute
	tracker.Load(
		[]models.Truck{
			testTruck("truck-small", 800, "driver-1"),
			testTruck("truck-big", 1500, "driver-2"),
			testTruck("truck-unmanned", 3000, ""),
			onRoute,
		},
		nil,
	)

	available := tracker.AvailableTrucks()

	require.Len(t, available, 2)
	require.Equal(t, "truck-big", available[0].ID)
	require.Equal(t, "truck-small", available[1].ID)
}

func TestActiveDrivers(t *testing.T) {
	tracker, _ := newTestTracker(100)
	offDuty := testDriver("driver-off", "")
	offDuty.OnDuty = false
	tracker.Load(nil, []models.Driver{testDriver("driver-1", ""), offDuty})

	_, err := tracker.Ingest("driver-1", models.LocationUpdateRequest{Latitude: testLat, Longitude: testLng, RecordedAt: time.Now().Unix()})
	require.NoError(t, err)

	active := tracker.ActiveDrivers()
	require.Len(t, active, 1)
	require.Equal(t, "driver-1", active[0].DriverID)
	require.NotNil(t, active[0].LastLocation)
	require.Equal(t, testLat, active[0].LastLocation.Latitude)
}

func TestSetOnDutyAndSharing(t *testing.T) {
	tracker, _ := newTestTracker(100)
	tracker.Load(nil, []models.Driver{testDriver("driver-1", "")})

	require.NoError(t, tracker.SetOnDuty("driver-1", false))
	require.Empty(t, tracker.ActiveDrivers())

	require.NoError(t, tracker.SetSharing("driver-1", false))
	_, err := tracker.Ingest("driver-1", models.LocationUpdateRequest{Latitude: testLat, Longitude: testLng})
	require.ErrorIs(t, err, ErrPermissionDenied)

	require.NoError(t, tracker.SetSharing("driver-1", true))
	_, err = tracker.Ingest("driver-1", models.LocationUpdateRequest{Latitude: testLat, Longitude: testLng})
	require.NoError(t, err)

	require.ErrorIs(t, tracker.SetOnDuty("driver-missing", true), ErrNotFound)
}

func TestLoadDefaultsSampleInterval(t *testing.T) {
	tracker, _ := newTestTracker(100)
	d := testDriver("driver-1", "")
	d.SampleIntervalS = 0
	tracker.Load(nil, []models.Driver{d})

	loaded, err := tracker.Driver("driver-1")
	require.NoError(t, err)
	require.Equal(t, 10, loaded.SampleIntervalS)
}

func TestTrucksSnapshot(t *testing.T) {
	tracker, _ := newTestTracker(100)
	for i := 3; i >= 1; i-- {
		tracker.AddTruck(testTruck(fmt.Sprintf("truck-%d", i), 1000, ""))
	}

	trucks := tracker.Trucks()
	require.Len(t, trucks, 3)
	require.Equal(t, "truck-1", trucks[0].ID)
	require.Equal(t, "truck-3", trucks[2].ID)
}
