package services

import (
	"sync"

	"wasteroute-backend/internal/models"
)

// fakeBinStore records writes and never fails unless told to.
type fakeBinStore struct {
	mu           sync.Mutex
	insertedBins []models.Bin
	updatedBins  []models.Bin
	reports      []models.WasteReport

	insertBinErr    error
	insertReportErr error
}

func (f *fakeBinStore) InsertBin(b *models.Bin) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertBinErr != nil {
		return f.insertBinErr
	}
	f.insertedBins = append(f.insertedBins, *b)
	return nil
}

func (f *fakeBinStore) UpdateBin(b *models.Bin) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updatedBins = append(f.updatedBins, *b)
	return nil
}

func (f *fakeBinStore) InsertReport(r *models.WasteReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertReportErr != nil {
		return f.insertReportErr
	}
	r.ID = int64(len(f.reports) + 1)
	f.reports = append(f.reports, *r)
	return nil
}

type fakeFleetStore struct {
	mu      sync.Mutex
	samples []models.LocationSample
}

func (f *fakeFleetStore) InsertLocationSample(s *models.LocationSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = int64(len(f.samples) + 1)
	f.samples = append(f.samples, *s)
	return nil
}

func (f *fakeFleetStore) UpdateTruckPosition(truckID string, lat, lng float64, seenAt int64) error {
	return nil
}
func (f *fakeFleetStore) UpdateTruckStatus(truckID string, status models.TruckStatus) error { return nil }
func (f *fakeFleetStore) UpdateTruckDriver(truckID string, driverID *string) error          { return nil }
func (f *fakeFleetStore) UpdateDriverTruck(driverID string, truckID *string) error          { return nil }
func (f *fakeFleetStore) UpdateDriver(d *models.Driver) error                               { return nil }

func (f *fakeFleetStore) sampleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.samples)
}

type fakeRouteStore struct {
	mu           sync.Mutex
	inserted     []models.Route
	updated      []models.Route
	updatedStops []models.RouteStop

	insertErr error
	onInsert  func(*models.Route)
}

func (f *fakeRouteStore) InsertRoute(r *models.Route) error {
	if f.onInsert != nil {
		f.onInsert(r)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, *r)
	return nil
}

func (f *fakeRouteStore) UpdateRoute(r *models.Route) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, *r)
	return nil
}

func (f *fakeRouteStore) UpdateRouteStop(s *models.RouteStop) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updatedStops = append(f.updatedStops, *s)
	return nil
}
