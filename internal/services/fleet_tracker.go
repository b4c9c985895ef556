package services

import (
	"log"
	"sort"
	"sync"
	"time"

	"wasteroute-backend/internal/models"

	"github.com/pkg/errors"
)

// FleetStore persists location samples and truck/driver updates.
type FleetStore interface {
	InsertLocationSample(s *models.LocationSample) error
	UpdateTruckPosition(truckID string, lat, lng float64, seenAt int64) error
	UpdateTruckStatus(truckID string, status models.TruckStatus) error
	UpdateTruckDriver(truckID string, driverID *string) error
	UpdateDriverTruck(driverID string, truckID *string) error
	UpdateDriver(d *models.Driver) error
}

// FleetTracker ingests driver location samples, keeps truck positions
// current and retains a bounded per-driver position trail.
type FleetTracker struct {
	mu      sync.Mutex
	trucks  map[string]*models.Truck
	drivers map[string]*models.Driver

	trail      map[string][]models.LocationSample // bounded, newest last
	lastStored map[string]int64                   // recorded_at of last stored sample

	historyLimit int
	minIntervalS int
	maxIntervalS int

	store FleetStore
}

// NewFleetTracker creates a tracker. historyLimit bounds the in-memory trail
// per driver; minIntervalS/maxIntervalS bound the configurable sampling
// frequency.
func NewFleetTracker(store FleetStore, historyLimit, minIntervalS, maxIntervalS int) *FleetTracker {
	return &FleetTracker{
		trucks:       make(map[string]*models.Truck),
		drivers:      make(map[string]*models.Driver),
		trail:        make(map[string][]models.LocationSample),
		lastStored:   make(map[string]int64),
		historyLimit: historyLimit,
		minIntervalS: minIntervalS,
		maxIntervalS: maxIntervalS,
		store:        store,
	}
}

// Load primes the tracker from persisted state at startup.
func (t *FleetTracker) Load(trucks []models.Truck, drivers []models.Driver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range trucks {
		tr := trucks[i]
		t.trucks[tr.ID] = &tr
	}
	for i := range drivers {
		d := drivers[i]
		if d.SampleIntervalS == 0 {
			d.SampleIntervalS = t.minIntervalS
		}
		t.drivers[d.ID] = &d
	}
	log.Printf("✅ [FLEET] Loaded %d trucks, %d drivers", len(trucks), len(drivers))
}

// AddTruck registers a new truck.
func (t *FleetTracker) AddTruck(truck models.Truck) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.trucks[truck.ID] = &truck
}

// AddDriver registers a new driver.
func (t *FleetTracker) AddDriver(driver models.Driver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if driver.SampleIntervalS == 0 {
		driver.SampleIntervalS = t.minIntervalS
	}
	t.drivers[driver.ID] = &driver
}

// Ingest accepts one location sample. It fails with PermissionDenied when
// the driver has location sharing disabled. On success the sample is
// appended and, if the driver has an assigned truck, the truck's last-known
// position is overwritten. Both happen under one lock so the pair is atomic
// from the caller's perspective.
//
// The tracker accepts any arrival rate but rate-limits storage: a sample
// arriving sooner than half the driver's configured interval after the last
// stored one still moves the truck, but is not appended.
func (t *FleetTracker) Ingest(driverID string, req models.LocationUpdateRequest) (*models.LocationSample, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	driver, ok := t.drivers[driverID]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "driver %s", driverID)
	}
	if !driver.LocationSharing {
		return nil, errors.Wrapf(ErrPermissionDenied, "driver %s has location sharing disabled", driverID)
	}

	recordedAt := req.RecordedAt
	if recordedAt == 0 {
		recordedAt = time.Now().Unix()
	}

	sample := models.LocationSample{
		DriverID:   driverID,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		AccuracyM:  req.Accuracy,
		Heading:    req.Heading,
		SpeedMps:   req.Speed,
		RecordedAt: recordedAt,
		CreatedAt:  time.Now().Unix(),
	}

	// Truck position always tracks the newest sample.
	if driver.TruckID != nil {
		if truck, ok := t.trucks[*driver.TruckID]; ok {
			truck.LastLatitude = &sample.Latitude
			truck.LastLongitude = &sample.Longitude
			truck.LastSeenAt = &sample.RecordedAt
			truck.UpdatedAt = time.Now().Unix()
			if err := t.store.UpdateTruckPosition(truck.ID, sample.Latitude, sample.Longitude, sample.RecordedAt); err != nil {
				return nil, errors.Wrap(err, "update truck position")
			}
		}
	}

	minGap := int64(driver.SampleIntervalS) / 2
	if last, ok := t.lastStored[driverID]; ok && recordedAt-last < minGap {
		return &sample, nil
	}

	if err := t.store.InsertLocationSample(&sample); err != nil {
		return nil, errors.Wrap(err, "insert location sample")
	}
	t.lastStored[driverID] = recordedAt

	trail := append(t.trail[driverID], sample)
	if len(trail) > t.historyLimit {
		trail = trail[len(trail)-t.historyLimit:]
	}
	t.trail[driverID] = trail

	return &sample, nil
}

// AssignDriver binds a driver to a truck, updating both back-references in
// one operation. Any previous pairing on either side is dissolved first so
// the relation stays exclusive.
func (t *FleetTracker) AssignDriver(truckID, driverID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	truck, ok := t.trucks[truckID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "truck %s", truckID)
	}
	driver, ok := t.drivers[driverID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "driver %s", driverID)
	}

	// Dissolve the truck's current pairing.
	if truck.DriverID != nil && *truck.DriverID != driverID {
		if prev, ok := t.drivers[*truck.DriverID]; ok {
			prev.TruckID = nil
			if err := t.store.UpdateDriverTruck(prev.ID, nil); err != nil {
				return errors.Wrap(err, "unassign previous driver")
			}
		}
	}
	// Dissolve the driver's current pairing.
	if driver.TruckID != nil && *driver.TruckID != truckID {
		if prev, ok := t.trucks[*driver.TruckID]; ok {
			prev.DriverID = nil
			if err := t.store.UpdateTruckDriver(prev.ID, nil); err != nil {
				return errors.Wrap(err, "unassign previous truck")
			}
		}
	}

	did, tid := driverID, truckID
	truck.DriverID = &did
	driver.TruckID = &tid
	truck.UpdatedAt = time.Now().Unix()
	driver.UpdatedAt = time.Now().Unix()

	if err := t.store.UpdateTruckDriver(truckID, &did); err != nil {
		return errors.Wrap(err, "assign truck driver")
	}
	if err := t.store.UpdateDriverTruck(driverID, &tid); err != nil {
		return errors.Wrap(err, "assign driver truck")
	}

	log.Printf("✅ [FLEET] Driver %s assigned to truck %s", driverID, truckID)
	return nil
}

// SetSharing toggles a driver's location-sharing flag.
func (t *FleetTracker) SetSharing(driverID string, enabled bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	driver, ok := t.drivers[driverID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "driver %s", driverID)
	}
	driver.LocationSharing = enabled
	driver.UpdatedAt = time.Now().Unix()
	return t.store.UpdateDriver(driver)
}

// SetSampleInterval sets a driver's advisory sampling interval, clamped to
// the configured bounds.
func (t *FleetTracker) SetSampleInterval(driverID string, seconds int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	driver, ok := t.drivers[driverID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "driver %s", driverID)
	}
	if seconds < t.minIntervalS {
		seconds = t.minIntervalS
	}
	if seconds > t.maxIntervalS {
		seconds = t.maxIntervalS
	}
	driver.SampleIntervalS = seconds
	driver.UpdatedAt = time.Now().Unix()
	return t.store.UpdateDriver(driver)
}

// SetTruckStatus moves a truck between availability states.
func (t *FleetTracker) SetTruckStatus(truckID string, status models.TruckStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	truck, ok := t.trucks[truckID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "truck %s", truckID)
	}
	truck.Status = status
	truck.UpdatedAt = time.Now().Unix()
	return t.store.UpdateTruckStatus(truckID, status)
}

// Truck returns a copy of the truck.
func (t *FleetTracker) Truck(truckID string) (models.Truck, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	truck, ok := t.trucks[truckID]
	if !ok {
		return models.Truck{}, errors.Wrapf(ErrNotFound, "truck %s", truckID)
	}
	return *truck, nil
}

// Driver returns a copy of the driver.
func (t *FleetTracker) Driver(driverID string) (models.Driver, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	driver, ok := t.drivers[driverID]
	if !ok {
		return models.Driver{}, errors.Wrapf(ErrNotFound, "driver %s", driverID)
	}
	return *driver, nil
}

// Trucks returns a snapshot of every truck, ordered by id.
func (t *FleetTracker) Trucks() []models.Truck {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]models.Truck, 0, len(t.trucks))
	for _, truck := range t.trucks {
		out = append(out, *truck)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AvailableTrucks returns trucks that are available and have a driver,
// sorted by capacity descending. The optimizer matches in this order.
func (t *FleetTracker) AvailableTrucks() []models.Truck {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []models.Truck
	for _, truck := range t.trucks {
		if truck.Status == models.TruckAvailable && truck.DriverID != nil {
			out = append(out, *truck)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CapacityKg != out[j].CapacityKg {
			return out[i].CapacityKg > out[j].CapacityKg
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Trail returns a copy of the driver's retained position trail.
func (t *FleetTracker) Trail(driverID string) []models.LocationSample {
	t.mu.Lock()
	defer t.mu.Unlock()
	trail := t.trail[driverID]
	out := make([]models.LocationSample, len(trail))
	copy(out, trail)
	return out
}

// ActiveDrivers returns the live status of every on-duty driver for the
// manager dashboard.
func (t *FleetTracker) ActiveDrivers() []models.DriverStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []models.DriverStatus
	for _, d := range t.drivers {
		if !d.OnDuty {
			continue
		}
		status := models.DriverStatus{
			DriverID: d.ID,
			Name:     d.Name,
			OnDuty:   d.OnDuty,
			TruckID:  d.TruckID,
		}
		if trail := t.trail[d.ID]; len(trail) > 0 {
			last := trail[len(trail)-1]
			status.LastLocation = &last
		}
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverID < out[j].DriverID })
	return out
}

// SetOnDuty toggles a driver's duty flag.
func (t *FleetTracker) SetOnDuty(driverID string, onDuty bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	driver, ok := t.drivers[driverID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "driver %s", driverID)
	}
	driver.OnDuty = onDuty
	driver.UpdatedAt = time.Now().Unix()
	return t.store.UpdateDriver(driver)
}
