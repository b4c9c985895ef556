package services

import (
	"log"
	"sort"
	"sync"
	"time"

	"wasteroute-backend/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// BinStore persists bin and report writes. The registry's in-memory state is
// authoritative; the store provides durability and audit reconstruction.
type BinStore interface {
	InsertBin(b *models.Bin) error
	UpdateBin(b *models.Bin) error
	InsertReport(r *models.WasteReport) error
}

// BinRegistry owns bin records, the fill-level state machine and the
// route-claim flag the optimizer races on.
type BinRegistry struct {
	mu       sync.RWMutex
	bins     map[string]*models.Bin
	reported map[string]map[int64]struct{} // accepted report timestamps per bin

	index  *SpatialIndex
	store  BinStore
	events *EventBus
}

// NewBinRegistry creates a registry writing through store, keeping index in
// sync and emitting eligibility events on events.
func NewBinRegistry(store BinStore, index *SpatialIndex, events *EventBus) *BinRegistry {
	return &BinRegistry{
		bins:     make(map[string]*models.Bin),
		reported: make(map[string]map[int64]struct{}),
		index:    index,
		store:    store,
		events:   events,
	}
}

// Load primes the registry from persisted state at startup.
func (r *BinRegistry) Load(bins []models.Bin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range bins {
		b := bins[i]
		r.bins[b.ID] = &b
		r.reported[b.ID] = make(map[int64]struct{})
		if b.LastReported != nil {
			r.reported[b.ID][*b.LastReported] = struct{}{}
		}
		r.index.Upsert(b.ID, b.Latitude, b.Longitude, b.Active, b.NeedsCollection)
	}
	log.Printf("✅ [BIN-REGISTRY] Loaded %d bins", len(bins))
}

// LoadReported primes duplicate detection with the persisted report
// timestamps. Called once at startup, after Load.
func (r *BinRegistry) LoadReported(timestamps map[string][]int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for binID, seen := range timestamps {
		set, ok := r.reported[binID]
		if !ok {
			continue
		}
		for _, ts := range seen {
			set[ts] = struct{}{}
		}
	}
}

// Register creates a new bin at empty fill.
func (r *BinRegistry) Register(req models.CreateBinRequest) (*models.Bin, error) {
	if !req.Category.Valid() {
		return nil, errors.Wrap(ErrNotFound, "unknown waste category")
	}

	now := time.Now().Unix()
	bin := &models.Bin{
		ID:             uuid.New().String(),
		OwnerID:        req.OwnerID,
		CapacityLiters: req.CapacityLiters,
		Category:       req.Category,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		FillLevel:      models.FillEmpty,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	bin.NeedsCollection = bin.ComputeNeedsCollection()

	if err := r.store.InsertBin(bin); err != nil {
		return nil, errors.Wrap(err, "insert bin")
	}

	r.mu.Lock()
	r.bins[bin.ID] = bin
	r.reported[bin.ID] = make(map[int64]struct{})
	r.index.Upsert(bin.ID, bin.Latitude, bin.Longitude, bin.Active, bin.NeedsCollection)
	copied := *bin
	r.mu.Unlock()

	log.Printf("✅ [BIN-REGISTRY] Registered bin %s (%s, %.0fL)", bin.ID, bin.Category, bin.CapacityLiters)
	return &copied, nil
}

// Get returns a copy of the bin.
func (r *BinRegistry) Get(binID string) (models.Bin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bin, ok := r.bins[binID]
	if !ok {
		return models.Bin{}, errors.Wrapf(ErrNotFound, "bin %s", binID)
	}
	return *bin, nil
}

// Report records a fill-level report and recomputes eligibility.
//
// The report row is always appended for audit, but the bin's level is
// monotonically non-decreasing: a report below the current level never
// lowers it. Only MarkCollected resets the level to empty. When the derived
// needs_collection flag flips false->true, a bin-eligible event is emitted
// exactly once.
func (r *BinRegistry) Report(binID string, level models.FillLevel, reporterID string, reportedAt int64) (*models.WasteReport, error) {
	if !level.Valid() {
		return nil, errors.Wrapf(ErrNotFound, "unknown fill level %q", level)
	}

	r.mu.Lock()

	bin, ok := r.bins[binID]
	if !ok || !bin.Active {
		r.mu.Unlock()
		return nil, errors.Wrapf(ErrNotFound, "bin %s", binID)
	}

	if _, dup := r.reported[binID][reportedAt]; dup {
		r.mu.Unlock()
		return nil, errors.Wrapf(ErrDuplicateReport, "bin %s at %d", binID, reportedAt)
	}

	report := &models.WasteReport{
		BinID:      binID,
		ReporterID: reporterID,
		FillLevel:  level,
		ReportedAt: reportedAt,
		CreatedAt:  time.Now().Unix(),
	}
	if err := r.store.InsertReport(report); err != nil {
		r.mu.Unlock()
		return nil, errors.Wrap(err, "insert report")
	}
	r.reported[binID][reportedAt] = struct{}{}

	wasEligible := bin.NeedsCollection
	if level.Rank() > bin.FillLevel.Rank() {
		bin.FillLevel = level
	}
	bin.LastReported = &report.ReportedAt
	bin.UpdatedAt = time.Now().Unix()
	bin.NeedsCollection = bin.ComputeNeedsCollection()
	r.index.Upsert(bin.ID, bin.Latitude, bin.Longitude, bin.Active, bin.NeedsCollection)

	if err := r.store.UpdateBin(bin); err != nil {
		log.Printf("⚠️  [BIN-REGISTRY] Failed to persist bin %s after report: %v", binID, err)
	}

	becameEligible := !wasEligible && bin.NeedsCollection
	copied := *bin
	r.mu.Unlock()

	if becameEligible {
		log.Printf("🗑  [BIN-REGISTRY] Bin %s became eligible for collection (%s)", binID, copied.FillLevel)
		r.events.Publish(Event{Type: EventBinEligible, Bin: &copied})
	}

	return report, nil
}

// MarkCollected resets a bin after a route stop is completed. Only the route
// lifecycle calls this.
func (r *BinRegistry) MarkCollected(binID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bin, ok := r.bins[binID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "bin %s", binID)
	}

	bin.FillLevel = models.FillEmpty
	bin.NeedsCollection = bin.ComputeNeedsCollection()
	bin.UpdatedAt = time.Now().Unix()
	r.index.Upsert(bin.ID, bin.Latitude, bin.Longitude, bin.Active, bin.NeedsCollection)

	if err := r.store.UpdateBin(bin); err != nil {
		log.Printf("⚠️  [BIN-REGISTRY] Failed to persist bin %s after collection: %v", binID, err)
	}
	return nil
}

// Deactivate soft-deletes a bin. Deactivated bins are excluded from every
// query and can never become eligible.
func (r *BinRegistry) Deactivate(binID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bin, ok := r.bins[binID]
	if !ok || !bin.Active {
		return errors.Wrapf(ErrNotFound, "bin %s", binID)
	}

	bin.Active = false
	bin.NeedsCollection = bin.ComputeNeedsCollection()
	bin.UpdatedAt = time.Now().Unix()
	r.index.Upsert(bin.ID, bin.Latitude, bin.Longitude, bin.Active, bin.NeedsCollection)

	if err := r.store.UpdateBin(bin); err != nil {
		log.Printf("⚠️  [BIN-REGISTRY] Failed to persist bin %s deactivation: %v", binID, err)
	}
	log.Printf("✅ [BIN-REGISTRY] Bin %s deactivated", binID)
	return nil
}

// Claim atomically binds a bin to a route. It fails when the bin is already
// in another active route, inactive, or no longer eligible. This is the
// check-and-set that upholds "at most one active route per bin" across
// concurrent optimizer runs.
func (r *BinRegistry) Claim(binID, routeID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	bin, ok := r.bins[binID]
	if !ok || !bin.Active || !bin.NeedsCollection {
		return false
	}
	if bin.ActiveRouteID != nil && *bin.ActiveRouteID != routeID {
		return false
	}

	rid := routeID
	bin.ActiveRouteID = &rid
	bin.UpdatedAt = time.Now().Unix()
	if err := r.store.UpdateBin(bin); err != nil {
		log.Printf("⚠️  [BIN-REGISTRY] Failed to persist claim on bin %s: %v", binID, err)
	}
	return true
}

// Release clears a bin's claim if it is held by routeID. Released bins that
// still need collection return to the eligible pool.
func (r *BinRegistry) Release(binID, routeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bin, ok := r.bins[binID]
	if !ok || bin.ActiveRouteID == nil || *bin.ActiveRouteID != routeID {
		return
	}
	bin.ActiveRouteID = nil
	bin.UpdatedAt = time.Now().Unix()
	if err := r.store.UpdateBin(bin); err != nil {
		log.Printf("⚠️  [BIN-REGISTRY] Failed to persist release on bin %s: %v", binID, err)
	}
}

// List returns bins, optionally filtered by category. Inactive bins are
// excluded unless includeInactive is set.
func (r *BinRegistry) List(category models.WasteCategory, includeInactive bool) []models.Bin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Bin, 0, len(r.bins))
	for _, bin := range r.bins {
		if !includeInactive && !bin.Active {
			continue
		}
		if category != "" && bin.Category != category {
			continue
		}
		out = append(out, *bin)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Eligible returns the active, collection-needed, unclaimed bins the
// optimizer may draw from.
func (r *BinRegistry) Eligible() []models.Bin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Bin
	for _, bin := range r.bins {
		if bin.Active && bin.NeedsCollection && bin.ActiveRouteID == nil {
			out = append(out, *bin)
		}
	}
	return out
}

// Urgent returns all active bins needing collection, ranked by the priority
// key (most urgent first). Claimed bins are included: they still need
// collecting, a route is just already on the way.
func (r *BinRegistry) Urgent() []models.Bin {
	r.mu.RLock()
	var out []models.Bin
	for _, bin := range r.bins {
		if bin.Active && bin.NeedsCollection {
			out = append(out, *bin)
		}
	}
	r.mu.RUnlock()

	now := time.Now().Unix()
	sort.Slice(out, func(i, j int) bool { return higherPriority(out[i], out[j], now) })
	return out
}

// Resolve maps radius-query hits back to bin copies.
func (r *BinRegistry) Resolve(hits []BinDistance) []models.Bin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Bin, 0, len(hits))
	for _, h := range hits {
		if bin, ok := r.bins[h.BinID]; ok {
			out = append(out, *bin)
		}
	}
	return out
}

// Nearby runs a radius query and resolves the hits to bins, preserving the
// ascending distance order.
func (r *BinRegistry) Nearby(lat, lng, radiusM float64, filter NearbyFilter) ([]models.Bin, []float64) {
	hits := r.index.Nearby(lat, lng, radiusM, filter)
	bins := r.Resolve(hits)
	distances := make([]float64, len(hits))
	for i := range hits {
		distances[i] = hits[i].DistanceM
	}
	return bins, distances
}
