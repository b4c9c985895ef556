package services

import (
	"sort"
	"sync"
)

// indexEntry is the index's own snapshot of a bin's position and flags.
// Queries only read these copies, so a bin moved mid-query can never be
// observed half-updated.
type indexEntry struct {
	id              string
	lat             float64
	lng             float64
	cell            string
	active          bool
	needsCollection bool
}

// indexPrecision is the bucket granularity. Precision 6 cells are ~600 m,
// a good fit for city-scale radius queries.
const indexPrecision = 6

// NearbyFilter narrows a radius query.
type NearbyFilter struct {
	ActiveOnly      bool
	NeedsCollection bool
}

// BinDistance is one radius-query hit.
type BinDistance struct {
	BinID     string
	DistanceM float64
}

// SpatialIndex answers "which bins lie within radius R of point P" without a
// full scan, using geohash grid buckets. It is updated on every bin
// creation, deactivation and position change.
type SpatialIndex struct {
	mu      sync.RWMutex
	entries map[string]*indexEntry
	cells   map[string]map[string]*indexEntry
}

// NewSpatialIndex creates an empty index.
func NewSpatialIndex() *SpatialIndex {
	return &SpatialIndex{
		entries: make(map[string]*indexEntry),
		cells:   make(map[string]map[string]*indexEntry),
	}
}

// Upsert inserts or updates a bin's position and flags.
func (s *SpatialIndex) Upsert(binID string, lat, lng float64, active, needsCollection bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cell := encodeGeohash(lat, lng, indexPrecision)

	if old, ok := s.entries[binID]; ok && old.cell != cell {
		delete(s.cells[old.cell], binID)
		if len(s.cells[old.cell]) == 0 {
			delete(s.cells, old.cell)
		}
	}

	entry := &indexEntry{
		id:              binID,
		lat:             lat,
		lng:             lng,
		cell:            cell,
		active:          active,
		needsCollection: needsCollection,
	}
	s.entries[binID] = entry
	if s.cells[cell] == nil {
		s.cells[cell] = make(map[string]*indexEntry)
	}
	s.cells[cell][binID] = entry
}

// Remove drops a bin from the index entirely.
func (s *SpatialIndex) Remove(binID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[binID]
	if !ok {
		return
	}
	delete(s.entries, binID)
	delete(s.cells[entry.cell], binID)
	if len(s.cells[entry.cell]) == 0 {
		delete(s.cells, entry.cell)
	}
}

// Nearby returns bins within radiusM meters of the point, ascending by
// geodesic distance. A bin at exactly radiusM is included. The result is a
// consistent snapshot: no concurrent update is observed mid-query.
func (s *SpatialIndex) Nearby(lat, lng, radiusM float64, filter NearbyFilter) []BinDistance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Candidate buckets. When the radius outgrows the cover heuristic's
	// coarsest useful precision, fall back to scanning every bucket.
	var candidates []*indexEntry
	precision := geohashPrecisionForRadius(radiusM)
	if precision > indexPrecision {
		precision = indexPrecision
	}
	if precision < indexPrecision {
		// Coarse query: cover cells are shorter prefixes of the stored
		// precision-6 keys, so match buckets by prefix.
		prefixes := coverCells(lat, lng, radiusM, precision)
		for cell, bucket := range s.cells {
			for _, p := range prefixes {
				if len(cell) >= len(p) && cell[:len(p)] == p {
					for _, e := range bucket {
						candidates = append(candidates, e)
					}
					break
				}
			}
		}
	} else {
		for _, cell := range coverCells(lat, lng, radiusM, indexPrecision) {
			for _, e := range s.cells[cell] {
				candidates = append(candidates, e)
			}
		}
	}

	results := make([]BinDistance, 0, len(candidates))
	for _, e := range candidates {
		if filter.ActiveOnly && !e.active {
			continue
		}
		if filter.NeedsCollection && !e.needsCollection {
			continue
		}
		d := geodesicDistanceM(lat, lng, e.lat, e.lng)
		if d <= radiusM {
			results = append(results, BinDistance{BinID: e.id, DistanceM: d})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].DistanceM != results[j].DistanceM {
			return results[i].DistanceM < results[j].DistanceM
		}
		return results[i].BinID < results[j].BinID
	})

	return results
}

// Size returns the number of indexed bins.
func (s *SpatialIndex) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
