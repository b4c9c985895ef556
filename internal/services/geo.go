package services

import (
	"math"

	"github.com/golang/geo/s2"
)

const earthRadiusMeters = 6371000.0

// geodesicDistanceM returns the great-circle distance between two points in
// meters. Bins span city-scale areas, so planar distance on raw coordinates
// is never used.
func geodesicDistanceM(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lng1)
	p2 := s2.LatLngFromDegrees(lat2, lng2)
	return p1.Distance(p2).Radians() * earthRadiusMeters
}

// Base32 encoding for geohash
const geohashBase32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// encodeGeohash encodes latitude and longitude into a geohash cell key.
// precision: number of characters (1-12).
func encodeGeohash(lat, lng float64, precision int) string {
	if precision < 1 {
		precision = 1
	}
	if precision > 12 {
		precision = 12
	}

	latRange := [2]float64{-90.0, 90.0}
	lngRange := [2]float64{-180.0, 180.0}

	hash := make([]byte, 0, precision)
	bits := 0
	bit := 0
	ch := 0

	for len(hash) < precision {
		if bit%2 == 0 {
			mid := (lngRange[0] + lngRange[1]) / 2
			if lng > mid {
				ch |= 1 << (4 - bits)
				lngRange[0] = mid
			} else {
				lngRange[1] = mid
			}
		} else {
			mid := (latRange[0] + latRange[1]) / 2
			if lat > mid {
				ch |= 1 << (4 - bits)
				latRange[0] = mid
			} else {
				latRange[1] = mid
			}
		}

		bits++
		if bits == 5 {
			hash = append(hash, geohashBase32[ch])
			bits = 0
			ch = 0
		}
		bit++
	}

	return string(hash)
}

// geohashCellSizeM returns the approximate cell extent in meters at the
// equator for a given precision.
func geohashCellSizeM(precision int) float64 {
	sizes := map[int]float64{
		1:  5000000,
		2:  625000,
		3:  123000,
		4:  19500,
		5:  3900,
		6:  610,
		7:  120,
		8:  19,
		9:  3.7,
		10: 0.6,
		11: 0.12,
		12: 0.019,
	}
	if size, ok := sizes[precision]; ok {
		return size
	}
	return 0
}

// geohashPrecisionForRadius picks the finest precision whose cells are still
// at least as large as the radius, so a small neighborhood of cells covers
// the query disk.
func geohashPrecisionForRadius(radiusM float64) int {
	precision := 1
	for p := 1; p <= 12; p++ {
		if geohashCellSizeM(p) >= radiusM {
			precision = p
		} else {
			break
		}
	}
	return precision
}

// coverCells returns the set of geohash cells intersecting the bounding box
// of the circle (lat, lng, radiusM) at the given precision. Stepping the box
// by half a cell guarantees no intersecting cell is skipped, including at
// latitudes where longitude cells narrow.
func coverCells(lat, lng, radiusM float64, precision int) []string {
	latDelta := radiusM / 111320.0
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lngDelta := radiusM / (111320.0 * cosLat)

	// Half the cell extent in degrees at this precision. A geohash of p
	// characters spends ceil(5p/2) bits on longitude and floor(5p/2) on
	// latitude.
	latStep := 180.0 / math.Pow(2, math.Floor(float64(precision)*5.0/2.0)) / 2
	lngStep := 360.0 / math.Pow(2, math.Ceil(float64(precision)*5.0/2.0)) / 2
	if latStep <= 0 || lngStep <= 0 {
		return []string{encodeGeohash(lat, lng, precision)}
	}

	seen := make(map[string]struct{})
	cells := make([]string, 0, 9)
	for la := lat - latDelta; la <= lat+latDelta+latStep; la += latStep {
		for ln := lng - lngDelta; ln <= lng+lngDelta+lngStep; ln += lngStep {
			clat := math.Max(-90, math.Min(90, la))
			clng := ln
			for clng > 180 {
				clng -= 360
			}
			for clng < -180 {
				clng += 360
			}
			cell := encodeGeohash(clat, clng, precision)
			if _, ok := seen[cell]; ok {
				continue
			}
			seen[cell] = struct{}{}
			cells = append(cells, cell)
		}
	}
	return cells
}
