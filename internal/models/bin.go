package models

import "time"

// FillLevel is the ordered fill scale reported by establishments.
type FillLevel string

const (
	FillEmpty         FillLevel = "empty"
	FillQuarter       FillLevel = "quarter"
	FillHalf          FillLevel = "half"
	FillThreeQuarters FillLevel = "three_quarters"
	FillFull          FillLevel = "full"
)

var fillRanks = map[FillLevel]int{
	FillEmpty:         0,
	FillQuarter:       1,
	FillHalf:          2,
	FillThreeQuarters: 3,
	FillFull:          4,
}

// Rank returns the position of the level on the ordered scale (-1 if unknown).
func (f FillLevel) Rank() int {
	if r, ok := fillRanks[f]; ok {
		return r
	}
	return -1
}

// Valid reports whether the level is one of the known scale values.
func (f FillLevel) Valid() bool {
	_, ok := fillRanks[f]
	return ok
}

// WasteCategory is the closed set of waste types a bin can hold.
type WasteCategory string

const (
	WasteGeneral    WasteCategory = "general"
	WasteRecyclable WasteCategory = "recyclable"
	WasteOrganic    WasteCategory = "organic"
	WasteHazardous  WasteCategory = "hazardous"
)

func (c WasteCategory) Valid() bool {
	switch c {
	case WasteGeneral, WasteRecyclable, WasteOrganic, WasteHazardous:
		return true
	}
	return false
}

type Bin struct {
	ID              string        `json:"id" db:"id"`
	OwnerID         string        `json:"owner_id" db:"owner_id"`
	CapacityLiters  float64       `json:"capacity_liters" db:"capacity_liters"`
	Category        WasteCategory `json:"category" db:"category"`
	Latitude        float64       `json:"latitude" db:"latitude"`
	Longitude       float64       `json:"longitude" db:"longitude"`
	FillLevel       FillLevel     `json:"fill_level" db:"fill_level"`
	NeedsCollection bool          `json:"needs_collection" db:"needs_collection"`
	LastReported    *int64        `json:"last_reported,omitempty" db:"last_reported"` // Unix timestamp
	Active          bool          `json:"active" db:"active"`
	ActiveRouteID   *string       `json:"active_route_id,omitempty" db:"active_route_id"`
	CreatedAt       int64         `json:"created_at" db:"created_at"` // Unix timestamp
	UpdatedAt       int64         `json:"updated_at" db:"updated_at"` // Unix timestamp
}

// ComputeNeedsCollection derives the eligibility flag from the fill scale.
// It is never stored independently of this rule.
func (b *Bin) ComputeNeedsCollection() bool {
	return b.Active && b.FillLevel.Rank() >= FillThreeQuarters.Rank()
}

// BinResponse is what we send to the client with ISO timestamps
type BinResponse struct {
	ID              string        `json:"id"`
	OwnerID         string        `json:"owner_id"`
	CapacityLiters  float64       `json:"capacity_liters"`
	Category        WasteCategory `json:"category"`
	Latitude        float64       `json:"latitude"`
	Longitude       float64       `json:"longitude"`
	FillLevel       FillLevel     `json:"fill_level"`
	NeedsCollection bool          `json:"needs_collection"`
	LastReportedIso *string       `json:"lastReportedIso,omitempty"`
	Active          bool          `json:"active"`
}

// CreateBinRequest is the request body for POST /api/bins
type CreateBinRequest struct {
	OwnerID        string        `json:"owner_id"`
	CapacityLiters float64       `json:"capacity_liters"`
	Category       WasteCategory `json:"category"`
	Latitude       float64       `json:"latitude"`
	Longitude      float64       `json:"longitude"`
}

// ToBinResponse converts a Bin to BinResponse
func (b *Bin) ToBinResponse() BinResponse {
	resp := BinResponse{
		ID:              b.ID,
		OwnerID:         b.OwnerID,
		CapacityLiters:  b.CapacityLiters,
		Category:        b.Category,
		Latitude:        b.Latitude,
		Longitude:       b.Longitude,
		FillLevel:       b.FillLevel,
		NeedsCollection: b.NeedsCollection,
		Active:          b.Active,
	}

	if b.LastReported != nil {
		t := time.Unix(*b.LastReported, 0)
		iso := t.Format(time.RFC3339)
		resp.LastReportedIso = &iso
	}

	return resp
}

// LatLng is a geographic point (WGS84).
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
