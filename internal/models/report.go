package models

import "time"

// WasteReport is an immutable fill-level report for a bin.
type WasteReport struct {
	ID         int64     `json:"id" db:"id"`
	BinID      string    `json:"bin_id" db:"bin_id"`
	ReporterID string    `json:"reporter_id" db:"reporter_id"`
	FillLevel  FillLevel `json:"fill_level" db:"fill_level"`
	ReportedAt int64     `json:"reported_at" db:"reported_at"` // Unix timestamp
	CreatedAt  int64     `json:"created_at" db:"created_at"`   // Unix timestamp
}

// ReportFillRequest is the request body for POST /api/bins/{id}/report
type ReportFillRequest struct {
	FillLevel  FillLevel `json:"fill_level"`
	ReportedAt *int64    `json:"reported_at,omitempty"` // defaults to server time
}

// ReportResponse is what we send to the client
type ReportResponse struct {
	ID              int64     `json:"id"`
	BinID           string    `json:"binId"`
	ReporterID      string    `json:"reporterId"`
	FillLevel       FillLevel `json:"fillLevel"`
	ReportedOnIso   string    `json:"reportedOnIso"`
	NeedsCollection bool      `json:"needsCollection"`
}

// ToReportResponse converts a WasteReport to ReportResponse
func (r *WasteReport) ToReportResponse(needsCollection bool) ReportResponse {
	t := time.Unix(r.ReportedAt, 0)
	return ReportResponse{
		ID:              r.ID,
		BinID:           r.BinID,
		ReporterID:      r.ReporterID,
		FillLevel:       r.FillLevel,
		ReportedOnIso:   t.Format(time.RFC3339),
		NeedsCollection: needsCollection,
	}
}
