// Package model holds the canonical listing record shared by the whole
// pipeline. Source adapters produce loose raw fields; the normalizer is the
// only component that constructs a CanonicalListing, so everything downstream
// of it can rely on the invariants documented here.
package model

import "time"

// Status is the lifecycle state of a listing.
type Status string

const (
	StatusActive   Status = "active"
	StatusSold     Status = "sold"
	StatusUnsold   Status = "unsold"
	StatusDelisted Status = "delisted"
)

// Terminal reports whether the status concludes an auction. A terminal status
// must never be overwritten back to active by a later observation.
func (s Status) Terminal() bool {
	switch s {
	case StatusSold, StatusUnsold, StatusDelisted:
		return true
	}
	return false
}

// CanonicalListing is the unit of record. Identity is (Source, SourceID),
// globally unique; SourceID is derived once and never recomputed from mutable
// fields.
type CanonicalListing struct {
	Source    string
	SourceID  string
	SourceURL string
	Platform  string
	Title     string

	// Vehicle identity
	Year      int
	Make      string
	Model     string
	Trim      string
	BodyStyle string

	// Condition facts
	MileageKm     *int
	VIN           string
	ExteriorColor string
	InteriorColor string
	Engine        string
	Transmission  string

	// Commercial facts
	CurrentBid       *int
	BidCount         *int
	FinalPrice       *int
	OriginalCurrency string
	RawPriceText     string
	ReserveStatus    string

	// Temporal facts (UTC)
	ListDate    *time.Time
	SaleDate    *time.Time
	AuctionDate *time.Time
	StartTime   *time.Time
	EndTime     *time.Time

	Status Status

	// Location
	LocationString string
	Country        string
	Region         string
	City           string
	PostalCode     string

	AuctionHouse string
	Description  string
	SellerNotes  string

	Photos      []string
	PhotosCount int

	// DataQualityScore is a 0-100 completeness heuristic. Persisted for
	// downstream consumers; the pipeline itself never gates on it.
	DataQualityScore int
}

// ScrapeMeta stamps every artifact written during one run so all rows from
// the same run share a run id and timestamp.
type ScrapeMeta struct {
	RunID     string
	StartedAt time.Time
}
