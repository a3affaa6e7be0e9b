package models

import (
	"strings"
	"time"
)

// Unavailable is the sentinel stored for free-text fields the extractor
// could not resolve. It is a legal value, not an error.
const Unavailable = "unavailable"

// MaxFeatures caps the feature bullets kept on a detail-mode record.
const MaxFeatures = 5

// ExtractedRecord is one catalog item produced by any extraction tier.
// ExternalID may be empty for detail-mode records; list-mode extraction
// drops records without one.
type ExtractedRecord struct {
	ExternalID  string    `json:"external_id,omitempty"`
	Rank        int       `json:"rank"`
	Title       string    `json:"title"`
	Price       string    `json:"price"`
	Rating      string    `json:"rating"`
	ImageURL    string    `json:"image_url,omitempty"`
	DetailURL   string    `json:"detail_url,omitempty"`
	Provenance  string    `json:"provenance"`
	ExtractedAt time.Time `json:"extracted_at"`

	// Detail-mode extras, empty for list-mode records.
	Availability string   `json:"availability,omitempty"`
	ReviewCount  string   `json:"review_count,omitempty"`
	Brand        string   `json:"brand,omitempty"`
	Features     []string `json:"features,omitempty"`
}

// MinTitleLength is the acceptance threshold for extracted titles.
const MinTitleLength = 5

// HasValidTitle reports whether the record passes title validation.
func (r *ExtractedRecord) HasValidTitle() bool {
	return len(strings.TrimSpace(r.Title)) >= MinTitleLength
}

// FillSentinels replaces empty price/rating with the unavailable sentinel.
func (r *ExtractedRecord) FillSentinels() {
	if strings.TrimSpace(r.Price) == "" {
		r.Price = Unavailable
	}
	if strings.TrimSpace(r.Rating) == "" {
		r.Rating = Unavailable
	}
}

// Freshness summarizes the cache state of one category partition.
type Freshness struct {
	Fresh       bool       `json:"fresh"`
	Count       int        `json:"count"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// NewRecord builds a record stamped with the current time and provenance.
func NewRecord(title, provenance string) *ExtractedRecord {
	return &ExtractedRecord{
		Title:       title,
		Price:       Unavailable,
		Rating:      Unavailable,
		Provenance:  provenance,
		ExtractedAt: time.Now(),
	}
}
