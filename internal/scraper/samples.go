package scraper

import (
	"time"

	"github.com/davidboeke/catalog-scraper/internal/models"
)

// ProvenanceStaticSample labels records from the hard-coded last-resort set.
const ProvenanceStaticSample = "static_sample"

type sampleSeed struct {
	externalID string
	title      string
	price      string
	rating     string
}

// sampleSeeds is the fixed last-resort data set. Five representative records
// so a caller always gets something usable.
var sampleSeeds = []sampleSeed{
	{"B0SAMPLE01", "Wireless Bluetooth Earbuds with Charging Case", "$29.99", "4.4 out of 5 stars"},
	{"B0SAMPLE02", "Stainless Steel Insulated Water Bottle, 32 oz", "$19.95", "4.7 out of 5 stars"},
	{"B0SAMPLE03", "LED Desk Lamp with USB Charging Port", "$24.99", "4.5 out of 5 stars"},
	{"B0SAMPLE04", "Memory Foam Pillow for Side Sleepers", "$34.50", "4.3 out of 5 stars"},
	{"B0SAMPLE05", "Portable Phone Charger 10000mAh Power Bank", "$21.99", "4.6 out of 5 stars"},
}

// StaticSamples returns up to limit records from the fixed sample set,
// labeled accordingly. It cannot fail and never returns an empty list for
// limit >= 1.
func StaticSamples(limit int) []*models.ExtractedRecord {
	if limit < 1 || limit > len(sampleSeeds) {
		limit = len(sampleSeeds)
	}

	now := time.Now()
	records := make([]*models.ExtractedRecord, 0, limit)
	for i, seed := range sampleSeeds[:limit] {
		records = append(records, &models.ExtractedRecord{
			ExternalID:  seed.externalID,
			Rank:        i + 1,
			Title:       seed.title,
			Price:       seed.price,
			Rating:      seed.rating,
			Provenance:  ProvenanceStaticSample,
			ExtractedAt: now,
		})
	}
	return records
}
