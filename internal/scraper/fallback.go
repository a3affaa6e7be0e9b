package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/davidboeke/catalog-scraper/internal/models"
)

// Tier labels reported to callers alongside resolved records.
const (
	TierLive        = "live"
	TierHTTP        = "http_fallback"
	TierStaleCache  = "stale_cache"
	TierStaticFixed = "static_sample"
)

// Request describes one resolution: where to extract from, which cache
// partition to fall back on, and how many records the caller wants.
type Request struct {
	TargetURL string
	Category  string
	Limit     int
	MaxAge    time.Duration
}

// Chain sequences the four extraction tiers. Each tier is tried only when
// the previous one fails or comes back empty; tier 4 cannot fail, so Resolve
// never returns an error.
type Chain struct {
	// Live runs retry-wrapped browser extraction. Nil skips tier 1.
	Live func(ctx context.Context, req Request) ([]*models.ExtractedRecord, error)

	// Light runs the browser-free markup scan. Nil skips tier 2.
	Light func(ctx context.Context, targetURL string, limit int) ([]*models.ExtractedRecord, error)

	// Stale reads previously cached rows under a relaxed window. Nil skips
	// tier 3.
	Stale func(ctx context.Context, category string, maxAge time.Duration, limit int) ([]*models.ExtractedRecord, error)

	// StaleMultiplier widens the freshness TTL for tier 3 (3-7x is typical).
	StaleMultiplier int

	Logger *slog.Logger
}

// Resolve returns the first non-empty tier's records and that tier's label.
func (c *Chain) Resolve(ctx context.Context, req Request) ([]*models.ExtractedRecord, string) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default().With("component", "fallback_chain")
	}

	if c.Live != nil {
		records, err := c.Live(ctx, req)
		if err == nil && len(records) > 0 {
			return records, TierLive
		}
		logger.Warn("live extraction unavailable, degrading to http fetch",
			"category", req.Category, "error", err)
	}

	if c.Light != nil {
		records, err := c.Light(ctx, req.TargetURL, req.Limit)
		if err == nil && len(records) > 0 {
			return records, TierHTTP
		}
		logger.Warn("http fetch unavailable, degrading to stale cache",
			"category", req.Category, "error", err)
	}

	if c.Stale != nil {
		multiplier := c.StaleMultiplier
		if multiplier < 1 {
			multiplier = 3
		}
		window := req.MaxAge * time.Duration(multiplier)

		records, err := c.Stale(ctx, req.Category, window, req.Limit)
		if err == nil && len(records) > 0 {
			for _, rec := range records {
				rec.Provenance = TierStaleCache
			}
			return records, TierStaleCache
		}
		logger.Warn("stale cache empty, degrading to static samples",
			"category", req.Category, "error", err)
	}

	return StaticSamples(req.Limit), TierStaticFixed
}
