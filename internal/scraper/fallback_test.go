package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidboeke/catalog-scraper/internal/models"
)

func liveRecords(titles ...string) []*models.ExtractedRecord {
	var records []*models.ExtractedRecord
	for i, title := range titles {
		rec := models.NewRecord(title, "live:grid-faceout")
		rec.Rank = i + 1
		records = append(records, rec)
	}
	return records
}

func TestResolveLiveTierWins(t *testing.T) {
	chain := &Chain{
		Live: func(context.Context, Request) ([]*models.ExtractedRecord, error) {
			return liveRecords("Live Extracted Item Title"), nil
		},
		Light: func(context.Context, string, int) ([]*models.ExtractedRecord, error) {
			t.Fatal("light tier must not run when live succeeds")
			return nil, nil
		},
	}

	records, tier := chain.Resolve(context.Background(), Request{Limit: 5})

	assert.Equal(t, TierLive, tier)
	require.Len(t, records, 1)
	assert.Equal(t, "Live Extracted Item Title", records[0].Title)
}

func TestResolveDegradesToHTTPFetch(t *testing.T) {
	chain := &Chain{
		Live: func(context.Context, Request) ([]*models.ExtractedRecord, error) {
			return nil, errors.New("browser launch failed")
		},
		Light: func(_ context.Context, _ string, limit int) ([]*models.ExtractedRecord, error) {
			rec := models.NewRecord("Pattern Scanned Item Title", "http_fallback:truncate-span")
			return []*models.ExtractedRecord{rec}, nil
		},
	}

	records, tier := chain.Resolve(context.Background(), Request{Limit: 5})

	assert.Equal(t, TierHTTP, tier)
	require.Len(t, records, 1)
}

func TestResolveDegradesToStaleCache(t *testing.T) {
	// A row 40 hours old: outside the 24h freshness window, inside the
	// 72h stale window.
	staleRec := models.NewRecord("Previously Cached Item Title", "live:grid-faceout")
	staleRec.ExtractedAt = time.Now().Add(-40 * time.Hour)

	var staleWindow time.Duration
	chain := &Chain{
		Live: func(context.Context, Request) ([]*models.ExtractedRecord, error) {
			return nil, errors.New("browser down")
		},
		Light: func(context.Context, string, int) ([]*models.ExtractedRecord, error) {
			return nil, ErrFetchFailed
		},
		Stale: func(_ context.Context, _ string, maxAge time.Duration, _ int) ([]*models.ExtractedRecord, error) {
			staleWindow = maxAge
			return []*models.ExtractedRecord{staleRec}, nil
		},
		StaleMultiplier: 3,
	}

	records, tier := chain.Resolve(context.Background(), Request{
		Category: "default",
		Limit:    5,
		MaxAge:   24 * time.Hour,
	})

	assert.Equal(t, TierStaleCache, tier)
	assert.Equal(t, 72*time.Hour, staleWindow)
	require.Len(t, records, 1)
	assert.Equal(t, TierStaleCache, records[0].Provenance)
}

func TestResolveStaticSamplesAsLastResort(t *testing.T) {
	fail := errors.New("unavailable")
	chain := &Chain{
		Live: func(context.Context, Request) ([]*models.ExtractedRecord, error) {
			return nil, fail
		},
		Light: func(context.Context, string, int) ([]*models.ExtractedRecord, error) {
			return nil, fail
		},
		Stale: func(context.Context, string, time.Duration, int) ([]*models.ExtractedRecord, error) {
			return nil, fail
		},
	}

	records, tier := chain.Resolve(context.Background(), Request{Limit: 3})

	assert.Equal(t, TierStaticFixed, tier)
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.Equal(t, ProvenanceStaticSample, rec.Provenance)
	}
}

func TestResolveEmptyTierCountsAsFailure(t *testing.T) {
	chain := &Chain{
		Live: func(context.Context, Request) ([]*models.ExtractedRecord, error) {
			return nil, nil // no error, but nothing extracted
		},
		Light: func(context.Context, string, int) ([]*models.ExtractedRecord, error) {
			return liveRecords("Recovered Via HTTP Fetch Title"), nil
		},
	}

	_, tier := chain.Resolve(context.Background(), Request{Limit: 5})
	assert.Equal(t, TierHTTP, tier)
}

func TestResolveAllTiersNilStillReturnsRecords(t *testing.T) {
	chain := &Chain{}

	records, tier := chain.Resolve(context.Background(), Request{Limit: 10})

	assert.Equal(t, TierStaticFixed, tier)
	assert.NotEmpty(t, records)
}

func TestStaticSamples(t *testing.T) {
	records := StaticSamples(0)
	require.Len(t, records, 5)

	for i, rec := range records {
		assert.Equal(t, i+1, rec.Rank)
		assert.True(t, rec.HasValidTitle())
		assert.NotEmpty(t, rec.ExternalID)
		assert.NotEmpty(t, rec.Price)
	}

	assert.Len(t, StaticSamples(2), 2)
	assert.Len(t, StaticSamples(100), 5)
}
