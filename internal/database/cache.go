package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/davidboeke/catalog-scraper/internal/models"
)

// ErrPersistence marks a failed write batch. Callers are expected to log it
// and keep the unpersisted records rather than discard fresh data.
var ErrPersistence = errors.New("persistence failure")

// CacheStore is the cache-aside coordinator over the records table:
// freshness checks, upsert-with-dedup, retention cleanup. Each call acquires
// a pooled connection for one query or transaction and releases it.
type CacheStore struct {
	pool   Pool
	source string
	logger *slog.Logger
}

func NewCacheStore(pool Pool, source string) *CacheStore {
	return &CacheStore{
		pool:   pool,
		source: source,
		logger: slog.Default().With("component", "cache_store"),
	}
}

const recordColumns = `external_id, rank, title, price, rating, image_url, detail_url,
	availability, review_count, brand, features, updated_at`

// IsFresh reports whether at least one row in the category is strictly
// younger than maxAge. A row exactly at the threshold does not count.
func (s *CacheStore) IsFresh(ctx context.Context, category string, maxAge time.Duration) (models.Freshness, error) {
	cutoff := time.Now().Add(-maxAge)

	var count int
	var lastUpdated *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), MAX(updated_at) FROM records WHERE category = $1 AND updated_at > $2`,
		category, cutoff,
	).Scan(&count, &lastUpdated)
	if err != nil {
		return models.Freshness{}, fmt.Errorf("failed to check freshness: %w", err)
	}

	return models.Freshness{
		Fresh:       count > 0,
		Count:       count,
		LastUpdated: lastUpdated,
	}, nil
}

// Read returns rows in the category newer than maxAge, ordered by rank then
// recency, capped at limit.
func (s *CacheStore) Read(ctx context.Context, category string, maxAge time.Duration, limit int) ([]*models.ExtractedRecord, error) {
	cutoff := time.Now().Add(-maxAge)

	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM records
		 WHERE category = $1 AND updated_at > $2
		 ORDER BY rank ASC, updated_at DESC
		 LIMIT $3`,
		category, cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}
	defer rows.Close()

	var records []*models.ExtractedRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cache rows: %w", err)
	}

	return records, nil
}

// ReadByExternalRef returns the most recent row matching ref within maxAge,
// or nil when none exists.
func (s *CacheStore) ReadByExternalRef(ctx context.Context, ref string, maxAge time.Duration) (*models.ExtractedRecord, error) {
	cutoff := time.Now().Add(-maxAge)

	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM records
		 WHERE external_id = $1 AND updated_at > $2
		 ORDER BY updated_at DESC
		 LIMIT 1`,
		ref, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read by external ref: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanRecord(rows)
}

// Upsert writes a batch as one all-or-nothing unit. Rows with an external
// identifier dedup on it, overwriting all mutable fields and bumping
// updated_at; rows without one insert plain. Returns the rows written.
func (s *CacheStore) Upsert(ctx context.Context, records []*models.ExtractedRecord, category string) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	count := 0
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, rec := range records {
			if err := s.upsertOne(ctx, tx, rec, category); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return count, nil
}

func (s *CacheStore) upsertOne(ctx context.Context, tx pgx.Tx, rec *models.ExtractedRecord, category string) error {
	features, err := marshalFeatures(rec.Features)
	if err != nil {
		return err
	}

	if rec.ExternalID == "" {
		_, err := tx.Exec(ctx,
			`INSERT INTO records (external_id, rank, title, price, rating, image_url, detail_url,
				source, category, availability, review_count, brand, features, updated_at)
			 VALUES (NULL, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, CURRENT_TIMESTAMP)`,
			rec.Rank, rec.Title, nullStr(rec.Price), nullStr(rec.Rating),
			nullStr(rec.ImageURL), nullStr(rec.DetailURL), s.source, category,
			nullStr(rec.Availability), nullStr(rec.ReviewCount), nullStr(rec.Brand), features,
		)
		if err != nil {
			return fmt.Errorf("failed to insert record %q: %w", rec.Title, err)
		}
		return nil
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO records (external_id, rank, title, price, rating, image_url, detail_url,
			source, category, availability, review_count, brand, features, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, CURRENT_TIMESTAMP)
		 ON CONFLICT (external_id) DO UPDATE SET
			rank = EXCLUDED.rank,
			title = EXCLUDED.title,
			price = EXCLUDED.price,
			rating = EXCLUDED.rating,
			image_url = EXCLUDED.image_url,
			detail_url = EXCLUDED.detail_url,
			source = EXCLUDED.source,
			category = EXCLUDED.category,
			availability = EXCLUDED.availability,
			review_count = EXCLUDED.review_count,
			brand = EXCLUDED.brand,
			features = EXCLUDED.features,
			updated_at = CURRENT_TIMESTAMP`,
		rec.ExternalID, rec.Rank, rec.Title, nullStr(rec.Price), nullStr(rec.Rating),
		nullStr(rec.ImageURL), nullStr(rec.DetailURL), s.source, category,
		nullStr(rec.Availability), nullStr(rec.ReviewCount), nullStr(rec.Brand), features,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", rec.ExternalID, err)
	}
	return nil
}

// Purge deletes rows older than the retention window and returns how many
// were removed.
func (s *CacheStore) Purge(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	tag, err := s.pool.Exec(ctx, `DELETE FROM records WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge records: %w", err)
	}

	deleted := tag.RowsAffected()
	if deleted > 0 {
		s.logger.Info("purged stale records", "deleted", deleted, "older_than_days", olderThanDays)
	}
	return deleted, nil
}

func scanRecord(rows pgx.Rows) (*models.ExtractedRecord, error) {
	var (
		externalID, price, rating, imageURL, detailURL *string
		availability, reviewCount, brand               *string
		features                                       []byte
		updatedAt                                      time.Time
	)

	rec := &models.ExtractedRecord{}
	err := rows.Scan(&externalID, &rec.Rank, &rec.Title, &price, &rating, &imageURL,
		&detailURL, &availability, &reviewCount, &brand, &features, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}

	rec.ExternalID = deref(externalID)
	rec.Price = deref(price)
	rec.Rating = deref(rating)
	rec.ImageURL = deref(imageURL)
	rec.DetailURL = deref(detailURL)
	rec.Availability = deref(availability)
	rec.ReviewCount = deref(reviewCount)
	rec.Brand = deref(brand)
	rec.ExtractedAt = updatedAt
	rec.FillSentinels()

	if len(features) > 0 {
		if err := json.Unmarshal(features, &rec.Features); err != nil {
			return nil, fmt.Errorf("failed to decode features: %w", err)
		}
	}

	return rec, nil
}

func marshalFeatures(features []string) ([]byte, error) {
	if len(features) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(features)
	if err != nil {
		return nil, fmt.Errorf("failed to encode features: %w", err)
	}
	return data, nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
