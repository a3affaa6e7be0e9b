package scraper

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/davidboeke/catalog-scraper/internal/browser"
	"github.com/davidboeke/catalog-scraper/internal/models"
)

// Cache partitions. List, scrolled, and detail extraction use distinct
// categories so their caches never cross-contaminate.
const (
	CategoryDefault  = "default"
	CategoryEnhanced = "enhanced"
)

// ProvenanceCache labels records served straight from a fresh cache.
const ProvenanceCache = "cache"

// Store is the cache-aside surface the service needs.
type Store interface {
	IsFresh(ctx context.Context, category string, maxAge time.Duration) (models.Freshness, error)
	Read(ctx context.Context, category string, maxAge time.Duration, limit int) ([]*models.ExtractedRecord, error)
	ReadByExternalRef(ctx context.Context, ref string, maxAge time.Duration) (*models.ExtractedRecord, error)
	Upsert(ctx context.Context, records []*models.ExtractedRecord, category string) (int, error)
}

// SessionLog tracks extraction attempts.
type SessionLog interface {
	OpenSession(ctx context.Context, source, category string) (string, error)
	CloseSession(ctx context.Context, sessionID string, success bool, recordsFound int, errorMessage string) error
}

// Options carries the tunables the service reads per call.
type Options struct {
	Source          string
	FreshnessTTL    time.Duration
	StaleMultiplier int
	ScrollIncrement int
	MaxScrollRounds int
	Retry           RetryPolicy
}

// Service is the extraction facade: cache-aside reads, fallback-chain
// resolution, session bookkeeping.
type Service struct {
	browser   *browser.Session
	extractor *Extractor
	paginator *Paginator
	light     *LightFetcher
	store     Store
	sessions  SessionLog
	targets   TargetResolver
	opts      Options
	logger    *slog.Logger
}

func NewService(b *browser.Session, extractor *Extractor, paginator *Paginator, light *LightFetcher,
	store Store, sessions SessionLog, targets TargetResolver, opts Options) *Service {
	if opts.FreshnessTTL <= 0 {
		opts.FreshnessTTL = 24 * time.Hour
	}
	if opts.StaleMultiplier < 1 {
		opts.StaleMultiplier = 3
	}
	if opts.MaxScrollRounds < 1 {
		opts.MaxScrollRounds = 8
	}
	if opts.ScrollIncrement < 1 {
		opts.ScrollIncrement = 800
	}
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.Source == "" {
		opts.Source = "web_catalog"
	}
	return &Service{
		browser:   b,
		extractor: extractor,
		paginator: paginator,
		light:     light,
		store:     store,
		sessions:  sessions,
		targets:   targets,
		opts:      opts,
		logger:    slog.Default().With("component", "scraper_service"),
	}
}

// GetRecords serves N records for a (type, category) pair. Fresh cache wins;
// otherwise the fallback chain runs and the result is persisted. It always
// returns at least one record: tier 4 cannot fail. The second return value
// is the tier that produced the data.
func (s *Service) GetRecords(ctx context.Context, limit int, recordType, category string, force bool) ([]*models.ExtractedRecord, string) {
	if limit < 1 {
		limit = 10
	}
	if category == "" {
		category = CategoryDefault
	}

	if !force {
		if cached := s.readFresh(ctx, category, limit); len(cached) > 0 {
			return cached, ProvenanceCache
		}
	}

	sessionID := s.openSession(ctx, category)

	targetURL, err := s.targets.Resolve(ctx, recordType, category)
	if err != nil || targetURL == "" {
		s.logger.Warn("target resolution failed, using fallback chain without live tier", "error", err)
	}

	chain := s.buildChain()
	records, tier := chain.Resolve(ctx, Request{
		TargetURL: targetURL,
		Category:  category,
		Limit:     limit,
		MaxAge:    s.opts.FreshnessTTL,
	})

	extracted := tier == TierLive || tier == TierHTTP
	if extracted {
		if _, err := s.store.Upsert(ctx, records, category); err != nil {
			// Never discard freshly obtained data over a failed save.
			s.logger.Error("failed to persist extracted records", "category", category, "error", err)
		}
	}

	s.closeSession(ctx, sessionID, extracted, len(records), tierErrorMessage(tier))

	return records, tier
}

// GetRecordDetail extracts a single item from its detail page, cached by URL
// hash. Malformed URLs fail synchronously with ErrInvalidTarget before any
// extraction work.
func (s *Service) GetRecordDetail(ctx context.Context, detailURL string) (*models.ExtractedRecord, error) {
	externalID, err := validateDetailURL(detailURL)
	if err != nil {
		return nil, err
	}

	category := "detail:" + urlHash(detailURL)

	if cached := s.readFresh(ctx, category, 1); len(cached) > 0 {
		return cached[0], nil
	}

	sessionID := s.openSession(ctx, category)

	rec, err := Run(ctx, s.opts.Retry, s.logger, func(ctx context.Context) (*models.ExtractedRecord, error) {
		return s.extractDetailOnce(ctx, detailURL)
	})
	if err != nil {
		s.closeSession(ctx, sessionID, false, 0, err.Error())

		staleWindow := s.opts.FreshnessTTL * time.Duration(s.opts.StaleMultiplier)
		if stale, staleErr := s.store.ReadByExternalRef(ctx, externalID, staleWindow); staleErr == nil && stale != nil {
			stale.Provenance = TierStaleCache
			return stale, nil
		}
		return nil, err
	}

	if _, err := s.store.Upsert(ctx, []*models.ExtractedRecord{rec}, category); err != nil {
		s.logger.Error("failed to persist detail record", "category", category, "error", err)
	}

	s.closeSession(ctx, sessionID, true, 1, "")

	return rec, nil
}

// GetStaticFallback returns the fixed sample set.
func (s *Service) GetStaticFallback(limit int) []*models.ExtractedRecord {
	return StaticSamples(limit)
}

// Status describes the browser session and retry policy for observability.
type Status struct {
	Mode        string `json:"mode"`
	IsRunning   bool   `json:"is_running"`
	RetryPolicy struct {
		MaxAttempts int   `json:"max_attempts"`
		BaseDelayMS int64 `json:"base_delay_ms"`
	} `json:"retry_policy"`
}

func (s *Service) SessionStatus() Status {
	status := Status{
		Mode:      "headless",
		IsRunning: s.browser.IsRunning(),
	}
	if s.browser.Visible() {
		status.Mode = "visible"
	}
	status.RetryPolicy.MaxAttempts = s.opts.Retry.MaxAttempts
	status.RetryPolicy.BaseDelayMS = s.opts.Retry.BaseDelay.Milliseconds()
	return status
}

// SetBrowserMode switches visible/headless; a running browser restarts on
// the next acquisition.
func (s *Service) SetBrowserMode(visible bool) error {
	return s.browser.SetVisible(visible)
}

func (s *Service) buildChain() *Chain {
	chain := &Chain{
		StaleMultiplier: s.opts.StaleMultiplier,
		Logger:          s.logger,
	}
	if s.browser != nil {
		chain.Live = s.liveExtract
	}
	if s.light != nil {
		chain.Light = s.light.FetchRecords
	}
	if s.store != nil {
		chain.Stale = s.store.Read
	}
	return chain
}

// liveExtract is the retry-wrapped tier-1 operation: one page per attempt,
// scroll pagination until the target count is reached.
func (s *Service) liveExtract(ctx context.Context, req Request) ([]*models.ExtractedRecord, error) {
	return Run(ctx, s.opts.Retry, s.logger, func(ctx context.Context) ([]*models.ExtractedRecord, error) {
		page, err := s.browser.Acquire()
		if err != nil {
			return nil, err
		}
		defer s.browser.Release(page)

		if err := s.browser.Navigate(page, req.TargetURL); err != nil {
			return nil, err
		}
		s.browser.HumanizeInteraction(page)

		pager := NewPagePager(page, s.opts.ScrollIncrement)
		records, err := s.paginator.Collect(ctx, pager, req.Limit, s.opts.MaxScrollRounds)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, ErrSelectorsExhausted
		}
		return records, nil
	})
}

func (s *Service) extractDetailOnce(ctx context.Context, detailURL string) (*models.ExtractedRecord, error) {
	page, err := s.browser.Acquire()
	if err != nil {
		return nil, err
	}
	defer s.browser.Release(page)

	if err := s.browser.Navigate(page, detailURL); err != nil {
		return nil, err
	}
	s.browser.HumanizeInteraction(page)

	snapshot, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot detail page: %w", err)
	}

	return s.extractor.ExtractDetail(snapshot, detailURL)
}

func (s *Service) readFresh(ctx context.Context, category string, limit int) []*models.ExtractedRecord {
	fresh, err := s.store.IsFresh(ctx, category, s.opts.FreshnessTTL)
	if err != nil {
		s.logger.Warn("freshness check failed, treating as miss", "category", category, "error", err)
		return nil
	}
	if !fresh.Fresh {
		return nil
	}

	records, err := s.store.Read(ctx, category, s.opts.FreshnessTTL, limit)
	if err != nil {
		s.logger.Warn("cache read failed, treating as miss", "category", category, "error", err)
		return nil
	}
	for _, rec := range records {
		rec.Provenance = ProvenanceCache
	}
	return records
}

// openSession never blocks an extraction on bookkeeping failures.
func (s *Service) openSession(ctx context.Context, category string) string {
	sessionID, err := s.sessions.OpenSession(ctx, s.opts.Source, category)
	if err != nil {
		s.logger.Error("failed to open scrape session", "category", category, "error", err)
		return ""
	}
	return sessionID
}

func (s *Service) closeSession(ctx context.Context, sessionID string, success bool, recordsFound int, errorMessage string) {
	if sessionID == "" {
		return
	}
	if err := s.sessions.CloseSession(ctx, sessionID, success, recordsFound, errorMessage); err != nil {
		s.logger.Error("failed to close scrape session", "session_id", sessionID, "error", err)
	}
}

func tierErrorMessage(tier string) string {
	switch tier {
	case TierStaleCache, TierStaticFixed:
		return "extraction failed, degraded to " + tier
	default:
		return ""
	}
}

// validateDetailURL checks shape and presence of the product path segment,
// returning the embedded external identifier.
func validateDetailURL(detailURL string) (string, error) {
	parsed, err := url.Parse(detailURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("%w: %q", ErrInvalidTarget, detailURL)
	}
	m := externalIDPattern.FindStringSubmatch(parsed.Path)
	if m == nil {
		return "", fmt.Errorf("%w: no product segment in %q", ErrInvalidTarget, detailURL)
	}
	return m[1], nil
}

func urlHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:6])
}
