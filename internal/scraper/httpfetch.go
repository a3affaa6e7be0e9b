package scraper

import (
	"context"
	"fmt"
	stdhtml "html"
	"log/slog"
	"regexp"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/davidboeke/catalog-scraper/internal/models"
)

// titlePattern is one named text pattern for pulling title-like fragments
// out of raw markup. The scan stops at the first pattern with any match.
type titlePattern struct {
	name string
	re   *regexp.Regexp
}

func defaultTitlePatterns() []titlePattern {
	return []titlePattern{
		{"truncate-span", regexp.MustCompile(`<span[^>]*class="[^"]*p13n-sc-truncate[^"]*"[^>]*>\s*([^<]{5,250}?)\s*</span>`)},
		{"img-alt", regexp.MustCompile(`<img[^>]+alt="([^"]{5,250}?)"`)},
		{"heading", regexp.MustCompile(`<h[23][^>]*>\s*([^<]{5,250}?)\s*</h[23]>`)},
		{"detail-link", regexp.MustCompile(`<a[^>]+href="[^"]*?/dp/[A-Z0-9]{10}[^"]*"[^>]*>\s*([^<]{5,250}?)\s*</a>`)},
	}
}

// LightFetcher is the browser-free tier: a plain HTTP GET of the target's
// markup, scanned with ordered text patterns. Best effort only; price and
// rating are marked unavailable.
type LightFetcher struct {
	userAgent string
	timeout   time.Duration
	patterns  []titlePattern
	logger    *slog.Logger
}

func NewLightFetcher(userAgent string, timeout time.Duration) *LightFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &LightFetcher{
		userAgent: userAgent,
		timeout:   timeout,
		patterns:  defaultTitlePatterns(),
		logger:    slog.Default().With("component", "light_fetcher"),
	}
}

// FetchRecords downloads the target markup and scans it for records.
func (f *LightFetcher) FetchRecords(ctx context.Context, targetURL string, limit int) ([]*models.ExtractedRecord, error) {
	body, err := f.fetch(ctx, targetURL)
	if err != nil {
		return nil, err
	}
	records := f.ScanMarkup(string(body), limit)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no pattern matched %s", ErrFetchFailed, targetURL)
	}
	return records, nil
}

func (f *LightFetcher) fetch(ctx context.Context, targetURL string) ([]byte, error) {
	c := colly.NewCollector()
	c.UserAgent = f.userAgent
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(f.timeout)

	var body []byte
	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- c.Visit(targetURL)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: fetch canceled: %v", ErrFetchFailed, ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, targetURL, err)
		}
	}

	if fetchErr != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, targetURL, fetchErr)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty response from %s", ErrFetchFailed, targetURL)
	}
	return body, nil
}

// ScanMarkup applies the ordered pattern set to raw markup. Duplicate titles
// are dropped by exact string match; rank is positional.
func (f *LightFetcher) ScanMarkup(markup string, limit int) []*models.ExtractedRecord {
	for _, pattern := range f.patterns {
		matches := pattern.re.FindAllStringSubmatch(markup, -1)
		if len(matches) == 0 {
			continue
		}

		seen := make(map[string]bool)
		var records []*models.ExtractedRecord
		for _, m := range matches {
			title := normalizeSpace(stdhtml.UnescapeString(m[1]))
			if len(title) < models.MinTitleLength || seen[title] {
				continue
			}
			seen[title] = true

			rec := models.NewRecord(title, "http_fallback:"+pattern.name)
			rec.Rank = len(records) + 1
			records = append(records, rec)

			if limit > 0 && len(records) >= limit {
				break
			}
		}

		if len(records) > 0 {
			f.logger.Info("markup scan matched", "pattern", pattern.name, "count", len(records))
			return records
		}
	}

	return nil
}
