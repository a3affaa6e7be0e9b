package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/davidboeke/catalog-scraper/internal/models"
)

// Pager reveals more content between extraction rounds. The playwright
// adapter scrolls a real page; tests feed canned snapshots.
type Pager interface {
	Snapshot() (string, error)
	ScrollForward() error
}

// Paginator drives incremental reveal: snapshot, extract, merge uniques,
// scroll, settle, repeat.
type Paginator struct {
	extractor *Extractor
	settle    time.Duration
	logger    *slog.Logger
}

func NewPaginator(extractor *Extractor, settle time.Duration) *Paginator {
	return &Paginator{
		extractor: extractor,
		settle:    settle,
		logger:    slog.Default().With("component", "paginator"),
	}
}

// Collect accumulates unique records until targetCount is reached, a round
// adds nothing new, or maxRounds runs out. Falling short of targetCount is
// not a failure. Dedup is by title: partially loaded elements may not expose
// an identifier yet.
func (p *Paginator) Collect(ctx context.Context, pager Pager, targetCount, maxRounds int) ([]*models.ExtractedRecord, error) {
	if targetCount < 1 {
		targetCount = 1
	}

	var collected []*models.ExtractedRecord
	seenTitles := make(map[string]bool)

	for round := 1; round <= maxRounds; round++ {
		snapshot, err := pager.Snapshot()
		if err != nil {
			return collected, fmt.Errorf("failed to snapshot page: %w", err)
		}

		records, err := p.extractor.ExtractList(snapshot, 0)
		if err != nil && len(collected) == 0 {
			return nil, err
		}

		added := 0
		for _, rec := range records {
			if seenTitles[rec.Title] {
				continue
			}
			seenTitles[rec.Title] = true
			collected = append(collected, rec)
			added++
			if len(collected) >= targetCount {
				break
			}
		}

		p.logger.Debug("scroll round complete", "round", round, "added", added, "total", len(collected))

		if len(collected) >= targetCount || added == 0 {
			break
		}
		if round == maxRounds {
			break
		}

		if err := pager.ScrollForward(); err != nil {
			p.logger.Warn("scroll failed, stopping pagination", "round", round, "error", err)
			break
		}

		select {
		case <-ctx.Done():
			return collected, ctx.Err()
		case <-time.After(p.settle):
		}
	}

	if len(collected) > targetCount {
		collected = collected[:targetCount]
	}
	return collected, nil
}

// pagePager adapts a live playwright page to the Pager interface.
type pagePager struct {
	page      playwright.Page
	increment int
}

// NewPagePager wraps a page with a fixed scroll increment in pixels.
func NewPagePager(page playwright.Page, increment int) Pager {
	return &pagePager{page: page, increment: increment}
}

func (p *pagePager) Snapshot() (string, error) {
	return p.page.Content()
}

func (p *pagePager) ScrollForward() error {
	_, err := p.page.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", p.increment))
	return err
}
