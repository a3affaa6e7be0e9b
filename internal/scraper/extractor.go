package scraper

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/davidboeke/catalog-scraper/internal/models"
)

var rankBadgePattern = regexp.MustCompile(`#?(\d+)`)

// Extractor turns a DOM snapshot into records by walking the locator cascade.
// It is a pure transform over HTML text: the browser hands it page content,
// tests hand it fixtures.
type Extractor struct {
	cascade  Cascade
	detail   DetailCascade
	minCount int
	baseURL  string
	logger   *slog.Logger
}

func NewExtractor(minCount int, baseURL string) *Extractor {
	if minCount < 1 {
		minCount = 1
	}
	return &Extractor{
		cascade:  DefaultCascade(),
		detail:   DefaultDetailCascade(),
		minCount: minCount,
		baseURL:  baseURL,
		logger:   slog.Default().With("component", "extractor"),
	}
}

// ExtractList applies the element cascade to a snapshot and returns accepted
// records in DOM encounter order. limit <= 0 means no cap. Records without a
// derivable external identifier are dropped.
func (e *Extractor) ExtractList(snapshot string, limit int) ([]*models.ExtractedRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot))
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}

	needed := e.minCount
	if limit > needed {
		needed = limit
	}

	elements, tierName := e.collectElements(doc, needed)
	if len(elements) == 0 {
		return nil, ErrSelectorsExhausted
	}

	var records []*models.ExtractedRecord
	for i, sel := range elements {
		rec := e.extractOne(sel, i+1, tierName)
		if rec == nil {
			continue
		}
		if rec.ExternalID == "" {
			e.logger.Debug("dropping record without identifier", "title", rec.Title)
			continue
		}
		records = append(records, rec)
		if limit > 0 && len(records) >= limit {
			break
		}
	}

	return records, nil
}

// collectElements walks the tier cascade, unioning matches without
// duplicating elements already found, and stops once enough candidates are
// collected. Returns the name of the last tier that contributed.
func (e *Extractor) collectElements(doc *goquery.Document, needed int) ([]*goquery.Selection, string) {
	var elements []*goquery.Selection
	seen := make(map[*html.Node]bool)
	tierName := ""

	for _, tier := range e.cascade.Tiers {
		added := 0
		doc.Find(tier.Selector).Each(func(_ int, sel *goquery.Selection) {
			node := sel.Get(0)
			if seen[node] {
				return
			}
			seen[node] = true
			elements = append(elements, sel)
			added++
		})
		if added > 0 {
			tierName = tier.Name
		}
		if len(elements) >= needed {
			break
		}
	}

	return elements, tierName
}

// extractOne runs the per-field cascades on one candidate element. Returns
// nil when the title fails validation.
func (e *Extractor) extractOne(sel *goquery.Selection, position int, tierName string) *models.ExtractedRecord {
	title := e.firstText(sel, e.cascade.Title)
	if title == "" {
		title = e.firstAttr(sel, e.cascade.TitleAttr, "alt")
	}

	rec := models.NewRecord(title, "live:"+tierName)
	if !rec.HasValidTitle() {
		return nil
	}

	if price := e.firstText(sel, e.cascade.Price); price != "" {
		rec.Price = price
	}
	if rating := e.firstText(sel, e.cascade.Rating); rating != "" {
		rec.Rating = rating
	}
	if img := e.firstAttr(sel, e.cascade.Image, "src"); img != "" {
		rec.ImageURL = img
	}
	if href := e.firstAttr(sel, e.cascade.Link, "href"); href != "" {
		rec.DetailURL = e.absoluteURL(href)
	}

	rec.ExternalID = e.deriveExternalID(sel, rec.DetailURL)

	// Positional rank, overridden by an explicit badge when present.
	rec.Rank = position
	if badge := e.firstText(sel, e.cascade.RankBadge); badge != "" {
		if m := rankBadgePattern.FindStringSubmatch(badge); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 {
				rec.Rank = n
			}
		}
	}

	return rec
}

// ExtractDetail parses a detail-page snapshot into a single record. A missing
// or short title is fatal; a missing identifier is tolerated in detail mode.
func (e *Extractor) ExtractDetail(snapshot, pageURL string) (*models.ExtractedRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot))
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}

	root := doc.Selection
	title := e.firstText(root, e.detail.Title)

	rec := models.NewRecord(title, "live:detail")
	if !rec.HasValidTitle() {
		return nil, fmt.Errorf("%w: title %q", ErrRecordInvalid, title)
	}

	rec.Rank = 1
	rec.DetailURL = pageURL

	if price := e.firstText(root, e.detail.Price); price != "" {
		rec.Price = price
	}
	rating := e.firstText(root, e.detail.Rating)
	if rating == "" {
		rating = e.firstAttr(root, e.detail.RatingAttr, "title")
	}
	if rating != "" {
		rec.Rating = rating
	}
	if img := e.firstAttr(root, e.detail.Image, "src"); img != "" {
		rec.ImageURL = img
	}
	if avail := e.firstText(root, e.detail.Availability); avail != "" {
		rec.Availability = avail
	}
	if reviews := e.firstText(root, e.detail.ReviewCount); reviews != "" {
		rec.ReviewCount = reviews
	}
	if brand := e.firstText(root, e.detail.Brand); brand != "" {
		rec.Brand = brand
	}

	root.Find(strings.Join(e.detail.Features, ", ")).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := normalizeSpace(s.Text())
		if text != "" {
			rec.Features = append(rec.Features, text)
		}
		return len(rec.Features) < models.MaxFeatures
	})

	if m := externalIDPattern.FindStringSubmatch(pageURL); m != nil {
		rec.ExternalID = m[1]
	}

	return rec, nil
}

func (e *Extractor) deriveExternalID(sel *goquery.Selection, detailURL string) string {
	for _, attr := range e.cascade.IDAttrs {
		if v, ok := sel.Attr(attr); ok && v != "" {
			return v
		}
	}
	if m := externalIDPattern.FindStringSubmatch(detailURL); m != nil {
		return m[1]
	}
	return ""
}

func (e *Extractor) firstText(sel *goquery.Selection, cascade FieldCascade) string {
	for _, selector := range cascade {
		found := sel.Find(selector).First()
		if text := normalizeSpace(found.Text()); text != "" {
			return text
		}
	}
	return ""
}

func (e *Extractor) firstAttr(sel *goquery.Selection, cascade FieldCascade, attr string) string {
	for _, selector := range cascade {
		if v, ok := sel.Find(selector).First().Attr(attr); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func (e *Extractor) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base, err := url.Parse(e.baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
