package scraper

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidboeke/catalog-scraper/internal/models"
)

func gridItem(asin, title string) string {
	return fmt.Sprintf(`<div class="zg-grid-general-faceout">
		<a class="a-link-normal" href="/dp/%s">
			<span class="p13n-sc-truncate">%s</span>
		</a>
		<span class="p13n-sc-price">$19.99</span>
		<span class="a-icon-alt">4.5 out of 5 stars</span>
		<img src="https://img.example.com/%s.jpg" alt="%s">
	</div>`, asin, title, asin, title)
}

func wrapPage(items ...string) string {
	return `<html><body><div id="grid">` + strings.Join(items, "\n") + `</div></body></html>`
}

func TestExtractListGridLayout(t *testing.T) {
	extractor := NewExtractor(3, "https://www.example.com")

	snapshot := wrapPage(
		gridItem("B0AAAAAAA1", "Wireless Noise Cancelling Headphones"),
		gridItem("B0AAAAAAA2", "Ergonomic Office Chair with Lumbar Support"),
		gridItem("B0AAAAAAA3", "Ceramic Pour Over Coffee Dripper"),
	)

	records, err := extractor.ExtractList(snapshot, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, "B0AAAAAAA1", first.ExternalID)
	assert.Equal(t, 1, first.Rank)
	assert.Equal(t, "Wireless Noise Cancelling Headphones", first.Title)
	assert.Equal(t, "$19.99", first.Price)
	assert.Equal(t, "4.5 out of 5 stars", first.Rating)
	assert.Equal(t, "https://www.example.com/dp/B0AAAAAAA1", first.DetailURL)
	assert.Equal(t, "live:grid-faceout", first.Provenance)

	// Ranks follow DOM order when no badge is present.
	assert.Equal(t, 2, records[1].Rank)
	assert.Equal(t, 3, records[2].Rank)
}

func TestExtractListRespectsLimit(t *testing.T) {
	extractor := NewExtractor(1, "")

	snapshot := wrapPage(
		gridItem("B0AAAAAAA1", "First Catalog Item Title"),
		gridItem("B0AAAAAAA2", "Second Catalog Item Title"),
		gridItem("B0AAAAAAA3", "Third Catalog Item Title"),
	)

	records, err := extractor.ExtractList(snapshot, 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestExtractListRankBadgeOverridesPosition(t *testing.T) {
	extractor := NewExtractor(1, "")

	snapshot := wrapPage(`<div class="zg-grid-general-faceout">
		<span class="zg-bdg-text">#7</span>
		<a class="a-link-normal" href="/dp/B0AAAAAAA9">
			<span class="p13n-sc-truncate">Stainless Steel Chef Knife Set</span>
		</a>
	</div>`)

	records, err := extractor.ExtractList(snapshot, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 7, records[0].Rank)
}

func TestExtractListRejectsShortTitles(t *testing.T) {
	extractor := NewExtractor(1, "")

	snapshot := wrapPage(
		gridItem("B0AAAAAAA1", "Mug"),
		gridItem("B0AAAAAAA2", "Insulated Travel Mug with Lid"),
	)

	records, err := extractor.ExtractList(snapshot, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Insulated Travel Mug with Lid", records[0].Title)
}

func TestExtractListDropsRecordsWithoutIdentifier(t *testing.T) {
	extractor := NewExtractor(1, "")

	snapshot := wrapPage(`<div class="zg-grid-general-faceout">
		<span class="p13n-sc-truncate">Item With No Detail Link At All</span>
	</div>`,
		gridItem("B0AAAAAAA2", "Item With A Proper Detail Link"),
	)

	records, err := extractor.ExtractList(snapshot, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "B0AAAAAAA2", records[0].ExternalID)
}

func TestExtractListFallsBackToLooserTiers(t *testing.T) {
	extractor := NewExtractor(2, "")

	// No grid faceouts on the page; only generic data-asin blocks.
	snapshot := wrapPage(
		`<div data-asin="B0BBBBBBB1">
			<img src="/img/1.jpg" alt="Bamboo Cutting Board Set of Three">
		</div>`,
		`<div data-asin="B0BBBBBBB2">
			<img src="/img/2.jpg" alt="Silicone Baking Mat Nonstick Pair">
		</div>`,
	)

	records, err := extractor.ExtractList(snapshot, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "B0BBBBBBB1", records[0].ExternalID)
	assert.Equal(t, "Bamboo Cutting Board Set of Three", records[0].Title)
	assert.Equal(t, "live:any-asin-block", records[0].Provenance)
}

func TestExtractListNoMatches(t *testing.T) {
	extractor := NewExtractor(3, "")

	_, err := extractor.ExtractList(`<html><body><p>nothing here</p></body></html>`, 0)
	assert.ErrorIs(t, err, ErrSelectorsExhausted)
}

func TestExtractListMissingFieldsGetSentinels(t *testing.T) {
	extractor := NewExtractor(1, "")

	snapshot := wrapPage(`<div class="zg-grid-general-faceout">
		<a class="a-link-normal" href="/dp/B0AAAAAAA5">
			<span class="p13n-sc-truncate">Item Without Price Or Rating</span>
		</a>
	</div>`)

	records, err := extractor.ExtractList(snapshot, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.Unavailable, records[0].Price)
	assert.Equal(t, models.Unavailable, records[0].Rating)
}

func TestExtractDetail(t *testing.T) {
	extractor := NewExtractor(1, "")

	snapshot := `<html><body>
		<h1><span id="productTitle">  Professional Espresso Machine with Milk Frother  </span></h1>
		<div class="a-price"><span class="a-offscreen">$249.00</span></div>
		<span id="acrPopover" title="4.6 out of 5 stars"><span class="a-icon-alt">4.6 out of 5 stars</span></span>
		<span id="acrCustomerReviewText">1,204 ratings</span>
		<a id="bylineInfo">Visit the BrewCraft Store</a>
		<div id="availability"><span>In Stock</span></div>
		<img id="landingImage" src="https://img.example.com/espresso.jpg">
		<div id="feature-bullets"><ul>
			<li><span class="a-list-item">15 bar pressure pump</span></li>
			<li><span class="a-list-item">Built-in steam wand</span></li>
			<li><span class="a-list-item">Removable water tank</span></li>
			<li><span class="a-list-item">Cup warming tray</span></li>
			<li><span class="a-list-item">Stainless steel body</span></li>
			<li><span class="a-list-item">Two year warranty</span></li>
		</ul></div>
	</body></html>`

	rec, err := extractor.ExtractDetail(snapshot, "https://www.example.com/dp/B0CCCCCCC1")
	require.NoError(t, err)

	assert.Equal(t, "Professional Espresso Machine with Milk Frother", rec.Title)
	assert.Equal(t, "$249.00", rec.Price)
	assert.Equal(t, "4.6 out of 5 stars", rec.Rating)
	assert.Equal(t, "1,204 ratings", rec.ReviewCount)
	assert.Equal(t, "Visit the BrewCraft Store", rec.Brand)
	assert.Equal(t, "In Stock", rec.Availability)
	assert.Equal(t, "https://img.example.com/espresso.jpg", rec.ImageURL)
	assert.Equal(t, "B0CCCCCCC1", rec.ExternalID)
	assert.Equal(t, 1, rec.Rank)
	assert.Len(t, rec.Features, models.MaxFeatures)
}

func TestExtractDetailMissingTitleIsFatal(t *testing.T) {
	extractor := NewExtractor(1, "")

	_, err := extractor.ExtractDetail(`<html><body><div id="availability"><span>In Stock</span></div></body></html>`,
		"https://www.example.com/dp/B0CCCCCCC2")
	assert.ErrorIs(t, err, ErrRecordInvalid)
}

func TestExtractDetailToleratesMissingIdentifier(t *testing.T) {
	extractor := NewExtractor(1, "")

	rec, err := extractor.ExtractDetail(`<html><body><span id="productTitle">Handmade Walnut Serving Tray</span></body></html>`,
		"https://www.example.com/some/other/path")
	require.NoError(t, err)
	assert.Empty(t, rec.ExternalID)
	assert.Equal(t, "Handmade Walnut Serving Tray", rec.Title)
}
