package scraper

import "regexp"

// ElementTier is one named locator in the element cascade. Tiers are ordered
// from the most specific page structure to the most generic.
type ElementTier struct {
	Name     string
	Selector string
}

// FieldCascade is an ordered list of selectors for a single field. The first
// non-empty match wins.
type FieldCascade []string

// Cascade is the full, data-driven locator configuration for list-mode
// extraction. Every entry is a plain CSS selector so the sets can be tested
// and adjusted without touching extraction logic.
type Cascade struct {
	Tiers []ElementTier

	Title     FieldCascade
	TitleAttr FieldCascade // selectors whose alt/title attribute carries the name
	Price     FieldCascade
	Rating    FieldCascade
	Image     FieldCascade
	Link      FieldCascade
	IDAttrs   []string // element attributes carrying the external identifier
	RankBadge FieldCascade
}

// externalIDPattern pulls the stable identifier out of a canonical detail URL.
var externalIDPattern = regexp.MustCompile(`/dp/([A-Z0-9]{10})`)

// DefaultCascade matches the bestseller grid as currently rendered, with
// progressively looser fallbacks for older or partially loaded layouts.
func DefaultCascade() Cascade {
	return Cascade{
		Tiers: []ElementTier{
			{Name: "grid-faceout", Selector: `div.zg-grid-general-faceout`},
			{Name: "grid-item-root", Selector: `div[id^="gridItemRoot"]`},
			{Name: "immersion-item", Selector: `.zg-item-immersion`},
			{Name: "carousel-card", Selector: `div.p13n-sc-uncoverable-faceout`},
			{Name: "any-asin-block", Selector: `div[data-asin]`},
		},
		Title: FieldCascade{
			`.p13n-sc-truncate`,
			`.p13n-sc-truncate-desktop-type2`,
			`a.a-link-normal span div`,
			`.a-size-base-plus`,
			`h2`,
		},
		TitleAttr: FieldCascade{
			`img[alt]`,
		},
		Price: FieldCascade{
			`.p13n-sc-price`,
			`span.p13n-sc-price`,
			`.a-price .a-offscreen`,
			`span.a-color-price`,
		},
		Rating: FieldCascade{
			`.a-icon-alt`,
			`i.a-icon-star-small span`,
			`i.a-icon-star span`,
		},
		Image: FieldCascade{
			`img`,
		},
		Link: FieldCascade{
			`a.a-link-normal`,
			`a[href*="/dp/"]`,
		},
		IDAttrs: []string{
			"data-asin",
			"data-id",
		},
		RankBadge: FieldCascade{
			`.zg-bdg-text`,
			`.zg-badge-text`,
		},
	}
}

// DetailCascade is the field-level locator set for single-item detail pages.
type DetailCascade struct {
	Title        FieldCascade
	Price        FieldCascade
	Rating       FieldCascade
	RatingAttr   FieldCascade
	Image        FieldCascade
	Availability FieldCascade
	ReviewCount  FieldCascade
	Brand        FieldCascade
	Features     FieldCascade
}

func DefaultDetailCascade() DetailCascade {
	return DetailCascade{
		Title: FieldCascade{
			`#productTitle`,
			`#title span`,
			`h1.a-size-large`,
		},
		Price: FieldCascade{
			`.a-price .a-offscreen`,
			`#priceblock_ourprice`,
			`#priceblock_dealprice`,
			`span.a-color-price`,
		},
		Rating: FieldCascade{
			`#acrPopover .a-icon-alt`,
			`.a-icon-alt`,
		},
		RatingAttr: FieldCascade{
			`#acrPopover`,
		},
		Image: FieldCascade{
			`#landingImage`,
			`#imgBlkFront`,
			`#main-image-container img`,
		},
		Availability: FieldCascade{
			`#availability span`,
			`#availability`,
		},
		ReviewCount: FieldCascade{
			`#acrCustomerReviewText`,
			`#averageCustomerReviews a span`,
		},
		Brand: FieldCascade{
			`#bylineInfo`,
			`a#brand`,
		},
		Features: FieldCascade{
			`#feature-bullets li span.a-list-item`,
			`#productOverview_feature_div td span`,
		},
	}
}
