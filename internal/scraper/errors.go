package scraper

import "errors"

var (
	// ErrSelectorsExhausted means no locator tier matched anything on the page.
	ErrSelectorsExhausted = errors.New("no locator tier matched any elements")

	// ErrRecordInvalid means a detail-mode extraction produced a record whose
	// title is missing or too short. Fatal to that call.
	ErrRecordInvalid = errors.New("extracted record failed validation")

	// ErrInvalidTarget means a detail URL is malformed or carries no product
	// path segment. The only error surfaced directly to clients.
	ErrInvalidTarget = errors.New("invalid target URL")

	// ErrFetchFailed marks a tier-2 HTTP fetch failure.
	ErrFetchFailed = errors.New("http fetch failed")
)
