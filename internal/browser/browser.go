package browser

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// LaunchError is returned when both the primary and the conservative launch
// configurations fail. It carries both underlying messages.
type LaunchError struct {
	Primary  error
	Fallback error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("browser launch failed: primary: %v; fallback: %v", e.Primary, e.Fallback)
}

// ErrNavigationTimeout marks a page navigation that exceeded its deadline.
// Callers treat it as one failed attempt; retry happens above this package.
var ErrNavigationTimeout = fmt.Errorf("navigation timeout")

type Options struct {
	Visible        bool
	NavTimeout     time.Duration
	ActionTimeout  time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Visible:        false,
		NavTimeout:     30 * time.Second,
		ActionTimeout:  10 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "en-US,en;q=0.9",
		TimezoneID:     "America/New_York",
		Locale:         "en-US",
		ExtraHeaders: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Encoding": "gzip, deflate, br",
			"DNT":             "1",
		},
	}
}

// stealthScript runs before any page script and removes the automation
// telltales the target checks for: the webdriver flag plus empty plugin
// and language fingerprints.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
window.chrome = window.chrome || { runtime: {} };
`

// Session owns the lifecycle of one shared browser process. Acquire lazily
// launches it; pages are independent and closed by their owner via Release.
type Session struct {
	mu      sync.Mutex
	opts    *Options
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	logger  *slog.Logger
}

func NewSession(opts *Options) *Session {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Session{
		opts:   opts,
		logger: slog.Default().With("component", "browser"),
	}
}

// Acquire returns a configured page, launching the shared browser first if
// none is running. Safe for concurrent use; the launch happens at most once.
func (s *Session) Acquire() (playwright.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser == nil || !s.browser.IsConnected() {
		if err := s.launchLocked(); err != nil {
			return nil, err
		}
	}

	page, err := s.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.SetDefaultNavigationTimeout(float64(s.opts.NavTimeout.Milliseconds()))
	page.SetDefaultTimeout(float64(s.opts.ActionTimeout.Milliseconds()))

	return page, nil
}

// Release closes only the page. The browser stays up for the next caller.
func (s *Session) Release(page playwright.Page) {
	if page == nil {
		return
	}
	if err := page.Close(); err != nil {
		s.logger.Warn("failed to close page", "error", err)
	}
}

// Shutdown closes the browser process and clears the singleton. The next
// Acquire launches a fresh browser.
func (s *Session) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teardownLocked()
}

// SetVisible flips between visible and headless mode. A running browser is
// torn down so the next Acquire observes the new mode.
func (s *Session) SetVisible(visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.Visible == visible {
		return nil
	}
	s.opts.Visible = visible
	s.logger.Info("browser mode changed", "visible", visible)
	return s.teardownLocked()
}

// Visible reports the configured mode.
func (s *Session) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.Visible
}

// IsRunning reports whether a browser process is currently up.
func (s *Session) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.browser != nil && s.browser.IsConnected()
}

// launchLocked tries the full human-like configuration first, then retries
// once with a minimal conservative one. Both failing is a LaunchError.
func (s *Session) launchLocked() error {
	primaryErr := s.tryLaunchLocked(s.primaryLaunchOptions())
	if primaryErr == nil {
		return nil
	}

	s.logger.Warn("primary browser launch failed, retrying with conservative config", "error", primaryErr)

	fallbackErr := s.tryLaunchLocked(s.conservativeLaunchOptions())
	if fallbackErr == nil {
		return nil
	}

	return &LaunchError{Primary: primaryErr, Fallback: fallbackErr}
}

func (s *Session) primaryLaunchOptions() playwright.BrowserTypeLaunchOptions {
	return playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(!s.opts.Visible),
		Timeout:  playwright.Float(60000),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--window-size=1920,1080",
			"--start-maximized",
			"--user-agent=" + s.opts.UserAgent,
		},
	}
}

func (s *Session) conservativeLaunchOptions() playwright.BrowserTypeLaunchOptions {
	return playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Timeout:  playwright.Float(30000),
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	}
}

func (s *Session) tryLaunchLocked(launchOpts playwright.BrowserTypeLaunchOptions) error {
	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	ctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         &s.opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &s.opts.Locale,
		TimezoneId:        &s.opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  s.opts.ViewportWidth,
			Height: s.opts.ViewportHeight,
		},
		ExtraHttpHeaders: s.headers(),
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return fmt.Errorf("failed to create browser context: %w", err)
	}

	// Fingerprint reduction is applied to every page in this context,
	// before any page script runs. Not optional.
	if err := ctx.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
		ctx.Close()
		browser.Close()
		pw.Stop()
		return fmt.Errorf("failed to install stealth script: %w", err)
	}

	s.pw = pw
	s.browser = browser
	s.context = ctx
	return nil
}

func (s *Session) headers() map[string]string {
	headers := make(map[string]string, len(s.opts.ExtraHeaders)+1)
	for k, v := range s.opts.ExtraHeaders {
		headers[k] = v
	}
	headers["Accept-Language"] = s.opts.AcceptLanguage
	return headers
}

func (s *Session) teardownLocked() error {
	var errs []error

	if s.context != nil {
		if err := s.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
		s.context = nil
	}

	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
		s.browser = nil
	}

	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
		s.pw = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during teardown: %v", errs)
	}

	return nil
}

// Navigate loads a URL and waits for the DOM. Timeouts surface as
// ErrNavigationTimeout; retries are the caller's responsibility.
func (s *Session) Navigate(page playwright.Page, url string) error {
	_, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(s.opts.NavTimeout.Milliseconds())),
	})
	if err != nil {
		if strings.Contains(err.Error(), "Timeout") {
			return fmt.Errorf("%w: %s: %v", ErrNavigationTimeout, url, err)
		}
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	if bypassed, err := s.bypassBotCheck(page); err != nil {
		return err
	} else if bypassed {
		s.logger.Info("bot check bypassed", "url", url)
	}

	return nil
}

// bypassBotCheck clicks through the target's interstitial challenge page
// when one appears. Returns true when a challenge was detected and cleared.
func (s *Session) bypassBotCheck(page playwright.Page) (bool, error) {
	content, err := page.Content()
	if err != nil {
		return false, fmt.Errorf("failed to get page content: %w", err)
	}

	if !strings.Contains(content, "Click the button below") &&
		!strings.Contains(content, "Continue shopping") {
		return false, nil
	}

	s.logger.Info("bot check detected, attempting bypass")

	buttonSelectors := []string{
		`button:has-text("Continue shopping")`,
		`input[type="submit"][value*="Continue"]`,
		`.a-button-primary`,
		`button.a-button-text`,
	}

	for _, selector := range buttonSelectors {
		button := page.Locator(selector).First()

		count, err := button.Count()
		if err != nil || count == 0 {
			continue
		}

		if err := button.Click(); err != nil {
			s.logger.Warn("failed to click bot check button", "selector", selector, "error", err)
			continue
		}

		time.Sleep(3 * time.Second)

		newContent, _ := page.Content()
		if !strings.Contains(newContent, "Click the button below") {
			return true, nil
		}
	}

	return false, fmt.Errorf("could not clear bot check page")
}

// HumanizeInteraction adds a few mouse moves and a small scroll so the page
// sees activity before extraction starts.
func (s *Session) HumanizeInteraction(page playwright.Page) {
	for i := 0; i < 3; i++ {
		x := float64(100 + i*200)
		y := float64(100 + i*150)
		page.Mouse().Move(x, y)
		time.Sleep(time.Millisecond * time.Duration(200+i*100))
	}

	page.Evaluate(`window.scrollBy(0, Math.random() * 300)`)
	time.Sleep(time.Second)
}
