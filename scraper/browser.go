package scraper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/time/rate"

	"propscout/config"
	"propscout/httputil"
	"propscout/logging"
)

var consentSelectors = []string{
	"button:has-text('Consent')",
	"button[id*='accept']",
	"button[class*='accept']",
	"button[class*='consent']",
	"#onetrust-accept-btn-handler",
	"button:has-text('Accept All')",
	"button:has-text('Accept')",
	"button:has-text('I Agree')",
}

// BrowserFetcher renders pages in Chromium for sites that build their
// listing markup client side. The browser is started on first use.
type BrowserFetcher struct {
	userAgent string
	timeout   float64
	limiter   *rate.Limiter

	mu          sync.Mutex
	pw          *playwright.Playwright
	context     playwright.BrowserContext
	initialized bool
}

func NewBrowserFetcher(cfg config.FetchConfig) *BrowserFetcher {
	return &BrowserFetcher{
		userAgent: cfg.UserAgent,
		timeout:   float64(cfg.Timeout.Milliseconds()),
		limiter:   httputil.NewLimiter(cfg.RateLimit),
	}
}

func (b *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return "", err
	}
	if err := b.ensureBrowser(); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	page, err := b.context.NewPage()
	if err != nil {
		return "", fmt.Errorf("new page: %w", err)
	}
	defer page.Close()

	resp, err := page.Goto(pageURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(b.timeout),
	})
	if err != nil {
		return "", fmt.Errorf("goto %s: %w", pageURL, err)
	}
	if resp != nil && resp.Status() == 404 {
		return "", fmt.Errorf("%s: %w", pageURL, ErrNotFound)
	}

	b.handleConsent(page)

	html, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	logging.Debugf("Rendered %s (%d bytes)", pageURL, len(html))
	return html, nil
}

func (b *BrowserFetcher) ensureBrowser() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return nil
	}

	var err error
	b.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	cwd, _ := os.Getwd()
	userDataDir := filepath.Join(cwd, "browser_data")
	b.context, err = b.pw.Chromium.LaunchPersistentContext(userDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless:  playwright.Bool(true),
		UserAgent: playwright.String(b.userAgent),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		b.pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	b.initialized = true
	return nil
}

func (b *BrowserFetcher) handleConsent(page playwright.Page) {
	for _, selector := range consentSelectors {
		btn := page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); visible {
			logging.Debugf("Clicking consent button: %s", selector)
			btn.Click()
			page.WaitForTimeout(1000)
			break
		}
	}
}

func (b *BrowserFetcher) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.context != nil {
		b.context.Close()
		b.context = nil
	}
	if b.pw != nil {
		b.pw.Stop()
		b.pw = nil
	}
	b.initialized = false
}
