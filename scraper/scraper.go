package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/models"
	"github.com/ysmood/gson"
)

// Scraper owns the single rendering session of a run: one browser and one
// reused tab. The browser is launched lazily on the first Open, so runs with
// only HTTP or API targets never start Chrome. It is not safe for
// concurrent use; targets are processed strictly one after another.
type Scraper struct {
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig
	logger     *slog.Logger

	lnch     *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter
	stealthy bool
}

// NewScraper prepares a Scraper. No browser is started until Open.
func NewScraper(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
		logger:     logger,
	}
}

// launch starts Chrome with anti-automation flags and opens the shared tab.
func (s *Scraper) launch() error {
	l := launcher.New().
		Headless(s.browserCfg.Headless).
		NoSandbox(s.browserCfg.NoSandbox)

	if s.browserCfg.BrowserBin != "" {
		l = l.Bin(s.browserCfg.BrowserBin)
	}
	if s.browserCfg.DefaultProxy != "" {
		l = l.Proxy(s.browserCfg.DefaultProxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "IsolateOrigins,site-per-process,TranslateUI")
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	s.lnch = l
	s.logger.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		s.lnch = nil
		return models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}
	s.browser = browser

	var page *rod.Page
	if s.browserCfg.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		s.Close()
		return models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open tab", err)
	}
	s.page = page
	s.stealthy = s.browserCfg.Stealth

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1,
	}); err != nil {
		s.logger.Warn("failed to set viewport", "error", err)
	}

	s.router = setupHijack(page, s.scraperCfg.BlockedResourceTypes, s.scraperCfg.BlockAds)
	return nil
}

// Open navigates the shared tab to pageURL and returns it bound to ctx.
//
// Order matters: identity masking, headers and user agent must be installed
// before Navigate because they only affect navigations that start after them.
func (s *Scraper) Open(ctx context.Context, pageURL string, opts Options) (Page, error) {
	if s.page == nil {
		if err := s.launch(); err != nil {
			return nil, err
		}
	}

	// ── 1. Stealth injection ──────────────────────────────────────────
	if opts.Stealth && !s.stealthy {
		if _, err := s.page.EvalOnNewDocument(stealth.JS); err != nil {
			s.logger.Warn("stealth injection failed, proceeding without stealth", "error", err)
		} else {
			s.stealthy = true
		}
	}

	// ── 2. Identity: user agent + language ───────────────────────────
	if opts.UserAgent != "" {
		if err := (proto.NetworkSetUserAgentOverride{
			UserAgent:      opts.UserAgent,
			AcceptLanguage: opts.AcceptLanguage,
		}).Call(s.page); err != nil {
			s.logger.Debug("user agent override failed", "error", err)
		}
	}

	// ── 3. Extra headers (custom + search referer) ───────────────────
	headers := make(map[string]string, len(opts.Headers)+2)
	if u, err := url.Parse(pageURL); err == nil {
		headers["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
	}
	if opts.AcceptLanguage != "" {
		headers["Accept-Language"] = opts.AcceptLanguage
	}
	for k, v := range opts.Headers {
		headers[k] = v
	}
	_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}.Call(s.page)

	// ── 4. Navigate under the navigation budget ──────────────────────
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.scraperCfg.NavigationTimeout
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	nav := s.page.Context(navCtx)
	if err := nav.Navigate(pageURL); err != nil {
		return nil, categorizeError(err, "navigation to target URL failed")
	}
	if err := nav.WaitLoad(); err != nil {
		return nil, categorizeError(err, "page did not finish loading")
	}

	p := s.page.Context(ctx)
	if err := p.Timeout(5*time.Second).WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		s.logger.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}

	return &rodPage{page: p}, nil
}

// Close stops interception, closes the tab and kills the browser process.
// It is safe to call on a Scraper that never launched.
func (s *Scraper) Close() {
	if s.router != nil {
		_ = s.router.Stop()
		s.router = nil
	}
	if s.page != nil {
		_ = s.page.Close()
		s.page = nil
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			s.logger.Warn("browser close failed", "error", err)
		}
		s.browser = nil
		s.logger.Info("browser closed")
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
		s.lnch = nil
	}
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into typed ScrapeErrors so the recovery
// controller can decide what to retry.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
