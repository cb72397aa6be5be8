package scraper

import (
	"context"
	"fmt"

	"github.com/use-agent/pricewatch/models"
)

// Session routes each acquisition to the browser or the HTTP fetcher
// according to Options.Mode. It owns both for the lifetime of a run.
type Session struct {
	browser Acquirer
	http    Acquirer
}

// NewSession combines a browser acquirer and an HTTP acquirer.
func NewSession(browser, http Acquirer) *Session {
	return &Session{browser: browser, http: http}
}

func (s *Session) Open(ctx context.Context, url string, opts Options) (Page, error) {
	switch opts.Mode {
	case models.ModeHTTP:
		if s.http == nil {
			return nil, models.NewScrapeError(models.ErrCodeNavigation, "no http acquirer configured", nil)
		}
		return s.http.Open(ctx, url, opts)
	case models.ModeBrowser, "":
		if s.browser == nil {
			return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "no browser acquirer configured", nil)
		}
		return s.browser.Open(ctx, url, opts)
	default:
		return nil, models.NewScrapeError(models.ErrCodeNavigation, fmt.Sprintf("unsupported fetch mode %q", opts.Mode), nil)
	}
}

// Close releases both acquirers.
func (s *Session) Close() {
	if s.browser != nil {
		s.browser.Close()
	}
	if s.http != nil {
		s.http.Close()
	}
}
