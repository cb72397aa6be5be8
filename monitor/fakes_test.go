package monitor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/mercadolibre"
	"github.com/use-agent/pricewatch/models"
	"github.com/use-agent/pricewatch/scraper"
)

// step is one scripted response of the fake acquirer.
type step struct {
	html  string
	page  scraper.Page
	err   error
	panic string
}

// scriptedAcquirer replays steps per URL; the last step repeats.
type scriptedAcquirer struct {
	mu     sync.Mutex
	script map[string][]step
	opened map[string]int
	order  []string
	closed int
}

func newScriptedAcquirer(script map[string][]step) *scriptedAcquirer {
	return &scriptedAcquirer{script: script, opened: make(map[string]int)}
}

func (a *scriptedAcquirer) Open(ctx context.Context, url string, _ scraper.Options) (scraper.Page, error) {
	a.mu.Lock()
	steps := a.script[url]
	n := a.opened[url]
	a.opened[url]++
	a.order = append(a.order, url)
	a.mu.Unlock()

	if len(steps) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "no script for "+url, nil)
	}
	if n >= len(steps) {
		n = len(steps) - 1
	}
	s := steps[n]
	switch {
	case s.panic != "":
		panic(s.panic)
	case s.err != nil:
		return nil, s.err
	case s.page != nil:
		return s.page, nil
	default:
		return scraper.NewDocPageContext(ctx, s.html)
	}
}

func (a *scriptedAcquirer) Close() {
	a.mu.Lock()
	a.closed++
	a.mu.Unlock()
}

func (a *scriptedAcquirer) opens(url string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.opened[url]
}

// flipPage is a gate page that turns into another document when any of its
// elements is clicked.
type flipPage struct {
	cur  *scraper.DocPage
	next string
}

func newFlipPage(gate, next string) *flipPage {
	return &flipPage{cur: scraper.MustDocPage(gate), next: next}
}

func (f *flipPage) QueryAll(sel string) ([]scraper.Element, error) {
	els, err := f.cur.QueryAll(sel)
	if err != nil {
		return nil, err
	}
	out := make([]scraper.Element, len(els))
	for i, el := range els {
		out[i] = flipElement{Element: el, page: f}
	}
	return out, nil
}

func (f *flipPage) VisibleText() (string, error) { return f.cur.VisibleText() }
func (f *flipPage) HTML() (string, error) { return f.cur.HTML() }
func (f *flipPage) Wait(d time.Duration) error { return f.cur.Wait(d) }
func (f *flipPage) MoveMouse(x, y float64) error { return nil }
func (f *flipPage) ScrollToBottom() error { return nil }

type flipElement struct {
	scraper.Element
	page *flipPage
}

func (e flipElement) Click() error {
	e.page.cur = scraper.MustDocPage(e.page.next)
	return nil
}

// fakeItems is a scripted ItemSource.
type fakeItems struct {
	calls int
	errs  []error
	item  *mercadolibre.Item
}

func (f *fakeItems) Item(_ context.Context, _ string) (*mercadolibre.Item, error) {
	f.calls++
	if f.calls <= len(f.errs) {
		return nil, f.errs[f.calls-1]
	}
	return f.item, nil
}

func testScraperConfig() config.ScraperConfig {
	return config.ScraperConfig{
		NavigationTimeout:  5 * time.Second,
		TargetTimeout:      30 * time.Second,
		SettleWait:         3 * time.Second,
		ChallengeWait:      12 * time.Second,
		InterceptionWait:   2 * time.Second,
		NavigationAttempts: 3,
		RetryBackoff:       time.Millisecond,
		UserAgent:          "test-agent",
		AcceptLanguage:     "es-CL",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRunner(acq scraper.Acquirer, items ItemSource) *Runner {
	r := NewRunner(acq, items, config.BrowserConfig{Stealth: true}, testScraperConfig(), discardLogger())
	r.now = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }
	return r
}

var cpu = models.Range{Min: 50000, Max: 2000000}

func pageTarget(name, url string) models.Target {
	return models.Target{
		Name:         name,
		URL:          url,
		Mode:         models.ModeBrowser,
		Plausibility: cpu,
		Strategies: []models.Strategy{
			{Kind: models.StrategySelector, Selector: ".price"},
			{Kind: models.StrategyPattern},
		},
		Availability: models.AvailabilityRule{Selector: ".add-to-cart"},
	}
}

func productHTML(price string) string {
	return `<html><body><h1>AMD Ryzen 5 9600X</h1><span class="price">` + price +
		`</span><button class="add-to-cart">Agregar al carro</button></body></html>`
}

const challengeHTML = `<html><body><div id="cf-challenge-running"></div><p>Just a moment...</p></body></html>`

const gateHTML = `<html><body><h2>Elige una cuenta</h2>
	<button class="login">Ingresar</button>
	<a href="#" class="guest">Continuar como invitado</a></body></html>`

const interstitialHTML = `<html><body><main><section><article><p>Cargando tu experiencia de compra, serás redirigido al producto en unos segundos</p></article></section></main></body></html>`
