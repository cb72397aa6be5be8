package monitor

import (
	"context"
	"log/slog"
	"strings"

	"github.com/use-agent/pricewatch/evasion"
	"github.com/use-agent/pricewatch/models"
	"github.com/use-agent/pricewatch/retry"
	"github.com/use-agent/pricewatch/scraper"
	"github.com/use-agent/pricewatch/simhash"
)

// state is a step of the per-target recovery machine.
type state int

const (
	stateAttempt state = iota
	stateInteract
	stateDoneSuccess
	stateDoneFailure
)

func (s state) String() string {
	switch s {
	case stateAttempt:
		return "ATTEMPT"
	case stateInteract:
		return "INTERACT"
	case stateDoneSuccess:
		return "DONE_SUCCESS"
	case stateDoneFailure:
		return "DONE_FAILURE"
	default:
		return "UNKNOWN"
	}
}

// continueAffordances are the elements searched for a gate's continue
// control when the target gives no selector.
const continueAffordances = `button, a, [role="button"], input[type="submit"], input[type="button"]`

// machine runs ATTEMPT -> {DONE_SUCCESS, INTERACT, DONE_FAILURE} and
// INTERACT -> ATTEMPT for one page target. INTERACT is entered at most once.
type machine struct {
	r      *Runner
	t      models.Target
	plan   evasion.Plan
	logger *slog.Logger

	page       scraper.Page
	interacted bool

	price   *int64
	avail   models.Availability
	failure string
}

func newMachine(r *Runner, t models.Target, logger *slog.Logger) *machine {
	return &machine{r: r, t: t, plan: r.evasion.Prepare(t), logger: logger}
}

func (m *machine) run(ctx context.Context) models.ExtractionResult {
	st := stateAttempt
	for {
		m.logger.Debug("state", "state", st.String())
		switch st {
		case stateAttempt:
			st = m.attempt(ctx)
		case stateInteract:
			st = m.interact(ctx)
		case stateDoneSuccess:
			return models.NewResult(m.t, m.price, m.avail)
		default:
			return models.FailedResult(m.t, m.failure)
		}
	}
}

func (m *machine) fail(code string, err error) state {
	m.failure = code
	m.logger.Warn("target failed", "code", code, "error", err)
	return stateDoneFailure
}

// open acquires the page, retrying navigation-level errors with linear
// backoff.
func (m *machine) open(ctx context.Context) (scraper.Page, error) {
	return retry.DoVal(ctx, m.r.retryConfig(m.logger, nil), func(ctx context.Context) (scraper.Page, error) {
		return m.r.acq.Open(ctx, m.t.URL, m.plan.Options)
	})
}

func (m *machine) attempt(ctx context.Context) state {
	page, err := m.open(ctx)
	if err != nil {
		return m.fail(models.CodeOf(err), err)
	}
	if err := m.r.evasion.Settle(page, m.plan); err != nil {
		return m.fail(models.ErrCodeTimeout, err)
	}

	if m.r.evasion.DetectChallenge(page) {
		page, err = m.r.evasion.ResolveChallenge(ctx, page, m.plan, m.open)
		if err != nil {
			return m.fail(models.CodeOf(err), err)
		}
	}

	if m.intercepted(page) {
		if m.interacted {
			return m.fail(models.ErrCodeInterception,
				models.NewScrapeError(models.ErrCodeInterception, "interception page shown again after continuing", nil))
		}
		m.page = page
		return stateInteract
	}

	m.price = m.r.extractor.Extract(page, m.t)
	m.avail = m.r.avail.Evaluate(page, m.t.Availability)
	return stateDoneSuccess
}

// intercepted reports whether page is an account-selection gate the target
// declared it may show.
func (m *machine) intercepted(page scraper.Page) bool {
	ic := m.t.Interception
	if !ic.Enabled {
		return false
	}
	markers := ic.Markers
	if len(markers) == 0 {
		markers = models.DefaultInterceptionMarkers
	}
	text, err := page.VisibleText()
	if err != nil {
		return false
	}
	lower := strings.ToLower(text)
	for _, mk := range markers {
		if mk != "" && strings.Contains(lower, strings.ToLower(mk)) {
			return true
		}
	}
	return false
}

// interact clicks the gate's continue affordance once and checks that the
// page actually moved on before navigating again.
func (m *machine) interact(ctx context.Context) state {
	m.interacted = true
	page := m.page
	m.page = nil

	el, err := m.findContinue(page)
	if err != nil {
		return m.fail(models.ErrCodeInterception, err)
	}
	before := signature(page)
	if err := el.Click(); err != nil {
		return m.fail(models.ErrCodeInterception,
			models.NewScrapeError(models.ErrCodeInterception, "click continue affordance", err))
	}

	wait := m.t.Interception.Wait
	if wait <= 0 {
		wait = m.r.cfg.InterceptionWait
	}
	if err := page.Wait(wait); err != nil {
		return m.fail(models.ErrCodeTimeout, err)
	}

	if !simhash.Changed(before, signature(page), simhash.DefaultThreshold) {
		return m.fail(models.ErrCodeInterception,
			models.NewScrapeError(models.ErrCodeInterception, "continue affordance did not advance the page", nil))
	}
	m.logger.Info("interception page passed")
	return stateAttempt
}

func (m *machine) findContinue(page scraper.Page) (scraper.Element, error) {
	ic := m.t.Interception
	if ic.ContinueSelector != "" {
		els, err := page.QueryAll(ic.ContinueSelector)
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeInterception, "query continue selector", err)
		}
		for _, el := range els {
			if ok, _ := el.Visible(); ok {
				return el, nil
			}
		}
		return nil, models.NewScrapeError(models.ErrCodeInterception, "continue selector matched nothing visible", nil)
	}

	texts := ic.ContinueTexts
	if len(texts) == 0 {
		texts = models.DefaultContinueTexts
	}
	els, err := page.QueryAll(continueAffordances)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInterception, "query continue affordances", err)
	}
	for _, el := range els {
		label, _ := el.Text()
		if label == "" {
			label, _, _ = el.Attribute("value")
		}
		label = strings.ToLower(label)
		for _, want := range texts {
			if want == "" || !strings.Contains(label, strings.ToLower(want)) {
				continue
			}
			if ok, _ := el.Visible(); ok {
				return el, nil
			}
		}
	}
	return nil, models.NewScrapeError(models.ErrCodeInterception, "no continue affordance found", nil)
}

func signature(p scraper.Page) simhash.Signature {
	text, _ := p.VisibleText()
	src, _ := p.HTML()
	return simhash.Of(text, src)
}
