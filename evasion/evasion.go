// Package evasion parameterizes page acquisition to look like a person
// browsing, and detects and waits out anti-bot challenge pages.
package evasion

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/models"
	"github.com/use-agent/pricewatch/scraper"
)

// challengeText are phrases rendered by anti-bot interstitials (lower case).
var challengeText = []string{
	"just a moment",
	"checking your browser",
	"verify you are human",
	"verifying you are human",
	"attention required",
	"enable javascript and cookies to continue",
	"verificando que eres un humano",
	"comprobando tu navegador",
}

// challengeMarkup are markers found in the source of challenge pages.
var challengeMarkup = []string{
	"cf-browser-verification",
	"cf-challenge-running",
	"challenge-platform",
	"_cf_chl_opt",
	"cf-turnstile",
}

// Plan is the acquisition plan for one target.
type Plan struct {
	Options scraper.Options

	// SettleWait is the pause after navigation before anything is read.
	SettleWait time.Duration

	// ChallengeWait is the extended budget granted to a challenge page.
	ChallengeWait time.Duration

	// Humanize enables pointer movement and scrolling before extraction.
	Humanize bool
}

// Controller builds plans and handles challenge pages.
type Controller struct {
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig
	logger     *slog.Logger
}

// New creates a Controller.
func New(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{browserCfg: browserCfg, scraperCfg: scraperCfg, logger: logger}
}

// Prepare returns the acquisition plan for t. Target timing hints override
// the configured defaults.
func (c *Controller) Prepare(t models.Target) Plan {
	mode := t.Mode
	if mode == "" {
		mode = models.ModeBrowser
	}
	stealthy := c.browserCfg.Stealth
	if t.Stealth != nil {
		stealthy = *t.Stealth
	}

	plan := Plan{
		Options: scraper.Options{
			Mode:           mode,
			Timeout:        c.scraperCfg.NavigationTimeout,
			Stealth:        stealthy,
			UserAgent:      c.scraperCfg.UserAgent,
			AcceptLanguage: c.scraperCfg.AcceptLanguage,
		},
		SettleWait:    c.scraperCfg.SettleWait,
		ChallengeWait: c.scraperCfg.ChallengeWait,
		Humanize:      mode == models.ModeBrowser,
	}
	if t.Timing.ExtraWait > 0 {
		plan.SettleWait = t.Timing.ExtraWait
	}
	if t.Timing.ChallengeWait > 0 {
		plan.ChallengeWait = t.Timing.ChallengeWait
	}
	return plan
}

// DetectChallenge reports whether p is an anti-bot challenge page.
func (c *Controller) DetectChallenge(p scraper.Page) bool {
	if text, err := p.VisibleText(); err == nil {
		lower := strings.ToLower(text)
		for _, m := range challengeText {
			if strings.Contains(lower, m) {
				return true
			}
		}
	}
	if src, err := p.HTML(); err == nil {
		lower := strings.ToLower(src)
		for _, m := range challengeMarkup {
			if strings.Contains(lower, m) {
				return true
			}
		}
	}
	return false
}

// Settle lets the page finish rendering and, when the plan asks for it,
// moves the pointer and scrolls like a reader would. Only wait failures
// are returned; they mean the target's budget is exhausted.
func (c *Controller) Settle(p scraper.Page, plan Plan) error {
	if err := p.Wait(plan.SettleWait); err != nil {
		return err
	}
	if !plan.Humanize {
		return nil
	}

	for i := 0; i < 3; i++ {
		x := 200 + rand.Float64()*1200
		y := 150 + rand.Float64()*600
		if err := p.MoveMouse(x, y); err != nil {
			c.logger.Debug("pointer movement failed", "error", err)
			break
		}
	}
	if err := p.ScrollToBottom(); err != nil {
		c.logger.Debug("scroll failed", "error", err)
	}
	return p.Wait(time.Second)
}

// Reopen re-issues the navigation for the current target.
type Reopen func(ctx context.Context) (scraper.Page, error)

// ResolveChallenge waits the plan's challenge budget on a challenged page.
// If the challenge is still there it navigates once more; a challenge that
// survives the second navigation is CHALLENGE_UNRESOLVED. It never loops.
func (c *Controller) ResolveChallenge(ctx context.Context, p scraper.Page, plan Plan, reopen Reopen) (scraper.Page, error) {
	c.logger.Info("challenge detected, waiting", "wait", plan.ChallengeWait)
	if err := p.Wait(plan.ChallengeWait); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeChallenge, "challenge wait interrupted", err)
	}
	if !c.DetectChallenge(p) {
		c.logger.Info("challenge cleared while waiting")
		return p, nil
	}

	next, err := reopen(ctx)
	if err != nil {
		return nil, err
	}
	if err := next.Wait(plan.SettleWait); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeChallenge, "settle after challenge interrupted", err)
	}
	if c.DetectChallenge(next) {
		return nil, models.NewScrapeError(models.ErrCodeChallenge, "challenge persisted after re-navigation", nil)
	}
	c.logger.Info("challenge cleared after re-navigation")
	return next, nil
}
