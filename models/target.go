package models

import "time"

// FetchMode selects how a target's page is acquired.
type FetchMode string

const (
	// ModeBrowser renders the page in the shared headless browser session.
	ModeBrowser FetchMode = "browser"
	// ModeHTTP fetches static HTML over a Chrome-fingerprinted HTTP client.
	ModeHTTP FetchMode = "http"
	// ModeAPI resolves the target through the MercadoLibre items API.
	ModeAPI FetchMode = "api"
)

// StrategyKind names one of the supported price extraction strategies.
type StrategyKind string

const (
	StrategySelector  StrategyKind = "selector"
	StrategyPattern   StrategyKind = "pattern"
	StrategyFrequency StrategyKind = "frequency"
)

// Target is one monitored retail listing plus its extraction configuration.
// Targets are loaded once from the registry and never mutated afterwards.
type Target struct {
	// Name is the target identity. It is unique within a run and is the
	// only key used to join snapshots across runs.
	Name string `yaml:"name"`

	// URL is the product page. For API targets it is a fallback locator.
	URL string `yaml:"url"`

	// Mode is browser (default), http or api.
	Mode FetchMode `yaml:"mode"`

	// ItemID identifies the listing for API targets.
	ItemID string `yaml:"item_id"`

	// Category references a plausibility range declared in the registry.
	Category string `yaml:"category"`

	// Plausibility overrides the category range when set.
	Plausibility Range `yaml:"plausibility"`

	// Strategies are tried in declared order; the first plausible price wins.
	Strategies []Strategy `yaml:"strategies"`

	Availability AvailabilityRule `yaml:"availability"`
	Timing       Timing           `yaml:"timing"`
	Interception Interception     `yaml:"interception"`

	// Stealth forces identity masking on or off. Nil uses the global default.
	Stealth *bool `yaml:"stealth"`
}

// Strategy is one declarative price extraction strategy.
type Strategy struct {
	Kind StrategyKind `yaml:"type"`

	// Selector is the CSS locator for selector strategies.
	Selector string `yaml:"selector"`

	// Nth takes the Nth (0-based) match instead of the first one. At least
	// Nth+1 matches are required.
	Nth int `yaml:"nth"`

	// Pattern overrides the default currency regex for pattern strategies.
	// When it has a capturing group, the first group is parsed.
	Pattern string `yaml:"pattern"`

	// Thousands is the thousands marker of the default pattern ("." if empty).
	Thousands string `yaml:"thousands"`

	// CandidateSelector limits the elements scanned by frequency strategies.
	CandidateSelector string `yaml:"candidate_selector"`

	// Decoys are values a frequency strategy must never pick.
	Decoys []int64 `yaml:"decoys"`
}

// Range is a closed plausibility interval. Zero bounds are open.
type Range struct {
	Min int64 `yaml:"min"`
	Max int64 `yaml:"max"`
}

// IsZero reports whether no bound is configured.
func (r Range) IsZero() bool { return r.Min == 0 && r.Max == 0 }

// Contains reports whether v is a positive value inside the range.
func (r Range) Contains(v int64) bool {
	if v <= 0 {
		return false
	}
	if r.Min > 0 && v < r.Min {
		return false
	}
	if r.Max > 0 && v > r.Max {
		return false
	}
	return true
}

// AvailabilityRule configures the availability cascade for a target.
type AvailabilityRule struct {
	// Selector locates the add-to-cart control of the site, if known.
	Selector string `yaml:"selector"`

	// OutOfStock is the lexicon of sold-out phrases (lower case).
	OutOfStock []string `yaml:"out_of_stock"`

	// PurchaseIntent is the lexicon of buy-button texts (lower case).
	PurchaseIntent []string `yaml:"purchase_intent"`

	// PurchaseClasses are class fragments that mark a buy button.
	PurchaseClasses []string `yaml:"purchase_classes"`
}

// Timing holds acquisition timing hints.
type Timing struct {
	// ExtraWait replaces the default settle wait after navigation.
	ExtraWait time.Duration `yaml:"extra_wait"`

	// ChallengeWait replaces the default wait budget for anti-bot challenges.
	ChallengeWait time.Duration `yaml:"challenge_wait"`
}

// Interception configures handling of account-selection gates.
type Interception struct {
	// Enabled declares that the target may show an interception page.
	Enabled bool `yaml:"enabled"`

	// Markers identify the interception page in the visible text (lower case).
	Markers []string `yaml:"markers"`

	// ContinueSelector locates the "continue" affordance directly.
	ContinueSelector string `yaml:"continue_selector"`

	// ContinueTexts are matched against buttons and links when no
	// selector is configured (lower case).
	ContinueTexts []string `yaml:"continue_texts"`

	// Wait is how long to let the page react to the click.
	Wait time.Duration `yaml:"wait"`
}

// Default interception lexicons, lower case.
var (
	DefaultInterceptionMarkers = []string{
		"continuar como invitado",
		"continue as guest",
		"elige una cuenta",
		"selecciona una cuenta",
		"choose an account",
	}
	DefaultContinueTexts = []string{
		"continuar como invitado",
		"continue as guest",
		"seguir como invitado",
	}
)
