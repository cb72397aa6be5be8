// Package registry loads the declarative target list. A malformed registry
// is the only failure that aborts a run.
package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/use-agent/pricewatch/availability"
	"github.com/use-agent/pricewatch/extract"
	"github.com/use-agent/pricewatch/models"
	"github.com/use-agent/pricewatch/scraper"
)

// File is the on-disk registry document.
type File struct {
	// Categories maps a product category to its plausibility range.
	Categories map[string]models.Range `yaml:"categories"`

	Targets []models.Target `yaml:"targets"`
}

// Load reads and parses the registry at path.
func Load(path string) ([]models.Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeRegistry, "read "+path, err)
	}
	return Parse(data)
}

// Parse decodes a registry document, applies defaults and validates every
// target. Unknown fields are rejected so typos do not silently disable a
// strategy.
func Parse(data []byte) ([]models.Target, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, models.NewScrapeError(models.ErrCodeRegistry, "decode registry", err)
	}
	if len(f.Targets) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeRegistry, "registry declares no targets", nil)
	}

	var errs []error
	for name, r := range f.Categories {
		if r.Max > 0 && r.Min > r.Max {
			errs = append(errs, fmt.Errorf("category %q: min %d > max %d", name, r.Min, r.Max))
		}
	}

	seen := make(map[string]struct{}, len(f.Targets))
	targets := make([]models.Target, 0, len(f.Targets))
	for i, t := range f.Targets {
		t = applyDefaults(t, f.Categories)
		if err := validate(t, f.Categories); err != nil {
			errs = append(errs, fmt.Errorf("target #%d %q: %w", i+1, t.Name, err))
		}
		if _, dup := seen[t.Name]; dup && t.Name != "" {
			errs = append(errs, fmt.Errorf("target #%d: duplicate name %q", i+1, t.Name))
		}
		seen[t.Name] = struct{}{}
		targets = append(targets, t)
	}
	if len(errs) > 0 {
		return nil, models.NewScrapeError(models.ErrCodeRegistry, "invalid registry", errors.Join(errs...))
	}
	return targets, nil
}

func applyDefaults(t models.Target, categories map[string]models.Range) models.Target {
	t.Name = strings.TrimSpace(t.Name)
	if t.Mode == "" {
		t.Mode = models.ModeBrowser
	}
	if t.Plausibility.IsZero() && t.Category != "" {
		t.Plausibility = categories[t.Category]
	}

	a := &t.Availability
	if len(a.OutOfStock) == 0 {
		a.OutOfStock = availability.DefaultOutOfStock
	}
	if len(a.PurchaseIntent) == 0 {
		a.PurchaseIntent = availability.DefaultPurchaseIntent
	}
	if len(a.PurchaseClasses) == 0 {
		a.PurchaseClasses = availability.DefaultPurchaseClasses
	}

	ic := &t.Interception
	if ic.Enabled {
		if len(ic.Markers) == 0 {
			ic.Markers = models.DefaultInterceptionMarkers
		}
		if len(ic.ContinueTexts) == 0 && ic.ContinueSelector == "" {
			ic.ContinueTexts = models.DefaultContinueTexts
		}
	}
	return t
}

func validate(t models.Target, categories map[string]models.Range) error {
	var errs []error
	if t.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if t.Category != "" {
		if _, ok := categories[t.Category]; !ok {
			errs = append(errs, fmt.Errorf("unknown category %q", t.Category))
		}
	}
	if r := t.Plausibility; r.Min < 0 || r.Max < 0 || (r.Max > 0 && r.Min > r.Max) {
		errs = append(errs, fmt.Errorf("invalid plausibility range [%d, %d]", r.Min, r.Max))
	}

	switch t.Mode {
	case models.ModeAPI:
		if t.ItemID == "" {
			errs = append(errs, errors.New("api targets need item_id"))
		}
	case models.ModeBrowser, models.ModeHTTP:
		if t.URL == "" {
			errs = append(errs, errors.New("url is required"))
		}
		if len(t.Strategies) == 0 {
			errs = append(errs, errors.New("at least one strategy is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q", t.Mode))
	}

	for i, s := range t.Strategies {
		if err := validateStrategy(s); err != nil {
			errs = append(errs, fmt.Errorf("strategy #%d: %w", i+1, err))
		}
	}

	if t.Availability.Selector != "" {
		if err := scraper.ValidateSelector(t.Availability.Selector); err != nil {
			errs = append(errs, fmt.Errorf("availability selector: %w", err))
		}
	}
	if t.Interception.ContinueSelector != "" {
		if err := scraper.ValidateSelector(t.Interception.ContinueSelector); err != nil {
			errs = append(errs, fmt.Errorf("interception continue_selector: %w", err))
		}
	}
	if t.Timing.ExtraWait < 0 || t.Timing.ChallengeWait < 0 || t.Interception.Wait < 0 {
		errs = append(errs, errors.New("waits must not be negative"))
	}
	return errors.Join(errs...)
}

func validateStrategy(s models.Strategy) error {
	switch s.Kind {
	case models.StrategySelector:
		if s.Selector == "" {
			return errors.New("selector strategy needs a selector")
		}
		if s.Nth < 0 {
			return fmt.Errorf("nth must not be negative, got %d", s.Nth)
		}
		return scraper.ValidateSelector(s.Selector)
	case models.StrategyPattern:
		return extract.ValidatePattern(s.Pattern)
	case models.StrategyFrequency:
		if s.CandidateSelector != "" {
			return scraper.ValidateSelector(s.CandidateSelector)
		}
		return nil
	default:
		return fmt.Errorf("unknown strategy type %q", s.Kind)
	}
}
