// Package availability decides whether a rendered listing can be bought.
//
// The result is tri-state. AvailabilityUnknown means no rule could decide and
// is never coerced to Unavailable.
package availability

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/use-agent/pricewatch/models"
	"github.com/use-agent/pricewatch/scraper"
)

// Default lexicons, lower case.
var (
	DefaultOutOfStock      = []string{"agotado", "sin stock", "out of stock"}
	DefaultPurchaseIntent  = []string{"agregar", "añadir", "comprar", "add to cart"}
	DefaultPurchaseClasses = []string{"add-to-cart"}
)

// actionable matches every element a shopper could use to buy.
const actionable = `button, a, input[type="submit"]`

// disabledClasses mark a purchase control as inert.
var disabledClasses = []string{"disabled", "out-of-stock"}

// Evaluator runs the availability cascade.
type Evaluator struct {
	logger *slog.Logger
}

// New creates an Evaluator.
func New(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger}
}

// Evaluate applies the cascade, first matching rule wins:
//
//  1. the rule's selector resolves to exactly one visible, enabled element: Available
//  2. the visible text contains an out-of-stock phrase: Unavailable
//  3. some visible, enabled button, link or submit input shows purchase intent: Available
//  4. otherwise: AvailabilityUnknown
//
// Any failure while inspecting the page yields AvailabilityUnknown.
func (e *Evaluator) Evaluate(p scraper.Page, rule models.AvailabilityRule) (result models.Availability) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("availability check panicked", "error", fmt.Sprint(r))
			result = models.AvailabilityUnknown
		}
	}()

	if rule.Selector != "" {
		ok, err := e.selectorAvailable(p, rule.Selector)
		if err != nil {
			e.logger.Debug("availability selector failed", "selector", rule.Selector, "error", err)
			return models.AvailabilityUnknown
		}
		if ok {
			return models.Available
		}
	}

	text, err := p.VisibleText()
	if err != nil {
		e.logger.Debug("availability text unreadable", "error", err)
		return models.AvailabilityUnknown
	}
	if containsAny(strings.ToLower(text), orDefault(rule.OutOfStock, DefaultOutOfStock)) {
		return models.Unavailable
	}

	ok, err := e.purchaseControlAvailable(p, rule)
	if err != nil {
		e.logger.Debug("purchase control scan failed", "error", err)
		return models.AvailabilityUnknown
	}
	if ok {
		return models.Available
	}
	return models.AvailabilityUnknown
}

// selectorAvailable reports whether selector resolves to exactly one visible
// element and that element is enabled.
func (e *Evaluator) selectorAvailable(p scraper.Page, selector string) (bool, error) {
	els, err := p.QueryAll(selector)
	if err != nil {
		return false, err
	}
	var visible []scraper.Element
	for _, el := range els {
		v, err := el.Visible()
		if err != nil {
			return false, err
		}
		if v {
			visible = append(visible, el)
		}
	}
	if len(visible) != 1 {
		return false, nil
	}
	disabled, err := isDisabled(visible[0])
	if err != nil {
		return false, err
	}
	return !disabled, nil
}

func (e *Evaluator) purchaseControlAvailable(p scraper.Page, rule models.AvailabilityRule) (bool, error) {
	intents := orDefault(rule.PurchaseIntent, DefaultPurchaseIntent)
	classes := orDefault(rule.PurchaseClasses, DefaultPurchaseClasses)

	els, err := p.QueryAll(actionable)
	if err != nil {
		return false, err
	}
	for _, el := range els {
		label, err := el.Text()
		if err != nil {
			return false, err
		}
		if label == "" {
			label, _, _ = el.Attribute("value")
		}
		class, _, err := el.Attribute("class")
		if err != nil {
			return false, err
		}
		if !containsAny(strings.ToLower(label), intents) && !containsAny(strings.ToLower(class), classes) {
			continue
		}

		disabled, err := isDisabled(el)
		if err != nil {
			return false, err
		}
		if disabled {
			continue
		}
		visible, err := el.Visible()
		if err != nil {
			return false, err
		}
		if visible {
			return true, nil
		}
	}
	return false, nil
}

// isDisabled checks the disabled attribute, aria-disabled and the
// conventional disabled/out-of-stock classes.
func isDisabled(el scraper.Element) (bool, error) {
	if _, ok, err := el.Attribute("disabled"); err != nil || ok {
		return ok, err
	}
	aria, _, err := el.Attribute("aria-disabled")
	if err != nil {
		return false, err
	}
	if strings.EqualFold(strings.TrimSpace(aria), "true") {
		return true, nil
	}
	class, _, err := el.Attribute("class")
	if err != nil {
		return false, err
	}
	for _, c := range strings.Fields(strings.ToLower(class)) {
		for _, d := range disabledClasses {
			if c == d {
				return true, nil
			}
		}
	}
	return false, nil
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(haystack, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
