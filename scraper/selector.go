package scraper

import (
	"fmt"
	"sync"

	"github.com/andybalholm/cascadia"
)

var selectorCache sync.Map // string -> cascadia.Selector

// compileSelector parses a CSS selector group once and caches the result.
func compileSelector(selector string) (cascadia.Selector, error) {
	if v, ok := selectorCache.Load(selector); ok {
		return v.(cascadia.Selector), nil
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("selector %q: %w", selector, err)
	}
	selectorCache.Store(selector, sel)
	return sel, nil
}

// ValidateSelector reports whether selector is a valid CSS selector group.
func ValidateSelector(selector string) error {
	_, err := compileSelector(selector)
	return err
}
