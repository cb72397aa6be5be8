package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/use-agent/pricewatch/models"
)

// Page is a rendered document. Implementations are bound to the context of
// the target being processed, so every call is bounded by its deadline.
type Page interface {
	// QueryAll returns the elements matching selector in document order.
	// No match is an empty slice, not an error.
	QueryAll(selector string) ([]Element, error)

	// VisibleText returns the rendered text of the document body.
	VisibleText() (string, error)

	// HTML returns the serialized document.
	HTML() (string, error)

	// Wait suspends for d or until the page context ends.
	Wait(d time.Duration) error

	// MoveMouse moves the pointer to x, y in small steps.
	MoveMouse(x, y float64) error

	// ScrollToBottom scrolls the document to its end.
	ScrollToBottom() error
}

// Element is a handle on one node of a Page.
type Element interface {
	// Text returns the rendered inner text.
	Text() (string, error)

	// UnstruckText returns the rendered inner text without the descendants
	// drawn with a line-through decoration.
	UnstruckText() (string, error)

	// Attribute returns the attribute value and whether it is present.
	Attribute(name string) (string, bool, error)

	// Visible reports whether the element is rendered and displayed.
	Visible() (bool, error)

	// Style returns the computed style relevant to price extraction.
	Style() (Style, error)

	// Click performs a left click on the element.
	Click() error
}

// Style is the subset of computed style the engine reads.
type Style struct {
	// TextDecoration is the effective text-decoration line of the element,
	// including decorations drawn by its ancestors.
	TextDecoration string
}

// LineThrough reports whether the text is rendered struck through.
func (s Style) LineThrough() bool {
	return strings.Contains(s.TextDecoration, "line-through")
}

// Options parameterizes one acquisition.
type Options struct {
	Mode           models.FetchMode
	Timeout        time.Duration
	Stealth        bool
	UserAgent      string
	AcceptLanguage string
	Headers        map[string]string
}

// Acquirer renders URLs into Pages.
type Acquirer interface {
	Open(ctx context.Context, url string, opts Options) (Page, error)
	Close()
}
