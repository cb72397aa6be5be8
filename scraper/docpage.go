package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// nonRendered lists tags whose content never reaches the screen.
var nonRendered = map[string]struct{}{
	"head":     {},
	"script":   {},
	"style":    {},
	"noscript": {},
	"template": {},
	"title":    {},
	"meta":     {},
}

// strikeTags draw a line through their content by default.
var strikeTags = map[string]struct{}{
	"del":    {},
	"s":      {},
	"strike": {},
}

// DocPage is a static Page backed by a goquery document. It serves targets
// fetched over plain HTTP and lets the engines run without a browser.
// Visibility and text-decoration are derived from markup and inline styles.
type DocPage struct {
	doc    *goquery.Document
	ctx    context.Context
	waited time.Duration
	clicks []string
}

// NewDocPage parses rawHTML into a DocPage.
func NewDocPage(rawHTML string) (*DocPage, error) {
	return NewDocPageContext(context.Background(), rawHTML)
}

// NewDocPageContext parses rawHTML into a DocPage whose waits honour ctx.
func NewDocPageContext(ctx context.Context, rawHTML string) (*DocPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("docpage: parse: %w", err)
	}
	return &DocPage{doc: doc, ctx: ctx}, nil
}

// MustDocPage is NewDocPage for fixtures; it panics on parse errors.
func MustDocPage(rawHTML string) *DocPage {
	p, err := NewDocPage(rawHTML)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *DocPage) QueryAll(selector string) ([]Element, error) {
	sel, err := compileSelector(selector)
	if err != nil {
		return nil, err
	}
	found := p.doc.FindMatcher(sel)
	out := make([]Element, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		out = append(out, &docElement{sel: s, page: p})
	})
	return out, nil
}

func (p *DocPage) VisibleText() (string, error) {
	body := p.doc.Find("body")
	if body.Length() == 0 {
		body = p.doc.Selection
	}
	var sb strings.Builder
	for _, n := range body.Nodes {
		collectVisibleText(n, &sb)
	}
	return sb.String(), nil
}

func (p *DocPage) HTML() (string, error) {
	return p.doc.Html()
}

// Wait returns immediately: a static document never changes. The requested
// duration is accumulated so callers can assert pacing decisions.
func (p *DocPage) Wait(d time.Duration) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}
	p.waited += d
	return nil
}

func (p *DocPage) MoveMouse(x, y float64) error { return nil }

func (p *DocPage) ScrollToBottom() error { return nil }

// Waited returns the total duration requested through Wait.
func (p *DocPage) Waited() time.Duration { return p.waited }

// Clicks returns the text of every clicked element, in order.
func (p *DocPage) Clicks() []string { return p.clicks }

type docElement struct {
	sel  *goquery.Selection
	page *DocPage
}

func (e *docElement) Text() (string, error) {
	var sb strings.Builder
	for _, n := range e.sel.Nodes {
		collectVisibleText(n, &sb)
	}
	return strings.TrimSpace(sb.String()), nil
}

func (e *docElement) UnstruckText() (string, error) {
	var sb strings.Builder
	for _, n := range e.sel.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collectUnstruckText(c, &sb)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func (e *docElement) Attribute(name string) (string, bool, error) {
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func (e *docElement) Visible() (bool, error) {
	for n := e.sel.Get(0); n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if _, skip := nonRendered[n.Data]; skip {
			return false, nil
		}
		if hasAttr(n, "hidden") {
			return false, nil
		}
		if n.Data == "input" && strings.EqualFold(attrOf(n, "type"), "hidden") {
			return false, nil
		}
		style := normalizeStyle(attrOf(n, "style"))
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false, nil
		}
	}
	return true, nil
}

func (e *docElement) Style() (Style, error) {
	for n := e.sel.Get(0); n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if _, ok := strikeTags[n.Data]; ok {
			return Style{TextDecoration: "line-through"}, nil
		}
		style := normalizeStyle(attrOf(n, "style"))
		if strings.Contains(style, "text-decoration") && strings.Contains(style, "line-through") {
			return Style{TextDecoration: "line-through"}, nil
		}
	}
	return Style{TextDecoration: "none"}, nil
}

func (e *docElement) Click() error {
	text, _ := e.Text()
	e.page.clicks = append(e.page.clicks, text)
	return nil
}

// collectVisibleText appends the text of rendered descendants of n.
func collectVisibleText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		if _, skip := nonRendered[n.Data]; skip {
			return
		}
		if hasAttr(n, "hidden") {
			return
		}
		style := normalizeStyle(attrOf(n, "style"))
		if strings.Contains(style, "display:none") {
			return
		}
		if n.Data == "br" || n.Data == "p" || n.Data == "div" || n.Data == "li" {
			defer sb.WriteString("\n")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectVisibleText(c, sb)
	}
}

// collectUnstruckText is collectVisibleText that also drops struck-through
// subtrees. Element boundaries become spaces so adjacent amounts stay apart.
func collectUnstruckText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		if _, skip := nonRendered[n.Data]; skip {
			return
		}
		if hasAttr(n, "hidden") {
			return
		}
		style := normalizeStyle(attrOf(n, "style"))
		if strings.Contains(style, "display:none") {
			return
		}
		if _, struck := strikeTags[n.Data]; struck {
			return
		}
		if strings.Contains(style, "text-decoration") && strings.Contains(style, "line-through") {
			return
		}
		defer sb.WriteString(" ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectUnstruckText(c, sb)
	}
}

func attrOf(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func normalizeStyle(style string) string {
	return strings.ReplaceAll(strings.ToLower(style), " ", "")
}
