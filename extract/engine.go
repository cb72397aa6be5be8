// Package extract turns a rendered page into a price by running a target's
// declarative strategies in order until one yields a plausible value.
package extract

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/use-agent/pricewatch/models"
	"github.com/use-agent/pricewatch/scraper"
)

// DefaultCandidateSelector is scanned by frequency strategies that do not
// declare their own candidate selector.
const DefaultCandidateSelector = "[class*='price' i], [class*='precio' i], [itemprop='price'], del, s, ins, bdi"

// Engine runs extraction strategies. The zero value is not usable; call New.
type Engine struct {
	logger   *slog.Logger
	patterns sync.Map // pattern source -> *regexp.Regexp
}

// New creates an Engine.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Extract applies t's strategies in declared order and returns the first
// plausible price, or nil when none produced one. A nil price is a normal
// outcome, not an error.
func (e *Engine) Extract(p scraper.Page, t models.Target) *int64 {
	for i, s := range t.Strategies {
		v, err := e.run(p, s, t.Plausibility)
		if err != nil {
			e.logger.Debug("strategy produced no price",
				"target", t.Name,
				"strategy", s.Kind,
				"index", i,
				"code", models.CodeOf(err),
				"error", err,
			)
			continue
		}
		e.logger.Debug("strategy matched", "target", t.Name, "strategy", s.Kind, "index", i, "price", v)
		return models.Int64(v)
	}
	return nil
}

// Strategy runs a single strategy. It is exported for callers that need the
// failure code of one strategy in isolation.
func (e *Engine) Strategy(p scraper.Page, s models.Strategy, plausible models.Range) (int64, error) {
	return e.run(p, s, plausible)
}

func (e *Engine) run(p scraper.Page, s models.Strategy, plausible models.Range) (v int64, err error) {
	// Pages backed by a live browser can panic through rod's Must paths.
	defer func() {
		if r := recover(); r != nil {
			err = models.NewScrapeError(models.ErrCodeParse, fmt.Sprintf("strategy panic: %v", r), nil)
		}
	}()

	switch s.Kind {
	case models.StrategySelector:
		return e.bySelector(p, s, plausible)
	case models.StrategyPattern:
		return e.byPattern(p, s, plausible)
	case models.StrategyFrequency:
		return e.byFrequency(p, s, plausible)
	default:
		return 0, models.NewScrapeError(models.ErrCodeParse, fmt.Sprintf("unknown strategy %q", s.Kind), nil)
	}
}

// bySelector reads the Nth match of the selector (the first when Nth is 0).
func (e *Engine) bySelector(p scraper.Page, s models.Strategy, plausible models.Range) (int64, error) {
	els, err := p.QueryAll(s.Selector)
	if err != nil {
		return 0, models.NewScrapeError(models.ErrCodeSelectorNotFound, "query "+s.Selector, err)
	}
	if len(els) < s.Nth+1 {
		return 0, models.NewScrapeError(models.ErrCodeSelectorNotFound,
			fmt.Sprintf("%q matched %d elements, need %d", s.Selector, len(els), s.Nth+1), nil)
	}
	text, err := els[s.Nth].Text()
	if err != nil {
		return 0, models.NewScrapeError(models.ErrCodeSelectorNotFound, "read text", err)
	}
	v, err := ParsePrice(text)
	if err != nil {
		return 0, err
	}
	if !plausible.Contains(v) {
		return 0, implausible(v, plausible)
	}
	return v, nil
}

// byPattern scans the visible text and returns the first plausible amount.
func (e *Engine) byPattern(p scraper.Page, s models.Strategy, plausible models.Range) (int64, error) {
	re, err := e.compile(s)
	if err != nil {
		return 0, models.NewScrapeError(models.ErrCodeParse, "compile pattern", err)
	}
	text, err := p.VisibleText()
	if err != nil {
		return 0, models.NewScrapeError(models.ErrCodeSelectorNotFound, "read visible text", err)
	}

	var rejected []int64
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		raw := m[0]
		if len(m) > 1 && m[1] != "" {
			raw = m[1]
		}
		v, err := ParsePrice(raw)
		if err != nil {
			continue
		}
		if plausible.Contains(v) {
			return v, nil
		}
		rejected = append(rejected, v)
	}
	if len(rejected) > 0 {
		return 0, models.NewScrapeError(models.ErrCodeParse,
			fmt.Sprintf("no plausible amount in text, rejected %v", rejected), nil)
	}
	return 0, models.NewScrapeError(models.ErrCodeSelectorNotFound, "no currency amount in visible text", nil)
}

// byFrequency scans candidate elements, drops struck-through and decoy
// values, and returns the most repeated plausible amount. Ties go to the
// lowest amount.
func (e *Engine) byFrequency(p scraper.Page, s models.Strategy, plausible models.Range) (int64, error) {
	sel := s.CandidateSelector
	if sel == "" {
		sel = DefaultCandidateSelector
	}
	els, err := p.QueryAll(sel)
	if err != nil {
		return 0, models.NewScrapeError(models.ErrCodeSelectorNotFound, "query "+sel, err)
	}
	if len(els) == 0 {
		return 0, models.NewScrapeError(models.ErrCodeSelectorNotFound, "no price candidates", nil)
	}

	decoys := make(map[int64]struct{}, len(s.Decoys))
	for _, d := range s.Decoys {
		decoys[d] = struct{}{}
	}
	re, err := e.compile(models.Strategy{Thousands: s.Thousands})
	if err != nil {
		return 0, models.NewScrapeError(models.ErrCodeParse, "compile pattern", err)
	}

	counts := make(map[int64]int)
	for _, el := range els {
		st, err := el.Style()
		if err != nil || st.LineThrough() {
			continue
		}
		// Containers can hold a struck list price next to the sale price.
		text, err := el.UnstruckText()
		if err != nil {
			continue
		}
		// Count each currency token once per candidate.
		seen := make(map[int64]struct{})
		for _, tok := range re.FindAllString(text, -1) {
			v, err := ParsePrice(tok)
			if err != nil || !plausible.Contains(v) {
				continue
			}
			if _, isDecoy := decoys[v]; isDecoy {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			counts[v]++
		}
	}
	if len(counts) == 0 {
		return 0, models.NewScrapeError(models.ErrCodeParse, "no plausible candidate after exclusions", nil)
	}

	values := make([]int64, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool {
		if counts[values[i]] != counts[values[j]] {
			return counts[values[i]] > counts[values[j]]
		}
		return values[i] < values[j]
	})
	return values[0], nil
}

// compile returns the strategy's pattern, or the default currency pattern
// built for its thousands marker.
func (e *Engine) compile(s models.Strategy) (*regexp.Regexp, error) {
	src := s.Pattern
	if src == "" {
		src = CurrencyPattern(s.Thousands)
	}
	if re, ok := e.patterns.Load(src); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, err
	}
	e.patterns.Store(src, re)
	return re, nil
}

// CurrencyPattern matches amounts written in three-digit groups separated by
// the thousands marker, optionally preceded by a currency sign, such as
// "$200.000" or "1.299.990".
func CurrencyPattern(thousands string) string {
	if thousands == "" {
		thousands = "."
	}
	sep := regexp.QuoteMeta(thousands)
	return `(?:\$\s*)?\b\d{1,3}(?:` + sep + `\d{3})+\b`
}

func implausible(v int64, r models.Range) error {
	return models.NewScrapeError(models.ErrCodeParse,
		fmt.Sprintf("%d outside plausible range [%d, %d]", v, r.Min, r.Max), nil)
}

// ValidatePattern reports whether a strategy's pattern compiles.
func ValidatePattern(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return nil
	}
	_, err := regexp.Compile(pattern)
	return err
}
