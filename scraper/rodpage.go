package scraper

import (
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// rodPage adapts a context-bound rod page to the Page port.
type rodPage struct {
	page *rod.Page
}

func (p *rodPage) QueryAll(selector string) ([]Element, error) {
	els, err := p.page.Elements(selector)
	if err != nil {
		return nil, categorizeError(err, "query "+selector)
	}
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = &rodElement{el: el}
	}
	return out, nil
}

func (p *rodPage) VisibleText() (string, error) {
	res, err := p.page.Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return "", categorizeError(err, "read visible text")
	}
	return res.Value.Str(), nil
}

func (p *rodPage) HTML() (string, error) {
	raw, err := p.page.HTML()
	if err != nil {
		return "", categorizeError(err, "failed to extract page HTML")
	}
	return raw, nil
}

func (p *rodPage) Wait(d time.Duration) error {
	if d <= 0 {
		return nil
	}
	ctx := p.page.GetContext()
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return categorizeError(ctx.Err(), "wait interrupted")
	}
}

func (p *rodPage) MoveMouse(x, y float64) error {
	return p.page.Mouse.MoveLinear(proto.Point{X: x, Y: y}, 12)
}

func (p *rodPage) ScrollToBottom() error {
	_, err := p.page.Eval(`() => window.scrollTo(0, document.body ? document.body.scrollHeight : 0)`)
	return err
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Text() (string, error) {
	return e.el.Text()
}

// unstruckTextJS collects the rendered text under the element, skipping
// hidden subtrees and subtrees whose computed decoration is line-through.
const unstruckTextJS = `function() {
	const out = [];
	const walk = (n) => {
		if (n.nodeType === 3) { out.push(n.textContent); return; }
		if (n.nodeType !== 1) return;
		const s = window.getComputedStyle(n);
		if (s.display === "none" || s.visibility === "hidden") return;
		if ((s.textDecorationLine || s.textDecoration || "").includes("line-through")) return;
		for (const c of n.childNodes) walk(c);
		out.push(" ");
	};
	for (const c of this.childNodes) walk(c);
	return out.join("").trim();
}`

func (e *rodElement) UnstruckText() (string, error) {
	res, err := e.el.Eval(unstruckTextJS)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (e *rodElement) Attribute(name string) (string, bool, error) {
	v, err := e.el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *rodElement) Visible() (bool, error) {
	return e.el.Visible()
}

// styleJS resolves the text-decoration line drawn over the element, walking
// up because decorations are painted by ancestors but not inherited in the
// computed style.
const styleJS = `function() {
	for (let el = this; el && el.nodeType === 1; el = el.parentElement) {
		const s = window.getComputedStyle(el);
		const line = s.textDecorationLine || s.textDecoration || "";
		if (line.includes("line-through")) return line;
	}
	return window.getComputedStyle(this).textDecorationLine || "none";
}`

func (e *rodElement) Style() (Style, error) {
	res, err := e.el.Eval(styleJS)
	if err != nil {
		return Style{}, err
	}
	return Style{TextDecoration: res.Value.Str()}, nil
}

func (e *rodElement) Click() error {
	if err := e.el.ScrollIntoView(); err != nil {
		return err
	}
	return e.el.Click(proto.InputMouseButtonLeft, 1)
}
