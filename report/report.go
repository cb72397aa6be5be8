// Package report renders a run's diff and ranking as a Telegram-ready HTML
// message.
package report

import (
	"fmt"
	"html"
	"strings"
	"time"
	_ "time/tzdata" // the report timezone must resolve on hosts without zoneinfo

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/diff"
	"github.com/use-agent/pricewatch/models"
)

const separator = "━━━━━━━━━━━━━━━━━"

// Renderer formats reports for one locale and timezone.
type Renderer struct {
	printer *message.Printer
	loc     *time.Location
	topK    int
}

// New creates a Renderer. An unknown locale falls back to es-CL; an
// unknown timezone is an error.
func New(cfg config.ReportConfig) (*Renderer, error) {
	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		tag = language.MustParse("es-CL")
	}
	tz := cfg.Timezone
	if tz == "" {
		tz = "America/Santiago"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("report: load timezone %q: %w", tz, err)
	}
	k := cfg.TopK
	if k <= 0 {
		k = 3
	}
	return &Renderer{printer: message.NewPrinter(tag), loc: loc, topK: k}, nil
}

// Money formats an amount with the locale's digit grouping, e.g. $200.000.
func (r *Renderer) Money(v int64) string {
	return "$" + r.printer.Sprintf("%d", v)
}

// Render builds the message for snap compared as res, stamped with at.
func (r *Renderer) Render(snap models.Snapshot, res diff.Result, at time.Time) string {
	var b strings.Builder
	rk := diff.Rank(snap.Results, r.topK)

	switch {
	case res.HasDrops:
		b.WriteString("🎉 <b>¡HAY BAJADAS DE PRECIO!</b> 🎉\n\n")
	default:
		b.WriteString("📊 <b>Actualización de Precios</b>\n\n")
	}
	if res.FirstRun {
		b.WriteString("🆕 Primera ejecución - sin comparación previa\n\n")
	}

	if drops := res.Drops(); len(drops) > 0 {
		b.WriteString("💸 <b>BAJADAS:</b>\n")
		for _, ch := range drops {
			fmt.Fprintf(&b, "• %s %s\n", html.EscapeString(ch.Name), stockIcon(ch.Available))
			fmt.Fprintf(&b, "  Antes: %s\n", r.Money(*ch.PreviousPrice))
			fmt.Fprintf(&b, "  Ahora: %s\n", r.Money(*ch.CurrentPrice))
			fmt.Fprintf(&b, "  Ahorro: %s\n\n", r.Money(ch.Savings))
		}
		b.WriteString(separator + "\n\n")
	}

	if rises := res.Rises(); len(rises) > 0 {
		b.WriteString("📈 <b>SUBIDAS:</b>\n")
		for _, ch := range rises {
			fmt.Fprintf(&b, "• %s %s\n", html.EscapeString(ch.Name), stockIcon(ch.Available))
			fmt.Fprintf(&b, "  Antes: %s\n", r.Money(*ch.PreviousPrice))
			fmt.Fprintf(&b, "  Ahora: %s\n", r.Money(*ch.CurrentPrice))
			fmt.Fprintf(&b, "  Aumento: %s\n\n", r.Money(ch.Increase))
		}
		b.WriteString(separator + "\n\n")
	}

	fmt.Fprintf(&b, "🏆 <b>TOP %d MEJORES PRECIOS:</b>\n\n", r.topK)
	if len(rk.TopK) == 0 {
		b.WriteString("Sin precios disponibles\n\n")
	}
	for i, it := range rk.TopK {
		fmt.Fprintf(&b, "%d. <b>%s</b> %s\n", i+1, html.EscapeString(it.Name), stockIcon(it.Available))
		fmt.Fprintf(&b, "   💰 %s\n", r.Money(*it.Price))
		if it.URL != "" {
			fmt.Fprintf(&b, "   🔗 %s\n", html.EscapeString(it.URL))
		}
		b.WriteString("\n")
	}

	b.WriteString(separator + "\n\n")
	b.WriteString("📋 <b>TODOS LOS PRECIOS:</b>\n\n")
	for i, it := range rk.All {
		fmt.Fprintf(&b, "%2d. %s %s\n", i+1, html.EscapeString(it.Name), stockIcon(it.Available))
		fmt.Fprintf(&b, "    💰 %s\n", r.Money(*it.Price))
	}

	if len(rk.NoData) > 0 {
		b.WriteString("\n⚠️ <b>Sin datos:</b>\n")
		for _, it := range rk.NoData {
			fmt.Fprintf(&b, "   • %s\n", html.EscapeString(it.Name))
		}
	}

	b.WriteString("\n" + separator + "\n\n")
	fmt.Fprintf(&b, "📦 %d con stock | %d sin stock\n", len(rk.WithStock), len(rk.WithoutStock))
	fmt.Fprintf(&b, "✅ %d/%d precios obtenidos\n", len(rk.All), len(snap.Results))
	fmt.Fprintf(&b, "⏰ %s", at.In(r.loc).Format("02-01-2006 15:04:05"))
	return b.String()
}

// stockIcon shows the tri-state availability; unknown is not shown as
// out of stock.
func stockIcon(a models.Availability) string {
	switch a {
	case models.Available:
		return "✅"
	case models.Unavailable:
		return "❌"
	default:
		return "❔"
	}
}
