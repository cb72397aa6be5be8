package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pricewatch/availability"
	"github.com/use-agent/pricewatch/models"
)

const validRegistry = `
categories:
  cpu: {min: 50000, max: 2000000}
targets:
  - name: Winpy
    url: https://www.winpy.cl/venta/ryzen/
    category: cpu
    strategies:
      - type: selector
        selector: .price-normal
      - type: pattern
    availability:
      selector: .add-to-cart-button
    timing:
      extra_wait: 5s
  - name: Mercado Libre
    mode: api
    item_id: MLC123
    category: cpu
  - name: Gated
    mode: http
    url: https://gated.example/item
    plausibility: {min: 1000, max: 5000}
    category: cpu
    strategies:
      - type: frequency
        decoys: [218000]
    interception:
      enabled: true
    stealth: false
`

func TestParse_Valid(t *testing.T) {
	targets, err := Parse([]byte(validRegistry))
	require.NoError(t, err)
	require.Len(t, targets, 3)

	winpy := targets[0]
	assert.Equal(t, "Winpy", winpy.Name)
	assert.Equal(t, models.ModeBrowser, winpy.Mode)
	assert.Equal(t, models.Range{Min: 50000, Max: 2000000}, winpy.Plausibility)
	assert.Equal(t, 5*time.Second, winpy.Timing.ExtraWait)
	require.Len(t, winpy.Strategies, 2)
	assert.Equal(t, models.StrategySelector, winpy.Strategies[0].Kind)
	assert.Equal(t, availability.DefaultOutOfStock, winpy.Availability.OutOfStock)
	assert.Nil(t, winpy.Stealth)
	assert.False(t, winpy.Interception.Enabled)
	assert.Empty(t, winpy.Interception.Markers)

	ml := targets[1]
	assert.Equal(t, models.ModeAPI, ml.Mode)
	assert.Equal(t, "MLC123", ml.ItemID)

	gated := targets[2]
	assert.Equal(t, models.ModeHTTP, gated.Mode)
	assert.Equal(t, models.Range{Min: 1000, Max: 5000}, gated.Plausibility, "inline range wins over category")
	assert.Equal(t, []int64{218000}, gated.Strategies[0].Decoys)
	assert.Equal(t, models.DefaultInterceptionMarkers, gated.Interception.Markers)
	assert.Equal(t, models.DefaultContinueTexts, gated.Interception.ContinueTexts)
	require.NotNil(t, gated.Stealth)
	assert.False(t, *gated.Stealth)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", ``, "no targets"},
		{"not yaml", `targets: [`, "decode"},
		{"unknown field", "targets:\n  - name: a\n    url: http://a\n    selectr: .p\n", "selectr"},
		{"missing name", "targets:\n  - url: http://a\n    strategies: [{type: pattern}]\n", "name is required"},
		{"duplicate", "targets:\n  - {name: a, url: http://a, strategies: [{type: pattern}]}\n  - {name: a, url: http://b, strategies: [{type: pattern}]}\n", "duplicate name"},
		{"no strategies", "targets:\n  - {name: a, url: http://a}\n", "at least one strategy"},
		{"api without item", "targets:\n  - {name: a, mode: api}\n", "item_id"},
		{"bad mode", "targets:\n  - {name: a, mode: ftp, url: http://a, strategies: [{type: pattern}]}\n", "unknown mode"},
		{"bad strategy", "targets:\n  - {name: a, url: http://a, strategies: [{type: xpath}]}\n", "unknown strategy type"},
		{"selector missing", "targets:\n  - {name: a, url: http://a, strategies: [{type: selector}]}\n", "needs a selector"},
		{"negative nth", "targets:\n  - {name: a, url: http://a, strategies: [{type: selector, selector: .p, nth: -1}]}\n", "nth"},
		{"bad css", "targets:\n  - {name: a, url: http://a, strategies: [{type: selector, selector: 'div['}]}\n", "strategy #1"},
		{"bad regex", "targets:\n  - {name: a, url: http://a, strategies: [{type: pattern, pattern: '(['}]}\n", "strategy #1"},
		{"unknown category", "targets:\n  - {name: a, url: http://a, category: gpu, strategies: [{type: pattern}]}\n", "unknown category"},
		{"inverted range", "targets:\n  - {name: a, url: http://a, plausibility: {min: 10, max: 5}, strategies: [{type: pattern}]}\n", "plausibility"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Equal(t, models.ErrCodeRegistry, models.CodeOf(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeRegistry, models.CodeOf(err))
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validRegistry), 0o644))
	targets, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, targets, 3)
}

func TestLoad_ShippedRegistry(t *testing.T) {
	targets, err := Load(filepath.Join("..", "targets.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, targets)
	assert.Equal(t, "Mercado Libre", targets[0].Name)
	for _, tg := range targets {
		assert.False(t, tg.Plausibility.IsZero(), tg.Name)
	}
}
