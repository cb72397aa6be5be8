// Package mercadolibre resolves API-backed targets through the public
// MercadoLibre items endpoint instead of rendering the listing page.
package mercadolibre

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/models"
	"github.com/use-agent/pricewatch/scraper"
)

// ListingURL is the public product page used when an item has no permalink.
const ListingURL = "https://www.mercadolibre.cl/p/"

// Item is the subset of the items resource the monitor reads.
type Item struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Price             *float64 `json:"price"`
	CurrencyID        string   `json:"currency_id"`
	Status            string   `json:"status"`
	AvailableQuantity int      `json:"available_quantity"`
	SoldOut           bool     `json:"sold_out"`
	Permalink         string   `json:"permalink"`
}

// PriceValue returns the price rounded to an integer, or nil when the item
// has no positive price.
func (it *Item) PriceValue() *int64 {
	if it == nil || it.Price == nil || *it.Price <= 0 {
		return nil
	}
	v := int64(math.Round(*it.Price))
	if v <= 0 {
		return nil
	}
	return models.Int64(v)
}

// Availability is Available only for an active item with units left.
func (it *Item) Availability() models.Availability {
	if it == nil {
		return models.AvailabilityUnknown
	}
	if it.Status == "active" && it.AvailableQuantity > 0 && !it.SoldOut {
		return models.Available
	}
	return models.Unavailable
}

// Locator returns the item's permalink or the listing URL built from id.
func Locator(id string, it *Item) string {
	if it != nil && it.Permalink != "" {
		return it.Permalink
	}
	return ListingURL + id
}

// StatusError is a non-2xx response from the API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("mercadolibre: status %d: %s", e.StatusCode, e.Body)
}

// IsTransient reports whether a failed call is worth retrying: server
// errors, rate limiting, timeouts and network failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}
	if models.IsCode(err, models.ErrCodeTimeout) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// Client calls the items API.
type Client struct {
	http    *http.Client
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a client using the Chrome-fingerprinted transport.
func NewClient(cfg config.MercadoLibreConfig, proxy string, logger *slog.Logger) *Client {
	return NewClientWithHTTP(scraper.NewChromeClient(proxy, cfg.Timeout), cfg.BaseURL, logger)
}

// NewClientWithHTTP creates a client on top of an existing http.Client.
func NewClientWithHTTP(httpClient *http.Client, baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Item fetches GET {base}/items/{id}.
func (c *Client) Item(ctx context.Context, id string) (*Item, error) {
	endpoint := c.baseURL + "/items/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeAPI, "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, models.NewScrapeError(models.ErrCodeTimeout, "items request timed out", err)
		}
		return nil, models.NewScrapeError(models.ErrCodeAPI, "items request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeAPI, "read items response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, models.NewScrapeError(models.ErrCodeAPI, "items request rejected",
			&StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)})
	}

	var it Item
	if err := json.Unmarshal(body, &it); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeAPI, "decode item", err)
	}
	c.logger.Debug("item fetched",
		"item", id,
		"status", it.Status,
		"available_quantity", it.AvailableQuantity,
	)
	return &it, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
