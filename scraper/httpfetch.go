package scraper

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	tls "github.com/refraction-networking/utls"
	"github.com/use-agent/pricewatch/models"
	"golang.org/x/net/html/charset"
)

// NewChromeClient returns an HTTP client whose TLS ClientHello mimics Chrome,
// so static fetches and API calls do not stand out from the browser session.
// ALPN is locked to http/1.1 because net/http cannot speak h2 over a utls conn.
func NewChromeClient(proxy string, timeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSChrome(ctx, network, addr)
		},
		ForceAttemptHTTP2: false,
	}
	if proxy != "" {
		if proxyURL, err := url.Parse(proxy); err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

// dialTLSChrome dials addr and performs a TLS handshake with a Chrome
// fingerprint restricted to http/1.1.
func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)

	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("httpfetch: tls spec: %w", err)
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}

	tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := tlsConn.ApplyPreset(&spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("httpfetch: apply tls spec: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// HTTPFetcher acquires static pages without a browser (mode "http").
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher. A nil client uses NewChromeClient.
func NewHTTPFetcher(client *http.Client, proxy string) *HTTPFetcher {
	if client == nil {
		client = NewChromeClient(proxy, 0)
	}
	return &HTTPFetcher{client: client}
}

// Open GETs pageURL and parses it into a DocPage bound to ctx.
func (f *HTTPFetcher) Open(ctx context.Context, pageURL string, opts Options) (Page, error) {
	reqCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "build request", err)
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = chromeUA
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	if opts.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", opts.AcceptLanguage)
	}
	req.Header.Set("Accept-Encoding", "identity")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, categorizeError(err, "http fetch failed")
	}
	defer resp.Body.Close()

	// Several retailers still serve ISO-8859-1; decode to UTF-8 using the
	// Content-Type header or the document's meta charset.
	reader, err := charset.NewReader(io.LimitReader(resp.Body, 10<<20), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "unsupported charset", err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, categorizeError(err, "read body")
	}
	// Challenge pages are commonly served with 403/503; let the evasion
	// controller look at them instead of failing here.
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, models.NewScrapeError(models.ErrCodeNavigation,
			fmt.Sprintf("http status %d", resp.StatusCode), nil)
	}

	return NewDocPageContext(ctx, string(body))
}

// Close releases idle connections.
func (f *HTTPFetcher) Close() {
	f.client.CloseIdleConnections()
}

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
