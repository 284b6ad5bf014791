// internal/erp/client.go
package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tiendanorte/compraplan/internal/config"
	"github.com/tiendanorte/compraplan/internal/domain"
	"github.com/tiendanorte/compraplan/pkg/logger"
)

const dateFormat = "20060102"

// Client is the typed HTTP adapter over the ERP REST API. It paces its own
// requests, retries rate-limited calls within a bounded budget, and
// re-authenticates once when the ERP drops the cached token early.
type Client struct {
	cfg     config.ERPConfig
	auth    Authenticator
	httpc   *http.Client
	limiter <-chan time.Time
	log     zerolog.Logger
}

// NewClient builds a client from config. auth is injectable so tests and
// tools can substitute a canned token source.
func NewClient(cfg config.ERPConfig, auth Authenticator) *Client {
	var limiter <-chan time.Time
	if cfg.MinRequestInterval > 0 {
		limiter = time.Tick(cfg.MinRequestInterval)
	}
	return &Client{
		cfg:     cfg,
		auth:    auth,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		log:     logger.Component("erp"),
	}
}

// FetchDocuments returns the raw sales documents of one kind in the
// inclusive local-date range [from, to], with line details inline.
func (c *Client) FetchDocuments(ctx context.Context, kind string, from, to time.Time) ([]Document, error) {
	params := url.Values{}
	params.Set("df", from.Format(dateFormat))
	params.Set("dt", to.Format(dateFormat))
	params.Set("details", "1")

	body, err := c.get(ctx, c.documentsPath(kind), params)
	if err != nil {
		return nil, err
	}
	return decodeDocuments(body)
}

// FetchDocumentsAllKinds fetches every configured document kind for the
// range in parallel and returns the flattened result.
func (c *Client) FetchDocumentsAllKinds(ctx context.Context, from, to time.Time) ([]Document, error) {
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	var all []Document
	for _, kind := range c.cfg.DocumentKinds {
		kind := kind
		g.Go(func() error {
			docs, err := c.FetchDocuments(gctx, kind, from, to)
			if err != nil {
				return err
			}
			mu.Lock()
			all = append(all, docs...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

// FetchDocumentDetail fetches a single document by registration number.
// Used as a fallback when a range fetch returned a document without lines.
func (c *Client) FetchDocumentDetail(ctx context.Context, kind, docNum string) (Document, error) {
	params := url.Values{}
	params.Set("docnumreg", docNum)
	params.Set("details", "1")

	body, err := c.get(ctx, c.documentsPath(kind), params)
	if err != nil {
		return nil, err
	}
	docs, err := decodeDocuments(body)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("document %s/%s: %w", kind, docNum, domain.ErrNotFound)
	}
	return docs[0], nil
}

// FetchStock returns the per-warehouse stock snapshot as of the given date.
func (c *Client) FetchStock(ctx context.Context, at time.Time) ([]StockEntry, error) {
	params := url.Values{}
	params.Set("dt", at.Format(dateFormat))

	body, err := c.get(ctx, "/stock/"+url.PathEscape(c.cfg.Company), params)
	if err != nil {
		return nil, err
	}
	items, err := decodeList(body)
	if err != nil {
		return nil, fmt.Errorf("decode stock response: %w", err)
	}
	entries := make([]StockEntry, 0, len(items))
	for _, raw := range items {
		var e StockEntry
		if err := e.UnmarshalJSON(raw); err != nil {
			return nil, fmt.Errorf("decode stock entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// FetchProducts returns the full product catalog (stocked articles only).
func (c *Client) FetchProducts(ctx context.Context) ([]CatalogEntry, error) {
	params := url.Values{}
	params.Set("con_stock", "S")

	body, err := c.get(ctx, "/products/"+url.PathEscape(c.cfg.Company), params)
	if err != nil {
		return nil, err
	}
	items, err := decodeList(body)
	if err != nil {
		return nil, fmt.Errorf("decode products response: %w", err)
	}
	entries := make([]CatalogEntry, 0, len(items))
	for _, raw := range items {
		var e CatalogEntry
		if err := e.UnmarshalJSON(raw); err != nil {
			return nil, fmt.Errorf("decode catalog entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (c *Client) documentsPath(kind string) string {
	return fmt.Sprintf("/documents/%s/%s/V", url.PathEscape(c.cfg.Company), url.PathEscape(kind))
}

// get performs one authenticated GET with client-side pacing. 429 responses
// are retried up to the configured budget honoring the server's delay; a 401
// invalidates the cached token and retries exactly once.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	attempts := 0
	reauthed := false

	for {
		if err := c.pace(ctx); err != nil {
			return nil, err
		}

		token, err := c.auth.Token(ctx)
		if err != nil {
			return nil, err
		}

		endpoint := c.cfg.BaseURL + path
		if len(params) > 0 {
			endpoint += "?" + params.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpc.Do(req)
		if err != nil {
			return nil, fmt.Errorf("erp request %s: %w", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return body, nil

		case resp.StatusCode == http.StatusUnauthorized:
			if reauthed {
				return nil, fmt.Errorf("%w: token rejected twice on %s", domain.ErrAuthFailed, path)
			}
			c.log.Warn().Str("path", path).Msg("token rejected, re-authenticating")
			c.auth.Invalidate()
			reauthed = true

		case resp.StatusCode == http.StatusTooManyRequests:
			attempts++
			if attempts >= c.cfg.MaxRetryAttempts {
				return nil, fmt.Errorf("%w: gave up on %s after %d attempts", domain.ErrRateLimited, path, attempts)
			}
			delay := c.retryDelay(resp)
			c.log.Warn().
				Str("path", path).
				Int("attempt", attempts).
				Dur("delay", delay).
				Msg("rate limited, backing off")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}

		default:
			return nil, fmt.Errorf("erp error %d on %s: %s", resp.StatusCode, path, excerpt(body))
		}
	}
}

// retryDelay reads the server-directed Retry-After (seconds), falling back
// to 2s and never exceeding the configured cap.
func (c *Client) retryDelay(resp *http.Response) time.Duration {
	delay := 2 * time.Second
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			delay = time.Duration(secs) * time.Second
		}
	}
	if c.cfg.MaxRetryDelay > 0 && delay > c.cfg.MaxRetryDelay {
		delay = c.cfg.MaxRetryDelay
	}
	return delay
}

func (c *Client) pace(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.limiter:
		return nil
	}
}

func decodeDocuments(body []byte) ([]Document, error) {
	items, err := decodeList(body)
	if err != nil {
		return nil, fmt.Errorf("decode documents response: %w", err)
	}
	docs := make([]Document, 0, len(items))
	for _, raw := range items {
		var d Document
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, nil
}
