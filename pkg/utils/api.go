package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/kerbaras/mangas-dl/pkg/data"
)

const DefaultUserAgent = "mangas-dl/1.0"

type API struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

func NewAPI(client *http.Client, baseURL, userAgent string) *API {
	if client == nil {
		client = http.DefaultClient
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &API{client: client, baseURL: baseURL, userAgent: userAgent}
}

func (a *API) BaseURL() string {
	return a.baseURL
}

// Get fetches baseURL+path and decodes the JSON body into v.
func (a *API) Get(ctx context.Context, path string, params url.Values, v any) error {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return RequestError(ctx, err)
	}
	defer resp.Body.Close()

	if err := CheckResponse(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return data.Transient(fmt.Errorf("decode %s: %w", req.URL, err))
	}
	return nil
}

// RequestError classifies an error returned by http.Client.Do. Cancellation is
// passed through untouched, everything else is transient.
func RequestError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return data.Transient(err)
}

// CheckResponse maps a non-successful response onto the error taxonomy. A 204 is
// treated as an error since callers always expect a body.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		return nil
	}
	// drain so the connection can be reused
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	u := ""
	if resp.Request != nil {
		u = resp.Request.URL.String()
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return &data.RateLimitedError{RetryAfter: RetryAfter(resp.Header, time.Now()), URL: u}
	}
	return &data.StatusError{Code: resp.StatusCode, URL: u}
}

// RetryAfter reads Retry-After (seconds or HTTP date) or X-RateLimit-Retry-After
// (unix seconds). It returns -1 when neither header is usable.
func RetryAfter(h http.Header, now time.Time) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
		if t, err := http.ParseTime(v); err == nil {
			return nonNegative(t.Sub(now))
		}
	}
	if v := h.Get("X-RateLimit-Retry-After"); v != "" {
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			return nonNegative(time.Unix(ts, 0).Sub(now))
		}
	}
	return -1
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
