// Package upstream is the shared HTTP plumbing for the external APIs the
// service talks to: CRM export, affiliate reporting, partner lookups and the
// board GraphQL endpoint.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

var ErrBreakerOpen = errors.New("upstream: circuit breaker open")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Upstream   string
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream=%s %s %s status=%d", e.Upstream, e.Method, e.URL, e.StatusCode)
}

// StatusCode extracts the HTTP status of a StatusError, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// Client issues requests against one base URL. A nil breaker admits every
// request.
type Client struct {
	name    string
	baseURL string
	headers http.Header
	http    *http.Client
	br      *Breaker
}

type Opts struct {
	Name    string
	BaseURL string
	Timeout time.Duration
	Headers map[string]string
	Breaker *Breaker
}

func New(opts Opts) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	h := http.Header{}
	for k, v := range opts.Headers {
		if v != "" {
			h.Set(k, v)
		}
	}
	return &Client{
		name:    opts.Name,
		baseURL: opts.BaseURL,
		headers: h,
		http:    &http.Client{Timeout: opts.Timeout},
		br:      opts.Breaker,
	}
}

func (c *Client) Name() string { return c.name }

// URL joins path and query onto the base URL.
func (c *Client) URL(path string, query url.Values) string {
	u := c.baseURL
	if path != "" {
		u = strings.TrimRight(u, "/") + "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		if strings.Contains(u, "?") {
			u += "&" + query.Encode()
		} else {
			u += "?" + query.Encode()
		}
	}
	return u
}

// Do sends req and returns the body of a 2xx response. Network errors and 5xx
// count against the breaker; 4xx do not.
func (c *Client) Do(req *http.Request) ([]byte, error) {
	if c.br != nil && !c.br.TryAcquire() {
		return nil, fmt.Errorf("%s: %w", c.name, ErrBreakerOpen)
	}
	for k, vs := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header[k] = vs
		}
	}

	res, err := c.http.Do(req)
	if err != nil {
		c.failure()
		return nil, fmt.Errorf("%s %s: %w", req.Method, c.name, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		c.failure()
		return nil, fmt.Errorf("%s %s: read body: %w", req.Method, c.name, err)
	}

	if res.StatusCode/100 != 2 {
		if res.StatusCode >= 500 {
			c.failure()
		} else {
			c.success()
		}
		return nil, &StatusError{
			Upstream:   c.name,
			Method:     req.Method,
			URL:        req.URL.Redacted(),
			StatusCode: res.StatusCode,
			Body:       truncate(string(body), 512),
		}
	}

	c.success()
	return body, nil
}

func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	return decode(c.name, body, out)
}

// Get returns the raw body, for endpoints that do not speak JSON.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(path, query), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.Do(req)
}

func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", c.name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(path, nil), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	body, err := c.Do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decode(c.name, body, out)
}

func (c *Client) PostForm(ctx context.Context, path string, query, form url.Values, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(path, query), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, vs := range header {
		req.Header[k] = vs
	}
	body, err := c.Do(req)
	if err != nil {
		return err
	}
	return decode(c.name, body, out)
}

func (c *Client) success() {
	if c.br != nil {
		c.br.OnSuccess()
	}
}

func (c *Client) failure() {
	if c.br != nil {
		c.br.OnFailure()
	}
}

func decode(name string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", name, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
