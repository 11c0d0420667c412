package hotpath

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"hotpath/internal/stats"
)

// Response is the outcome of one API call. It is consumed by checks and
// metric recorders and then dropped.
type Response struct {
	Method   string
	URL      string
	Status   int
	Body     []byte
	Duration time.Duration
	Err      error
}

// Failed mirrors k6's default expected statuses: anything outside 200-399,
// or no response at all, counts as a failed request.
func (r Response) Failed() bool {
	return r.Err != nil || r.Status < 200 || r.Status >= 400
}

// JSONString returns a top-level field the way a truthy id check sees it:
// non-empty strings and non-zero numbers pass, rendered without exponent.
// Booleans, zero, null and objects do not.
func (r Response) JSONString(field string) (string, bool) {
	dec := json.NewDecoder(bytes.NewReader(r.Body))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return "", false
	}
	switch v := body[field].(type) {
	case string:
		return v, v != ""
	case json.Number:
		f, err := v.Float64()
		if err != nil || f == 0 {
			return "", false
		}
		return v.String(), true
	}
	return "", false
}

// Client issues JSON calls against the target services and records every
// call in the request metrics. It never retries.
type Client struct {
	http *http.Client
	reg  *stats.Registry
	log  *zap.Logger
}

// NewHTTPClient builds the shared pooled client. A zero timeout leaves the
// client without one.
func NewHTTPClient(timeout time.Duration, vus int) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	conns := vus * 3
	if conns < 100 {
		conns = 100
	}
	t.MaxIdleConns = conns
	t.MaxConnsPerHost = conns
	t.MaxIdleConnsPerHost = conns

	return &http.Client{
		Timeout:   timeout,
		Transport: t,
	}
}

func NewClient(hc *http.Client, reg *stats.Registry, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{http: hc, reg: reg, log: log}
}

func (c *Client) PostJSON(ctx context.Context, baseURL, path string, payload any, token string) Response {
	return c.do(ctx, http.MethodPost, baseURL+path, payload, token)
}

func (c *Client) PatchJSON(ctx context.Context, baseURL, path string, payload any, token string) Response {
	return c.do(ctx, http.MethodPatch, baseURL+path, payload, token)
}

func (c *Client) GetJSON(ctx context.Context, baseURL, path, token string) Response {
	return c.do(ctx, http.MethodGet, baseURL+path, nil, token)
}

func (c *Client) do(ctx context.Context, method, url string, payload any, token string) Response {
	res := Response{Method: method, URL: url}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			res.Err = fmt.Errorf("encode %s %s: %w", method, url, err)
			return res
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		res.Err = fmt.Errorf("build %s %s: %w", method, url, err)
		return res
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err == nil {
		res.Status = resp.StatusCode
		res.Body, err = io.ReadAll(resp.Body)
		resp.Body.Close()
	}
	res.Duration = time.Since(start)
	res.Err = err

	c.reg.AddRequest(res.Duration, res.Failed())
	if res.Err != nil {
		c.log.Debug("request error",
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(res.Err))
	}
	return res
}

// bodyText trims a response body for error messages.
func bodyText(b []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
