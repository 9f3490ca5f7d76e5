package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/roach88/statfetch/internal/catalog"
	"github.com/roach88/statfetch/internal/engine"
)

// DefaultMaxBody bounds how much of a response is read.
const DefaultMaxBody = 64 << 20

// Config configures an HTTP transport.
type Config struct {
	// BaseURL is the API root; each dataset's route is joined onto it.
	BaseURL string

	// APIKey is sent as the "key" query parameter when set.
	APIKey string

	// RPS is the client-side request rate. Zero or less disables limiting.
	RPS float64

	// Timeout bounds each call. Ignored when Client is set.
	Timeout time.Duration

	// MaxBody bounds the response size. Zero means DefaultMaxBody.
	MaxBody int64

	Client *http.Client
	Logger *slog.Logger
}

// HTTP sends requests to the statistics API.
type HTTP struct {
	base    *url.URL
	key     string
	client  *http.Client
	limiter *rate.Limiter
	catalog *catalog.Catalog
	maxBody int64
	logger  *slog.Logger
}

var _ engine.Transport = (*HTTP)(nil)

// New builds an HTTP transport. Routes are resolved through cat.
func New(cfg Config, cat *catalog.Catalog) (*HTTP, error) {
	if cfg.BaseURL == "" {
		return nil, engine.NewConfigurationError("API base URL is not set")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, engine.NewConfigurationError(fmt.Sprintf("invalid API base URL %q", cfg.BaseURL))
	}

	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = DefaultMaxBody
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &HTTP{
		base:    base,
		key:     cfg.APIKey,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		catalog: cat,
		maxBody: maxBody,
		logger:  logger,
	}, nil
}

// URL returns the address for req. The API key is included.
func (t *HTTP) URL(req engine.Request) (string, error) {
	ds, err := t.catalog.Dataset(req.Dataset())
	if err != nil {
		return "", err
	}

	u := t.base.JoinPath(ds.Route())
	q := url.Values{}
	for name, value := range req.Params() {
		q.Set(name, value)
	}
	if t.key != "" {
		q.Set("key", t.key)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Send issues one GET and classifies the result.
func (t *HTTP) Send(ctx context.Context, req engine.Request) ([]byte, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	addr, err := t.URL(req)
	if err != nil {
		return nil, &Error{Kind: KindClient, Message: "build url", Err: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, &Error{Kind: KindClient, Message: "build request", Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "statfetch")

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBody+1))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Status: resp.StatusCode, Message: "read body", Err: err}
	}
	t.logger.Debug("api call",
		"dataset", req.Dataset(),
		"fingerprint", req.Fingerprint().Short(),
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed", time.Since(start),
	)

	if err := classify(resp.StatusCode, body); err != nil {
		return nil, err
	}
	if int64(len(body)) > t.maxBody {
		return nil, &Error{Kind: KindServer, Status: resp.StatusCode, Message: fmt.Sprintf("response exceeds %d bytes", t.maxBody)}
	}
	return body, nil
}

// classify maps a response to a transport error, or nil for a usable body.
// Some services answer 200 with an error document, so successful statuses
// are checked for one too.
func classify(status int, body []byte) error {
	msg := errorMessage(body)
	switch {
	case status == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimited, Status: status, Message: msg}
	case status >= 500:
		return &Error{Kind: KindServer, Status: status, Message: msg}
	case status >= 400:
		return &Error{Kind: KindClient, Status: status, Message: msg}
	case status < 200 || status >= 300:
		return &Error{Kind: KindServer, Status: status, Message: msg}
	}

	apiErr := gjson.GetBytes(body, "error")
	if !isErrorValue(apiErr) {
		return nil
	}
	code := apiErr.Get("code").Int()
	if code == http.StatusTooManyRequests || strings.Contains(strings.ToLower(msg), "rate limit") {
		return &Error{Kind: KindRateLimited, Status: status, Message: msg}
	}
	return &Error{Kind: KindServer, Status: status, Message: msg}
}

// isErrorValue reports whether an "error" member signals a failure: true, a
// non-empty string or a non-empty object. false, "", {} and null do not.
func isErrorValue(r gjson.Result) bool {
	switch {
	case r.Type == gjson.True:
		return true
	case r.Type == gjson.String:
		return r.String() != ""
	case r.IsObject():
		return len(r.Map()) > 0
	}
	return false
}

// errorMessage extracts a message from an API error document, falling back
// to a prefix of the raw body.
func errorMessage(body []byte) string {
	for _, path := range []string{"error.message", "error", "message"} {
		if r := gjson.GetBytes(body, path); r.Exists() && r.Type == gjson.String {
			return r.String()
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
