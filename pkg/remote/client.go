package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sony/gobreaker"

	"github.com/matzehuels/dagplanner/pkg/buildinfo"
	errs "github.com/matzehuels/dagplanner/pkg/errors"
	"github.com/matzehuels/dagplanner/pkg/httputil"
	"github.com/matzehuels/dagplanner/pkg/observability"
)

const (
	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 5 * time.Second

	// DefaultRetries is the number of retries after the first attempt.
	DefaultRetries = 2

	dagDataPath = "/api/dag-data"
	recordsPath = "/api/records"
	maxBodySize = 32 << 20
)

var (
	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")

	// ErrNotFound is returned when the store does not know the resource.
	ErrNotFound = errors.New("resource not found")
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithProjectPath scopes queries to one project directory on the store.
func WithProjectPath(path string) Option {
	return func(c *Client) { c.projectPath = path }
}

// WithRetries sets how often a transient failure is retried and the initial
// backoff delay.
func WithRetries(retries int, delay time.Duration) Option {
	return func(c *Client) {
		c.retries = max(retries, 0)
		if delay > 0 {
			c.delay = delay
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client talks to a remote record store over HTTP.
type Client struct {
	base        *url.URL
	http        *http.Client
	projectPath string
	retries     int
	delay       time.Duration
	breaker     *gobreaker.CircuitBreaker
	logger      *log.Logger
}

// NewClient creates a client for the store at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errs.New(errs.ErrCodeInvalidInput, "invalid remote URL %q", baseURL)
	}
	c := &Client{
		base:    u,
		http:    &http.Client{Timeout: DefaultTimeout},
		retries: DefaultRetries,
		delay:   250 * time.Millisecond,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "remote:" + u.Host,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// only transport failures count against the store
			return err == nil || !errors.Is(err, ErrNetwork)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return c, nil
}

// BaseURL returns the store address.
func (c *Client) BaseURL() string { return c.base.String() }

// FetchRecords lists all saved records, grouped by layer. A response with
// success=false is returned as SOURCE_UNAVAILABLE.
func (c *Client) FetchRecords(ctx context.Context) (Response, error) {
	q := url.Values{}
	if c.projectPath != "" {
		q.Set("project_path", c.projectPath)
	}
	var resp Response
	if err := c.do(ctx, http.MethodGet, dagDataPath, q, nil, &resp); err != nil {
		return Response{}, err
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "store reported failure"
		}
		return resp, errs.New(errs.ErrCodeSourceUnavailable, "%s", msg)
	}
	return resp, nil
}

// SaveRequest is the body of POST /api/records.
type SaveRequest struct {
	LayerType          string `json:"layer_type"`
	MermaidDag         string `json:"mermaid_dag"`
	ProjectDescription string `json:"project_description,omitempty"`
	Requirements       string `json:"requirements,omitempty"`
	ID                 string `json:"id,omitempty"`
}

// SaveResult is the reply to a successful save.
type SaveResult struct {
	Success       bool   `json:"success"`
	ID            string `json:"dag_id"`
	FileName      string `json:"filename"`
	SizeBytes     int64  `json:"size_bytes"`
	NodeCount     int    `json:"node_count"`
	EdgeCount     int    `json:"edge_count"`
	BackupCreated bool   `json:"backup_created"`
	Error         string `json:"error,omitempty"`
}

// SaveRecord stores a new record on the remote store.
func (c *Client) SaveRecord(ctx context.Context, req SaveRequest) (SaveResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return SaveResult{}, err
	}
	q := url.Values{}
	if c.projectPath != "" {
		q.Set("project_path", c.projectPath)
	}
	var res SaveResult
	if err := c.do(ctx, http.MethodPost, recordsPath, q, body, &res); err != nil {
		return SaveResult{}, err
	}
	if !res.Success {
		return res, errs.New(errs.ErrCodeInternal, "save failed: %s", res.Error)
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body []byte, v any) error {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = q.Encode()

	var data []byte
	err := httputil.Retry(ctx, c.retries+1, c.delay, func() error {
		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.roundTrip(ctx, method, &u, body)
		})
		if err != nil {
			return err
		}
		data = out.([]byte)
		return nil
	})
	if err != nil {
		return classify(ctx, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errs.Wrap(errs.ErrCodeSourceUnavailable, err, "decode %s response", path)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method string, u *url.URL, body []byte) ([]byte, error) {
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, method, u.Host, u.Path)
	start := time.Now()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, method, u.Host, u.Path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &httputil.RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, method, u.Host, u.Path, resp.StatusCode, time.Since(start))
	c.logger.Debug("remote request", "method", method, "path", u.Path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if err := checkStatus(resp.StatusCode); err != nil {
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusNotFound {
			return nil, rejected(resp, err)
		}
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &httputil.RetryableError{Err: fmt.Errorf("%w: read body: %v", ErrNetwork, err)}
	}
	return data, nil
}

func checkStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500:
		return &httputil.RetryableError{Err: fmt.Errorf("%w: status %d", ErrNetwork, code)}
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}

// rejected returns the store's own error for a 4xx reply, or fallback when
// the body carries none.
func rejected(resp *http.Response, fallback error) error {
	var body struct {
		Error string    `json:"error"`
		Code  errs.Code `json:"code"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &body) != nil || body.Error == "" {
		return fallback
	}
	if body.Code == "" {
		body.Code = errs.ErrCodeInvalidInput
	}
	return errs.New(body.Code, "%s", body.Error)
}

func classify(ctx context.Context, err error) error {
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return errs.Wrap(errs.ErrCodeCircuitOpen, err, "remote store circuit open")
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
		return errs.Wrap(errs.ErrCodeTimeout, err, "remote store timed out")
	case errors.Is(err, ErrNotFound):
		return errs.Wrap(errs.ErrCodeNotFound, err, "remote store endpoint not found")
	default:
		return errs.Wrap(errs.ErrCodeNetwork, err, "remote store request failed")
	}
}
