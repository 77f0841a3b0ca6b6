package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gamedata-sync/core/retry"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Fingerprint identifies an upstream revision. Two fingerprints are equal when their
// IDs are.
type Fingerprint struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Equal reports whether f and o name the same revision.
func (f Fingerprint) Equal(o Fingerprint) bool {
	return f.ID == o.ID
}

// IsZero reports whether no revision is known.
func (f Fingerprint) IsZero() bool {
	return f.ID == ""
}

// Client performs upstream requests.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a Client. TimeoutSeconds bounds connecting and waiting for response
// headers; bodies stream for as long as the request context allows.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 120
	}
	timeoutDuration := time.Duration(timeout) * time.Second

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeoutDuration,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeoutDuration,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeoutDuration,
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Transport: transport},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// maxRevisionBody bounds the revision list read into memory.
const maxRevisionBody = 4 << 20

// LatestRevision queries the newest upstream revision. The response is a JSON list of
// commits, newest first; the first entry's id (or sha) names the revision.
func (c *Client) LatestRevision(ctx context.Context) (Fingerprint, error) {
	const op = "query revision"

	resp, err := c.get(ctx, op, c.cfg.RevisionURL)
	if err != nil {
		return Fingerprint{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRevisionBody))
	if err != nil {
		if ctx.Err() != nil {
			return Fingerprint{}, err
		}
		return Fingerprint{}, retry.New(retry.CategoryNetwork, op, err)
	}
	if !gjson.ValidBytes(body) {
		return Fingerprint{}, retry.New(retry.CategoryStructure, op, errors.New("revision list is not valid JSON"))
	}

	list := gjson.ParseBytes(body)
	if !list.IsArray() {
		return Fingerprint{}, retry.New(retry.CategoryStructure, op, errors.New("revision list is not an array"))
	}
	first := list.Get("0")
	if !first.Exists() {
		return Fingerprint{}, retry.New(retry.CategoryStructure, op, errors.New("empty revision list"))
	}

	id := first.Get("id").String()
	if id == "" {
		id = first.Get("sha").String()
	}
	if id == "" {
		return Fingerprint{}, retry.New(retry.CategoryStructure, op, errors.New("revision without identifier"))
	}
	ts := first.Get("committed_date").String()
	if ts == "" {
		ts = first.Get("created_at").String()
	}
	return Fingerprint{ID: id, Timestamp: ts}, nil
}

// Fetch streams the file at path for revision. The caller closes the body.
func (c *Client) Fetch(ctx context.Context, revision, path string) (io.ReadCloser, error) {
	resp, err := c.get(ctx, "fetch "+path, c.FileURL(revision, path))
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// FileURL renders the file URL of path at revision.
func (c *Client) FileURL(revision, path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.NewReplacer(
		"{revision}", url.PathEscape(revision),
		"{path}", strings.Join(segments, "/"),
	).Replace(c.cfg.FileURL)
}

func (c *Client) get(ctx context.Context, op, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, retry.New(retry.CategoryConfig, op, err)
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, retry.New(retry.Classify(err), op, err)
	}

	c.logger.Debug("Upstream response",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		resp.Body.Close()
		return nil, retry.New(retry.HTTPStatusCategory(resp.StatusCode), op,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))).
			With("status", strconv.Itoa(resp.StatusCode))
	}
	return resp, nil
}
