// Package content is a client for the headless CMS REST API that stores
// the blog's posts. It resolves the master ref, queries documents by type
// or UID, and dereferences next_page continuation URLs.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eringen/prismblog/logger"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "prismblog/1.0"
	maxBodyBytes     = 8 << 20
)

var (
	// ErrNotFound is returned when a document lookup matches nothing.
	ErrNotFound = errors.New("content: document not found")
	// ErrNoMasterRef is returned when the API entry point lists no master ref.
	ErrNoMasterRef = errors.New("content: api has no master ref")
	// ErrForeignReference is returned when a continuation reference points
	// at a host other than the configured API.
	ErrForeignReference = errors.New("content: continuation reference points to a foreign host")
)

// StatusError reports a non-2xx response from the API.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("content: %s returned HTTP %d", e.URL, e.Code)
}

// Config configures a Client.
type Config struct {
	Endpoint    string // API entry point, e.g. https://repo.cdn.prismic.io/api/v2
	AccessToken string
	Timeout     time.Duration
	UserAgent   string
	Retry       RetryPolicy
}

// QueryOptions narrows a GetByType query.
type QueryOptions struct {
	PageSize  int
	Page      int
	Orderings []string // e.g. "document.first_publication_date desc"
}

// Client talks to the content API. It is safe for concurrent use and is
// meant to be built once per process.
type Client struct {
	endpoint  *url.URL
	token     string
	userAgent string
	policy    RetryPolicy
	http      *http.Client
	log       logger.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("content: endpoint is required")
	}
	u, err := url.Parse(strings.TrimRight(cfg.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("content: parse endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("content: endpoint must be http(s), got %q", cfg.Endpoint)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	c := &Client{
		endpoint:  u,
		token:     cfg.AccessToken,
		userAgent: ua,
		policy:    cfg.Retry.normalize(),
		http:      &http.Client{Timeout: timeout},
		log:       logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type apiRef struct {
	ID          string `json:"id"`
	Ref         string `json:"ref"`
	Label       string `json:"label"`
	IsMasterRef bool   `json:"isMasterRef"`
}

type apiInfo struct {
	Refs []apiRef `json:"refs"`
}

// Ref returns the current master ref, which every document query must carry.
func (c *Client) Ref(ctx context.Context) (string, error) {
	u := *c.endpoint
	q := u.Query()
	c.addToken(q)
	u.RawQuery = q.Encode()

	var info apiInfo
	if err := c.getWithRetry(ctx, u.String(), &info); err != nil {
		return "", fmt.Errorf("content: lookup master ref: %w", err)
	}
	for _, r := range info.Refs {
		if r.IsMasterRef && r.Ref != "" {
			return r.Ref, nil
		}
	}
	return "", ErrNoMasterRef
}

// GetByType returns the first page (or opts.Page) of documents of docType.
func (c *Client) GetByType(ctx context.Context, docType string, opts QueryOptions) (PageResult, error) {
	predicate := fmt.Sprintf(`[[at(document.type,%q)]]`, docType)
	return c.search(ctx, predicate, opts)
}

// GetByUID returns the document of docType whose UID is uid.
func (c *Client) GetByUID(ctx context.Context, docType, uid string) (Post, error) {
	predicate := fmt.Sprintf(`[[at(my.%s.uid,%q)]]`, docType, uid)
	res, err := c.search(ctx, predicate, QueryOptions{PageSize: 1})
	if err != nil {
		return Post{}, err
	}
	if len(res.Results) == 0 {
		return Post{}, ErrNotFound
	}
	return res.Results[0], nil
}

func (c *Client) search(ctx context.Context, predicate string, opts QueryOptions) (PageResult, error) {
	ref, err := c.Ref(ctx)
	if err != nil {
		return PageResult{}, err
	}
	u := *c.endpoint
	u.Path = strings.TrimRight(u.Path, "/") + "/documents/search"
	q := url.Values{}
	q.Set("ref", ref)
	q.Set("q", predicate)
	if opts.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(opts.PageSize))
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if len(opts.Orderings) > 0 {
		q.Set("orderings", "["+strings.Join(opts.Orderings, ",")+"]")
	}
	c.addToken(q)
	u.RawQuery = q.Encode()

	var res PageResult
	if err := c.getWithRetry(ctx, u.String(), &res); err != nil {
		return PageResult{}, err
	}
	return res, nil
}

// FetchPage dereferences a next_page continuation reference. Relative
// references resolve against the endpoint. This is a single plain GET;
// retrying is left to the caller.
func (c *Client) FetchPage(ctx context.Context, ref string) (PageResult, error) {
	target, err := c.resolve(ref)
	if err != nil {
		return PageResult{}, err
	}
	var res PageResult
	if err := c.get(ctx, target, &res); err != nil {
		return PageResult{}, err
	}
	return res, nil
}

func (c *Client) resolve(ref string) (string, error) {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("content: parse continuation reference: %w", err)
	}
	u := c.endpoint.ResolveReference(r)
	if !strings.EqualFold(u.Host, c.endpoint.Host) {
		return "", fmt.Errorf("%w: %s", ErrForeignReference, u.Host)
	}
	return u.String(), nil
}

func (c *Client) addToken(q url.Values) {
	if c.token != "" {
		q.Set("access_token", c.token)
	}
}

func (c *Client) getWithRetry(ctx context.Context, target string, out any) error {
	attempt := 0
	return retry(ctx, c.policy, func() error {
		attempt++
		err := c.get(ctx, target, out)
		if err != nil && retryable(err) {
			c.log.Warn("content api request failed",
				logger.String("url", redact(target)),
				logger.Int("attempt", attempt),
				logger.Error(err),
			)
		}
		return err
	})
}

func (c *Client) get(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debug("content api request",
		logger.String("url", redact(target)),
		logger.Int("status", resp.StatusCode),
		logger.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return &StatusError{Code: resp.StatusCode, URL: redact(target)}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// redact strips the access token from a URL before it is logged.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("access_token") {
		q.Set("access_token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
