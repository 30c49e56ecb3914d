// Package client talks to a padkey server: it reads the retention settings,
// downloads pools for local encoding and decoding, and calls the server-side
// encode and decode endpoints. Transient failures (network errors, 429, 5xx)
// are retried with exponential backoff; client errors are returned at once.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"

	"github.com/haukened/padkey/internal/app"
	"github.com/haukened/padkey/internal/codec"
	"github.com/haukened/padkey/internal/domain"
	"github.com/haukened/padkey/internal/keyfile"
	"github.com/haukened/padkey/internal/pool"
)

// StatusError reports an unexpected HTTP status from the server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// Client is safe for concurrent use.
type Client struct {
	base     *url.URL
	http     *http.Client
	maxTries uint
	backOff  func() backoff.BackOff
	log      *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithMaxTries bounds attempts per request (default 4).
func WithMaxTries(n uint) Option { return func(c *Client) { c.maxTries = n } }

// WithBackOff sets the retry schedule factory.
func WithBackOff(fn func() backoff.BackOff) Option { return func(c *Client) { c.backOff = fn } }

// WithLogger sets the logger used for retry notices.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

// New returns a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base:     u,
		http:     &http.Client{Timeout: 5 * time.Minute},
		maxTries: 4,
		backOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			return b
		},
		log: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With("domain", "client")
	return c, nil
}

func (c *Client) endpoint(p string, q url.Values) string {
	u := *c.base
	u.Path = c.base.Path + p
	u.RawQuery = q.Encode()
	return u.String()
}

type response struct {
	body   []byte
	header http.Header
}

// do sends one request per attempt and retries transient failures.
func (c *Client) do(ctx context.Context, method, target, contentType string, body []byte) (response, error) {
	op := func() (response, error) {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, rd)
		if err != nil {
			return response{}, backoff.Permanent(err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return response{}, backoff.Permanent(ctx.Err())
			}
			return response{}, err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return response{}, err
		}
		if resp.StatusCode == http.StatusOK {
			return response{body: b, header: resp.Header}, nil
		}
		serr := statusError(resp.StatusCode, b)
		switch {
		case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
			return response{}, serr
		default:
			return response{}, backoff.Permanent(serr)
		}
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(c.backOff()),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.log.Warn("request failed, retrying", "action", "retry", "method", method, "url", target, "wait", wait, "error", err)
		}),
	)
}

type errorBody struct {
	Error    string `json:"error"`
	Byte     *int   `json:"byte"`
	Position *int   `json:"position"`
	Index    *int   `json:"index"`
}

// statusError turns an error response into domain and codec errors where
// the server's answer maps onto one.
func statusError(code int, b []byte) error {
	var eb errorBody
	_ = json.Unmarshal(b, &eb)
	serr := &StatusError{Code: code, Message: eb.Error}
	switch code {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", domain.ErrNotFound, serr)
	case http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: %w", app.ErrTooLarge, serr)
	case http.StatusBadRequest:
		switch eb.Error {
		case "invalid date":
			return fmt.Errorf("%w: %w", domain.ErrInvalidDate, serr)
		case "invalid key":
			return fmt.Errorf("%w: %w", domain.ErrInvalidKey, serr)
		}
	case http.StatusUnprocessableEntity:
		if eb.Index != nil && eb.Byte != nil {
			return &codec.EncodeError{Byte: byte(*eb.Byte), Index: *eb.Index}
		}
		if eb.Index != nil && eb.Position != nil {
			return &codec.DecodeError{Position: *eb.Position, Index: *eb.Index}
		}
	}
	return serr
}

// Config returns the server's retention settings.
func (c *Client) Config(ctx context.Context) (app.Settings, error) {
	resp, err := c.do(ctx, http.MethodGet, c.endpoint("/config", nil), "", nil)
	if err != nil {
		return app.Settings{}, err
	}
	var s app.Settings
	if err := json.Unmarshal(resp.body, &s); err != nil {
		return app.Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// FetchPool downloads the pool serving date. The pool identifier comes from
// the download's file name, so single mode servers yield the single pool.
func (c *Client) FetchPool(ctx context.Context, date string) (*pool.Pool, error) {
	resp, err := c.do(ctx, http.MethodGet, c.endpoint("/download/"+url.PathEscape(date), nil), "", nil)
	if err != nil {
		return nil, err
	}
	id, err := poolID(resp.header.Get("Content-Disposition"), date)
	if err != nil {
		return nil, err
	}
	c.log.Debug("pool downloaded", "action", "download", "id", id, "size", len(resp.body))
	return pool.New(id, resp.body)
}

func poolID(disposition, date string) (domain.PoolID, error) {
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		name := params["filename"]
		if name == "server_data.bin" {
			return domain.SinglePoolID, nil
		}
		if d, ok := strings.CutPrefix(strings.TrimSuffix(name, ".bin"), "server_data_"); ok {
			return domain.ParseDate(d)
		}
	}
	return domain.ParseDate(date)
}

// Encode asks the server to encode data against the pool for date.
func (c *Client) Encode(ctx context.Context, date, ext string, data []byte) (keyfile.Key, error) {
	q := url.Values{}
	if ext != "" {
		q.Set("ext", ext)
	}
	resp, err := c.do(ctx, http.MethodPost, c.endpoint("/api/encode/"+url.PathEscape(date), q), "application/octet-stream", data)
	if err != nil {
		return keyfile.Key{}, err
	}
	return keyfile.Unmarshal(resp.body)
}

// Decode asks the server to rebuild the file described by k.
func (c *Client) Decode(ctx context.Context, k keyfile.Key) ([]byte, error) {
	b, err := keyfile.Marshal(k)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodPost, c.endpoint("/api/decode", nil), "application/json", b)
	if err != nil {
		return nil, err
	}
	return resp.body, nil
}
