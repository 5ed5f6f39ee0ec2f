// Package api is the HTTP gateway to the SlotFlow REST API. Every call
// goes through Client, which attaches the stored credential and turns
// failed responses into *Error values.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/existflow/slotflow/internal/auth"
	"github.com/existflow/slotflow/internal/logger"
	"github.com/existflow/slotflow/internal/metrics"
	"github.com/existflow/slotflow/internal/notify"
)

// DefaultTimeout applies when no http.Client is supplied
const DefaultTimeout = 30 * time.Second

// Client is the gateway
type Client struct {
	baseURL          string
	store            *auth.Store
	httpClient       *http.Client
	notifier         notify.Notifier
	onSessionExpired func()

	Auth     *AuthService
	Courses  *CourseService
	Bookings *BookingService
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithNotifier sets where failure notifications go
func WithNotifier(n notify.Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

// WithSessionExpired registers the callback run after a 401 cleared the
// credential. The application uses it to get back to its login entry point.
func WithSessionExpired(fn func()) Option {
	return func(c *Client) { c.onSessionExpired = fn }
}

// New creates a gateway for baseURL backed by store
func New(baseURL string, store *auth.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		store:      store,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		notifier:   notify.Discard,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Auth = &AuthService{c: c}
	c.Courses = &CourseService{c: c}
	c.Bookings = &BookingService{c: c}
	return c
}

// BaseURL returns the endpoint prefix every path is joined to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Store returns the credential store the gateway reads from
func (c *Client) Store() *auth.Store {
	return c.store
}

type callOptions struct {
	header http.Header
	query  url.Values
	silent bool
}

// CallOption adjusts a single request
type CallOption func(*callOptions)

// WithHeader adds a request header
func WithHeader(key, value string) CallOption {
	return func(o *callOptions) { o.header.Add(key, value) }
}

// WithQuery adds a query parameter
func WithQuery(key, value string) CallOption {
	return func(o *callOptions) { o.query.Add(key, value) }
}

// WithoutNotify suppresses the failure notification for callers that
// report the error themselves. Session expiry is always notified.
func WithoutNotify() CallOption {
	return func(o *callOptions) { o.silent = true }
}

// Get issues a GET and decodes the response into out
func (c *Client) Get(ctx context.Context, path string, out interface{}, opts ...CallOption) error {
	return c.do(ctx, http.MethodGet, path, nil, out, opts)
}

// Post issues a POST. body is JSON encoded unless it is a *Form.
func (c *Client) Post(ctx context.Context, path string, body, out interface{}, opts ...CallOption) error {
	return c.do(ctx, http.MethodPost, path, body, out, opts)
}

// Put issues a PUT
func (c *Client) Put(ctx context.Context, path string, body, out interface{}, opts ...CallOption) error {
	return c.do(ctx, http.MethodPut, path, body, out, opts)
}

// Patch issues a PATCH
func (c *Client) Patch(ctx context.Context, path string, body, out interface{}, opts ...CallOption) error {
	return c.do(ctx, http.MethodPatch, path, body, out, opts)
}

// Delete issues a DELETE
func (c *Client) Delete(ctx context.Context, path string, out interface{}, opts ...CallOption) error {
	return c.do(ctx, http.MethodDelete, path, nil, out, opts)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, opts []CallOption) error {
	o := callOptions{header: http.Header{}, query: url.Values{}}
	for _, opt := range opts {
		opt(&o)
	}

	req, err := c.newRequest(ctx, method, path, body, o)
	if err != nil {
		return err
	}

	token, hasToken := c.store.Read()
	if hasToken {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	log := logger.WithFields(
		logger.F("request_id", requestID),
		logger.F("method", method),
		logger.F("path", path),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	metrics.APIDuration.WithLabelValues(method).Observe(elapsed.Seconds())

	if err != nil {
		metrics.APIRequestCount.WithLabelValues(method, "error").Inc()
		log.Error("Request failed", logger.F("error", err.Error()))
		apiErr := &Error{Method: method, Path: path, Kind: KindUnknown, cause: err}
		if !o.silent && ctx.Err() == nil {
			c.notifier.Notify(notify.New(notify.Error, apiErr.Message()))
		}
		return apiErr
	}
	defer resp.Body.Close()

	metrics.APIRequestCount.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	log.Debug("Response received",
		logger.F("status", resp.StatusCode),
		logger.F("duration_ms", elapsed.Milliseconds()),
	)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("Failed to read response", logger.F("status", resp.StatusCode), logger.F("error", err.Error()))
		apiErr := &Error{Method: method, Path: path, Kind: KindUnknown, cause: err}
		if !o.silent && ctx.Err() == nil {
			c.notifier.Notify(notify.New(notify.Error, apiErr.Message()))
		}
		return apiErr
	}

	if resp.StatusCode == http.StatusUnauthorized && hasToken {
		return c.sessionExpired(token, method, path, data)
	}

	if resp.StatusCode >= 400 {
		kind, text, fields := normalize(data)
		apiErr := &Error{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Kind:   kind,
			Text:   text,
			Fields: fields,
		}
		log.Error("Request rejected",
			logger.F("status", resp.StatusCode),
			logger.F("message", apiErr.Message()),
		)
		if !o.silent {
			c.notifier.Notify(notify.New(notify.Error, apiErr.Message()))
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}, o callOptions) (*http.Request, error) {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(o.query) > 0 {
		u += "?" + o.query.Encode()
	}

	var (
		reader      io.Reader
		contentType string
	)
	switch b := body.(type) {
	case nil:
	case *Form:
		r, ct, err := b.encode()
		if err != nil {
			return nil, err
		}
		reader, contentType = r, ct
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader, contentType = bytes.NewReader(data), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, vs := range o.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// sessionExpired handles a 401 on a call that carried a credential. Only
// the first of several concurrent rejections of the same credential
// clears it and notifies.
func (c *Client) sessionExpired(token, method, path string, body []byte) error {
	_, text, _ := normalize(body)
	apiErr := &Error{
		Method: method,
		Path:   path,
		Status: http.StatusUnauthorized,
		Kind:   KindMessage,
		Text:   SessionExpiredMessage,
		cause:  ErrSessionExpired,
	}

	cleared, err := c.store.ClearIf(token)
	if err != nil {
		logger.Error("Failed to clear credential", logger.F("error", err.Error()))
	}
	if !cleared {
		return apiErr
	}

	logger.Warn("Session expired", logger.F("path", path), logger.F("detail", text))
	metrics.SessionExpiredCount.Inc()
	c.notifier.Notify(notify.New(notify.Warning, SessionExpiredMessage))
	if c.onSessionExpired != nil {
		c.onSessionExpired()
	}
	return apiErr
}
