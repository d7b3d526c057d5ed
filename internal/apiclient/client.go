// Package apiclient is the single point of network I/O towards the backend
// under test. Every call is exactly one round trip: no retries, no caching.
package apiclient

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

	"github.com/sirupsen/logrus"
	"github.com/vianscientific/apicheck/internal/metric"
)

const DefaultTimeout = 30 * time.Second

// UnsupportedMethodError is returned for methods other than GET, POST, PUT
// and DELETE. It indicates a bug in the calling test, not a backend failure.
type UnsupportedMethodError struct {
	Method string
}

func (e UnsupportedMethodError) Error() string {
	return fmt.Sprintf("unsupported HTTP method: %q", e.Method)
}

// NetworkError wraps transport level failures such as dns errors, refused
// connections and timeouts.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e NetworkError) Unwrap() error {
	return e.Err
}

type Client struct {
	http    *http.Client
	baseURL string
	headers http.Header
	log     logrus.FieldLogger
}

type Option func(c *Client)

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithDefaultHeader adds a header sent with every request.
func WithDefaultHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: DefaultTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: http.Header{},
		log:     logrus.StandardLogger(),
	}

	for _, o := range opts {
		o(c)
	}

	c.log = c.log.WithField("component", "apiclient")

	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

type request struct {
	body    any
	hasBody bool
	headers http.Header
	query   url.Values
	token   string
}

type RequestOption func(r *request)

// WithJSON serializes v as the JSON request body.
func WithJSON(v any) RequestOption {
	return func(r *request) {
		r.body = v
		r.hasBody = true
	}
}

// WithBearer renders the token as `Authorization: Bearer <token>`. An empty
// token sends no Authorization header.
func WithBearer(token string) RequestOption {
	return func(r *request) {
		r.token = token
	}
}

func WithHeader(key, value string) RequestOption {
	return func(r *request) {
		r.headers.Set(key, value)
	}
}

func WithQuery(key, value string) RequestOption {
	return func(r *request) {
		r.query.Set(key, value)
	}
}

func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Exchange, error) {
	return c.Do(ctx, http.MethodGet, path, opts...)
}

func (c *Client) Post(ctx context.Context, path string, opts ...RequestOption) (*Exchange, error) {
	return c.Do(ctx, http.MethodPost, path, opts...)
}

func (c *Client) Put(ctx context.Context, path string, opts ...RequestOption) (*Exchange, error) {
	return c.Do(ctx, http.MethodPut, path, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*Exchange, error) {
	return c.Do(ctx, http.MethodDelete, path, opts...)
}

// Do sends a single request to baseURL+path. A response with any status code
// is returned as an Exchange; only transport failures return a NetworkError.
func (c *Client) Do(ctx context.Context, method, path string, opts ...RequestOption) (*Exchange, error) {
	method = strings.ToUpper(method)

	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return nil, UnsupportedMethodError{Method: method}
	}

	r := request{headers: http.Header{}, query: url.Values{}}
	for _, o := range opts {
		o(&r)
	}

	fullURL, err := c.buildURL(path, r.query)
	if err != nil {
		return nil, fmt.Errorf("building url for %q: %w", path, err)
	}

	var payload []byte
	if r.hasBody && method != http.MethodGet && method != http.MethodDelete {
		payload, err = json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, v := range c.headers {
		req.Header[k] = append([]string(nil), v...)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range r.headers {
		req.Header[k] = append([]string(nil), v...)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	ex := &Exchange{
		Method:         method,
		URL:            fullURL,
		RequestHeaders: req.Header.Clone(),
		RequestBody:    payload,
	}

	log := c.log.WithFields(logrus.Fields{"method": method, "url": fullURL})
	log.Debug("sending request")

	start := time.Now()
	res, err := c.http.Do(req)
	ex.Duration = time.Since(start)
	if err != nil {
		metric.RequestDuration.WithLabelValues(method, "error").Observe(ex.Duration.Seconds())
		log.WithError(err).Debug("request failed")
		return nil, NetworkError{Method: method, URL: fullURL, Err: err}
	}
	defer res.Body.Close()

	ex.StatusCode = res.StatusCode
	ex.ResponseHeaders = res.Header.Clone()

	ex.ResponseBody, err = io.ReadAll(res.Body)
	if err != nil {
		return nil, NetworkError{Method: method, URL: fullURL, Err: fmt.Errorf("reading response body: %w", err)}
	}

	metric.RequestDuration.WithLabelValues(method, strconv.Itoa(res.StatusCode)).Observe(ex.Duration.Seconds())
	log.WithFields(logrus.Fields{"status": res.StatusCode, "latency_ms": ex.Duration.Milliseconds()}).Debug("received response")

	return ex, nil
}

func (c *Client) buildURL(path string, query url.Values) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", err
	}

	if len(query) > 0 {
		q := u.Query()
		for k, v := range query {
			q[k] = v
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}
