package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/matka-backoffice/internal/errors"
	"github.com/jrsteele09/matka-backoffice/internal/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const requestIDHeader = "X-Request-ID"

// Client executes backend calls. It attaches the current bearer token, turns HTTP error
// statuses into structured APIErrors and runs registered interceptors after every response.
type Client struct {
	baseURL *url.URL
	base    http.RoundTripper
	tokens  oauth2.TokenSource
	policy  AuthPolicy
	metrics *metrics.Metrics

	mu           sync.RWMutex
	interceptors []Interceptor
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithTransport sets the underlying round tripper (defaults to http.DefaultTransport)
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.base = rt
	}
}

// WithAuthPolicy overrides DefaultAuthPolicy
func WithAuthPolicy(p AuthPolicy) ClientOption {
	return func(c *Client) {
		c.policy = p
	}
}

func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a client for baseURL. tokens supplies the bearer token; a token source that
// errors (logged out) means requests are sent without Authorization.
func New(baseURL string, tokens oauth2.TokenSource, options ...ClientOption) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("[apiclient.New] token source is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("[apiclient.New] invalid base URL %q", baseURL)
	}
	c := &Client{
		baseURL: u,
		base:    http.DefaultTransport,
		tokens:  tokens,
		policy:  DefaultAuthPolicy(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Use registers an interceptor. Interceptors run in registration order.
func (c *Client) Use(i Interceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interceptors = append(c.interceptors, i)
}

// Do executes req. HTTP error statuses are reported through Response.Err, never as an error;
// only transport failures (unreachable host, cancelled context, unreadable body) return an
// error, wrapping errors.ErrTransport.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	var tok *oauth2.Token
	attached := false
	if !req.Anonymous {
		var tokErr error
		tok, tokErr = c.tokens.Token()
		attached = tokErr == nil && tok != nil && tok.AccessToken != ""
	}
	httpClient := &http.Client{Transport: c.base}
	if attached {
		httpClient.Transport = &oauth2.Transport{Source: oauth2.StaticTokenSource(tok), Base: c.base}
	}

	log.Debug().Str("method", req.Method).Str("endpoint", req.Endpoint).
		Str("request_id", httpReq.Header.Get(requestIDHeader)).Bool("auth", attached).Msg("api request")

	httpResp, err := httpClient.Do(httpReq)
	if err != nil {
		c.metrics.APIRequest(req.Method, 0)
		return nil, errors.Wrapf(errors.ErrTransport, "%s %s: %v", req.Method, req.Endpoint, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.metrics.APIRequest(req.Method, 0)
		return nil, errors.Wrapf(errors.ErrTransport, "read %s %s: %v", req.Method, req.Endpoint, err)
	}
	c.metrics.APIRequest(req.Method, httpResp.StatusCode)

	resp := &Response{Status: httpResp.StatusCode, Header: httpResp.Header}
	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		if len(body) > 0 {
			resp.Data = body
		}
	} else {
		resp.Err = parseAPIError(httpResp.StatusCode, body)
		resp.Err.Kind = c.policy.classify(resp.Err, attached)
		log.Debug().Int("status", resp.Status).Str("kind", resp.Err.Kind.String()).
			Str("endpoint", req.Endpoint).Msg("api error response")
	}

	call := Call{Request: req, Response: resp}
	if attached {
		call.Token = tok.AccessToken
	}
	c.intercept(ctx, call)
	return resp, nil
}

func (c *Client) intercept(ctx context.Context, call Call) {
	c.mu.RLock()
	interceptors := append([]Interceptor(nil), c.interceptors...)
	c.mu.RUnlock()

	for _, i := range interceptors {
		i.Intercept(ctx, call)
	}
}

func (c *Client) newHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	if req == nil || req.Endpoint == "" {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "[Client.Do] endpoint is required")
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target := c.baseURL.JoinPath(req.Endpoint)
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	body, contentType, err := req.encodeBody()
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("[Client.Do] build request: %w", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(requestIDHeader, uuid.New().String())
	return httpReq, nil
}

// BaseURL returns the backend root the client targets
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}
