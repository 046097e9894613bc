// Package upstream holds the gateway's HTTP clients for the task-service and
// the activity-service.
package upstream

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	stdhttputil "net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"taskflow/internal/platform/metrics"
	dErrors "taskflow/pkg/domain-errors"
	"taskflow/pkg/platform/httputil"
	request "taskflow/pkg/platform/middleware/request"
)

// Client forwards gateway requests to one backing service.
type Client struct {
	name    string
	base    *url.URL
	http    *http.Client
	proxy   *stdhttputil.ReverseProxy
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTransport replaces the round tripper, mainly for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.http.Transport = rt
		}
	}
}

// NewClient creates a client for the service at baseURL. timeout bounds
// every call made through it.
func NewClient(name, baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid %s URL %q", name, baseURL)
	}
	c := &Client{
		name:   name,
		base:   base,
		http:   &http.Client{Timeout: timeout, Transport: http.DefaultTransport},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.proxy = &stdhttputil.ReverseProxy{
		Rewrite:        c.rewrite,
		Transport:      c.http.Transport,
		ModifyResponse: c.observe,
		ErrorHandler:   c.fail,
	}
	return c, nil
}

// Name identifies the upstream in logs and metrics.
func (c *Client) Name() string { return c.name }

// Forward proxies r to path on the upstream and relays the response,
// status included. Transport failures become 502.
func (c *Client) Forward(w http.ResponseWriter, r *http.Request, path string) {
	out := r.Clone(r.Context())
	out.URL.Path = path
	out.URL.RawPath = ""
	c.proxy.ServeHTTP(w, out)
}

func (c *Client) rewrite(pr *stdhttputil.ProxyRequest) {
	pr.SetURL(c.base)
	pr.SetXForwarded()
	// The services trust the gateway; bearer tokens stop here.
	pr.Out.Header.Del("Authorization")
	request.Propagate(pr.In.Context(), pr.Out)
}

func (c *Client) observe(resp *http.Response) error {
	c.count(strconv.Itoa(resp.StatusCode/100) + "xx")
	return nil
}

func (c *Client) fail(w http.ResponseWriter, r *http.Request, err error) {
	c.count("error")
	c.logger.WarnContext(r.Context(), "upstream request failed",
		"upstream", c.name,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", request.GetRequestID(r.Context()),
		"error", err,
	)
	httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadGateway, c.name+" is unavailable"))
}

func (c *Client) count(outcome string) {
	if c.metrics != nil {
		c.metrics.UpstreamRequests.WithLabelValues(c.name, outcome).Inc()
	}
}

// newRequest builds a request for a direct call made by the gateway itself.
func (c *Client) newRequest(ctx context.Context, method, path string) (*http.Request, error) {
	u := *c.base
	u.Path = c.base.Path + path
	out, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, err
	}
	request.Propagate(ctx, out)
	return out, nil
}
