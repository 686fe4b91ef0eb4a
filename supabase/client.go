package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single upstream call.
	DefaultTimeout = 10 * time.Second

	authPathPrefix = "/auth/v1"
	tracerName     = "github.com/teftar/api/supabase"
)

// Config holds the identity provider connection settings
type Config struct {
	URL         string
	AnonKey     string
	RedirectURL string
	Timeout     time.Duration
}

// CallObserver receives the outcome of every upstream call.
type CallObserver interface {
	ObserveUpstreamCall(operation, outcome string, duration time.Duration)
}

// Client talks to the GoTrue auth API. Upstream calls are never retried.
type Client struct {
	http        *resty.Client
	redirectURL string
	tracer      trace.Tracer
	observer    CallObserver
	logger      *zap.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithObserver attaches a call observer, typically the metrics collector.
func WithObserver(o CallObserver) ClientOption {
	return func(c *Client) {
		c.observer = o
	}
}

// WithTracer overrides the tracer used for upstream spans.
func WithTracer(t trace.Tracer) ClientOption {
	return func(c *Client) {
		c.tracer = t
	}
}

// NewClient creates a new identity provider client
func NewClient(cfg Config, logger *zap.Logger, opts ...ClientOption) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.AnonKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")+authPathPrefix).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("apikey", cfg.AnonKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	c := &Client{
		http:        httpClient,
		redirectURL: cfg.RedirectURL,
		tracer:      otel.Tracer(tracerName),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RedirectURL returns the confirmation link target sent on signup
func (c *Client) RedirectURL() string {
	return c.redirectURL
}

// post sends a JSON POST to the auth API. A non-nil error means the call
// never produced an HTTP response.
func (c *Client) post(ctx context.Context, operation, path string, body any, query map[string]string) (*resty.Response, error) {
	ctx, span := c.tracer.Start(ctx, "supabase."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", http.MethodPost),
			attribute.String("http.route", authPathPrefix+path),
		))
	defer span.End()

	req := c.http.R().SetContext(ctx).SetBody(body)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	injectTracingHeaders(ctx, req)

	start := time.Now()
	resp, err := req.Post(path)
	elapsed := time.Since(start)

	recordSpan(span, resp, err)

	if err != nil {
		c.observe(operation, outcomeTransportError, elapsed)
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("identity provider call timed out",
				zap.String("operation", operation),
				zap.Duration("elapsed", elapsed))
		}
		return nil, err
	}

	c.observe(operation, outcomeForStatus(resp.StatusCode()), elapsed)
	c.logger.Debug("identity provider call completed",
		zap.String("operation", operation),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("elapsed", elapsed))

	return resp, nil
}

func (c *Client) observe(operation, outcome string, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveUpstreamCall(operation, outcome, d)
	}
}

const (
	outcomeSuccess        = "success"
	outcomeClientError    = "client_error"
	outcomeServerError    = "server_error"
	outcomeTransportError = "transport_error"
)

func outcomeForStatus(status int) string {
	switch {
	case status >= 200 && status < 300:
		return outcomeSuccess
	case status >= 400 && status < 500:
		return outcomeClientError
	default:
		return outcomeServerError
	}
}

func recordSpan(span trace.Span, resp *resty.Response, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	if resp == nil {
		return
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	if resp.IsError() {
		span.SetStatus(codes.Error, resp.Status())
		return
	}
	span.SetStatus(codes.Ok, "")
}
