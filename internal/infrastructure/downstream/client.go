package downstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/botgateway/domain"
	appLogger "github.com/fastygo/botgateway/pkg/logger"
)

const maxErrorExcerpt = 256

// Observer receives one sample per downstream call.
type Observer interface {
	ObserveDownstream(endpoint, outcome string, took time.Duration)
}

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	MaxConns int
	Name     string
}

// Response is a successful downstream reply with a JSON body.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client is the only way the gateway talks to the bot service. Every call is
// bounded and every failure comes back as a *domain.Error.
type Client struct {
	baseURL  string
	timeout  time.Duration
	http     *fasthttp.Client
	observer Observer
	logger   *zap.Logger
}

func New(cfg Config, observer Observer, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("downstream: base url required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 64
	}
	if cfg.Name == "" {
		cfg.Name = "botgateway"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		http: &fasthttp.Client{
			Name:                cfg.Name,
			MaxConnsPerHost:     cfg.MaxConns,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: 30 * time.Second,
			// a poll is exactly one request; retries belong to the scheduler
			MaxIdemponentCallAttempts: 1,
		},
		observer: observer,
		logger:   logger,
	}, nil
}

// Timeout is the default bound applied by Call.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// BaseURL returns the downstream root the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Call issues ep with the client's default timeout.
func (c *Client) Call(ctx context.Context, ep domain.Endpoint) (Response, error) {
	return c.Do(ctx, ep, c.timeout)
}

// Do issues one request to the downstream service and waits at most timeout,
// or until ctx ends, whichever comes first. An abandoned call finishes in the
// background and its result is discarded.
func (c *Client) Do(ctx context.Context, ep domain.Endpoint, timeout time.Duration) (Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		timeout = c.timeout
	}

	started := time.Now()
	resp, err := c.do(ctx, ep, timeout)
	took := time.Since(started)

	outcome := "ok"
	if err != nil {
		outcome = string(domain.CodeOf(err))
	}
	if c.observer != nil {
		c.observer.ObserveDownstream(ep.Path, outcome, took)
	}

	log := appLogger.WithRequestID(ctx, c.logger).With(
		zap.String("method", ep.Method),
		zap.String("path", ep.Path),
		zap.Duration("took", took),
	)
	if err != nil {
		log.Warn("downstream call failed", zap.String("code", outcome), zap.Error(err))
	} else {
		log.Debug("downstream call", zap.Int("status", resp.StatusCode))
	}
	return resp, err
}

type callResult struct {
	status int
	body   []byte
	err    error
}

func (c *Client) do(ctx context.Context, ep domain.Endpoint, timeout time.Duration) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, classify(err)
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	reqID := appLogger.RequestIDFromContext(ctx)
	done := make(chan callResult, 1)

	go func() {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(c.baseURL + ep.Path)
		req.Header.SetMethod(ep.Method)
		req.Header.Set(fasthttp.HeaderAccept, "application/json")
		if reqID != "" {
			req.Header.Set("X-Request-ID", reqID)
		}

		if err := c.http.DoDeadline(req, resp, deadline); err != nil {
			done <- callResult{err: err}
			return
		}
		done <- callResult{
			status: resp.StatusCode(),
			body:   append([]byte(nil), resp.Body()...),
		}
	}()

	var res callResult
	select {
	case res = <-done:
	case <-ctx.Done():
		return Response{}, classify(ctx.Err())
	}

	if res.err != nil {
		return Response{}, classify(res.err)
	}
	if res.status < 200 || res.status > 299 {
		return Response{}, domain.NewError(domain.ErrCodeDownstreamNonSuccess,
			fmt.Sprintf("bot service responded with status %d%s", res.status, excerpt(res.body)))
	}
	if !json.Valid(res.body) {
		return Response{}, domain.NewError(domain.ErrCodeMalformedResponse,
			fmt.Sprintf("bot service returned a non-JSON body%s", excerpt(res.body)))
	}

	return Response{StatusCode: res.status, Body: res.body}, nil
}

func classify(err error) *domain.Error {
	var dErr *domain.Error
	if errors.As(err, &dErr) {
		return dErr
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return domain.WrapError(domain.ErrCodeTimeout, "request cancelled before bot service replied", err)
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, fasthttp.ErrTimeout),
		errors.Is(err, fasthttp.ErrDialTimeout),
		errors.As(err, &netErr) && netErr.Timeout():
		return domain.WrapError(domain.ErrCodeTimeout, "bot service did not reply in time", err)
	default:
		return domain.WrapError(domain.ErrCodeNetworkUnreachable, "could not connect to bot service", err)
	}
}

func excerpt(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}
	if len(text) > maxErrorExcerpt {
		text = text[:maxErrorExcerpt] + "..."
	}
	return ": " + text
}
