// Package backend holds the REST clients for the back office collaborators:
// product catalog, mobile money gateway, sales ledger and receipt printer.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxResponseBody = 1 << 20 // 1MB

// RemoteError is a non-2xx answer from a collaborator.
type RemoteError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Service, e.StatusCode, e.Message)
}

// RejectionMessage is the collaborator's own explanation, shown to the
// operator as is.
func (e *RemoteError) RejectionMessage() string {
	return e.Message
}

// IsTransient reports whether retrying the call later may succeed.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.StatusCode >= 500 || remote.StatusCode == http.StatusTooManyRequests ||
			remote.StatusCode == http.StatusRequestTimeout
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

type Options struct {
	Timeout time.Duration
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	Burst     int
	// Transport defaults to an otel instrumented http.DefaultTransport.
	Transport http.RoundTripper
	Logger    *zap.Logger
}

type response struct {
	status int
	body   []byte
}

type restClient struct {
	name    string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[response]
	logger  *zap.Logger
}

func newRESTClient(name, baseURL string, opts Options) *restClient {
	transport := opts.Transport
	if transport == nil {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}

	c := &restClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: transport, Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// a rejected request says nothing about the collaborator's health
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("service", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

// do sends in as JSON and decodes the answer into out. Either may be nil.
func (c *restClient) do(ctx context.Context, method, path string, header http.Header, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit: %w", c.name, err)
	}

	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", c.name, err)
		}
	}

	res, err := c.breaker.Execute(func() (response, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return response{}, fmt.Errorf("failed to build %s request: %w", c.name, err)
		}
		req.Header.Set("Accept", "application/json")
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		httpRes, err := c.http.Do(req)
		if err != nil {
			return response{}, fmt.Errorf("%s request failed: %w", c.name, err)
		}
		defer httpRes.Body.Close()

		body, err := io.ReadAll(io.LimitReader(httpRes.Body, maxResponseBody))
		if err != nil {
			return response{}, fmt.Errorf("failed to read %s response: %w", c.name, err)
		}
		if httpRes.StatusCode < 200 || httpRes.StatusCode > 299 {
			return response{}, c.remoteError(httpRes.StatusCode, body)
		}
		return response{status: httpRes.StatusCode, body: body}, nil
	})
	if err != nil {
		c.logger.Debug("backend call failed",
			zap.String("service", c.name),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return err
	}

	if out == nil || len(res.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", c.name, err)
	}
	return nil
}

func (c *restClient) remoteError(status int, body []byte) *RemoteError {
	var payload struct {
		Error string `json:"error"`
	}
	msg := ""
	if json.Unmarshal(body, &payload) == nil {
		msg = payload.Error
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &RemoteError{Service: c.name, StatusCode: status, Message: msg}
}
