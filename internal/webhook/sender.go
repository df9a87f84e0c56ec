package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xkayo32/pytake-sub002/internal/constants"
	"github.com/xkayo32/pytake-sub002/pkg/circuitbreaker"
	"github.com/xkayo32/pytake-sub002/pkg/tracing"
)

// HTTPError is a completed exchange whose status was not 2xx.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

type SenderOption func(*Sender)

func WithHTTPClient(c *http.Client) SenderOption {
	return func(s *Sender) {
		if c != nil {
			s.client = c
		}
	}
}

// WithCircuitBreakers guards each tenant's endpoint with its own breaker.
func WithCircuitBreakers(g *circuitbreaker.Group) SenderOption {
	return func(s *Sender) {
		s.breakers = g
	}
}

func WithUserAgent(ua string) SenderOption {
	return func(s *Sender) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// Sender performs one outbound webhook POST.
type Sender struct {
	client    *http.Client
	breakers  *circuitbreaker.Group
	userAgent string
	tracer    trace.Tracer
}

func NewSender(timeout time.Duration, opts ...SenderOption) *Sender {
	if timeout <= 0 {
		timeout = constants.DefaultDeliveryTimeout
	}
	s := &Sender{
		client:    &http.Client{Timeout: timeout},
		userAgent: constants.DefaultUserAgent,
		tracer:    tracing.GetTracer(constants.TracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type request struct {
	TenantID  string
	EventType string
	URL       string
	Body      []byte
	Header    http.Header
	Attempt   int
}

// Send returns the response status code (0 when no response arrived) and a
// non-nil error for anything other than a 2xx.
func (s *Sender) Send(ctx context.Context, req request) (int, error) {
	ctx, span := tracing.StartDeliverySpan(ctx, s.tracer, req.TenantID, req.EventType, req.Attempt)

	var status int
	do := func() (interface{}, error) {
		var err error
		status, err = s.post(ctx, req)
		return nil, err
	}

	var err error
	if s.breakers != nil {
		_, err = s.breakers.Get(req.TenantID).ExecuteWithContext(ctx, do)
	} else {
		_, err = do()
	}

	tracing.EndDeliverySpan(span, status, err)
	return status, err
}

func (s *Sender) post(ctx context.Context, req request) (int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	for name, values := range req.Header {
		httpReq.Header[name] = values
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", s.userAgent)
	}
	tracing.InjectHTTPHeaders(ctx, httpReq.Header)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= constants.HTTPStatusOKMin && resp.StatusCode < constants.HTTPStatusOKMax {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, constants.MaxErrorBodyBytes))
		return resp.StatusCode, nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, constants.MaxErrorBodyBytes))
	return resp.StatusCode, &HTTPError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
}

// ResetCircuit drops the tenant's breaker state, e.g. after its endpoint changes.
func (s *Sender) ResetCircuit(tenantID string) {
	if s.breakers != nil {
		s.breakers.Forget(tenantID)
	}
}
