package taxservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	pkgerrors "github.com/angelmondragon/taxsync/pkg/errors"
)

const tracerName = "github.com/angelmondragon/taxsync/internal/taxservice"

const (
	defaultTimeout        = 10 * time.Second
	errorBodyLimit  int64 = 4096
	companyHeader         = "X-Company-Code"
)

// HTTPClient talks to the tax service over JSON/HTTP.
type HTTPClient struct {
	httpClient *http.Client
	creds      Credentials
}

// Option configures optional client behavior.
type Option func(*HTTPClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewHTTPClient builds a client for the given credentials.
func NewHTTPClient(creds Credentials, timeout time.Duration, opts ...Option) (*HTTPClient, error) {
	if strings.TrimSpace(creds.URL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tax service url is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	creds.URL = strings.TrimRight(strings.TrimSpace(creds.URL), "/")
	c := &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		creds:      creds,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *HTTPClient) Estimate(ctx context.Context, req EstimateRequest) (*EstimateResult, error) {
	var out EstimateResult
	if err := c.do(ctx, c.creds, http.MethodPost, "/v1/tax/estimate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ValidateAddress(ctx context.Context, req AddressRequest) (*AddressResult, error) {
	var out AddressResult
	if err := c.do(ctx, c.creds, http.MethodPost, "/v1/addresses/validate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Commit(ctx context.Context, req CommitRequest) error {
	return c.do(ctx, c.creds, http.MethodPost, "/v1/documents/commit", req, nil)
}

func (c *HTTPClient) Cancel(ctx context.Context, req CancelRequest) error {
	return c.do(ctx, c.creds, http.MethodPost, "/v1/documents/cancel", req, nil)
}

// Ping checks creds against the service. Rejected credentials or an
// unreachable service come back as a diagnostic message, not an error.
func (c *HTTPClient) Ping(ctx context.Context, creds Credentials) (string, error) {
	if creds.URL == "" {
		creds.URL = c.creds.URL
	}
	creds.URL = strings.TrimRight(creds.URL, "/")
	var out struct {
		Authenticated bool   `json:"authenticated"`
		Message       string `json:"message"`
	}
	if err := c.do(ctx, creds, http.MethodGet, "/v1/ping", nil, &out); err != nil {
		return err.Error(), nil
	}
	if !out.Authenticated {
		if out.Message == "" {
			out.Message = "tax service rejected the configured credentials"
		}
		return out.Message, nil
	}
	return "", nil
}

type errorBody struct {
	Message  string   `json:"message"`
	Messages []string `json:"messages"`
}

// do runs one request inside a client span. The span stays a no-op unless
// the binary installs a tracer provider.
func (c *HTTPClient) do(ctx context.Context, creds Credentials, method, path string, in, out any) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "taxservice "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
			attribute.String("taxservice.company_code", creds.CompanyCode),
		),
	)
	defer span.End()

	err := c.send(ctx, creds, method, path, in, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(pkgerrors.As(err).Code()))
	}
	return err
}

func (c *HTTPClient) send(ctx context.Context, creds Credentials, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal tax service request")
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, creds.URL+path, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build tax service request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(companyHeader, creds.CompanyCode)
	httpReq.SetBasicAuth(creds.Account, creds.License)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeServiceUnavailable, err, "tax service request failed")
	}
	defer func() { _ = resp.Body.Close() }()
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		msg := eb.Message
		if msg == "" && len(eb.Messages) > 0 {
			msg = strings.Join(eb.Messages, "; ")
		}
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return pkgerrors.New(statusCode(resp.StatusCode), fmt.Sprintf("tax service returned %d: %s", resp.StatusCode, msg)).
			WithDetails(map[string]any{"status": resp.StatusCode, "messages": eb.Messages})
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeServiceUnavailable, err, "decode tax service response")
	}
	return nil
}

// statusCode classifies a failed response. Only a rejected request body is a
// validation error; anything else, including 401/403, 408 and
// 429, means the service cannot be used right now.
func statusCode(status int) pkgerrors.Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return pkgerrors.CodeValidation
	default:
		return pkgerrors.CodeServiceUnavailable
	}
}
