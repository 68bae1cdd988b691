package crm

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
	"go.opentelemetry.io/otel/trace"

	"github.com/edunext/lead-relay/internal/lead"
	"github.com/edunext/lead-relay/internal/zone"
	"github.com/edunext/lead-relay/pkg/logging"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultUserAgent = "lead-relay/0.1"
	maxResponseBytes = 64 << 10
)

// Sink is the boundary to the downstream CRM: one delivery attempt per call,
// classified into an Outcome. Implementations perform no retries.
type Sink interface {
	Forward(ctx context.Context, rec lead.Record, dest zone.Destination) Outcome
}

// Config controls how the HTTP sink behaves.
type Config struct {
	Timeout    time.Duration
	FieldMap   FieldMap
	SourceTag  string
	HTTPClient *http.Client
	Logger     *logging.Logger
	UserAgent  string
}

// Client forwards canonical records to destination endpoints over HTTP.
type Client struct {
	httpClient *http.Client
	fieldMap   FieldMap
	sourceTag  string
	logger     *logging.Logger
	tracer     trace.Tracer
	userAgent  string
}

// NewClient creates a configured Client with sane defaults.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	fieldMap := cfg.FieldMap
	if fieldMap == nil {
		fieldMap = DefaultFieldMap()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		httpClient: httpClient,
		fieldMap:   fieldMap,
		sourceTag:  cfg.SourceTag,
		logger:     logger,
		tracer:     otel.Tracer("leadrelay.internal.crm"),
		userAgent:  userAgent,
	}
}

var _ Sink = (*Client)(nil)

// Forward posts one record to the destination and classifies the response.
func (c *Client) Forward(ctx context.Context, rec lead.Record, dest zone.Destination) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := c.tracer.Start(ctx, "crm.forward")
	defer span.End()

	body, err := json.Marshal(c.fieldMap.Payload(rec, c.sourceTag))
	if err != nil {
		return Outcome{Status: StatusTransportFailure, Detail: fmt.Sprintf("encode payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dest.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Outcome{Status: StatusTransportFailure, Detail: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		c.logger.Warn("forward failed", "zone", dest.Key, "error", err)
		return Outcome{Status: StatusTransportFailure, Detail: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		span.RecordError(err)
		return Outcome{Status: StatusTransportFailure, Detail: fmt.Sprintf("read response: %v", err)}
	}

	return classify(resp.StatusCode, respBody)
}

// classify applies the duplicate/failure taxonomy to a CRM response. A 409 or
// any body mentioning "duplicate" counts as a remote duplicate regardless of
// status code.
func classify(status int, body []byte) Outcome {
	if status == http.StatusConflict || strings.Contains(strings.ToLower(string(body)), "duplicate") {
		return Outcome{Status: StatusRemoteDuplicate}
	}
	if status >= 200 && status < 300 {
		return Outcome{Status: StatusDelivered}
	}
	detail := strings.TrimSpace(string(body))
	if detail == "" {
		detail = http.StatusText(status)
	}
	return Outcome{
		Status: StatusTransportFailure,
		Detail: fmt.Sprintf("status %d: %s", status, detail),
	}
}
