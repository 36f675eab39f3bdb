// Package analyzer talks to the remote age-estimation service.
//
// The call is bounded by one hard timeout. A timeout, a non-2xx status and a
// 2xx body without the expected shape are distinct errors, and none of them is
// ever replaced by made-up data.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"

	"github.com/okian/facepace/internal/domain/model"
	"github.com/okian/facepace/pkg/logger"
	"github.com/okian/facepace/pkg/metrics"
)

const (
	tracerName = "github.com/okian/facepace/internal/adapters/analyzer"

	// DefaultTimeout is the analysis ceiling (4m50s).
	DefaultTimeout = 290 * time.Second

	maxResponseBytes = 8 << 20
	maxErrorBody     = 4 << 10
)

// Client calls the analysis endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	validator  *Validator
	logger     logger.Logger
}

// NewClient creates a client for endpoint.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, ErrNoEndpoint
	}
	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		validator:  validator,
		logger:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("analyzer")
	return c, nil
}

// Timeout returns the configured ceiling.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Analyze sends req and returns the parsed report. Raw holds the body as
// received.
func (c *Client) Analyze(ctx context.Context, req model.AnalysisRequest) (*model.AnalysisReport, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "analyzer.analyze")
	defer span.End()
	span.SetAttributes(attribute.String("analysis.endpoint", c.endpoint))

	start := time.Now()
	report, err := c.analyze(ctx, req)
	latency := float64(time.Since(start).Milliseconds())
	metrics.RecordAnalysis(outcome(err), latency)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error(ctx, "analysis request failed",
			logger.String("outcome", outcome(err)),
			logger.Float64("latency_ms", latency),
			logger.Error(err),
		)
		return nil, err
	}
	c.logger.Info(ctx, "analysis request succeeded", logger.Float64("latency_ms", latency))
	return report, nil
}

func (c *Client) analyze(ctx context.Context, req model.AnalysisRequest) (*model.AnalysisReport, error) {
	if req.VideoRef == "" || req.ImageRef == "" {
		return nil, fmt.Errorf("%w: request without media references", model.ErrMissingAsset)
	}
	if err := model.ValidateAge(req.DeclaredAge); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, fmt.Errorf("%w after %s", model.ErrAnalysisTimeout, c.timeout)
		case errors.Is(ctx.Err(), context.Canceled):
			return nil, fmt.Errorf("analysis request: %w", ctx.Err())
		}
		return nil, &model.ServiceError{Status: 0, Body: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", model.ErrAnalysisTimeout, c.timeout)
		}
		return nil, &model.ServiceError{Status: resp.StatusCode, Body: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return nil, &model.ServiceError{Status: resp.StatusCode, Body: string(raw)}
	}
	return c.validator.Parse(raw)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrAnalysisTimeout):
		return "timeout"
	case errors.Is(err, model.ErrAnalysisService):
		return "service_error"
	case errors.Is(err, model.ErrAnalysisMalformed):
		return "malformed"
	default:
		return "rejected"
	}
}
