// Package oracle talks to the external scoring and prediction service.
// Every failure is reported as ORACLE_UNAVAILABLE; callers decide whether it
// is swallowed (proposals) or surfaced as a soft warning (predictions).
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/surplus-engine/pkg/config"
	pkgerrors "github.com/angelmondragon/surplus-engine/pkg/errors"
	"github.com/angelmondragon/surplus-engine/pkg/metrics"
)

const (
	matchPath   = "/api/match/food"
	predictPath = "/api/predict/surplus"
	healthPath  = "/api/health"

	responseBodyReadLimit int64 = 1024
)

// Observer receives one sample per oracle call.
type Observer interface {
	ObserveOracle(endpoint, outcome string, duration time.Duration)
}

type Client struct {
	httpClient     *http.Client
	baseURL        string
	matchTimeout   time.Duration
	predictTimeout time.Duration
	healthTimeout  time.Duration
	observer       Observer
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithObserver(observer Observer) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// NewClient builds an oracle client from config.
func NewClient(cfg config.OracleConfig, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("oracle base url is required")
	}
	client := &Client{
		httpClient:     &http.Client{},
		baseURL:        base,
		matchTimeout:   orDefault(cfg.MatchTimeout, 15*time.Second),
		predictTimeout: orDefault(cfg.PredictTimeout, 10*time.Second),
		healthTimeout:  orDefault(cfg.HealthTimeout, 5*time.Second),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

func orDefault(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}

// MatchFood asks the oracle to score the candidate recipients for a food item.
func (c *Client) MatchFood(ctx context.Context, req MatchRequest) ([]MatchResult, error) {
	if len(req.Recipients) == 0 {
		return nil, nil
	}
	var resp matchResponse
	if err := c.post(ctx, "match", matchPath, c.matchTimeout, req, &resp); err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

// PredictSurplus requests a surplus forecast for a business.
func (c *Client) PredictSurplus(ctx context.Context, req PredictRequest) (*Prediction, error) {
	var resp Prediction
	if err := c.post(ctx, "predict", predictPath, c.predictTimeout, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health probes the oracle; a nil error means it answered 200.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	started := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeOracleUnavailable, err, "build health request")
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe("health", err, started)
		return pkgerrors.Wrap(pkgerrors.CodeOracleUnavailable, err, "oracle health request failed")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("status %d", resp.StatusCode)
		c.observe("health", err, started)
		return pkgerrors.Wrap(pkgerrors.CodeOracleUnavailable, err, "oracle unhealthy")
	}
	c.observe("health", nil, started)
	return nil
}

func (c *Client) post(ctx context.Context, endpoint, path string, timeout time.Duration, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal oracle request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeOracleUnavailable, err, "build oracle request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observe(endpoint, err, started)
		return pkgerrors.Wrap(pkgerrors.CodeOracleUnavailable, err, "oracle request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		c.observe(endpoint, err, started)
		return pkgerrors.Wrap(pkgerrors.CodeOracleUnavailable, err, "oracle returned an error")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.observe(endpoint, err, started)
		return pkgerrors.Wrap(pkgerrors.CodeOracleUnavailable, err, "decode oracle response")
	}
	c.observe(endpoint, nil, started)
	return nil
}

func (c *Client) observe(endpoint string, err error, started time.Time) {
	if c.observer == nil {
		return
	}
	outcome := metrics.OutcomeSuccess
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		outcome = metrics.OutcomeTimeout
	default:
		outcome = metrics.OutcomeFailure
	}
	c.observer.ObserveOracle(endpoint, outcome, time.Since(started))
}
