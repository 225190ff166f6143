// Pinboard - IoT Device Dashboard and Pin History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pinboard

/*
Package bridge talks to the cloud pin API that fronts each physical device
and keeps local pin state in step with it.

The remote API is Blynk's external HTTP API:

	GET {base}/get?token=<token>&<pin>            -> plain-text value
	GET {base}/update?token=<token>&<pin>=<value> -> 200 on success

Failed calls answer with {"error":{"message":"..."}}.

Every call passes an outbound rate limiter and a circuit breaker. Service
pairs a remote read or write with the local pin update; Poller drives the
periodic reads for gauge widgets.
*/
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/pinboard/internal/config"
	"github.com/tomtom215/pinboard/internal/logging"
	"github.com/tomtom215/pinboard/internal/metrics"
)

const maxBodyBytes = 64 << 10

// ErrBadValue is returned when a read answers with something that is not a
// number.
var ErrBadValue = errors.New("bridge: remote value is not numeric")

// RemoteError is a non-2xx answer from the remote API.
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote pin api: HTTP %d", e.Status)
	}
	return fmt.Sprintf("remote pin api: HTTP %d: %s", e.Status, e.Message)
}

// Remote reads and writes pin values on the cloud API.
type Remote interface {
	Get(ctx context.Context, token, pin string) (float64, error)
	Update(ctx context.Context, token, pin string, value float64) error
}

// Client is the HTTP implementation of Remote.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker[[]byte]
}

// NewClient builds a client from the bridge configuration.
func NewClient(cfg *config.BridgeConfig) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, burst),
		cb:         newBreaker("bridge-api", cfg.Breaker),
	}
}

// Get reads the current value of pin.
func (c *Client) Get(ctx context.Context, token, pin string) (float64, error) {
	q := "token=" + url.QueryEscape(token) + "&" + url.QueryEscape(pin)
	body, err := c.execute(ctx, "get", q)
	if err != nil {
		return 0, err
	}
	return parseValue(body)
}

// Update writes value to pin.
func (c *Client) Update(ctx context.Context, token, pin string, value float64) error {
	q := "token=" + url.QueryEscape(token) + "&" + url.QueryEscape(pin) + "=" + strconv.FormatFloat(value, 'f', -1, 64)
	_, err := c.execute(ctx, "update", q)
	return err
}

func (c *Client) execute(ctx context.Context, op, rawQuery string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	start := time.Now()
	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, op, rawQuery)
	})
	metrics.RecordBridgeRequest(op, resultOf(err), time.Since(start))

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logging.Ctx(ctx).Warn().Err(err).Str("operation", op).Msg("[CIRCUIT BREAKER] Request rejected")
		}
		return nil, err
	}
	return body, nil
}

func (c *Client) roundTrip(ctx context.Context, op, rawQuery string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+op, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.URL.RawQuery = rawQuery

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{Status: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

// errorMessage extracts error.message from a failure body, falling back to
// the raw text.
func errorMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return strings.TrimSpace(string(body))
}

// parseValue accepts a bare number or a one-element JSON array such as
// ["42"], which the API returns for some pin types.
func parseValue(body []byte) (float64, error) {
	text := strings.TrimSpace(string(body))
	if strings.HasPrefix(text, "[") {
		var vals []json.RawMessage
		if err := json.Unmarshal([]byte(text), &vals); err != nil || len(vals) == 0 {
			return 0, fmt.Errorf("%w: %q", ErrBadValue, text)
		}
		text = strings.Trim(strings.TrimSpace(string(vals[0])), `"`)
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrBadValue, text)
	}
	return v, nil
}

func resultOf(err error) string {
	var re *RemoteError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "open"
	case errors.As(err, &re):
		return "rejected"
	default:
		return "error"
	}
}
