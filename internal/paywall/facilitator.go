package paywall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/x402-adapter/internal/metrics"
	"github.com/Checker-Finance/x402-adapter/pkg/model"
)

// backoff returns the retry sleep duration for the given attempt number.
func backoff(attempt int) time.Duration {
	switch attempt {
	case 0:
		return 100 * time.Millisecond
	case 1:
		return 250 * time.Millisecond
	default:
		return 500 * time.Millisecond
	}
}

// FacilitatorClient talks to the external payment facilitator. The
// facilitator is opaque to this service: it takes a payment payload plus
// finalized requirements and answers valid/settled or not.
type FacilitatorClient struct {
	logger   *zap.Logger
	http     *http.Client
	baseURL  string
	retryMax int
}

// NewFacilitatorClient creates a client for the facilitator at baseURL.
func NewFacilitatorClient(logger *zap.Logger, baseURL string, timeout time.Duration) *FacilitatorClient {
	return &FacilitatorClient{
		logger:   logger,
		http:     &http.Client{Timeout: timeout},
		baseURL:  baseURL,
		retryMax: 2,
	}
}

// Verify asks the facilitator whether the payment payload satisfies the
// requirements. Off-chain; safe to retry.
func (f *FacilitatorClient) Verify(ctx context.Context, req *model.VerifyRequest) (*model.VerifyResponse, error) {
	var out model.VerifyResponse
	if err := f.doJSON(ctx, "/verify", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Settle submits the verified payment for on-chain settlement.
func (f *FacilitatorClient) Settle(ctx context.Context, req *model.VerifyRequest) (*model.SettleResponse, error) {
	var out model.SettleResponse
	if err := f.doJSON(ctx, "/settle", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// doJSON POSTs in to endpoint with bounded retries on transport failures
// and 5xx, then decodes the response into out.
func (f *FacilitatorClient) doJSON(ctx context.Context, endpoint string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("facilitator request marshal: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= f.retryMax; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("facilitator request build: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		start := time.Now()
		resp, err := f.http.Do(req)
		if err != nil {
			lastErr = err
			f.logger.Warn("facilitator.http_failed",
				zap.String("endpoint", endpoint),
				zap.Error(err),
				zap.Int("attempt", attempt),
			)
			metrics.IncFacilitatorRequest(endpoint, "transport_error")
			select {
			case <-time.After(backoff(attempt)):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		raw, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		metrics.ObserveDuration(metrics.FacilitatorRequestDuration, start, endpoint)

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("facilitator %s returned %d", endpoint, resp.StatusCode)
			f.logger.Warn("facilitator.server_error",
				zap.String("endpoint", endpoint),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt),
			)
			metrics.IncFacilitatorRequest(endpoint, "server_error")
			select {
			case <-time.After(backoff(attempt)):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if resp.StatusCode >= 400 {
			metrics.IncFacilitatorRequest(endpoint, "client_error")
			return fmt.Errorf("facilitator %s returned %d: %s", endpoint, resp.StatusCode, string(raw))
		}

		if err := json.Unmarshal(raw, out); err != nil {
			metrics.IncFacilitatorRequest(endpoint, "decode_error")
			return fmt.Errorf("facilitator %s response decode: %w", endpoint, err)
		}
		metrics.IncFacilitatorRequest(endpoint, "ok")
		return nil
	}

	return fmt.Errorf("facilitator %s unavailable: %w", endpoint, lastErr)
}
