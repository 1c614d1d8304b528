package paywall

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/Checker-Finance/x402-adapter/pkg/model"
)

// Payment exchange headers, per the x402 convention: base64-encoded JSON in
// both directions.
const (
	HeaderPayment         = "X-Payment"
	HeaderPaymentResponse = "X-Payment-Response"
)

// DecodePayment decodes the X-Payment header value into a PaymentPayload.
func DecodePayment(raw string) (*model.PaymentPayload, error) {
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("payment header base64 decode: %w", err)
	}
	var p model.PaymentPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("payment header decode: %w", err)
	}
	if p.X402Version != model.X402Version {
		return nil, fmt.Errorf("unsupported x402 version %d", p.X402Version)
	}
	return &p, nil
}

// EncodeSettleResponse encodes a settlement receipt for the
// X-Payment-Response header.
func EncodeSettleResponse(sr *model.SettleResponse) (string, error) {
	data, err := json.Marshal(sr)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
