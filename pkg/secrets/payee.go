package secrets

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// PayeeConfig is the payment-destination configuration for the protected
// routes. It can live in Secrets Manager so wallet rotation does not need a
// redeploy.
type PayeeConfig struct {
	PayTo    string `json:"pay_to"`
	Asset    string `json:"asset"`
	Network  string `json:"network"`
	Decimals int    `json:"decimals"`
}

// PayeeResolver resolves PayeeConfig from a secrets provider with an
// in-memory TTL cache in front.
type PayeeResolver struct {
	logger   *zap.Logger
	provider Provider
	cache    *Cache[PayeeConfig]
}

// NewPayeeResolver creates a resolver backed by the given provider.
func NewPayeeResolver(logger *zap.Logger, provider Provider, cache *Cache[PayeeConfig]) *PayeeResolver {
	return &PayeeResolver{
		logger:   logger,
		provider: provider,
		cache:    cache,
	}
}

// Resolve fetches the payee configuration stored under secretID.
// The secret is a JSON map with pay_to, asset, network and decimals keys;
// missing pay_to or asset is an error, the rest fall back to zero values the
// caller overlays with env defaults.
func (r *PayeeResolver) Resolve(ctx context.Context, secretID string) (PayeeConfig, error) {
	if cfg, ok := r.cache.Get(secretID); ok {
		return cfg, nil
	}

	raw, err := r.provider.GetSecret(ctx, secretID)
	if err != nil {
		return PayeeConfig{}, fmt.Errorf("resolve payee config: %w", err)
	}

	cfg := PayeeConfig{
		PayTo:   raw["pay_to"],
		Asset:   raw["asset"],
		Network: raw["network"],
	}
	if v, ok := raw["decimals"]; ok {
		if d, err := strconv.Atoi(v); err == nil {
			cfg.Decimals = d
		}
	}
	if cfg.PayTo == "" || cfg.Asset == "" {
		return PayeeConfig{}, fmt.Errorf("payee secret [%s] missing pay_to or asset", secretID)
	}

	r.cache.Put(secretID, cfg)
	r.logger.Info("secrets.payee_resolved",
		zap.String("secret_id", secretID),
		zap.String("network", cfg.Network),
	)
	return cfg, nil
}
