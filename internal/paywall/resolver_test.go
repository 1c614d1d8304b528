package paywall

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/x402-adapter/internal/store"
	"github.com/Checker-Finance/x402-adapter/pkg/model"
)

const (
	testPayTo = "0xBAc675C310721717Cd4A37F6cbeA1F081b1C2a07"
	testAsset = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
)

func testTemplates() []model.RequirementsTemplate {
	return []model.RequirementsTemplate{
		{
			Scheme:            model.SchemeExact,
			Network:           "base-sepolia",
			NominalAmount:     "10000",
			Description:       "Protected resource",
			MimeType:          "application/json",
			PayTo:             testPayTo,
			MaxTimeoutSeconds: 300,
			Asset:             testAsset,
			Extra:             map[string]any{"name": "USDC", "version": "2"},
		},
	}
}

func newTestResolver(t *testing.T, st store.Store) *Resolver {
	t.Helper()
	r, err := NewResolver(st, zap.NewNop(), nil, "https://localhost:3001/", 6)
	require.NoError(t, err)
	return r
}

func requestFor(quoteID, clientID string) RequestInfo {
	h := http.Header{}
	if quoteID != "" {
		h.Set(HeaderQuoteID, quoteID)
	}
	if clientID != "" {
		h.Set(HeaderClientID, clientID)
	}
	return RequestInfo{Headers: h, Path: "/api/v1/resource"}
}

func putQuote(t *testing.T, st store.Store, id, owner, amount string, expiresAt time.Time) {
	t.Helper()
	err := st.Put(context.Background(), model.QuoteRecord{
		QuoteID:   id,
		Amount:    amount,
		OwnerID:   owner,
		ExpiresAt: expiresAt,
	})
	require.NoError(t, err)
}

func TestResolveFinalizesQuotedAmount(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	r := newTestResolver(t, st)
	now := time.Unix(1_700_000_000, 0)

	putQuote(t, st, "q1", "c1", "0.05", now.Add(5*time.Minute))

	res, err := r.Resolve(ctx, requestFor("q1", "c1"), testTemplates(), now)
	require.NoError(t, err)
	assert.Equal(t, StateFinalized, res.State)
	require.Len(t, res.Accepts, 1)

	pr := res.Accepts[0]
	assert.Equal(t, "50000", pr.MaxAmountRequired, "0.05 USDC at 6 decimals")
	assert.Equal(t, model.SchemeExact, pr.Scheme)
	assert.Equal(t, "base-sepolia", pr.Network)
	assert.Equal(t, "https://localhost:3001/api/v1/resource", pr.Resource)
	assert.Equal(t, testPayTo, pr.PayTo)
}

func TestResolveForcesExactScheme(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	r := newTestResolver(t, st)
	now := time.Now()

	putQuote(t, st, "q1", "c1", "0.01", now.Add(time.Minute))

	templates := testTemplates()
	templates[0].Scheme = "upto"

	res, err := r.Resolve(ctx, requestFor("q1", "c1"), templates, now)
	require.NoError(t, err)
	assert.Equal(t, model.SchemeExact, res.Accepts[0].Scheme)
}

func TestResolveAnonymousClientBinding(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	r := newTestResolver(t, st)
	now := time.Now()

	// Issued without a client id, redeemed without a client id: both sides
	// fall back to the same anonymous owner.
	putQuote(t, st, "q1", AnonymousClient, "0.01", now.Add(time.Minute))

	res, err := r.Resolve(ctx, requestFor("q1", ""), testTemplates(), now)
	require.NoError(t, err)
	assert.Equal(t, StateFinalized, res.State)
}

// All rejection causes must yield resolutions that are structurally
// identical to one another, so a caller probing with forged or stale quote
// ids learns nothing about which quotes exist.
func TestResolveRejectionsIndistinguishable(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	scenarios := []struct {
		name string
		seed func(t *testing.T, st store.Store)
		info RequestInfo
		at   time.Time
	}{
		{
			name: "missing quote header",
			seed: func(*testing.T, store.Store) {},
			info: requestFor("", "c1"),
			at:   now,
		},
		{
			name: "unknown quote id",
			seed: func(*testing.T, store.Store) {},
			info: requestFor("no-such-quote", "c1"),
			at:   now,
		},
		{
			name: "expired quote",
			seed: func(t *testing.T, st store.Store) {
				putQuote(t, st, "q1", "c1", "0.05", now.Add(-time.Second))
			},
			info: requestFor("q1", "c1"),
			at:   now,
		},
		{
			name: "owner mismatch",
			seed: func(t *testing.T, st store.Store) {
				putQuote(t, st, "q1", "someone-else", "0.05", now.Add(time.Minute))
			},
			info: requestFor("q1", "c1"),
			at:   now,
		},
		{
			name: "already consumed",
			seed: func(t *testing.T, st store.Store) {
				putQuote(t, st, "q1", "c1", "0.05", now.Add(time.Minute))
				_, err := st.TryConsume(ctx, "q1", "c1", now)
				require.NoError(t, err)
			},
			info: requestFor("q1", "c1"),
			at:   now,
		},
	}

	var resolutions []*Resolution
	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			st := store.NewMemory()
			sc.seed(t, st)
			r := newTestResolver(t, st)

			res, err := r.Resolve(ctx, sc.info, testTemplates(), sc.at)
			require.NoError(t, err)
			assert.Equal(t, StatePaymentRequired, res.State)
			require.Len(t, res.Accepts, 1)
			assert.Equal(t, "10000", res.Accepts[0].MaxAmountRequired, "nominal amount, never the quoted one")
			resolutions = append(resolutions, res)
		})
	}

	require.Len(t, resolutions, len(scenarios))
	for i := 1; i < len(resolutions); i++ {
		assert.Equal(t, resolutions[0], resolutions[i],
			"%s and %s must be indistinguishable", scenarios[0].name, scenarios[i].name)
	}
}

func TestResolveInvalidAmountIsServerError(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	r := newTestResolver(t, st)
	now := time.Now()

	putQuote(t, st, "q1", "c1", "not-a-number", now.Add(time.Minute))

	res, err := r.Resolve(ctx, requestFor("q1", "c1"), testTemplates(), now)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidAmount)
	assert.Nil(t, res)
}

func TestResolveSubunitAmountIsServerError(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	r := newTestResolver(t, st)
	now := time.Now()

	// 0.0000001 cannot be represented in 6-decimal base units.
	putQuote(t, st, "q1", "c1", "0.0000001", now.Add(time.Minute))

	_, err := r.Resolve(ctx, requestFor("q1", "c1"), testTemplates(), now)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidAmount)
}

func TestResolveQuoteLifecycle(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	r := newTestResolver(t, st)
	t0 := time.Unix(1_700_000_000, 0)

	putQuote(t, st, "q1", "c1", "0.01", t0.Add(5*time.Minute))

	// t0+1s: quote finalizes at its quoted amount.
	res, err := r.Resolve(ctx, requestFor("q1", "c1"), testTemplates(), t0.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, StateFinalized, res.State)
	assert.Equal(t, "10000", res.Accepts[0].MaxAmountRequired)

	// t0+2s: same quote is spent; back to payment required.
	res, err = r.Resolve(ctx, requestFor("q1", "c1"), testTemplates(), t0.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, StatePaymentRequired, res.State)

	// A fresh quote presented after its expiry is equally useless.
	putQuote(t, st, "q2", "c1", "0.01", t0.Add(5*time.Minute))
	res, err = r.Resolve(ctx, requestFor("q2", "c1"), testTemplates(), t0.Add(400*time.Second))
	require.NoError(t, err)
	assert.Equal(t, StatePaymentRequired, res.State)
}
