package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/x402-adapter/internal/paywall"
	"github.com/Checker-Finance/x402-adapter/internal/quote"
	"github.com/Checker-Finance/x402-adapter/internal/rate"
	"github.com/Checker-Finance/x402-adapter/internal/store"
	"github.com/Checker-Finance/x402-adapter/pkg/model"
)

type failingIssuer struct{}

func (failingIssuer) Issue(context.Context, model.MoneyAmount, string) (model.QuoteRecord, error) {
	return model.QuoteRecord{}, errors.New("store unavailable")
}

func newQuoteApp(t *testing.T, st store.Store) *fiber.App {
	t.Helper()
	pricer, err := quote.NewUnitPricer("0.01")
	require.NoError(t, err)
	issuer := quote.NewIssuer(st, zap.NewNop(), nil, 5*time.Minute)

	app := fiber.New()
	h := NewQuoteHandler(zap.NewNop(), issuer, pricer, nil)
	app.Post("/api/v1/quotes", h.CreateQuoteHandler)
	return app
}

func postQuote(t *testing.T, app *fiber.App, body string, header map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestCreateQuote(t *testing.T) {
	st := store.NewMemory()
	app := newQuoteApp(t, st)

	resp := postQuote(t, app, `{"clientId":"client-demo-01","numberOfFiles":5}`, nil)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var out QuoteResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotEmpty(t, out.QuoteID)
	assert.Equal(t, "0.05", out.Amount)
	assert.Greater(t, out.ExpiresAt, time.Now().Unix())

	rec, ok, err := st.Get(context.Background(), out.QuoteID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "client-demo-01", rec.OwnerID)
}

func TestCreateQuoteClientIDFallback(t *testing.T) {
	st := store.NewMemory()
	app := newQuoteApp(t, st)

	t.Run("header when body omits it", func(t *testing.T) {
		resp := postQuote(t, app, `{"numberOfFiles":1}`, map[string]string{
			paywall.HeaderClientID: "header-client",
		})
		defer resp.Body.Close()
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)

		var out QuoteResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		rec, _, err := st.Get(context.Background(), out.QuoteID)
		require.NoError(t, err)
		assert.Equal(t, "header-client", rec.OwnerID)
	})

	t.Run("anonymous when nothing is supplied", func(t *testing.T) {
		resp := postQuote(t, app, `{"numberOfFiles":1}`, nil)
		defer resp.Body.Close()
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)

		var out QuoteResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		rec, _, err := st.Get(context.Background(), out.QuoteID)
		require.NoError(t, err)
		assert.Equal(t, paywall.AnonymousClient, rec.OwnerID)
	})
}

func TestCreateQuoteValidation(t *testing.T) {
	app := newQuoteApp(t, store.NewMemory())

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"numberOfFiles":`},
		{"zero files", `{"numberOfFiles":0}`},
		{"negative files", `{"numberOfFiles":-3}`},
		{"whitespace client id", `{"clientId":"a b","numberOfFiles":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := postQuote(t, app, tc.body, nil)
			defer resp.Body.Close()
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestCreateQuoteStoreFailure(t *testing.T) {
	pricer, err := quote.NewUnitPricer("0.01")
	require.NoError(t, err)

	app := fiber.New()
	h := NewQuoteHandler(zap.NewNop(), failingIssuer{}, pricer, nil)
	app.Post("/api/v1/quotes", h.CreateQuoteHandler)

	resp := postQuote(t, app, `{"numberOfFiles":1}`, nil)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestCreateQuoteRateLimited(t *testing.T) {
	st := store.NewMemory()
	pricer, err := quote.NewUnitPricer("0.01")
	require.NoError(t, err)
	issuer := quote.NewIssuer(st, zap.NewNop(), nil, time.Minute)
	limiter := rate.NewManager(rate.Config{RequestsPerSecond: 1, Burst: 2})

	app := fiber.New()
	h := NewQuoteHandler(zap.NewNop(), issuer, pricer, limiter)
	app.Post("/api/v1/quotes", h.CreateQuoteHandler)

	for i := 0; i < 2; i++ {
		resp := postQuote(t, app, `{"clientId":"greedy","numberOfFiles":1}`, nil)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp := postQuote(t, app, `{"clientId":"greedy","numberOfFiles":1}`, nil)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	// Other clients keep their own budget.
	resp2 := postQuote(t, app, `{"clientId":"patient","numberOfFiles":1}`, nil)
	defer resp2.Body.Close()
	assert.Equal(t, fiber.StatusCreated, resp2.StatusCode)
}
