// Package paywall decides, per request, what payment a caller must present
// before a protected resource is served, and enforces it as HTTP
// middleware. The required amount is not static: it comes from a
// previously issued, time-bounded, single-use quote.
package paywall

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/x402-adapter/internal/events"
	"github.com/Checker-Finance/x402-adapter/internal/metrics"
	"github.com/Checker-Finance/x402-adapter/internal/store"
	"github.com/Checker-Finance/x402-adapter/pkg/model"
)

// Recognized request headers. Values are untrusted; the client identifier
// in particular is a bare header, not an authenticated identity.
const (
	HeaderQuoteID  = "X-Quote-Id"
	HeaderClientID = "X-Client-Id"
)

// AnonymousClient stands in when no client identifier is supplied, so that
// header-less issuance and header-less redemption still bind to each other.
const AnonymousClient = "unknown"

// State is the outward-visible outcome of a resolution.
type State int

const (
	// StatePaymentRequired: the caller must obtain (or re-obtain) a quote;
	// Accepts carries the nominal requirements.
	StatePaymentRequired State = iota
	// StateFinalized: Accepts carries requirements priced from the
	// caller's quote, ready for payment verification.
	StateFinalized
)

// Resolution is what the resolver hands the middleware: exactly one of the
// two states, with the matching requirements set. Internal rejection detail
// never appears here.
type Resolution struct {
	State   State
	Accepts []model.PaymentRequirements
}

// RequestInfo is the slice of an HTTP request the resolver needs.
type RequestInfo struct {
	Headers  http.Header
	Path     string
	RawQuery string
}

// Resolver consumes quotes against the store and finalizes payment
// requirements.
type Resolver struct {
	store    store.Store
	logger   *zap.Logger
	events   *events.Publisher
	baseURL  *url.URL
	decimals int
}

// NewResolver creates a Resolver. baseURL is the externally visible base of
// the service; pub may be nil.
func NewResolver(st store.Store, logger *zap.Logger, pub *events.Publisher, baseURL string, assetDecimals int) (*Resolver, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	return &Resolver{
		store:    st,
		logger:   logger,
		events:   pub,
		baseURL:  u,
		decimals: assetDecimals,
	}, nil
}

// Resolve runs the quote-gated decision for one request. Outcomes:
//
//   - no quote header, or any store rejection: StatePaymentRequired with
//     the nominal requirements. All rejection causes produce structurally
//     identical resolutions; the cause is logged and counted internally
//     only, so callers cannot probe which quotes exist.
//   - valid quote: StateFinalized with the quoted amount converted to
//     asset base units, scheme fixed to "exact". The quote is consumed as
//     a side effect and cannot back a second resolution.
//
// A non-nil error is a server fault (store backend failure, or a quoted
// amount that cannot be represented in base units) and must surface as a
// generic server error, never as a payment-required response.
func (r *Resolver) Resolve(ctx context.Context, info RequestInfo, templates []model.RequirementsTemplate, now time.Time) (*Resolution, error) {
	resource := r.resourceURL(info)

	quoteID := info.Headers.Get(HeaderQuoteID)
	clientID := info.Headers.Get(HeaderClientID)
	if clientID == "" {
		clientID = AnonymousClient
	}

	if quoteID == "" {
		return r.paymentRequired(resource, templates, "missing_quote", clientID), nil
	}

	rec, err := r.store.TryConsume(ctx, quoteID, clientID, now)
	var rej *store.RejectionError
	if errors.As(err, &rej) {
		return r.paymentRequired(resource, templates, string(rej.Reason), clientID), nil
	}
	if err != nil {
		metrics.IncError("resolver", "store_failed")
		return nil, fmt.Errorf("consume quote %s: %w", quoteID, err)
	}

	amount, err := model.NewMoneyAmount(rec.Amount)
	if err != nil {
		metrics.IncError("resolver", "invalid_amount")
		return nil, fmt.Errorf("quote %s: %w", quoteID, err)
	}
	tokenAmount, err := amount.TokenAmount(r.decimals)
	if err != nil {
		metrics.IncError("resolver", "invalid_amount")
		return nil, fmt.Errorf("quote %s: %w", quoteID, err)
	}

	accepts := make([]model.PaymentRequirements, 0, len(templates))
	for _, t := range templates {
		pr := t.Requirements(resource, tokenAmount)
		pr.Scheme = model.SchemeExact
		accepts = append(accepts, pr)
	}

	r.logger.Info("paywall.resolve.finalized",
		zap.String("quote_id", quoteID),
		zap.String("client", clientID),
		zap.String("amount", rec.Amount),
		zap.String("token_amount", tokenAmount),
		zap.String("resource", resource),
	)
	metrics.IncResolution("finalized")
	_ = r.events.Publish(ctx, events.TypeQuoteConsumed, clientID, model.QuoteConsumedEvent{
		QuoteID:  quoteID,
		Amount:   rec.Amount,
		Resource: resource,
	})

	return &Resolution{State: StateFinalized, Accepts: accepts}, nil
}

// paymentRequired builds the uniform rejection resolution. reason feeds
// logs and metrics only; it must not influence the returned value.
func (r *Resolver) paymentRequired(resource string, templates []model.RequirementsTemplate, reason, clientID string) *Resolution {
	accepts := make([]model.PaymentRequirements, 0, len(templates))
	for _, t := range templates {
		accepts = append(accepts, t.Nominal(resource))
	}

	r.logger.Debug("paywall.resolve.rejected",
		zap.String("reason", reason),
		zap.String("client", clientID),
		zap.String("resource", resource),
	)
	metrics.IncResolution("payment_required")
	metrics.IncRejection(reason)

	return &Resolution{State: StatePaymentRequired, Accepts: accepts}
}

func (r *Resolver) resourceURL(info RequestInfo) string {
	u := *r.baseURL
	u.Path = info.Path
	u.RawQuery = info.RawQuery
	return u.String()
}
