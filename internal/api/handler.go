package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/x402-adapter/internal/metrics"
	"github.com/Checker-Finance/x402-adapter/internal/paywall"
	"github.com/Checker-Finance/x402-adapter/internal/quote"
	"github.com/Checker-Finance/x402-adapter/internal/rate"
	"github.com/Checker-Finance/x402-adapter/pkg/model"
)

// QuoteIssuer defines the interface for quote operations needed by the handler.
type QuoteIssuer interface {
	Issue(ctx context.Context, amount model.MoneyAmount, ownerID string) (model.QuoteRecord, error)
}

// QuoteHandler handles HTTP API requests for quote issuance.
type QuoteHandler struct {
	logger  *zap.Logger
	issuer  QuoteIssuer
	pricer  quote.Pricer
	limiter *rate.Manager
}

// NewQuoteHandler creates a new QuoteHandler. limiter may be nil to disable
// per-client issuance limiting.
func NewQuoteHandler(logger *zap.Logger, issuer QuoteIssuer, pricer quote.Pricer, limiter *rate.Manager) *QuoteHandler {
	return &QuoteHandler{
		logger:  logger,
		issuer:  issuer,
		pricer:  pricer,
		limiter: limiter,
	}
}

// CreateQuoteHandler prices the request and issues a single-use quote.
func (h *QuoteHandler) CreateQuoteHandler(c *fiber.Ctx) error {
	var req QuoteCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = c.Get(paywall.HeaderClientID)
	}
	if clientID == "" {
		clientID = paywall.AnonymousClient
	}

	if !h.limiter.Allow(clientID) {
		metrics.IncError("api", "rate_limited")
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "too many quote requests",
		})
	}

	amount, err := h.pricer.Price(req.NumberOfFiles)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	rec, err := h.issuer.Issue(c.Context(), amount, clientID)
	if err != nil {
		h.logger.Error("api.create_quote.failed",
			zap.String("client", clientID),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(QuoteResponse{
		QuoteID:   rec.QuoteID,
		Amount:    rec.Amount,
		ExpiresAt: rec.ExpiresAt.Unix(),
	})
}
