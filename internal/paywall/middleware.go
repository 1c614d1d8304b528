package paywall

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/x402-adapter/internal/metrics"
	"github.com/Checker-Finance/x402-adapter/pkg/model"
)

// Middleware gates fiber routes behind quote-priced x402 payment. The flow
// per request:
//
//  1. Resolve requirements. Payment required -> 402 with the nominal terms.
//  2. Decode the X-Payment header and verify it with the facilitator
//     against the finalized terms.
//  3. Serve the resource, settle the payment, and attach the settlement
//     receipt as X-Payment-Response.
type Middleware struct {
	resolver    *Resolver
	facilitator *FacilitatorClient
	templates   []model.RequirementsTemplate
	logger      *zap.Logger
	nowFn       func() time.Time
}

// NewMiddleware wires the paywall for a set of route templates.
func NewMiddleware(resolver *Resolver, facilitator *FacilitatorClient, templates []model.RequirementsTemplate, logger *zap.Logger) *Middleware {
	return &Middleware{
		resolver:    resolver,
		facilitator: facilitator,
		templates:   templates,
		logger:      logger,
		nowFn:       time.Now,
	}
}

// Handle is the fiber handler to mount in front of protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	info := RequestInfo{
		Headers:  http.Header(c.GetReqHeaders()),
		Path:     c.Path(),
		RawQuery: string(c.Request().URI().QueryString()),
	}

	res, err := m.resolver.Resolve(c.Context(), info, m.templates, m.nowFn())
	if err != nil {
		m.logger.Error("paywall.resolve_failed", zap.Error(err))
		return serverError(c)
	}
	if res.State == StatePaymentRequired {
		return paymentRequired(c, res.Accepts, "payment required")
	}

	raw := c.Get(HeaderPayment)
	if raw == "" {
		return paymentRequired(c, res.Accepts, "X-Payment header is required")
	}
	payload, err := DecodePayment(raw)
	if err != nil {
		m.logger.Debug("paywall.payment_decode_failed", zap.Error(err))
		return paymentRequired(c, res.Accepts, "invalid payment header")
	}

	requirement, ok := matchRequirement(res.Accepts, payload)
	if !ok {
		return paymentRequired(c, res.Accepts, "unsupported payment scheme or network")
	}

	verifyReq := &model.VerifyRequest{
		X402Version:         model.X402Version,
		PaymentPayload:      *payload,
		PaymentRequirements: requirement,
	}
	vr, err := m.facilitator.Verify(c.Context(), verifyReq)
	if err != nil {
		m.logger.Error("paywall.verify_failed", zap.Error(err))
		metrics.IncError("paywall", "verify_failed")
		return serverError(c)
	}
	if !vr.IsValid {
		m.logger.Info("paywall.payment_invalid",
			zap.String("reason", vr.InvalidReason),
			zap.String("payer", vr.Payer),
		)
		return paymentRequired(c, res.Accepts, "invalid payment: "+vr.InvalidReason)
	}

	if err := c.Next(); err != nil {
		return err
	}

	sr, err := m.facilitator.Settle(c.Context(), verifyReq)
	if err != nil {
		m.logger.Error("paywall.settle_failed", zap.Error(err))
		metrics.IncError("paywall", "settle_failed")
		return serverError(c)
	}
	if !sr.Success {
		m.logger.Warn("paywall.settlement_rejected",
			zap.String("reason", sr.ErrorReason),
		)
		return paymentRequired(c, res.Accepts, "settlement failed")
	}

	receipt, err := EncodeSettleResponse(sr)
	if err == nil {
		c.Set(HeaderPaymentResponse, receipt)
	}
	return nil
}

// matchRequirement picks the finalized requirement the payment payload
// claims to satisfy.
func matchRequirement(accepts []model.PaymentRequirements, p *model.PaymentPayload) (model.PaymentRequirements, bool) {
	for _, pr := range accepts {
		if pr.Scheme == p.Scheme && pr.Network == p.Network {
			return pr, true
		}
	}
	return model.PaymentRequirements{}, false
}

func paymentRequired(c *fiber.Ctx, accepts []model.PaymentRequirements, msg string) error {
	return c.Status(fiber.StatusPaymentRequired).JSON(model.X402Response{
		X402Version: model.X402Version,
		Accepts:     accepts,
		Error:       msg,
	})
}

func serverError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}
