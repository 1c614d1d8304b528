package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/Checker-Finance/x402-adapter/internal/api"
	"github.com/Checker-Finance/x402-adapter/internal/events"
	"github.com/Checker-Finance/x402-adapter/internal/paywall"
	"github.com/Checker-Finance/x402-adapter/internal/quote"
	"github.com/Checker-Finance/x402-adapter/internal/rate"
	"github.com/Checker-Finance/x402-adapter/internal/store"
	"github.com/Checker-Finance/x402-adapter/pkg/config"
	"github.com/Checker-Finance/x402-adapter/pkg/logger"
	"github.com/Checker-Finance/x402-adapter/pkg/model"
	"github.com/Checker-Finance/x402-adapter/pkg/secrets"
	"github.com/Checker-Finance/x402-adapter/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [x402-adapter]...")

	// --- Payee config (env, optionally overridden from AWS Secrets Manager) ---
	payTo, asset, network, decimals := cfg.PayTo, cfg.Asset, cfg.Network, cfg.AssetDecimals
	stopCleaner := make(chan struct{})
	if cfg.PayeeSecretID != "" {
		awsProvider, err := secrets.NewAWSProvider(cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
		payeeCache := secrets.NewCache[secrets.PayeeConfig](cfg.CacheTTL)
		go payeeCache.StartCleaner(cfg.CleanupFreq, stopCleaner)

		resolver := secrets.NewPayeeResolver(logg.Desugar(), awsProvider, payeeCache)
		payee, err := resolver.Resolve(ctx, cfg.PayeeSecretID)
		if err != nil {
			logg.Fatalw("failed to resolve payee config", "error", err, "secret_id", cfg.PayeeSecretID)
		}
		payTo, asset = payee.PayTo, payee.Asset
		if payee.Network != "" {
			network = payee.Network
		}
		if payee.Decimals > 0 {
			decimals = payee.Decimals
		}
	}

	// --- Quote store ---
	st, err := newStore(ctx, cfg)
	if err != nil {
		logg.Fatalw("failed to init quote store", "error", err, "backend", cfg.StoreBackend)
	}
	logg.Infow("quote store ready", "backend", cfg.StoreBackend)

	// --- NATS events (optional) ---
	var nc *nats.Conn
	var pub *events.Publisher
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logg.Fatalw("failed to connect to NATS", "error", err)
		}
		pub, err = events.New(nc, cfg.EventSubject, cfg.ServiceName, logg.Desugar())
		if err != nil {
			logg.Fatalw("failed to init event publisher", "error", err)
		}
	} else {
		logg.Warn("NATS_URL not configured; quote lifecycle events disabled")
	}

	// --- Payment requirement template for the protected routes ---
	unitPrice, err := model.NewMoneyAmount(cfg.UnitPrice)
	if err != nil {
		logg.Fatalw("invalid UNIT_PRICE", "error", err, "value", cfg.UnitPrice)
	}
	nominal, err := unitPrice.TokenAmount(decimals)
	if err != nil {
		logg.Fatalw("UNIT_PRICE does not fit asset decimals", "error", err)
	}
	templates := []model.RequirementsTemplate{{
		Scheme:            model.SchemeExact,
		Network:           network,
		NominalAmount:     nominal,
		Description:       "Quote-priced access to the protected resource",
		MimeType:          "application/json",
		PayTo:             payTo,
		MaxTimeoutSeconds: cfg.MaxTimeoutSeconds,
		Asset:             asset,
		Extra:             map[string]any{"name": "USDC", "version": "2"},
	}}

	// --- Quote issuance ---
	pricer, err := quote.NewUnitPricer(cfg.UnitPrice)
	if err != nil {
		logg.Fatalw("invalid UNIT_PRICE", "error", err, "value", cfg.UnitPrice)
	}
	issuer := quote.NewIssuer(st, logg.Desugar(), pub, cfg.QuoteTTL)

	// --- Paywall ---
	resolver, err := paywall.NewResolver(st, logg.Desugar(), pub, cfg.BaseURL, decimals)
	if err != nil {
		logg.Fatalw("failed to init resolver", "error", err)
	}
	facilitator := paywall.NewFacilitatorClient(logg.Desugar(), cfg.FacilitatorURL, 30*time.Second)
	mw := paywall.NewMiddleware(resolver, facilitator, templates, logg.Desugar())

	// --- Expired-quote sweeper ---
	sweeper := store.NewSweeper(st, logg.Desugar(), cfg.SweepInterval)
	sweeper.Notify = func(ctx context.Context, removed int) {
		_ = pub.Publish(ctx, events.TypeQuoteSwept, "", model.QuoteSweptEvent{
			Removed: removed,
			SweptAt: time.Now().UTC(),
		})
	}
	go sweeper.Start(ctx)

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	var limiter *rate.Manager
	if cfg.QuoteRPS > 0 {
		limiter = rate.NewManager(rate.Config{
			RequestsPerSecond: cfg.QuoteRPS,
			Burst:             cfg.QuoteBurst,
		})
	}
	quoteHandler := api.NewQuoteHandler(logg.Desugar(), issuer, pricer, limiter)
	api.RegisterRoutes(app, nc, st, quoteHandler, mw.Handle)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[x402-adapter] running",
		"env", cfg.Env,
		"facilitator", cfg.FacilitatorURL,
		"network", network,
		"quote_ttl", cfg.QuoteTTL,
		"sweep_interval", cfg.SweepInterval,
		"store", cfg.StoreBackend,
	)

	<-ctx.Done()
	logg.Info("shutting down [x402-adapter]...")

	close(stopCleaner)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if nc != nil {
		if err := nc.Drain(); err != nil {
			logg.Warnw("nats.drain_failed", "error", err)
		}
	}
	if err := st.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
}

// newStore selects the quote store backend from configuration.
func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "", "memory":
		return store.NewMemory(), nil
	case "redis":
		return store.NewRedis(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, logger.L())
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
		logger.S().Info("connecting to DSN: ", utils.MaskDSN(cfg.DatabaseURL))
		return store.NewPostgres(ctx, cfg.DatabaseURL, logger.L())
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
