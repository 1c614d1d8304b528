package config

import (
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration for the x402-adapter service.
// It is environment-initialized with documented defaults; nothing else in
// the service reads the environment directly.
type Config struct {
	ServiceName string // e.g. "x402-adapter"
	Env         string // "dev", "uat", or "prod"
	LogLevel    string // "debug", "info", etc.
	Port        int    // HTTP listen port

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	HTTPBodyLimit    int

	// BaseURL is the externally visible base of this service; quote-gated
	// resource URLs are built from it plus the request path and query.
	BaseURL string

	// FacilitatorURL is the external payment verification/settlement service.
	FacilitatorURL string

	// QuoteTTL is how long an issued quote stays redeemable.
	QuoteTTL time.Duration

	// SweepInterval is the period of the expired-quote sweeper.
	SweepInterval time.Duration

	// UnitPrice is the per-unit display price used by the demo pricer,
	// e.g. "0.01" per file.
	UnitPrice string

	// Per-client quote issuance limits; RPS <= 0 disables limiting.
	QuoteRPS   int
	QuoteBurst int

	// Payment terms for the protected routes. PayTo/Asset may be overridden
	// from AWS Secrets Manager when PayeeSecretID is set.
	PayTo             string
	Asset             string
	Network           string
	AssetDecimals     int
	MaxTimeoutSeconds int

	// StoreBackend selects the quote store: "memory", "redis" or "postgres".
	StoreBackend string
	RedisAddr    string
	RedisDB      int
	RedisPass    string
	DatabaseURL  string

	// NATSURL enables lifecycle event publishing when non-empty.
	NATSURL      string
	EventSubject string

	AWSRegion     string
	PayeeSecretID string        // Secrets Manager id holding payee config; empty disables
	CacheTTL      time.Duration // TTL for the secrets cache
	CleanupFreq   time.Duration // cleanup frequency for the secrets cache
}

// Load loads configuration from environment variables and .env file if present.
func Load() *Config {
	// load .env silently (no error if missing)
	_ = godotenv.Load()

	return &Config{
		ServiceName: GetEnv("SERVICE_NAME", "x402-adapter"),
		Env:         GetEnv("ENV", "dev"),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
		Port:        GetEnvInt("X402_PORT", 9020),

		HTTPReadTimeout:  GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout: GetEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
		HTTPIdleTimeout:  GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		HTTPBodyLimit:    GetEnvInt("HTTP_BODY_LIMIT", 1*1024*1024),

		BaseURL:        GetEnv("BASE_URL", "https://localhost:3001/"),
		FacilitatorURL: GetEnv("FACILITATOR_URL", "https://facilitator.x402.rs"),

		QuoteTTL:      GetEnvDuration("QUOTE_TTL", 5*time.Minute),
		SweepInterval: GetEnvDuration("SWEEP_INTERVAL", 1*time.Minute),
		UnitPrice:     GetEnv("UNIT_PRICE", "0.01"),

		QuoteRPS:   GetEnvInt("QUOTE_RPS", 5),
		QuoteBurst: GetEnvInt("QUOTE_BURST", 10),

		PayTo:             GetEnv("PAY_TO", "0xBAc675C310721717Cd4A37F6cbeA1F081b1C2a07"),
		Asset:             GetEnv("ASSET", "0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
		Network:           GetEnv("NETWORK", "base-sepolia"),
		AssetDecimals:     GetEnvInt("ASSET_DECIMALS", 6),
		MaxTimeoutSeconds: GetEnvInt("MAX_TIMEOUT_SECONDS", 60),

		StoreBackend: GetEnv("STORE_BACKEND", "memory"),
		RedisAddr:    GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:      GetEnvInt("REDIS_DB", 0),
		RedisPass:    GetEnv("REDIS_PASS", ""),
		DatabaseURL:  GetEnv("DATABASE_URL", ""),

		NATSURL:      GetEnv("NATS_URL", ""),
		EventSubject: GetEnv("EVENT_SUBJECT", "evt.x402"),

		AWSRegion:     GetEnv("AWS_REGION", "us-east-2"),
		PayeeSecretID: GetEnv("PAYEE_SECRET_ID", ""),
		CacheTTL:      GetEnvDuration("CACHE_TTL", 24*time.Hour),
		CleanupFreq:   GetEnvDuration("CACHE_CLEANUP_FREQ", 10*time.Minute),
	}
}
