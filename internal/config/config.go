package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort        string
	LogLevel        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	CatalogURL string
	GatewayURL string
	LedgerURL  string
	PrinterURL string

	// Requests per second allowed towards each collaborator.
	BackendRateLimit float64
	BackendBurst     int

	PollInitialDelay time.Duration
	PollInterval     time.Duration
	PollMaxAttempts  int

	PhoneCountryCode      string
	PhoneSubscriberDigits int
	PhonePrefixes         string

	SearchDebounce time.Duration

	JWTSecret string

	RedisAddr     string
	RedisPassword string
	CatalogTTL    time.Duration

	// ReceiptMode is one of "http", "kafka" or "none".
	ReceiptMode  string
	KafkaBrokers []string
	ReceiptTopic string
}

func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		CatalogURL:       getEnv("CATALOG_URL", "http://localhost:9090"),
		GatewayURL:       getEnv("GATEWAY_URL", "http://localhost:9090"),
		LedgerURL:        getEnv("LEDGER_URL", "http://localhost:9090"),
		PrinterURL:       getEnv("PRINTER_URL", "http://localhost:9090"),
		PhoneCountryCode: getEnv("PHONE_COUNTRY_CODE", "254"),
		PhonePrefixes:    getEnv("PHONE_PREFIXES", "17"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		ReceiptMode:      getEnv("RECEIPT_MODE", "http"),
		ReceiptTopic:     getEnv("RECEIPT_TOPIC", "pos-receipts"),
		KafkaBrokers:     splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
	}

	var errs []error
	cfg.RequestTimeout = getDuration("REQUEST_TIMEOUT", 5*time.Second, &errs)
	cfg.ShutdownTimeout = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second, &errs)
	cfg.PollInitialDelay = getDuration("POLL_INITIAL_DELAY", 5*time.Second, &errs)
	cfg.PollInterval = getDuration("POLL_INTERVAL", 5*time.Second, &errs)
	cfg.PollMaxAttempts = getInt("POLL_MAX_ATTEMPTS", 12, &errs)
	cfg.PhoneSubscriberDigits = getInt("PHONE_SUBSCRIBER_DIGITS", 9, &errs)
	cfg.SearchDebounce = getDuration("SEARCH_DEBOUNCE", 300*time.Millisecond, &errs)
	cfg.CatalogTTL = getDuration("CATALOG_CACHE_TTL", 2*time.Minute, &errs)
	cfg.BackendRateLimit = getFloat("BACKEND_RATE_LIMIT", 20, &errs)
	cfg.BackendBurst = getInt("BACKEND_BURST", 10, &errs)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	if c.PollInitialDelay < 0 {
		errs = append(errs, errors.New("POLL_INITIAL_DELAY must not be negative"))
	}
	if c.PollMaxAttempts < 1 {
		errs = append(errs, errors.New("POLL_MAX_ATTEMPTS must be at least 1"))
	}
	if c.PhoneSubscriberDigits < 1 {
		errs = append(errs, errors.New("PHONE_SUBSCRIBER_DIGITS must be at least 1"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.ReceiptMode {
	case "http", "kafka", "none":
	default:
		errs = append(errs, fmt.Errorf("RECEIPT_MODE %q must be one of http, kafka, none", c.ReceiptMode))
	}
	if c.ReceiptMode == "kafka" && len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when RECEIPT_MODE=kafka"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int, errs *[]error) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return v
}

func getFloat(key string, defaultValue float64, errs *[]error) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SimulatorConfig configures the back office simulator.
type SimulatorConfig struct {
	HTTPPort       string
	LogLevel       string
	DBPath         string
	MigrationsPath string

	// PendingChecks is how many status checks a mobile money payment
	// answers pending before it settles.
	PendingChecks int
	// FixedOutcome forces every payment to settle with this status
	// ("success", "failed", "cancelled"); empty picks at random.
	FixedOutcome string

	ConsumeReceipts bool
	KafkaBrokers    []string
	ReceiptTopic    string
	ShutdownTimeout time.Duration
}

func LoadSimulator() (*SimulatorConfig, error) {
	cfg := &SimulatorConfig{
		HTTPPort:       getEnv("HTTP_PORT", "9090"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DBPath:         getEnv("SIM_DB_PATH", "pos-sim.db"),
		MigrationsPath: getEnv("SIM_MIGRATIONS_PATH", "internal/simulator/migrations"),
		FixedOutcome:   getEnv("SIM_FIXED_OUTCOME", ""),
		KafkaBrokers:   splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		ReceiptTopic:   getEnv("RECEIPT_TOPIC", "pos-receipts"),
	}

	var errs []error
	cfg.PendingChecks = getInt("SIM_PENDING_CHECKS", 2, &errs)
	cfg.ShutdownTimeout = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second, &errs)
	cfg.ConsumeReceipts = getBool("SIM_CONSUME_RECEIPTS", false, &errs)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if cfg.PendingChecks < 0 {
		errs = append(errs, errors.New("SIM_PENDING_CHECKS must not be negative"))
	}
	switch cfg.FixedOutcome {
	case "", "success", "failed", "cancelled":
	default:
		errs = append(errs, fmt.Errorf("SIM_FIXED_OUTCOME %q must be one of success, failed, cancelled", cfg.FixedOutcome))
	}
	if cfg.ConsumeReceipts && len(cfg.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when SIM_CONSUME_RECEIPTS is set"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getBool(key string, defaultValue bool, errs *[]error) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return v
}
