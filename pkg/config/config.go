package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel       string
	HTTPPort       string
	MetricsEnabled bool

	// Execution service endpoints
	APIURL     string
	WSURL      string
	SubmitPath string

	// Submission timeouts, by scenario criticality
	SubmitTimeout              time.Duration
	ProbeSubmitTimeout         time.Duration
	HighFrequencySubmitTimeout time.Duration

	// Order tracking
	OrderTimeout     time.Duration
	AckTimeoutWindow time.Duration
	LargeOrderWindow time.Duration
	ResolvedCacheTTL time.Duration

	// Scenario parameters
	ConcurrentOrders      int
	MinSuccessRatio       float64
	MaxInFlight           int
	RapidConnections      int
	RapidConnectHold      time.Duration
	ReconnectWindow       time.Duration
	HighFrequencyOrders   int
	HighFrequencyMinRatio float64
	SuitePause            time.Duration
	SuiteFile             string

	// WebSocket
	WSDialTimeout           time.Duration
	WSWriteTimeout          time.Duration
	WSEventBufferSize       int
	WSReconnectInitialDelay time.Duration
	WSReconnectMaxDelay     time.Duration
	WSReconnectBackoffMult  float64
	WSReconnectMaxAttempts  int

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort:       getEnvOrDefault("HTTP_PORT", "9090"),
		MetricsEnabled: getBoolOrDefault("METRICS_ENABLED", false),

		// Execution service defaults
		APIURL:     getEnvOrDefault("API_URL", "http://localhost:3000"),
		WSURL:      getEnvOrDefault("WS_URL", "ws://localhost:3000/api/orders/execute"),
		SubmitPath: getEnvOrDefault("SUBMIT_PATH", "/api/orders/execute"),

		// Submission timeouts
		SubmitTimeout:              getDurationOrDefault("SUBMIT_TIMEOUT", 10*time.Second),
		ProbeSubmitTimeout:         getDurationOrDefault("PROBE_SUBMIT_TIMEOUT", 5*time.Second),
		HighFrequencySubmitTimeout: getDurationOrDefault("HIGH_FREQUENCY_SUBMIT_TIMEOUT", 3*time.Second),

		// Order tracking defaults
		OrderTimeout:     getDurationOrDefault("ORDER_TIMEOUT", 30*time.Second),
		AckTimeoutWindow: getDurationOrDefault("ACK_TIMEOUT_WINDOW", 10*time.Second),
		LargeOrderWindow: getDurationOrDefault("LARGE_ORDER_WINDOW", 20*time.Second),
		ResolvedCacheTTL: getDurationOrDefault("RESOLVED_CACHE_TTL", 5*time.Minute),

		// Scenario defaults
		ConcurrentOrders:      getIntOrDefault("CONCURRENT_ORDERS", 5),
		MinSuccessRatio:       getFloat64OrDefault("MIN_SUCCESS_RATIO", 0.8),
		MaxInFlight:           getIntOrDefault("MAX_IN_FLIGHT", 0),
		RapidConnections:      getIntOrDefault("RAPID_CONNECTIONS", 10),
		RapidConnectHold:      getDurationOrDefault("RAPID_CONNECT_HOLD", 100*time.Millisecond),
		ReconnectWindow:       getDurationOrDefault("RECONNECT_WINDOW", 2*time.Second),
		HighFrequencyOrders:   getIntOrDefault("HIGH_FREQUENCY_ORDERS", 20),
		HighFrequencyMinRatio: getFloat64OrDefault("HIGH_FREQUENCY_MIN_RATIO", 0.75),
		SuitePause:            getDurationOrDefault("SUITE_PAUSE", 5*time.Second),
		SuiteFile:             os.Getenv("SUITE_FILE"),

		// WebSocket defaults
		WSDialTimeout:           getDurationOrDefault("WS_DIAL_TIMEOUT", 10*time.Second),
		WSWriteTimeout:          getDurationOrDefault("WS_WRITE_TIMEOUT", 5*time.Second),
		WSEventBufferSize:       getIntOrDefault("WS_EVENT_BUFFER_SIZE", 16),
		WSReconnectInitialDelay: getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", 100*time.Millisecond),
		WSReconnectMaxDelay:     getDurationOrDefault("WS_RECONNECT_MAX_DELAY", 2*time.Second),
		WSReconnectBackoffMult:  getFloat64OrDefault("WS_RECONNECT_BACKOFF_MULTIPLIER", 2.0),
		WSReconnectMaxAttempts:  getIntOrDefault("WS_RECONNECT_MAX_ATTEMPTS", 5),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "postgres"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "password"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "order_db"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.MetricsEnabled && c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty when METRICS_ENABLED is set")
	}

	err := validateURL("API_URL", c.APIURL, "http", "https")
	if err != nil {
		return err
	}

	err = validateURL("WS_URL", c.WSURL, "ws", "wss")
	if err != nil {
		return err
	}

	if c.SubmitTimeout <= 0 || c.ProbeSubmitTimeout <= 0 || c.HighFrequencySubmitTimeout <= 0 {
		return fmt.Errorf("submission timeouts must be positive")
	}

	if c.OrderTimeout <= 0 {
		return fmt.Errorf("ORDER_TIMEOUT must be positive, got %s", c.OrderTimeout)
	}

	if c.AckTimeoutWindow <= 0 || c.AckTimeoutWindow > c.OrderTimeout {
		return fmt.Errorf("ACK_TIMEOUT_WINDOW must be positive and not exceed ORDER_TIMEOUT, got %s", c.AckTimeoutWindow)
	}

	if c.ConcurrentOrders < 1 {
		return fmt.Errorf("CONCURRENT_ORDERS must be at least 1, got %d", c.ConcurrentOrders)
	}

	if c.MinSuccessRatio <= 0 || c.MinSuccessRatio > 1.0 {
		return fmt.Errorf("MIN_SUCCESS_RATIO must be in (0, 1], got %f", c.MinSuccessRatio)
	}

	if c.HighFrequencyMinRatio <= 0 || c.HighFrequencyMinRatio > 1.0 {
		return fmt.Errorf("HIGH_FREQUENCY_MIN_RATIO must be in (0, 1], got %f", c.HighFrequencyMinRatio)
	}

	if c.MaxInFlight < 0 {
		return fmt.Errorf("MAX_IN_FLIGHT cannot be negative, got %d", c.MaxInFlight)
	}

	if c.WSEventBufferSize < 0 {
		return fmt.Errorf("WS_EVENT_BUFFER_SIZE cannot be negative, got %d", c.WSEventBufferSize)
	}

	if c.WSReconnectMaxAttempts < 1 {
		return fmt.Errorf("WS_RECONNECT_MAX_ATTEMPTS must be at least 1, got %d", c.WSReconnectMaxAttempts)
	}

	if c.StorageMode != "console" && c.StorageMode != "postgres" {
		return fmt.Errorf("STORAGE_MODE must be 'console' or 'postgres', got %q", c.StorageMode)
	}

	return nil
}

func validateURL(key string, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", key)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", key, err)
	}

	for _, scheme := range schemes {
		if parsed.Scheme == scheme {
			return nil
		}
	}

	return fmt.Errorf("%s must use one of %v, got %q", key, schemes, parsed.Scheme)
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
