// Package config loads runtime configuration for the task coordination
// engine from the environment, following the same load-then-validate shape
// the rest of this codebase's ambient configuration uses.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all environment-sourced configuration for the engine.
type Config struct {
	// Network selection
	UseTestnet              bool
	EnableReinitiations     bool // testnet only
	UseOpenRouterAutorouter bool // testnet only

	// XRPL endpoints, tried in order for JSON-RPC; WS endpoints tried in order for subscribe
	RPCEndpoints []string
	WSEndpoints  []string
	HasLocalNode bool
	LocalNodeURL string

	// PFT token issuer for the configured network
	PFTIssuer string

	// Database (Postgres transaction cache)
	DatabaseURL         string
	DatabaseMaxConns    int
	DatabaseMinConns    int
	DatabaseMaxIdleTime int // seconds
	DatabaseMaxLifetime int // seconds

	// Credential store
	CredentialsDir   string
	NodeName         string
	RemembrancerName string

	// LLM gateway
	LLMBaseURL           string
	LLMModel             string
	LLMMaxConcurrency    int
	LLMRequestsPerMinute int

	// Queue orchestrator
	QueueCycleSleep      time.Duration
	VerificationPollN    int
	VerificationInterval time.Duration

	// Reward policy: clamps and the per-user daily ceiling, all
	// operator-overridable.
	MinRewardPFT          int
	MaxRewardPFT          int
	DailyRewardCeilingPFT int
	RewardWindowDays      int

	// Monitor
	PFTTrackThreshold float64 // minimum PFT balance for an account to be tracked by the monitor

	// HTTP surfaces
	HealthAddr  string
	MetricsAddr string
}

// Load reads configuration from environment variables, applying the same
// defaults-then-override pattern used throughout this codebase.
func Load() (*Config, error) {
	useTestnet := getEnvBool("USE_TESTNET", false)

	cfg := &Config{
		UseTestnet:              useTestnet,
		EnableReinitiations:     useTestnet && getEnvBool("ENABLE_REINITIATIONS", false),
		UseOpenRouterAutorouter: useTestnet && getEnvBool("USE_OPENROUTER_AUTOROUTER", false),

		RPCEndpoints: getEnvList("XRPL_RPC_ENDPOINTS", defaultRPCEndpoints(useTestnet)),
		WSEndpoints:  getEnvList("XRPL_WS_ENDPOINTS", defaultWSEndpoints(useTestnet)),
		HasLocalNode: getEnvBool("HAS_LOCAL_NODE", false),
		LocalNodeURL: getEnv("LOCAL_NODE_URL", ""),

		PFTIssuer: getEnv("PFT_ISSUER", defaultPFTIssuer(useTestnet)),

		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 25),
		DatabaseMinConns:    getEnvInt("DATABASE_MIN_CONNS", 5),
		DatabaseMaxIdleTime: getEnvInt("DATABASE_MAX_IDLE_TIME", 300),
		DatabaseMaxLifetime: getEnvInt("DATABASE_MAX_LIFETIME", 3600),

		CredentialsDir:   getEnv("CREDENTIALS_DIR", defaultCredentialsDir()),
		NodeName:         getEnv("NODE_NAME", "postfiatfoundation"),
		RemembrancerName: getEnv("REMEMBRANCER_NAME", ""),

		LLMBaseURL:           getEnv("LLM_BASE_URL", "https://openrouter.ai/api/v1"),
		LLMModel:             getEnv("LLM_MODEL", "anthropic/claude-3.5-sonnet:beta"),
		LLMMaxConcurrency:    getEnvInt("LLM_MAX_CONCURRENCY", 10),
		LLMRequestsPerMinute: getEnvInt("LLM_REQUESTS_PER_MINUTE", 30),

		QueueCycleSleep:      getEnvDuration("QUEUE_CYCLE_SLEEP", 15*time.Second),
		VerificationPollN:    getEnvInt("VERIFICATION_POLL_ATTEMPTS", 6),
		VerificationInterval: getEnvDuration("VERIFICATION_POLL_INTERVAL", 10*time.Second),

		MinRewardPFT:          getEnvInt("MIN_REWARD_PFT", 1),
		MaxRewardPFT:          getEnvInt("MAX_REWARD_PFT", 1200),
		DailyRewardCeilingPFT: getEnvInt("DAILY_REWARD_CEILING_PFT", 1200),
		RewardWindowDays:      getEnvInt("REWARD_WINDOW_DAYS", 35),

		PFTTrackThreshold: getEnvFloat("PFT_TRACK_THRESHOLD", 1.0),

		HealthAddr:  getEnv("HEALTH_ADDR", "0.0.0.0:8081"),
		MetricsAddr: getEnv("METRICS_ADDR", "0.0.0.0:9090"),
	}

	return cfg, nil
}

// Validate checks that all required configuration is present, aggregating
// every problem into a single error.
func (c *Config) Validate() error {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required but not set")
	}
	if len(c.RPCEndpoints) == 0 {
		errs = append(errs, "XRPL_RPC_ENDPOINTS is required but not set")
	}
	if len(c.WSEndpoints) == 0 {
		errs = append(errs, "XRPL_WS_ENDPOINTS is required but not set")
	}
	if c.NodeName == "" {
		errs = append(errs, "NODE_NAME is required but not set")
	}
	if c.MinRewardPFT > c.MaxRewardPFT {
		errs = append(errs, "MIN_REWARD_PFT must not exceed MAX_REWARD_PFT")
	}
	if c.LLMMaxConcurrency <= 0 {
		errs = append(errs, "LLM_MAX_CONCURRENCY must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func defaultRPCEndpoints(testnet bool) []string {
	if testnet {
		return []string{"https://s.altnet.rippletest.net:51234"}
	}
	return []string{"https://xrplcluster.com", "https://s1.ripple.com:51234"}
}

func defaultWSEndpoints(testnet bool) []string {
	if testnet {
		return []string{"wss://s.altnet.rippletest.net:51233"}
	}
	return []string{"wss://xrplcluster.com", "wss://s1.ripple.com"}
}

func defaultPFTIssuer(testnet bool) string {
	if testnet {
		return "rLX2tgumpiUE6kjr757Ao8HWiJcnVrjsVj"
	}
	return "rnQqwcjhsbZvEbVU9TGKbMaYz2eVfk9oJR"
}

func defaultCredentialsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./postfiatcreds"
	}
	return home + "/postfiatcreds"
}

// Helper functions for environment variable parsing.

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
