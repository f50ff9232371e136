package config

import (
	"os"
	"strconv"
	"time"

	platformstrings "ekyc/pkg/platform/strings"
)

// Config captures process-level configuration. Built once in main via FromEnv
// and passed down explicitly; nothing reads the environment after startup.
type Config struct {
	Addr     string
	LogLevel string

	// StoreBackend selects persistence: "memory", "postgres".
	StoreBackend string
	PostgresURL  string

	// ChallengeBackend selects OTP challenge persistence: "memory", "redis".
	ChallengeBackend string
	Redis            RedisConfig

	// Upstream identity authority endpoint.
	UpstreamBaseURL string
	UpstreamAPIKey  string

	// AuditKafka, when brokers are set, mirrors audit entries to a topic
	// keyed by reference number.
	AuditKafka KafkaConfig

	Policy Policy
}

// RedisConfig holds connection tuning for the challenge cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds the audit mirror topic settings.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Policy is the verification policy value object. It is constructor-injected
// into the orchestrator, the challenge manager, and the upstream client so no
// component reads process-wide mutable state.
type Policy struct {
	MaxOTPAttempts int
	OTPTTL         time.Duration
	RequestTTL     time.Duration

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration

	SweepInterval time.Duration
}

// DefaultPolicy returns the documented policy constants. The upstream source
// material disagreed on windows and attempt limits; these are the values this
// service commits to.
func DefaultPolicy() Policy {
	return Policy{
		MaxOTPAttempts:   3,
		OTPTTL:           10 * time.Minute,
		RequestTTL:       30 * time.Minute,
		RetryMaxAttempts: 3,
		RetryBaseDelay:   time.Second,
		RetryMaxDelay:    8 * time.Second,
		SweepInterval:    time.Minute,
	}
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:             envOr("EKYC_ADDR", ":8080"),
		LogLevel:         envOr("EKYC_LOG_LEVEL", "info"),
		StoreBackend:     envOr("EKYC_STORE", "memory"),
		PostgresURL:      os.Getenv("EKYC_POSTGRES_URL"),
		ChallengeBackend: envOr("EKYC_CHALLENGE_STORE", "memory"),
		UpstreamBaseURL:  envOr("EKYC_UPSTREAM_URL", "http://localhost:8081"),
		UpstreamAPIKey:   os.Getenv("EKYC_UPSTREAM_API_KEY"),
		Policy:           DefaultPolicy(),
	}

	cfg.Redis = RedisConfig{
		URL:          os.Getenv("EKYC_REDIS_URL"),
		PoolSize:     envIntOr("EKYC_REDIS_POOL_SIZE", 10),
		MinIdleConns: envIntOr("EKYC_REDIS_MIN_IDLE", 2),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	if brokers := os.Getenv("EKYC_AUDIT_KAFKA_BROKERS"); brokers != "" {
		cfg.AuditKafka = KafkaConfig{
			Brokers: platformstrings.SplitList(brokers),
			Topic:   envOr("EKYC_AUDIT_KAFKA_TOPIC", "ekyc.audit"),
		}
	}

	if v := envIntOr("EKYC_MAX_OTP_ATTEMPTS", 0); v > 0 {
		cfg.Policy.MaxOTPAttempts = v
	}
	if v := envDuration("EKYC_OTP_TTL"); v > 0 {
		cfg.Policy.OTPTTL = v
	}
	if v := envDuration("EKYC_REQUEST_TTL"); v > 0 {
		cfg.Policy.RequestTTL = v
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return 0
}
