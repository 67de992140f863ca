package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/n0rdy/approvals/common"
)

const envPrefix = "APPROVALS_"

type AppConfigs struct {
	Env              string
	LogLevel         string
	ListenAddr       string
	AuthSecret       string
	DbPath           string // Empty means the OS-specific default location is used
	MetricsEnabled   bool
	QueueConfig      QueueConfig
	WorkersConfig    WorkersConfig
	ClassifierConfig ClassifierConfig
	AuditConfig      AuditConfig
	BillingConfig    BillingConfig
	PostDurationMs   int64 // How long an approved listing stays visible, in milliseconds
	JobsIntervals    JobsIntervals
	ServerConfig     ServerConfig // Configuration for the server, including timeouts
}

type QueueConfig struct {
	Capacity   int
	MaxRetries int // Number of resubmissions allowed after a failed classification
}

type WorkersConfig struct {
	Steady          int
	Max             int
	BurstThreshold  int   // Queue size at which burst workers are started
	KeepAliveMs     int64 // Idle time after which a burst worker exits
	ShutdownTimeout time.Duration
}

type ClassifierConfig struct {
	Url       string
	ApiKey    string
	Model     string
	TimeoutMs int64

	// circuit breaker
	BreakerMaxFailures uint32
	BreakerOpenMs      int64
}

type AuditConfig struct {
	CsvPath    string
	WebhookUrl string // Empty disables chat notifications
}

type BillingConfig struct {
	AmqpUrl   string // Empty disables the compensation hand-off
	QueueName string
}

type JobsIntervals struct {
	PendingSweepMs      int64 // Interval for enqueueing all pending listings, 0 disables the sweep
	QueueDepthMetricsMs int64 // Interval for publishing the queue depth gauges
}

type ServerConfig struct {
	Timeouts           ServerTimeouts
	RateLimitPerMinute int // Admin API requests allowed per client IP per minute
}

type ServerTimeouts struct {
	Handle     time.Duration
	Write      time.Duration
	Read       time.Duration
	ReadHeader time.Duration
	Idle       time.Duration
}

func NewAppConfig() *AppConfigs {
	capacity := 100

	return &AppConfigs{
		Env:            common.LocalEnv,
		LogLevel:       "info",
		ListenAddr:     "localhost:8080",
		MetricsEnabled: true,
		QueueConfig: QueueConfig{
			Capacity:   capacity,
			MaxRetries: 3,
		},
		WorkersConfig: WorkersConfig{
			Steady:          2,
			Max:             3,
			BurstThreshold:  capacity / 2,
			KeepAliveMs:     60 * 1000,        // 60 seconds
			ShutdownTimeout: 30 * time.Second, // longer than a single classification call
		},
		ClassifierConfig: ClassifierConfig{
			TimeoutMs:          30 * 1000, // 30 seconds
			BreakerMaxFailures: 5,
			BreakerOpenMs:      30 * 1000, // 30 seconds
		},
		AuditConfig: AuditConfig{
			CsvPath: "approval-audit.csv",
		},
		BillingConfig: BillingConfig{
			QueueName: "listing.rejected",
		},
		PostDurationMs: 30 * 24 * 60 * 60 * 1000, // 30 days
		JobsIntervals: JobsIntervals{
			PendingSweepMs:      5 * 60 * 1000, // 5 minutes
			QueueDepthMetricsMs: 15 * 1000,     // 15 seconds
		},
		ServerConfig: ServerConfig{
			Timeouts: ServerTimeouts{
				Handle:     10 * time.Second,
				Write:      15 * time.Second,
				Read:       15 * time.Second,
				ReadHeader: 5 * time.Second,
				Idle:       5 * time.Minute,
			},
			RateLimitPerMinute: 120,
		},
	}
}

// LoadAppConfig starts from the defaults and applies APPROVALS_* environment variables,
// reading a .env file first if there is one.
func LoadAppConfig() (*AppConfigs, error) {
	_ = godotenv.Load()

	cfg := NewAppConfig()
	cfg.Env = getEnv("ENV", cfg.Env)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.ListenAddr = getEnv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.AuthSecret = getEnv("AUTH_SECRET", cfg.AuthSecret)
	cfg.DbPath = getEnv("DB_PATH", cfg.DbPath)
	cfg.MetricsEnabled = getEnvAsBool("METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.QueueConfig.Capacity = getEnvAsInt("QUEUE_CAPACITY", cfg.QueueConfig.Capacity)
	cfg.QueueConfig.MaxRetries = getEnvAsInt("QUEUE_MAX_RETRIES", cfg.QueueConfig.MaxRetries)
	cfg.WorkersConfig.Steady = getEnvAsInt("WORKERS_STEADY", cfg.WorkersConfig.Steady)
	cfg.WorkersConfig.Max = getEnvAsInt("WORKERS_MAX", cfg.WorkersConfig.Max)
	cfg.WorkersConfig.BurstThreshold = getEnvAsInt("WORKERS_BURST_THRESHOLD", cfg.QueueConfig.Capacity/2)
	cfg.WorkersConfig.KeepAliveMs = getEnvAsInt64("WORKERS_KEEP_ALIVE_MS", cfg.WorkersConfig.KeepAliveMs)
	cfg.ClassifierConfig.Url = getEnv("CLASSIFIER_URL", cfg.ClassifierConfig.Url)
	cfg.ClassifierConfig.ApiKey = getEnv("CLASSIFIER_API_KEY", cfg.ClassifierConfig.ApiKey)
	cfg.ClassifierConfig.Model = getEnv("CLASSIFIER_MODEL", cfg.ClassifierConfig.Model)
	cfg.ClassifierConfig.TimeoutMs = getEnvAsInt64("CLASSIFIER_TIMEOUT_MS", cfg.ClassifierConfig.TimeoutMs)
	cfg.ClassifierConfig.BreakerMaxFailures = uint32(getEnvAsInt("CLASSIFIER_BREAKER_MAX_FAILURES", int(cfg.ClassifierConfig.BreakerMaxFailures)))
	cfg.ClassifierConfig.BreakerOpenMs = getEnvAsInt64("CLASSIFIER_BREAKER_OPEN_MS", cfg.ClassifierConfig.BreakerOpenMs)
	cfg.PostDurationMs = getEnvAsInt64("POST_DURATION_MS", cfg.PostDurationMs)
	cfg.AuditConfig.CsvPath = getEnv("AUDIT_CSV_PATH", cfg.AuditConfig.CsvPath)
	cfg.AuditConfig.WebhookUrl = getEnv("AUDIT_WEBHOOK_URL", cfg.AuditConfig.WebhookUrl)
	cfg.BillingConfig.AmqpUrl = getEnv("BILLING_AMQP_URL", cfg.BillingConfig.AmqpUrl)
	cfg.BillingConfig.QueueName = getEnv("BILLING_QUEUE", cfg.BillingConfig.QueueName)
	cfg.JobsIntervals.PendingSweepMs = getEnvAsInt64("PENDING_SWEEP_MS", cfg.JobsIntervals.PendingSweepMs)
	cfg.JobsIntervals.QueueDepthMetricsMs = getEnvAsInt64("QUEUE_DEPTH_METRICS_MS", cfg.JobsIntervals.QueueDepthMetricsMs)
	cfg.ServerConfig.RateLimitPerMinute = getEnvAsInt("RATE_LIMIT_PER_MINUTE", cfg.ServerConfig.RateLimitPerMinute)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *AppConfigs) Validate() error {
	if !common.SupportedEnvs[c.Env] {
		return fmt.Errorf("unsupported env: %s", c.Env)
	}
	if c.AuthSecret == "" {
		return fmt.Errorf("auth secret is required: set %sAUTH_SECRET", envPrefix)
	}
	if c.QueueConfig.Capacity <= 0 {
		return fmt.Errorf("invalid queue capacity: %d", c.QueueConfig.Capacity)
	}
	if c.QueueConfig.MaxRetries < 0 {
		return fmt.Errorf("invalid max retries: %d", c.QueueConfig.MaxRetries)
	}
	if c.WorkersConfig.Steady <= 0 || c.WorkersConfig.Max < c.WorkersConfig.Steady {
		return fmt.Errorf("invalid workers config: steady=%d, max=%d", c.WorkersConfig.Steady, c.WorkersConfig.Max)
	}
	if c.ClassifierConfig.Url == "" {
		return fmt.Errorf("classifier url is required: set %sCLASSIFIER_URL", envPrefix)
	}
	if c.ClassifierConfig.TimeoutMs <= 0 {
		return fmt.Errorf("invalid classifier timeout: %dms", c.ClassifierConfig.TimeoutMs)
	}
	if c.JobsIntervals.PendingSweepMs < 0 || c.JobsIntervals.QueueDepthMetricsMs <= 0 {
		return fmt.Errorf("invalid jobs intervals: sweep=%dms, metrics=%dms", c.JobsIntervals.PendingSweepMs, c.JobsIntervals.QueueDepthMetricsMs)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(envPrefix + key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	value, err := strconv.ParseInt(getEnv(key, ""), 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}
