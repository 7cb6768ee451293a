package config

import (
	"fmt"
	"image"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/layout"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/internal/render"
	"github.com/CyberwizD/Distributed-Notification-System/services/certificate_service/pkg/retry"
)

// Config holds certificate service configuration loaded from the environment.
type Config struct {
	AppName   string
	LogLevel  string
	LogFormat string
	HTTPPort  string

	RabbitURL        string
	CertificateQueue string
	DeadLetterQueue  string
	OutcomeQueue     string
	PrefetchCount    int
	ConsumerCount    int
	MaxDeliveries    int

	// WorkerCount bounds the participants rendered concurrently per batch.
	WorkerCount int

	DatabaseURL string
	StatusTable string
	RedisURL    string
	DedupFile   string
	ClaimTTL    time.Duration

	S3Bucket   string
	S3Prefix   string
	AWSRegion  string
	S3Endpoint string
	OutputDir  string

	AcceptanceURL    string
	AcceptanceAPIKey string
	HTTPTimeout      time.Duration

	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration

	NameFontPath    string
	NameFontSize    float64
	DetailsFontPath string
	DetailsFontSize float64
	CodeFontPath    string
	CodeFontSize    float64

	LogoSize      int
	LogoPadding   int
	BadgeMarginX  int
	BadgeMarginY  int
	DetailLines   int
	DetailLineGap int
	DetailOffsetY int
}

// Load loads configuration and validates what the queue consumer needs.
func Load() (*Config, error) {
	cfg := FromEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv reads the environment (and a .env file when present) without
// validating it.
func FromEnv() *Config {
	_ = godotenv.Load()

	fonts := render.DefaultFontConfig()
	lay := layout.DefaultConfig()

	return &Config{
		AppName:   getEnv("APP_NAME", "certificate_service"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		HTTPPort:  getEnv("HTTP_PORT", "8084"),

		RabbitURL:        getEnv("RABBITMQ_URL", ""),
		CertificateQueue: getEnv("CERTIFICATE_QUEUE", "certificate.queue"),
		DeadLetterQueue:  getEnv("CERTIFICATE_DLQ", "failed.queue"),
		OutcomeQueue:     getEnv("OUTCOME_QUEUE", "certificate.outcomes"),
		PrefetchCount:    getEnvAsInt("PREFETCH", 1),
		ConsumerCount:    getEnvAsInt("CONSUMER_COUNT", 1),
		MaxDeliveries:    getEnvAsInt("MAX_DELIVERIES", 5),

		WorkerCount: getEnvAsInt("WORKER_COUNT", 1),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		StatusTable: getEnv("STATUS_TABLE", "certificate_statuses"),
		RedisURL:    getEnv("REDIS_URL", ""),
		DedupFile:   getEnv("DEDUP_FILE", ""),
		ClaimTTL:    getEnvAsDuration("CLAIM_TTL", 5*time.Minute),

		S3Bucket:   getEnv("S3_BUCKET", ""),
		S3Prefix:   getEnv("S3_PREFIX", ""),
		AWSRegion:  getEnv("AWS_REGION", "us-east-1"),
		S3Endpoint: getEnv("S3_ENDPOINT", ""),
		OutputDir:  getEnv("OUTPUT_DIR", ""),

		AcceptanceURL:    getEnv("ACCEPTANCE_URL", ""),
		AcceptanceAPIKey: getEnv("ACCEPTANCE_API_KEY", ""),
		HTTPTimeout:      getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),

		RetryMaxAttempts:    getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialBackoff: getEnvAsDuration("RETRY_INITIAL_BACKOFF", 0),
		RetryMaxBackoff:     getEnvAsDuration("RETRY_MAX_BACKOFF", 10*time.Second),

		NameFontPath:    getEnv("NAME_FONT_PATH", ""),
		NameFontSize:    getEnvAsFloat("NAME_FONT_SIZE", fonts.Name.Size),
		DetailsFontPath: getEnv("DETAILS_FONT_PATH", ""),
		DetailsFontSize: getEnvAsFloat("DETAILS_FONT_SIZE", fonts.Details.Size),
		CodeFontPath:    getEnv("CODE_FONT_PATH", ""),
		CodeFontSize:    getEnvAsFloat("CODE_FONT_SIZE", fonts.Code.Size),

		LogoSize:      getEnvAsInt("LOGO_SIZE", lay.LogoSize.X),
		LogoPadding:   getEnvAsInt("LOGO_PADDING", lay.LogoPadding),
		BadgeMarginX:  getEnvAsInt("BADGE_MARGIN_X", lay.BadgeMarginX),
		BadgeMarginY:  getEnvAsInt("BADGE_MARGIN_Y", lay.BadgeMarginY),
		DetailLines:   getEnvAsInt("DETAIL_LINES", lay.DetailLines),
		DetailLineGap: getEnvAsInt("DETAIL_LINE_GAP", lay.DetailLineGap),
		DetailOffsetY: getEnvAsInt("DETAIL_OFFSET_Y", lay.DetailOffsetY),
	}
}

func (c *Config) validate() error {
	var missing []string
	if c.RabbitURL == "" {
		missing = append(missing, "RABBITMQ_URL")
	}
	if c.S3Bucket == "" && c.OutputDir == "" {
		missing = append(missing, "S3_BUCKET or OUTPUT_DIR")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.RetryMaxAttempts)
	}
	return nil
}

// Layout returns the layout constants.
func (c *Config) Layout() layout.Config {
	return layout.Config{
		LogoSize:      image.Pt(c.LogoSize, c.LogoSize),
		LogoPadding:   c.LogoPadding,
		BadgeMarginX:  c.BadgeMarginX,
		BadgeMarginY:  c.BadgeMarginY,
		DetailLines:   c.DetailLines,
		DetailLineGap: c.DetailLineGap,
		DetailOffsetY: c.DetailOffsetY,
	}
}

// Fonts returns the font selection. Empty paths use the bundled Go fonts.
func (c *Config) Fonts() render.FontConfig {
	return render.FontConfig{
		Name:    render.FontSpec{Path: c.NameFontPath, Size: c.NameFontSize},
		Details: render.FontSpec{Path: c.DetailsFontPath, Size: c.DetailsFontSize},
		Code:    render.FontSpec{Path: c.CodeFontPath, Size: c.CodeFontSize},
	}
}

// Retry returns the delivery retry policy.
func (c *Config) Retry() retry.Config {
	return retry.Config{
		MaxAttempts:    c.RetryMaxAttempts,
		InitialBackoff: c.RetryInitialBackoff,
		MaxBackoff:     c.RetryMaxBackoff,
		JitterFactor:   0.2,
	}
}

func getEnv(key, def string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	return value
}

func getEnvAsInt(key string, def int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("invalid int for %s, using default %d: %v", key, def, err)
			return def
		}
		return i
	}
	return def
}

func getEnvAsFloat(key string, def float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			log.Printf("invalid float for %s, using default %g: %v", key, def, err)
			return def
		}
		return f
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			log.Printf("invalid duration for %s, using default %s: %v", key, def, err)
			return def
		}
		return d
	}
	return def
}
