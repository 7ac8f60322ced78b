package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// AI provider constants
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	DatabaseURL string
	RedisURL    string
	Port        string
	Env         string
	LogLevel    string
	LogFormat   string

	// AI provider selection is an explicit value resolved once at start,
	// not shared mutable state read mid-run.
	AIProvider      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	TextModel       string
	SearchModel     string
	ImageModel      string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	MailFrom string
	SiteURL  string

	BlobEndpoint  string
	BlobAccessKey string
	BlobSecretKey string
	BlobBucket    string
	BlobPublicURL string
	BlobUseSSL    bool

	DiscoverySchedule string
	DigestSchedule    string
	Timezone          string
	ItemCooldown      time.Duration
	EmailDailyCap     int
	SeedDevData       bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnvWithDefault("REDIS_URL", "redis://localhost:6379/0"),
		Port:        getEnvWithDefault("PORT", "8080"),
		Env:         getEnvWithDefault("ENV", "development"),
		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat:   getEnvWithDefault("LOG_FORMAT", "text"),

		AIProvider:      getEnvWithDefault("AI_PROVIDER", ProviderOpenAI),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		TextModel:       getEnvWithDefault("TEXT_MODEL", "gpt-4o"),
		SearchModel:     getEnvWithDefault("SEARCH_MODEL", "gpt-4o-search-preview"),
		ImageModel:      getEnvWithDefault("IMAGE_MODEL", "gpt-image-1"),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: getEnvInt("SMTP_PORT", 587),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),
		MailFrom: getEnvWithDefault("MAIL_FROM", "nyhedsbrev@tidende.dk"),
		SiteURL:  getEnvWithDefault("SITE_URL", "https://tidende.dk"),

		BlobEndpoint:  os.Getenv("BLOB_ENDPOINT"),
		BlobAccessKey: os.Getenv("BLOB_ACCESS_KEY"),
		BlobSecretKey: os.Getenv("BLOB_SECRET_KEY"),
		BlobBucket:    getEnvWithDefault("BLOB_BUCKET", "article-images"),
		BlobPublicURL: os.Getenv("BLOB_PUBLIC_URL"),
		BlobUseSSL:    getEnvBool("BLOB_USE_SSL", true),

		DiscoverySchedule: getEnvWithDefault("DISCOVERY_SCHEDULE", "0 6 * * *"),
		DigestSchedule:    getEnvWithDefault("DIGEST_SCHEDULE", "0 8 * * 1"),
		Timezone:          getEnvWithDefault("TIMEZONE", "Europe/Copenhagen"),
		ItemCooldown:      getEnvDuration("ITEM_COOLDOWN", 60*time.Second),
		EmailDailyCap:     getEnvInt("EMAIL_DAILY_CAP", 10),
		SeedDevData:       getEnvBool("SEED_DEV_DATA", false),
	}
}

// Validate reports configuration errors that must stop the process before any
// work is attempted.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.AIProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER=openai")
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER=anthropic")
		}
		// Image generation always goes through OpenAI regardless of the
		// text provider.
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for image generation")
		}
	default:
		return fmt.Errorf("unknown AI_PROVIDER %q", c.AIProvider)
	}
	return nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
