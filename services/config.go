package services

import (
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	WebSocket   WebSocketConfig
	AI          AIConfig
	Email       EmailConfig
	SMS         SMSConfig
	Stream      StreamConfig
	BotCheck    BotCheckConfig
	RateLimit   RateLimitConfig
	Business    BusinessConfig
}

type ServerConfig struct {
	Port           string
	TrustedProxies string
}

type DatabaseConfig struct {
	URL          string
	Seed         bool
	LogLevel     string
	MaxIdleConns int
	MaxOpenConns int
}

type RedisConfig struct {
	URL string
}

type JWTConfig struct {
	Secret string
}

type WebSocketConfig struct {
	AllowedOrigins string
}

type AIConfig struct {
	Provider      string // "openai" or "gemini"
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	GeminiAPIKey  string
	GeminiModel   string
	Timeout       time.Duration
}

type EmailConfig struct {
	ResendAPIKey  string
	ResendBaseURL string
	From          string
}

type SMSConfig struct {
	TelnyxAPIKey       string
	TelnyxBaseURL      string
	FromNumber         string
	MessagingProfileID string
	CampaignDelay      time.Duration
}

type StreamConfig struct {
	CloudflareAccountID string
	CloudflareAPIToken  string
	CloudflareBaseURL   string
	MaxDurationSeconds  int
}

type BotCheckConfig struct {
	TurnstileSecret string
	TurnstileURL    string
	MinFillDuration time.Duration
}

// RateLimitConfig holds per-feature hourly thresholds.
type RateLimitConfig struct {
	Backend        string // "postgres" or "redis"
	Hormone        int
	Face           int
	Journey        int
	Lead           int
	Upload         int
	LabUploadsHour int
}

// BusinessConfig is the spa's own contact information, used for BCCs and
// notification targets.
type BusinessConfig struct {
	Name    string
	Email   string
	Phone   string
	SiteURL string
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("environment", "development")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.trusted_proxies", "")
	viper.SetDefault("websocket.allowed_origins", "")
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.seed", "true")
	viper.SetDefault("database.log_level", "silent")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("redis.url", "")
	viper.SetDefault("ai.provider", "openai")
	viper.SetDefault("ai.timeout", "60s")
	viper.SetDefault("openai.api_key", "")
	viper.SetDefault("openai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("gemini.model", "gemini-2.5-flash")
	viper.SetDefault("resend.api_key", "")
	viper.SetDefault("resend.base_url", "https://api.resend.com")
	viper.SetDefault("email.from", "")
	viper.SetDefault("telnyx.api_key", "")
	viper.SetDefault("telnyx.base_url", "https://api.telnyx.com")
	viper.SetDefault("telnyx.from_number", "")
	viper.SetDefault("telnyx.messaging_profile_id", "")
	viper.SetDefault("sms.campaign_delay", "1s")
	viper.SetDefault("cloudflare.account_id", "")
	viper.SetDefault("cloudflare.api_token", "")
	viper.SetDefault("cloudflare.base_url", "https://api.cloudflare.com/client/v4")
	viper.SetDefault("stream.max_duration_seconds", "600")
	viper.SetDefault("turnstile.secret", "")
	viper.SetDefault("turnstile.url", "https://challenges.cloudflare.com/turnstile/v0/siteverify")
	viper.SetDefault("botcheck.min_fill_duration", "3s")
	viper.SetDefault("ratelimit.backend", "postgres")
	viper.SetDefault("ratelimit.hormone", "5")
	viper.SetDefault("ratelimit.face", "5")
	viper.SetDefault("ratelimit.journey", "5")
	viper.SetDefault("ratelimit.lead", "20")
	viper.SetDefault("ratelimit.upload", "10")
	viper.SetDefault("ratelimit.lab_uploads_hour", "3")
	viper.SetDefault("business.name", "Med Spa")
	viper.SetDefault("business.email", "")
	viper.SetDefault("business.phone", "")
	viper.SetDefault("business.site_url", "http://localhost:3000")

	// Map environment variables to config keys
	viper.BindEnv("environment", "ENVIRONMENT")
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.trusted_proxies", "TRUSTED_PROXIES")
	viper.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.seed", "DATABASE_SEED")
	viper.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("redis.url", "REDIS_URL")
	viper.BindEnv("ai.provider", "AI_PROVIDER")
	viper.BindEnv("ai.timeout", "AI_TIMEOUT")
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	viper.BindEnv("openai.model", "OPENAI_MODEL")
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("gemini.model", "GEMINI_MODEL")
	viper.BindEnv("resend.api_key", "RESEND_API_KEY")
	viper.BindEnv("resend.base_url", "RESEND_BASE_URL")
	viper.BindEnv("email.from", "EMAIL_FROM")
	viper.BindEnv("telnyx.api_key", "TELNYX_API_KEY")
	viper.BindEnv("telnyx.base_url", "TELNYX_BASE_URL")
	viper.BindEnv("telnyx.from_number", "TELNYX_FROM_NUMBER")
	viper.BindEnv("telnyx.messaging_profile_id", "TELNYX_MESSAGING_PROFILE_ID")
	viper.BindEnv("sms.campaign_delay", "SMS_CAMPAIGN_DELAY")
	viper.BindEnv("cloudflare.account_id", "CLOUDFLARE_ACCOUNT_ID")
	viper.BindEnv("cloudflare.api_token", "CLOUDFLARE_STREAM_API_TOKEN")
	viper.BindEnv("cloudflare.base_url", "CLOUDFLARE_BASE_URL")
	viper.BindEnv("stream.max_duration_seconds", "STREAM_MAX_DURATION_SECONDS")
	viper.BindEnv("turnstile.secret", "TURNSTILE_SECRET_KEY")
	viper.BindEnv("turnstile.url", "TURNSTILE_VERIFY_URL")
	viper.BindEnv("botcheck.min_fill_duration", "BOTCHECK_MIN_FILL_DURATION")
	viper.BindEnv("ratelimit.backend", "RATE_LIMIT_BACKEND")
	viper.BindEnv("ratelimit.hormone", "RATE_LIMIT_HORMONE_PER_HOUR")
	viper.BindEnv("ratelimit.face", "RATE_LIMIT_FACE_PER_HOUR")
	viper.BindEnv("ratelimit.journey", "RATE_LIMIT_JOURNEY_PER_HOUR")
	viper.BindEnv("ratelimit.lead", "RATE_LIMIT_LEAD_PER_HOUR")
	viper.BindEnv("ratelimit.upload", "RATE_LIMIT_UPLOAD_PER_HOUR")
	viper.BindEnv("ratelimit.lab_uploads_hour", "RATE_LIMIT_LAB_UPLOADS_PER_HOUR")
	viper.BindEnv("business.name", "BUSINESS_NAME")
	viper.BindEnv("business.email", "BUSINESS_EMAIL")
	viper.BindEnv("business.phone", "BUSINESS_PHONE")
	viper.BindEnv("business.site_url", "SITE_URL")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Environment: viper.GetString("environment"),
		Server: ServerConfig{
			Port:           viper.GetString("server.port"),
			TrustedProxies: viper.GetString("server.trusted_proxies"),
		},
		Database: DatabaseConfig{
			URL:          viper.GetString("database.url"),
			Seed:         viper.GetBool("database.seed"),
			LogLevel:     viper.GetString("database.log_level"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("redis.url"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
		},
		AI: AIConfig{
			Provider:      strings.ToLower(viper.GetString("ai.provider")),
			OpenAIAPIKey:  viper.GetString("openai.api_key"),
			OpenAIBaseURL: viper.GetString("openai.base_url"),
			OpenAIModel:   viper.GetString("openai.model"),
			GeminiAPIKey:  viper.GetString("gemini.api_key"),
			GeminiModel:   viper.GetString("gemini.model"),
			Timeout:       viper.GetDuration("ai.timeout"),
		},
		Email: EmailConfig{
			ResendAPIKey:  viper.GetString("resend.api_key"),
			ResendBaseURL: viper.GetString("resend.base_url"),
			From:          viper.GetString("email.from"),
		},
		SMS: SMSConfig{
			TelnyxAPIKey:       viper.GetString("telnyx.api_key"),
			TelnyxBaseURL:      viper.GetString("telnyx.base_url"),
			FromNumber:         viper.GetString("telnyx.from_number"),
			MessagingProfileID: viper.GetString("telnyx.messaging_profile_id"),
			CampaignDelay:      viper.GetDuration("sms.campaign_delay"),
		},
		Stream: StreamConfig{
			CloudflareAccountID: viper.GetString("cloudflare.account_id"),
			CloudflareAPIToken:  viper.GetString("cloudflare.api_token"),
			CloudflareBaseURL:   viper.GetString("cloudflare.base_url"),
			MaxDurationSeconds:  viper.GetInt("stream.max_duration_seconds"),
		},
		BotCheck: BotCheckConfig{
			TurnstileSecret: viper.GetString("turnstile.secret"),
			TurnstileURL:    viper.GetString("turnstile.url"),
			MinFillDuration: viper.GetDuration("botcheck.min_fill_duration"),
		},
		RateLimit: RateLimitConfig{
			Backend:        strings.ToLower(viper.GetString("ratelimit.backend")),
			Hormone:        viper.GetInt("ratelimit.hormone"),
			Face:           viper.GetInt("ratelimit.face"),
			Journey:        viper.GetInt("ratelimit.journey"),
			Lead:           viper.GetInt("ratelimit.lead"),
			Upload:         viper.GetInt("ratelimit.upload"),
			LabUploadsHour: viper.GetInt("ratelimit.lab_uploads_hour"),
		},
		Business: BusinessConfig{
			Name:    viper.GetString("business.name"),
			Email:   viper.GetString("business.email"),
			Phone:   viper.GetString("business.phone"),
			SiteURL: strings.TrimRight(viper.GetString("business.site_url"), "/"),
		},
	}
}

// IsProduction reports whether cookies should be marked Secure.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
