// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, Telegram transport
// tuning, job dispatch, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "telegram-bridge")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// TelegramConfig tunes the chat transport client and its credential cache.
type TelegramConfig struct {
	Transport   string        // TELEGRAM_TRANSPORT: auto|sdk|http
	APITimeout  time.Duration // TELEGRAM_API_TIMEOUT per-call bound
	ClientTTL   time.Duration // BOT_CLIENT_TTL cached client lifetime
	ClientCap   int           // BOT_CLIENT_CAP cache size before sweeping
	ReplyTTL    time.Duration // ACTIVE_REPLY_TTL staff reply-target lifetime
	LinkCodeTTL time.Duration // LINK_CODE_TTL staff link-code lifetime
}

// AMQPConfig defines the job queue connection. An empty URL selects the
// inline (synchronous) dispatcher.
type AMQPConfig struct {
	URL   string // AMQP_URL
	Queue string // AMQP_QUEUE
}

// S3Config defines the object store used for presigned attachment URLs.
// All-empty means disabled.
type S3Config struct {
	Endpoint   string        // S3_ENDPOINT
	Region     string        // S3_REGION
	Bucket     string        // S3_BUCKET
	AccessKey  string        // S3_ACCESS_KEY
	SecretKey  string        // S3_SECRET_KEY
	PathStyle  bool          // S3_PATH_STYLE
	PresignTTL time.Duration // S3_PRESIGN_TTL
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	DBPath        string // SQLite path
	BaseURL       string // public web UI origin for conversation links
	ArchiveChatID int64  // ARCHIVE_CHAT_ID audit channel; 0 disables

	// Telegram transport
	Telegram TelegramConfig

	// Job dispatch
	AMQP AMQPConfig

	// Object storage
	S3 S3Config

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:        getenv("DB_PATH", "bridge.db"),
		BaseURL:       strings.TrimRight(getenv("BASE_URL", ""), "/"),
		ArchiveChatID: getint64("ARCHIVE_CHAT_ID", 0),

		// Telegram transport
		Telegram: TelegramConfig{
			Transport:   strings.ToLower(getenv("TELEGRAM_TRANSPORT", "auto")),
			APITimeout:  getdur("TELEGRAM_API_TIMEOUT", 10*time.Second),
			ClientTTL:   getdur("BOT_CLIENT_TTL", 30*time.Minute),
			ClientCap:   getint("BOT_CLIENT_CAP", 256),
			ReplyTTL:    getdur("ACTIVE_REPLY_TTL", 10*time.Minute),
			LinkCodeTTL: getdur("LINK_CODE_TTL", 15*time.Minute),
		},

		// Job dispatch
		AMQP: AMQPConfig{
			URL:   getenv("AMQP_URL", ""),
			Queue: getenv("AMQP_QUEUE", "bridge-jobs"),
		},

		// Object storage
		S3: S3Config{
			Endpoint:   getenv("S3_ENDPOINT", ""),
			Region:     getenv("S3_REGION", "us-east-1"),
			Bucket:     getenv("S3_BUCKET", ""),
			AccessKey:  getenv("S3_ACCESS_KEY", ""),
			SecretKey:  getenv("S3_SECRET_KEY", ""),
			PathStyle:  getbool("S3_PATH_STYLE", true),
			PresignTTL: getdur("S3_PRESIGN_TTL", 15*time.Minute),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 25.0),
		RateBurst: getint("RATE_BURST", 50),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "telegram-bridge"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	switch cfg.Telegram.Transport {
	case "auto", "sdk", "http":
	default:
		return cfg, errors.New("TELEGRAM_TRANSPORT must be one of: auto, sdk, http")
	}
	if cfg.Telegram.APITimeout <= 0 {
		return cfg, errors.New("TELEGRAM_API_TIMEOUT must be > 0")
	}
	if cfg.Telegram.ClientTTL <= 0 {
		return cfg, errors.New("BOT_CLIENT_TTL must be > 0")
	}
	if cfg.Telegram.ClientCap < 1 {
		return cfg, errors.New("BOT_CLIENT_CAP must be >= 1")
	}
	if cfg.Telegram.ReplyTTL <= 0 {
		return cfg, errors.New("ACTIVE_REPLY_TTL must be > 0")
	}
	if cfg.Telegram.LinkCodeTTL <= 0 {
		return cfg, errors.New("LINK_CODE_TTL must be > 0")
	}
	if cfg.AMQP.URL != "" && strings.TrimSpace(cfg.AMQP.Queue) == "" {
		return cfg, errors.New("AMQP_QUEUE must not be empty when AMQP_URL is set")
	}
	if cfg.S3.PresignTTL <= 0 {
		return cfg, errors.New("S3_PRESIGN_TTL must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
