package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	DatabaseURL     string
	CORSAllowOrigin []string

	LLMProvider        string
	LLMModel           string
	AnthropicAPIKey    string
	OpenAIAPIKey       string
	VertexProject      string
	VertexRegion       string
	ProviderTimeout    time.Duration
	ProviderMaxRetries int
	ProviderMaxTokens  int

	MaxContentBytes int
	MarkQueueFailed bool

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	EventsQueueURL string

	RateLimitRPS   float64
	RateLimitBurst int
}

// Defaults returns the configuration used when neither a config file nor the
// environment sets a value.
func Defaults() Config {
	return Config{
		Port:              "8080",
		Env:               "dev",
		CORSAllowOrigin:   []string{"http://localhost:3000"},
		LLMProvider:       "anthropic",
		VertexRegion:      "us-central1",
		ProviderTimeout:   30 * time.Second,
		ProviderMaxTokens: 500,
		MaxContentBytes:   100 * 1024,
		ObjectStoreType:   "none",
		LocalStoreDir:     "./data",
		RateLimitBurst:    10,
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// ANALYZER_CONFIG, and environment variables, in increasing precedence.
func Load() Config {
	loadEnvFiles(".env", "cmd/.env")

	cfg := Defaults()
	if path := os.Getenv("ANALYZER_CONFIG"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			log.Printf("config file %s ignored: %v", path, err)
		}
	}
	applyEnv(&cfg)

	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}
	return cfg
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Env = normalizeEnv(getEnv("ENV", cfg.Env))
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	if raw := os.Getenv("CORS_ALLOW_ORIGINS"); raw != "" {
		cfg.CORSAllowOrigin = splitAndTrim(raw)
	}

	cfg.LLMProvider = normalizeProvider(getEnv("LLM_PROVIDER", cfg.LLMProvider))
	cfg.LLMModel = getEnv("LLM_MODEL", cfg.LLMModel)
	cfg.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.VertexProject = getEnv("VERTEX_PROJECT", cfg.VertexProject)
	cfg.VertexRegion = getEnv("VERTEX_REGION", cfg.VertexRegion)
	cfg.ProviderTimeout = getDuration("PROVIDER_TIMEOUT", cfg.ProviderTimeout)
	cfg.ProviderMaxRetries = getInt("PROVIDER_MAX_RETRIES", cfg.ProviderMaxRetries)
	cfg.ProviderMaxTokens = getInt("PROVIDER_MAX_TOKENS", cfg.ProviderMaxTokens)

	cfg.MaxContentBytes = getInt("MAX_CONTENT_BYTES", cfg.MaxContentBytes)
	cfg.MarkQueueFailed = getBool("QUEUE_MARK_FAILED", cfg.MarkQueueFailed)

	cfg.ObjectStoreType = normalizeStoreType(getEnv("OBJECT_STORE", cfg.ObjectStoreType))
	cfg.LocalStoreDir = getEnv("LOCAL_STORE_DIR", cfg.LocalStoreDir)
	cfg.AWSRegion = getEnv("AWS_REGION", cfg.AWSRegion)
	cfg.S3Bucket = getEnv("S3_BUCKET", cfg.S3Bucket)
	cfg.S3Prefix = getEnv("S3_PREFIX", cfg.S3Prefix)
	cfg.SSEKMSKeyID = getEnv("SSE_KMS_KEY_ID", cfg.SSEKMSKeyID)

	cfg.EventsQueueURL = getEnv("EVENTS_SQS_QUEUE_URL", cfg.EventsQueueURL)

	cfg.RateLimitRPS = getFloat("RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.RateLimitBurst = getInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		log.Printf("invalid %s=%q, using %d", key, raw, def)
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		log.Printf("invalid %s=%q, using %g", key, raw, def)
		return def
	}
	return f
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using %t", key, raw, def)
		return def
	}
	return b
}

// getDuration accepts Go durations ("45s") or a bare number of seconds.
func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := parseDuration(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using %s", key, raw, def)
		return def
	}
	return d
}

func parseDuration(raw string) (time.Duration, error) {
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, strconv.ErrRange
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, strconv.ErrRange
	}
	return d, nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai":
		return "openai"
	case "vertex", "gemini":
		return "vertex"
	default:
		return "anthropic"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "local":
		return "local"
	default:
		return "none"
	}
}
