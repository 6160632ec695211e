package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the YAML layout accepted via ANALYZER_CONFIG. Zero values
// leave the current setting untouched.
type fileConfig struct {
	Port        string   `yaml:"port"`
	Env         string   `yaml:"env"`
	DatabaseURL string   `yaml:"database_url"`
	CORSOrigins []string `yaml:"cors_allow_origins"`

	Provider struct {
		Name       string `yaml:"name"`
		Model      string `yaml:"model"`
		Timeout    string `yaml:"timeout"`
		MaxRetries int    `yaml:"max_retries"`
		MaxTokens  int    `yaml:"max_tokens"`
		Vertex     struct {
			Project string `yaml:"project"`
			Region  string `yaml:"region"`
		} `yaml:"vertex"`
	} `yaml:"provider"`

	Pipeline struct {
		MaxContentBytes int  `yaml:"max_content_bytes"`
		MarkQueueFailed bool `yaml:"mark_queue_failed"`
	} `yaml:"pipeline"`

	ObjectStore struct {
		Type     string `yaml:"type"`
		LocalDir string `yaml:"local_dir"`
		Region   string `yaml:"region"`
		Bucket   string `yaml:"bucket"`
		Prefix   string `yaml:"prefix"`
		KMSKeyID string `yaml:"kms_key_id"`
	} `yaml:"object_store"`

	Events struct {
		QueueURL string `yaml:"queue_url"`
	} `yaml:"events"`

	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return applyYAML(cfg, data)
}

func applyYAML(cfg *Config, data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	setString(&cfg.Port, fc.Port)
	if fc.Env != "" {
		cfg.Env = normalizeEnv(fc.Env)
	}
	setString(&cfg.DatabaseURL, fc.DatabaseURL)
	if len(fc.CORSOrigins) > 0 {
		cfg.CORSAllowOrigin = fc.CORSOrigins
	}

	if fc.Provider.Name != "" {
		cfg.LLMProvider = normalizeProvider(fc.Provider.Name)
	}
	setString(&cfg.LLMModel, fc.Provider.Model)
	if fc.Provider.Timeout != "" {
		d, err := parseDuration(fc.Provider.Timeout)
		if err != nil {
			return fmt.Errorf("provider.timeout: %w", err)
		}
		cfg.ProviderTimeout = d
	}
	setInt(&cfg.ProviderMaxRetries, fc.Provider.MaxRetries)
	setInt(&cfg.ProviderMaxTokens, fc.Provider.MaxTokens)
	setString(&cfg.VertexProject, fc.Provider.Vertex.Project)
	setString(&cfg.VertexRegion, fc.Provider.Vertex.Region)

	setInt(&cfg.MaxContentBytes, fc.Pipeline.MaxContentBytes)
	if fc.Pipeline.MarkQueueFailed {
		cfg.MarkQueueFailed = true
	}

	if fc.ObjectStore.Type != "" {
		cfg.ObjectStoreType = normalizeStoreType(fc.ObjectStore.Type)
	}
	setString(&cfg.LocalStoreDir, fc.ObjectStore.LocalDir)
	setString(&cfg.AWSRegion, fc.ObjectStore.Region)
	setString(&cfg.S3Bucket, fc.ObjectStore.Bucket)
	setString(&cfg.S3Prefix, fc.ObjectStore.Prefix)
	setString(&cfg.SSEKMSKeyID, fc.ObjectStore.KMSKeyID)

	setString(&cfg.EventsQueueURL, fc.Events.QueueURL)

	if fc.RateLimit.RPS > 0 {
		cfg.RateLimitRPS = fc.RateLimit.RPS
	}
	setInt(&cfg.RateLimitBurst, fc.RateLimit.Burst)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}
