package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Host            string
	Port            string
	RequestTimeout  time.Duration
	AnalysisTimeout time.Duration
	MaxUploadSize   int64
	LogLevel        string

	UploadDir    string
	PublicPrefix string

	GeminiAPIKey    string
	GeminiModel     string
	PromptTextLimit int

	OCRLanguage string

	CORSAllowedOrigins []string

	AzureAccountName string
	AzureAccountKey  string
	AzureContainer   string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// ArchiveEnabled reports whether original uploads should be copied to Azure Blob Storage.
func (c *Config) ArchiveEnabled() bool {
	return c.AzureAccountName != "" && c.AzureAccountKey != "" && c.AzureContainer != ""
}

// LoadFromEnv reads the process environment, after merging an optional .env file.
func LoadFromEnv() (*Config, error) {
	// A missing .env file is not an error
	_ = godotenv.Load()

	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "3000"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 60*time.Second),
		AnalysisTimeout:    parseDurationOrDefault("ANALYSIS_TIMEOUT", 45*time.Second),
		MaxUploadSize:      parseIntOrDefault("MAX_UPLOAD_SIZE", 5*1024*1024), // 5MB
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		UploadDir:          getEnvOrDefault("UPLOAD_DIR", "public/uploads"),
		PublicPrefix:       getEnvOrDefault("PUBLIC_PREFIX", "/uploads"),
		GeminiAPIKey:       strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:        getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		PromptTextLimit:    int(parseIntOrDefault("PROMPT_TEXT_LIMIT", 5000)),
		OCRLanguage:        getEnvOrDefault("OCR_LANGUAGE", "eng"),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		AzureAccountName:   strings.TrimSpace(os.Getenv("AZURE_STORAGE_ACCOUNT")),
		AzureAccountKey:    strings.TrimSpace(os.Getenv("AZURE_STORAGE_KEY")),
		AzureContainer:     strings.TrimSpace(os.Getenv("AZURE_STORAGE_CONTAINER")),
	}

	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_SIZE must be > 0 (got %d)", cfg.MaxUploadSize)
	}
	if cfg.PromptTextLimit <= 0 {
		return nil, fmt.Errorf("PROMPT_TEXT_LIMIT must be > 0 (got %d)", cfg.PromptTextLimit)
	}
	if cfg.RequestTimeout <= 0 || cfg.AnalysisTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be > 0 (got request=%s, analysis=%s)",
			cfg.RequestTimeout, cfg.AnalysisTimeout)
	}
	if !strings.HasPrefix(cfg.PublicPrefix, "/") {
		return nil, fmt.Errorf("PUBLIC_PREFIX must start with '/' (got %q)", cfg.PublicPrefix)
	}
	cfg.PublicPrefix = strings.TrimRight(cfg.PublicPrefix, "/")
	if cfg.PublicPrefix == "" {
		return nil, fmt.Errorf("PUBLIC_PREFIX must not be the site root")
	}
	return cfg, nil
}

// RequireAPIKey fails when the generative model credentials are missing.
func (c *Config) RequireAPIKey() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is not set")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
