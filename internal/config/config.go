package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/techspec/internal/yamlutil"
)

// ErrConfigParse is returned when the config file cannot be read or decoded.
var ErrConfigParse = errors.New("parse config file")

// Providers.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	Port string

	// Auth; empty disables bearer checks.
	APIKey string

	// Text generation
	LLMProvider     string
	GeminiAPIKey    string
	GeminiModel     string
	AnthropicAPIKey string
	AnthropicModel  string
	LLMTimeout      time.Duration
	MaxPromptTokens int

	// Output
	OutputDir        string
	WriteTextSidecar bool

	// HTTP
	CORSAllowedOrigins []string
	MaxUploadBytes     int64

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Job state
	JobTTL time.Duration

	// PDF attachments
	PDFFallbackPdftotext bool
}

// fileConfig mirrors Config in the YAML file. Pointers distinguish unset
// keys from zero values.
type fileConfig struct {
	Port                 *string  `yaml:"port"`
	APIKey               *string  `yaml:"api_key"`
	LLMProvider          *string  `yaml:"llm_provider"`
	GeminiAPIKey         *string  `yaml:"gemini_api_key"`
	GeminiModel          *string  `yaml:"gemini_model"`
	AnthropicAPIKey      *string  `yaml:"anthropic_api_key"`
	AnthropicModel       *string  `yaml:"anthropic_model"`
	LLMTimeout           *string  `yaml:"llm_timeout"`
	MaxPromptTokens      *int     `yaml:"max_prompt_tokens"`
	OutputDir            *string  `yaml:"output_dir"`
	WriteTextSidecar     *bool    `yaml:"write_text_sidecar"`
	CORSAllowedOrigins   []string `yaml:"cors_allowed_origins"`
	MaxUploadBytes       *int64   `yaml:"max_upload_bytes"`
	WorkerCount          *int     `yaml:"worker_count"`
	MaxQueueSize         *int     `yaml:"max_queue_size"`
	JobTTL               *string  `yaml:"job_ttl"`
	PDFFallbackPdftotext *bool    `yaml:"pdf_fallback_pdftotext"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:                 "8090",
		LLMProvider:          ProviderGemini,
		GeminiModel:          "gemini-2.5-flash",
		AnthropicModel:       "claude-sonnet-4-5-20250929",
		LLMTimeout:           120 * time.Second,
		MaxPromptTokens:      30000,
		OutputDir:            "output",
		WriteTextSidecar:     true,
		CORSAllowedOrigins:   []string{"*"},
		MaxUploadBytes:       52428800, // 50MB
		WorkerCount:          4,
		MaxQueueSize:         100,
		JobTTL:               1 * time.Hour,
		PDFFallbackPdftotext: true,
	}
}

// Load builds the configuration from defaults, then the YAML file at
// path (or $TECHSPEC_CONFIG when path is empty), then the environment.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("TECHSPEC_CONFIG")
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("TECHSPEC_API_KEY", cfg.APIKey)
	cfg.LLMProvider = strings.ToLower(envOr("LLM_PROVIDER", cfg.LLMProvider))
	cfg.GeminiAPIKey = envOr("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.GeminiModel = envOr("GEMINI_MODEL", cfg.GeminiModel)
	cfg.AnthropicAPIKey = envOr("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	cfg.AnthropicModel = envOr("ANTHROPIC_MODEL", cfg.AnthropicModel)
	cfg.LLMTimeout = envDuration("LLM_TIMEOUT", cfg.LLMTimeout)
	cfg.MaxPromptTokens = envInt("MAX_PROMPT_TOKENS", cfg.MaxPromptTokens)
	cfg.OutputDir = envOr("OUTPUT_DIR", cfg.OutputDir)
	cfg.WriteTextSidecar = envBool("WRITE_TEXT_SIDECAR", cfg.WriteTextSidecar)
	cfg.CORSAllowedOrigins = envList("CORS_ALLOWED_ORIGINS", cfg.CORSAllowedOrigins)
	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.JobTTL = envDuration("JOB_TTL", cfg.JobTTL)
	cfg.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", cfg.PDFFallbackPdftotext)

	def := Defaults()
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = def.MaxQueueSize
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = def.JobTTL
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = def.LLMTimeout
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigParse, err)
	}
	var fc fileConfig
	if err := yamlutil.UnmarshalStrict(data, &fc); err != nil {
		return fmt.Errorf("%w %s: %w", ErrConfigParse, path, err)
	}

	setString(&c.Port, fc.Port)
	setString(&c.APIKey, fc.APIKey)
	setString(&c.LLMProvider, fc.LLMProvider)
	setString(&c.GeminiAPIKey, fc.GeminiAPIKey)
	setString(&c.GeminiModel, fc.GeminiModel)
	setString(&c.AnthropicAPIKey, fc.AnthropicAPIKey)
	setString(&c.AnthropicModel, fc.AnthropicModel)
	setString(&c.OutputDir, fc.OutputDir)
	if fc.MaxPromptTokens != nil {
		c.MaxPromptTokens = *fc.MaxPromptTokens
	}
	if fc.WriteTextSidecar != nil {
		c.WriteTextSidecar = *fc.WriteTextSidecar
	}
	if len(fc.CORSAllowedOrigins) > 0 {
		c.CORSAllowedOrigins = fc.CORSAllowedOrigins
	}
	if fc.MaxUploadBytes != nil {
		c.MaxUploadBytes = *fc.MaxUploadBytes
	}
	if fc.WorkerCount != nil {
		c.WorkerCount = *fc.WorkerCount
	}
	if fc.MaxQueueSize != nil {
		c.MaxQueueSize = *fc.MaxQueueSize
	}
	if fc.PDFFallbackPdftotext != nil {
		c.PDFFallbackPdftotext = *fc.PDFFallbackPdftotext
	}
	for _, d := range []struct {
		key string
		raw *string
		dst *time.Duration
	}{
		{"llm_timeout", fc.LLMTimeout, &c.LLMTimeout},
		{"job_ttl", fc.JobTTL, &c.JobTTL},
	} {
		if d.raw == nil {
			continue
		}
		v, err := time.ParseDuration(*d.raw)
		if err != nil {
			return fmt.Errorf("%w %s: %s: %w", ErrConfigParse, path, d.key, err)
		}
		*d.dst = v
	}
	return nil
}

// Validate checks that the selected provider has credentials. The API
// key for this service is optional.
func (c Config) Validate() error {
	switch c.LLMProvider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when LLM_PROVIDER=%s", ProviderGemini)
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when LLM_PROVIDER=%s", ProviderAnthropic)
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q (want %s or %s)", c.LLMProvider, ProviderGemini, ProviderAnthropic)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR must not be empty")
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated variable, dropping empty entries.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
