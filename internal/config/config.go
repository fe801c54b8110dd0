package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	Gemini   GeminiConfig
	Storage  StorageConfig
	BigQuery BigQueryConfig
	Redis    RedisConfig
	HTTP     HTTPConfig
}

// GeminiConfig configures the extraction model.
type GeminiConfig struct {
	APIKey        string        `envconfig:"GEMINI_API_KEY"`
	BaseURL       string        `envconfig:"GEMINI_BASE_URL"`
	APIVersion    string        `envconfig:"GEMINI_API_VERSION" default:"v1beta"`
	Model         string        `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	Timeout       time.Duration `envconfig:"GEMINI_TIMEOUT" default:"90s"`
	InlineLimitMB int64         `envconfig:"GEMINI_INLINE_LIMIT_MB" default:"20"`
}

// InlineLimitBytes returns the inline limit in bytes.
func (g GeminiConfig) InlineLimitBytes() int64 {
	return g.InlineLimitMB * 1024 * 1024
}

// StorageConfig configures Cloud Storage uploads.
type StorageConfig struct {
	Bucket string `envconfig:"GCS_BUCKET"`
}

// BigQueryConfig configures result persistence. An empty ProjectID disables it.
type BigQueryConfig struct {
	ProjectID string `envconfig:"BQ_PROJECT_ID"`
	DatasetID string `envconfig:"BQ_DATASET" default:"invoices"`
}

// Enabled reports whether persistence is configured.
func (b BigQueryConfig) Enabled() bool {
	return b.ProjectID != ""
}

// RedisConfig configures the job store and queue. An empty URL selects the
// in-memory implementations.
type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	JobTTL       time.Duration `envconfig:"REDIS_JOB_TTL" default:"168h"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
}

// Load reads an optional .env file and then the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: loading %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: processing environment: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return errors.New("config: GEMINI_API_KEY is required")
	}
	if c.Gemini.InlineLimitMB <= 0 {
		return errors.New("config: GEMINI_INLINE_LIMIT_MB must be positive")
	}
	return nil
}
