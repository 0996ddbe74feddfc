package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"GW_DB_MIN_CONNS" default:"1" validate:"min=0"`
	DBMaxConns  int32  `envconfig:"GW_DB_MAX_CONNS" default:"8" validate:"min=1,gtefield=DBMinConns"`

	ServerAddr         string `envconfig:"SERVER_ADDR" default:":8080"`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`

	// RedisURL switches the rate limiters to the shared sliding-window
	// backend. Empty keeps the in-memory fixed window.
	RedisURL string `envconfig:"REDIS_URL" default:""`

	// AdminAPIKeyHash is the bcrypt hash of the admin key. Empty disables
	// the admin-only endpoints.
	AdminAPIKeyHash string `envconfig:"ADMIN_API_KEY_HASH" default:""`

	RefreshIntervalMinutes int     `envconfig:"REFRESH_INTERVAL_MINUTES" default:"30" validate:"min=1"`
	SourceTimeoutSeconds   int     `envconfig:"SOURCE_TIMEOUT_SECONDS" default:"15" validate:"min=1"`
	RecentWindowHours      int     `envconfig:"RECENT_WINDOW_HOURS" default:"24" validate:"min=1"`
	DedupThreshold         float64 `envconfig:"DEDUP_THRESHOLD" default:"0.8" validate:"gt=0,lte=1"`

	SourcesFile      string `envconfig:"SOURCES_FILE" default:""`
	NotifyWebhookURL string `envconfig:"NOTIFY_WEBHOOK_URL" default:"" validate:"omitempty,url"`

	GeocodeEndpoint  string `envconfig:"GEOCODE_ENDPOINT" default:"" validate:"omitempty,url"`
	GeocodeUserAgent string `envconfig:"GEOCODE_USER_AGENT" default:"groundwire/1.0"`
}

// envValidate reports violations under the envconfig variable name so a
// startup failure names the environment variable to fix, not a Go field.
var envValidate = newEnvValidator()

func newEnvValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		if name := field.Tag.Get("envconfig"); name != "" {
			return name
		}
		return field.Name
	})
	return v
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if err := envValidate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			first := fieldErrs[0]
			if first.Param() != "" {
				return fmt.Errorf("%s fails constraint %s=%s", first.Field(), first.Tag(), first.Param())
			}
			return fmt.Errorf("%s fails constraint %s", first.Field(), first.Tag())
		}
		return err
	}
	return nil
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMinutes) * time.Minute
}

func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.SourceTimeoutSeconds) * time.Second
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
