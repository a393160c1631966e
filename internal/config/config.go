package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const (
	defaultDataServiceBase = "https://mailnts.informatixsystems.com:8443/ords/intern"
	defaultPredictionURL   = "https://web-production-e2163.up.railway.app/predict/month"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Upstream   UpstreamConfig   `mapstructure:"upstream"`
	Prediction PredictionConfig `mapstructure:"prediction"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORSOrigins  string        `mapstructure:"cors_origins"`
}

// UpstreamConfig holds the REST data service endpoints.
// InsecureSkipVerify disables certificate verification toward these endpoints;
// the deployed data service uses a self-signed certificate.
type UpstreamConfig struct {
	AttendanceGetURL   string        `mapstructure:"attendance_get_url"`
	AttendanceSaveURL  string        `mapstructure:"attendance_save_url"`
	ExpenseGetURL      string        `mapstructure:"expense_get_url"`
	ExpenseSaveURL     string        `mapstructure:"expense_save_url"`
	IngredientsURL     string        `mapstructure:"ingredients_url"`
	AuthToken          string        `mapstructure:"auth_token"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

// PredictionConfig holds the external prediction service endpoint
type PredictionConfig struct {
	URL                string        `mapstructure:"url"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from an optional YAML file, an optional .env file
// and environment variables. An empty configPath skips the file.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	bindEnvVars(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv loads a .env file without overriding variables already set
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.cors_origins", "*")

	// Data service defaults
	v.SetDefault("upstream.attendance_get_url", defaultDataServiceBase+"/NTS/attendance")
	v.SetDefault("upstream.attendance_save_url", defaultDataServiceBase+"/NTS/attendance")
	v.SetDefault("upstream.expense_get_url", defaultDataServiceBase+"/NTS/expense")
	v.SetDefault("upstream.expense_save_url", defaultDataServiceBase+"/NTS/expense")
	v.SetDefault("upstream.ingredients_url", defaultDataServiceBase+"/mms_ingredients/all")
	v.SetDefault("upstream.auth_token", "")
	v.SetDefault("upstream.insecure_skip_verify", false)
	v.SetDefault("upstream.timeout", time.Duration(0))

	// Prediction defaults
	v.SetDefault("prediction.url", defaultPredictionURL)
	v.SetDefault("prediction.insecure_skip_verify", false)
	v.SetDefault("prediction.timeout", time.Duration(0))

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration.
// Server-only names win over the NEXT_PUBLIC_ names kept for older deployments.
func bindEnvVars(v *viper.Viper) {
	v.BindEnv("server.host", "SERVER_HOST")
	v.BindEnv("server.port", "SERVER_PORT", "PORT")
	v.BindEnv("server.cors_origins", "CORS_ALLOWED_ORIGINS")

	v.BindEnv("upstream.attendance_get_url", "ORDS_GET_URL", "NEXT_PUBLIC_ORDS_GET_URL")
	v.BindEnv("upstream.attendance_save_url", "ORDS_SAVE_URL", "NEXT_PUBLIC_ORDS_SAVE_URL")
	v.BindEnv("upstream.expense_get_url", "ORDS_EXPENSE_GET_URL", "NEXT_PUBLIC_ORDS_EXPENSE_GET_URL")
	v.BindEnv("upstream.expense_save_url", "ORDS_EXPENSE_SAVE_URL", "NEXT_PUBLIC_ORDS_EXPENSE_SAVE_URL")
	v.BindEnv("upstream.ingredients_url", "ORDS_INGREDIENTS_URL", "NEXT_PUBLIC_ORDS_INGREDIENTS_URL")
	v.BindEnv("upstream.auth_token", "ORDS_TOKEN", "NEXT_PUBLIC_ORDS_TOKEN")
	v.BindEnv("upstream.insecure_skip_verify", "ORDS_INSECURE_SKIP_VERIFY")
	v.BindEnv("upstream.timeout", "ORDS_TIMEOUT")

	v.BindEnv("prediction.url", "PREDICTION_URL")
	v.BindEnv("prediction.insecure_skip_verify", "PREDICTION_INSECURE_SKIP_VERIFY")

	v.BindEnv("logger.level", "LOG_LEVEL")
	v.BindEnv("logger.format", "LOG_FORMAT")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	endpoints := map[string]string{
		"upstream.attendance_get_url":  c.Upstream.AttendanceGetURL,
		"upstream.attendance_save_url": c.Upstream.AttendanceSaveURL,
		"upstream.expense_get_url":     c.Upstream.ExpenseGetURL,
		"upstream.expense_save_url":    c.Upstream.ExpenseSaveURL,
		"upstream.ingredients_url":     c.Upstream.IngredientsURL,
		"prediction.url":               c.Prediction.URL,
	}
	for key, raw := range endpoints {
		if err := validateEndpoint(raw); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	if c.Upstream.Timeout < 0 || c.Prediction.Timeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}

	return nil
}

func validateEndpoint(raw string) error {
	if raw == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	if u.RawQuery != "" {
		return fmt.Errorf("must not carry a query string")
	}
	return nil
}
