// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Prediction PredictionConfig `mapstructure:"prediction"`
	Form       FormConfig       `mapstructure:"form"`
	Session    SessionConfig    `mapstructure:"session"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds, 0 = none
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

// PredictionConfig describes the remote prediction backend.
type PredictionConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	PredictPath string `mapstructure:"predict_path"`
	AssetsPath  string `mapstructure:"assets_path"`
	Timeout     int    `mapstructure:"timeout"` // milliseconds, 0 = wait for the backend
}

// FormConfig holds settings for the prediction form controller.
type FormConfig struct {
	SchemaPath string `mapstructure:"schema_path"` // empty = built-in schema
	Ordering   string `mapstructure:"ordering"`    // last_completed | last_issued
}

type SessionConfig struct {
	Store      string `mapstructure:"store"` // memory | redis
	TTL        int    `mapstructure:"ttl"`   // milliseconds
	CookieName string `mapstructure:"cookie_name"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// PredictURL returns the absolute prediction endpoint URL.
func (p PredictionConfig) PredictURL() string {
	return fmt.Sprintf("%s%s", p.BaseURL, p.PredictPath)
}

// AssetsURL returns the absolute base URL of the diagnostic assets.
func (p PredictionConfig) AssetsURL() string {
	return fmt.Sprintf("%s%s", p.BaseURL, p.AssetsPath)
}
