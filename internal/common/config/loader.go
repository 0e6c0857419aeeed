// internal/common/config/loader.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	OrderingLastCompleted = "last_completed"
	OrderingLastIssued    = "last_issued"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// defaults registers every key with viper so AutomaticEnv can override keys
// that are absent from the YAML files (PREDICTION_BASE_URL and friends).
var defaults = map[string]interface{}{
	"app.name":        "heart-risk-dashboard",
	"app.version":     "dev",
	"app.environment": "development",

	"server.address":          ":8080",
	"server.read_timeout":     15000,
	"server.write_timeout":    0,
	"server.shutdown_timeout": 10000,

	"prediction.base_url":     "http://localhost:5000",
	"prediction.predict_path": "/api/predict",
	"prediction.assets_path":  "/assets/",
	"prediction.timeout":      0,

	"form.schema_path": "",
	"form.ordering":    OrderingLastCompleted,

	"session.store":       SessionStoreMemory,
	"session.ttl":         int((12 * time.Hour).Milliseconds()),
	"session.cookie_name": "heartrisk_session",
	"session.key_prefix":  "heartrisk:session:",

	"database.redis.address":  "",
	"database.redis.password": "",
	"database.redis.db":       0,

	"logging.level":  "info",
	"logging.format": "json",
	"logging.output": "stdout",

	"metrics.enabled": true,
	"metrics.path":    "/metrics",
}

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top
// and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets that deployments traditionally pass under
// their own names.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Redis.Address == "" {
		if val := os.Getenv("REDIS_ADDR"); val != "" {
			cfg.Database.Redis.Address = val
		}
	}
	if cfg.Database.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Database.Redis.Password = val
		}
	}
}

// applyDefaults normalizes values that may have been set explicitly empty.
func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10000
	}

	cfg.Prediction.BaseURL = strings.TrimRight(cfg.Prediction.BaseURL, "/")
	if cfg.Prediction.PredictPath == "" {
		cfg.Prediction.PredictPath = "/api/predict"
	}
	if !strings.HasPrefix(cfg.Prediction.PredictPath, "/") {
		cfg.Prediction.PredictPath = "/" + cfg.Prediction.PredictPath
	}
	if cfg.Prediction.AssetsPath == "" {
		cfg.Prediction.AssetsPath = "/assets/"
	}
	if !strings.HasPrefix(cfg.Prediction.AssetsPath, "/") {
		cfg.Prediction.AssetsPath = "/" + cfg.Prediction.AssetsPath
	}
	if !strings.HasSuffix(cfg.Prediction.AssetsPath, "/") {
		cfg.Prediction.AssetsPath += "/"
	}

	if cfg.Form.Ordering == "" {
		cfg.Form.Ordering = OrderingLastCompleted
	}

	if cfg.Session.Store == "" {
		cfg.Session.Store = SessionStoreMemory
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = int((12 * time.Hour).Milliseconds())
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "heartrisk_session"
	}
	if cfg.Session.KeyPrefix == "" {
		cfg.Session.KeyPrefix = "heartrisk:session:"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	u, err := url.Parse(cfg.Prediction.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("prediction.base_url must be an absolute http(s) URL, got %q", cfg.Prediction.BaseURL)
	}
	if cfg.Prediction.Timeout < 0 {
		return fmt.Errorf("prediction.timeout must not be negative")
	}

	switch cfg.Form.Ordering {
	case OrderingLastCompleted, OrderingLastIssued:
	default:
		return fmt.Errorf("form.ordering must be %q or %q, got %q", OrderingLastCompleted, OrderingLastIssued, cfg.Form.Ordering)
	}

	switch cfg.Session.Store {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required when session.store is redis")
		}
	default:
		return fmt.Errorf("session.store must be %q or %q, got %q", SessionStoreMemory, SessionStoreRedis, cfg.Session.Store)
	}
	if cfg.Session.TTL < 0 {
		return fmt.Errorf("session.ttl must not be negative")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
