package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from config.yaml, SHOP_* environment variables and
// an optional legacy .env file, in that order of increasing priority for envs.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/khoahoc/")

	v.SetEnvPrefix("SHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Missing config file is fine; envs and defaults carry the rest.
	}

	if err := loadDotEnv(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", "0.0.0.0:8080")
	v.SetDefault("http.shutdown_timeout", "15s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.environment", "production")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/shop.db")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "khoahoc")
	v.SetDefault("metrics.subsystem", "http")

	// Credential keys need explicit (empty) defaults so SHOP_* environment
	// variables are visible to Unmarshal.
	v.SetDefault("zalopay.app_id", 0)
	v.SetDefault("zalopay.key1", "")
	v.SetDefault("zalopay.key2", "")
	v.SetDefault("zalopay.callback_url", "")
	v.SetDefault("zalopay.redirect_url", "")
	v.SetDefault("zalopay.endpoint", "https://openapi.zalopay.vn")
	v.SetDefault("zalopay.create_path", "/v2/create")
	v.SetDefault("zalopay.query_path", "/v2/query")
	v.SetDefault("zalopay.refund_path", "/v2/refund")
	v.SetDefault("zalopay.query_refund_path", "/v2/query_refund")

	v.SetDefault("reconcile.sweep_spec", "@every 5m")
	v.SetDefault("reconcile.pending_age", "1h")
	v.SetDefault("reconcile.cooldown", "15s")

	v.SetDefault("shop.name", "Khoa Hoc Shop")
	v.SetDefault("shop.support_email", "support@khoahoc.local")
}

func loadDotEnv(v *viper.Viper) error {
	candidates := []string{".", "..", "../.."}
	for _, path := range candidates {
		file := filepath.Clean(filepath.Join(path, ".env"))
		if _, err := os.Stat(file); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("stat .env: %w", err)
		}

		envViper := viper.New()
		envViper.SetConfigFile(file)
		envViper.SetConfigType("env")
		if err := envViper.ReadInConfig(); err != nil {
			return fmt.Errorf("read .env: %w", err)
		}
		bindLegacyEnv(v, envViper)
	}
	return nil
}

// bindLegacyEnv maps the flat .env variables used by earlier deployments to
// the hierarchical structure.
func bindLegacyEnv(target *viper.Viper, source *viper.Viper) {
	mappings := map[string]string{
		"HTTP_ADDR":            "http.addr",
		"LOG_LEVEL":            "log.level",
		"LOG_FORMAT":           "log.format",
		"APP_ENV":              "log.environment",
		"DB_PATH":              "database.path",
		"ZALOPAY_APP_ID":       "zalopay.app_id",
		"ZALOPAY_KEY1":         "zalopay.key1",
		"ZALOPAY_KEY2":         "zalopay.key2",
		"ZALOPAY_ENDPOINT":     "zalopay.endpoint",
		"ZALOPAY_CALLBACK_URL": "zalopay.callback_url",
		"ZALOPAY_REDIRECT_URL": "zalopay.redirect_url",
		"SHOP_NAME":            "shop.name",
		"SUPPORT_EMAIL":        "shop.support_email",
	}

	for oldKey, newKey := range mappings {
		if val := source.GetString(oldKey); val != "" {
			target.Set(newKey, val)
		}
	}
}
