package config

import (
	"log/slog"
	"time"
)

// Config aggregates all application configuration.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"database"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	ZaloPay   ZaloPayConfig   `mapstructure:"zalopay"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Shop      ShopConfig      `mapstructure:"shop"`
}

// HTTPConfig defines the HTTP server settings.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	AddSource   bool   `mapstructure:"add_source"`
	Environment string `mapstructure:"environment"`
}

// DBConfig defines the database settings.
type DBConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// MetricsConfig defines Prometheus metric settings.
type MetricsConfig struct {
	Enabled   bool      `mapstructure:"enabled"`
	Namespace string    `mapstructure:"namespace"`
	Subsystem string    `mapstructure:"subsystem"`
	Buckets   []float64 `mapstructure:"buckets"`
}

// ZaloPayConfig carries the gateway credentials and endpoints. Key1 signs
// outbound requests, Key2 verifies inbound callbacks; the two must never be
// conflated.
type ZaloPayConfig struct {
	AppID           int    `mapstructure:"app_id"`
	Key1            string `mapstructure:"key1"`
	Key2            string `mapstructure:"key2"`
	Endpoint        string `mapstructure:"endpoint"`
	CreatePath      string `mapstructure:"create_path"`
	QueryPath       string `mapstructure:"query_path"`
	RefundPath      string `mapstructure:"refund_path"`
	QueryRefundPath string `mapstructure:"query_refund_path"`
	CallbackURL     string `mapstructure:"callback_url"`
	RedirectURL     string `mapstructure:"redirect_url"`
}

// ReconcileConfig tunes the reconciliation sweep and on-demand cooldown.
type ReconcileConfig struct {
	SweepSpec  string        `mapstructure:"sweep_spec"`
	PendingAge time.Duration `mapstructure:"pending_age"`
	Cooldown   time.Duration `mapstructure:"cooldown"`
}

// ShopConfig holds storefront-facing settings.
type ShopConfig struct {
	Name         string `mapstructure:"name"`
	SupportEmail string `mapstructure:"support_email"`
}

func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
