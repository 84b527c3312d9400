// Package config loads the walletd configuration file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted by Load.
const (
	EnvConfigPath  = "WALLET_CONFIG"
	EnvDatabaseDSN = "WALLET_DATABASE_DSN"
	EnvJWTSecret   = "WALLET_JWT_SECRET"
	EnvRedisAddr   = "WALLET_REDIS_ADDR"
	EnvLogLevel    = "WALLET_LOG_LEVEL"
	EnvListen      = "WALLET_LISTEN"

	defaultConfigFile = "config.yaml"
)

// ErrMissingDSN is returned when no database DSN is configured.
var ErrMissingDSN = errors.New("config: database dsn is required")

// AppConfig holds process-level flags.
type AppConfig struct {
	ConfigPath string
	EnvFile    string
}

// Config is the full walletd configuration.
type Config struct {
	Server        ServerConfig       `yaml:"server"`
	Database      DatabaseConfig     `yaml:"database"`
	JWT           JWTConfig          `yaml:"jwt"`
	Redis         RedisConfig        `yaml:"redis"`
	Logging       LoggingConfig      `yaml:"logging"`
	Wallet        WalletConfig       `yaml:"wallet"`
	Notifications NotificationConfig `yaml:"notifications"`
	VIPPlans      []VIPPlan          `yaml:"vip_plans"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Listen string `yaml:"listen"`
	Mode   string `yaml:"mode"` // gin mode: debug, release or test.
}

// DatabaseConfig holds the DSN; the dialect is inferred from it.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// JWTConfig holds the HS256 secrets for user and manager tokens.
type JWTConfig struct {
	UserSecret    string        `yaml:"user_secret"`
	ManagerSecret string        `yaml:"manager_secret"`
	Expiry        time.Duration `yaml:"expiry"`
}

// RedisConfig enables the distributed locker when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// LoggingConfig configures logrus and optional file rotation.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// WalletConfig holds wallet defaults. DB settings override MinWithdrawalAmount at runtime.
type WalletConfig struct {
	MinWithdrawalAmount int64         `yaml:"min_withdrawal_amount"`
	Currency            string        `yaml:"currency"`
	LockTimeout         time.Duration `yaml:"lock_timeout"`
	AutoAssignVIP       bool          `yaml:"auto_assign_vip"` // Default for the AUTO_ASSIGN_VIP setting.
}

// NotificationConfig tunes delivery and retention.
type NotificationConfig struct {
	EmitTimeout   time.Duration `yaml:"emit_timeout"`
	RetentionDays int           `yaml:"retention_days"`
}

// VIPPlan describes a purchasable tier.
type VIPPlan struct {
	Level             string `yaml:"level"`
	Price             int64  `yaml:"price"`
	DurationDays      int    `yaml:"duration_days"`
	MonthlyReturnRate string `yaml:"monthly_return_rate"` // Decimal fraction, e.g. "0.05".
}

// Rate parses MonthlyReturnRate.
func (p VIPPlan) Rate() (decimal.Decimal, error) {
	if strings.TrimSpace(p.MonthlyReturnRate) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(strings.TrimSpace(p.MonthlyReturnRate))
}

// Default returns a configuration with every optional value filled in.
func Default() Config {
	return Config{
		Server:  ServerConfig{Listen: ":8318", Mode: "release"},
		JWT:     JWTConfig{Expiry: 24 * time.Hour},
		Redis:   RedisConfig{LockTTL: 30 * time.Second},
		Logging: LoggingConfig{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 30},
		Wallet: WalletConfig{
			MinWithdrawalAmount: 350,
			Currency:            "INR",
			LockTimeout:         10 * time.Second,
		},
		Notifications: NotificationConfig{EmitTimeout: 2 * time.Second},
	}
}

// ResolveConfigPath picks the explicit path, then WALLET_CONFIG, then ./config.yaml.
func ResolveConfigPath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return filepath.Clean(p)
	}
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return filepath.Clean(p)
	}
	return defaultConfigFile
}

// LoadEnvFile loads a .env file into the process environment. A missing file is ignored.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if _, errStat := os.Stat(path); errStat != nil {
		if errors.Is(errStat, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: stat env file: %w", errStat)
	}
	if errLoad := godotenv.Load(path); errLoad != nil {
		return fmt.Errorf("config: load env file: %w", errLoad)
	}
	return nil
}

// Load reads the YAML file at path (missing file allowed), applies env
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, errRead := os.ReadFile(path)
	switch {
	case errRead == nil:
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	applyEnv(&cfg)
	if errValidate := cfg.Validate(); errValidate != nil {
		return nil, errValidate
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvDatabaseDSN)); v != "" {
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvJWTSecret)); v != "" {
		cfg.JWT.UserSecret = v
		if cfg.JWT.ManagerSecret == "" {
			cfg.JWT.ManagerSecret = v
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedisAddr)); v != "" {
		cfg.Redis.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvListen)); v != "" {
		cfg.Server.Listen = v
	}
}

// Validate checks required fields and the VIP plan table.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return ErrMissingDSN
	}
	if c.JWT.UserSecret == "" || c.JWT.ManagerSecret == "" {
		return errors.New("config: jwt user_secret and manager_secret are required")
	}
	if c.Wallet.MinWithdrawalAmount <= 0 {
		return fmt.Errorf("config: wallet.min_withdrawal_amount must be positive, got %d", c.Wallet.MinWithdrawalAmount)
	}
	seen := make(map[string]struct{}, len(c.VIPPlans))
	for i, plan := range c.VIPPlans {
		level := strings.TrimSpace(plan.Level)
		if level == "" {
			return fmt.Errorf("config: vip_plans[%d]: level is required", i)
		}
		if _, dup := seen[level]; dup {
			return fmt.Errorf("config: vip_plans[%d]: duplicate level %q", i, level)
		}
		seen[level] = struct{}{}
		if plan.Price <= 0 {
			return fmt.Errorf("config: vip_plans[%d]: price must be positive", i)
		}
		if plan.DurationDays <= 0 {
			return fmt.Errorf("config: vip_plans[%d]: duration_days must be positive", i)
		}
		rate, errRate := plan.Rate()
		if errRate != nil {
			return fmt.Errorf("config: vip_plans[%d]: monthly_return_rate: %w", i, errRate)
		}
		if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("config: vip_plans[%d]: monthly_return_rate must be within [0, 1]", i)
		}
	}
	return nil
}
