package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full service configuration. Values load from config.json,
// then environment variables override.
type Config struct {
	Exchange   ExchangeConfig   `json:"exchange"`
	Trading    TradingConfig    `json:"trading"`
	Schedule   ScheduleConfig   `json:"schedule"`
	Risk       RiskConfig       `json:"risk_management"`
	Monitoring MonitoringConfig `json:"monitoring"`
	Server     ServerConfig     `json:"server"`
	Auth       AuthConfig       `json:"auth"`
	Vault      VaultConfig      `json:"vault"`
	Redis      RedisConfig      `json:"redis"`
	Database   DatabaseConfig   `json:"database"`
}

// ExchangeConfig holds Delta Exchange connection settings. Credentials come
// from the environment (or Vault), never from the config file.
type ExchangeConfig struct {
	BaseURL   string `json:"base_url"`
	APIKey    string `json:"-"`
	APISecret string `json:"-"`
}

// TradingConfig describes the default bot started at boot. Leave Symbol empty
// to run the control plane only.
type TradingConfig struct {
	Symbol    string `json:"symbol"`
	ProductID int    `json:"product_id"`
	OrderSize int    `json:"order_size"`
}

type ScheduleConfig struct {
	Timeframe            string `json:"timeframe"`
	ResetIntervalMinutes int    `json:"reset_interval_minutes"` // 0 = derive from timeframe
	Timezone             string `json:"timezone"`
	WaitForNextCandle    bool   `json:"wait_for_next_candle"`
	StartupDelayMinutes  int    `json:"startup_delay_minutes"`
}

type RiskConfig struct {
	StopLossPoints         float64 `json:"stop_loss_points"`
	TakeProfitPoints       float64 `json:"take_profit_points"`
	BreakevenTriggerPoints float64 `json:"breakeven_trigger_points"`
	MaxPositionSize        float64 `json:"max_position_size"` // 0 = 3x order size
	CheckExistingOrders    bool    `json:"check_existing_orders"`
}

type MonitoringConfig struct {
	OrderCheckIntervalSeconds    int    `json:"order_check_interval"`
	PositionCheckIntervalSeconds int    `json:"position_check_interval"`
	LogLevel                     string `json:"log_level"`
	LogOutput                    string `json:"log_output"` // stdout, stderr, or file path
	LogJSON                      bool   `json:"log_json"`
}

// ServerConfig holds the control-plane HTTP server configuration
type ServerConfig struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	AllowedOrigins  string `json:"allowed_origins"`
	RateLimitPerMin int    `json:"rate_limit_per_min"`
	ReadTimeout     int    `json:"read_timeout"`     // Seconds
	WriteTimeout    int    `json:"write_timeout"`    // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

// AuthConfig holds control-plane authentication configuration
type AuthConfig struct {
	Enabled              bool          `json:"enabled"`
	AdminPasswordHash    string        `json:"admin_password_hash"` // bcrypt hash
	JWTSecret            string        `json:"jwt_secret"`
	AccessTokenDuration  time.Duration `json:"access_token_duration"`
	RefreshTokenDuration time.Duration `json:"refresh_token_duration"`
}

// VaultConfig holds HashiCorp Vault configuration for API credentials
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// RedisConfig holds Redis configuration for session snapshots
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// DatabaseConfig holds PostgreSQL configuration for the lifecycle journal
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// timeframeMinutes is the closed set of supported timeframe tokens.
var timeframeMinutes = map[string]int{
	"1m": 1, "3m": 3, "5m": 5, "15m": 15, "30m": 30,
	"1h": 60, "2h": 120, "4h": 240, "6h": 360,
	"1d": 1440, "1w": 10080,
}

// TimeframeMinutes returns the minute count for a timeframe token.
func TimeframeMinutes(timeframe string) (int, bool) {
	m, ok := timeframeMinutes[timeframe]
	return m, ok
}

// Default returns a Config populated with defaults. File and environment
// values are layered on top of it.
func Default() *Config {
	return &Config{
		Exchange: ExchangeConfig{
			BaseURL: "https://api.india.delta.exchange",
		},
		Schedule: ScheduleConfig{
			Timeframe: "1h",
			Timezone:  "Asia/Kolkata",
		},
		Risk: RiskConfig{
			CheckExistingOrders: true,
		},
		Monitoring: MonitoringConfig{
			OrderCheckIntervalSeconds:    10,
			PositionCheckIntervalSeconds: 5,
			LogLevel:                     "INFO",
			LogOutput:                    "stdout",
			LogJSON:                      true,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			AllowedOrigins:  "*",
			RateLimitPerMin: 120,
			ReadTimeout:     30,
			WriteTimeout:    30,
			ShutdownTimeout: 10,
		},
		Auth: AuthConfig{
			AccessTokenDuration:  15 * time.Minute,
			RefreshTokenDuration: 7 * 24 * time.Hour,
		},
		Vault: VaultConfig{
			Address:    "http://localhost:8200",
			MountPath:  "secret",
			SecretPath: "breakout-bot/delta",
		},
		Redis: RedisConfig{
			Address:  "localhost:6379",
			PoolSize: 10,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "breakout_bot",
			SSLMode:  "disable",
		},
	}
}

// Load reads config.json (when present), applies environment overrides and
// derivation rules, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Exchange.BaseURL = getEnvOrDefault("DELTA_BASE_URL", c.Exchange.BaseURL)
	c.Exchange.APIKey = getEnvOrDefault("DELTA_API_KEY", c.Exchange.APIKey)
	c.Exchange.APISecret = getEnvOrDefault("DELTA_API_SECRET", c.Exchange.APISecret)

	c.Trading.Symbol = getEnvOrDefault("TRADING_SYMBOL", c.Trading.Symbol)
	c.Trading.ProductID = getEnvIntOrDefault("TRADING_PRODUCT_ID", c.Trading.ProductID)
	c.Trading.OrderSize = getEnvIntOrDefault("TRADING_ORDER_SIZE", c.Trading.OrderSize)

	c.Schedule.Timeframe = getEnvOrDefault("SCHEDULE_TIMEFRAME", c.Schedule.Timeframe)
	c.Schedule.Timezone = getEnvOrDefault("SCHEDULE_TIMEZONE", c.Schedule.Timezone)

	c.Monitoring.LogLevel = getEnvOrDefault("LOG_LEVEL", c.Monitoring.LogLevel)
	c.Monitoring.LogOutput = getEnvOrDefault("LOG_OUTPUT", c.Monitoring.LogOutput)
	c.Monitoring.LogJSON = getEnvBoolOrDefault("LOG_JSON", c.Monitoring.LogJSON)

	c.Server.Host = getEnvOrDefault("WEB_HOST", c.Server.Host)
	c.Server.Port = getEnvIntOrDefault("WEB_PORT", c.Server.Port)
	c.Server.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", c.Server.AllowedOrigins)

	c.Auth.Enabled = getEnvBoolOrDefault("AUTH_ENABLED", c.Auth.Enabled)
	c.Auth.AdminPasswordHash = getEnvOrDefault("AUTH_ADMIN_PASSWORD_HASH", c.Auth.AdminPasswordHash)
	c.Auth.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", c.Auth.AccessTokenDuration)
	c.Auth.RefreshTokenDuration = getEnvDurationOrDefault("AUTH_REFRESH_TOKEN_DURATION", c.Auth.RefreshTokenDuration)

	c.Vault.Enabled = getEnvBoolOrDefault("VAULT_ENABLED", c.Vault.Enabled)
	c.Vault.Address = getEnvOrDefault("VAULT_ADDR", c.Vault.Address)
	c.Vault.Token = getEnvOrDefault("VAULT_TOKEN", c.Vault.Token)
	c.Vault.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", c.Vault.MountPath)
	c.Vault.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", c.Vault.SecretPath)

	c.Redis.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Address = getEnvOrDefault("REDIS_ADDR", c.Redis.Address)
	c.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", c.Redis.Password)

	c.Database.Enabled = getEnvBoolOrDefault("DB_ENABLED", c.Database.Enabled)
	c.Database.Host = getEnvOrDefault("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvIntOrDefault("DB_PORT", c.Database.Port)
	c.Database.User = getEnvOrDefault("DB_USER", c.Database.User)
	c.Database.Password = getEnvOrDefault("DB_PASSWORD", c.Database.Password)
	c.Database.Database = getEnvOrDefault("DB_NAME", c.Database.Database)
	c.Database.SSLMode = getEnvOrDefault("DB_SSL_MODE", c.Database.SSLMode)
}

// applyDerived fills values computed from other settings.
func (c *Config) applyDerived() {
	if c.Schedule.ResetIntervalMinutes <= 0 {
		if m, ok := TimeframeMinutes(c.Schedule.Timeframe); ok {
			c.Schedule.ResetIntervalMinutes = m
		}
	}
	if c.Risk.MaxPositionSize <= 0 && c.Trading.OrderSize > 0 {
		c.Risk.MaxPositionSize = float64(c.Trading.OrderSize) * 3
	}
}

// Validate checks settings that would make the default bot or the server
// unusable. The default bot sections are checked only when a symbol is set.
func (c *Config) Validate() error {
	if _, ok := TimeframeMinutes(c.Schedule.Timeframe); !ok {
		return fmt.Errorf("invalid timeframe %q", c.Schedule.Timeframe)
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Schedule.Timezone, err)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Monitoring.OrderCheckIntervalSeconds < 1 {
		return fmt.Errorf("order_check_interval must be at least 1 second")
	}
	if c.Monitoring.PositionCheckIntervalSeconds < 1 {
		return fmt.Errorf("position_check_interval must be at least 1 second")
	}
	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth enabled but jwt_secret is empty")
		}
		if c.Auth.AdminPasswordHash == "" {
			return fmt.Errorf("auth enabled but admin_password_hash is empty")
		}
	}

	if c.Trading.Symbol == "" {
		return nil
	}
	if c.Trading.ProductID <= 0 {
		return fmt.Errorf("product_id must be positive, got %d", c.Trading.ProductID)
	}
	if c.Trading.OrderSize <= 0 {
		return fmt.Errorf("order_size must be positive, got %d", c.Trading.OrderSize)
	}
	if c.Risk.StopLossPoints <= 0 {
		return fmt.Errorf("stop_loss_points must be positive, got %v", c.Risk.StopLossPoints)
	}
	if c.Risk.TakeProfitPoints <= 0 {
		return fmt.Errorf("take_profit_points must be positive, got %v", c.Risk.TakeProfitPoints)
	}
	if c.Risk.BreakevenTriggerPoints <= 0 {
		return fmt.Errorf("breakeven_trigger_points must be positive, got %v", c.Risk.BreakevenTriggerPoints)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GenerateSampleConfig creates a sample configuration file
func GenerateSampleConfig(filename string) error {
	cfg := Default()
	cfg.Trading = TradingConfig{
		Symbol:    "BTCUSD",
		ProductID: 27,
		OrderSize: 1,
	}
	cfg.Schedule = ScheduleConfig{
		Timeframe:           "4h",
		Timezone:            "Asia/Kolkata",
		WaitForNextCandle:   true,
		StartupDelayMinutes: 5,
	}
	cfg.Risk = RiskConfig{
		StopLossPoints:         10000,
		TakeProfitPoints:       40000,
		BreakevenTriggerPoints: 10000,
		CheckExistingOrders:    true,
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
