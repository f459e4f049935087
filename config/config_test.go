package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Exchange.BaseURL != "https://api.india.delta.exchange" {
		t.Errorf("base_url = %q", cfg.Exchange.BaseURL)
	}
	if cfg.Schedule.Timeframe != "1h" {
		t.Errorf("timeframe = %q", cfg.Schedule.Timeframe)
	}
	if cfg.Schedule.ResetIntervalMinutes != 60 {
		t.Errorf("reset interval = %d, want 60 (derived from 1h)", cfg.Schedule.ResetIntervalMinutes)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if !cfg.Risk.CheckExistingOrders {
		t.Error("check_existing_orders should default on")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"trading": {"symbol": "ETHUSD", "product_id": 3136, "order_size": 2},
		"schedule": {"timeframe": "4h"},
		"risk_management": {
			"stop_loss_points": 100,
			"take_profit_points": 200,
			"breakeven_trigger_points": 50
		}
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Trading.Symbol != "ETHUSD" || cfg.Trading.ProductID != 3136 {
		t.Errorf("trading = %+v", cfg.Trading)
	}
	if cfg.Schedule.ResetIntervalMinutes != 240 {
		t.Errorf("reset interval = %d, want 240", cfg.Schedule.ResetIntervalMinutes)
	}
	if cfg.Risk.MaxPositionSize != 6 {
		t.Errorf("max position size = %v, want 6 (3x order size)", cfg.Risk.MaxPositionSize)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("file without server section should keep defaults, port = %d", cfg.Server.Port)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DELTA_API_KEY", "env-key")
	t.Setenv("TRADING_SYMBOL", "SOLUSD")
	t.Setenv("TRADING_PRODUCT_ID", "14823")
	t.Setenv("TRADING_ORDER_SIZE", "5")
	t.Setenv("WEB_PORT", "9100")
	t.Setenv("SCHEDULE_TIMEFRAME", "15m")
	t.Setenv("REDIS_ENABLED", "true")

	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"risk_management": {
		"stop_loss_points": 100, "take_profit_points": 200, "breakeven_trigger_points": 50
	}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Exchange.APIKey != "env-key" {
		t.Errorf("api key = %q", cfg.Exchange.APIKey)
	}
	if cfg.Trading.Symbol != "SOLUSD" || cfg.Trading.ProductID != 14823 || cfg.Trading.OrderSize != 5 {
		t.Errorf("trading = %+v", cfg.Trading)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Schedule.ResetIntervalMinutes != 15 {
		t.Errorf("reset interval = %d, want 15", cfg.Schedule.ResetIntervalMinutes)
	}
	if !cfg.Redis.Enabled {
		t.Error("redis enabled override not applied")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.applyDerived()
		return cfg
	}

	t.Run("control plane only", func(t *testing.T) {
		if err := base().Validate(); err != nil {
			t.Errorf("Validate: %v", err)
		}
	})
	t.Run("bad timeframe", func(t *testing.T) {
		cfg := base()
		cfg.Schedule.Timeframe = "7m"
		if err := cfg.Validate(); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("bad timezone", func(t *testing.T) {
		cfg := base()
		cfg.Schedule.Timezone = "Mars/Olympus"
		if err := cfg.Validate(); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("bad port", func(t *testing.T) {
		cfg := base()
		cfg.Server.Port = 70000
		if err := cfg.Validate(); err == nil {
			t.Error("expected error")
		}
	})
	t.Run("symbol requires risk settings", func(t *testing.T) {
		cfg := base()
		cfg.Trading = TradingConfig{Symbol: "BTCUSD", ProductID: 27, OrderSize: 1}
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for zero stop loss")
		}
		cfg.Risk.StopLossPoints = 100
		cfg.Risk.TakeProfitPoints = 200
		cfg.Risk.BreakevenTriggerPoints = 50
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate: %v", err)
		}
	})
	t.Run("auth enabled requires secret and hash", func(t *testing.T) {
		cfg := base()
		cfg.Auth.Enabled = true
		if err := cfg.Validate(); err == nil {
			t.Error("expected error")
		}
		cfg.Auth.JWTSecret = "secret"
		cfg.Auth.AdminPasswordHash = "$2a$12$hash"
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate: %v", err)
		}
	})
}

func TestTimeframeMinutes(t *testing.T) {
	if m, ok := TimeframeMinutes("4h"); !ok || m != 240 {
		t.Errorf("4h = %d, %v", m, ok)
	}
	if _, ok := TimeframeMinutes("45m"); ok {
		t.Error("45m should be unsupported")
	}
}

func TestGenerateSampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.json")
	if err := GenerateSampleConfig(path); err != nil {
		t.Fatalf("GenerateSampleConfig: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("generated sample does not load: %v", err)
	}
	if cfg.Trading.Symbol != "BTCUSD" {
		t.Errorf("sample symbol = %q", cfg.Trading.Symbol)
	}
}
