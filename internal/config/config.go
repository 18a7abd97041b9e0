package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"StrategyVault/internal/asset"
	"StrategyVault/internal/logging"
)

// Storage drivers.
const (
	DriverBolt = "bolt"
	DriverFile = "file"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Ledger struct {
		FeeHint      uint64 `yaml:"fee_hint"`
		SnapshotPath string `yaml:"snapshot_path"`
	} `yaml:"ledger"`
	Storage struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"storage"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Keeper struct {
		Address    string `yaml:"address"`
		RateNum    uint64 `yaml:"rate_num"`
		RateDen    uint64 `yaml:"rate_den"`
		SettleCron string `yaml:"settle_cron"`
		ReportCron string `yaml:"report_cron"`
	} `yaml:"keeper"`
	HTTP struct {
		Listen string `yaml:"listen"`
	} `yaml:"http"`
	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
	Vaults []VaultDef `yaml:"vaults"`
	Proxy  string     `yaml:"proxy"`
}

// VaultDef describes a vault created at startup when its id is not stored yet.
// Creator becomes the owner (fund, swap) or admin (dca).
type VaultDef struct {
	ID              string `yaml:"id"`
	Kind            string `yaml:"kind"`
	Creator         string `yaml:"creator"`
	Orchestrator    string `yaml:"orchestrator"`
	Counterparty    string `yaml:"counterparty"`
	Asset           string `yaml:"asset"`
	Variant         string `yaml:"variant"`
	BuyAsset        string `yaml:"buy_asset"`
	Receiver        string `yaml:"receiver"`
	IntervalSeconds uint64 `yaml:"interval_seconds"`
	TargetSpend     uint64 `yaml:"target_spend"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("VAULT_STATE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("LEDGER_SNAPSHOT_PATH"); v != "" {
		cfg.Ledger.SnapshotPath = v
	}
	if v := os.Getenv("KEEPER_ADDRESS"); v != "" {
		cfg.Keeper.Address = v
	}
	if v := os.Getenv("HTTP_LISTEN"); v != "" {
		cfg.HTTP.Listen = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("FEE_HINT"); v != "" {
		var fee uint64
		if _, err := fmt.Sscanf(v, "%d", &fee); err == nil {
			cfg.Ledger.FeeHint = fee
		}
	}

	// Defaults
	if cfg.Ledger.FeeHint == 0 {
		cfg.Ledger.FeeHint = 1000
	}
	if cfg.Ledger.SnapshotPath == "" {
		cfg.Ledger.SnapshotPath = "data/ledger.json"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverBolt
	}
	if cfg.Storage.Path == "" {
		if cfg.Storage.Driver == DriverFile {
			cfg.Storage.Path = "data/vaults.json"
		} else {
			cfg.Storage.Path = "data/vaults.db"
		}
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/strategy_vault.db"
	}
	if cfg.Keeper.Address == "" {
		cfg.Keeper.Address = "keeper"
	}
	if cfg.Keeper.RateNum == 0 && cfg.Keeper.RateDen == 0 {
		cfg.Keeper.RateNum, cfg.Keeper.RateDen = 1, 1
	}
	if cfg.Keeper.SettleCron == "" {
		cfg.Keeper.SettleCron = "*/30 * * * * *"
	}
	if cfg.Keeper.ReportCron == "" {
		cfg.Keeper.ReportCron = "0 0 9 * * *"
	}
	if cfg.HTTP.Listen == "" {
		cfg.HTTP.Listen = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	for i := range cfg.Vaults {
		d := &cfg.Vaults[i]
		if d.Counterparty == "" && (d.Kind == "dca" || d.Kind == "swap") {
			d.Counterparty = cfg.Keeper.Address
		}
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if c.Storage.Driver != DriverBolt && c.Storage.Driver != DriverFile {
		return fmt.Errorf("storage.driver must be %q or %q", DriverBolt, DriverFile)
	}
	if c.Keeper.RateNum == 0 || c.Keeper.RateDen == 0 {
		return fmt.Errorf("keeper.rate_num and keeper.rate_den must be positive")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	seen := make(map[string]bool, len(c.Vaults))
	for i, d := range c.Vaults {
		if err := d.validate(); err != nil {
			return fmt.Errorf("vaults[%d]: %w", i, err)
		}
		if seen[d.ID] {
			return fmt.Errorf("vaults[%d]: duplicate id %q", i, d.ID)
		}
		seen[d.ID] = true
	}
	return nil
}

func (d VaultDef) validate() error {
	if d.ID == "" {
		return fmt.Errorf("id is required")
	}
	if d.Creator == "" || d.Orchestrator == "" {
		return fmt.Errorf("creator and orchestrator are required")
	}
	if _, err := asset.ParseRef(d.Asset); err != nil {
		return err
	}
	switch d.Kind {
	case "fund":
		if d.Variant != "" && d.Variant != "plain" && d.Variant != "reserve" {
			return fmt.Errorf("unknown fund variant %q", d.Variant)
		}
	case "dca":
		if _, err := asset.ParseRef(d.BuyAsset); err != nil {
			return err
		}
		if d.IntervalSeconds == 0 {
			return fmt.Errorf("interval_seconds must be positive")
		}
	case "swap":
	default:
		return fmt.Errorf("unknown vault kind %q", d.Kind)
	}
	return nil
}
