package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/akalogirou/weft/internal/quality"
	"github.com/akalogirou/weft/internal/retry"
)

type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	NATS      NATSConfig      `yaml:"nats"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Pool      PoolConfig      `yaml:"pool"`
	RPC       RPCConfig       `yaml:"rpc"`
	Quality   QualityConfig   `yaml:"quality"`
	Store     StoreConfig     `yaml:"store"`
	Web       WebConfig       `yaml:"web"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Notify    NotifyConfig    `yaml:"notify"`
	Vault     VaultConfig     `yaml:"vault"`
}

type EngineConfig struct {
	MaxInFlight int           `yaml:"max_in_flight"`
	RunTimeout  time.Duration `yaml:"run_timeout"`
}

type NATSConfig struct {
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

type CatalogConfig struct {
	Path          string  `yaml:"path"`
	MinConfidence float64 `yaml:"min_confidence"`
}

type PoolConfig struct {
	MaxPerAddress  int           `yaml:"max_per_address"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
	RecycleAfter   time.Duration `yaml:"recycle_after"`
}

type RPCConfig struct {
	CallTimeout time.Duration `yaml:"call_timeout"`
	Retry       retry.Policy  `yaml:"retry"`
}

// QualityConfig gates task results. Mode decides what a failed report does
// to the task: "fail" marks it failed, "degrade" accepts it with a degraded
// flag. Thresholds are keyed by inferred task category.
type QualityConfig struct {
	Mode       string                         `yaml:"mode"`
	GlobalMin  float64                        `yaml:"global_min"`
	Thresholds map[string][]quality.Threshold `yaml:"thresholds"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Auth    string `yaml:"auth"`
}

type SchedulerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

type NotifyConfig struct {
	TelegramToken string `yaml:"telegram_token"`
	ChatID        int64  `yaml:"chat_id"`
}

type VaultConfig struct {
	Passphrase string `yaml:"passphrase"`
}

func defaults() Config {
	return Config{
		Engine: EngineConfig{
			MaxInFlight: 16,
			RunTimeout:  15 * time.Minute,
		},
		NATS: NATSConfig{
			Port:    4222,
			DataDir: "data/nats",
		},
		Catalog: CatalogConfig{
			Path:          "config/agents.yaml",
			MinConfidence: 0.3,
		},
		Pool: PoolConfig{
			MaxPerAddress:  4,
			AcquireTimeout: 10 * time.Second,
			RecycleAfter:   2 * time.Minute,
		},
		RPC: RPCConfig{
			CallTimeout: 2 * time.Minute,
			Retry:       retry.DefaultPolicy(),
		},
		Quality: QualityConfig{
			Mode:      "degrade",
			GlobalMin: 0.5,
		},
		Store: StoreConfig{
			Path: "data/weft.db",
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
		},
		Scheduler: SchedulerConfig{
			PollInterval: 30 * time.Second,
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("WEFT_CONFIG")
	if path == "" {
		path = "config/weft.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		// Expand environment variables in YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.Quality.Mode != "fail" && cfg.Quality.Mode != "degrade" {
		return nil, fmt.Errorf("quality mode must be fail or degrade, got %q", cfg.Quality.Mode)
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("WEFT_WEB_TOKEN"); v != "" {
		cfg.Web.Auth = v
	}
	if v := os.Getenv("WEFT_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("WEFT_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("WEFT_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("WEFT_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv("WEFT_TELEGRAM_TOKEN"); v != "" {
		cfg.Notify.TelegramToken = v
	}
	if v := os.Getenv("WEFT_VAULT_PASSPHRASE"); v != "" {
		cfg.Vault.Passphrase = v
	}
}
