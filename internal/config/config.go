package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix marks environment overrides. Nested keys use a double
// underscore: RPCSCOPE_BUFFER__LIMIT=500.
const EnvPrefix = "RPCSCOPE_"

var ErrInvalidConfig = errors.New("config: invalid")

type Config struct {
	URL       string          `toml:"url" validate:"required,url"`
	Offline   bool            `toml:"offline"`
	Reconnect ReconnectConfig `toml:"reconnect"`
	Buffer    BufferConfig    `toml:"buffer"`
	FastPing  FastPingConfig  `toml:"fast_ping"`
	Simulator SimulatorConfig `toml:"simulator"`
	TLS       TLSConfig       `toml:"tls"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Log       LogConfig       `toml:"log"`
}

type ReconnectConfig struct {
	BaseMS int  `toml:"base_ms" validate:"gt=0"`
	MaxMS  int  `toml:"max_ms" validate:"gtefield=BaseMS"`
	Jitter bool `toml:"jitter"`
}

type BufferConfig struct {
	Limit         int  `toml:"limit" validate:"gt=0"`
	PreferPending bool `toml:"prefer_pending"`
	PreferBatches bool `toml:"prefer_batches"`
	DropChunkSize int  `toml:"drop_chunk_size" validate:"gt=0"`
}

type FastPingConfig struct {
	Enabled    bool `toml:"enabled"`
	IntervalMS int  `toml:"interval_ms" validate:"gt=0"`
}

// SimulatorConfig drives offline mode.
type SimulatorConfig struct {
	Traffic                bool    `toml:"traffic"`
	RequestIntervalMS      int     `toml:"request_interval_ms" validate:"gt=0"`
	NotificationIntervalMS int     `toml:"notification_interval_ms" validate:"gte=0"`
	ErrorRate              float64 `toml:"error_rate" validate:"gte=0,lte=1"`
	// Seed of zero seeds from the wall clock.
	Seed int64 `toml:"seed"`
}

type TLSConfig struct {
	Enabled            bool   `toml:"enabled"`
	Mutual             bool   `toml:"mutual"`
	SecurityMode       string `toml:"security_mode" validate:"omitempty,oneof=development production"`
	CAFile             string `toml:"ca_file"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

type MetricsConfig struct {
	// Addr of the admin listener serving /metrics. Empty disables it.
	Addr string `toml:"addr"`
}

// LogConfig.Level, when set, overrides RPCSCOPE_LOG_LEVEL.
type LogConfig struct {
	Level string `toml:"level" validate:"omitempty,oneof=trace debug info warn error disabled"`
}

func Default() Config {
	return Config{
		URL: "ws://localhost:8080",
		Reconnect: ReconnectConfig{
			BaseMS: 500,
			MaxMS:  4000,
		},
		Buffer: BufferConfig{
			Limit:         2000,
			PreferPending: true,
			PreferBatches: false,
			DropChunkSize: 1,
		},
		FastPing: FastPingConfig{
			Enabled:    false,
			IntervalMS: 100,
		},
		Simulator: SimulatorConfig{
			Traffic:                true,
			RequestIntervalMS:      2500,
			NotificationIntervalMS: 1500,
			ErrorRate:              0.15,
		},
		TLS: TLSConfig{
			SecurityMode: "development",
		},
	}
}

// Load reads path over the defaults, applies RPCSCOPE_ environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if err := loadToml(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	k := koanf.New(".")
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
	if err != nil {
		return fmt.Errorf("config env load failed: %w", err)
	}
	if len(k.Keys()) == 0 {
		return nil
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "toml"}); err != nil {
		return fmt.Errorf("config env override failed: %w", err)
	}
	return nil
}

var validate = validator.New()

func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.TLS.Mutual && !cfg.TLS.Enabled {
		return fmt.Errorf("%w: tls.mutual requires tls.enabled", ErrInvalidConfig)
	}
	return nil
}
