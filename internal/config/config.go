package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type RelayConfig struct {
	TokenURL  string        `mapstructure:"token_url"`
	APIKey    string        `mapstructure:"api_key"`
	APISecret string        `mapstructure:"api_secret"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	Secret         string        `mapstructure:"secret"`
	DebounceWindow time.Duration `mapstructure:"debounce_window"`
	Relay          RelayConfig   `mapstructure:"relay"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("debounce_window", "100ms")
	v.SetDefault("relay.token_url", "http://localhost:7880/token")
	v.SetDefault("relay.api_key", "devkey")
	v.SetDefault("relay.timeout", "5s")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Debounce: %s\n", cfg.Mode, cfg.Port, cfg.DebounceWindow)
	return &cfg, nil
}
