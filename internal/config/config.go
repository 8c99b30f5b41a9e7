package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode               string        `mapstructure:"mode"`
	Port               int           `mapstructure:"port"`
	StaticPath         string        `mapstructure:"static_path"`
	ReadLimit          int64         `mapstructure:"read_limit"`
	PingPeriod         time.Duration `mapstructure:"ping_period"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	Secret             string        `mapstructure:"secret"`
	SignalRateLimit    int           `mapstructure:"signal_rate_limit"`
	SignalRateInterval time.Duration `mapstructure:"signal_rate_interval"`
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

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	// idle_timeout must exceed ping_period or healthy clients get cut.
	v.SetDefault("idle_timeout", "60s")
	v.SetDefault("signal_rate_limit", 64)
	v.SetDefault("signal_rate_interval", "1s")
}
