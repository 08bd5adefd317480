package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	Secret         string        `mapstructure:"secret"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	MatchTimeout   time.Duration `mapstructure:"match_timeout"`
	TypingExpiry   time.Duration `mapstructure:"typing_expiry"`
	SendQueueDepth int           `mapstructure:"send_queue_depth"`
	CodeLength     int           `mapstructure:"code_length"`
	CodeAlphabet   string        `mapstructure:"code_alphabet"`
	EnableCouple   bool          `mapstructure:"enable_couple"`
	MaxSessions    int           `mapstructure:"max_sessions"`
	StrikeLimit    int           `mapstructure:"protocol_strikes"`
	StrikeWindow   time.Duration `mapstructure:"protocol_strike_window"`
}

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("secret", "change-me")
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("read_limit", 16*1024*1024)
	v.SetDefault("ping_period", "30s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("match_timeout", "60s")
	v.SetDefault("typing_expiry", "5s")
	v.SetDefault("send_queue_depth", 256)
	v.SetDefault("code_length", 6)
	v.SetDefault("code_alphabet", alphanumeric)
	v.SetDefault("enable_couple", true)
	v.SetDefault("max_sessions", 10000)
	v.SetDefault("protocol_strikes", 10)
	v.SetDefault("protocol_strike_window", "1m")
}

// Load reads config/config.<env>.yaml when present and applies RELAY_*
// environment overrides on top of the defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	setDefaults(v)
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Default returns the baked-in defaults without touching files or env.
// Handy for tests and for embedding the relay.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}
	return &cfg
}
