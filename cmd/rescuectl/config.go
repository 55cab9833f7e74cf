package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the client configuration, read from ~/.rescuehub/config.yaml and
// RESCUE_* environment variables. Flags override both.
type Config struct {
	ServerURL     string        `mapstructure:"server_url"`
	Token         string        `mapstructure:"token"`
	UserID        uint          `mapstructure:"user_id"`
	DataDir       string        `mapstructure:"data_dir"`
	Store         string        `mapstructure:"store"`
	Timeout       time.Duration `mapstructure:"timeout"`
	DoneDelay     time.Duration `mapstructure:"done_delay"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
	LogFile       string        `mapstructure:"log_file"`
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rescuehub"
	}
	return filepath.Join(home, ".rescuehub")
}

func newViper() *viper.Viper {
	v := viper.New()
	// every key needs a default so AutomaticEnv values reach Unmarshal
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("token", "")
	v.SetDefault("user_id", 0)
	v.SetDefault("data_dir", defaultHome())
	v.SetDefault("store", "file")
	v.SetDefault("timeout", "10s")
	v.SetDefault("done_delay", "3s")
	v.SetDefault("probe_interval", "10s")
	v.SetDefault("log_file", filepath.Join(defaultHome(), "rescuectl.log"))

	v.SetEnvPrefix("RESCUE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig reads path when set, otherwise the default config file if it
// exists.
func loadConfig(v *viper.Viper, path string) (*Config, error) {
	if path == "" {
		path = filepath.Join(defaultHome(), "config.yaml")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	return &cfg, nil
}
