package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level campaigntrends configuration.
type Config struct {
	APIBase    string   `mapstructure:"api_base"`
	ListenAddr string   `mapstructure:"listen_addr"`
	History    History  `mapstructure:"history"`
	Timeline   Timeline `mapstructure:"timeline"`
	Mirror     Mirror   `mapstructure:"mirror"`
	Output     Output   `mapstructure:"output"`
}

// History defines the snapshot retention policy.
type History struct {
	TTL          time.Duration `mapstructure:"ttl"`
	MaxSnapshots int           `mapstructure:"max_snapshots"`
	MirrorLimit  int           `mapstructure:"mirror_limit"`
}

// Timeline defines how the server timeline is read and synced.
type Timeline struct {
	Limit        int           `mapstructure:"limit"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`
	Concurrency  int           `mapstructure:"concurrency"`
}

// Mirror defines the on-disk history mirror.
type Mirror struct {
	Path    string `mapstructure:"path"`
	Enabled bool   `mapstructure:"enabled"`
}

// Output defines output preferences.
type Output struct {
	Color bool `mapstructure:"color"`
	Width int  `mapstructure:"width"`
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// Load reads configuration from the given path (or the default location)
// and returns a Config with all defaults applied.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("api_base", DefaultAPIBase)
	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("history.ttl", DefaultHistory.TTL)
	v.SetDefault("history.max_snapshots", DefaultHistory.MaxSnapshots)
	v.SetDefault("history.mirror_limit", DefaultHistory.MirrorLimit)
	v.SetDefault("timeline.limit", DefaultTimeline.Limit)
	v.SetDefault("timeline.timeout", DefaultTimeline.Timeout)
	v.SetDefault("timeline.sync_interval", DefaultTimeline.SyncInterval)
	v.SetDefault("timeline.concurrency", DefaultTimeline.Concurrency)
	v.SetDefault("mirror.path", DefaultMirror.Path)
	v.SetDefault("mirror.enabled", DefaultMirror.Enabled)
	v.SetDefault("output.color", DefaultOutput.Color)
	v.SetDefault("output.width", DefaultOutput.Width)

	if cfgFile != "" {
		v.SetConfigFile(expandPath(cfgFile))
	} else {
		v.AddConfigPath(expandPath(DefaultConfigDir))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Read config file if it exists; missing file is not an error.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.Mirror.Path == "" {
		cfg.Mirror.Path = DBPath()
	}
	cfg.Mirror.Path = expandPath(cfg.Mirror.Path)

	return &cfg, nil
}

// DBPath returns the full path to the default SQLite mirror database.
func DBPath() string {
	return filepath.Join(expandPath(DefaultConfigDir), DefaultDBName)
}

// ConfigDir returns the expanded configuration directory.
func ConfigDir() string {
	return expandPath(DefaultConfigDir)
}
