// Package config provides configuration loading and defaults for
// campaigntrends.
package config

import "time"

// DefaultConfigDir is the default location for campaigntrends configuration.
const DefaultConfigDir = "~/.config/campaigntrends"

// DefaultDBName is the filename for the SQLite mirror database.
const DefaultDBName = "campaigntrends.db"

// DefaultConfigFile is the filename for the YAML config.
const DefaultConfigFile = "config.yaml"

// DefaultAPIBase is the campaign API root the timeline is read from.
const DefaultAPIBase = "http://localhost:8080/api/v2"

// DefaultListenAddr is where the HTTP service listens.
const DefaultListenAddr = ":8090"

// DefaultHistory holds the default retention policy.
var DefaultHistory = History{
	TTL:          24 * time.Hour,
	MaxSnapshots: 100,
	MirrorLimit:  10,
}

// DefaultTimeline holds the default server timeline settings.
var DefaultTimeline = Timeline{
	Limit:        50,
	Timeout:      10 * time.Second,
	SyncInterval: 5 * time.Minute,
	Concurrency:  4,
}

// DefaultMirror holds the default mirror settings. An empty path means
// DBPath().
var DefaultMirror = Mirror{
	Enabled: true,
}

// DefaultOutput holds the default output preferences.
var DefaultOutput = Output{
	Color: true,
	Width: 80,
}
