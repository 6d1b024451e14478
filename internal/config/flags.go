package config

import "github.com/kelseyhightower/envconfig"

// EnvPrefix prefixes every feature flag variable.
const EnvPrefix = "CAMPAIGNTRENDS"

type trendsFlag struct {
	Enabled bool `envconfig:"TRENDS_ENABLED" default:"true"`
}

type serverTimelineFlag struct {
	Enabled bool `envconfig:"SERVER_TIMELINE_ENABLED" default:"true"`
}

// TrendsEnabled reports whether CAMPAIGNTRENDS_TRENDS_ENABLED allows the
// history store. The environment is read on every call so the toggle takes
// effect without a restart. Unparseable values keep the default, true.
func TrendsEnabled() bool {
	f := trendsFlag{Enabled: true}
	if err := envconfig.Process(EnvPrefix, &f); err != nil {
		return true
	}
	return f.Enabled
}

// ServerTimelineEnabled reports whether
// CAMPAIGNTRENDS_SERVER_TIMELINE_ENABLED allows server timeline reads and
// batch integration. Read on every call; unparseable values keep the
// default, true.
func ServerTimelineEnabled() bool {
	f := serverTimelineFlag{Enabled: true}
	if err := envconfig.Process(EnvPrefix, &f); err != nil {
		return true
	}
	return f.Enabled
}
