package config

import (
	"time"
)

type LocationConfig struct {
	HighAccuracy bool          `yaml:"high_accuracy"`
	MinInterval  time.Duration `yaml:"min_interval"`
	MaxStale     time.Duration `yaml:"max_stale"`
}

func loadLocationConfig() *LocationConfig {
	return &LocationConfig{
		HighAccuracy: getEnvAsBool("LOCATION_HIGH_ACCURACY", true),
		MinInterval:  getEnvAsDuration("LOCATION_MIN_INTERVAL", 2*time.Second),
		MaxStale:     getEnvAsDuration("LOCATION_MAX_STALE", 30*time.Second),
	}
}
