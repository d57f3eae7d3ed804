package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	App      *AppConfig      `yaml:"app"`
	API      *APIConfig      `yaml:"api"`
	Channel  *ChannelConfig  `yaml:"channel"`
	Maps     *MapsConfig     `yaml:"maps"`
	Location *LocationConfig `yaml:"location"`
	Storage  *StorageConfig  `yaml:"storage"`
	Ride     *RideConfig     `yaml:"ride"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
	Role        string `yaml:"role"` // rider, driver, admin
	Debug       bool   `yaml:"debug"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	Timezone    string `yaml:"timezone"`
	// MetricsAddr exposes the Prometheus endpoint; empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
}

type RideConfig struct {
	CancelWindow        time.Duration `yaml:"cancel_window"`
	RouteRefreshMeters  float64       `yaml:"route_refresh_meters"`
	RouteQueryTimeout   time.Duration `yaml:"route_query_timeout"`
	DefaultLatitude     float64       `yaml:"default_latitude"`
	DefaultLongitude    float64       `yaml:"default_longitude"`
	LocationBroadcastHz float64       `yaml:"location_broadcast_hz"`
}

func Load() (*Config, error) {
	config := &Config{
		App:      loadAppConfig(),
		API:      loadAPIConfig(),
		Channel:  loadChannelConfig(),
		Maps:     loadMapsConfig(),
		Location: loadLocationConfig(),
		Storage:  loadStorageConfig(),
		Ride:     loadRideConfig(),
	}

	return config, nil
}

func loadAppConfig() *AppConfig {
	return &AppConfig{
		Name:        getEnv("APP_NAME", "GoRide"),
		Version:     getEnv("APP_VERSION", "1.0.0"),
		Environment: getEnv("APP_ENV", "development"),
		Role:        getEnv("APP_ROLE", "rider"),
		Debug:       getEnvAsBool("APP_DEBUG", true),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
		Timezone:    getEnv("APP_TIMEZONE", "UTC"),
		MetricsAddr: getEnv("APP_METRICS_ADDR", ""),
	}
}

func loadRideConfig() *RideConfig {
	return &RideConfig{
		CancelWindow:        getEnvAsDuration("RIDE_CANCEL_WINDOW", 30*time.Second),
		RouteRefreshMeters:  getEnvAsFloat64("RIDE_ROUTE_REFRESH_METERS", 20),
		RouteQueryTimeout:   getEnvAsDuration("RIDE_ROUTE_QUERY_TIMEOUT", 10*time.Second),
		DefaultLatitude:     getEnvAsFloat64("RIDE_DEFAULT_LATITUDE", 0),
		DefaultLongitude:    getEnvAsFloat64("RIDE_DEFAULT_LONGITUDE", 0),
		LocationBroadcastHz: getEnvAsFloat64("RIDE_LOCATION_BROADCAST_HZ", 0.5),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func IsProduction() bool {
	return getEnv("APP_ENV", "development") == "production"
}

func IsDevelopment() bool {
	return getEnv("APP_ENV", "development") == "development"
}
