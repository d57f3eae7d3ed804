package config

import (
	"time"
)

type APIConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	UploadTimeout time.Duration `yaml:"upload_timeout"`
	MaxImageEdge  int           `yaml:"max_image_edge"`
	RefreshLeeway time.Duration `yaml:"refresh_leeway"`
	UserAgent     string        `yaml:"user_agent"`
}

func loadAPIConfig() *APIConfig {
	return &APIConfig{
		BaseURL:       getEnv("API_BASE_URL", "http://localhost:8080/api/v1"),
		Timeout:       getEnvAsDuration("API_TIMEOUT", 15*time.Second),
		UploadTimeout: getEnvAsDuration("API_UPLOAD_TIMEOUT", 60*time.Second),
		MaxImageEdge:  getEnvAsInt("API_MAX_IMAGE_EDGE", 1280),
		RefreshLeeway: getEnvAsDuration("API_REFRESH_LEEWAY", 30*time.Second),
		UserAgent:     getEnv("API_USER_AGENT", "goride-client/1.0"),
	}
}
