package config

import (
	"time"
)

type ChannelConfig struct {
	URL               string        `yaml:"url"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	PongTimeout       time.Duration `yaml:"pong_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	ReadBufferSize    int           `yaml:"read_buffer_size"`
	WriteBufferSize   int           `yaml:"write_buffer_size"`
	MaxMessageSize    int64         `yaml:"max_message_size"`
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	EnableCompression bool          `yaml:"enable_compression"`
}

func loadChannelConfig() *ChannelConfig {
	return &ChannelConfig{
		URL:               getEnv("CHANNEL_URL", "ws://localhost:8081/ws"),
		HandshakeTimeout:  getEnvAsDuration("CHANNEL_HANDSHAKE_TIMEOUT", 10*time.Second),
		PingInterval:      getEnvAsDuration("CHANNEL_PING_INTERVAL", 54*time.Second),
		PongTimeout:       getEnvAsDuration("CHANNEL_PONG_TIMEOUT", 60*time.Second),
		WriteTimeout:      getEnvAsDuration("CHANNEL_WRITE_TIMEOUT", 10*time.Second),
		ReadBufferSize:    getEnvAsInt("CHANNEL_READ_BUFFER_SIZE", 1024),
		WriteBufferSize:   getEnvAsInt("CHANNEL_WRITE_BUFFER_SIZE", 1024),
		MaxMessageSize:    int64(getEnvAsInt("CHANNEL_MAX_MESSAGE_SIZE", 4096)),
		ReconnectAttempts: getEnvAsInt("CHANNEL_RECONNECT_ATTEMPTS", 4),
		ReconnectDelay:    getEnvAsDuration("CHANNEL_RECONNECT_DELAY", 2*time.Second),
		EnableCompression: getEnvAsBool("CHANNEL_ENABLE_COMPRESSION", false),
	}
}
