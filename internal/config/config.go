package config

import "time"

// PushConfig holds push-provider settings.
type PushConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	Endpoint  string        `mapstructure:"endpoint" yaml:"endpoint"`
	ServerKey string        `mapstructure:"server_key" yaml:"server_key"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	JWTSecret         string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer         string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience       string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	Push              PushConfig    `mapstructure:"push" yaml:"push"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "parley.db",
		LogLevel:          "info",
		JWTSecret:         "dev-secret-change-me",
		JWTIssuer:         "parley",
		JWTAudience:       "parley-clients",
		Push: PushConfig{
			Enabled:  false,
			Endpoint: "https://fcm.googleapis.com/fcm/send",
			Timeout:  10 * time.Second,
		},
	}
}
