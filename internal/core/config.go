package core

import (
	"time"
)

// Configuration constants
const (
	// DefaultServerPort is the default HTTP server port
	DefaultServerPort = 8080
	// DefaultServerHost is the default HTTP bind address
	DefaultServerHost = "0.0.0.0"
	// DefaultEnvVar carries the structured host configuration
	DefaultEnvVar = "NLS_CONFIG"
	// DefaultLocaleMemoSize bounds the number of memoized locale lookups
	DefaultLocaleMemoSize = 512
	// DefaultMaxResolutions bounds the number of bundle directories remembered per epoch
	DefaultMaxResolutions = 1024
)

type Config struct {
	NLS      Options
	Resolver ResolverConfig
	Server   ServerConfig
	Log      LogConfig
}

type ResolverConfig struct {
	EnvVar         string
	LocaleMemoSize int
	MaxResolutions int
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// RateLimitPerMinute bounds lookups per client and endpoint; 0 disables the limit
	RateLimitPerMinute int
	// FileRoot confines the files lookups may name; relative names are resolved against it
	FileRoot string
}

type LogConfig struct {
	Level  string
	Format string
}

func DefaultConfig() *Config {
	return &Config{
		NLS: DefaultOptions(),
		Resolver: ResolverConfig{
			EnvVar:         DefaultEnvVar,
			LocaleMemoSize: DefaultLocaleMemoSize,
			MaxResolutions: DefaultMaxResolutions,
		},
		Server: ServerConfig{
			Host:         DefaultServerHost,
			Port:         DefaultServerPort,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
