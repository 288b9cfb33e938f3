package config

import (
	"os"
	"strconv"
)

type Config struct {
	Server    ServerConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Addr           string
	MaxUploadBytes int64
}

type CacheConfig struct {
	MaxEntries int
}

// RateLimitConfig is only active when RedisAddr is set; without Redis the
// service runs unthrottled.
type RateLimitConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PerMinute     int
	UserHeader    string
}

func (r RateLimitConfig) Enabled() bool {
	return r.RedisAddr != ""
}

type TelemetryConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Addr:           env("PIXELDESK_ADDR", ":8080"),
			MaxUploadBytes: int64(envInt("PIXELDESK_MAX_UPLOAD_BYTES", 32<<20)),
		},
		Cache: CacheConfig{
			MaxEntries: envInt("PIXELDESK_CACHE_MAX_ENTRIES", 256),
		},
		RateLimit: RateLimitConfig{
			RedisAddr:     env("REDIS_ADDR", ""),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			PerMinute:     envInt("RATE_LIMIT_PER_MINUTE", 120),
			UserHeader:    env("RATE_LIMIT_USER_HEADER", "X-Forwarded-For"),
		},
		Telemetry: TelemetryConfig{
			Exporter:     env("TRACE_EXPORTER", "none"),
			OTLPEndpoint: env("OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("OTLP_INSECURE", false),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
