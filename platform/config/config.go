// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tanktally_backend/platform/validator"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// ProviderConfig provides the mapping provider credential and endpoints.
type ProviderConfig interface {
	GetMapboxAccessToken() string
	GetMapboxSearchURL() string
	GetMapboxDirectionsURL() string
	GetIPLookupURL() string
	GetProviderTimeout() time.Duration
	GetProviderRPS() float64
}

// PlannerConfig provides the coordinator tuning knobs.
type PlannerConfig interface {
	GetSuggestDebounce() time.Duration
	GetSuggestLimit() int
	GetSessionRotation() string
	GetDefaultLongitude() float64
	GetDefaultLatitude() float64
	GetDefaultZoom() float64
	GetRegionalZoom() float64
	GetBootstrapTimeout() time.Duration
	GetPlannerIdleTTL() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// RateLimitConfig provides settings for API rate limiting.
type RateLimitConfig interface {
	GetRedisURL() string
	GetAPIRateLimit() string
}

// LogConfig provides settings for log output.
type LogConfig interface {
	GetEnv() string
	GetLogFile() string
	GetLogMaxSizeMB() int
	GetLogMaxBackups() int
	GetLogMaxAgeDays() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                 string        `validate:"required"`
	HTTPAddr            string        `validate:"required"`
	CORSAllowAll        bool
	CORSOrigins         []string
	MapboxAccessToken   string        `validate:"required"`
	MapboxSearchURL     string        `validate:"required,url"`
	MapboxDirectionsURL string        `validate:"required,url"`
	IPLookupURL         string        `validate:"required,url"`
	ProviderTimeout     time.Duration `validate:"gt=0"`
	ProviderRPS         float64       `validate:"gte=0"`
	SuggestDebounce     time.Duration `validate:"gte=0"`
	SuggestLimit        int           `validate:"gte=1,lte=10"`
	SessionRotation     string        `validate:"oneof=never after_route"`
	DefaultLongitude    float64       `validate:"gte=-180,lte=180"`
	DefaultLatitude     float64       `validate:"gte=-90,lte=90"`
	DefaultZoom         float64       `validate:"gte=0,lte=22"`
	RegionalZoom        float64       `validate:"gte=0,lte=22"`
	BootstrapTimeout    time.Duration `validate:"gt=0"`
	PlannerIdleTTL      time.Duration `validate:"gt=0"`
	RedisURL            string
	APIRateLimit        string
	LogFile             string
	LogMaxSizeMB        int
	LogMaxBackups       int
	LogMaxAgeDays       int
}

// =============================================================================
// Interface Implementations
// =============================================================================

// ProviderConfig implementation
func (c *Config) GetMapboxAccessToken() string      { return c.MapboxAccessToken }
func (c *Config) GetMapboxSearchURL() string        { return c.MapboxSearchURL }
func (c *Config) GetMapboxDirectionsURL() string    { return c.MapboxDirectionsURL }
func (c *Config) GetIPLookupURL() string            { return c.IPLookupURL }
func (c *Config) GetProviderTimeout() time.Duration { return c.ProviderTimeout }
func (c *Config) GetProviderRPS() float64           { return c.ProviderRPS }

// PlannerConfig implementation
func (c *Config) GetSuggestDebounce() time.Duration  { return c.SuggestDebounce }
func (c *Config) GetSuggestLimit() int               { return c.SuggestLimit }
func (c *Config) GetSessionRotation() string         { return c.SessionRotation }
func (c *Config) GetDefaultLongitude() float64       { return c.DefaultLongitude }
func (c *Config) GetDefaultLatitude() float64        { return c.DefaultLatitude }
func (c *Config) GetDefaultZoom() float64            { return c.DefaultZoom }
func (c *Config) GetRegionalZoom() float64           { return c.RegionalZoom }
func (c *Config) GetBootstrapTimeout() time.Duration { return c.BootstrapTimeout }
func (c *Config) GetPlannerIdleTTL() time.Duration   { return c.PlannerIdleTTL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// RateLimitConfig implementation
func (c *Config) GetRedisURL() string     { return c.RedisURL }
func (c *Config) GetAPIRateLimit() string { return c.APIRateLimit }

// LogConfig implementation
func (c *Config) GetEnv() string        { return c.Env }
func (c *Config) GetLogFile() string    { return c.LogFile }
func (c *Config) GetLogMaxSizeMB() int  { return c.LogMaxSizeMB }
func (c *Config) GetLogMaxBackups() int { return c.LogMaxBackups }
func (c *Config) GetLogMaxAgeDays() int { return c.LogMaxAgeDays }

// Load reads configuration from environment variables. Values from the optional
// YAML file named by CONFIG_FILE act as defaults that the environment overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()

	src, err := newSource(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	return src.build()
}

// source resolves keys from the environment first, then the file overlay.
type source struct {
	file map[string]string
}

func newSource(path string) (*source, error) {
	s := &source{file: map[string]string{}}
	if strings.TrimSpace(path) == "" {
		return s, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &s.file); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return s, nil
}

func (s *source) build() (*Config, error) {
	corsOrigins := splitCSV(s.get("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(s.get("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                 s.get("APP_ENV", "development"),
		HTTPAddr:            s.get("HTTP_ADDR", ":8080"),
		CORSAllowAll:        corsAllowAll,
		CORSOrigins:         corsOrigins,
		MapboxAccessToken:   s.get("MAPBOX_ACCESS_TOKEN", ""),
		MapboxSearchURL:     s.get("MAPBOX_SEARCH_URL", "https://api.mapbox.com/search/searchbox/v1"),
		MapboxDirectionsURL: s.get("MAPBOX_DIRECTIONS_URL", "https://api.mapbox.com/directions/v5/mapbox/driving"),
		IPLookupURL:         s.get("IP_LOOKUP_URL", "https://ipapi.co"),
		ProviderTimeout:     mustDuration(s.get("PROVIDER_TIMEOUT", "5s")),
		ProviderRPS:         mustFloat(s.get("PROVIDER_RPS", "10")),
		SuggestDebounce:     mustDuration(s.get("SUGGEST_DEBOUNCE", "300ms")),
		SuggestLimit:        mustInt(s.get("SUGGEST_LIMIT", "5")),
		SessionRotation:     strings.ToLower(s.get("SESSION_ROTATION", "never")),
		DefaultLongitude:    mustFloat(s.get("DEFAULT_LONGITUDE", "-70.9")),
		DefaultLatitude:     mustFloat(s.get("DEFAULT_LATITUDE", "42.35")),
		DefaultZoom:         mustFloat(s.get("DEFAULT_ZOOM", "9")),
		RegionalZoom:        mustFloat(s.get("REGIONAL_ZOOM", "5")),
		BootstrapTimeout:    mustDuration(s.get("BOOTSTRAP_TIMEOUT", "3s")),
		PlannerIdleTTL:      mustDuration(s.get("PLANNER_IDLE_TTL", "30m")),
		RedisURL:            s.get("REDIS_URL", ""),
		APIRateLimit:        s.get("API_RATE_LIMIT", "300-M"),
		LogFile:             s.get("LOG_FILE", ""),
		LogMaxSizeMB:        mustInt(s.get("LOG_MAX_SIZE_MB", "100")),
		LogMaxBackups:       mustInt(s.get("LOG_MAX_BACKUPS", "5")),
		LogMaxAgeDays:       mustInt(s.get("LOG_MAX_AGE_DAYS", "14")),
	}

	if cfg.MapboxAccessToken == "" {
		return nil, fmt.Errorf("MAPBOX_ACCESS_TOKEN is required")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (s *source) get(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	if val, ok := s.file[key]; ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
