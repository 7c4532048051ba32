package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	Postgres PostgresConfig `yaml:"postgres"`
	Avatar   AvatarConfig   `yaml:"avatar"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address            string          `yaml:"address"`
	ReadTimeout        time.Duration   `yaml:"readTimeout"`
	WriteTimeout       time.Duration   `yaml:"writeTimeout"`
	AllowedOrigins     []string        `yaml:"allowedOrigins"`
	ExposeUnsafeRoutes bool            `yaml:"exposeUnsafeRoutes"`
	RateLimit          RateLimitConfig `yaml:"rateLimit"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool   `yaml:"enabled"`
	RequestsPerMinute int    `yaml:"requestsPerMinute"`
	Burst             int    `yaml:"burst"`
	Backend           string `yaml:"backend"`
	ValkeyAddr        string `yaml:"valkeyAddr"`
}

// AuthConfig holds session token and password hashing settings.
type AuthConfig struct {
	Secret     string        `yaml:"secret"`
	TokenTTL   time.Duration `yaml:"tokenTtl"`
	BcryptCost int           `yaml:"bcryptCost"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN         string `yaml:"dsn"`
	MaxConns    int32  `yaml:"maxConns"`
	MinConns    int32  `yaml:"minConns"`
	AutoMigrate bool   `yaml:"autoMigrate"`
}

// AvatarConfig controls upload limits and where avatars are kept.
type AvatarConfig struct {
	MaxBytes  int64               `yaml:"maxBytes"`
	MaxPixels int64               `yaml:"maxPixels"`
	Width     int                 `yaml:"width"`
	Height    int                 `yaml:"height"`
	Storage   AvatarStorageConfig `yaml:"storage"`
}

// AvatarStorageConfig selects the avatar backend. "database" keeps images in
// the accounts table, "s3" writes them to an S3-compatible bucket.
type AvatarStorageConfig struct {
	Backend   string `yaml:"backend"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
}

const (
	// RateLimitBackendMemory keeps counters in process.
	RateLimitBackendMemory = "memory"
	// RateLimitBackendValkey shares counters through Valkey.
	RateLimitBackendValkey = "valkey"
	// AvatarBackendDatabase stores avatars in the account row.
	AvatarBackendDatabase = "database"
	// AvatarBackendS3 stores avatars in object storage.
	AvatarBackendS3 = "s3"
)

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("HTTP_EXPOSE_UNSAFE_ROUTES"); v != "" {
		cfg.HTTP.ExposeUnsafeRoutes = parseBool(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BACKEND"); v != "" {
		cfg.HTTP.RateLimit.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("VALKEY_ADDR"); v != "" {
		cfg.HTTP.RateLimit.ValkeyAddr = v
	}
	// JWT_SECRET is the historical name of the signing secret.
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("AUTH_TOKEN_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Auth.TokenTTL = parsed
		}
	}
	if v := os.Getenv("AUTH_BCRYPT_COST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Auth.BcryptCost = parsed
		}
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("POSTGRES_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.MinConns = int32(parsed)
		}
	}
	if v := os.Getenv("POSTGRES_AUTO_MIGRATE"); v != "" {
		cfg.Postgres.AutoMigrate = parseBool(v)
	}
	if v := os.Getenv("AVATAR_MAX_BYTES"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Avatar.MaxBytes = parsed
		}
	}
	if v := os.Getenv("AVATAR_MAX_PIXELS"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Avatar.MaxPixels = parsed
		}
	}
	if v := os.Getenv("AVATAR_STORAGE_BACKEND"); v != "" {
		cfg.Avatar.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("AVATAR_S3_ENDPOINT"); v != "" {
		cfg.Avatar.Storage.Endpoint = v
	}
	if v := os.Getenv("AVATAR_S3_ACCESS_KEY"); v != "" {
		cfg.Avatar.Storage.AccessKey = v
	}
	if v := os.Getenv("AVATAR_S3_SECRET_KEY"); v != "" {
		cfg.Avatar.Storage.SecretKey = v
	}
	if v := os.Getenv("AVATAR_S3_BUCKET"); v != "" {
		cfg.Avatar.Storage.Bucket = v
	}
	if v := os.Getenv("AVATAR_S3_REGION"); v != "" {
		cfg.Avatar.Storage.Region = v
	}
}

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
				Backend:           RateLimitBackendMemory,
			},
		},
		Auth: AuthConfig{
			BcryptCost: 8,
		},
		Postgres: PostgresConfig{
			MaxConns:    4,
			AutoMigrate: true,
		},
		Avatar: AvatarConfig{
			MaxBytes:  3_000_000,
			MaxPixels: 4096 * 4096,
			Width:     250,
			Height:    250,
			Storage: AvatarStorageConfig{
				Backend: AvatarBackendDatabase,
				Bucket:  "avatars",
			},
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return errors.New("auth.secret cannot be empty")
	}
	if c.Auth.TokenTTL < 0 {
		return errors.New("auth.tokenTtl cannot be negative")
	}
	if c.Avatar.MaxBytes <= 0 {
		return errors.New("avatar.maxBytes must be positive")
	}
	if c.Avatar.MaxPixels <= 0 {
		return errors.New("avatar.maxPixels must be positive")
	}
	if c.Avatar.Width <= 0 || c.Avatar.Height <= 0 {
		return errors.New("avatar.width and avatar.height must be positive")
	}
	switch c.Avatar.Storage.Backend {
	case AvatarBackendDatabase:
	case AvatarBackendS3:
		if strings.TrimSpace(c.Avatar.Storage.Endpoint) == "" || strings.TrimSpace(c.Avatar.Storage.Bucket) == "" {
			return errors.New("avatar.storage.endpoint and bucket are required for the s3 backend")
		}
	default:
		return fmt.Errorf("avatar.storage.backend %q is not supported", c.Avatar.Storage.Backend)
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
		switch c.HTTP.RateLimit.Backend {
		case RateLimitBackendMemory:
		case RateLimitBackendValkey:
			if strings.TrimSpace(c.HTTP.RateLimit.ValkeyAddr) == "" {
				return errors.New("http.rateLimit.valkeyAddr cannot be empty when the valkey backend is enabled")
			}
		default:
			return fmt.Errorf("http.rateLimit.backend %q is not supported", c.HTTP.RateLimit.Backend)
		}
	}
	return nil
}
