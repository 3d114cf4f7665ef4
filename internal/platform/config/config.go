package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultEnvFile        = ".env"
	defaultPort           = "8080"
	defaultReadTimeout    = 15 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultIdleTimeout    = 120 * time.Second
	defaultAPITimeout     = 8 * time.Second
	defaultAPIBaseURL     = "http://localhost:8000/api/v1"
	defaultLoginPath      = "/login"
	defaultCartCachePath  = ".cache/cart.json"
	defaultCatalogPerPage = 12
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	API     APIConfig     `yaml:"api"`
	Cart    CartConfig    `yaml:"cart"`
	Catalog CatalogConfig `yaml:"catalog"`
}

// ServerConfig configures the storefront HTTP server.
type ServerConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// APIConfig points the client at the commerce backend.
type APIConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	LoginPath string        `yaml:"login_path"`
}

// CartConfig controls the local cart cache.
type CartConfig struct {
	CachePath string `yaml:"cache_path"`
}

// CatalogConfig holds catalog listing defaults.
type CatalogConfig struct {
	PerPage int `yaml:"per_page"`
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile  string
	yamlFile string
}

// WithEnvFile overrides the .env file consulted before reading the environment.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithYAMLFile overlays values from a YAML config file before env overrides apply.
func WithYAMLFile(path string) Option {
	return func(o *loaderOptions) { o.yamlFile = path }
}

// Load assembles configuration from defaults, an optional YAML file, an optional
// .env file, and the process environment, in increasing order of precedence.
func Load(opts ...Option) (Config, error) {
	lo := loaderOptions{envFile: defaultEnvFile}
	for _, opt := range opts {
		opt(&lo)
	}

	// Missing .env is not an error; env vars may come from the host.
	_ = godotenv.Load(lo.envFile)

	cfg := Config{
		Server: ServerConfig{
			Port:         defaultPort,
			ReadTimeout:  defaultReadTimeout,
			WriteTimeout: defaultWriteTimeout,
			IdleTimeout:  defaultIdleTimeout,
		},
		API: APIConfig{
			BaseURL:   defaultAPIBaseURL,
			Timeout:   defaultAPITimeout,
			LoginPath: defaultLoginPath,
		},
		Cart: CartConfig{
			CachePath: defaultCartCachePath,
		},
		Catalog: CatalogConfig{
			PerPage: defaultCatalogPerPage,
		},
	}

	if lo.yamlFile != "" {
		raw, err := os.ReadFile(lo.yamlFile)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", lo.yamlFile, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", lo.yamlFile, err)
		}
	}

	cfg.Server.Port = envString("STOREFRONT_PORT", envString("PORT", cfg.Server.Port))
	cfg.Server.ReadTimeout = envDuration("STOREFRONT_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = envDuration("STOREFRONT_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = envDuration("STOREFRONT_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.API.BaseURL = envString("STOREFRONT_API_BASE_URL", cfg.API.BaseURL)
	cfg.API.Timeout = envDuration("STOREFRONT_API_TIMEOUT", cfg.API.Timeout)
	cfg.API.LoginPath = envString("STOREFRONT_LOGIN_PATH", cfg.API.LoginPath)
	cfg.Cart.CachePath = envString("STOREFRONT_CART_CACHE", cfg.Cart.CachePath)
	cfg.Catalog.PerPage = envInt("STOREFRONT_CATALOG_PER_PAGE", cfg.Catalog.PerPage)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var missing []string
	if strings.TrimSpace(c.API.BaseURL) == "" {
		missing = append(missing, "api.base_url")
	}
	if c.API.Timeout <= 0 {
		missing = append(missing, "api.timeout")
	}
	if c.Catalog.PerPage <= 0 {
		missing = append(missing, "catalog.per_page")
	}
	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
