// Package config loads runtime settings from defaults, a .env file, the
// process environment and Secret Manager references.
package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	envPrefix = "SEED_WEB_"

	defaultEnvFile        = ".env"
	defaultPort           = "8080"
	defaultReadTimeout    = 15 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultIdleTimeout    = 120 * time.Second
	defaultEnvironment    = "local"
	defaultMaxViewers     = 1024
	defaultIdleTTL        = 30 * time.Minute
	defaultDataURL        = "data/straindata.json"
	defaultDataDir        = "."
	defaultCacheTTL       = 5 * time.Minute
	defaultFetchTimeout   = 8 * time.Second
	defaultResizeDebounce = 250 * time.Millisecond
	defaultSiteConfig     = "site.yaml"
	defaultSecretsFile    = ".secrets.local"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server  ServerConfig
	Session SessionConfig
	Data    DataConfig
	Secrets SecretsConfig
	Metrics MetricsConfig
	// SiteConfigPath points at the storefront site.yaml.
	SiteConfigPath string
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Dev          bool
	Environment  string
}

// Production reports whether cookies must be marked secure.
func (s ServerConfig) Production() bool { return s.Environment == "prod" }

// SessionConfig controls the signed session cookie and the viewer registry.
type SessionConfig struct {
	SigningKey string
	MaxViewers int
	IdleTTL    time.Duration
}

// DataConfig describes where the strain dataset comes from.
type DataConfig struct {
	URL            string
	Dir            string
	CacheTTL       time.Duration
	FetchTimeout   time.Duration
	Watch          bool
	ResizeDebounce time.Duration
}

// SecretsConfig configures Secret Manager lookups.
type SecretsConfig struct {
	ProjectID    string
	FallbackFile string
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
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

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Lookup returns the effective value of an unprefixed key (e.g. "SECRETS_PROJECT_ID")
// using the same precedence as Load. It lets callers build the secret resolver
// before loading the rest.
func Lookup(key string, opts ...Option) (string, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	lookup, err := options.lookup()
	if err != nil {
		return "", err
	}
	v, _ := lookup(envPrefix + key)
	return v, nil
}

func defaultOptions() loaderOptions {
	return loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}
}

func (o loaderOptions) lookup() (func(string) (string, bool), error) {
	dotEnvValues, err := loadDotEnv(o.envFile)
	if err != nil {
		return nil, err
	}
	return func(key string) (string, bool) {
		if o.envMap != nil {
			if value, ok := o.envMap[key]; ok {
				return value, true
			}
		}
		if o.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}, nil
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	lookup, err := options.lookup()
	if err != nil {
		return Config{}, err
	}
	key := func(name string) string { return envPrefix + name }

	port := stringWithDefault(lookup, key("PORT"), "")
	if port == "" {
		port = stringWithDefault(lookup, "PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         port,
			ReadTimeout:  durationWithDefault(lookup, key("READ_TIMEOUT"), defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, key("WRITE_TIMEOUT"), defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, key("IDLE_TIMEOUT"), defaultIdleTimeout),
			Dev:          boolWithDefault(lookup, key("DEV"), false),
			Environment:  strings.ToLower(stringWithDefault(lookup, key("ENV"), defaultEnvironment)),
		},
		Session: SessionConfig{
			SigningKey: stringWithDefault(lookup, key("SESSION_SIGNING_KEY"), ""),
			MaxViewers: intWithDefault(lookup, key("SESSION_MAX_VIEWERS"), defaultMaxViewers),
			IdleTTL:    durationWithDefault(lookup, key("SESSION_IDLE_TTL"), defaultIdleTTL),
		},
		Data: DataConfig{
			URL:            stringWithDefault(lookup, key("DATA_URL"), defaultDataURL),
			Dir:            stringWithDefault(lookup, key("DATA_DIR"), defaultDataDir),
			CacheTTL:       durationWithDefault(lookup, key("DATA_CACHE_TTL"), defaultCacheTTL),
			FetchTimeout:   durationWithDefault(lookup, key("DATA_FETCH_TIMEOUT"), defaultFetchTimeout),
			Watch:          boolWithDefault(lookup, key("DATA_WATCH"), false),
			ResizeDebounce: durationWithDefault(lookup, key("RESIZE_DEBOUNCE"), defaultResizeDebounce),
		},
		Secrets: SecretsConfig{
			ProjectID:    stringWithDefault(lookup, key("SECRETS_PROJECT_ID"), ""),
			FallbackFile: stringWithDefault(lookup, key("SECRETS_FALLBACK_FILE"), defaultSecretsFile),
		},
		Metrics: MetricsConfig{
			Enabled: boolWithDefault(lookup, key("METRICS_ENABLED"), true),
		},
		SiteConfigPath: stringWithDefault(lookup, key("SITE_CONFIG"), defaultSiteConfig),
	}

	resolved, err := resolveSecret(ctx, cfg.Session.SigningKey, options.secret)
	if err != nil {
		return Config{}, err
	}
	cfg.Session.SigningKey = resolved

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return strings.TrimSpace(secret), nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if _, err := strconv.Atoi(cfg.Server.Port); err != nil {
		missing = append(missing, "Server.Port")
	}
	if cfg.Server.Production() && strings.TrimSpace(cfg.Session.SigningKey) == "" {
		missing = append(missing, "Session.SigningKey")
	}
	if cfg.Session.MaxViewers <= 0 {
		missing = append(missing, "Session.MaxViewers")
	}
	if cfg.Session.IdleTTL <= 0 {
		missing = append(missing, "Session.IdleTTL")
	}
	if strings.TrimSpace(cfg.Data.URL) == "" {
		missing = append(missing, "Data.URL")
	}
	if cfg.Data.CacheTTL < 0 {
		missing = append(missing, "Data.CacheTTL")
	}
	if cfg.Data.FetchTimeout < 0 {
		missing = append(missing, "Data.FetchTimeout")
	}
	if cfg.Data.ResizeDebounce <= 0 {
		missing = append(missing, "Data.ResizeDebounce")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		values[name] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
