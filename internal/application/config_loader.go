package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-matcher/internal/ports"
)

// EnvPrefix prefixes every environment variable that overrides
// configuration.
const EnvPrefix = "MATCHER_"

// ConfigLoader parses, overrides, validates and caches matcher
// configurations. Identical configurations, after environment overrides,
// are parsed once; concurrent loads of the same content share one parse.
type ConfigLoader struct {
	// validator performs struct field validation and the custom rules
	// registered by registerCustomValidators.
	validator *validator.Validate
	// lookupEnv resolves environment overrides.
	lookupEnv func(string) (string, bool)
	// cache stores validated configurations indexed by SHA256 hash of
	// their normalized YAML.
	// WARNING: Cached configs MUST NOT be mutated.
	cache   map[string]*Config
	cacheMu sync.RWMutex
	// sf prevents duplicate validation when multiple goroutines load the
	// same configuration simultaneously.
	sf singleflight.Group
}

// LoaderOption configures a ConfigLoader.
type LoaderOption func(*ConfigLoader)

// WithEnvLookup replaces os.LookupEnv as the source of MATCHER_* overrides.
func WithEnvLookup(lookup func(string) (string, bool)) LoaderOption {
	return func(l *ConfigLoader) { l.lookupEnv = lookup }
}

// NewConfigLoader creates a loader with the custom validators registered.
func NewConfigLoader(opts ...LoaderOption) (*ConfigLoader, error) {
	v := validator.New()
	if err := registerCustomValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	l := &ConfigLoader{
		validator: v,
		lookupEnv: os.LookupEnv,
		cache:     make(map[string]*Config),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// LoadDotEnv loads the given .env files into the process environment.
// Files that do not exist are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadFromFile loads a configuration from a YAML file. A missing file
// yields a *ports.ConfigError wrapping ports.ErrConfigNotFound.
// WARNING: The returned config is shared with the cache and MUST NOT be
// mutated.
func (l *ConfigLoader) LoadFromFile(ctx context.Context, path string) (*Config, error) {
	cleanPath := filepath.Clean(path)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ports.NewConfigError(cleanPath, fmt.Errorf("%w: %v", ports.ErrConfigNotFound, err))
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return l.load(ctx, data)
}

// LoadFromReader loads a configuration from r.
// WARNING: The returned config MUST NOT be mutated.
func (l *ConfigLoader) LoadFromReader(ctx context.Context, r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return l.load(ctx, data)
}

func (l *ConfigLoader) load(ctx context.Context, data []byte) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg, err := l.parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}

	hash, err := calculateConfigHash(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := l.sf.Do(hash, func() (any, error) {
		if cached, ok := l.getCached(hash); ok {
			return cached, nil
		}
		if err := l.Validate(cfg); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}
		l.cacheMu.Lock()
		l.cache[hash] = cfg
		l.cacheMu.Unlock()
		return cfg, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Config), nil
}

// parseYAML decodes data over DefaultConfig. Unknown fields are rejected so
// typos are not silently ignored.
func (l *ConfigLoader) parseYAML(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &cfg, nil
}

// applyEnv overlays MATCHER_* variables onto cfg.
func (l *ConfigLoader) applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := l.lookupEnv(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	str("NAMESPACE", &cfg.Matcher.Namespace)
	str("STORE_TYPE", &cfg.Store.Type)
	str("STORE_PATH", &cfg.Store.Path)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	str("METRICS_ADDRESS", &cfg.Metrics.Address)

	if v, ok := l.lookupEnv(EnvPrefix + "MAX_CONCURRENCY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return ports.NewConfigError(EnvPrefix+"MAX_CONCURRENCY", err)
		}
		cfg.Matcher.MaxConcurrency = n
	}
	return nil
}

// Validate checks struct tags and the rules tags cannot express: unique
// scorer names and per-type scorer parameters.
func (l *ConfigLoader) Validate(cfg *Config) error {
	if err := l.validator.Struct(cfg); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}

	names := make(map[string]int, len(cfg.Scorers))
	for i, s := range cfg.Scorers {
		if first, dup := names[s.Name]; dup {
			return fmt.Errorf("scorers[%d]: duplicate name %q, already used by scorers[%d]", i, s.Name, first)
		}
		names[s.Name] = i

		if err := ValidateScorerParameters(s.Type, s.Parameters); err != nil {
			return fmt.Errorf("scorer %s parameter validation failed: %w", s.Name, err)
		}
	}
	return nil
}

// ClearCache drops every cached configuration.
func (l *ConfigLoader) ClearCache() {
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()
	l.cache = make(map[string]*Config)
}

func (l *ConfigLoader) getCached(hash string) (*Config, bool) {
	l.cacheMu.RLock()
	defer l.cacheMu.RUnlock()
	cfg, ok := l.cache[hash]
	return cfg, ok
}

// calculateConfigHash hashes the re-encoded config so that formatting and
// key order differences do not defeat the cache.
func calculateConfigHash(cfg *Config) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config for hashing: %w", err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

func registerCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}
	if err := v.RegisterValidation("namespace", validateNamespace); err != nil {
		return fmt.Errorf("failed to register namespace validator: %w", err)
	}
	return nil
}

// validateSemver accepts X.Y.Z where X, Y and Z are non-negative integers.
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	n, err := fmt.Sscanf(value, "%d.%d.%d", &major, &minor, &patch)
	return err == nil && n == 3 && major >= 0 && minor >= 0 && patch >= 0
}

// validateNamespace accepts slash separated path segments without
// whitespace, such as "Venue.org/2026/Conference".
func validateNamespace(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" || strings.ContainsAny(value, " \t\r\n") {
		return false
	}
	for _, seg := range strings.Split(value, "/") {
		if seg == "" {
			return false
		}
	}
	return true
}
