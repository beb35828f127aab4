package application

import (
	"gopkg.in/yaml.v3"
)

// Config is the complete configuration of a matching run and the primary
// entry point for operators.
type Config struct {
	// Version is the configuration schema version in X.Y.Z form.
	Version string `yaml:"version" validate:"required,semver"`
	// Matcher controls the aggregation pass.
	Matcher MatcherConfig `yaml:"matcher" validate:"required"`
	// Scorers lists the feature scorers, in the order features are computed.
	Scorers []ScorerConfig `yaml:"scorers" validate:"required,min=1,dive"`
	// Store selects where documents, archives, groups and records live.
	Store StoreConfig `yaml:"store" validate:"required"`
	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`
	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// MatcherConfig controls one aggregation pass.
type MatcherConfig struct {
	// Namespace owns newly created metadata records, for example
	// "Venue.org/2026/Conference".
	Namespace string `yaml:"namespace" validate:"required,namespace"`
	// MaxConcurrency bounds how many documents are scored at once.
	MaxConcurrency int `yaml:"max_concurrency" validate:"min=1,max=256"`
	// TimeoutSeconds caps a whole run; 0 disables the limit. Documents not
	// finished in time are left for the next pass.
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"min=0,max=86400"`
}

// ScorerConfig defines one feature scorer.
type ScorerConfig struct {
	// Name is the feature name scores are stored under. Must be unique.
	Name string `yaml:"name" validate:"required,min=1,max=100"`
	// Type selects the scorer implementation.
	Type string `yaml:"type" validate:"required,oneof=content_similarity tfidf keyword_overlap"`
	// Parameters holds type-specific settings validated per type.
	Parameters yaml.Node `yaml:"parameters"`
}

// StoreConfig selects and tunes the persistence backend.
type StoreConfig struct {
	// Type is "memory" or "file".
	Type string `yaml:"type" validate:"required,oneof=memory file"`
	// Path is the records snapshot file of the file store.
	Path string `yaml:"path" validate:"required_if=Type file"`
	// Codec is the snapshot encoding, "json" or "cbor".
	Codec string `yaml:"codec" validate:"omitempty,oneof=json cbor"`
	// Compression is applied to the snapshot: "none", "zstd" or "lz4".
	Compression string `yaml:"compression" validate:"omitempty,oneof=none zstd lz4"`
	// WritesPerSecond paces record writes; 0 disables pacing.
	WritesPerSecond float64 `yaml:"writes_per_second" validate:"min=0"`
	// Burst is the number of writes allowed back to back when pacing.
	Burst int `yaml:"burst" validate:"min=0,max=10000"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	// Format is text, json, or auto (text on a terminal, JSON otherwise).
	Format string `yaml:"format" validate:"omitempty,oneof=auto text json"`
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	// Address is the listen address for /metrics, for example ":9090".
	// Empty disables the endpoint.
	Address string `yaml:"address" validate:"omitempty,hostname_port"`
}

// DefaultConfig returns the configuration values applied before a file is
// decoded. It has no scorers, so a file must always list them.
func DefaultConfig() Config {
	return Config{
		Version: "1.0.0",
		Matcher: MatcherConfig{
			MaxConcurrency: 1,
		},
		Store: StoreConfig{
			Type:        "memory",
			Codec:       "json",
			Compression: "none",
			Burst:       1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}
