package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvBackendURL = "MIXDESK_BACKEND_URL"
	EnvModel      = "MIXDESK_MODEL"
	EnvLogLevel   = "MIXDESK_LOG_LEVEL"
	EnvArchive    = "MIXDESK_ARCHIVE"
)

// Load reads the YAML file at path on top of [Default], applies environment
// overrides and validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := Default()
		ApplyEnv(cfg)
		return cfg, Validate(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults, applies environment
// overrides and validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg fields from the environment.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvBackendURL); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		cfg.Model.ID = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = LogLevel(v)
	}
	if v, ok := os.LookupEnv(EnvArchive); ok {
		cfg.ArchivePath = v
	}
}

// Validate checks that cfg is coherent. It returns a joined error listing
// every problem found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.BackendURL == "" {
		errs = append(errs, errors.New("backend_url is required"))
	} else if u, err := url.Parse(cfg.BackendURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend_url %q is not an absolute URL", cfg.BackendURL))
	}
	if cfg.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("request_timeout %s must not be negative", cfg.RequestTimeout))
	}
	if err := cfg.Model.Session().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("model: %w", err))
	}
	if cfg.Mode != "" && !cfg.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("mode %q is invalid; valid values: engineer, producer", cfg.Mode))
	}
	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.Model.Temperature > 1 {
		slog.Warn("model temperature above the recommended range [0, 1]", "temperature", cfg.Model.Temperature)
	}
	if cfg.ArchivePath == "" {
		slog.Info("archive_path is empty; conversations will not be archived")
	}

	return errors.Join(errs...)
}
