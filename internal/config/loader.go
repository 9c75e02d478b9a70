package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"live":    {"gemini-live"},
	"imaging": {"gemini", "openai"},
	"search":  {"gemini"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
//
// A .env file next to the config (or in the working directory) is loaded
// first if present. Variables already set in the environment win.
func Load(path string) (*Config, error) {
	LoadDotEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads .env from the config file's directory and from the
// working directory. Missing files are ignored.
func LoadDotEnv(configPath string) {
	candidates := []string{".env"}
	if dir := filepath.Dir(configPath); dir != "." {
		candidates = append([]string{filepath.Join(dir, ".env")}, candidates...)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			slog.Warn("config: failed to load env file", "path", p, "err", err)
		}
	}
}

// LoadFromReader expands ${VAR} references, decodes a YAML config from r,
// applies defaults and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	expanded := os.ExpandEnv(string(raw))

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}

	if cfg.Providers.Live.Name == "" {
		cfg.Providers.Live.Name = "gemini-live"
	}
	if len(cfg.Providers.Imaging) == 0 {
		cfg.Providers.Imaging = []ProviderEntry{{Name: "gemini"}}
	}

	s := &cfg.Session
	if s.Voice == "" {
		s.Voice = DefaultVoice
	}
	if s.Instructions == "" {
		s.Instructions = DefaultInstructions
	}
	if s.Retry.BaseDelay == 0 {
		s.Retry.BaseDelay = DefaultBaseDelay
	}
	if s.Retry.Multiplier == 0 {
		s.Retry.Multiplier = DefaultMultiplier
	}
	if s.Retry.MaxAttempts == 0 {
		s.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if s.Retry.StabilityWindow == 0 {
		s.Retry.StabilityWindow = DefaultStabilityWindow
	}
	if s.DialTimeout == 0 {
		s.DialTimeout = DefaultDialTimeout
	}

	a := &cfg.Audio
	if a.CaptureRate == 0 {
		a.CaptureRate = DefaultCaptureRate
	}
	if a.PlaybackRate == 0 {
		a.PlaybackRate = DefaultPlaybackRate
	}
	if a.FrameSize == 0 {
		a.FrameSize = DefaultFrameSize
	}

	if cfg.Camera.SendInterval == 0 {
		cfg.Camera.SendInterval = DefaultCameraInterval
	}
	if cfg.Tools.Timeout == 0 {
		cfg.Tools.Timeout = DefaultToolTimeout
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("live", cfg.Providers.Live.Name)
	for i, e := range cfg.Providers.Imaging {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.imaging[%d].name is required", i))
			continue
		}
		validateProviderName("imaging", e.Name)
	}
	validateProviderName("search", cfg.Providers.Search.Name)

	r := cfg.Session.Retry
	if r.BaseDelay < 0 {
		errs = append(errs, fmt.Errorf("session.retry.base_delay %v must be positive", r.BaseDelay))
	}
	if r.Multiplier != 0 && r.Multiplier <= 1 {
		errs = append(errs, fmt.Errorf("session.retry.multiplier %.2f must be greater than 1", r.Multiplier))
	}
	if r.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("session.retry.max_attempts %d must be positive", r.MaxAttempts))
	}
	if r.StabilityWindow < 0 {
		errs = append(errs, fmt.Errorf("session.retry.stability_window %v must be positive", r.StabilityWindow))
	}
	if cfg.Session.DialTimeout < 0 {
		errs = append(errs, fmt.Errorf("session.dial_timeout %v must be positive", cfg.Session.DialTimeout))
	}

	a := cfg.Audio
	if a.CaptureRate < 0 {
		errs = append(errs, fmt.Errorf("audio.capture_rate %d must be positive", a.CaptureRate))
	}
	if a.PlaybackRate < 0 {
		errs = append(errs, fmt.Errorf("audio.playback_rate %d must be positive", a.PlaybackRate))
	}
	if a.OutputRate < 0 {
		errs = append(errs, fmt.Errorf("audio.output_rate %d must not be negative", a.OutputRate))
	}
	if a.FrameSize < 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size %d must be positive", a.FrameSize))
	}

	if cfg.Camera.SendInterval < 0 {
		errs = append(errs, fmt.Errorf("camera.send_interval %v must be positive", cfg.Camera.SendInterval))
	}
	if cfg.Tools.Timeout < 0 {
		errs = append(errs, fmt.Errorf("tools.timeout %v must be positive", cfg.Tools.Timeout))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
