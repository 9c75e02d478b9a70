// Package config provides the configuration schema, loader, and provider registry
// for the Jarvis realtime assistant.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultVoice           = "Aoede"
	DefaultBaseDelay       = 2 * time.Second
	DefaultMultiplier      = 2.0
	DefaultMaxAttempts     = 5
	DefaultStabilityWindow = 10 * time.Second
	DefaultDialTimeout     = 15 * time.Second
	DefaultCaptureRate     = 16000
	DefaultPlaybackRate    = 24000
	DefaultFrameSize       = 256
	DefaultCameraInterval  = time.Second
	DefaultToolTimeout     = 2 * time.Minute
)

// DefaultInstructions is the system instruction sent when none is configured.
const DefaultInstructions = "You are Jarvis, a highly advanced AI assistant. You are helpful, precise, and have a futuristic personality.\n\n" +
	"CRITICAL RULES:\n" +
	"1. If the user asks to 'create', 'generate', or 'draw' an image from scratch, you MUST use the `create_illustration` tool.\n" +
	"2. If the user asks to 'take a photo', 'capture me', 'selfie', 'picture of me', or 'reimagine' them, you MUST use the `reimagine_user` tool. Do NOT just describe the video feed textually. You must generate an actual image using the tool.\n" +
	"3. For real-time information, current events, or world facts, proactively use the Google Search grounding capability to provide accurate, up-to-date answers instantly.\n" +
	"4. Always confirm verbally when you are about to perform an action (e.g., 'Capturing that for you now...')."

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Changes are applied live by the watcher.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the ops listener address serving /metrics, /healthz and
	// /readyz (e.g., ":9090"). Empty disables the listener.
	MetricsAddr string `yaml:"metrics_addr"`

	Providers ProvidersConfig `yaml:"providers"`
	Session   SessionConfig   `yaml:"session"`
	Audio     AudioConfig     `yaml:"audio"`
	Camera    CameraConfig    `yaml:"camera"`
	Tools     ToolsConfig     `yaml:"tools"`
}

// ProvidersConfig declares which provider implementation to use for each
// capability. Each entry selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	// Live is the realtime session transport.
	Live ProviderEntry `yaml:"live"`

	// Imaging lists image providers. The first is primary, the rest are
	// tried in order when it fails.
	Imaging []ProviderEntry `yaml:"imaging"`

	// Search backs the search_web tool. An empty name disables the tool.
	Search ProviderEntry `yaml:"search"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "gemini", "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API. Use ${VAR}
	// references to keep it out of the file.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// SessionConfig configures the live session and its reconnect behaviour.
type SessionConfig struct {
	// Voice is the prebuilt voice name.
	Voice string `yaml:"voice"`

	// Instructions is the system instruction.
	Instructions string `yaml:"instructions"`

	// Transcription enables live transcription of user speech. Default true.
	Transcription *bool `yaml:"transcription"`

	// SearchGrounding offers remote web search grounding. Default true.
	SearchGrounding *bool `yaml:"search_grounding"`

	Retry RetryConfig `yaml:"retry"`

	// DialTimeout bounds a single connect attempt.
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// TranscriptionEnabled reports the effective transcription setting.
func (s SessionConfig) TranscriptionEnabled() bool {
	return s.Transcription == nil || *s.Transcription
}

// SearchGroundingEnabled reports the effective search grounding setting.
func (s SessionConfig) SearchGroundingEnabled() bool {
	return s.SearchGrounding == nil || *s.SearchGrounding
}

// RetryConfig tunes reconnect backoff.
type RetryConfig struct {
	BaseDelay       time.Duration `yaml:"base_delay"`
	Multiplier      float64       `yaml:"multiplier"`
	MaxAttempts     int           `yaml:"max_attempts"`
	StabilityWindow time.Duration `yaml:"stability_window"`
}

// AudioConfig selects devices and stream parameters.
type AudioConfig struct {
	// InputDevice and OutputDevice select devices by name. Empty selects the
	// system default.
	InputDevice  string `yaml:"input_device"`
	OutputDevice string `yaml:"output_device"`

	CaptureRate  int `yaml:"capture_rate"`
	PlaybackRate int `yaml:"playback_rate"`

	// OutputRate opens the output device at a different rate and resamples.
	// Zero means PlaybackRate.
	OutputRate int `yaml:"output_rate"`

	FrameSize int `yaml:"frame_size"`
}

// CameraConfig configures the camera frame source.
type CameraConfig struct {
	// FramePath is a JPEG file watched for updates. Empty disables the file
	// source; frames can still be loaded with the /frame console command.
	FramePath string `yaml:"frame_path"`

	// SendInterval is the minimum spacing between frames sent to the session.
	SendInterval time.Duration `yaml:"send_interval"`
}

// ToolsConfig configures tool execution.
type ToolsConfig struct {
	// Timeout bounds the background work of a single tool call.
	Timeout time.Duration `yaml:"timeout"`
}
