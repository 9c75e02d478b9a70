package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/jarvis/internal/config"
)

const sampleYAML = `
log_level: debug
metrics_addr: ":9090"

providers:
  live:
    name: gemini-live
    api_key: live-key
    model: gemini-2.5-flash-native-audio-preview-09-2025
  imaging:
    - name: gemini
      api_key: img-key
    - name: openai
      api_key: sk-test
      model: gpt-image-1
  search:
    name: gemini

session:
  voice: Puck
  instructions: Be brief.
  transcription: false
  retry:
    base_delay: 500ms
    multiplier: 1.5
    max_attempts: 3
    stability_window: 5s
  dial_timeout: 7s

audio:
  input_device: USB Mic
  capture_rate: 16000
  playback_rate: 24000
  output_rate: 48000
  frame_size: 512

camera:
  frame_path: /tmp/frame.jpg
  send_interval: 2s

tools:
  timeout: 30s
`

func TestLoadFromReader_Sample(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.LogLevel != config.LogDebug || cfg.MetricsAddr != ":9090" {
		t.Errorf("top level = %q %q", cfg.LogLevel, cfg.MetricsAddr)
	}
	if cfg.Providers.Live.APIKey != "live-key" {
		t.Errorf("live api key = %q", cfg.Providers.Live.APIKey)
	}
	if len(cfg.Providers.Imaging) != 2 || cfg.Providers.Imaging[1].Model != "gpt-image-1" {
		t.Errorf("imaging = %+v", cfg.Providers.Imaging)
	}
	if cfg.Providers.Search.Name != "gemini" {
		t.Errorf("search = %+v", cfg.Providers.Search)
	}

	s := cfg.Session
	if s.Voice != "Puck" || s.Instructions != "Be brief." {
		t.Errorf("session voice/instructions = %q %q", s.Voice, s.Instructions)
	}
	if s.TranscriptionEnabled() {
		t.Error("transcription should be disabled")
	}
	if !s.SearchGroundingEnabled() {
		t.Error("search grounding should default to enabled")
	}
	want := config.RetryConfig{BaseDelay: 500 * time.Millisecond, Multiplier: 1.5, MaxAttempts: 3, StabilityWindow: 5 * time.Second}
	if s.Retry != want {
		t.Errorf("retry = %+v, want %+v", s.Retry, want)
	}
	if s.DialTimeout != 7*time.Second {
		t.Errorf("dial timeout = %v", s.DialTimeout)
	}

	if cfg.Audio.InputDevice != "USB Mic" || cfg.Audio.OutputRate != 48000 || cfg.Audio.FrameSize != 512 {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if cfg.Camera.FramePath != "/tmp/frame.jpg" || cfg.Camera.SendInterval != 2*time.Second {
		t.Errorf("camera = %+v", cfg.Camera)
	}
	if cfg.Tools.Timeout != 30*time.Second {
		t.Errorf("tools timeout = %v", cfg.Tools.Timeout)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader(empty): %v", err)
	}

	if cfg.LogLevel != config.LogInfo {
		t.Errorf("log level = %q, want info", cfg.LogLevel)
	}
	if cfg.Providers.Live.Name != "gemini-live" {
		t.Errorf("live provider = %q", cfg.Providers.Live.Name)
	}
	if len(cfg.Providers.Imaging) != 1 || cfg.Providers.Imaging[0].Name != "gemini" {
		t.Errorf("imaging = %+v", cfg.Providers.Imaging)
	}
	if cfg.Providers.Search.Name != "" {
		t.Errorf("search should stay disabled by default, got %q", cfg.Providers.Search.Name)
	}

	s := cfg.Session
	if s.Voice != config.DefaultVoice || s.Instructions != config.DefaultInstructions {
		t.Errorf("session = %q / %q", s.Voice, s.Instructions)
	}
	if !s.TranscriptionEnabled() || !s.SearchGroundingEnabled() {
		t.Error("toggles should default to enabled")
	}
	if s.Retry.BaseDelay != 2*time.Second || s.Retry.Multiplier != 2 || s.Retry.MaxAttempts != 5 || s.Retry.StabilityWindow != 10*time.Second {
		t.Errorf("retry defaults = %+v", s.Retry)
	}
	if s.DialTimeout != 15*time.Second {
		t.Errorf("dial timeout = %v", s.DialTimeout)
	}
	if cfg.Audio.CaptureRate != 16000 || cfg.Audio.PlaybackRate != 24000 || cfg.Audio.FrameSize != config.DefaultFrameSize {
		t.Errorf("audio defaults = %+v", cfg.Audio)
	}
	if cfg.Camera.SendInterval != time.Second {
		t.Errorf("camera interval = %v", cfg.Camera.SendInterval)
	}
	if cfg.Tools.Timeout != 2*time.Minute {
		t.Errorf("tools timeout = %v", cfg.Tools.Timeout)
	}
}

func TestLoadFromReader_EnvExpansion(t *testing.T) {
	t.Setenv("JARVIS_TEST_KEY", "from-env")
	cfg, err := config.LoadFromReader(strings.NewReader("providers:\n  live:\n    name: gemini-live\n    api_key: ${JARVIS_TEST_KEY}\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Providers.Live.APIKey != "from-env" {
		t.Errorf("api key = %q, want from-env", cfg.Providers.Live.APIKey)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("sesion:\n  voice: Puck\n"))
	if err == nil {
		t.Fatal("expected error for unknown top-level field")
	}
}

func TestLoadFromReader_InvalidYAML(t *testing.T) {
	t.Parallel()
	if _, err := config.LoadFromReader(strings.NewReader("session: [unterminated")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad log level", "log_level: bananas", "log_level"},
		{"negative base delay", "session:\n  retry:\n    base_delay: -1s", "base_delay"},
		{"multiplier below one", "session:\n  retry:\n    multiplier: 0.5", "multiplier"},
		{"multiplier of one", "session:\n  retry:\n    multiplier: 1", "multiplier"},
		{"negative attempts", "session:\n  retry:\n    max_attempts: -2", "max_attempts"},
		{"negative stability", "session:\n  retry:\n    stability_window: -1s", "stability_window"},
		{"negative dial timeout", "session:\n  dial_timeout: -3s", "dial_timeout"},
		{"negative capture rate", "audio:\n  capture_rate: -1", "capture_rate"},
		{"negative output rate", "audio:\n  output_rate: -1", "output_rate"},
		{"negative frame size", "audio:\n  frame_size: -1", "frame_size"},
		{"negative camera interval", "camera:\n  send_interval: -1s", "send_interval"},
		{"negative tool timeout", "tools:\n  timeout: -1s", "tools.timeout"},
		{"imaging entry without name", "providers:\n  imaging:\n    - api_key: x", "providers.imaging[0].name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{LogLevel: "loud", Audio: config.AudioConfig{CaptureRate: -1}}
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "log_level") || !strings.Contains(msg, "capture_rate") {
		t.Errorf("error = %v, want both failures reported", err)
	}
}

func TestValidate_UnknownProviderIsWarningOnly(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Providers: config.ProvidersConfig{Live: config.ProviderEntry{Name: "custom-live"}}}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		t.Errorf("unknown provider should not fail validation: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "jarvis.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Session.Voice != "Puck" {
		t.Errorf("voice = %q", cfg.Session.Voice)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "missing.yaml") {
		t.Errorf("error = %v, want path in message", err)
	}
}

func TestLoad_DotEnvNextToConfig(t *testing.T) {
	dir := t.TempDir()
	const key = "JARVIS_DOTENV_TEST_KEY"
	t.Setenv(key, "")
	os.Unsetenv(key)

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(key+"=dotenv-value\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "jarvis.yaml")
	if err := os.WriteFile(path, []byte("providers:\n  live:\n    name: gemini-live\n    api_key: ${"+key+"}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.Live.APIKey != "dotenv-value" {
		t.Errorf("api key = %q, want dotenv-value", cfg.Providers.Live.APIKey)
	}
}
