package main

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/MrWong99/jarvis/internal/config"
	"github.com/MrWong99/jarvis/pkg/audio"
	"github.com/MrWong99/jarvis/pkg/provider/live"
)

func TestSlogLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   config.LogLevel
		want slog.Level
	}{
		{config.LogDebug, slog.LevelDebug},
		{config.LogInfo, slog.LevelInfo},
		{config.LogWarn, slog.LevelWarn},
		{config.LogError, slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := slogLevel(tt.in); got != tt.want {
			t.Errorf("slogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSessionConfig(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	off := false
	cfg.Session.SearchGrounding = &off

	decls := []live.FunctionDeclaration{{Name: "create_illustration"}}
	got := sessionConfig(cfg, decls)

	if got.Voice != config.DefaultVoice || got.Instructions != config.DefaultInstructions {
		t.Errorf("voice/instructions = %q / %q", got.Voice, got.Instructions)
	}
	if !got.InputTranscription || !got.OutputTranscription {
		t.Error("transcription should be enabled by default")
	}
	if got.SearchGrounding {
		t.Error("search grounding should follow the config")
	}
	if len(got.Tools) != 1 || got.Tools[0].Name != "create_illustration" {
		t.Errorf("tools = %+v", got.Tools)
	}
}

func TestPrintDevices(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	err := printDevices(&buf, []audio.DeviceInfo{
		{Name: "Built-in Mic", MaxInputChannels: 1, DefaultSampleRate: 48000, IsDefaultInput: true},
		{Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 44100, IsDefaultOutput: true},
		{Name: "Headset", MaxInputChannels: 1, MaxOutputChannels: 2, DefaultSampleRate: 16000},
	})
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want 4:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "NAME") {
		t.Errorf("header = %q", lines[0])
	}
	if f := strings.Fields(lines[1]); f[len(f)-1] != "in" || !strings.Contains(lines[1], "48000") {
		t.Errorf("mic line = %q", lines[1])
	}
	if f := strings.Fields(lines[2]); f[len(f)-1] != "out" {
		t.Errorf("speaker line = %q", lines[2])
	}
}

func TestAPIKeyFallback(t *testing.T) {
	t.Setenv("JARVIS_TEST_PRIMARY", "")
	t.Setenv("JARVIS_TEST_SECONDARY", "env-key")

	if got := apiKey(config.ProviderEntry{APIKey: "explicit"}, "JARVIS_TEST_SECONDARY"); got != "explicit" {
		t.Errorf("explicit key = %q", got)
	}
	if got := apiKey(config.ProviderEntry{}, "JARVIS_TEST_PRIMARY", "JARVIS_TEST_SECONDARY"); got != "env-key" {
		t.Errorf("env fallback = %q, want env-key", got)
	}
	if got := apiKey(config.ProviderEntry{}, "JARVIS_TEST_PRIMARY"); got != "" {
		t.Errorf("no key = %q, want empty", got)
	}
}

func TestBuildProviders(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "")

	reg := config.NewRegistry()
	registerBuiltinProviders(t.Context(), reg)

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	_, err := buildProviders(cfg, reg)
	if err == nil || !strings.Contains(err.Error(), "api key is required") {
		t.Errorf("err = %v, want missing api key", err)
	}

	cfg.Providers.Live = config.ProviderEntry{Name: "unknown-live"}
	_, err = buildProviders(cfg, reg)
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRootCommand(t *testing.T) {
	t.Parallel()
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	if !names["run"] || !names["devices"] {
		t.Errorf("subcommands = %v", names)
	}
	for _, f := range []string{"config", "metrics-addr", "image-dir"} {
		if root.Flags().Lookup(f) == nil {
			t.Errorf("root is missing --%s", f)
		}
	}
}
