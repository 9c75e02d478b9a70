package config_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/jarvis/internal/config"
	"github.com/MrWong99/jarvis/pkg/provider/imaging"
	imagingmock "github.com/MrWong99/jarvis/pkg/provider/imaging/mock"
	"github.com/MrWong99/jarvis/pkg/provider/live"
	livemock "github.com/MrWong99/jarvis/pkg/provider/live/mock"
	"github.com/MrWong99/jarvis/pkg/provider/search"
	searchmock "github.com/MrWong99/jarvis/pkg/provider/search/mock"
)

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		level config.LogLevel
		want  bool
	}{
		{config.LogDebug, true},
		{config.LogInfo, true},
		{config.LogWarn, true},
		{config.LogError, true},
		{"trace", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tt.level.IsValid(); got != tt.want {
			t.Errorf("LogLevel(%q).IsValid() = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestSessionConfig_Toggles(t *testing.T) {
	t.Parallel()
	off := false
	on := true

	var s config.SessionConfig
	if !s.TranscriptionEnabled() || !s.SearchGroundingEnabled() {
		t.Error("unset toggles should default to enabled")
	}
	s.Transcription = &off
	s.SearchGrounding = &off
	if s.TranscriptionEnabled() || s.SearchGroundingEnabled() {
		t.Error("explicit false should disable")
	}
	s.Transcription = &on
	if !s.TranscriptionEnabled() {
		t.Error("explicit true should enable")
	}
}

func TestProviderEntry_OptionString(t *testing.T) {
	t.Parallel()
	e := config.ProviderEntry{Options: map[string]any{"quality": "high", "n": 3}}
	if got := e.OptionString("quality"); got != "high" {
		t.Errorf("OptionString(quality) = %q, want high", got)
	}
	if got := e.OptionString("n"); got != "" {
		t.Errorf("OptionString(n) = %q, want empty for non-string", got)
	}
	if got := (config.ProviderEntry{}).OptionString("x"); got != "" {
		t.Errorf("OptionString on nil options = %q", got)
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	entry := config.ProviderEntry{Name: "nope"}

	if _, err := reg.CreateLive(entry); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateLive err = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateImaging(entry); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateImaging err = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateSearch(entry); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateSearch err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_CreatePassesEntry(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	var gotLive, gotImaging, gotSearch config.ProviderEntry
	reg.RegisterLive("gemini-live", func(e config.ProviderEntry) (live.Provider, error) {
		gotLive = e
		return &livemock.Provider{}, nil
	})
	reg.RegisterImaging("gemini", func(e config.ProviderEntry) (imaging.Provider, error) {
		gotImaging = e
		return &imagingmock.Provider{}, nil
	})
	reg.RegisterSearch("gemini", func(e config.ProviderEntry) (search.Provider, error) {
		gotSearch = e
		return &searchmock.Provider{}, nil
	})

	if _, err := reg.CreateLive(config.ProviderEntry{Name: "gemini-live", Model: "m1"}); err != nil {
		t.Fatalf("CreateLive: %v", err)
	}
	if _, err := reg.CreateImaging(config.ProviderEntry{Name: "gemini", APIKey: "k"}); err != nil {
		t.Fatalf("CreateImaging: %v", err)
	}
	p, err := reg.CreateSearch(config.ProviderEntry{Name: "gemini", BaseURL: "http://x"})
	if err != nil {
		t.Fatalf("CreateSearch: %v", err)
	}
	if _, err := p.Search(context.Background(), "q"); err != nil {
		t.Errorf("Search: %v", err)
	}

	if gotLive.Model != "m1" || gotImaging.APIKey != "k" || gotSearch.BaseURL != "http://x" {
		t.Errorf("factories got %+v / %+v / %+v", gotLive, gotImaging, gotSearch)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	boom := errors.New("boom")
	reg.RegisterImaging("broken", func(config.ProviderEntry) (imaging.Provider, error) {
		return nil, boom
	})
	if _, err := reg.CreateImaging(config.ProviderEntry{Name: "broken"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want factory error", err)
	}
}

func TestRegistry_Overwrite(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	first := &imagingmock.Provider{}
	second := &imagingmock.Provider{}
	reg.RegisterImaging("x", func(config.ProviderEntry) (imaging.Provider, error) { return first, nil })
	reg.RegisterImaging("x", func(config.ProviderEntry) (imaging.Provider, error) { return second, nil })

	got, err := reg.CreateImaging(config.ProviderEntry{Name: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if got != imaging.Provider(second) {
		t.Error("expected the later registration to win")
	}
}
