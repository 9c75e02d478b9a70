package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MrWong99/jarvis/internal/config"
	"github.com/MrWong99/jarvis/internal/resilience"
	"github.com/MrWong99/jarvis/pkg/provider/imaging"
	geminiimg "github.com/MrWong99/jarvis/pkg/provider/imaging/gemini"
	openaiimg "github.com/MrWong99/jarvis/pkg/provider/imaging/openai"
	"github.com/MrWong99/jarvis/pkg/provider/live"
	geminilive "github.com/MrWong99/jarvis/pkg/provider/live/gemini"
	"github.com/MrWong99/jarvis/pkg/provider/search"
	geminisearch "github.com/MrWong99/jarvis/pkg/provider/search/gemini"
)

// providers holds the instantiated backends.
type providers struct {
	Live    live.Provider
	Imaging imaging.Provider
	Search  search.Provider
}

// apiKey returns entry.APIKey, or the first non-empty environment variable
// among envs.
func apiKey(entry config.ProviderEntry, envs ...string) string {
	if entry.APIKey != "" {
		return entry.APIKey
	}
	for _, e := range envs {
		if v := os.Getenv(e); v != "" {
			return v
		}
	}
	return ""
}

func registerBuiltinProviders(ctx context.Context, reg *config.Registry) {
	reg.RegisterLive("gemini-live", func(entry config.ProviderEntry) (live.Provider, error) {
		key := apiKey(entry, "GEMINI_API_KEY", "API_KEY")
		if key == "" {
			return nil, errors.New("gemini-live: api key is required (api_key or GEMINI_API_KEY)")
		}
		var opts []geminilive.Option
		if entry.Model != "" {
			opts = append(opts, geminilive.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, geminilive.WithBaseURL(entry.BaseURL))
		}
		return geminilive.New(key, opts...), nil
	})

	reg.RegisterImaging("gemini", func(entry config.ProviderEntry) (imaging.Provider, error) {
		var opts []geminiimg.Option
		if entry.BaseURL != "" {
			opts = append(opts, geminiimg.WithBaseURL(entry.BaseURL))
		}
		return geminiimg.New(ctx, apiKey(entry, "GEMINI_API_KEY", "API_KEY"), entry.Model, opts...)
	})

	reg.RegisterImaging("openai", func(entry config.ProviderEntry) (imaging.Provider, error) {
		var opts []openaiimg.Option
		if entry.BaseURL != "" {
			opts = append(opts, openaiimg.WithBaseURL(entry.BaseURL))
		}
		if t := entry.OptionString("timeout"); t != "" {
			d, err := time.ParseDuration(t)
			if err != nil {
				return nil, fmt.Errorf("openai: options.timeout: %w", err)
			}
			opts = append(opts, openaiimg.WithTimeout(d))
		}
		return openaiimg.New(apiKey(entry, "OPENAI_API_KEY"), entry.Model, opts...)
	})

	reg.RegisterSearch("gemini", func(entry config.ProviderEntry) (search.Provider, error) {
		var opts []geminisearch.Option
		if entry.BaseURL != "" {
			opts = append(opts, geminisearch.WithBaseURL(entry.BaseURL))
		}
		return geminisearch.New(ctx, apiKey(entry, "GEMINI_API_KEY", "API_KEY"), entry.Model, opts...)
	})

	for kind, names := range config.ValidProviderNames {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

func buildProviders(cfg *config.Config, reg *config.Registry) (*providers, error) {
	ps := &providers{}

	p, err := reg.CreateLive(cfg.Providers.Live)
	if err != nil {
		return nil, fmt.Errorf("create live provider %q: %w", cfg.Providers.Live.Name, err)
	}
	ps.Live = p
	slog.Info("provider created", "kind", "live", "name", cfg.Providers.Live.Name)

	var chain *resilience.ImagingFallback
	for i, entry := range cfg.Providers.Imaging {
		img, err := reg.CreateImaging(entry)
		if err != nil {
			if i > 0 {
				slog.Warn("skipping imaging fallback", "name", entry.Name, "err", err)
				continue
			}
			return nil, fmt.Errorf("create imaging provider %q: %w", entry.Name, err)
		}
		if chain == nil {
			chain = resilience.NewImagingFallback(img, resilience.CircuitBreakerConfig{
				Name: "imaging",
				OnStateChange: func(name string, from, to resilience.BreakerState) {
					slog.Warn("imaging circuit breaker", "backend", name, "from", from, "to", to)
				},
			})
		} else {
			chain.AddFallback(img)
		}
		slog.Info("provider created", "kind", "imaging", "name", entry.Name, "fallback", i > 0)
	}
	ps.Imaging = chain

	if name := cfg.Providers.Search.Name; name != "" {
		s, err := reg.CreateSearch(cfg.Providers.Search)
		if err != nil {
			return nil, fmt.Errorf("create search provider %q: %w", name, err)
		}
		ps.Search = s
		slog.Info("provider created", "kind", "search", "name", name)
	}

	return ps, nil
}
