package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/jarvis/internal/config"
	"github.com/MrWong99/jarvis/internal/console"
	"github.com/MrWong99/jarvis/internal/health"
	"github.com/MrWong99/jarvis/internal/observe"
	"github.com/MrWong99/jarvis/internal/resilience"
	"github.com/MrWong99/jarvis/internal/session"
	"github.com/MrWong99/jarvis/internal/tools"
	"github.com/MrWong99/jarvis/pkg/audio/portaudio"
	"github.com/MrWong99/jarvis/pkg/provider/live"
)

const shutdownTimeout = 15 * time.Second

type runOptions struct {
	configPath  string
	metricsAddr string
	imageDir    string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the assistant and connect the live session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAssistant(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "ops listener for /metrics, /healthz and /readyz (overrides metrics_addr)")
	cmd.Flags().StringVar(&opts.imageDir, "image-dir", "", "save generated images to this directory")
	return cmd
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// sessionConfig maps the YAML session block onto the live session setup.
func sessionConfig(cfg *config.Config, decls []live.FunctionDeclaration) live.SessionConfig {
	s := cfg.Session
	return live.SessionConfig{
		Voice:               s.Voice,
		Instructions:        s.Instructions,
		InputTranscription:  s.TranscriptionEnabled(),
		OutputTranscription: s.TranscriptionEnabled(),
		SearchGrounding:     s.SearchGroundingEnabled(),
		Tools:               decls,
	}
}

func runAssistant(parent context.Context, opts *runOptions) error {
	if parent == nil {
		parent = context.Background()
	}

	// ── Configuration ─────────────────────────────────────────────────────────
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %q not found: copy configs/example.yaml to get started", opts.configPath)
		}
		return err
	}
	if opts.metricsAddr != "" {
		cfg.MetricsAddr = opts.metricsAddr
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(slogLevel(cfg.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level})))
	slog.Info("jarvis starting", "version", version, "config", opts.configPath, "log_level", cfg.LogLevel)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.Init(observe.Config{ServiceName: "jarvis", ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	metrics := observe.DefaultMetrics()

	// ── Signal context ────────────────────────────────────────────────────────
	sigCtx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(ctx, reg)
	ps, err := buildProviders(cfg, reg)
	if err != nil {
		return err
	}

	backend, err := portaudio.New()
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	defer backend.Close()

	// ── Engine and tools ──────────────────────────────────────────────────────
	var sinkOpts []console.SinkOption
	if opts.imageDir != "" {
		sinkOpts = append(sinkOpts, console.WithImageDir(opts.imageDir))
	}
	sink := console.NewSink(os.Stdout, sinkOpts...)

	engine := session.New(session.Config{
		Provider:     ps.Live,
		Audio:        backend,
		InputDevice:  cfg.Audio.InputDevice,
		OutputDevice: cfg.Audio.OutputDevice,
		CaptureRate:  cfg.Audio.CaptureRate,
		PlaybackRate: cfg.Audio.PlaybackRate,
		OutputRate:   cfg.Audio.OutputRate,
		FrameSize:    cfg.Audio.FrameSize,
		Retry: resilience.RetryConfig{
			BaseDelay:   cfg.Session.Retry.BaseDelay,
			Multiplier:  cfg.Session.Retry.Multiplier,
			MaxAttempts: cfg.Session.Retry.MaxAttempts,
		},
		StabilityWindow: cfg.Session.Retry.StabilityWindow,
		DialTimeout:     cfg.Session.DialTimeout,
		CameraInterval:  cfg.Camera.SendInterval,
		Sink:            sink,
		Metrics:         metrics,
	})

	dispatcher := tools.NewDispatcher(engine,
		tools.Builtins(ps.Imaging, ps.Search, metrics),
		tools.WithTimeout(cfg.Tools.Timeout),
		tools.WithMetrics(metrics),
	)
	decls := dispatcher.Declarations()
	engine.SetToolDispatcher(dispatcher)
	engine.SetSession(sessionConfig(cfg, decls))

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(opts.configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.SessionChanged {
			engine.SetSession(sessionConfig(new, decls))
			slog.Info("session settings changed, applied on next connect")
		}
		if d.CameraChanged {
			engine.SetCameraInterval(new.Camera.SendInterval)
		}
		if len(d.RestartRequired) > 0 {
			slog.Warn("config changes need a restart", "sections", d.RestartRequired)
		}
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	}

	// ── Background workers ────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", tel.Handler())
		health.New(health.SessionCheck(engine)).Register(mux)
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           observe.Middleware(metrics)(mux),
			ReadHeaderTimeout: 5 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return gctx },
		}
		g.Go(func() error {
			slog.Info("ops listener started", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ops listener: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}

	if path := cfg.Camera.FramePath; path != "" {
		g.Go(func() error {
			return session.WatchFrameFile(gctx, path, engine.UpdateCameraFrame)
		})
	}

	g.Go(func() error {
		defer cancel()
		err := console.NewReader(engine, os.Stdout).Run(gctx, os.Stdin)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := engine.Connect(gctx); err != nil {
		slog.Warn("initial connect failed, retrying in background", "err", err)
	}
	fmt.Fprintln(os.Stdout, "jarvis ready: speak, type a message, or /help")

	runErr := g.Wait()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if watcher != nil {
		watcher.Stop()
	}
	if err := engine.Close(); err != nil {
		slog.Warn("engine close", "err", err)
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		slog.Warn("abandoning in-flight tool calls", "count", dispatcher.InFlight(), "err", err)
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown", "err", err)
	}

	if runErr != nil {
		return runErr
	}
	slog.Info("goodbye")
	return nil
}
