// Command dorknexus is the main entry point for the DorkNexus voice server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/discover-Austin/DorkNexus/internal/config"
	"github.com/discover-Austin/DorkNexus/internal/gateway"
	"github.com/discover-Austin/DorkNexus/internal/health"
	"github.com/discover-Austin/DorkNexus/internal/observe"
	"github.com/discover-Austin/DorkNexus/pkg/provider/live"
	geminilive "github.com/discover-Austin/DorkNexus/pkg/provider/live/gemini"
	openairealtime "github.com/discover-Austin/DorkNexus/pkg/provider/live/openai"
)

const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "dorknexus: config file %q not found — copy config.example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "dorknexus: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("dorknexus starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"provider", cfg.Provider.Name,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "dorknexus",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider ──────────────────────────────────────────────────────────────
	provider, err := buildProvider(cfg.Provider)
	if err != nil {
		slog.Error("failed to build provider", "err", err)
		return 1
	}
	slog.Info("provider created", "name", cfg.Provider.Name, "model", cfg.Provider.Model)

	printStartupSummary(cfg)

	// ── HTTP surface ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.Handle("/ws", gateway.New(gateway.Config{
		Provider:     provider,
		ProviderName: string(cfg.Provider.Name),
		Instructions: cfg.Assistant.Instructions,
		Voice:        cfg.Assistant.Voice,
	}))
	mux.Handle("/metrics", promhttp.Handler())
	health.New(voiceChecker(provider, cfg.Assistant.Voice)).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(observe.DefaultMetrics())(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildProvider instantiates the live provider named in cfg.
func buildProvider(cfg config.ProviderConfig) (live.Provider, error) {
	switch cfg.Name {
	case config.ProviderGeminiLive:
		var opts []geminilive.Option
		if cfg.Model != "" {
			opts = append(opts, geminilive.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, geminilive.WithBaseURL(cfg.BaseURL))
		}
		return geminilive.New(cfg.APIKey, opts...), nil

	case config.ProviderOpenAIRealtime:
		var opts []openairealtime.Option
		if cfg.Model != "" {
			opts = append(opts, openairealtime.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openairealtime.WithBaseURL(cfg.BaseURL))
		}
		return openairealtime.New(cfg.APIKey, opts...), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
}

// voiceChecker reports readiness based on whether the configured voice is
// one the provider advertises.
func voiceChecker(p live.Provider, voice string) health.Checker {
	return health.Checker{
		Name: "voice",
		Check: func(context.Context) error {
			voices := p.Capabilities().Voices
			if len(voices) == 0 || slices.Contains(voices, voice) {
				return nil
			}
			return fmt.Errorf("voice %q not supported by provider", voice)
		},
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        DorkNexus — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Provider", string(cfg.Provider.Name))
	printRow("Model", orDefault(cfg.Provider.Model, "(provider default)"))
	printRow("Voice", cfg.Assistant.Voice)
	if cfg.Server.TLS != nil {
		printRow("TLS", "enabled")
	} else {
		printRow("TLS", "(disabled)")
	}
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:16]) + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", label, value)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
