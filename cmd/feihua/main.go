// Command feihua is the flying-flower poetry game server.
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
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/feihua/internal/config"
	"github.com/MrWong99/feihua/internal/corpus"
	"github.com/MrWong99/feihua/internal/game"
	"github.com/MrWong99/feihua/internal/health"
	"github.com/MrWong99/feihua/internal/judge"
	"github.com/MrWong99/feihua/internal/match/pinyin"
	"github.com/MrWong99/feihua/internal/observe"
	"github.com/MrWong99/feihua/internal/resilience"
	"github.com/MrWong99/feihua/internal/server"
	"github.com/MrWong99/feihua/internal/verify"
	"github.com/MrWong99/feihua/pkg/provider/asr"
	asrmock "github.com/MrWong99/feihua/pkg/provider/asr/mock"
	"github.com/MrWong99/feihua/pkg/provider/llm"
	"github.com/MrWong99/feihua/pkg/provider/llm/anyllm"
	oai "github.com/MrWong99/feihua/pkg/provider/llm/openai"
)

const defaultListenAddr = ":8080"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "feihua: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "feihua: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = defaultListenAddr
	}

	slog.Info("feihua starting",
		"config", *configPath,
		"listen_addr", listenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "feihua"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	store, ping, closeStore, err := buildStore(ctx, cfg.Corpus)
	if err != nil {
		slog.Error("failed to set up corpus store", "err", err)
		return 1
	}
	defer closeStore()

	checkers := []health.Checker{health.Corpus(ping)}

	var jdg *judge.Judge
	if cfg.Judge.Provider.Name != "" {
		provider, err := buildJudgeProvider(cfg.Judge.Provider)
		if err != nil {
			slog.Error("failed to build judge provider", "err", err)
			return 1
		}
		breaker := newBreaker(cfg.Judge)
		jdg = newJudge(cfg.Judge, resilience.Guard(provider, breaker), metrics)
		checkers = append(checkers, health.Judge(breaker))
		slog.Info("judge configured",
			"provider", cfg.Judge.Provider.Name,
			"model", cfg.Judge.Provider.Model,
		)
	}

	engine := verify.NewEngine(store, pinyin.New())
	orch := game.New(store, engine, jdg,
		game.WithMetrics(metrics),
		game.WithLogger(logger),
	)

	serverOpts := []server.Option{
		server.WithHealth(health.New(checkers...)),
		server.WithMetrics(metrics),
		server.WithLogger(logger),
	}
	if rec := buildRecognizer(cfg.Speech); rec != nil {
		serverOpts = append(serverOpts, server.WithRecognizer(rec))
	}
	srv := &http.Server{
		Addr:    listenAddr,
		Handler: server.New(orch, store, serverOpts...).Handler(),
	}

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
		slog.Info("shutdown signal received, stopping")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	slog.Info("server ready, press Ctrl+C to shut down")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildStore sets up the poem store: PostgreSQL when a DSN is configured,
// otherwise an in-memory store. Either can be seeded from a YAML file.
func buildStore(ctx context.Context, cfg config.CorpusConfig) (corpus.Store, func(context.Context) error, func(), error) {
	if cfg.PostgresDSN == "" {
		var poems []corpus.Poem
		if cfg.SeedFile != "" {
			var err error
			poems, err = corpus.LoadYAMLFile(cfg.SeedFile)
			if err != nil {
				return nil, nil, nil, err
			}
		}
		store := corpus.NewMemStore(poems)
		slog.Info("using in-memory corpus store", "poems", store.Len())
		return store, nil, func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := corpus.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	if cfg.SeedFile != "" {
		poems, err := corpus.LoadYAMLFile(cfg.SeedFile)
		if err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		for _, p := range poems {
			if err := store.Insert(ctx, p); err != nil {
				pool.Close()
				return nil, nil, nil, err
			}
		}
		slog.Info("seeded corpus", "poems", len(poems))
	}
	return store, store.Ping, pool.Close, nil
}

// buildJudgeProvider constructs the judgment transport. "openai-native" uses
// the dedicated OpenAI client; everything else goes through any-llm-go.
func buildJudgeProvider(entry config.ProviderEntry) (llm.Provider, error) {
	if entry.Name == "openai-native" {
		var opts []oai.Option
		if entry.BaseURL != "" {
			opts = append(opts, oai.WithBaseURL(entry.BaseURL))
		}
		return oai.New(entry.APIKey, entry.Model, opts...)
	}

	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return anyllm.New(entry.Name, entry.Model, opts...)
}

func newBreaker(cfg config.JudgeConfig) *resilience.Breaker {
	var opts []resilience.BreakerOption
	if cfg.TripAfter > 0 {
		opts = append(opts, resilience.WithTripAfter(cfg.TripAfter))
	}
	if cfg.CooldownSeconds > 0 {
		opts = append(opts, resilience.WithCooldown(time.Duration(cfg.CooldownSeconds)*time.Second))
	}
	return resilience.NewBreaker("judge", opts...)
}

func newJudge(cfg config.JudgeConfig, provider llm.Provider, metrics *observe.Metrics) *judge.Judge {
	opts := []judge.Option{
		judge.WithCache(judge.NewCache(
			time.Duration(cfg.CacheTTLSeconds)*time.Second,
			cfg.CacheMaxEntries,
		)),
		judge.WithMetrics(metrics),
	}
	if cfg.TimeoutSeconds > 0 {
		opts = append(opts, judge.WithTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second))
	}
	return judge.New(provider, opts...)
}

// buildRecognizer constructs the optional speech backend. Only the scripted
// mock ships in-tree; real vendors integrate via the asr.Recognizer contract.
func buildRecognizer(cfg config.SpeechConfig) asr.Recognizer {
	if cfg.Provider.Name == "mock" {
		return asrmock.New("")
	}
	return nil
}

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
