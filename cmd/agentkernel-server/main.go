// Command agentkernel-server is the composition root: it loads
// configuration, wires every collaborator package into a Kernel, and
// serves it over HTTP until SIGINT/SIGTERM. Grounded on the teacher's
// cmd/nexus/handlers_serve.go runServe (config load -> gateway wiring
// -> signal.NotifyContext -> graceful shutdown), trimmed from that
// file's migration/doctor/service-install machinery since this binary
// has no on-disk config versioning to migrate.
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

	"github.com/redis/go-redis/v9"

	"github.com/adpilot-ai/agentkernel/internal/backend"
	"github.com/adpilot-ai/agentkernel/internal/config"
	"github.com/adpilot-ai/agentkernel/internal/credit"
	"github.com/adpilot-ai/agentkernel/internal/evaluator"
	"github.com/adpilot-ai/agentkernel/internal/executor"
	"github.com/adpilot-ai/agentkernel/internal/kernel"
	"github.com/adpilot-ai/agentkernel/internal/llm"
	"github.com/adpilot-ai/agentkernel/internal/objectstore"
	"github.com/adpilot-ai/agentkernel/internal/observability"
	"github.com/adpilot-ai/agentkernel/internal/planner"
	"github.com/adpilot-ai/agentkernel/internal/registry"
	"github.com/adpilot-ai/agentkernel/internal/server"
	"github.com/adpilot-ai/agentkernel/internal/sessions"
	"github.com/adpilot-ai/agentkernel/internal/tools"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional; env vars alone are sufficient)")
	debug := flag.Bool("debug", false, "enable debug-level logging")
	flag.Parse()

	if *debug {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	} else {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	log := slog.Default()

	if err := run(*configPath, log); err != nil {
		log.Error("agentkernel-server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, log *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log.Info("configuration loaded", "listen_addr", cfg.ListenAddr, "session_store", storeKind(cfg.SessionStoreURL))

	store, locker, err := buildSessions(cfg, log)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}

	provider, model, err := buildProvider(cfg, log)
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}

	objStore := buildObjectStore(cfg)

	backendClient := backend.New(backend.Config{
		BaseURL:      cfg.Backend.APIURL,
		ServiceToken: cfg.Backend.ServiceToken,
		Timeout:      cfg.RequestTimeout,
	})

	reg := registry.New()
	if err := tools.RegisterAll(reg, tools.Deps{
		Provider:      provider,
		Model:         model,
		BackendClient: backendClient,
		ObjectStore:   objStore,
	}); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	ledger := credit.NewHTTPLedger(credit.HTTPLedgerConfig{
		BaseURL:      cfg.CreditLedger.URL,
		ServiceToken: cfg.CreditLedger.Token,
		Timeout:      cfg.RequestTimeout,
	})

	metrics := observability.NewMetrics()
	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName: "agentkernel",
		Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	})
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	gate := credit.NewGate(ledger, log).WithMetrics(metrics)

	exec := executor.New(reg, gate, store, executor.DefaultConfig(), log)
	plan := planner.New(provider, reg, model)
	eval := evaluator.New(evaluator.DefaultPolicy(), reg, provider)

	k := kernel.New(kernel.Deps{
		Tracer:  tracer,
		Metrics: metrics,
		Store:   store,
		Locker:  locker,
		Planner: plan,
		Eval:    eval,
		Exec:    exec,
	})

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.New(k, log, server.WithMetrics(metrics)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE responses are long-lived; the kernel's own iteration cap bounds them.
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		log.Info("agentkernel-server listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, initiating graceful shutdown")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("agentkernel-server stopped gracefully")
	return nil
}

// buildSessions wires a Redis-backed Store/Locker when SessionStoreURL is
// set, falling back to the in-memory implementations for local/dev runs
// without a Redis instance (spec.md never mandates Redis specifically,
// only a durable session store; the memory fallback trades durability
// for a zero-dependency local run).
func buildSessions(cfg *config.Config, log *slog.Logger) (sessions.Store, sessions.Locker, error) {
	if cfg.SessionStoreURL == "" {
		log.Warn("session_store_url not set, using in-memory session store (not durable, single process only)")
		return sessions.NewMemoryStore(), sessions.NewLocalLocker(sessions.DefaultLockConfig()), nil
	}
	opts, err := redis.ParseURL(cfg.SessionStoreURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse session_store_url: %w", err)
	}
	client := redis.NewClient(opts)
	return sessions.NewRedisStore(client, log), sessions.NewRedisLocker(client, sessions.DefaultLockConfig(), log), nil
}

// buildProvider wires the Anthropic+OpenAI failover chain spec.md's
// DOMAIN STACK names; a deployment that supplies only one of the two API
// keys gets a single-provider chain rather than an error, since either
// key alone satisfies config.Load's validation.
func buildProvider(cfg *config.Config, log *slog.Logger) (llm.Provider, string, error) {
	var providers []llm.Provider
	model := cfg.LLM.AnthropicModel

	if cfg.LLM.AnthropicAPIKey != "" {
		p, err := llm.NewAnthropicProvider(llm.AnthropicConfig{
			APIKey:       cfg.LLM.AnthropicAPIKey,
			DefaultModel: cfg.LLM.AnthropicModel,
		})
		if err != nil {
			return nil, "", fmt.Errorf("anthropic provider: %w", err)
		}
		providers = append(providers, p)
	}
	if cfg.LLM.OpenAIAPIKey != "" {
		p, err := llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:       cfg.LLM.OpenAIAPIKey,
			DefaultModel: cfg.LLM.OpenAIModel,
		})
		if err != nil {
			return nil, "", fmt.Errorf("openai provider: %w", err)
		}
		providers = append(providers, p)
		if model == "" {
			model = cfg.LLM.OpenAIModel
		}
	}
	if len(providers) == 0 {
		return nil, "", errors.New("no LLM provider configured")
	}
	return llm.NewFailover(llm.DefaultFailoverConfig(), log, providers...), model, nil
}

// buildObjectStore always returns an in-process memory client, which keeps
// upload_object usable; a configured URL only becomes the base of the
// URLs it hands back, and no remote object store is contacted
// (internal/objectstore.Client has exactly one production binding point).
func buildObjectStore(cfg *config.Config) objectstore.Client {
	if cfg.ObjectStore.URL == "" {
		return objectstore.NewMemoryClient("")
	}
	return objectstore.NewMemoryClient(cfg.ObjectStore.URL)
}

func storeKind(url string) string {
	if url == "" {
		return "memory"
	}
	return "redis"
}
