package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"archaeologist/internal/analysis"
	"archaeologist/internal/cache/disk"
	"archaeologist/internal/collect"
	"archaeologist/internal/gateway/config"
	"archaeologist/internal/gateway/handler"
	"archaeologist/internal/gateway/handler/rpc"
	"archaeologist/internal/gateway/server"
	"archaeologist/internal/llm"
	"archaeologist/internal/telemetry"
)

type App struct {
	server    *server.Server
	machine   *analysis.Machine
	client    llm.LLMClient
	plans     *PlanStores
	telemetry telemetry.Shutdown
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithConfig(context.Background(), cfg)
}

// NewWithConfig wires every gateway dependency from cfg.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	shutdownTelemetry, err := telemetry.Init(telemetry.Options{Stdout: cfg.Telemetry.Stdout})
	if err != nil {
		return nil, fmt.Errorf("failed to init telemetry: %w", err)
	}
	var closers []func() error
	fail := func(err error) (*App, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		_ = shutdownTelemetry(ctx)
		return nil, err
	}

	// Dependencies
	client, err := NewLLMClient(ctx, cfg.LLM, log.Default())
	if err != nil {
		return fail(err)
	}
	closers = append(closers, client.Close)
	plans, err := NewPlanStores(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, plans.Close)
	cache, err := NewReportCache(cfg.Analysis, log.Default())
	if err != nil {
		return fail(err)
	}
	machine, err := analysis.New(analysis.Options{
		Collector: NewCollector(cfg.Analysis),
		Client:    client,
		Plans:     plans.Gateway,
		Timeout:   cfg.Analysis.Timeout,
		Cache:     cache,
		Logger:    log.Default(),

		StrictSeverity: cfg.Analysis.StrictSeverity,
	})
	if err != nil {
		return fail(err)
	}

	analysisHandler := rpc.NewAnalysisHandler(machine, plans.Gateway)
	debugHandler := handler.NewDebugHandler(machine, plans.Cache)

	// Routing & Server
	mux := server.NewMux(analysisHandler, debugHandler, cfg.CORSOrigins)
	srv := server.New(cfg.Port, mux)
	log.Printf("gateway: env=%s llm=%s", cfg.Env, client.Name())

	return &App{
		server:    srv,
		machine:   machine,
		client:    client,
		plans:     plans,
		telemetry: shutdownTelemetry,
	}, nil
}

// NewReportCache returns a disk cache when cfg.CacheDir is set, an in-memory
// LRU when cfg.CacheSize > 0, and nil otherwise.
func NewReportCache(cfg config.AnalysisConfig, l *log.Logger) (analysis.ReportCache, error) {
	if dir := strings.TrimSpace(cfg.CacheDir); dir != "" {
		store, err := disk.New(disk.Config{Dir: dir, MaxEntries: max(cfg.CacheSize, 1), TTL: cfg.CacheTTL})
		if err != nil {
			return nil, fmt.Errorf("failed to open report cache: %w", err)
		}
		return analysis.NewByteCache(store, logger(l)), nil
	}
	if cfg.CacheSize > 0 {
		return analysis.NewMemoryCache(cfg.CacheSize)
	}
	return nil, nil
}

// NewCollector answers source ids with the bundled legacy sample. Local
// directories are only read beneath cfg.LocalRoot.
func NewCollector(cfg config.AnalysisConfig) collect.Collector {
	demo := collect.Demo(cfg.DemoLatency)
	if cfg.LocalRoot == "" {
		return demo
	}
	return collect.Auto{
		Base:     cfg.LocalRoot,
		Fallback: demo,
	}
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	errs := []error{a.server.Shutdown(ctx)}
	errs = append(errs, a.machine.Close(), a.client.Close())
	if a.plans != nil {
		errs = append(errs, a.plans.Close())
	}
	errs = append(errs, a.telemetry(ctx))
	return errors.Join(errs...)
}

// Machine exposes the lifecycle for embedding callers.
func (a *App) Machine() *analysis.Machine { return a.machine }

func logger(l *log.Logger) *log.Logger {
	if l == nil {
		return log.New(os.Stderr, "", log.LstdFlags)
	}
	return l
}
