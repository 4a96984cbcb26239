// Package main runs the error-resolver service: it spawns interactive shell
// sessions on demand, watches their output for error conditions, and serves
// ranked fix candidates over HTTP and WebSocket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kapjain-rh/error-resolver/internal/analysis"
	"github.com/kapjain-rh/error-resolver/internal/common/config"
	"github.com/kapjain-rh/error-resolver/internal/common/logger"
	"github.com/kapjain-rh/error-resolver/internal/detect"
	"github.com/kapjain-rh/error-resolver/internal/detect/patternsrc"
	"github.com/kapjain-rh/error-resolver/internal/events/bus"
	"github.com/kapjain-rh/error-resolver/internal/gateway"
	"github.com/kapjain-rh/error-resolver/internal/notify"
	"github.com/kapjain-rh/error-resolver/internal/resolve"
	"github.com/kapjain-rh/error-resolver/internal/resolve/providers"
	"github.com/kapjain-rh/error-resolver/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("Starting error-resolver...")

	// Event bus: NATS when configured, in-memory otherwise.
	var eventBus bus.EventBus
	if cfg.NATS.URL != "" {
		log.Info("Connecting to NATS...", zap.String("url", cfg.NATS.URL))
		natsBus, err := bus.NewNATSEventBus(cfg.NATS, log)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		eventBus = natsBus
	} else {
		log.Info("Using in-memory event bus")
		eventBus = bus.NewMemoryEventBus(log)
	}
	defer eventBus.Close()

	// Pattern set: built-ins plus configured YAML sources.
	patterns := patternsrc.LoadAll(cfg.Analysis.PatternFiles, log)
	set := detect.NewSet(patterns, log)
	log.Info("Pattern set loaded", zap.Int("patterns", set.Len()))

	// Resolution providers, gated by configuration.
	var providerList []resolve.Provider
	if cfg.Resolver.CodebaseEnabled {
		providerList = append(providerList, providers.NewCodebase(cfg.Resolver.WorkspaceRoot, log))
	}
	var rcaStore *providers.RCAStore
	if cfg.Resolver.RCAEnabled {
		rcaStore, err = providers.NewRCAStore(cfg.Resolver.RCADatabasePath)
		if err != nil {
			log.Fatal("Failed to open RCA knowledge base", zap.Error(err))
		}
		defer rcaStore.Close()
		providerList = append(providerList, providers.NewRCA(rcaStore, log))
	}
	if cfg.Resolver.WebSearchEnabled {
		providerList = append(providerList, providers.NewWebSearch())
	}
	if cfg.Resolver.AIEnabled {
		providerList = append(providerList, providers.NewAI(cfg.Resolver.AIEndpoint, log))
	}

	dispatcher := resolve.NewDispatcher(providerList, resolve.DispatcherConfig{
		ProviderTimeout: cfg.Resolver.ProviderTimeout,
		MaxResolutions:  cfg.Resolver.MaxResolutions,
	}, log)
	log.Info("Resolution providers registered", zap.Strings("providers", dispatcher.Providers()))

	notifier := notify.NewNotifier(eventBus, cfg.Notifications.DedupExpiry, log)

	analysisSvc := analysis.NewService(set, analysis.Config{
		DebounceDelay: cfg.Analysis.DebounceDelay,
		Aggregator: detect.AggregatorConfig{
			GroupDistance:      cfg.Analysis.GroupDistance,
			ContextAbove:       cfg.Analysis.ContextAbove,
			ContextBelow:       cfg.Analysis.ContextBelow,
			StackTraceMaxDepth: cfg.Analysis.StackTraceMaxDepth,
		},
	}, dispatcher, notifier, log)
	defer analysisSvc.Close()

	sessionDefaults := session.Config{
		Command:             cfg.Shell.Command,
		Args:                cfg.Shell.Args,
		WorkDir:             cfg.Shell.WorkDir,
		UsePTY:              cfg.Shell.UsePty,
		Cols:                cfg.Shell.Cols,
		Rows:                cfg.Shell.Rows,
		FallbackPromptDelay: cfg.Analysis.FallbackPromptDelay,
		InteractivePrograms: cfg.Interactive.Programs,
	}
	manager := session.NewManager(sessionDefaults, eventBus, log)

	server, err := gateway.NewServer(cfg.Server, manager, analysisSvc, notifier, eventBus, log)
	if err != nil {
		log.Fatal("Failed to build gateway", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Shutting down...", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("Gateway failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	manager.StopAll()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Gateway shutdown error", zap.Error(err))
	}
	log.Info("error-resolver stopped")
}
