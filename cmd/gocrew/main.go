// Command gocrew runs the sub-agent orchestration daemon: it registers the
// configured agents, drains spawned tasks one at a time through the agentic
// loop, and fans lifecycle events out to the archive, the scheduler, and the
// notification channels.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/marchhare/go-crew/internal/agent"
	"github.com/marchhare/go-crew/internal/ai"
	"github.com/marchhare/go-crew/internal/bus"
	"github.com/marchhare/go-crew/internal/channels"
	"github.com/marchhare/go-crew/internal/config"
	"github.com/marchhare/go-crew/internal/history"
	"github.com/marchhare/go-crew/internal/schedule"
	"github.com/marchhare/go-crew/internal/telemetry"
	"github.com/marchhare/go-crew/internal/tools"
)

// Version is set via ldflags at build time: -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	homeFlag := flag.String("home", "", "data directory (default: ~/.gocrew, or GOCREW_HOME)")
	quiet := flag.Bool("quiet", false, "log to file only, keep stdout clean")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("gocrew", Version)
		return 0
	}

	homeDir, err := resolveHome(*homeFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gocrew:", err)
		return 1
	}

	cfg, err := config.Load(homeDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gocrew: load config:", err)
		return 1
	}

	logger, logCloser, err := telemetry.NewLogger(homeDir, cfg.LogLevel, *quiet || cfg.Quiet)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gocrew: init logging:", err)
		return 1
	}
	defer logCloser.Close()
	slog.SetDefault(logger)
	logger.Info("gocrew starting", "version", Version, "home", homeDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	instruments, err := telemetry.Init(ctx, cfg.OTel)
	if err != nil {
		logger.Error("otel init failed", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = instruments.Shutdown(shutdownCtx)
	}()

	eventBus := bus.New()

	provider, err := buildProvider(cfg, logger)
	if err != nil {
		logger.Error("provider init failed", "error", err)
		return 1
	}

	catalog := buildToolCatalog(cfg, logger)

	registry := agent.NewRegistry(agent.Options{
		Logger:      logger,
		Bus:         eventBus,
		Provider:    ai.StaticResolver{Provider: provider},
		Tools:       catalog,
		Instruments: instruments,
	})
	for _, entry := range cfg.Agents {
		registry.Catalog().RegisterFromManifest(entry.Manifest, entry.Overrides())
	}
	registry.Start(ctx)
	defer registry.Stop()

	if cfg.History.Enabled {
		archive, err := history.Open(cfg.History.Path, logger)
		if err != nil {
			logger.Error("history archive init failed", "error", err)
			return 1
		}
		defer archive.Close()
		go archive.Run(ctx, eventBus)
		logger.Info("task archive enabled", "path", cfg.History.Path)
	}

	if cfg.Channels.Telegram.Enabled {
		notifier, err := channels.NewTelegramNotifier(
			cfg.TelegramToken(), cfg.Channels.Telegram.DefaultChatID, eventBus, logger)
		if err != nil {
			logger.Error("telegram init failed", "error", err)
			return 1
		}
		go notifier.Start(ctx)
	}

	scheduler := schedule.NewScheduler(schedule.Config{Spawner: registry, Logger: logger})
	for _, entry := range cfg.Schedules {
		if err := scheduler.Add(schedule.Entry{
			Name:    entry.Name,
			AgentID: entry.AgentID,
			Prompt:  entry.Prompt,
			Cron:    entry.Cron,
			Every:   time.Duration(entry.EveryMinutes) * time.Minute,
			Notify:  entry.Notify,
		}); err != nil {
			logger.Error("bad schedule entry", "name", entry.Name, "error", err)
			return 1
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	watcher := config.NewWatcher(homeDir, logger)
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("config watcher unavailable", "error", err)
	} else {
		go reloadLoop(ctx, watcher, homeDir, registry.Catalog(), logger)
	}

	logger.Info("gocrew ready", "agents", len(registry.Catalog().List()))
	<-ctx.Done()
	logger.Info("gocrew shutting down")
	return 0
}

func resolveHome(flagValue string) (string, error) {
	home := flagValue
	if home == "" {
		home = os.Getenv("GOCREW_HOME")
	}
	if home == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		home = filepath.Join(userHome, ".gocrew")
	}
	if err := os.MkdirAll(home, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return home, nil
}

func buildProvider(cfg *config.Config, logger *slog.Logger) (ai.Provider, error) {
	apiKey := cfg.LLMAPIKey()
	if apiKey == "" {
		// Spawns still work; every task fails with a clear error until a key
		// is configured.
		logger.Warn("no API key for LLM provider, tasks will fail", "provider", cfg.LLM.Provider)
		return nil, nil
	}
	return ai.New(cfg.LLM.Provider, apiKey, cfg.LLM.Model)
}

func buildToolCatalog(cfg *config.Config, logger *slog.Logger) *tools.Catalog {
	catalog := tools.NewCatalog()
	searchers := tools.BuildProviders(cfg.APIKey("brave_search"), cfg.Search.Preferred)
	if err := tools.RegisterSearch(catalog, searchers); err != nil {
		logger.Error("register web_search failed", "error", err)
	}
	if err := tools.RegisterReader(catalog); err != nil {
		logger.Error("register read_url failed", "error", err)
	}
	return catalog
}

// reloadLoop re-reads config.yaml on every watcher event and hot-applies the
// agent changes (model overrides, enable/disable, new agents).
func reloadLoop(ctx context.Context, w *config.Watcher, homeDir string, catalog *agent.Catalog, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-w.Events():
			if !ok {
				return
			}
			fresh, err := config.Load(homeDir)
			if err != nil {
				logger.Error("config reload failed, keeping previous config", "error", err)
				continue
			}
			config.Apply(fresh, catalog, logger)
			logger.Info("config reloaded")
		}
	}
}
