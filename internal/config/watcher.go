package config

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"

	"github.com/marchhare/go-crew/internal/agent"
)

// ReloadEvent reports that a watched configuration file changed.
type ReloadEvent struct {
	Path string
	Op   fsnotify.Op
}

// Watcher emits a ReloadEvent whenever config.yaml is rewritten. Events are
// dropped rather than buffered unboundedly; consumers reload the whole file
// anyway.
type Watcher struct {
	homeDir string
	logger  *slog.Logger
	events  chan ReloadEvent
}

// NewWatcher creates a watcher for the given home directory.
func NewWatcher(homeDir string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		homeDir: homeDir,
		logger:  logger,
		events:  make(chan ReloadEvent, 16),
	}
}

// Events returns the reload notification channel. It closes when the watcher
// stops.
func (w *Watcher) Events() <-chan ReloadEvent {
	return w.events
}

// Start begins watching until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the file itself; editors that replace via rename still produce
	// Create/Rename events on the watched path.
	_ = fsw.Add(Path(w.homeDir))

	go func() {
		defer fsw.Close()
		defer close(w.events)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case w.events <- ReloadEvent{Path: ev.Name, Op: ev.Op}:
				default:
				}
				w.logger.Info("config file changed", "path", ev.Name, "op", ev.Op.String())
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Error("config watcher error", "error", err)
			}
		}
	}()
	return nil
}

// Apply reconciles a freshly loaded config against the live agent catalog:
// model and enabled/disabled changes take effect for tasks spawned after the
// reload. New agents are registered; removed agents are disabled rather than
// dropped so their task history stays readable.
func Apply(cfg *Config, catalog *agent.Catalog, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	keep := make(map[string]bool, len(cfg.Agents))
	for _, entry := range cfg.Agents {
		id := entry.Manifest.Specialty.ID
		keep[id] = true
		if _, ok := catalog.Get(id); !ok {
			catalog.RegisterFromManifest(entry.Manifest, entry.Overrides())
			continue
		}
		catalog.SetModel(id, entry.Model)
		catalog.SetEnabled(id, !entry.Disabled)
	}
	for _, snap := range catalog.List() {
		if id := snap.Config.Specialty.ID; !keep[id] {
			catalog.SetEnabled(id, false)
			logger.Info("agent removed from config, disabling", "agent_id", id)
		}
	}
}
