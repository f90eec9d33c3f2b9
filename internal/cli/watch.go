package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stagecoach-io/stagecoach"
	"github.com/stagecoach-io/stagecoach/pkg/adapters/file"
)

// debounce batches the editor write storms (rename, chmod, partial writes)
// into one reload.
const debounce = 300 * time.Millisecond

// WatchConfig recompiles team configs when their files change. A team file
// change reloads that team; a fragment change recompiles every team, since
// fragment use is not tracked per team. Failed compilations keep the
// previous version active.
func WatchConfig(ctx context.Context, eng *stagecoach.Engine, logger *slog.Logger) error {
	source, ok := eng.Source().(*file.Source)
	if !ok {
		logger.Warn("config source is not file-backed, watch disabled")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	teamsDir := source.TeamsDir()
	fragmentsDir := filepath.Join(source.Root(), "fragments")
	for _, dir := range []string{teamsDir, fragmentsDir} {
		if err := watcher.Add(dir); err != nil {
			logger.Warn("cannot watch config dir", "dir", dir, "err", err)
		}
	}
	logger.Info("watching config", "dir", source.Root())

	pending := make(map[string]bool) // team ids; "" means all
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".yaml") {
				continue
			}

			if filepath.Dir(event.Name) == teamsDir {
				team := strings.TrimSuffix(filepath.Base(event.Name), ".yaml")
				pending[team] = true
			} else {
				pending[""] = true
			}

			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			reloadPending(ctx, eng, logger, pending)
			pending = make(map[string]bool)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "err", err)
		}
	}
}

func reloadPending(ctx context.Context, eng *stagecoach.Engine, logger *slog.Logger, pending map[string]bool) {
	if pending[""] {
		if err := eng.CompileAll(ctx); err != nil {
			logger.Error("config reload failed, previous versions stay active", "err", err)
		}
		return
	}
	for team := range pending {
		if err := eng.Reload(ctx, team); err != nil {
			logger.Error("config reload failed, previous version stays active",
				"team", team, "err", err)
		}
	}
}
