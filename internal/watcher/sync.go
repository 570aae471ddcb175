package watcher

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/resourcesearch/internal/dataset"
	"github.com/Aman-CERP/resourcesearch/internal/errors"
	"github.com/Aman-CERP/resourcesearch/internal/store"
)

// ReloadFunc is told about every file Sync processed.
type ReloadFunc func(path string, err error)

// Sync reparses changed files and writes their collections into s until
// events is closed or ctx is done. A deleted file keeps its last
// collections. Parse errors are reported and the store is left as is.
func Sync(ctx context.Context, events <-chan []FileEvent, s *store.Store, logger *slog.Logger, onReload ReloadFunc) {
	if logger == nil {
		logger = slog.Default()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-events:
			if !ok {
				return
			}
			for _, event := range batch {
				err := reload(event, s, logger)
				if onReload != nil {
					onReload(event.Path, err)
				}
			}
		}
	}
}

func reload(event FileEvent, s *store.Store, logger *slog.Logger) error {
	if event.Operation == OpDelete {
		logger.Warn("data_file_removed", slog.String("path", event.Path))
		return nil
	}

	resources, err := dataset.ParseFile(event.Path)
	if err != nil {
		logger.Warn("data_file_reload_failed",
			append([]any{slog.String("path", event.Path)}, errors.LogAttrs(err)...)...)
		return err
	}

	for _, r := range resources {
		s.Set(r.Name, r.Documents)
	}
	logger.Info("data_file_reloaded",
		slog.String("path", event.Path),
		slog.Int("resources", len(resources)))
	return nil
}
