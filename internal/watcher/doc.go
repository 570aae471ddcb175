// Package watcher reloads resource data files when they change on disk.
//
// A FileWatcher observes a fixed set of files with fsnotify, watching their
// parent directories so that editors which save by rename are still seen.
// Events are debounced per path and delivered in batches. Sync consumes
// those batches, parses each changed file and writes its collections into
// the store, where the coordinator's deep watchers pick them up.
//
//	w, err := watcher.NewFileWatcher(paths, watcher.DefaultOptions(), logger)
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go func() { _ = w.Start(ctx) }()
//	watcher.Sync(ctx, w.Events(), s, logger, nil)
package watcher
