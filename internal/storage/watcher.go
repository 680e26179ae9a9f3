package storage

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is called for a bucket file changed on disk.
// removed is true when the file is gone.
type ChangeCallback func(key string, removed bool)

// Watch starts an fsnotify watcher on the FS root and reports bucket files
// created, written or removed by anything (including other processes) until
// ctx is cancelled. New directories are added to the watch list as they appear.
func (f *FS) Watch(ctx context.Context, logger *slog.Logger, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, f.root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", f.root))

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					continue
				}
			}

			key, ok := f.KeyFor(ev.Name)
			if !ok {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				logger.Debug("watcher: changed", slog.String("key", key))
				cb(key, false)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// A rename reports the old name; the new name arrives as Create.
				logger.Debug("watcher: removed", slog.String("key", key))
				cb(key, true)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
