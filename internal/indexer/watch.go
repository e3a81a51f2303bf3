package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/equiprag/internal/storage"
)

// DefaultDebounce is how long a file must stay quiet before re-ingestion
const DefaultDebounce = 500 * time.Millisecond

// WatchEvent reports one re-ingestion or removal triggered by a file change
type WatchEvent struct {
	Source  string
	Removed bool
	Result  *Result
	Err     error
}

// WatchOptions configures Watch
type WatchOptions struct {
	DirOptions
	Debounce time.Duration
	OnEvent  func(WatchEvent)
}

// Watch keeps root's sources in step with the files on disk until ctx is
// cancelled. Created or modified files are re-ingested; removed or renamed
// files have their source deleted. Bursts of events for the same file are
// coalesced.
func (idx *Indexer) Watch(ctx context.Context, root string, opts WatchOptions) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if len(opts.Includes) == 0 {
		opts.Includes = DefaultIncludes
	}
	if opts.Excludes == nil {
		opts.Excludes = DefaultExcludes
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watchTree(watcher, root, root, opts.Excludes); err != nil {
		return err
	}
	idx.cfg.Logger.Info("watching for changes", slog.String("root", root))

	pending := make(map[string]struct{})
	var flush <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			rel, isDir, relevant := classifyEvent(root, ev, opts.DirOptions)
			if isDir {
				if err := watchTree(watcher, root, ev.Name, opts.Excludes); err != nil {
					idx.cfg.Logger.Warn("failed to watch new directory", slog.String("path", ev.Name), slog.String("error", err.Error()))
				}
				continue
			}
			if !relevant {
				continue
			}
			pending[rel] = struct{}{}
			flush = time.After(opts.Debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			idx.cfg.Logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-flush:
			idx.syncPending(ctx, root, pending, opts)
			pending = make(map[string]struct{})
			flush = nil
		}
	}
}

// classifyEvent maps an fsnotify event to the source it affects. A created
// directory is reported separately so it can be watched.
func classifyEvent(root string, ev fsnotify.Event, opts DirOptions) (rel string, isDir, relevant bool) {
	if ev.Op == fsnotify.Chmod {
		return "", false, false
	}

	r, err := filepath.Rel(root, ev.Name)
	if err != nil {
		return "", false, false
	}
	rel = filepath.ToSlash(r)

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			excluded := matchAny(opts.Excludes, rel) || matchAny(opts.Excludes, rel+"/")
			return rel, !excluded, false
		}
	}

	if !matchAny(opts.Includes, rel) || matchAny(opts.Excludes, rel) {
		return rel, false, false
	}
	return rel, false, true
}

// syncPending re-ingests files that still exist and deletes the sources of
// files that are gone
func (idx *Indexer) syncPending(ctx context.Context, root string, pending map[string]struct{}, opts WatchOptions) {
	rels := make([]string, 0, len(pending))
	for rel := range pending {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	for _, rel := range rels {
		source := sourceName(rel)
		path := filepath.Join(root, filepath.FromSlash(rel))
		event := WatchEvent{Source: source}

		info, err := os.Stat(path)
		switch {
		case err == nil && info.Mode().IsRegular():
			event.Result, event.Err = idx.IngestFile(ctx, path, source, opts.Mode)
		case err == nil:
			continue
		case errors.Is(err, fs.ErrNotExist):
			event.Removed = true
			if _, err := idx.DeleteSource(ctx, source); err != nil && !errors.Is(err, storage.ErrNotFound) {
				event.Err = err
			}
		default:
			event.Err = err
		}

		if event.Err != nil {
			idx.cfg.Logger.Warn("watch sync failed", slog.String("source", source), slog.String("error", event.Err.Error()))
		}
		if opts.OnEvent != nil {
			opts.OnEvent(event)
		}
	}
}

// watchTree adds dir and every non-excluded directory below it. Excludes
// are matched against paths relative to root.
func watchTree(w *fsnotify.Watcher, root, dir string, excludes []string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, err := filepath.Rel(root, path); err == nil && rel != "." {
			rel = filepath.ToSlash(rel)
			if matchAny(excludes, rel) || matchAny(excludes, rel+"/") {
				return filepath.SkipDir
			}
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}
