// Package watcher reports edits to dataset, state and group files so the graph can be
// re-merged while the server is running.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/umsu/umsugraph/pkg/logging"
)

// ChangeType represents the kind of input file that changed
type ChangeType int

const (
	ChangeTypeDataset ChangeType = iota
	ChangeTypeState
	ChangeTypeGroups
)

func (t ChangeType) String() string {
	switch t {
	case ChangeTypeDataset:
		return "dataset"
	case ChangeTypeState:
		return "state"
	case ChangeTypeGroups:
		return "groups"
	}
	return fmt.Sprintf("ChangeType(%d)", int(t))
}

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// batchWindow collects bursts of fsnotify events (editors often write, chmod and rename).
const batchWindow = 100 * time.Millisecond

// FileWatcher watches a fixed set of input files.
// The containing directories are watched so that files replaced by rename are still seen.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	files   map[string]ChangeType // absolute path -> kind
	events  chan ChangeEvent
	stop    sync.Once
}

// NewFileWatcher creates a watcher for the given inputs. Empty paths are ignored.
func NewFileWatcher(datasets []string, state, groups string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating fsnotify watcher")
	}

	fw := &FileWatcher{
		watcher: watcher,
		files:   make(map[string]ChangeType),
		events:  make(chan ChangeEvent, 100),
	}
	for _, p := range datasets {
		fw.track(p, ChangeTypeDataset)
	}
	fw.track(state, ChangeTypeState)
	fw.track(groups, ChangeTypeGroups)

	return fw, nil
}

func (fw *FileWatcher) track(path string, kind ChangeType) {
	if path == "" {
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		logging.Warn("cannot resolve path", "path", path, "error", err)
		return
	}
	fw.files[abs] = kind
}

// Start begins watching for file changes
func (fw *FileWatcher) Start(ctx context.Context) error {
	dirs := make(map[string]bool)
	for path := range fw.files {
		dirs[filepath.Dir(path)] = true
	}
	var lastErr error
	watched := 0
	for dir := range dirs {
		if err := fw.watcher.Add(dir); err != nil {
			logging.Warn("failed to watch directory", "path", dir, "error", err)
			lastErr = errors.Wrapf(err, "watching %s", dir)
			continue
		}
		watched++
	}
	if len(dirs) > 0 && watched == 0 {
		return errors.WithHint(lastErr, "the directories of the watched inputs must exist")
	}

	logging.Info("started watching inputs", "files", len(fw.files), "directories", len(dirs))

	go fw.processEvents(ctx)

	return nil
}

// processEvents batches relevant events by change type
func (fw *FileWatcher) processEvents(ctx context.Context) {
	pending := make(map[ChangeType][]string)
	seen := make(map[string]bool)

	flushTimer := time.NewTimer(batchWindow)
	flushTimer.Stop()

	flush := func() {
		for _, kind := range []ChangeType{ChangeTypeState, ChangeTypeGroups, ChangeTypeDataset} {
			if paths := pending[kind]; len(paths) > 0 {
				fw.events <- ChangeEvent{Type: kind, Paths: paths, Timestamp: time.Now()}
			}
		}
		pending = make(map[ChangeType][]string)
		seen = make(map[string]bool)
	}

	defer close(fw.events)
	defer fw.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			kind, tracked := fw.files[filepath.Clean(event.Name)]
			if !tracked || seen[event.Name] {
				continue
			}
			logging.Trace("input changed", "path", event.Name, "op", event.Op.String())
			seen[event.Name] = true
			pending[kind] = append(pending[kind], event.Name)
			flushTimer.Reset(batchWindow)

		case <-flushTimer.C:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// Events returns the channel of change events. It is closed when the watcher stops.
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Stop releases the underlying fsnotify watcher
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stop.Do(func() {
		err = fw.watcher.Close()
	})
	return err
}
