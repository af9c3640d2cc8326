// Package watcher reports changes to the POM files of a workspace.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/pomreactor/pkg/finder"
	"github.com/ritzau/pomreactor/pkg/logging"
)

// ChangeType represents the type of file change detected
type ChangeType int

const (
	// ChangeTypePOM is a pom.xml that was written
	ChangeTypePOM ChangeType = iota
	// ChangeTypeStructure is a pom.xml or directory that was created,
	// removed or renamed, so the set of reactor files may differ
	ChangeTypeStructure
)

func (t ChangeType) String() string {
	if t == ChangeTypeStructure {
		return "structure"
	}
	return "pom"
}

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// batchDelay groups the events of a single editor save
const batchDelay = 100 * time.Millisecond

// FileWatcher watches the directories of a workspace that hold POM files
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	workspace string
	events    chan ChangeEvent

	mu      sync.Mutex
	watched map[string]bool
}

// NewFileWatcher creates a new file system watcher for a workspace
func NewFileWatcher(workspace string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher:   watcher,
		workspace: workspace,
		events:    make(chan ChangeEvent, 100),
		watched:   make(map[string]bool),
	}, nil
}

// Start begins watching for file changes. The watcher stops and its events
// channel is closed when ctx is done.
func (fw *FileWatcher) Start(ctx context.Context) error {
	if err := fw.Rescan(); err != nil {
		return err
	}
	logging.Info("started watching workspace", "path", fw.workspace)

	go fw.processEvents(ctx)
	return nil
}

// Rescan adds watches for the workspace root and every directory holding a
// POM file
func (fw *FileWatcher) Rescan() error {
	files, err := finder.FindPOMFiles(fw.workspace)
	if err != nil {
		return fmt.Errorf("failed to find POM files: %w", err)
	}

	fw.add(fw.workspace)
	for _, f := range files {
		fw.add(filepath.Dir(f))
	}
	logging.Debug("monitoring directories for POM files", "count", fw.Watched())
	return nil
}

func (fw *FileWatcher) add(dir string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.watched[dir] {
		return
	}
	if err := fw.watcher.Add(dir); err != nil {
		logging.Warn("failed to watch directory", "path", dir, "error", err)
		return
	}
	fw.watched[dir] = true
}

func (fw *FileWatcher) forget(dir string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	delete(fw.watched, dir)
}

// Watched returns the number of watched directories
func (fw *FileWatcher) Watched() int {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return len(fw.watched)
}

// classify maps a raw event to a change, and false when it is irrelevant
func (fw *FileWatcher) classify(event fsnotify.Event) (ChangeType, bool) {
	if finder.IsPOMFile(event.Name) {
		if event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
			return ChangeTypePOM, true
		}
		if event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
			return ChangeTypeStructure, true
		}
		return 0, false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			// a new module directory; watch it so its pom.xml is seen
			fw.add(event.Name)
			return ChangeTypeStructure, true
		}
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		fw.mu.Lock()
		watched := fw.watched[event.Name]
		fw.mu.Unlock()
		if watched {
			fw.forget(event.Name)
			return ChangeTypeStructure, true
		}
	}
	return 0, false
}

// processEvents batches file system events by type
func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)
	defer fw.watcher.Close()

	pending := make(map[ChangeType][]string)
	flushTimer := time.NewTimer(batchDelay)
	flushTimer.Stop()

	flush := func() {
		for _, typ := range []ChangeType{ChangeTypeStructure, ChangeTypePOM} {
			if paths := pending[typ]; len(paths) > 0 {
				select {
				case fw.events <- ChangeEvent{Type: typ, Paths: paths, Timestamp: time.Now()}:
				case <-ctx.Done():
				}
			}
		}
		clear(pending)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			typ, relevant := fw.classify(event)
			if !relevant {
				continue
			}
			logging.Trace("file change", "path", event.Name, "op", event.Op.String(), "type", typ)
			pending[typ] = append(pending[typ], event.Name)
			flushTimer.Reset(batchDelay)

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

// Events returns the channel of change events
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}
