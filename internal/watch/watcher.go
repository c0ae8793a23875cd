// Package watch invalidates module indexes when a dependency's descriptors
// change on disk.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mattmok/idea-spring-boot-assistant/internal/locator"
	"go.uber.org/zap"
)

// DefaultDelay is how long changes are collected before modules are
// invalidated
const DefaultDelay = 200 * time.Millisecond

// Invalidator is the part of the index manager the watcher drives
type Invalidator interface {
	ModulesFor(path string) []string
	Invalidate(moduleID string) error
}

// FileWatcher watches dependency locations and invalidates the modules that
// use them
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	target    Invalidator
	logger    *zap.Logger

	mu      sync.Mutex
	watched map[string]bool
	deps    map[string]locator.Dependency

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewFileWatcher creates a watcher. A delay <= 0 uses DefaultDelay.
func NewFileWatcher(target Invalidator, delay time.Duration, logger *zap.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher:   watcher,
		debouncer: NewDebouncer(delay),
		target:    target,
		logger:    logger,
		watched:   make(map[string]bool),
		deps:      make(map[string]locator.Dependency),
		stopChan:  make(chan struct{}),
	}
	fw.debouncer.SetCallback(func(paths []string) {
		Invalidate(fw.target, paths, fw.logger)
	})
	return fw, nil
}

// Watch adds the descriptor directories of deps. Directories already watched
// are skipped; missing ones are ignored. The dependencies are remembered so
// directories created later, such as a first META-INF, are picked up.
func (fw *FileWatcher) Watch(deps []locator.Dependency) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	for _, dep := range deps {
		fw.deps[dep.Path] = dep
	}
	_, err := fw.addLocked(deps)
	return err
}

// addLocked watches the descriptor directories of deps that are not watched
// yet and returns them. fw.mu must be held.
func (fw *FileWatcher) addLocked(deps []locator.Dependency) ([]string, error) {
	var added []string
	for _, dep := range deps {
		for _, dir := range locator.DescriptorDirs(dep) {
			if fw.watched[dir] {
				continue
			}
			if err := fw.watcher.Add(dir); err != nil {
				return added, fmt.Errorf("failed to watch directory %s: %w", dir, err)
			}
			fw.watched[dir] = true
			added = append(added, dir)
			fw.logger.Debug("watching dependency directory", zap.String("dir", dir))
		}
	}
	return added, nil
}

// rewatch re-resolves the descriptor directories of every remembered
// dependency. Newly watched directories count as changed, since a descriptor
// may have been written before the watch was in place.
func (fw *FileWatcher) rewatch() {
	fw.mu.Lock()
	deps := make([]locator.Dependency, 0, len(fw.deps))
	for _, dep := range fw.deps {
		deps = append(deps, dep)
	}
	added, err := fw.addLocked(deps)
	fw.mu.Unlock()

	if err != nil {
		fw.logger.Warn("failed to extend watched directories", zap.Error(err))
	}
	for _, dir := range added {
		fw.debouncer.Add(dir)
	}
}

// forget drops a watched directory that was removed or renamed
func (fw *FileWatcher) forget(path string) bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if !fw.watched[path] {
		return false
	}
	delete(fw.watched, path)
	_ = fw.watcher.Remove(path)
	return true
}

// Watched returns the watched directories, sorted
func (fw *FileWatcher) Watched() []string {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	dirs := make([]string, 0, len(fw.watched))
	for dir := range fw.watched {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

// Start runs the event loop in the background
func (fw *FileWatcher) Start() {
	fw.wg.Add(1)
	go fw.watch()
}

// Stop stops the watcher. Pending changes are dropped.
func (fw *FileWatcher) Stop() error {
	select {
	case <-fw.stopChan:
		return nil
	default:
		close(fw.stopChan)
	}

	fw.wg.Wait()
	fw.debouncer.Stop()
	return fw.watcher.Close()
}

func (fw *FileWatcher) watch() {
	defer fw.wg.Done()

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			fw.track(event)
			if Relevant(event.Name) {
				fw.logger.Debug("dependency changed", zap.String("path", event.Name), zap.Stringer("op", event.Op))
				fw.debouncer.Add(event.Name)
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("file watcher error", zap.Error(err))

		case <-fw.stopChan:
			return
		}
	}
}

// track keeps the watch set in step with directories appearing and
// disappearing below the dependencies
func (fw *FileWatcher) track(event fsnotify.Event) {
	switch {
	case event.Op&fsnotify.Create != 0:
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			fw.rewatch()
		}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		if fw.forget(event.Name) {
			fw.rewatch()
		}
	}
}

// Relevant reports whether a change to path can alter located descriptors:
// archives, descriptor files and the META-INF directories holding them.
func Relevant(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".jar", ".zip", ".json":
		return true
	}
	return base == "META-INF"
}

// Invalidate invalidates every module depending on one of paths, once each
func Invalidate(target Invalidator, paths []string, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	seen := make(map[string]bool)
	for _, p := range paths {
		for _, id := range target.ModulesFor(p) {
			if seen[id] {
				continue
			}
			seen[id] = true
			if err := target.Invalidate(id); err != nil {
				logger.Warn("failed to invalidate module", zap.String("module", id), zap.Error(err))
				continue
			}
			logger.Info("dependencies changed, rebuilding index", zap.String("module", id))
		}
	}
}

// Debouncer collects paths and hands them over once no new path arrived for
// its delay
type Debouncer struct {
	delay    time.Duration
	timer    *time.Timer
	paths    map[string]struct{}
	mutex    sync.Mutex
	callback func([]string)
	stopped  bool
}

// NewDebouncer creates a debouncer
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay: delay,
		paths: make(map[string]struct{}),
	}
}

// Add records a path and restarts the delay
func (d *Debouncer) Add(path string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.stopped {
		return
	}

	d.paths[path] = struct{}{}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

// flush hands the collected paths, sorted, to the callback
func (d *Debouncer) flush() {
	d.mutex.Lock()
	if len(d.paths) == 0 || d.stopped {
		d.mutex.Unlock()
		return
	}
	paths := make([]string, 0, len(d.paths))
	for p := range d.paths {
		paths = append(paths, p)
	}
	d.paths = make(map[string]struct{})
	callback := d.callback
	d.mutex.Unlock()

	sort.Strings(paths)
	if callback != nil {
		callback(paths)
	}
}

// SetCallback sets the function receiving collected paths
func (d *Debouncer) SetCallback(callback func([]string)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.callback = callback
}

// Stop cancels any pending flush
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.stopped = true
}
