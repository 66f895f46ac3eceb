// Package watcher turns filesystem activity in configured directories
// into translation work. Events funnel through a single dispatcher
// goroutine; filename filters and per-path debouncing keep generated
// outputs and duplicate events from becoming tasks.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/subautotrans/subautotrans/internal/pipeline"
	"github.com/subautotrans/subautotrans/internal/task"
	"github.com/subautotrans/subautotrans/pkg/log"
)

// Notify is called for every file that passes the filters. It runs on
// the dispatcher goroutine, so implementations must not block.
type Notify func(path string, w task.Watcher)

const debounceWindow = 30 * time.Second

// Manager owns the fsnotify subscriptions for all enabled watches.
type Manager struct {
	notify Notify

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	watches map[int64]task.Watcher
	dirs    map[string]int64
	recent  map[string]time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
}

func NewManager(notify Notify) *Manager {
	return &Manager{
		notify:  notify,
		watches: make(map[int64]task.Watcher),
		dirs:    make(map[string]int64),
		recent:  make(map[string]time.Time),
		stopCh:  make(chan struct{}),
	}
}

// Start creates the fsnotify watcher and launches the dispatcher.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	m.fsw = fsw
	m.stopCh = make(chan struct{})
	m.started = true

	m.wg.Add(1)
	go m.dispatch()
	log.Info("Watcher manager started")
	return nil
}

// Stop shuts the dispatcher down and releases the fsnotify handle.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	m.mu.Unlock()

	close(m.stopCh)
	m.fsw.Close()
	m.wg.Wait()
	log.Info("Watcher manager stopped")
}

// AddWatch subscribes to a directory tree.
func (m *Manager) AddWatch(w task.Watcher) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return fmt.Errorf("watcher manager not started")
	}

	info, err := os.Stat(w.Path)
	if err != nil {
		return fmt.Errorf("watch path unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch path is not a directory: %s", w.Path)
	}

	m.watches[w.ID] = w
	if err := m.addTreeLocked(w.Path, w.ID); err != nil {
		return err
	}
	log.Info("Watching %s for %s (%s)", w.Path, w.TargetLanguage, w.Provider)
	return nil
}

// RemoveWatch drops a directory tree subscription.
func (m *Manager) RemoveWatch(watcherID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.watches, watcherID)
	for dir, id := range m.dirs {
		if id == watcherID {
			_ = m.fsw.Remove(dir)
			delete(m.dirs, dir)
		}
	}
}

func (m *Manager) addTreeLocked(root string, watcherID int64) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn("Skipping %s: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := m.fsw.Add(path); err != nil {
			log.Warn("Failed to watch %s: %v", path, err)
			return nil
		}
		m.dirs[path] = watcherID
		return nil
	})
}

func (m *Manager) dispatch() {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopCh:
			return
		case event, ok := <-m.fsw.Events:
			if !ok {
				return
			}
			m.handleEvent(event)
		case err, ok := <-m.fsw.Errors:
			if !ok {
				return
			}
			log.Error("Filesystem watcher error: %v", err)
		}
	}
}

func (m *Manager) handleEvent(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}

	// New subdirectories join the owning watch.
	if info.IsDir() {
		if event.Op.Has(fsnotify.Create) {
			m.mu.Lock()
			if id, ok := m.owningWatchLocked(event.Name); ok {
				if err := m.addTreeLocked(event.Name, id); err != nil {
					log.Warn("Failed to watch new directory %s: %v", event.Name, err)
				}
			}
			m.mu.Unlock()
		}
		return
	}

	m.mu.Lock()
	id, ok := m.owningWatchLocked(event.Name)
	if !ok {
		m.mu.Unlock()
		return
	}
	w, ok := m.watches[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	if !m.debounceLocked(event.Name) {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	if !ShouldEnqueue(event.Name, w.TargetLanguage) {
		return
	}
	log.Info("Detected new file: %s", event.Name)
	m.notify(event.Name, w)
}

// owningWatchLocked finds the watch whose root is the longest prefix of
// path.
func (m *Manager) owningWatchLocked(path string) (int64, bool) {
	var bestID int64
	bestLen := -1
	for _, w := range m.watches {
		root := strings.TrimRight(w.Path, string(filepath.Separator))
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			if len(root) > bestLen {
				bestLen = len(root)
				bestID = w.ID
			}
		}
	}
	return bestID, bestLen >= 0
}

// debounceLocked reports whether the path may fire, recording it. A
// path fires at most once per window no matter how many events the
// copy produces.
func (m *Manager) debounceLocked(path string) bool {
	now := time.Now()
	if last, ok := m.recent[path]; ok && now.Sub(last) < debounceWindow {
		return false
	}
	m.recent[path] = now

	if len(m.recent) > 1024 {
		for p, t := range m.recent {
			if now.Sub(t) >= debounceWindow {
				delete(m.recent, p)
			}
		}
	}
	return true
}

// ScanResult summarizes one manual directory scan.
type ScanResult struct {
	Scanned   int `json:"scanned"`
	Triggered int `json:"triggered"`
}

// Scan walks a watch's tree once and notifies for every file that
// passes the filters, independent of filesystem events.
func (m *Manager) Scan(ctx context.Context, w task.Watcher) (ScanResult, error) {
	var result ScanResult
	err := filepath.WalkDir(w.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn("Skipping %s: %v", path, err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !WatchedFile(path) {
			return nil
		}
		// Our own outputs are not candidates, so they do not count.
		if pipeline.IsGeneratedOutput(path) {
			return nil
		}
		result.Scanned++
		if ShouldEnqueue(path, w.TargetLanguage) {
			result.Triggered++
			m.notify(path, w)
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("scan of %s failed: %w", w.Path, err)
	}
	log.Info("Scanned %s: %d candidates, %d triggered", w.Path, result.Scanned, result.Triggered)
	return result, nil
}
