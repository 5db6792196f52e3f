package prefixes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"prefixhider/internal/logging"
)

// DefaultDebounce is how long a file must stay quiet before a change is reported.
const DefaultDebounce = 200 * time.Millisecond

type fileDoc struct {
	Prefixes []string `yaml:"prefixes"`
}

// FileSource keeps the prefix list in a YAML file of the form `prefixes: [...]`.
type FileSource struct {
	path string
	mu   sync.Mutex
}

// NewFileSource returns a source backed by path. The file need not exist yet.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the file path.
func (f *FileSource) Path() string { return f.path }

// Load reads the list. A missing file is an empty list.
func (f *FileSource) Load(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read prefixes: %w", err)
	}

	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse prefixes: %w", err)
	}
	if doc.Prefixes == nil {
		return []string{}, nil
	}
	return doc.Prefixes, nil
}

// Save writes list, replacing the file atomically.
func (f *FileSource) Save(ctx context.Context, list []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if list == nil {
		list = []string{}
	}
	data, err := yaml.Marshal(fileDoc{Prefixes: list})
	if err != nil {
		return fmt.Errorf("failed to marshal prefixes: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write prefixes: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace prefixes: %w", err)
	}
	logging.Store("saved %d prefixes to %s", len(list), f.path)
	return nil
}

// Prefixes implements labels.PrefixSource.
func (f *FileSource) Prefixes(ctx context.Context) ([]string, error) {
	return f.Load(ctx)
}

// FileWatcher calls onChange after the prefix file settles following an edit.
// It watches the parent directory so editors that replace the file are seen.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	onChange func()

	mu      sync.Mutex
	pending time.Time
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewFileWatcher creates a watcher for path. debounce <= 0 uses DefaultDebounce.
func NewFileWatcher(path string, debounce time.Duration, onChange func()) (*FileWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &FileWatcher{
		watcher:  w,
		path:     filepath.Clean(path),
		debounce: debounce,
		onChange: onChange,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. It does not block.
func (fw *FileWatcher) Start(ctx context.Context) error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return nil
	}
	fw.running = true
	fw.mu.Unlock()

	dir := filepath.Dir(fw.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logging.StoreWarn("FileWatcher: failed to create %s: %v", dir, err)
	}
	if err := fw.watcher.Add(dir); err != nil {
		fw.mu.Lock()
		fw.running = false
		fw.mu.Unlock()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logging.Store("FileWatcher: watching %s", fw.path)

	go fw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine.
func (fw *FileWatcher) Stop() {
	fw.mu.Lock()
	wasRunning := fw.running
	fw.running = false
	fw.mu.Unlock()

	if wasRunning {
		close(fw.stopCh)
		<-fw.doneCh
	}
	if err := fw.watcher.Close(); err != nil {
		logging.StoreWarn("FileWatcher: error closing watcher: %v", err)
	}
}

func (fw *FileWatcher) run(ctx context.Context) {
	defer close(fw.doneCh)

	ticker := time.NewTicker(fw.debounce / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-fw.stopCh:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			fw.mu.Lock()
			fw.pending = time.Now()
			fw.mu.Unlock()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.StoreWarn("FileWatcher error: %v", err)

		case <-ticker.C:
			fw.mu.Lock()
			fire := !fw.pending.IsZero() && time.Since(fw.pending) >= fw.debounce
			if fire {
				fw.pending = time.Time{}
			}
			fw.mu.Unlock()
			if fire {
				logging.Store("FileWatcher: %s changed", fw.path)
				fw.onChange()
			}
		}
	}
}
