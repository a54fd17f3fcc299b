package informer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	utiljson "k8s.io/apimachinery/pkg/util/json"
	"sigs.k8s.io/yaml"

	"github.com/giantswarm/kopkit/pkg/logging"
)

const fileLogSubsystem = "FileInformer"

// DefaultDebounceInterval is used when NewFileInformer gets a zero interval.
const DefaultDebounceInterval = 500 * time.Millisecond

// FileInformer watches a directory of YAML manifests and reports the
// objects of one kind as *unstructured.Unstructured. Each file holds one
// object; files of other kinds are ignored.
type FileInformer struct {
	dir      string
	gvk      schema.GroupVersionKind
	debounce time.Duration

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	pending  map[string]*time.Timer
	running  bool
	stopCh   chan struct{}
	ready    chan struct{}
	listed   sync.Once
	handlers map[int]Handler
	nextID   int

	// syncMu serialises file processing and handler replay.
	syncMu  sync.Mutex
	objects map[string]*unstructured.Unstructured
}

// NewFileInformer returns an informer for objects of kind gvk in dir.
func NewFileInformer(dir string, gvk schema.GroupVersionKind, debounce time.Duration) *FileInformer {
	if debounce <= 0 {
		debounce = DefaultDebounceInterval
	}
	return &FileInformer{
		dir:      dir,
		gvk:      gvk,
		debounce: debounce,
		pending:  make(map[string]*time.Timer),
		ready:    make(chan struct{}),
		handlers: make(map[int]Handler),
		objects:  make(map[string]*unstructured.Unstructured),
	}
}

// GroupVersionKind implements Informer.
func (f *FileInformer) GroupVersionKind() schema.GroupVersionKind {
	return f.gvk
}

// Start lists the directory, delivers the objects found as Added and then
// watches for changes until ctx is canceled or Stop is called.
func (f *FileInformer) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		f.mu.Unlock()
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.mu.Unlock()
		return err
	}
	if err := watcher.Add(f.dir); err != nil {
		_ = watcher.Close()
		f.mu.Unlock()
		return err
	}

	f.watcher = watcher
	f.running = true
	f.stopCh = make(chan struct{})
	stopCh := f.stopCh
	f.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		_ = f.Stop()
		return err
	}
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && isYAMLFile(entry.Name()) {
			paths = append(paths, filepath.Join(f.dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	for _, path := range paths {
		f.syncFile(path)
	}
	f.listed.Do(func() { close(f.ready) })

	logging.Info(fileLogSubsystem, "Started watching %s for %s manifests (%d files)", f.dir, f.gvk.Kind, len(paths))
	go f.processEvents(ctx, watcher, stopCh)
	return nil
}

// Stop stops watching. Pending debounced changes are dropped.
func (f *FileInformer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return nil
	}
	f.running = false
	close(f.stopCh)

	for _, timer := range f.pending {
		timer.Stop()
	}
	f.pending = make(map[string]*time.Timer)

	if f.watcher != nil {
		if err := f.watcher.Close(); err != nil {
			logging.Error(fileLogSubsystem, err, "Error closing filesystem watcher")
		}
		f.watcher = nil
	}

	logging.Info(fileLogSubsystem, "Stopped watching %s", f.dir)
	return nil
}

// Register implements Informer. Objects already known are replayed to the
// new handler as Added.
func (f *FileInformer) Register(handler Handler) (Registration, error) {
	if handler == nil {
		return nil, errors.New("handler must not be nil")
	}

	f.syncMu.Lock()
	defer f.syncMu.Unlock()

	for _, path := range sortedPaths(f.objects) {
		deliver(fileLogSubsystem, f.gvk, handler, Added, f.objects[path].DeepCopy())
	}

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.handlers[id] = handler
	f.mu.Unlock()

	return &fileRegistration{informer: f, id: id}, nil
}

func (f *FileInformer) processEvents(ctx context.Context, watcher *fsnotify.Watcher, stopCh <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			_ = f.Stop()
			return
		case <-stopCh:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isYAMLFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			f.debounceFile(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error(fileLogSubsystem, err, "Filesystem watcher error")
		}
	}
}

// debounceFile coalesces rapid successive changes of one file. The file is
// read once the changes settle, so the last state wins.
func (f *FileInformer) debounceFile(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return
	}
	if timer, ok := f.pending[path]; ok {
		timer.Stop()
	}
	f.pending[path] = time.AfterFunc(f.debounce, func() {
		f.mu.Lock()
		_, ok := f.pending[path]
		delete(f.pending, path)
		f.mu.Unlock()

		if ok {
			f.syncFile(path)
		}
	})
}

// syncFile compares the file on disk with the last object read from it and
// notifies handlers of the difference.
func (f *FileInformer) syncFile(path string) {
	f.syncMu.Lock()
	defer f.syncMu.Unlock()

	previous := f.objects[path]
	current, err := f.readObject(path)
	if err != nil {
		logging.Warn(fileLogSubsystem, "Ignoring %s: %v", path, err)
		return
	}

	switch {
	case current == nil && previous == nil:
		return
	case current == nil:
		delete(f.objects, path)
		f.emit(Deleted, previous)
	case previous == nil:
		f.objects[path] = current
		f.emit(Added, current)
	case previous.GetNamespace() != current.GetNamespace() || previous.GetName() != current.GetName():
		f.objects[path] = current
		f.emit(Deleted, previous)
		f.emit(Added, current)
	default:
		f.objects[path] = current
		f.emit(Modified, current)
	}
}

// readObject returns nil, nil when the file is gone or holds another kind.
func (f *FileInformer) readObject(path string) (*unstructured.Unstructured, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode: %w", err)
	}
	obj := &unstructured.Unstructured{}
	if err := utiljson.Unmarshal(jsonData, &obj.Object); err != nil {
		return nil, fmt.Errorf("failed to decode: %w", err)
	}
	if obj.Object == nil || obj.GroupVersionKind() != f.gvk {
		return nil, nil
	}
	if obj.GetName() == "" {
		return nil, errors.New("object has no metadata.name")
	}
	return obj, nil
}

func (f *FileInformer) emit(event EventType, obj *unstructured.Unstructured) {
	f.mu.Lock()
	handlers := make([]Handler, 0, len(f.handlers))
	ids := make([]int, 0, len(f.handlers))
	for id := range f.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		handlers = append(handlers, f.handlers[id])
	}
	f.mu.Unlock()

	logging.Debug(fileLogSubsystem, "%s %s %s/%s", event, f.gvk.Kind, obj.GetNamespace(), obj.GetName())
	for _, handler := range handlers {
		deliver(fileLogSubsystem, f.gvk, handler, event, obj.DeepCopy())
	}
}

func (f *FileInformer) unregister(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, id)
}

type fileRegistration struct {
	informer *FileInformer
	id       int
}

func (r *fileRegistration) Ready(ctx context.Context) error {
	select {
	case <-r.informer.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *fileRegistration) Dispose() error {
	r.informer.unregister(r.id)
	return nil
}

func sortedPaths(objects map[string]*unstructured.Unstructured) []string {
	paths := make([]string, 0, len(objects))
	for path := range objects {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// isYAMLFile checks if a file path is a YAML file.
func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
