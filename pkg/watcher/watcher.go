// Package watcher monitors a local metrics snapshot (fixture JSON or
// SQLite file) for changes, so the dashboard can live-reload its
// aggregate payload without restarting. It uses fsnotify where available
// and falls back to mtime polling on filesystems that don't deliver
// events (network mounts, some containers).
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is the default polling interval for fallback mode.
const DefaultPollInterval = 2 * time.Second

// Common errors.
var (
	ErrFileRemoved    = errors.New("watched file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceDuration sets the debounce duration.
func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) { w.debounceDuration = d }
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) { w.pollInterval = d }
}

// WithOnChange sets the callback invoked when the file changes.
func WithOnChange(fn func()) Option {
	return func(w *Watcher) { w.onChange = fn }
}

// WithOnError sets the callback invoked on errors.
func WithOnError(fn func(error)) Option {
	return func(w *Watcher) { w.onError = fn }
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) Option {
	return func(w *Watcher) { w.forcePoll = force }
}

// Watcher monitors a single file for changes. Both backends (fsnotify
// and stat polling) feed raw signals into one run loop, which owns the
// debouncer and the outward-facing notifications.
type Watcher struct {
	path             string
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func()
	onError          func(error)
	forcePoll        bool

	mu       sync.RWMutex
	started  bool
	polling  bool
	cancel   context.CancelFunc
	fsw      *fsnotify.Watcher
	changeCh chan struct{}

	// raw signals from the active backend into the run loop
	rawCh chan struct{}
	errCh chan error
}

// New creates a watcher for the given path. The file does not have to
// exist yet; its appearance counts as a change.
func New(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:             abs,
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func() {},
		onError:          func(error) {},
		changeCh:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start launches the backend and the run loop.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}
	if info, err := os.Stat(w.path); err != nil && os.IsPermission(err) {
		return ErrPermission
	} else if err == nil && info.IsDir() {
		return errors.New("watch target is a directory")
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.rawCh = make(chan struct{}, 1)
	w.errCh = make(chan error, 1)

	w.polling = w.forcePoll || envBool("OPSGLASS_FORCE_POLL")
	if !w.polling {
		if fsw, err := w.openFsnotify(); err != nil {
			w.polling = true
		} else {
			w.fsw = fsw
			go w.feedFsnotify(ctx, fsw)
		}
	}
	if w.polling {
		go w.feedPolling(ctx)
	}
	go w.run(ctx)

	w.started = true
	return nil
}

// Stop shuts the watcher down. The change channel stays open: a close
// could race a pending notification, and consumers select on it anyway.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}
	w.cancel()
	if w.fsw != nil {
		w.fsw.Close()
		w.fsw = nil
	}
	w.started = false
}

// IsPolling reports whether the fallback polling backend is active.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.polling
}

// IsStarted reports whether the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed returns a channel that receives after each debounced change.
// Alternative to the OnChange callback.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changeCh
}

// Path returns the watched file path.
func (w *Watcher) Path() string {
	return w.path
}

// run consumes raw backend signals, debounces them, and fans out to the
// callback and the change channel.
func (w *Watcher) run(ctx context.Context) {
	deb := NewDebouncer(w.debounceDuration)
	defer deb.Cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.rawCh:
			deb.Trigger(func() {
				if ctx.Err() != nil {
					return
				}
				w.onChange()
				select {
				case w.changeCh <- struct{}{}:
				default:
				}
			})
		case err := <-w.errCh:
			w.onError(err)
		}
	}
}

func (w *Watcher) signalRaw() {
	select {
	case w.rawCh <- struct{}{}:
	default:
	}
}

func (w *Watcher) signalErr(err error) {
	select {
	case w.errCh <- err:
	default:
	}
}

// openFsnotify watches the containing directory rather than the file:
// atomic-rename writers replace the inode, which a file-level watch
// misses.
func (w *Watcher) openFsnotify() (*fsnotify.Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		fsw.Close()
		return nil, err
	}
	return fsw, nil
}

func (w *Watcher) feedFsnotify(ctx context.Context, fsw *fsnotify.Watcher) {
	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Op&fsnotify.Remove != 0 {
				w.signalErr(ErrFileRemoved)
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.signalRaw()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.signalErr(err)
		}
	}
}

func (w *Watcher) feedPolling(ctx context.Context) {
	var (
		lastMtime time.Time
		lastSize  int64
		seen      bool
	)
	if info, err := os.Stat(w.path); err == nil {
		lastMtime, lastSize, seen = info.ModTime(), info.Size(), true
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(w.path)
			switch {
			case err == nil:
				// A file appearing after a missing start counts as a change.
				if !seen || info.ModTime().After(lastMtime) || info.Size() != lastSize {
					w.signalRaw()
					lastMtime, lastSize, seen = info.ModTime(), info.Size(), true
				}
			case os.IsNotExist(err):
				if seen {
					w.signalErr(ErrFileRemoved)
					seen = false
				}
			case os.IsPermission(err):
				w.signalErr(ErrPermission)
			default:
				w.signalErr(err)
			}
		}
	}
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
