// Package watcher reports edits to a board definition file so the column
// layout can be re-imported while the board is open.
//
// Events from fsnotify (or a stat ticker when inotify is unavailable) are
// debounced, then the file is read and hashed. Only a change of content is
// reported, so saving an unchanged file or touching it stays silent.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/retro/pkg/debug"
)

// DefaultPollInterval is how often the file is re-read in polling mode.
const DefaultPollInterval = 2 * time.Second

var (
	ErrFileRemoved    = errors.New("board file was removed")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// Change describes a new version of the board file.
type Change struct {
	Path   string
	Digest string // hex sha256 of the new content
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long a burst of writes must settle before the file
// is read.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithPollInterval sets the re-read interval used in polling mode.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) { w.pollInterval = d }
}

// WithForcePoll skips fsnotify. RETRO_FORCE_POLL=1 does the same.
func WithForcePoll(force bool) Option {
	return func(w *Watcher) { w.forcePoll = force }
}

// OnChange sets the callback run for every content change.
func OnChange(fn func(Change)) Option {
	return func(w *Watcher) { w.onChange = fn }
}

// OnError sets the callback run for read and watch errors, including
// ErrFileRemoved.
func OnError(fn func(error)) Option {
	return func(w *Watcher) { w.onError = fn }
}

// Watcher follows one board definition file.
type Watcher struct {
	path         string
	debounce     time.Duration
	pollInterval time.Duration
	forcePoll    bool
	onChange     func(Change)
	onError      func(error)

	debouncer *Debouncer
	changes   chan Change

	mu      sync.Mutex
	digest  string
	missing bool
	polling bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New returns a watcher for path. It does nothing until Start.
func New(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:         abs,
		debounce:     DefaultDebounceDuration,
		pollInterval: DefaultPollInterval,
		onChange:     func(Change) {},
		onError:      func(error) {},
		changes:      make(chan Change, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.pollInterval <= 0 {
		w.pollInterval = DefaultPollInterval
	}
	w.debouncer = NewDebouncer(w.debounce)
	return w, nil
}

// Start records the current content as the baseline and begins watching.
// The watcher stops when ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return ErrAlreadyStarted
	}

	digest, err := fileDigest(w.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		w.missing = true
	case err != nil:
		return err
	}
	w.digest = digest

	var fsw *fsnotify.Watcher
	if !w.forcePoll && !envBool("RETRO_FORCE_POLL") {
		fsw, err = fsnotify.NewWatcher()
		if err == nil {
			// The directory, not the file: editors replace files on save.
			if err = fsw.Add(filepath.Dir(w.path)); err != nil {
				fsw.Close()
				fsw = nil
			}
		}
		if err != nil {
			debug.Log("watcher: fsnotify unavailable for %s, polling: %v", w.path, err)
		}
	}
	w.polling = fsw == nil

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.run(ctx, fsw)
	return nil
}

// Stop ends watching and waits for the loop to exit. A pending debounced
// check is dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	w.debouncer.Cancel()
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// IsPolling reports whether the watcher fell back to polling.
func (w *Watcher) IsPolling() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.polling
}

// Digest returns the digest of the last content seen.
func (w *Watcher) Digest() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.digest
}

// Changes delivers the latest change. A slow reader misses intermediate
// versions but never the last one.
func (w *Watcher) Changes() <-chan Change { return w.changes }

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.done)

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
		tick   <-chan time.Time
	)
	if fsw != nil {
		defer fsw.Close()
		events, errs = fsw.Events, fsw.Errors
	} else {
		t := time.NewTicker(w.pollInterval)
		defer t.Stop()
		tick = t.C
	}

	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) == name {
				w.debouncer.Trigger(w.check)
			}
		case err, ok := <-errs:
			if !ok {
				return
			}
			w.onError(err)
		case <-tick:
			w.check()
		}
	}
}

// check re-reads the file and reports a change of content.
func (w *Watcher) check() {
	digest, err := fileDigest(w.path)

	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return
	}
	var (
		report  error
		changed bool
	)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if !w.missing {
			w.missing = true
			report = ErrFileRemoved
		}
	case err != nil:
		report = err
	default:
		w.missing = false
		if digest != w.digest {
			w.digest = digest
			changed = true
		}
	}
	w.mu.Unlock()

	if report != nil {
		w.onError(report)
		return
	}
	if !changed {
		return
	}

	debug.Log("watcher: %s changed (%s)", w.path, digest[:12])
	c := Change{Path: w.path, Digest: digest}
	w.onChange(c)
	select {
	case <-w.changes:
	default:
	}
	select {
	case w.changes <- c:
	default:
	}
}

func fileDigest(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
