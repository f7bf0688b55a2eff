// Package policywatch re-checks a boundary policy file whenever it
// changes on disk: the file is re-parsed and its well-formedness proof
// re-run, and the outcome is delivered as an Update. This is the
// regression check for configuration changes: a daemon keeps serving the
// last sound policy and surfaces an unsound edit immediately instead of
// classifying against it.
package policywatch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dhwcmoore/veribound-mvp/bdl"
	"github.com/dhwcmoore/veribound-mvp/boundary"
	"github.com/dhwcmoore/veribound-mvp/cidutil"
)

const updateChannelBuffer = 16

// DefaultDebounce is used when no debounce delay is configured.
const DefaultDebounce = 500 * time.Millisecond

// Update is the outcome of one policy re-check.
type Update struct {
	// Path is the watched policy file.
	Path string
	// Hash is the SHA-256 of the policy bytes that produced this update.
	Hash string
	// Policy is the parsed policy; nil when Err is set.
	Policy *bdl.Policy
	// Report is the well-formedness proof; nil when the file could not
	// be read or parsed.
	Report *boundary.Report
	// Err is set when the file could not be read or parsed, or when the
	// proof failed.
	Err error
}

// Watcher watches a single policy file. Editors and config-management
// tools typically replace files by rename, so the watch is on the parent
// directory and events are filtered to the target name.
type Watcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	pendingMu sync.Mutex
	pending   bool

	updates chan Update

	// dropped counts updates discarded because the channel was full.
	dropped atomic.Int64
}

// New creates a watcher for the policy file at path.
func New(path string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		watcher:  fsw,
		logger:   logger,
		updates:  make(chan Update, updateChannelBuffer),
	}, nil
}

// Updates returns the channel of policy re-check outcomes. It is closed
// when the watcher stops.
func (w *Watcher) Updates() <-chan Update {
	return w.updates
}

// Dropped returns how many updates were discarded because the consumer
// fell behind.
func (w *Watcher) Dropped() int64 {
	return w.dropped.Load()
}

// Start performs an initial check of the policy file, then watches for
// changes until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	// The initial check establishes the content hash, so a watch event
	// that delivers identical bytes (touch, atomic-rename of the same
	// content) is suppressed later.
	lastHash := w.check("")

	go w.run(ctx, lastHash)

	w.logger.Info("policy watcher started",
		"path", w.path,
		"debounce", w.debounce)
	return nil
}

// Stop stops the watcher. The updates channel is closed once the event
// loop exits.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context, lastHash string) {
	defer close(w.updates)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.pendingMu.Lock()
			w.pending = true
			w.pendingMu.Unlock()
			w.logger.Debug("policy change detected", "op", event.Op.String())

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case <-ticker.C:
			w.pendingMu.Lock()
			pending := w.pending
			w.pending = false
			w.pendingMu.Unlock()
			if pending {
				lastHash = w.check(lastHash)
			}
		}
	}
}

// check reads, parses, and proves the policy file, emitting an Update
// unless the content hash is unchanged. It returns the hash of the bytes
// it saw (or the previous hash when the read failed).
func (w *Watcher) check(lastHash string) string {
	data, err := os.ReadFile(w.path)
	if err != nil {
		w.emit(Update{Path: w.path, Err: err})
		return lastHash
	}
	hash := cidutil.SHA256Hex(data)
	if hash == lastHash {
		w.logger.Debug("policy content unchanged", "hash", hash)
		return lastHash
	}

	policy, err := bdl.Parse(data)
	if err != nil {
		w.emit(Update{Path: w.path, Hash: hash, Err: err})
		return hash
	}
	rep, err := policy.Verify()
	if err != nil {
		w.emit(Update{Path: w.path, Hash: hash, Err: err})
		return hash
	}

	// A parseable but unsound policy carries both the report and its
	// error, so a consumer can log the specific failed checks.
	w.emit(Update{Path: w.path, Hash: hash, Policy: policy, Report: rep, Err: rep.Err()})
	return hash
}

func (w *Watcher) emit(u Update) {
	select {
	case w.updates <- u:
	default:
		w.dropped.Add(1)
		w.logger.Warn("policy update dropped: consumer not keeping up",
			"dropped_total", w.dropped.Load())
	}
}
