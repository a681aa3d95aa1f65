package sessionlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"
)

const (
	// DirName is the session log directory under the config directory.
	DirName = "session-logs"

	defaultMaxFiles        = 50
	defaultMaxEntries      = 2000
	defaultEmitMinInterval = 50 * time.Millisecond

	filePrefix = "session-"
	fileSuffix = ".jsonl"
)

var nowFn = time.Now

// Options configure a Recorder. Zero values take the package defaults.
type Options struct {
	MaxFiles        int
	MaxEntries      int
	EmitMinInterval time.Duration
	// Notify is called outside the lock after an entry is recorded,
	// throttled to one call per EmitMinInterval. It carries no payload;
	// listeners fetch Snapshot.
	Notify func()
}

// Recorder appends entries to a per-run JSONL file and a ring buffer.
// It is safe for concurrent use and never logs through slog itself.
type Recorder struct {
	opts Options

	mu       sync.RWMutex
	file     *os.File
	path     string
	seq      uint64
	ring     ring
	lastEmit time.Time
}

// NewRecorder returns a Recorder with only the in-memory buffer. Call Open
// to add file persistence.
func NewRecorder(opts Options) *Recorder {
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = defaultMaxFiles
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = defaultMaxEntries
	}
	if opts.EmitMinInterval <= 0 {
		opts.EmitMinInterval = defaultEmitMinInterval
	}
	return &Recorder{opts: opts, ring: newRing(opts.MaxEntries)}
}

// Open creates the JSONL file for this run under dir and trims old files
// beyond MaxFiles. Failures are returned; the Recorder keeps working in
// memory either way.
func (r *Recorder) Open(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session log directory: %w", err)
	}
	// PID suffix keeps sub-second restarts from colliding.
	name := fmt.Sprintf("%s%s-%d%s", filePrefix, nowFn().Format("20060102-150405"), os.Getpid(), fileSuffix)
	fullPath := filepath.Join(dir, name)
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}

	r.mu.Lock()
	previous := r.file
	r.file = f
	r.path = fullPath
	r.mu.Unlock()
	if previous != nil {
		_ = previous.Close()
	}

	slog.Info("[session-log] initialized", "path", fullPath)
	return r.cleanup(dir, name)
}

// cleanup removes the oldest session files beyond MaxFiles, never the
// active one.
func (r *Recorder) cleanup(dir, current string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read session log directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileSuffix) {
			names = append(names, name)
		}
	}
	// Timestamp prefix gives approximate age order.
	slices.Sort(names)

	excess := len(names) - r.opts.MaxFiles
	var errs []error
	for _, name := range names {
		if excess <= 0 {
			break
		}
		if name == current {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			errs = append(errs, err)
			continue
		}
		excess--
	}
	return errors.Join(errs...)
}

// Record assigns a sequence number and stores entry. Error entries are
// synced to disk.
func (r *Recorder) Record(entry Entry) {
	var marshalErr, writeErr error
	var syncFile *os.File
	shouldEmit := false

	r.mu.Lock()
	r.seq++
	entry.Seq = r.seq
	if r.file != nil {
		raw, err := json.Marshal(entry)
		if err != nil {
			marshalErr = err
		} else if _, err := r.file.Write(append(raw, '\n')); err != nil {
			writeErr = err
		} else if entry.Level == "error" {
			syncFile = r.file
		}
	}
	r.ring.push(entry)
	now := nowFn()
	if now.Sub(r.lastEmit) >= r.opts.EmitMinInterval {
		r.lastEmit = now
		shouldEmit = true
	}
	r.mu.Unlock()

	if syncFile != nil {
		if err := syncFile.Sync(); err != nil && !isCloseRace(err) {
			fmt.Fprintf(os.Stderr, "[session-log] failed to sync log file: %v\n", err)
		}
	}
	if marshalErr != nil {
		fmt.Fprintf(os.Stderr, "[session-log] failed to marshal log entry: %v\n", marshalErr)
	}
	if writeErr != nil {
		fmt.Fprintf(os.Stderr, "[session-log] failed to write log entry: %v\n", writeErr)
	}
	if shouldEmit && r.opts.Notify != nil {
		r.opts.Notify()
	}
}

// isCloseRace reports the benign errors from syncing a file Close just won.
func isCloseRace(err error) bool {
	return errors.Is(err, os.ErrClosed) ||
		(runtime.GOOS == "windows" && errors.Is(err, syscall.EINVAL))
}

// Snapshot returns the buffered entries oldest first.
func (r *Recorder) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ring.snapshot()
}

// Path returns the active JSONL file, or "" before Open.
func (r *Recorder) Path() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.path
}

// Close flushes and closes the file. The in-memory buffer stays readable.
func (r *Recorder) Close() error {
	r.mu.Lock()
	f := r.file
	r.file = nil
	r.mu.Unlock()
	if f == nil {
		return nil
	}
	return f.Close()
}
