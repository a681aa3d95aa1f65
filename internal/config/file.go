package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

const (
	maxConfigFileBytes int64 = 1 << 20
	maxRenameAttempts        = 10
	// Antivirus and indexers hold Windows files briefly after a write.
	renameBackoff = 10 * time.Millisecond
)

var renameFn = os.Rename

// readCapped reads at most limit bytes and fails when the file is larger.
func readCapped(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, limit+1))
	switch {
	case err != nil:
		return nil, err
	case int64(len(raw)) > limit:
		return nil, fmt.Errorf("%s is larger than %d bytes", filepath.Base(path), limit)
	}
	return raw, nil
}

// writeFileAtomic replaces path through a temp file in the same directory.
// The temp file is removed unless the final rename succeeds.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		_ = tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("[WARN-CONFIG] temp config file left behind", "path", tmp.Name(), "error", err)
		}
	}()

	if err := flushTemp(tmp, data); err != nil {
		return err
	}
	if err := replaceFile(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	committed = true
	return nil
}

func flushTemp(f *os.File, data []byte) error {
	if err := f.Chmod(0o600); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return nil
}

// replaceFile renames src over dst. Windows gets a few linear backoff
// retries for sharing violations.
func replaceFile(src, dst string) error {
	err := renameFn(src, dst)
	if err == nil || runtime.GOOS != "windows" {
		return err
	}
	for attempt := 1; attempt < maxRenameAttempts; attempt++ {
		time.Sleep(time.Duration(attempt) * renameBackoff)
		if err = renameFn(src, dst); err == nil {
			return nil
		}
	}
	return err
}
