package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
)

const (
	appDirName       = "GameVault"
	configFileName   = "config.yaml"
	databaseFileName = "gamevault.db"
)

// Test seams.
var (
	homeDirFn   = os.UserHomeDir
	configDirFn = func() (string, error) { return filepath.Dir(DefaultPath()), nil }
)

var percentVarPattern = regexp.MustCompile(`%[A-Za-z_][A-Za-z0-9_]*%`)

// warningQueue holds user-facing messages produced before the window exists.
type warningQueue struct {
	mu      sync.Mutex
	pending []string
}

func (q *warningQueue) add(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, message)
	q.mu.Unlock()
}

func (q *warningQueue) drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

var pathWarnings warningQueue

// ConsumeDefaultPathWarnings returns and clears the warnings DefaultPath
// recorded while falling back to a less suitable directory.
func ConsumeDefaultPathWarnings() []string {
	return pathWarnings.drain()
}

// DefaultPath resolves <root>/GameVault/config.yaml. The root is
// LOCALAPPDATA, then APPDATA, then ~/.config, then os.TempDir().
func DefaultPath() string {
	return filepath.Join(configRoot(), appDirName, configFileName)
}

func configRoot() string {
	for _, key := range []string{"LOCALAPPDATA", "APPDATA"} {
		if dir := strings.TrimSpace(os.Getenv(key)); dir != "" {
			return dir
		}
	}
	home, err := homeDirFn()
	if err == nil {
		return filepath.Join(home, ".config")
	}
	slog.Warn("[WARN-CONFIG] using temp dir as config path fallback", "error", err)
	pathWarnings.add("Config path fallback: no LOCALAPPDATA, APPDATA or home directory could be resolved. " +
		"Using the temp directory, so settings may not persist across reboots.")
	return os.TempDir()
}

// DatabasePathFor returns cfg.DatabasePath, or gamevault.db in the
// directory of configPath when unset.
func DatabasePathFor(cfg Config, configPath string) string {
	if cfg.DatabasePath != "" {
		return cfg.DatabasePath
	}
	return filepath.Join(filepath.Dir(configPath), databaseFileName)
}

// resolveSavePath makes path absolute and refuses anything outside the
// config directory.
func resolveSavePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("config path required")
	}
	dir, err := configDirFn()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	if !isWithin(root, target) {
		return "", fmt.Errorf("%q is outside the config directory %q", target, root)
	}
	return target, nil
}

// isWithin reports whether path is dir or below it. filepath.Rel yields an
// absolute result for paths on another Windows drive.
func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// normalizeDatabasePath expands ~ and environment references. A path that
// is still relative afterwards is dropped with a warning.
func normalizeDatabasePath(raw string) string {
	p := strings.TrimSpace(raw)
	if p == "" {
		return ""
	}
	if rest, ok := strings.CutPrefix(p, "~"); ok {
		home, err := homeDirFn()
		if err != nil {
			slog.Warn("[WARN-CONFIG] database_path: cannot expand ~, ignoring", "path", p, "error", err)
			return ""
		}
		p = filepath.Join(home, rest)
	}
	p = filepath.Clean(expandEnv(p))
	if !filepath.IsAbs(p) {
		slog.Warn("[WARN-CONFIG] database_path is not absolute, ignoring", "path", p)
		return ""
	}
	return p
}

// expandEnv substitutes %VAR% everywhere and $VAR / ${VAR} off Windows,
// where '$' is an ordinary path character. Unset variables stay as written.
func expandEnv(p string) string {
	p = percentVarPattern.ReplaceAllStringFunc(p, func(token string) string {
		if value, ok := os.LookupEnv(strings.Trim(token, "%")); ok {
			return value
		}
		return token
	})
	if runtime.GOOS == "windows" {
		return p
	}
	return os.Expand(p, func(name string) string {
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return "${" + name + "}"
	})
}
