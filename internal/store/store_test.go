package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"gamevault/internal/macro"
	"gamevault/internal/testutil"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	origNow := nowFn
	nowFn = func() time.Time { return fixedNow }
	t.Cleanup(func() { nowFn = origNow })

	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "gamevault.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func sequentialIDs(t *testing.T) {
	t.Helper()
	orig := newIDFn
	n := 0
	newIDFn = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	t.Cleanup(func() { newIDFn = orig })
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatal("Open(\"\") expected error")
	}
}

func TestOpenSeedsDefaults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	version, err := s.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != 2 {
		t.Fatalf("SchemaVersion() = %d, want 2", version)
	}

	shortcuts, err := s.ListAppShortcuts(ctx)
	if err != nil {
		t.Fatalf("ListAppShortcuts() error = %v", err)
	}
	got := make(map[string]string, len(shortcuts))
	for _, sc := range shortcuts {
		if !sc.IsGlobal || !sc.IsActive {
			t.Errorf("default shortcut %q global=%v active=%v", sc.ActionID, sc.IsGlobal, sc.IsActive)
		}
		got[sc.ActionID] = sc.Keys
	}
	want := map[string]string{
		"toggle_overlay":      "Ctrl+Shift+G",
		"take_screenshot":     "Ctrl+Shift+S",
		"quick_backup":        "Ctrl+Shift+B",
		"toggle_key_mappings": "Ctrl+Shift+K",
		"toggle_macros":       "Ctrl+Shift+M",
		"toggle_recording":    "F9",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("default shortcuts mismatch (-want +got):\n%s", diff)
	}

	for _, key := range []string{SettingKeyMappingsEnabled, SettingMacrosEnabled} {
		enabled, err := s.GetBool(ctx, key, false)
		if err != nil {
			t.Fatalf("GetBool(%q) error = %v", key, err)
		}
		if !enabled {
			t.Errorf("GetBool(%q) = false, want true", key)
		}
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "gamevault.db")

	first, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := first.SetBool(ctx, SettingMacrosEnabled, false); err != nil {
		t.Fatalf("SetBool() error = %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	second, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer second.Close()

	enabled, err := second.GetBool(ctx, SettingMacrosEnabled, true)
	if err != nil {
		t.Fatalf("GetBool() error = %v", err)
	}
	if enabled {
		t.Fatal("macros_enabled was reseeded on reopen")
	}
	shortcuts, err := second.ListAppShortcuts(ctx)
	if err != nil {
		t.Fatalf("ListAppShortcuts() error = %v", err)
	}
	if len(shortcuts) != 6 {
		t.Fatalf("ListAppShortcuts() len = %d, want 6", len(shortcuts))
	}
}

func TestKeyMappingLifecycle(t *testing.T) {
	s := openTestStore(t)
	sequentialIDs(t)
	ctx := context.Background()

	saved, err := s.SaveKeyMapping(ctx, macro.KeyMapping{
		GameID:    testutil.Ptr("elden-ring"),
		Name:      " Dodge ",
		SourceKey: "Ctrl+1",
		TargetKey: "Space",
		IsActive:  true,
	})
	if err != nil {
		t.Fatalf("SaveKeyMapping() error = %v", err)
	}
	want := macro.KeyMapping{
		ID:        "id-1",
		GameID:    testutil.Ptr("elden-ring"),
		Name:      "Dodge",
		SourceKey: "Ctrl+1",
		TargetKey: "Space",
		IsActive:  true,
		CreatedAt: fixedNow,
	}
	if diff := cmp.Diff(want, saved); diff != "" {
		t.Fatalf("SaveKeyMapping() mismatch (-want +got):\n%s", diff)
	}

	saved.TargetKey = "Shift+Space"
	saved.GameID = nil
	updated, err := s.SaveKeyMapping(ctx, saved)
	if err != nil {
		t.Fatalf("SaveKeyMapping(update) error = %v", err)
	}
	if updated.TargetKey != "Shift+Space" || updated.GameID != nil {
		t.Fatalf("update not applied: %+v", updated)
	}

	if err := s.SetKeyMappingActive(ctx, saved.ID, false); err != nil {
		t.Fatalf("SetKeyMappingActive() error = %v", err)
	}
	list, err := s.ListKeyMappings(ctx)
	if err != nil {
		t.Fatalf("ListKeyMappings() error = %v", err)
	}
	if len(list) != 1 || list[0].IsActive {
		t.Fatalf("ListKeyMappings() = %+v, want one inactive mapping", list)
	}

	if err := s.DeleteKeyMapping(ctx, saved.ID); err != nil {
		t.Fatalf("DeleteKeyMapping() error = %v", err)
	}
	if _, err := s.GetKeyMapping(ctx, saved.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetKeyMapping(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestSaveKeyMappingValidates(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.SaveKeyMapping(context.Background(), macro.KeyMapping{Name: "x"}); err == nil {
		t.Fatal("SaveKeyMapping() accepted mapping without keys")
	}
}

func TestMissingRowsReportNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	checks := map[string]error{
		"DeleteKeyMapping":    s.DeleteKeyMapping(ctx, "missing"),
		"SetKeyMappingActive": s.SetKeyMappingActive(ctx, "missing", true),
		"DeleteMacro":         s.DeleteMacro(ctx, "missing"),
		"SetMacroActive":      s.SetMacroActive(ctx, "missing", true),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("%s() error = %v, want ErrNotFound", name, err)
		}
	}
	if _, err := s.GetMacro(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMacro() error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetAppShortcut(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAppShortcut() error = %v, want ErrNotFound", err)
	}
}

func TestMacroLifecycle(t *testing.T) {
	s := openTestStore(t)
	sequentialIDs(t)
	ctx := context.Background()

	in := macro.Macro{
		Name:       "Combo",
		TriggerKey: "Ctrl+Shift+1",
		Actions: macro.ActionList{
			macro.KeyTap{KeyCode: 0x41},
			macro.Delay{Duration: 50 * time.Millisecond},
			macro.KeyTap{KeyName: "Ctrl+C", Hold: 80 * time.Millisecond},
			macro.KeyPress{KeyCode: 0x10},
			macro.KeyRelease{KeyCode: 0x10},
		},
		DelayMs:  20,
		IsActive: true,
	}
	saved, err := s.SaveMacro(ctx, in)
	if err != nil {
		t.Fatalf("SaveMacro() error = %v", err)
	}
	want := in
	want.ID = "id-1"
	want.RepeatCount = 1
	want.CreatedAt = fixedNow
	if diff := cmp.Diff(want, saved); diff != "" {
		t.Fatalf("SaveMacro() mismatch (-want +got):\n%s", diff)
	}

	if err := s.SetMacroActive(ctx, saved.ID, false); err != nil {
		t.Fatalf("SetMacroActive() error = %v", err)
	}
	got, err := s.GetMacro(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetMacro() error = %v", err)
	}
	if got.IsActive {
		t.Fatal("SetMacroActive(false) not persisted")
	}

	if err := s.DeleteMacro(ctx, saved.ID); err != nil {
		t.Fatalf("DeleteMacro() error = %v", err)
	}
	list, err := s.ListMacros(ctx)
	if err != nil {
		t.Fatalf("ListMacros() error = %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("ListMacros() len = %d, want 0", len(list))
	}
}

func TestSaveMacroRequiresTrigger(t *testing.T) {
	s := openTestStore(t)
	_, err := s.SaveMacro(context.Background(), macro.Macro{Name: "x", RepeatCount: 1})
	if err == nil {
		t.Fatal("SaveMacro() accepted macro without trigger_key")
	}
}

func TestListMacrosToleratesBadActions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	logs := testutil.CaptureLogs(t, slog.LevelWarn)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO macros (id, name, trigger_key, actions) VALUES ('bad', 'Broken', 'F8', '{not json')`)
	if err != nil {
		t.Fatalf("insert error = %v", err)
	}
	list, err := s.ListMacros(ctx)
	if err != nil {
		t.Fatalf("ListMacros() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListMacros() len = %d, want 1", len(list))
	}
	m := list[0]
	if len(m.Actions) != 0 || m.DelayMs != 50 || m.RepeatCount != 1 || !m.IsActive {
		t.Fatalf("ListMacros() = %+v, want defaults with no actions", m)
	}
	if !logs.Contains("macro has unreadable actions") || !logs.Contains("id=bad") {
		t.Fatalf("expected warning for unreadable actions, got:\n%s", logs.String())
	}
}

func TestSaveAppShortcutUpsertsByAction(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	existing, err := s.GetAppShortcut(ctx, "toggle_overlay")
	if err != nil {
		t.Fatalf("GetAppShortcut() error = %v", err)
	}
	existing.ID = ""
	existing.Keys = "Alt+O"
	existing.IsActive = false
	got, err := s.SaveAppShortcut(ctx, existing)
	if err != nil {
		t.Fatalf("SaveAppShortcut() error = %v", err)
	}
	if got.ID != "s1" || got.Keys != "Alt+O" || got.IsActive {
		t.Fatalf("SaveAppShortcut() = %+v", got)
	}

	added, err := s.SaveAppShortcut(ctx, AppShortcut{ActionID: "open_notes", Keys: "Ctrl+Alt+N", IsActive: true})
	if err != nil {
		t.Fatalf("SaveAppShortcut(new) error = %v", err)
	}
	if added.Label != "open_notes" || added.Category != "general" {
		t.Fatalf("SaveAppShortcut(new) defaults = %+v", added)
	}
	if _, err := s.SaveAppShortcut(ctx, AppShortcut{}); err == nil {
		t.Fatal("SaveAppShortcut() accepted empty action_id")
	}
}

func TestSettings(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.GetSetting(ctx, "absent"); err != nil || ok {
		t.Fatalf("GetSetting(absent) ok=%v err=%v", ok, err)
	}
	if got, err := s.GetBool(ctx, "absent", true); err != nil || !got {
		t.Fatalf("GetBool(absent) = %v, %v; want fallback true", got, err)
	}

	if err := s.SetSetting(ctx, "theme", "dark"); err != nil {
		t.Fatalf("SetSetting() error = %v", err)
	}
	if err := s.SetSetting(ctx, "theme", "light"); err != nil {
		t.Fatalf("SetSetting(overwrite) error = %v", err)
	}
	if got, ok, err := s.GetSetting(ctx, "theme"); err != nil || !ok || got != "light" {
		t.Fatalf("GetSetting(theme) = %q, %v, %v", got, ok, err)
	}

	if err := s.SetSetting(ctx, "garbled", "maybe"); err != nil {
		t.Fatalf("SetSetting() error = %v", err)
	}
	if got, err := s.GetBool(ctx, "garbled", true); err != nil || !got {
		t.Fatalf("GetBool(garbled) = %v, %v; want fallback", got, err)
	}
}
