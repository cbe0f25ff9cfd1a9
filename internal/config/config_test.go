package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestConfigParsing(t *testing.T) {
	t.Parallel()

	content := `# Global options
log.level debug
tick.interval 50ms

[run]
# run overrides
tick.max 20
trace yes`

	c, err := LoadFromReader(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if v, ok := c.GetGlobalOption("log.level"); !ok || v != "debug" {
		t.Errorf("Expected log.level=debug, got %q (exists: %v)", v, ok)
	}
	if v, ok := c.GetCommandOption("run", "tick.max"); !ok || v != "20" {
		t.Errorf("Expected run tick.max=20, got %q (exists: %v)", v, ok)
	}
	if v, ok := c.GetCommandOption("run", "tick.interval"); !ok || v != "50ms" {
		t.Errorf("Expected run tick.interval to fall back to global, got %q (exists: %v)", v, ok)
	}
	if _, ok := c.GetCommandOption("validate", "nope"); ok {
		t.Error("Expected unknown option to be absent")
	}
	if len(c.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", c.Warnings)
	}
}

func TestConfigWarnings(t *testing.T) {
	t.Parallel()

	content := `colour red
tick.max lots
[run]
trace maybe
frobnicate 1`

	c, err := LoadFromReader(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	want := []string{
		`global option "tick.max": expected int, got "lots"`,
		`option "trace" in [run]: expected bool, got "maybe"`,
		`unknown global option: "colour" (value: "red")`,
		`unknown option for command "run": "frobnicate" (value: "1")`,
	}
	if len(c.Warnings) != len(want) {
		t.Fatalf("Expected %d warnings, got %v", len(want), c.Warnings)
	}
	for i := range want {
		if c.Warnings[i] != want[i] {
			t.Errorf("warning %d: expected %q, got %q", i, want[i], c.Warnings[i])
		}
	}
}

func TestLoadFromPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := LoadFromPath(filepath.Join(dir, "missing"))
	if err != nil {
		t.Fatalf("missing file should load empty config: %v", err)
	}
	if len(c.Global) != 0 {
		t.Errorf("Expected empty config, got %v", c.Global)
	}

	path := filepath.Join(dir, "config")
	if err := os.WriteFile(path, []byte("trace true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err = LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if v, _ := c.GetGlobalOption("trace"); v != "true" {
		t.Errorf("Expected trace=true, got %q", v)
	}

	if runtime.GOOS == "windows" {
		return
	}
	link := filepath.Join(dir, "link")
	if err := os.Symlink(path, link); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromPath(link); err == nil || !strings.Contains(err.Error(), "symlink") {
		t.Errorf("Expected symlink rejection, got %v", err)
	}
}

func TestSchemaResolve(t *testing.T) {
	c, err := LoadFromReader(strings.NewReader("tick.interval 50ms\n[run]\ntick.max 7\n"))
	if err != nil {
		t.Fatal(err)
	}
	s := DefaultSchema()

	if got := s.ResolveDuration(c, "run", "tick.interval"); got != 50*time.Millisecond {
		t.Errorf("Expected global value for run, got %v", got)
	}
	if got := s.ResolveInt(c, "run", "tick.max"); got != 7 {
		t.Errorf("Expected section value, got %d", got)
	}
	if got := s.ResolveInt(c, "", "tick.max"); got != 0 {
		t.Errorf("Expected default, got %d", got)
	}
	if got := s.Resolve(c, "expr.cache-size"); got != "1000" {
		t.Errorf("Expected default 1000, got %q", got)
	}
	if s.ResolveBool(nil, "run", "trace") {
		t.Error("Expected trace to default to false")
	}

	t.Setenv("BTE_TICK_INTERVAL", "2s")
	if got := s.ResolveDuration(c, "run", "tick.interval"); got != 2*time.Second {
		t.Errorf("Expected env override, got %v", got)
	}
}

func TestFormatHelp(t *testing.T) {
	t.Parallel()

	help := DefaultSchema().FormatHelp()
	for _, want := range []string{
		"Global Options:",
		"[run] Options:",
		"log.level",
		"env: BTE_LOG_LEVEL",
		"type: duration, default: 100ms",
	} {
		if !strings.Contains(help, want) {
			t.Errorf("help missing %q:\n%s", want, help)
		}
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("BTE_CONFIG", "/tmp/custom-config")
	got, err := GetConfigPath()
	if err != nil || got != "/tmp/custom-config" {
		t.Fatalf("expected override path, got %q (%v)", got, err)
	}

	dir := t.TempDir()
	homeVar := "HOME"
	if runtime.GOOS == "windows" {
		homeVar = "USERPROFILE"
	}
	t.Setenv(homeVar, dir)
	t.Setenv("BTE_CONFIG", "")
	got, err = GetConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, ".bte", "config"); got != want {
		t.Fatalf("expected default path %q, got %q", want, got)
	}
}

func TestSetKeyInFile(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name, initial, want string
	}{
		{"empty", "", "trace true"},
		{"append", "log.level info\n", "log.level info\ntrace true\n"},
		{"replace", "# c\ntrace false\n", "# c\ntrace true\n"},
		{"before section", "log.level info\n[run]\ntrace false\n", "log.level info\ntrace true\n[run]\ntrace false\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "nested", "config")
			if tc.initial != "" {
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(path, []byte(tc.initial), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			if err := SetKeyInFile(path, "trace", "true"); err != nil {
				t.Fatalf("SetKeyInFile: %v", err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, string(data))
			}
			entries, _ := os.ReadDir(filepath.Dir(path))
			if len(entries) != 1 {
				t.Errorf("expected no temp files left, got %d entries", len(entries))
			}
		})
	}
}
