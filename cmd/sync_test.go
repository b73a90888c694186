package cmd_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulschiretz/pgl-sync/cmd"
	"github.com/paulschiretz/pgl-sync/pkg/buildinfo"
	"github.com/paulschiretz/pgl-sync/pkg/plog"
)

func createFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create parent dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(b)
}

// execute runs the root command with args and restores the default logger
// configuration afterwards.
func execute(t *testing.T, args ...string) error {
	t.Helper()
	t.Cleanup(func() { plog.Configure(plog.Options{Level: plog.LevelChange}) })
	root := cmd.NewRootCommand()
	root.SetArgs(args)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	return root.ExecuteContext(context.Background())
}

type fixture struct {
	src, dst, settings string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	base := t.TempDir()
	f := fixture{
		src:      filepath.Join(base, "src"),
		dst:      filepath.Join(base, "dst"),
		settings: filepath.Join(base, "pgl-sync.settings.json"),
	}
	createFile(t, filepath.Join(f.src, "a.txt"), "alpha")
	createFile(t, filepath.Join(f.src, "sub", "b.txt"), "beta")
	return f
}

func TestVersionCommand(t *testing.T) {
	root := cmd.NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := buildinfo.Name + " version " + buildinfo.Version
	if got := strings.TrimSpace(out.String()); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestDirCommand(t *testing.T) {
	t.Run("Syncs Tree", func(t *testing.T) {
		f := newFixture(t)
		if err := execute(t, "dir", "-s", f.src, "-d", f.dst, "--settings", f.settings); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := readFile(t, filepath.Join(f.dst, "sub", "b.txt")); got != "beta" {
			t.Errorf("expected copied content, got %q", got)
		}
		if _, err := os.Stat(f.settings); !os.IsNotExist(err) {
			t.Error("settings must only be written with --save-settings")
		}
	})

	t.Run("Dry Run Writes Nothing", func(t *testing.T) {
		f := newFixture(t)
		if err := execute(t, "dir", "-s", f.src, "-d", f.dst, "--settings", f.settings, "--dry-run", "--sha256"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := os.Stat(f.dst); !os.IsNotExist(err) {
			t.Errorf("expected destination to stay absent in dry-run, got %v", err)
		}
	})

	t.Run("Mirror Removes Extras", func(t *testing.T) {
		f := newFixture(t)
		createFile(t, filepath.Join(f.dst, "stale.txt"), "old")
		if err := execute(t, "dir", "-s", f.src, "-d", f.dst, "--settings", f.settings, "--mirror"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(f.dst, "stale.txt")); !os.IsNotExist(err) {
			t.Error("expected mirror to delete stale.txt")
		}
	})

	t.Run("Save And Reuse Settings", func(t *testing.T) {
		f := newFixture(t)
		err := execute(t, "dir", "-s", f.src, "-d", f.dst, "--settings", f.settings,
			"--save-settings", "--sha256", "--ignore", filepath.Join(f.src, "sub"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(f.dst, "sub")); !os.IsNotExist(err) {
			t.Error("expected the ignored directory not to be copied")
		}

		var saved map[string]any
		if err := json.Unmarshal([]byte(readFile(t, f.settings)), &saved); err != nil {
			t.Fatalf("settings file is not valid JSON: %v", err)
		}
		if saved["source"] != f.src || saved["strongHash"] != true || saved["mode"] != "directory" {
			t.Errorf("unexpected saved settings: %v", saved)
		}

		// A second run without path flags picks everything up from the file.
		createFile(t, filepath.Join(f.src, "c.txt"), "gamma")
		if err := execute(t, "dir", "--settings", f.settings); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := readFile(t, filepath.Join(f.dst, "c.txt")); got != "gamma" {
			t.Errorf("expected c.txt to be synced from saved settings, got %q", got)
		}
		if _, err := os.Stat(filepath.Join(f.dst, "sub")); !os.IsNotExist(err) {
			t.Error("expected the saved ignore list to still apply")
		}
	})

	t.Run("Save Log", func(t *testing.T) {
		f := newFixture(t)
		logFile := filepath.Join(filepath.Dir(f.settings), "sync.log")
		err := execute(t, "dir", "-s", f.src, "-d", f.dst, "--settings", f.settings, "--save-log", "--log-file", logFile)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		content := readFile(t, logFile)
		if !strings.Contains(content, "msg=COPY") || !strings.Contains(content, "level=CHANGE") {
			t.Errorf("expected COPY lines in the log file, got:\n%s", content)
		}
	})

	t.Run("Missing Source", func(t *testing.T) {
		f := newFixture(t)
		err := execute(t, "dir", "-d", f.dst, "--settings", f.settings)
		if err == nil || !strings.Contains(err.Error(), "source cannot be empty") {
			t.Errorf("expected a missing source error, got %v", err)
		}
	})

	t.Run("Source Is a File", func(t *testing.T) {
		f := newFixture(t)
		err := execute(t, "dir", "-s", filepath.Join(f.src, "a.txt"), "-d", f.dst, "--settings", f.settings)
		if err == nil || !strings.Contains(err.Error(), "is not a directory") {
			t.Errorf("expected a preflight error, got %v", err)
		}
	})

	t.Run("Unknown Log Level", func(t *testing.T) {
		f := newFixture(t)
		err := execute(t, "dir", "-s", f.src, "-d", f.dst, "--settings", f.settings, "--log-level", "loud")
		if err == nil {
			t.Error("expected a validation error, got nil")
		}
	})

	t.Run("Rejects Arguments", func(t *testing.T) {
		f := newFixture(t)
		if err := execute(t, "dir", f.src, f.dst); err == nil {
			t.Error("expected positional arguments to be rejected")
		}
	})
}

func TestFileCommand(t *testing.T) {
	f := newFixture(t)
	if err := execute(t, "file", "-s", filepath.Join(f.src, "a.txt"), "-d", f.dst, "--settings", f.settings); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := readFile(t, filepath.Join(f.dst, "a.txt")); got != "alpha" {
		t.Errorf("expected a.txt in the destination, got %q", got)
	}
	if _, err := os.Stat(filepath.Join(f.dst, "sub")); !os.IsNotExist(err) {
		t.Error("file mode must only copy the one file")
	}

	// Mirror is a dir-only flag.
	if err := execute(t, "file", "-s", filepath.Join(f.src, "a.txt"), "-d", f.dst, "--mirror"); err == nil {
		t.Error("expected --mirror to be unknown for the file command")
	}
}
