//go:build !windows

package preflight

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// withMountRoots points the ghost-directory check at test directories.
func withMountRoots(t *testing.T, roots ...string) {
	t.Helper()
	original := mountRoots
	mountRoots = roots
	t.Cleanup(func() { mountRoots = original })
}

func TestCheckDestinationAccessible_Unix(t *testing.T) {
	t.Run("Error - No Permission on Deepest Existing Ancestor", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("permission checks do not apply to root")
		}
		grandparent := t.TempDir()
		unreadableAncestor := filepath.Join(grandparent, "unreadable_ancestor")

		if err := os.Mkdir(unreadableAncestor, 0000); err != nil {
			t.Fatalf("failed to create unreadable ancestor dir: %v", err)
		}
		t.Cleanup(func() { os.Chmod(unreadableAncestor, 0755) })

		dstDir := filepath.Join(unreadableAncestor, "non_existent_child", "target")

		err := CheckDestinationAccessible(dstDir)
		if err == nil {
			t.Fatal("expected a permission error, but got nil")
		}
		expectedError := "cannot access ancestor directory"
		if !strings.Contains(err.Error(), expectedError) {
			t.Errorf("expected error to contain %q, but got: %v", expectedError, err)
		}
	})

	t.Run("Ghost Directory Check", func(t *testing.T) {
		// A "drive" directory below a mount root that is not actually mounted.
		mountRoot := t.TempDir()
		withMountRoots(t, mountRoot)
		dstDir := filepath.Join(mountRoot, "usb", "backup")
		if err := os.MkdirAll(dstDir, 0755); err != nil {
			t.Fatalf("failed to create test directories: %v", err)
		}

		err := CheckDestinationAccessible(dstDir)
		if err == nil {
			t.Fatal("expected an error for a non-mounted 'ghost' directory, but got nil")
		}
		expectedError := "is not on a mounted volume"
		if !strings.Contains(err.Error(), expectedError) {
			t.Errorf("expected error to contain %q, but got: %v", expectedError, err)
		}
	})

	t.Run("Ghost Directory Check Applies to Missing Destinations", func(t *testing.T) {
		mountRoot := t.TempDir()
		withMountRoots(t, mountRoot)
		if err := os.Mkdir(filepath.Join(mountRoot, "usb"), 0755); err != nil {
			t.Fatalf("failed to create test directory: %v", err)
		}

		err := CheckDestinationAccessible(filepath.Join(mountRoot, "usb", "not", "yet", "there"))
		if err == nil {
			t.Fatal("expected an error for a missing destination below a ghost directory, but got nil")
		}
	})

	t.Run("Ghost Directory Check Skipped Outside Mount Roots", func(t *testing.T) {
		withMountRoots(t, filepath.Join(t.TempDir(), "elsewhere"))
		if err := CheckDestinationAccessible(t.TempDir()); err != nil {
			t.Errorf("expected no error outside the mount roots, but got: %v", err)
		}
	})

	t.Run("Mount Root Itself Is Allowed", func(t *testing.T) {
		mountRoot := t.TempDir()
		withMountRoots(t, mountRoot)
		if err := CheckDestinationAccessible(mountRoot); err != nil {
			t.Errorf("expected no error for the mount root itself, but got: %v", err)
		}
	})
}

func TestIsMountPoint(t *testing.T) {
	mounted, err := isMountPoint("/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !mounted {
		t.Error("expected / to be a mount point")
	}

	dir := filepath.Join(t.TempDir(), "plain")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatal(err)
	}
	mounted, err = isMountPoint(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mounted {
		t.Errorf("expected %s not to be a mount point", dir)
	}

	if _, err := isMountPoint(filepath.Join(dir, "missing")); !os.IsNotExist(err) {
		t.Errorf("expected a not-exist error, got %v", err)
	}
}
